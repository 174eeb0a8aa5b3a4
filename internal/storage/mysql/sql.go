package mysql

// -----------------------------------------------------------------------------
// LOCAL ENTITIES
// -----------------------------------------------------------------------------

const getPropertySQL = `
SELECT id, group_id, title, currency, channex_property_id
FROM properties
WHERE id = ?
`

const findPropertyByChannexIDSQL = `
SELECT id, group_id, title, currency, channex_property_id
FROM properties
WHERE channex_property_id = ?
LIMIT 1
`

const getGroupSQL = `
SELECT id, title
FROM property_groups
WHERE id = ?
`

const roomTypeColumns = `id, property_id, title, occ_adults, occ_children, occ_infants, count_of_rooms, capacity, default_occupancy`

const getRoomTypeSQL = `
SELECT ` + roomTypeColumns + `
FROM room_types
WHERE id = ?
`

// List order is the order the search returns rooms in.
const listRoomTypesSQL = `
SELECT ` + roomTypeColumns + `
FROM room_types
WHERE property_id = ?
ORDER BY title, id
`

const getTaxSQL = `
SELECT id, property_id, title, logic, type, rate, is_inclusive, currency
FROM taxes
WHERE id = ?
`

const getRatePlanSQL = `
SELECT id, property_id, room_type_id, title, currency, sell_mode, rate_mode
FROM rate_plans
WHERE id = ?
`

const listRatePlanOptionsSQL = `
SELECT occupancy, is_primary, rate
FROM rate_plan_options
WHERE rate_plan_id = ?
ORDER BY occupancy
`

// Half-open range: [start, end).
const listAvailabilitySQL = `
SELECT a.room_type_id, a.date, a.availability
FROM room_type_availability a
JOIN room_types r ON r.id = a.room_type_id
WHERE r.property_id = ? AND a.date >= ? AND a.date < ?
ORDER BY a.room_type_id, a.date
`

const listPropertyGroupIDsSQL = `SELECT group_id FROM properties WHERE id = ? AND group_id IS NOT NULL`
const listRoomTypeIDsSQL = `SELECT id FROM room_types WHERE property_id = ? ORDER BY id`
const listTaxIDsSQL = `SELECT id FROM taxes WHERE property_id = ? ORDER BY id`
const listRatePlanIDsSQL = `SELECT id FROM rate_plans WHERE property_id = ? ORDER BY id`

const insertSyncLogSQL = `
INSERT INTO sync_log (entity_type, local_id, external_id, op, status, message, created_at)
VALUES (?, ?, ?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP))
`

// -----------------------------------------------------------------------------
// ID MAPPINGS
// -----------------------------------------------------------------------------

const getMappingSQL = `
SELECT external_id FROM id_mappings WHERE entity_type = ? AND local_id = ?
`

const upsertMappingSQL = `
INSERT INTO id_mappings (entity_type, local_id, external_id)
VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE
  external_id = VALUES(external_id),
  updated_at  = CURRENT_TIMESTAMP
`

const deleteMappingSQL = `
DELETE FROM id_mappings WHERE entity_type = ? AND local_id = ?
`

const listMappingsSQL = `
SELECT local_id, external_id FROM id_mappings WHERE entity_type = ?
`
