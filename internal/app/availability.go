package app

import (
	"time"

	"channex_sync/internal/domain"
)

// availabilityIndex maps room type ID -> day -> recorded availability.
type availabilityIndex map[string]map[time.Time]int

func indexRecords(records []domain.AvailabilityRecord) availabilityIndex {
	idx := availabilityIndex{}
	for _, rec := range records {
		byDay, ok := idx[rec.RoomTypeID]
		if !ok {
			byDay = map[time.Time]int{}
			idx[rec.RoomTypeID] = byDay
		}
		byDay[domain.Day(rec.Date)] = rec.Availability
	}
	return idx
}

// fitsOccupancy checks per-category limits and, when set, total capacity.
func fitsOccupancy(rt domain.RoomType, o domain.Occupancy) bool {
	if rt.OccAdults < o.Adults || rt.OccChildren < o.Children || rt.OccInfants < o.Infants {
		return false
	}
	if rt.Capacity > 0 && rt.Capacity < o.Total() {
		return false
	}
	return true
}

// bookable is the smallest availability over the nights; nights without a
// record fall back to the room type's default count. With no records at all
// only the default count is used.
func bookable(rt domain.RoomType, nights []time.Time, idx availabilityIndex) int {
	if len(idx) == 0 {
		return rt.CountOfRooms
	}
	low := -1
	byDay := idx[rt.ID]
	for _, d := range nights {
		avail, ok := byDay[d]
		if !ok {
			avail = rt.CountOfRooms
		}
		if low < 0 || avail < low {
			low = avail
		}
	}
	if low < 0 {
		return 0
	}
	return low
}

// FilterRoomTypes keeps, in input order, the room types that fit the occupancy
// and have at least q.Rooms rooms free on every night of the range.
// A zero-night or inverted range matches nothing.
func FilterRoomTypes(rooms []domain.RoomType, q domain.SearchQuery, records []domain.AvailabilityRecord) []domain.RoomType {
	offers := MatchOffers(rooms, q, records)
	out := make([]domain.RoomType, 0, len(offers))
	for _, o := range offers {
		out = append(out, o.RoomType)
	}
	return out
}

// MatchOffers is FilterRoomTypes plus the bookable count per room type.
func MatchOffers(rooms []domain.RoomType, q domain.SearchQuery, records []domain.AvailabilityRecord) []domain.RoomOffer {
	if q.Range.Empty() {
		return nil
	}
	need := q.Rooms
	if need <= 0 {
		need = 1
	}
	nights := q.Range.Nights()
	idx := indexRecords(records)

	var out []domain.RoomOffer
	for _, rt := range rooms {
		if !fitsOccupancy(rt, q.Occupancy) {
			continue
		}
		n := bookable(rt, nights, idx)
		if n < need {
			continue
		}
		out = append(out, domain.RoomOffer{RoomType: rt, Available: n})
	}
	return out
}

// PruneSelection drops selections for room types no longer offered and caps
// counts at what is still bookable.
func PruneSelection(selected domain.SelectedRooms, offers []domain.RoomOffer) domain.SelectedRooms {
	if len(selected) == 0 {
		return nil
	}
	avail := make(map[string]int, len(offers))
	for _, o := range offers {
		avail[o.ID] = o.Available
	}
	out := domain.SelectedRooms{}
	for id, n := range selected {
		limit, ok := avail[id]
		if !ok || n <= 0 {
			continue
		}
		if n > limit {
			n = limit
		}
		out[id] = n
	}
	return out
}
