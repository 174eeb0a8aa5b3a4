package domain

// Channex request bodies. Field names follow the Channex contract.

type GroupPayload struct {
	Title string `json:"title"`
}

type RoomTypePayload struct {
	PropertyID       string `json:"property_id"`
	Title            string `json:"title"`
	CountOfRooms     int    `json:"count_of_rooms"`
	OccAdults        int    `json:"occ_adults"`
	OccChildren      int    `json:"occ_children"`
	OccInfants       int    `json:"occ_infants"`
	DefaultOccupancy int    `json:"default_occupancy"`
}

type TaxPayload struct {
	PropertyID  string  `json:"property_id"`
	Title       string  `json:"title"`
	Logic       string  `json:"logic"`
	Type        string  `json:"type"`
	Rate        string  `json:"rate"` // decimal string, as Channex expects
	IsInclusive bool    `json:"is_inclusive"`
	Currency    *string `json:"currency,omitempty"`
}

type RatePlanOptionPayload struct {
	Occupancy int    `json:"occupancy"`
	IsPrimary bool   `json:"is_primary"`
	Rate      string `json:"rate"`
}

type RatePlanPayload struct {
	PropertyID string                  `json:"property_id"`
	RoomTypeID string                  `json:"room_type_id"`
	Title      string                  `json:"title"`
	Currency   string                  `json:"currency"`
	SellMode   string                  `json:"sell_mode"`
	RateMode   string                  `json:"rate_mode"`
	Options    []RatePlanOptionPayload `json:"options"`
}

type AvailabilityValue struct {
	PropertyID   string `json:"property_id"`
	RoomTypeID   string `json:"room_type_id"`
	DateFrom     string `json:"date_from"`
	DateTo       string `json:"date_to"`
	Availability int    `json:"availability"`
}
