package domain

import (
	"fmt"
	"time"
)

type RoomType struct {
	ID               string `json:"id"`
	PropertyID       string `json:"property_id"`
	Title            string `json:"title"`
	OccAdults        int    `json:"occ_adults"`
	OccChildren      int    `json:"occ_children"`
	OccInfants       int    `json:"occ_infants"`
	CountOfRooms     int    `json:"count_of_rooms"`
	Capacity         int    `json:"capacity"` // 0 means "not set"
	DefaultOccupancy int    `json:"default_occupancy"`
}

type AvailabilityRecord struct {
	RoomTypeID   string    `json:"room_type_id"`
	Date         time.Time `json:"date"`
	Availability int       `json:"availability"`
}

type Occupancy struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Infants  int `json:"infants"`
}

func (o Occupancy) Total() int { return o.Adults + o.Children + o.Infants }

const DateLayout = "2006-01-02"

// DateRange is half-open: Start is the first night, End is the checkout day.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: start %q", ErrInvalidRange, start)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: end %q", ErrInvalidRange, end)
	}
	return DateRange{Start: s, End: e}, nil
}

// Nights lists every date in [Start, End), truncated to UTC days.
func (r DateRange) Nights() []time.Time {
	start, end := Day(r.Start), Day(r.End)
	var out []time.Time
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

func (r DateRange) Empty() bool { return !Day(r.Start).Before(Day(r.End)) }

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type SearchQuery struct {
	Range     DateRange
	Occupancy Occupancy
	Rooms     int
}

// Validate normalizes Rooms and rejects zero-night or inverted ranges.
func (q *SearchQuery) Validate() error {
	if q.Range.Empty() {
		return fmt.Errorf("%w: end must be after start", ErrInvalidRange)
	}
	if q.Occupancy.Adults < 0 || q.Occupancy.Children < 0 || q.Occupancy.Infants < 0 {
		return fmt.Errorf("%w: negative occupancy", ErrInvalidRange)
	}
	if q.Rooms <= 0 {
		q.Rooms = 1
	}
	return nil
}

// SelectedRooms maps room type ID to the number of rooms picked by the user.
type SelectedRooms map[string]int

// RoomOffer is a matching room type plus how many rooms can still be booked
// for every night of the stay.
type RoomOffer struct {
	RoomType
	Available int `json:"available"`
}

type RoomSearchResult struct {
	PropertyID string        `json:"property_id"`
	Start      string        `json:"start"`
	End        string        `json:"end"`
	Nights     int           `json:"nights"`
	Rooms      []RoomOffer   `json:"rooms"`
	Selected   SelectedRooms `json:"selected,omitempty"`
}
