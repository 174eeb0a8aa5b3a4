package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"channex_sync/internal/domain"
)

/********** enumerations accepted by Channex **********/

var taxLogics = map[string]bool{
	"percent":              true,
	"per_room":             true,
	"per_person":           true,
	"per_night":            true,
	"per_booking":          true,
	"per_room_per_night":   true,
	"per_person_per_night": true,
}

var taxTypes = map[string]bool{
	"tax":      true,
	"fee":      true,
	"city_tax": true,
}

var sellModes = map[string]bool{"per_room": true, "per_person": true}
var rateModes = map[string]bool{"manual": true, "derived": true, "auto": true, "cascade": true}

/********** tiny helpers **********/

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidPayload, fmt.Sprintf(format, args...))
}

func money(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) }

// normEnum lowercases and turns spaces/dashes into underscores ("City Tax" -> "city_tax").
func normEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

func requireTitle(t string) (string, error) {
	t = strings.TrimSpace(t)
	if t == "" {
		return "", invalid("title is required")
	}
	return t, nil
}

func requireParent(name, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: %s", domain.ErrMissingParent, name)
	}
	return nil
}

/********** payload builders **********/

func MapGroupPayload(g domain.Group) (domain.GroupPayload, error) {
	title, err := requireTitle(g.Title)
	if err != nil {
		return domain.GroupPayload{}, err
	}
	return domain.GroupPayload{Title: title}, nil
}

func MapRoomTypePayload(rt domain.RoomType, channexPropertyID string) (domain.RoomTypePayload, error) {
	if err := requireParent("property", channexPropertyID); err != nil {
		return domain.RoomTypePayload{}, err
	}
	title, err := requireTitle(rt.Title)
	if err != nil {
		return domain.RoomTypePayload{}, err
	}
	if rt.OccAdults < 1 {
		return domain.RoomTypePayload{}, invalid("occ_adults must be at least 1")
	}
	if rt.OccChildren < 0 || rt.OccInfants < 0 {
		return domain.RoomTypePayload{}, invalid("occupancy must not be negative")
	}
	count := rt.CountOfRooms
	if count <= 0 {
		count = 1 // Channex rejects zero rooms
	}
	def := rt.DefaultOccupancy
	if def <= 0 || def > rt.OccAdults {
		def = rt.OccAdults
	}
	return domain.RoomTypePayload{
		PropertyID:       channexPropertyID,
		Title:            title,
		CountOfRooms:     count,
		OccAdults:        rt.OccAdults,
		OccChildren:      rt.OccChildren,
		OccInfants:       rt.OccInfants,
		DefaultOccupancy: def,
	}, nil
}

func MapTaxPayload(t domain.Tax, channexPropertyID string) (domain.TaxPayload, error) {
	if err := requireParent("property", channexPropertyID); err != nil {
		return domain.TaxPayload{}, err
	}
	title, err := requireTitle(t.Title)
	if err != nil {
		return domain.TaxPayload{}, err
	}
	logic := normEnum(t.Logic)
	if !taxLogics[logic] {
		return domain.TaxPayload{}, invalid("unknown tax logic %q", t.Logic)
	}
	typ := normEnum(t.Type)
	if typ == "" {
		typ = "tax"
	}
	if !taxTypes[typ] {
		return domain.TaxPayload{}, invalid("unknown tax type %q", t.Type)
	}
	if t.Rate < 0 {
		return domain.TaxPayload{}, invalid("rate must not be negative")
	}
	if logic == "percent" && t.Rate > 100 {
		return domain.TaxPayload{}, invalid("percent rate above 100")
	}

	p := domain.TaxPayload{
		PropertyID:  channexPropertyID,
		Title:       title,
		Logic:       logic,
		Type:        typ,
		Rate:        money(t.Rate),
		IsInclusive: t.IsInclusive,
	}
	// fixed-amount taxes need a currency; percent ones must not send one
	if logic != "percent" {
		if t.Currency == nil || strings.TrimSpace(*t.Currency) == "" {
			return domain.TaxPayload{}, invalid("currency is required for %s taxes", logic)
		}
		c := strings.ToUpper(strings.TrimSpace(*t.Currency))
		p.Currency = &c
	}
	return p, nil
}

func MapRatePlanPayload(rp domain.RatePlan, channexPropertyID, channexRoomTypeID string) (domain.RatePlanPayload, error) {
	if err := requireParent("property", channexPropertyID); err != nil {
		return domain.RatePlanPayload{}, err
	}
	if err := requireParent("room type", channexRoomTypeID); err != nil {
		return domain.RatePlanPayload{}, err
	}
	title, err := requireTitle(rp.Title)
	if err != nil {
		return domain.RatePlanPayload{}, err
	}
	currency := strings.ToUpper(strings.TrimSpace(rp.Currency))
	if len(currency) != 3 {
		return domain.RatePlanPayload{}, invalid("currency must be a 3-letter code, got %q", rp.Currency)
	}
	sell := normEnum(rp.SellMode)
	if sell == "" {
		sell = "per_room"
	}
	if !sellModes[sell] {
		return domain.RatePlanPayload{}, invalid("unknown sell mode %q", rp.SellMode)
	}
	mode := normEnum(rp.RateMode)
	if mode == "" {
		mode = "manual"
	}
	if !rateModes[mode] {
		return domain.RatePlanPayload{}, invalid("unknown rate mode %q", rp.RateMode)
	}
	if len(rp.Options) == 0 {
		return domain.RatePlanPayload{}, invalid("rate plan needs at least one occupancy option")
	}

	opts := make([]domain.RatePlanOptionPayload, 0, len(rp.Options))
	primary, maxIdx := -1, 0
	seen := map[int]bool{}
	for i, o := range rp.Options {
		if o.Occupancy < 1 {
			return domain.RatePlanPayload{}, invalid("option occupancy must be at least 1")
		}
		if seen[o.Occupancy] {
			return domain.RatePlanPayload{}, invalid("duplicate option for occupancy %d", o.Occupancy)
		}
		seen[o.Occupancy] = true
		if o.IsPrimary {
			if primary >= 0 {
				return domain.RatePlanPayload{}, invalid("more than one primary option")
			}
			primary = i
		}
		if o.Occupancy > rp.Options[maxIdx].Occupancy {
			maxIdx = i
		}
		opts = append(opts, domain.RatePlanOptionPayload{Occupancy: o.Occupancy, IsPrimary: o.IsPrimary, Rate: money(o.Rate)})
	}
	// Channex needs exactly one primary option; default to the largest occupancy.
	if primary < 0 {
		opts[maxIdx].IsPrimary = true
	}

	return domain.RatePlanPayload{
		PropertyID: channexPropertyID,
		RoomTypeID: channexRoomTypeID,
		Title:      title,
		Currency:   currency,
		SellMode:   sell,
		RateMode:   mode,
		Options:    opts,
	}, nil
}

// MapAvailabilityValues opens the room type's default inventory for days nights starting at from.
func MapAvailabilityValues(rt domain.RoomType, channexPropertyID, channexRoomTypeID string, from time.Time, days int) []domain.AvailabilityValue {
	if days <= 0 || channexPropertyID == "" || channexRoomTypeID == "" {
		return nil
	}
	count := rt.CountOfRooms
	if count < 0 {
		count = 0
	}
	start := domain.Day(from)
	return []domain.AvailabilityValue{{
		PropertyID:   channexPropertyID,
		RoomTypeID:   channexRoomTypeID,
		DateFrom:     start.Format(domain.DateLayout),
		DateTo:       start.AddDate(0, 0, days-1).Format(domain.DateLayout), // inclusive in Channex
		Availability: count,
	}}
}
