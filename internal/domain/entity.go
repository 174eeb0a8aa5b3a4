package domain

import (
	"fmt"
	"strings"
)

// EntityType names a kind of local entity mirrored into Channex.
type EntityType string

const (
	EntityGroup    EntityType = "group"
	EntityRoomType EntityType = "room_type"
	EntityTax      EntityType = "tax"
	EntityRatePlan EntityType = "rate_plan"
)

// EntityTypes in sync dependency order: parents before children.
var EntityTypes = []EntityType{EntityGroup, EntityRoomType, EntityTax, EntityRatePlan}

// ParseEntityType accepts both snake_case and the dashboard's camelCase spelling.
func ParseEntityType(s string) (EntityType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "group", "groups":
		return EntityGroup, nil
	case "room_type", "room_types", "roomtype", "room-type":
		return EntityRoomType, nil
	case "tax", "taxes":
		return EntityTax, nil
	case "rate_plan", "rate_plans", "rateplan", "rate-plan":
		return EntityRatePlan, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEntity, s)
}

// Scoped reports whether external lookups for this type are scoped by a parent property.
func (t EntityType) Scoped() bool {
	return t != EntityGroup
}

type IDMapping struct {
	EntityType EntityType `json:"entity_type"`
	LocalID    string     `json:"local_id"`
	ExternalID string     `json:"external_id"`
}

// ExternalEntity is the subset of a Channex record the resolver needs.
type ExternalEntity struct {
	Type       EntityType     `json:"type"`
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	PropertyID string         `json:"property_id,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"` // raw Channex attributes
}

type Property struct {
	ID                string
	Title             string
	Currency          string
	GroupID           *string
	ChannexPropertyID *string // nil until the property is connected to Channex
}

type Group struct {
	ID    string
	Title string
}

type Tax struct {
	ID          string
	PropertyID  string
	Title       string
	Logic       string // percent|per_room|per_person|per_night|per_booking|...
	Type        string // tax|fee|city_tax
	Rate        float64
	IsInclusive bool
	Currency    *string
}

type RatePlan struct {
	ID         string
	PropertyID string
	RoomTypeID string
	Title      string
	Currency   string
	SellMode   string // per_room|per_person
	RateMode   string // manual|derived|auto|cascade
	Options    []RatePlanOption
}

type RatePlanOption struct {
	Occupancy int
	IsPrimary bool
	Rate      float64
}
