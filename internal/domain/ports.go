package domain

import (
	"context"
	"time"
)

// MappingStore persists local ID -> Channex ID per entity type.
// Get returns ErrMappingNotFound when nothing is stored and wraps
// ErrStorageUnavailable when the backend cannot be read.
type MappingStore interface {
	Get(ctx context.Context, t EntityType, localID string) (string, error)
	Set(ctx context.Context, t EntityType, localID, externalID string) error
	Clear(ctx context.Context, t EntityType, localID string) error
	All(ctx context.Context, t EntityType) (map[string]string, error)
}

type LocalRepository interface {
	// Read paths
	GetProperty(ctx context.Context, id string) (Property, error)
	FindPropertyByChannexID(ctx context.Context, channexID string) (Property, error)
	GetGroup(ctx context.Context, id string) (Group, error)
	GetRoomType(ctx context.Context, id string) (RoomType, error)
	GetTax(ctx context.Context, id string) (Tax, error)
	GetRatePlan(ctx context.Context, id string) (RatePlan, error)
	ListRoomTypes(ctx context.Context, propertyID string) ([]RoomType, error)
	ListAvailability(ctx context.Context, propertyID string, r DateRange) ([]AvailabilityRecord, error)
	ListEntityIDs(ctx context.Context, propertyID string, t EntityType) ([]string, error)

	// Write paths
	LogSync(ctx context.Context, l SyncLog) error
}

type ChannexClient interface {
	Get(ctx context.Context, t EntityType, id string) (ExternalEntity, error)
	// Search lists entities of type t whose title matches; parentID scopes by property when non-empty.
	Search(ctx context.Context, t EntityType, title, parentID string) ([]ExternalEntity, error)
	Create(ctx context.Context, t EntityType, payload any) (ExternalEntity, error)
	Update(ctx context.Context, t EntityType, id string, payload any) (ExternalEntity, error)
	PushAvailability(ctx context.Context, values []AvailabilityValue) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

type SyncOp string

const (
	OpCreate SyncOp = "create"
	OpUpdate SyncOp = "update"
)

type SyncResult struct {
	EntityType EntityType `json:"entity_type"`
	LocalID    string     `json:"local_id"`
	ExternalID string     `json:"external_id"`
	Op         SyncOp     `json:"op"`
	Warnings   []string   `json:"warnings,omitempty"`
}

// SyncLog is one row of the sync audit table.
type SyncLog struct {
	EntityType EntityType
	LocalID    string
	ExternalID *string
	Op         SyncOp
	Status     string // ok|error
	Message    *string
	At         time.Time
}

type PropertySyncReport struct {
	PropertyID string            `json:"property_id"`
	Results    []SyncResult      `json:"results"`
	Failures   map[string]string `json:"failures,omitempty"` // "type/localID" -> error
}
