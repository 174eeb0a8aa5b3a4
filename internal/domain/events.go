package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type EventKind string

const (
	EventBooking   EventKind = "booking"
	EventARI       EventKind = "ari"
	EventSyncError EventKind = "sync_error"
)

// Event is one decoded Channex webhook message. Concrete types are
// BookingEvent, ARIEvent and SyncErrorEvent.
type Event interface {
	Kind() EventKind
	Property() string
}

type BookingEvent struct {
	PropertyID string `json:"property_id"`
	BookingID  string `json:"booking_id"`
	RevisionID string `json:"revision_id"`
	Status     string `json:"status"` // new|modified|cancelled
}

func (e BookingEvent) Kind() EventKind  { return EventBooking }
func (e BookingEvent) Property() string { return e.PropertyID }

type ARIChange struct {
	RoomTypeID   string    `json:"room_type_id"`
	RatePlanID   string    `json:"rate_plan_id,omitempty"`
	Date         time.Time `json:"date"`
	Availability *int      `json:"availability,omitempty"`
}

type ARIEvent struct {
	PropertyID string      `json:"property_id"`
	Changes    []ARIChange `json:"changes"`
}

func (e ARIEvent) Kind() EventKind  { return EventARI }
func (e ARIEvent) Property() string { return e.PropertyID }

type SyncErrorEvent struct {
	PropertyID string `json:"property_id"`
	ErrorType  string `json:"error_type"`
	Message    string `json:"message"`
}

func (e SyncErrorEvent) Kind() EventKind  { return EventSyncError }
func (e SyncErrorEvent) Property() string { return e.PropertyID }

// envelope is the outer webhook shape; payload is decoded per event name.
type envelope struct {
	Event      string          `json:"event"`
	PropertyID string          `json:"property_id"`
	Payload    json.RawMessage `json:"payload"`
}

// DecodeEvent turns a raw webhook body into a typed Event.
func DecodeEvent(b []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	name := strings.ToLower(strings.TrimSpace(env.Event))
	switch {
	case strings.HasPrefix(name, "booking"):
		var p struct {
			BookingID  string `json:"booking_id"`
			RevisionID string `json:"revision_id"`
			Status     string `json:"status"`
		}
		if err := decodePayload(env.Payload, &p); err != nil {
			return nil, err
		}
		if p.Status == "" {
			p.Status = bookingStatusFromEvent(name)
		}
		return BookingEvent{PropertyID: env.PropertyID, BookingID: p.BookingID, RevisionID: p.RevisionID, Status: p.Status}, nil

	case name == "ari":
		var raw []struct {
			RoomTypeID   string `json:"room_type_id"`
			RatePlanID   string `json:"rate_plan_id"`
			Date         string `json:"date"`
			Availability *int   `json:"availability"`
		}
		if err := decodePayload(env.Payload, &raw); err != nil {
			return nil, err
		}
		ev := ARIEvent{PropertyID: env.PropertyID}
		for _, c := range raw {
			d, err := time.Parse(DateLayout, c.Date)
			if err != nil {
				return nil, fmt.Errorf("%w: ari date %q", ErrInvalidPayload, c.Date)
			}
			ev.Changes = append(ev.Changes, ARIChange{
				RoomTypeID:   c.RoomTypeID,
				RatePlanID:   c.RatePlanID,
				Date:         d,
				Availability: c.Availability,
			})
		}
		return ev, nil

	case name == "sync_error" || name == "sync_warning":
		var p struct {
			ErrorType string `json:"error_type"`
			Message   string `json:"message"`
		}
		if err := decodePayload(env.Payload, &p); err != nil {
			return nil, err
		}
		return SyncErrorEvent{PropertyID: env.PropertyID, ErrorType: p.ErrorType, Message: p.Message}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func bookingStatusFromEvent(name string) string {
	switch {
	case strings.Contains(name, "cancel"):
		return "cancelled"
	case strings.Contains(name, "modif"):
		return "modified"
	}
	return "new"
}
