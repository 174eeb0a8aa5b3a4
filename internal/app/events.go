package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"channex_sync/internal/domain"
)

// EventService reacts to Channex webhooks. Bookings and ARI changes make
// cached search results for the property stale.
type EventService struct {
	repo  domain.LocalRepository
	cache domain.Cache
}

func NewEventService(r domain.LocalRepository, c domain.Cache) *EventService {
	return &EventService{repo: r, cache: c}
}

func (s *EventService) Handle(ctx context.Context, ev domain.Event) error {
	switch e := ev.(type) {
	case domain.BookingEvent:
		log.Info().
			Str("channex_property", e.PropertyID).
			Str("booking", e.BookingID).
			Str("revision", e.RevisionID).
			Str("status", e.Status).
			Msg("booking event")
		return s.invalidate(ctx, e.PropertyID)

	case domain.ARIEvent:
		log.Info().
			Str("channex_property", e.PropertyID).
			Int("changes", len(e.Changes)).
			Msg("ari event")
		return s.invalidate(ctx, e.PropertyID)

	case domain.SyncErrorEvent:
		log.Warn().
			Str("channex_property", e.PropertyID).
			Str("error_type", e.ErrorType).
			Str("message", e.Message).
			Msg("channex reported a sync error")
		return nil
	}
	return domain.ErrUnknownEvent
}

func (s *EventService) invalidate(ctx context.Context, channexPropertyID string) error {
	if channexPropertyID == "" {
		return nil
	}
	p, err := s.repo.FindPropertyByChannexID(ctx, channexPropertyID)
	if errors.Is(err, domain.ErrNotFound) {
		log.Debug().Str("channex_property", channexPropertyID).Msg("event for unknown property ignored")
		return nil
	}
	if err != nil {
		return err
	}
	invalidateProperty(ctx, s.cache, p.ID)
	return nil
}
