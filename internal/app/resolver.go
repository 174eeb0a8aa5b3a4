package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"channex_sync/internal/adapters/observability"
	"channex_sync/internal/domain"
)

// Lookup identifies a local entity for an existence check.
type Lookup struct {
	Type     domain.EntityType
	LocalID  string
	Title    string
	ParentID string // Channex property ID; empty means unscoped
}

// Resolver finds the Channex counterpart of a local entity: stored mapping
// first, title search second. Fetched entities are kept for a short stale time.
type Resolver struct {
	store   domain.MappingStore
	channex domain.ChannexClient
	stale   *cache.Cache
}

func NewResolver(s domain.MappingStore, c domain.ChannexClient, staleTTL time.Duration) *Resolver {
	if staleTTL <= 0 {
		staleTTL = 2 * time.Minute
	}
	return &Resolver{store: s, channex: c, stale: cache.New(staleTTL, 2*staleTTL)}
}

func staleKey(t domain.EntityType, localID string) string { return string(t) + ":" + localID }

// Resolve returns nil, nil when no external entity matches.
func (r *Resolver) Resolve(ctx context.Context, l Lookup) (*domain.ExternalEntity, error) {
	ext, err := r.store.Get(ctx, l.Type, l.LocalID)
	switch {
	case err == nil:
		if v, ok := r.stale.Get(staleKey(l.Type, l.LocalID)); ok {
			if e := v.(domain.ExternalEntity); e.ID == ext {
				observability.ObserveCache("resolver", "hit")
				observability.ObserveResolve(string(l.Type), "mapped")
				return &e, nil
			}
		}
		observability.ObserveCache("resolver", "miss")

		e, ferr := r.channex.Get(ctx, l.Type, ext)
		if ferr == nil {
			r.Remember(l.Type, l.LocalID, e)
			observability.ObserveResolve(string(l.Type), "mapped")
			return &e, nil
		}
		if !errors.Is(ferr, domain.ErrNotFound) {
			observability.ObserveResolve(string(l.Type), "error")
			return nil, ferr
		}
		// external entity vanished: drop the mapping and fall back to title search
		log.Info().
			Str("entity", string(l.Type)).
			Str("local_id", l.LocalID).
			Str("external_id", ext).
			Msg("stale mapping cleared")
		if cerr := r.store.Clear(ctx, l.Type, l.LocalID); cerr != nil {
			log.Warn().Err(cerr).Str("entity", string(l.Type)).Str("local_id", l.LocalID).Msg("clear mapping failed")
		}
		r.Forget(l.Type, l.LocalID)

	case errors.Is(err, domain.ErrMappingNotFound):
		// never synced, or cleared

	default:
		log.Warn().Err(err).
			Str("entity", string(l.Type)).
			Str("local_id", l.LocalID).
			Msg("mapping store unavailable, falling back to title search")
	}

	if strings.TrimSpace(l.Title) == "" {
		observability.ObserveResolve(string(l.Type), "missing")
		return nil, nil
	}
	found, err := r.channex.Search(ctx, l.Type, l.Title, l.ParentID)
	if err != nil {
		observability.ObserveResolve(string(l.Type), "error")
		return nil, err
	}
	if len(found) == 0 {
		observability.ObserveResolve(string(l.Type), "missing")
		return nil, nil
	}
	if len(found) > 1 {
		log.Warn().
			Str("entity", string(l.Type)).
			Str("title", l.Title).
			Int("matches", len(found)).
			Msg("several channex entities share this title, using the first")
	}

	e := found[0]
	if err := r.store.Set(ctx, l.Type, l.LocalID, e.ID); err != nil {
		log.Warn().Err(err).Str("entity", string(l.Type)).Str("local_id", l.LocalID).Msg("persist mapping failed")
	}
	r.Remember(l.Type, l.LocalID, e)
	observability.ObserveResolve(string(l.Type), "searched")
	return &e, nil
}

func (r *Resolver) Remember(t domain.EntityType, localID string, e domain.ExternalEntity) {
	r.stale.SetDefault(staleKey(t, localID), e)
}

func (r *Resolver) Forget(t domain.EntityType, localID string) {
	r.stale.Delete(staleKey(t, localID))
}
