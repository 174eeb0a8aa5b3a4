package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"channex_sync/internal/adapters/observability"
	"channex_sync/internal/domain"
)

type SyncService struct {
	repo     domain.LocalRepository
	channex  domain.ChannexClient
	store    domain.MappingStore
	resolver *Resolver
	cache    domain.Cache
	horizon  int

	inflight singleflight.Group
	now      func() time.Time
}

func NewSyncService(r domain.LocalRepository, c domain.ChannexClient, s domain.MappingStore, res *Resolver, cache domain.Cache, horizonDays int) *SyncService {
	return &SyncService{repo: r, channex: c, store: s, resolver: res, cache: cache, horizon: horizonDays, now: time.Now}
}

// plan is everything needed to push one local entity.
type plan struct {
	lookup     Lookup
	payload    any
	propertyID string // local property whose search cache the sync affects

	// after runs once the entity has been created in Channex; it returns
	// warnings, never fails the sync
	after func(ctx context.Context, externalID string) []string
}

// Sync creates or updates the Channex counterpart of a local entity.
// Concurrent calls for the same entity share one execution, which is not
// cancelled when the caller that started it goes away.
func (s *SyncService) Sync(ctx context.Context, t domain.EntityType, localID string) (domain.SyncResult, error) {
	v, err, _ := s.inflight.Do(string(t)+"/"+localID, func() (any, error) {
		return s.sync(context.WithoutCancel(ctx), t, localID)
	})
	if err != nil {
		return domain.SyncResult{}, err
	}
	return v.(domain.SyncResult), nil
}

// Resolve reports the Channex entity a local entity currently maps to, without
// mutating Channex. Nil means a sync would create it.
func (s *SyncService) Resolve(ctx context.Context, t domain.EntityType, localID string) (*domain.ExternalEntity, error) {
	p, err := s.plan(ctx, t, localID)
	if err != nil {
		return nil, err
	}
	return s.resolver.Resolve(ctx, p.lookup)
}

func (s *SyncService) sync(ctx context.Context, t domain.EntityType, localID string) (domain.SyncResult, error) {
	p, err := s.plan(ctx, t, localID)
	if err != nil {
		return domain.SyncResult{}, err
	}

	res, err := s.apply(ctx, t, localID, p, true)
	s.audit(ctx, res, err)
	if err != nil {
		return domain.SyncResult{}, err
	}

	if p.after != nil && res.Op == domain.OpCreate {
		res.Warnings = append(res.Warnings, p.after(ctx, res.ExternalID)...)
	}
	invalidateProperty(ctx, s.cache, p.propertyID)

	log.Info().
		Str("entity", string(t)).
		Str("local_id", localID).
		Str("external_id", res.ExternalID).
		Str("op", string(res.Op)).
		Int("warnings", len(res.Warnings)).
		Msg("sync ok")
	return res, nil
}

// apply resolves the external entity and creates or updates it. A 404 on
// update means the entity vanished in Channex: the mapping is cleared and the
// check runs once more.
func (s *SyncService) apply(ctx context.Context, t domain.EntityType, localID string, p plan, retry bool) (domain.SyncResult, error) {
	res := domain.SyncResult{EntityType: t, LocalID: localID}

	existing, err := s.resolver.Resolve(ctx, p.lookup)
	if err != nil {
		return res, fmt.Errorf("resolve %s %s: %w", t, localID, err)
	}

	if existing == nil {
		res.Op = domain.OpCreate
		e, err := s.channex.Create(ctx, t, p.payload)
		observability.ObserveSync(string(t), string(res.Op), err)
		if err != nil {
			return res, fmt.Errorf("create %s %s: %w", t, localID, err)
		}
		if e.ID == "" {
			return res, fmt.Errorf("create %s %s: channex returned no id", t, localID)
		}
		res.ExternalID = e.ID
		res.Warnings = s.remember(ctx, t, localID, e)
		return res, nil
	}

	res.Op = domain.OpUpdate
	e, err := s.channex.Update(ctx, t, existing.ID, p.payload)
	observability.ObserveSync(string(t), string(res.Op), err)
	if errors.Is(err, domain.ErrNotFound) && retry {
		log.Info().
			Str("entity", string(t)).
			Str("local_id", localID).
			Str("external_id", existing.ID).
			Msg("channex entity gone, re-checking")
		if cerr := s.store.Clear(ctx, t, localID); cerr != nil {
			log.Warn().Err(cerr).Str("entity", string(t)).Str("local_id", localID).Msg("clear mapping failed")
		}
		s.resolver.Forget(t, localID)
		return s.apply(ctx, t, localID, p, false)
	}
	if err != nil {
		return res, fmt.Errorf("update %s %s: %w", t, localID, err)
	}
	if e.ID == "" {
		e.ID = existing.ID
	}
	res.ExternalID = e.ID
	res.Warnings = s.remember(ctx, t, localID, e)
	return res, nil
}

func (s *SyncService) remember(ctx context.Context, t domain.EntityType, localID string, e domain.ExternalEntity) []string {
	s.resolver.Remember(t, localID, e)
	if err := s.store.Set(ctx, t, localID, e.ID); err != nil {
		log.Warn().Err(err).Str("entity", string(t)).Str("local_id", localID).Msg("persist mapping failed")
		return []string{"mapping not saved: " + err.Error()}
	}
	return nil
}

func (s *SyncService) audit(ctx context.Context, res domain.SyncResult, err error) {
	l := domain.SyncLog{EntityType: res.EntityType, LocalID: res.LocalID, Op: res.Op, Status: "ok", At: s.now()}
	if res.ExternalID != "" {
		ext := res.ExternalID
		l.ExternalID = &ext
	}
	if err != nil {
		msg := err.Error()
		l.Status = "error"
		l.Message = &msg
	}
	if lerr := s.repo.LogSync(ctx, l); lerr != nil {
		log.Warn().Err(lerr).Str("entity", string(res.EntityType)).Msg("sync log write failed")
	}
}

// ---- planning ----

func (s *SyncService) plan(ctx context.Context, t domain.EntityType, localID string) (plan, error) {
	switch t {
	case domain.EntityGroup:
		g, err := s.repo.GetGroup(ctx, localID)
		if err != nil {
			return plan{}, err
		}
		payload, err := MapGroupPayload(g)
		if err != nil {
			return plan{}, err
		}
		return plan{lookup: Lookup{Type: t, LocalID: g.ID, Title: payload.Title}, payload: payload}, nil

	case domain.EntityRoomType:
		rt, err := s.repo.GetRoomType(ctx, localID)
		if err != nil {
			return plan{}, err
		}
		chxProp, err := s.channexProperty(ctx, rt.PropertyID)
		if err != nil {
			return plan{}, err
		}
		payload, err := MapRoomTypePayload(rt, chxProp)
		if err != nil {
			return plan{}, err
		}
		return plan{
			lookup:     Lookup{Type: t, LocalID: rt.ID, Title: payload.Title, ParentID: chxProp},
			payload:    payload,
			propertyID: rt.PropertyID,
			after: func(ctx context.Context, externalID string) []string {
				return s.pushDefaultAvailability(ctx, rt, chxProp, externalID)
			},
		}, nil

	case domain.EntityTax:
		tax, err := s.repo.GetTax(ctx, localID)
		if err != nil {
			return plan{}, err
		}
		chxProp, err := s.channexProperty(ctx, tax.PropertyID)
		if err != nil {
			return plan{}, err
		}
		payload, err := MapTaxPayload(tax, chxProp)
		if err != nil {
			return plan{}, err
		}
		return plan{lookup: Lookup{Type: t, LocalID: tax.ID, Title: payload.Title, ParentID: chxProp}, payload: payload}, nil

	case domain.EntityRatePlan:
		rp, err := s.repo.GetRatePlan(ctx, localID)
		if err != nil {
			return plan{}, err
		}
		chxProp, err := s.channexProperty(ctx, rp.PropertyID)
		if err != nil {
			return plan{}, err
		}
		chxRoom, err := s.store.Get(ctx, domain.EntityRoomType, rp.RoomTypeID)
		if errors.Is(err, domain.ErrMappingNotFound) {
			return plan{}, fmt.Errorf("%w: room type %s", domain.ErrParentNotSynced, rp.RoomTypeID)
		}
		if err != nil {
			return plan{}, err
		}
		payload, err := MapRatePlanPayload(rp, chxProp, chxRoom)
		if err != nil {
			return plan{}, err
		}
		return plan{lookup: Lookup{Type: t, LocalID: rp.ID, Title: payload.Title, ParentID: chxProp}, payload: payload}, nil
	}
	return plan{}, fmt.Errorf("%w: %q", domain.ErrUnknownEntity, t)
}

func (s *SyncService) channexProperty(ctx context.Context, propertyID string) (string, error) {
	p, err := s.repo.GetProperty(ctx, propertyID)
	if err != nil {
		return "", err
	}
	if p.ChannexPropertyID == nil || *p.ChannexPropertyID == "" {
		return "", fmt.Errorf("%w: property %s is not connected to channex", domain.ErrMissingParent, propertyID)
	}
	return *p.ChannexPropertyID, nil
}

// pushDefaultAvailability opens count_of_rooms for the horizon. Failure leaves
// the room type in place and is reported as a warning.
func (s *SyncService) pushDefaultAvailability(ctx context.Context, rt domain.RoomType, chxProp, chxRoom string) []string {
	values := MapAvailabilityValues(rt, chxProp, chxRoom, s.now(), s.horizon)
	if len(values) == 0 {
		return nil
	}
	if err := s.channex.PushAvailability(ctx, values); err != nil {
		log.Warn().Err(err).Str("room_type", rt.ID).Msg("availability push failed")
		return []string{"availability not pushed: " + err.Error()}
	}
	return nil
}

// ---- bulk ----

// SyncProperty syncs every entity of a property, parents first. Within one
// entity type up to workers syncs run at once; failures are collected.
func (s *SyncService) SyncProperty(ctx context.Context, propertyID string, workers int) (domain.PropertySyncReport, error) {
	if _, err := s.repo.GetProperty(ctx, propertyID); err != nil {
		return domain.PropertySyncReport{}, err
	}
	if workers <= 0 {
		workers = 1
	}

	rep := domain.PropertySyncReport{PropertyID: propertyID, Failures: map[string]string{}}
	var mu sync.Mutex
	sem := semaphore.NewWeighted(int64(workers))

	for _, t := range domain.EntityTypes {
		ids, err := s.repo.ListEntityIDs(ctx, propertyID, t)
		if err != nil {
			return rep, fmt.Errorf("list %s: %w", t, err)
		}

		var wg sync.WaitGroup
		for _, id := range ids {
			// acquire before launching the goroutine; release inside it
			if err := sem.Acquire(ctx, 1); err != nil {
				wg.Wait()
				return rep, err
			}
			wg.Add(1)
			go func(t domain.EntityType, id string) {
				defer wg.Done()
				defer sem.Release(1)

				res, err := s.Sync(ctx, t, id)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					log.Warn().Str("entity", string(t)).Str("local_id", id).Err(err).Msg("sync failed")
					rep.Failures[string(t)+"/"+id] = err.Error()
					return
				}
				rep.Results = append(rep.Results, res)
			}(t, id)
		}
		wg.Wait()
	}
	if len(rep.Failures) == 0 {
		rep.Failures = nil
	}
	return rep, nil
}
