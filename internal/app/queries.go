package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"channex_sync/internal/domain"
)

const searchTTL = time.Minute

type QueryService struct {
	repo     domain.LocalRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(r domain.LocalRepository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl}
}

func roomsKey(propertyID string) string      { return "rooms:" + propertyID }
func generationKey(propertyID string) string { return "search-gen:" + propertyID }

// SearchRooms answers a room-availability search for one property. The
// selection, when given, is pruned against the offers in the result.
func (s *QueryService) SearchRooms(ctx context.Context, propertyID string, q domain.SearchQuery, selected domain.SelectedRooms) (domain.RoomSearchResult, error) {
	if err := q.Validate(); err != nil {
		return domain.RoomSearchResult{}, err
	}

	res := domain.RoomSearchResult{
		PropertyID: propertyID,
		Start:      domain.Day(q.Range.Start).Format(domain.DateLayout),
		End:        domain.Day(q.Range.End).Format(domain.DateLayout),
		Nights:     len(q.Range.Nights()),
	}

	// search results are versioned per property so invalidation is one write
	var gen int64
	_, _ = s.cache.Get(ctx, generationKey(propertyID), &gen)
	key := fmt.Sprintf("search:%s:%d:%s:%s:%d:%d:%d:%d", propertyID, gen, res.Start, res.End,
		q.Occupancy.Adults, q.Occupancy.Children, q.Occupancy.Infants, q.Rooms)

	var offers []domain.RoomOffer
	if ok, _ := s.cache.Get(ctx, key, &offers); !ok {
		rooms, err := s.roomTypes(ctx, propertyID)
		if err != nil {
			return domain.RoomSearchResult{}, err
		}
		records, err := s.repo.ListAvailability(ctx, propertyID, q.Range)
		if err != nil {
			return domain.RoomSearchResult{}, err
		}
		offers = MatchOffers(rooms, q, records)
		if offers == nil {
			offers = []domain.RoomOffer{}
		}
		_ = s.cache.Set(ctx, key, offers, int(searchTTL.Seconds()))
	}

	res.Rooms = offers
	res.Selected = PruneSelection(selected, offers)
	return res, nil
}

func (s *QueryService) roomTypes(ctx context.Context, propertyID string) ([]domain.RoomType, error) {
	var rooms []domain.RoomType
	if ok, _ := s.cache.Get(ctx, roomsKey(propertyID), &rooms); ok {
		return rooms, nil
	}
	if _, err := s.repo.GetProperty(ctx, propertyID); err != nil {
		return nil, err
	}
	rooms, err := s.repo.ListRoomTypes(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	// copy to avoid aliasing the repo's backing array
	out := make([]domain.RoomType, len(rooms))
	copy(out, rooms)
	_ = s.cache.Set(ctx, roomsKey(propertyID), out, int(s.cacheTTL.Seconds()))
	return out, nil
}

// invalidateProperty drops cached room types and bumps the search generation.
func invalidateProperty(ctx context.Context, c domain.Cache, propertyID string) {
	if c == nil || propertyID == "" {
		return
	}
	if err := c.Del(ctx, roomsKey(propertyID)); err != nil {
		log.Warn().Err(err).Str("property", propertyID).Msg("room cache invalidation failed")
	}
	gen := time.Now().UnixNano()
	if err := c.Set(ctx, generationKey(propertyID), gen, int((24 * time.Hour).Seconds())); err != nil {
		log.Warn().Err(err).Str("property", propertyID).Msg("search generation bump failed")
	}
}

// ParseSelection reads "rt-1:2,rt-3:1" into a selection; malformed parts are skipped.
func ParseSelection(parts []string) domain.SelectedRooms {
	if len(parts) == 0 {
		return nil
	}
	out := domain.SelectedRooms{}
	for _, p := range parts {
		id, n := p, 1
		for i := len(p) - 1; i >= 0; i-- {
			if p[i] == ':' {
				v, err := strconv.Atoi(p[i+1:])
				if err != nil {
					id = ""
					break
				}
				id, n = p[:i], v
				break
			}
		}
		if id != "" && n > 0 {
			out[id] += n
		}
	}
	return out
}
