package app_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"channex_sync/internal/domain"
)

// ---- local repository ----

type fakeRepo struct {
	properties map[string]domain.Property
	groups     map[string]domain.Group
	roomTypes  map[string]domain.RoomType
	taxes      map[string]domain.Tax
	ratePlans  map[string]domain.RatePlan
	records    []domain.AvailabilityRecord

	mu       sync.Mutex
	logs     []domain.SyncLog
	roomList int // ListRoomTypes calls
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		properties: map[string]domain.Property{},
		groups:     map[string]domain.Group{},
		roomTypes:  map[string]domain.RoomType{},
		taxes:      map[string]domain.Tax{},
		ratePlans:  map[string]domain.RatePlan{},
	}
}

func notFound(kind, id string) error { return fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound) }

func (f *fakeRepo) GetProperty(ctx context.Context, id string) (domain.Property, error) {
	if p, ok := f.properties[id]; ok {
		return p, nil
	}
	return domain.Property{}, notFound("property", id)
}
func (f *fakeRepo) FindPropertyByChannexID(ctx context.Context, channexID string) (domain.Property, error) {
	for _, p := range f.properties {
		if p.ChannexPropertyID != nil && *p.ChannexPropertyID == channexID {
			return p, nil
		}
	}
	return domain.Property{}, notFound("property", channexID)
}
func (f *fakeRepo) GetGroup(ctx context.Context, id string) (domain.Group, error) {
	if g, ok := f.groups[id]; ok {
		return g, nil
	}
	return domain.Group{}, notFound("group", id)
}
func (f *fakeRepo) GetRoomType(ctx context.Context, id string) (domain.RoomType, error) {
	if rt, ok := f.roomTypes[id]; ok {
		return rt, nil
	}
	return domain.RoomType{}, notFound("room type", id)
}
func (f *fakeRepo) GetTax(ctx context.Context, id string) (domain.Tax, error) {
	if t, ok := f.taxes[id]; ok {
		return t, nil
	}
	return domain.Tax{}, notFound("tax", id)
}
func (f *fakeRepo) GetRatePlan(ctx context.Context, id string) (domain.RatePlan, error) {
	if rp, ok := f.ratePlans[id]; ok {
		return rp, nil
	}
	return domain.RatePlan{}, notFound("rate plan", id)
}
func (f *fakeRepo) ListRoomTypes(ctx context.Context, propertyID string) ([]domain.RoomType, error) {
	f.mu.Lock()
	f.roomList++
	f.mu.Unlock()
	var out []domain.RoomType
	for _, id := range sortedKeys(f.roomTypes) {
		if rt := f.roomTypes[id]; rt.PropertyID == propertyID {
			out = append(out, rt)
		}
	}
	return out, nil
}
func (f *fakeRepo) ListAvailability(ctx context.Context, propertyID string, r domain.DateRange) ([]domain.AvailabilityRecord, error) {
	var out []domain.AvailabilityRecord
	for _, rec := range f.records {
		if !rec.Date.Before(r.Start) && rec.Date.Before(r.End) {
			out = append(out, rec)
		}
	}
	return out, nil
}
func (f *fakeRepo) ListEntityIDs(ctx context.Context, propertyID string, t domain.EntityType) ([]string, error) {
	var ids []string
	switch t {
	case domain.EntityGroup:
		if p, ok := f.properties[propertyID]; ok && p.GroupID != nil {
			ids = append(ids, *p.GroupID)
		}
	case domain.EntityRoomType:
		for _, id := range sortedKeys(f.roomTypes) {
			if f.roomTypes[id].PropertyID == propertyID {
				ids = append(ids, id)
			}
		}
	case domain.EntityTax:
		for _, id := range sortedKeys(f.taxes) {
			if f.taxes[id].PropertyID == propertyID {
				ids = append(ids, id)
			}
		}
	case domain.EntityRatePlan:
		for _, id := range sortedKeys(f.ratePlans) {
			if f.ratePlans[id].PropertyID == propertyID {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}
func (f *fakeRepo) LogSync(ctx context.Context, l domain.SyncLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, l)
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ---- mapping store ----

type fakeStore struct {
	mu      sync.Mutex
	m       map[string]string
	failGet error
	failSet error
}

func newFakeStore() *fakeStore { return &fakeStore{m: map[string]string{}} }

func storeKey(t domain.EntityType, id string) string { return string(t) + "/" + id }

func (s *fakeStore) Get(ctx context.Context, t domain.EntityType, localID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet != nil {
		return "", s.failGet
	}
	v, ok := s.m[storeKey(t, localID)]
	if !ok {
		return "", domain.ErrMappingNotFound
	}
	return v, nil
}
func (s *fakeStore) Set(ctx context.Context, t domain.EntityType, localID, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSet != nil {
		return s.failSet
	}
	s.m[storeKey(t, localID)] = externalID
	return nil
}
func (s *fakeStore) Clear(ctx context.Context, t domain.EntityType, localID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, storeKey(t, localID))
	return nil
}
func (s *fakeStore) All(ctx context.Context, t domain.EntityType) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]string{}
	prefix := string(t) + "/"
	for k, v := range s.m {
		if strings.HasPrefix(k, prefix) {
			out[strings.TrimPrefix(k, prefix)] = v
		}
	}
	return out, nil
}

func (s *fakeStore) peek(t domain.EntityType, localID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[storeKey(t, localID)]
	return v, ok
}

// ---- channex ----

type fakeChannex struct {
	mu       sync.Mutex
	entities map[string]domain.ExternalEntity // "type/id"
	seq      int

	gets, searches, creates, updates int
	pushed                           []domain.AvailabilityValue

	getErr  error
	pushErr error
	// createGate, when set, blocks Create until it is closed; entered is
	// signalled first
	createGate chan struct{}
	entered    chan struct{}
}

func newFakeChannex() *fakeChannex {
	return &fakeChannex{entities: map[string]domain.ExternalEntity{}}
}

func (c *fakeChannex) put(e domain.ExternalEntity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entities[string(e.Type)+"/"+e.ID] = e
}

func (c *fakeChannex) drop(t domain.EntityType, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entities, string(t)+"/"+id)
}

func (c *fakeChannex) counts() (gets, searches, creates, updates int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gets, c.searches, c.creates, c.updates
}

func (c *fakeChannex) Get(ctx context.Context, t domain.EntityType, id string) (domain.ExternalEntity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return domain.ExternalEntity{}, c.getErr
	}
	e, ok := c.entities[string(t)+"/"+id]
	if !ok {
		return domain.ExternalEntity{}, domain.ErrNotFound
	}
	return e, nil
}

func (c *fakeChannex) Search(ctx context.Context, t domain.EntityType, title, parentID string) ([]domain.ExternalEntity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searches++
	var out []domain.ExternalEntity
	for _, k := range sortedKeys(c.entities) {
		e := c.entities[k]
		if e.Type != t || !strings.EqualFold(e.Title, title) {
			continue
		}
		if parentID != "" && e.PropertyID != parentID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func decodeHead(payload any) (title, property string) {
	b, _ := json.Marshal(payload)
	var h struct {
		Title      string `json:"title"`
		PropertyID string `json:"property_id"`
	}
	_ = json.Unmarshal(b, &h)
	return h.Title, h.PropertyID
}

func (c *fakeChannex) Create(ctx context.Context, t domain.EntityType, payload any) (domain.ExternalEntity, error) {
	if c.createGate != nil {
		if c.entered != nil {
			c.entered <- struct{}{}
		}
		<-c.createGate
		if err := ctx.Err(); err != nil {
			return domain.ExternalEntity{}, err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creates++
	c.seq++
	title, prop := decodeHead(payload)
	e := domain.ExternalEntity{Type: t, ID: fmt.Sprintf("ext-%d", c.seq), Title: title, PropertyID: prop}
	c.entities[string(t)+"/"+e.ID] = e
	return e, nil
}

func (c *fakeChannex) Update(ctx context.Context, t domain.EntityType, id string, payload any) (domain.ExternalEntity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates++
	e, ok := c.entities[string(t)+"/"+id]
	if !ok {
		return domain.ExternalEntity{}, domain.ErrNotFound
	}
	e.Title, e.PropertyID = decodeHead(payload)
	c.entities[string(t)+"/"+id] = e
	return e, nil
}

func (c *fakeChannex) PushAvailability(ctx context.Context, values []domain.AvailabilityValue) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pushErr != nil {
		return c.pushErr
	}
	c.pushed = append(c.pushed, values...)
	return nil
}

// ---- cache ----

// fakeCache round-trips through JSON like the Redis cache does.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
	gets  int
}

func newFakeCache() *fakeCache { return &fakeCache{store: map[string][]byte{}} }

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}
func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = b
	return nil
}
func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

func (c *fakeCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.store[key]
	return ok
}

func ptr[T any](v T) *T { return &v }
