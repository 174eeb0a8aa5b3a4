package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"channex_sync/internal/app"
	"channex_sync/internal/domain"
)

type syncFixture struct {
	repo  *fakeRepo
	store *fakeStore
	chx   *fakeChannex
	cache *fakeCache
	svc   *app.SyncService
}

func newSyncFixture() *syncFixture {
	repo := newFakeRepo()
	repo.properties["p-1"] = domain.Property{ID: "p-1", Title: "Seaside", Currency: "EUR", GroupID: ptr("g-1"), ChannexPropertyID: ptr("chx-p")}
	repo.properties["p-2"] = domain.Property{ID: "p-2", Title: "Offline"}
	repo.groups["g-1"] = domain.Group{ID: "g-1", Title: "Seaside Group"}
	repo.roomTypes["rt-1"] = domain.RoomType{ID: "rt-1", PropertyID: "p-1", Title: "Double", OccAdults: 2, CountOfRooms: 4}
	repo.roomTypes["rt-2"] = domain.RoomType{ID: "rt-2", PropertyID: "p-1", Title: "Suite", OccAdults: 4, OccChildren: 2, CountOfRooms: 1}
	repo.roomTypes["rt-9"] = domain.RoomType{ID: "rt-9", PropertyID: "p-2", Title: "Lonely", OccAdults: 1, CountOfRooms: 1}
	repo.taxes["tx-1"] = domain.Tax{ID: "tx-1", PropertyID: "p-1", Title: "VAT", Logic: "percent", Rate: 10}
	repo.ratePlans["rp-1"] = domain.RatePlan{
		ID: "rp-1", PropertyID: "p-1", RoomTypeID: "rt-1", Title: "Best Available", Currency: "eur",
		Options: []domain.RatePlanOption{{Occupancy: 1, Rate: 90}, {Occupancy: 2, Rate: 120}},
	}

	store, chx, cache := newFakeStore(), newFakeChannex(), newFakeCache()
	res := app.NewResolver(store, chx, time.Minute)
	return &syncFixture{
		repo: repo, store: store, chx: chx, cache: cache,
		svc: app.NewSyncService(repo, chx, store, res, cache, 30),
	}
}

func TestSync_CreateThenUpdate(t *testing.T) {
	f := newSyncFixture()
	ctx := context.Background()

	first, err := f.svc.Sync(ctx, domain.EntityRoomType, "rt-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OpCreate, first.Op)
	assert.NotEmpty(t, first.ExternalID)
	assert.Empty(t, first.Warnings)

	ext, ok := f.store.peek(domain.EntityRoomType, "rt-1")
	require.True(t, ok)
	assert.Equal(t, first.ExternalID, ext)

	// default inventory is opened for the horizon
	require.Len(t, f.chx.pushed, 1)
	push := f.chx.pushed[0]
	assert.Equal(t, "chx-p", push.PropertyID)
	assert.Equal(t, first.ExternalID, push.RoomTypeID)
	assert.Equal(t, 4, push.Availability)

	second, err := f.svc.Sync(ctx, domain.EntityRoomType, "rt-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OpUpdate, second.Op)
	assert.Equal(t, first.ExternalID, second.ExternalID)
	// an update must not reset inventory that bookings already reduced
	require.Len(t, f.chx.pushed, 1)

	_, _, creates, updates := f.chx.counts()
	assert.Equal(t, 1, creates)
	assert.Equal(t, 1, updates)

	require.Len(t, f.repo.logs, 2)
	assert.Equal(t, "ok", f.repo.logs[1].Status)
	assert.Equal(t, domain.OpUpdate, f.repo.logs[1].Op)
}

func TestSync_ExistingTitleIsAdopted(t *testing.T) {
	f := newSyncFixture()
	f.chx.put(domain.ExternalEntity{Type: domain.EntityTax, ID: "ext-vat", Title: "VAT", PropertyID: "chx-p"})

	res, err := f.svc.Sync(context.Background(), domain.EntityTax, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OpUpdate, res.Op)
	assert.Equal(t, "ext-vat", res.ExternalID)
}

func TestSync_UpdateAfterRemoteDeleteRecreates(t *testing.T) {
	f := newSyncFixture()
	ctx := context.Background()

	first, err := f.svc.Sync(ctx, domain.EntityGroup, "g-1")
	require.NoError(t, err)
	f.chx.drop(domain.EntityGroup, first.ExternalID)

	again, err := f.svc.Sync(ctx, domain.EntityGroup, "g-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OpCreate, again.Op)
	assert.NotEqual(t, first.ExternalID, again.ExternalID)

	ext, _ := f.store.peek(domain.EntityGroup, "g-1")
	assert.Equal(t, again.ExternalID, ext)
}

func TestSync_MissingParentProperty(t *testing.T) {
	f := newSyncFixture()
	_, err := f.svc.Sync(context.Background(), domain.EntityRoomType, "rt-9")
	assert.ErrorIs(t, err, domain.ErrMissingParent)

	_, _, creates, _ := f.chx.counts()
	assert.Zero(t, creates)
}

func TestSync_RatePlanNeedsSyncedRoomType(t *testing.T) {
	f := newSyncFixture()
	ctx := context.Background()

	_, err := f.svc.Sync(ctx, domain.EntityRatePlan, "rp-1")
	require.ErrorIs(t, err, domain.ErrParentNotSynced)

	rt, err := f.svc.Sync(ctx, domain.EntityRoomType, "rt-1")
	require.NoError(t, err)
	rp, err := f.svc.Sync(ctx, domain.EntityRatePlan, "rp-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OpCreate, rp.Op)
	assert.NotEqual(t, rt.ExternalID, rp.ExternalID)
}

func TestSync_UnknownLocalEntity(t *testing.T) {
	f := newSyncFixture()
	_, err := f.svc.Sync(context.Background(), domain.EntityTax, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSync_InvalidPayloadIsNotSent(t *testing.T) {
	f := newSyncFixture()
	f.repo.taxes["tx-2"] = domain.Tax{ID: "tx-2", PropertyID: "p-1", Title: "City fee", Logic: "per_night", Rate: 2}

	_, err := f.svc.Sync(context.Background(), domain.EntityTax, "tx-2")
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
	_, _, creates, _ := f.chx.counts()
	assert.Zero(t, creates)
}

func TestSync_SideEffectFailuresBecomeWarnings(t *testing.T) {
	f := newSyncFixture()
	f.chx.pushErr = errors.New("restrictions endpoint down")
	f.store.failSet = domain.ErrStorageUnavailable

	res, err := f.svc.Sync(context.Background(), domain.EntityRoomType, "rt-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OpCreate, res.Op)
	assert.Len(t, res.Warnings, 2)
}

func TestSync_InvalidatesSearchCache(t *testing.T) {
	f := newSyncFixture()
	ctx := context.Background()
	require.NoError(t, f.cache.Set(ctx, "rooms:p-1", []domain.RoomType{}, 60))

	_, err := f.svc.Sync(ctx, domain.EntityRoomType, "rt-1")
	require.NoError(t, err)
	assert.False(t, f.cache.has("rooms:p-1"))
	assert.True(t, f.cache.has("search-gen:p-1"))
}

func TestSync_ConcurrentCallsCreateOnce(t *testing.T) {
	f := newSyncFixture()
	f.chx.createGate = make(chan struct{})
	f.chx.entered = make(chan struct{}, 2)

	var wg sync.WaitGroup
	results := make([]domain.SyncResult, 2)
	errs := make([]error, 2)
	run := func(i int) {
		defer wg.Done()
		results[i], errs[i] = f.svc.Sync(context.Background(), domain.EntityGroup, "g-1")
	}

	wg.Add(1)
	go run(0)
	<-f.chx.entered
	wg.Add(1)
	go run(1)
	time.Sleep(20 * time.Millisecond)
	close(f.chx.createGate)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, results[0].ExternalID, results[1].ExternalID)
	_, _, creates, _ := f.chx.counts()
	assert.Equal(t, 1, creates)
}

func TestSync_SharedRunSurvivesFirstCallerCancel(t *testing.T) {
	f := newSyncFixture()
	f.chx.createGate = make(chan struct{})
	f.chx.entered = make(chan struct{}, 2)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	var first, second domain.SyncResult
	var err1, err2 error

	wg.Add(1)
	go func() {
		defer wg.Done()
		first, err1 = f.svc.Sync(ctx, domain.EntityGroup, "g-1")
	}()
	<-f.chx.entered
	wg.Add(1)
	go func() {
		defer wg.Done()
		second, err2 = f.svc.Sync(context.Background(), domain.EntityGroup, "g-1")
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	close(f.chx.createGate)
	wg.Wait()

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, first.ExternalID, second.ExternalID)
	ext, ok := f.store.peek(domain.EntityGroup, "g-1")
	require.True(t, ok)
	assert.Equal(t, second.ExternalID, ext)
}

func TestSyncProperty_DependencyOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreAnyFunction("github.com/patrickmn/go-cache.(*janitor).Run"))

	f := newSyncFixture()
	rep, err := f.svc.SyncProperty(context.Background(), "p-1", 3)
	require.NoError(t, err)
	assert.Empty(t, rep.Failures)
	assert.Len(t, rep.Results, 5) // group, two room types, tax, rate plan

	for _, key := range []struct {
		t  domain.EntityType
		id string
	}{
		{domain.EntityGroup, "g-1"},
		{domain.EntityRoomType, "rt-1"},
		{domain.EntityRoomType, "rt-2"},
		{domain.EntityTax, "tx-1"},
		{domain.EntityRatePlan, "rp-1"},
	} {
		_, ok := f.store.peek(key.t, key.id)
		assert.True(t, ok, "%s/%s mapped", key.t, key.id)
	}
}

func TestSyncProperty_CollectsFailures(t *testing.T) {
	f := newSyncFixture()
	f.repo.ratePlans["rp-2"] = domain.RatePlan{
		ID: "rp-2", PropertyID: "p-1", RoomTypeID: "rt-2", Title: "Broken", Currency: "euro",
		Options: []domain.RatePlanOption{{Occupancy: 2, Rate: 100}},
	}

	rep, err := f.svc.SyncProperty(context.Background(), "p-1", 1)
	require.NoError(t, err)
	require.Contains(t, rep.Failures, "rate_plan/rp-2")
	assert.Len(t, rep.Results, 5)
}

func TestSyncProperty_StopsWhenCancelled(t *testing.T) {
	f := newSyncFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.SyncProperty(ctx, "p-1", 2)
	require.ErrorIs(t, err, context.Canceled)
	_, _, creates, _ := f.chx.counts()
	assert.Zero(t, creates)
}

func TestSyncProperty_UnknownProperty(t *testing.T) {
	f := newSyncFixture()
	_, err := f.svc.SyncProperty(context.Background(), "missing", 2)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSyncService_ResolveDoesNotMutate(t *testing.T) {
	f := newSyncFixture()
	ctx := context.Background()

	got, err := f.svc.Resolve(ctx, domain.EntityGroup, "g-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	res, err := f.svc.Sync(ctx, domain.EntityGroup, "g-1")
	require.NoError(t, err)
	got, err = f.svc.Resolve(ctx, domain.EntityGroup, "g-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, res.ExternalID, got.ID)

	_, _, creates, updates := f.chx.counts()
	assert.Equal(t, 1, creates)
	assert.Zero(t, updates)
}
