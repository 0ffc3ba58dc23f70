package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soundprediction/lexigraph/pkg/driver"
	"github.com/soundprediction/lexigraph/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	mu      sync.Mutex
	domains []*types.Domain
	err     error
	calls   atomic.Int32
	block   chan struct{}
	ctxErr  error
}

func (f *fakeDirectory) ListDomains(ctx context.Context) ([]*types.Domain, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctxErr = ctx.Err()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*types.Domain, len(f.domains))
	for i, d := range f.domains {
		cp := *d
		out[i] = &cp
	}
	return out, nil
}

func (f *fakeDirectory) set(domains []*types.Domain, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.domains = domains
	f.err = err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sampleDomains() []*types.Domain {
	return []*types.Domain{
		{ID: "d-contracts", Name: "Employment Contracts", Slug: "contracts", MemberIDs: []string{"p1", "p2"}, Centroid: []float32{1, 0}},
		{ID: "d-wages", Name: "Wages", Slug: "wages", MemberIDs: []string{"p3"}, Centroid: []float32{0, 1}},
	}
}

func newTestRegistry(dir driver.DomainDirectory, clock *fakeClock) *Registry {
	return New(dir, WithTTL(300*time.Second), WithClock(clock.Now))
}

func TestRegistryCacheStaleness(t *testing.T) {
	dir := &fakeDirectory{domains: sampleDomains()}
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	reg := newTestRegistry(dir, clock)
	ctx := context.Background()

	first := reg.GetAll(ctx, false)
	require.Len(t, first, 2)
	assert.Equal(t, int32(1), dir.calls.Load())

	clock.Advance(time.Second)
	second := reg.GetAll(ctx, false)
	assert.Equal(t, int32(1), dir.calls.Load(), "no round trip within the TTL")
	for i := range first {
		assert.Same(t, first[i], second[i])
	}

	clock.Advance(300 * time.Second)
	third := reg.GetAll(ctx, false)
	assert.Equal(t, int32(2), dir.calls.Load(), "exactly one refresh after expiry")
	assert.NotSame(t, first[0], third[0])

	reg.GetAll(ctx, false)
	assert.Equal(t, int32(2), dir.calls.Load())

	reg.GetAll(ctx, true)
	assert.Equal(t, int32(3), dir.calls.Load())
}

func TestRegistryServesStaleOnFailure(t *testing.T) {
	dir := &fakeDirectory{domains: sampleDomains()}
	clock := &fakeClock{now: time.Now()}
	reg := newTestRegistry(dir, clock)
	ctx := context.Background()

	require.NoError(t, reg.Refresh(ctx))
	dir.set(nil, errors.New("neo4j: connection refused"))
	clock.Advance(time.Hour)

	got := reg.GetAll(ctx, false)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(1), reg.Snapshot().Version)

	err := reg.Refresh(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrStoreUnavailable))
}

func TestRegistryBacksOffAfterFailedRefresh(t *testing.T) {
	dir := &fakeDirectory{domains: sampleDomains()}
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	reg := New(dir, WithTTL(300*time.Second), WithClock(clock.Now), WithRetryBackoff(10*time.Second))
	ctx := context.Background()

	require.NoError(t, reg.Refresh(ctx))
	dir.set(nil, errors.New("neo4j: connection refused"))
	clock.Advance(time.Hour)

	for i := 0; i < 5; i++ {
		assert.Len(t, reg.GetAll(ctx, false), 2)
		_, ok := reg.GetByName(ctx, "wages")
		assert.True(t, ok)
		assert.Len(t, reg.Shortlist(ctx, []float32{1, 0}, 5), 2)
	}
	assert.Equal(t, int32(2), dir.calls.Load(), "one failed fetch per backoff window")

	require.Error(t, reg.Refresh(ctx))
	assert.Equal(t, int32(3), dir.calls.Load(), "explicit refreshes ignore the backoff")

	dir.set(sampleDomains(), nil)
	clock.Advance(11 * time.Second)
	assert.Len(t, reg.GetAll(ctx, false), 2)
	assert.Equal(t, int32(4), dir.calls.Load())
	assert.Equal(t, uint64(2), reg.Snapshot().Version)

	reg.GetAll(ctx, false)
	assert.Equal(t, int32(4), dir.calls.Load())
}

func TestRegistrySharedFetchOutlivesCancelledCaller(t *testing.T) {
	dir := &fakeDirectory{domains: sampleDomains(), block: make(chan struct{})}
	reg := newTestRegistry(dir, &fakeClock{now: time.Now()})

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan []*types.Domain, 1)
	go func() { first <- reg.GetAll(ctx, false) }()
	require.Eventually(t, func() bool { return dir.calls.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan []*types.Domain, 1)
	go func() { second <- reg.GetAll(context.Background(), false) }()

	cancel()
	select {
	case got := <-first:
		assert.Empty(t, got)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting on the shared fetch")
	}

	close(dir.block)
	assert.Len(t, <-second, 2)
	assert.Equal(t, int32(1), dir.calls.Load())
	dir.mu.Lock()
	defer dir.mu.Unlock()
	assert.NoError(t, dir.ctxErr)
}

func TestRegistryEmptyWithoutSnapshot(t *testing.T) {
	dir := &fakeDirectory{err: errors.New("down")}
	reg := newTestRegistry(dir, &fakeClock{now: time.Now()})

	assert.Empty(t, reg.GetAll(context.Background(), false))
	_, ok := reg.GetByID(context.Background(), "d-contracts")
	assert.False(t, ok)
	assert.Empty(t, reg.Shortlist(context.Background(), []float32{1, 0}, 5))
}

func TestRegistryLookups(t *testing.T) {
	reg := newTestRegistry(&fakeDirectory{domains: sampleDomains()}, &fakeClock{now: time.Now()})
	ctx := context.Background()

	d, ok := reg.GetByID(ctx, "d-wages")
	require.True(t, ok)
	assert.Equal(t, "Wages", d.Name)

	d, ok = reg.GetByName(ctx, "employment CONTRACTS")
	require.True(t, ok)
	assert.Equal(t, "d-contracts", d.ID)

	d, ok = reg.GetByName(ctx, " contracts ")
	require.True(t, ok)
	assert.Equal(t, "d-contracts", d.ID)

	_, ok = reg.GetByName(ctx, "Taxes")
	assert.False(t, ok)
}

func TestRegistryShortlist(t *testing.T) {
	domains := append(sampleDomains(),
		&types.Domain{ID: "d-leave", Name: "Leave", MemberIDs: []string{"p4"}, Centroid: []float32{0, 1}},
		&types.Domain{ID: "d-empty", Name: "Empty"},
	)
	reg := newTestRegistry(&fakeDirectory{domains: domains}, &fakeClock{now: time.Now()})

	got := reg.Shortlist(context.Background(), []float32{0, 1}, 3)
	require.Len(t, got, 3)
	assert.Equal(t, "d-wages", got[0].Domain.ID, "ties keep directory order")
	assert.Equal(t, "d-leave", got[1].Domain.ID)
	assert.Equal(t, 1, got[0].Order)
	assert.InDelta(t, 1.0, got[0].Similarity, 1e-9)
	assert.Equal(t, "d-contracts", got[2].Domain.ID)
	assert.Zero(t, got[2].Similarity)
}

func TestRegistryEvents(t *testing.T) {
	dir := &fakeDirectory{domains: sampleDomains()}
	reg := newTestRegistry(dir, &fakeClock{now: time.Now()})

	var mu sync.Mutex
	var events []Event
	reg.Subscribe(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	})
	reg.Subscribe(func(Event) { panic("listener bug") })

	ctx := context.Background()
	require.NoError(t, reg.Refresh(ctx))
	require.Len(t, events, 2)
	assert.Equal(t, EventAdded, events[0].Type)

	events = nil
	dir.set([]*types.Domain{
		sampleDomains()[1],
		{ID: "d-leave", Name: "Leave", MemberIDs: []string{"p1", "p2"}},
	}, nil)
	require.NoError(t, reg.Refresh(ctx))

	require.Len(t, events, 2)
	assert.Equal(t, EventAdded, events[0].Type)
	assert.Equal(t, "d-leave", events[0].Domain.ID)
	assert.Equal(t, EventRemoved, events[1].Type)
	assert.Equal(t, "d-contracts", events[1].Domain.ID)
	assert.Equal(t, uint64(2), events[1].Version)
}

func TestRegistrySingleRefreshInFlight(t *testing.T) {
	dir := &fakeDirectory{domains: sampleDomains(), block: make(chan struct{})}
	reg := newTestRegistry(dir, &fakeClock{now: time.Now()})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Len(t, reg.GetAll(context.Background(), false), 2)
		}()
	}
	require.Eventually(t, func() bool { return dir.calls.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(dir.block)
	wg.Wait()

	assert.Equal(t, int32(1), dir.calls.Load())
}

func TestRegistryQueryCounts(t *testing.T) {
	domains := sampleDomains()
	domains[0].QueryCount = 10
	reg := newTestRegistry(&fakeDirectory{domains: domains}, &fakeClock{now: time.Now()})
	require.NoError(t, reg.Refresh(context.Background()))

	assert.Equal(t, int64(1), reg.RecordQuery("d-contracts"))
	assert.Equal(t, int64(2), reg.RecordQuery("d-contracts"))
	assert.Equal(t, int64(12), reg.QueryCount("d-contracts"))
	assert.Equal(t, int64(0), reg.QueryCount("d-wages"))
}

func TestRegistryRunRefreshesOnTick(t *testing.T) {
	dir := &fakeDirectory{domains: sampleDomains()}
	reg := New(dir, WithTTL(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reg.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return dir.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestRegistryOverFixture(t *testing.T) {
	store, err := driver.LoadMemoryStore("../driver/testdata/labor.yaml")
	require.NoError(t, err)
	reg := New(store, WithSearchableIDs(store.SearchableNodeIDs))

	require.NoError(t, reg.Refresh(context.Background()))
	snap := reg.Snapshot()
	require.Equal(t, 2, snap.Len())
	assert.NoError(t, VerifyPartition(snap.Domains(), store.SearchableNodeIDs()))
}
