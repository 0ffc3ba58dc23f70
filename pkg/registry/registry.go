// Package registry caches the domain directory behind an immutable, versioned
// snapshot. Readers load the current snapshot without locking; a single refresh
// builds the next snapshot and swaps the pointer.
package registry

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/soundprediction/lexigraph/pkg/driver"
	"github.com/soundprediction/lexigraph/pkg/metrics"
	"github.com/soundprediction/lexigraph/pkg/types"
	"github.com/soundprediction/lexigraph/pkg/utils"
)

const (
	// DefaultTTL is how long a snapshot is served before the next read refreshes it.
	DefaultTTL = 300 * time.Second
	// DefaultRetryBackoff is how long reads serve the stale snapshot after a failed
	// refresh before trying the directory again.
	DefaultRetryBackoff = 30 * time.Second
	// DefaultFetchTimeout bounds one shared directory fetch.
	DefaultFetchTimeout = 10 * time.Second
)

// EventType distinguishes registry change events.
type EventType int

const (
	EventAdded EventType = iota
	EventRemoved
)

func (t EventType) String() string {
	if t == EventAdded {
		return "added"
	}
	return "removed"
}

// Event reports a domain that appeared in or disappeared from the directory.
type Event struct {
	Type    EventType
	Domain  *types.Domain
	Version uint64
}

// Listener receives change events. Listeners run synchronously on the refreshing
// goroutine and must not block.
type Listener func(Event)

// Candidate is a domain ranked by centroid similarity to a query.
type Candidate struct {
	Domain     *types.Domain
	Similarity float64
	// Order is the domain's position in the directory listing.
	Order int
}

// Snapshot is an immutable view of the directory.
type Snapshot struct {
	Version   uint64
	FetchedAt time.Time

	domains []*types.Domain
	byID    map[string]int
	byName  map[string]int
}

func newSnapshot(version uint64, fetchedAt time.Time, domains []*types.Domain) *Snapshot {
	s := &Snapshot{
		Version:   version,
		FetchedAt: fetchedAt,
		domains:   domains,
		byID:      make(map[string]int, len(domains)),
		byName:    make(map[string]int, len(domains)*2),
	}
	for i, d := range domains {
		s.byID[d.ID] = i
		if d.Name != "" {
			s.byName[strings.ToLower(d.Name)] = i
		}
		if d.Slug != "" {
			if _, taken := s.byName[strings.ToLower(d.Slug)]; !taken {
				s.byName[strings.ToLower(d.Slug)] = i
			}
		}
	}
	return s
}

// Domains returns the snapshot's domains in directory order.
func (s *Snapshot) Domains() []*types.Domain {
	out := make([]*types.Domain, len(s.domains))
	copy(out, s.domains)
	return out
}

// Len returns the number of domains.
func (s *Snapshot) Len() int { return len(s.domains) }

// Order returns the directory position of a domain, or -1.
func (s *Snapshot) Order(id string) int {
	if i, ok := s.byID[id]; ok {
		return i
	}
	return -1
}

// Registry is a read-through cache over a driver.DomainDirectory.
type Registry struct {
	dir          driver.DomainDirectory
	ttl          time.Duration
	retryBackoff time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	logger     *slog.Logger
	searchable func() []string

	snap    atomic.Pointer[Snapshot]
	group   singleflight.Group
	retryAt atomic.Int64 // unix nanos; reads do not refresh before it

	mu        sync.Mutex
	listeners []Listener

	counts sync.Map // domain id -> *atomic.Int64
}

// Option configures a Registry.
type Option func(*Registry)

// WithTTL sets the snapshot lifetime. Non-positive values keep the default.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithRetryBackoff sets how long reads wait after a failed refresh before trying
// again. Non-positive values keep the default.
func WithRetryBackoff(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.retryBackoff = d
		}
	}
}

// WithFetchTimeout bounds a directory fetch. Non-positive values keep the default.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.fetchTimeout = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithSearchableIDs supplies the global searchable node set, enabling the union
// half of the partition check.
func WithSearchableIDs(fn func() []string) Option {
	return func(r *Registry) { r.searchable = fn }
}

// New creates a registry. No directory call is made until the first read or Refresh.
func New(dir driver.DomainDirectory, opts ...Option) *Registry {
	r := &Registry{
		dir:          dir,
		ttl:          DefaultTTL,
		retryBackoff: DefaultRetryBackoff,
		fetchTimeout: DefaultFetchTimeout,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TTL returns the configured snapshot lifetime.
func (r *Registry) TTL() time.Duration { return r.ttl }

// Snapshot returns the current snapshot, or nil before the first successful refresh.
func (r *Registry) Snapshot() *Snapshot { return r.snap.Load() }

// Subscribe registers a change listener.
func (r *Registry) Subscribe(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Refresh fetches the directory and swaps in a new snapshot. Concurrent callers
// share one in-flight fetch. The fetch is not tied to any one caller: a caller
// whose ctx ends stops waiting while the fetch completes for the others.
func (r *Registry) Refresh(ctx context.Context) error {
	return r.refresh(ctx, true)
}

func (r *Registry) refresh(ctx context.Context, force bool) error {
	ch := r.group.DoChan("refresh", func() (any, error) {
		// A caller that saw a stale snapshot may arrive after another refresh landed.
		if snap := r.snap.Load(); !force && r.fresh(snap) {
			return snap, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.fetchTimeout)
		defer cancel()
		return r.load(fetchCtx)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return types.Wrap(types.KindTimeout, "registry.refresh", ctx.Err())
	}
}

func (r *Registry) fresh(snap *Snapshot) bool {
	return snap != nil && r.now().Sub(snap.FetchedAt) < r.ttl
}

// backingOff reports whether a failed refresh is too recent to retry on a read.
func (r *Registry) backingOff() bool {
	at := r.retryAt.Load()
	return at != 0 && r.now().UnixNano() < at
}

// GetAll returns every domain. A fresh snapshot is served without a directory round
// trip. When the refresh fails the last good snapshot is served instead.
func (r *Registry) GetAll(ctx context.Context, force bool) []*types.Domain {
	snap := r.current(ctx, force)
	if snap == nil {
		return []*types.Domain{}
	}
	return snap.Domains()
}

// GetByID returns a domain by id.
func (r *Registry) GetByID(ctx context.Context, id string) (*types.Domain, bool) {
	snap := r.current(ctx, false)
	if snap == nil {
		return nil, false
	}
	i, ok := snap.byID[id]
	if !ok {
		return nil, false
	}
	return snap.domains[i], true
}

// GetByName returns a domain by case-insensitive name or slug.
func (r *Registry) GetByName(ctx context.Context, name string) (*types.Domain, bool) {
	snap := r.current(ctx, false)
	if snap == nil {
		return nil, false
	}
	i, ok := snap.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	return snap.domains[i], true
}

// Shortlist ranks domains by centroid similarity to queryEmbedding and returns the
// top n. Equal similarities keep directory order.
func (r *Registry) Shortlist(ctx context.Context, queryEmbedding []float32, n int) []Candidate {
	snap := r.current(ctx, false)
	if snap == nil || n <= 0 {
		return []Candidate{}
	}

	out := make([]Candidate, len(snap.domains))
	for i, d := range snap.domains {
		out[i] = Candidate{Domain: d, Similarity: utils.UnitSimilarity(queryEmbedding, d.Centroid), Order: i}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// RecordQuery increments the handled-query counter of a domain.
func (r *Registry) RecordQuery(id string) int64 {
	v, _ := r.counts.LoadOrStore(id, new(atomic.Int64))
	return v.(*atomic.Int64).Add(1)
}

// QueryCount returns the queries handled by a domain since start, plus the count
// the directory reported at the last refresh.
func (r *Registry) QueryCount(id string) int64 {
	var base int64
	if snap := r.snap.Load(); snap != nil {
		if i, ok := snap.byID[id]; ok {
			base = snap.domains[i].QueryCount
		}
	}
	if v, ok := r.counts.Load(id); ok {
		return base + v.(*atomic.Int64).Load()
	}
	return base
}

// Run refreshes the snapshot every TTL until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				r.logger.Warn("Scheduled registry refresh failed, serving stale snapshot", "error", err)
			}
		}
	}
}

func (r *Registry) current(ctx context.Context, force bool) *Snapshot {
	snap := r.snap.Load()
	if !force && (r.fresh(snap) || r.backingOff()) {
		return snap
	}
	if err := r.refresh(ctx, force); err != nil {
		r.logger.Warn("Registry refresh failed, serving stale snapshot", "error", err, "has_snapshot", snap != nil)
		return r.snap.Load()
	}
	return r.snap.Load()
}

func (r *Registry) load(ctx context.Context) (*Snapshot, error) {
	domains, err := r.dir.ListDomains(ctx)
	if err != nil {
		metrics.RegistryRefreshesTotal.WithLabelValues("error").Inc()
		r.retryAt.Store(r.now().Add(r.retryBackoff).UnixNano())
		return nil, types.Wrap(types.KindStoreUnavailable, "registry.refresh", err)
	}
	r.retryAt.Store(0)

	prev := r.snap.Load()
	var version uint64 = 1
	if prev != nil {
		version = prev.Version + 1
	}
	next := newSnapshot(version, r.now(), domains)
	r.snap.Store(next)

	metrics.RegistryRefreshesTotal.WithLabelValues("success").Inc()
	metrics.RegistryDomains.Set(float64(len(domains)))
	r.logger.Debug("Registry refreshed", "version", version, "domains", len(domains))

	var searchable []string
	if r.searchable != nil {
		searchable = r.searchable()
	}
	if err := VerifyPartition(domains, searchable); err != nil {
		r.logger.Warn("Domain partition invariant violated", "version", version, "error", err)
	}

	r.notify(diff(prev, next))
	return next, nil
}

func diff(prev, next *Snapshot) []Event {
	var events []Event
	for _, d := range next.domains {
		if prev == nil || prev.Order(d.ID) < 0 {
			events = append(events, Event{Type: EventAdded, Domain: d, Version: next.Version})
		}
	}
	if prev != nil {
		for _, d := range prev.domains {
			if next.Order(d.ID) < 0 {
				events = append(events, Event{Type: EventRemoved, Domain: d, Version: next.Version})
			}
		}
	}
	return events
}

func (r *Registry) notify(events []Event) {
	if len(events) == 0 {
		return
	}
	r.mu.Lock()
	listeners := make([]Listener, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.Unlock()

	for _, ev := range events {
		for _, l := range listeners {
			func() {
				defer utils.Recover(r.logger.With("event", ev.Type.String(), "domain", ev.Domain.ID), "registry.listener", nil)
				l(ev)
			}()
		}
	}
}
