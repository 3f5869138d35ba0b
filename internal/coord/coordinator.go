// Package coord owns the published next-to-go list and runs selection cycles
// on startup, on a ticker, on demand and on every filter change.
package coord

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/abelbrown/nexttogo/internal/fetch"
	"github.com/abelbrown/nexttogo/internal/model"
	"github.com/abelbrown/nexttogo/internal/otel"
	"github.com/abelbrown/nexttogo/internal/selection"
)

// DefaultInterval is the time between scheduled cycles.
const DefaultInterval = 5 * time.Second

// State is the coordinator lifecycle state.
type State int

const (
	StateInitializing State = iota
	StateReady
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Selector runs one selection cycle. *selection.Engine satisfies it.
type Selector interface {
	SelectWithStats(ctx context.Context, filter model.CategorySet, held []model.Race) ([]model.Race, selection.Stats, error)
}

// CacheLoader reads the last-known-good snapshot.
type CacheLoader interface {
	LoadCached(ctx context.Context) ([]model.Race, error)
}

// Snapshot is an immutable view of the coordinator for consumers.
type Snapshot struct {
	Races     []model.Race
	Filter    model.CategorySet
	State     State
	Err       error
	FromCache bool // Races came from the cache fallback, not a successful cycle
	UpdatedAt time.Time
}

// HasError reports whether the most recent cycle failed.
func (s Snapshot) HasError() bool { return s.Err != nil }

// ErrKind returns the fetch error kind of the last failure, if any.
func (s Snapshot) ErrKind() (fetch.ErrorKind, bool) { return fetch.KindOf(s.Err) }

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithInterval sets the ticker period.
func WithInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithFilter sets the initial category filter.
func WithFilter(f model.CategorySet) Option {
	return func(c *Coordinator) { c.filter = f.Clone() }
}

// WithFallback enables publishing the cached snapshot when a cycle fails
// while nothing has been published yet.
func WithFallback(l CacheLoader) Option {
	return func(c *Coordinator) { c.fallback = l }
}

// WithPublisher registers a callback invoked after every state or list
// change. It is called without internal locks held.
func WithPublisher(fn func(Snapshot)) Option {
	return func(c *Coordinator) { c.publish = fn }
}

// WithLogger sets the event logger.
func WithLogger(l *otel.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithLimit sets K for the cache fallback.
func WithLimit(k int) Option {
	return func(c *Coordinator) {
		if k > 0 {
			c.limit = k
		}
	}
}

// Coordinator manages the current list and the refresh loop.
// Uses context cancellation as the ONLY stop mechanism.
type Coordinator struct {
	selector Selector
	fallback CacheLoader
	publish  func(Snapshot)
	logger   *otel.Logger
	interval time.Duration
	limit    int
	now      func() time.Time

	// cycles serializes every trigger; a cycle reads filter and held only
	// after acquiring it.
	cycles *semaphore.Weighted

	mu        sync.RWMutex
	races     []model.Race
	filter    model.CategorySet
	lastErr   error
	state     State
	fromCache bool
	updatedAt time.Time

	wg sync.WaitGroup
}

// New creates a Coordinator in StateInitializing. Nothing runs until Start
// or a manual trigger.
func New(s Selector, opts ...Option) *Coordinator {
	c := &Coordinator{
		selector: s,
		logger:   otel.NewNullLogger(),
		interval: DefaultInterval,
		limit:    selection.DefaultLimit,
		now:      time.Now,
		cycles:   semaphore.NewWeighted(1),
		filter:   model.NewCategorySet(),
		state:    StateInitializing,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start runs one cycle immediately, then one per interval until ctx is
// cancelled. Failed cycles never stop the loop.
func (c *Coordinator) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.stop()

		_ = c.runCycle(ctx, "startup")

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = c.runCycle(ctx, "tick")
			}
		}
	}()
}

// Wait blocks until the background goroutine exits.
// Call after canceling the context passed to Start.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) stop() {
	c.mu.Lock()
	c.state = StateStopped
	c.mu.Unlock()
	c.notify()
}

// RefreshNow runs a cycle out of band and returns its outcome. The ticker
// is not reset.
func (c *Coordinator) RefreshNow(ctx context.Context) error {
	return c.runCycle(ctx, "manual")
}

// SetFilter replaces the filter and runs a cycle before returning.
func (c *Coordinator) SetFilter(ctx context.Context, f model.CategorySet) error {
	c.mu.Lock()
	c.filter = f.Clone()
	c.mu.Unlock()
	return c.filterChanged(ctx, f)
}

// ToggleCategory adds or removes one category and runs a cycle.
func (c *Coordinator) ToggleCategory(ctx context.Context, cat model.Category) error {
	c.mu.Lock()
	c.filter = c.filter.Toggle(cat)
	f := c.filter.Clone()
	c.mu.Unlock()
	return c.filterChanged(ctx, f)
}

// ClearFilter removes every category from the filter and runs a cycle.
func (c *Coordinator) ClearFilter(ctx context.Context) error {
	return c.SetFilter(ctx, model.NewCategorySet())
}

func (c *Coordinator) filterChanged(ctx context.Context, f model.CategorySet) error {
	c.logger.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindFilterChange, Comp: "coord", Filter: f.String()})
	return c.runCycle(ctx, "filter")
}

// CurrentList returns a copy of the published list.
func (c *Coordinator) CurrentList() []model.Race {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.Race(nil), c.races...)
}

// Filter returns a copy of the active filter.
func (c *Coordinator) Filter() model.CategorySet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filter.Clone()
}

// LastError returns the error of the most recent cycle, or nil.
func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// LastErrorKind returns the fetch kind of the last error, if any.
func (c *Coordinator) LastErrorKind() (fetch.ErrorKind, bool) {
	return fetch.KindOf(c.LastError())
}

// State returns the lifecycle state and whether the last cycle failed.
func (c *Coordinator) State() (State, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state, c.lastErr != nil
}

// Snapshot returns a consistent view of the coordinator.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() Snapshot {
	return Snapshot{
		Races:     append([]model.Race(nil), c.races...),
		Filter:    c.filter.Clone(),
		State:     c.state,
		Err:       c.lastErr,
		FromCache: c.fromCache,
		UpdatedAt: c.updatedAt,
	}
}

func (c *Coordinator) notify() {
	if c.publish == nil {
		return
	}
	c.publish(c.Snapshot())
}

// runCycle runs one selection cycle under the single-flight semaphore.
// The cycle itself ignores cancellation of ctx once started.
func (c *Coordinator) runCycle(ctx context.Context, trigger string) error {
	ctx = context.WithoutCancel(ctx)
	if err := c.cycles.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.cycles.Release(1)

	c.mu.RLock()
	filter := c.filter.Clone()
	held := append([]model.Race(nil), c.races...)
	if c.fromCache {
		// Cached races were never selected under any filter.
		held = nil
	}
	c.mu.RUnlock()

	cycleID := otel.NewID()
	ctx = otel.WithCycleID(ctx, cycleID)
	start := time.Now()
	c.logger.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindCycleStart, Comp: "coord", CycleID: cycleID, Filter: filter.String(), Msg: trigger, Count: len(held)})

	races, stats, err := c.selector.SelectWithStats(ctx, filter, held)
	if err != nil {
		c.mu.Lock()
		c.lastErr = err
		c.markReadyLocked()
		stale := len(c.races) == 0 || c.fromCache
		c.mu.Unlock()

		c.logger.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindCycleError, Comp: "coord", CycleID: cycleID, Filter: filter.String(), Msg: trigger, Dur: time.Since(start), Err: err.Error()})
		if stale && c.fallback != nil {
			c.loadFallback(ctx, filter)
		}
		c.notify()
		return err
	}

	c.mu.Lock()
	c.races = races
	c.lastErr = nil
	c.fromCache = false
	c.updatedAt = c.now()
	c.markReadyLocked()
	c.mu.Unlock()

	c.logger.Emit(otel.Event{
		Level:   otel.LevelInfo,
		Kind:    otel.KindCycleComplete,
		Comp:    "coord",
		CycleID: cycleID,
		Filter:  filter.String(),
		Msg:     trigger,
		Count:   len(races),
		Page:    stats.LastPage,
		Dur:     time.Since(start),
		Extra: map[string]any{
			"calls":    stats.Calls,
			"reused":   stats.Reused,
			"accepted": stats.Accepted,
		},
	})
	c.notify()
	return nil
}

func (c *Coordinator) markReadyLocked() {
	if c.state == StateInitializing {
		c.state = StateReady
	}
}

// loadFallback publishes the cached snapshot, filtered and trimmed the same
// way a cycle result is, when nothing has been published or the published
// list itself came from the cache.
func (c *Coordinator) loadFallback(ctx context.Context, filter model.CategorySet) {
	cached, err := c.fallback.LoadCached(ctx)
	if err != nil {
		c.logger.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindCacheError, Comp: "coord", CycleID: otel.CycleID(ctx), Err: err.Error()})
		return
	}

	now := c.now()
	seen := make(map[string]struct{}, len(cached))
	out := make([]model.Race, 0, c.limit)
	for _, r := range cached {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		if filter.Matches(r.Category) && r.ValidAt(now) {
			out = append(out, r)
		}
	}
	model.SortRaces(out)
	if len(out) > c.limit {
		out = out[:c.limit]
	}

	c.mu.Lock()
	if len(c.races) == 0 || c.fromCache {
		c.races = out
		c.fromCache = len(out) > 0
		c.updatedAt = now
	}
	c.mu.Unlock()

	c.logger.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindCycleFallback, Comp: "coord", CycleID: otel.CycleID(ctx), Filter: filter.String(), Count: len(out)})
}
