// Package selection assembles the next-to-go list: it reuses still-valid held
// races and backfills from the repository with escalating page sizes until
// enough fresh, filter-matching, unseen races are found.
package selection

import (
	"context"
	"time"

	"github.com/abelbrown/nexttogo/internal/model"
)

// Defaults for the backfill loop.
const (
	DefaultLimit       = 5
	DefaultInitialPage = 10
	DefaultPageStep    = 10
	DefaultFetchCap    = 100
)

// Repository returns the top n imminent races in remote order.
type Repository interface {
	FetchTop(ctx context.Context, n int) ([]model.Race, error)
}

// Stats describes what one Select call did.
type Stats struct {
	Calls    int // remote calls made
	LastPage int // page size of the final call, 0 if none
	Reused   int // held races carried over
	Accepted int // races accepted from remote pages
}

// Engine runs selection cycles. It holds no state between calls; the held
// set is passed in by the caller.
type Engine struct {
	repo        Repository
	limit       int
	grace       time.Duration
	initialPage int
	pageStep    int
	fetchCap    int
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLimit sets K, the maximum list size.
func WithLimit(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.limit = k
		}
	}
}

// WithGracePeriod sets how long after its start a race stays valid.
func WithGracePeriod(d time.Duration) Option {
	return func(e *Engine) { e.grace = d }
}

// WithPaging sets the backfill page schedule: first page size, increment
// and the largest page size that may be requested.
func WithPaging(initial, step, limit int) Option {
	return func(e *Engine) {
		if initial > 0 {
			e.initialPage = initial
		}
		if step > 0 {
			e.pageStep = step
		}
		if limit > 0 {
			e.fetchCap = limit
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine over repo.
func New(repo Repository, opts ...Option) *Engine {
	e := &Engine{
		repo:        repo,
		limit:       DefaultLimit,
		grace:       model.GracePeriod,
		initialPage: DefaultInitialPage,
		pageStep:    DefaultPageStep,
		fetchCap:    DefaultFetchCap,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Limit returns K.
func (e *Engine) Limit() int { return e.limit }

// GracePeriod returns the freshness grace period.
func (e *Engine) GracePeriod() time.Duration { return e.grace }

// Select returns up to K races matching filter, valid now, unique by ID and
// sorted by start then meeting name. See SelectWithStats.
func (e *Engine) Select(ctx context.Context, filter model.CategorySet, held []model.Race) ([]model.Race, error) {
	races, _, err := e.SelectWithStats(ctx, filter, held)
	return races, err
}

// SelectWithStats runs one cycle and reports what it did.
//
// Held races are reused only when the filter is empty or names exactly the
// categories present in held; any other filter discards them. A page that
// yields no unseen IDs ends the backfill for this cycle. Any repository
// error aborts the cycle and nothing is returned.
func (e *Engine) SelectWithStats(ctx context.Context, filter model.CategorySet, held []model.Race) ([]model.Race, Stats, error) {
	var stats Stats
	now := e.now()

	keep := make([]model.Race, 0, e.limit)
	seen := make(map[string]struct{})

	if filter.Len() == 0 || model.CategoriesOf(held).Equal(filter) {
		for _, r := range held {
			if _, dup := seen[r.ID]; dup {
				continue
			}
			if !filter.Matches(r.Category) || !r.ValidWithin(now, e.grace) {
				continue
			}
			seen[r.ID] = struct{}{}
			keep = append(keep, r)
		}
	}
	stats.Reused = len(keep)

	for page := e.initialPage; len(keep) < e.limit && page <= e.fetchCap; page += e.pageStep {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		batch, err := e.repo.FetchTop(ctx, page)
		stats.Calls++
		stats.LastPage = page
		if err != nil {
			return nil, stats, err
		}

		candidates := make([]model.Race, 0, len(batch))
		for _, r := range batch {
			if _, ok := seen[r.ID]; ok {
				continue
			}
			seen[r.ID] = struct{}{}
			candidates = append(candidates, r)
		}
		if len(candidates) == 0 {
			break
		}

		for _, r := range candidates {
			if len(keep) == e.limit {
				break
			}
			if !filter.Matches(r.Category) || !r.ValidWithin(now, e.grace) {
				continue
			}
			keep = append(keep, r)
			stats.Accepted++
		}
	}

	model.SortRaces(keep)
	if len(keep) > e.limit {
		keep = keep[:e.limit]
	}
	return keep, stats, nil
}
