// Package repository turns raw racing API pages into validated races and
// keeps the local snapshot cache in sync with the last successful fetch.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/abelbrown/nexttogo/internal/fetch"
	"github.com/abelbrown/nexttogo/internal/model"
	"github.com/abelbrown/nexttogo/internal/otel"
)

// Remote returns the raw body for the top count imminent races.
type Remote interface {
	NextRaces(ctx context.Context, count int) ([]byte, error)
}

// Cache holds the last-known-good snapshot. It is always fully replaced.
type Cache interface {
	ReplaceAll(ctx context.Context, races []model.Race) error
	ReadAll(ctx context.Context) ([]model.Race, error)
}

// NopCache is a Cache with no persistence: reads are empty, writes vanish.
type NopCache struct{}

func (NopCache) ReplaceAll(context.Context, []model.Race) error { return nil }
func (NopCache) ReadAll(context.Context) ([]model.Race, error) { return nil, nil }

// Repository fetches, normalizes and snapshots races.
type Repository struct {
	remote Remote
	cache  Cache
	logger *otel.Logger
}

// New creates a Repository. A nil cache disables persistence; a nil logger
// discards events.
func New(remote Remote, cache Cache, l *otel.Logger) *Repository {
	if cache == nil {
		cache = NopCache{}
	}
	if l == nil {
		l = otel.NewNullLogger()
	}
	return &Repository{remote: remote, cache: cache, logger: l}
}

// FetchTop requests the top n races and returns the usable ones in the
// order the remote listed them. Entries with no summary, a missing or
// non-positive start, or an unknown category are skipped silently.
//
// On success the cache is replaced with the result. A cache write failure
// is logged and does not fail the fetch. Remote failures are returned as
// *fetch.Error; the cache is never consulted implicitly.
func (r *Repository) FetchTop(ctx context.Context, n int) ([]model.Race, error) {
	cycleID := otel.CycleID(ctx)
	start := time.Now()
	r.logger.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindFetchStart, Comp: "repo", CycleID: cycleID, Page: n})

	body, err := r.remote.NextRaces(ctx, n)
	if err != nil {
		if _, ok := fetch.KindOf(err); !ok {
			err = fetch.NewTransportError(err)
		}
		r.logger.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindFetchError, Comp: "repo", CycleID: cycleID, Page: n, Dur: time.Since(start), Err: err.Error()})
		return nil, err
	}

	data, err := decodeResponse(body)
	if err != nil {
		err = fetch.NewDecodeError(err)
		r.logger.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindFetchError, Comp: "repo", CycleID: cycleID, Page: n, Dur: time.Since(start), Err: err.Error()})
		return nil, err
	}

	races, drops := normalize(data)
	if len(drops) > 0 {
		extra := make(map[string]any, len(drops))
		total := 0
		for reason, count := range drops {
			extra[string(reason)] = count
			total += count
		}
		r.logger.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindFetchDrop, Comp: "repo", CycleID: cycleID, Page: n, Count: total, Extra: extra})
	}

	r.logger.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindFetchComplete, Comp: "repo", CycleID: cycleID, Page: n, Count: len(races), Dur: time.Since(start)})

	if err := r.cache.ReplaceAll(ctx, races); err != nil {
		r.logger.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindCacheError, Comp: "repo", CycleID: cycleID, Err: err.Error()})
	} else {
		r.logger.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindCacheReplace, Comp: "repo", CycleID: cycleID, Count: len(races)})
	}

	return races, nil
}

// LoadCached returns the last snapshot sorted by advertised start.
// An empty snapshot is a valid result.
func (r *Repository) LoadCached(ctx context.Context) ([]model.Race, error) {
	races, err := r.cache.ReadAll(ctx)
	if err != nil {
		r.logger.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindCacheError, Comp: "repo", CycleID: otel.CycleID(ctx), Err: err.Error()})
		return nil, fmt.Errorf("read cache: %w", err)
	}
	model.SortRaces(races)
	return races, nil
}
