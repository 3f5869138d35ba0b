package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/abelbrown/nexttogo/internal/config"
	"github.com/abelbrown/nexttogo/internal/coord"
	"github.com/abelbrown/nexttogo/internal/fetch"
	"github.com/abelbrown/nexttogo/internal/logging"
	"github.com/abelbrown/nexttogo/internal/model"
	"github.com/abelbrown/nexttogo/internal/otel"
	"github.com/abelbrown/nexttogo/internal/repository"
	"github.com/abelbrown/nexttogo/internal/selection"
	"github.com/abelbrown/nexttogo/internal/store"
)

// probeTimeout bounds the pre-flight connectivity dial.
const probeTimeout = 2 * time.Second

// runtime holds everything a command needs, wired from config.
type runtime struct {
	cfg    *config.Config
	logger *otel.Logger
	ring   *otel.RingBuffer
	store  *store.Store // nil when the cache is disabled
	repo   *repository.Repository
	engine *selection.Engine

	eventsFile *os.File
}

// setup loads config and wires logging, the cache, the remote source and
// the selection engine.
func setup() (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Cache.Path = dbPath
	}

	if err := logging.Init(cfg.Log.Path, cfg.Log.Level, version); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}

	rt := &runtime{cfg: cfg, ring: otel.NewRingBuffer(otel.DefaultRingSize)}

	rt.logger, rt.eventsFile = openEventLog(cfg.Log.EventsPath)
	rt.logger.SetMinLevel(otel.Level(cfg.Log.Level))
	rt.logger.SetRingBuffer(rt.ring)
	rt.logger.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindStartup, Comp: "main", Msg: version, Extra: map[string]any{
		"base_url": cfg.API.BaseURL,
		"interval": cfg.IntervalDuration().String(),
		"cache":    cfg.Cache.Enabled,
	}})

	var cache repository.Cache
	if cfg.Cache.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.Cache.Path), 0o755); err != nil {
			rt.close()
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
		st, err := store.Open(cfg.Cache.Path)
		if err != nil {
			rt.close()
			return nil, err
		}
		rt.store = st
		cache = st
		logging.Info("cache opened", "path", cfg.Cache.Path)
	}

	var online fetch.Connectivity = fetch.AlwaysOnline{}
	if probe, err := fetch.NewDialProbe(cfg.API.BaseURL, probeTimeout); err == nil {
		online = probe
	} else {
		logging.Warn("connectivity probe disabled", "err", err)
	}

	fetcher := fetch.NewFetcher(cfg.API.BaseURL, cfg.TimeoutDuration(),
		fetch.WithRateLimit(cfg.API.RatePerSecond, cfg.API.Burst),
		fetch.WithConnectivity(online),
	)
	rt.repo = repository.New(fetcher, cache, rt.logger)
	rt.engine = selection.New(rt.repo)
	return rt, nil
}

// openEventLog opens the JSONL event file, falling back to a null logger.
func openEventLog(path string) (*otel.Logger, *os.File) {
	if path == "" {
		return otel.NewNullLogger(), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logging.Warn("event log disabled", "err", err)
		return otel.NewNullLogger(), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logging.Warn("event log disabled", "err", err)
		return otel.NewNullLogger(), nil
	}
	return otel.NewLogger(f), f
}

// coordinator builds a Coordinator over the engine with config defaults.
func (rt *runtime) coordinator(filter model.CategorySet, opts ...coord.Option) *coord.Coordinator {
	base := []coord.Option{
		coord.WithInterval(rt.cfg.IntervalDuration()),
		coord.WithFilter(filter),
		coord.WithLogger(rt.logger),
		coord.WithLimit(rt.engine.Limit()),
	}
	if rt.cfg.Cache.Enabled && rt.cfg.Cache.Fallback {
		base = append(base, coord.WithFallback(rt.repo))
	}
	return coord.New(rt.engine, append(base, opts...)...)
}

func (rt *runtime) close() {
	if rt.logger != nil {
		rt.logger.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindShutdown, Comp: "main"})
		rt.logger.Close()
	}
	if rt.eventsFile != nil {
		rt.eventsFile.Close()
	}
	if rt.store != nil {
		rt.store.Close()
	}
	logging.Close()
}

// cacheOnly is used by commands that never touch the network.
func (rt *runtime) cacheOnly(ctx context.Context) ([]model.Race, time.Time, error) {
	if rt.store == nil {
		return nil, time.Time{}, fmt.Errorf("cache is disabled (cache.enabled: false)")
	}
	races, err := rt.repo.LoadCached(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	at, err := rt.store.ReplacedAt(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	return races, at, nil
}
