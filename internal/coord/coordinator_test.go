package coord

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abelbrown/nexttogo/internal/fetch"
	"github.com/abelbrown/nexttogo/internal/model"
	"github.com/abelbrown/nexttogo/internal/selection"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type selectCall struct {
	filter model.CategorySet
	held   []string
	ctxErr error
}

// mockSelector implements Selector for testing. Results are consumed in
// order; the last one repeats.
type mockSelector struct {
	mu       sync.Mutex
	results  [][]model.Race
	errs     []error
	calls    []selectCall
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	count    atomic.Int32
}

func (m *mockSelector) SelectWithStats(ctx context.Context, filter model.CategorySet, held []model.Race) ([]model.Race, selection.Stats, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		cur := m.maxSeen.Load()
		if n <= cur || m.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	idx := int(m.count.Add(1)) - 1

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, selectCall{filter: filter.Clone(), held: model.IDs(held), ctxErr: ctx.Err()})

	var err error
	if len(m.errs) > 0 {
		err = m.errs[min(idx, len(m.errs)-1)]
	}
	if err != nil {
		return nil, selection.Stats{Calls: 1}, err
	}
	var races []model.Race
	if len(m.results) > 0 {
		races = m.results[min(idx, len(m.results)-1)]
	}
	return append([]model.Race(nil), races...), selection.Stats{Calls: 1, LastPage: 10, Accepted: len(races)}, nil
}

func (m *mockSelector) getCalls() []selectCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]selectCall(nil), m.calls...)
}

type mockLoader struct {
	races []model.Race
	err   error
	calls atomic.Int32
}

func (m *mockLoader) LoadCached(ctx context.Context) ([]model.Race, error) {
	m.calls.Add(1)
	return append([]model.Race(nil), m.races...), m.err
}

func race(id string, cat model.Category, offset time.Duration) model.Race {
	return model.Race{ID: id, MeetingName: "M", Category: cat, AdvertisedStart: testNow.Add(offset)}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestStartRunsInitialCycle(t *testing.T) {
	sel := &mockSelector{results: [][]model.Race{{race("a", model.Horse, time.Minute)}}}
	var published atomic.Int32
	c := New(sel, WithInterval(time.Hour), WithPublisher(func(Snapshot) { published.Add(1) }))

	if st, _ := c.State(); st != StateInitializing {
		t.Fatalf("state before Start = %v", st)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	waitFor(t, time.Second, func() bool { st, _ := c.State(); return st == StateReady })
	if got := model.IDs(c.CurrentList()); len(got) != 1 || got[0] != "a" {
		t.Errorf("current list = %v", got)
	}
	if published.Load() == 0 {
		t.Error("expected a publish after the startup cycle")
	}

	cancel()
	c.Wait()

	if st, _ := c.State(); st != StateStopped {
		t.Errorf("state after Wait = %v, want stopped", st)
	}
	if sel.count.Load() != 1 {
		t.Errorf("cycles = %d, want 1", sel.count.Load())
	}
}

func TestStartupFailureStillReady(t *testing.T) {
	sel := &mockSelector{errs: []error{fetch.NewServerError(502)}}
	c := New(sel, WithInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer func() { cancel(); c.Wait() }()
	c.Start(ctx)

	waitFor(t, time.Second, func() bool { st, _ := c.State(); return st == StateReady })
	_, hasErr := c.State()
	if !hasErr {
		t.Error("expected error flag after failed startup cycle")
	}
	if kind, ok := c.LastErrorKind(); !ok || kind != fetch.KindServer {
		t.Errorf("LastErrorKind = %v, %v", kind, ok)
	}
}

func TestLoopContinuesAfterFailure(t *testing.T) {
	sel := &mockSelector{
		errs:    []error{fetch.ErrOffline, nil},
		results: [][]model.Race{nil, {race("b", model.Greyhound, time.Minute)}},
	}
	c := New(sel, WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	waitFor(t, 2*time.Second, func() bool { return len(c.CurrentList()) == 1 })
	if c.LastError() != nil {
		t.Errorf("error should clear after a successful cycle, got %v", c.LastError())
	}

	cancel()
	c.Wait()
}

func TestFailedCycleKeepsPreviousList(t *testing.T) {
	sel := &mockSelector{
		results: [][]model.Race{{race("a", model.Horse, time.Minute)}},
		errs:    []error{nil, fetch.NewDecodeError(errors.New("bad json"))},
	}
	c := New(sel)
	ctx := context.Background()

	if err := c.RefreshNow(ctx); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	err := c.RefreshNow(ctx)
	if kind, ok := fetch.KindOf(err); !ok || kind != fetch.KindDecode {
		t.Fatalf("second refresh err = %v, want decode", err)
	}

	snap := c.Snapshot()
	if got := model.IDs(snap.Races); len(got) != 1 || got[0] != "a" {
		t.Errorf("list after failure = %v, want [a]", got)
	}
	if !snap.HasError() || snap.State != StateReady {
		t.Errorf("snapshot = %+v", snap)
	}
	if kind, ok := snap.ErrKind(); !ok || kind != fetch.KindDecode {
		t.Errorf("ErrKind = %v, %v", kind, ok)
	}
}

func TestHeldIsPreviousResult(t *testing.T) {
	first := []model.Race{race("a", model.Horse, time.Minute), race("b", model.Horse, 2*time.Minute)}
	sel := &mockSelector{results: [][]model.Race{first}}
	c := New(sel)
	ctx := context.Background()

	_ = c.RefreshNow(ctx)
	_ = c.RefreshNow(ctx)

	calls := sel.getCalls()
	if len(calls) != 2 {
		t.Fatalf("calls = %d", len(calls))
	}
	if len(calls[0].held) != 0 {
		t.Errorf("first held = %v, want empty", calls[0].held)
	}
	if len(calls[1].held) != 2 || calls[1].held[0] != "a" {
		t.Errorf("second held = %v, want [a b]", calls[1].held)
	}
}

func TestFilterMutationsRunCycleSynchronously(t *testing.T) {
	sel := &mockSelector{}
	c := New(sel, WithFilter(model.NewCategorySet(model.Horse)))
	ctx := context.Background()

	if err := c.ToggleCategory(ctx, model.Greyhound); err != nil {
		t.Fatalf("ToggleCategory: %v", err)
	}
	if err := c.ToggleCategory(ctx, model.Horse); err != nil {
		t.Fatalf("ToggleCategory: %v", err)
	}
	if err := c.SetFilter(ctx, model.NewCategorySet(model.Harness)); err != nil {
		t.Fatalf("SetFilter: %v", err)
	}
	if err := c.ClearFilter(ctx); err != nil {
		t.Fatalf("ClearFilter: %v", err)
	}

	want := []model.CategorySet{
		model.NewCategorySet(model.Horse, model.Greyhound),
		model.NewCategorySet(model.Greyhound),
		model.NewCategorySet(model.Harness),
		model.NewCategorySet(),
	}
	calls := sel.getCalls()
	if len(calls) != len(want) {
		t.Fatalf("cycles = %d, want %d", len(calls), len(want))
	}
	for i, w := range want {
		if !calls[i].filter.Equal(w) {
			t.Errorf("cycle %d filter = %v, want %v", i, calls[i].filter, w)
		}
	}
	if c.Filter().Len() != 0 {
		t.Errorf("Filter() = %v, want empty", c.Filter())
	}
}

func TestFilterIsCopied(t *testing.T) {
	f := model.NewCategorySet(model.Horse)
	c := New(&mockSelector{}, WithFilter(f))
	f.Add(model.Harness)

	got := c.Filter()
	got.Add(model.Greyhound)
	if !c.Filter().Equal(model.NewCategorySet(model.Horse)) {
		t.Errorf("filter leaked mutation: %v", c.Filter())
	}
}

func TestCyclesAreSingleFlight(t *testing.T) {
	sel := &mockSelector{delay: 10 * time.Millisecond}
	c := New(sel)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = c.RefreshNow(context.Background())
			} else {
				_ = c.ToggleCategory(context.Background(), model.AllCategories[i%3])
			}
		}(i)
	}
	wg.Wait()

	if got := sel.maxSeen.Load(); got != 1 {
		t.Errorf("max concurrent cycles = %d, want 1", got)
	}
	if got := sel.count.Load(); got != 8 {
		t.Errorf("cycles = %d, want 8", got)
	}
}

func TestLastFilterChangeWins(t *testing.T) {
	sel := &mockSelector{delay: 5 * time.Millisecond}
	c := New(sel)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, cat := range model.AllCategories {
		wg.Add(1)
		go func(cat model.Category) {
			defer wg.Done()
			_ = c.SetFilter(ctx, model.NewCategorySet(cat))
		}(cat)
	}
	wg.Wait()

	calls := sel.getCalls()
	last := calls[len(calls)-1].filter
	if !last.Equal(c.Filter()) {
		t.Errorf("last cycle ran with %v but filter is %v", last, c.Filter())
	}
}

func TestInFlightCycleNotCancelled(t *testing.T) {
	sel := &mockSelector{delay: 20 * time.Millisecond}
	c := New(sel)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.RefreshNow(ctx) }()
	time.Sleep(5 * time.Millisecond)
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("RefreshNow: %v", err)
	}
	if calls := sel.getCalls(); calls[0].ctxErr != nil {
		t.Errorf("selector saw cancelled context: %v", calls[0].ctxErr)
	}
}

func TestCacheFallbackWhenEmpty(t *testing.T) {
	var cached []model.Race
	for i := 0; i < 7; i++ {
		cached = append(cached, race(fmt.Sprintf("h%d", i), model.Horse, time.Duration(i+1)*time.Minute))
	}
	cached = append(cached,
		race("old", model.Horse, -2*time.Minute),
		race("dog", model.Greyhound, 30*time.Second),
	)
	loader := &mockLoader{races: cached}
	sel := &mockSelector{errs: []error{fetch.ErrOffline}}

	var last atomic.Value
	c := New(sel,
		WithFilter(model.NewCategorySet(model.Horse)),
		WithFallback(loader),
		WithClock(fixedClock),
		WithPublisher(func(s Snapshot) { last.Store(s) }),
	)

	if err := c.RefreshNow(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}

	snap := last.Load().(Snapshot)
	if !snap.FromCache || !snap.HasError() {
		t.Errorf("snapshot = %+v, want cache fallback with error", snap)
	}
	want := []string{"h0", "h1", "h2", "h3", "h4"}
	got := model.IDs(snap.Races)
	if len(got) != len(want) {
		t.Fatalf("fallback = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("fallback = %v, want %v", got, want)
		}
	}

	// Cached races are never handed to the selector as held.
	_ = c.RefreshNow(context.Background())
	if calls := sel.getCalls(); len(calls[1].held) != 0 {
		t.Errorf("held after fallback = %v, want empty", calls[1].held)
	}
}

func TestCacheFallbackFollowsFilterWhileOffline(t *testing.T) {
	loader := &mockLoader{races: []model.Race{
		race("h1", model.Horse, time.Minute),
		race("dog", model.Greyhound, 2*time.Minute),
	}}
	sel := &mockSelector{errs: []error{fetch.ErrOffline}}
	c := New(sel, WithFilter(model.NewCategorySet(model.Horse)), WithFallback(loader), WithClock(fixedClock))
	ctx := context.Background()

	_ = c.RefreshNow(ctx)
	if got := model.IDs(c.CurrentList()); len(got) != 1 || got[0] != "h1" {
		t.Fatalf("fallback = %v, want [h1]", got)
	}

	if err := c.SetFilter(ctx, model.NewCategorySet(model.Greyhound)); err == nil {
		t.Fatal("expected offline error")
	}
	snap := c.Snapshot()
	if got := model.IDs(snap.Races); len(got) != 1 || got[0] != "dog" || !snap.FromCache {
		t.Errorf("after filter change: races=%v fromCache=%v", got, snap.FromCache)
	}

	if err := c.SetFilter(ctx, model.NewCategorySet(model.Harness)); err == nil {
		t.Fatal("expected offline error")
	}
	snap = c.Snapshot()
	if len(snap.Races) != 0 || snap.FromCache {
		t.Errorf("no cached harness races: races=%v fromCache=%v", model.IDs(snap.Races), snap.FromCache)
	}
}

func TestCacheFallbackSkippedWhenListPresent(t *testing.T) {
	loader := &mockLoader{races: []model.Race{race("cached", model.Horse, time.Minute)}}
	sel := &mockSelector{
		results: [][]model.Race{{race("live", model.Horse, time.Minute)}},
		errs:    []error{nil, fetch.ErrOffline},
	}
	c := New(sel, WithFallback(loader), WithClock(fixedClock))
	ctx := context.Background()

	_ = c.RefreshNow(ctx)
	_ = c.RefreshNow(ctx)

	if loader.calls.Load() != 0 {
		t.Errorf("loader called %d times", loader.calls.Load())
	}
	if got := model.IDs(c.CurrentList()); got[0] != "live" {
		t.Errorf("list = %v", got)
	}
}

func TestCacheFallbackLoadError(t *testing.T) {
	loader := &mockLoader{err: errors.New("locked")}
	c := New(&mockSelector{errs: []error{fetch.ErrOffline}}, WithFallback(loader))

	_ = c.RefreshNow(context.Background())
	snap := c.Snapshot()
	if snap.FromCache || len(snap.Races) != 0 {
		t.Errorf("snapshot = %+v", snap)
	}
	if !errors.Is(snap.Err, fetch.ErrOffline) {
		t.Errorf("Err = %v, want offline", snap.Err)
	}
}

func TestCurrentListIsCopy(t *testing.T) {
	sel := &mockSelector{results: [][]model.Race{{race("a", model.Horse, time.Minute)}}}
	c := New(sel)
	_ = c.RefreshNow(context.Background())

	list := c.CurrentList()
	list[0].ID = "mutated"
	if c.CurrentList()[0].ID != "a" {
		t.Error("CurrentList exposed internal slice")
	}
}

func TestStateString(t *testing.T) {
	for st, want := range map[State]string{
		StateInitializing: "initializing",
		StateReady:        "ready",
		StateStopped:      "stopped",
		State(99):         "unknown",
	} {
		if st.String() != want {
			t.Errorf("%d.String() = %q, want %q", st, st.String(), want)
		}
	}
}
