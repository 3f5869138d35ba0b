package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/abelbrown/nexttogo/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testRace(id, meeting string, cat model.Category, start time.Time) model.Race {
	return model.Race{
		ID:              id,
		MeetingID:       "m-" + id,
		MeetingName:     meeting,
		RaceName:        "Race " + id,
		RaceNumber:      3,
		Category:        cat,
		AdvertisedStart: start,
		VenueName:       meeting + " Park",
		VenueState:      "VIC",
		VenueCountry:    "AUS",
	}
}

func TestOpen(t *testing.T) {
	st := openTestStore(t)

	var name string
	err := st.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='races'").Scan(&name)
	if err != nil {
		t.Fatalf("races table not created: %v", err)
	}
}

func TestReplaceAllAndReadAll(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Now().Truncate(time.Millisecond)

	withForm := testRace("r2", "Ascot", model.Greyhound, base.Add(2*time.Minute))
	withForm.Form = &model.Form{Distance: 1200, DistanceType: "Metres", Weather: "Fine", Comment: "fast track"}

	races := []model.Race{
		testRace("r3", "Bendigo", model.Harness, base.Add(3*time.Minute)),
		withForm,
		testRace("r1", "Randwick", model.Horse, base.Add(1*time.Minute)),
	}

	if err := st.ReplaceAll(ctx, races); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	got, err := st.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 races, got %d", len(got))
	}

	wantOrder := []string{"r1", "r2", "r3"}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Errorf("got[%d].ID = %s, want %s", i, got[i].ID, id)
		}
	}

	r2 := got[1]
	if r2.Category != model.Greyhound {
		t.Errorf("category = %v", r2.Category)
	}
	if !r2.AdvertisedStart.Equal(withForm.AdvertisedStart) {
		t.Errorf("start = %v, want %v", r2.AdvertisedStart, withForm.AdvertisedStart)
	}
	if r2.Form == nil || r2.Form.Distance != 1200 || r2.Form.Comment != "fast track" {
		t.Errorf("form not round-tripped: %+v", r2.Form)
	}
	if got[0].Form != nil {
		t.Errorf("expected nil form, got %+v", got[0].Form)
	}
	if got[0].VenueCountry != "AUS" || got[0].RaceName != "Race r1" {
		t.Errorf("passthrough fields lost: %+v", got[0])
	}
}

func TestReplaceAllClearsPrevious(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	first := []model.Race{
		testRace("a", "Ascot", model.Horse, now),
		testRace("b", "Ascot", model.Horse, now),
	}
	if err := st.ReplaceAll(ctx, first); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	second := []model.Race{testRace("c", "Bendigo", model.Harness, now)}
	if err := st.ReplaceAll(ctx, second); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	got, err := st.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 1 || got[0].ID != "c" {
		t.Errorf("expected only c, got %v", model.IDs(got))
	}

	if err := st.ReplaceAll(ctx, nil); err != nil {
		t.Fatalf("ReplaceAll(nil): %v", err)
	}
	n, err := st.Count(ctx)
	if err != nil || n != 0 {
		t.Errorf("Count = %d, %v; want 0", n, err)
	}
}

func TestReadAllEmpty(t *testing.T) {
	st := openTestStore(t)

	got, err := st.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty, got %d", len(got))
	}
}

func TestReadAllSkipsUnknownCategory(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.ReplaceAll(ctx, []model.Race{testRace("ok", "Ascot", model.Horse, time.Now())}); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	_, err := st.db.Exec(`INSERT INTO races (id, meeting_name, race_number, category, advertised_start)
		VALUES ('bad', 'Nowhere', 1, 'unknown-id', 0)`)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := st.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 1 || got[0].ID != "ok" {
		t.Errorf("expected only ok, got %v", model.IDs(got))
	}
}

func TestReplacedAt(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	at, err := st.ReplacedAt(ctx)
	if err != nil || !at.IsZero() {
		t.Fatalf("ReplacedAt before write = %v, %v", at, err)
	}

	before := time.Now().Add(-time.Second)
	if err := st.ReplaceAll(ctx, nil); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	at, err = st.ReplacedAt(ctx)
	if err != nil {
		t.Fatalf("ReplacedAt: %v", err)
	}
	if at.Before(before) {
		t.Errorf("ReplacedAt = %v, expected after %v", at, before)
	}
}

func TestFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "races.db")
	ctx := context.Background()

	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.ReplaceAll(ctx, []model.Race{testRace("p", "Flemington", model.Horse, time.Now())}); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	st.Close()

	st, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()

	got, err := st.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 1 || got[0].ID != "p" {
		t.Errorf("expected p after reopen, got %v", model.IDs(got))
	}
}

func TestConcurrentReplaceAndRead(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			races := []model.Race{
				testRace("x", "Ascot", model.Horse, now),
				testRace("y", "Ascot", model.Horse, now),
			}
			if err := st.ReplaceAll(ctx, races); err != nil {
				t.Errorf("ReplaceAll: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			got, err := st.ReadAll(ctx)
			if err != nil {
				t.Errorf("ReadAll: %v", err)
				return
			}
			if len(got) != 0 && len(got) != 2 {
				t.Errorf("observed partial snapshot of %d races", len(got))
			}
		}()
	}
	wg.Wait()
}
