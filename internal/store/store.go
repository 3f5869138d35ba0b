// Package store provides the SQLite last-known-good snapshot of races.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/abelbrown/nexttogo/internal/model"
)

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
//
// The races table only ever holds the most recent successful fetch: it is
// replaced wholesale, never merged.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates a new Store with the given database path.
// Creates tables if they don't exist. File-based databases use WAL mode.
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Shared cache so every pooled connection sees the same database.
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS races (
		id TEXT PRIMARY KEY,
		meeting_id TEXT NOT NULL DEFAULT '',
		meeting_name TEXT NOT NULL,
		race_name TEXT NOT NULL DEFAULT '',
		race_number INTEGER NOT NULL,
		category TEXT NOT NULL,
		advertised_start INTEGER NOT NULL,
		venue_name TEXT NOT NULL DEFAULT '',
		venue_state TEXT NOT NULL DEFAULT '',
		venue_country TEXT NOT NULL DEFAULT '',
		form TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_races_start ON races(advertised_start, meeting_name);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// ReplaceAll clears the snapshot and writes races in one transaction.
// Readers never observe a half-written snapshot.
func (s *Store) ReplaceAll(ctx context.Context, races []model.Race) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM races"); err != nil {
		return fmt.Errorf("clear races: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO races (
			id, meeting_id, meeting_name, race_name, race_number, category,
			advertised_start, venue_name, venue_state, venue_country, form
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range races {
		form, err := encodeForm(r.Form)
		if err != nil {
			return fmt.Errorf("encode form for %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID,
			r.MeetingID,
			r.MeetingName,
			r.RaceName,
			r.RaceNumber,
			r.Category.Code(),
			r.AdvertisedStart.UnixMilli(),
			r.VenueName,
			r.VenueState,
			r.VenueCountry,
			form,
		); err != nil {
			return fmt.Errorf("insert %s: %w", r.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO meta (key, value) VALUES ('replaced_at', ?)`,
		strconv.FormatInt(time.Now().UnixMilli(), 10),
	); err != nil {
		return fmt.Errorf("update meta: %w", err)
	}

	return tx.Commit()
}

// ReadAll returns the snapshot ordered by advertised start, then meeting name.
// Rows whose category code is no longer recognised are skipped.
func (s *Store) ReadAll(ctx context.Context) ([]model.Race, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, meeting_id, meeting_name, race_name, race_number, category,
			advertised_start, venue_name, venue_state, venue_country, form
		FROM races
		ORDER BY advertised_start, meeting_name, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var races []model.Race
	for rows.Next() {
		var (
			r        model.Race
			code     string
			startMs  int64
			formText sql.NullString
		)
		if err := rows.Scan(
			&r.ID,
			&r.MeetingID,
			&r.MeetingName,
			&r.RaceName,
			&r.RaceNumber,
			&code,
			&startMs,
			&r.VenueName,
			&r.VenueState,
			&r.VenueCountry,
			&formText,
		); err != nil {
			return nil, err
		}
		cat, ok := model.ParseCategory(code)
		if !ok {
			continue
		}
		r.Category = cat
		r.AdvertisedStart = time.UnixMilli(startMs)
		if formText.Valid && formText.String != "" {
			var f model.Form
			if err := json.Unmarshal([]byte(formText.String), &f); err == nil {
				r.Form = &f
			}
		}
		races = append(races, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return races, nil
}

// Count returns the number of races in the snapshot.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM races").Scan(&n)
	return n, err
}

// ReplacedAt reports when the snapshot was last written.
// Returns the zero time if it never was.
func (s *Store) ReplacedAt(ctx context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'replaced_at'`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse replaced_at: %w", err)
	}
	return time.UnixMilli(ms), nil
}

func encodeForm(f *model.Form) (any, error) {
	if f == nil {
		return nil, nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
