// Package history persists run lifecycle events in SQLite and projects them
// into run summaries for the history command.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/assetflow/internal/events"
	ferrors "git.home.luguber.info/inful/assetflow/internal/foundation/errors"
)

// Event types as stored in the events table.
const (
	TypeRunStarted   = "run_started"
	TypeTaskFinished = "task_finished"
	TypeRunFinished  = "run_finished"
)

// Record is one stored event.
type Record struct {
	ID        int64
	RunID     string
	Type      string
	Timestamp time.Time
	Payload   []byte
}

// Store is a SQLite-backed run event log.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens or creates the database at path. Use ":memory:" for an
// in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "could not create history directory").
				WithContext("path", path).
				Build()
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "could not open history database").
			WithContext("path", path).
			Build()
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "failed to initialize history schema").
			WithContext("path", path).
			Build()
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		payload BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_run_id ON events(run_id);
	CREATE INDEX IF NOT EXISTS idx_event_type ON events(event_type);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append stores a run lifecycle event.
func (s *Store) Append(ctx context.Context, evt events.RunEvent) error {
	eventType, at, err := describe(evt)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryHistory, "failed to marshal event payload").Build()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO events (run_id, event_type, timestamp, payload) VALUES (?, ?, ?, ?)",
		evt.RunIdentifier(), eventType, at.UnixMilli(), payload,
	)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryHistory, "failed to append event").
			WithContext("run_id", evt.RunIdentifier()).
			Build()
	}
	return nil
}

func describe(evt events.RunEvent) (string, time.Time, error) {
	switch e := evt.(type) {
	case events.RunStarted:
		return TypeRunStarted, e.StartedAt, nil
	case events.TaskFinished:
		return TypeTaskFinished, e.FinishedAt, nil
	case events.RunFinished:
		return TypeRunFinished, e.FinishedAt, nil
	default:
		return "", time.Time{}, ferrors.HistoryError("unsupported event type").
			WithContext("type", fmt.Sprintf("%T", evt)).
			Build()
	}
}

// Events returns the stored events of one run in insertion order.
func (s *Store) Events(ctx context.Context, runID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, run_id, event_type, timestamp, payload FROM events WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "failed to query events").Build()
	}
	defer rows.Close()
	return scanRecords(rows)
}

// RecentRunIDs returns up to limit run ids, newest first.
func (s *Store) RecentRunIDs(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT run_id FROM events WHERE event_type = ? ORDER BY id DESC LIMIT ?",
		TypeRunStarted, limit,
	)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "failed to query runs").Build()
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "failed to scan run rows").Build()
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "failed to iterate run rows").Build()
	}
	return ids, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var r Record
		var ts int64
		if err := rows.Scan(&r.ID, &r.RunID, &r.Type, &ts, &r.Payload); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "failed to scan event rows").Build()
		}
		r.Timestamp = time.UnixMilli(ts)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "failed to iterate event rows").Build()
	}
	return out, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
