// Package journal persists pipeline run history in SQLite. The journal is an
// observability surface only; published output lives in git.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// StageRecord captures the outcome of a single pipeline stage.
type StageRecord struct {
	Name       string `json:"name"`
	Status     string `json:"status"` // success|failed|skipped|warning
	DurationMS int64  `json:"duration_ms"`
}

// Entry is one pipeline run.
type Entry struct {
	RunID      string        `json:"run_id"`
	Trigger    string        `json:"trigger"` // cli|webhook|schedule
	Status     string        `json:"status"`  // success|failed
	Committed  bool          `json:"committed"`
	CommitHash string        `json:"commit_hash,omitempty"`
	Stages     []StageRecord `json:"stages,omitempty"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Store is a SQLite-backed run journal.
// Use ":memory:" for an in-memory journal, or a file path for persistence.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (and initializes) the journal database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}
	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize journal schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		trigger_kind TEXT NOT NULL,
		status TEXT NOT NULL,
		committed INTEGER NOT NULL DEFAULT 0,
		commit_hash TEXT,
		stages TEXT,
		error TEXT,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append records a finished run. A nil store is a no-op so one-shot runs
// without a configured journal can skip it.
func (s *Store) Append(ctx context.Context, e Entry) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stagesJSON, err := json.Marshal(e.Stages)
	if err != nil {
		return fmt.Errorf("marshal stages: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, trigger_kind, status, committed, commit_hash, stages, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Trigger, e.Status, boolToInt(e.Committed), e.CommitHash, string(stagesJSON), e.Error,
		e.StartedAt.Unix(), e.FinishedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, trigger_kind, status, committed, commit_hash, stages, error, started_at, finished_at
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			committed  int
			commitHash sql.NullString
			stagesJSON sql.NullString
			errMsg     sql.NullString
			started    int64
			finished   int64
		)
		if err := rows.Scan(&e.RunID, &e.Trigger, &e.Status, &committed, &commitHash, &stagesJSON, &errMsg, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		e.Committed = committed != 0
		e.CommitHash = commitHash.String
		e.Error = errMsg.String
		e.StartedAt = time.Unix(started, 0)
		e.FinishedAt = time.Unix(finished, 0)
		if stagesJSON.Valid && stagesJSON.String != "" {
			if err := json.Unmarshal([]byte(stagesJSON.String), &e.Stages); err != nil {
				return nil, fmt.Errorf("unmarshal stages: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes runs that finished before the cutoff and returns the number
// of deleted rows.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	if s == nil {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE finished_at < ?`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
