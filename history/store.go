// Package history persists pipeline runs in SQLite. The runs table is also
// the source of monotonically increasing run numbers, which become the
// run-specific image tag.
package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/initializ/convey/pipeline"
)

// Store is a SQLite-backed run history.
type Store struct {
	db *sqlx.DB
}

// Run is one recorded pipeline run.
type Run struct {
	Number     int64     `db:"number"`
	ID         string    `db:"id"`
	Project    string    `db:"project"`
	Branch     string    `db:"branch"`
	Revision   string    `db:"revision"`
	Status     string    `db:"status"`
	Image      string    `db:"image"`
	StartedAt  time.Time `db:"started_at"`
	DurationMS int64     `db:"duration_ms"`
}

// StageRecord is one stage outcome within a recorded run.
type StageRecord struct {
	RunNumber  int64  `db:"run_number"`
	Position   int    `db:"position"`
	Name       string `db:"name"`
	Status     string `db:"status"`
	Kind       string `db:"kind"`
	DurationMS int64  `db:"duration_ms"`
}

// Open opens (creating if necessary) the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring history database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
number INTEGER PRIMARY KEY AUTOINCREMENT,
id TEXT NOT NULL,
project TEXT NOT NULL,
branch TEXT NOT NULL,
revision TEXT NOT NULL,
status TEXT NOT NULL,
image TEXT NOT NULL DEFAULT '',
started_at TIMESTAMP NOT NULL,
duration_ms INTEGER NOT NULL DEFAULT 0
)`,
		`CREATE TABLE IF NOT EXISTS run_stages (
run_number INTEGER NOT NULL,
position INTEGER NOT NULL,
name TEXT NOT NULL,
status TEXT NOT NULL,
kind TEXT NOT NULL DEFAULT '',
duration_ms INTEGER NOT NULL DEFAULT 0,
PRIMARY KEY (run_number, position),
FOREIGN KEY (run_number) REFERENCES runs(number) ON DELETE CASCADE
)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Begin records a starting run and allocates its run number.
func (s *Store) Begin(ctx context.Context, runID, project, branch, revision string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, project, branch, revision, status, started_at)
		 VALUES (?, ?, ?, ?, 'running', ?)`,
		runID, project, branch, revision, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("recording run start: %w", err)
	}
	number, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("allocating run number: %w", err)
	}
	return number, nil
}

// Finish records the final outcome of a run and its stage log.
func (s *Store) Finish(ctx context.Context, number int64, image string, out *pipeline.RunOutcome) error {
	status := "success"
	if !out.Success {
		status = "failure"
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("recording run outcome: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`UPDATE runs SET status = ?, image = ?, duration_ms = ? WHERE number = ?`,
		status, image, out.Duration.Milliseconds(), number); err != nil {
		return fmt.Errorf("recording run outcome: %w", err)
	}

	for i, so := range out.Stages {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_stages (run_number, position, name, status, kind, duration_ms)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			number, i, so.Stage, string(so.Status), string(so.Kind), so.Duration.Milliseconds()); err != nil {
			return fmt.Errorf("recording stage outcome %s: %w", so.Stage, err)
		}
	}

	return tx.Commit()
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []Run
	err := s.db.SelectContext(ctx, &runs,
		`SELECT number, id, project, branch, revision, status, image, started_at, duration_ms
		 FROM runs ORDER BY number DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// Stages returns the stage log for one run in execution order.
func (s *Store) Stages(ctx context.Context, number int64) ([]StageRecord, error) {
	var stages []StageRecord
	err := s.db.SelectContext(ctx, &stages,
		`SELECT run_number, position, name, status, kind, duration_ms
		 FROM run_stages WHERE run_number = ? ORDER BY position`, number)
	if err != nil {
		return nil, fmt.Errorf("listing stages for run %d: %w", number, err)
	}
	return stages, nil
}
