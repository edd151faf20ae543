// Package ledger persists a local history of load runs in SQLite. Every
// CLI load records one row: which loader ran, when, with what outcome
// and metrics. The ledger is bookkeeping only; the graph stays the
// source of truth.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hollomancer/sbir-analytics-sub002/internal/types"
)

// RunStatus is the terminal state of a recorded run.
type RunStatus string

const (
	// StatusCompleted indicates the run finished without any record errors.
	StatusCompleted RunStatus = "completed"
	// StatusCompletedWithErrors indicates the run finished but skipped records.
	StatusCompletedWithErrors RunStatus = "completed_with_errors"
	// StatusFailed indicates the run aborted.
	StatusFailed RunStatus = "failed"
)

// Run is one recorded load execution.
type Run struct {
	ID         types.ID        `json:"id"`
	Loader     string          `json:"loader"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Status     RunStatus       `json:"status"`
	Metrics    json.RawMessage `json:"metrics,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Config holds ledger database options.
type Config struct {
	Path         string
	MaxOpenConns int
	BusyTimeout  time.Duration
}

// DefaultConfig returns sensible defaults for the given database path.
func DefaultConfig(path string) Config {
	return Config{
		Path:         path,
		MaxOpenConns: 5,
		BusyTimeout:  5 * time.Second,
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	loader      TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL,
	status      TEXT NOT NULL,
	metrics     TEXT,
	error       TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_loader ON runs(loader);
`

// Ledger is a SQLite-backed run history.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the ledger database at path with WAL mode and
// a busy timeout, and ensures the schema exists.
func Open(path string) (*Ledger, error) {
	return OpenWithConfig(DefaultConfig(path))
}

// OpenWithConfig opens the ledger with custom options.
func OpenWithConfig(cfg Config) (*Ledger, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=%d",
		cfg.Path,
		int(cfg.BusyTimeout.Milliseconds()),
	)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, types.WrapError(types.LEDGER_OPEN_FAILED, "failed to open ledger database", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, types.WrapError(types.LEDGER_OPEN_FAILED, "failed to ping ledger database", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, types.WrapError(types.LEDGER_OPEN_FAILED, "failed to create ledger schema", err)
	}

	return &Ledger{db: db, path: cfg.Path}, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Path returns the ledger database file path.
func (l *Ledger) Path() string {
	return l.path
}

// RecordRun inserts one run. A zero ID is filled in; a zero FinishedAt
// is set to now.
func (l *Ledger) RecordRun(ctx context.Context, run Run) error {
	if run.ID.IsZero() {
		run.ID = types.NewID()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}

	metrics := "{}"
	if len(run.Metrics) > 0 {
		metrics = string(run.Metrics)
	}

	query := `
		INSERT INTO runs (id, loader, started_at, finished_at, status, metrics, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := l.db.ExecContext(ctx, query,
		run.ID.String(),
		run.Loader,
		run.StartedAt,
		run.FinishedAt,
		string(run.Status),
		metrics,
		run.Error,
	)
	if err != nil {
		return types.WrapError(types.LEDGER_WRITE_FAILED, "failed to record run", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. A non-positive
// limit returns up to 20.
func (l *Ledger) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, loader, started_at, finished_at, status, metrics, error
		FROM runs
		ORDER BY started_at DESC, id
		LIMIT ?
	`
	rows, err := l.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, types.WrapError(types.LEDGER_QUERY_FAILED, "failed to list runs", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapError(types.LEDGER_QUERY_FAILED, "failed to read runs", err)
	}
	return runs, nil
}

// ListRunsByLoader returns the most recent runs of one loader, newest
// first.
func (l *Ledger) ListRunsByLoader(ctx context.Context, loader string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, loader, started_at, finished_at, status, metrics, error
		FROM runs
		WHERE loader = ?
		ORDER BY started_at DESC, id
		LIMIT ?
	`
	rows, err := l.db.QueryContext(ctx, query, loader, limit)
	if err != nil {
		return nil, types.WrapError(types.LEDGER_QUERY_FAILED, "failed to list runs", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapError(types.LEDGER_QUERY_FAILED, "failed to read runs", err)
	}
	return runs, nil
}

// CountRuns returns the total number of recorded runs.
func (l *Ledger) CountRuns(ctx context.Context) (int, error) {
	var count int
	err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&count)
	if err != nil {
		return 0, types.WrapError(types.LEDGER_QUERY_FAILED, "failed to count runs", err)
	}
	return count, nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var run Run
	var idStr, status string
	var metrics, errMsg sql.NullString

	if err := rows.Scan(&idStr, &run.Loader, &run.StartedAt, &run.FinishedAt, &status, &metrics, &errMsg); err != nil {
		return Run{}, types.WrapError(types.LEDGER_QUERY_FAILED, "failed to scan run", err)
	}

	id, err := types.ParseID(idStr)
	if err != nil {
		return Run{}, types.WrapError(types.LEDGER_QUERY_FAILED, "failed to parse run ID", err)
	}
	run.ID = id
	run.Status = RunStatus(status)
	if metrics.Valid && metrics.String != "" && metrics.String != "{}" {
		run.Metrics = json.RawMessage(metrics.String)
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	return run, nil
}
