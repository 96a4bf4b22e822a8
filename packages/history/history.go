// Package history stores collection runs in a SQLite database so earlier
// results can be listed and compared.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/restbench/packages/core/runner"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const queryTimeout = 30 * time.Second

// timeLayout has fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	collection TEXT NOT NULL,
	environment TEXT,
	started_at TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	passed INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	skipped INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS test_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	path TEXT,
	method TEXT,
	url TEXT,
	status INTEGER,
	passed INTEGER NOT NULL,
	skipped INTEGER NOT NULL,
	skip_reason TEXT,
	duration_ms INTEGER NOT NULL,
	body_size INTEGER,
	error TEXT,
	failures TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_test_results_run ON test_results(run_id, position);
`

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// Store is a run history database.
type Store struct {
	db   *sql.DB
	path string
}

type RunRecord struct {
	ID          string
	Collection  string
	Environment string
	StartedAt   time.Time
	Duration    time.Duration
	Passed      int
	Failed      int
	Skipped     int
	Results     []ResultRecord
}

// OK reports whether the run had no failures.
func (r RunRecord) OK() bool {
	return r.Failed == 0
}

type ResultRecord struct {
	Name       string
	Path       string
	Method     string
	URL        string
	Status     int
	Passed     bool
	Skipped    bool
	SkipReason string
	Duration   time.Duration
	BodySize   int64
	Error      string
	// Failures holds the messages of failed checks, one per line.
	Failures string
}

// Open opens or creates the database at dsn. Plain paths and the
// sqlite://path or sqlite:path forms are accepted.
func Open(dsn string) (*Store, error) {
	path, err := parseDSN(dsn)
	if err != nil {
		return nil, err
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

func parseDSN(dsn string) (string, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		dsn = strings.TrimPrefix(dsn, "sqlite://")
	case strings.HasPrefix(dsn, "sqlite:"):
		dsn = strings.TrimPrefix(dsn, "sqlite:")
	case strings.Contains(dsn, "://"):
		return "", fmt.Errorf("unsupported history database: %s", dsn)
	}
	if dsn == "" {
		return "", fmt.Errorf("history database path is empty")
	}
	return dsn, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// FromRunResult converts a finished run. Check failures are flattened into
// ResultRecord.Failures.
func FromRunResult(res *runner.RunResult, environment string, startedAt time.Time) RunRecord {
	rec := RunRecord{
		Collection:  res.Collection,
		Environment: environment,
		StartedAt:   startedAt,
		Duration:    res.Duration,
		Passed:      res.Passed,
		Failed:      res.Failed,
		Skipped:     res.Skipped,
	}
	for _, r := range res.Results {
		rr := ResultRecord{
			Name:       r.Name,
			Path:       r.Path,
			Passed:     r.Passed,
			Skipped:    r.Skipped,
			SkipReason: r.SkipReason,
			Duration:   r.Duration,
		}
		if r.Request != nil {
			rr.Method = r.Request.Method
			rr.URL = r.Request.URL
		}
		if r.Response != nil {
			rr.Status = r.Response.StatusCode
			rr.BodySize = r.Response.BodySize
		}
		if r.Error != nil {
			rr.Error = r.Error.Error()
		}
		var failures []string
		for _, t := range r.Tests {
			if !t.Passed {
				failures = append(failures, t.Name+": "+t.Message)
			}
		}
		rr.Failures = strings.Join(failures, "\n")
		rec.Results = append(rec.Results, rr)
	}
	return rec
}

// Record stores rec and its results in one transaction and returns the run
// id. A missing id is generated.
func (s *Store) Record(ctx context.Context, rec RunRecord) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, collection, environment, started_at, duration_ms, passed, failed, skipped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Collection, rec.Environment,
		rec.StartedAt.UTC().Format(timeLayout),
		rec.Duration.Milliseconds(), rec.Passed, rec.Failed, rec.Skipped)
	if err != nil {
		return "", fmt.Errorf("failed to save run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO test_results (
			run_id, position, name, path, method, url, status, passed, skipped,
			skip_reason, duration_ms, body_size, error, failures
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare result insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range rec.Results {
		_, err := stmt.ExecContext(ctx,
			rec.ID, i, r.Name, r.Path, r.Method, r.URL, r.Status, r.Passed, r.Skipped,
			r.SkipReason, r.Duration.Milliseconds(), r.BodySize, r.Error, r.Failures)
		if err != nil {
			return "", fmt.Errorf("failed to save result %q: %w", r.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return rec.ID, nil
}

// Recent returns up to limit runs, newest first, without their results.
func (s *Store) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, collection, COALESCE(environment, ''), started_at, duration_ms, passed, failed, skipped
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// Get returns one run with its results in execution order.
func (s *Store) Get(ctx context.Context, id string) (RunRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, collection, COALESCE(environment, ''), started_at, duration_ms, passed, failed, skipped
		FROM runs WHERE id = ?`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return RunRecord{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, COALESCE(path, ''), COALESCE(method, ''), COALESCE(url, ''), COALESCE(status, 0),
			passed, skipped, COALESCE(skip_reason, ''), duration_ms, COALESCE(body_size, 0),
			COALESCE(error, ''), COALESCE(failures, '')
		FROM test_results WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return RunRecord{}, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r ResultRecord
		var durationMs int64
		if err := rows.Scan(&r.Name, &r.Path, &r.Method, &r.URL, &r.Status,
			&r.Passed, &r.Skipped, &r.SkipReason, &durationMs, &r.BodySize,
			&r.Error, &r.Failures); err != nil {
			return RunRecord{}, fmt.Errorf("failed to scan result: %w", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		rec.Results = append(rec.Results, r)
	}
	if err := rows.Err(); err != nil {
		return RunRecord{}, fmt.Errorf("row iteration error: %w", err)
	}
	return rec, nil
}

// Prune deletes all but the newest keep runs and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC LIMIT ?
		)`, max(keep, 0))
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (RunRecord, error) {
	var rec RunRecord
	var started string
	var durationMs int64
	err := sc.Scan(&rec.ID, &rec.Collection, &rec.Environment, &started, &durationMs,
		&rec.Passed, &rec.Failed, &rec.Skipped)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, err
	}
	if err != nil {
		return rec, fmt.Errorf("failed to scan run: %w", err)
	}
	rec.StartedAt, err = time.Parse(timeLayout, started)
	if err != nil {
		return rec, fmt.Errorf("invalid run timestamp %q: %w", started, err)
	}
	rec.Duration = time.Duration(durationMs) * time.Millisecond
	return rec, nil
}
