package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"autocoder/internal/config"
)

const schemaVersion = 1

const schemaSQL = `
CREATE TABLE IF NOT EXISTS coding_jobs (
    id TEXT PRIMARY KEY,
    workspace_id INTEGER NOT NULL,
    spec_json TEXT NOT NULL,
    state TEXT NOT NULL,
    is_paused INTEGER NOT NULL DEFAULT 0,
    progress REAL NOT NULL DEFAULT 0,
    error_message TEXT,
    result_json TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    available_at TEXT NOT NULL,
    last_heartbeat TEXT
);
CREATE INDEX IF NOT EXISTS idx_coding_jobs_state ON coding_jobs(state, available_at);
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);
`

// ErrSchemaMismatch indicates the job database schema version doesn't match
// the expected version.
var ErrSchemaMismatch = errors.New("job schema version mismatch")

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Open initializes or connects to the job database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "jobs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the location of the backing database file.
func (s *Store) Path() string { return s.path }

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create job schema: %w", err)
	}
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record job schema version: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("read job schema version: %w", err)
	case version != schemaVersion:
		return fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

const jobColumns = `id, workspace_id, spec_json, state, is_paused, progress,
    error_message, result_json, created_at, updated_at, available_at, last_heartbeat`

// Enqueue inserts a new waiting job for the given batch spec. A positive
// delay enqueues it as delayed until the delay elapses.
func (s *Store) Enqueue(ctx context.Context, spec BatchSpec, delay time.Duration) (*Job, error) {
	if spec.WorkspaceID <= 0 {
		return nil, errors.New("enqueue: workspace id required")
	}
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("marshal job spec: %w", err)
	}

	now := time.Now().UTC()
	state := StateWaiting
	available := now
	if delay > 0 {
		state = StateDelayed
		available = now.Add(delay)
	}

	id := uuid.NewString()
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO coding_jobs (
            id, workspace_id, spec_json, state, is_paused, progress,
            created_at, updated_at, available_at
        ) VALUES (?, ?, ?, ?, 0, 0, ?, ?, ?)`,
		id,
		spec.WorkspaceID,
		string(specJSON),
		state,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		available.Format(time.RFC3339Nano),
	); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.GetJob(ctx, id)
}

// GetJob fetches a job by id, nil when absent.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM coding_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// NextWaiting claims the oldest runnable job and marks it active. Due delayed
// jobs are promoted first. Returns nil when nothing is runnable.
func (s *Store) NextWaiting(ctx context.Context) (*Job, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE coding_jobs SET state = ?, updated_at = ?
         WHERE state = ? AND available_at <= ?`,
		StateWaiting, now, StateDelayed, now,
	); err != nil {
		return nil, fmt.Errorf("promote delayed jobs: %w", err)
	}

	row := s.db.QueryRowContext(
		ctx,
		`SELECT id FROM coding_jobs WHERE state = ? AND is_paused = 0
         ORDER BY created_at LIMIT 1`,
		StateWaiting,
	)
	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select next job: %w", err)
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE coding_jobs SET state = ?, updated_at = ?, last_heartbeat = ?
         WHERE id = ? AND state = ?`,
		StateActive, now, now, id, StateWaiting,
	)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("claim job rows: %w", err)
	}
	if affected == 0 {
		// Lost the claim race; the caller polls again.
		return nil, nil
	}
	return s.GetJob(ctx, id)
}

// Pause sets the pause flag on a job. Waiting and delayed jobs also move to
// the paused state immediately; active jobs observe the flag at the next
// cancellation checkpoint.
func (s *Store) Pause(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE coding_jobs
         SET is_paused = 1,
             state = CASE WHEN state IN (?, ?) THEN ? ELSE state END,
             updated_at = ?
         WHERE id = ? AND state NOT IN (?, ?)`,
		StateWaiting, StateDelayed, StatePaused,
		now, id, StateCompleted, StateFailed,
	)
	if err != nil {
		return fmt.Errorf("pause job: %w", err)
	}
	return requireAffected(res, "pause", id)
}

// Cancel is pause under a different intent: the worker that observes the flag
// leaves the job paused with its partial statistics recorded.
func (s *Store) Cancel(ctx context.Context, id string) error {
	if err := s.Pause(ctx, id); err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	return nil
}

// Resume clears the pause flag and returns a paused job to the waiting state.
// Progress resets only on that transition; a still-active job whose pause flag
// never fired keeps its live progress.
func (s *Store) Resume(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE coding_jobs
         SET is_paused = 0,
             progress = CASE WHEN state = ? THEN 0 ELSE progress END,
             state = CASE WHEN state = ? THEN ? ELSE state END,
             updated_at = ?
         WHERE id = ? AND state NOT IN (?, ?)`,
		StatePaused,
		StatePaused, StateWaiting,
		now, id, StateCompleted, StateFailed,
	)
	if err != nil {
		return fmt.Errorf("resume job: %w", err)
	}
	return requireAffected(res, "resume", id)
}

// IsPaused reads the pause flag; this is the cancellation predicate the batch
// coordinator polls at its checkpoints.
func (s *Store) IsPaused(ctx context.Context, id string) (bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT is_paused FROM coding_jobs WHERE id = ?`, id)
	var paused int
	if err := row.Scan(&paused); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("job %s not found", id)
		}
		return false, fmt.Errorf("read pause flag: %w", err)
	}
	return paused != 0, nil
}

// Progress records a job's progress percentage.
func (s *Store) Progress(ctx context.Context, id string, percent float64) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE coding_jobs SET progress = ?, updated_at = ? WHERE id = ?`,
		percent, time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return requireAffected(res, "progress", id)
}

// Heartbeat updates the last heartbeat timestamp for an active job.
func (s *Store) Heartbeat(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE coding_jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND state = ?`,
		now, now, id, StateActive,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// Complete records a job's terminal result. A cancelled result leaves the
// job paused with the partial statistics attached; otherwise the job
// completes.
func (s *Store) Complete(ctx context.Context, id string, result Result) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal job result: %w", err)
	}
	state := StateCompleted
	progress := 100.0
	if result.Cancelled {
		state = StatePaused
		progress = -1
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var res sql.Result
	if progress >= 0 {
		res, err = s.execWithRetry(
			ctx,
			`UPDATE coding_jobs SET state = ?, result_json = ?, progress = ?, updated_at = ?,
                 last_heartbeat = NULL WHERE id = ?`,
			state, string(resultJSON), progress, now, id,
		)
	} else {
		res, err = s.execWithRetry(
			ctx,
			`UPDATE coding_jobs SET state = ?, result_json = ?, updated_at = ?,
                 last_heartbeat = NULL WHERE id = ?`,
			state, string(resultJSON), now, id,
		)
	}
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return requireAffected(res, "complete", id)
}

// Fail marks a job failed with an error message.
func (s *Store) Fail(ctx context.Context, id, message string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE coding_jobs SET state = ?, error_message = ?, updated_at = ?,
             last_heartbeat = NULL WHERE id = ?`,
		StateFailed, message, time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return requireAffected(res, "fail", id)
}

// RecoverStale returns active jobs whose heartbeat expired before the cutoff
// back to waiting so another worker pass can pick them up.
func (s *Store) RecoverStale(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE coding_jobs
         SET state = ?, progress = 0, last_heartbeat = NULL, updated_at = ?
         WHERE state = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
		StateWaiting, now, StateActive, cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("recover stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of jobs grouped by state.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM coding_jobs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(Stats)
	for rows.Next() {
		var state State
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[state] = count
	}
	return stats, rows.Err()
}

// List returns the most recent jobs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM coding_jobs ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func requireAffected(res sql.Result, op, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s job rows: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s job: %s not found or already terminal", op, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job          Job
		specJSON     string
		isPaused     int
		errorMessage sql.NullString
		resultJSON   sql.NullString
		createdAt    string
		updatedAt    string
		availableAt  string
		heartbeat    sql.NullString
	)
	if err := row.Scan(
		&job.ID, &job.WorkspaceID, &specJSON, &job.State, &isPaused, &job.Progress,
		&errorMessage, &resultJSON, &createdAt, &updatedAt, &availableAt, &heartbeat,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(specJSON), &job.Spec); err != nil {
		return nil, fmt.Errorf("decode job spec: %w", err)
	}
	job.IsPaused = isPaused != 0
	job.ErrorMessage = errorMessage.String
	job.ResultJSON = resultJSON.String
	job.CreatedAt = parseTimestamp(createdAt)
	job.UpdatedAt = parseTimestamp(updatedAt)
	job.AvailableAt = parseTimestamp(availableAt)
	if heartbeat.Valid {
		t := parseTimestamp(heartbeat.String)
		job.LastHeartbeat = &t
	}
	return &job, nil
}

func parseTimestamp(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
