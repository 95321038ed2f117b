// Package cmdqueue is a SQLite-backed queue for natural-language command
// jobs submitted asynchronously. A job is claimed with a visibility
// timeout: if the worker crashes or exceeds the timeout the job reappears
// and another claim picks it up. Unlike a plain delete-on-ack queue, rows
// are kept after processing with their terminal status and result so
// callers can poll for the outcome.
package cmdqueue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/atelierink/sketchd/idgen"
)

// Status is a job's lifecycle position.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// ErrNotFound is returned by Get for an unknown job id.
var ErrNotFound = errors.New("job not found")

// Job is one queued command.
type Job struct {
	ID         string    `json:"id"`
	Prompt     string    `json:"prompt"`
	Status     Status    `json:"status"`
	Attempts   int       `json:"attempts"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	// Result is the JSON-encoded outcome, set when Status is done.
	Result []byte `json:"result,omitempty"`
	// ErrCode and ErrMessage are set when Status is failed.
	ErrCode    string `json:"err_code,omitempty"`
	ErrMessage string `json:"err_message,omitempty"`
}

// Options configure queue behaviour.
type Options struct {
	// Visibility is how long a claimed job stays invisible. Default: 60s.
	Visibility time.Duration
	// PollInterval is the delay between claim attempts in Run. Default: 1s.
	PollInterval time.Duration
	// MaxAttempts limits redeliveries before the job is failed with code
	// "max_attempts". 0 means unlimited. Default: 3.
	MaxAttempts int
	// Retention is how long finished jobs are kept before Sweep removes
	// them. Default: 24h.
	Retention time.Duration
	// SweepInterval is how often Run sweeps expired finished jobs.
	// Default: 1h.
	SweepInterval time.Duration
	// NewID mints job ids. Default: prefixed UUIDv7.
	NewID  idgen.Generator
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Visibility <= 0 {
		o.Visibility = 60 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = 3
	}
	if o.Retention <= 0 {
		o.Retention = 24 * time.Hour
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = time.Hour
	}
	if o.NewID == nil {
		o.NewID = idgen.Prefixed("job_", idgen.Default)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Queue is the handle. Call EnsureSchema once at startup.
type Queue struct {
	db   *sql.DB
	opts Options
}

// New creates a queue handle.
func New(db *sql.DB, opts Options) *Queue {
	opts.defaults()
	return &Queue{db: db, opts: opts}
}

// EnsureSchema creates the cmd_jobs table and index if they don't exist.
func (q *Queue) EnsureSchema(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS cmd_jobs (
			id          TEXT PRIMARY KEY,
			prompt      TEXT NOT NULL,
			status      TEXT NOT NULL DEFAULT 'queued',
			visible_at  INTEGER NOT NULL DEFAULT 0,
			created_at  INTEGER NOT NULL,
			finished_at INTEGER NOT NULL DEFAULT 0,
			attempts    INTEGER NOT NULL DEFAULT 0,
			result      BLOB,
			err_code    TEXT NOT NULL DEFAULT '',
			err_message TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_cmd_jobs_claim ON cmd_jobs (status, visible_at);
	`)
	return err
}

// Enqueue inserts an immediately visible job and returns its id.
func (q *Queue) Enqueue(ctx context.Context, prompt string) (string, error) {
	id := q.opts.NewID()
	now := time.Now().UnixMilli()
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO cmd_jobs (id, prompt, status, visible_at, created_at)
		 VALUES (?, ?, 'queued', ?, ?)`,
		id, prompt, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}
	return id, nil
}

// Claim atomically picks the oldest visible queued job, marks it running
// and invisible for the visibility window, and returns it. Returns nil,
// nil when nothing is available. A running job whose visibility expired
// counts as queued again.
func (q *Queue) Claim(ctx context.Context) (*Job, error) {
	now := time.Now()
	hideUntil := now.Add(q.opts.Visibility).UnixMilli()

	row := q.db.QueryRowContext(ctx, `
		UPDATE cmd_jobs
		SET status = 'running', visible_at = ?, attempts = attempts + 1
		WHERE id = (
			SELECT id FROM cmd_jobs
			WHERE status IN ('queued', 'running') AND visible_at <= ?
			ORDER BY created_at ASC
			LIMIT 1
		)
		RETURNING id, prompt, attempts, created_at`,
		hideUntil, now.UnixMilli(),
	)

	var j Job
	var creAt int64
	err := row.Scan(&j.ID, &j.Prompt, &j.Attempts, &creAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	j.Status = StatusRunning
	j.CreatedAt = time.UnixMilli(creAt)
	return &j, nil
}

// Finish marks a job done and stores its JSON result.
func (q *Queue) Finish(ctx context.Context, id string, result []byte) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE cmd_jobs SET status = 'done', result = ?, finished_at = ? WHERE id = ?`,
		result, time.Now().UnixMilli(), id,
	)
	return err
}

// Fail marks a job failed with a stable code and message.
func (q *Queue) Fail(ctx context.Context, id, code, message string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE cmd_jobs SET status = 'failed', err_code = ?, err_message = ?, finished_at = ? WHERE id = ?`,
		code, message, time.Now().UnixMilli(), id,
	)
	return err
}

// Release makes a claimed job immediately visible again.
func (q *Queue) Release(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE cmd_jobs SET status = 'queued', visible_at = 0 WHERE id = ?`, id,
	)
	return err
}

// Get returns one job by id.
func (q *Queue) Get(ctx context.Context, id string) (*Job, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, prompt, status, attempts, created_at, finished_at, result, err_code, err_message
		 FROM cmd_jobs WHERE id = ?`, id,
	)
	var j Job
	var status string
	var creAt, finAt int64
	err := row.Scan(&j.ID, &j.Prompt, &status, &j.Attempts, &creAt, &finAt,
		&j.Result, &j.ErrCode, &j.ErrMessage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	j.Status = Status(status)
	j.CreatedAt = time.UnixMilli(creAt)
	if finAt > 0 {
		j.FinishedAt = time.UnixMilli(finAt)
	}
	return &j, nil
}

// Pending returns the number of jobs not yet in a terminal state.
func (q *Queue) Pending(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cmd_jobs WHERE status IN ('queued', 'running')`,
	).Scan(&n)
	return n, err
}

// Sweep deletes finished jobs older than the retention window and returns
// the number removed.
func (q *Queue) Sweep(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-q.opts.Retention).UnixMilli()
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM cmd_jobs WHERE status IN ('done', 'failed') AND finished_at < ?`,
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
