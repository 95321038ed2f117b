// Package history is the bounded append-only log of command outcomes, kept
// for audit and replay. Entries are immutable once appended; the store keeps
// the most recent entries up to a cap and drops the oldest beyond it. The
// only mutations are user-triggered deletion and clearing.
//
// Verbose diagnostics (resolver candidate lists, raw traces) belong in the
// Detail field — user-facing surfaces show only the categorized error.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/atelierink/sketchd/dbopen"
	"github.com/atelierink/sketchd/idgen"
)

// DefaultCap is the number of entries retained unless configured otherwise.
const DefaultCap = 50

// Schema contains the DDL for the history tables.
const Schema = `
CREATE TABLE IF NOT EXISTS history_entries (
    id           TEXT PRIMARY KEY,
    prompt       TEXT NOT NULL,
    created_at   INTEGER NOT NULL,            -- milliseconds since epoch
    success      INTEGER NOT NULL,
    mode         TEXT NOT NULL DEFAULT '',
    plan         TEXT NOT NULL DEFAULT 'null',
    ops_executed INTEGER NOT NULL DEFAULT 0,
    ops_failed   INTEGER NOT NULL DEFAULT 0,
    failed_index INTEGER NOT NULL DEFAULT -1,
    created_ids  TEXT NOT NULL DEFAULT '[]',
    modified_ids TEXT NOT NULL DEFAULT '[]',
    deleted_ids  TEXT NOT NULL DEFAULT '[]',
    duration_ms  INTEGER NOT NULL DEFAULT 0,
    err_message  TEXT NOT NULL DEFAULT '',
    err_code     TEXT NOT NULL DEFAULT '',
    detail       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_history_created ON history_entries (created_at DESC);

CREATE TABLE IF NOT EXISTS recent_colors (
    color   TEXT PRIMARY KEY,
    used_at INTEGER NOT NULL
);
`

// Entry is one command outcome.
type Entry struct {
	ID        string          `json:"id"`
	Prompt    string          `json:"prompt"`
	CreatedAt time.Time       `json:"created_at"`
	Success   bool            `json:"success"`
	Mode      string          `json:"mode"`
	Plan      json.RawMessage `json:"plan,omitempty"`

	OpsExecuted int      `json:"ops_executed"`
	OpsFailed   int      `json:"ops_failed"`
	FailedIndex int      `json:"failed_index"` // -1 when no failure
	Created     []string `json:"created,omitempty"`
	Modified    []string `json:"modified,omitempty"`
	Deleted     []string `json:"deleted,omitempty"`
	DurationMS  int64    `json:"duration_ms"`

	ErrMessage string `json:"err_message,omitempty"`
	ErrCode    string `json:"err_code,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// StatusFilter selects entries by outcome.
type StatusFilter string

const (
	FilterAll     StatusFilter = "all"
	FilterSuccess StatusFilter = "success"
	FilterFailed  StatusFilter = "failed"
)

// Options configures the store.
type Options struct {
	// Cap is the maximum number of retained entries. Default: 50.
	Cap int
	// NewID overrides the entry id generator.
	NewID idgen.Generator
}

func (o *Options) defaults() {
	if o.Cap <= 0 {
		o.Cap = DefaultCap
	}
	if o.NewID == nil {
		o.NewID = idgen.Prefixed("cmd_", idgen.Default)
	}
}

// Store is the history database handle.
type Store struct {
	db   *sql.DB
	opts Options
}

// New creates a Store on an already-open database. Call EnsureSchema once
// at startup.
func New(db *sql.DB, opts Options) *Store {
	opts.defaults()
	return &Store{db: db, opts: opts}
}

// EnsureSchema creates the history tables if they don't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	return err
}

// Append records a terminal command outcome and trims the log to the cap,
// dropping the oldest entries. The entry's ID and CreatedAt are assigned
// when empty.
func (s *Store) Append(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = s.opts.NewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.Plan == nil {
		e.Plan = json.RawMessage("null")
	}

	created, _ := json.Marshal(emptyIfNil(e.Created))
	modified, _ := json.Marshal(emptyIfNil(e.Modified))
	deleted, _ := json.Marshal(emptyIfNil(e.Deleted))

	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO history_entries (
				id, prompt, created_at, success, mode, plan,
				ops_executed, ops_failed, failed_index,
				created_ids, modified_ids, deleted_ids,
				duration_ms, err_message, err_code, detail
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			e.ID, e.Prompt, e.CreatedAt.UnixMilli(), boolInt(e.Success), e.Mode, string(e.Plan),
			e.OpsExecuted, e.OpsFailed, e.FailedIndex,
			string(created), string(modified), string(deleted),
			e.DurationMS, e.ErrMessage, e.ErrCode, e.Detail,
		)
		if err != nil {
			return fmt.Errorf("history: insert: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			DELETE FROM history_entries WHERE id NOT IN (
				SELECT id FROM history_entries ORDER BY created_at DESC, id DESC LIMIT ?
			)`, s.opts.Cap)
		if err != nil {
			return fmt.Errorf("history: trim: %w", err)
		}
		return nil
	})
}

// List returns entries most-recent-first. search is a case-insensitive
// substring filter over the prompt; empty matches everything.
func (s *Store) List(ctx context.Context, status StatusFilter, search string) ([]*Entry, error) {
	q := `SELECT id, prompt, created_at, success, mode, plan,
	             ops_executed, ops_failed, failed_index,
	             created_ids, modified_ids, deleted_ids,
	             duration_ms, err_message, err_code, detail
	      FROM history_entries`
	var (
		conds []string
		args  []any
	)
	switch status {
	case FilterSuccess:
		conds = append(conds, "success = 1")
	case FilterFailed:
		conds = append(conds, "success = 0")
	case FilterAll, "":
	default:
		return nil, fmt.Errorf("history: unknown status filter %q", status)
	}
	if search != "" {
		conds = append(conds, "LOWER(prompt) LIKE ?")
		args = append(args, "%"+strings.ToLower(search)+"%")
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Get returns one entry by id, or nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, prompt, created_at, success, mode, plan,
		       ops_executed, ops_failed, failed_index,
		       created_ids, modified_ids, deleted_ids,
		       duration_ms, err_message, err_code, detail
		FROM history_entries WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("history: get: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanEntry(rows)
}

// Delete removes one entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM history_entries WHERE id = ?`, id)
	return err
}

// Clear removes every entry.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM history_entries`)
	return err
}

// Count returns the number of retained entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM history_entries`).Scan(&n)
	return n, err
}

func scanEntry(rows *sql.Rows) (*Entry, error) {
	var (
		e         Entry
		createdAt int64
		success   int
		planRaw   string
		cIDs      string
		mIDs      string
		dIDs      string
	)
	if err := rows.Scan(
		&e.ID, &e.Prompt, &createdAt, &success, &e.Mode, &planRaw,
		&e.OpsExecuted, &e.OpsFailed, &e.FailedIndex,
		&cIDs, &mIDs, &dIDs,
		&e.DurationMS, &e.ErrMessage, &e.ErrCode, &e.Detail,
	); err != nil {
		return nil, fmt.Errorf("history: scan: %w", err)
	}
	e.CreatedAt = time.UnixMilli(createdAt)
	e.Success = success == 1
	e.Plan = json.RawMessage(planRaw)
	e.Created = decodeIDs(cIDs)
	e.Modified = decodeIDs(mIDs)
	e.Deleted = decodeIDs(dIDs)
	return &e, nil
}

// decodeIDs reverses the Append-side encoding: an empty stored list comes
// back as nil, so absent id lists stay absent across a round trip.
func decodeIDs(raw string) []string {
	var ids []string
	json.Unmarshal([]byte(raw), &ids)
	if len(ids) == 0 {
		return nil
	}
	return ids
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
