// File: internal/ledger/ledger.go

// Package ledger keeps a local SQLite history of application runs, so a
// posting the candidate already applied to is flagged before a new run
// spends browser time and model quota on it.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/xkilldash9x/applypilot/api/schemas"
	"github.com/xkilldash9x/applypilot/internal/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	url           TEXT NOT NULL,
	resolved_url  TEXT NOT NULL DEFAULT '',
	ats           TEXT NOT NULL DEFAULT '',
	state         TEXT NOT NULL,
	submission    TEXT NOT NULL,
	fields_found  INTEGER NOT NULL DEFAULT 0,
	fields_bound  INTEGER NOT NULL DEFAULT 0,
	unresolved    INTEGER NOT NULL DEFAULT 0,
	started_at    TEXT NOT NULL,
	finished_at   TEXT NOT NULL,
	artifacts_dir TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_runs_url ON runs(url);
`

// Ledger is the run history store. Safe for use from a single process; the
// WAL journal keeps concurrent invocations from corrupting each other.
type Ledger struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open creates or opens the ledger database. An empty LedgerPath defaults to
// <outputs dir>/runs.db.
func Open(cfg config.OutputsConfig, logger *zap.Logger) (*Ledger, error) {
	path := cfg.LedgerPath
	if path == "" {
		base := cfg.Dir
		if base == "" {
			base = "outputs"
		}
		path = filepath.Join(base, "runs.db")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configuring ledger: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing ledger schema: %w", err)
	}
	return &Ledger{db: db, logger: logger.Named("ledger")}, nil
}

// Record upserts one finished run.
func (l *Ledger) Record(ctx context.Context, rec *schemas.RunRecord) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
		(id, url, resolved_url, ats, state, submission,
		 fields_found, fields_bound, unresolved,
		 started_at, finished_at, artifacts_dir)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.URL, rec.ResolvedURL, rec.ATS, string(rec.State), string(rec.Submission),
		rec.FieldsFound, rec.FieldsBound, rec.Unresolved,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.FinishedAt.UTC().Format(time.RFC3339Nano),
		rec.ArtifactsDir,
	)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", rec.ID, err)
	}
	l.logger.Debug("Run recorded.", zap.String("id", rec.ID), zap.String("url", rec.URL))
	return nil
}

const selectRuns = `SELECT id, url, resolved_url, ats, state, submission,
       fields_found, fields_bound, unresolved,
       started_at, finished_at, artifacts_dir
FROM runs `

// ByURL returns prior runs against the same posting URL, newest first.
func (l *Ledger) ByURL(ctx context.Context, url string) ([]schemas.RunRecord, error) {
	return l.query(ctx, selectRuns+`WHERE url = ? OR resolved_url = ? ORDER BY started_at DESC`, url, url)
}

// Recent returns the most recent runs, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]schemas.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	return l.query(ctx, selectRuns+`ORDER BY started_at DESC LIMIT ?`, limit)
}

func (l *Ledger) query(ctx context.Context, q string, args ...any) ([]schemas.RunRecord, error) {
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ledger: %w", err)
	}
	defer rows.Close()

	var out []schemas.RunRecord
	for rows.Next() {
		var rec schemas.RunRecord
		var state, submission, started, finished string
		if err := rows.Scan(&rec.ID, &rec.URL, &rec.ResolvedURL, &rec.ATS, &state, &submission,
			&rec.FieldsFound, &rec.FieldsBound, &rec.Unresolved,
			&started, &finished, &rec.ArtifactsDir); err != nil {
			return nil, fmt.Errorf("scanning ledger row: %w", err)
		}
		rec.State = schemas.RunState(state)
		rec.Submission = schemas.SubmissionOutcome(submission)
		rec.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		rec.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}
