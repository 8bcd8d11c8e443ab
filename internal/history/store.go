// Package history keeps past pipeline runs in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"cabalrun/internal/diag"
	"cabalrun/internal/report"
)

// Invocation is one recorded run.
type Invocation struct {
	ID        string
	Workspace string
	StartedAt time.Time
	Elapsed   time.Duration
	OK        bool
	Error     string
	Units     int
	Errors    int
	Warnings  int
}

// Store is a SQLite-backed history of runs.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (and creates) the history database at path. Use ":memory:"
// for an in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A second pooled connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS invocations (
		id TEXT PRIMARY KEY,
		workspace TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		ok INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		units INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS diagnostics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		invocation_id TEXT NOT NULL REFERENCES invocations(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		severity TEXT NOT NULL,
		tool TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL,
		file TEXT,
		line INTEGER,
		col INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_diagnostics_invocation ON diagnostics(invocation_id, seq);
	CREATE INDEX IF NOT EXISTS idx_invocations_started ON invocations(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores a run and its warnings and errors. Info lines are not kept.
func (s *Store) Record(ctx context.Context, r *report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO invocations (id, workspace, started_at, elapsed_ms, ok, error, units) VALUES (?, ?, ?, ?, ?, ?, ?)",
		r.ID, r.Workspace, r.StartedAt.UnixMilli(), r.ElapsedMS, boolInt(r.OK), r.Error, len(r.Units),
	)
	if err != nil {
		return fmt.Errorf("insert invocation: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO diagnostics (invocation_id, seq, severity, tool, message, file, line, col) VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare diagnostics: %w", err)
	}
	defer stmt.Close()

	for i, d := range r.Diagnostics {
		if d.Severity == diag.SevInfo.Label() {
			continue
		}
		var (
			file      sql.NullString
			line, col sql.NullInt64
		)
		if d.Location != nil {
			file = sql.NullString{String: d.Location.File, Valid: true}
			line = sql.NullInt64{Int64: int64(d.Location.Line), Valid: true}
			col = sql.NullInt64{Int64: int64(d.Location.Column), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, r.ID, i, d.Severity, d.Tool, d.Message, file, line, col); err != nil {
			return fmt.Errorf("insert diagnostic: %w", err)
		}
	}
	return tx.Commit()
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Invocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.workspace, i.started_at, i.elapsed_ms, i.ok, i.error, i.units,
			COALESCE(SUM(CASE WHEN d.severity = 'error' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN d.severity = 'warning' THEN 1 ELSE 0 END), 0)
		FROM invocations i
		LEFT JOIN diagnostics d ON d.invocation_id = i.id
		GROUP BY i.id
		ORDER BY i.started_at DESC, i.rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	var out []Invocation
	for rows.Next() {
		var (
			inv       Invocation
			startedMS int64
			elapsedMS int64
			ok        int
		)
		if err := rows.Scan(&inv.ID, &inv.Workspace, &startedMS, &elapsedMS, &ok, &inv.Error, &inv.Units, &inv.Errors, &inv.Warnings); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		inv.StartedAt = time.UnixMilli(startedMS)
		inv.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		inv.OK = ok != 0
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Diagnostics returns the stored diagnostics of one run in report order.
func (s *Store) Diagnostics(ctx context.Context, id string) ([]diag.Diagnostic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT severity, tool, message, file, line, col FROM diagnostics WHERE invocation_id = ? ORDER BY seq", id)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}
	defer rows.Close()

	var out []diag.Diagnostic
	for rows.Next() {
		var (
			sev, tool, msg string
			file           sql.NullString
			line, col      sql.NullInt64
		)
		if err := rows.Scan(&sev, &tool, &msg, &file, &line, &col); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		severity, ok := diag.ParseSeverity(sev)
		if !ok {
			return nil, fmt.Errorf("unknown severity %q in history", sev)
		}
		d := diag.New(severity, diag.Tool(tool), msg)
		if file.Valid {
			d.Location = &diag.Location{File: file.String, Line: int(line.Int64), Column: int(col.Int64)}
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Prune deletes runs started before cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ms := cutoff.UnixMilli()
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM diagnostics WHERE invocation_id IN (SELECT id FROM invocations WHERE started_at < ?)", ms); err != nil {
		return 0, fmt.Errorf("prune diagnostics: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM invocations WHERE started_at < ?", ms)
	if err != nil {
		return 0, fmt.Errorf("prune invocations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
