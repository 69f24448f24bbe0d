// Package history keeps a SQLite log of processed archives.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run status values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// Run is one processed archive.
type Run struct {
	ID         string
	Archive    string
	ProjectDir string
	Status     string
	Message    string
	Total      int
	OK         int
	Skip       int
	BadHeader  int
	Error      int
	StartedAt  time.Time
	FinishedAt time.Time
	Files      []FileRecord
}

// FileRecord is the outcome of one script file within a run. Only files that
// did not decompile cleanly are recorded.
type FileRecord struct {
	File     string
	State    string
	Error    string
	Duration time.Duration
}

// Store provides SQLite-backed run persistence
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at dbPath.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One writer at a time; sqlite serializes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores run and its file records. A missing ID is generated and
// written back to run.
func (s *Store) Record(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, archive, project_dir, status, message, total, ok, skip, bad_header, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.Archive, run.ProjectDir, run.Status, run.Message,
		run.Total, run.OK, run.Skip, run.BadHeader, run.Error,
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, f := range run.Files {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO run_files (run_id, file, state, error, duration_ms) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(run_id, file) DO UPDATE SET state = excluded.state, error = excluded.error, duration_ms = excluded.duration_ms
		`, run.ID, f.File, f.State, f.Error, f.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("insert run file %s: %w", f.File, err)
		}
	}
	return tx.Commit()
}

const runColumns = `id, archive, project_dir, status, message, total, ok, skip, bad_header, error, started_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	err := row.Scan(&r.ID, &r.Archive, &r.ProjectDir, &r.Status, &r.Message,
		&r.Total, &r.OK, &r.Skip, &r.BadHeader, &r.Error, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Get returns a run together with its file records.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT file, state, error, duration_ms FROM run_files WHERE run_id = ? ORDER BY file`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var f FileRecord
		var ms int64
		if err := rows.Scan(&f.File, &f.State, &f.Error, &ms); err != nil {
			return nil, err
		}
		f.Duration = time.Duration(ms) * time.Millisecond
		r.Files = append(r.Files, f)
	}
	return r, rows.Err()
}

// Prune deletes runs that started before cutoff and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
