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
)

// SQLiteStore implements Journal using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// OpenSQLite opens or creates the journal database.
// Use ":memory:" for an in-memory database.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create history directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS journal (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		subject TEXT NOT NULL,
		rule TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		applied INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_journal_run ON journal(run_id);
	CREATE INDEX IF NOT EXISTS idx_journal_at ON journal(at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append writes entries in a single transaction.
func (s *SQLiteStore) Append(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO journal (run_id, kind, subject, rule, state, reason, applied, error, at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		at := e.At
		if at.IsZero() {
			at = time.Now()
		}
		applied := 0
		if e.Applied {
			applied = 1
		}
		if _, err := stmt.ExecContext(ctx, e.RunID, string(e.Kind), e.Subject, e.Rule, e.State, e.Reason, applied, e.Error, at.UnixMilli()); err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Recent returns the newest entries, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, run_id, kind, subject, rule, state, reason, applied, error, at FROM journal ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ForRun returns the entries of one invocation in insertion order.
func (s *SQLiteStore) ForRun(ctx context.Context, runID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, run_id, kind, subject, rule, state, reason, applied, error, at FROM journal WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Prune deletes entries older than before and returns how many went.
func (s *SQLiteStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM journal WHERE at < ?", before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	return res.RowsAffected()
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var kind string
		var applied int
		var atMillis int64
		if err := rows.Scan(&e.ID, &e.RunID, &kind, &e.Subject, &e.Rule, &e.State, &e.Reason, &applied, &e.Error, &atMillis); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Kind = Kind(kind)
		e.Applied = applied != 0
		e.At = time.UnixMilli(atMillis)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return entries, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
