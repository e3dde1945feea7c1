// Package store owns the SQLite database shared by the workflow stores.
// It opens the connection with the pragmas the workload needs and applies
// schema migrations before handing the handle to domain packages.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the shared database handle.
type DB struct {
	sql  *sql.DB
	path string
}

// Open initializes the SQLite database at the given path, creating parent
// directories as needed.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// churn under concurrent HTTP handlers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set journal_mode: %w", err)
	}
	// NORMAL is safe under WAL and substantially faster than FULL.
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set synchronous: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable foreign_keys: %w", err)
	}
	s := &DB{sql: db, path: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenMemory opens an in-memory database (tests).
func OpenMemory() (*DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("store: open memory database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable foreign_keys: %w", err)
	}
	s := &DB{sql: db, path: ":memory:"}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// SQL exposes the underlying handle to domain stores.
func (s *DB) SQL() *sql.DB {
	return s.sql
}

// Path returns the database location.
func (s *DB) Path() string {
	return s.path
}

// Close releases the database handle.
func (s *DB) Close() error {
	if s == nil || s.sql == nil {
		return nil
	}
	return s.sql.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		stage TEXT NOT NULL,
		prior_stage TEXT NOT NULL DEFAULT '',
		urgency TEXT NOT NULL DEFAULT 'medium',
		deadline DATETIME,
		assigned_pe TEXT NOT NULL DEFAULT '',
		original_developer TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS project_pes (
		project_id TEXT NOT NULL REFERENCES projects(id),
		pe TEXT NOT NULL,
		PRIMARY KEY (project_id, pe)
	)`,
	`CREATE TABLE IF NOT EXISTS qc_requests (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id),
		title TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		quality_score INTEGER,
		requested_at DATETIME NOT NULL,
		completed_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS test_plans (
		request_id TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		total_hours INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS test_progress (
		request_id TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS executions (
		request_id TEXT PRIMARY KEY,
		quality_score INTEGER NOT NULL,
		passed INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		pending INTEGER NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		finished_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL,
		project_id TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		severity TEXT NOT NULL,
		priority TEXT NOT NULL,
		title TEXT NOT NULL,
		assignee TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS verification_reports (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL,
		project_id TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL,
		approval_notes TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_projects_stage ON projects(stage)`,
	`CREATE INDEX IF NOT EXISTS idx_qc_requests_status ON qc_requests(status)`,
	`CREATE INDEX IF NOT EXISTS idx_feedback_request ON feedback(request_id)`,
}

func (s *DB) initialize() error {
	for _, stmt := range schema {
		if _, err := s.sql.Exec(stmt); err != nil {
			return fmt.Errorf("store: apply schema: %w", err)
		}
	}
	return nil
}
