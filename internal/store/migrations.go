package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// Migration adds a column to an existing table. CREATE TABLE IF NOT EXISTS
// covers fresh databases; these cover databases created before the column
// existed.
type Migration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations lists all column migrations in application order.
var pendingMigrations = []Migration{
	// prior_stage records where a suspended project resumes to.
	{"projects", "prior_stage", "TEXT NOT NULL DEFAULT ''"},
	// quality_score was added once executions started feeding request lists.
	{"qc_requests", "quality_score", "INTEGER"},
	{"qc_requests", "completed_at", "DATETIME"},
	{"feedback", "project_id", "TEXT NOT NULL DEFAULT ''"},
}

func (s *DB) migrate() error {
	for _, m := range pendingMigrations {
		exists, err := columnExists(s.sql, m.Table, m.Column)
		if err != nil {
			return fmt.Errorf("store: inspect %s.%s: %w", m.Table, m.Column, err)
		}
		if exists {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := s.sql.Exec(stmt); err != nil {
			return fmt.Errorf("store: add column %s.%s: %w", m.Table, m.Column, err)
		}
	}
	return nil
}

func columnExists(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if strings.EqualFold(name, column) {
			return true, nil
		}
	}
	return false, rows.Err()
}
