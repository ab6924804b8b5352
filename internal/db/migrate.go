package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// Migrate runs all schema migrations. Every statement is safe to re-run.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			// Tolerate "duplicate column name" errors from ALTER TABLE
			// since the migration system re-runs all statements.
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS owners (
		kind         TEXT NOT NULL CHECK(kind IN ('task','subtask','employee')),
		id           TEXT NOT NULL,
		name         TEXT NOT NULL DEFAULT '',
		parent_id    TEXT,
		is_completed INTEGER NOT NULL DEFAULT 0,
		completed_at TEXT,
		hours_worked REAL NOT NULL DEFAULT 0,
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL,
		PRIMARY KEY (kind, id)
	)`,

	// Added after the first release; older databases lack the column.
	`ALTER TABLE owners ADD COLUMN hours_worked REAL NOT NULL DEFAULT 0`,

	`CREATE INDEX IF NOT EXISTS idx_owners_parent ON owners(parent_id) WHERE parent_id IS NOT NULL`,

	`CREATE TABLE IF NOT EXISTS work_sessions (
		id         TEXT PRIMARY KEY,
		owner_kind TEXT NOT NULL,
		owner_id   TEXT NOT NULL,
		started_at TEXT NOT NULL,
		ended_at   TEXT,
		created_at TEXT NOT NULL,
		FOREIGN KEY (owner_kind, owner_id) REFERENCES owners(kind, id) ON DELETE CASCADE
	)`,

	`CREATE INDEX IF NOT EXISTS idx_sessions_owner ON work_sessions(owner_kind, owner_id, started_at)`,

	// At most one open session per owner, enforced by the store itself.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_one_open
		ON work_sessions(owner_kind, owner_id) WHERE ended_at IS NULL`,
}
