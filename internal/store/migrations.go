package store

import (
	"context"
	"database/sql"
)

// schema contains the DDL for the run store.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL UNIQUE,
		workflow_file TEXT NOT NULL,
		run_dir       TEXT NOT NULL DEFAULT '',
		tool          TEXT NOT NULL DEFAULT '',
		state         TEXT NOT NULL DEFAULT 'PLANNED',
		plan          TEXT NOT NULL,
		created_at    TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS run_tasks (
		run_name TEXT NOT NULL,
		task_id  TEXT NOT NULL,
		seq      INTEGER NOT NULL,
		state    TEXT NOT NULL DEFAULT 'PENDING',
		PRIMARY KEY (run_name, task_id),
		FOREIGN KEY (run_name) REFERENCES runs(name) ON DELETE CASCADE
	)`,

	`CREATE INDEX IF NOT EXISTS idx_runs_state ON runs(state)`,
	`CREATE INDEX IF NOT EXISTS idx_run_tasks_state ON run_tasks(run_name, state)`,
}

// migrate executes all schema DDL statements.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
