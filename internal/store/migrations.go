package store

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for all tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS scheduled_tasks (
		task_id              INTEGER PRIMARY KEY,
		task_name            TEXT NOT NULL,
		processor_id         INTEGER NOT NULL,
		site_id              INTEGER NOT NULL,
		season_id            INTEGER NOT NULL DEFAULT 0,
		repeat_type          TEXT NOT NULL,
		priority             INTEGER NOT NULL DEFAULT 0,
		first_run_time       TEXT NOT NULL DEFAULT '',
		repeat_after_days    INTEGER NOT NULL DEFAULT 0,
		repeat_on_month_day  INTEGER NOT NULL DEFAULT 0,
		cron_spec            TEXT NOT NULL DEFAULT '',
		retry_period_seconds INTEGER NOT NULL DEFAULT 0,
		processor_params     TEXT NOT NULL DEFAULT '{}'
	)`,

	`CREATE TABLE IF NOT EXISTS scheduled_task_status (
		task_id                       INTEGER PRIMARY KEY REFERENCES scheduled_tasks(task_id) ON DELETE CASCADE,
		next_scheduled_run_time       TEXT NOT NULL DEFAULT '',
		last_successful_timestamp     TEXT NOT NULL DEFAULT '',
		last_successful_scheduled_run TEXT NOT NULL DEFAULT '',
		last_retry_time               TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS jobs (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		processor_id INTEGER NOT NULL,
		site_id      INTEGER NOT NULL,
		definition   TEXT NOT NULL,
		state        TEXT NOT NULL DEFAULT 'SUBMITTED',
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS steps (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		processor_id   INTEGER NOT NULL,
		task_id        INTEGER NOT NULL,
		step_name      TEXT NOT NULL,
		processor_path TEXT NOT NULL DEFAULT '',
		arguments      TEXT NOT NULL DEFAULT '[]',
		state          TEXT NOT NULL DEFAULT 'QUEUED',
		created_at     TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_jobs_state ON jobs(state)`,
	`CREATE INDEX IF NOT EXISTS idx_steps_task_id ON steps(task_id)`,
}

// alterStatements are column additions that need special handling since
// SQLite doesn't support IF NOT EXISTS for ALTER TABLE ADD COLUMN.
var alterStatements = []struct {
	table    string
	column   string
	alterSQL string
	indexSQL string // Optional index to create after column is added
}{
	{
		table:    "scheduled_tasks",
		column:   "season_id",
		alterSQL: "ALTER TABLE scheduled_tasks ADD COLUMN season_id INTEGER NOT NULL DEFAULT 0",
	},
	{
		table:    "scheduled_tasks",
		column:   "cron_spec",
		alterSQL: "ALTER TABLE scheduled_tasks ADD COLUMN cron_spec TEXT NOT NULL DEFAULT ''",
	},
	{
		table:    "scheduled_tasks",
		column:   "priority",
		alterSQL: "ALTER TABLE scheduled_tasks ADD COLUMN priority INTEGER NOT NULL DEFAULT 0",
		indexSQL: "CREATE INDEX IF NOT EXISTS idx_scheduled_tasks_priority ON scheduled_tasks(priority, task_id)",
	},
}

// migrate executes all schema DDL statements, alter migrations, and post-migration indexes.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	for _, alter := range alterStatements {
		if err := addColumnIfNotExists(ctx, db, alter.table, alter.column, alter.alterSQL); err != nil {
			return err
		}
		if alter.indexSQL != "" {
			if _, err := db.ExecContext(ctx, alter.indexSQL); err != nil {
				return err
			}
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, alterSQL string) error {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if strings.EqualFold(name, column) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	_, err = db.ExecContext(ctx, alterSQL)
	return err
}
