package storage

// schemaStatements are applied in order on Open. They are portable across
// sqlite and postgres: dates and timestamps are TEXT, decimals are TEXT,
// booleans are INTEGER 0/1.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		hourly_rate_cents BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS project_members (
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		hourly_rate_cents BIGINT,
		PRIMARY KEY (project_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		project_id TEXT REFERENCES projects(id) ON DELETE SET NULL,
		title TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'todo',
		budget_cents BIGINT,
		estimated_hours TEXT,
		actual_hours TEXT NOT NULL DEFAULT '0',
		hourly_rate_cents BIGINT,
		due_date TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id)`,
	`CREATE TABLE IF NOT EXISTS time_entries (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		project_id TEXT,
		user_id TEXT NOT NULL,
		timer_id TEXT UNIQUE,
		hours TEXT NOT NULL,
		entry_date TEXT NOT NULL,
		start_time TEXT,
		end_time TEXT,
		hourly_rate TEXT NOT NULL,
		rate_source TEXT NOT NULL DEFAULT 'explicit',
		amount TEXT NOT NULL,
		is_billable INTEGER NOT NULL DEFAULT 1,
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_time_entries_task ON time_entries(task_id)`,
	`CREATE INDEX IF NOT EXISTS idx_time_entries_project ON time_entries(project_id)`,
	`CREATE TABLE IF NOT EXISTS cost_items (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		task_id TEXT,
		description TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		is_billable INTEGER NOT NULL DEFAULT 1,
		item_date TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cost_items_project ON cost_items(project_id)`,
	`CREATE TABLE IF NOT EXISTS rate_rules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		user_id TEXT,
		project_id TEXT,
		hourly_rate_cents BIGINT NOT NULL,
		valid_from TEXT NOT NULL,
		valid_to TEXT,
		is_default INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS user_settings (
		user_id TEXT PRIMARY KEY,
		default_hourly_rate_cents BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS timers (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		started_at TEXT NOT NULL,
		stopped_at TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_timers_user_open ON timers(user_id, stopped_at)`,
	`CREATE TABLE IF NOT EXISTS audit_events (
		id TEXT PRIMARY KEY,
		seq BIGINT NOT NULL UNIQUE,
		recorded_at TEXT NOT NULL,
		action TEXT NOT NULL,
		actor TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		prev_hash TEXT NOT NULL DEFAULT '',
		hash TEXT NOT NULL
	)`,
}
