package storage

// migrations содержит SQL-миграции в порядке выполнения.
var migrations = []string{
	// Миграция 1: Таблица запусков
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		files INTEGER NOT NULL,
		debug INTEGER NOT NULL DEFAULT 0,
		success INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL
	);`,

	// Миграция 2: Итоги по файлам
	`CREATE TABLE IF NOT EXISTS task_outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		src_path TEXT NOT NULL,
		src_size INTEGER NOT NULL DEFAULT 0,
		dst_path TEXT NOT NULL,
		dst_size INTEGER NOT NULL DEFAULT 0,
		strategy TEXT,
		status TEXT NOT NULL,
		error_kind TEXT,
		error TEXT,
		finished_at INTEGER NOT NULL
	);`,

	// Миграция 3: Индексы для статистики
	`CREATE INDEX IF NOT EXISTS ix_outcomes_run ON task_outcomes (run_id);`,
	`CREATE INDEX IF NOT EXISTS ix_outcomes_status ON task_outcomes (status);`,

	// Миграция 4: Таблица метаданных для версионирования схемы
	`CREATE TABLE IF NOT EXISTS schema_info (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`,

	// Миграция 5: Запись версии схемы
	`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', '1');`,
}

// GetMigrations возвращает список SQL-миграций.
func GetMigrations() []string {
	return migrations
}
