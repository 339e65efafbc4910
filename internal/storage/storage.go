// Package storage хранит историю конвертаций в SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/artemshloyda/webp2gif/internal/converter"
)

// ErrLocked возвращается, если база уже открыта другим процессом.
var ErrLocked = errors.New("история конвертаций используется другим процессом")

// Storage предоставляет методы для работы с историей.
type Storage struct {
	db   *sql.DB
	lock *flock.Flock
}

// New открывает (или создаёт) базу и выполняет миграции.
// Рядом с базой берётся файловая блокировка <db>.lock.
func New(dbPath string) (*Storage, error) {
	// Создаём директорию для БД, если не существует
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию для БД: %w", err)
	}

	lock := flock.New(dbPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("не удалось взять блокировку %s: %w", lock.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dbPath)
	}

	// Открываем/создаём БД
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("не удалось открыть БД: %w", err)
	}

	// Проверяем подключение
	if err := db.Ping(); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("не удалось подключиться к БД: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite не поддерживает concurrent writes
	db.SetMaxIdleConns(1)

	s := &Storage{db: db, lock: lock}

	if err := s.migrate(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("не удалось выполнить миграции: %w", err)
	}

	return s, nil
}

// migrate выполняет все SQL-миграции.
func (s *Storage) migrate() error {
	for i, m := range GetMigrations() {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("миграция %d: %w", i+1, err)
		}
	}
	return nil
}

// Close закрывает БД и снимает блокировку.
func (s *Storage) Close() error {
	err := s.db.Close()
	if uerr := s.lock.Unlock(); uerr != nil && err == nil {
		err = uerr
	}
	return err
}

// BeginRun создаёт запись о запуске и возвращает её UUID.
func (s *Storage) BeginRun(ctx context.Context, files int, debug bool) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, started_at, files, debug, status) VALUES (?, ?, ?, ?, ?)",
		id, time.Now().Unix(), files, debug, RunInProgress,
	)
	if err != nil {
		return "", fmt.Errorf("не удалось создать запись о запуске: %w", err)
	}
	return id, nil
}

// RecordTask сохраняет итог по файлу.
func (s *Storage) RecordTask(ctx context.Context, runID string, task *converter.Task) error {
	var errKind, errMsg *string
	if task.Err != nil {
		msg := task.Err.Error()
		errMsg = &msg
		if k := converter.KindOf(task.Err); k != "" {
			kind := string(k)
			errKind = &kind
		}
	}

	var strategy *string
	if task.Strategy != "" {
		strategy = &task.Strategy
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_outcomes (run_id, src_path, src_size, dst_path, dst_size,
		                           strategy, status, error_kind, error, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, task.SourcePath, fileSize(task.SourcePath), task.OutputPath, outputSize(task),
		strategy, string(task.Status), errKind, errMsg, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("не удалось записать итог по %s: %w", task.SourcePath, err)
	}
	return nil
}

// FinishRun закрывает запись о запуске.
func (s *Storage) FinishRun(ctx context.Context, runID string, success, failed, skipped int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE runs SET finished_at = ?, success = ?, failed = ?, skipped = ?, status = ? WHERE id = ?",
		time.Now().Unix(), success, failed, skipped, RunFinished, runID,
	)
	if err != nil {
		return fmt.Errorf("не удалось обновить запуск: %w", err)
	}
	return nil
}

// CleanupInProgress помечает незакрытые запуски как прерванные.
// Вызывается при старте для очистки после аварийного завершения.
func (s *Storage) CleanupInProgress(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE runs SET status = ? WHERE status = ?",
		RunInterrupted, RunInProgress,
	)
	if err != nil {
		return 0, fmt.Errorf("не удалось очистить in_progress: %w", err)
	}
	return result.RowsAffected()
}

// GetStats возвращает агрегированную статистику.
func (s *Storage) GetStats(ctx context.Context) (*Stats, error) {
	st := &Stats{
		ByStrategy:  make(map[string]int64),
		ByErrorKind: make(map[string]int64),
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&st.Runs); err != nil {
		return nil, fmt.Errorf("не удалось посчитать запуски: %w", err)
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(status = 'success'), 0),
		       COALESCE(SUM(status = 'failed'), 0),
		       COALESCE(SUM(status = 'skipped'), 0),
		       COALESCE(SUM(CASE WHEN status = 'success' THEN src_size ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'success' THEN dst_size ELSE 0 END), 0)
		FROM task_outcomes`).
		Scan(&st.Files, &st.Success, &st.Failed, &st.Skipped, &st.InputBytes, &st.OutputBytes)
	if err != nil {
		return nil, fmt.Errorf("не удалось посчитать итоги: %w", err)
	}

	if err := s.groupCount(ctx, "strategy", "success", st.ByStrategy); err != nil {
		return nil, err
	}
	if err := s.groupCount(ctx, "error_kind", "failed", st.ByErrorKind); err != nil {
		return nil, err
	}

	return st, nil
}

// groupCount считает записи со статусом status, сгруппированные по column.
func (s *Storage) groupCount(ctx context.Context, column, status string, into map[string]int64) error {
	// column подставляется только из констант этого пакета.
	query := fmt.Sprintf(
		"SELECT %s, COUNT(*) FROM task_outcomes WHERE status = ? AND %s IS NOT NULL GROUP BY %s",
		column, column, column,
	)
	rows, err := s.db.QueryContext(ctx, query, status)
	if err != nil {
		return fmt.Errorf("не удалось сгруппировать по %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		into[key] = n
	}
	return rows.Err()
}

// RecentRuns возвращает последние limit запусков, новые первыми.
func (s *Storage) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, files, success, failed, skipped, status
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать запуски: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Files, &r.Success, &r.Failed, &r.Skipped, &r.Status); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(started, 0)
		if finished.Valid {
			t := time.Unix(finished.Int64, 0)
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunOutcomes возвращает итоги по файлам для запуска.
func (s *Storage) RunOutcomes(ctx context.Context, runID string) ([]Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT src_path, dst_path, COALESCE(strategy, ''), status, COALESCE(error_kind, ''), COALESCE(error, '')
		FROM task_outcomes WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать итоги запуска: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var o Outcome
		if err := rows.Scan(&o.SrcPath, &o.DstPath, &o.Strategy, &o.Status, &o.ErrorKind, &o.Error); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func outputSize(task *converter.Task) int64 {
	if task.Status != converter.StatusSuccess {
		return 0
	}
	return fileSize(task.OutputPath)
}

/*
Возможные расширения:
- Экспорт статистики в JSON
- Очистка старых записей
*/
