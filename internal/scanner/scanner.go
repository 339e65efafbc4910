// Package scanner раскрывает аргументы командной строки в список файлов.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/artemshloyda/webp2gif/internal/config"
	"github.com/artemshloyda/webp2gif/internal/logging"
)

// Scanner раскрывает директории в списки .webp файлов.
type Scanner struct {
	// recursive - обходить поддиректории.
	recursive bool

	logger *slog.Logger
}

// New создаёт новый Scanner.
func New(recursive bool, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scanner{recursive: recursive, logger: logger}
}

// Expand возвращает пути для конвертации в порядке аргументов.
// Явно указанные файлы передаются как есть (включая несуществующие и не-.webp),
// чтобы движок сам сообщил о них. Директории раскрываются в .webp файлы,
// отсортированные по имени; поддиректории result/ и скрытые пропускаются.
func (s *Scanner) Expand(ctx context.Context, args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			files = append(files, arg)
			continue
		}

		found, err := s.scanDir(ctx, arg)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("директория просканирована", "dir", arg, "files", len(found))
		files = append(files, found...)
	}

	return files, nil
}

// scanDir собирает .webp файлы внутри root.
func (s *Scanner) scanDir(ctx context.Context, root string) ([]string, error) {
	var found []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		// Проверяем контекст
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}

		if err != nil {
			// Логируем ошибку, но продолжаем
			s.logger.Warn("не удалось прочитать", "path", path, "error", err)
			return nil
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			if !s.recursive || skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		// Пропускаем macOS metadata файлы (начинаются с ._*)
		name := d.Name()
		if len(name) >= 2 && name[0] == '.' && name[1] == '_' {
			return nil
		}

		if config.IsSourceFile(path) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка обхода %s: %w", root, err)
	}

	sort.Strings(found)
	return found, nil
}

// skipDir - скрытые директории и директории с результатами.
func skipDir(name string) bool {
	return name == config.ResultDirName || (len(name) > 0 && name[0] == '.')
}

/*
Возможные расширения:
- Добавить поддержку glob-паттернов для фильтрации
- Добавить поддержку exclude-паттернов
*/
