// Package logging собирает slog-обработчики утилиты: файл лога запуска,
// в который пишется всё, и цветной консольный вывод.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// RunFile - файл лога одного запуска.
type RunFile struct {
	// Path - путь к файлу лога.
	Path string

	file    *os.File
	handler slog.Handler
}

// RunFileName возвращает имя файла лога для момента запуска.
func RunFileName(now time.Time) string {
	return fmt.Sprintf("webp2gif_%s.log", now.Format("20060102_150405"))
}

// OpenRunFile создаёт файл лога запуска в dir.
// Уровень всегда debug: файл получает все записи независимо от флага --debug.
func OpenRunFile(dir string, now time.Time) (*RunFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию логов %s: %w", dir, err)
	}

	path := filepath.Join(dir, RunFileName(now))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть файл лога %s: %w", path, err)
	}

	handler := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.TimeKey && attr.Value.Kind() == slog.KindTime {
				attr.Value = slog.StringValue(attr.Value.Time().Format("2006-01-02 15:04:05.000"))
			}
			return attr
		},
	})

	return &RunFile{Path: path, file: file, handler: handler}, nil
}

// Handler возвращает обработчик, пишущий в файл.
func (r *RunFile) Handler() slog.Handler {
	if r == nil {
		return nil
	}
	return r.handler
}

// Close закрывает файл лога.
func (r *RunFile) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	return r.file.Close()
}

// NewConsoleHandler создаёт консольный обработчик на базе tint.
// Цвет включается только для терминала.
func NewConsoleHandler(w io.Writer, level slog.Level) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    !IsTerminal(w),
	})
}

// IsTerminal проверяет, что w - терминал.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
