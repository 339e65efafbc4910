package engine

import (
	"fmt"
	"log/slog"
)

// EventKind - тип события.
type EventKind int

// Типы событий.
const (
	EventProgress EventKind = iota
	EventLog
	EventError
	EventFinished
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventLog:
		return "log"
	case EventError:
		return "error"
	case EventFinished:
		return "finished"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Summary - итоги пакета.
type Summary struct {
	// Success - успешно сконвертировано.
	Success int

	// Failed - не удалось сконвертировать.
	Failed int

	// Total - Success + Failed (пропущенные не входят).
	Total int

	// Ignored - входы без расширения .webp.
	Ignored int

	// Skipped - файлы, не обработанные из-за отмены.
	Skipped int
}

// String форматирует итог как в логе.
func (s Summary) String() string {
	return fmt.Sprintf("успешно: %d, ошибок: %d, всего: %d", s.Success, s.Failed, s.Total)
}

// Event - сообщение от движка вызывающей стороне.
type Event struct {
	// Kind - тип события.
	Kind EventKind

	// Percent - процент выполнения (для EventProgress).
	Percent int

	// Level - уровень записи (для EventLog).
	Level slog.Level

	// Text - текст (для EventLog и EventError).
	Text string

	// Summary - итоги (для EventFinished).
	Summary Summary
}

// String возвращает текстовое представление события.
func (e Event) String() string {
	switch e.Kind {
	case EventProgress:
		return FormatProgress(e.Percent)
	case EventLog:
		return fmt.Sprintf("[%s] %s", e.Level, e.Text)
	case EventError:
		return "[ERROR] " + e.Text
	case EventFinished:
		return e.Summary.String()
	default:
		return e.Kind.String()
	}
}

// FormatProgress форматирует процент выполнения.
func FormatProgress(percent int) string {
	return fmt.Sprintf("%d%%", percent)
}

// Percent вычисляет процент после обработки done из total входов.
func Percent(done, total int) int {
	if total <= 0 {
		return 100
	}
	return done * 100 / total
}
