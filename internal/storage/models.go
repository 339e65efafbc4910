package storage

import "time"

// RunStatus определяет состояние запуска.
type RunStatus string

const (
	// RunInProgress - запуск выполняется.
	RunInProgress RunStatus = "in_progress"
	// RunFinished - запуск завершён.
	RunFinished RunStatus = "finished"
	// RunInterrupted - процесс завершился, не закрыв запуск.
	RunInterrupted RunStatus = "interrupted"
)

// Run представляет один запуск пакетной конвертации.
type Run struct {
	// ID - UUID запуска.
	ID string

	// StartedAt - время начала.
	StartedAt time.Time

	// FinishedAt - время завершения (nil, если не завершён).
	FinishedAt *time.Time

	// Files - число входов в пакете.
	Files int

	// Success, Failed, Skipped - итоги запуска.
	Success, Failed, Skipped int

	// Status - состояние.
	Status RunStatus
}

// Outcome - итог обработки одного файла.
type Outcome struct {
	// SrcPath - исходный файл.
	SrcPath string

	// DstPath - GIF.
	DstPath string

	// Strategy - стратегия, давшая результат.
	Strategy string

	// Status - success, failed или skipped.
	Status string

	// ErrorKind - категория ошибки.
	ErrorKind string

	// Error - текст ошибки.
	Error string
}

// Stats - агрегированная статистика по истории.
type Stats struct {
	// Runs - число запусков.
	Runs int64

	// Files - число записанных итогов.
	Files int64

	// Success, Failed, Skipped - разбивка по статусу.
	Success, Failed, Skipped int64

	// InputBytes - суммарный размер исходных файлов успешных конвертаций.
	InputBytes int64

	// OutputBytes - суммарный размер GIF.
	OutputBytes int64

	// ByStrategy - число успехов по стратегиям.
	ByStrategy map[string]int64

	// ByErrorKind - число ошибок по категориям.
	ByErrorKind map[string]int64
}

/*
Возможные расширения:
- Хранить длительность конвертации каждого файла
- Хранить версию ffmpeg/dwebp, использованную в запуске
*/
