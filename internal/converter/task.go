package converter

import (
	"fmt"

	"github.com/artemshloyda/webp2gif/internal/config"
)

// Status - состояние задачи.
type Status string

// Состояния задачи.
const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Task - конвертация одного файла.
type Task struct {
	// SourcePath - исходный WebP.
	SourcePath string

	// OutputPath - <dir>/result/<base>.gif.
	OutputPath string

	// Strategy - стратегия, давшая результат (пусто до успеха).
	Strategy string

	// Status - текущее состояние.
	Status Status

	// Messages - диагностические сообщения по ходу обработки.
	Messages []string

	// Err - последняя ошибка (для Status == failed).
	Err error
}

// NewTask создаёт задачу для исходного файла.
func NewTask(srcPath string) *Task {
	return &Task{
		SourcePath: srcPath,
		OutputPath: config.OutputPath(srcPath),
		Status:     StatusPending,
	}
}

// Note добавляет сообщение в задачу.
func (t *Task) Note(format string, args ...any) {
	t.Messages = append(t.Messages, fmt.Sprintf(format, args...))
}

// succeed фиксирует успех. Стратегия записывается один раз.
func (t *Task) succeed(kind string) {
	if t.Strategy == "" {
		t.Strategy = kind
	}
	t.Status = StatusSuccess
	t.Err = nil
}

// fail фиксирует неудачу.
func (t *Task) fail(err error) {
	t.Status = StatusFailed
	t.Err = err
}
