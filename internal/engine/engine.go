// Package engine обрабатывает пакет файлов в одной фоновой горутине
// и сообщает о ходе работы через канал событий.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"

	"github.com/artemshloyda/webp2gif/internal/capability"
	"github.com/artemshloyda/webp2gif/internal/config"
	"github.com/artemshloyda/webp2gif/internal/converter"
	"github.com/artemshloyda/webp2gif/internal/logging"
)

// eventBuffer - ёмкость канала, который возвращает Start.
const eventBuffer = 64

// Job - пакет на обработку.
type Job struct {
	// Files - входные пути в порядке обработки.
	Files []string

	// Debug - пропускать все записи лога в события.
	Debug bool
}

// Prober проверяет доступность инструментов.
type Prober interface {
	Probe(ctx context.Context) capability.Availability
}

// Converter конвертирует один файл.
type Converter interface {
	Convert(ctx context.Context, path string, av capability.Availability) *converter.Task
}

// Recorder сохраняет историю запусков.
type Recorder interface {
	// BeginRun открывает запись о запуске и возвращает её идентификатор.
	BeginRun(ctx context.Context, files int, debug bool) (string, error)

	// RecordTask сохраняет итог по одному файлу.
	RecordTask(ctx context.Context, runID string, task *converter.Task) error

	// FinishRun закрывает запись о запуске.
	FinishRun(ctx context.Context, runID string, success, failed, skipped int) error
}

// Options - зависимости движка. Пустые поля заполняются по умолчанию из Config.
type Options struct {
	// Config - конфигурация.
	Config *config.Config

	// FileHandler - обработчик файла лога запуска (может быть nil).
	FileHandler slog.Handler

	// NewProber создаёт Prober с логгером запуска.
	NewProber func(logger *slog.Logger) Prober

	// NewConverter создаёт Converter с логгером запуска.
	NewConverter func(logger *slog.Logger) Converter

	// Recorder - история (может быть nil).
	Recorder Recorder
}

// Engine - движок пакетной конвертации.
type Engine struct {
	fileHandler  slog.Handler
	newProber    func(*slog.Logger) Prober
	newConverter func(*slog.Logger) Converter
	recorder     Recorder
}

// New создаёт Engine.
func New(opts Options) *Engine {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	e := &Engine{
		fileHandler:  opts.FileHandler,
		newProber:    opts.NewProber,
		newConverter: opts.NewConverter,
		recorder:     opts.Recorder,
	}
	if e.newProber == nil {
		e.newProber = func(logger *slog.Logger) Prober {
			return capability.NewProber(capability.OptionsFromConfig(cfg), logger)
		}
	}
	if e.newConverter == nil {
		e.newConverter = func(logger *slog.Logger) Converter {
			return converter.NewCascade(cfg, logger)
		}
	}
	return e
}

// Start запускает пакет в фоновой горутине.
// Канал закрывается после последнего события; читать его нужно до закрытия.
func (e *Engine) Start(ctx context.Context, job Job) <-chan Event {
	out := make(chan Event, eventBuffer)
	go func() {
		defer close(out)
		_, _ = e.Run(ctx, job, out)
	}()
	return out
}

// Run обрабатывает пакет в текущей горутине, отправляя события в out.
// Ошибка возвращается только при сбое подготовки пакета или панике вне цикла по файлам;
// в этих случаях событие EventFinished не отправляется.
func (e *Engine) Run(ctx context.Context, job Job, out chan<- Event) (summary Summary, err error) {
	emit := func(ev Event) { out <- ev }
	logger := slog.New(logging.Tee(e.fileHandler, NewReporter(job.Debug, emit)))
	// Ошибка файла уходит вызывающей стороне событием EventError,
	// а в лог запуска пишется напрямую, чтобы не дублировать её в EventLog.
	fileLog := slog.New(logging.Tee(e.fileHandler))

	defer func() {
		if r := recover(); r != nil {
			logger.Debug("паника в движке", "stack", string(debug.Stack()))
			err = fmt.Errorf("%s: %v", converter.KindUnhandledException, r)
			emit(Event{Kind: EventError, Text: fmt.Sprintf("непредвиденная ошибка: %v", r)})
		}
	}()

	var runID string
	if e.recorder != nil {
		runID, err = e.recorder.BeginRun(ctx, len(job.Files), job.Debug)
		if err != nil {
			err = fmt.Errorf("не удалось начать запись истории: %w", err)
			emit(Event{Kind: EventError, Text: err.Error()})
			return summary, err
		}
	}

	logger.Info("начало обработки", "files", len(job.Files), "debug", job.Debug, "run", runID)

	av := e.newProber(logger).Probe(ctx)
	conv := e.newConverter(logger)

	total := len(job.Files)
	for i, path := range job.Files {
		if ctx.Err() != nil {
			summary.Skipped = e.skipRemaining(ctx, runID, job.Files[i:], logger)
			logger.Warn("обработка прервана", "skipped", summary.Skipped, "error", ctx.Err())
			break
		}

		if !config.IsSourceFile(path) {
			summary.Ignored++
			logger.Warn("файл пропущен: расширение не .webp", "file", path)
		} else {
			task := e.convertOne(ctx, conv, path, av, logger)
			switch task.Status {
			case converter.StatusSuccess:
				summary.Success++
			default:
				summary.Failed++
				fileLog.Error("не удалось конвертировать файл", "file", path, "kind", converter.KindOf(task.Err), "error", task.Err)
				emit(Event{Kind: EventError, Text: fmt.Sprintf("%s: %v", filepath.Base(path), task.Err)})
			}
			e.record(ctx, runID, task, logger)
		}

		emit(Event{Kind: EventProgress, Percent: Percent(i+1, total)})
	}
	if total == 0 {
		emit(Event{Kind: EventProgress, Percent: 100})
	}

	summary.Total = summary.Success + summary.Failed
	logger.Info("конвертация завершена: "+summary.String(),
		SummaryKey, true,
		"success", summary.Success,
		"failed", summary.Failed,
		"total", summary.Total,
	)

	if e.recorder != nil {
		if ferr := e.recorder.FinishRun(context.WithoutCancel(ctx), runID, summary.Success, summary.Failed, summary.Skipped); ferr != nil {
			logger.Warn("не удалось сохранить итоги запуска", "error", ferr)
		}
	}

	emit(Event{Kind: EventFinished, Summary: summary})
	return summary, nil
}

// convertOne - граница одного файла: паника превращается в UnhandledException.
func (e *Engine) convertOne(ctx context.Context, conv Converter, path string, av capability.Availability, logger *slog.Logger) (task *converter.Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debug("паника при обработке файла", "file", path, "stack", string(debug.Stack()))
			task = converter.NewTask(path)
			task.Status = converter.StatusFailed
			task.Err = &converter.ConversionError{
				Kind: converter.KindUnhandledException,
				Path: path,
				Err:  fmt.Errorf("паника: %v", r),
			}
			logger.Debug("непредвиденная ошибка при обработке файла", "file", path, "error", task.Err)
		}
	}()

	task = conv.Convert(ctx, path, av)
	if task == nil {
		panic(errors.New("конвертер вернул nil"))
	}
	return task
}

// skipRemaining помечает оставшиеся .webp как пропущенные.
func (e *Engine) skipRemaining(ctx context.Context, runID string, files []string, logger *slog.Logger) int {
	skipped := 0
	for _, path := range files {
		if !config.IsSourceFile(path) {
			continue
		}
		task := converter.NewTask(path)
		task.Status = converter.StatusSkipped
		task.Err = ctx.Err()
		e.record(ctx, runID, task, logger)
		skipped++
	}
	return skipped
}

func (e *Engine) record(ctx context.Context, runID string, task *converter.Task, logger *slog.Logger) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordTask(context.WithoutCancel(ctx), runID, task); err != nil {
		logger.Warn("не удалось записать историю", "file", task.SourcePath, "error", err)
	}
}
