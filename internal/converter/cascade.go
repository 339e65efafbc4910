// Package converter выбирает и выполняет стратегию конвертации WebP в GIF.
package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/artemshloyda/webp2gif/internal/bridge"
	"github.com/artemshloyda/webp2gif/internal/capability"
	"github.com/artemshloyda/webp2gif/internal/codec"
	"github.com/artemshloyda/webp2gif/internal/config"
)

// Cascade перебирает стратегии по порядку до первого проверенного успеха.
type Cascade struct {
	build  func(av capability.Availability) []Strategy
	logger *slog.Logger
}

// NewCascade создаёт каскад из включённых в конфигурации стратегий.
// Порядок всегда external → library → native.
func NewCascade(cfg *config.Config, logger *slog.Logger) *Cascade {
	if logger == nil {
		logger = slog.Default()
	}
	adapter := codec.NewAdapter(cfg.DefaultDurationMS, logger)
	adapter.SetMaxPixels(cfg.MaxPixels)

	build := func(av capability.Availability) []Strategy {
		var list []Strategy
		if cfg.StrategyEnabled(config.StrategyExternal) {
			list = append(list, NewExternalStrategy(av.FFmpeg.Path, cfg.TranscoderTimeout, logger))
		}
		if cfg.StrategyEnabled(config.StrategyLibrary) {
			decoder, err := bridge.New(av, cfg.TranscoderTimeout, logger)
			if err != nil {
				logger.Debug("промежуточный декодер не выбран", "backend", av.BridgeBackend, "error", err)
			}
			list = append(list, NewLibraryStrategy(decoder, adapter, logger))
		}
		if cfg.StrategyEnabled(config.StrategyNative) {
			list = append(list, NewNativeStrategy(adapter, logger))
		}
		return list
	}

	return &Cascade{build: build, logger: logger}
}

// NewCascadeWith создаёт каскад с фиксированным списком стратегий.
func NewCascadeWith(strategies []Strategy, logger *slog.Logger) *Cascade {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cascade{
		build:  func(capability.Availability) []Strategy { return strategies },
		logger: logger,
	}
}

// Convert конвертирует один файл. Никогда не паникует и не возвращает nil.
func (c *Cascade) Convert(ctx context.Context, path string, av capability.Availability) *Task {
	task := NewTask(path)
	logger := c.logger.With("file", filepath.Base(path))

	if err := preflight(task); err != nil {
		task.fail(err)
		logger.Debug("файл не может быть обработан", "kind", KindOf(err), "error", err)
		return task
	}

	c.sniff(task, logger)

	var lastErr error
	for _, s := range c.build(av) {
		if !s.Applicable(av) {
			logger.Debug("стратегия недоступна", "strategy", s.Kind())
			if lastErr == nil {
				lastErr = unavailableError(s.Kind(), path)
			}
			continue
		}

		removeStale(task.OutputPath, logger)
		logger.Info("попытка конвертации", "strategy", s.Kind())

		err := c.attempt(ctx, s, task, logger)
		if errors.Is(err, ErrNotApplicable) {
			continue
		}
		if err == nil {
			if verr := codec.VerifyOutput(task.OutputPath); verr != nil {
				err = newError(verifyKind(s.Kind()), path, verr)
			}
		}
		if err == nil {
			task.succeed(s.Kind())
			logger.Info("конвертация успешна", "strategy", s.Kind(), "output", task.OutputPath)
			return task
		}

		logger.Warn("стратегия не сработала", "strategy", s.Kind(), "kind", KindOf(err), "error", err)
		task.Note("%s: %v", s.Kind(), err)
		lastErr = err
	}

	removeStale(task.OutputPath, logger)
	if lastErr == nil {
		lastErr = newError(KindUnhandledException, path, errors.New("нет ни одной стратегии"))
	}
	task.fail(lastErr)
	logger.Debug("не удалось конвертировать файл", "kind", KindOf(lastErr), "error", lastErr)
	return task
}

// attempt вызывает стратегию и превращает панику в ошибку.
func (c *Cascade) attempt(ctx context.Context, s Strategy, task *Task, logger *slog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debug("паника в стратегии", "strategy", s.Kind(), "stack", string(debug.Stack()))
			err = newError(KindUnhandledException, task.SourcePath, fmt.Errorf("паника в стратегии %s: %v", s.Kind(), r))
		}
	}()
	return s.Attempt(ctx, task)
}

// preflight проверяет исходный файл и создаёт директорию результата.
func preflight(task *Task) error {
	info, err := os.Stat(task.SourcePath)
	if err != nil {
		return newError(KindMissingFile, task.SourcePath, err)
	}
	if info.IsDir() {
		return newError(KindMissingFile, task.SourcePath, errors.New("путь является директорией"))
	}
	if info.Size() == 0 {
		return newError(KindEmptyFile, task.SourcePath, errors.New("файл пуст"))
	}

	dir := filepath.Dir(task.OutputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return newError(KindOutputDirError, task.SourcePath, fmt.Errorf("не удалось создать %s: %w", dir, err))
	}
	return nil
}

// sniff проверяет MIME-тип по содержимому. Несовпадение только логируется.
func (c *Cascade) sniff(task *Task, logger *slog.Logger) {
	mtype, err := mimetype.DetectFile(task.SourcePath)
	if err != nil {
		logger.Debug("не удалось определить MIME-тип", "error", err)
		return
	}

	mime := mtype.String()
	logger.Debug("MIME-тип", "mime", mime)
	if !strings.Contains(mime, "webp") && !strings.Contains(mime, "image") {
		logger.Warn("содержимое не похоже на изображение", "kind", KindMimeMismatch, "mime", mime)
		task.Note("%s: %s", KindMimeMismatch, mime)
	}
}

// removeStale удаляет результат предыдущей попытки.
func removeStale(path string, logger *slog.Logger) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("не удалось удалить старый результат", "path", path, "error", err)
	}
}

func unavailableError(kind, path string) error {
	switch kind {
	case config.StrategyExternal:
		return newError(KindExternalToolUnavailable, path, errors.New("ffmpeg недоступен"))
	case config.StrategyLibrary:
		return newError(KindLibraryBridgeDecodeFailed, path, bridge.ErrUnavailable)
	default:
		return newError(KindUnhandledException, path, fmt.Errorf("стратегия %s недоступна", kind))
	}
}

func verifyKind(kind string) Kind {
	switch kind {
	case config.StrategyExternal:
		return KindExternalToolFailed
	case config.StrategyLibrary:
		return KindLibraryBridgeEncodeFailed
	default:
		return KindStaticSaveFailed
	}
}
