package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/artemshloyda/webp2gif/internal/engine"
	"github.com/artemshloyda/webp2gif/internal/logging"
	"github.com/artemshloyda/webp2gif/internal/progress"
	"github.com/artemshloyda/webp2gif/internal/scanner"
	"github.com/artemshloyda/webp2gif/internal/storage"
)

// ErrBatchAborted - пакет не дошёл до итогов.
var ErrBatchAborted = errors.New("пакет прерван до завершения")

// newConvertCmd создаёт команду convert.
func (a *app) newConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <пути...>",
		Short: "Конвертировать файлы и директории",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConvert(cmd.Context(), args)
		},
	}
}

// runConvert раскрывает аргументы и обрабатывает их одним пакетом.
func (a *app) runConvert(ctx context.Context, args []string) error {
	startTime := time.Now()

	files, err := scanner.New(a.cfg.Recursive, a.logger).Expand(ctx, args)
	if err != nil {
		return err
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	summary, err := a.runBatch(ctx, store, files, !a.cfg.NoProgress && logging.IsTerminal(a.stderr))
	if err != nil {
		return err
	}

	a.logger.Info("готово",
		"success", summary.Success,
		"failed", summary.Failed,
		"ignored", summary.Ignored,
		"skipped", summary.Skipped,
		"duration", time.Since(startTime).Round(time.Millisecond),
	)

	if summary.Failed > 0 {
		return fmt.Errorf("завершено с %d ошибками", summary.Failed)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// openStore открывает историю, если она не отключена.
func (a *app) openStore(ctx context.Context) (*storage.Storage, error) {
	if a.cfg.NoHistory {
		return nil, nil
	}

	store, err := storage.New(a.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("не удалось инициализировать историю: %w", err)
	}

	// Закрываем запуски, прерванные аварийно
	cleaned, err := store.CleanupInProgress(ctx)
	if err != nil {
		a.logger.Warn("не удалось очистить незавершённые запуски", "error", err)
	} else if cleaned > 0 {
		a.logger.Info("незавершённые запуски помечены как прерванные", "count", cleaned)
	}

	return store, nil
}

// runBatch запускает движок с логом запуска и выводит события.
func (a *app) runBatch(ctx context.Context, store *storage.Storage, files []string, showProgress bool) (engine.Summary, error) {
	runFile, err := logging.OpenRunFile(a.cfg.LogDir, time.Now())
	if err != nil {
		return engine.Summary{}, err
	}
	defer func() { _ = runFile.Close() }()

	a.logger.Debug("лог запуска", "path", runFile.Path)
	slog.New(runFile.Handler()).Info("конфигурация",
		"bridge", a.cfg.Bridge,
		"strategies", a.cfg.Strategies,
		"timeout", a.cfg.TranscoderTimeout,
	)

	opts := engine.Options{Config: a.cfg, FileHandler: runFile.Handler()}
	if store != nil {
		opts.Recorder = store
	}

	bar := progress.New(progress.Options{Disabled: !showProgress, Writer: a.stderr})
	events := engine.New(opts).Start(ctx, engine.Job{Files: files, Debug: a.cfg.Debug})

	return drain(events, bar)
}

// drain выводит события до закрытия канала и возвращает итоги.
func drain(events <-chan engine.Event, bar *progress.Bar) (engine.Summary, error) {
	var (
		summary  engine.Summary
		finished bool
	)

	for ev := range events {
		switch ev.Kind {
		case engine.EventProgress:
			bar.Set(ev.Percent)
		case engine.EventLog, engine.EventError:
			bar.WriteMessage("%s\n", ev.String())
		case engine.EventFinished:
			summary = ev.Summary
			finished = true
		}
	}
	bar.Finish()

	if !finished {
		return summary, ErrBatchAborted
	}
	return summary, nil
}
