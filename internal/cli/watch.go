package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/artemshloyda/webp2gif/internal/watcher"
)

// newWatchCmd создаёт команду watch.
func (a *app) newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <директории...>",
		Short: "Конвертировать новые WebP файлы по мере появления",
		Long: `Следит за директориями и конвертирует каждый новый .webp файл
отдельным пакетом после того, как запись в него закончилась.
Остановка - Ctrl+C.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runWatch(cmd.Context(), args)
		},
	}
}

// runWatch обрабатывает файлы из watcher до отмены контекста.
func (a *app) runWatch(ctx context.Context, dirs []string) error {
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("директория недоступна: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s не является директорией", dir)
		}
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	w, err := watcher.New(a.cfg.Recursive, a.cfg.WatchDebounce, a.logger)
	if err != nil {
		return err
	}

	files, err := w.Watch(ctx, dirs...)
	if err != nil {
		return err
	}
	a.logger.Info("слежение запущено", "dirs", dirs, "recursive", a.cfg.Recursive)

	failed := 0
	for path := range files {
		summary, err := a.runBatch(ctx, store, []string{path}, false)
		if err != nil {
			a.logger.Error("пакет не выполнен", "file", path, "error", err)
			continue
		}
		failed += summary.Failed
		if summary.Success > 0 {
			a.logger.Info("сконвертирован", "file", path)
		}
	}

	a.logger.Info("слежение остановлено", "failed", failed)
	return nil
}
