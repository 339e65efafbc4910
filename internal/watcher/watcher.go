// Package watcher следит за директориями и сообщает о новых WebP файлах.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/artemshloyda/webp2gif/internal/config"
	"github.com/artemshloyda/webp2gif/internal/logging"
)

// Watcher следит за директориями и отправляет готовые файлы в канал.
type Watcher struct {
	// watcher - fsnotify watcher.
	watcher *fsnotify.Watcher

	// recursive - следить за поддиректориями.
	recursive bool

	// debounceTime - время тишины после последней записи,
	// после которого файл считается записанным.
	debounceTime time.Duration

	// pending - файлы, ожидающие обработки (для debounce).
	pending map[string]time.Time
	mu      sync.Mutex

	logger *slog.Logger
}

// New создаёт новый Watcher.
func New(recursive bool, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("не удалось создать watcher: %w", err)
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &Watcher{
		watcher:      w,
		recursive:    recursive,
		debounceTime: debounce,
		pending:      make(map[string]time.Time),
		logger:       logger,
	}, nil
}

// Watch начинает слежение за dirs. Канал закрывается при отмене ctx.
func (w *Watcher) Watch(ctx context.Context, dirs ...string) (<-chan string, error) {
	for _, dir := range dirs {
		if err := w.add(dir); err != nil {
			_ = w.watcher.Close()
			return nil, err
		}
	}

	files := make(chan string, 100)
	go w.loop(ctx, files)
	return files, nil
}

// add добавляет директорию (и поддиректории в рекурсивном режиме).
func (w *Watcher) add(dir string) error {
	if !w.recursive {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("не удалось добавить директорию %s: %w", dir, err)
		}
		return nil
	}

	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("не удалось добавить директорию %s: %w", path, err)
		}
		return nil
	})
}

// loop обрабатывает события fsnotify и отдаёт файлы после debounce.
func (w *Watcher) loop(ctx context.Context, files chan<- string) {
	defer close(files)
	defer w.watcher.Close()

	ticker := time.NewTicker(tickInterval(w.debounceTime))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("ошибка watcher", "error", err)

		case now := <-ticker.C:
			for _, path := range w.ready(now) {
				select {
				case files <- path:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// handle регистрирует событие создания или записи.
func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}

	if info.IsDir() {
		// Новая директория - добавляем в watcher
		if w.recursive && event.Has(fsnotify.Create) && !skipDir(info.Name()) {
			if err := w.watcher.Add(event.Name); err != nil {
				w.logger.Warn("не удалось добавить директорию", "dir", event.Name, "error", err)
			}
		}
		return
	}

	if !config.IsSourceFile(event.Name) {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

// ready возвращает файлы, по которым не было событий дольше debounceTime.
func (w *Watcher) ready(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []string
	for path, last := range w.pending {
		if now.Sub(last) < w.debounceTime {
			continue
		}
		delete(w.pending, path)
		if info, err := os.Stat(path); err != nil || info.Size() == 0 {
			continue
		}
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// Close закрывает watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func tickInterval(debounce time.Duration) time.Duration {
	tick := debounce / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	return tick
}

func skipDir(name string) bool {
	return name == config.ResultDirName || (len(name) > 0 && name[0] == '.')
}

/*
Возможные расширения:
- Обработка переименования файлов
- Ограничение частоты для большого количества файлов
*/
