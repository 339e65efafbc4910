package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/artemshloyda/webp2gif/internal/capability"
	"github.com/artemshloyda/webp2gif/internal/codec"
	"github.com/artemshloyda/webp2gif/internal/config"
	"github.com/artemshloyda/webp2gif/internal/execx"
)

// ErrToolLied - инструмент завершился с кодом 0, но не создал файл.
var ErrToolLied = errors.New("инструмент завершился успешно, но выходной файл отсутствует или пуст")

// ExternalStrategy конвертирует через внешний ffmpeg.
type ExternalStrategy struct {
	// path - путь к ffmpeg.
	path string

	// timeout - таймаут на конвертацию одного файла (0 = без таймаута).
	timeout time.Duration

	logger *slog.Logger
}

// NewExternalStrategy создаёт ExternalStrategy.
func NewExternalStrategy(ffmpegPath string, timeout time.Duration, logger *slog.Logger) *ExternalStrategy {
	return &ExternalStrategy{path: ffmpegPath, timeout: timeout, logger: logger}
}

// Kind возвращает имя стратегии.
func (s *ExternalStrategy) Kind() string {
	return config.StrategyExternal
}

// Applicable - ffmpeg найден и отвечает на -version.
func (s *ExternalStrategy) Applicable(av capability.Availability) bool {
	return av.ExternalTranscoder && s.path != ""
}

// Attempt запускает "ffmpeg -y -i <src> <dst>".
func (s *ExternalStrategy) Attempt(ctx context.Context, task *Task) error {
	args := []string{"-y", "-i", task.SourcePath, task.OutputPath}
	s.logger.Debug("запуск ffmpeg", "cmd", execx.CommandLine(s.path, args...))

	res, err := execx.Run(ctx, s.timeout, s.path, args...)
	if res != nil {
		if res.Stdout != "" {
			s.logger.Debug("stdout ffmpeg", "output", res.Stdout)
		}
		if res.Stderr != "" {
			s.logger.Debug("stderr ffmpeg", "output", res.Stderr)
		}
	}
	if err != nil {
		return newError(KindExternalToolFailed, task.SourcePath, err)
	}

	if err := codec.VerifyOutput(task.OutputPath); err != nil {
		return newError(KindExternalToolFailed, task.SourcePath, fmt.Errorf("%w (%s)", ErrToolLied, res.Duration.Round(time.Millisecond)))
	}

	return nil
}

/*
Возможные расширения:
- Фильтр палитры ffmpeg (palettegen/paletteuse) для лучшего качества
- Повтор при временных ошибках
*/
