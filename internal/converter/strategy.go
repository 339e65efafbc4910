package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/artemshloyda/webp2gif/internal/bridge"
	"github.com/artemshloyda/webp2gif/internal/capability"
	"github.com/artemshloyda/webp2gif/internal/codec"
	"github.com/artemshloyda/webp2gif/internal/config"
)

// ErrNotApplicable возвращается стратегией, которая не берётся за этот файл.
// Каскад переходит к следующей стратегии, не считая это ошибкой.
var ErrNotApplicable = errors.New("стратегия не применима к файлу")

// Strategy - один способ конвертации.
type Strategy interface {
	// Kind возвращает имя стратегии (external, library, native).
	Kind() string

	// Applicable сообщает, можно ли использовать стратегию в этом пакете.
	Applicable(av capability.Availability) bool

	// Attempt пытается записать task.OutputPath.
	Attempt(ctx context.Context, task *Task) error
}

// LibraryStrategy декодирует WebP в PNG промежуточным декодером
// и перекодирует PNG в одиночный GIF.
type LibraryStrategy struct {
	decoder bridge.Decoder
	adapter *codec.Adapter
	logger  *slog.Logger
}

// NewLibraryStrategy создаёт LibraryStrategy. decoder может быть nil (стратегия недоступна).
func NewLibraryStrategy(decoder bridge.Decoder, adapter *codec.Adapter, logger *slog.Logger) *LibraryStrategy {
	return &LibraryStrategy{decoder: decoder, adapter: adapter, logger: logger}
}

// Kind возвращает имя стратегии.
func (s *LibraryStrategy) Kind() string {
	return config.StrategyLibrary
}

// Applicable - промежуточный декодер найден.
func (s *LibraryStrategy) Applicable(av capability.Availability) bool {
	return av.LibraryBridge && s.decoder != nil
}

// TempPath возвращает путь временного PNG: result/temp_<base>.png.
func TempPath(task *Task) string {
	base := filepath.Base(task.SourcePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(task.OutputPath), "temp_"+base+".png")
}

// Attempt выполняет декодирование в PNG и перекодирование.
// Временный файл удаляется при любом исходе.
func (s *LibraryStrategy) Attempt(ctx context.Context, task *Task) error {
	animated, err := codec.IsAnimatedFile(task.SourcePath)
	if err == nil && animated {
		s.logger.Debug("анимация не проходит через промежуточный PNG, пропуск", "backend", s.decoder.Name())
		return ErrNotApplicable
	}

	tmp := TempPath(task)
	defer func() {
		if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("не удалось удалить временный файл", "path", tmp, "error", err)
		}
	}()

	s.logger.Debug("декодирование во временный PNG", "backend", s.decoder.Name(), "tmp", tmp)

	if err := s.decoder.DecodeToPNG(ctx, task.SourcePath, tmp); err != nil {
		return newError(KindLibraryBridgeDecodeFailed, task.SourcePath, err)
	}
	if err := codec.VerifyOutput(tmp); err != nil {
		return newError(KindLibraryBridgeDecodeFailed, task.SourcePath, fmt.Errorf("%s не создал PNG: %w", s.decoder.Name(), err))
	}

	if err := s.adapter.ReencodeStatic(tmp, task.OutputPath); err != nil {
		return newError(KindLibraryBridgeEncodeFailed, task.SourcePath, err)
	}
	if err := codec.VerifyOutput(task.OutputPath); err != nil {
		return newError(KindLibraryBridgeEncodeFailed, task.SourcePath, fmt.Errorf("PNG декодирован, но GIF не записан: %w", err))
	}

	return nil
}

// NativeStrategy декодирует WebP встроенным демультиплексором и кодирует GIF.
type NativeStrategy struct {
	adapter *codec.Adapter
	logger  *slog.Logger
}

// NewNativeStrategy создаёт NativeStrategy.
func NewNativeStrategy(adapter *codec.Adapter, logger *slog.Logger) *NativeStrategy {
	return &NativeStrategy{adapter: adapter, logger: logger}
}

// Kind возвращает имя стратегии.
func (s *NativeStrategy) Kind() string {
	return config.StrategyNative
}

// Applicable - встроенный декодер доступен всегда.
func (s *NativeStrategy) Applicable(capability.Availability) bool {
	return true
}

// Attempt декодирует все кадры и пишет GIF.
// Ошибка любого кадра отменяет запись целиком.
func (s *NativeStrategy) Attempt(ctx context.Context, task *Task) error {
	decoded, err := s.adapter.Decode(ctx, task.SourcePath)
	if err != nil {
		return newError(KindFrameReadFailed, task.SourcePath, err)
	}

	saveKind := KindStaticSaveFailed
	if decoded.Animated {
		saveKind = KindAnimatedSaveFailed
	}
	s.logger.Debug("файл декодирован", "animated", decoded.Animated, "frames", len(decoded.Frames))

	if err := s.adapter.WriteGIF(decoded, task.OutputPath); err != nil {
		return newError(saveKind, task.SourcePath, err)
	}
	if err := codec.VerifyOutput(task.OutputPath); err != nil {
		return newError(saveKind, task.SourcePath, err)
	}

	task.Note("кадров: %d", len(decoded.Frames))
	return nil
}
