// Package bridge декодирует WebP во временный PNG для промежуточной стратегии.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/HugoSmits86/nativewebp"
	"github.com/disintegration/imaging"

	"github.com/artemshloyda/webp2gif/internal/capability"
	"github.com/artemshloyda/webp2gif/internal/execx"
)

// ErrUnavailable возвращается, если бэкенд не выбран.
var ErrUnavailable = errors.New("промежуточный декодер недоступен")

// Decoder декодирует src (WebP) в dst (PNG).
type Decoder interface {
	// Name возвращает имя бэкенда.
	Name() string

	// DecodeToPNG пишет первый кадр src в dst.
	DecodeToPNG(ctx context.Context, src, dst string) error
}

// New выбирает бэкенд по результату проверки инструментов.
func New(av capability.Availability, timeout time.Duration, logger *slog.Logger) (Decoder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !av.LibraryBridge {
		return nil, ErrUnavailable
	}

	switch av.BridgeBackend {
	case capability.BackendDwebp:
		return &Dwebp{Path: av.Dwebp.Path, Timeout: timeout, logger: logger}, nil
	case capability.BackendImaging:
		return &Imaging{}, nil
	default:
		return nil, fmt.Errorf("%w: неизвестный бэкенд %q", ErrUnavailable, av.BridgeBackend)
	}
}

// Dwebp вызывает dwebp из libwebp.
type Dwebp struct {
	// Path - путь к бинарнику dwebp.
	Path string

	// Timeout - таймаут запуска (0 = без таймаута).
	Timeout time.Duration

	logger *slog.Logger
}

// Name возвращает имя бэкенда.
func (d *Dwebp) Name() string {
	return capability.BackendDwebp
}

// DecodeToPNG запускает "dwebp <src> -o <dst>".
func (d *Dwebp) DecodeToPNG(ctx context.Context, src, dst string) error {
	logger := d.logger
	if logger == nil {
		logger = slog.Default()
	}

	args := []string{src, "-o", dst}
	logger.Debug("запуск dwebp", "cmd", execx.CommandLine(d.Path, args...))

	res, err := execx.Run(ctx, d.Timeout, d.Path, args...)
	if res != nil && res.Stderr != "" {
		logger.Debug("вывод dwebp", "stderr", res.Stderr)
	}
	if err != nil {
		return fmt.Errorf("dwebp: %w", err)
	}
	return nil
}

// Imaging декодирует встроенными средствами через disintegration/imaging.
type Imaging struct{}

// Name возвращает имя бэкенда.
func (Imaging) Name() string {
	return capability.BackendImaging
}

// DecodeToPNG декодирует src через nativewebp и сохраняет результат через imaging
// (формат по расширению dst). Флаг альфы в VP8X игнорируется: некоторые
// кодировщики выставляют его для VP8L без прозрачности.
func (Imaging) DecodeToPNG(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("не удалось открыть %s: %w", src, err)
	}
	defer f.Close()

	img, err := nativewebp.DecodeIgnoreAlphaFlag(f)
	if err != nil {
		return fmt.Errorf("не удалось декодировать %s: %w", src, err)
	}
	if err := imaging.Save(img, dst); err != nil {
		return fmt.Errorf("не удалось сохранить %s: %w", dst, err)
	}
	return nil
}
