package codec

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"

	"github.com/disintegration/imaging"
)

// Adapter - полный цикл: декодирование WebP, сведение на белый и запись GIF.
type Adapter struct {
	decoder *Decoder
	logger  *slog.Logger
}

// NewAdapter создаёт Adapter.
func NewAdapter(defaultDurationMS int, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		decoder: NewDecoder(defaultDurationMS, logger),
		logger:  logger,
	}
}

// SetMaxPixels задаёт предел площади изображения (n <= 0 оставляет текущий).
func (a *Adapter) SetMaxPixels(n int64) {
	if n > 0 {
		a.decoder.MaxPixels = n
	}
}

// Decode декодирует файл WebP.
func (a *Adapter) Decode(ctx context.Context, path string) (*Decoded, error) {
	return a.decoder.DecodeFile(ctx, path)
}

// WriteGIF сводит кадры на белый фон и пишет GIF в dst.
// Анимированный результат получает все кадры, статический - только первый.
func (a *Adapter) WriteGIF(d *Decoded, dst string) error {
	if d == nil || len(d.Frames) == 0 {
		return ErrNoFrames
	}

	if d.Animated {
		frames := Composite(d.Frames)
		if err := WriteFile(dst, func(w io.Writer) error { return EncodeAnimated(w, frames) }); err != nil {
			return err
		}
		a.logger.Debug("анимированный GIF записан", "path", dst, "frames", len(frames))
		return nil
	}

	flat := Flatten(d.Frames[0].Image)
	if err := WriteFile(dst, func(w io.Writer) error { return EncodeStatic(w, flat) }); err != nil {
		return err
	}
	a.logger.Debug("статический GIF записан", "path", dst)
	return nil
}

// ReencodeStatic открывает растровый файл (промежуточный PNG) и пишет одиночный GIF.
func (a *Adapter) ReencodeStatic(src, dst string) error {
	img, err := imaging.Open(src)
	if err != nil {
		return fmt.Errorf("не удалось открыть %s: %w", src, err)
	}
	return a.WriteImage(img, dst)
}

// WriteImage сводит изображение на белый фон и пишет одиночный GIF.
func (a *Adapter) WriteImage(img image.Image, dst string) error {
	flat := Flatten(img)
	return WriteFile(dst, func(w io.Writer) error { return EncodeStatic(w, flat) })
}
