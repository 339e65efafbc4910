package codec

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"os"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/webp"
)

// DefaultFrameDurationMS - длительность кадра, если в файле она нулевая.
const DefaultFrameDurationMS = 100

// headerDumpLen - сколько байт заголовка выводится в отладочный лог.
const headerDumpLen = 12

// DefaultMaxPixels - предел площади холста или кадра по умолчанию (около 89 Мпикс).
const DefaultMaxPixels int64 = 89_478_485

// animationBudget - во сколько раз суммарная площадь кадров анимации
// (холст × число кадров) может превышать MaxPixels.
const animationBudget = 3

// ErrNoFrames возвращается, если декодирование не дало ни одного кадра.
var ErrNoFrames = errors.New("не удалось получить ни одного кадра")

// ErrImageTooLarge возвращается до выделения памяти, если заявленный размер превышает предел.
var ErrImageTooLarge = errors.New("изображение превышает допустимый размер")

// FrameError описывает ошибку чтения конкретного кадра.
type FrameError struct {
	// Index - номер кадра (с нуля), -1 для ошибок контейнера.
	Index int

	// Err - исходная ошибка.
	Err error
}

func (e *FrameError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("ошибка чтения контейнера: %v", e.Err)
	}
	return fmt.Sprintf("ошибка чтения кадра #%d: %v", e.Index, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// FrameBuffer - собственная копия восстановленного холста для одного кадра.
type FrameBuffer struct {
	// Image - копия холста, не разделяемая с декодером.
	Image *image.RGBA

	// Duration - длительность кадра в миллисекундах.
	Duration int

	// Index - номер кадра.
	Index int
}

// Decoded - результат декодирования файла.
type Decoded struct {
	// Animated - файл анимирован.
	Animated bool

	// Width, Height - размер холста.
	Width, Height int

	// LoopCount - число повторов из файла (для диагностики; GIF всегда бесконечный).
	LoopCount uint16

	// Frames - кадры в порядке показа.
	Frames []FrameBuffer
}

// Decoder декодирует WebP в набор FrameBuffer.
type Decoder struct {
	// DefaultDuration - длительность кадра без метаданных, мс.
	DefaultDuration int

	// MaxPixels - предел площади холста и отдельного кадра.
	MaxPixels int64

	logger *slog.Logger
}

// NewDecoder создаёт Decoder.
func NewDecoder(defaultDurationMS int, logger *slog.Logger) *Decoder {
	if defaultDurationMS <= 0 {
		defaultDurationMS = DefaultFrameDurationMS
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{DefaultDuration: defaultDurationMS, MaxPixels: DefaultMaxPixels, logger: logger}
}

// DecodeFile читает и декодирует файл.
func (d *Decoder) DecodeFile(ctx context.Context, path string) (*Decoded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FrameError{Index: -1, Err: err}
	}
	return d.Decode(ctx, data)
}

// Decode декодирует содержимое файла WebP.
// Любая ошибка кадра прерывает декодирование всего файла.
func (d *Decoder) Decode(ctx context.Context, data []byte) (*Decoded, error) {
	d.logger.Debug("заголовок файла", "hex", hex.EncodeToString(data[:min(len(data), headerDumpLen)]))

	c, err := ParseContainer(data)
	if err != nil {
		return nil, &FrameError{Index: -1, Err: err}
	}

	if c.Extended {
		if err := d.checkSize(c.CanvasWidth, c.CanvasHeight, 1); err != nil {
			return nil, &FrameError{Index: -1, Err: err}
		}
	}

	if len(c.Frames) == 0 {
		return d.decodeStatic(data)
	}

	frames, err := d.reconstruct(ctx, c)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("анимация декодирована",
		"frames", len(frames),
		"canvas", fmt.Sprintf("%dx%d", c.CanvasWidth, c.CanvasHeight),
		"loop", c.LoopCount,
	)

	return &Decoded{
		Animated:  c.Animated(),
		Width:     c.CanvasWidth,
		Height:    c.CanvasHeight,
		LoopCount: c.LoopCount,
		Frames:    frames,
	}, nil
}

// decodeStatic декодирует файл без ANMF.
func (d *Decoder) decodeStatic(data []byte) (*Decoded, error) {
	if cfg, err := webp.DecodeConfig(bytes.NewReader(data)); err == nil {
		if err := d.checkSize(cfg.Width, cfg.Height, 1); err != nil {
			return nil, &FrameError{Index: -1, Err: err}
		}
	}

	img, err := nativewebp.DecodeIgnoreAlphaFlag(bytes.NewReader(data))
	if err != nil {
		return nil, &FrameError{Index: 0, Err: err}
	}

	rgba := toRGBA(img)
	b := rgba.Bounds()
	d.logger.Debug("статическое изображение декодировано", "size", fmt.Sprintf("%dx%d", b.Dx(), b.Dy()))

	return &Decoded{
		Width:  b.Dx(),
		Height: b.Dy(),
		Frames: []FrameBuffer{{Image: rgba, Duration: d.DefaultDuration}},
	}, nil
}

// reconstruct восстанавливает холст для каждого кадра ANMF.
func (d *Decoder) reconstruct(ctx context.Context, c *Container) ([]FrameBuffer, error) {
	width, height := c.CanvasWidth, c.CanvasHeight
	if width <= 0 || height <= 0 {
		for _, f := range c.Frames {
			width = max(width, f.X+f.Width)
			height = max(height, f.Y+f.Height)
		}
	}

	if err := d.checkSize(width, height, len(c.Frames)); err != nil {
		return nil, &FrameError{Index: -1, Err: err}
	}

	canvasRect := image.Rect(0, 0, width, height)
	canvas := image.NewRGBA(canvasRect)
	frames := make([]FrameBuffer, 0, len(c.Frames))

	var prev *RawFrame
	for i := range c.Frames {
		if err := ctx.Err(); err != nil {
			return nil, &FrameError{Index: i, Err: err}
		}

		f := &c.Frames[i]

		if prev != nil && prev.Dispose {
			draw.Draw(canvas, prev.rect().Intersect(canvasRect), image.Transparent, image.Point{}, draw.Src)
		}

		bitstream := f.Bitstream()
		if cfg, err := webp.DecodeConfig(bytes.NewReader(bitstream)); err == nil {
			if err := d.checkSize(cfg.Width, cfg.Height, 1); err != nil {
				return nil, &FrameError{Index: i, Err: err}
			}
		}

		img, err := webp.Decode(bytes.NewReader(bitstream))
		if err != nil {
			return nil, &FrameError{Index: i, Err: err}
		}

		op := draw.Src
		if f.Blend {
			op = draw.Over
		}
		draw.Draw(canvas, f.rect().Intersect(canvasRect), img, img.Bounds().Min, op)

		duration := f.DurationMS
		if duration <= 0 {
			duration = d.DefaultDuration
		}

		snapshot := image.NewRGBA(canvasRect)
		copy(snapshot.Pix, canvas.Pix)
		frames = append(frames, FrameBuffer{Image: snapshot, Duration: duration, Index: i})

		d.logger.Debug("кадр восстановлен",
			"index", i,
			"offset", fmt.Sprintf("%d,%d", f.X, f.Y),
			"size", fmt.Sprintf("%dx%d", f.Width, f.Height),
			"duration_ms", duration,
			"blend", f.Blend,
			"dispose", f.Dispose,
		)

		prev = f
	}

	if len(frames) == 0 {
		return nil, &FrameError{Index: -1, Err: ErrNoFrames}
	}

	return frames, nil
}

// checkSize сравнивает площадь width×height с MaxPixels.
// Для анимации из frames кадров допускается animationBudget×MaxPixels в сумме.
func (d *Decoder) checkSize(width, height, frames int) error {
	if d.MaxPixels <= 0 {
		return nil
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("некорректный размер %dx%d", width, height)
	}

	pixels := int64(width) * int64(height)
	if pixels > d.MaxPixels {
		return fmt.Errorf("%w: %dx%d (%d пикселей, предел %d)", ErrImageTooLarge, width, height, pixels, d.MaxPixels)
	}
	if frames > 1 && pixels*int64(frames) > d.MaxPixels*animationBudget {
		return fmt.Errorf("%w: %d кадров по %dx%d", ErrImageTooLarge, frames, width, height)
	}
	return nil
}

func (f *RawFrame) rect() image.Rectangle {
	return image.Rect(f.X, f.Y, f.X+f.Width, f.Y+f.Height)
}

// toRGBA копирует изображение в новый *image.RGBA с началом в (0,0).
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
