package codec

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"io"
	"os"

	"github.com/ericpauley/go-quantize/quantize"
)

// maxPaletteSize - максимальный размер палитры GIF.
const maxPaletteSize = 256

// DelayCentiseconds переводит миллисекунды в сотые доли секунды GIF с округлением.
func DelayCentiseconds(ms int) int {
	if ms <= 0 {
		return 0
	}
	return (ms + 5) / 10
}

// EncodeAnimated пишет анимированный GIF: порядок кадров сохраняется,
// бесконечный повтор, восстановление фона после каждого кадра,
// собственная палитра у каждого кадра.
func EncodeAnimated(w io.Writer, frames []CompositedFrame) error {
	if len(frames) == 0 {
		return ErrNoFrames
	}

	g := &gif.GIF{
		Image:     make([]*image.Paletted, 0, len(frames)),
		Delay:     make([]int, 0, len(frames)),
		Disposal:  make([]byte, 0, len(frames)),
		LoopCount: 0,
	}

	for _, f := range frames {
		g.Image = append(g.Image, Quantize(f.Image))
		g.Delay = append(g.Delay, DelayCentiseconds(f.Duration))
		g.Disposal = append(g.Disposal, gif.DisposalBackground)
	}

	b := frames[0].Image.Bounds()
	g.Config = image.Config{Width: b.Dx(), Height: b.Dy()}

	if err := gif.EncodeAll(w, g); err != nil {
		return fmt.Errorf("ошибка кодирования GIF: %w", err)
	}
	return nil
}

// EncodeStatic пишет одиночный кадр GIF.
func EncodeStatic(w io.Writer, img image.Image) error {
	p := Quantize(img)
	if err := gif.Encode(w, p, &gif.Options{NumColors: len(p.Palette)}); err != nil {
		return fmt.Errorf("ошибка кодирования GIF: %w", err)
	}
	return nil
}

// Quantize строит палитру медианным сечением и переводит изображение
// в палитровое с дизерингом Флойда-Стейнберга.
func Quantize(img image.Image) *image.Paletted {
	b := img.Bounds()

	q := quantize.MedianCutQuantizer{}
	pal := q.Quantize(make(color.Palette, 0, maxPaletteSize), img)
	if len(pal) == 0 {
		pal = palette.Plan9
	}

	out := image.NewPaletted(b, pal)
	draw.FloydSteinberg.Draw(out, b, img, b.Min)
	return out
}

// WriteFile создаёт файл path и вызывает encode.
// При ошибке частично записанный файл удаляется.
func WriteFile(path string, encode func(w io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("не удалось создать %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	bw := bufio.NewWriter(f)
	if err := encode(bw); err != nil {
		_ = f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("ошибка записи %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("ошибка закрытия %s: %w", path, err)
	}
	return nil
}

// ErrEmptyOutput возвращается, если после записи файл отсутствует или пуст.
var ErrEmptyOutput = errors.New("выходной файл отсутствует или пуст")

// VerifyOutput проверяет, что файл существует и не пуст.
func VerifyOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmptyOutput, err)
	}
	if info.IsDir() || info.Size() == 0 {
		return ErrEmptyOutput
	}
	return nil
}
