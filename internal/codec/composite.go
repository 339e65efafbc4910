package codec

import (
	"image"
	"image/draw"
)

// CompositedFrame - кадр, сведённый на непрозрачный белый фон.
type CompositedFrame struct {
	// Image - непрозрачное изображение.
	Image *image.RGBA

	// Duration - длительность кадра в миллисекундах.
	Duration int
}

// Flatten накладывает изображение на новый белый холст того же размера.
func Flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Over)
	return out
}

// Composite сводит каждый кадр на свежий белый холст.
func Composite(frames []FrameBuffer) []CompositedFrame {
	out := make([]CompositedFrame, len(frames))
	for i, f := range frames {
		out[i] = CompositedFrame{Image: Flatten(f.Image), Duration: f.Duration}
	}
	return out
}
