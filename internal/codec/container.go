// Package codec разбирает контейнер WebP, восстанавливает кадры анимации
// и кодирует результат в GIF.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/image/riff"
)

var (
	fccWEBP = riff.FourCC{'W', 'E', 'B', 'P'}
	fccVP8X = riff.FourCC{'V', 'P', '8', 'X'}
	fccVP8  = riff.FourCC{'V', 'P', '8', ' '}
	fccVP8L = riff.FourCC{'V', 'P', '8', 'L'}
	fccALPH = riff.FourCC{'A', 'L', 'P', 'H'}
	fccANIM = riff.FourCC{'A', 'N', 'I', 'M'}
	fccANMF = riff.FourCC{'A', 'N', 'M', 'F'}
)

// Флаги VP8X.
const (
	flagAnimation = 1 << 1
	flagAlpha     = 1 << 4
)

// Флаги ANMF.
const (
	anmfDispose = 1 << 0
	anmfNoBlend = 1 << 1
)

// anmfHeaderLen - размер заголовка ANMF до вложенных чанков.
const anmfHeaderLen = 16

// ErrNotWebP возвращается, если файл не является RIFF/WEBP.
var ErrNotWebP = errors.New("файл не является WebP")

// Container - разобранная структура файла WebP.
type Container struct {
	// Extended - присутствует чанк VP8X.
	Extended bool

	// Flags - байт флагов VP8X.
	Flags byte

	// CanvasWidth, CanvasHeight - размер холста из VP8X.
	CanvasWidth, CanvasHeight int

	// LoopCount - число повторов из ANIM (0 = бесконечно).
	LoopCount uint16

	// Frames - кадры ANMF в порядке следования.
	Frames []RawFrame
}

// RawFrame - кадр ANMF до декодирования.
type RawFrame struct {
	// X, Y - смещение кадра на холсте (уже умноженное на 2).
	X, Y int

	// Width, Height - размер кадра.
	Width, Height int

	// DurationMS - длительность кадра из файла (может быть 0).
	DurationMS int

	// Dispose - очистить область кадра до фона перед следующим кадром.
	Dispose bool

	// Blend - накладывать кадр с учётом альфы (иначе перезаписывать).
	Blend bool

	alph []byte
	vp8  []byte
	vp8l []byte
}

// HasAnimationFlag сообщает, установлен ли флаг анимации в VP8X.
func (c *Container) HasAnimationFlag() bool {
	return c.Extended && c.Flags&flagAnimation != 0
}

// Animated - файл анимирован: флаг анимации и больше одного кадра.
func (c *Container) Animated() bool {
	return c.HasAnimationFlag() && len(c.Frames) > 1
}

// ParseContainer разбирает RIFF-контейнер WebP.
// Чанки изображения статического файла не копируются: их декодирует webp.Decode.
func ParseContainer(data []byte) (*Container, error) {
	formType, r, err := riff.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotWebP, err)
	}
	if formType != fccWEBP {
		return nil, ErrNotWebP
	}

	c := &Container{}
	for {
		id, length, chunk, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения чанка RIFF: %w", err)
		}

		switch id {
		case fccVP8X:
			var buf [10]byte
			if length != 10 {
				return nil, fmt.Errorf("некорректная длина VP8X: %d", length)
			}
			if _, err := io.ReadFull(chunk, buf[:]); err != nil {
				return nil, fmt.Errorf("ошибка чтения VP8X: %w", err)
			}
			c.Extended = true
			c.Flags = buf[0]
			c.CanvasWidth = int(uint24(buf[4:7])) + 1
			c.CanvasHeight = int(uint24(buf[7:10])) + 1

		case fccANIM:
			var buf [6]byte
			if _, err := io.ReadFull(chunk, buf[:]); err != nil {
				return nil, fmt.Errorf("ошибка чтения ANIM: %w", err)
			}
			c.LoopCount = binary.LittleEndian.Uint16(buf[4:6])

		case fccANMF:
			payload, err := io.ReadAll(chunk)
			if err != nil {
				return nil, fmt.Errorf("ошибка чтения ANMF #%d: %w", len(c.Frames), err)
			}
			frame, err := parseANMF(payload)
			if err != nil {
				return nil, fmt.Errorf("кадр #%d: %w", len(c.Frames), err)
			}
			c.Frames = append(c.Frames, frame)
		}
	}

	return c, nil
}

// parseANMF разбирает заголовок ANMF и вложенные чанки кадра.
func parseANMF(p []byte) (RawFrame, error) {
	if len(p) < anmfHeaderLen {
		return RawFrame{}, fmt.Errorf("заголовок ANMF слишком короткий: %d байт", len(p))
	}

	f := RawFrame{
		X:          int(uint24(p[0:3])) * 2,
		Y:          int(uint24(p[3:6])) * 2,
		Width:      int(uint24(p[6:9])) + 1,
		Height:     int(uint24(p[9:12])) + 1,
		DurationMS: int(uint24(p[12:15])),
		Dispose:    p[15]&anmfDispose != 0,
		Blend:      p[15]&anmfNoBlend == 0,
	}

	rest := p[anmfHeaderLen:]
	for len(rest) >= 8 {
		id := string(rest[0:4])
		n := int(binary.LittleEndian.Uint32(rest[4:8]))
		rest = rest[8:]
		if n < 0 || n > len(rest) {
			return RawFrame{}, fmt.Errorf("чанк %q выходит за границы кадра", id)
		}
		body := rest[:n]
		rest = rest[n:]
		if n%2 == 1 && len(rest) > 0 {
			rest = rest[1:]
		}

		switch id {
		case string(fccALPH[:]):
			f.alph = body
		case string(fccVP8[:]):
			f.vp8 = body
		case string(fccVP8L[:]):
			f.vp8l = body
		}
	}

	if f.vp8 == nil && f.vp8l == nil {
		return RawFrame{}, errors.New("в кадре нет битового потока VP8/VP8L")
	}

	return f, nil
}

// Bitstream собирает самостоятельный файл WebP с одним кадром,
// пригодный для webp.Decode.
func (f RawFrame) Bitstream() []byte {
	var body bytes.Buffer

	switch {
	case f.vp8l != nil:
		writeChunk(&body, fccVP8L, f.vp8l)
	case f.alph != nil:
		var vp8x [10]byte
		vp8x[0] = flagAlpha
		putUint24(vp8x[4:7], uint32(f.Width-1))
		putUint24(vp8x[7:10], uint32(f.Height-1))
		writeChunk(&body, fccVP8X, vp8x[:])
		writeChunk(&body, fccALPH, f.alph)
		writeChunk(&body, fccVP8, f.vp8)
	default:
		writeChunk(&body, fccVP8, f.vp8)
	}

	var out bytes.Buffer
	out.Grow(12 + body.Len())
	out.WriteString("RIFF")
	_ = binary.Write(&out, binary.LittleEndian, uint32(4+body.Len()))
	out.Write(fccWEBP[:])
	out.Write(body.Bytes())
	return out.Bytes()
}

func writeChunk(w *bytes.Buffer, id riff.FourCC, data []byte) {
	w.Write(id[:])
	_ = binary.Write(w, binary.LittleEndian, uint32(len(data)))
	w.Write(data)
	if len(data)%2 == 1 {
		w.WriteByte(0)
	}
}

func uint24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

// IsAnimatedFile проверяет файл по контейнеру, не декодируя кадры.
func IsAnimatedFile(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	c, err := ParseContainer(data)
	if err != nil {
		return false, err
	}
	return c.Animated(), nil
}
