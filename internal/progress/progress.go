// Package progress отображает прогресс пакета по событиям движка.
package progress

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// defaultDescription подписывает полосу, если описание не задано.
const defaultDescription = "Конвертация"

// Options - настройки полосы прогресса.
type Options struct {
	// Description - подпись слева от полосы.
	Description string

	// Disabled - не рисовать полосу, выводить только сообщения.
	Disabled bool

	// Writer - куда выводить (по умолчанию os.Stderr).
	Writer io.Writer
}

// Bar - процентная полоса прогресса.
type Bar struct {
	mu      sync.Mutex
	out     io.Writer
	pb      *progressbar.ProgressBar // nil, если полоса отключена
	percent int
}

// New создаёт полосу. При Disabled progressbar не создаётся вовсе.
func New(opts Options) *Bar {
	b := &Bar{out: opts.Writer}
	if b.out == nil {
		b.out = os.Stderr
	}
	if !opts.Disabled {
		b.pb = newPercentBar(b.out, cmp.Or(opts.Description, defaultDescription))
	}
	return b
}

func newPercentBar(w io.Writer, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]█[reset]",
			SaucerHead:    "[green]▓[reset]",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
	)
}

// Set двигает полосу вперёд. Значение обрезается до 0..100, откат игнорируется.
func (b *Bar) Set(percent int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	percent = min(max(percent, 0), 100)
	if percent < b.percent {
		return
	}
	b.percent = percent
	if b.pb != nil {
		_ = b.pb.Set(percent)
	}
}

// Percent возвращает последний выставленный процент.
func (b *Bar) Percent() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.percent
}

// IsDisabled сообщает, что полоса не рисуется.
func (b *Bar) IsDisabled() bool {
	return b.pb == nil
}

// WriteMessage печатает строку над полосой и перерисовывает её.
func (b *Bar) WriteMessage(format string, args ...any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pb == nil {
		fmt.Fprintf(b.out, format, args...)
		return
	}
	_ = b.pb.Clear()
	fmt.Fprintf(b.out, format, args...)
	if b.percent < 100 {
		_ = b.pb.RenderBlank()
	}
}

// Finish дорисовывает полосу до конца.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pb != nil {
		_ = b.pb.Finish()
	}
}
