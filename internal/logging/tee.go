package logging

import (
	"context"
	"errors"
	"log/slog"
	"slices"
)

// tee - набор обработчиков, каждый из которых получает свою копию записи.
type tee []slog.Handler

// Tee объединяет обработчики: запись уходит в каждый, чей уровень её пропускает.
// nil пропускаются; один оставшийся обработчик возвращается как есть.
func Tee(handlers ...slog.Handler) slog.Handler {
	live := slices.DeleteFunc(slices.Clone(handlers), func(h slog.Handler) bool { return h == nil })
	switch len(live) {
	case 0:
		return NoopHandler{}
	case 1:
		return live[0]
	}
	return tee(live)
}

func (t tee) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(t, func(h slog.Handler) bool { return h.Enabled(ctx, level) })
}

// Handle отдаёт каждому обработчику клон записи: атрибуты не разделяются.
func (t tee) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (t tee) WithGroup(name string) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t tee) each(fn func(slog.Handler) slog.Handler) tee {
	out := make(tee, len(t))
	for i, h := range t {
		out[i] = fn(h)
	}
	return out
}

// NoopHandler отбрасывает все записи.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }
func (n NoopHandler) WithAttrs([]slog.Attr) slog.Handler      { return n }
func (n NoopHandler) WithGroup(string) slog.Handler           { return n }

// Discard возвращает логгер, который ничего не пишет.
func Discard() *slog.Logger {
	return slog.New(NoopHandler{})
}
