package engine

import (
	"context"
	"log/slog"
	"strings"
)

// SummaryKey - атрибут, помечающий итоговую запись. Такая запись проходит фильтр всегда.
const SummaryKey = "summary"

// Reporter - slog.Handler, превращающий записи лога в события EventLog.
// Без debug пропускаются предупреждения, ошибки и итоговая запись; с debug - всё.
type Reporter struct {
	debug  bool
	emit   func(Event)
	attrs  []slog.Attr
	prefix string
}

// NewReporter создаёт Reporter.
func NewReporter(debug bool, emit func(Event)) *Reporter {
	return &Reporter{debug: debug, emit: emit}
}

// Enabled сообщает, может ли запись уровня level дойти до вызывающей стороны.
func (r *Reporter) Enabled(_ context.Context, level slog.Level) bool {
	if r.debug {
		return true
	}
	// Info нужен для итоговой записи, остальные Info отсекаются в Handle.
	return level >= slog.LevelInfo
}

// Handle отправляет запись как событие.
func (r *Reporter) Handle(_ context.Context, rec slog.Record) error {
	summary := hasSummary(r.attrs)
	rec.Attrs(func(a slog.Attr) bool {
		if isSummary(a) {
			summary = true
			return false
		}
		return true
	})

	if !r.debug && !summary && rec.Level < slog.LevelWarn {
		return nil
	}

	var b strings.Builder
	b.WriteString(rec.Message)
	for _, a := range r.attrs {
		writeAttr(&b, "", a)
	}
	rec.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, r.prefix, a)
		return true
	})

	r.emit(Event{Kind: EventLog, Level: rec.Level, Text: b.String()})
	return nil
}

// WithAttrs возвращает копию с дополнительными атрибутами.
func (r *Reporter) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *r
	clone.attrs = make([]slog.Attr, 0, len(r.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, r.attrs...)
	for _, a := range attrs {
		if r.prefix != "" {
			a.Key = r.prefix + a.Key
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

// WithGroup возвращает копию с префиксом группы.
func (r *Reporter) WithGroup(name string) slog.Handler {
	if name == "" {
		return r
	}
	clone := *r
	clone.prefix = r.prefix + name + "."
	return &clone
}

func isSummary(a slog.Attr) bool {
	return a.Key == SummaryKey && a.Value.Kind() == slog.KindBool && a.Value.Bool()
}

func hasSummary(attrs []slog.Attr) bool {
	for _, a := range attrs {
		if isSummary(a) {
			return true
		}
	}
	return false
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	if a.Equal(slog.Attr{}) || a.Key == SummaryKey {
		return
	}
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(b, prefix+a.Key+".", ga)
		}
		return
	}
	b.WriteByte(' ')
	b.WriteString(prefix)
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(a.Value.String())
}
