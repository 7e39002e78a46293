// Package logging wires secret masking into log/slog. Every record passing
// through Handler has its message and attribute values masked before the
// wrapped handler formats them.
package logging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nextlevelbuilder/goclaw-secrets/internal/secrets"
)

// Handler masks records and forwards them to another slog.Handler.
type Handler struct {
	next slog.Handler
	t    *secrets.Transport
}

// NewHandler wraps next. A nil transport makes the handler a pass-through.
func NewHandler(next slog.Handler, t *secrets.Transport) *Handler {
	return &Handler{next: next, t: t}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	t := h.transport(ctx)
	if t == nil {
		return h.next.Handle(ctx, r)
	}
	out := slog.NewRecord(r.Time, r.Level, t.MaskString(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(maskAttr(t, a))
		return true
	})
	return h.next.Handle(ctx, out)
}

// WithAttrs masks attrs once, at the time they are bound. Secrets registered
// later are not retroactively masked in pre-bound attributes.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = maskAttr(h.t, a)
	}
	return &Handler{next: h.next.WithAttrs(masked), t: h.t}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{next: h.next.WithGroup(name), t: h.t}
}

// transport prefers one carried by ctx so per-run registries mask their own
// records.
func (h *Handler) transport(ctx context.Context) *secrets.Transport {
	if ctx != nil {
		if t := secrets.TransportFromContext(ctx); t != nil {
			return t
		}
	}
	return h.t
}

func maskAttr(t *secrets.Transport, a slog.Attr) slog.Attr {
	if t == nil {
		return a
	}
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, t.MaskString(v.String()))
	case slog.KindGroup:
		group := v.Group()
		masked := make([]slog.Attr, len(group))
		for i, ga := range group {
			masked[i] = maskAttr(t, ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(masked...)}
	case slog.KindAny:
		switch x := v.Any().(type) {
		case error:
			return slog.String(a.Key, t.MaskString(x.Error()))
		case fmt.Stringer:
			return slog.String(a.Key, t.MaskString(x.String()))
		case []byte:
			return slog.String(a.Key, t.MaskString(string(x)))
		default:
			return slog.Any(a.Key, t.MaskCopy(x))
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}
