// Package tracing masks registered secrets in OpenTelemetry spans before
// they leave the process.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/nextlevelbuilder/goclaw-secrets/internal/secrets"
)

// Exporter wraps a SpanExporter and masks span names, string attributes,
// event names and attributes (including recorded error messages), link
// attributes and status descriptions.
type Exporter struct {
	next sdktrace.SpanExporter
	t    *secrets.Transport
}

// NewExporter wraps next.
func NewExporter(next sdktrace.SpanExporter, t *secrets.Transport) *Exporter {
	return &Exporter{next: next, t: t}
}

func (e *Exporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if e.t == nil || len(spans) == 0 {
		return e.next.ExportSpans(ctx, spans)
	}
	stubs := tracetest.SpanStubsFromReadOnlySpans(spans)
	for i := range stubs {
		s := &stubs[i]
		s.Name = e.t.MaskString(s.Name)
		s.Attributes = e.maskAttrs(s.Attributes)
		s.Status.Description = e.t.MaskString(s.Status.Description)
		events := make([]sdktrace.Event, len(s.Events))
		for j, ev := range s.Events {
			ev.Name = e.t.MaskString(ev.Name)
			ev.Attributes = e.maskAttrs(ev.Attributes)
			events[j] = ev
		}
		s.Events = events
		links := make([]sdktrace.Link, len(s.Links))
		for j, l := range s.Links {
			l.Attributes = e.maskAttrs(l.Attributes)
			links[j] = l
		}
		s.Links = links
	}
	return e.next.ExportSpans(ctx, stubs.Snapshots())
}

func (e *Exporter) Shutdown(ctx context.Context) error {
	return e.next.Shutdown(ctx)
}

func (e *Exporter) maskAttrs(in []attribute.KeyValue) []attribute.KeyValue {
	if len(in) == 0 {
		return in
	}
	out := make([]attribute.KeyValue, len(in))
	for i, kv := range in {
		switch kv.Value.Type() {
		case attribute.STRING:
			out[i] = attribute.String(string(kv.Key), e.t.MaskString(kv.Value.AsString()))
		case attribute.STRINGSLICE:
			vals := kv.Value.AsStringSlice()
			for j := range vals {
				vals[j] = e.t.MaskString(vals[j])
			}
			out[i] = attribute.StringSlice(string(kv.Key), vals)
		default:
			out[i] = kv
		}
	}
	return out
}
