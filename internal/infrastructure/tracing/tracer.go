// Package tracing adapts ports.Tracer onto OpenTelemetry.
package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alexisbeaulieu97/actionflow/internal/ports"
)

// InstrumentationName identifies spans created by actionflow.
const InstrumentationName = "github.com/alexisbeaulieu97/actionflow"

// Tracer implements ports.Tracer with an OpenTelemetry tracer.
type Tracer struct {
	tracer trace.Tracer
}

// New creates a tracer from provider. A nil provider uses the global one,
// which stays a no-op until Setup installs an exporter.
func New(provider trace.TracerProvider) *Tracer {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &Tracer{tracer: provider.Tracer(InstrumentationName)}
}

// StartSpan implements ports.Tracer. Attributes are key/value pairs.
func (t *Tracer) StartSpan(ctx context.Context, name string, attributes ...interface{}) (context.Context, ports.Span) {
	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(toAttributes(attributes)...))
	return ctx, &Span{span: span}
}

// Span wraps an OpenTelemetry span.
type Span struct {
	span trace.Span
}

// SetAttribute implements ports.Span.
func (s *Span) SetAttribute(key string, value interface{}) {
	s.span.SetAttributes(toAttribute(key, value))
}

// SetStatus implements ports.Span.
func (s *Span) SetStatus(status ports.SpanStatus, message string) {
	switch status {
	case ports.SpanStatusError:
		s.span.SetStatus(codes.Error, message)
	default:
		s.span.SetStatus(codes.Ok, "")
	}
}

// End implements ports.Span.
func (s *Span) End() {
	s.span.End()
}

func toAttributes(kv []interface{}) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		out = append(out, toAttribute(key, kv[i+1]))
	}
	return out
}

func toAttribute(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case time.Duration:
		return attribute.Int64(key+"_ms", v.Milliseconds())
	case fmt.Stringer:
		return attribute.String(key, v.String())
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case error:
		return attribute.String(key, v.Error())
	}
	return attribute.String(key, fmt.Sprint(value))
}
