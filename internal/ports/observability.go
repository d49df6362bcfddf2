package ports

import "context"

// MetricsCollector receives dispatch and transport samples. Names follow the
// Prometheus conventions, for example:
//
//	actionflow_dispatch_total{action_type, status}
//	actionflow_dispatch_duration_seconds{action_type}
//	actionflow_network_attempts_total{method, outcome}
//	actionflow_events_emitted_total{event_type}
type MetricsCollector interface {
	IncCounter(ctx context.Context, name string, labels map[string]string)
	SetGauge(ctx context.Context, name string, value float64, labels map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, labels map[string]string)
}

// Tracer opens spans named "<component>.<operation>", such as
// "dispatcher.dispatch". Attributes are key/value pairs like log fields.
type Tracer interface {
	StartSpan(ctx context.Context, name string, attributes ...interface{}) (context.Context, Span)
}

// Span is one open trace span. End must be called exactly once.
type Span interface {
	SetAttribute(key string, value interface{})
	SetStatus(status SpanStatus, message string)
	End()
}

// SpanStatus is the outcome recorded on a span.
type SpanStatus string

const (
	SpanStatusOK    SpanStatus = "ok"
	SpanStatusError SpanStatus = "error"
)
