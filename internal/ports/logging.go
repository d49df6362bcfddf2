package ports

import (
	"context"

	"github.com/google/uuid"
)

// Logger is the structured logger every component receives. Fields are
// alternating key/value pairs. Adapters add the correlation id carried by
// ctx, so callers never pass it explicitly. Keys in use across the module:
// layer, component, action_type, event_type, duration_ms, error.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...interface{})
	Info(ctx context.Context, msg string, fields ...interface{})
	Warn(ctx context.Context, msg string, fields ...interface{})
	Error(ctx context.Context, msg string, fields ...interface{})
	With(fields ...interface{}) Logger
}

type correlationKey struct{}

// WithCorrelationID returns a child of ctx tagged with id. The dispatcher
// tags every entry-point dispatch that arrives without one; the CLI and the
// HTTP ingress tag per command and per request.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id attached to ctx, or "".
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// NewCorrelationID returns a random UUIDv4.
func NewCorrelationID() string {
	return uuid.NewString()
}
