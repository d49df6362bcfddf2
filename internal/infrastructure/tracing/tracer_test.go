package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/alexisbeaulieu97/actionflow/internal/ports"
)

func TestSpansAreRecorded(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := New(provider)

	_, span := tracer.StartSpan(context.Background(), "dispatcher.dispatch", "action_type", "chain", "depth", 2)
	span.SetAttribute("timeout", 1500*time.Millisecond)
	span.SetAttribute("error", errors.New("boom"))
	span.SetStatus(ports.SpanStatusError, "boom")
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	got := ended[0]
	require.Equal(t, "dispatcher.dispatch", got.Name())
	require.Equal(t, codes.Error, got.Status().Code)
	require.Equal(t, "boom", got.Status().Description)
	require.ElementsMatch(t, []attribute.KeyValue{
		attribute.String("action_type", "chain"),
		attribute.Int("depth", 2),
		attribute.Int64("timeout_ms", 1500),
		attribute.String("error", "boom"),
	}, got.Attributes())
}

func TestNilProviderUsesGlobal(t *testing.T) {
	t.Parallel()

	ctx, span := New(nil).StartSpan(context.Background(), "noop")
	require.NotNil(t, ctx)
	span.SetStatus(ports.SpanStatusOK, "")
	span.End()
}

func TestSetupWithoutEndpoint(t *testing.T) {
	t.Parallel()

	shutdown, err := Setup(context.Background(), "actionflow", "")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
