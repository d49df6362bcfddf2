package ports

import (
	"context"
	"net/http"

	"github.com/alexisbeaulieu97/actionflow/internal/cancellation"
	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
	"github.com/alexisbeaulieu97/actionflow/internal/domain/event"
)

// DispatchFunc re-enters the dispatcher for a nested action. Composite
// handlers use it instead of calling other handlers directly.
type DispatchFunc func(ctx context.Context, act action.Action) action.Result

// Runtime is everything a handler may use besides the action itself.
type Runtime struct {
	Capabilities  action.Capabilities
	Dispatch      DispatchFunc
	Cancellations *cancellation.Registry
	Events        EventBus
	Logger        Logger
	Metrics       MetricsCollector
}

// Emit publishes ev on the runtime's bus. Emission failures are logged and
// never change the handler's outcome.
func (rt Runtime) Emit(ctx context.Context, ev event.Event) {
	if rt.Events == nil {
		return
	}
	if err := rt.Events.Emit(ctx, ev); err != nil && rt.Logger != nil {
		rt.Logger.Warn(ctx, "emit failed", "event_type", ev.EventType(), "error", err)
	}
}

// ActionHandler implements the behaviour of one action kind. Handlers must
// return a Result instead of panicking, release every cancellation token they
// register, and observe ctx at each suspension point.
type ActionHandler interface {
	Handle(ctx context.Context, act action.Action, rt Runtime) action.Result
}

// HandlerFunc adapts a function to ActionHandler.
type HandlerFunc func(ctx context.Context, act action.Action, rt Runtime) action.Result

// Handle implements ActionHandler.
func (f HandlerFunc) Handle(ctx context.Context, act action.Action, rt Runtime) action.Result {
	return f(ctx, act, rt)
}

// HTTPDoer sends HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}
