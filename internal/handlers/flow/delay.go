package flow

import (
	"context"
	"time"

	"github.com/alexisbeaulieu97/actionflow/internal/cancellation"
	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
	"github.com/alexisbeaulieu97/actionflow/internal/domain/event"
	"github.com/alexisbeaulieu97/actionflow/internal/ports"
)

// Delay waits on a timer, then dispatches Then if present. The wait is
// registered as cancellable work under the context's owner, so CancelAll and
// AbortComponent end it early with an AbortError.
func Delay(ctx context.Context, act action.Action, rt ports.Runtime) action.Result {
	d := act.(action.Delay)

	registry := rt.Cancellations
	if registry == nil {
		registry = cancellation.NewRegistry()
	}
	token := cancellation.NewToken(ctx)
	id := registry.Register(cancellation.OwnerFrom(ctx), token)

	start := time.Now()
	timer := time.NewTimer(d.Duration)
	select {
	case <-timer.C:
		registry.Release(id)
	case <-token.Done():
		timer.Stop()
		cause := context.Cause(token.Context())
		registry.Release(id)
		return action.Fail(action.NewAbortError("delay aborted", cause))
	}
	elapsed := time.Since(start)

	rt.Emit(ctx, event.DelayCompleted{Requested: d.Duration, Actual: elapsed})

	if d.Then == nil {
		return action.Succeed(nil)
	}
	return dispatch(ctx, rt, d.Then)
}
