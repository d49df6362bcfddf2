// Package flow implements the composite actions. Composites never call other
// handlers directly: every child goes back through Runtime.Dispatch so policy
// checks, panic recovery and metrics apply to nested actions too.
package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
	"github.com/alexisbeaulieu97/actionflow/internal/ports"
)

// ErrNoDispatcher is returned when a composite runs without a dispatch function.
var ErrNoDispatcher = errors.New("composite action requires a dispatcher")

var errStepFailed = errors.New("step failed without an error")

func dispatch(ctx context.Context, rt ports.Runtime, child action.Action) action.Result {
	if rt.Dispatch == nil {
		return action.Fail(action.NewHandlerError(child.Type(), ErrNoDispatcher))
	}
	return rt.Dispatch(ctx, child)
}

// aggregateError summarizes the failed children of a composite.
func aggregateError(kind action.Kind, results action.Results) error {
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	return action.NewHandlerError(kind, fmt.Errorf("%d of %d actions failed", failed, len(results)))
}
