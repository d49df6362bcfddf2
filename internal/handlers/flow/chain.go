package flow

import (
	"context"
	"fmt"

	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
	"github.com/alexisbeaulieu97/actionflow/internal/domain/event"
	"github.com/alexisbeaulieu97/actionflow/internal/ports"
)

// Chain runs its children strictly in order. Step k+1 starts only after step
// k settled. Data is always action.Results; with StopOnError it holds the
// steps up to and including the failing one.
func Chain(ctx context.Context, act action.Action, rt ports.Runtime) action.Result {
	c := act.(action.Chain)
	total := len(c.Actions)
	results := make(action.Results, 0, total)

	for i, child := range c.Actions {
		res := dispatch(ctx, rt, child)
		results = append(results, res)
		rt.Emit(ctx, event.ChainStepCompleted{Index: i, Total: total, Success: res.Success, Err: res.Err})

		if !res.Success && c.StopOnError {
			err := fmt.Errorf("Chain stopped at action %d: %w", i, stepError(res))
			rt.Emit(ctx, event.ChainStopped{Index: i, Err: err})
			return action.FailWithData(err, results)
		}
	}

	ok := results.AllSucceeded()
	rt.Emit(ctx, event.ChainCompleted{Total: total, Success: ok})
	if !ok {
		return action.FailWithData(aggregateError(c.Type(), results), results)
	}
	return action.Succeed(results)
}

func stepError(res action.Result) error {
	if res.Err != nil {
		return res.Err
	}
	return errStepFailed
}
