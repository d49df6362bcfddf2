package flow

import (
	"context"

	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
	"github.com/alexisbeaulieu97/actionflow/internal/domain/event"
	"github.com/alexisbeaulieu97/actionflow/internal/ports"
)

type settled struct {
	index  int
	result action.Result
}

// Parallel starts every child in its own goroutine. With WaitForAll the
// results keep input order and success is the AND of all children; otherwise
// the first child to settle wins and its result is returned verbatim. Losers
// keep running to completion.
func Parallel(ctx context.Context, act action.Action, rt ports.Runtime) action.Result {
	p := act.(action.Parallel)
	total := len(p.Actions)

	done := make(chan settled, total)
	for i, child := range p.Actions {
		go func(i int, child action.Action) {
			done <- settled{index: i, result: dispatch(ctx, rt, child)}
		}(i, child)
	}

	if total == 0 {
		rt.Emit(ctx, event.ParallelCompleted{WaitForAll: p.WaitForAll, Success: true})
		return action.Succeed(action.Results{})
	}

	if !p.WaitForAll {
		first := <-done
		rt.Emit(ctx, event.ParallelCompleted{Total: total, WaitForAll: false, Success: first.result.Success})
		return first.result
	}

	results := make(action.Results, total)
	for range p.Actions {
		s := <-done
		results[s.index] = s.result
	}
	ok := results.AllSucceeded()
	rt.Emit(ctx, event.ParallelCompleted{Total: total, WaitForAll: true, Success: ok})
	if !ok {
		return action.FailWithData(aggregateError(p.Type(), results), results)
	}
	return action.Succeed(results)
}
