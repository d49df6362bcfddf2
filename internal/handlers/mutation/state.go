// Package mutation implements the two state-mutating leaf actions. Both read
// the current value through the capability bundle, compute the new value,
// write it back and publish an event carrying the previous and new values.
package mutation

import (
	"context"
	"errors"
	"sync"

	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
	"github.com/alexisbeaulieu97/actionflow/internal/domain/event"
	"github.com/alexisbeaulieu97/actionflow/internal/ports"
)

// ErrNoStateWriter is returned when the session exposes no SetState capability.
var ErrNoStateWriter = errors.New("state is read-only in this context")

// SetState writes a key. With Merge set and both values objects, the new
// value is a shallow merge of the incoming keys over the previous object.
func SetState(ctx context.Context, act action.Action, rt ports.Runtime) action.Result {
	s := act.(action.SetState)

	var previous, value any
	merged := false
	err := Update(rt, s.Key, s.Merge, func(prev any) (any, error) {
		previous, value, merged = prev, s.Value, false
		if s.Merge {
			if out, ok := shallowMerge(prev, s.Value); ok {
				value, merged = out, true
			}
		}
		return value, nil
	})
	if err != nil {
		return action.Fail(action.NewHandlerError(s.Type(), err))
	}

	rt.Emit(ctx, event.StateUpdated{Key: s.Key, Previous: previous, Value: value, Merged: merged})
	return action.Succeed(value)
}

// fallbackMu serializes read-modify-write cycles for sessions that only
// expose GetState and SetState.
var fallbackMu sync.Mutex

// Update reads key, computes its next value with fn and writes it back as one
// step, so sibling actions inside a parallel block never lose each other's
// writes. It uses Capabilities.UpdateState when the session provides it.
func Update(rt ports.Runtime, key string, merge bool, fn func(previous any) (any, error)) error {
	caps := rt.Capabilities
	if caps.UpdateState != nil {
		return caps.UpdateState(key, fn)
	}
	if caps.SetState == nil {
		return ErrNoStateWriter
	}

	fallbackMu.Lock()
	defer fallbackMu.Unlock()
	previous, _ := caps.State(key)
	next, err := fn(previous)
	if err != nil {
		return err
	}
	return caps.SetState(key, next, merge)
}

func shallowMerge(previous, next any) (map[string]any, bool) {
	prev, ok := previous.(map[string]any)
	if !ok {
		return nil, false
	}
	incoming, ok := next.(map[string]any)
	if !ok {
		return nil, false
	}
	out := make(map[string]any, len(prev)+len(incoming))
	for k, v := range prev {
		out[k] = v
	}
	for k, v := range incoming {
		out[k] = v
	}
	return out, true
}
