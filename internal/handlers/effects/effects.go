// Package effects implements the side-effect-only actions: analytics, pixel,
// iframe, customHtml and log. These handlers always succeed; failures are
// logged and published as *_ERROR events so a surrounding chain or parallel
// keeps running.
package effects

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
	"github.com/alexisbeaulieu97/actionflow/internal/domain/event"
	"github.com/alexisbeaulieu97/actionflow/internal/ports"
)

// ErrNoDocument is recorded when the session has no page surface to mutate.
var ErrNoDocument = errors.New("no document available")

// Analytics forwards the event to the configured provider, falling back to
// Capabilities.TrackEvent.
func Analytics(ctx context.Context, act action.Action, rt ports.Runtime) action.Result {
	a := act.(action.Analytics)
	provider := a.Provider
	if provider == "" {
		provider = action.ProviderGtag
	}

	err := guard(func() error {
		if client, ok := rt.Capabilities.Analytics[provider]; ok && client != nil {
			return client.Track(ctx, a.Event, a.Properties)
		}
		if rt.Capabilities.TrackEvent != nil {
			return rt.Capabilities.TrackEvent(ctx, a.Event, withProvider(a.Properties, provider))
		}
		return fmt.Errorf("no analytics provider %q", provider)
	})
	if err != nil {
		return swallow(ctx, rt, a.Type(), err, event.AnalyticsFailed{Provider: string(provider), Event: a.Event, Err: err})
	}
	rt.Emit(ctx, event.AnalyticsTracked{Provider: string(provider), Event: a.Event, Properties: a.Properties})
	return action.Succeed(nil)
}

func withProvider(props map[string]any, provider action.Provider) map[string]any {
	out := make(map[string]any, len(props)+1)
	for k, v := range props {
		out[k] = v
	}
	out["provider"] = string(provider)
	return out
}

// Log writes the message through the runtime logger at the requested level.
// A logger that panics does not fail the action.
func Log(ctx context.Context, act action.Action, rt ports.Runtime) action.Result {
	l := act.(action.Log)
	level := l.Level
	if level == "" {
		level = action.LevelInfo
	}
	if rt.Logger != nil {
		fields := []interface{}{"source", "action"}
		if l.Data != nil {
			fields = append(fields, "data", l.Data)
		}
		_ = guard(func() error {
			switch level {
			case action.LevelDebug:
				rt.Logger.Debug(ctx, l.Message, fields...)
			case action.LevelWarn:
				rt.Logger.Warn(ctx, l.Message, fields...)
			case action.LevelError:
				rt.Logger.Error(ctx, l.Message, fields...)
			default:
				rt.Logger.Info(ctx, l.Message, fields...)
			}
			return nil
		})
	}
	rt.Emit(ctx, event.LogEvent{Level: string(level), Message: l.Message, Data: l.Data})
	return action.Succeed(nil)
}

// swallow records a best-effort failure and reports success.
func swallow(ctx context.Context, rt ports.Runtime, kind action.Kind, err error, ev event.Event) action.Result {
	failure := action.NewBestEffortFailure(kind, err)
	if rt.Logger != nil {
		rt.Logger.Warn(ctx, "side effect failed", "action_type", kind, "code", failure.Code, "error", failure)
	}
	rt.Emit(ctx, ev)
	return action.Succeed(nil)
}

// guard runs fn and converts a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
