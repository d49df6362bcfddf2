// Package navigation implements the navigate, redirect and closePopup actions.
package navigation

import (
	"context"
	"errors"

	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
	"github.com/alexisbeaulieu97/actionflow/internal/domain/event"
	"github.com/alexisbeaulieu97/actionflow/internal/ports"
)

// ErrUnavailable is returned when the capability bundle lacks the needed function.
var ErrUnavailable = errors.New("capability unavailable in this context")

// Navigate performs in-app navigation through Capabilities.Navigate.
func Navigate(ctx context.Context, act action.Action, rt ports.Runtime) action.Result {
	nav := act.(action.Navigate)
	if rt.Capabilities.Navigate == nil {
		return action.Fail(action.NewHandlerError(nav.Type(), ErrUnavailable))
	}
	if err := rt.Capabilities.Navigate(ctx, nav.URL, nav.Replace); err != nil {
		return action.Fail(action.NewHandlerError(nav.Type(), err))
	}
	rt.Emit(ctx, event.Navigated{URL: nav.URL, Replace: nav.Replace})
	return action.Succeed(nil)
}

// Redirect performs a full-page navigation. An empty target means _self.
func Redirect(ctx context.Context, act action.Action, rt ports.Runtime) action.Result {
	redirect := act.(action.Redirect)
	target := redirect.Target
	if target == "" {
		target = action.DefaultRedirectTarget
	}
	if rt.Capabilities.Redirect == nil {
		return action.Fail(action.NewHandlerError(redirect.Type(), ErrUnavailable))
	}
	if err := rt.Capabilities.Redirect(ctx, redirect.URL, target); err != nil {
		return action.Fail(action.NewHandlerError(redirect.Type(), err))
	}
	rt.Emit(ctx, event.Redirected{URL: redirect.URL, Target: target})
	return action.Succeed(nil)
}

// ClosePopup closes the hosting popup. It fails when the action was not
// dispatched from inside a popup.
func ClosePopup(ctx context.Context, act action.Action, rt ports.Runtime) action.Result {
	if rt.Capabilities.ClosePopup == nil {
		return action.Fail(action.NewHandlerError(act.Type(), errors.New("closePopup requires a popup context")))
	}
	if err := rt.Capabilities.ClosePopup(ctx); err != nil {
		return action.Fail(action.NewHandlerError(act.Type(), err))
	}
	rt.Emit(ctx, event.PopupClosed{})
	return action.Succeed(nil)
}
