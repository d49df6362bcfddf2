package navigation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
	"github.com/alexisbeaulieu97/actionflow/internal/domain/event"
	"github.com/alexisbeaulieu97/actionflow/internal/infrastructure/events"
	"github.com/alexisbeaulieu97/actionflow/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/actionflow/internal/ports"
)

func runtimeWith(caps action.Capabilities) (ports.Runtime, *[]event.Event) {
	bus := events.NewBus(logging.NewNoOpLogger())
	seen := &[]event.Event{}
	for _, t := range []event.Type{event.TypeNavigate, event.TypeRedirect, event.TypePopupClosed} {
		bus.On(t, func(_ context.Context, ev event.Event) error {
			*seen = append(*seen, ev)
			return nil
		})
	}
	return ports.Runtime{Capabilities: caps, Events: bus, Logger: logging.NewNoOpLogger()}, seen
}

func TestNavigateCallsCapability(t *testing.T) {
	t.Parallel()

	var gotURL string
	var gotReplace bool
	rt, seen := runtimeWith(action.Capabilities{
		Navigate: func(_ context.Context, url string, replace bool) error {
			gotURL, gotReplace = url, replace
			return nil
		},
	})

	res := Navigate(context.Background(), action.Navigate{URL: "/checkout", Replace: true}, rt)
	require.True(t, res.Success)
	require.Equal(t, "/checkout", gotURL)
	require.True(t, gotReplace)
	require.Equal(t, []event.Event{event.Navigated{URL: "/checkout", Replace: true}}, *seen)
}

func TestNavigateFailures(t *testing.T) {
	t.Parallel()

	rt, _ := runtimeWith(action.Capabilities{})
	res := Navigate(context.Background(), action.Navigate{URL: "/"}, rt)
	require.False(t, res.Success)
	require.ErrorIs(t, res.Err, ErrUnavailable)

	rt, seen := runtimeWith(action.Capabilities{
		Navigate: func(context.Context, string, bool) error { return errors.New("router offline") },
	})
	res = Navigate(context.Background(), action.Navigate{URL: "/"}, rt)
	require.False(t, res.Success)
	require.ErrorIs(t, res.Err, action.ErrHandler)
	require.Empty(t, *seen)
}

func TestRedirectDefaultsTarget(t *testing.T) {
	t.Parallel()

	var target string
	rt, seen := runtimeWith(action.Capabilities{
		Redirect: func(_ context.Context, _ string, tgt string) error {
			target = tgt
			return nil
		},
	})

	res := Redirect(context.Background(), action.Redirect{URL: "https://example.com"}, rt)
	require.True(t, res.Success)
	require.Equal(t, "_self", target)
	require.Equal(t, event.Redirected{URL: "https://example.com", Target: "_self"}, (*seen)[0])

	res = Redirect(context.Background(), action.Redirect{URL: "https://example.com", Target: "_blank"}, rt)
	require.True(t, res.Success)
	require.Equal(t, "_blank", target)
}

func TestClosePopupRequiresContext(t *testing.T) {
	t.Parallel()

	rt, _ := runtimeWith(action.Capabilities{})
	res := ClosePopup(context.Background(), action.ClosePopup{}, rt)
	require.False(t, res.Success)

	closed := false
	rt, seen := runtimeWith(action.Capabilities{ClosePopup: func(context.Context) error {
		closed = true
		return nil
	}})
	res = ClosePopup(context.Background(), action.ClosePopup{}, rt)
	require.True(t, res.Success)
	require.True(t, closed)
	require.Equal(t, []event.Event{event.PopupClosed{}}, *seen)
}
