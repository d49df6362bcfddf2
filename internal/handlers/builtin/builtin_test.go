package builtin

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
	"github.com/alexisbeaulieu97/actionflow/internal/domain/event"
	"github.com/alexisbeaulieu97/actionflow/internal/engine"
)

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func TestRegisterCoversEveryBuiltinKind(t *testing.T) {
	t.Parallel()

	reg := engine.NewRegistry()
	_, err := Register(reg, Options{})
	require.NoError(t, err)

	for _, kind := range action.BuiltinKinds {
		_, ok := reg.Get(kind)
		require.True(t, ok, "missing handler for %s", kind)
	}
	require.Len(t, reg.Kinds(), len(action.BuiltinKinds))

	_, err = Register(reg, Options{})
	require.Error(t, err)
}

func TestDocumentRunsEndToEnd(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	state := map[string]any{"userTier": "premium"}
	var navigated []string
	caps := action.Capabilities{
		GetState: func(key string) (any, bool) {
			mu.Lock()
			defer mu.Unlock()
			v, ok := state[key]
			return v, ok
		},
		SetState: func(key string, value any, _ bool) error {
			mu.Lock()
			defer mu.Unlock()
			state[key] = value
			return nil
		},
		Navigate: func(_ context.Context, url string, _ bool) error {
			navigated = append(navigated, url)
			return nil
		},
	}

	attempts := 0
	client := doerFunc(func(req *http.Request) (*http.Response, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("connection refused")
		}
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(`{"orderId":"o-1"}`))}, nil
	})

	reg := engine.NewRegistry()
	_, err := Register(reg, Options{
		HTTPClient: client,
		Sleeper:    func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
	})
	require.NoError(t, err)
	d := engine.New(reg, caps)

	var types []event.Type
	for _, typ := range []event.Type{event.TypeCartUpdated, event.TypeAPIRetry, event.TypeAPISuccess, event.TypeNavigate, event.TypeChainCompleted} {
		d.Events().On(typ, func(_ context.Context, ev event.Event) error {
			mu.Lock()
			defer mu.Unlock()
			types = append(types, ev.EventType())
			return nil
		})
	}

	res := d.DispatchRaw(context.Background(), map[string]any{
		"type":        "chain",
		"stopOnError": true,
		"actions": []any{
			map[string]any{"type": "cart", "operation": "add", "item": map[string]any{"id": "mug", "price": 12}},
			map[string]any{
				"type":      "post",
				"url":       "https://shop.test/orders",
				"retries":   1,
				"onSuccess": map[string]any{"type": "setState", "key": "ordered", "value": true},
			},
			map[string]any{
				"type":      "conditional",
				"condition": "stateEquals",
				"key":       "userTier",
				"value":     "premium",
				"ifTrue":    map[string]any{"type": "navigate", "url": "/thanks/vip"},
				"ifFalse":   map[string]any{"type": "navigate", "url": "/thanks"},
			},
			map[string]any{"type": "log", "message": "checkout finished"},
		},
	})

	require.True(t, res.Success, res.ErrorMessage())
	require.Len(t, res.Data.(action.Results), 4)
	require.Equal(t, 2, attempts)
	require.Equal(t, []string{"/thanks/vip"}, navigated)
	require.Equal(t, true, state["ordered"])
	require.Equal(t, []action.CartItem{{ID: "mug", Price: 12, Quantity: 1}}, state["cart"])
	require.Equal(t, []event.Type{
		event.TypeCartUpdated, event.TypeAPIRetry, event.TypeAPISuccess, event.TypeNavigate, event.TypeChainCompleted,
	}, types)
	require.Equal(t, 0, d.Cancellations().Size())
}

func TestCustomHTMLBlockedByPolicy(t *testing.T) {
	t.Parallel()

	reg := engine.NewRegistry()
	_, err := Register(reg, Options{})
	require.NoError(t, err)
	d := engine.New(reg, action.Capabilities{AllowCustomHTML: false})

	res := d.Dispatch(context.Background(), action.Chain{StopOnError: true, Actions: []action.Action{
		action.Log{Message: "before"},
		action.CustomHTML{HTML: "<script>alert(1)</script>"},
	}})
	require.False(t, res.Success)
	require.ErrorIs(t, res.Err, action.ErrPolicy)
	require.EqualError(t, res.Err, "Chain stopped at action 1: blocked by policy")
}
