package network

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/actionflow/internal/cancellation"
	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
	"github.com/alexisbeaulieu97/actionflow/internal/domain/event"
	"github.com/alexisbeaulieu97/actionflow/internal/infrastructure/events"
	"github.com/alexisbeaulieu97/actionflow/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/actionflow/internal/ports"
)

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

type harness struct {
	rt         ports.Runtime
	reg        *cancellation.Registry
	mu         sync.Mutex
	waits      []time.Duration
	dispatched []action.Action
	events     []event.Event
}

func newHarness() *harness {
	h := &harness{reg: cancellation.NewRegistry()}
	bus := events.NewBus(logging.NewNoOpLogger())
	for _, t := range []event.Type{event.TypeAPISuccess, event.TypeAPIError, event.TypeAPIRetry} {
		bus.On(t, func(_ context.Context, ev event.Event) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.events = append(h.events, ev)
			return nil
		})
	}
	h.rt = ports.Runtime{
		Cancellations: h.reg,
		Events:        bus,
		Logger:        logging.NewNoOpLogger(),
		Dispatch: func(_ context.Context, act action.Action) action.Result {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.dispatched = append(h.dispatched, act)
			return action.Succeed(nil)
		},
	}
	return h
}

func (h *harness) sleeper(ctx context.Context, d time.Duration) error {
	h.mu.Lock()
	h.waits = append(h.waits, d)
	h.mu.Unlock()
	return ctx.Err()
}

func (h *harness) handler(doer ports.HTTPDoer) *Handler {
	return New(WithClient(doer), WithSleeper(h.sleeper))
}

func TestRetriesWithExponentialBackoff(t *testing.T) {
	t.Parallel()

	h := newHarness()
	attempts := 0
	doer := doerFunc(func(*http.Request) (*http.Response, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("connection reset")
		}
		return jsonResponse(http.StatusOK, `{"ok":true}`), nil
	})

	res := h.handler(doer).Handle(context.Background(), action.Request{
		Method:  action.KindGet,
		URL:     "https://api.example.com/items",
		Retries: 2,
	}, h.rt)

	require.True(t, res.Success)
	require.Equal(t, map[string]interface{}{"ok": true}, res.Data)
	require.Equal(t, 3, attempts)
	require.Equal(t, []time.Duration{1000 * time.Millisecond, 2000 * time.Millisecond}, h.waits)
	require.Equal(t, 0, h.reg.Size())

	var retries int
	for _, ev := range h.events {
		if ev.EventType() == event.TypeAPIRetry {
			retries++
		}
	}
	require.Equal(t, 2, retries)
	require.Equal(t, 3, h.events[len(h.events)-1].(event.APISuccess).Attempts)
}

func TestAbortIsNeverRetried(t *testing.T) {
	t.Parallel()

	h := newHarness()
	attempts := 0
	doer := doerFunc(func(req *http.Request) (*http.Response, error) {
		attempts++
		h.reg.CancelAll()
		<-req.Context().Done()
		return nil, req.Context().Err()
	})

	res := h.handler(doer).Handle(context.Background(), action.Request{
		Method:  action.KindPost,
		URL:     "https://api.example.com/orders",
		Retries: 3,
		OnError: action.Log{Message: "order failed"},
	}, h.rt)

	require.False(t, res.Success)
	require.ErrorIs(t, res.Err, action.ErrAborted)
	require.Equal(t, 1, attempts)
	require.Empty(t, h.waits)
	require.Equal(t, []action.Action{action.Log{Message: "order failed"}}, h.dispatched)
}

func TestParentCancellationIsAbort(t *testing.T) {
	t.Parallel()

	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	doer := doerFunc(func(req *http.Request) (*http.Response, error) {
		attempts++
		cancel()
		return nil, req.Context().Err()
	})

	res := h.handler(doer).Handle(ctx, action.Request{Method: action.KindGet, URL: "https://x.test", Retries: 2}, h.rt)
	require.ErrorIs(t, res.Err, action.ErrAborted)
	require.Equal(t, 1, attempts)
}

func TestInvalidJSONYieldsNilData(t *testing.T) {
	t.Parallel()

	h := newHarness()
	doer := doerFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, "<html>not json</html>"), nil
	})

	res := h.handler(doer).Handle(context.Background(), action.Request{
		Method:    action.KindGet,
		URL:       "https://api.example.com/page",
		OnSuccess: action.SetState{Key: "loaded", Value: true},
	}, h.rt)

	require.True(t, res.Success)
	require.Nil(t, res.Data)
	require.Equal(t, []action.Action{action.SetState{Key: "loaded", Value: true}}, h.dispatched)
}

func TestNonOKStatusFails(t *testing.T) {
	t.Parallel()

	h := newHarness()
	attempts := 0
	doer := doerFunc(func(*http.Request) (*http.Response, error) {
		attempts++
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Status:     "404 Not Found",
			Body:       io.NopCloser(strings.NewReader(`{"error":"missing"}`)),
		}, nil
	})

	res := h.handler(doer).Handle(context.Background(), action.Request{
		Method:  action.KindDelete,
		URL:     "https://api.example.com/items/9",
		Retries: 1,
	}, h.rt)

	require.False(t, res.Success)
	require.ErrorIs(t, res.Err, action.ErrNetwork)
	require.EqualError(t, res.Err, "HTTP 404: Not Found")
	require.Equal(t, 2, attempts)
	require.Equal(t, []time.Duration{time.Second}, h.waits)
	require.Equal(t, 0, h.reg.Size())
}

func TestTimeoutIsRetried(t *testing.T) {
	t.Parallel()

	h := newHarness()
	attempts := 0
	doer := doerFunc(func(req *http.Request) (*http.Response, error) {
		attempts++
		<-req.Context().Done()
		return nil, req.Context().Err()
	})

	res := h.handler(doer).Handle(context.Background(), action.Request{
		Method:  action.KindGet,
		URL:     "https://slow.example.com",
		Timeout: 10 * time.Millisecond,
		Retries: 1,
	}, h.rt)

	require.False(t, res.Success)
	require.ErrorIs(t, res.Err, action.ErrTimeout)
	require.Equal(t, 2, attempts)
	require.Equal(t, 0, h.reg.Size())
}

func TestCancelDuringBackoffStopsRetries(t *testing.T) {
	t.Parallel()

	h := newHarness()
	attempts := 0
	doer := doerFunc(func(*http.Request) (*http.Response, error) {
		attempts++
		return nil, errors.New("unreachable")
	})
	handler := New(WithClient(doer), WithSleeper(func(ctx context.Context, d time.Duration) error {
		require.Equal(t, 1, h.reg.Size())
		h.reg.CancelAll()
		<-ctx.Done()
		return context.Cause(ctx)
	}))

	res := handler.Handle(context.Background(), action.Request{Method: action.KindGet, URL: "https://x.test", Retries: 5}, h.rt)
	require.ErrorIs(t, res.Err, action.ErrAborted)
	require.Equal(t, 1, attempts)
	require.Equal(t, 0, h.reg.Size())
}

func TestTokenRegisteredUnderOwnerDuringAttempt(t *testing.T) {
	t.Parallel()

	h := newHarness()
	var during int
	doer := doerFunc(func(*http.Request) (*http.Response, error) {
		during = h.reg.OwnerSize("signup-form")
		return jsonResponse(http.StatusCreated, `{}`), nil
	})

	ctx := cancellation.WithOwner(context.Background(), "signup-form")
	res := h.handler(doer).Handle(ctx, action.Request{Method: action.KindPut, URL: "https://x.test"}, h.rt)
	require.True(t, res.Success)
	require.Equal(t, 1, during)
	require.Equal(t, 0, h.reg.OwnerSize("signup-form"))
}

func TestRequestConstruction(t *testing.T) {
	t.Parallel()

	h := newHarness()
	var got *http.Request
	var body []byte
	doer := doerFunc(func(req *http.Request) (*http.Response, error) {
		got = req
		if req.Body != nil {
			body, _ = io.ReadAll(req.Body)
		}
		return jsonResponse(http.StatusOK, `[]`), nil
	})
	handler := h.handler(doer)

	res := handler.Handle(context.Background(), action.Request{
		Method:  action.KindGet,
		URL:     "https://api.example.com/search?page=2",
		Payload: map[string]any{"q": "mugs", "limit": 10},
	}, h.rt)
	require.True(t, res.Success)
	require.Empty(t, res.Data)
	require.Equal(t, http.MethodGet, got.Method)
	require.Equal(t, url.Values{"page": {"2"}, "q": {"mugs"}, "limit": {"10"}}, got.URL.Query())
	require.Empty(t, body)

	res = handler.Handle(context.Background(), action.Request{
		Method:  action.KindPatch,
		URL:     "https://api.example.com/profile",
		Payload: map[string]any{"name": "Ada"},
		Headers: map[string]string{"Content-Type": "application/merge-patch+json", "X-Client": "actionflow"},
	}, h.rt)
	require.True(t, res.Success)
	require.Equal(t, http.MethodPatch, got.Method)
	require.Equal(t, "application/merge-patch+json", got.Header.Get("Content-Type"))
	require.Equal(t, "actionflow", got.Header.Get("X-Client"))
	require.JSONEq(t, `{"name":"Ada"}`, string(body))

	body = nil
	res = handler.Handle(context.Background(), action.Request{Method: action.KindDelete, URL: "https://api.example.com/x", Payload: map[string]any{"a": 1}}, h.rt)
	require.True(t, res.Success)
	require.Equal(t, "application/json", got.Header.Get("Content-Type"))
	require.Empty(t, body)
}

func TestTypedQueryPayloads(t *testing.T) {
	t.Parallel()

	h := newHarness()
	var got *http.Request
	calls := 0
	handler := h.handler(doerFunc(func(req *http.Request) (*http.Response, error) {
		calls++
		got = req
		return jsonResponse(http.StatusOK, `{}`), nil
	}))

	type filter struct {
		Category string `json:"category"`
		Limit    int    `json:"limit"`
	}
	res := handler.Handle(context.Background(), action.Request{
		Method:  action.KindGet,
		URL:     "https://api.example.com/search",
		Payload: filter{Category: "mugs", Limit: 5},
	}, h.rt)
	require.True(t, res.Success, res.ErrorMessage())
	require.Equal(t, url.Values{"category": {"mugs"}, "limit": {"5"}}, got.URL.Query())

	res = handler.Handle(context.Background(), action.Request{
		Method:  action.KindGet,
		URL:     "https://api.example.com/search",
		Payload: map[string]int{"page": 3},
	}, h.rt)
	require.True(t, res.Success, res.ErrorMessage())
	require.Equal(t, url.Values{"page": {"3"}}, got.URL.Query())

	res = handler.Handle(context.Background(), action.Request{
		Method:  action.KindGet,
		URL:     "https://api.example.com/search",
		Payload: []int{1, 2},
	}, h.rt)
	require.False(t, res.Success)
	require.ErrorIs(t, res.Err, action.ErrNetwork)
	require.Contains(t, res.ErrorMessage(), "query payload must be an object")
	require.Equal(t, 2, calls)
}

func TestAgainstHTTPServer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]any
		_ = json.NewDecoder(r.Body).Decode(&in)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"echo": in["email"], "method": r.Method})
	}))
	defer srv.Close()

	base, err := url.Parse(srv.URL)
	require.NoError(t, err)

	h := newHarness()
	handler := New(WithClient(srv.Client()), WithBaseURL(base))
	res := handler.Handle(context.Background(), action.Request{
		Method:  action.KindPost,
		URL:     "/subscribe",
		Payload: map[string]any{"email": "ada@example.com"},
	}, h.rt)

	require.True(t, res.Success)
	require.Equal(t, map[string]interface{}{"echo": "ada@example.com", "method": "POST"}, res.Data)
}
