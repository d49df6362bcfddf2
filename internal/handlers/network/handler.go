// Package network implements the get, post, put, patch and delete actions.
//
// Each attempt builds a request, sends it under a fresh cancellation token
// registered in the shared registry, and classifies the outcome. Failed
// attempts are retried with exponential backoff (1s, 2s, 4s, ...) except when
// the failure is an abort.
package network

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/alexisbeaulieu97/actionflow/internal/cancellation"
	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
	"github.com/alexisbeaulieu97/actionflow/internal/domain/event"
	"github.com/alexisbeaulieu97/actionflow/internal/ports"
)

// InitialBackoff is the wait before the first retry; each later wait doubles.
const InitialBackoff = time.Second

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Handler executes network actions.
type Handler struct {
	client   ports.HTTPDoer
	sleep    Sleeper
	baseURL  *url.URL
	inflight atomic.Int64
}

// Option configures a Handler.
type Option func(*Handler)

// WithClient replaces the HTTP client.
func WithClient(client ports.HTTPDoer) Option {
	return func(h *Handler) {
		h.client = client
	}
}

// WithSleeper replaces the backoff wait.
func WithSleeper(sleep Sleeper) Option {
	return func(h *Handler) {
		h.sleep = sleep
	}
}

// WithBaseURL resolves relative action URLs against base.
func WithBaseURL(base *url.URL) Option {
	return func(h *Handler) {
		h.baseURL = base
	}
}

// New creates a network handler backed by http.DefaultClient.
func New(opts ...Option) *Handler {
	h := &Handler{
		client: http.DefaultClient,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.client == nil {
		h.client = http.DefaultClient
	}
	if h.sleep == nil {
		h.sleep = sleepContext
	}
	return h
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// newBackOff yields 1s, 2s, 4s, ... without jitter or cap.
func newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = InitialBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 24 * time.Hour
	b.Reset()
	return b
}

// Handle implements ports.ActionHandler.
func (h *Handler) Handle(ctx context.Context, act action.Action, rt ports.Runtime) action.Result {
	req, ok := act.(action.Request)
	if !ok {
		return action.Fail(action.NewHandlerError(act.Type(), fmt.Errorf("unexpected action %T", act)))
	}
	if rt.Cancellations == nil {
		rt.Cancellations = cancellation.NewRegistry()
	}
	method := strings.ToUpper(string(req.Method))
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = action.DefaultRequestTimeout
	}

	b := newBackOff()
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= req.Retries; attempt++ {
		attempts++
		data, status, err := h.attempt(ctx, req, method, timeout, rt)
		h.count(ctx, rt, method, outcome(err))
		if err == nil {
			rt.Emit(ctx, event.APISuccess{Method: method, URL: req.URL, Status: status, Attempts: attempts, Data: data})
			if req.OnSuccess != nil && rt.Dispatch != nil {
				rt.Dispatch(ctx, req.OnSuccess)
			}
			return action.Succeed(data)
		}
		lastErr = err
		if cancellation.IsAbort(err) || attempt == req.Retries {
			break
		}

		wait := b.NextBackOff()
		if rt.Logger != nil {
			rt.Logger.Warn(ctx, "request attempt failed, retrying", "method", method, "url", req.URL, "attempt", attempts, "wait", wait, "error", err)
		}
		rt.Emit(ctx, event.APIRetry{Method: method, URL: req.URL, Attempt: attempts, Wait: wait, Err: err})
		if err := h.wait(ctx, wait, rt); err != nil {
			lastErr = err
			break
		}
	}

	if rt.Logger != nil {
		rt.Logger.Warn(ctx, "request failed", "method", method, "url", req.URL, "attempts", attempts, "error", lastErr)
	}
	rt.Emit(ctx, event.APIError{Method: method, URL: req.URL, Attempts: attempts, Err: lastErr})
	if req.OnError != nil && rt.Dispatch != nil {
		rt.Dispatch(ctx, req.OnError)
	}
	return action.Fail(lastErr)
}

// wait sleeps between attempts under a registered token so owner and global
// cancellation also interrupt the backoff.
func (h *Handler) wait(ctx context.Context, d time.Duration, rt ports.Runtime) error {
	token := cancellation.NewToken(ctx)
	id := rt.Cancellations.Register(cancellation.OwnerFrom(ctx), token)
	defer rt.Cancellations.Release(id)

	if err := h.sleep(token.Context(), d); err != nil {
		return action.NewAbortError("request aborted during backoff", err)
	}
	return nil
}

var errAttemptTimeout = errors.New("attempt timed out")

func (h *Handler) attempt(ctx context.Context, req action.Request, method string, timeout time.Duration, rt ports.Runtime) (any, int, error) {
	token := cancellation.NewToken(ctx)
	id := rt.Cancellations.Register(cancellation.OwnerFrom(ctx), token)
	defer rt.Cancellations.Release(id)

	attemptCtx, cancel := context.WithTimeoutCause(token.Context(), timeout, errAttemptTimeout)
	defer cancel()

	h.gauge(ctx, rt, h.inflight.Add(1))
	defer func() { h.gauge(ctx, rt, h.inflight.Add(-1)) }()

	httpReq, err := h.build(attemptCtx, req, method)
	if err != nil {
		return nil, 0, action.NewNetworkError("build request", err)
	}

	if rt.Logger != nil {
		rt.Logger.Debug(ctx, "sending request", "method", method, "url", httpReq.URL.String())
	}
	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, 0, classify(ctx, attemptCtx, timeout, err)
	}
	defer resp.Body.Close()

	data, err := readBody(resp)
	if err != nil {
		return nil, resp.StatusCode, classify(ctx, attemptCtx, timeout, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, statusError(resp)
	}
	return data, resp.StatusCode, nil
}

// classify maps a transport failure onto abort, timeout or network errors.
// Parent cancellation and token aborts are aborts; the per-attempt deadline
// is a timeout and stays retryable.
func classify(parent, attemptCtx context.Context, timeout time.Duration, err error) error {
	if parent.Err() != nil {
		return action.NewAbortError("request aborted", context.Cause(parent))
	}
	cause := context.Cause(attemptCtx)
	switch {
	case errors.Is(cause, errAttemptTimeout):
		return action.NewTimeoutError(fmt.Sprintf("request timed out after %s", timeout))
	case cancellation.IsAbort(cause):
		return action.NewAbortError("request aborted", cause)
	}
	return action.NewNetworkError("request failed", err)
}

func statusError(resp *http.Response) error {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprint(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	e := action.NewNetworkError(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, text), nil)
	return e.WithContext(map[string]interface{}{"status": resp.StatusCode})
}

func outcome(err error) string {
	switch action.CodeOf(err) {
	case action.ErrCodeAborted:
		return "aborted"
	case action.ErrCodeTimeout:
		return "timeout"
	}
	if err != nil {
		return "error"
	}
	return "ok"
}

func (h *Handler) count(ctx context.Context, rt ports.Runtime, method, result string) {
	if rt.Metrics == nil {
		return
	}
	rt.Metrics.IncCounter(ctx, "actionflow_network_attempts_total", map[string]string{"method": method, "outcome": result})
}

func (h *Handler) gauge(ctx context.Context, rt ports.Runtime, n int64) {
	if rt.Metrics == nil {
		return
	}
	rt.Metrics.SetGauge(ctx, "actionflow_inflight_requests", float64(n), nil)
}
