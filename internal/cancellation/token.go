// Package cancellation tracks in-flight cancellable work so it can be aborted
// per request, per owning component, or all at once.
//
// Cancellation is cooperative: a token only affects work that observes
// Token.Context at its suspension points. Handlers that start cancellable
// operations must register a token and release it on every settlement path.
package cancellation

import (
	"context"
	"errors"

	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
)

// ErrAborted is the cancellation cause recorded when a token is aborted.
var ErrAborted = action.NewAbortError("operation aborted", nil)

var errReleased = errors.New("token released")

// Token is a cooperative cancellation signal.
type Token struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
}

// NewToken derives a token from parent. Cancelling parent also cancels the token.
func NewToken(parent context.Context) *Token {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancelCause(parent)
	return &Token{ctx: ctx, cancel: cancel}
}

// Context returns the context observed by the cancellable operation.
func (t *Token) Context() context.Context {
	return t.ctx
}

// Done is closed once the token is aborted or released.
func (t *Token) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Abort signals cancellation with ErrAborted as the cause.
func (t *Token) Abort() {
	t.cancel(ErrAborted)
}

// Release frees the token's resources after the operation settled.
func (t *Token) Release() {
	t.cancel(errReleased)
}

// Aborted reports whether the token was aborted, either directly or through
// its parent context being cancelled.
func (t *Token) Aborted() bool {
	return IsAbort(context.Cause(t.ctx))
}

// IsAbort reports whether err represents a cooperative abort rather than a
// deadline or an ordinary failure.
func IsAbort(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, action.ErrAborted) {
		return true
	}
	return errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

type ownerKey struct{}

// WithOwner records which component owns cancellable work started under ctx.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// OwnerFrom extracts the owner id recorded by WithOwner.
func OwnerFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(ownerKey{}).(string); ok {
		return id
	}
	return ""
}
