package action

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the failure categories surfaced through Result.Err.
type ErrorCode string

const (
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	ErrCodePolicy     ErrorCode = "POLICY_ERROR"
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"
	ErrCodeHandler    ErrorCode = "HANDLER_ERROR"
	ErrCodeNetwork    ErrorCode = "NETWORK_ERROR"
	ErrCodeTimeout    ErrorCode = "TIMEOUT"
	ErrCodeAborted    ErrorCode = "ABORTED"
	ErrCodeBestEffort ErrorCode = "BEST_EFFORT_FAILURE"
)

// Sentinels for errors.Is comparisons. Matching is by code only.
var (
	ErrValidation = &Error{Code: ErrCodeValidation}
	ErrPolicy     = &Error{Code: ErrCodePolicy}
	ErrNotFound   = &Error{Code: ErrCodeNotFound}
	ErrHandler    = &Error{Code: ErrCodeHandler}
	ErrNetwork    = &Error{Code: ErrCodeNetwork}
	ErrTimeout    = &Error{Code: ErrCodeTimeout}
	ErrAborted    = &Error{Code: ErrCodeAborted}
	ErrBestEffort = &Error{Code: ErrCodeBestEffort}
)

// Error is the typed failure carried by a failed Result.
type Error struct {
	Code    ErrorCode
	Message string
	Field   string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface. The message is what callers display,
// so the code is not repeated in it.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, msg)
	}
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As usage.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches another Error with the same code.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) || e == nil {
		return false
	}
	return e.Code == other.Code
}

// WithContext clones the error with additional contextual metadata.
func (e *Error) WithContext(ctx map[string]interface{}) *Error {
	if e == nil {
		return nil
	}
	merged := make(map[string]interface{}, len(e.Context)+len(ctx))
	for k, v := range e.Context {
		merged[k] = v
	}
	for k, v := range ctx {
		merged[k] = v
	}
	clone := *e
	clone.Context = merged
	return &clone
}

// CodeOf returns the code of the first Error in err's chain, or ErrCodeHandler.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeHandler
}

// NewValidationError reports a schema mismatch on the given field.
func NewValidationError(field, message string) *Error {
	return &Error{Code: ErrCodeValidation, Field: field, Message: message}
}

// NewPolicyError reports a capability denied by the dispatch context.
func NewPolicyError(kind Kind) *Error {
	return &Error{
		Code:    ErrCodePolicy,
		Message: "blocked by policy",
		Context: map[string]interface{}{"action_type": string(kind)},
	}
}

// NewNotFoundError reports a named action missing from an action map.
func NewNotFoundError(name string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("Action not found: %s", name),
		Context: map[string]interface{}{"name": name},
	}
}

// NewHandlerError normalizes a failure raised inside a handler body.
func NewHandlerError(kind Kind, cause error) *Error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Code:    ErrCodeHandler,
		Message: msg,
		Cause:   cause,
		Context: map[string]interface{}{"action_type": string(kind)},
	}
}

// NewNetworkError reports a failed network attempt.
func NewNetworkError(message string, cause error) *Error {
	return &Error{Code: ErrCodeNetwork, Message: message, Cause: cause}
}

// NewTimeoutError reports a network attempt that exceeded its deadline.
func NewTimeoutError(message string) *Error {
	return &Error{Code: ErrCodeTimeout, Message: message}
}

// NewAbortError reports cooperative cancellation. Aborts are never retried.
func NewAbortError(message string, cause error) *Error {
	return &Error{Code: ErrCodeAborted, Message: message, Cause: cause}
}

// NewBestEffortFailure records a swallowed side-effect failure.
func NewBestEffortFailure(kind Kind, cause error) *Error {
	return &Error{
		Code:    ErrCodeBestEffort,
		Message: fmt.Sprintf("%s failed", kind),
		Cause:   cause,
		Context: map[string]interface{}{"action_type": string(kind)},
	}
}
