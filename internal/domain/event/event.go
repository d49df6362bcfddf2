// Package event defines the notifications published on the event bus. Events
// are a tagged union independent from actions: each tag has its own payload
// struct and nothing flows back to the emitter.
package event

import "time"

// Type is the event tag.
type Type string

const (
	TypeStateUpdated        Type = "STATE_UPDATED"
	TypeNavigate            Type = "NAVIGATE"
	TypeRedirect            Type = "REDIRECT"
	TypePopupClosed         Type = "POPUP_CLOSED"
	TypeAPISuccess          Type = "API_SUCCESS"
	TypeAPIError            Type = "API_ERROR"
	TypeAPIRetry            Type = "API_RETRY"
	TypeAnalyticsEvent      Type = "ANALYTICS_EVENT"
	TypeAnalyticsError      Type = "ANALYTICS_ERROR"
	TypePixelFired          Type = "PIXEL_FIRED"
	TypePixelError          Type = "PIXEL_ERROR"
	TypeCartUpdated         Type = "CART_UPDATED"
	TypeChainStepCompleted  Type = "CHAIN_STEP_COMPLETED"
	TypeChainCompleted      Type = "CHAIN_COMPLETED"
	TypeChainStopped        Type = "CHAIN_STOPPED"
	TypeParallelCompleted   Type = "PARALLEL_COMPLETED"
	TypeConditionEvaluated  Type = "CONDITION_EVALUATED"
	TypeConditionalExecuted Type = "CONDITIONAL_EXECUTED"
	TypeDelayCompleted      Type = "DELAY_COMPLETED"
	TypeActionError         Type = "ACTION_ERROR"
	TypeLogEvent            Type = "LOG_EVENT"
	TypeHTMLRendered        Type = "HTML_RENDERED"
	TypeHTMLError           Type = "HTML_ERROR"
	TypeHTMLRemoved         Type = "HTML_REMOVED"
	TypeIframeLoaded        Type = "IFRAME_LOADED"
	TypeIframeError         Type = "IFRAME_ERROR"
	TypeComponentMounted    Type = "COMPONENT_MOUNTED"
	TypeComponentUnmounted  Type = "COMPONENT_UNMOUNTED"
)

// Types lists every event tag in declaration order.
var Types = []Type{
	TypeStateUpdated, TypeNavigate, TypeRedirect, TypePopupClosed,
	TypeAPISuccess, TypeAPIError, TypeAPIRetry,
	TypeAnalyticsEvent, TypeAnalyticsError, TypePixelFired, TypePixelError,
	TypeCartUpdated,
	TypeChainStepCompleted, TypeChainCompleted, TypeChainStopped, TypeParallelCompleted,
	TypeConditionEvaluated, TypeConditionalExecuted, TypeDelayCompleted,
	TypeActionError, TypeLogEvent,
	TypeHTMLRendered, TypeHTMLError, TypeHTMLRemoved, TypeIframeLoaded, TypeIframeError,
	TypeComponentMounted, TypeComponentUnmounted,
}

// Event is implemented by every payload struct.
type Event interface {
	EventType() Type
}

type StateUpdated struct {
	Key      string
	Previous any
	Value    any
	Merged   bool
}

type Navigated struct {
	URL     string
	Replace bool
}

type Redirected struct {
	URL    string
	Target string
}

type PopupClosed struct{}

type APISuccess struct {
	Method   string
	URL      string
	Status   int
	Attempts int
	Data     any
}

type APIError struct {
	Method   string
	URL      string
	Attempts int
	Err      error
}

// APIRetry is emitted before the handler waits to retry a failed attempt.
type APIRetry struct {
	Method  string
	URL     string
	Attempt int
	Wait    time.Duration
	Err     error
}

type AnalyticsTracked struct {
	Provider   string
	Event      string
	Properties map[string]any
}

type AnalyticsFailed struct {
	Provider string
	Event    string
	Err      error
}

type PixelFired struct {
	URL    string
	Status int
}

type PixelFailed struct {
	URL string
	Err error
}

type CartUpdated struct {
	Operation string
	Previous  any
	Cart      any
}

type ChainStepCompleted struct {
	Index   int
	Total   int
	Success bool
	Err     error
}

type ChainCompleted struct {
	Total   int
	Success bool
}

type ChainStopped struct {
	Index int
	Err   error
}

type ParallelCompleted struct {
	Total      int
	WaitForAll bool
	Success    bool
}

type ConditionEvaluated struct {
	Condition string
	Key       string
	Met       bool
}

type ConditionalExecuted struct {
	Condition string
	Branch    string
	Success   bool
}

type DelayCompleted struct {
	Requested time.Duration
	Actual    time.Duration
}

type ActionError struct {
	ActionType string
	Code       string
	Err        error
}

type LogEvent struct {
	Level   string
	Message string
	Data    any
}

type HTMLRendered struct {
	ID       string
	Target   string
	Position string
}

type HTMLError struct {
	ID  string
	Err error
}

type HTMLRemoved struct {
	ID string
}

type IframeLoaded struct {
	ID  string
	Src string
}

type IframeError struct {
	ID  string
	Src string
	Err error
}

type ComponentMounted struct {
	OwnerID string
}

type ComponentUnmounted struct {
	OwnerID string
	Aborted int
}

func (StateUpdated) EventType() Type        { return TypeStateUpdated }
func (Navigated) EventType() Type           { return TypeNavigate }
func (Redirected) EventType() Type          { return TypeRedirect }
func (PopupClosed) EventType() Type         { return TypePopupClosed }
func (APISuccess) EventType() Type          { return TypeAPISuccess }
func (APIError) EventType() Type            { return TypeAPIError }
func (APIRetry) EventType() Type            { return TypeAPIRetry }
func (AnalyticsTracked) EventType() Type    { return TypeAnalyticsEvent }
func (AnalyticsFailed) EventType() Type     { return TypeAnalyticsError }
func (PixelFired) EventType() Type          { return TypePixelFired }
func (PixelFailed) EventType() Type         { return TypePixelError }
func (CartUpdated) EventType() Type         { return TypeCartUpdated }
func (ChainStepCompleted) EventType() Type  { return TypeChainStepCompleted }
func (ChainCompleted) EventType() Type      { return TypeChainCompleted }
func (ChainStopped) EventType() Type        { return TypeChainStopped }
func (ParallelCompleted) EventType() Type   { return TypeParallelCompleted }
func (ConditionEvaluated) EventType() Type  { return TypeConditionEvaluated }
func (ConditionalExecuted) EventType() Type { return TypeConditionalExecuted }
func (DelayCompleted) EventType() Type      { return TypeDelayCompleted }
func (ActionError) EventType() Type         { return TypeActionError }
func (LogEvent) EventType() Type            { return TypeLogEvent }
func (HTMLRendered) EventType() Type        { return TypeHTMLRendered }
func (HTMLError) EventType() Type           { return TypeHTMLError }
func (HTMLRemoved) EventType() Type         { return TypeHTMLRemoved }
func (IframeLoaded) EventType() Type        { return TypeIframeLoaded }
func (IframeError) EventType() Type         { return TypeIframeError }
func (ComponentMounted) EventType() Type    { return TypeComponentMounted }
func (ComponentUnmounted) EventType() Type  { return TypeComponentUnmounted }

// Fields flattens an event into key/value pairs for structured logging.
func Fields(ev Event) []interface{} {
	switch e := ev.(type) {
	case StateUpdated:
		return []interface{}{"key", e.Key, "merged", e.Merged}
	case Navigated:
		return []interface{}{"url", e.URL, "replace", e.Replace}
	case Redirected:
		return []interface{}{"url", e.URL, "target", e.Target}
	case APISuccess:
		return []interface{}{"method", e.Method, "url", e.URL, "status", e.Status, "attempts", e.Attempts}
	case APIError:
		return []interface{}{"method", e.Method, "url", e.URL, "attempts", e.Attempts, "error", e.Err}
	case APIRetry:
		return []interface{}{"method", e.Method, "url", e.URL, "attempt", e.Attempt, "wait", e.Wait, "error", e.Err}
	case AnalyticsTracked:
		return []interface{}{"provider", e.Provider, "event", e.Event}
	case AnalyticsFailed:
		return []interface{}{"provider", e.Provider, "event", e.Event, "error", e.Err}
	case PixelFired:
		return []interface{}{"url", e.URL, "status", e.Status}
	case PixelFailed:
		return []interface{}{"url", e.URL, "error", e.Err}
	case CartUpdated:
		return []interface{}{"operation", e.Operation}
	case ChainStepCompleted:
		return []interface{}{"index", e.Index, "total", e.Total, "success", e.Success}
	case ChainCompleted:
		return []interface{}{"total", e.Total, "success", e.Success}
	case ChainStopped:
		return []interface{}{"index", e.Index, "error", e.Err}
	case ParallelCompleted:
		return []interface{}{"total", e.Total, "wait_for_all", e.WaitForAll, "success", e.Success}
	case ConditionEvaluated:
		return []interface{}{"condition", e.Condition, "key", e.Key, "met", e.Met}
	case ConditionalExecuted:
		return []interface{}{"condition", e.Condition, "branch", e.Branch, "success", e.Success}
	case DelayCompleted:
		return []interface{}{"requested", e.Requested, "actual", e.Actual}
	case ActionError:
		return []interface{}{"action_type", e.ActionType, "code", e.Code, "error", e.Err}
	case LogEvent:
		return []interface{}{"level", e.Level, "message", e.Message}
	case HTMLRendered:
		return []interface{}{"id", e.ID, "target", e.Target, "position", e.Position}
	case HTMLError:
		return []interface{}{"id", e.ID, "error", e.Err}
	case HTMLRemoved:
		return []interface{}{"id", e.ID}
	case IframeLoaded:
		return []interface{}{"id", e.ID, "src", e.Src}
	case IframeError:
		return []interface{}{"id", e.ID, "src", e.Src, "error", e.Err}
	case ComponentMounted:
		return []interface{}{"owner_id", e.OwnerID}
	case ComponentUnmounted:
		return []interface{}{"owner_id", e.OwnerID, "aborted", e.Aborted}
	}
	return nil
}
