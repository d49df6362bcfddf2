package action

import (
	"strings"
	"time"
)

// Kind is the discriminant carried by every action variant.
type Kind string

const (
	KindNavigate    Kind = "navigate"
	KindClosePopup  Kind = "closePopup"
	KindRedirect    Kind = "redirect"
	KindGet         Kind = "get"
	KindPost        Kind = "post"
	KindPut         Kind = "put"
	KindPatch       Kind = "patch"
	KindDelete      Kind = "delete"
	KindAnalytics   Kind = "analytics"
	KindPixel       Kind = "pixel"
	KindIframe      Kind = "iframe"
	KindCustomHTML  Kind = "customHtml"
	KindSetState    Kind = "setState"
	KindCart        Kind = "cart"
	KindChain       Kind = "chain"
	KindParallel    Kind = "parallel"
	KindConditional Kind = "conditional"
	KindDelay       Kind = "delay"
	KindLog         Kind = "log"
)

// PluginPrefix namespaces third-party action kinds registered at runtime.
const PluginPrefix = "plugin:"

// BuiltinKinds lists every discriminant understood by the validator.
var BuiltinKinds = []Kind{
	KindNavigate, KindClosePopup, KindRedirect,
	KindGet, KindPost, KindPut, KindPatch, KindDelete,
	KindAnalytics, KindPixel, KindIframe, KindCustomHTML,
	KindSetState, KindCart,
	KindChain, KindParallel, KindConditional, KindDelay,
	KindLog,
}

// IsBuiltin reports whether the kind is part of the closed built-in set.
func (k Kind) IsBuiltin() bool {
	for _, known := range BuiltinKinds {
		if k == known {
			return true
		}
	}
	return false
}

// IsPlugin reports whether the kind lives in the plugin namespace.
func (k Kind) IsPlugin() bool {
	return strings.HasPrefix(string(k), PluginPrefix) && len(k) > len(PluginPrefix)
}

// IsNetwork reports whether the kind is one of the HTTP verbs.
func (k Kind) IsNetwork() bool {
	switch k {
	case KindGet, KindPost, KindPut, KindPatch, KindDelete:
		return true
	}
	return false
}

// Action is the closed set of declarative behaviours the dispatcher understands.
// Composite variants own their children by value, so an action is always a tree.
type Action interface {
	Type() Kind
}

// Navigate performs in-app navigation.
type Navigate struct {
	URL     string `mapstructure:"url" validate:"required"`
	Replace bool   `mapstructure:"replace"`
}

// ClosePopup closes the popup hosting the emitting component.
type ClosePopup struct{}

// Redirect performs a full-page navigation.
type Redirect struct {
	URL    string `mapstructure:"url" validate:"required"`
	Target string `mapstructure:"target" validate:"omitempty,oneof=_self _blank"`
}

// Request is the network action. Method carries the discriminant.
type Request struct {
	Method    Kind              `mapstructure:"type" validate:"http_verb"`
	URL       string            `mapstructure:"url" validate:"required"`
	Payload   any               `mapstructure:"payload"`
	Headers   map[string]string `mapstructure:"headers"`
	Timeout   time.Duration     `mapstructure:"timeout" validate:"gte=0"`
	Retries   int               `mapstructure:"retries" validate:"gte=0,lte=10"`
	OnSuccess Action            `mapstructure:"-" validate:"-"`
	OnError   Action            `mapstructure:"-" validate:"-"`
}

// Analytics forwards a tracking event to a provider.
type Analytics struct {
	Event      string         `mapstructure:"event" validate:"required"`
	Properties map[string]any `mapstructure:"properties"`
	Provider   Provider       `mapstructure:"provider" validate:"omitempty,oneof=gtag segment mixpanel"`
}

// Provider names an analytics backend.
type Provider string

const (
	ProviderGtag     Provider = "gtag"
	ProviderSegment  Provider = "segment"
	ProviderMixpanel Provider = "mixpanel"
)

// Pixel fires a tracking pixel request.
type Pixel struct {
	URL    string         `mapstructure:"url" validate:"required"`
	Params map[string]any `mapstructure:"params"`
	Async  bool           `mapstructure:"async"`
}

// Iframe mounts an embedded frame.
type Iframe struct {
	Src    string            `mapstructure:"src" validate:"required"`
	Width  string            `mapstructure:"width" validate:"required"`
	Height string            `mapstructure:"height" validate:"required"`
	ID     string            `mapstructure:"id"`
	Style  map[string]string `mapstructure:"style"`
}

// CustomHTML injects a raw HTML fragment. Gated by Capabilities.AllowCustomHTML.
type CustomHTML struct {
	HTML        string        `mapstructure:"html" validate:"required"`
	Target      string        `mapstructure:"target" validate:"omitempty,oneof=head body"`
	Position    string        `mapstructure:"position" validate:"omitempty,oneof=append prepend"`
	ID          string        `mapstructure:"id"`
	RemoveAfter time.Duration `mapstructure:"removeAfter" validate:"gte=0"`
}

// SetState writes a value into shared state.
type SetState struct {
	Key   string `mapstructure:"key" validate:"required"`
	Value any    `mapstructure:"value"`
	Merge bool   `mapstructure:"merge"`
}

// CartOperation enumerates cart mutations.
type CartOperation string

const (
	CartAdd            CartOperation = "add"
	CartRemove         CartOperation = "remove"
	CartUpdate         CartOperation = "update"
	CartUpdateQuantity CartOperation = "updateQuantity"
	CartClear          CartOperation = "clear"
)

// Cart mutates the shopping cart kept in shared state.
type Cart struct {
	Operation CartOperation `mapstructure:"operation" validate:"required,oneof=add remove update updateQuantity clear"`
	Item      *CartItem     `mapstructure:"item" validate:"required_if=Operation add,required_if=Operation update"`
	ItemID    string        `mapstructure:"itemId" validate:"required_if=Operation remove,required_if=Operation updateQuantity"`
	Quantity  *int          `mapstructure:"quantity" validate:"required_if=Operation updateQuantity"`
}

// CartItem is a single line in the cart.
type CartItem struct {
	ID         string         `mapstructure:"id" json:"id" validate:"required"`
	Name       string         `mapstructure:"name" json:"name,omitempty"`
	Price      float64        `mapstructure:"price" json:"price,omitempty" validate:"gte=0"`
	Quantity   int            `mapstructure:"quantity" json:"quantity" validate:"gte=0"`
	Attributes map[string]any `mapstructure:"attributes" json:"attributes,omitempty"`
}

// Chain runs actions one after another.
type Chain struct {
	Actions     []Action `mapstructure:"-" validate:"-"`
	StopOnError bool     `mapstructure:"stopOnError"`
}

// Parallel runs actions concurrently. Documents default WaitForAll to true;
// Go callers that build the struct directly get race mode unless they set it.
type Parallel struct {
	Actions    []Action `mapstructure:"-" validate:"-"`
	WaitForAll bool     `mapstructure:"waitForAll"`
}

// Conditional dispatches one of two branches.
type Conditional struct {
	Condition ConditionKind `mapstructure:"condition" validate:"required,oneof=stateEquals stateExists stateMatches userAgentMatches userAgentIncludes custom"`
	Key       string        `mapstructure:"key"`
	Value     any           `mapstructure:"value"`
	Pattern   string        `mapstructure:"pattern"`
	Flags     string        `mapstructure:"flags"`
	IfTrue    Action        `mapstructure:"-" validate:"-"`
	IfFalse   Action        `mapstructure:"-" validate:"-"`
}

// Delay waits before optionally dispatching a continuation.
type Delay struct {
	Duration time.Duration `mapstructure:"duration" validate:"gte=0"`
	Then     Action        `mapstructure:"-" validate:"-"`
}

// LogLevel is the severity of a log action.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Log writes a structured log line.
type Log struct {
	Message string   `mapstructure:"message" validate:"required"`
	Level   LogLevel `mapstructure:"level" validate:"omitempty,oneof=info warn error debug"`
	Data    any      `mapstructure:"data"`
}

// Plugin is an action handled by a handler registered under the plugin namespace.
type Plugin struct {
	Name   string         `validate:"required"`
	Params map[string]any `validate:"-"`
}

func (Navigate) Type() Kind    { return KindNavigate }
func (ClosePopup) Type() Kind  { return KindClosePopup }
func (Redirect) Type() Kind    { return KindRedirect }
func (r Request) Type() Kind   { return r.Method }
func (Analytics) Type() Kind   { return KindAnalytics }
func (Pixel) Type() Kind       { return KindPixel }
func (Iframe) Type() Kind      { return KindIframe }
func (CustomHTML) Type() Kind  { return KindCustomHTML }
func (SetState) Type() Kind    { return KindSetState }
func (Cart) Type() Kind        { return KindCart }
func (Chain) Type() Kind       { return KindChain }
func (Parallel) Type() Kind    { return KindParallel }
func (Conditional) Type() Kind { return KindConditional }
func (Delay) Type() Kind       { return KindDelay }
func (Log) Type() Kind         { return KindLog }
func (p Plugin) Type() Kind    { return Kind(PluginPrefix + p.Name) }

// Children returns the nested actions of a composite in evaluation order.
// Leaf actions return nil.
func Children(a Action) []Action {
	switch v := a.(type) {
	case Chain:
		return v.Actions
	case Parallel:
		return v.Actions
	case Conditional:
		return compact(v.IfTrue, v.IfFalse)
	case Delay:
		return compact(v.Then)
	case Request:
		return compact(v.OnSuccess, v.OnError)
	}
	return nil
}

func compact(actions ...Action) []Action {
	out := make([]Action, 0, len(actions))
	for _, a := range actions {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}

// Defaults applied to decoded actions when the field is absent.
const (
	DefaultRequestTimeout = 10 * time.Second
	DefaultRedirectTarget = "_self"
	DefaultHTMLTarget     = "body"
	DefaultHTMLPosition   = "append"
)
