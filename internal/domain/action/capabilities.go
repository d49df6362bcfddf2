package action

import "context"

// Capabilities is the bundle an embedding application hands to a dispatcher
// for one page session. A nil function means the capability is unavailable in
// that context. Handlers call through it but never modify it.
type Capabilities struct {
	Navigate   func(ctx context.Context, url string, replace bool) error
	Redirect   func(ctx context.Context, url, target string) error
	GetState   func(key string) (any, bool)
	Snapshot   func() map[string]any
	SetState   func(key string, value any, merge bool) error
	ClosePopup func(ctx context.Context) error
	TrackEvent func(ctx context.Context, name string, props map[string]any) error

	// UpdateState applies a read-modify-write to one key atomically with
	// respect to every other write in the session. Optional.
	UpdateState func(key string, update func(previous any) (any, error)) error

	FormData        map[string]any
	AllowCustomHTML bool
	Variant         string
	UserAgent       string

	// Document is the page surface used by iframe and customHtml actions.
	Document Document
	// Analytics maps provider names to their client; TrackEvent is the fallback.
	Analytics map[Provider]AnalyticsProvider
}

// Document is the subset of a page the engine can mutate.
type Document interface {
	InjectHTML(ctx context.Context, fragment HTMLFragment) error
	RemoveHTML(ctx context.Context, id string) error
	MountIframe(ctx context.Context, frame Iframe) error
}

// HTMLFragment is a resolved customHtml injection.
type HTMLFragment struct {
	ID       string
	HTML     string
	Target   string
	Position string
}

// AnalyticsProvider forwards tracking events to a vendor.
type AnalyticsProvider interface {
	Track(ctx context.Context, event string, props map[string]any) error
}

// AnalyticsProviderFunc adapts a function to AnalyticsProvider.
type AnalyticsProviderFunc func(ctx context.Context, event string, props map[string]any) error

// Track implements AnalyticsProvider.
func (f AnalyticsProviderFunc) Track(ctx context.Context, event string, props map[string]any) error {
	return f(ctx, event, props)
}

// State reads one key through the capability bundle.
func (c Capabilities) State(key string) (any, bool) {
	if c.GetState == nil {
		return nil, false
	}
	return c.GetState(key)
}
