// Package session builds the capability bundle for a headless page session.
// State lives in a ports.StateStore; page side effects (navigation, popups,
// tracking, injected markup) are recorded so callers can inspect or render
// them after a dispatch settles.
package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
	"github.com/alexisbeaulieu97/actionflow/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/actionflow/internal/ports"
)

// EffectKind names one recorded page side effect.
type EffectKind string

const (
	EffectNavigate   EffectKind = "navigate"
	EffectRedirect   EffectKind = "redirect"
	EffectClosePopup EffectKind = "closePopup"
	EffectTrack      EffectKind = "track"
	EffectInject     EffectKind = "inject"
	EffectRemove     EffectKind = "remove"
	EffectIframe     EffectKind = "iframe"
)

// Effect is one side effect the engine asked the page to perform.
type Effect struct {
	Kind    EffectKind     `json:"kind"`
	Target  string         `json:"target,omitempty"`
	Replace bool           `json:"replace,omitempty"`
	Props   map[string]any `json:"props,omitempty"`
	At      time.Time      `json:"at"`
}

// Option configures a Session.
type Option func(*Session)

// WithUserAgent sets the user agent seen by userAgent conditions.
func WithUserAgent(ua string) Option {
	return func(s *Session) { s.userAgent = ua }
}

// WithVariant sets the experiment variant exposed to handlers.
func WithVariant(variant string) Option {
	return func(s *Session) { s.variant = variant }
}

// WithCustomHTML toggles the customHtml policy gate.
func WithCustomHTML(allow bool) Option {
	return func(s *Session) { s.allowCustomHTML = allow }
}

// WithFormData sets the form values available to request bodies.
func WithFormData(data map[string]any) Option {
	return func(s *Session) { s.formData = data }
}

// WithLogger sets the logger used for store failures.
func WithLogger(logger ports.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAnalytics registers a named analytics provider client.
func WithAnalytics(provider action.Provider, client action.AnalyticsProvider) Option {
	return func(s *Session) { s.analytics[provider] = client }
}

// WithClock overrides the time source stamped on effects.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Session is a headless page: a state store plus a recorded document.
type Session struct {
	store  ports.StateStore
	logger ports.Logger
	now    func() time.Time

	userAgent       string
	variant         string
	allowCustomHTML bool
	formData        map[string]any
	analytics       map[action.Provider]action.AnalyticsProvider

	writeMu sync.Mutex

	mu        sync.Mutex
	effects   []Effect
	fragments map[string]action.HTMLFragment
	iframes   map[string]action.Iframe
}

// New creates a Session over store.
func New(store ports.StateStore, logger ports.Logger, opts ...Option) *Session {
	s := &Session{
		store:     store,
		logger:    logging.OrNoOp(logger),
		now:       time.Now,
		analytics: make(map[action.Provider]action.AnalyticsProvider),
		fragments: make(map[string]action.HTMLFragment),
		iframes:   make(map[string]action.Iframe),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capabilities returns the bundle handed to engine.New.
func (s *Session) Capabilities() action.Capabilities {
	caps := action.Capabilities{
		Navigate:        s.navigate,
		Redirect:        s.redirect,
		GetState:        s.getState,
		Snapshot:        s.snapshot,
		SetState:        s.setState,
		UpdateState:     s.updateState,
		ClosePopup:      s.closePopup,
		TrackEvent:      s.track,
		FormData:        s.formData,
		AllowCustomHTML: s.allowCustomHTML,
		Variant:         s.variant,
		UserAgent:       s.userAgent,
		Document:        (*document)(s),
	}
	if len(s.analytics) > 0 {
		caps.Analytics = s.analytics
	}
	return caps
}

// Effects returns the recorded side effects in order.
func (s *Session) Effects() []Effect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Effect(nil), s.effects...)
}

// Fragments returns the injected markup still present, ordered by id.
func (s *Session) Fragments() []action.HTMLFragment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]action.HTMLFragment, 0, len(s.fragments))
	for _, f := range s.fragments {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Iframes returns the mounted frames ordered by id.
func (s *Session) Iframes() []action.Iframe {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]action.Iframe, 0, len(s.iframes))
	for _, f := range s.iframes {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// State returns a snapshot of the store, or an empty map when it fails.
func (s *Session) State() map[string]any {
	return s.snapshot()
}

func (s *Session) record(e Effect) {
	e.At = s.now()
	s.mu.Lock()
	s.effects = append(s.effects, e)
	s.mu.Unlock()
}

func (s *Session) navigate(_ context.Context, url string, replace bool) error {
	s.record(Effect{Kind: EffectNavigate, Target: url, Replace: replace})
	return nil
}

func (s *Session) redirect(_ context.Context, url, target string) error {
	s.record(Effect{Kind: EffectRedirect, Target: url, Props: map[string]any{"target": target}})
	return nil
}

func (s *Session) closePopup(context.Context) error {
	s.record(Effect{Kind: EffectClosePopup})
	return nil
}

func (s *Session) track(_ context.Context, name string, props map[string]any) error {
	s.record(Effect{Kind: EffectTrack, Target: name, Props: props})
	return nil
}

// getState has no context in the capability signature, so store reads run
// on a background context.
func (s *Session) getState(key string) (any, bool) {
	ctx := context.Background()
	v, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ports.ErrStateKeyNotFound) {
			s.logger.Warn(ctx, "state read failed", "component", "session", "key", key, "error", err)
		}
		return nil, false
	}
	return v, true
}

func (s *Session) setState(key string, value any, _ bool) error {
	if _, ok := s.store.(ports.StateUpdater); ok {
		return s.store.Set(context.Background(), key, value)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.store.Set(context.Background(), key, value)
}

// updateState uses the store's own atomic update when it has one and
// otherwise serializes writers on the session.
func (s *Session) updateState(key string, update func(previous any) (any, error)) error {
	ctx := context.Background()
	if u, ok := s.store.(ports.StateUpdater); ok {
		return u.Update(ctx, key, update)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	previous, err := s.store.Get(ctx, key)
	if err != nil && !errors.Is(err, ports.ErrStateKeyNotFound) {
		return err
	}
	next, err := update(previous)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, key, next)
}

func (s *Session) snapshot() map[string]any {
	ctx := context.Background()
	out, err := s.store.Snapshot(ctx)
	if err != nil {
		s.logger.Warn(ctx, "state snapshot failed", "component", "session", "error", err)
		return map[string]any{}
	}
	return out
}

// document implements action.Document on the session recorder.
type document Session

func (d *document) InjectHTML(_ context.Context, fragment action.HTMLFragment) error {
	s := (*Session)(d)
	s.mu.Lock()
	s.fragments[fragment.ID] = fragment
	s.mu.Unlock()
	s.record(Effect{Kind: EffectInject, Target: fragment.ID, Props: map[string]any{
		"target":   fragment.Target,
		"position": fragment.Position,
	}})
	return nil
}

func (d *document) RemoveHTML(_ context.Context, id string) error {
	s := (*Session)(d)
	s.mu.Lock()
	delete(s.fragments, id)
	s.mu.Unlock()
	s.record(Effect{Kind: EffectRemove, Target: id})
	return nil
}

func (d *document) MountIframe(_ context.Context, frame action.Iframe) error {
	s := (*Session)(d)
	s.mu.Lock()
	s.iframes[frame.ID] = frame
	s.mu.Unlock()
	s.record(Effect{Kind: EffectIframe, Target: frame.ID, Props: map[string]any{"src": frame.Src}})
	return nil
}
