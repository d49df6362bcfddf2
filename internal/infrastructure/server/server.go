// Package server exposes the dispatcher over HTTP. Every request runs
// against a session resolved from the X-Session-ID header; the registry,
// event bus and cancellation registry are shared by all requests.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/alexisbeaulieu97/actionflow/internal/cancellation"
	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
	"github.com/alexisbeaulieu97/actionflow/internal/engine"
	"github.com/alexisbeaulieu97/actionflow/internal/infrastructure/config"
	"github.com/alexisbeaulieu97/actionflow/internal/infrastructure/events"
	"github.com/alexisbeaulieu97/actionflow/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/actionflow/internal/ports"
	"github.com/alexisbeaulieu97/actionflow/internal/session"
)

const (
	// SessionHeader selects the state session of a request.
	SessionHeader = "X-Session-ID"
	// CorrelationHeader carries the correlation id in and out.
	CorrelationHeader = "X-Correlation-ID"
	// OwnerParam binds cancellable work to a component owner.
	OwnerParam = "owner"

	defaultSession = "default"
	maxBodyBytes   = 1 << 20
)

// SessionFactory resolves the session a request dispatches against.
type SessionFactory func(ctx context.Context, sessionID string) (*session.Session, error)

// MetricsHandler is a metrics collector that can also serve its samples.
type MetricsHandler interface {
	ports.MetricsCollector
	Handler() http.Handler
}

// Server routes HTTP requests into dispatches.
type Server struct {
	registry      *engine.Registry
	sessions      SessionFactory
	document      *config.Document
	events        ports.EventBus
	cancellations *cancellation.Registry
	logger        ports.Logger
	metrics       MetricsHandler
	tracer        ports.Tracer
}

// Option configures a Server.
type Option func(*Server)

// WithDocument serves the named actions of doc under /actions.
func WithDocument(doc *config.Document) Option {
	return func(s *Server) { s.document = doc }
}

// WithLogger sets the request logger.
func WithLogger(logger ports.Logger) Option {
	return func(s *Server) { s.logger = logging.OrNoOp(logger) }
}

// WithMetrics records dispatch metrics and serves them on /metrics.
func WithMetrics(m MetricsHandler) Option {
	return func(s *Server) { s.metrics = m }
}

// WithTracer traces every dispatch.
func WithTracer(tracer ports.Tracer) Option {
	return func(s *Server) { s.tracer = tracer }
}

// WithEvents shares an existing bus with the server's dispatchers.
func WithEvents(bus ports.EventBus) Option {
	return func(s *Server) { s.events = bus }
}

// New creates a Server.
func New(registry *engine.Registry, sessions SessionFactory, opts ...Option) *Server {
	s := &Server{
		registry:      registry,
		sessions:      sessions,
		cancellations: cancellation.NewRegistry(),
		logger:        logging.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "server")
	if s.events == nil {
		s.events = events.NewBus(s.logger)
	}
	return s
}

// Cancellations exposes the registry shared across requests.
func (s *Server) Cancellations() *cancellation.Registry {
	return s.cancellations
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.correlate)

	r.Get("/healthz", s.health)
	r.Post("/dispatch", s.dispatchRaw)
	r.Get("/actions", s.listActions)
	r.Post("/actions/{name}", s.dispatchNamed)
	r.Delete("/components/{owner}", s.abortComponent)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}

// Response is the body of every dispatch endpoint.
type Response struct {
	Result  action.Result    `json:"result"`
	Effects []session.Effect `json:"effects"`
	State   map[string]any   `json:"state"`
}

func (s *Server) correlate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationHeader)
		if id == "" {
			id = ports.NewCorrelationID()
		}
		w.Header().Set(CorrelationHeader, id)
		ctx := ports.WithCorrelationID(r.Context(), id)

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		s.logger.Info(ctx, "request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), s.logger, w, http.StatusOK, map[string]any{
		"status":   "ok",
		"handlers": len(s.registry.Kinds()),
		"pending":  s.cancellations.Size(),
	})
}

func (s *Server) listActions(w http.ResponseWriter, r *http.Request) {
	names := []string{}
	if s.document != nil {
		names = append(names, s.document.Order...)
	}
	writeJSON(r.Context(), s.logger, w, http.StatusOK, map[string]any{"actions": names})
}

func (s *Server) dispatchRaw(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		s.writeError(r.Context(), w, http.StatusBadRequest, fmt.Errorf("decode request body: %w", err))
		return
	}
	s.serveDispatch(w, r, func(ctx context.Context, d *engine.Dispatcher) action.Result {
		return d.DispatchRaw(ctx, raw)
	})
}

func (s *Server) dispatchNamed(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var actions map[string]action.Action
	if s.document != nil {
		actions = s.document.Actions
	}
	s.serveDispatch(w, r, func(ctx context.Context, d *engine.Dispatcher) action.Result {
		return d.DispatchNamed(ctx, name, actions)
	})
}

func (s *Server) abortComponent(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	d := s.dispatcher(action.Capabilities{})
	n := d.AbortComponent(r.Context(), owner)
	writeJSON(r.Context(), s.logger, w, http.StatusOK, map[string]any{"owner": owner, "aborted": n})
}

func (s *Server) serveDispatch(w http.ResponseWriter, r *http.Request, run func(context.Context, *engine.Dispatcher) action.Result) {
	ctx := r.Context()
	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		sessionID = defaultSession
	}
	sess, err := s.sessions(ctx, sessionID)
	if err != nil {
		s.writeError(ctx, w, http.StatusServiceUnavailable, fmt.Errorf("open session %q: %w", sessionID, err))
		return
	}
	// Race losers and async effects outlive the response, so the dispatch is
	// detached from the request. Teardown goes through the cancellation
	// registry: DELETE /components/{owner} or CancelAll on shutdown.
	dctx := context.WithoutCancel(ctx)
	if owner := r.URL.Query().Get(OwnerParam); owner != "" {
		dctx = engine.WithOwner(dctx, owner)
	}

	before := len(sess.Effects())
	res := run(dctx, s.dispatcher(sess.Capabilities()))
	writeJSON(ctx, s.logger, w, statusFor(res), Response{
		Result:  res,
		Effects: sess.Effects()[before:],
		State:   sess.State(),
	})
}

func (s *Server) dispatcher(caps action.Capabilities) *engine.Dispatcher {
	opts := []engine.Option{
		engine.WithEvents(s.events),
		engine.WithCancellations(s.cancellations),
		engine.WithLogger(s.logger),
	}
	if s.metrics != nil {
		opts = append(opts, engine.WithMetrics(s.metrics))
	}
	if s.tracer != nil {
		opts = append(opts, engine.WithTracer(s.tracer))
	}
	return engine.New(s.registry, caps, opts...)
}

// statusFor maps a dispatch outcome onto an HTTP status. Failures keep the
// full Result in the body either way.
func statusFor(res action.Result) int {
	if res.Success {
		return http.StatusOK
	}
	switch action.CodeOf(res.Err) {
	case action.ErrCodeValidation:
		return http.StatusUnprocessableEntity
	case action.ErrCodePolicy:
		return http.StatusForbidden
	case action.ErrCodeNotFound:
		return http.StatusNotFound
	case action.ErrCodeNetwork:
		return http.StatusBadGateway
	case action.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case action.ErrCodeAborted:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		status = http.StatusRequestEntityTooLarge
	}
	s.logger.Warn(ctx, "request rejected", "status", status, "error", err)
	writeJSON(ctx, s.logger, w, status, map[string]any{"error": err.Error()})
}

func writeJSON(ctx context.Context, logger ports.Logger, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error(ctx, "response encode failed", "error", err)
	}
}
