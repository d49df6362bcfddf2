// Package engine routes actions to their handlers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexisbeaulieu97/actionflow/internal/cancellation"
	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
	"github.com/alexisbeaulieu97/actionflow/internal/domain/event"
	"github.com/alexisbeaulieu97/actionflow/internal/infrastructure/events"
	"github.com/alexisbeaulieu97/actionflow/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/actionflow/internal/ports"
	"github.com/alexisbeaulieu97/actionflow/internal/validation"
)

// Dispatcher validates actions, enforces policy and invokes the registered
// handler. It never panics and never returns an error outside a Result.
type Dispatcher struct {
	registry      *Registry
	caps          action.Capabilities
	cancellations *cancellation.Registry
	events        ports.EventBus
	logger        ports.Logger
	metrics       ports.MetricsCollector
	tracer        ports.Tracer
	observers     []Observer
}

// Observer is told about every settled dispatch, nested ones included.
type Observer func(ctx context.Context, kind action.Kind, res action.Result, elapsed time.Duration)

// Option configures a dispatcher instance.
type Option func(*Dispatcher)

// WithLogger injects a logger into the dispatcher.
func WithLogger(logger ports.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithMetrics injects a metrics collector.
func WithMetrics(metrics ports.MetricsCollector) Option {
	return func(d *Dispatcher) {
		d.metrics = metrics
	}
}

// WithTracer injects a tracer.
func WithTracer(tracer ports.Tracer) Option {
	return func(d *Dispatcher) {
		d.tracer = tracer
	}
}

// WithEvents injects the event bus handlers publish on.
func WithEvents(bus ports.EventBus) Option {
	return func(d *Dispatcher) {
		d.events = bus
	}
}

// WithObserver adds a settle observer.
func WithObserver(fn Observer) Option {
	return func(d *Dispatcher) {
		if fn != nil {
			d.observers = append(d.observers, fn)
		}
	}
}

// WithCancellations shares a cancellation registry between dispatchers.
func WithCancellations(registry *cancellation.Registry) Option {
	return func(d *Dispatcher) {
		d.cancellations = registry
	}
}

// New constructs a dispatcher over registry for one capability bundle.
func New(registry *Registry, caps action.Capabilities, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		caps:     caps,
		logger:   logging.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.registry == nil {
		d.registry = NewRegistry()
	}
	if d.cancellations == nil {
		d.cancellations = cancellation.NewRegistry()
	}
	if d.logger == nil {
		d.logger = logging.NewNoOpLogger()
	}
	d.logger = d.logger.With("component", "dispatcher")
	if d.events == nil {
		d.events = events.NewBus(d.logger, events.WithMetrics(d.metrics))
	}
	return d
}

// Dispatch validates act and runs it.
func (d *Dispatcher) Dispatch(ctx context.Context, act action.Action) action.Result {
	ctx = d.entryContext(ctx)
	if err := validation.Validate(act); err != nil {
		return d.reject(ctx, kindOf(act), err)
	}
	return d.run(ctx, act)
}

// DispatchRaw decodes an untrusted document value and runs the result.
func (d *Dispatcher) DispatchRaw(ctx context.Context, raw map[string]any) action.Result {
	ctx = d.entryContext(ctx)
	act, err := validation.Decode(raw)
	if err != nil {
		kind, _ := raw["type"].(string)
		return d.reject(ctx, action.Kind(kind), err)
	}
	return d.run(ctx, act)
}

// DispatchNamed runs actions[name].
func (d *Dispatcher) DispatchNamed(ctx context.Context, name string, actions map[string]action.Action) action.Result {
	ctx = d.entryContext(ctx)
	act, ok := actions[name]
	if !ok {
		return d.reject(ctx, "", action.NewNotFoundError(name))
	}
	return d.Dispatch(ctx, act)
}

// GetState reads shared state through the capability bundle.
func (d *Dispatcher) GetState(key string) (any, bool) {
	return d.caps.State(key)
}

// RegisterController ties token to ownerID so AbortComponent can cancel it.
// It returns the request id the token was registered under.
func (d *Dispatcher) RegisterController(ctx context.Context, ownerID string, token *cancellation.Token) string {
	ctx = d.entryContext(ctx)
	first := d.cancellations.OwnerSize(ownerID) == 0
	id := d.cancellations.Register(ownerID, token)
	if first && ownerID != "" {
		d.emit(ctx, event.ComponentMounted{OwnerID: ownerID})
	}
	return id
}

// AbortComponent aborts and removes every token owned by ownerID.
func (d *Dispatcher) AbortComponent(ctx context.Context, ownerID string) int {
	ctx = d.entryContext(ctx)
	n := d.cancellations.CancelOwner(ownerID)
	d.logger.Debug(ctx, "component aborted", "owner_id", ownerID, "aborted", n)
	d.emit(ctx, event.ComponentUnmounted{OwnerID: ownerID, Aborted: n})
	return n
}

// CancelAll aborts every outstanding token and empties the registry.
func (d *Dispatcher) CancelAll() int {
	n := d.cancellations.CancelAll()
	d.logger.Debug(context.Background(), "cancelled all in-flight work", "aborted", n)
	return n
}

// Cancellations exposes the registry handlers register tokens in.
func (d *Dispatcher) Cancellations() *cancellation.Registry {
	return d.cancellations
}

// Events exposes the bus handlers publish on.
func (d *Dispatcher) Events() ports.EventBus {
	return d.events
}

// Registry exposes the handler registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// WithOwner binds ownerID to cancellable work started by dispatches under ctx.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return cancellation.WithOwner(ctx, ownerID)
}

func (d *Dispatcher) entryContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if ports.CorrelationID(ctx) == "" {
		ctx = ports.WithCorrelationID(ctx, ports.NewCorrelationID())
	}
	return ctx
}

// run executes an already validated action. Nested dispatches re-enter here.
func (d *Dispatcher) run(ctx context.Context, act action.Action) action.Result {
	kind := act.Type()
	start := time.Now()

	var span ports.Span
	if d.tracer != nil {
		ctx, span = d.tracer.StartSpan(ctx, "dispatcher.dispatch", "action_type", string(kind))
	}

	res := d.execute(ctx, act)
	d.finish(ctx, kind, start, res)

	if span != nil {
		if res.Success {
			span.SetStatus(ports.SpanStatusOK, "")
		} else {
			span.SetStatus(ports.SpanStatusError, res.ErrorMessage())
		}
		span.End()
	}
	return res
}

func (d *Dispatcher) execute(ctx context.Context, act action.Action) action.Result {
	kind := act.Type()
	if kind == action.KindCustomHTML && !d.caps.AllowCustomHTML {
		return d.reject(ctx, kind, action.NewPolicyError(kind))
	}

	handler, ok := d.registry.Get(kind)
	if !ok {
		return d.reject(ctx, kind, &action.Error{
			Code:    action.ErrCodeValidation,
			Message: "Action validation failed: unknown type",
			Context: map[string]interface{}{"action_type": string(kind)},
		})
	}

	d.logger.Debug(ctx, "dispatching action", "action_type", kind)
	return d.invoke(ctx, handler, act)
}

func (d *Dispatcher) invoke(ctx context.Context, handler ports.ActionHandler, act action.Action) (res action.Result) {
	defer func() {
		if r := recover(); r != nil {
			err := action.NewHandlerError(act.Type(), panicError(r))
			d.logger.Error(ctx, "handler panicked", "action_type", act.Type(), "error", err)
			d.emit(ctx, event.ActionError{ActionType: string(act.Type()), Code: string(err.Code), Err: err})
			res = action.Fail(err)
		}
	}()

	res = handler.Handle(ctx, act, d.runtime())
	if !res.Success && res.Err == nil {
		res.Err = action.NewHandlerError(act.Type(), errors.New("handler failed without an error"))
	}
	return res
}

func (d *Dispatcher) runtime() ports.Runtime {
	return ports.Runtime{
		Capabilities:  d.caps,
		Dispatch:      d.run,
		Cancellations: d.cancellations,
		Events:        d.events,
		Logger:        d.logger,
		Metrics:       d.metrics,
	}
}

// reject records a failure raised by the dispatcher itself.
func (d *Dispatcher) reject(ctx context.Context, kind action.Kind, err error) action.Result {
	code := action.CodeOf(err)
	d.logger.Warn(ctx, "action rejected", "action_type", kind, "code", code, "error", err)
	d.emit(ctx, event.ActionError{ActionType: string(kind), Code: string(code), Err: err})
	return action.Fail(err)
}

func (d *Dispatcher) finish(ctx context.Context, kind action.Kind, start time.Time, res action.Result) {
	elapsed := time.Since(start)
	status := "success"
	if !res.Success {
		status = "failure"
		d.logger.Debug(ctx, "action failed", "action_type", kind, "duration_ms", elapsed.Milliseconds(), "error", res.Err)
	} else {
		d.logger.Debug(ctx, "action settled", "action_type", kind, "duration_ms", elapsed.Milliseconds())
	}
	if d.metrics != nil {
		labels := map[string]string{"action_type": string(kind), "status": status}
		d.metrics.IncCounter(ctx, "actionflow_dispatch_total", labels)
		d.metrics.ObserveHistogram(ctx, "actionflow_dispatch_duration_seconds", elapsed.Seconds(), map[string]string{"action_type": string(kind)})
	}
	for _, observe := range d.observers {
		observe(ctx, kind, res, elapsed)
	}
}

func (d *Dispatcher) emit(ctx context.Context, ev event.Event) {
	if err := d.events.Emit(ctx, ev); err != nil {
		d.logger.Warn(ctx, "emit failed", "event_type", ev.EventType(), "error", err)
	}
}

func panicError(r any) error {
	switch v := r.(type) {
	case error:
		return v
	case string:
		return errors.New(v)
	}
	return fmt.Errorf("%v", r)
}

func kindOf(act action.Action) action.Kind {
	if act == nil {
		return ""
	}
	return act.Type()
}
