package events

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/alexisbeaulieu97/actionflow/internal/domain/event"
	"github.com/alexisbeaulieu97/actionflow/internal/ports"
)

// ErrNilEvent is returned by Emit when called without an event.
var ErrNilEvent = errors.New("event bus: nil event")

// Bus is the in-process EventBus. Every emission is written as a debug log
// entry before handlers run.
type Bus struct {
	logger  ports.Logger
	metrics ports.MetricsCollector
	subs    map[event.Type][]*listener
	mu      sync.Mutex
}

type listener struct {
	id      string
	handler ports.EventHandler
	once    bool
	claimed bool
}

// Option configures a Bus.
type Option func(*Bus)

// WithMetrics counts emissions per event type.
func WithMetrics(metrics ports.MetricsCollector) Option {
	return func(b *Bus) {
		b.metrics = metrics
	}
}

// NewBus creates an empty event bus that logs through logger.
func NewBus(logger ports.Logger, opts ...Option) *Bus {
	b := &Bus{
		logger: logger,
		subs:   make(map[event.Type][]*listener),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// On registers handler for every future emission of eventType.
func (b *Bus) On(eventType event.Type, handler ports.EventHandler) string {
	return b.add(eventType, handler, false)
}

// Once registers handler for the next emission of eventType only.
func (b *Bus) Once(eventType event.Type, handler ports.EventHandler) string {
	return b.add(eventType, handler, true)
}

func (b *Bus) add(eventType event.Type, handler ports.EventHandler, once bool) string {
	id := uuid.NewString()
	if handler == nil {
		return id
	}
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], &listener{id: id, handler: handler, once: once})
	b.mu.Unlock()
	return id
}

// Off removes the listener with the given id. It reports whether a listener
// was removed.
func (b *Bus) Off(eventType event.Type, listenerID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.removeLocked(eventType, listenerID)
}

func (b *Bus) removeLocked(eventType event.Type, listenerID string) bool {
	listeners := b.subs[eventType]
	for i, l := range listeners {
		if l.id != listenerID {
			continue
		}
		next := make([]*listener, 0, len(listeners)-1)
		next = append(next, listeners[:i]...)
		next = append(next, listeners[i+1:]...)
		if len(next) == 0 {
			delete(b.subs, eventType)
		} else {
			b.subs[eventType] = next
		}
		return true
	}
	return false
}

// Emit delivers ev to a snapshot of the listeners registered for its type, in
// registration order, and returns once every handler has returned. Handler
// errors and panics are logged and never stop delivery to siblings. Once
// listeners taken into this snapshot are removed after all handlers settle.
func (b *Bus) Emit(ctx context.Context, ev event.Event) error {
	if ev == nil {
		return ErrNilEvent
	}
	eventType := ev.EventType()

	b.mu.Lock()
	current := b.subs[eventType]
	snapshot := make([]*listener, 0, len(current))
	for _, l := range current {
		if l.once {
			if l.claimed {
				continue
			}
			l.claimed = true
		}
		snapshot = append(snapshot, l)
	}
	b.mu.Unlock()

	if b.logger != nil {
		fields := append([]interface{}{"event_type", eventType, "listeners", len(snapshot)}, event.Fields(ev)...)
		b.logger.Debug(ctx, "event emitted", fields...)
	}
	if b.metrics != nil {
		b.metrics.IncCounter(ctx, "actionflow_events_emitted_total", map[string]string{"event_type": string(eventType)})
	}

	for _, l := range snapshot {
		if err := invoke(ctx, l.handler, ev); err != nil && b.logger != nil {
			b.logger.Warn(ctx, "event handler failed", "event_type", eventType, "listener_id", l.id, "error", err)
		}
	}

	b.mu.Lock()
	for _, l := range snapshot {
		if l.once {
			b.removeLocked(eventType, l.id)
		}
	}
	b.mu.Unlock()
	return nil
}

func invoke(ctx context.Context, handler ports.EventHandler, ev event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx, ev)
}

// ListenerCount returns the number of listeners registered for eventType,
// including once listeners that have not fired yet.
func (b *Bus) ListenerCount(eventType event.Type) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[eventType])
}

// HasListeners reports whether eventType has at least one listener.
func (b *Bus) HasListeners(eventType event.Type) bool {
	return b.ListenerCount(eventType) > 0
}

// EventNames returns the event types with listeners, sorted.
func (b *Bus) EventNames() []event.Type {
	b.mu.Lock()
	names := make([]event.Type, 0, len(b.subs))
	for name := range b.subs {
		names = append(names, name)
	}
	b.mu.Unlock()
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// RemoveAllListeners drops the listeners of the given types, or of every type
// when called without arguments.
func (b *Bus) RemoveAllListeners(eventTypes ...event.Type) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(eventTypes) == 0 {
		b.subs = make(map[event.Type][]*listener)
		return
	}
	for _, t := range eventTypes {
		delete(b.subs, t)
	}
}

var _ ports.EventBus = (*Bus)(nil)
