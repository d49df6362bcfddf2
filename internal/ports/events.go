package ports

import (
	"context"

	"github.com/alexisbeaulieu97/actionflow/internal/domain/event"
)

// EventHandler processes one event. Handlers should report failures through
// the returned error; the bus logs it and keeps delivering to siblings.
type EventHandler func(context.Context, event.Event) error

// EventBus is the process-wide publish/subscribe side channel. Emit blocks
// until every handler registered at the time of the call has returned, so
// observability signals are never lost when a dispatch settles. Listener ids
// are the only removal handle; collaborators must keep and dispose of them.
// Implementations must be safe for concurrent use.
type EventBus interface {
	On(eventType event.Type, handler EventHandler) string
	Once(eventType event.Type, handler EventHandler) string
	Off(eventType event.Type, listenerID string) bool
	Emit(ctx context.Context, ev event.Event) error
	ListenerCount(eventType event.Type) int
	HasListeners(eventType event.Type) bool
	EventNames() []event.Type
	RemoveAllListeners(eventTypes ...event.Type)
}
