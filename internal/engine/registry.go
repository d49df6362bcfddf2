package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
	"github.com/alexisbeaulieu97/actionflow/internal/ports"
)

// Registry maps action kinds to their handlers. It is the single extension
// point for new action types.
type Registry struct {
	mu       sync.RWMutex
	handlers map[action.Kind]ports.ActionHandler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[action.Kind]ports.ActionHandler)}
}

// Register stores handler under kind. Registering a kind twice is an error.
func (r *Registry) Register(kind action.Kind, handler ports.ActionHandler) error {
	if kind == "" {
		return fmt.Errorf("action kind is required")
	}
	if handler == nil {
		return fmt.Errorf("handler is nil for kind %q", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[kind]; exists {
		return fmt.Errorf("handler for kind %q already registered", kind)
	}
	r.handlers[kind] = handler
	return nil
}

// RegisterFunc registers a plain function as the handler for kind.
func (r *Registry) RegisterFunc(kind action.Kind, fn ports.HandlerFunc) error {
	if fn == nil {
		return fmt.Errorf("handler is nil for kind %q", kind)
	}
	return r.Register(kind, fn)
}

// RegisterPlugin stores handler under the plugin namespace (plugin:<name>).
func (r *Registry) RegisterPlugin(name string, handler ports.ActionHandler) error {
	if name == "" {
		return fmt.Errorf("plugin name is required")
	}
	return r.Register(action.Kind(action.PluginPrefix+name), handler)
}

// Get returns the handler for kind.
func (r *Registry) Get(kind action.Kind) (ports.ActionHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[kind]
	return h, ok
}

// Kinds lists registered kinds in sorted order.
func (r *Registry) Kinds() []action.Kind {
	r.mu.RLock()
	kinds := make([]action.Kind, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	r.mu.RUnlock()
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
