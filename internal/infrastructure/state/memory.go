// Package state provides ports.StateStore implementations backing the
// session state that setState, cart and conditional actions read and write.
package state

import (
	"context"
	"sync"

	"github.com/alexisbeaulieu97/actionflow/internal/ports"
)

// MemoryStore keeps state in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewMemoryStore creates a store seeded with initial. The map is copied.
func NewMemoryStore(initial map[string]any) *MemoryStore {
	values := make(map[string]any, len(initial))
	for k, v := range initial {
		values[k] = v
	}
	return &MemoryStore{values: values}
}

// Get implements ports.StateStore.
func (s *MemoryStore) Get(_ context.Context, key string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, ports.ErrStateKeyNotFound
	}
	return v, nil
}

// Set implements ports.StateStore.
func (s *MemoryStore) Set(_ context.Context, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Delete implements ports.StateStore. Deleting a missing key is a no-op.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Snapshot implements ports.StateStore.
func (s *MemoryStore) Snapshot(_ context.Context) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out, nil
}

// Update implements ports.StateUpdater under the store lock.
func (s *MemoryStore) Update(_ context.Context, key string, update func(previous any) (any, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := update(s.values[key])
	if err != nil {
		return err
	}
	s.values[key] = next
	return nil
}
