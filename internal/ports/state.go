package ports

import (
	"context"
	"errors"
)

// ErrStateKeyNotFound is returned by StateStore.Get for unknown keys.
var ErrStateKeyNotFound = errors.New("state key not found")

// StateStore persists the shared page state behind action.Capabilities.
// Values are JSON-compatible (maps, slices, strings, numbers, bools, nil).
// Implementations must be safe for concurrent use. Error mapping rules:
//   - Missing keys → ErrStateKeyNotFound
//   - Backend failures → wrapped cause
type StateStore interface {
	Get(ctx context.Context, key string) (any, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	Snapshot(ctx context.Context) (map[string]any, error)
}

// StateUpdater is implemented by stores that can apply a read-modify-write
// to one key atomically. update receives the stored value, or nil when the
// key is missing, and may be called more than once if the store retries.
type StateUpdater interface {
	Update(ctx context.Context, key string, update func(previous any) (any, error)) error
}
