package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/alexisbeaulieu97/actionflow/internal/ports"
)

// RedisStore keeps one session's state in a Redis hash. Values are stored
// as JSON, so numbers read back as float64 and typed structs as objects.
type RedisStore struct {
	client  *backend.Client
	prefix  string
	session string
	ttl     time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL expires the session hash after ttl of inactivity. Zero keeps it forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for session hashes.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore connects to addr and scopes the store to session.
func NewRedisStore(addr, password string, db int, session string, opts ...RedisOption) *RedisStore {
	client := backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreFromClient(client, session, opts...)
}

// NewRedisStoreFromClient scopes an existing client to session.
func NewRedisStoreFromClient(client *backend.Client, session string, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:  client,
		prefix:  "actionflow:state:",
		session: session,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key() string {
	return s.prefix + s.session
}

// Get implements ports.StateStore.
func (s *RedisStore) Get(ctx context.Context, key string) (any, error) {
	raw, err := s.client.HGet(ctx, s.key(), key).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, ports.ErrStateKeyNotFound
		}
		return nil, fmt.Errorf("get state %q: %w", key, err)
	}
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, fmt.Errorf("decode state %q: %w", key, err)
	}
	return value, nil
}

// Set implements ports.StateStore.
func (s *RedisStore) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode state %q: %w", key, err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key(), key, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set state %q: %w", key, err)
	}
	return nil
}

// maxUpdateAttempts bounds optimistic retries when another writer touches
// the session hash between WATCH and EXEC.
const maxUpdateAttempts = 16

// ErrUpdateConflict is returned when Update keeps losing to concurrent writers.
var ErrUpdateConflict = errors.New("state update conflict")

// Update implements ports.StateUpdater with WATCH on the session hash, so
// writers in other processes cannot interleave with the read-modify-write.
func (s *RedisStore) Update(ctx context.Context, key string, update func(previous any) (any, error)) error {
	txn := func(tx *backend.Tx) error {
		var previous any
		raw, err := tx.HGet(ctx, s.key(), key).Result()
		switch {
		case errors.Is(err, backend.Nil):
		case err != nil:
			return fmt.Errorf("get state %q: %w", key, err)
		default:
			if err := json.Unmarshal([]byte(raw), &previous); err != nil {
				return fmt.Errorf("decode state %q: %w", key, err)
			}
		}

		next, err := update(previous)
		if err != nil {
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode state %q: %w", key, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			pipe.HSet(ctx, s.key(), key, data)
			if s.ttl > 0 {
				pipe.Expire(ctx, s.key(), s.ttl)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txn, s.key())
		if errors.Is(err, backend.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update state %q: %w", key, ErrUpdateConflict)
}

// Delete implements ports.StateStore.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.HDel(ctx, s.key(), key).Err(); err != nil {
		return fmt.Errorf("delete state %q: %w", key, err)
	}
	return nil
}

// Snapshot implements ports.StateStore.
func (s *RedisStore) Snapshot(ctx context.Context) (map[string]any, error) {
	fields, err := s.client.HGetAll(ctx, s.key()).Result()
	if err != nil {
		return nil, fmt.Errorf("snapshot state: %w", err)
	}
	out := make(map[string]any, len(fields))
	for k, raw := range fields {
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("decode state %q: %w", k, err)
		}
		out[k] = value
	}
	return out, nil
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
