package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists the error budget state.
type Store interface {
	// Load returns the stored state, or nil when nothing has been stored yet.
	Load(ctx context.Context) (*State, error)

	// Save replaces the stored state.
	Save(ctx context.Context, state *State) error
}

// MemoryStore keeps the state in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	state *State
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store.
func (m *MemoryStore) Load(ctx context.Context) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == nil {
		return nil, nil
	}
	state := *m.state
	return &state, nil
}

// Save implements Store.
func (m *MemoryStore) Save(ctx context.Context, state *State) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	copied := *state
	m.mu.Lock()
	m.state = &copied
	m.mu.Unlock()
	return nil
}

// DefaultRedisPrefix namespaces the Redis keys of a RedisStore.
const DefaultRedisPrefix = "reqflow:rate_limit"

// RedisStore keeps the state in Redis so several clients of the same
// upstream observe one budget.
type RedisStore struct {
	redis  *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed store. An empty prefix selects
// DefaultRedisPrefix.
func NewRedisStore(redisClient *redis.Client, prefix string) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (r *RedisStore) key(field string) string {
	return r.prefix + ":" + field
}

// Load implements Store.
func (r *RedisStore) Load(ctx context.Context) (*State, error) {
	errorsRemaining, err := r.redis.Get(ctx, r.key("errors_remaining")).Int()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get errors remaining: %w", err)
	}

	resetTimestamp, err := r.redis.Get(ctx, r.key("reset_timestamp")).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get reset timestamp: %w", err)
	}

	lastUpdateStr, err := r.redis.Get(ctx, r.key("last_update")).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	var lastUpdate time.Time
	if lastUpdateStr != "" {
		if err := json.Unmarshal([]byte(lastUpdateStr), &lastUpdate); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}

	state := &State{
		ErrorsRemaining: errorsRemaining,
		ResetAt:         time.Unix(resetTimestamp, 0),
		LastUpdate:      lastUpdate,
	}
	state.UpdateHealth()
	return state, nil
}

// Save implements Store. All fields are written in one pipeline.
func (r *RedisStore) Save(ctx context.Context, state *State) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}

	lastUpdateJSON, err := json.Marshal(state.LastUpdate)
	if err != nil {
		return fmt.Errorf("marshal last update: %w", err)
	}

	pipe := r.redis.Pipeline()
	pipe.Set(ctx, r.key("errors_remaining"), state.ErrorsRemaining, 0)
	pipe.Set(ctx, r.key("reset_timestamp"), state.ResetAt.Unix(), 0)
	pipe.Set(ctx, r.key("last_update"), lastUpdateJSON, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}
	return nil
}
