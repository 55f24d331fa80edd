package prefs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the key-value surface preferences are kept in. Entries are scoped per
// browsing session.
type Store interface {
	Get(ctx context.Context, scope, name string) (string, bool, error)
	Set(ctx context.Context, scope, name, value string) error
	PushBounded(ctx context.Context, scope, name, value string, limit int) error
	List(ctx context.Context, scope, name string) ([]string, error)
}

// MemoryStore keeps preferences in process. Used in development and tests.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
	lists  map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]string{}, lists: map[string][]string{}}
}

func (m *MemoryStore) Get(_ context.Context, scope, name string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[memoryKey(scope, name)]
	return value, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, scope, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[memoryKey(scope, name)] = value
	return nil
}

func (m *MemoryStore) PushBounded(_ context.Context, scope, name, value string, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memoryKey(scope, name)
	next := []string{value}
	for _, existing := range m.lists[key] {
		if existing != value {
			next = append(next, existing)
		}
	}
	if limit > 0 && len(next) > limit {
		next = next[:limit]
	}
	m.lists[key] = next
	return nil
}

func (m *MemoryStore) List(_ context.Context, scope, name string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lists[memoryKey(scope, name)]...), nil
}

func memoryKey(scope, name string) string {
	return scope + "\x00" + name
}

type redisCommands interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	LPush(ctx context.Context, key string, values ...any) error
	LRem(ctx context.Context, key string, count int64, value any) error
	LTrim(ctx context.Context, key string, start, stop int64) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	PrefsKey(sessionID, name string) string
}

// RedisStore keeps preferences in redis with a sliding TTL.
type RedisStore struct {
	client redisCommands
	ttl    time.Duration
}

func NewRedisStore(client redisCommands, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Get(ctx context.Context, scope, name string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.client.PrefsKey(scope, name))
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (r *RedisStore) Set(ctx context.Context, scope, name, value string) error {
	return r.client.Set(ctx, r.client.PrefsKey(scope, name), value, r.ttl)
}

// PushBounded moves value to the head of the list and evicts entries past limit.
func (r *RedisStore) PushBounded(ctx context.Context, scope, name, value string, limit int) error {
	key := r.client.PrefsKey(scope, name)
	if err := r.client.LRem(ctx, key, 0, value); err != nil {
		return err
	}
	if err := r.client.LPush(ctx, key, value); err != nil {
		return err
	}
	if limit > 0 {
		if err := r.client.LTrim(ctx, key, 0, int64(limit-1)); err != nil {
			return err
		}
	}
	if r.ttl > 0 {
		return r.client.Expire(ctx, key, r.ttl)
	}
	return nil
}

func (r *RedisStore) List(ctx context.Context, scope, name string) ([]string, error) {
	return r.client.LRange(ctx, r.client.PrefsKey(scope, name), 0, -1)
}
