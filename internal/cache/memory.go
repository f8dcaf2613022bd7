package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"certflow/internal/port"
)

// Memory is an in-process cache. Values are copied in and out so callers
// cannot mutate cached bytes.
type Memory struct {
	store *gocache.Cache
}

// NewMemory creates an in-process cache that purges expired entries every
// cleanup interval.
func NewMemory(cleanup time.Duration) *Memory {
	return &Memory{store: gocache.New(gocache.NoExpiration, cleanup)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.store.Get(key)
	if !ok {
		return nil, port.ErrCacheMiss
	}
	return append([]byte(nil), v.([]byte)...), nil
}

// Set stores value for ttl. A ttl of zero never expires.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.store.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.store.Delete(k)
	}
	return nil
}

func (m *Memory) Close() error {
	m.store.Flush()
	return nil
}
