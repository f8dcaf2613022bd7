package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"certflow/internal/port"
)

// Redis is a cache shared by every process pointed at the same server.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an open client. Close closes the client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, port.ErrCacheMiss
	}
	if err != nil {
		return nil, eris.Wrap(err, "redis get")
	}
	return b, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return eris.Wrap(r.client.Set(ctx, key, value, ttl).Err(), "redis set")
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return eris.Wrap(r.client.Del(ctx, keys...).Err(), "redis del")
}

func (r *Redis) Close() error {
	return r.client.Close()
}
