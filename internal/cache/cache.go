// Package cache implements port.Cache over an in-process store and Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"certflow/internal/config"
	"certflow/internal/port"
)

// OpenRedis connects to Redis and checks the connection. It returns nil and
// no error when no address is configured.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrapf(err, "pinging redis at %s", cfg.Addr)
	}
	return client, nil
}

// New returns a Redis-backed cache when client is non-nil, otherwise an
// in-process one.
func New(client *redis.Client) port.Cache {
	if client == nil {
		zap.L().Info("cache.New: using in-memory cache")
		return NewMemory(time.Minute)
	}
	return NewRedis(client)
}

// GetJSON reads and decodes a cached value. The bool is false on a miss.
func GetJSON[T any](ctx context.Context, c port.Cache, key string) (T, bool, error) {
	var v T
	raw, err := c.Get(ctx, key)
	if errors.Is(err, port.ErrCacheMiss) {
		return v, false, nil
	}
	if err != nil {
		return v, false, eris.Wrapf(err, "cache get %s", key)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false, eris.Wrapf(err, "decoding cached %s", key)
	}
	return v, true, nil
}

// SetJSON encodes and stores v under key.
func SetJSON(ctx context.Context, c port.Cache, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "encoding %s for cache", key)
	}
	if err := c.Set(ctx, key, raw, ttl); err != nil {
		return eris.Wrapf(err, "cache set %s", key)
	}
	return nil
}
