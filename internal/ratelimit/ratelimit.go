// Package ratelimit implements fixed window request counting keyed by caller.
// Requests over the limit are refused, never delayed.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"certflow/internal/port"
)

type window struct {
	limit  int
	length time.Duration
	now    func() time.Time
}

func newWindow(limit int, length time.Duration) window {
	if length <= 0 {
		length = time.Minute
	}
	return window{limit: limit, length: length, now: time.Now}
}

// bucket returns the counter key for the current window and the time left in it.
func (w window) bucket(key string) (string, time.Duration) {
	now := w.now()
	start := now.Truncate(w.length)
	return key + ":" + strconv.FormatInt(start.Unix(), 10), start.Add(w.length).Sub(now)
}

func (w window) decide(count int64, resetIn time.Duration) port.RateDecision {
	remaining := w.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return port.RateDecision{
		Allowed:   count <= int64(w.limit),
		Limit:     w.limit,
		Remaining: remaining,
		ResetIn:   resetIn,
	}
}

// Memory counts in process memory. Suitable for a single instance.
type Memory struct {
	window
	counters *gocache.Cache
}

// NewMemory allows limit requests per key in each window of the given length.
func NewMemory(limit int, length time.Duration) *Memory {
	w := newWindow(limit, length)
	return &Memory{window: w, counters: gocache.New(w.length, 2*w.length)}
}

func (m *Memory) Allow(_ context.Context, key string) (port.RateDecision, error) {
	k, resetIn := m.bucket(key)
	// Add fails when the counter already exists, which is the common case.
	_ = m.counters.Add(k, int64(0), resetIn+time.Second)
	n, err := m.counters.IncrementInt64(k, 1)
	if err != nil {
		return port.RateDecision{}, eris.Wrap(err, "incrementing window counter")
	}
	return m.decide(n, resetIn), nil
}

// Redis counts in Redis so every instance shares the window.
type Redis struct {
	window
	client *redis.Client
	prefix string
}

// NewRedis creates a shared limiter. prefix namespaces the counters of one
// limiter from another.
func NewRedis(client *redis.Client, prefix string, limit int, length time.Duration) *Redis {
	return &Redis{window: newWindow(limit, length), client: client, prefix: prefix}
}

func (r *Redis) Allow(ctx context.Context, key string) (port.RateDecision, error) {
	k, resetIn := r.bucket(fmt.Sprintf("rl:%s:%s", r.prefix, key))
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.Expire(ctx, k, resetIn+time.Second)
		return nil
	})
	if err != nil {
		return port.RateDecision{}, eris.Wrap(err, "incrementing window counter")
	}
	return r.decide(incr.Val(), resetIn), nil
}

// New returns a Redis limiter when client is non-nil, otherwise an
// in-process one.
func New(client *redis.Client, prefix string, limit int, length time.Duration) port.RateLimiter {
	if client == nil {
		return NewMemory(limit, length)
	}
	return NewRedis(client, prefix, limit, length)
}
