package vision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"certflow/internal/tier"
)

// circuitState tracks rate-limit backoff for a single provider.
type circuitState struct {
	mu      sync.RWMutex
	resetAt time.Time // zero value = closed (healthy)
}

func (c *circuitState) isOpenWithReset(now time.Time) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resetAt, !c.resetAt.IsZero() && now.Before(c.resetAt)
}

func (c *circuitState) open(resetAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetAt = resetAt
}

// Fallback tries providers in order, skipping those with open circuits.
// It implements Provider.
type Fallback struct {
	providers []Provider
	circuits  []*circuitState
}

// NewFallback creates a Fallback from an ordered list of providers.
func NewFallback(providers ...Provider) *Fallback {
	circuits := make([]*circuitState, len(providers))
	for i := range circuits {
		circuits[i] = &circuitState{}
	}
	return &Fallback{providers: providers, circuits: circuits}
}

func (f *Fallback) Name() string {
	if len(f.providers) == 1 {
		return f.providers[0].Name()
	}
	return "fallback"
}

func (f *Fallback) Complete(ctx context.Context, req Request) (*Response, error) {
	now := time.Now()
	var lastErr error
	allRateLimited := true
	allUnconfigured := true
	var earliestReset time.Time

	for i, p := range f.providers {
		if resetAt, open := f.circuits[i].isOpenWithReset(now); open {
			zap.L().Debug("vision.Fallback: skipping provider, circuit open",
				zap.String("provider", p.Name()), zap.Time("reset_at", resetAt))
			allUnconfigured = false
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
			continue
		}

		resp, err := p.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}

		zap.L().Warn("vision.Fallback: provider failed", zap.String("provider", p.Name()), zap.Error(err))
		lastErr = err
		if !tier.IsConfigError(err) {
			allUnconfigured = false
		}

		var rlErr *tier.RateLimitError
		if errors.As(err, &rlErr) {
			resetAt := now.Add(rlErr.RetryAfter)
			f.circuits[i].open(resetAt)
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
		} else {
			allRateLimited = false
		}
	}

	if lastErr == nil || allRateLimited {
		retryAfter := time.Until(earliestReset)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return nil, tier.NewRateLimitError("all", eris.New("all vision providers rate limited"), int(retryAfter.Seconds()))
	}
	if allUnconfigured {
		return nil, lastErr
	}
	return nil, fmt.Errorf("all vision providers failed: %w", lastErr)
}
