// Package tier holds what the tier adapters share: the failure taxonomy the
// orchestrator routes on and the best-so-far field merge.
package tier

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"certflow/internal/domain"
)

// ConfigError means the adapter cannot run at all, for example missing
// credentials. Retrying will not help.
type ConfigError struct {
	Adapter string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s not configured: %s", e.Adapter, e.Reason)
}

// NewConfigError creates a ConfigError.
func NewConfigError(adapter, reason string) *ConfigError {
	return &ConfigError{Adapter: adapter, Reason: reason}
}

// TransientError wraps a network, timeout or remote job failure.
type TransientError struct {
	Adapter string
	Err     error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s transient failure: %v", e.Adapter, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError creates a TransientError.
func NewTransientError(adapter string, err error) *TransientError {
	return &TransientError{Adapter: adapter, Err: err}
}

// RateLimitError indicates a provider returned HTTP 429.
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration
	Provider   string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited (retry after %s): %v", e.Provider, e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// NewRateLimitError creates a RateLimitError. If retryAfterSecs is 0, defaults to 60s.
func NewRateLimitError(provider string, err error, retryAfterSecs int) *RateLimitError {
	if retryAfterSecs <= 0 {
		retryAfterSecs = 60
	}
	return &RateLimitError{
		Err:        err,
		RetryAfter: time.Duration(retryAfterSecs) * time.Second,
		Provider:   provider,
	}
}

// ParseRetryAfterHeader parses a Retry-After header value into seconds.
// Returns 0 if the value is empty or not a valid integer.
func ParseRetryAfterHeader(val string) int {
	if val == "" {
		return 0
	}
	secs, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return secs
}

// IsConfigError reports whether err is, or wraps, a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// Category classifies an adapter error for the audit trail.
func Category(err error) domain.ErrorCategory {
	if err == nil {
		return domain.ErrorCategoryNone
	}
	var (
		ce *ConfigError
		te *TransientError
		re *RateLimitError
	)
	switch {
	case errors.As(err, &ce):
		return domain.ErrorCategoryConfiguration
	case errors.As(err, &te), errors.As(err, &re),
		errors.Is(err, context.DeadlineExceeded):
		return domain.ErrorCategoryTransient
	case errors.Is(err, domain.ErrValidation):
		return domain.ErrorCategoryValidation
	case errors.Is(err, domain.ErrDocumentMissing):
		return domain.ErrorCategoryData
	default:
		return domain.ErrorCategoryUnknown
	}
}
