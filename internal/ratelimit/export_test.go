package ratelimit

import "time"

// SetClock replaces the limiter's time source.
func (m *Memory) SetClock(now func() time.Time) { m.now = now }
