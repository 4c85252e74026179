package limiter

import (
	"context"
	"sync"
	"time"
)

import (
	"github.com/nanjiek/pixiu-proxy/internal/types"
)

// FixedWindow is the in-process window counter. One mutex guards the
// expiry check, reset and increment, so the compare-and-increment is a
// single atomic step.
type FixedWindow struct {
	mu          sync.Mutex
	capacity    int64
	window      time.Duration
	count       int64
	windowStart time.Time
}

// NewFixedWindow builds a window limiter. Capacity and window are fixed
// for the lifetime of the limiter.
func NewFixedWindow(capacity int64, window time.Duration) *FixedWindow {
	if capacity <= 0 {
		panic("limiter: capacity must be positive")
	}
	if window <= 0 {
		panic("limiter: window must be positive")
	}
	return &FixedWindow{
		capacity: capacity,
		window:   window,
	}
}

func (f *FixedWindow) Allow(_ context.Context, now time.Time) (types.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.windowStart.IsZero() || now.Sub(f.windowStart) >= f.window {
		f.windowStart = now
		f.count = 0
	}

	if f.count < f.capacity {
		f.count++
		return types.Decision{
			Allowed:   true,
			Remaining: f.capacity - f.count,
			Reason:    ReasonAllowed,
		}, nil
	}

	retryMs := (f.window - now.Sub(f.windowStart)).Milliseconds()
	if retryMs <= 0 {
		retryMs = 1
	}
	return types.Decision{
		Allowed:      false,
		Remaining:    0,
		RetryAfterMs: retryMs,
		Reason:       ReasonRateLimited,
	}, nil
}
