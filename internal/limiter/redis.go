package limiter

import (
	"context"
	"time"
)

import (
	"github.com/nanjiek/pixiu-proxy/internal/repo"
	"github.com/nanjiek/pixiu-proxy/internal/types"
)

// RedisWindow keeps the window counter in redis so replicas of the proxy
// share one budget. The INCR+PEXPIRE script is atomic, preserving the
// no-overrun invariant across processes.
type RedisWindow struct {
	repo     repo.Repo
	capacity int64
	windowMs int64
}

func NewRedisWindow(rdb repo.Repo, capacity int64, window time.Duration) *RedisWindow {
	if rdb == nil {
		panic("limiter: nil redis repo")
	}
	if capacity <= 0 {
		panic("limiter: capacity must be positive")
	}
	if window <= 0 {
		panic("limiter: window must be positive")
	}
	return &RedisWindow{
		repo:     rdb,
		capacity: capacity,
		windowMs: window.Milliseconds(),
	}
}

func (r *RedisWindow) Allow(ctx context.Context, _ time.Time) (types.Decision, error) {
	count, ttlMs, err := r.repo.WindowIncr(ctx, r.repo.KeyWindow(), r.windowMs)
	if err != nil {
		return types.Decision{Allowed: false, Reason: "limiter_eval_failed", Err: err}, err
	}

	if count <= r.capacity {
		return types.Decision{
			Allowed:   true,
			Remaining: r.capacity - count,
			Reason:    ReasonAllowed,
		}, nil
	}

	if ttlMs <= 0 {
		ttlMs = r.windowMs
	}
	return types.Decision{
		Allowed:      false,
		Remaining:    0,
		RetryAfterMs: ttlMs,
		Reason:       ReasonRateLimited,
	}, nil
}
