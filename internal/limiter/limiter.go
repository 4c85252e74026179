// Package limiter implements the deployment-wide request window.
//
// The limit is intentionally shared across all api keys; per-key buckets
// are out of scope.
package limiter

import (
	"context"
	"time"
)

import (
	"github.com/nanjiek/pixiu-proxy/internal/types"
)

// MsgTooManyRequests is the caller facing message for a 429.
const MsgTooManyRequests = "Too many requests, please try again later."

// Verdict reasons.
const (
	ReasonAllowed     = "allowed"
	ReasonRateLimited = "rate_limited"
	ReasonFailOpen    = "fail_open"
	ReasonFailClosed  = "fail_closed"
	ReasonFallback    = "local_fallback"
)

// Limiter decides whether one more request fits the current window.
// Implementations must make the expiry check and increment a single atomic
// step: concurrent callers can never overrun capacity.
type Limiter interface {
	Allow(ctx context.Context, now time.Time) (types.Decision, error)
}
