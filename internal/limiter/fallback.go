package limiter

import (
	"context"
	"strings"
	"time"
)

import (
	"go.uber.org/zap"
)

import (
	"github.com/nanjiek/pixiu-proxy/internal/types"
)

// Guard decorates a limiter with a failure policy. When the inner limiter
// errors (redis down, timeout), the request is handed to a local window if
// one is configured, otherwise admitted (fail-open) or rejected
// (fail-closed). Limiter errors never reach the caller as faults.
type Guard struct {
	inner      Limiter
	local      Limiter // may be nil
	failPolicy string
	logger     *zap.Logger
}

// WithFallback wraps inner with the given policy. local may be nil.
func WithFallback(inner, local Limiter, failPolicy string, logger *zap.Logger) *Guard {
	if inner == nil {
		panic("limiter: nil inner limiter")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{
		inner:      inner,
		local:      local,
		failPolicy: normalizeFailPolicy(failPolicy),
		logger:     logger,
	}
}

func (g *Guard) Allow(ctx context.Context, now time.Time) (types.Decision, error) {
	dec, err := g.inner.Allow(ctx, now)
	if err == nil {
		return dec, nil
	}

	if g.local != nil {
		g.logger.Warn("limiter backend failed, using local window", zap.Error(err))
		dec, lerr := g.local.Allow(ctx, now)
		if lerr == nil && dec.Reason == ReasonAllowed {
			dec.Reason = ReasonFallback
		}
		return dec, nil
	}

	if g.failPolicy == "fail-open" {
		g.logger.Warn("limiter backend failed, admitting (fail-open)", zap.Error(err))
		return types.Decision{Allowed: true, Reason: ReasonFailOpen, Err: err}, nil
	}

	g.logger.Warn("limiter backend failed, rejecting (fail-closed)", zap.Error(err))
	return types.Decision{Allowed: false, Reason: ReasonFailClosed, Err: err}, nil
}

func normalizeFailPolicy(policy string) string {
	policy = strings.ToLower(strings.TrimSpace(policy))
	if policy != "fail-open" && policy != "fail-closed" {
		return "fail-open"
	}
	return policy
}
