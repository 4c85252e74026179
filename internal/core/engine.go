// Package core composes the request pipeline:
// authenticate → rate limit → extract target → forward.
package core

import (
	"io"
	"net/http"
	"time"
)

import (
	"go.uber.org/zap"
)

import (
	"github.com/nanjiek/pixiu-proxy/internal/auth"
	"github.com/nanjiek/pixiu-proxy/internal/forward"
	"github.com/nanjiek/pixiu-proxy/internal/limiter"
	"github.com/nanjiek/pixiu-proxy/internal/target"
	"github.com/nanjiek/pixiu-proxy/internal/types"
)

// Engine runs the fixed stage order for every inbound request. The first
// failing stage is terminal; later stages never run. Authentication comes
// before rate limiting so unauthenticated traffic spends no budget.
type Engine struct {
	auth      *auth.Authenticator
	limiter   limiter.Limiter
	forwarder forward.Forwarder
	logger    *zap.Logger
	now       func() time.Time
}

func NewEngine(a *auth.Authenticator, lim limiter.Limiter, fwd forward.Forwarder, logger *zap.Logger) *Engine {
	if a == nil {
		panic("core: nil authenticator")
	}
	if lim == nil {
		panic("core: nil limiter")
	}
	if fwd == nil {
		panic("core: nil forwarder")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		auth:      a,
		limiter:   lim,
		forwarder: fwd,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the engine clock. Test hook.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Handle evaluates one inbound request and returns either the upstream
// response to relay or the terminal stage error. The inbound body is read
// here, once, before forwarding.
func (e *Engine) Handle(r *http.Request) (*forward.ProxyResponse, *types.PipelineError) {
	if perr := e.auth.Authenticate(r); perr != nil {
		return nil, perr
	}

	dec, err := e.limiter.Allow(r.Context(), e.now())
	if err != nil {
		// A guarded limiter absorbs backend errors into its decision;
		// an error surfacing here still resolves by dec.Allowed.
		e.logger.Warn("rate limiter evaluation failed",
			zap.String("reason", dec.Reason),
			zap.Error(err))
	}
	if !dec.Allowed {
		retrySec := (dec.RetryAfterMs + 999) / 1000
		if retrySec <= 0 {
			retrySec = 1
		}
		e.logger.Debug("request rejected by rate limiter",
			zap.String("reason", dec.Reason),
			zap.Int64("retry_after_sec", retrySec))
		return nil, &types.PipelineError{
			Kind:          types.RateLimited,
			Message:       limiter.MsgTooManyRequests,
			RetryAfterSec: retrySec,
		}
	}

	targetURL, perr := target.Extract(r.URL.EscapedPath(), r.URL.RawQuery)
	if perr != nil {
		return nil, perr
	}

	var body []byte
	if r.Body != nil {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, &types.PipelineError{
				Kind:    types.TransportFailed,
				Message: "reading request body failed",
				Cause:   err,
			}
		}
		body = b
	}

	e.logger.Debug("forwarding request",
		zap.String("method", r.Method),
		zap.String("target", targetURL))

	preq := forward.BuildRequest(r, targetURL, body)
	return e.forwarder.Do(r.Context(), preq)
}
