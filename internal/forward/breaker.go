package forward

import (
	"context"
)

import (
	sentinel "github.com/alibaba/sentinel-golang/api"
	"github.com/alibaba/sentinel-golang/core/base"
	"github.com/alibaba/sentinel-golang/core/circuitbreaker"
	"go.uber.org/zap"
)

import (
	"github.com/nanjiek/pixiu-proxy/internal/config"
	"github.com/nanjiek/pixiu-proxy/internal/types"
)

const breakerResource = "upstream_forward"

// MsgUpstreamBlocked is the detail reported while the breaker is open.
const MsgUpstreamBlocked = "upstream circuit open"

// breakerForwarder fails fast when the upstream keeps erroring at the
// transport level. It adds no retries; a blocked request is terminal.
type breakerForwarder struct {
	inner  Forwarder
	logger *zap.Logger
}

// WithBreaker wraps inner with a sentinel error-count circuit breaker.
// Returns inner unchanged when the breaker is disabled.
func WithBreaker(inner Forwarder, cfg config.BreakerCfg, logger *zap.Logger) (Forwarder, error) {
	if !cfg.Enabled {
		return inner, nil
	}
	if inner == nil {
		panic("forward: nil inner forwarder")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := sentinel.InitDefault(); err != nil {
		return nil, err
	}
	_, err := circuitbreaker.LoadRules([]*circuitbreaker.Rule{
		{
			Resource:         breakerResource,
			Strategy:         circuitbreaker.ErrorCount,
			RetryTimeoutMs:   uint32(cfg.RetryTimeoutMs),
			MinRequestAmount: uint64(cfg.MinRequestAmount),
			StatIntervalMs:   uint32(cfg.StatIntervalMs),
			Threshold:        cfg.ErrorCount,
		},
	})
	if err != nil {
		return nil, err
	}

	return &breakerForwarder{inner: inner, logger: logger}, nil
}

func (b *breakerForwarder) Do(ctx context.Context, preq *ProxyRequest) (*ProxyResponse, *types.PipelineError) {
	entry, blockErr := sentinel.Entry(breakerResource, sentinel.WithTrafficType(base.Outbound))
	if blockErr != nil {
		b.logger.Warn("upstream circuit open, failing fast",
			zap.String("target", preq.TargetURL))
		return nil, &types.PipelineError{
			Kind:    types.UpstreamBlocked,
			Message: MsgUpstreamBlocked,
		}
	}
	defer entry.Exit()

	resp, perr := b.inner.Do(ctx, preq)
	if perr != nil && perr.Kind == types.TransportFailed {
		sentinel.TraceError(entry, perr)
	}
	return resp, perr
}
