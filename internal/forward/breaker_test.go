package forward

import (
	"context"
	"errors"
	"testing"
)

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

import (
	"github.com/nanjiek/pixiu-proxy/internal/config"
	"github.com/nanjiek/pixiu-proxy/internal/types"
)

// failingForwarder always reports a transport failure.
type failingForwarder struct {
	calls int
}

func (f *failingForwarder) Do(ctx context.Context, req *ProxyRequest) (*ProxyResponse, *types.PipelineError) {
	f.calls++
	return nil, &types.PipelineError{
		Kind:    types.TransportFailed,
		Message: "connection refused",
		Cause:   errors.New("dial tcp: connection refused"),
	}
}

func TestWithBreakerDisabledReturnsInner(t *testing.T) {
	inner := &failingForwarder{}
	got, err := WithBreaker(inner, config.BreakerCfg{Enabled: false}, nil)
	require.NoError(t, err)
	assert.Same(t, inner, got, "disabled breaker must not wrap the forwarder")
}

func TestBreakerOpensAndFailsFast(t *testing.T) {
	inner := &failingForwarder{}
	fwd, err := WithBreaker(inner, config.BreakerCfg{
		Enabled:          true,
		ErrorCount:       1,
		StatIntervalMs:   60_000,
		RetryTimeoutMs:   60_000, // keep the breaker open for the whole test
		MinRequestAmount: 1,
	}, nil)
	require.NoError(t, err)
	require.NotSame(t, inner, fwd)

	preq := &ProxyRequest{Method: "GET", TargetURL: "http://127.0.0.1:1/x"}
	ctx := context.Background()

	// drive the breaker open with transport failures
	var sawBlocked bool
	for i := 0; i < 10 && !sawBlocked; i++ {
		_, perr := fwd.Do(ctx, preq)
		require.NotNil(t, perr)
		if perr.Kind == types.UpstreamBlocked {
			sawBlocked = true
		} else {
			require.Equal(t, types.TransportFailed, perr.Kind)
		}
	}
	require.True(t, sawBlocked, "breaker never opened after repeated transport failures")

	// once open, calls fail fast without reaching the inner forwarder
	before := inner.calls
	_, perr := fwd.Do(ctx, preq)
	require.NotNil(t, perr)
	assert.Equal(t, types.UpstreamBlocked, perr.Kind)
	assert.Equal(t, MsgUpstreamBlocked, perr.Message)
	assert.Equal(t, before, inner.calls, "blocked call must not invoke the inner forwarder")
}
