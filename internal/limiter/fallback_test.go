package limiter

import (
	"context"
	"errors"
	"testing"
	"time"
)

import (
	"github.com/nanjiek/pixiu-proxy/internal/types"
)

// mockLimiter scripts a fixed verdict.
type mockLimiter struct {
	dec   types.Decision
	err   error
	calls int
}

func (m *mockLimiter) Allow(ctx context.Context, now time.Time) (types.Decision, error) {
	m.calls++
	if m.err != nil {
		return types.Decision{Allowed: false, Reason: "limiter_eval_failed", Err: m.err}, m.err
	}
	return m.dec, nil
}

func TestGuardPassesThroughHealthyBackend(t *testing.T) {
	inner := &mockLimiter{dec: types.Decision{Allowed: true, Remaining: 7, Reason: ReasonAllowed}}
	g := WithFallback(inner, nil, "fail-open", nil)

	dec, err := g.Allow(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if !dec.Allowed || dec.Remaining != 7 {
		t.Fatalf("unexpected decision: %+v", dec)
	}
}

func TestGuardUsesLocalFallback(t *testing.T) {
	backendErr := errors.New("redis: connection refused")
	inner := &mockLimiter{err: backendErr}
	local := NewFixedWindow(1, time.Minute)
	g := WithFallback(inner, local, "fail-closed", nil)

	now := time.Now()
	dec, err := g.Allow(context.Background(), now)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if !dec.Allowed {
		t.Fatal("first request through local fallback should be admitted")
	}
	if dec.Reason != ReasonFallback {
		t.Fatalf("reason = %q, want %q", dec.Reason, ReasonFallback)
	}

	// the local window still enforces the limit
	dec, _ = g.Allow(context.Background(), now)
	if dec.Allowed {
		t.Fatal("local fallback must keep enforcing capacity")
	}
}

func TestGuardFailOpen(t *testing.T) {
	inner := &mockLimiter{err: errors.New("redis timeout")}
	g := WithFallback(inner, nil, "fail-open", nil)

	dec, err := g.Allow(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("guard must swallow backend errors, got %v", err)
	}
	if !dec.Allowed {
		t.Fatal("fail-open must admit on backend failure")
	}
	if dec.Reason != ReasonFailOpen {
		t.Fatalf("reason = %q, want %q", dec.Reason, ReasonFailOpen)
	}
}

func TestGuardFailClosed(t *testing.T) {
	inner := &mockLimiter{err: errors.New("redis timeout")}
	g := WithFallback(inner, nil, "fail-closed", nil)

	dec, err := g.Allow(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("guard must swallow backend errors, got %v", err)
	}
	if dec.Allowed {
		t.Fatal("fail-closed must reject on backend failure")
	}
	if dec.Reason != ReasonFailClosed {
		t.Fatalf("reason = %q, want %q", dec.Reason, ReasonFailClosed)
	}
}

func TestNormalizeFailPolicy(t *testing.T) {
	cases := map[string]string{
		"fail-open":    "fail-open",
		"FAIL-CLOSED":  "fail-closed",
		" fail-open ":  "fail-open",
		"":             "fail-open",
		"whatever":     "fail-open",
	}
	for in, want := range cases {
		if got := normalizeFailPolicy(in); got != want {
			t.Fatalf("normalizeFailPolicy(%q) = %q, want %q", in, got, want)
		}
	}
}
