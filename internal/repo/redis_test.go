package repo

import (
	"testing"
	"time"
)

import (
	"github.com/nanjiek/pixiu-proxy/internal/config"
)

func TestKeyWindow(t *testing.T) {
	r := &RedisRepo{Prefix: "pixiu:proxy"}
	if got := r.KeyWindow(); got != "pixiu:proxy:fw:{shared}" {
		t.Fatalf("KeyWindow = %s", got)
	}
}

func TestBuildOptionsDefaults(t *testing.T) {
	opts := buildOptions(config.RedisCfg{Addr: "127.0.0.1:6379"})
	if opts.Addr != "127.0.0.1:6379" {
		t.Fatalf("addr = %s", opts.Addr)
	}
	if opts.PoolSize != 10 {
		t.Fatalf("pool size = %d, want default 10", opts.PoolSize)
	}
	if opts.DialTimeout != 800*time.Millisecond {
		t.Fatalf("dial timeout = %v", opts.DialTimeout)
	}
}

func TestBuildOptionsOverrides(t *testing.T) {
	opts := buildOptions(config.RedisCfg{
		Addr:          "10.0.0.1:6379",
		PoolSize:      64,
		ReadTimeoutMs: 250,
	})
	if opts.PoolSize != 64 {
		t.Fatalf("pool size = %d", opts.PoolSize)
	}
	if opts.ReadTimeout != 250*time.Millisecond {
		t.Fatalf("read timeout = %v", opts.ReadTimeout)
	}
}

func TestToInt64(t *testing.T) {
	cases := []struct {
		in   interface{}
		want int64
	}{
		{int64(5), 5},
		{int(3), 3},
		{"42", 42},
		{nil, 0},
		{3.9, 0},
	}
	for _, tc := range cases {
		if got := toInt64(tc.in); got != tc.want {
			t.Fatalf("toInt64(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
