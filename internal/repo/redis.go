package repo

import (
	"context"
	"fmt"
	"time"
)

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

import (
	"github.com/nanjiek/pixiu-proxy/internal/config"
)

// Key template for the shared window counter. The {hash-tag} keeps the key
// on one slot if the deployment ever moves to a cluster.
const keyWindowTmpl = "%s:fw:{shared}"

// Repo is the storage abstraction used by the redis-backed limiter
// (interface so tests can mock it).
type Repo interface {
	KeyWindow() string
	WindowIncr(ctx context.Context, key string, windowMs int64) (count, pttlMs int64, err error)
	Close() error
}

type RedisRepo struct {
	Prefix         string
	Cli            *redis.Client
	logger         *zap.Logger
	defaultTimeout time.Duration
}

// NewRedis connects and pings the configured redis instance.
func NewRedis(cfg config.RedisCfg, logger *zap.Logger, opts ...Option) (*RedisRepo, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &RedisRepo{
		Prefix:         cfg.Prefix,
		logger:         logger,
		defaultTimeout: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.Cli = redis.NewClient(buildOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Cli.Ping(ctx).Err(); err != nil {
		logger.Error("redis ping failed", zap.Error(err))
		return nil, fmt.Errorf("redis connect failed: %w", err)
	}

	return r, nil
}

// Option pattern for custom configurations.
type Option func(*RedisRepo)

func WithDefaultTimeout(d time.Duration) Option {
	return func(r *RedisRepo) { r.defaultTimeout = d }
}

func (r *RedisRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.defaultTimeout)
}

func (r *RedisRepo) KeyWindow() string {
	return fmt.Sprintf(keyWindowTmpl, r.Prefix)
}

// WindowIncr bumps the shared counter and reports its value together with
// the remaining window TTL. The Lua script makes increment, first-write
// expiry and TTL read one atomic step.
func (r *RedisRepo) WindowIncr(parentCtx context.Context, key string, windowMs int64) (int64, int64, error) {
	ctx, cancel := r.withTimeout(parentCtx)
	defer cancel()

	if windowMs <= 0 {
		windowMs = 1
	}
	res, err := windowIncrScript.Run(ctx, r.Cli, []string{key}, windowMs).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("window incr failed for key %s: %w", key, err)
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) < 2 {
		return 0, 0, fmt.Errorf("window incr: unexpected script response %T", res)
	}
	return toInt64(vals[0]), toInt64(vals[1]), nil
}

func (r *RedisRepo) Close() error {
	return r.Cli.Close()
}

func buildOptions(cfg config.RedisCfg) *redis.Options {
	return &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     maxInt(cfg.PoolSize, 10),
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  durationOrDefault(cfg.DialTimeoutMs, 800),
		ReadTimeout:  durationOrDefault(cfg.ReadTimeoutMs, 800),
		WriteTimeout: durationOrDefault(cfg.WriteTimeoutMs, 800),
	}
}

func maxInt(val, def int) int {
	if val > def {
		return val
	}
	return def
}

func durationOrDefault(ms int, defMs int) time.Duration {
	if ms <= 0 {
		ms = defMs
	}
	return time.Duration(ms) * time.Millisecond
}

func toInt64(v interface{}) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case string:
		var n int64
		_, _ = fmt.Sscan(val, &n)
		return n
	default:
		return 0
	}
}
