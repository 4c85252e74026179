package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

import (
	"gopkg.in/yaml.v3"
)

// Environment overrides, applied after the YAML file (if any).
const (
	EnvHTTPAddr     = "PROXY_HTTP_ADDR"
	EnvPort         = "PORT"
	EnvAPIKeys      = "PROXY_API_KEYS"
	EnvRateLimit    = "PROXY_RATE_LIMIT"
	EnvRateWindowMs = "PROXY_RATE_WINDOW_MS"
)

// ServerCfg —— HTTP listen config
type ServerCfg struct {
	HTTPAddr string `yaml:"httpAddr"` // listen address, e.g. ":8080"
}

// AuthCfg —— api key allow-list
type AuthCfg struct {
	Header string   `yaml:"header"` // credential header, default "x-api-key"
	Keys   []string `yaml:"keys"`   // allowed keys, exact match
}

// RateLimitCfg —— deployment-wide window limit
type RateLimitCfg struct {
	Capacity      int64  `yaml:"capacity"`      // requests per window
	WindowMs      int64  `yaml:"windowMs"`      // window length (ms)
	Backend       string `yaml:"backend"`       // "local" | "redis"
	FailPolicy    string `yaml:"failPolicy"`    // fail-open | fail-closed (redis backend)
	LocalFallback bool   `yaml:"localFallback"` // degrade to local window on redis failure
}

// RedisCfg —— connection settings for the shared counter backend
type RedisCfg struct {
	Addr           string `yaml:"addr"`           // Redis address, e.g. "127.0.0.1:6379"
	Password       string `yaml:"password"`       // Redis password
	DB             int    `yaml:"db"`             // Redis DB index
	Prefix         string `yaml:"prefix"`         // key prefix
	PoolSize       int    `yaml:"poolSize"`       // connection pool size
	MinIdleConns   int    `yaml:"minIdleConns"`   // minimum idle connections
	ReadTimeoutMs  int    `yaml:"readTimeoutMs"`  // read timeout (ms)
	WriteTimeoutMs int    `yaml:"writeTimeoutMs"` // write timeout (ms)
	DialTimeoutMs  int    `yaml:"dialTimeoutMs"`  // dial timeout (ms)
}

func (r RedisCfg) Enabled() bool {
	return r.Addr != ""
}

// BreakerCfg —— optional circuit breaker on the outbound call
type BreakerCfg struct {
	Enabled          bool    `yaml:"enabled"`          // off by default
	ErrorCount       float64 `yaml:"errorCount"`       // errors per stat interval that open the breaker
	StatIntervalMs   int64   `yaml:"statIntervalMs"`   // stat window (ms), default 10000
	RetryTimeoutMs   int64   `yaml:"retryTimeoutMs"`   // open state cool-down (ms), default 5000
	MinRequestAmount int64   `yaml:"minRequestAmount"` // minimum calls before the breaker may open
}

// UpstreamCfg —— outbound call settings
type UpstreamCfg struct {
	TimeoutMs int64      `yaml:"timeoutMs"` // outbound call bound (ms), default 30000
	Breaker   BreakerCfg `yaml:"breaker"`   // optional breaker
}

// Config —— full configuration
type Config struct {
	Server    ServerCfg    `yaml:"server"`
	Auth      AuthCfg      `yaml:"auth"`
	RateLimit RateLimitCfg `yaml:"rateLimit"`
	Redis     RedisCfg     `yaml:"redis"`
	Upstream  UpstreamCfg  `yaml:"upstream"`
}

// Load reads the YAML file at path, expands ${ENV} references, applies
// environment overrides and defaults. An empty path skips the file and
// configures from environment alone.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		expanded := os.ExpandEnv(string(b))
		if err := yaml.Unmarshal([]byte(expanded), &c); err != nil {
			return nil, err
		}
	}
	c.applyEnv()
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvHTTPAddr); v != "" {
		c.Server.HTTPAddr = v
	} else if v := os.Getenv(EnvPort); v != "" {
		c.Server.HTTPAddr = ":" + v
	}
	if v := os.Getenv(EnvAPIKeys); v != "" {
		c.Auth.Keys = splitKeys(v)
	}
	if v := os.Getenv(EnvRateLimit); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.RateLimit.Capacity = n
		}
	}
	if v := os.Getenv(EnvRateWindowMs); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.RateLimit.WindowMs = n
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}
	if c.Auth.Header == "" {
		c.Auth.Header = "x-api-key"
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 100
	}
	if c.RateLimit.WindowMs == 0 {
		c.RateLimit.WindowMs = 60_000
	}
	if c.RateLimit.Backend == "" {
		c.RateLimit.Backend = "local"
	}
	if c.RateLimit.FailPolicy == "" {
		c.RateLimit.FailPolicy = "fail-open"
	}
	if c.Upstream.TimeoutMs == 0 {
		c.Upstream.TimeoutMs = 30_000
	}
	if c.Upstream.Breaker.StatIntervalMs == 0 {
		c.Upstream.Breaker.StatIntervalMs = 10_000
	}
	if c.Upstream.Breaker.RetryTimeoutMs == 0 {
		c.Upstream.Breaker.RetryTimeoutMs = 5_000
	}
	if c.Upstream.Breaker.MinRequestAmount == 0 {
		c.Upstream.Breaker.MinRequestAmount = 10
	}
	if c.Upstream.Breaker.ErrorCount == 0 {
		c.Upstream.Breaker.ErrorCount = 5
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "pixiu:proxy"
	}
}

// Validate rejects configs the proxy cannot start with.
func (c *Config) Validate() error {
	if len(c.Auth.Keys) == 0 {
		return errors.New("config: no api keys configured")
	}
	for _, k := range c.Auth.Keys {
		if strings.TrimSpace(k) == "" {
			return errors.New("config: empty api key in allow-list")
		}
	}
	if c.RateLimit.Capacity <= 0 {
		return fmt.Errorf("config: rate limit capacity must be positive, got %d", c.RateLimit.Capacity)
	}
	if c.RateLimit.WindowMs <= 0 {
		return fmt.Errorf("config: rate limit window must be positive, got %dms", c.RateLimit.WindowMs)
	}
	switch c.RateLimit.Backend {
	case "local", "redis":
	default:
		return fmt.Errorf("config: unknown rate limit backend %q", c.RateLimit.Backend)
	}
	if c.RateLimit.Backend == "redis" && !c.Redis.Enabled() {
		return errors.New("config: redis backend selected but no redis address configured")
	}
	// Breaker fields feed unsigned rule fields; negatives would wrap.
	if b := c.Upstream.Breaker; b.ErrorCount < 0 || b.StatIntervalMs < 0 || b.RetryTimeoutMs < 0 || b.MinRequestAmount < 0 {
		return errors.New("config: breaker settings must not be negative")
	}
	return nil
}

// Window returns the rate-limit window as a duration.
func (c *Config) Window() time.Duration {
	return time.Duration(c.RateLimit.WindowMs) * time.Millisecond
}

// UpstreamTimeout returns the outbound call bound as a duration.
func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.Upstream.TimeoutMs) * time.Millisecond
}

func splitKeys(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
