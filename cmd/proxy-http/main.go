package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

import (
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

import (
	"github.com/nanjiek/pixiu-proxy/internal/api"
	"github.com/nanjiek/pixiu-proxy/internal/auth"
	"github.com/nanjiek/pixiu-proxy/internal/config"
	"github.com/nanjiek/pixiu-proxy/internal/core"
	"github.com/nanjiek/pixiu-proxy/internal/forward"
	"github.com/nanjiek/pixiu-proxy/internal/limiter"
	"github.com/nanjiek/pixiu-proxy/internal/logger"
	"github.com/nanjiek/pixiu-proxy/internal/repo"
)

func main() {
	confPath := flag.String("c", "", "path to config file (optional, env vars apply on top)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logg, err := logger.New(*debug)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logg.Sync()

	cfg, err := config.Load(*confPath)
	if err != nil {
		logg.Fatal("failed to load config", zap.Error(err))
	}

	lim, closeRepo, err := buildLimiter(cfg, logg)
	if err != nil {
		logg.Fatal("failed to init rate limiter", zap.Error(err))
	}
	if closeRepo != nil {
		defer closeRepo()
	}

	var fwd forward.Forwarder = forward.NewHTTPForwarder(cfg.UpstreamTimeout(), logg)
	fwd, err = forward.WithBreaker(fwd, cfg.Upstream.Breaker, logg)
	if err != nil {
		logg.Fatal("failed to init upstream breaker", zap.Error(err))
	}

	authn := auth.New(cfg.Auth.Header, cfg.Auth.Keys)
	engine := core.NewEngine(authn, lim, fwd, logg)
	httpServer := api.NewServer(cfg.Server, authn.Header(), engine, logg)

	r := mux.NewRouter()
	httpServer.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logg.Info("proxy is running",
			zap.String("addr", cfg.Server.HTTPAddr),
			zap.Int("pid", os.Getpid()),
			zap.Int64("rate_limit", cfg.RateLimit.Capacity),
			zap.Int64("window_ms", cfg.RateLimit.WindowMs))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logg.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Fatal("server shutdown failed", zap.Error(err))
	}
	logg.Info("server exited properly")
}

// buildLimiter wires the window backend. The local window always exists;
// with the redis backend it doubles as the degradation path when
// localFallback is on.
func buildLimiter(cfg *config.Config, logg *zap.Logger) (limiter.Limiter, func(), error) {
	local := limiter.NewFixedWindow(cfg.RateLimit.Capacity, cfg.Window())
	if cfg.RateLimit.Backend != "redis" {
		return local, nil, nil
	}

	rdb, err := repo.NewRedis(cfg.Redis, logg)
	if err != nil {
		return nil, nil, err
	}
	redisWindow := limiter.NewRedisWindow(rdb, cfg.RateLimit.Capacity, cfg.Window())

	var fallback limiter.Limiter
	if cfg.RateLimit.LocalFallback {
		fallback = local
	}
	guarded := limiter.WithFallback(redisWindow, fallback, cfg.RateLimit.FailPolicy, logg)
	return guarded, func() { _ = rdb.Close() }, nil
}
