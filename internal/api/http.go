package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

import (
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

import (
	"github.com/nanjiek/pixiu-proxy/internal/config"
	"github.com/nanjiek/pixiu-proxy/internal/core"
	"github.com/nanjiek/pixiu-proxy/internal/forward"
	"github.com/nanjiek/pixiu-proxy/internal/types"
)

// Server owns the inbound HTTP surface: CORS, request logging and the
// catch-all proxy route.
type Server struct {
	cfg        config.ServerCfg
	authHeader string
	engine     *core.Engine
	logger     *zap.Logger
	srv        *http.Server
}

func NewServer(cfg config.ServerCfg, authHeader string, engine *core.Engine, logger *zap.Logger) *Server {
	if engine == nil {
		panic("api: nil engine")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:        cfg,
		authHeader: authHeader,
		engine:     engine,
		logger:     logger,
	}
}

// RegisterRoutes mounts the proxy on r. SkipClean keeps the double slash
// of embedded scheme://host paths intact.
func (s *Server) RegisterRoutes(r *mux.Router) {
	r.SkipClean(true)
	r.UseEncodedPath()
	r.Use(s.corsMiddleware, s.loggingMiddleware)
	r.PathPrefix("/").HandlerFunc(s.proxyHandler)
}

func (s *Server) ListenAndServe() error {
	r := mux.NewRouter()
	s.RegisterRoutes(r)
	s.srv = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// ---------------- Middleware ----------------

// corsMiddleware answers preflight before any credential check; browsers
// never send the api key header on OPTIONS.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, "+s.authHeader)
		h.Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.EscapedPath()),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

// statusRecorder captures the status code for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// ---------------- Handlers ----------------

func (s *Server) proxyHandler(w http.ResponseWriter, r *http.Request) {
	resp, perr := s.engine.Handle(r)
	if perr != nil {
		s.writeError(w, perr)
		return
	}
	s.writeRelay(w, resp)
}

// writeRelay writes the upstream response. Everything is buffered, so the
// whole response goes out in one pass and no error body can ever follow
// the first written byte.
func (s *Server) writeRelay(w http.ResponseWriter, resp *forward.ProxyResponse) {
	dst := w.Header()
	for name, vals := range resp.Header {
		// CORS headers set by the middleware win over upstream's
		if _, exists := dst[http.CanonicalHeaderKey(name)]; exists {
			continue
		}
		for _, v := range vals {
			dst.Add(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

func (s *Server) writeError(w http.ResponseWriter, perr *types.PipelineError) {
	w.Header().Set("Content-Type", "application/json")

	switch perr.Kind {
	case types.MissingCredential, types.InvalidCredential:
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: perr.Message})
	case types.RateLimited:
		w.Header().Set("Retry-After", strconv.FormatInt(perr.RetryAfterSec, 10))
		writeJSON(w, http.StatusTooManyRequests, RateLimitResponse{
			Error:      perr.Message,
			RetryAfter: perr.RetryAfterSec,
		})
	case types.InvalidTargetURL:
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: perr.Message})
	default: // UpstreamBlocked, TransportFailed
		writeJSON(w, http.StatusInternalServerError, ProxyErrorResponse{
			Error:   forward.MsgProxyError,
			Message: perr.Message,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
