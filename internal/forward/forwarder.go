// Package forward performs the outbound call for admitted requests.
package forward

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

import (
	"go.uber.org/zap"
)

import (
	"github.com/nanjiek/pixiu-proxy/internal/types"
)

// Outbound header defaults, applied when the inbound request carries none.
const (
	DefaultUserAgent      = "Mozilla/5.0"
	DefaultAccept         = "*/*"
	DefaultAcceptEncoding = "gzip, deflate, br"
)

// MsgProxyError is the fixed caller facing error for transport failures.
const MsgProxyError = "Proxy error occurred"

// DefaultTimeout bounds the outbound call when the config does not say
// otherwise.
const DefaultTimeout = 30 * time.Second

// forwardedHeaders is the only inbound header subset that crosses to the
// upstream.
var forwardedHeaders = []struct {
	name string
	def  string
}{
	{"User-Agent", DefaultUserAgent},
	{"Accept", DefaultAccept},
	{"Accept-Encoding", DefaultAcceptEncoding},
}

// excludedHeaders never relay back to the caller. Content-Encoding and
// Content-Length go because the body is decoded before relaying; the rest
// are hop-by-hop.
var excludedHeaders = map[string]struct{}{
	"Connection":        {},
	"Transfer-Encoding": {},
	"Content-Encoding":  {},
	"Content-Length":    {},
	"Keep-Alive":        {},
}

// ProxyRequest is the outbound call derived from one inbound request.
// Immutable once built; lives only for the request's duration.
type ProxyRequest struct {
	Method    string
	TargetURL string
	Header    http.Header // already constrained to the forwarded subset
	Body      []byte
}

// ProxyResponse is what the outer handler writes back to the caller.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Forwarder issues the outbound call. Upstream statuses of any value are a
// success; only transport-level failures produce an error.
type Forwarder interface {
	Do(ctx context.Context, req *ProxyRequest) (*ProxyResponse, *types.PipelineError)
}

// BuildRequest derives the ProxyRequest from an inbound request, applying
// header defaults. body is the fully read inbound body.
func BuildRequest(r *http.Request, targetURL string, body []byte) *ProxyRequest {
	h := make(http.Header, len(forwardedHeaders))
	for _, fh := range forwardedHeaders {
		v := r.Header.Get(fh.name)
		if v == "" {
			v = fh.def
		}
		h.Set(fh.name, v)
	}
	return &ProxyRequest{
		Method:    r.Method,
		TargetURL: targetURL,
		Header:    h,
		Body:      body,
	}
}

// HTTPForwarder is the transport-backed forwarder. One client, one timeout,
// single attempt per request.
type HTTPForwarder struct {
	client *http.Client
	logger *zap.Logger
}

func NewHTTPForwarder(timeout time.Duration, logger *zap.Logger) *HTTPForwarder {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPForwarder{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (f *HTTPForwarder) Do(ctx context.Context, preq *ProxyRequest) (*ProxyResponse, *types.PipelineError) {
	req, err := http.NewRequestWithContext(ctx, preq.Method, preq.TargetURL, bytes.NewReader(preq.Body))
	if err != nil {
		return nil, transportErr("building upstream request failed", err)
	}
	for name, vals := range preq.Header {
		for _, v := range vals {
			req.Header.Set(name, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		// DNS, refused, timeout, TLS — all collapse to one proxy error.
		f.logger.Warn("upstream call failed",
			zap.String("method", preq.Method),
			zap.String("target", preq.TargetURL),
			zap.Error(err))
		return nil, transportErr(err.Error(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportErr("reading upstream response failed", err)
	}

	body, err := decodeBody(raw, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, transportErr("decoding upstream response failed", err)
	}

	out := &ProxyResponse{
		StatusCode: resp.StatusCode,
		Header:     filterHeaders(resp.Header),
		Body:       body,
	}
	return out, nil
}

func filterHeaders(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for name, vals := range h {
		if _, skip := excludedHeaders[http.CanonicalHeaderKey(name)]; skip {
			continue
		}
		for _, v := range vals {
			out.Add(name, v)
		}
	}
	return out
}

func transportErr(detail string, cause error) *types.PipelineError {
	return &types.PipelineError{
		Kind:    types.TransportFailed,
		Message: detail,
		Cause:   cause,
	}
}
