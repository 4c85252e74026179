package api

// ErrorResponse is the body for auth and target failures.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RateLimitResponse is the 429 body.
type RateLimitResponse struct {
	Error      string `json:"error"`
	RetryAfter int64  `json:"retryAfter"`
}

// ProxyErrorResponse is the 500 body for transport failures. Message is
// diagnostic detail only and never contains credentials or config.
type ProxyErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
