package types

// Decision is the rate-limit verdict for one request.
type Decision struct {
	Allowed      bool   // whether the request may proceed
	Remaining    int64  // budget left in the current window
	RetryAfterMs int64  // suggested retry delay (milliseconds)
	Reason       string // verdict reason
	Err          error  // underlying error, if any
}

// ErrKind names the failure class of a pipeline stage.
type ErrKind int

const (
	// MissingCredential means the api key header was absent or empty.
	MissingCredential ErrKind = iota
	// InvalidCredential means the presented api key is not in the allow-list.
	InvalidCredential
	// RateLimited means the window budget is exhausted.
	RateLimited
	// InvalidTargetURL means the inbound path did not contain an absolute URL.
	InvalidTargetURL
	// UpstreamBlocked means the outbound circuit breaker is open.
	UpstreamBlocked
	// TransportFailed means the outbound call failed at the transport level.
	TransportFailed
)

func (k ErrKind) String() string {
	switch k {
	case MissingCredential:
		return "missing_credential"
	case InvalidCredential:
		return "invalid_credential"
	case RateLimited:
		return "rate_limited"
	case InvalidTargetURL:
		return "invalid_target_url"
	case UpstreamBlocked:
		return "upstream_blocked"
	case TransportFailed:
		return "transport_failed"
	default:
		return "unknown"
	}
}

// PipelineError is the terminal outcome of a failed pipeline stage.
// Stages return it as a value; nothing in the pipeline panics.
type PipelineError struct {
	Kind          ErrKind
	Message       string // caller facing message, must not leak keys or config
	RetryAfterSec int64  // only set for RateLimited
	Cause         error  // diagnostics only
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}
