// Package target turns the inbound proxy path into the upstream URL.
package target

import (
	"errors"
	"net/url"
	"strings"
)

import (
	"github.com/nanjiek/pixiu-proxy/internal/types"
)

// MsgInvalidTarget is the caller facing message for a bad proxy path.
const MsgInvalidTarget = "Invalid target URL"

var errNotAbsolute = errors.New("target: path is not an absolute http(s) URL")

// Extract strips the leading slash from the inbound path and validates the
// remainder as an absolute http(s) URL. The raw query is reattached
// verbatim — never re-parsed or re-encoded — so query credentials like
// api_key=... survive byte-for-byte.
//
// Pure function, no side effects.
func Extract(path, rawQuery string) (string, *types.PipelineError) {
	rest := strings.TrimPrefix(path, "/")
	if rest == "" {
		return "", invalid(errNotAbsolute)
	}

	u, err := url.Parse(rest)
	if err != nil {
		return "", invalid(err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", invalid(errNotAbsolute)
	}

	if rawQuery != "" {
		rest += "?" + rawQuery
	}
	return rest, nil
}

func invalid(cause error) *types.PipelineError {
	return &types.PipelineError{
		Kind:    types.InvalidTargetURL,
		Message: MsgInvalidTarget,
		Cause:   cause,
	}
}
