package auth

import (
	"net/http"
	"strings"
)

import (
	"github.com/nanjiek/pixiu-proxy/internal/types"
)

// DefaultHeader is the credential header; it is part of the external
// contract and must not change.
const DefaultHeader = "x-api-key"

// Caller facing messages for the two credential failures. Both map to 401
// and differ only by message.
const (
	MsgMissingKey = "API key is required"
	MsgInvalidKey = "Invalid API key"
)

// KeySet is an immutable allow-list of api keys. Membership is exact and
// case-sensitive. Built once at startup and never mutated.
type KeySet map[string]struct{}

func NewKeySet(keys []string) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		s[k] = struct{}{}
	}
	return s
}

func (s KeySet) Contains(key string) bool {
	_, ok := s[key]
	return ok
}

func (s KeySet) Len() int {
	return len(s)
}

// Authenticator validates the credential header against the allow-list.
type Authenticator struct {
	header string
	keys   KeySet
}

func New(header string, keys []string) *Authenticator {
	if strings.TrimSpace(header) == "" {
		header = DefaultHeader
	}
	return &Authenticator{
		header: header,
		keys:   NewKeySet(keys),
	}
}

// Header returns the credential header name.
func (a *Authenticator) Header() string {
	return a.header
}

// Credential extracts the raw credential from the request, empty if absent.
func (a *Authenticator) Credential(req *http.Request) string {
	return req.Header.Get(a.header)
}

// Authenticate checks the presented credential. It reads no shared mutable
// state, so concurrent calls are safe.
func (a *Authenticator) Authenticate(req *http.Request) *types.PipelineError {
	key := a.Credential(req)
	if key == "" {
		return &types.PipelineError{
			Kind:    types.MissingCredential,
			Message: MsgMissingKey,
		}
	}
	if !a.keys.Contains(key) {
		return &types.PipelineError{
			Kind:    types.InvalidCredential,
			Message: MsgInvalidKey,
		}
	}
	return nil
}
