package auth

import (
	"net/http/httptest"
	"testing"
)

import (
	"github.com/nanjiek/pixiu-proxy/internal/types"
)

func TestAuthenticateMissingKey(t *testing.T) {
	a := New("x-api-key", []string{"key-1"})

	req := httptest.NewRequest("GET", "/https://example.com", nil)
	perr := a.Authenticate(req)
	if perr == nil {
		t.Fatal("expected error for missing key")
	}
	if perr.Kind != types.MissingCredential {
		t.Fatalf("kind = %v, want MissingCredential", perr.Kind)
	}
	if perr.Message != MsgMissingKey {
		t.Fatalf("message = %q, want %q", perr.Message, MsgMissingKey)
	}
}

func TestAuthenticateInvalidKey(t *testing.T) {
	a := New("x-api-key", []string{"key-1"})

	req := httptest.NewRequest("GET", "/https://example.com", nil)
	req.Header.Set("x-api-key", "wrong-key")
	perr := a.Authenticate(req)
	if perr == nil {
		t.Fatal("expected error for invalid key")
	}
	if perr.Kind != types.InvalidCredential {
		t.Fatalf("kind = %v, want InvalidCredential", perr.Kind)
	}
	if perr.Message != MsgInvalidKey {
		t.Fatalf("message = %q, want %q", perr.Message, MsgInvalidKey)
	}
}

func TestAuthenticateValidKey(t *testing.T) {
	a := New("x-api-key", []string{"key-1", "key-2"})

	for _, key := range []string{"key-1", "key-2"} {
		req := httptest.NewRequest("POST", "/https://example.com", nil)
		req.Header.Set("X-Api-Key", key) // header lookup is case-insensitive
		if perr := a.Authenticate(req); perr != nil {
			t.Fatalf("valid key %q rejected: %v", key, perr)
		}
	}
}

func TestKeyMatchingIsCaseSensitive(t *testing.T) {
	a := New("x-api-key", []string{"Key-1"})

	req := httptest.NewRequest("GET", "/https://example.com", nil)
	req.Header.Set("x-api-key", "key-1")
	perr := a.Authenticate(req)
	if perr == nil || perr.Kind != types.InvalidCredential {
		t.Fatal("key comparison must be case-sensitive")
	}
}

func TestNewKeySetSkipsEmpty(t *testing.T) {
	s := NewKeySet([]string{"a", "", "b"})
	if s.Len() != 2 {
		t.Fatalf("len = %d, want 2", s.Len())
	}
	if s.Contains("") {
		t.Fatal("empty string must never be a valid key")
	}
}

func TestDefaultHeaderFallback(t *testing.T) {
	a := New("  ", []string{"k"})
	if a.Header() != DefaultHeader {
		t.Fatalf("header = %q, want %q", a.Header(), DefaultHeader)
	}
}
