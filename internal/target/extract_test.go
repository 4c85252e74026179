package target

import (
	"testing"
)

import (
	"github.com/nanjiek/pixiu-proxy/internal/types"
)

func TestExtractValidTargets(t *testing.T) {
	cases := []struct {
		name     string
		path     string
		rawQuery string
		want     string
	}{
		{
			name: "https no query",
			path: "/https://api.weather.gov/alerts/active",
			want: "https://api.weather.gov/alerts/active",
		},
		{
			name: "http with port",
			path: "/http://127.0.0.1:9000/v1/data",
			want: "http://127.0.0.1:9000/v1/data",
		},
		{
			name:     "query reattached verbatim",
			path:     "/https://api.example.com/v2/search",
			rawQuery: "stateCode=MN&limit=5&api_key=fake-key",
			want:     "https://api.example.com/v2/search?stateCode=MN&limit=5&api_key=fake-key",
		},
		{
			name:     "pre-encoded query survives byte-for-byte",
			path:     "/https://api.example.com/q",
			rawQuery: "term=a%20b%2Bc&x=1",
			want:     "https://api.example.com/q?term=a%20b%2Bc&x=1",
		},
		{
			name: "bare host",
			path: "/https://example.com",
			want: "https://example.com",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, perr := Extract(tc.path, tc.rawQuery)
			if perr != nil {
				t.Fatalf("Extract(%q, %q) failed: %v", tc.path, tc.rawQuery, perr)
			}
			if got != tc.want {
				t.Fatalf("Extract(%q, %q) = %q, want %q", tc.path, tc.rawQuery, got, tc.want)
			}
		})
	}
}

func TestExtractInvalidTargets(t *testing.T) {
	cases := []struct {
		name string
		path string
	}{
		{"root path", "/"},
		{"empty path", ""},
		{"no scheme", "/not-a-valid-url"},
		{"relative path", "/api/v1/users"},
		{"scheme without host", "/https://"},
		{"unsupported scheme", "/ftp://example.com/file"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, perr := Extract(tc.path, "")
			if perr == nil {
				t.Fatalf("Extract(%q) should fail", tc.path)
			}
			if perr.Kind != types.InvalidTargetURL {
				t.Fatalf("Extract(%q) kind = %v, want InvalidTargetURL", tc.path, perr.Kind)
			}
			if perr.Message != MsgInvalidTarget {
				t.Fatalf("Extract(%q) message = %q", tc.path, perr.Message)
			}
		})
	}
}
