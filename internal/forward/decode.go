package forward

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"io"
	"strings"
)

import (
	"github.com/andybalholm/brotli"
)

// decodeBody undoes the content coding the upstream applied. The forwarder
// advertises gzip/deflate/br itself, so the decoded bytes are what the
// caller must receive once Content-Encoding is stripped.
func decodeBody(raw []byte, encoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return raw, nil
	case "gzip":
		r, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case "deflate":
		// RFC says zlib-wrapped, some servers send raw deflate.
		if r, err := zlib.NewReader(bytes.NewReader(raw)); err == nil {
			defer r.Close()
			return io.ReadAll(r)
		}
		r := flate.NewReader(bytes.NewReader(raw))
		defer r.Close()
		return io.ReadAll(r)
	case "br":
		return io.ReadAll(brotli.NewReader(bytes.NewReader(raw)))
	default:
		// unknown coding, relay as-is
		return raw, nil
	}
}
