package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Version is the preferred HTTP protocol version of a request.
type Version int

const (
	// VersionUnset leaves the choice to the client, which sends HTTP/1.1.
	VersionUnset Version = iota
	// Version10 asks for HTTP/1.0 semantics. Go cannot write an HTTP/1.0
	// request line, so the request goes out as HTTP/1.1 with keep-alive
	// disabled.
	Version10
	// Version11 restricts the request to HTTP/1.1.
	Version11
	// Version20 prefers HTTP/2, negotiated over TLS with HTTP/1.1 fallback.
	Version20
)

func (v Version) String() string {
	switch v {
	case VersionUnset:
		return "unset"
	case Version10:
		return "HTTP/1.0"
	case Version11:
		return "HTTP/1.1"
	case Version20:
		return "HTTP/2.0"
	default:
		return fmt.Sprintf("Version(%d)", int(v))
	}
}

// ParseVersion accepts "1.0", "1.1", "2", "2.0" with or without an
// "HTTP/" prefix, and "" for VersionUnset.
func ParseVersion(s string) (Version, error) {
	switch strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "HTTP/") {
	case "", "UNSET":
		return VersionUnset, nil
	case "1.0":
		return Version10, nil
	case "1.1":
		return Version11, nil
	case "2", "2.0":
		return Version20, nil
	default:
		return VersionUnset, fmt.Errorf("unknown http version %q", s)
	}
}

// versionOf maps a response's protocol numbers to a Version.
func versionOf(major, minor int) Version {
	switch {
	case major == 2:
		return Version20
	case major == 1 && minor == 0:
		return Version10
	case major == 1:
		return Version11
	default:
		return VersionUnset
	}
}

type versionKey struct{}

func withVersion(ctx context.Context, v Version) context.Context {
	return context.WithValue(ctx, versionKey{}, v)
}

func versionFrom(ctx context.Context) Version {
	v, _ := ctx.Value(versionKey{}).(Version)
	return v
}

// versionRouter sends each request to the transport matching the
// version preference stored in its context. Redirects keep the
// context, so they stay on the same protocol.
type versionRouter struct {
	http10 http.RoundTripper
	http11 http.RoundTripper
	http2  http.RoundTripper
}

func (vr versionRouter) RoundTrip(r *http.Request) (*http.Response, error) {
	switch versionFrom(r.Context()) {
	case Version10:
		return vr.http10.RoundTrip(r)
	case Version20:
		return vr.http2.RoundTrip(r)
	default:
		return vr.http11.RoundTrip(r)
	}
}

func (vr versionRouter) CloseIdleConnections() {
	for _, rt := range []http.RoundTripper{vr.http10, vr.http11, vr.http2} {
		if ci, ok := rt.(interface{ CloseIdleConnections() }); ok {
			ci.CloseIdleConnections()
		}
	}
}
