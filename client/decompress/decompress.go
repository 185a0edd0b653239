// Package decompress provides an [http.RoundTripper] that advertises the
// configured content codings and transparently decodes responses that
// use one of them.
//
// Decoding is done with github.com/klauspost/compress. The base
// transport should have compression disabled so it does not negotiate
// gzip on its own.
package decompress

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// Method is a set of content codings.
type Method uint8

const (
	// None disables decompression; bodies are returned as sent.
	None Method = 0
	// GZip decodes "gzip" and "x-gzip".
	GZip Method = 1
	// Deflate decodes "deflate" (zlib framing).
	Deflate Method = 2
	// Zstd decodes "zstd".
	Zstd Method = 4
	// All enables every supported coding.
	All = GZip | Deflate | Zstd
)

// ErrUnknownMethod is returned by [ParseMethod].
var ErrUnknownMethod = errors.New("unknown decompression method")

// ParseMethod reads a comma-separated list such as "gzip,deflate".
// "none" and "" yield None, "all" yields All.
func ParseMethod(s string) (Method, error) {
	var m Method
	for _, part := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "", "none":
		case "gzip":
			m |= GZip
		case "deflate":
			m |= Deflate
		case "zstd":
			m |= Zstd
		case "all":
			m |= All
		default:
			return None, fmt.Errorf("%w: %q", ErrUnknownMethod, part)
		}
	}

	return m, nil
}

func (m Method) String() string {
	if m == None {
		return "none"
	}

	var parts []string
	for _, c := range codings {
		if m&c.method != 0 {
			parts = append(parts, c.name)
		}
	}
	return strings.Join(parts, ", ")
}

var codings = []struct {
	method Method
	name   string
}{
	{GZip, "gzip"},
	{Deflate, "deflate"},
	{Zstd, "zstd"},
}

// Transport wraps next. With m == None, next is returned unchanged.
func Transport(m Method, next http.RoundTripper) http.RoundTripper {
	if m == None {
		return next
	}

	return &transport{method: func() Method { return m }, next: next}
}

// Dynamic wraps next and reads the active method from fn on every
// request, so the set can change while the transport is in use.
func Dynamic(fn func() Method, next http.RoundTripper) http.RoundTripper {
	return &transport{method: fn, next: next}
}

type transport struct {
	method func() Method
	next   http.RoundTripper
}

func (t *transport) RoundTrip(r *http.Request) (*http.Response, error) {
	m := t.method()
	if m == None {
		return t.next.RoundTrip(r)
	}

	if r.Header.Get("Accept-Encoding") == "" && r.Header.Get("Range") == "" {
		cpy := r.Clone(r.Context())
		cpy.Header.Set("Accept-Encoding", m.String())
		r = cpy
	}

	resp, err := t.next.RoundTrip(r)
	if err != nil {
		return nil, err
	}

	if r.Method == http.MethodHead || resp.ContentLength == 0 ||
		resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotModified {
		return resp, nil
	}

	coding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	if coding == "x-gzip" {
		coding = "gzip"
	}

	var open func(io.Reader) (io.ReadCloser, error)
	switch {
	case coding == "gzip" && m&GZip != 0:
		open = func(r io.Reader) (io.ReadCloser, error) { return gzip.NewReader(r) }
	case coding == "deflate" && m&Deflate != 0:
		open = zlib.NewReader
	case coding == "zstd" && m&Zstd != 0:
		open = func(r io.Reader) (io.ReadCloser, error) {
			d, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return d.IOReadCloser(), nil
		}
	default:
		return resp, nil
	}

	resp.Body = &lazyReader{body: resp.Body, open: open}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true

	return resp, nil
}

// CloseIdleConnections forwards to next when it supports it.
func (t *transport) CloseIdleConnections() {
	type closeIdler interface{ CloseIdleConnections() }
	if ci, ok := t.next.(closeIdler); ok {
		ci.CloseIdleConnections()
	}
}

// lazyReader defers opening the decoder until the first Read so empty
// bodies (HEAD, 204) never fail on a missing stream header.
type lazyReader struct {
	body io.ReadCloser
	open func(io.Reader) (io.ReadCloser, error)
	dec  io.ReadCloser
	err  error
}

func (l *lazyReader) Read(p []byte) (int, error) {
	if l.err != nil {
		return 0, l.err
	}

	if l.dec == nil {
		dec, err := l.open(l.body)
		if err != nil {
			if errors.Is(err, io.EOF) {
				l.err = io.EOF
				return 0, io.EOF
			}
			l.err = fmt.Errorf("opening decoder: %w", err)
			return 0, l.err
		}
		l.dec = dec
	}

	return l.dec.Read(p)
}

func (l *lazyReader) Close() error {
	var decErr error
	if l.dec != nil {
		decErr = l.dec.Close()
	}

	return errors.Join(decErr, l.body.Close())
}
