// Package header holds the overwrite-oriented helpers the client uses to
// merge default, call-site and raw header sets.
package header

import (
	"net/http"
	"net/textproto"
	"strings"
)

// Set replaces every existing value of name with values. Unlike
// [http.Header.Add] it never leaves duplicate entries behind.
func Set(h http.Header, name string, values ...string) {
	key := textproto.CanonicalMIMEHeaderKey(name)
	h.Del(key)
	if len(values) == 0 {
		return
	}

	h[key] = append([]string(nil), values...)
}

// Merge copies src into dst, name by name, with [Set] semantics: a
// name present in src replaces whatever dst held for it.
func Merge(dst, src http.Header) {
	for name, values := range src {
		Set(dst, name, values...)
	}
}

// Parse reads a raw header block, one "Name: value" pair per line. CRLF
// line endings are normalized, blank lines and lines with a blank name
// are skipped, and only the first ':' splits a line. A line without ':'
// yields its name with an empty value.
func Parse(raw string) http.Header {
	if strings.TrimSpace(raw) == "" {
		return http.Header{}
	}

	return FromLines(strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n"))
}

// FromLines is [Parse] for input already split into lines.
func FromLines(lines []string) http.Header {
	h := http.Header{}
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		name, value, _ := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		h.Add(name, strings.TrimSpace(value))
	}

	return h
}

// contentHeaders are the entity headers that describe the body rather
// than the message.
var contentHeaders = map[string]bool{
	"Allow":               true,
	"Content-Disposition": true,
	"Content-Encoding":    true,
	"Content-Language":    true,
	"Content-Length":      true,
	"Content-Location":    true,
	"Content-Md5":         true,
	"Content-Range":       true,
	"Content-Type":        true,
	"Expires":             true,
	"Last-Modified":       true,
}

// IsContent reports whether name is a body-describing header.
func IsContent(name string) bool {
	return contentHeaders[textproto.CanonicalMIMEHeaderKey(name)]
}

// SplitContent separates h into message headers and content headers.
// h itself is not modified.
func SplitContent(h http.Header) (message, content http.Header) {
	message, content = http.Header{}, http.Header{}
	for name, values := range h {
		cpy := append([]string(nil), values...)
		if IsContent(name) {
			content[name] = cpy
			continue
		}
		message[name] = cpy
	}

	return message, content
}
