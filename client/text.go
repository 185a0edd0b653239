package client

import (
	"bytes"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText converts a body to a string using the charset declared in
// contentType. Undeclared non-UTF-8 bodies are sniffed.
func decodeText(b []byte, contentType string) string {
	if bytes.HasPrefix(b, utf8BOM) {
		return string(b[len(utf8BOM):])
	}

	label := declaredCharset(contentType)
	if label == "" {
		if utf8.Valid(b) {
			return string(b)
		}
		res, err := chardet.NewTextDetector().DetectBest(b)
		if err != nil {
			return string(b)
		}
		label = res.Charset
	}

	enc, name := charset.Lookup(label)
	if enc == nil || name == "utf-8" {
		return string(b)
	}

	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

func declaredCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(params["charset"])
}
