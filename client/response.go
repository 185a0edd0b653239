package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/adamwoolhether/httpsession/client/header"
)

// Response is the uniform result of [Client.Request]. It is populated
// even when the request failed; Err holds a captured transport,
// filesystem or cancellation failure.
type Response struct {
	ID            string
	StatusCode    int
	ReasonPhrase  string
	RequestURL    *url.URL
	RequestMethod string
	Version       Version
	Header        http.Header
	ContentHeader http.Header
	Text          string
	DownloadedTo  string
	Elapsed       time.Duration
	Err           error

	jsonOnce sync.Once
	jsonObj  map[string]any

	htmlOnce sync.Once
	node     *html.Node
}

// populate copies status line and headers from resp.
func (r *Response) populate(resp *http.Response) {
	r.StatusCode = resp.StatusCode
	r.ReasonPhrase = reasonPhrase(resp)
	r.Version = versionOf(resp.ProtoMajor, resp.ProtoMinor)
	r.Header, r.ContentHeader = header.SplitContent(resp.Header)

	if resp.Request != nil {
		r.RequestURL = resp.Request.URL
		r.RequestMethod = resp.Request.Method
	}
}

// reasonPhrase returns the server-sent reason, falling back to the
// standard text for the code.
func reasonPhrase(resp *http.Response) string {
	code := fmt.Sprintf("%d", resp.StatusCode)
	if reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, code)); reason != "" {
		return reason
	}
	return http.StatusText(resp.StatusCode)
}

// OK reports whether nothing was captured and the status is 2xx.
func (r *Response) OK() bool {
	return r.Err == nil && r.StatusCode >= 200 && r.StatusCode <= 299
}

// Failure returns an [*Error] if the response failed, else nil. The
// error wraps the captured failure or an [*UnexpectedStatusError].
func (r *Response) Failure() error {
	switch {
	case r.Err != nil:
		return &Error{Response: r, Err: r.Err}
	case r.StatusCode < 200 || r.StatusCode > 299:
		return &Error{Response: r, Err: newStatusError(r)}
	default:
		return nil
	}
}

// EnsureSuccess is Failure, named for call sites that only check it.
func (r *Response) EnsureSuccess() error {
	return r.Failure()
}

// JSON parses Text as a JSON object on first use. A body that is not an
// object yields nil, and the result is cached either way.
func (r *Response) JSON() map[string]any {
	r.jsonOnce.Do(func() {
		var obj map[string]any
		if err := json.Unmarshal([]byte(r.Text), &obj); err != nil {
			return
		}
		r.jsonObj = obj
	})
	return r.jsonObj
}

// DecodeJSON unmarshals Text into v.
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal([]byte(r.Text), v); err != nil {
		return fmt.Errorf("decoding body: %w", err)
	}
	return nil
}

func (r *Response) htmlNode() *html.Node {
	r.htmlOnce.Do(func() {
		node, err := htmlquery.Parse(strings.NewReader(r.Text))
		if err != nil {
			return
		}
		r.node = node
	})
	return r.node
}

// Document returns Text as a goquery document, parsed once. It is nil
// when the body cannot be parsed.
func (r *Response) Document() *goquery.Document {
	node := r.htmlNode()
	if node == nil {
		return nil
	}

	doc := goquery.NewDocumentFromNode(node)
	doc.Url = r.RequestURL
	return doc
}

// XPath evaluates expr against the parsed body.
func (r *Response) XPath(expr string) ([]*html.Node, error) {
	node := r.htmlNode()
	if node == nil {
		return nil, nil
	}

	nodes, err := htmlquery.QueryAll(node, expr)
	if err != nil {
		return nil, fmt.Errorf("evaluating xpath %q: %w", expr, err)
	}
	return nodes, nil
}

// ResolveURL resolves ref against the final request URL, e.g. for links
// found in Document.
func (r *Response) ResolveURL(ref string) (string, error) {
	if r.RequestURL == nil {
		return "", fmt.Errorf("%w: response has no request url", ErrInvalidArgument)
	}

	u, err := r.RequestURL.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parsing reference %q: %w", ref, err)
	}
	return u.String(), nil
}
