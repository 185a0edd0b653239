// Package echo implements an httpbin-style handler that reflects
// requests back as JSON and serves canned status codes, delays,
// redirects, cookies, encodings and charsets.
package echo

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// Sample is the plain body served by /encoding routes.
const Sample = "the quick brown fox jumps over the lazy dog"

// Page is the document served by /html.
const Page = `<!DOCTYPE html>
<html>
<head><title>echo</title></head>
<body>
<h1 id="title">Echo</h1>
<ul class="links">
<li><a href="/anything/one">one</a></li>
<li><a href="two">two</a></li>
<li><a href="https://example.com/three">three</a></li>
</ul>
</body>
</html>`

// Request is the JSON reflection of an incoming request.
type Request struct {
	Method   string            `json:"method"`
	Protocol string            `json:"protocol"`
	URL      string            `json:"url"`
	Headers  map[string]string `json:"headers"`
	Args     map[string]string `json:"args"`
	Body     string            `json:"body"`
	Cookies  map[string]string `json:"cookies"`
	Close    bool              `json:"close"`
}

// HandlerFunc is a handler that reports failures instead of writing them.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// New returns the echo handler. Requests are logged to logger.
func New(logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	handle := func(pattern string, fn HandlerFunc) {
		mux.Handle(pattern, logged(logger, fn))
	}

	handle("/anything", anything)
	handle("/anything/", anything)
	handle("GET /status/{code}", status)
	handle("GET /delay/{duration}", delay)
	handle("GET /redirect-to", redirectTo)
	handle("GET /cookies", listCookies)
	handle("GET /cookies/set", setCookies)
	handle("GET /encoding/{coding}", encoding)
	handle("GET /bytes/{n}", byteStream)
	handle("GET /html", page)
	handle("GET /charset/latin1", latin1)

	return mux
}

// Reflect builds the JSON view of r, consuming its body.
func Reflect(r *http.Request) (Request, error) {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return Request{}, fmt.Errorf("reading body: %w", err)
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	req := Request{
		Method:   r.Method,
		Protocol: r.Proto,
		URL:      scheme + "://" + r.Host + r.URL.RequestURI(),
		Headers:  flatten(r.Header),
		Args:     flatten(r.URL.Query()),
		Body:     string(b),
		Cookies:  map[string]string{},
		Close:    r.Close,
	}
	for _, c := range r.Cookies() {
		req.Cookies[c.Name] = c.Value
	}

	return req, nil
}

func flatten(m map[string][]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = strings.Join(v, ", ")
	}
	return out
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if _, err = w.Write(jsonData); err != nil {
		return err
	}

	return nil
}

func anything(w http.ResponseWriter, r *http.Request) error {
	req, err := Reflect(r)
	if err != nil {
		return err
	}

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return nil
	}

	return respondJSON(w, http.StatusOK, req)
}

func status(w http.ResponseWriter, r *http.Request) error {
	code, err := strconv.Atoi(r.PathValue("code"))
	if err != nil || code < 200 || code > 999 {
		http.Error(w, "invalid status code", http.StatusBadRequest)
		return nil
	}

	if code >= 300 && code <= 399 {
		w.Header().Set("Location", "/anything")
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	if code == http.StatusNoContent || code == http.StatusNotModified {
		return nil
	}

	_, err = io.WriteString(w, strings.ToLower(http.StatusText(code)))
	return err
}

func delay(w http.ResponseWriter, r *http.Request) error {
	d, err := time.ParseDuration(r.PathValue("duration"))
	if err != nil {
		http.Error(w, "invalid duration", http.StatusBadRequest)
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
	case <-r.Context().Done():
		return nil
	}

	return anything(w, r)
}

func redirectTo(w http.ResponseWriter, r *http.Request) error {
	target := r.URL.Query().Get("url")
	if target == "" {
		http.Error(w, "missing url", http.StatusBadRequest)
		return nil
	}

	code := http.StatusFound
	if s := r.URL.Query().Get("status_code"); s != "" {
		c, err := strconv.Atoi(s)
		if err != nil || c < 300 || c > 399 {
			http.Error(w, "invalid status_code", http.StatusBadRequest)
			return nil
		}
		code = c
	}

	http.Redirect(w, r, target, code)
	return nil
}

func listCookies(w http.ResponseWriter, r *http.Request) error {
	cookies := map[string]string{}
	for _, c := range r.Cookies() {
		cookies[c.Name] = c.Value
	}

	return respondJSON(w, http.StatusOK, struct {
		Cookies map[string]string `json:"cookies"`
	}{Cookies: cookies})
}

func setCookies(w http.ResponseWriter, r *http.Request) error {
	for name, values := range r.URL.Query() {
		for _, v := range values {
			http.SetCookie(w, &http.Cookie{Name: name, Value: v, Path: "/"})
		}
	}

	http.Redirect(w, r, "/cookies", http.StatusFound)
	return nil
}

func encoding(w http.ResponseWriter, r *http.Request) error {
	coding := r.PathValue("coding")

	var enc io.WriteCloser
	switch coding {
	case "gzip":
		enc = gzip.NewWriter(w)
	case "deflate":
		enc = zlib.NewWriter(w)
	case "zstd":
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("zstd writer: %w", err)
		}
		enc = zw
	default:
		http.Error(w, "unsupported coding", http.StatusBadRequest)
		return nil
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Encoding", coding)
	w.WriteHeader(http.StatusOK)

	if _, err := io.WriteString(enc, Sample); err != nil {
		return err
	}
	return enc.Close()
}

func byteStream(w http.ResponseWriter, r *http.Request) error {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 0 || n > 10<<20 {
		http.Error(w, "invalid byte count", http.StatusBadRequest)
		return nil
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(n))
	w.WriteHeader(http.StatusOK)

	_, err = io.Copy(w, io.LimitReader(&pattern{}, int64(n)))
	return err
}

// Bytes returns the first n bytes served by /bytes/{n}.
func Bytes(n int) []byte {
	b := make([]byte, n)
	(&pattern{}).Read(b)
	return b
}

// pattern endlessly repeats the lowercase alphabet.
type pattern struct {
	off int
}

func (p *pattern) Read(b []byte) (int, error) {
	for i := range b {
		b[i] = byte('a' + p.off%26)
		p.off++
	}
	return len(b), nil
}

func page(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := io.WriteString(w, Page)
	return err
}

// Latin1 is the text served by /charset/latin1, before encoding.
const Latin1 = "café déjà vu"

func latin1(w http.ResponseWriter, _ *http.Request) error {
	b := make([]byte, 0, len(Latin1))
	for _, r := range Latin1 {
		b = append(b, byte(r))
	}

	w.Header().Set("Content-Type", "text/plain; charset=iso-8859-1")
	_, err := w.Write(b)
	return err
}

// statusRecorder captures the written status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	return sr.ResponseWriter.Write(b)
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func logged(logger *slog.Logger, fn HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		path := r.URL.Path
		if r.URL.RawQuery != "" {
			path = fmt.Sprintf("%s?%s", path, r.URL.RawQuery)
		}

		logger.Debug("request started", "method", r.Method, "path", path, "remoteaddr", r.RemoteAddr)

		if err := fn(rec, r); err != nil {
			if r.Context().Err() == nil {
				logger.Error("handler failed", "method", r.Method, "path", path, "error", err)
			}
			if rec.status == 0 {
				http.Error(rec, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}

		logger.Debug("request completed", "method", r.Method, "path", path, "remoteaddr", r.RemoteAddr, "statusCode", rec.status, "since", time.Since(now).String())
	})
}

// URL joins base and path, e.g. for an httptest server URL.
func URL(base, path string, query url.Values) string {
	u := strings.TrimRight(base, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}
