package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/httpsession/client/download"
	"github.com/adamwoolhether/httpsession/client/header"
)

// RequestOption adjusts a single call to [Client.Request].
type RequestOption func(*requestOpts) error

type requestOpts struct {
	method           string
	referer          string
	content          *string
	contentType      string
	headers          http.Header
	query            url.Values
	body             io.Reader
	noDefaultHeaders bool
	downloadTo       string
	downloadOpts     []download.Option
}

// WithMethod sets the request method. Default is GET.
func WithMethod(method string) RequestOption {
	return func(o *requestOpts) error {
		if method == "" {
			return errors.New("method must not be empty")
		}
		o.method = method
		return nil
	}
}

// WithReferer sets the Referer header. Blank values are ignored.
func WithReferer(referer string) RequestOption {
	return func(o *requestOpts) error {
		o.referer = referer
		return nil
	}
}

// WithContent sends s as the request body.
func WithContent(s string) RequestOption {
	return func(o *requestOpts) error {
		o.content = &s
		return nil
	}
}

// WithContentType sets the media type of the body. It is validated
// before the request is sent.
func WithContentType(contentType string) RequestOption {
	return func(o *requestOpts) error {
		o.contentType = contentType
		return nil
	}
}

// WithRequestHeaders overlays h on this request only, replacing
// default headers of the same name. Use [WithHeaders] for headers sent
// with every request.
func WithRequestHeaders(h http.Header) RequestOption {
	return func(o *requestOpts) error {
		if o.headers == nil {
			o.headers = http.Header{}
		}
		header.Merge(o.headers, h)
		return nil
	}
}

// WithQuery adds query parameters to the request URL.
func WithQuery(values url.Values) RequestOption {
	return func(o *requestOpts) error {
		if o.query == nil {
			o.query = url.Values{}
		}
		for k, v := range values {
			o.query[k] = append(o.query[k], v...)
		}
		return nil
	}
}

// WithBody sends r as a pre-built body. It cannot be combined with
// WithContent, WithForm or WithJSON. Content headers for r belong in
// WithRequestHeaders.
func WithBody(r io.Reader) RequestOption {
	return func(o *requestOpts) error {
		if r == nil {
			return errors.New("body must not be nil")
		}
		o.body = r
		return nil
	}
}

// WithForm sends values URL-encoded, defaulting the content type to
// application/x-www-form-urlencoded.
func WithForm(values url.Values) RequestOption {
	return func(o *requestOpts) error {
		s := values.Encode()
		o.content = &s
		if o.contentType == "" {
			o.contentType = "application/x-www-form-urlencoded"
		}
		return nil
	}
}

// WithJSON sends v encoded as JSON, defaulting the content type to
// application/json.
func WithJSON(v any) RequestOption {
	return func(o *requestOpts) error {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding request payload: %w", err)
		}
		s := string(b)
		o.content = &s
		if o.contentType == "" {
			o.contentType = "application/json"
		}
		return nil
	}
}

// WithoutDefaultHeaders skips the client's default headers.
func WithoutDefaultHeaders() RequestOption {
	return func(o *requestOpts) error {
		o.noDefaultHeaders = true
		return nil
	}
}

// WithDownload streams the body to path instead of buffering it as
// text. path must not exist yet.
func WithDownload(path string, opts ...download.Option) RequestOption {
	return func(o *requestOpts) error {
		if path == "" {
			return errors.New("download path must not be empty")
		}
		o.downloadTo = path
		o.downloadOpts = opts
		return nil
	}
}

func (o *requestOpts) payload() (io.Reader, error) {
	if o.content != nil && o.body != nil {
		return nil, fmt.Errorf("%w: string content and body are mutually exclusive", ErrInvalidArgument)
	}

	if o.contentType != "" {
		if _, _, err := mime.ParseMediaType(o.contentType); err != nil {
			return nil, fmt.Errorf("%w: content type %q: %w", ErrInvalidArgument, o.contentType, err)
		}
	}

	switch {
	case o.content != nil:
		return strings.NewReader(*o.content), nil
	case o.body != nil:
		return o.body, nil
	default:
		return nil, nil
	}
}

func (c *Client) Get(ctx context.Context, rawURL string, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, rawURL, append([]RequestOption{WithMethod(http.MethodGet)}, opts...)...)
}

func (c *Client) Head(ctx context.Context, rawURL string, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, rawURL, append([]RequestOption{WithMethod(http.MethodHead)}, opts...)...)
}

func (c *Client) Post(ctx context.Context, rawURL string, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, rawURL, append([]RequestOption{WithMethod(http.MethodPost)}, opts...)...)
}

func (c *Client) Put(ctx context.Context, rawURL string, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, rawURL, append([]RequestOption{WithMethod(http.MethodPut)}, opts...)...)
}

func (c *Client) Patch(ctx context.Context, rawURL string, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, rawURL, append([]RequestOption{WithMethod(http.MethodPatch)}, opts...)...)
}

func (c *Client) Delete(ctx context.Context, rawURL string, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, rawURL, append([]RequestOption{WithMethod(http.MethodDelete)}, opts...)...)
}

// Request sends one request to rawURL and shapes the outcome into a
// [Response].
//
// Option conflicts return ErrInvalidArgument with a nil Response before
// any I/O. Otherwise a Response is always returned. Transport,
// filesystem and cancellation failures are captured in Response.Err.
// Unless errors are swallowed, a failed Response is also reported as an
// [*Error] carrying it.
func (c *Client) Request(ctx context.Context, rawURL string, opts ...RequestOption) (*Response, error) {
	var settings requestOpts
	for _, opt := range opts {
		if err := opt(&settings); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
	}

	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	req, err := c.newRequest(ctx, rawURL, &settings)
	if err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "httpsession.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.full", req.URL.String()),
		),
	)
	defer span.End()

	req = req.WithContext(ctx)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	c.runRequestHooks(req)

	resp := &Response{ID: uuid.NewString()}
	start := time.Now()
	c.send(ctx, req, &settings, resp)
	resp.Elapsed = time.Since(start)

	c.runResponseHooks(resp)

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.Err != nil {
		span.RecordError(resp.Err)
		span.SetStatus(codes.Error, resp.Err.Error())
	}

	c.logger.Debug("request completed",
		"id", resp.ID,
		"method", req.Method,
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"elapsed", resp.Elapsed,
		"error", resp.Err,
	)

	if !c.SwallowErrors() {
		if err := resp.Failure(); err != nil {
			return resp, err
		}
	}

	return resp, nil
}

// requestContext derives the context for one request: ctx bounded by the
// client lifetime and the current timeout, carrying the version preference.
func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancelCause := context.WithCancelCause(ctx)
	stop := context.AfterFunc(c.lifetime, func() {
		cancelCause(context.Cause(c.lifetime))
	})

	cancel := func() {
		stop()
		cancelCause(context.Canceled)
	}

	if d := c.Timeout(); d > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, d)
		outer := cancel
		cancel = func() {
			cancelTimeout()
			outer()
		}
	}

	return withVersion(ctx, c.Version()), cancel
}

func (c *Client) newRequest(ctx context.Context, rawURL string, settings *requestOpts) (*http.Request, error) {
	body, err := settings.payload()
	if err != nil {
		return nil, err
	}

	method := http.MethodGet
	if settings.method != "" {
		method = settings.method
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("%w: instantiating request: %w", ErrInvalidArgument, err)
	}

	if len(settings.query) > 0 {
		q := req.URL.Query()
		for k, v := range settings.query {
			q[k] = append(q[k], v...)
		}
		req.URL.RawQuery = q.Encode()
	}

	if !settings.noDefaultHeaders {
		header.Merge(req.Header, c.headers)
	}
	header.Merge(req.Header, settings.headers)

	if referer := strings.TrimSpace(settings.referer); referer != "" {
		req.Header.Set("Referer", referer)
	}
	if settings.contentType != "" && body != nil {
		req.Header.Set("Content-Type", settings.contentType)
	}

	return req, nil
}

// send runs the transport call and fills resp. Failures are captured
// into resp.Err rather than returned.
func (c *Client) send(ctx context.Context, req *http.Request, settings *requestOpts, resp *Response) {
	httpResp, err := c.hc.Do(req)
	if err != nil {
		c.capture(ctx, resp, err)
		return
	}

	// A body that failed mid-read is closed without draining.
	discardBody := true
	defer func() {
		if discardBody {
			if _, err := io.Copy(io.Discard, httpResp.Body); err != nil {
				c.logger.Debug("failed to discard unused body", "id", resp.ID, "error", err)
			}
		}
		if err := httpResp.Body.Close(); err != nil {
			c.logger.Error("failed to close response body", "id", resp.ID, "error", err)
		}
	}()

	if settings.downloadTo != "" {
		err := download.Handle(ctx, httpResp.Body, httpResp.ContentLength, settings.downloadTo, c.logger, settings.downloadOpts...)
		if err != nil {
			discardBody = false
			c.captureBody(ctx, resp, err)
			return
		}
		resp.DownloadedTo = settings.downloadTo
		resp.populate(httpResp)
		return
	}

	b, err := io.ReadAll(httpResp.Body)
	if err != nil {
		discardBody = false
		c.captureBody(ctx, resp, err)
		return
	}

	resp.Text = decodeText(b, httpResp.Header.Get("Content-Type"))
	resp.populate(httpResp)
}

// captureBody classifies a failure that happened after the headers
// arrived, while reading or storing the body.
func (c *Client) captureBody(ctx context.Context, resp *Response, err error) {
	var rerr *download.ReadError
	switch {
	case errors.Is(err, download.ErrFile):
		resp.Err = fmt.Errorf("%w: %w", ErrFilesystem, err)
	case errors.Is(err, download.ErrContentLengthMismatch):
		resp.Err = fmt.Errorf("%w: %w", ErrTransport, err)
	case errors.Is(err, download.ErrChecksumMismatch):
		resp.Err = err
	case errors.As(err, &rerr):
		c.capture(ctx, resp, rerr.Err)
	default:
		c.capture(ctx, resp, err)
	}
}

// capture classifies a transport failure. Cancellation wins over
// timeout so a caller abort is never reported as a slow server.
func (c *Client) capture(ctx context.Context, resp *Response, err error) {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		resp.StatusCode = http.StatusRequestTimeout
		resp.ReasonPhrase = reasonCanceled
		resp.Err = fmt.Errorf("%w: %w", ErrCanceled, context.Cause(ctx))
	case errors.Is(ctx.Err(), context.DeadlineExceeded) || isTimeout(err):
		resp.StatusCode = http.StatusRequestTimeout
		resp.ReasonPhrase = reasonTimedOut
		resp.Err = fmt.Errorf("%w: %w", ErrTimeout, err)
	default:
		resp.Err = fmt.Errorf("%w: %w", ErrTransport, err)
	}
}

func isTimeout(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
