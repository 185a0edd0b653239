package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/net/http/httpproxy"

	"github.com/adamwoolhether/httpsession/client/cookies"
	"github.com/adamwoolhether/httpsession/client/decompress"
	"github.com/adamwoolhether/httpsession/client/header"
	"github.com/adamwoolhether/httpsession/client/proxy"
)

const (
	DefaultTimeout = 90 * time.Second
	DefaultVersion = Version20

	maxRedirects   = 10
	maxErrBodySize = 4 << 10
	tracerName     = "github.com/adamwoolhether/httpsession/client"
)

// Client holds per-identity state: default headers, a cookie jar and a
// proxy, plus the transport those settings are applied to.
//
// Concurrent calls to [Client.Request] are safe. Mutating the header
// set or the jar while requests are in flight is the caller's
// responsibility; the scalar setters are safe at any time.
type Client struct {
	hc        *http.Client
	logger    *slog.Logger
	tracer    trace.Tracer
	tlsConfig *tls.Config
	roots     *x509.CertPool
	insecure  bool

	headers  http.Header
	jar      *cookies.Jar
	envProxy func(*url.URL) (*url.URL, error)

	proxy         atomic.Pointer[proxy.Proxy]
	certValidator atomic.Pointer[CertificateValidator]
	autoRedirect  atomic.Bool
	swallow       atomic.Bool
	timeout       atomic.Int64
	version       atomic.Int32
	decompression atomic.Uint32

	requestHooks  []RequestHook
	responseHooks []ResponseHook

	lifetime context.Context
	cancel   context.CancelCauseFunc
}

// Build creates a Client from optFns applied over the defaults.
func Build(optFns ...Option) (*Client, error) {
	cfg, err := NewConfig(optFns...)
	if err != nil {
		return nil, err
	}

	return New(cfg)
}

// New creates a Client from cfg. A nil cfg selects every default. Each
// present setting in cfg overrides its default once, here.
func New(cfg *Config) (*Client, error) {
	var o options
	if cfg != nil {
		o = cfg.opts.clone()
	}

	c := &Client{
		logger:        slog.Default(),
		tracer:        noop.NewTracerProvider().Tracer(tracerName),
		headers:       http.Header{},
		jar:           cookies.New(),
		envProxy:      httpproxy.FromEnvironment().ProxyFunc(),
		requestHooks:  o.requestHooks,
		responseHooks: o.responseHooks,
	}
	c.lifetime, c.cancel = context.WithCancelCause(context.Background())

	if o.logger != nil {
		c.logger = o.logger
	}
	if o.tracer != nil {
		c.tracer = o.tracer
	}
	if o.headers != nil {
		header.Merge(c.headers, o.headers)
	}

	c.autoRedirect.Store(true)
	if o.autoRedirect != nil {
		c.autoRedirect.Store(*o.autoRedirect)
	}

	c.swallow.Store(o.swallowErrors != nil && *o.swallowErrors)

	c.SetTimeout(DefaultTimeout)
	if o.timeout != nil {
		c.SetTimeout(*o.timeout)
	}

	c.SetVersion(DefaultVersion)
	if o.version != nil {
		c.SetVersion(*o.version)
	}

	if o.decompression != nil {
		c.SetDecompression(*o.decompression)
	}

	if o.certValidator != nil {
		c.SetCertificateValidator(o.certValidator)
	}

	switch {
	case o.direct:
	case o.proxy != nil:
		p := *o.proxy
		c.proxy.Store(&p)
	default:
		c.proxy.Store(&proxy.Proxy{})
	}

	c.tlsConfig = c.newTLSConfig(&o)

	c.hc = &http.Client{
		Transport:     decompress.Dynamic(c.Decompression, c.newTransport(o.rt)),
		Jar:           c.jar,
		CheckRedirect: c.checkRedirect,
	}

	return c, nil
}

// newTransport returns rt if set, otherwise a transport per protocol
// family routed by the request's version preference.
func (c *Client) newTransport(rt http.RoundTripper) http.RoundTripper {
	if rt != nil {
		return rt
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	base := &http.Transport{
		Proxy:                 c.proxyFor,
		DialContext:           dialer.DialContext,
		TLSClientConfig:       c.tlsConfig,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		DisableCompression:    true,
	}

	// Clone gives each transport its own tls.Config, so ALPN set up for
	// HTTP/2 never leaks into the HTTP/1 transports.
	h11 := base.Clone()
	h11.Protocols = new(http.Protocols)
	h11.Protocols.SetHTTP1(true)
	h11.DialTLSContext = c.dialTLS(dialer.DialContext, "http/1.1")

	h10 := h11.Clone()
	h10.DisableKeepAlives = true

	h2 := base.Clone()
	h2.Protocols = new(http.Protocols)
	h2.Protocols.SetHTTP1(true)
	h2.Protocols.SetHTTP2(true)
	h2.DialTLSContext = c.dialTLS(dialer.DialContext, "h2", "http/1.1")

	return versionRouter{http10: h10, http11: h11, http2: h2}
}

func (c *Client) checkRedirect(_ *http.Request, via []*http.Request) error {
	if !c.autoRedirect.Load() {
		return http.ErrUseLastResponse
	}
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	return nil
}

func (c *Client) proxyFor(r *http.Request) (*url.URL, error) {
	p := c.proxy.Load()
	switch {
	case p == nil:
		return nil, nil
	case p.IsEnvironment():
		return c.envProxy(r.URL)
	default:
		return p.URL(), nil
	}
}

// Close cancels in-flight requests and releases idle connections. The
// Client must not be used afterwards; requests fail as cancelled.
func (c *Client) Close() error {
	c.cancel(ErrClosed)
	c.hc.CloseIdleConnections()
	return nil
}

// HTTPClient returns the underlying *http.Client.
func (c *Client) HTTPClient() *http.Client {
	return c.hc
}

// Headers returns the live default header set. Changes apply to
// subsequent requests.
func (c *Client) Headers() http.Header {
	return c.headers
}

// SetHeader overwrites a default header.
func (c *Client) SetHeader(name string, values ...string) {
	header.Set(c.headers, name, values...)
}

// Cookies returns the client's cookie jar.
func (c *Client) Cookies() *cookies.Jar {
	return c.jar
}

// ClearCookies removes every stored cookie.
func (c *Client) ClearCookies() {
	c.jar.Clear()
}

func (c *Client) AutoRedirect() bool {
	return c.autoRedirect.Load()
}

func (c *Client) SetAutoRedirect(follow bool) {
	c.autoRedirect.Store(follow)
}

func (c *Client) SwallowErrors() bool {
	return c.swallow.Load()
}

func (c *Client) SetSwallowErrors(swallow bool) {
	c.swallow.Store(swallow)
}

func (c *Client) Timeout() time.Duration {
	return time.Duration(c.timeout.Load())
}

// SetTimeout bounds each request, body included. Values <= 0 disable it.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout.Store(int64(max(d, 0)))
}

func (c *Client) Version() Version {
	return Version(c.version.Load())
}

func (c *Client) SetVersion(v Version) {
	c.version.Store(int32(v))
}

func (c *Client) Decompression() decompress.Method {
	return decompress.Method(c.decompression.Load())
}

func (c *Client) SetDecompression(m decompress.Method) {
	c.decompression.Store(uint32(m & decompress.All))
}

// Proxy returns a copy of the current proxy, nil when connecting
// directly. An empty Host means the environment proxy.
func (c *Client) Proxy() *proxy.Proxy {
	p := c.proxy.Load()
	if p == nil {
		return nil
	}
	cpy := *p
	return &cpy
}

// SetProxy replaces the proxy used for new connections. nil connects
// directly. Existing keep-alive connections are closed.
func (c *Client) SetProxy(p *proxy.Proxy) error {
	if p == nil {
		c.proxy.Store(nil)
		c.hc.CloseIdleConnections()
		return nil
	}

	if err := p.Validate(); err != nil {
		return fmt.Errorf("validating proxy: %w", err)
	}

	cpy := *p
	c.proxy.Store(&cpy)
	c.hc.CloseIdleConnections()
	return nil
}

// ProxyAddress renders the current proxy in [proxy.Complete] format, ""
// for direct or environment.
func (c *Client) ProxyAddress() string {
	p := c.proxy.Load()
	if p == nil || p.IsEnvironment() {
		return ""
	}
	return p.String()
}

// SetProxyAddress parses s with [proxy.Parse] and applies it. A blank s
// selects the environment proxy.
func (c *Client) SetProxyAddress(s string) error {
	p, err := proxy.Parse(s)
	if err != nil {
		return err
	}
	return c.SetProxy(&p)
}

// TLSConfig returns a copy of the base TLS configuration.
func (c *Client) TLSConfig() *tls.Config {
	return c.tlsConfig.Clone()
}

// Closed reports whether Close was called.
func (c *Client) Closed() bool {
	return errors.Is(context.Cause(c.lifetime), ErrClosed)
}

