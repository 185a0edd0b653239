package client

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/httpsession/client/decompress"
	"github.com/adamwoolhether/httpsession/client/header"
	"github.com/adamwoolhether/httpsession/client/proxy"
)

// Option is a functional option for building a [Config].
type Option func(*options) error

// options holds every recognized setting. A nil pointer or nil value
// means "inherit the default".
type options struct {
	headers       http.Header
	autoRedirect  *bool
	decompression *decompress.Method
	tlsVersions   []TLSVersion
	tlsConfig     *tls.Config
	certValidator CertificateValidator
	timeout       *time.Duration
	version       *Version
	swallowErrors *bool
	requestHooks  []RequestHook
	responseHooks []ResponseHook
	proxy         *proxy.Proxy
	direct        bool
	logger        *slog.Logger
	tracer        trace.Tracer
	rt            http.RoundTripper
}

func (o options) clone() options {
	cpy := o
	cpy.headers = o.headers.Clone()
	cpy.tlsVersions = slices.Clone(o.tlsVersions)
	cpy.requestHooks = slices.Clone(o.requestHooks)
	cpy.responseHooks = slices.Clone(o.responseHooks)
	if o.tlsConfig != nil {
		cpy.tlsConfig = o.tlsConfig.Clone()
	}
	return cpy
}

// Config is an immutable snapshot of client defaults. One Config can
// seed any number of clients, e.g. one per proxy or session.
type Config struct {
	opts options
}

// NewConfig applies optFns over an empty snapshot.
func NewConfig(optFns ...Option) (*Config, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	return &Config{opts: opts.clone()}, nil
}

// With returns a new snapshot with optFns applied on top of cfg.
// cfg itself is unchanged.
func (cfg *Config) With(optFns ...Option) (*Config, error) {
	var opts options
	if cfg != nil {
		opts = cfg.opts.clone()
	}

	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	return &Config{opts: opts}, nil
}

// Headers returns a copy of the configured default headers.
func (cfg *Config) Headers() http.Header {
	if cfg == nil || cfg.opts.headers == nil {
		return http.Header{}
	}
	return cfg.opts.headers.Clone()
}

// WithHeaders merges h into the default headers sent with every request.
// Names already configured are replaced.
func WithHeaders(h http.Header) Option {
	return func(o *options) error {
		if o.headers == nil {
			o.headers = http.Header{}
		}
		header.Merge(o.headers, h)
		return nil
	}
}

// WithHeader sets a single default header, replacing previous values.
func WithHeader(name string, values ...string) Option {
	return func(o *options) error {
		if name == "" {
			return errors.New("header name must not be empty")
		}
		if o.headers == nil {
			o.headers = http.Header{}
		}
		header.Set(o.headers, name, values...)
		return nil
	}
}

// WithUserAgent sets the default User-Agent header.
func WithUserAgent(ua string) Option {
	return WithHeader("User-Agent", ua)
}

// WithAutoRedirect controls whether redirects are followed. Default is true.
func WithAutoRedirect(follow bool) Option {
	return func(o *options) error {
		o.autoRedirect = &follow
		return nil
	}
}

// WithNoFollowRedirects is shorthand for WithAutoRedirect(false).
func WithNoFollowRedirects() Option {
	return WithAutoRedirect(false)
}

// WithDecompression selects the content codings that are requested and
// decoded. Default is [decompress.None].
func WithDecompression(m decompress.Method) Option {
	return func(o *options) error {
		if m&^decompress.All != 0 {
			return fmt.Errorf("unknown decompression bits %#x", uint8(m&^decompress.All))
		}
		o.decompression = &m
		return nil
	}
}

// WithTLSVersions restricts the TLS protocol versions that may be
// negotiated. The lowest and highest given versions bound the range.
func WithTLSVersions(versions ...TLSVersion) Option {
	return func(o *options) error {
		if len(versions) == 0 {
			return errors.New("at least one tls version is required")
		}
		for _, v := range versions {
			if !v.valid() {
				return fmt.Errorf("unknown tls version %#x", uint16(v))
			}
		}
		o.tlsVersions = slices.Clone(versions)
		return nil
	}
}

// WithTLSConfig sets the base TLS configuration, e.g. for RootCAs or
// client certificates. The config is cloned.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return errors.New("tls config must not be nil")
		}
		o.tlsConfig = cfg.Clone()
		return nil
	}
}

// WithCertificateValidator installs fn to decide whether a server
// certificate is accepted.
func WithCertificateValidator(fn CertificateValidator) Option {
	return func(o *options) error {
		if fn == nil {
			return errors.New("certificate validator must not be nil")
		}
		o.certValidator = fn
		return nil
	}
}

// WithTimeout bounds the whole request, body included. Zero disables
// the timeout. Default is 90s.
func WithTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		o.timeout = &d
		return nil
	}
}

// WithVersion sets the preferred HTTP version. Default is [Version20].
func WithVersion(v Version) Option {
	return func(o *options) error {
		if v < VersionUnset || v > Version20 {
			return fmt.Errorf("unknown http version %d", int(v))
		}
		o.version = &v
		return nil
	}
}

// WithSwallowErrors controls whether failed responses are returned
// without an error. Default is false: [Client.Request] returns an
// [*Error] for every failed response.
func WithSwallowErrors(swallow bool) Option {
	return func(o *options) error {
		o.swallowErrors = &swallow
		return nil
	}
}

// WithRequestHook appends observers called with every assembled request.
func WithRequestHook(fns ...RequestHook) Option {
	return func(o *options) error {
		for _, fn := range fns {
			if fn == nil {
				return errors.New("request hook must not be nil")
			}
		}
		o.requestHooks = append(o.requestHooks, fns...)
		return nil
	}
}

// WithResponseHook appends observers called with every completed response.
func WithResponseHook(fns ...ResponseHook) Option {
	return func(o *options) error {
		for _, fn := range fns {
			if fn == nil {
				return errors.New("response hook must not be nil")
			}
		}
		o.responseHooks = append(o.responseHooks, fns...)
		return nil
	}
}

// WithProxy sets the initial proxy. The zero [proxy.Proxy] selects the
// environment proxy, which is also the default.
func WithProxy(p proxy.Proxy) Option {
	return func(o *options) error {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("validating proxy: %w", err)
		}
		o.proxy = &p
		o.direct = false
		return nil
	}
}

// WithProxyAddress parses s with [proxy.Parse] and sets it as the
// initial proxy.
func WithProxyAddress(s string) Option {
	return func(o *options) error {
		p, err := proxy.Parse(s)
		if err != nil {
			return err
		}
		return WithProxy(p)(o)
	}
}

// WithoutProxy connects directly, ignoring the environment.
func WithoutProxy() Option {
	return func(o *options) error {
		o.proxy = nil
		o.direct = true
		return nil
	}
}

// WithLogger injects a custom [slog.Logger].
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithTracer sets the tracer used to create a span per request.
// Default is a no-op tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		if tracer == nil {
			return errors.New("tracer must not be nil")
		}
		o.tracer = tracer
		return nil
	}
}

// WithTransport replaces the base transport. Proxy, TLS and version
// settings are not applied to a custom transport; decompression is.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) error {
		if rt == nil {
			return errors.New("transport must not be nil")
		}
		o.rt = rt
		return nil
	}
}
