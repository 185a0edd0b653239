package server

import (
	"log/slog"
	"time"
)

// Option configures a Server.
type Option func(*options)

type options struct {
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger
	tlsCertFile     string
	tlsKeyFile      string
}

// WithWriteTimeout bounds writing a response. Default is none, so slow
// endpoints such as /delay can finish.
func WithWriteTimeout(d time.Duration) Option {
	return func(opts *options) {
		opts.writeTimeout = d
	}
}

// WithShutdownTimeout sets how long in-flight requests may drain after
// the context is cancelled. Default is 20s.
func WithShutdownTimeout(d time.Duration) Option {
	return func(opts *options) {
		opts.shutdownTimeout = d
	}
}

// WithLogger sets the logger for lifecycle events and server errors.
// Default is slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(opts *options) {
		opts.logger = log
	}
}

// WithTLS serves TLS with the given certificate and key files. HTTP/2
// is negotiated automatically.
func WithTLS(certFile, keyFile string) Option {
	return func(opts *options) {
		opts.tlsCertFile = certFile
		opts.tlsKeyFile = keyFile
	}
}
