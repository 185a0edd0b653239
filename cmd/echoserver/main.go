// Command echoserver serves the echo handler used to exercise the
// client against a real listener.
//
// Configuration is read from ECHO_* environment variables:
//
//	ECHO_ADDR       listen address, default ":8080"
//	ECHO_TLS_CERT   certificate file; with ECHO_TLS_KEY enables HTTPS
//	ECHO_TLS_KEY    private key file
//	ECHO_LOG_LEVEL  debug, info, warn or error, default info
//	ECHO_SHUTDOWN   graceful shutdown timeout, default 20s
//
// Prometheus metrics are served on /metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adamwoolhether/httpsession/internal/echo"
	"github.com/adamwoolhether/httpsession/internal/server"
)

type config struct {
	Addr     string        `envconfig:"ADDR" default:":8080"`
	TLSCert  string        `envconfig:"TLS_CERT"`
	TLSKey   string        `envconfig:"TLS_KEY"`
	LogLevel slog.Level    `envconfig:"LOG_LEVEL" default:"info"`
	Shutdown time.Duration `envconfig:"SHUTDOWN" default:"20s"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "echoserver:", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg config
	if err := envconfig.Process("ECHO", &cfg); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return errors.New("ECHO_TLS_CERT and ECHO_TLS_KEY must be set together")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "echoserver_requests_total",
		Help: "Requests served by the echo handler.",
	}, []string{"code", "method"})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		requests,
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", promhttp.InstrumentHandlerCounter(requests, echo.New(logger)))

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithShutdownTimeout(cfg.Shutdown),
	}
	if cfg.TLSCert != "" {
		opts = append(opts, server.WithTLS(cfg.TLSCert, cfg.TLSKey))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(cfg.Addr, mux, opts...).Run(ctx)
}
