// Package metrics records client responses in Prometheus. A [Collector]'s
// Observe method is a [client.ResponseHook]:
//
//	m, err := metrics.New(prometheus.DefaultRegisterer, "scraper")
//	c, err := client.Build(client.WithResponseHook(m.Observe))
package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/adamwoolhether/httpsession/client"
)

// Outcome labels.
const (
	OutcomeSuccess    = "success"
	OutcomeStatus     = "status"
	OutcomeTimeout    = "timeout"
	OutcomeCanceled   = "canceled"
	OutcomeTransport  = "transport"
	OutcomeFilesystem = "filesystem"
	OutcomeOther      = "other"
)

// Collector counts requests and observes their latency.
type Collector struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New registers the collector's metrics with reg under namespace.
func New(reg prometheus.Registerer, namespace string) (*Collector, error) {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http_client",
			Name:      "requests_total",
			Help:      "Requests sent, by method, status code and outcome.",
		}, []string{"method", "code", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http_client",
			Name:      "request_duration_seconds",
			Help:      "Wall-clock duration of requests, body included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "outcome"}),
	}

	if err := reg.Register(c.requests); err != nil {
		return nil, err
	}
	if err := reg.Register(c.duration); err != nil {
		reg.Unregister(c.requests)
		return nil, err
	}

	return c, nil
}

// Observe records resp.
func (c *Collector) Observe(_ *client.Client, resp *client.Response) {
	outcome := Outcome(resp)
	method := resp.RequestMethod
	if method == "" {
		method = "unknown"
	}

	c.requests.WithLabelValues(method, strconv.Itoa(resp.StatusCode), outcome).Inc()
	c.duration.WithLabelValues(method, outcome).Observe(resp.Elapsed.Seconds())
}

// Outcome classifies resp for labelling.
func Outcome(resp *client.Response) string {
	switch err := resp.Err; {
	case err == nil && resp.OK():
		return OutcomeSuccess
	case err == nil:
		return OutcomeStatus
	case errors.Is(err, client.ErrCanceled):
		return OutcomeCanceled
	case errors.Is(err, client.ErrTimeout):
		return OutcomeTimeout
	case errors.Is(err, client.ErrFilesystem):
		return OutcomeFilesystem
	case errors.Is(err, client.ErrTransport):
		return OutcomeTransport
	default:
		return OutcomeOther
	}
}
