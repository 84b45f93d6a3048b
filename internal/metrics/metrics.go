// Package metrics exposes dispatcher activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/leapstack-labs/leapview/pkg/protocol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "leapview"

// Collector records request and reload metrics for every document served by
// a process.
type Collector struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	reloads  *prometheus.CounterVec
	sessions prometheus.Gauge
}

// New creates a collector with its own registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Query and page requests handled, by message type and outcome.",
			},
			[]string{"type", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Time spent answering query and page requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "view_reloads_total",
				Help:      "Backing view rebuilds, by outcome.",
			},
			[]string{"outcome"},
		),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "renderer_sessions",
			Help:      "Renderers currently subscribed to backend messages.",
		}),
	}
	c.registry.MustRegister(c.requests, c.duration, c.reloads, c.sessions)
	return c
}

// RequestHandled records one answered request.
func (c *Collector) RequestHandled(kind protocol.Kind, elapsed time.Duration, ok bool) {
	c.requests.WithLabelValues(string(kind), outcome(ok)).Inc()
	c.duration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// ViewReloaded records one view rebuild.
func (c *Collector) ViewReloaded(ok bool) {
	c.reloads.WithLabelValues(outcome(ok)).Inc()
}

// SessionOpened increments the subscribed renderer count.
func (c *Collector) SessionOpened() { c.sessions.Inc() }

// SessionClosed decrements the subscribed renderer count.
func (c *Collector) SessionClosed() { c.sessions.Dec() }

// Handler serves the collected metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
