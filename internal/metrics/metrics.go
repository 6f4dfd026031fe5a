// Package metrics exposes Prometheus instrumentation for snapshot batches and
// the HTTP surface.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Batch outcomes used as the "outcome" label.
const (
	OutcomeOK           = "ok"
	OutcomeStoreError   = "store_error"
	OutcomeSigningError = "signing_error"
	OutcomeCancelled    = "cancelled"
)

// Recorder captures loader and server metrics.
type Recorder interface {
	ObserveBatch(keys int, outcome string, elapsed time.Duration)
	AddSignedURLs(n int)
	ObserveRequest(route, status string, elapsed time.Duration)
}

// Noop implements Recorder without emitting anything.
type Noop struct{}

func (Noop) ObserveBatch(int, string, time.Duration)      {}
func (Noop) AddSignedURLs(int)                            {}
func (Noop) ObserveRequest(string, string, time.Duration) {}

// Prom implements Recorder backed by Prometheus collectors.
type Prom struct {
	batches       *prometheus.CounterVec
	batchKeys     prometheus.Histogram
	batchDuration *prometheus.HistogramVec
	signedURLs    prometheus.Counter
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// NewProm creates the collectors and registers them with reg.
func NewProm(namespace string, reg prometheus.Registerer) *Prom {
	p := &Prom{
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Snapshot batches by outcome",
		}, []string{"outcome"}),
		batchKeys: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_keys",
			Help:      "Distinct data collection ids per batch",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		batchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Time spent fetching and signing one batch",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		signedURLs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signed_urls_total",
			Help:      "Snapshot URLs signed",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route/status",
		}, []string{"route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(p.batches, p.batchKeys, p.batchDuration, p.signedURLs, p.requests, p.latency)
	return p
}

func (p *Prom) ObserveBatch(keys int, outcome string, elapsed time.Duration) {
	p.batches.WithLabelValues(outcome).Inc()
	p.batchKeys.Observe(float64(keys))
	p.batchDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (p *Prom) AddSignedURLs(n int) {
	p.signedURLs.Add(float64(n))
}

func (p *Prom) ObserveRequest(route, status string, elapsed time.Duration) {
	p.requests.WithLabelValues(route, status).Inc()
	p.latency.WithLabelValues(route).Observe(elapsed.Seconds())
}

// Handler returns an HTTP handler for /metrics serving g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
