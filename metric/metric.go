// Package metric provides Prometheus metrics for the gateway: request
// outcomes, backend call results, circuit-breaker states, and response cache
// activity.
package metric

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/whiteheaddmark/Observatory-Databases/pkg/breaker"
	"github.com/whiteheaddmark/Observatory-Databases/pkg/cache"
)

const namespace = "obsgateway"

// Metrics contains all gateway-level metrics (not resource-specific)
type Metrics struct {
	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Backend metrics
	BackendCalls      *prometheus.CounterVec
	BackendDuration   *prometheus.HistogramVec
	RetriesExhausted  *prometheus.CounterVec
	BreakerState      *prometheus.GaugeVec
	AggregateFailures *prometheus.CounterVec

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a Metrics instance with its own Prometheus registry,
// including Go runtime and process collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "requests",
				Name:      "total",
				Help:      "Total number of gateway requests",
			},
			[]string{"resource", "operation", "status"},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "requests",
				Name:      "duration_seconds",
				Help:      "Gateway request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"resource", "operation"},
		),

		BackendCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "backend",
				Name:      "calls_total",
				Help:      "Total number of backend adapter calls by outcome",
			},
			[]string{"adapter", "outcome"},
		),

		BackendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "backend",
				Name:      "call_duration_seconds",
				Help:      "Backend adapter call duration in seconds, retries included",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"adapter"},
		),

		RetriesExhausted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "backend",
				Name:      "retries_exhausted_total",
				Help:      "Backend calls that failed after exhausting the retry budget",
			},
			[]string{"adapter"},
		),

		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "breaker",
				Name:      "state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"adapter"},
		),

		AggregateFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "aggregate",
				Name:      "failures_total",
				Help:      "Aggregation failures by kind",
			},
			[]string{"resource", "kind"},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Response cache hits",
			},
			[]string{"resource"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Response cache misses",
			},
			[]string{"resource"},
		),

		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.BackendCalls,
		m.BackendDuration,
		m.RetriesExhausted,
		m.BreakerState,
		m.AggregateFailures,
		m.CacheHits,
		m.CacheMisses,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler serving the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// RecordRequest records one finished gateway request
func (m *Metrics) RecordRequest(resource, operation string, status int, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(resource, operation, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(resource, operation).Observe(duration.Seconds())
}

// RecordBackendCall records one backend adapter call outcome. Implements the
// reliability observer contract.
func (m *Metrics) RecordBackendCall(adapterID, outcome string, duration time.Duration) {
	m.BackendCalls.WithLabelValues(adapterID, outcome).Inc()
	m.BackendDuration.WithLabelValues(adapterID).Observe(duration.Seconds())
}

// RecordRetryExhausted records a backend call that failed after all attempts
func (m *Metrics) RecordRetryExhausted(adapterID string) {
	m.RetriesExhausted.WithLabelValues(adapterID).Inc()
}

// RecordBreakerState publishes a breaker's current state
func (m *Metrics) RecordBreakerState(adapterID string, state breaker.State) {
	var v float64
	switch state {
	case breaker.StateClosed:
		v = 0
	case breaker.StateHalfOpen:
		v = 1
	case breaker.StateOpen:
		v = 2
	}
	m.BreakerState.WithLabelValues(adapterID).Set(v)
}

// RecordAggregateFailure records an aggregation failure by error kind
func (m *Metrics) RecordAggregateFailure(resource, kind string) {
	m.AggregateFailures.WithLabelValues(resource, kind).Inc()
}

// ObserveResponseCache registers collectors that read the response cache's
// statistics tracker at scrape time
func (m *Metrics) ObserveResponseCache(stats *cache.Statistics) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Current number of response cache entries",
		}, func() float64 { return float64(stats.CurrentSize()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hit_rate",
			Help:      "Fraction of lookups served from the response cache",
		}, stats.HitRate),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Response cache entries evicted by TTL expiry",
		}, func() float64 { return float64(stats.Evictions()) }),
	)
}

// RecordCacheHit records a response cache hit
func (m *Metrics) RecordCacheHit(resource string) {
	m.CacheHits.WithLabelValues(resource).Inc()
}

// RecordCacheMiss records a response cache miss
func (m *Metrics) RecordCacheMiss(resource string) {
	m.CacheMisses.WithLabelValues(resource).Inc()
}
