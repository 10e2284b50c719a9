// Package metrics defines the Prometheus collectors exported on /metrics.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "credbook"

// Metrics bundles every collector the service records.
type Metrics struct {
	registry *prometheus.Registry

	validations    *prometheus.CounterVec
	resorts        prometheus.Counter
	refreshes      *prometheus.CounterVec
	quotes         prometheus.Gauge
	bestRate       prometheus.Gauge
	transactions   *prometheus.CounterVec
	txDuration     *prometheus.HistogramVec
	relayUpdates   *prometheus.CounterVec
	oracleAge      prometheus.Gauge
	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
	archivedRecord *prometheus.CounterVec
}

// New creates the collectors and registers them, plus the Go runtime and
// process collectors, on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "borrow",
			Name:      "validations_total",
			Help:      "Borrow requests validated against an orderbook snapshot, by outcome.",
		}, []string{"outcome"}),
		resorts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orderbook",
			Name:      "unsorted_snapshots_total",
			Help:      "Snapshots that arrived out of ascending rate order and were re-sorted.",
		}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orderbook",
			Name:      "refreshes_total",
			Help:      "Dashboard refreshes by outcome (applied, superseded, closed, error).",
		}, []string{"outcome"}),
		quotes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "orderbook",
			Name:      "quotes",
			Help:      "Number of quotes in the latest snapshot.",
		}),
		bestRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "orderbook",
			Name:      "best_rate_wad",
			Help:      "Lowest per-second WAD rate in the latest snapshot.",
		}),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "transactions_total",
			Help:      "Submitted transactions by kind and outcome.",
		}, []string{"kind", "outcome"}),
		txDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "transaction_duration_seconds",
			Help:      "Time from submission to confirmation.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		}, []string{"kind"}),
		relayUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "checks_total",
			Help:      "Oracle freshness checks by outcome (fresh, updated, skipped, error).",
		}, []string{"outcome"}),
		oracleAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "oracle_age_seconds",
			Help:      "Age of the on-chain oracle price at the last check.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP handler latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		archivedRecord: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "records_total",
			Help:      "History rows exported to object storage, by kind.",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.validations,
		m.resorts,
		m.refreshes,
		m.quotes,
		m.bestRate,
		m.transactions,
		m.txDuration,
		m.relayUpdates,
		m.oracleAge,
		m.httpRequests,
		m.httpLatency,
		m.archivedRecord,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Validation(outcome string, resorted bool) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(outcome).Inc()
	if resorted {
		m.resorts.Inc()
	}
}

func (m *Metrics) Refresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

// Snapshot records the size and best rate of an applied snapshot.
func (m *Metrics) Snapshot(quotes int, bestRate float64) {
	if m == nil {
		return
	}
	m.quotes.Set(float64(quotes))
	m.bestRate.Set(bestRate)
}

func (m *Metrics) Transaction(kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(kind, outcome).Inc()
	if outcome == "confirmed" {
		m.txDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) RelayCheck(outcome string, age time.Duration) {
	if m == nil {
		return
	}
	m.relayUpdates.WithLabelValues(outcome).Inc()
	if age > 0 {
		m.oracleAge.Set(age.Seconds())
	}
}

func (m *Metrics) HTTPRequest(route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(route, statusLabel(status)).Inc()
	m.httpLatency.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) Archived(kind string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.archivedRecord.WithLabelValues(kind).Add(float64(n))
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
