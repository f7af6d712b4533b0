// Package observability provides Prometheus metrics for the trade engine.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
)

const namespace = "amm_trade_engine"

// Metrics holds all Prometheus metrics for the engine. It implements
// swapengine.Observer.
type Metrics struct {
	AttemptsTotal     *prometheus.CounterVec
	RetriesScheduled  *prometheus.CounterVec
	SessionsResolved  *prometheus.CounterVec
	SubmissionLatency prometheus.Histogram
	AttemptDuration   *prometheus.HistogramVec
	PricesUpdated     prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewMetrics registers every metric with reg. A nil reg uses a fresh
// registry so tests and multiple engines never collide.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		AttemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trade",
			Name:      "attempts_total",
			Help:      "Classified trade attempts by outcome and error kind",
		}, []string{"outcome", "error_kind"}),
		RetriesScheduled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trade",
			Name:      "retries_scheduled_total",
			Help:      "Resubmissions scheduled by mode",
		}, []string{"mode"}),
		SessionsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trade",
			Name:      "sessions_resolved_total",
			Help:      "Logical trades resolved by resolution",
		}, []string{"resolution"}),
		SubmissionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "submission_latency_seconds",
			Help:      "Time from attempt start to ledger result for submitted attempts",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 45},
		}),
		AttemptDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trade",
			Name:      "attempt_duration_seconds",
			Help:      "Attempt duration by outcome",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		PricesUpdated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricefeed",
			Name:      "prices_updated_total",
			Help:      "Display price snapshots refreshed",
		}),
		gatherer: reg,
	}
}

func (m *Metrics) AttemptFinished(a models.TradeAttempt) {
	kind := string(a.ErrorKind)
	if kind == "" {
		kind = "none"
	}
	m.AttemptsTotal.WithLabelValues(string(a.Outcome), kind).Inc()

	seconds := a.Duration().Seconds()
	m.AttemptDuration.WithLabelValues(string(a.Outcome)).Observe(seconds)
	if a.Submitted {
		m.SubmissionLatency.Observe(seconds)
	}
}

func (m *Metrics) RetryScheduled(mode string) {
	m.RetriesScheduled.WithLabelValues(mode).Inc()
}

func (m *Metrics) SessionResolved(resolution string) {
	m.SessionsResolved.WithLabelValues(resolution).Inc()
}

// RecordPricesUpdated adds n refreshed snapshots.
func (m *Metrics) RecordPricesUpdated(n int) {
	m.PricesUpdated.Add(float64(n))
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
