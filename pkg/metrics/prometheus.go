package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	predictions  *prometheus.CounterVec
	cacheEvents  *prometheus.CounterVec
	degraded     *prometheus.CounterVec
	reconciles   *prometheus.CounterVec
	ingested     *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		predictions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinscope_predictions_total",
				Help: "Total number of prediction computations by model version",
			},
			[]string{"symbol", "model"},
		),
		cacheEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinscope_prediction_cache_events_total",
				Help: "Prediction cache events (hit, miss, stale, shared, bypass)",
			},
			[]string{"event"},
		),
		degraded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinscope_degraded_signals_total",
				Help: "Prediction components served in degraded mode",
			},
			[]string{"kind"},
		),
		reconciles: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinscope_accuracy_reconcile_total",
				Help: "Accuracy ledger reconciliation outcomes",
			},
			[]string{"outcome"},
		),
		ingested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinscope_ticks_ingested_total",
				Help: "Total number of ticks sent to a backend",
			},
			[]string{"backend", "symbol"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinscope_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coinscope_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coinscope_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordPrediction records one computed prediction result.
func (r *Recorder) RecordPrediction(symbol, model string) {
	r.predictions.WithLabelValues(symbol, model).Inc()
}

// RecordCache records a prediction cache event.
func (r *Recorder) RecordCache(event string) {
	r.cacheEvents.WithLabelValues(event).Inc()
}

// RecordDegraded records a degraded prediction component.
func (r *Recorder) RecordDegraded(kind string) {
	r.degraded.WithLabelValues(kind).Inc()
}

// RecordReconcile records one ledger reconciliation outcome.
func (r *Recorder) RecordReconcile(outcome string) {
	r.reconciles.WithLabelValues(outcome).Inc()
}

// RecordIngested records a tick sent to a backend.
func (r *Recorder) RecordIngested(backend, symbol string) {
	r.ingested.WithLabelValues(backend, symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
