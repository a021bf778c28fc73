package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetches     *prometheus.CounterVec
	submissions *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	lastPrice   *prometheus.GaugeVec
	signals     *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New registers the workflow collectors with reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		fetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecastdesk_fetches_total",
				Help: "Upstream fetches by source and result",
			},
			[]string{"source", "result"},
		),
		submissions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecastdesk_submissions_total",
				Help: "Forecast submissions by model and result",
			},
			[]string{"model", "result"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecastdesk_errors_total",
				Help: "Workflow errors by kind",
			},
			[]string{"kind"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "forecastdesk_last_price",
				Help: "Last price seen in a fetched history",
			},
			[]string{"symbol"},
		),
		signals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecastdesk_signals_total",
				Help: "Recommendations produced on activation",
			},
			[]string{"symbol", "signal"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forecastdesk_operation_duration_seconds",
				Help:    "Duration of upstream operations in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordFetch(source, result string) {
	r.fetches.WithLabelValues(source, result).Inc()
}

func (r *Recorder) RecordSubmission(model, result string) {
	r.submissions.WithLabelValues(model, result).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

func (r *Recorder) RecordSignal(symbol, signal string) {
	r.signals.WithLabelValues(symbol, signal).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
