package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetchTotal  *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	superseded  *prometheus.CounterVec
	lastValue   *prometheus.GaugeVec
	seriesLen   *prometheus.GaugeVec
	latency     *prometheus.HistogramVec
}

// New creates a Prometheus recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		fetchTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brentview_fetch_total",
				Help: "Analytics API fetches by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brentview_errors_total",
				Help: "Errors encountered by kind",
			},
			[]string{"kind"},
		),
		superseded: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brentview_superseded_total",
				Help: "Requests discarded because a newer request of the same kind was issued",
			},
			[]string{"slot"},
		),
		lastValue: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "brentview_last_value",
				Help: "Last value of each series held by the view",
			},
			[]string{"series"},
		),
		seriesLen: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "brentview_series_points",
				Help: "Number of points held per series",
			},
			[]string{"series"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "brentview_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordFetch records one analytics API call.
func (r *Recorder) RecordFetch(endpoint, outcome string) {
	r.fetchTotal.WithLabelValues(endpoint, outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordSuperseded records a stale completion that was dropped.
func (r *Recorder) RecordSuperseded(slot string) {
	r.superseded.WithLabelValues(slot).Inc()
}

// RecordSeries records the size and the last value of a series.
func (r *Recorder) RecordSeries(series string, points int, last float64) {
	r.seriesLen.WithLabelValues(series).Set(float64(points))
	if points > 0 {
		r.lastValue.WithLabelValues(series).Set(last)
	}
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
