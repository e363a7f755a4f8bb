package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "parking_norm"

// Run outcomes recorded on RunsTotal.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Metrics holds the Prometheus collectors for normalization runs.
type Metrics struct {
	// labels: mode, outcome={success,failure,skipped}
	RunsTotal     *prometheus.CounterVec
	RunDuration   *prometheus.HistogramVec
	RunInProgress prometheus.Gauge
	LastSuccess   *prometheus.GaugeVec

	RecordsInserted  prometheus.Counter
	RecordsExisting  prometheus.Counter
	InsufficientData prometheus.Counter
	PublishErrors    prometheus.Counter

	// Existence cache lookups in front of the normalized store; labels: result={hit,miss}.
	Cache *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.RunInProgress,
		m.LastSuccess,
		m.RecordsInserted,
		m.RecordsExisting,
		m.InsufficientData,
		m.PublishErrors,
		m.Cache,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as
// many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Normalization runs by mode and outcome.",
		}, []string{"mode", "outcome"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a normalization run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		}, []string{"mode"}),
		RunInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_in_progress",
			Help:      "1 while a normalization run is executing.",
		}),
		LastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run per mode.",
		}, []string{"mode"}),
		RecordsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_inserted_total",
			Help:      "Normalized records written.",
		}),
		RecordsExisting: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_existing_total",
			Help:      "Garage-hours skipped because a record already existed.",
		}),
		InsufficientData: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insufficient_data_total",
			Help:      "Garage-hours skipped for having too few samples.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed normalized-record event publications.",
		}),
		Cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_total",
			Help:      "Existence cache lookups by result.",
		}, []string{"result"}),
	}
}
