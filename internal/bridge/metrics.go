package bridge

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this package.
	MetricsSubsystem = "bridge"
)

// Metrics contains metrics exposed by this package.
type Metrics struct {
	UnitsProcessed   metrics.Counter
	UnitsExhausted   metrics.Counter
	PairsDelivered   metrics.Counter
	PairsRejected    metrics.Counter
	CheckpointHeight metrics.Gauge
	FetchDuration    metrics.Histogram
	DispatchDuration metrics.Histogram
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
// Optionally, labels can be provided along with their values ("foo",
// "fooValue").
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}
	return &Metrics{
		UnitsProcessed: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "units_processed",
			Help:      "The number of work units fetched, encoded and dispatched.",
		}, labels).With(labelsAndValues...),
		UnitsExhausted: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "units_exhausted",
			Help:      "The number of work units abandoned after the retry budget was spent.",
		}, labels).With(labelsAndValues...),
		PairsDelivered: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "pairs_delivered",
			Help:      "The number of content pairs accepted by the overlay.",
		}, labels).With(labelsAndValues...),
		PairsRejected: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "pairs_rejected",
			Help:      "The number of content pairs refused by the overlay as invalid.",
		}, labels).With(labelsAndValues...),
		CheckpointHeight: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "checkpoint_height",
			Help:      "The identifier of the last durably committed work unit.",
		}, labels).With(labelsAndValues...),
		FetchDuration: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "fetch_duration",
			Help:      "Time spent fetching one work unit from its provider, in seconds.",
			Buckets:   stdprometheus.ExponentialBuckets(0.01, 3, 10),
		}, labels).With(labelsAndValues...),
		DispatchDuration: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "dispatch_duration",
			Help:      "Time spent delivering one work unit's content pairs, in seconds.",
			Buckets:   stdprometheus.ExponentialBuckets(0.01, 3, 10),
		}, labels).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		UnitsProcessed:   discard.NewCounter(),
		UnitsExhausted:   discard.NewCounter(),
		PairsDelivered:   discard.NewCounter(),
		PairsRejected:    discard.NewCounter(),
		CheckpointHeight: discard.NewGauge(),
		FetchDuration:    discard.NewHistogram(),
		DispatchDuration: discard.NewHistogram(),
	}
}
