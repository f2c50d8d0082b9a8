// Package metrics exposes batch run metrics through a per-runner Prometheus
// registry, exportable in the node_exporter textfile format.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "playtest"

// Recorder collects run, turn and oracle metrics.
//
// Thread-safety: safe for concurrent use; Prometheus collectors are atomic.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal    *prometheus.CounterVec
	turnLatency  prometheus.Histogram
	oracleFlags  *prometheus.CounterVec
	runCoverage  prometheus.Histogram
	turnsTotal   prometheus.Counter
	persistFails prometheus.Counter
}

// NewRecorder creates a recorder bound to a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_total",
			Help:      "Finished runs by bot mode and status.",
		},
		[]string{"mode", "status"},
	)
	r.turnLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "turn_latency_seconds",
			Help:      "Wall-clock latency of content engine turn calls.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
	r.oracleFlags = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "oracle_flags_total",
			Help:      "Turns that raised each oracle category.",
		},
		[]string{"category"},
	)
	r.runCoverage = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "run_coverage",
			Help:      "Overall coverage at the end of each run.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		},
	)
	r.turnsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "turns_total",
			Help:      "Turns executed across all runs.",
		},
	)
	r.persistFails = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "persist_failures_total",
			Help:      "Best-effort store writes that failed.",
		},
	)

	r.registry.MustRegister(r.runsTotal, r.turnLatency, r.oracleFlags, r.runCoverage, r.turnsTotal, r.persistFails)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveTurn records one content engine call.
func (r *Recorder) ObserveTurn(seconds float64) {
	r.turnsTotal.Inc()
	r.turnLatency.Observe(seconds)
}

// ObserveOracle increments the counter for category.
func (r *Recorder) ObserveOracle(category string) {
	r.oracleFlags.WithLabelValues(category).Inc()
}

// ObserveRun records a finished run.
func (r *Recorder) ObserveRun(mode, status string, overallCoverage float64) {
	r.runsTotal.WithLabelValues(mode, status).Inc()
	r.runCoverage.Observe(overallCoverage)
}

// ObservePersistFailure counts a swallowed store error.
func (r *Recorder) ObservePersistFailure() {
	r.persistFails.Inc()
}

// WriteTextfile writes all metrics to path in the textfile collector format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
