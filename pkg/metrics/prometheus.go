// Package metrics provides Prometheus metrics for backtest runs.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
var (
	defaultLatencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}
	defaultLambdaBuckets  = []float64{0, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
)

// Fold statuses used as label values.
const (
	FoldCompleted = "completed"
	FoldSkipped   = "skipped"
)

// Manager manages all Prometheus metrics for a backtest process.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	lambdaBuckets    []float64
	enabled          bool
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Fold pipeline
	folds           *prometheus.CounterVec
	foldSkips       *prometheus.CounterVec
	foldDuration    prometheus.Histogram
	degenerateFolds prometheus.Counter
	repairedRows    prometheus.Counter
	lambda          prometheus.Histogram

	// Model fitting
	fitDuration *prometheus.HistogramVec
	fitFailures *prometheus.CounterVec

	// Entities and workers
	entities      *prometheus.CounterVec
	workersActive prometheus.Gauge

	// Task queue
	queueSize     prometheus.Gauge
	queueEnqueued prometheus.Counter
	queueDequeued prometheus.Counter

	// Run level
	runDuration      prometheus.Gauge
	intervalCoverage prometheus.Gauge
	rowsWritten      *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "qrf",
		subsystem:        "backtest",
		histogramBuckets: defaultLatencyBuckets,
		lambdaBuckets:    defaultLambdaBuckets,
		enabled:          true,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(base string) string {
	if m.metricPrefix == "" {
		return base
	}
	return m.metricPrefix + "_" + base
}

func (m *Manager) counter(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gauge(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.folds = auto.NewCounterVec(m.counter("folds_total", "Folds processed by final status"), []string{"status"})
	m.foldSkips = auto.NewCounterVec(m.counter("fold_skips_total", "Skipped folds by reason"), []string{"reason"})
	m.foldDuration = auto.NewHistogram(m.histogram("fold_duration_milliseconds", "Wall time of one fold (fit, calibrate, assemble, score)", m.histogramBuckets))
	m.degenerateFolds = auto.NewCounter(m.counter("degenerate_folds_total", "Folds where the coverage search hit its ceiling"))
	m.repairedRows = auto.NewCounter(m.counter("repaired_rows_total", "Test rows whose quantile vector had to be re-sorted"))
	m.lambda = auto.NewHistogram(m.histogram("lambda", "Final symmetric widening applied to the anchor bounds", m.lambdaBuckets))

	m.fitDuration = auto.NewHistogramVec(m.histogram("fit_duration_milliseconds", "Model fit latency by family", m.histogramBuckets), []string{"family"})
	m.fitFailures = auto.NewCounterVec(m.counter("fit_failures_total", "Model fit failures by family"), []string{"family"})

	m.entities = auto.NewCounterVec(m.counter("entities_total", "Entities processed by final status"), []string{"status"})
	m.workersActive = auto.NewGauge(m.gauge("workers_active", "Workers currently owning an entity"))

	m.queueSize = auto.NewGauge(m.gauge("queue_size", "Entity tasks waiting in the queue"))
	m.queueEnqueued = auto.NewCounter(m.counter("queue_enqueue_total", "Entity tasks enqueued"))
	m.queueDequeued = auto.NewCounter(m.counter("queue_dequeue_total", "Entity tasks dequeued"))

	m.runDuration = auto.NewGauge(m.gauge("run_duration_seconds", "Duration of the last completed run"))
	m.intervalCoverage = auto.NewGauge(m.gauge("interval_coverage_ratio", "Pooled empirical interval coverage of the last run"))
	m.rowsWritten = auto.NewCounterVec(m.counter("artifact_rows_written_total", "Rows written per artifact"), []string{"artifact"})
}

// RecordFold counts a fold with the given status.
func (m *Manager) RecordFold(status string) {
	if !m.enabled {
		return
	}
	m.folds.WithLabelValues(status).Inc()
}

// RecordFoldSkip counts a skipped fold by reason.
func (m *Manager) RecordFoldSkip(reason string) {
	if !m.enabled {
		return
	}
	m.folds.WithLabelValues(FoldSkipped).Inc()
	m.foldSkips.WithLabelValues(reason).Inc()
}

// ObserveFoldDuration records the wall time of one fold.
func (m *Manager) ObserveFoldDuration(ms float64) {
	if !m.enabled {
		return
	}
	m.foldDuration.Observe(ms)
}

// RecordCalibration records the final lambda and whether the search was degenerate.
func (m *Manager) RecordCalibration(lambda float64, degenerate bool) {
	if !m.enabled {
		return
	}
	m.lambda.Observe(lambda)
	if degenerate {
		m.degenerateFolds.Inc()
	}
}

// RecordRepairedRows adds n re-sorted rows.
func (m *Manager) RecordRepairedRows(n int) {
	if !m.enabled || n <= 0 {
		return
	}
	m.repairedRows.Add(float64(n))
}

// ObserveFit records one model fit.
func (m *Manager) ObserveFit(family string, ms float64, failed bool) {
	if !m.enabled {
		return
	}
	m.fitDuration.WithLabelValues(family).Observe(ms)
	if failed {
		m.fitFailures.WithLabelValues(family).Inc()
	}
}

// RecordEntity counts an entity with the given status.
func (m *Manager) RecordEntity(status string) {
	if !m.enabled {
		return
	}
	m.entities.WithLabelValues(status).Inc()
}

// AddActiveWorkers moves the active worker gauge by delta.
func (m *Manager) AddActiveWorkers(delta int) {
	if !m.enabled {
		return
	}
	m.workersActive.Add(float64(delta))
}

// UpdateQueueSize sets the queue depth.
func (m *Manager) UpdateQueueSize(size int) {
	if !m.enabled {
		return
	}
	m.queueSize.Set(float64(size))
}

// RecordQueueEnqueue increments the enqueue counter.
func (m *Manager) RecordQueueEnqueue() {
	if !m.enabled {
		return
	}
	m.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func (m *Manager) RecordQueueDequeue() {
	if !m.enabled {
		return
	}
	m.queueDequeued.Inc()
}

// RecordRun stores run-level results.
func (m *Manager) RecordRun(seconds, coverage float64) {
	if !m.enabled {
		return
	}
	m.runDuration.Set(seconds)
	m.intervalCoverage.Set(coverage)
}

// RecordRowsWritten adds n rows written to artifact.
func (m *Manager) RecordRowsWritten(artifact string, n int) {
	if !m.enabled {
		return
	}
	m.rowsWritten.WithLabelValues(artifact).Add(float64(n))
}

// Package-level helpers over the global manager.

// RecordFold counts a fold with the given status.
func RecordFold(status string) { globalManager.RecordFold(status) }

// RecordFoldSkip counts a skipped fold by reason.
func RecordFoldSkip(reason string) { globalManager.RecordFoldSkip(reason) }

// ObserveFoldDuration records the wall time of one fold.
func ObserveFoldDuration(ms float64) { globalManager.ObserveFoldDuration(ms) }

// RecordCalibration records the final lambda and degenerate flag of a fold.
func RecordCalibration(lambda float64, degenerate bool) {
	globalManager.RecordCalibration(lambda, degenerate)
}

// RecordRepairedRows adds n re-sorted rows.
func RecordRepairedRows(n int) { globalManager.RecordRepairedRows(n) }

// ObserveFit records one model fit.
func ObserveFit(family string, ms float64, failed bool) { globalManager.ObserveFit(family, ms, failed) }

// RecordEntity counts an entity with the given status.
func RecordEntity(status string) { globalManager.RecordEntity(status) }

// AddActiveWorkers moves the active worker gauge by delta.
func AddActiveWorkers(delta int) { globalManager.AddActiveWorkers(delta) }

// UpdateQueueSize sets the queue depth.
func UpdateQueueSize(size int) { globalManager.UpdateQueueSize(size) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.RecordQueueEnqueue() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.RecordQueueDequeue() }

// RecordRun stores run-level results.
func RecordRun(seconds, coverage float64) { globalManager.RecordRun(seconds, coverage) }

// RecordRowsWritten adds n rows written to artifact.
func RecordRowsWritten(artifact string, n int) { globalManager.RecordRowsWritten(artifact, n) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// WriteTextfile writes the current state of the custom registry in the
// Prometheus text exposition format, e.g. for the node_exporter textfile
// collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, customRegistry); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}
