// Package metrics provides custom Prometheus metrics for the processing
// pipeline.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics contains all Prometheus metrics related to record
// processing.
type PipelineMetrics struct {
	RecordsProcessed *prometheus.CounterVec
	RecordErrors     *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	FamilyFailures   *prometheus.CounterVec
	ActiveRecords    prometheus.Gauge

	registry *prometheus.Registry
}

// NewPipelineMetrics creates and registers the pipeline metrics.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.RecordsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guraforge_records_processed_total",
			Help: "Records fully processed, partitioned by outcome.",
		},
		[]string{"status"},
	)
	m.RecordErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guraforge_record_errors_total",
			Help: "Record processing errors partitioned by error category.",
		},
		[]string{"category"},
	)
	m.StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "guraforge_stage_duration_seconds",
			Help:    "Time spent in each processing stage.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"stage"},
	)
	m.FamilyFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guraforge_family_failures_total",
			Help: "Derived-entity family computations that failed, partitioned by family.",
		},
		[]string{"family"},
	)
	m.ActiveRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "guraforge_active_records",
			Help: "Records currently being processed.",
		},
	)
}

// RecordProcessed counts one finished record.
func (m *PipelineMetrics) RecordProcessed(status string) {
	m.RecordsProcessed.WithLabelValues(status).Inc()
}

// RecordError counts one failure by error category.
func (m *PipelineMetrics) RecordError(category string) {
	m.RecordErrors.WithLabelValues(category).Inc()
}

// ObserveStage records the duration of one pipeline stage.
func (m *PipelineMetrics) ObserveStage(stage string, seconds float64) {
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordFamilyFailure counts one failed derived-entity family.
func (m *PipelineMetrics) RecordFamilyFailure(family string) {
	m.FamilyFailures.WithLabelValues(family).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.RecordsProcessed.Describe(ch)
	m.RecordErrors.Describe(ch)
	m.StageDuration.Describe(ch)
	m.FamilyFailures.Describe(ch)
	ch <- m.ActiveRecords.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.RecordsProcessed.Collect(ch)
	m.RecordErrors.Collect(ch)
	m.StageDuration.Collect(ch)
	m.FamilyFailures.Collect(ch)
	ch <- m.ActiveRecords
}
