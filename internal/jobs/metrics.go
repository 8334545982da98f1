// Package jobs provides metrics for background pipeline work.
package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricPipelineJobsTotal      = "pipeline_jobs_total"
	MetricPipelineJobsDuration   = "pipeline_jobs_duration_seconds"
	MetricPipelineJobErrorsTotal = "pipeline_job_errors_total"
	MetricGeocodeRowsTotal       = "geocode_rows_total"
)

// Job type constants for labeling.
const (
	JobTypeCSVImport    = "csv_import"
	JobTypeGeocodeBatch = "geocode_batch"
	JobTypeCSVArchive   = "csv_archive"
)

// Status constants for job completion.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Row outcome constants for geocode row accounting.
const (
	RowOutcomeCacheHit   = "cache_hit"
	RowOutcomeResolved   = "resolved"
	RowOutcomeNoResult   = "no_result"
	RowOutcomeLookupFail = "lookup_failed"
)

// Metrics contains Prometheus metrics for pipeline jobs.
// All operations are thread-safe.
type Metrics struct {
	jobsTotal    *prometheus.CounterVec
	jobsDuration *prometheus.HistogramVec
	jobErrors    *prometheus.CounterVec
	geocodeRows  *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricPipelineJobsTotal,
				Help: "Total number of pipeline job executions by type and status",
			},
			[]string{"job_type", "status"},
		),
		jobsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricPipelineJobsDuration,
				Help:    "Histogram of pipeline job duration in seconds by job type",
				Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0, 120.0},
			},
			[]string{"job_type"},
		),
		jobErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricPipelineJobErrorsTotal,
				Help: "Total number of pipeline job errors by type and error type",
			},
			[]string{"job_type", "error_type"},
		),
		geocodeRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricGeocodeRowsTotal,
				Help: "Total number of geocode batch rows by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncJobsTotal increments the jobs total counter.
func (m *Metrics) IncJobsTotal(jobType, status string) {
	m.jobsTotal.WithLabelValues(jobType, status).Inc()
}

// ObserveJobDuration records a job duration sample in seconds.
func (m *Metrics) ObserveJobDuration(jobType string, seconds float64) {
	m.jobsDuration.WithLabelValues(jobType).Observe(seconds)
}

// IncJobErrors increments the job errors counter.
func (m *Metrics) IncJobErrors(jobType, errorType string) {
	m.jobErrors.WithLabelValues(jobType, errorType).Inc()
}

// IncGeocodeRows increments the geocode row counter for an outcome.
func (m *Metrics) IncGeocodeRows(outcome string) {
	m.geocodeRows.WithLabelValues(outcome).Inc()
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.jobsTotal,
		m.jobsDuration,
		m.jobErrors,
		m.geocodeRows,
	}
}
