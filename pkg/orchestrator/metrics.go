package orchestrator

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes run-level counters. A nil *Metrics is valid and
// records nothing, so callers that do not serve metrics skip the setup.
type Metrics struct {
	runsTotal     *prometheus.CounterVec
	jobsProcessed prometheus.Counter
	jobsSkipped   *prometheus.CounterVec
	jobFailures   prometheus.Counter
	jobsCapped    prometheus.Counter
}

// NewMetrics creates the counter set.
func NewMetrics() *Metrics {
	return &Metrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "felix_runs_total",
				Help: "Total orchestrator runs by mode",
			},
			[]string{"mode"},
		),
		jobsProcessed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "felix_jobs_processed_total",
				Help: "Total maintenance jobs dispatched through the workflow",
			},
		),
		jobsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "felix_jobs_skipped_total",
				Help: "Total jobs skipped before dispatch by reason",
			},
			[]string{"reason"},
		),
		jobFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "felix_job_failures_total",
				Help: "Total jobs whose workflow ended in an error",
			},
		),
		jobsCapped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "felix_jobs_capped_total",
				Help: "Total jobs deferred by the daily schedule cap",
			},
		),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.runsTotal.Describe(ch)
	m.jobsProcessed.Describe(ch)
	m.jobsSkipped.Describe(ch)
	m.jobFailures.Describe(ch)
	m.jobsCapped.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.runsTotal.Collect(ch)
	m.jobsProcessed.Collect(ch)
	m.jobsSkipped.Collect(ch)
	m.jobFailures.Collect(ch)
	m.jobsCapped.Collect(ch)
}

func (m *Metrics) recordRun(mode string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(mode).Inc()
}

func (m *Metrics) recordProcessed() {
	if m == nil {
		return
	}
	m.jobsProcessed.Inc()
}

func (m *Metrics) recordSkipped(reason string) {
	if m == nil {
		return
	}
	m.jobsSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) recordFailure() {
	if m == nil {
		return
	}
	m.jobFailures.Inc()
}

func (m *Metrics) recordCapped(n int) {
	if m == nil {
		return
	}
	m.jobsCapped.Add(float64(n))
}
