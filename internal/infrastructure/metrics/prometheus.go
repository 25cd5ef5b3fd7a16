// Package metrics exposes Prometheus collectors for report computation,
// the report cache and scheduled jobs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alem-hub/strategic-analytics/internal/domain/analytics"
)

const namespace = "strategic_analytics"

// Recorder owns every collector. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	reportRuns     *prometheus.CounterVec
	reportDuration prometheus.Histogram
	cacheLookups   *prometheus.CounterVec
	alerts         *prometheus.CounterVec
	predictions    prometheus.Counter
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
}

// NewRecorder registers collectors on a fresh registry that also carries
// the Go runtime and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		reportRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_runs_total",
			Help:      "Strategic report computations by outcome.",
		}, []string{"outcome"}),
		reportDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_duration_seconds",
			Help:      "Time to load a snapshot and build its report.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_cache_lookups_total",
			Help:      "Report cache lookups by result.",
		}, []string{"result"}),
		alerts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_generated_total",
			Help:      "Alerts produced by freshly computed reports.",
		}, []string{"type", "severity"}),
		predictions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_predictions_total",
			Help:      "Students flagged for intervention by freshly computed reports.",
		}),
		jobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job executions by job and outcome.",
		}, []string{"job", "outcome"}),
		jobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Scheduled job duration.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"job"}),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveReport records one report request. cached is ignored on error.
func (r *Recorder) ObserveReport(d time.Duration, cached bool, err error) {
	if r == nil {
		return
	}
	o := outcome(err)
	if err == nil && cached {
		o = "cached"
	}
	r.reportRuns.WithLabelValues(o).Inc()
	r.reportDuration.Observe(d.Seconds())
}

// Cache lookup results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// ObserveCache records one cache lookup.
func (r *Recorder) ObserveCache(result string) {
	if r == nil {
		return
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveFreshReport counts the alerts and predictions of a newly built report.
func (r *Recorder) ObserveFreshReport(report *analytics.Report) {
	if r == nil || report == nil {
		return
	}
	for _, a := range report.Alerts {
		r.alerts.WithLabelValues(string(a.Type), string(a.Severity)).Inc()
	}
	r.predictions.Add(float64(len(report.Predictions)))
}

// ObserveJob records one scheduled job execution.
func (r *Recorder) ObserveJob(job string, d time.Duration, err error) {
	if r == nil {
		return
	}
	r.jobRuns.WithLabelValues(job, outcome(err)).Inc()
	r.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
