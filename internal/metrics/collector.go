// Package metrics provides Prometheus instrumentation for the conversion
// engine and the HTTP API. This package is internal and should not be
// imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector owns every metric the daemon exports.
type Collector struct {
	// Job metrics
	jobsTotal   *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	jobsActive  prometheus.Gauge

	// Attempt metrics
	attemptsTotal   *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec

	// Material metrics
	warningsTotal        *prometheus.CounterVec
	profileSubstitutions prometheus.Counter

	// Probe metrics
	probeRefreshes prometheus.Counter
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter

	// Path lock metrics
	lockConflicts prometheus.Counter

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector registers every metric under the given namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Total conversion jobs by source format and final status",
		},
		[]string{"format", "status"},
	)

	c.jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "End-to-end conversion job duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"format"},
	)

	c.jobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_active",
			Help:      "Conversion jobs currently running",
		},
	)

	c.attemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Conversion attempts by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	c.attemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attempt_duration_seconds",
			Help:      "Single conversion attempt duration in seconds",
			Buckets:   []float64{0.05, 0.2, 1, 5, 15, 60, 300},
		},
		[]string{"method"},
	)

	c.warningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warnings_total",
			Help:      "Result warnings by kind",
		},
		[]string{"kind"},
	)

	c.profileSubstitutions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_substitutions_total",
			Help:      "Times a requested shader profile fell back to generic",
		},
	)

	c.probeRefreshes = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_refreshes_total",
			Help:      "Explicit availability snapshot refreshes",
		},
	)

	c.cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_cache_hits_total",
			Help:      "Availability snapshots served from the cache",
		},
	)

	c.cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_cache_misses_total",
			Help:      "Availability snapshot cache misses",
		},
	)

	c.lockConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_path_conflicts_total",
			Help:      "Jobs rejected because their target path was locked",
		},
	)

	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	return c
}

// RecordJob records one finished job.
func (c *Collector) RecordJob(format, status string, duration time.Duration) {
	c.jobsTotal.WithLabelValues(format, status).Inc()
	c.jobDuration.WithLabelValues(format).Observe(duration.Seconds())
}

// JobStarted / JobFinished track the active-job gauge.
func (c *Collector) JobStarted()  { c.jobsActive.Inc() }
func (c *Collector) JobFinished() { c.jobsActive.Dec() }

// RecordAttempt records one conversion attempt. outcome is "succeeded" or
// the attempt's error kind.
func (c *Collector) RecordAttempt(method, outcome string, duration time.Duration) {
	c.attemptsTotal.WithLabelValues(method, outcome).Inc()
	c.attemptDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordWarning counts one result warning.
func (c *Collector) RecordWarning(kind string) {
	c.warningsTotal.WithLabelValues(kind).Inc()
}

// RecordProfileSubstitution counts a generic-profile fallback.
func (c *Collector) RecordProfileSubstitution() { c.profileSubstitutions.Inc() }

// RecordProbeRefresh counts an explicit snapshot refresh.
func (c *Collector) RecordProbeRefresh() { c.probeRefreshes.Inc() }

// RecordCacheHit / RecordCacheMiss track the snapshot cache.
func (c *Collector) RecordCacheHit()  { c.cacheHits.Inc() }
func (c *Collector) RecordCacheMiss() { c.cacheMisses.Inc() }

// RecordLockConflict counts an OutputPathLocked rejection.
func (c *Collector) RecordLockConflict() { c.lockConflicts.Inc() }

// RecordHTTPRequest records one served HTTP request.
func (c *Collector) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
