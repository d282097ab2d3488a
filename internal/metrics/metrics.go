// Package metrics exposes Prometheus collectors for the job service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pendingJobs         prometheus.Gauge
	staleRunningJobs    prometheus.Gauge
	jobsSucceededTotal  prometheus.Counter
	jobsFailedTotal     prometheus.Counter
	claimConflictsTotal prometheus.Counter
	jobDurationSeconds  *prometheus.HistogramVec

	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pendingJobs = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pending_jobs",
				Help: "Number of jobs currently pending; the autoscaling signal.",
			},
		)

		staleRunningJobs = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "filesure_stale_running_jobs",
				Help: "Running jobs past the liveness threshold, eligible for re-claim.",
			},
		)

		jobsSucceededTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobs_succeeded_total",
				Help: "Total jobs observed reaching the succeeded state.",
			},
		)

		jobsFailedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobs_failed_total",
				Help: "Total jobs observed reaching the failed state.",
			},
		)

		claimConflictsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "filesure_claim_conflicts_total",
				Help: "Claim attempts lost to another worker; redundant dispatch.",
			},
		)

		jobDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "filesure_job_duration_seconds",
				Help:    "Wall time of one worker pipeline run, labeled by outcome.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 15, 30, 60, 120},
			},
			[]string{"outcome"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetPendingJobs updates the queue-depth gauge.
func SetPendingJobs(n int) {
	pendingJobs.Set(float64(n))
}

// SetStaleRunningJobs updates the stale-claim gauge.
func SetStaleRunningJobs(n int) {
	staleRunningJobs.Set(float64(n))
}

// AddSucceeded advances the succeeded counter by the observed delta.
func AddSucceeded(delta int) {
	if delta > 0 {
		jobsSucceededTotal.Add(float64(delta))
	}
}

// AddFailed advances the failed counter by the observed delta.
func AddFailed(delta int) {
	if delta > 0 {
		jobsFailedTotal.Add(float64(delta))
	}
}

// ObserveClaimConflict counts a claim lost to a concurrent worker.
func ObserveClaimConflict() {
	claimConflictsTotal.Inc()
}

// ObserveJob records one pipeline run with its outcome.
func ObserveJob(outcome string, duration time.Duration) {
	switch outcome {
	case "succeeded":
		jobsSucceededTotal.Inc()
	case "failed":
		jobsFailedTotal.Inc()
	}
	jobDurationSeconds.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
