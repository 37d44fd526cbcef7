package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestCount counts HTTP requests
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hook_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration measures HTTP request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "hook_http_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "endpoint"},
	)

	// JobCount counts processed jobs by outcome
	JobCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hook_jobs_total",
			Help: "Total number of processed submission jobs",
		},
		[]string{"status"},
	)

	// JobDuration measures wall time per job
	JobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hook_job_duration_seconds",
			Help:    "Submission job duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hook_queue_depth",
			Help: "Jobs waiting in the submission queue",
		},
	)

	SecondsPerFile = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hook_seconds_per_file",
			Help: "Most recent per-file processing time used for ETAs",
		},
	)

	// MatchesFound counts reported matches per language family
	MatchesFound = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hook_matches_total",
			Help: "Total number of matches reported",
		},
		[]string{"language"},
	)

	// FileFailures counts skipped or partial files per pipeline stage
	FileFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hook_file_failures_total",
			Help: "Files skipped or only partly processed",
		},
		[]string{"stage"},
	)
)

// InitPrometheus registers all collectors with the default registry
func InitPrometheus() {
	prometheus.MustRegister(
		RequestCount,
		RequestDuration,
		JobCount,
		JobDuration,
		QueueDepth,
		SecondsPerFile,
		MatchesFound,
		FileFailures,
	)
}

// MetricsHandler returns Prometheus metrics handler
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// GinMiddleware records request count and latency per route
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		RequestCount.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}
