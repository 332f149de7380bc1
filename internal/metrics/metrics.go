package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelhouse_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reelhouse_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reelhouse_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Job metrics
var (
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelhouse_jobs_total",
			Help: "Total number of finished jobs",
		},
		[]string{"kind", "status"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reelhouse_job_duration_seconds",
			Help:    "Job run time in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600, 7200, 14400, 21600},
		},
		[]string{"kind"},
	)

	JobsInProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reelhouse_jobs_in_progress",
			Help: "Number of jobs currently running",
		},
		[]string{"lane"},
	)

	StaleJobsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reelhouse_stale_jobs_failed_total",
			Help: "Total number of running jobs failed after their heartbeat expired",
		},
	)

	QueueJobs = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reelhouse_queue_jobs",
			Help: "Number of jobs in the queue by lane and status",
		},
		[]string{"lane", "status"},
	)
)

// Transcode metrics
var (
	TranscodeDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelhouse_transcode_decisions_total",
			Help: "Total number of transcode plans by strategy",
		},
		[]string{"strategy"},
	)
)

// Callback metrics
var (
	CallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelhouse_callbacks_total",
			Help: "Total number of webhook deliveries",
		},
		[]string{"outcome", "result"}, // result: "sent" or "failed"
	)

	CallbacksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelhouse_callbacks_received_total",
			Help: "Total number of conversion callbacks received by the library",
		},
		[]string{"result"},
	)

	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelhouse_submissions_total",
			Help: "Total number of library conversion submissions",
		},
		[]string{"result"},
	)
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
