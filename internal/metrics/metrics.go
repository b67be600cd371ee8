package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request counter
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTP request duration histogram
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	// Active HTTP connections gauge
	HTTPActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)

	// Analysis pipeline outcome counter
	AnalysisRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_requests_total",
			Help: "Total number of analysis pipeline runs by terminal outcome",
		},
		[]string{"outcome"}, // "persisted" or the failure kind
	)

	// Analysis pipeline stage duration histogram
	AnalysisStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analysis_stage_duration_seconds",
			Help:    "Duration of analysis pipeline stages in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"}, // "staging", "inference", "persist"
	)

	// Outbound inference request duration histogram
	InferenceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inference_request_duration_seconds",
			Help:    "Duration of outbound inference requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	// Staged media currently held on durable storage
	StagedFilesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "staged_files_active",
			Help: "Number of staged media files owned by in-flight analysis requests",
		},
	)
)

// RecordHTTPRequest records metrics for an HTTP request
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)

	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

// RecordAnalysisOutcome records the terminal state of a pipeline run
func RecordAnalysisOutcome(outcome string) {
	AnalysisRequestsTotal.WithLabelValues(outcome).Inc()
}

// RecordStageDuration records how long a pipeline stage took
func RecordStageDuration(stage string, startTime time.Time) {
	AnalysisStageDuration.WithLabelValues(stage).Observe(time.Since(startTime).Seconds())
}

// RecordInferenceRequest records an outbound inference attempt.
// A status of 0 means the service was never reached.
func RecordInferenceRequest(startTime time.Time, statusCode int) {
	InferenceRequestDuration.WithLabelValues(strconv.Itoa(statusCode)).Observe(time.Since(startTime).Seconds())
}

// IncStagedFiles increments the staged media gauge
func IncStagedFiles() {
	StagedFilesActive.Inc()
}

// DecStagedFiles decrements the staged media gauge
func DecStagedFiles() {
	StagedFilesActive.Dec()
}

// IncActiveConnections increments active connections
func IncActiveConnections() {
	HTTPActiveConnections.Inc()
}

// DecActiveConnections decrements active connections
func DecActiveConnections() {
	HTTPActiveConnections.Dec()
}
