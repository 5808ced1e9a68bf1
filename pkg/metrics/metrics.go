package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convert_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "convert_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Encode metrics
	EncodesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convert_encodes_total",
			Help: "Total number of target-size encodes",
		},
		[]string{"mode", "status"}, // compress|expand, success|decode_error|encode_error
	)

	EncodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "convert_encode_duration_seconds",
			Help:    "Encode duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"mode"},
	)

	EncodeBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "convert_encode_bytes",
			Help:    "Encode input/output bytes",
			Buckets: []float64{1024, 10240, 102400, 512000, 1048576, 5242880, 10485760, 33554432},
		},
		[]string{"direction"}, // input, output
	)

	EncodeIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "convert_encode_search_iterations",
			Help:    "Trial encodes spent by the quality search",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		},
	)

	// Queue/Pool metrics
	WorkerPoolQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "convert_worker_pool_queue_size",
			Help: "Current number of jobs in worker pool queue",
		},
	)

	WorkerPoolActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "convert_worker_pool_active_jobs",
			Help: "Current number of encodes being processed",
		},
	)

	WorkerPoolRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convert_worker_pool_rejected_total",
			Help: "Total number of jobs rejected because the queue was full",
		},
	)

	// Rate limiting metrics
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convert_rate_limit_exceeded_total",
			Help: "Total number of requests rejected due to rate limiting",
		},
		[]string{"ip_prefix"}, // First octet for privacy
	)

	// Concurrency metrics
	ConcurrentRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "convert_concurrent_requests",
			Help: "Current number of concurrent requests being processed",
		},
	)

	ConcurrencyLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convert_concurrency_limit_exceeded_total",
			Help: "Total number of requests rejected due to concurrency limit",
		},
	)

	// Sink pool metrics
	SinkPoolAllocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convert_sink_pool_allocations_total",
			Help: "Total number of encode sinks allocated because the pool was empty",
		},
		[]string{"size"}, // small, medium, large
	)

	// Activity history
	HistoryEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convert_history_entries_total",
			Help: "Total number of activity log writes",
		},
		[]string{"status"}, // success, error
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, duration float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(endpoint).Observe(duration)
}

// RecordEncode records a finished encode
func RecordEncode(mode, status string, duration float64, inputBytes, outputBytes int) {
	EncodesTotal.WithLabelValues(mode, status).Inc()
	EncodeDuration.WithLabelValues(mode).Observe(duration)
	EncodeBytes.WithLabelValues("input").Observe(float64(inputBytes))
	if outputBytes > 0 {
		EncodeBytes.WithLabelValues("output").Observe(float64(outputBytes))
	}
}

// RecordSearchIterations records how many trial encodes a search used
func RecordSearchIterations(n int) {
	EncodeIterations.Observe(float64(n))
}

// UpdateWorkerPoolMetrics updates worker pool metrics
func UpdateWorkerPoolMetrics(queueSize, activeJobs int) {
	WorkerPoolQueueSize.Set(float64(queueSize))
	WorkerPoolActiveJobs.Set(float64(activeJobs))
}

// RecordPoolRejected records a job turned away by a full queue
func RecordPoolRejected() {
	WorkerPoolRejected.Inc()
}

// RecordRateLimitExceeded records a rate limit rejection
func RecordRateLimitExceeded(ipPrefix string) {
	RateLimitExceeded.WithLabelValues(ipPrefix).Inc()
}

// UpdateConcurrency updates concurrent request gauge
func UpdateConcurrency(count int) {
	ConcurrentRequests.Set(float64(count))
}

// RecordConcurrencyLimitExceeded records a concurrency limit rejection
func RecordConcurrencyLimitExceeded() {
	ConcurrencyLimitExceeded.Inc()
}

// RecordSinkAllocation records a sink allocated outside the pool
func RecordSinkAllocation(size string) {
	SinkPoolAllocations.WithLabelValues(size).Inc()
}

// RecordHistoryWrite records an activity log write
func RecordHistoryWrite(ok bool) {
	status := "success"
	if !ok {
		status = "error"
	}
	HistoryEntries.WithLabelValues(status).Inc()
}
