package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatback_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seatback_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Session Metrics
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "seatback_sessions_active",
			Help: "Number of live playback sessions",
		},
	)

	SessionsStartedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatback_sessions_started_total",
			Help: "Total number of playback sessions started",
		},
	)

	SessionsRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatback_sessions_rejected_total",
			Help: "Total number of sessions rejected at the concurrency cap",
		},
	)

	// Delivery Metrics
	ChunksServedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatback_chunks_served_total",
			Help: "Total number of byte chunks served",
		},
		[]string{"kind"},
	)

	BytesServedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatback_bytes_served_total",
			Help: "Total bytes served to clients",
		},
		[]string{"kind"},
	)

	// Ad Metrics
	AdBreaksStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatback_ad_breaks_started_total",
			Help: "Total number of ad breaks started",
		},
	)

	AdBreaksCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatback_ad_breaks_completed_total",
			Help: "Total number of ad breaks fully delivered",
		},
	)

	AdBreaksSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatback_ad_breaks_skipped_total",
			Help: "Total number of ad breaks skipped by viewers",
		},
	)

	// Transcode Metrics
	TranscodesInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "seatback_transcodes_in_progress",
			Help: "Number of normalization jobs currently running",
		},
	)

	TranscodesCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatback_transcodes_completed_total",
			Help: "Total number of finished normalization jobs",
		},
		[]string{"status"},
	)

	TranscodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "seatback_transcode_duration_seconds",
			Help:    "Normalization job duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		},
	)

	// Probe Metrics
	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatback_probes_total",
			Help: "Total number of metadata probes",
		},
		[]string{"outcome"},
	)

	// Storage Metrics
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatback_storage_operations_total",
			Help: "Total number of object storage operations",
		},
		[]string{"operation", "status"},
	)

	StorageBytesTransferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatback_storage_bytes_transferred_total",
			Help: "Total bytes transferred to/from object storage",
		},
		[]string{"operation"},
	)

	// Queue Metrics
	JobsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatback_jobs_published_total",
			Help: "Total number of normalization jobs published",
		},
		[]string{"priority"},
	)

	// Cache Metrics
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatback_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatback_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Error Metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatback_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordChunkServed records one delivered chunk and its payload size
func RecordChunkServed(ad bool, bytes int64) {
	kind := "content"
	if ad {
		kind = "ad"
	}
	ChunksServedTotal.WithLabelValues(kind).Inc()
	BytesServedTotal.WithLabelValues(kind).Add(float64(bytes))
}

// RecordSessionStarted records a session admission or rejection
func RecordSessionStarted(admitted bool) {
	if admitted {
		SessionsStartedTotal.Inc()
		SessionsActive.Inc()
	} else {
		SessionsRejectedTotal.Inc()
	}
}

// RecordSessionEnded records a session reaching its terminal state
func RecordSessionEnded() {
	SessionsActive.Dec()
}

// RecordTranscodeCompleted records a finished normalization job
func RecordTranscodeCompleted(status string, duration float64) {
	TranscodesCompletedTotal.WithLabelValues(status).Inc()
	TranscodeDuration.Observe(duration)
}

// RecordProbe records a metadata probe outcome
func RecordProbe(outcome string) {
	ProbesTotal.WithLabelValues(outcome).Inc()
}

// RecordStorageOperation records an object storage operation
func RecordStorageOperation(operation, status string, bytesTransferred int64) {
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
	StorageBytesTransferred.WithLabelValues(operation).Add(float64(bytesTransferred))
}

// RecordJobPublished records a normalization job publication
func RecordJobPublished(priority string) {
	JobsPublishedTotal.WithLabelValues(priority).Inc()
}

// RecordCacheAccess records cache hit or miss
func RecordCacheAccess(cacheType string, hit bool) {
	if hit {
		CacheHitsTotal.WithLabelValues(cacheType).Inc()
	} else {
		CacheMissesTotal.WithLabelValues(cacheType).Inc()
	}
}

// RecordError records an error occurrence
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
