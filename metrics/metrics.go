package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Detection engine metrics for production monitoring
var (
	DetectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mhe_detections_total",
			Help: "Total number of detection calls",
		},
		[]string{"status"}, // status: ok/anomaly/stale/error
	)

	DetectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mhe_detection_duration_seconds",
			Help:    "Detection call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 100us to ~0.4s
		},
	)

	TrainingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mhe_trainings_total",
			Help: "Total number of training runs",
		},
		[]string{"status", "trigger"}, // trigger: api/background
	)

	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mhe_training_duration_seconds",
			Help:    "Training run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
	)

	HealthScore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mhe_health_score",
			Help: "Most recent equipment health score (0-100)",
		},
	)

	AnomalyScore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mhe_anomaly_score",
			Help: "Most recent fused anomaly decision score",
		},
	)

	SamplesIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mhe_samples_ingested_total",
			Help: "Total number of telemetry samples accepted by the intake",
		},
		[]string{"source"}, // source: api/batch
	)

	SamplesRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mhe_samples_rejected_total",
			Help: "Total number of telemetry samples rejected by validation",
		},
	)

	IngestBufferDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mhe_ingest_buffer_depth",
			Help: "Current number of samples waiting in the intake buffer",
		},
	)

	CacheRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mhe_sample_cache_rows",
			Help: "Current number of rows in the retraining sample cache",
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mhe_http_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"method", "path", "code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mhe_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 500us to ~2s
		},
		[]string{"method", "path"},
	)
)
