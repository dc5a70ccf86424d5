package detector

import "time"

// Sample is a single telemetry row mapping metric name to value.
type Sample map[string]float64

// Corpus is an ordered, column-aligned batch of cleaned samples.
// Rows are aligned with Columns; invariant: no NaN/Inf values.
type Corpus struct {
	Columns []string
	Rows    [][]float64
}

// Severity levels for a single metric, derived from its scaled value.
const (
	SeverityNormal   = "normal"
	SeverityMild     = "mild"
	SeverityModerate = "moderate"
	SeveritySevere   = "severe"
)

// Per-metric status labels.
const (
	StatusNormal = "normal"
	StatusHigh   = "high"
	StatusLow    = "low"
)

// Trend directions for forecasts and health trends.
const (
	TrendRising  = "rising"
	TrendFalling = "falling"
	TrendStable  = "stable"
)

// MetricDetail describes the anomaly state of one metric within a sample.
type MetricDetail struct {
	CurrentValue float64 `json:"current_value"`
	ScaledValue  float64 `json:"scaled_value"`
	IsOutlier    bool    `json:"is_outlier"`
	Severity     string  `json:"severity"`
	Status       string  `json:"status"`
}

// TrendForecast holds the multi-step forecast for one metric.
type TrendForecast struct {
	Values     []float64 `json:"values"`
	Trend      string    `json:"trend"`
	Confidence float64   `json:"confidence"`
}

// DetectionResult is the structured outcome of a single detection call.
// HealthScore is always populated, even when Error is set; in that case
// Stale is true and the score is the last known value (or the neutral 100).
type DetectionResult struct {
	IsAnomaly     bool                     `json:"is_anomaly"`
	AnomalyScore  float64                  `json:"anomaly_score"`
	Confidence    float64                  `json:"confidence"`
	Details       map[string]MetricDetail  `json:"anomaly_details"`
	HealthScore   float64                  `json:"health_score"`
	Predictions   map[string]TrendForecast `json:"predictions"`
	MetricsStatus map[string]string        `json:"metrics_status"`
	Timestamp     time.Time                `json:"timestamp"`
	Stale         bool                     `json:"stale,omitempty"`
	Error         string                   `json:"error,omitempty"`
}

// PerformanceStats summarizes engine timing history.
type PerformanceStats struct {
	AvgDetectionSeconds float64 `json:"avg_detection_seconds"`
	AvgTrainingSeconds  float64 `json:"avg_training_seconds"`
	TotalDetections     int     `json:"total_detections"`
	TotalTrainings      int     `json:"total_trainings"`
}

// HealthStats summarizes the bounded health score history.
type HealthStats struct {
	Current float64 `json:"current"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// ModelInfo describes the current model state for diagnostics endpoints.
type ModelInfo struct {
	IsTrained     bool             `json:"is_trained"`
	LastTrainTime *time.Time       `json:"last_train_time,omitempty"`
	Metrics       []string         `json:"metrics_monitored"`
	CacheRows     int              `json:"cache_rows"`
	Performance   PerformanceStats `json:"performance"`
	HealthStats   *HealthStats     `json:"health_score_stats,omitempty"`
}

// Diagnosis is the result of a self-check over model, cache and timings.
type Diagnosis struct {
	ModelStatus       string   `json:"model_status"`
	CacheStatus       string   `json:"cache_status"`
	PerformanceStatus string   `json:"performance_status"`
	Recommendations   []string `json:"recommendations"`
}

// HealthTrend summarizes the recent health score trajectory.
type HealthTrend struct {
	Trend      string  `json:"trend"`
	Slope      float64 `json:"slope"`
	Average    float64 `json:"average_score"`
	Variance   float64 `json:"score_variance"`
	DataPoints int     `json:"data_points"`
}
