package detector

import (
	"fmt"
	"math"
	"time"

	"machine-health-engine/detector/scorer"
)

// Metric categories used for health weighting.
const (
	CategoryTemperature = "temperature"
	CategoryCurrent     = "current"
	CategoryPressure    = "pressure"
	CategoryOther       = "other"
)

// Band is the acceptable operating range for one metric category.
// Values above Warning but inside [Min, Max] draw a reduced penalty.
type Band struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Warning float64 `json:"warning"`
}

// SeverityBands are the absolute scaled-value thresholds for per-metric
// severity classification.
type SeverityBands struct {
	Mild     float64 `json:"mild"`
	Moderate float64 `json:"moderate"`
	Severe   float64 `json:"severe"`
}

// Config is the immutable-after-construction detector configuration.
type Config struct {
	// Metrics is the monitored metric set. Samples are filtered to this set.
	Metrics []string `json:"metrics"`

	IsolationForest scorer.IsolationForestConfig  `json:"isolation_forest"`
	Covariance      scorer.RobustCovarianceConfig `json:"robust_covariance"`

	// ScalerKind selects the normalization strategy: "robust" (median/IQR)
	// or "standard" (mean/stddev).
	ScalerKind string `json:"scaler_kind"`

	MinDataPoints     int           `json:"min_data_points"`
	RetrainInterval   time.Duration `json:"-"`
	PredictionHorizon int           `json:"prediction_horizon"`

	// HealthWeights maps metric category to its weight in the health score.
	// Weights must be in [0, 1] and sum to at most 1; the "other" bucket is
	// filled with the remainder when absent.
	HealthWeights map[string]float64 `json:"health_weights"`
	HealthBands   map[string]Band    `json:"health_bands"`

	// AnomalyThreshold is the fused score below which a sample is anomalous.
	AnomalyThreshold float64 `json:"anomaly_threshold"`

	// CacheSize bounds the retained tail of cleaned samples.
	CacheSize int `json:"cache_size"`

	// FusionWeights maps scorer name to its weight in the fused score.
	// Weights are renormalized over the scorers actually present.
	FusionWeights map[string]float64 `json:"fusion_weights"`

	SeverityBands SeverityBands `json:"severity_bands"`

	TrendWindow          int     `json:"trend_window"`
	TrendSlopeThreshold  float64 `json:"trend_slope_threshold"`
	HealthSlopeThreshold float64 `json:"health_slope_threshold"`
}

// DefaultConfig returns the baseline configuration for the given metric set.
func DefaultConfig(metrics []string) Config {
	return Config{
		Metrics: metrics,
		IsolationForest: scorer.IsolationForestConfig{
			Contamination: 0.01,
			NumTrees:      200,
			SampleSize:    256,
			Seed:          42,
		},
		Covariance: scorer.RobustCovarianceConfig{
			Contamination: 0.01,
			Seed:          42,
		},
		ScalerKind:        ScalerRobust,
		MinDataPoints:     100,
		RetrainInterval:   24 * time.Hour,
		PredictionHorizon: 10,
		HealthWeights: map[string]float64{
			CategoryTemperature: 0.4,
			CategoryCurrent:     0.3,
			CategoryPressure:    0.2,
			CategoryOther:       0.1,
		},
		HealthBands: map[string]Band{
			CategoryTemperature: {Min: 0, Max: 100, Warning: 80},
			CategoryCurrent:     {Min: 0, Max: 50, Warning: 40},
			CategoryPressure:    {Min: 0, Max: 10, Warning: 8},
			CategoryOther:       {Min: -1000, Max: 1000, Warning: 800},
		},
		AnomalyThreshold: -0.5,
		CacheSize:        1000,
		FusionWeights: map[string]float64{
			scorer.NameIsolationForest:  0.7,
			scorer.NameRobustCovariance: 0.3,
		},
		SeverityBands:        SeverityBands{Mild: 1.0, Moderate: 2.0, Severe: 3.0},
		TrendWindow:          5,
		TrendSlopeThreshold:  0.1,
		HealthSlopeThreshold: 0.5,
	}
}

// PresetConfig resolves a named configuration profile. Supported presets are
// "industrial", "sensitive" and "robust"; the empty string yields defaults.
func PresetConfig(preset string, metrics []string) (Config, error) {
	cfg := DefaultConfig(metrics)

	switch preset {
	case "", "default":
	case "industrial":
		cfg.IsolationForest.Contamination = 0.005
		cfg.IsolationForest.NumTrees = 300
		cfg.Covariance.Contamination = 0.005
		cfg.MinDataPoints = 200
		cfg.RetrainInterval = 12 * time.Hour
		cfg.HealthWeights = map[string]float64{
			CategoryTemperature: 0.5,
			CategoryCurrent:     0.3,
			CategoryPressure:    0.2,
		}
	case "sensitive":
		cfg.IsolationForest.Contamination = 0.02
		cfg.IsolationForest.NumTrees = 100
		cfg.Covariance.Contamination = 0.02
		cfg.AnomalyThreshold = -0.3
		cfg.MinDataPoints = 50
	case "robust":
		cfg.IsolationForest.Contamination = 0.001
		cfg.IsolationForest.NumTrees = 500
		cfg.Covariance.Contamination = 0.001
		cfg.AnomalyThreshold = -0.8
		cfg.MinDataPoints = 500
	default:
		return Config{}, &ConfigError{Field: "preset", Reason: fmt.Sprintf("unknown preset %q", preset)}
	}

	return cfg, nil
}

// Validate checks the configuration. It returns a ConfigError on the first
// problem found; a detector must not be constructed from an invalid config.
func (c *Config) Validate() error {
	if len(c.Metrics) == 0 {
		return &ConfigError{Field: "metrics", Reason: "monitored metric set is empty"}
	}
	if c.ScalerKind != ScalerRobust && c.ScalerKind != ScalerStandard {
		return &ConfigError{Field: "scaler_kind", Reason: fmt.Sprintf("must be %q or %q", ScalerRobust, ScalerStandard)}
	}
	if c.MinDataPoints < 2 {
		return &ConfigError{Field: "min_data_points", Reason: "must be at least 2"}
	}
	if c.PredictionHorizon < 1 {
		return &ConfigError{Field: "prediction_horizon", Reason: "must be at least 1"}
	}
	if c.CacheSize < 1 {
		return &ConfigError{Field: "cache_size", Reason: "must be positive"}
	}
	if c.TrendWindow < 2 {
		return &ConfigError{Field: "trend_window", Reason: "must be at least 2"}
	}
	if c.IsolationForest.Contamination <= 0 || c.IsolationForest.Contamination >= 0.5 {
		return &ConfigError{Field: "isolation_forest.contamination", Reason: "must be in (0, 0.5)"}
	}
	if c.IsolationForest.NumTrees < 1 {
		return &ConfigError{Field: "isolation_forest.num_trees", Reason: "must be positive"}
	}
	if c.Covariance.Contamination <= 0 || c.Covariance.Contamination >= 0.5 {
		return &ConfigError{Field: "robust_covariance.contamination", Reason: "must be in (0, 0.5)"}
	}

	sum := 0.0
	for category, w := range c.HealthWeights {
		if w < 0 || w > 1 {
			return &ConfigError{Field: "health_weights." + category, Reason: "weight must be in [0, 1]"}
		}
		sum += w
	}
	if sum > 1.0+1e-9 {
		return &ConfigError{Field: "health_weights", Reason: fmt.Sprintf("weights sum to %.3f, must not exceed 1", sum)}
	}

	for name, w := range c.FusionWeights {
		if w <= 0 {
			return &ConfigError{Field: "fusion_weights." + name, Reason: "weight must be positive"}
		}
	}

	bands := c.SeverityBands
	if !(bands.Mild > 0 && bands.Moderate > bands.Mild && bands.Severe > bands.Moderate) {
		return &ConfigError{Field: "severity_bands", Reason: "thresholds must satisfy 0 < mild < moderate < severe"}
	}

	for category, band := range c.HealthBands {
		if band.Max <= band.Min {
			return &ConfigError{Field: "health_bands." + category, Reason: "max must exceed min"}
		}
	}

	return nil
}

// normalized fills omitted buckets so lookups never miss: the "other" health
// weight takes the unassigned remainder and missing bands fall back to the
// default band set.
func (c Config) normalized() Config {
	weights := make(map[string]float64, len(c.HealthWeights)+1)
	sum := 0.0
	for category, w := range c.HealthWeights {
		weights[category] = w
		sum += w
	}
	if _, ok := weights[CategoryOther]; !ok {
		weights[CategoryOther] = math.Max(0, 1.0-sum)
	}
	c.HealthWeights = weights

	defaults := DefaultConfig(c.Metrics).HealthBands
	bands := make(map[string]Band, len(defaults))
	for category, band := range defaults {
		bands[category] = band
	}
	for category, band := range c.HealthBands {
		bands[category] = band
	}
	c.HealthBands = bands

	return c
}
