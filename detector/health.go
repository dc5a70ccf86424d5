package detector

import "math"

// computeHealthScore reduces the anomaly state and per-metric band breaches
// to a single 0-100 index. The fused anomaly subtracts up to 30 points;
// each metric then subtracts its band penalty scaled by its category weight.
func computeHealthScore(columns []string, raw []float64, isAnomaly bool, fusedScore float64, cfg Config) float64 {
	score := 100.0

	if isAnomaly {
		score -= math.Min(30.0, math.Abs(fusedScore)*20)
	}

	for i, name := range columns {
		category := classifyMetricCategory(name)
		weight, ok := cfg.HealthWeights[category]
		if !ok {
			weight = cfg.HealthWeights[CategoryOther]
		}
		band := cfg.HealthBands[category]
		score -= metricPenalty(raw[i], band) * weight * 100
	}

	return clamp(score, 0, 100)
}

// metricPenalty scores one value against its category band: 0.3 for
// out-of-band, 0.1 for above warning but in band, plus 0.5 for a non-finite
// value, capped at 1.
func metricPenalty(value float64, band Band) float64 {
	penalty := 0.0
	if value > band.Max || value < band.Min {
		penalty += 0.3
	} else if value > band.Warning {
		penalty += 0.1
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		penalty += 0.5
	}
	return math.Min(1.0, penalty)
}

// healthTrend summarizes the recent health score history with a linear fit.
// The window is expressed in days assuming roughly hourly scoring.
func healthTrend(history []float64, windowDays int, slopeThreshold float64) HealthTrend {
	if len(history) == 0 {
		return HealthTrend{Trend: "no data"}
	}

	recent := history
	if limit := windowDays * 24; limit > 0 && len(history) > limit {
		recent = history[len(history)-limit:]
	}
	if len(recent) < 2 {
		return HealthTrend{Trend: "insufficient data", DataPoints: len(recent)}
	}

	slope := linearSlope(recent)
	trend := TrendStable
	if slope > slopeThreshold {
		trend = TrendRising
	} else if slope < -slopeThreshold {
		trend = TrendFalling
	}

	mean := 0.0
	for _, v := range recent {
		mean += v
	}
	mean /= float64(len(recent))

	variance := 0.0
	for _, v := range recent {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(recent))

	return HealthTrend{
		Trend:      trend,
		Slope:      slope,
		Average:    mean,
		Variance:   variance,
		DataPoints: len(recent),
	}
}
