package detector

import (
	"math"
	"strings"
)

// analyzeMetrics classifies every column of a scaled sample independently of
// the fused decision: a globally normal sample can still flag one metric.
func analyzeMetrics(columns []string, raw, scaled []float64, bands SeverityBands) map[string]MetricDetail {
	details := make(map[string]MetricDetail, len(columns))
	for i, name := range columns {
		sv := scaled[i]
		details[name] = MetricDetail{
			CurrentValue: raw[i],
			ScaledValue:  sv,
			IsOutlier:    math.Abs(sv) > bands.Moderate,
			Severity:     classifySeverity(sv, bands),
			Status:       classifyStatus(sv, bands),
		}
	}
	return details
}

func classifySeverity(scaled float64, bands SeverityBands) string {
	abs := math.Abs(scaled)
	switch {
	case abs > bands.Severe:
		return SeveritySevere
	case abs > bands.Moderate:
		return SeverityModerate
	case abs > bands.Mild:
		return SeverityMild
	default:
		return SeverityNormal
	}
}

func classifyStatus(scaled float64, bands SeverityBands) string {
	switch {
	case scaled > bands.Moderate:
		return StatusHigh
	case scaled < -bands.Moderate:
		return StatusLow
	default:
		return StatusNormal
	}
}

// classifyMetricCategory buckets a metric name into a health weighting
// category by keyword. "ct" covers current-transformer channel names common
// on PLC register maps.
func classifyMetricCategory(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "temp"):
		return CategoryTemperature
	case strings.Contains(lower, "current"), strings.Contains(lower, "ct"):
		return CategoryCurrent
	case strings.Contains(lower, "pressure"):
		return CategoryPressure
	default:
		return CategoryOther
	}
}
