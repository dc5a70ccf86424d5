package detector

import "math"

// FuseScores combines per-scorer decision values into one score using a
// weighted average. Weights are renormalized over the scorers actually
// present, so a single surviving scorer passes its raw score through
// unchanged. Returns 0 when no scorer contributed.
func FuseScores(scores map[string]float64, weights map[string]float64) float64 {
	if len(scores) == 0 {
		return 0
	}

	weighted := 0.0
	totalWeight := 0.0
	for name, score := range scores {
		w, ok := weights[name]
		if !ok {
			continue
		}
		weighted += score * w
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0
	}
	return weighted / totalWeight
}

// FusionConfidence estimates agreement between scorers. A single scorer
// yields a fixed 0.8; with several, confidence falls as the spread between
// their scores grows. This is a heuristic consistency measure, not a
// calibrated probability.
func FusionConfidence(scores map[string]float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	if len(scores) == 1 {
		return 0.8
	}

	values := make([]float64, 0, len(scores))
	for _, v := range scores {
		values = append(values, v)
	}
	spread := populationStd(values)
	return clamp(1.0-spread, 0, 1)
}

func populationStd(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
