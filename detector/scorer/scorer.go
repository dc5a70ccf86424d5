// Package scorer provides the unsupervised outlier scorers used by the
// detection engine. Each scorer is trained independently on the same scaled
// feature matrix and exposes a decision function where higher values mean
// more normal; scores below zero indicate outliers relative to the
// contamination prior seen at fit time.
package scorer

import (
	"math"
	"sort"
)

// Scorer names used as fusion weight keys.
const (
	NameIsolationForest  = "isolation_forest"
	NameRobustCovariance = "robust_covariance"
)

// Scorer is the common interface for outlier scorers.
type Scorer interface {
	Name() string

	// Fit trains the scorer. data is row-major: one sample per row.
	Fit(data [][]float64) error

	// DecisionFunction scores a single sample. Higher means more normal.
	DecisionFunction(sample []float64) (float64, error)
}

// percentile returns the p-th percentile of data (0-100) using linear
// interpolation between ranks.
func percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	if len(data) == 1 {
		return data[0]
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	index := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
