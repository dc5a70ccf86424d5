package detector

import (
	"fmt"
	"math"
	"sort"
)

// Scaler kinds.
const (
	ScalerRobust   = "robust"   // median center, IQR scale
	ScalerStandard = "standard" // mean center, stddev scale
)

// Scaler normalizes samples column by column using statistics captured at
// fit time. Fields are exported for gob serialization.
type Scaler struct {
	Kind    string
	Columns []string
	Center  []float64
	Scale   []float64
}

// NewScaler creates an unfitted scaler of the given kind.
func NewScaler(kind string) *Scaler {
	return &Scaler{Kind: kind}
}

// Fitted reports whether statistics have been computed.
func (s *Scaler) Fitted() bool {
	return len(s.Center) > 0
}

// Fit computes per-column center and scale statistics. Refitting replaces
// the statistics atomically: they are computed into fresh slices and only
// assigned once the whole corpus has been processed.
func (s *Scaler) Fit(c Corpus) error {
	if len(c.Rows) == 0 || len(c.Columns) == 0 {
		return &InsufficientDataError{Reason: "cannot fit scaler on empty corpus"}
	}

	center := make([]float64, len(c.Columns))
	scale := make([]float64, len(c.Columns))

	column := make([]float64, len(c.Rows))
	for j := range c.Columns {
		for i, row := range c.Rows {
			column[i] = row[j]
		}

		switch s.Kind {
		case ScalerStandard:
			center[j], scale[j] = meanStd(column)
		default:
			center[j], scale[j] = medianIQR(column)
		}
		// Constant columns scale by 1 so transforms stay finite.
		if scale[j] == 0 {
			scale[j] = 1
		}
	}

	s.Columns = append([]string(nil), c.Columns...)
	s.Center = center
	s.Scale = scale
	return nil
}

// Transform applies the stored statistics to a single row. It returns
// ErrNotFitted before Fit and rejects rows of the wrong width.
func (s *Scaler) Transform(row []float64) ([]float64, error) {
	if !s.Fitted() {
		return nil, ErrNotFitted
	}
	if len(row) != len(s.Center) {
		return nil, fmt.Errorf("row has %d columns, scaler fitted on %d", len(row), len(s.Center))
	}

	scaled := make([]float64, len(row))
	for j, v := range row {
		scaled[j] = (v - s.Center[j]) / s.Scale[j]
	}
	return scaled, nil
}

func meanStd(values []float64) (float64, float64) {
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
	return mean, math.Sqrt(variance)
}

func medianIQR(values []float64) (float64, float64) {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	median := interpolated(sorted, 50)
	q1 := interpolated(sorted, 25)
	q3 := interpolated(sorted, 75)
	return median, q3 - q1
}

// interpolated returns the p-th percentile of sorted data with linear
// interpolation between ranks.
func interpolated(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	index := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
