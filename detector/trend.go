package detector

import (
	"errors"
	"fmt"
	"math"
)

// TrendModel is a linear autoregressive forecaster: the next value is a
// weighted combination of the previous Window values plus an intercept. One
// model is fit over window/next-value pairs pooled across all metrics.
//
// Fields are exported for gob serialization.
type TrendModel struct {
	Window    int
	Weights   []float64
	Intercept float64
	Trained   bool
}

// minTrendRows is the smallest corpus that yields a usable trend fit.
const minTrendRows = 20

// fitTrendModel builds the pooled training set and solves the least-squares
// problem via normal equations. A corpus shorter than minTrendRows or a
// singular system returns an error; trend prediction is optional and the
// engine tolerates its absence.
func fitTrendModel(c Corpus, window int) (*TrendModel, error) {
	if len(c.Rows) < minTrendRows {
		return nil, &InsufficientDataError{Rows: len(c.Rows), Needed: minTrendRows, Reason: "trend model"}
	}

	var features [][]float64
	var targets []float64
	for j := range c.Columns {
		series := make([]float64, len(c.Rows))
		for i, row := range c.Rows {
			series[i] = row[j]
		}
		for i := window; i < len(series); i++ {
			features = append(features, series[i-window:i])
			targets = append(targets, series[i])
		}
	}
	if len(features) == 0 {
		return nil, errors.New("no trend training pairs")
	}

	weights, intercept, err := solveLeastSquares(features, targets, window)
	if err != nil {
		return nil, err
	}

	return &TrendModel{
		Window:    window,
		Weights:   weights,
		Intercept: intercept,
		Trained:   true,
	}, nil
}

// Predict returns the next value for one seed window.
func (m *TrendModel) Predict(window []float64) float64 {
	v := m.Intercept
	for i, w := range m.Weights {
		v += w * window[i]
	}
	return v
}

// Rollout produces a multi-step autoregressive forecast: each prediction is
// appended to the window and the oldest value dropped. Errors compound by
// design; this is accepted and reflected in the forecast confidence. The
// rollout is pure arithmetic, so identical seeds give identical output.
func (m *TrendModel) Rollout(seed []float64, horizon int) []float64 {
	window := append([]float64(nil), seed...)
	out := make([]float64, 0, horizon)
	for step := 0; step < horizon; step++ {
		next := m.Predict(window)
		out = append(out, next)
		copy(window, window[1:])
		window[len(window)-1] = next
	}
	return out
}

// trendDirection classifies the slope of a least-squares line over the
// values, thresholded per step.
func trendDirection(values []float64, slopeThreshold float64) string {
	slope := linearSlope(values)
	switch {
	case slope > slopeThreshold:
		return TrendRising
	case slope < -slopeThreshold:
		return TrendFalling
	default:
		return TrendStable
	}
}

// forecastConfidence rises when both the seed history and the predicted
// sequence are stable: clamp(0.1, 0.9, 1/(1 + std(history) + std(preds))).
func forecastConfidence(history, predictions []float64) float64 {
	hStd := populationStd(history)
	if hStd == 0 {
		return 0.9
	}
	pStd := 0.0
	if len(predictions) > 1 {
		pStd = populationStd(predictions)
	}
	return clamp(1.0/(1.0+hStd+pStd), 0.1, 0.9)
}

// linearSlope fits value = a + b*index by least squares and returns b.
func linearSlope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// solveLeastSquares fits y = w.x + b over the feature rows by solving the
// (dim+1)-sized normal equations with Gaussian elimination.
func solveLeastSquares(features [][]float64, targets []float64, dim int) ([]float64, float64, error) {
	size := dim + 1 // intercept folded in as the last coefficient

	ata := make([][]float64, size)
	for i := range ata {
		ata[i] = make([]float64, size)
	}
	atb := make([]float64, size)

	row := make([]float64, size)
	for k, f := range features {
		copy(row, f)
		row[dim] = 1
		for i := 0; i < size; i++ {
			for j := i; j < size; j++ {
				ata[i][j] += row[i] * row[j]
			}
			atb[i] += row[i] * targets[k]
		}
	}
	for i := 0; i < size; i++ {
		for j := 0; j < i; j++ {
			ata[i][j] = ata[j][i]
		}
	}

	solution, err := solveLinearSystem(ata, atb)
	if err != nil {
		return nil, 0, fmt.Errorf("trend regression: %w", err)
	}
	return solution[:dim], solution[dim], nil
}

// solveLinearSystem solves Ax = b by Gaussian elimination with partial
// pivoting. A is modified in place.
func solveLinearSystem(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, errors.New("singular system")
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for r := col + 1; r < n; r++ {
			factor := a[r][col] / a[col][col]
			if factor == 0 {
				continue
			}
			for j := col; j < n; j++ {
				a[r][j] -= factor * a[col][j]
			}
			b[r] -= factor * b[col]
		}
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := b[i]
		for j := i + 1; j < n; j++ {
			sum -= a[i][j] * x[j]
		}
		x[i] = sum / a[i][i]
	}
	return x, nil
}
