package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRobustCovarianceSeparatesOutliers(t *testing.T) {
	data := gaussianCluster(300, 3, 11)

	rc := NewRobustCovariance(RobustCovarianceConfig{Contamination: 0.01, Seed: 42})
	require.NoError(t, rc.Fit(data))
	assert.True(t, rc.Trained)

	inlier, err := rc.DecisionFunction([]float64{0.2, -0.1, 0.4})
	require.NoError(t, err)

	outlier, err := rc.DecisionFunction([]float64{40, 40, 40})
	require.NoError(t, err)

	assert.Greater(t, inlier, 0.0, "typical points must score positive")
	assert.Less(t, outlier, -100.0, "far outliers must score strongly negative")
}

func TestRobustCovarianceResistsContamination(t *testing.T) {
	data := gaussianCluster(280, 2, 5)
	// A 5% clump of far outliers must not drag the center.
	for i := 0; i < 14; i++ {
		data = append(data, []float64{50, 50})
	}

	rc := NewRobustCovariance(RobustCovarianceConfig{Contamination: 0.05, Seed: 7})
	require.NoError(t, rc.Fit(data))

	assert.InDelta(t, 0, rc.Center[0], 0.5)
	assert.InDelta(t, 0, rc.Center[1], 0.5)

	clump, err := rc.DecisionFunction([]float64{50, 50})
	require.NoError(t, err)
	assert.Less(t, clump, 0.0)
}

func TestRobustCovarianceRejectsBadInput(t *testing.T) {
	rc := NewRobustCovariance(RobustCovarianceConfig{Contamination: 0.01, Seed: 1})

	assert.Error(t, rc.Fit(nil))
	assert.Error(t, rc.Fit([][]float64{{1, 2}, {3, 4}}), "too few rows for the dimensionality")

	// A constant column makes the covariance singular.
	constant := make([][]float64, 50)
	for i := range constant {
		constant[i] = []float64{float64(i), 1.0}
	}
	assert.Error(t, rc.Fit(constant))

	_, err := rc.DecisionFunction([]float64{1, 2})
	assert.Error(t, err, "scoring before fit must fail")
}
