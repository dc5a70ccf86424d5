package scorer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gaussianCluster(n, dims int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	data := make([][]float64, n)
	for i := range data {
		row := make([]float64, dims)
		for j := range row {
			row[j] = rng.NormFloat64()
		}
		data[i] = row
	}
	return data
}

func TestIsolationForestSeparatesOutliers(t *testing.T) {
	data := gaussianCluster(500, 4, 1)

	forest := NewIsolationForest(IsolationForestConfig{
		Contamination: 0.01,
		NumTrees:      100,
		Seed:          42,
	})
	require.NoError(t, forest.Fit(data))
	assert.True(t, forest.Trained)

	inlier, err := forest.DecisionFunction([]float64{0.1, -0.2, 0.05, 0.3})
	require.NoError(t, err)

	outlier, err := forest.DecisionFunction([]float64{15, -12, 20, 18})
	require.NoError(t, err)

	assert.Greater(t, inlier, outlier, "inliers must score higher than outliers")
	assert.Less(t, outlier, 0.0, "a far outlier must fall below the calibrated offset")
}

func TestIsolationForestDeterministicWithSeed(t *testing.T) {
	data := gaussianCluster(200, 3, 7)
	sample := []float64{0.5, -0.5, 1.0}

	scores := make([]float64, 2)
	for i := range scores {
		forest := NewIsolationForest(IsolationForestConfig{
			Contamination: 0.02,
			NumTrees:      50,
			Seed:          99,
		})
		require.NoError(t, forest.Fit(data))
		v, err := forest.DecisionFunction(sample)
		require.NoError(t, err)
		scores[i] = v
	}

	assert.Equal(t, scores[0], scores[1], "same seed must give same scores")
}

func TestIsolationForestRejectsBadInput(t *testing.T) {
	forest := NewIsolationForest(IsolationForestConfig{
		Contamination: 0.01,
		NumTrees:      10,
		Seed:          1,
	})

	assert.Error(t, forest.Fit(nil))

	_, err := forest.DecisionFunction([]float64{1, 2})
	assert.Error(t, err, "scoring before fit must fail")
}
