package scorer

import (
	"errors"
	"math"
	"math/rand"
)

// IsolationForestConfig holds the ensemble hyperparameters.
type IsolationForestConfig struct {
	// Contamination is the expected proportion of outliers in training data.
	// It calibrates the decision offset so that roughly this fraction of the
	// training set scores below zero.
	Contamination float64 `json:"contamination"`

	// NumTrees is the ensemble size.
	NumTrees int `json:"num_trees"`

	// SampleSize is the per-tree subsample size; 0 means min(256, n).
	SampleSize int `json:"sample_size"`

	// Seed makes tree construction reproducible.
	Seed int64 `json:"seed"`
}

// IsolationForest isolates points with random partitioning trees. Points
// that isolate in fewer splits receive higher anomaly mass and therefore a
// lower (more negative) decision value.
//
// Fields are exported for gob serialization of trained bundles.
type IsolationForest struct {
	Cfg IsolationForestConfig

	Trees   []*ITree
	CNorm   float64 // expected path length c(sample size), normalizes depths
	Offset  float64 // contamination-calibrated anomaly mass threshold
	Depth   int     // tree depth cap
	Trained bool
}

// ITree is a single isolation tree.
type ITree struct {
	Root *INode
}

// INode is one node of an isolation tree. Leaves carry the number of
// training samples that reached them.
type INode struct {
	Feature int
	Split   float64
	Left    *INode
	Right   *INode
	Size    int
}

// NewIsolationForest creates an untrained forest from the configuration.
func NewIsolationForest(cfg IsolationForestConfig) *IsolationForest {
	if cfg.NumTrees <= 0 {
		cfg.NumTrees = 100
	}
	if cfg.Contamination <= 0 {
		cfg.Contamination = 0.01
	}
	return &IsolationForest{Cfg: cfg}
}

func (f *IsolationForest) Name() string { return NameIsolationForest }

// Fit builds the ensemble over the training matrix and calibrates the
// decision offset from the contamination prior.
func (f *IsolationForest) Fit(data [][]float64) error {
	if len(data) == 0 {
		return errors.New("empty training matrix")
	}
	nSamples := len(data)
	nFeatures := len(data[0])
	if nFeatures == 0 {
		return errors.New("training matrix has no columns")
	}

	sampleSize := f.Cfg.SampleSize
	if sampleSize <= 0 || sampleSize > nSamples {
		sampleSize = nSamples
		if sampleSize > 256 {
			sampleSize = 256
		}
	}

	rng := rand.New(rand.NewSource(f.Cfg.Seed))
	depth := int(math.Ceil(math.Log2(float64(sampleSize)))) + 1

	trees := make([]*ITree, f.Cfg.NumTrees)
	for i := range trees {
		indices := rng.Perm(nSamples)[:sampleSize]
		subset := make([][]float64, sampleSize)
		for j, idx := range indices {
			subset[j] = data[idx]
		}
		trees[i] = &ITree{Root: buildINode(subset, nFeatures, 0, depth, rng)}
	}

	f.Trees = trees
	f.Depth = depth
	f.CNorm = expectedPathLength(float64(sampleSize))
	f.Trained = true

	// Calibrate the offset so the top contamination fraction of the
	// training set scores negative.
	masses := make([]float64, nSamples)
	for i, row := range data {
		masses[i] = f.anomalyMass(row)
	}
	f.Offset = percentile(masses, 100*(1-f.Cfg.Contamination))

	return nil
}

// DecisionFunction returns offset minus the sample's anomaly mass: positive
// for inliers, negative for points more anomalous than the contamination
// quantile of the training set.
func (f *IsolationForest) DecisionFunction(sample []float64) (float64, error) {
	if !f.Trained {
		return 0, errors.New("isolation forest not trained")
	}
	return f.Offset - f.anomalyMass(sample), nil
}

// anomalyMass is 2^(-E[h(x)] / c(n)) in (0, 1]; shorter average isolation
// paths give larger mass.
func (f *IsolationForest) anomalyMass(sample []float64) float64 {
	total := 0.0
	for _, tree := range f.Trees {
		total += isolationPath(sample, tree.Root, 0)
	}
	avgPath := total / float64(len(f.Trees))
	return math.Pow(2, -avgPath/f.CNorm)
}

func buildINode(data [][]float64, nFeatures, depth, maxDepth int, rng *rand.Rand) *INode {
	n := len(data)
	if depth >= maxDepth || n <= 1 {
		return &INode{Size: n}
	}

	feature := rng.Intn(nFeatures)
	minVal, maxVal := data[0][feature], data[0][feature]
	for _, row := range data[1:] {
		if row[feature] < minVal {
			minVal = row[feature]
		}
		if row[feature] > maxVal {
			maxVal = row[feature]
		}
	}
	if minVal == maxVal {
		return &INode{Size: n}
	}

	split := minVal + rng.Float64()*(maxVal-minVal)

	var left, right [][]float64
	for _, row := range data {
		if row[feature] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	return &INode{
		Feature: feature,
		Split:   split,
		Left:    buildINode(left, nFeatures, depth+1, maxDepth, rng),
		Right:   buildINode(right, nFeatures, depth+1, maxDepth, rng),
	}
}

func isolationPath(sample []float64, n *INode, depth int) float64 {
	if n.Left == nil && n.Right == nil {
		return float64(depth) + expectedPathLength(float64(n.Size))
	}
	if sample[n.Feature] < n.Split {
		return isolationPath(sample, n.Left, depth+1)
	}
	return isolationPath(sample, n.Right, depth+1)
}

// expectedPathLength is c(n), the average path length of an unsuccessful
// BST search: 2*H(n-1) - 2*(n-1)/n with H(k) ~ ln(k) + Euler-Mascheroni.
func expectedPathLength(n float64) float64 {
	if n <= 1 {
		return 0
	}
	return 2*(math.Log(n-1)+0.5772156649) - 2*(n-1)/n
}
