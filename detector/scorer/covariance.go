package scorer

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// RobustCovarianceConfig holds the robust covariance hyperparameters.
type RobustCovarianceConfig struct {
	// Contamination is the expected proportion of outliers in training data.
	Contamination float64 `json:"contamination"`

	// Seed makes the initial subset selection reproducible.
	Seed int64 `json:"seed"`
}

// RobustCovariance scores points by squared Mahalanobis distance from a
// contamination-resistant estimate of the data's center and spread. The
// estimate is obtained by concentration steps: repeatedly recomputing
// mean/covariance over the half of the data closest to the current center,
// so a minority of outliers cannot drag the fit.
//
// Fields are exported for gob serialization of trained bundles.
type RobustCovariance struct {
	Cfg RobustCovarianceConfig

	Center    []float64
	Precision [][]float64 // inverse of the robust covariance
	Offset    float64     // contamination-calibrated squared-distance threshold
	Trained   bool
}

const concentrationSteps = 5

// NewRobustCovariance creates an untrained robust covariance scorer.
func NewRobustCovariance(cfg RobustCovarianceConfig) *RobustCovariance {
	if cfg.Contamination <= 0 {
		cfg.Contamination = 0.01
	}
	return &RobustCovariance{Cfg: cfg}
}

func (rc *RobustCovariance) Name() string { return NameRobustCovariance }

// Fit estimates the robust center and precision matrix. It fails when the
// covariance is degenerate (for example a constant column), which is a legal
// outcome: the engine degrades to the remaining scorer.
func (rc *RobustCovariance) Fit(data [][]float64) error {
	n := len(data)
	if n == 0 {
		return errors.New("empty training matrix")
	}
	d := len(data[0])
	if d == 0 {
		return errors.New("training matrix has no columns")
	}
	if n <= d+1 {
		return fmt.Errorf("need more than %d rows for %d features, got %d", d+1, d, n)
	}

	// Support size: the subset assumed clean.
	h := (n + d + 1) / 2

	rng := rand.New(rand.NewSource(rc.Cfg.Seed))
	subset := rng.Perm(n)[:h]

	var center []float64
	var precision [][]float64
	for step := 0; step < concentrationSteps; step++ {
		var err error
		center, precision, err = meanAndPrecision(data, subset)
		if err != nil {
			return err
		}

		// Keep the h rows closest to the current robust center.
		type rowDist struct {
			idx  int
			dist float64
		}
		dists := make([]rowDist, n)
		for i, row := range data {
			dists[i] = rowDist{idx: i, dist: mahalanobisSquared(row, center, precision)}
		}
		sort.Slice(dists, func(i, j int) bool { return dists[i].dist < dists[j].dist })
		for i := 0; i < h; i++ {
			subset[i] = dists[i].idx
		}
	}

	rc.Center = center
	rc.Precision = precision

	allDists := make([]float64, n)
	for i, row := range data {
		allDists[i] = mahalanobisSquared(row, center, precision)
	}
	rc.Offset = percentile(allDists, 100*(1-rc.Cfg.Contamination))
	rc.Trained = true

	return nil
}

// DecisionFunction returns offset minus the squared robust Mahalanobis
// distance: positive for inliers, strongly negative for far points.
func (rc *RobustCovariance) DecisionFunction(sample []float64) (float64, error) {
	if !rc.Trained {
		return 0, errors.New("robust covariance not trained")
	}
	return rc.Offset - mahalanobisSquared(sample, rc.Center, rc.Precision), nil
}

func mahalanobisSquared(x, center []float64, precision [][]float64) float64 {
	d := len(center)
	diff := make([]float64, d)
	for i := 0; i < d; i++ {
		diff[i] = x[i] - center[i]
	}

	total := 0.0
	for i := 0; i < d; i++ {
		dot := 0.0
		for j := 0; j < d; j++ {
			dot += precision[i][j] * diff[j]
		}
		total += diff[i] * dot
	}
	return total
}

// meanAndPrecision computes the sample mean and inverted covariance over the
// given row subset.
func meanAndPrecision(data [][]float64, subset []int) ([]float64, [][]float64, error) {
	m := len(subset)
	d := len(data[0])

	mean := make([]float64, d)
	for _, idx := range subset {
		for j, v := range data[idx] {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(m)
	}

	cov := make([][]float64, d)
	for i := range cov {
		cov[i] = make([]float64, d)
	}
	for _, idx := range subset {
		row := data[idx]
		for i := 0; i < d; i++ {
			di := row[i] - mean[i]
			for j := i; j < d; j++ {
				cov[i][j] += di * (row[j] - mean[j])
			}
		}
	}
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			cov[i][j] /= float64(m - 1)
			cov[j][i] = cov[i][j]
		}
	}

	precision, err := invertMatrix(cov)
	if err != nil {
		return nil, nil, fmt.Errorf("degenerate covariance: %w", err)
	}
	return mean, precision, nil
}

// invertMatrix inverts a square matrix by Gauss-Jordan elimination with
// partial pivoting. Near-singular matrices are rejected.
func invertMatrix(m [][]float64) ([][]float64, error) {
	d := len(m)

	// Augment with the identity.
	aug := make([][]float64, d)
	for i := 0; i < d; i++ {
		aug[i] = make([]float64, 2*d)
		copy(aug[i], m[i])
		aug[i][d+i] = 1
	}

	for col := 0; col < d; col++ {
		pivot := col
		for row := col + 1; row < d; row++ {
			if math.Abs(aug[row][col]) > math.Abs(aug[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(aug[pivot][col]) < 1e-12 {
			return nil, fmt.Errorf("singular matrix at column %d", col)
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		scale := aug[col][col]
		for j := 0; j < 2*d; j++ {
			aug[col][j] /= scale
		}
		for row := 0; row < d; row++ {
			if row == col {
				continue
			}
			factor := aug[row][col]
			if factor == 0 {
				continue
			}
			for j := 0; j < 2*d; j++ {
				aug[row][j] -= factor * aug[col][j]
			}
		}
	}

	inv := make([][]float64, d)
	for i := 0; i < d; i++ {
		inv[i] = make([]float64, d)
		copy(inv[i], aug[i][d:])
	}
	return inv, nil
}
