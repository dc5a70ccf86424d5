package detector

import (
	"math"
	"testing"

	"machine-health-engine/detector/scorer"
)

func TestFuseScoresRenormalizes(t *testing.T) {
	weights := map[string]float64{
		scorer.NameIsolationForest:  0.7,
		scorer.NameRobustCovariance: 0.3,
	}

	// With one scorer missing, its weight must be redistributed: the
	// surviving scorer's raw value passes through unchanged.
	single := FuseScores(map[string]float64{scorer.NameIsolationForest: -0.42}, weights)
	if single != -0.42 {
		t.Errorf("single-scorer fusion should pass the score through, got %f", single)
	}

	both := FuseScores(map[string]float64{
		scorer.NameIsolationForest:  1.0,
		scorer.NameRobustCovariance: -1.0,
	}, weights)
	want := 0.7*1.0 + 0.3*(-1.0)
	if math.Abs(both-want) > 1e-12 {
		t.Errorf("expected %f, got %f", want, both)
	}
}

func TestFuseScoresEmpty(t *testing.T) {
	weights := map[string]float64{scorer.NameIsolationForest: 0.7}

	if v := FuseScores(nil, weights); v != 0 {
		t.Errorf("no scorers should fuse to 0, got %f", v)
	}
	if v := FuseScores(map[string]float64{"unknown": 5}, weights); v != 0 {
		t.Errorf("unweighted scorers should fuse to 0, got %f", v)
	}
}

func TestFusionConfidence(t *testing.T) {
	if v := FusionConfidence(nil); v != 0 {
		t.Errorf("no scorers should give 0 confidence, got %f", v)
	}
	if v := FusionConfidence(map[string]float64{"a": 0.3}); v != 0.8 {
		t.Errorf("single scorer should give 0.8, got %f", v)
	}

	agree := FusionConfidence(map[string]float64{"a": 0.5, "b": 0.5})
	if agree != 1.0 {
		t.Errorf("perfect agreement should give 1.0, got %f", agree)
	}

	disagree := FusionConfidence(map[string]float64{"a": 10, "b": -10})
	if disagree != 0 {
		t.Errorf("wild disagreement should clamp to 0, got %f", disagree)
	}
}
