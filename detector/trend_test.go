package detector

import (
	"math"
	"testing"
)

// rampCorpus is two linear ramps with a little deterministic jitter so the
// regression system has full rank.
func rampCorpus(n int) Corpus {
	rows := make([][]float64, n)
	for i := range rows {
		x := float64(i)
		rows[i] = []float64{
			x + 0.1*math.Sin(1.7*x),
			2*x + 0.1*math.Cos(2.3*x),
		}
	}
	return Corpus{Columns: []string{"a", "b"}, Rows: rows}
}

func TestTrendModelLearnsLinearRamp(t *testing.T) {
	model, err := fitTrendModel(rampCorpus(60), 5)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if !model.Trained {
		t.Fatal("model should report trained")
	}

	next := model.Predict([]float64{100, 101, 102, 103, 104})
	if math.Abs(next-105) > 1.0 {
		t.Errorf("expected next value near 105, got %f", next)
	}
}

func TestTrendRolloutDeterministic(t *testing.T) {
	model, err := fitTrendModel(rampCorpus(60), 5)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}

	seed := []float64{10, 11, 12, 13, 14}
	first := model.Rollout(seed, 8)
	second := model.Rollout(seed, 8)

	if len(first) != 8 {
		t.Fatalf("expected 8 predictions, got %d", len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("rollout not deterministic at step %d: %f vs %f", i, first[i], second[i])
		}
	}
	if seed[0] != 10 || seed[4] != 14 {
		t.Error("rollout must not mutate the seed window")
	}
}

func TestTrendModelInsufficientData(t *testing.T) {
	if _, err := fitTrendModel(rampCorpus(10), 5); err == nil {
		t.Error("expected error for short corpus")
	}
}

func TestTrendDirection(t *testing.T) {
	if d := trendDirection([]float64{1, 2, 3, 4, 5}, 0.1); d != TrendRising {
		t.Errorf("expected rising, got %s", d)
	}
	if d := trendDirection([]float64{5, 4, 3, 2, 1}, 0.1); d != TrendFalling {
		t.Errorf("expected falling, got %s", d)
	}
	if d := trendDirection([]float64{3, 3, 3, 3, 3}, 0.1); d != TrendStable {
		t.Errorf("expected stable, got %s", d)
	}
}

func TestForecastConfidence(t *testing.T) {
	// Flat history means maximal confidence.
	if c := forecastConfidence([]float64{5, 5, 5}, []float64{5, 5}); c != 0.9 {
		t.Errorf("flat history should give 0.9, got %f", c)
	}

	// Noisy history and predictions must stay within the clamp bounds.
	c := forecastConfidence([]float64{1, 50, 3, 80}, []float64{10, 90, 5})
	if c < 0.1 || c > 0.9 {
		t.Errorf("confidence out of bounds: %f", c)
	}
}
