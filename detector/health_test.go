package detector

import (
	"math"
	"testing"
)

func TestHealthScoreHealthySample(t *testing.T) {
	cfg := DefaultConfig([]string{"motor_temp", "phase_a_current"}).normalized()

	score := computeHealthScore(
		[]string{"motor_temp", "phase_a_current"},
		[]float64{65, 24},
		false, 0.1, cfg,
	)
	if score != 100 {
		t.Errorf("in-band sample with no anomaly should score 100, got %f", score)
	}
}

func TestHealthScoreOutOfBandMetric(t *testing.T) {
	cfg := DefaultConfig([]string{"motor_temp"}).normalized()

	// Temperature above the band maximum draws 0.3 * weight(0.4) * 100 = 12.
	score := computeHealthScore([]string{"motor_temp"}, []float64{150}, false, 0, cfg)
	if math.Abs(score-88) > 1e-9 {
		t.Errorf("expected 88, got %f", score)
	}

	// Warning zone draws the reduced 0.1 penalty.
	score = computeHealthScore([]string{"motor_temp"}, []float64{85}, false, 0, cfg)
	if math.Abs(score-96) > 1e-9 {
		t.Errorf("expected 96, got %f", score)
	}
}

func TestHealthScoreAnomalyPenaltyCapped(t *testing.T) {
	cfg := DefaultConfig([]string{"motor_temp"}).normalized()

	// A massive fused score caps at the 30 point anomaly deduction.
	score := computeHealthScore([]string{"motor_temp"}, []float64{65}, true, -500, cfg)
	if score != 70 {
		t.Errorf("anomaly deduction should cap at 30, got %f", score)
	}
}

func TestHealthScoreClamped(t *testing.T) {
	cfg := DefaultConfig([]string{"motor_temp", "phase_a_current", "oil_pressure"}).normalized()

	score := computeHealthScore(
		[]string{"motor_temp", "phase_a_current", "oil_pressure"},
		[]float64{math.NaN(), -500, 500},
		true, -100, cfg,
	)
	if score < 0 || score > 100 {
		t.Errorf("score must stay in [0, 100], got %f", score)
	}
}

func TestMetricPenalty(t *testing.T) {
	band := Band{Min: 0, Max: 100, Warning: 80}

	if p := metricPenalty(50, band); p != 0 {
		t.Errorf("in-band value should have no penalty, got %f", p)
	}
	if p := metricPenalty(85, band); p != 0.1 {
		t.Errorf("warning zone should cost 0.1, got %f", p)
	}
	if p := metricPenalty(150, band); p != 0.3 {
		t.Errorf("out-of-band should cost 0.3, got %f", p)
	}
	if p := metricPenalty(math.Inf(1), band); p != 0.8 {
		t.Errorf("non-finite out-of-band should cost 0.8, got %f", p)
	}
}

func TestHealthTrendStates(t *testing.T) {
	if ht := healthTrend(nil, 7, 0.5); ht.Trend != "no data" {
		t.Errorf("expected no data, got %s", ht.Trend)
	}
	if ht := healthTrend([]float64{90}, 7, 0.5); ht.Trend != "insufficient data" {
		t.Errorf("expected insufficient data, got %s", ht.Trend)
	}

	falling := []float64{100, 98, 96, 94, 92, 90, 88, 86}
	ht := healthTrend(falling, 7, 0.5)
	if ht.Trend != TrendFalling {
		t.Errorf("expected falling, got %s", ht.Trend)
	}
	if ht.DataPoints != len(falling) {
		t.Errorf("expected %d points, got %d", len(falling), ht.DataPoints)
	}

	flat := []float64{90, 90.1, 89.9, 90, 90.05, 89.95}
	if ht := healthTrend(flat, 7, 0.5); ht.Trend != TrendStable {
		t.Errorf("expected stable, got %s", ht.Trend)
	}
}

func TestHealthTrendWindow(t *testing.T) {
	history := make([]float64, 300)
	for i := range history {
		history[i] = 50
	}
	// Only the last day (24 entries) should be considered.
	ht := healthTrend(history, 1, 0.5)
	if ht.DataPoints != 24 {
		t.Errorf("expected 24 points in a 1 day window, got %d", ht.DataPoints)
	}
}
