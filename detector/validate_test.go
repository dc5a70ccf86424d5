package detector

import (
	"errors"
	"math"
	"testing"
)

func TestCleanCorpusFiltersAndAligns(t *testing.T) {
	monitored := []string{"temp", "pressure"}
	samples := []Sample{
		{"temp": 65, "pressure": 4.5, "ignored": 1},
		{"temp": 66, "pressure": 4.4},
		{"temp": math.NaN(), "pressure": 4.3},
		{"temp": 67, "pressure": math.Inf(1)},
		{"temp": 68}, // missing pressure
		{"temp": 69, "pressure": 4.6},
	}

	corpus, err := CleanCorpus(samples, monitored, nil)
	if err != nil {
		t.Fatalf("clean failed: %v", err)
	}

	if len(corpus.Columns) != 2 || corpus.Columns[0] != "temp" || corpus.Columns[1] != "pressure" {
		t.Errorf("columns should follow monitored order, got %v", corpus.Columns)
	}
	if len(corpus.Rows) != 3 {
		t.Errorf("expected 3 clean rows, got %d", len(corpus.Rows))
	}
	for _, row := range corpus.Rows {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Errorf("clean corpus contains non-finite value %f", v)
			}
		}
	}
}

func TestCleanCorpusNoMonitoredMetrics(t *testing.T) {
	samples := []Sample{{"other": 1.0}}

	_, err := CleanCorpus(samples, []string{"temp"}, nil)
	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
}

func TestCleanCorpusEmptyInput(t *testing.T) {
	if _, err := CleanCorpus(nil, []string{"temp"}, nil); err == nil {
		t.Error("expected error for empty batch")
	}
}

func TestCleanSampleRow(t *testing.T) {
	columns := []string{"temp", "pressure"}

	row, err := CleanSampleRow(Sample{"temp": 65, "pressure": 4.5, "extra": 9}, columns)
	if err != nil {
		t.Fatalf("clean failed: %v", err)
	}
	if row[0] != 65 || row[1] != 4.5 {
		t.Errorf("row misaligned: %v", row)
	}

	if _, err := CleanSampleRow(Sample{"temp": 65}, columns); err == nil {
		t.Error("expected error for missing metric")
	}
	if _, err := CleanSampleRow(Sample{"temp": 65, "pressure": math.NaN()}, columns); err == nil {
		t.Error("expected error for non-finite value")
	}
	if _, err := CleanSampleRow(Sample{}, columns); err == nil {
		t.Error("expected error for empty sample")
	}
}
