package detector

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// CleanCorpus filters a batch of samples down to the monitored metric set,
// dropping rows with missing or non-finite values. Column order follows the
// monitored list. It is a pure function: the input samples are not modified.
//
// An InsufficientDataError is returned when no monitored metric appears in
// the batch or when cleaning leaves no rows. Losing 20% or more of the rows
// is logged as a data quality warning but is not fatal.
func CleanCorpus(samples []Sample, monitored []string, log *logrus.Entry) (Corpus, error) {
	if len(samples) == 0 {
		return Corpus{}, &InsufficientDataError{Reason: "empty input batch"}
	}

	present := make(map[string]bool)
	for _, s := range samples {
		for name := range s {
			present[name] = true
		}
	}

	var columns []string
	for _, name := range monitored {
		if present[name] {
			columns = append(columns, name)
		}
	}
	if len(columns) == 0 {
		return Corpus{}, &InsufficientDataError{Reason: "no monitored metrics in input"}
	}
	if len(columns) < len(monitored) && log != nil {
		log.Warnf("input covers %d of %d monitored metrics", len(columns), len(monitored))
	}

	rows := make([][]float64, 0, len(samples))
	for _, s := range samples {
		row, ok := buildRow(s, columns)
		if ok {
			rows = append(rows, row)
		}
	}

	if len(rows) == 0 {
		return Corpus{}, &InsufficientDataError{Rows: 0, Reason: "all rows removed by cleaning"}
	}
	dropped := len(samples) - len(rows)
	if float64(dropped) >= 0.2*float64(len(samples)) && log != nil {
		log.Warnf("cleaning removed %.1f%% of rows (%d of %d)",
			100*float64(dropped)/float64(len(samples)), dropped, len(samples))
	}

	return Corpus{Columns: columns, Rows: rows}, nil
}

// CleanSampleRow aligns a single sample with an already-trained column set.
// Every column must be present and finite; detection cannot proceed on a
// partial row because the scaler and scorers are column-aligned.
func CleanSampleRow(s Sample, columns []string) ([]float64, error) {
	if len(s) == 0 {
		return nil, &InsufficientDataError{Reason: "empty sample"}
	}
	row := make([]float64, len(columns))
	for i, name := range columns {
		v, ok := s[name]
		if !ok {
			return nil, &InsufficientDataError{Reason: fmt.Sprintf("metric %q missing from sample", name)}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &InsufficientDataError{Reason: fmt.Sprintf("metric %q has non-finite value", name)}
		}
		row[i] = v
	}
	return row, nil
}

func buildRow(s Sample, columns []string) ([]float64, bool) {
	row := make([]float64, len(columns))
	for i, name := range columns {
		v, ok := s[name]
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
		row[i] = v
	}
	return row, true
}
