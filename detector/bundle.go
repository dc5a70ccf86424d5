package detector

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"machine-health-engine/detector/scorer"
)

// Bundle owns the trained artifacts for one detector instance. A bundle is
// built off to the side during training and swapped in wholesale; detection
// reads it and must not mutate it.
type Bundle struct {
	Columns       []string
	Scaler        *Scaler
	Forest        *scorer.IsolationForest
	Covariance    *scorer.RobustCovariance
	Trend         *TrendModel
	LastTrainTime time.Time

	// SampleCache is the bounded tail of recent cleaned rows, aligned with
	// Columns. It feeds retraining and the trend seed window.
	SampleCache [][]float64
}

// appendRows adds cleaned rows to the cache, evicting the oldest beyond the
// capacity. Caller must hold the engine write lock.
func (b *Bundle) appendRows(rows [][]float64, capacity int) {
	b.SampleCache = append(b.SampleCache, rows...)
	if len(b.SampleCache) > capacity {
		b.SampleCache = append([][]float64(nil), b.SampleCache[len(b.SampleCache)-capacity:]...)
	}
}

// cacheTail returns a copy of the last n values of one cached column.
func (b *Bundle) cacheTail(col, n int) []float64 {
	rows := b.SampleCache
	if len(rows) > n {
		rows = rows[len(rows)-n:]
	}
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = row[col]
	}
	return out
}

// cacheColumnStats returns mean and population stddev of one cached column.
func (b *Bundle) cacheColumnStats(col int) (float64, float64, bool) {
	if len(b.SampleCache) == 0 {
		return 0, 0, false
	}
	values := make([]float64, len(b.SampleCache))
	for i, row := range b.SampleCache {
		values[i] = row[col]
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	return mean, populationStd(values), true
}

const bundleFileName = "bundle.gob"

// persistedBundle is the on-disk layout. The format is internal: a bundle is
// only expected to load in the build that wrote it. Load still validates
// completeness before the engine marks itself trained.
type persistedBundle struct {
	Bundle  *Bundle
	Metrics []string
	Config  Config
	SavedAt time.Time
}

// saveBundle writes the bundle atomically: encode to a temp file in the same
// directory, then rename over the target.
func saveBundle(dir string, b *Bundle, cfg Config) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}

	tmp, err := os.CreateTemp(dir, bundleFileName+".*")
	if err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}
	defer os.Remove(tmp.Name())

	enc := gob.NewEncoder(tmp)
	payload := persistedBundle{
		Bundle:  b,
		Metrics: cfg.Metrics,
		Config:  cfg,
		SavedAt: time.Now(),
	}
	if err := enc.Encode(&payload); err != nil {
		tmp.Close()
		return &PersistenceError{Op: "save", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}

	if err := os.Rename(tmp.Name(), filepath.Join(dir, bundleFileName)); err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}
	return nil
}

// loadBundle reads and validates a persisted bundle. A missing file returns
// (nil, nil); a corrupt or incomplete bundle returns a PersistenceError and
// must be discarded, never half-applied.
func loadBundle(dir string) (*Bundle, error) {
	path := filepath.Join(dir, bundleFileName)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &PersistenceError{Op: "load", Err: err}
	}
	defer f.Close()

	var payload persistedBundle
	if err := gob.NewDecoder(f).Decode(&payload); err != nil {
		return nil, &PersistenceError{Op: "load", Err: err}
	}

	b := payload.Bundle
	switch {
	case b == nil:
		return nil, &PersistenceError{Op: "load", Err: fmt.Errorf("bundle payload empty")}
	case len(b.Columns) == 0:
		return nil, &PersistenceError{Op: "load", Err: fmt.Errorf("bundle has no columns")}
	case b.Scaler == nil || !b.Scaler.Fitted():
		return nil, &PersistenceError{Op: "load", Err: fmt.Errorf("bundle scaler missing or unfitted")}
	case b.Forest == nil || !b.Forest.Trained:
		return nil, &PersistenceError{Op: "load", Err: fmt.Errorf("bundle isolation forest missing or untrained")}
	}
	// The covariance scorer and trend model are optional bundle members.

	return b, nil
}
