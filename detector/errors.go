package detector

import (
	"errors"
	"fmt"
)

// Sentinel errors for recoverable conditions. Callers should test with
// errors.Is and treat both as retry-later, not fatal.
var (
	// ErrModelNotReady is returned by Detect before the first successful train.
	ErrModelNotReady = errors.New("model not trained")

	// ErrNotFitted is returned when a scaler transform is attempted before fit.
	ErrNotFitted = errors.New("scaler not fitted")
)

// InsufficientDataError indicates the input had too few or too dirty rows.
// The caller should accumulate more data and retry.
type InsufficientDataError struct {
	Rows   int
	Needed int
	Reason string
}

func (e *InsufficientDataError) Error() string {
	if e.Needed > 0 {
		return fmt.Sprintf("insufficient data: %d rows, need %d (%s)", e.Rows, e.Needed, e.Reason)
	}
	return fmt.Sprintf("insufficient data: %s", e.Reason)
}

// ScorerFitError indicates one outlier scorer failed to fit. Training
// degrades to the remaining scorer(s) unless none is left.
type ScorerFitError struct {
	Scorer string
	Err    error
}

func (e *ScorerFitError) Error() string {
	return fmt.Sprintf("scorer %s failed to fit: %v", e.Scorer, e.Err)
}

func (e *ScorerFitError) Unwrap() error { return e.Err }

// PersistenceError indicates a bundle save or load failure. The in-memory
// state remains authoritative; the error is reported for logging only.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("bundle %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ConfigError indicates malformed detector configuration. This is fatal at
// construction time.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config field %q: %s", e.Field, e.Reason)
}
