package fetch

import (
	"fmt"
)

// RangeError is a failed pagination of one time range. Already-accumulated
// pages are discarded; whether the failure is fatal is the caller's call
// (fatal for a single-range fetch, tolerated per chunk).
type RangeError struct {
	Range TimeRange
	Err   error
}

// Error implements the error interface.
func (e *RangeError) Error() string {
	return fmt.Sprintf("fetch range %s: %v", e.Range, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RangeError) Unwrap() error {
	return e.Err
}
