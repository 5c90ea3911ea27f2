// Package indicators implements pure technical indicator functions over price sequences.
// Every input is ordered oldest first and every output series is aligned to the end of its input.
package indicators

import (
	"errors"
	"fmt"

	"hedgeFundSim/internal/ports"
)

// ErrInvalidPeriod is returned for non-positive window parameters.
var ErrInvalidPeriod = errors.New("indicator period must be positive")

// errLengthMismatch is returned when parallel high/low/close inputs differ in length.
var errLengthMismatch = errors.New("input series lengths differ")

// checkWindow validates period and the minimum number of observations.
func checkWindow(name string, n, period, required int) error {
	if period <= 0 {
		return fmt.Errorf("%s: %w (got %d)", name, ErrInvalidPeriod, period)
	}
	if n < required {
		return fmt.Errorf("not enough data (%d) to calculate %s for period %d, need %d: %w",
			n, name, period, required, ports.ErrInsufficientData)
	}
	return nil
}

func checkHLC(name string, highs, lows, closes []float64) error {
	if len(highs) != len(lows) || len(lows) != len(closes) {
		return fmt.Errorf("%s: %w (high=%d low=%d close=%d)", name, errLengthMismatch, len(highs), len(lows), len(closes))
	}
	return nil
}

// Last returns the final element of a series, or 0 for an empty one.
func Last(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}
