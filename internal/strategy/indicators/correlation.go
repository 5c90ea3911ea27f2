package indicators

import (
	"fmt"
	"math"

	ta "github.com/thrasher-corp/gct-ta/indicators"
)

// Correlation returns the Pearson correlation of the last period points of a and b.
func Correlation(a, b []float64, period int) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("Correlation: %w (a=%d b=%d)", errLengthMismatch, len(a), len(b))
	}
	if err := checkWindow("Correlation", len(a), period, period); err != nil {
		return 0, err
	}
	series := ta.CorrelationCoefficient(a, b, period)
	if len(series) == 0 {
		return 0, nil
	}
	c := Last(series)
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0, nil
	}
	return c, nil
}
