package indicators

import (
	"fmt"

	ta "github.com/thrasher-corp/gct-ta/indicators"
)

// DefaultRSIPeriod is the conventional RSI lookback.
const DefaultRSIPeriod = 14

// RSI computes the Relative Strength Index with Wilder's smoothing.
// It needs period+1 prices, period >= 2, and returns len(prices)-period values.
// A point whose average loss is zero is 100, including a flat window.
func RSI(prices []float64, period int) ([]float64, error) {
	if period == 1 {
		return nil, fmt.Errorf("RSI: %w (Wilder smoothing needs at least 2, got %d)", ErrInvalidPeriod, period)
	}
	if err := checkWindow("RSI", len(prices), period, period+1); err != nil {
		return nil, err
	}
	out := trimWarmup(ta.RSI(prices, period), period)

	// Wilder averages never decay to exactly zero, so the average loss is zero only while no
	// price has fallen yet. gct-ta reports such a flat window as 0.
	fallen := false
	for i := 1; i < len(prices); i++ {
		if prices[i] < prices[i-1] {
			fallen = true
		}
		if i >= period && !fallen {
			out[i-period] = 100
		}
	}
	return out, nil
}
