package indicators

import (
	"fmt"

	ta "github.com/thrasher-corp/gct-ta/indicators"
)

// BollingerResult holds aligned band series.
type BollingerResult struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// BollingerBands computes SMA ± mult·σ where σ is the population standard deviation of the same
// trailing window as each SMA point.
func BollingerBands(prices []float64, period int, mult float64) (BollingerResult, error) {
	if mult < 0 {
		return BollingerResult{}, fmt.Errorf("bollinger multiplier must not be negative, got %f", mult)
	}
	if err := checkWindow("BollingerBands", len(prices), period, period); err != nil {
		return BollingerResult{}, err
	}
	upper, middle, lower := ta.BBANDS(prices, period, mult, mult, ta.Sma)
	return BollingerResult{
		Upper:  trimWarmup(upper, period-1),
		Middle: trimWarmup(middle, period-1),
		Lower:  trimWarmup(lower, period-1),
	}, nil
}
