package indicators

import ta "github.com/thrasher-corp/gct-ta/indicators"

// SMA returns the simple moving average series of length len(prices)-period+1.
func SMA(prices []float64, period int) ([]float64, error) {
	if err := checkWindow("SMA", len(prices), period, period); err != nil {
		return nil, err
	}
	return trimWarmup(ta.SMA(prices, period), period-1), nil
}

// EMA returns the exponential moving average seeded with the SMA of the first period prices.
// The output has the same length and alignment as SMA.
func EMA(prices []float64, period int) ([]float64, error) {
	if err := checkWindow("EMA", len(prices), period, period); err != nil {
		return nil, err
	}
	return trimWarmup(ta.EMA(prices, period), period-1), nil
}

// trimWarmup drops the zero-filled slots gct-ta leaves before the first full window and copies
// the rest so callers never share a backing array with the input.
func trimWarmup(series []float64, warmup int) []float64 {
	out := make([]float64, len(series)-warmup)
	copy(out, series[warmup:])
	return out
}
