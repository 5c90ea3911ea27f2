package indicators

import "fmt"

// MACDResult holds the three MACD series.
// Line starts at the slow EMA's first value; Signal and Histogram start Signal-1 points later.
type MACDResult struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// DefaultMACD runs MACD with the standard 12/26/9 parameters.
func DefaultMACD(prices []float64) (MACDResult, error) {
	return MACD(prices, 12, 26, 9)
}

// MACD computes the moving average convergence divergence of prices.
func MACD(prices []float64, fast, slow, signal int) (MACDResult, error) {
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return MACDResult{}, fmt.Errorf("MACD: %w (fast=%d slow=%d signal=%d)", ErrInvalidPeriod, fast, slow, signal)
	}
	if fast >= slow {
		return MACDResult{}, fmt.Errorf("MACD: fast period %d must be less than slow period %d", fast, slow)
	}
	if err := checkWindow("MACD", len(prices), slow, slow+signal-1); err != nil {
		return MACDResult{}, err
	}

	fastEMA, err := EMA(prices, fast)
	if err != nil {
		return MACDResult{}, err
	}
	slowEMA, err := EMA(prices, slow)
	if err != nil {
		return MACDResult{}, err
	}

	offset := slow - fast
	line := make([]float64, len(slowEMA))
	for i := range slowEMA {
		line[i] = fastEMA[i+offset] - slowEMA[i]
	}

	sig, err := EMA(line, signal)
	if err != nil {
		return MACDResult{}, err
	}
	hist := make([]float64, len(sig))
	for i := range sig {
		hist[i] = line[i+signal-1] - sig[i]
	}

	return MACDResult{Line: line, Signal: sig, Histogram: hist}, nil
}
