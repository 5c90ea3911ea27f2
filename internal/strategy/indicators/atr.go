package indicators

import "math"

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|) for every bar after the first.
func TrueRange(highs, lows, closes []float64) ([]float64, error) {
	if err := checkHLC("TrueRange", highs, lows, closes); err != nil {
		return nil, err
	}
	if len(closes) < 2 {
		return nil, checkWindow("TrueRange", len(closes), 1, 2)
	}

	out := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		out[i-1] = math.Max(highs[i]-lows[i], math.Max(math.Abs(highs[i]-prev), math.Abs(lows[i]-prev)))
	}
	return out, nil
}

// ATR is the simple moving average of the true range. It needs period+1 bars.
func ATR(highs, lows, closes []float64, period int) ([]float64, error) {
	if err := checkHLC("ATR", highs, lows, closes); err != nil {
		return nil, err
	}
	if err := checkWindow("ATR", len(closes), period, period+1); err != nil {
		return nil, err
	}
	tr, err := TrueRange(highs, lows, closes)
	if err != nil {
		return nil, err
	}
	return SMA(tr, period)
}
