package indicators

// Stochastic returns the %K oscillator for each full window. A flat window (highest high equal to
// lowest low) is reported as 50.
func Stochastic(highs, lows, closes []float64, period int) ([]float64, error) {
	if err := checkHLC("Stochastic", highs, lows, closes); err != nil {
		return nil, err
	}
	if err := checkWindow("Stochastic", len(closes), period, period); err != nil {
		return nil, err
	}

	out := make([]float64, len(closes)-period+1)
	for i := period - 1; i < len(closes); i++ {
		hh, ll := highs[i], lows[i]
		for j := i - period + 1; j < i; j++ {
			if highs[j] > hh {
				hh = highs[j]
			}
			if lows[j] < ll {
				ll = lows[j]
			}
		}
		if hh == ll {
			out[i-period+1] = 50
			continue
		}
		out[i-period+1] = 100 * (closes[i] - ll) / (hh - ll)
	}
	return out, nil
}
