package indicators

// CrossoverResult reports whether fast crossed slow in either direction.
type CrossoverResult struct {
	Bullish bool
	Bearish bool
}

// Crossover checks the last lookback steps of two series aligned at their final element.
// Bullish means fast moved from <= slow to > slow; bearish is the reverse.
// Both are false when either series is shorter than lookback+1.
func Crossover(fast, slow []float64, lookback int) CrossoverResult {
	var res CrossoverResult
	if lookback <= 0 || len(fast) < lookback+1 || len(slow) < lookback+1 {
		return res
	}

	fo, so := len(fast)-1, len(slow)-1
	for k := 0; k < lookback; k++ {
		prevF, prevS := fast[fo-k-1], slow[so-k-1]
		curF, curS := fast[fo-k], slow[so-k]
		if prevF <= prevS && curF > curS {
			res.Bullish = true
		}
		if prevF >= prevS && curF < curS {
			res.Bearish = true
		}
	}
	return res
}
