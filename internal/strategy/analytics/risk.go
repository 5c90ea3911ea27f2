package analytics

import "math"

// ZScore maps a one-tailed confidence level to the normal quantile used by parametric VaR:
// 0.95 -> 1.645, 0.99 -> 2.326, anything else -> 1.96.
func ZScore(confidence float64) float64 {
	switch confidence {
	case 0.95:
		return 1.645
	case 0.99:
		return 2.326
	default:
		return 1.96
	}
}

// ExpectedShortfallMultiplier scales parametric VaR into an expected shortfall estimate.
const ExpectedShortfallMultiplier = 1.3

// HistoricalVaR returns the loss (positive fraction) not exceeded on confidence of days.
func HistoricalVaR(dailyReturns []float64, confidence float64) float64 {
	if len(dailyReturns) == 0 {
		return 0
	}
	q := Percentile(dailyReturns, 1-confidence)
	return math.Max(0, -q)
}

// HistoricalExpectedShortfall is the mean loss over days at or beyond the VaR threshold.
func HistoricalExpectedShortfall(dailyReturns []float64, confidence float64) float64 {
	if len(dailyReturns) == 0 {
		return 0
	}
	threshold := Percentile(dailyReturns, 1-confidence)
	var tail []float64
	for _, r := range dailyReturns {
		if r <= threshold {
			tail = append(tail, r)
		}
	}
	return math.Max(0, -Mean(tail))
}

// MaxSingleDayLoss is the worst daily return expressed as a positive loss fraction.
func MaxSingleDayLoss(dailyReturns []float64) float64 {
	var worst float64
	for _, r := range dailyReturns {
		if r < worst {
			worst = r
		}
	}
	return math.Max(0, -worst)
}

// DownsideDeviation is the sample stddev of returns below their mean, annualized.
func DownsideDeviation(dailyReturns []float64) float64 {
	m := Mean(dailyReturns)
	var below []float64
	for _, r := range dailyReturns {
		if r < m {
			below = append(below, r)
		}
	}
	return AnnualizedVolatility(below)
}

// Beta is cov(portfolio, benchmark)/var(benchmark), zero when the benchmark does not move.
func Beta(portfolio, benchmark []float64) float64 {
	v := SampleVariance(benchmark)
	if v == 0 {
		return 0
	}
	return SampleCovariance(portfolio, benchmark) / v
}

// Alpha is Jensen's alpha on annualized returns.
func Alpha(portfolioAnnualized, benchmarkAnnualized, beta, riskFreeRate float64) float64 {
	return portfolioAnnualized - (riskFreeRate + beta*(benchmarkAnnualized-riskFreeRate))
}
