// Package analytics computes return, risk and trade statistics shared by the risk manager and the
// backtest simulator.
package analytics

import (
	"math"
	"sort"
)

const (
	// TradingDaysPerYear annualizes daily statistics.
	TradingDaysPerYear = 252
	// CalendarDaysPerYear annualizes compound returns over calendar spans.
	CalendarDaysPerYear = 365.25
	// DefaultRiskFreeRate is the annual risk-free rate used by Sharpe and alpha.
	DefaultRiskFreeRate = 0.02
)

// Mean returns the arithmetic average, zero for no values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SampleStdDev is the n-1 standard deviation; zero for fewer than two values.
func SampleStdDev(values []float64) float64 {
	return math.Sqrt(SampleVariance(values))
}

// SampleVariance is the n-1 variance; zero for fewer than two values.
func SampleVariance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := Mean(values)
	var ss float64
	for _, v := range values {
		ss += (v - m) * (v - m)
	}
	return ss / float64(len(values)-1)
}

// PopulationStdDev is the n standard deviation.
func PopulationStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := Mean(values)
	var ss float64
	for _, v := range values {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(values)))
}

// SampleCovariance of two equally long series; zero when lengths differ or are below two.
func SampleCovariance(a, b []float64) float64 {
	if len(a) != len(b) || len(a) < 2 {
		return 0
	}
	ma, mb := Mean(a), Mean(b)
	var s float64
	for i := range a {
		s += (a[i] - ma) * (b[i] - mb)
	}
	return s / float64(len(a)-1)
}

// SimpleReturns converts a value series into period-over-period returns (length n-1).
// A non-positive previous value yields a zero return for that step.
func SimpleReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] > 0 {
			out[i-1] = (values[i] - values[i-1]) / values[i-1]
		}
	}
	return out
}

// AnnualizedVolatility is the sample stddev of daily returns times sqrt(252).
func AnnualizedVolatility(dailyReturns []float64) float64 {
	return SampleStdDev(dailyReturns) * math.Sqrt(TradingDaysPerYear)
}

// AnnualizeReturn compounds a total return over days calendar days: (1+r)^(365.25/days)-1.
func AnnualizeReturn(totalReturn, days float64) float64 {
	if days <= 0 || totalReturn <= -1 {
		return totalReturn
	}
	return math.Pow(1+totalReturn, CalendarDaysPerYear/days) - 1
}

// SharpeRatio is (annualized return - risk free) / annualized volatility, zero when volatility is zero.
func SharpeRatio(annualizedReturn, riskFreeRate, volatility float64) float64 {
	if volatility == 0 {
		return 0
	}
	return (annualizedReturn - riskFreeRate) / volatility
}

// CalmarRatio is annualized return over max drawdown, zero when drawdown is zero.
func CalmarRatio(annualizedReturn, maxDrawdown float64) float64 {
	if maxDrawdown == 0 {
		return 0
	}
	return annualizedReturn / maxDrawdown
}

// MaxDrawdown walks a value series tracking the running peak and returns the largest
// (peak-value)/peak as a non-negative fraction.
func MaxDrawdown(values []float64) float64 {
	var peak, maxDD float64
	for i, v := range values {
		if i == 0 || v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// Percentile returns the p-quantile (0..1) of values using linear interpolation.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
