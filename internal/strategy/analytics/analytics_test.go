package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedgeFundSim/internal/domain"
)

func TestBasicStatistics(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	assert.InDelta(t, 5.0, Mean(values), 1e-12)
	assert.InDelta(t, 2.0, PopulationStdDev(values), 1e-12)
	assert.InDelta(t, math.Sqrt(32.0/7.0), SampleStdDev(values), 1e-12)
	assert.Zero(t, SampleStdDev([]float64{1}))
	assert.Zero(t, Mean(nil))

	assert.InDelta(t, SampleVariance(values), SampleCovariance(values, values), 1e-12)
	assert.Zero(t, SampleCovariance(values, values[:3]))
}

func TestSimpleReturns(t *testing.T) {
	got := SimpleReturns([]float64{100, 110, 99})
	require.Len(t, got, 2)
	assert.InDelta(t, 0.10, got[0], 1e-12)
	assert.InDelta(t, -0.10, got[1], 1e-12)
	assert.Nil(t, SimpleReturns([]float64{100}))
}

func TestAnnualizeReturn(t *testing.T) {
	assert.InDelta(t, 0.10, AnnualizeReturn(0.10, CalendarDaysPerYear), 1e-12)
	assert.InDelta(t, math.Pow(1.21, 0.5)-1, AnnualizeReturn(0.21, 2*CalendarDaysPerYear), 1e-12)
	assert.Equal(t, 0.05, AnnualizeReturn(0.05, 0))
}

func TestRatios(t *testing.T) {
	assert.Zero(t, SharpeRatio(0.2, 0.02, 0))
	assert.InDelta(t, 0.9, SharpeRatio(0.2, 0.02, 0.2), 1e-12)
	assert.Zero(t, CalmarRatio(0.2, 0))
	assert.InDelta(t, 2.0, CalmarRatio(0.2, 0.1), 1e-12)
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{name: "monotonic rise", values: []float64{100, 110, 120}, expected: 0},
		{name: "single dip", values: []float64{100, 80, 120}, expected: 0.2},
		{name: "deeper later dip from new peak", values: []float64{100, 90, 200, 100, 150}, expected: 0.5},
		{name: "empty", values: nil, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, MaxDrawdown(tt.values), 1e-12)
		})
	}
}

func TestRiskStatistics(t *testing.T) {
	returns := []float64{0.01, -0.02, 0.015, -0.05, 0.03, 0.0, -0.01, 0.02, 0.005, -0.03}

	assert.InDelta(t, 0.05, MaxSingleDayLoss(returns), 1e-12)
	assert.Zero(t, MaxSingleDayLoss([]float64{0.01, 0.02}))

	v := HistoricalVaR(returns, 0.95)
	assert.Greater(t, v, 0.03)
	assert.LessOrEqual(t, v, 0.05)

	es := HistoricalExpectedShortfall(returns, 0.95)
	assert.GreaterOrEqual(t, es, v)

	assert.Greater(t, DownsideDeviation(returns), 0.0)

	assert.Equal(t, 1.645, ZScore(0.95))
	assert.Equal(t, 2.326, ZScore(0.99))
	assert.Equal(t, 1.96, ZScore(0.90))
}

func TestBetaAndAlpha(t *testing.T) {
	bench := []float64{0.01, -0.02, 0.03, 0.0, 0.015}
	port := make([]float64, len(bench))
	for i, r := range bench {
		port[i] = 2 * r
	}

	assert.InDelta(t, 2.0, Beta(port, bench), 1e-9)
	assert.Zero(t, Beta(port, []float64{0.01, 0.01, 0.01, 0.01, 0.01}))

	// alpha = 0.25 - (0.02 + 2*(0.10-0.02)) = 0.07
	assert.InDelta(t, 0.07, Alpha(0.25, 0.10, 2, 0.02), 1e-12)
}

func TestAnalyzeTrades(t *testing.T) {
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	five := decimal.NewFromInt(5)
	trades := []domain.Trade{
		{Action: domain.ActionBuy, Quantity: 10, Price: decimal.NewFromInt(100), Commission: five, ExecutedAt: ts},
		{Action: domain.ActionSell, Quantity: 5, Price: decimal.NewFromInt(120), Commission: five,
			RealizedPnL: decimal.NewFromInt(100), ReturnPct: 0.2, ExecutedAt: ts.AddDate(0, 0, 1)},
		{Action: domain.ActionSell, Quantity: 5, Price: decimal.NewFromInt(90), Commission: five,
			RealizedPnL: decimal.NewFromInt(-50), ReturnPct: -0.1, ExecutedAt: ts.AddDate(0, 0, 2)},
	}

	stats := AnalyzeTrades(trades)

	assert.Equal(t, 3, stats.TotalTrades)
	assert.Equal(t, 1, stats.BuyTrades)
	assert.Equal(t, 2, stats.SellTrades)
	assert.Equal(t, 1, stats.WinningTrades)
	assert.Equal(t, 1, stats.LosingTrades)
	assert.InDelta(t, 0.5, stats.WinRate, 1e-12)
	assert.InDelta(t, 0.05, stats.AverageTradeReturn, 1e-12)
	assert.InDelta(t, 100.0, stats.GrossProfit, 1e-9)
	assert.InDelta(t, 50.0, stats.GrossLoss, 1e-9)
	assert.InDelta(t, 2.0, stats.ProfitFactor, 1e-9)
	assert.InDelta(t, 15.0, stats.TotalCommission, 1e-9)
	assert.InDelta(t, 35.0, stats.NetProfit, 1e-9)

	empty := AnalyzeTrades(nil)
	assert.Zero(t, empty.WinRate)
	assert.Zero(t, empty.ProfitFactor)
}

func TestAnalyzeTrades_CommissionDoesNotFlipAWin(t *testing.T) {
	// Gross gain of 2 against a commission of 5: still a win, matching its positive ReturnPct.
	trades := []domain.Trade{
		{Action: domain.ActionSell, Quantity: 10, Price: decimal.NewFromInt(100), Commission: decimal.NewFromInt(5),
			RealizedPnL: decimal.NewFromInt(2), ReturnPct: 0.002},
	}

	stats := AnalyzeTrades(trades)

	assert.Equal(t, 1, stats.WinningTrades)
	assert.Zero(t, stats.LosingTrades)
	assert.Greater(t, stats.AverageTradeReturn, 0.0)
	assert.InDelta(t, 2.0, stats.AverageWin, 1e-9)
	assert.Equal(t, 1, stats.MaxConsecutiveWins)
	assert.InDelta(t, 5.0, stats.TotalCommission, 1e-9)
	assert.InDelta(t, -3.0, stats.NetProfit, 1e-9)
}

func TestDrawdownPeriods(t *testing.T) {
	day := func(i int) time.Time { return time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC) }
	dates := []time.Time{day(0), day(1), day(2), day(3), day(4), day(5)}
	values := []float64{100, 90, 95, 105, 100, 98}

	periods := DrawdownPeriods(dates, values)
	require.Len(t, periods, 2)

	assert.True(t, periods[0].Recovered)
	assert.Equal(t, day(0), periods[0].StartTime)
	assert.Equal(t, day(3), periods[0].EndTime)
	assert.InDelta(t, 0.10, periods[0].Depth, 1e-12)
	assert.Equal(t, 90.0, periods[0].TroughValue)

	assert.False(t, periods[1].Recovered)
	assert.Equal(t, day(3), periods[1].StartTime)
	assert.InDelta(t, 7.0/105.0, periods[1].Depth, 1e-12)
}
