package optimization

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedgeFundSim/internal/adapters/memory"
	"hedgeFundSim/internal/domain"
	"hedgeFundSim/internal/ports"
	"hedgeFundSim/internal/strategy/backtesting"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

var day0 = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

// seededStore holds 300 AAPL bars that fall, rally and fall again.
func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	bars := make([]domain.PriceBar, 300)
	for i := range bars {
		var c float64
		switch {
		case i < 60:
			c = 110 - 10*float64(i)/59
		case i < 180:
			c = 100 + 60*float64(i-59)/120
		default:
			c = 160 - 70*float64(i-179)/120
		}
		bars[i] = domain.PriceBar{Ticker: "AAPL", Date: day0.AddDate(0, 0, i), Open: c, High: c * 1.01, Low: c * 0.99, Close: c, Volume: 1_000_000}
	}
	require.NoError(t, store.SaveBars(context.Background(), bars))
	return store
}

func backtestConfig(tickers ...string) backtesting.Config {
	return backtesting.Config{
		Name:           "grid",
		Tickers:        tickers,
		StartDate:      day0.AddDate(0, 0, 60),
		EndDate:        day0.AddDate(0, 0, 299),
		InitialCapital: 100000,
		Commission:     1,
		Slippage:       0.001,
	}
}

func TestOptimizer(t *testing.T) {
	config := OptimizerConfig{
		ParameterRanges: []ParameterRange{
			{Name: ParamFastPeriod, Min: 10, Max: 30, Step: 10, IsInt: true},
			{Name: ParamSlowPeriod, Min: 20, Max: 30, Step: 10, IsInt: true},
		},
		Backtest:    backtestConfig("AAPL"),
		Concurrency: 2,
	}
	optimizer, err := NewOptimizer(config, seededStore(t), &mockLogger{})
	require.NoError(t, err)

	results, err := optimizer.Optimize(context.Background())
	require.NoError(t, err)

	// 3x2 grid minus the three combinations where fast >= slow.
	require.Len(t, results, 3)
	seen := map[string]bool{}
	for _, r := range results {
		assert.Less(t, r.Strategy.FastPeriod, r.Strategy.SlowPeriod)
		assert.Equal(t, float64(r.Strategy.FastPeriod), r.Parameters[ParamFastPeriod])
		seen[r.Strategy.Name] = true
		assert.Equal(t, 100000.0, r.Metrics.InitialCapital)
	}
	assert.True(t, seen["ma_crossover_10_20"])
	assert.True(t, seen["ma_crossover_10_30"])
	assert.True(t, seen["ma_crossover_20_30"])

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score, "results not sorted by score")
	}
}

func TestOptimizer_Errors(t *testing.T) {
	store := seededStore(t)
	valid := []ParameterRange{{Name: ParamFastPeriod, Min: 5, Max: 10, Step: 5, IsInt: true}}

	tests := []struct {
		name   string
		config OptimizerConfig
		logger ports.Logger
	}{
		{"no logger", OptimizerConfig{ParameterRanges: valid}, nil},
		{"no ranges", OptimizerConfig{}, &mockLogger{}},
		{"unknown parameter", OptimizerConfig{ParameterRanges: []ParameterRange{{Name: "leverage", Min: 1, Max: 2, Step: 1}}}, &mockLogger{}},
		{"zero step", OptimizerConfig{ParameterRanges: []ParameterRange{{Name: ParamFastPeriod, Min: 1, Max: 2}}}, &mockLogger{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOptimizer(tt.config, store, tt.logger)
			assert.Error(t, err)
		})
	}

	t.Run("no valid combination", func(t *testing.T) {
		o, err := NewOptimizer(OptimizerConfig{
			ParameterRanges: []ParameterRange{{Name: ParamFastPeriod, Min: 60, Max: 70, Step: 10, IsInt: true}},
			Backtest:        backtestConfig("AAPL"),
		}, store, &mockLogger{})
		require.NoError(t, err)
		_, err = o.Optimize(context.Background())
		assert.ErrorIs(t, err, ports.ErrInvalidRequest)
	})

	t.Run("backtest failure aborts", func(t *testing.T) {
		o, err := NewOptimizer(OptimizerConfig{ParameterRanges: valid, Backtest: backtestConfig("NOPE")}, store, &mockLogger{})
		require.NoError(t, err)
		_, err = o.Optimize(context.Background())
		assert.ErrorIs(t, err, ports.ErrBacktestFailed)
	})
}

func TestGenerateParameterCombinations(t *testing.T) {
	optimizer := &Optimizer{config: OptimizerConfig{
		ParameterRanges: []ParameterRange{
			{Name: "param1", Min: 1, Max: 2, Step: 1, IsInt: true},
			{Name: "param2", Min: 0.1, Max: 0.3, Step: 0.1},
		},
	}}
	combinations := optimizer.generateParameterCombinations()
	require.Len(t, combinations, 6)

	assert.Equal(t, 1.0, combinations[0]["param1"])
	assert.InDelta(t, 0.1, combinations[0]["param2"], 1e-12)
	assert.InDelta(t, 0.3, combinations[2]["param2"], 1e-12)
	assert.Equal(t, 2.0, combinations[5]["param1"])
}

func TestDefaultScoreFunction(t *testing.T) {
	res := &backtesting.Result{}
	res.Metrics.SharpeRatio = 1.2
	res.Metrics.TotalReturn = 0.25
	res.Metrics.MaxDrawdown = 0.1
	res.Metrics.Trades.TotalTrades = 4

	assert.InDelta(t, 1.2*0.5+0.25*0.3-0.1*0.2, DefaultScoreFunction(res), 1e-12)

	res.Metrics.Trades.TotalTrades = 0
	assert.True(t, math.IsInf(DefaultScoreFunction(res), -1))
}

func TestSortResultsByScore(t *testing.T) {
	results := []OptimizationResult{{Score: 1}, {Score: math.NaN()}, {Score: 3}, {Score: math.Inf(-1)}, {Score: 2}}
	sortResultsByScore(results)
	assert.Equal(t, 3.0, results[0].Score)
	assert.Equal(t, 2.0, results[1].Score)
	assert.Equal(t, 1.0, results[2].Score)
	assert.True(t, math.IsInf(results[3].Score, -1))
	assert.True(t, math.IsNaN(results[4].Score))
}
