package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedgeFundSim/internal/domain"
	"hedgeFundSim/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type stubStrategy struct {
	name     string
	signal   domain.TradeSignal
	err      error
	panicMsg string
	minConf  float64
}

func (s *stubStrategy) Name() string                 { return s.name }
func (s *stubStrategy) RequiredDataPoints() int      { return 5 }
func (s *stubStrategy) MinConfidence() float64       { return s.minConf }
func (s *stubStrategy) MaxPositionFraction() float64 { return 0.5 }
func (s *stubStrategy) Analyze(ctx context.Context, ticker string, history []domain.PriceBar, position domain.Position) (domain.TradeSignal, error) {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.err == nil && s.signal.Action == "" {
		return domain.HoldSignal("stub"), nil
	}
	return s.signal, s.err
}

type stubSizer struct {
	shares    int64
	fundValue float64
	cash      float64
	price     float64
}

func (s *stubSizer) PositionSize(confidence float64, action domain.Action, volatility, fundValue, availableCash, price float64) int64 {
	s.fundValue, s.cash, s.price = fundValue, availableCash, price
	return s.shares
}

type fakeFunds map[string]*domain.Fund

func (f fakeFunds) Fund(_ context.Context, id string) (*domain.Fund, error) {
	fund, ok := f[id]
	if !ok {
		return nil, ports.ErrFundNotFound
	}
	return fund, nil
}

type fakePrices map[string][]float64

func (f fakePrices) PriceHistory(_ context.Context, ticker string, _ time.Time, minCount int) ([]domain.PriceBar, error) {
	closes, ok := f[ticker]
	if !ok {
		return nil, ports.ErrTickerNotFound
	}
	if minCount > 0 && len(closes) > minCount {
		closes = closes[len(closes)-minCount:]
	}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.PriceBar, len(closes))
	for i, c := range closes {
		out[i] = domain.PriceBar{Ticker: ticker, Date: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1000}
	}
	return out, nil
}

func (f fakePrices) PriceRange(ctx context.Context, ticker string, _, _ time.Time) ([]domain.PriceBar, error) {
	return f.PriceHistory(ctx, ticker, time.Time{}, 0)
}

func flat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func testFund() *domain.Fund {
	return &domain.Fund{
		ID:             "fund-1",
		Cash:           decimal.NewFromInt(100000),
		InitialCapital: decimal.NewFromInt(100000),
		Lots: []domain.Lot{
			{ID: "l1", FundID: "fund-1", Ticker: "AAPL", Quantity: 10, EntryPrice: decimal.NewFromInt(90), Status: domain.LotOpen},
			{ID: "l2", FundID: "fund-1", Ticker: "MSFT", Quantity: 5, EntryPrice: decimal.NewFromInt(200), Status: domain.LotOpen},
		},
	}
}

func newEngine(t *testing.T, sizer Sizer) *Engine {
	t.Helper()
	e, err := NewEngine(fakeFunds{"fund-1": testFund()}, fakePrices{"AAPL": flat(100, 40)}, sizer, &mockLogger{})
	require.NoError(t, err)
	return e
}

func TestNewEngine(t *testing.T) {
	_, err := NewEngine(fakeFunds{}, fakePrices{}, &stubSizer{}, nil)
	assert.Error(t, err)
	_, err = NewEngine(nil, fakePrices{}, &stubSizer{}, &mockLogger{})
	assert.Error(t, err)
}

func TestEngineRegistry(t *testing.T) {
	e := newEngine(t, &stubSizer{})
	require.NoError(t, e.Register("", &stubStrategy{name: "alpha"}))
	require.NoError(t, e.Register("beta", &stubStrategy{name: "ignored"}))

	err := e.Register("alpha", &stubStrategy{name: "alpha"})
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
	assert.ErrorIs(t, e.Register("x", nil), ports.ErrInvalidRequest)
	assert.Equal(t, []string{"alpha", "beta"}, e.Names())

	assert.ErrorIs(t, e.SetActive("gamma", false), ports.ErrNotFound)
	require.NoError(t, e.SetActive("alpha", false))

	res, err := e.RunAll(context.Background(), "fund-1", "AAPL")
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "beta", res.Results[0].Strategy)
}

func TestRunAll(t *testing.T) {
	sizer := &stubSizer{shares: 42}
	e := newEngine(t, sizer)

	buy := domain.TradeSignal{Action: domain.ActionBuy, Confidence: 0.8}
	sell := domain.TradeSignal{Action: domain.ActionSell, Confidence: 0.7, SuggestedPositionFraction: 0.5}
	require.NoError(t, e.Register("buyer", &stubStrategy{name: "buyer", signal: buy, minConf: 0.6}))
	require.NoError(t, e.Register("weak", &stubStrategy{name: "weak", signal: buy, minConf: 0.9}))
	require.NoError(t, e.Register("seller", &stubStrategy{name: "seller", signal: sell, minConf: 0.5}))
	require.NoError(t, e.Register("broken", &stubStrategy{name: "broken", err: errors.New("boom")}))
	require.NoError(t, e.Register("short", &stubStrategy{name: "short", err: ports.ErrInsufficientData}))
	require.NoError(t, e.Register("panics", &stubStrategy{name: "panics", panicMsg: "nil map"}))

	res, err := e.RunAll(context.Background(), "fund-1", "AAPL")
	require.NoError(t, err)
	require.Len(t, res.Results, 6)

	byName := map[string]StrategyResult{}
	for _, r := range res.Results {
		byName[r.Strategy] = r
	}

	assert.True(t, byName["buyer"].Executable)
	assert.Equal(t, int64(42), byName["buyer"].RecommendedSize)
	assert.False(t, byName["weak"].Executable, "below its own min confidence")
	assert.Zero(t, byName["weak"].RecommendedSize)
	assert.True(t, byName["seller"].Executable)
	assert.Equal(t, int64(5), byName["seller"].RecommendedSize, "half of 10 held shares")

	for _, name := range []string{"broken", "short", "panics"} {
		r := byName[name]
		assert.Equal(t, domain.ActionHold, r.Signal.Action, name)
		assert.Zero(t, r.Signal.Confidence, name)
		assert.NotEmpty(t, r.Error, name)
		assert.False(t, r.Executable, name)
	}
	assert.Contains(t, byName["panics"].Error, "nil map")

	// MSFT has no prices and is valued at entry.
	assert.InDelta(t, 100000+10*100+5*200, res.FundValue, 1e-9)
	assert.InDelta(t, res.FundValue, sizer.fundValue, 1e-9)
	assert.InDelta(t, 100000, sizer.cash, 1e-9)
	assert.InDelta(t, 100, sizer.price, 1e-9)
	assert.Equal(t, int64(10), res.Position.Quantity)
	assert.Zero(t, res.Volatility)

	// votes: BUY 0.8, SELL 0.7, HOLD 4
	assert.Equal(t, domain.ActionHold, res.Consensus.Action)
	assert.Equal(t, 2, res.Consensus.Executable)
	assert.InDelta(t, (0.8+0.8+0.7)/6, res.Consensus.AverageConfidence, 1e-9)
	// (0.8*42 + 0.7*5) / 1.5
	assert.Equal(t, int64(24), res.Consensus.RecommendedSize)
	assert.Zero(t, res.Consensus.AgreeingSize)
}

func TestRunAllLookupErrors(t *testing.T) {
	e := newEngine(t, &stubSizer{})
	ctx := context.Background()

	_, err := e.RunAll(ctx, "fund-1", "AAPL")
	assert.ErrorIs(t, err, ports.ErrInvalidRequest, "no strategies registered")

	require.NoError(t, e.Register("", &stubStrategy{name: "alpha"}))
	_, err = e.RunAll(ctx, "missing", "AAPL")
	assert.ErrorIs(t, err, ports.ErrFundNotFound)
	_, err = e.RunAll(ctx, "fund-1", "TSLA")
	assert.ErrorIs(t, err, ports.ErrTickerNotFound)
}

func exec(action domain.Action, conf float64, size int64) StrategyResult {
	return StrategyResult{Signal: domain.TradeSignal{Action: action, Confidence: conf}, Executable: true, RecommendedSize: size}
}

func TestComputeConsensus(t *testing.T) {
	hold := StrategyResult{Signal: domain.HoldSignal("flat")}

	tests := []struct {
		name       string
		results    []StrategyResult
		action     domain.Action
		confidence float64
		size       int64
		agreeing   int64
	}{
		{"empty", nil, domain.ActionHold, 0, 0, 0},
		// (0.8*100 + 0.6*50 + 0.7*10) / 2.1 = 55.7
		{"size weighs every executable result", []StrategyResult{exec(domain.ActionBuy, 0.8, 100), exec(domain.ActionBuy, 0.6, 50), exec(domain.ActionSell, 0.7, 10)},
			domain.ActionBuy, 0.7, 55, 78},
		{"buy wins tie with sell", []StrategyResult{exec(domain.ActionBuy, 0.7, 10), exec(domain.ActionSell, 0.7, 20)},
			domain.ActionBuy, 0.7, 15, 10},
		{"sell wins tie with hold", []StrategyResult{exec(domain.ActionSell, 1.0, 8), hold},
			domain.ActionSell, 0.5, 8, 8},
		{"hold consensus keeps executable size", []StrategyResult{hold, hold, exec(domain.ActionBuy, 0.9, 30)},
			domain.ActionHold, 0.3, 30, 0},
		{"nothing executable", []StrategyResult{hold, hold},
			domain.ActionHold, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ComputeConsensus(tt.results)
			assert.Equal(t, tt.action, c.Action)
			assert.InDelta(t, tt.confidence, c.AverageConfidence, 1e-9)
			assert.Equal(t, tt.size, c.RecommendedSize)
			assert.Equal(t, tt.agreeing, c.AgreeingSize)
			assert.Equal(t, len(tt.results), c.Evaluated)
		})
	}
}
