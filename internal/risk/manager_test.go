package risk

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedgeFundSim/internal/domain"
	"hedgeFundSim/internal/ports"
	"hedgeFundSim/internal/strategy/analytics"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
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
		out[i] = domain.PriceBar{Ticker: ticker, Date: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c}
	}
	return out, nil
}

func (f fakePrices) PriceRange(ctx context.Context, ticker string, _, _ time.Time) ([]domain.PriceBar, error) {
	return f.PriceHistory(ctx, ticker, time.Time{}, 0)
}

func lot(id, ticker string, qty int64, price float64) domain.Lot {
	return domain.Lot{
		ID: id, FundID: "fund-1", Ticker: ticker, Quantity: qty,
		EntryPrice: decimal.NewFromFloat(price), Status: domain.LotOpen,
		OpenedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func fund(cash float64, lots ...domain.Lot) *domain.Fund {
	return &domain.Fund{
		ID: "fund-1", Cash: decimal.NewFromFloat(cash),
		InitialCapital: decimal.NewFromInt(100000), Lots: lots,
	}
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func newManager(t *testing.T, funds fakeFunds, prices fakePrices) *Manager {
	t.Helper()
	m, err := NewManager(DefaultConfig(), funds, prices, &mockLogger{})
	require.NoError(t, err)
	return m
}

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(DefaultConfig(), fakeFunds{}, fakePrices{}, nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Limits.MaxPositionFraction = 1.5
	_, err = NewManager(cfg, fakeFunds{}, fakePrices{}, &mockLogger{})
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.AverageWin = 0
	_, err = NewManager(cfg, fakeFunds{}, fakePrices{}, &mockLogger{})
	assert.Error(t, err)
}

func TestKellyFraction(t *testing.T) {
	m := newManager(t, fakeFunds{}, fakePrices{})
	tests := []struct {
		name       string
		confidence float64
		volatility float64
		expected   float64
	}{
		{"capped at max kelly", 0.8, 0.2, 0.25},
		{"negative edge floors at zero", 0.2, 0.3, 0},
		{"break even", 0, 0.1, 0},
		{"partial", 0, 0.08, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, m.KellyFraction(tt.confidence, tt.volatility), 1e-9)
		})
	}
}

func TestPositionSize(t *testing.T) {
	m := newManager(t, fakeFunds{}, fakePrices{})

	assert.Equal(t, int64(200), m.PositionSize(0.8, domain.ActionBuy, 0.2, 100000, 100000, 50))
	assert.Equal(t, int64(95), m.PositionSize(0.8, domain.ActionBuy, 0.2, 100000, 5000, 50), "cash reserve binds")
	assert.Zero(t, m.PositionSize(0.8, domain.ActionSell, 0.2, 100000, 100000, 50))
	assert.Zero(t, m.PositionSize(0.8, domain.ActionHold, 0.2, 100000, 100000, 50))
	assert.Zero(t, m.PositionSize(0.8, domain.ActionBuy, 0.2, 100000, 100000, 0))
	assert.Zero(t, m.PositionSize(0.2, domain.ActionBuy, 0.9, 100000, 100000, 50), "no edge")

	for _, conf := range []float64{0.1, 0.5, 0.7, 0.95, 1} {
		for _, vol := range []float64{0.01, 0.1, 0.3} {
			for _, cash := range []float64{0, 1000, 20000, 100000} {
				for _, price := range []float64{1, 17.3, 250} {
					shares := m.PositionSize(conf, domain.ActionBuy, vol, 100000, cash, price)
					value := float64(shares) * price
					assert.GreaterOrEqual(t, shares, int64(0))
					assert.LessOrEqual(t, value, 100000*0.10+1e-9)
					assert.LessOrEqual(t, value, cash*0.95+1e-9)
				}
			}
		}
	}
}

func TestRiskMetricsMarkToMarket(t *testing.T) {
	funds := fakeFunds{"fund-1": fund(50000, lot("l1", "AAPL", 100, 100), lot("l2", "MSFT", 100, 200))}
	prices := fakePrices{"AAPL": repeat(110, 40)}
	m := newManager(t, funds, prices)

	mt, err := m.RiskMetrics(context.Background(), "fund-1")
	require.NoError(t, err)

	assert.InDelta(t, 31000, mt.Exposure, 1e-9)
	assert.InDelta(t, 81000, mt.TotalValue, 1e-9)
	assert.InDelta(t, 31000.0/81000.0, mt.Leverage, 1e-9)
	assert.InDelta(t, -0.19, mt.TotalReturn, 1e-9)
	require.Len(t, mt.Positions, 2)
	assert.Equal(t, "market", mt.Positions[0].PriceSource)
	assert.Equal(t, "entry", mt.Positions[1].PriceSource, "MSFT has no bars and falls back to entry price")
	assert.InDelta(t, 11000.0/81000.0, mt.Weight("AAPL"), 1e-9)
	assert.Zero(t, mt.Volatility)
	assert.Zero(t, mt.VaR)
	assert.Zero(t, mt.MaxDrawdown)
}

func TestRiskMetricsVolatilityAndDrawdown(t *testing.T) {
	funds := fakeFunds{"fund-1": fund(0, lot("l1", "AAPL", 100, 100))}
	prices := fakePrices{"AAPL": {100, 120, 90}}
	m := newManager(t, funds, prices)

	mt, err := m.RiskMetrics(context.Background(), "fund-1")
	require.NoError(t, err)

	dailyVol := analytics.SampleStdDev([]float64{0.2, -0.25})
	assert.InDelta(t, 9000, mt.TotalValue, 1e-9)
	assert.InDelta(t, 1.0, mt.Weight("AAPL"), 1e-9)
	assert.InDelta(t, dailyVol, mt.DailyVolatility, 1e-9)
	assert.InDelta(t, dailyVol*math.Sqrt(252), mt.Volatility, 1e-9)
	assert.InDelta(t, 0.25, mt.MaxDrawdown, 1e-9)
	assert.InDelta(t, -0.025*252, mt.AnnualizedReturn, 1e-9)
	assert.InDelta(t, 9000*dailyVol*1.645, mt.VaR, 1e-6)
	assert.InDelta(t, 1.3*mt.VaR, mt.ExpectedShortfall, 1e-9)
}

func TestRiskMetricsUnknownFund(t *testing.T) {
	m := newManager(t, fakeFunds{}, fakePrices{})
	_, err := m.RiskMetrics(context.Background(), "missing")
	assert.ErrorIs(t, err, ports.ErrFundNotFound)
}

func codes(v *TradeValidation) []string {
	out := make([]string, 0, len(v.Violations))
	for _, vi := range v.Violations {
		out = append(out, vi.Code)
	}
	return out
}

func TestValidateTrade(t *testing.T) {
	tech := fund(73000, lot("l1", "AAPL", 300, 90))
	tech.Sectors = map[string]string{"AAPL": "tech", "MSFT": "tech"}

	funds := fakeFunds{
		"cash":    fund(100000),
		"reserve": fund(10000, lot("l1", "AAPL", 1000, 90)),
		"tech":    tech,
	}
	prices := fakePrices{"AAPL": repeat(90, 31), "MSFT": repeat(100, 31)}
	m := newManager(t, funds, prices)
	ctx := context.Background()

	tests := []struct {
		name     string
		fundID   string
		ticker   string
		quantity int64
		price    float64
		expected []string
	}{
		{"within limits", "cash", "MSFT", 100, 50, []string{}},
		{"position too large", "cash", "MSFT", 300, 50, []string{ViolationPositionSize}},
		{"breaks cash reserve", "reserve", "MSFT", 100, 100, []string{ViolationCashReserve}},
		{"sector concentration", "tech", "MSFT", 50, 100, []string{ViolationSectorExposure}},
		{"sell is not reserve checked", "reserve", "AAPL", -100, 90, []string{}},
		{"zero quantity", "cash", "MSFT", 0, 50, []string{ViolationInvalidTrade}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := m.ValidateTrade(ctx, tt.fundID, tt.ticker, tt.quantity, tt.price)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, codes(v))
			assert.Equal(t, len(tt.expected) == 0, v.IsValid)
			assert.NotNil(t, v.Metrics)
		})
	}

	_, err := m.ValidateTrade(ctx, "missing", "MSFT", 1, 1)
	assert.ErrorIs(t, err, ports.ErrFundNotFound)
}

func TestStopLossCandidates(t *testing.T) {
	funds := fakeFunds{"fund-1": fund(1000,
		lot("l1", "AAPL", 100, 100),
		lot("l2", "MSFT", 10, 100),
	)}
	prices := fakePrices{"AAPL": {100, 94}, "MSFT": {100, 97}}
	m := newManager(t, funds, prices)

	got, err := m.StopLossCandidates(context.Background(), "fund-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "AAPL", got[0].Ticker)
	assert.InDelta(t, 95, got[0].StopPrice, 1e-9)
	assert.InDelta(t, -600, got[0].UnrealizedLoss, 1e-9)
	assert.Equal(t, int64(100), got[0].Quantity)
}
