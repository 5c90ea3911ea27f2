package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedgeFundSim/internal/domain"
	"hedgeFundSim/internal/ports"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func bar(ticker string, day int, c float64) domain.PriceBar {
	return domain.PriceBar{Ticker: ticker, Date: day0.AddDate(0, 0, day), Open: c, High: c, Low: c, Close: c, Volume: 10}
}

func TestStorePriceHistory(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.SaveBars(ctx, []domain.PriceBar{bar("AAPL", 2, 12), bar("AAPL", 0, 10), bar("AAPL", 1, 11), bar("AAPL", 3, 13)}))
	require.NoError(t, s.SaveBars(ctx, []domain.PriceBar{bar("AAPL", 1, 11.5)}))

	all, err := s.PriceHistory(ctx, "AAPL", day0.AddDate(1, 0, 0), 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 11.5, 12, 13}, domain.Closes(all))

	tail, err := s.PriceHistory(ctx, "AAPL", day0.AddDate(0, 0, 2), 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{11.5, 12}, domain.Closes(tail))

	short, err := s.PriceHistory(ctx, "AAPL", day0, 5)
	require.NoError(t, err)
	assert.Len(t, short, 1, "never padded")

	rng, err := s.PriceRange(ctx, "AAPL", day0.AddDate(0, 0, 1), day0.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Equal(t, []float64{11.5, 12}, domain.Closes(rng))

	_, err = s.PriceHistory(ctx, "MSFT", day0, 1)
	assert.ErrorIs(t, err, ports.ErrTickerNotFound)

	tickers, err := s.Tickers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, tickers)
}

func TestStoreFundsAndLots(t *testing.T) {
	s := New()
	ctx := context.Background()

	f := &domain.Fund{Name: "alpha", Cash: decimal.NewFromInt(1000), InitialCapital: decimal.NewFromInt(1000)}
	require.NoError(t, s.CreateFund(ctx, f))
	require.NotEmpty(t, f.ID)
	assert.ErrorIs(t, s.CreateFund(ctx, f), ports.ErrDuplicateEntry)

	open := domain.Lot{ID: "b", FundID: f.ID, Ticker: "AAPL", OpenedAt: day0.AddDate(0, 0, 1), Quantity: 5, EntryPrice: decimal.NewFromInt(10), Status: domain.LotOpen}
	older := domain.Lot{ID: "a", FundID: f.ID, Ticker: "AAPL", OpenedAt: day0, Quantity: 3, EntryPrice: decimal.NewFromInt(9), Status: domain.LotOpen}
	closed := domain.Lot{ID: "c", FundID: f.ID, Ticker: "AAPL", OpenedAt: day0, Quantity: 2, EntryPrice: decimal.NewFromInt(9), Status: domain.LotClosed}
	require.NoError(t, s.SaveLots(ctx, []domain.Lot{open, older, closed}))
	require.NoError(t, s.SetSector(ctx, "AAPL", "tech"))
	require.NoError(t, s.UpdateCash(ctx, f.ID, decimal.NewFromInt(400)))

	got, err := s.Fund(ctx, f.ID)
	require.NoError(t, err)
	assert.True(t, got.Cash.Equal(decimal.NewFromInt(400)))
	require.Len(t, got.Lots, 2, "closed lots are not part of the snapshot")
	assert.Equal(t, "a", got.Lots[0].ID)
	assert.Equal(t, "tech", got.SectorOf("AAPL"))

	lots, err := s.FindLots(ctx, f.ID, "AAPL")
	require.NoError(t, err)
	assert.Len(t, lots, 3)

	_, err = s.Fund(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrFundNotFound)
	assert.ErrorIs(t, s.UpdateCash(ctx, "missing", decimal.Zero), ports.ErrFundNotFound)
	assert.ErrorIs(t, s.SaveLots(ctx, []domain.Lot{{ID: "x", FundID: "missing"}}), ports.ErrFundNotFound)
}

func TestStoreTradesAndBacktests(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.CreateTrade(ctx, &domain.Trade{FundID: "f", Ticker: "AAPL", Quantity: int64(i + 1)}))
	}
	trades, err := s.FindTrades(ctx, "f", 2)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, int64(3), trades[0].Quantity, "newest first")
	assert.NotEmpty(t, trades[0].ID)

	rec := &ports.BacktestRecord{Name: "run", Config: []byte(`{}`), Result: []byte(`{}`)}
	require.NoError(t, s.SaveBacktest(ctx, rec))
	got, err := s.FindBacktest(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "run", got.Name)
	_, err = s.FindBacktest(ctx, "nope")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}
