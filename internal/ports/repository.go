package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"hedgeFundSim/internal/domain"
)

// PriceHistoryProvider supplies daily bars, oldest first.
type PriceHistoryProvider interface {
	// PriceHistory returns up to minCount bars dated on or before asOf. It returns fewer bars
	// near the start of available history and never pads. minCount <= 0 means all bars.
	// Unknown tickers fail with ErrTickerNotFound.
	PriceHistory(ctx context.Context, ticker string, asOf time.Time, minCount int) ([]domain.PriceBar, error)
	// PriceRange returns every bar dated within [from, to].
	PriceRange(ctx context.Context, ticker string, from, to time.Time) ([]domain.PriceBar, error)
}

// FundProvider returns fund snapshots with their open lots.
type FundProvider interface {
	// Fund fails with ErrFundNotFound when fundID is unknown.
	Fund(ctx context.Context, fundID string) (*domain.Fund, error)
}

// FundStore persists funds and their cash balance.
type FundStore interface {
	FundProvider
	CreateFund(ctx context.Context, fund *domain.Fund) error
	UpdateCash(ctx context.Context, fundID string, cash decimal.Decimal) error
}

// LotStore persists lot records produced by the ledger.
type LotStore interface {
	// SaveLots inserts or updates lots by ID.
	SaveLots(ctx context.Context, lots []domain.Lot) error
	// FindLots returns all lots of a fund and ticker ordered by open time.
	FindLots(ctx context.Context, fundID, ticker string) ([]domain.Lot, error)
}

// TradeRepository stores executed trades.
type TradeRepository interface {
	CreateTrade(ctx context.Context, trade *domain.Trade) error
	FindTrades(ctx context.Context, fundID string, limit int) ([]*domain.Trade, error)
}

// BarStore accepts imported price bars.
type BarStore interface {
	SaveBars(ctx context.Context, bars []domain.PriceBar) error
}

// BacktestRecord is a stored backtest run.
type BacktestRecord struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Config    []byte // JSON
	Result    []byte // JSON
}

// BacktestRepository stores completed backtest runs.
type BacktestRepository interface {
	SaveBacktest(ctx context.Context, rec *BacktestRecord) error
	FindBacktest(ctx context.Context, id string) (*BacktestRecord, error)
}

// SectorStore records the sector of a ticker for exposure checks.
type SectorStore interface {
	SetSector(ctx context.Context, ticker, sector string) error
}
