package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lot is a discrete batch of shares bought at one price and time.
// A closed lot keeps its original quantity for history.
type Lot struct {
	ID         string              `json:"id"`
	FundID     string              `json:"fund_id"`
	Ticker     string              `json:"ticker"`
	OpenedAt   time.Time           `json:"opened_at"`
	ClosedAt   *time.Time          `json:"closed_at,omitempty"`
	Quantity   int64               `json:"quantity"`
	EntryPrice decimal.Decimal     `json:"entry_price"`
	ExitPrice  decimal.NullDecimal `json:"exit_price"`
	Status     LotStatus           `json:"status"`
}

// IsOpen checks if the lot status is open.
func (l *Lot) IsOpen() bool {
	return l.Status == LotOpen
}

// CostBasis is quantity times entry price.
func (l *Lot) CostBasis() decimal.Decimal {
	return l.EntryPrice.Mul(decimal.NewFromInt(l.Quantity))
}

// ClosedLot is the portion of a lot consumed by a FIFO close.
type ClosedLot struct {
	LotID      string          `json:"lot_id"`
	Quantity   int64           `json:"quantity"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	OpenedAt   time.Time       `json:"opened_at"`
}

// RealizedPnL returns Σ q·(exit−entry) over the closed sub-lots and that amount as a fraction
// of their cost basis. The fraction is zero when nothing was closed.
func RealizedPnL(closed []ClosedLot, exit decimal.Decimal) (pnl, pct decimal.Decimal) {
	pnl = decimal.Zero
	cost := decimal.Zero
	for _, c := range closed {
		q := decimal.NewFromInt(c.Quantity)
		pnl = pnl.Add(q.Mul(exit.Sub(c.EntryPrice)))
		cost = cost.Add(q.Mul(c.EntryPrice))
	}
	if cost.IsZero() {
		return pnl, decimal.Zero
	}
	return pnl, pnl.Div(cost)
}
