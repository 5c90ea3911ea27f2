package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade represents an executed buy or sell.
type Trade struct {
	ID          string          `json:"id"`
	FundID      string          `json:"fund_id"`
	Ticker      string          `json:"ticker"`
	Action      Action          `json:"action"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`      // fill price after slippage
	Commission  decimal.Decimal `json:"commission"` // flat fee charged on the trade
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	ReturnPct   float64         `json:"return_pct"` // realized P&L over cost basis, sells only
	ExecutedAt  time.Time       `json:"executed_at"`
	Confidence  float64         `json:"confidence"`
	Rationale   string          `json:"rationale"`
	CloseReason CloseReason     `json:"close_reason,omitempty"`
}

// Value is quantity times fill price.
func (t *Trade) Value() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Quantity))
}

// NetPnL is realized P&L less commission. Buys report only the negative commission.
func (t *Trade) NetPnL() decimal.Decimal {
	return t.RealizedPnL.Sub(t.Commission)
}
