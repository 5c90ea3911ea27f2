package domain

import "github.com/shopspring/decimal"

// Position is the aggregate view of a ticker's open lots. It is derived on demand and never stored.
type Position struct {
	Ticker           string          `json:"ticker"`
	Quantity         int64           `json:"quantity"`
	AvgEntryPrice    decimal.Decimal `json:"avg_entry_price"`
	CostBasis        decimal.Decimal `json:"cost_basis"`
	CurrentPrice     decimal.Decimal `json:"current_price"`
	CurrentValue     decimal.Decimal `json:"current_value"`
	UnrealizedPnL    decimal.Decimal `json:"unrealized_pnl"`
	UnrealizedPnLPct decimal.Decimal `json:"unrealized_pnl_pct"`
}

// IsFlat reports whether no shares are held.
func (p Position) IsFlat() bool {
	return p.Quantity == 0
}

// SummarizePosition aggregates the open lots of one ticker at the given price.
// Closed lots and lots for other tickers are ignored. A flat position has zero value and P&L.
func SummarizePosition(ticker string, lots []Lot, price decimal.Decimal) Position {
	pos := Position{
		Ticker:           ticker,
		AvgEntryPrice:    decimal.Zero,
		CostBasis:        decimal.Zero,
		CurrentPrice:     price,
		CurrentValue:     decimal.Zero,
		UnrealizedPnL:    decimal.Zero,
		UnrealizedPnLPct: decimal.Zero,
	}
	for i := range lots {
		l := &lots[i]
		if l.Ticker != ticker || !l.IsOpen() {
			continue
		}
		pos.Quantity += l.Quantity
		pos.CostBasis = pos.CostBasis.Add(l.CostBasis())
	}
	if pos.Quantity == 0 {
		return pos
	}

	qty := decimal.NewFromInt(pos.Quantity)
	pos.AvgEntryPrice = pos.CostBasis.Div(qty)
	pos.CurrentValue = price.Mul(qty)
	pos.UnrealizedPnL = pos.CurrentValue.Sub(pos.CostBasis)
	if !pos.CostBasis.IsZero() {
		pos.UnrealizedPnLPct = pos.UnrealizedPnL.Div(pos.CostBasis)
	}
	return pos
}
