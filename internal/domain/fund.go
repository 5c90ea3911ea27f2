package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Fund is a snapshot of a fund's cash and lots as returned by a fund provider.
type Fund struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Cash           decimal.Decimal   `json:"cash"`
	InitialCapital decimal.Decimal   `json:"initial_capital"`
	IsPaper        bool              `json:"is_paper"`
	CreatedAt      time.Time         `json:"created_at"`
	Lots           []Lot             `json:"lots"`
	Sectors        map[string]string `json:"sectors,omitempty"` // ticker -> sector
}

// OpenTickers lists tickers with at least one open lot, sorted.
func (f *Fund) OpenTickers() []string {
	seen := make(map[string]struct{})
	for i := range f.Lots {
		if f.Lots[i].IsOpen() && f.Lots[i].Quantity > 0 {
			seen[f.Lots[i].Ticker] = struct{}{}
		}
	}
	tickers := make([]string, 0, len(seen))
	for t := range seen {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers
}

// LotsFor returns the lots of one ticker.
func (f *Fund) LotsFor(ticker string) []Lot {
	var out []Lot
	for _, l := range f.Lots {
		if l.Ticker == ticker {
			out = append(out, l)
		}
	}
	return out
}

// SectorOf returns the sector recorded for ticker, or "" if unknown.
func (f *Fund) SectorOf(ticker string) string {
	if f.Sectors == nil {
		return ""
	}
	return f.Sectors[ticker]
}
