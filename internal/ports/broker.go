package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"hedgeFundSim/internal/domain"
)

// Fill is the execution report for an order sent to a Broker.
type Fill struct {
	Ticker     string
	Action     domain.Action
	Quantity   int64
	Price      decimal.Decimal // average fill price
	Commission decimal.Decimal
	FilledAt   time.Time
}

// Broker abstracts the venue that fills orders. Only a paper implementation exists;
// a fund's live flag is recorded but never routes to a real brokerage.
type Broker interface {
	// LastPrice returns the most recent known price for ticker.
	LastPrice(ctx context.Context, ticker string) (decimal.Decimal, error)
	// Execute fills a market order for quantity shares.
	Execute(ctx context.Context, ticker string, action domain.Action, quantity int64) (*Fill, error)
}
