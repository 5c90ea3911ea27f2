package ports

import (
	"context"

	"hedgeFundSim/internal/domain"
)

// Strategy defines the capability shared by all trading strategy variants.
type Strategy interface {
	// Name returns the name of the strategy.
	Name() string

	// RequiredDataPoints returns the minimum number of bars needed for Analyze.
	RequiredDataPoints() int

	// MinConfidence is the floor below which signals are not executed.
	MinConfidence() float64

	// MaxPositionFraction caps the fraction of capital a single buy may use.
	MaxPositionFraction() float64

	// Analyze evaluates the price history (oldest first) against the current position.
	Analyze(ctx context.Context, ticker string, history []domain.PriceBar, position domain.Position) (domain.TradeSignal, error)
}
