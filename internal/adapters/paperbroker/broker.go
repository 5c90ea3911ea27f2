// Package paperbroker fills orders against stored daily bars. It backs funds flagged IsPaper; no
// order leaves the process.
package paperbroker

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"hedgeFundSim/internal/domain"
	"hedgeFundSim/internal/ports"
)

// Broker implements ports.Broker by filling at the latest close adjusted for slippage.
type Broker struct {
	prices     ports.PriceHistoryProvider
	slippage   decimal.Decimal
	commission decimal.Decimal
	logger     ports.Logger
	now        func() time.Time
}

// Config holds configuration specific to the paper broker.
type Config struct {
	Prices     ports.PriceHistoryProvider
	Slippage   float64 // fraction of price, adverse to the order side
	Commission float64 // flat fee per fill
	Logger     ports.Logger
	Clock      func() time.Time
}

// New creates a new paper broker.
func New(cfg Config) (*Broker, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for paper broker")
	}
	if cfg.Prices == nil {
		return nil, fmt.Errorf("price provider is required for paper broker")
	}
	if cfg.Slippage < 0 || cfg.Slippage >= 1 {
		return nil, fmt.Errorf("slippage must be within [0,1), got %f: %w", cfg.Slippage, ports.ErrConfigurationError)
	}
	if cfg.Commission < 0 {
		return nil, fmt.Errorf("commission must not be negative, got %f: %w", cfg.Commission, ports.ErrConfigurationError)
	}
	b := &Broker{
		prices:     cfg.Prices,
		slippage:   decimal.NewFromFloat(cfg.Slippage),
		commission: decimal.NewFromFloat(cfg.Commission),
		logger:     cfg.Logger,
		now:        time.Now,
	}
	if cfg.Clock != nil {
		b.now = cfg.Clock
	}
	return b, nil
}

// LastPrice returns the close of the most recent bar on or before now.
func (b *Broker) LastPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	bars, err := b.prices.PriceHistory(ctx, ticker, b.now(), 1)
	if err != nil {
		return decimal.Zero, fmt.Errorf("last price of %s: %w", ticker, err)
	}
	if len(bars) == 0 {
		return decimal.Zero, fmt.Errorf("last price of %s: %w", ticker, ports.ErrInsufficientData)
	}
	return decimal.NewFromFloat(bars[len(bars)-1].Close), nil
}

// Execute fills quantity shares at the last price, moved against the order by the slippage
// fraction and rounded to 4 places.
func (b *Broker) Execute(ctx context.Context, ticker string, action domain.Action, quantity int64) (*ports.Fill, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("execute %s %s x%d: %w", action, ticker, quantity, ports.ErrInvalidQuantity)
	}
	var factor decimal.Decimal
	switch action {
	case domain.ActionBuy:
		factor = decimal.NewFromInt(1).Add(b.slippage)
	case domain.ActionSell:
		factor = decimal.NewFromInt(1).Sub(b.slippage)
	default:
		return nil, fmt.Errorf("execute %s %s: %w", action, ticker, ports.ErrInvalidRequest)
	}

	last, err := b.LastPrice(ctx, ticker)
	if err != nil {
		return nil, err
	}
	fill := &ports.Fill{
		Ticker:     ticker,
		Action:     action,
		Quantity:   quantity,
		Price:      last.Mul(factor).Round(4),
		Commission: b.commission,
		FilledAt:   b.now(),
	}
	if !fill.Price.IsPositive() {
		return nil, fmt.Errorf("execute %s %s at %s: %w", action, ticker, fill.Price, ports.ErrInvalidPrice)
	}

	b.logger.Info(ctx, "Paper order filled", map[string]interface{}{
		"ticker":   ticker,
		"action":   action,
		"quantity": quantity,
		"price":    fill.Price.StringFixed(4),
	})
	return fill, nil
}

var _ ports.Broker = (*Broker)(nil)
