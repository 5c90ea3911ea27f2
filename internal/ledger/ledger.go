// Package ledger keeps FIFO-ordered stock lots per fund and ticker.
package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hedgeFundSim/internal/domain"
	"hedgeFundSim/internal/ports"
)

// Ledger holds lots for any number of funds. Writes for one fund are serialized by that fund's
// book lock, so the availability check and the mutation of a close are atomic.
type Ledger struct {
	mu    sync.Mutex
	books map[string]*book
	newID func() string
}

type book struct {
	mu   sync.Mutex
	lots map[string][]*domain.Lot // ticker -> lots in insertion order, open and closed
	seq  map[*domain.Lot]int      // insertion order for FIFO ties
	next int
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithIDGenerator replaces the default UUID lot IDs. Backtests use it for deterministic output.
func WithIDGenerator(gen func() string) Option {
	return func(l *Ledger) {
		if gen != nil {
			l.newID = gen
		}
	}
}

// New creates an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		books: make(map[string]*book),
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CloseResult describes one FIFO sell.
type CloseResult struct {
	Closed         []domain.ClosedLot
	Changed        []domain.Lot // lot records to persist: reduced or closed originals and new closed splits
	RealizedPnL    decimal.Decimal
	RealizedPnLPct decimal.Decimal
}

func (l *Ledger) book(fundID string) *book {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.books[fundID]
	if !ok {
		b = &book{lots: make(map[string][]*domain.Lot), seq: make(map[*domain.Lot]int)}
		l.books[fundID] = b
	}
	return b
}

func (b *book) add(lot *domain.Lot) {
	b.lots[lot.Ticker] = append(b.lots[lot.Ticker], lot)
	b.seq[lot] = b.next
	b.next++
}

// Load replaces the book of fundID with the given lots, typically a fund provider snapshot.
func (l *Ledger) Load(fundID string, lots []domain.Lot) {
	b := l.book(fundID)
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lots = make(map[string][]*domain.Lot)
	b.seq = make(map[*domain.Lot]int)
	b.next = 0
	for i := range lots {
		lot := lots[i]
		lot.FundID = fundID
		b.add(&lot)
	}
}

// OpenLot records a buy of quantity shares at price.
func (l *Ledger) OpenLot(fundID, ticker string, quantity int64, price decimal.Decimal, ts time.Time) (domain.Lot, error) {
	if quantity <= 0 {
		return domain.Lot{}, fmt.Errorf("open lot %s/%s with quantity %d: %w", fundID, ticker, quantity, ports.ErrInvalidQuantity)
	}
	if !price.IsPositive() {
		return domain.Lot{}, fmt.Errorf("open lot %s/%s at price %s: %w", fundID, ticker, price, ports.ErrInvalidPrice)
	}

	lot := &domain.Lot{
		ID:         l.newID(),
		FundID:     fundID,
		Ticker:     ticker,
		OpenedAt:   ts,
		Quantity:   quantity,
		EntryPrice: price,
		Status:     domain.LotOpen,
	}

	b := l.book(fundID)
	b.mu.Lock()
	b.add(lot)
	b.mu.Unlock()
	return *lot, nil
}

// AvailableQuantity sums open lot quantities; zero when nothing is held.
func (l *Ledger) AvailableQuantity(fundID, ticker string) int64 {
	b := l.book(fundID)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.available(ticker)
}

func (b *book) available(ticker string) int64 {
	var total int64
	for _, lot := range b.lots[ticker] {
		if lot.IsOpen() {
			total += lot.Quantity
		}
	}
	return total
}

// openFIFO returns open lots of ticker oldest first, ties broken by insertion order.
func (b *book) openFIFO(ticker string) []*domain.Lot {
	var open []*domain.Lot
	for _, lot := range b.lots[ticker] {
		if lot.IsOpen() {
			open = append(open, lot)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		if !open[i].OpenedAt.Equal(open[j].OpenedAt) {
			return open[i].OpenedAt.Before(open[j].OpenedAt)
		}
		return b.seq[open[i]] < b.seq[open[j]]
	})
	return open
}

// CloseFIFO sells quantity shares against the oldest open lots. A lot larger than the remaining
// quantity is split: the original stays OPEN with the reduced quantity and a new CLOSED lot
// records the sold part. Nothing is mutated when inventory is insufficient.
func (l *Ledger) CloseFIFO(fundID, ticker string, quantity int64, exitPrice decimal.Decimal, ts time.Time) (*CloseResult, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("close %s/%s with quantity %d: %w", fundID, ticker, quantity, ports.ErrInvalidQuantity)
	}
	if !exitPrice.IsPositive() {
		return nil, fmt.Errorf("close %s/%s at price %s: %w", fundID, ticker, exitPrice, ports.ErrInvalidPrice)
	}

	b := l.book(fundID)
	b.mu.Lock()
	defer b.mu.Unlock()

	available := b.available(ticker)
	if quantity > available {
		return nil, fmt.Errorf("close %d of %s in fund %s, only %d available: %w",
			quantity, ticker, fundID, available, ports.ErrInsufficientInventory)
	}

	res := &CloseResult{}
	remaining := quantity
	closedAt := ts
	for _, lot := range b.openFIFO(ticker) {
		if remaining == 0 {
			break
		}
		if lot.Quantity <= 0 {
			panic(fmt.Sprintf("ledger: open lot %s has non-positive quantity %d", lot.ID, lot.Quantity))
		}

		if lot.Quantity <= remaining {
			remaining -= lot.Quantity
			lot.Status = domain.LotClosed
			lot.ExitPrice = decimal.NewNullDecimal(exitPrice)
			lot.ClosedAt = &closedAt
			res.Closed = append(res.Closed, domain.ClosedLot{
				LotID: lot.ID, Quantity: lot.Quantity, EntryPrice: lot.EntryPrice, OpenedAt: lot.OpenedAt,
			})
			res.Changed = append(res.Changed, *lot)
			continue
		}

		lot.Quantity -= remaining
		split := &domain.Lot{
			ID:         l.newID(),
			FundID:     fundID,
			Ticker:     ticker,
			OpenedAt:   lot.OpenedAt,
			ClosedAt:   &closedAt,
			Quantity:   remaining,
			EntryPrice: lot.EntryPrice,
			ExitPrice:  decimal.NewNullDecimal(exitPrice),
			Status:     domain.LotClosed,
		}
		b.add(split)
		res.Closed = append(res.Closed, domain.ClosedLot{
			LotID: split.ID, Quantity: split.Quantity, EntryPrice: split.EntryPrice, OpenedAt: split.OpenedAt,
		})
		res.Changed = append(res.Changed, *lot, *split)
		remaining = 0
	}
	if remaining != 0 {
		panic(fmt.Sprintf("ledger: %d shares of %s left unfilled after availability check", remaining, ticker))
	}

	res.RealizedPnL, res.RealizedPnLPct = domain.RealizedPnL(res.Closed, exitPrice)
	return res, nil
}

// PositionSummary aggregates the open lots of ticker at currentPrice.
func (l *Ledger) PositionSummary(fundID, ticker string, currentPrice decimal.Decimal) domain.Position {
	return domain.SummarizePosition(ticker, l.OpenLots(fundID, ticker), currentPrice)
}

// OpenLots returns copies of the open lots of ticker, oldest first.
func (l *Ledger) OpenLots(fundID, ticker string) []domain.Lot {
	b := l.book(fundID)
	b.mu.Lock()
	defer b.mu.Unlock()

	open := b.openFIFO(ticker)
	out := make([]domain.Lot, len(open))
	for i, lot := range open {
		out[i] = *lot
	}
	return out
}

// Lots returns copies of every lot of ticker, open and closed, in insertion order.
func (l *Ledger) Lots(fundID, ticker string) []domain.Lot {
	b := l.book(fundID)
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]domain.Lot, len(b.lots[ticker]))
	for i, lot := range b.lots[ticker] {
		out[i] = *lot
	}
	return out
}

// Tickers lists tickers with open quantity in fundID, sorted.
func (l *Ledger) Tickers(fundID string) []string {
	b := l.book(fundID)
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []string
	for ticker := range b.lots {
		if b.available(ticker) > 0 {
			out = append(out, ticker)
		}
	}
	sort.Strings(out)
	return out
}
