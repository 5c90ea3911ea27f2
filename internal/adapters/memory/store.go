// Package memory is an in-process implementation of the provider and store ports, used by tests,
// CSV-only runs and the backtest runner.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hedgeFundSim/internal/domain"
	"hedgeFundSim/internal/ports"
)

// Store keeps funds, lots, bars, trades and backtest runs in maps guarded by one lock.
type Store struct {
	mu        sync.RWMutex
	funds     map[string]domain.Fund
	lots      map[string]map[string]domain.Lot // fund -> lot id -> lot
	bars      map[string][]domain.PriceBar     // ticker -> bars sorted by date
	sectors   map[string]string
	trades    map[string][]domain.Trade
	backtests map[string]ports.BacktestRecord
}

// New creates an empty store.
func New() *Store {
	return &Store{
		funds:     make(map[string]domain.Fund),
		lots:      make(map[string]map[string]domain.Lot),
		bars:      make(map[string][]domain.PriceBar),
		sectors:   make(map[string]string),
		trades:    make(map[string][]domain.Trade),
		backtests: make(map[string]ports.BacktestRecord),
	}
}

// SaveBars inserts bars, replacing any existing bar of the same ticker and day.
func (s *Store) SaveBars(_ context.Context, bars []domain.PriceBar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	touched := make(map[string]bool)
	for _, b := range bars {
		if b.Ticker == "" {
			return fmt.Errorf("bar without ticker on %s: %w", b.Date.Format(time.DateOnly), ports.ErrInvalidRequest)
		}
		existing := s.bars[b.Ticker]
		replaced := false
		for i := range existing {
			if domain.SameDay(existing[i].Date, b.Date) {
				existing[i] = b
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, b)
		}
		s.bars[b.Ticker] = existing
		touched[b.Ticker] = true
	}
	for ticker := range touched {
		series := s.bars[ticker]
		sort.SliceStable(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	}
	return nil
}

// Tickers lists tickers with stored bars, sorted.
func (s *Store) Tickers(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.bars))
	for t := range s.bars {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

// PriceHistory implements ports.PriceHistoryProvider.
func (s *Store) PriceHistory(_ context.Context, ticker string, asOf time.Time, minCount int) ([]domain.PriceBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	series, ok := s.bars[ticker]
	if !ok {
		return nil, fmt.Errorf("ticker %s: %w", ticker, ports.ErrTickerNotFound)
	}
	n := sort.Search(len(series), func(i int) bool { return series[i].Date.After(asOf) })
	from := 0
	if minCount > 0 && n > minCount {
		from = n - minCount
	}
	out := make([]domain.PriceBar, n-from)
	copy(out, series[from:n])
	return out, nil
}

// PriceRange implements ports.PriceHistoryProvider.
func (s *Store) PriceRange(_ context.Context, ticker string, from, to time.Time) ([]domain.PriceBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	series, ok := s.bars[ticker]
	if !ok {
		return nil, fmt.Errorf("ticker %s: %w", ticker, ports.ErrTickerNotFound)
	}
	var out []domain.PriceBar
	for _, b := range series {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

// SetSector implements ports.SectorStore.
func (s *Store) SetSector(_ context.Context, ticker, sector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sectors[ticker] = sector
	return nil
}

// CreateFund implements ports.FundStore. An empty ID is assigned a UUID.
func (s *Store) CreateFund(_ context.Context, fund *domain.Fund) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fund.ID == "" {
		fund.ID = uuid.NewString()
	}
	if _, ok := s.funds[fund.ID]; ok {
		return fmt.Errorf("fund %s: %w", fund.ID, ports.ErrDuplicateEntry)
	}
	if fund.CreatedAt.IsZero() {
		fund.CreatedAt = time.Now().UTC()
	}
	stored := *fund
	stored.Lots = nil
	stored.Sectors = nil
	s.funds[fund.ID] = stored
	s.lots[fund.ID] = make(map[string]domain.Lot)
	return nil
}

// Fund implements ports.FundProvider. The snapshot carries open lots and known sectors.
func (s *Store) Fund(_ context.Context, fundID string) (*domain.Fund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.funds[fundID]
	if !ok {
		return nil, fmt.Errorf("fund %s: %w", fundID, ports.ErrFundNotFound)
	}
	for _, l := range s.lots[fundID] {
		if l.IsOpen() {
			f.Lots = append(f.Lots, l)
		}
	}
	sortLots(f.Lots)
	f.Sectors = make(map[string]string, len(s.sectors))
	for k, v := range s.sectors {
		f.Sectors[k] = v
	}
	return &f, nil
}

// UpdateCash implements ports.FundStore.
func (s *Store) UpdateCash(_ context.Context, fundID string, cash decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.funds[fundID]
	if !ok {
		return fmt.Errorf("fund %s: %w", fundID, ports.ErrFundNotFound)
	}
	f.Cash = cash
	s.funds[fundID] = f
	return nil
}

// SaveLots implements ports.LotStore.
func (s *Store) SaveLots(_ context.Context, lots []domain.Lot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range lots {
		book, ok := s.lots[l.FundID]
		if !ok {
			return fmt.Errorf("lot %s: fund %s: %w", l.ID, l.FundID, ports.ErrFundNotFound)
		}
		book[l.ID] = l
	}
	return nil
}

// FindLots implements ports.LotStore.
func (s *Store) FindLots(_ context.Context, fundID, ticker string) ([]domain.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Lot
	for _, l := range s.lots[fundID] {
		if l.Ticker == ticker {
			out = append(out, l)
		}
	}
	sortLots(out)
	return out, nil
}

func sortLots(lots []domain.Lot) {
	sort.SliceStable(lots, func(i, j int) bool {
		if !lots[i].OpenedAt.Equal(lots[j].OpenedAt) {
			return lots[i].OpenedAt.Before(lots[j].OpenedAt)
		}
		return lots[i].ID < lots[j].ID
	})
}

// CreateTrade implements ports.TradeRepository.
func (s *Store) CreateTrade(_ context.Context, trade *domain.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if trade.ID == "" {
		trade.ID = uuid.NewString()
	}
	s.trades[trade.FundID] = append(s.trades[trade.FundID], *trade)
	return nil
}

// FindTrades returns the most recent trades of a fund first, up to limit (0 means all).
func (s *Store) FindTrades(_ context.Context, fundID string, limit int) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.trades[fundID]
	out := make([]*domain.Trade, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		tr := all[i]
		out = append(out, &tr)
	}
	return out, nil
}

// SaveBacktest implements ports.BacktestRepository.
func (s *Store) SaveBacktest(_ context.Context, rec *ports.BacktestRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	s.backtests[rec.ID] = *rec
	return nil
}

// FindBacktest implements ports.BacktestRepository.
func (s *Store) FindBacktest(_ context.Context, id string) (*ports.BacktestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.backtests[id]
	if !ok {
		return nil, fmt.Errorf("backtest %s: %w", id, ports.ErrNotFound)
	}
	return &rec, nil
}

var (
	_ ports.PriceHistoryProvider = (*Store)(nil)
	_ ports.FundStore            = (*Store)(nil)
	_ ports.LotStore             = (*Store)(nil)
	_ ports.TradeRepository      = (*Store)(nil)
	_ ports.BarStore             = (*Store)(nil)
	_ ports.SectorStore          = (*Store)(nil)
	_ ports.BacktestRepository   = (*Store)(nil)
)
