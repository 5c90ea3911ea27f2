package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"hedgeFundSim/internal/domain"
	"hedgeFundSim/internal/ports"
)

// Repository implements the fund, lot, price, trade and backtest ports using SQLite.
// Decimals are stored as TEXT and bar dates as YYYY-MM-DD so they compare lexically.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/fundsim.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// One writer keeps SQLite from returning SQLITE_BUSY under concurrent use.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite database ready", map[string]interface{}{"path": dbPath})
	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS funds (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		cash TEXT NOT NULL,
		initial_capital TEXT NOT NULL,
		is_paper INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS lots (
		id TEXT PRIMARY KEY,
		fund_id TEXT NOT NULL REFERENCES funds(id),
		ticker TEXT NOT NULL,
		opened_at TIMESTAMP NOT NULL,
		closed_at TIMESTAMP NULL,
		quantity INTEGER NOT NULL CHECK (quantity >= 0),
		entry_price TEXT NOT NULL,
		exit_price TEXT NULL,
		status TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS price_bars (
		ticker TEXT NOT NULL,
		date TEXT NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		PRIMARY KEY (ticker, date)
	);

	CREATE TABLE IF NOT EXISTS tickers (
		ticker TEXT PRIMARY KEY,
		sector TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		fund_id TEXT NOT NULL,
		ticker TEXT NOT NULL,
		action TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price TEXT NOT NULL,
		commission TEXT NOT NULL,
		realized_pnl TEXT NOT NULL,
		return_pct REAL NOT NULL DEFAULT 0,
		executed_at TIMESTAMP NOT NULL,
		confidence REAL NOT NULL DEFAULT 0,
		rationale TEXT NOT NULL DEFAULT '',
		close_reason TEXT NULL
	);

	CREATE TABLE IF NOT EXISTS backtest_runs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		config TEXT NOT NULL,
		result TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_lots_fund_ticker_status ON lots (fund_id, ticker, status);
	CREATE INDEX IF NOT EXISTS idx_trades_fund_executed_at ON trades (fund_id, executed_at);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

func isConstraint(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}

// --- FundStore ---

// CreateFund inserts a fund. An empty ID is assigned a UUID.
func (r *Repository) CreateFund(ctx context.Context, fund *domain.Fund) error {
	if fund.ID == "" {
		fund.ID = uuid.NewString()
	}
	if fund.CreatedAt.IsZero() {
		fund.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO funds (id, name, cash, initial_capital, is_paper, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, fund.ID, fund.Name, fund.Cash, fund.InitialCapital, fund.IsPaper, fund.CreatedAt.UTC())
	if err != nil {
		if isConstraint(err) {
			return fmt.Errorf("fund %s: %w", fund.ID, ports.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert fund %s: %w", fund.ID, err)
	}
	r.logger.Debug(ctx, "Fund created", map[string]interface{}{"fundID": fund.ID, "cash": fund.Cash.StringFixed(2)})
	return nil
}

// Fund returns the fund with its open lots and every known ticker sector.
func (r *Repository) Fund(ctx context.Context, fundID string) (*domain.Fund, error) {
	const query = `SELECT id, name, cash, initial_capital, is_paper, created_at FROM funds WHERE id = ?`
	f := &domain.Fund{}
	err := r.db.QueryRowContext(ctx, query, fundID).Scan(&f.ID, &f.Name, &f.Cash, &f.InitialCapital, &f.IsPaper, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("fund %s: %w", fundID, ports.ErrFundNotFound)
		}
		return nil, fmt.Errorf("failed to query fund %s: %w", fundID, err)
	}

	f.Lots, err = r.queryLots(ctx, `WHERE fund_id = ? AND status = ?`, fundID, string(domain.LotOpen))
	if err != nil {
		return nil, err
	}
	f.Sectors, err = r.sectors(ctx)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// UpdateCash sets the cash balance of a fund.
func (r *Repository) UpdateCash(ctx context.Context, fundID string, cash decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx, `UPDATE funds SET cash = ? WHERE id = ?`, cash, fundID)
	if err != nil {
		return fmt.Errorf("failed to update cash of fund %s: %w", fundID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for fund %s: %w", fundID, err)
	}
	if n == 0 {
		return fmt.Errorf("fund %s: %w", fundID, ports.ErrFundNotFound)
	}
	return nil
}

// --- LotStore ---

// SaveLots upserts lots by ID in one transaction.
func (r *Repository) SaveLots(ctx context.Context, lots []domain.Lot) error {
	const query = `
	INSERT INTO lots (id, fund_id, ticker, opened_at, closed_at, quantity, entry_price, exit_price, status)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		closed_at = excluded.closed_at,
		quantity = excluded.quantity,
		exit_price = excluded.exit_price,
		status = excluded.status`

	return r.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare lot upsert: %w", err)
		}
		defer stmt.Close()
		for _, l := range lots {
			var closedAt sql.NullTime
			if l.ClosedAt != nil {
				closedAt = sql.NullTime{Time: l.ClosedAt.UTC(), Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, l.ID, l.FundID, l.Ticker, l.OpenedAt.UTC(), closedAt,
				l.Quantity, l.EntryPrice, l.ExitPrice, string(l.Status)); err != nil {
				if isConstraint(err) {
					return fmt.Errorf("lot %s of fund %s: %w", l.ID, l.FundID, ports.ErrFundNotFound)
				}
				return fmt.Errorf("failed to save lot %s: %w", l.ID, err)
			}
		}
		return nil
	})
}

// FindLots returns all lots of a fund and ticker, oldest first.
func (r *Repository) FindLots(ctx context.Context, fundID, ticker string) ([]domain.Lot, error) {
	return r.queryLots(ctx, `WHERE fund_id = ? AND ticker = ?`, fundID, ticker)
}

func (r *Repository) queryLots(ctx context.Context, where string, args ...interface{}) ([]domain.Lot, error) {
	query := `SELECT id, fund_id, ticker, opened_at, closed_at, quantity, entry_price, exit_price, status
	FROM lots ` + where + ` ORDER BY opened_at, rowid`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots: %w: %v", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	lots := make([]domain.Lot, 0)
	for rows.Next() {
		var l domain.Lot
		var closedAt sql.NullTime
		var status string
		if err := rows.Scan(&l.ID, &l.FundID, &l.Ticker, &l.OpenedAt, &closedAt, &l.Quantity,
			&l.EntryPrice, &l.ExitPrice, &status); err != nil {
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}
		if closedAt.Valid {
			t := closedAt.Time
			l.ClosedAt = &t
		}
		l.Status = domain.LotStatus(status)
		lots = append(lots, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lot rows: %w", err)
	}
	return lots, nil
}

// --- Prices and sectors ---

// SaveBars upserts bars by ticker and date.
func (r *Repository) SaveBars(ctx context.Context, bars []domain.PriceBar) error {
	const query = `
	INSERT INTO price_bars (ticker, date, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(ticker, date) DO UPDATE SET
		open = excluded.open, high = excluded.high, low = excluded.low,
		close = excluded.close, volume = excluded.volume`

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare bar upsert: %w", err)
		}
		defer stmt.Close()
		for _, b := range bars {
			if _, err := stmt.ExecContext(ctx, b.Ticker, b.Date.UTC().Format(time.DateOnly),
				b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
				return fmt.Errorf("failed to save bar %s %s: %w", b.Ticker, b.Date.Format(time.DateOnly), err)
			}
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO tickers (ticker) VALUES (?)`, b.Ticker); err != nil {
				return fmt.Errorf("failed to register ticker %s: %w", b.Ticker, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.logger.Debug(ctx, "Price bars saved", map[string]interface{}{"count": len(bars)})
	return nil
}

// PriceHistory returns up to minCount bars dated on or before asOf, oldest first.
func (r *Repository) PriceHistory(ctx context.Context, ticker string, asOf time.Time, minCount int) ([]domain.PriceBar, error) {
	if err := r.requireTicker(ctx, ticker); err != nil {
		return nil, err
	}
	limit := minCount
	if limit <= 0 {
		limit = -1
	}
	const query = `
	SELECT ticker, date, open, high, low, close, volume FROM (
		SELECT * FROM price_bars WHERE ticker = ? AND date <= ? ORDER BY date DESC LIMIT ?
	) ORDER BY date`
	return r.queryBars(ctx, query, ticker, asOf.UTC().Format(time.DateOnly), limit)
}

// PriceRange returns every bar of ticker dated within [from, to].
func (r *Repository) PriceRange(ctx context.Context, ticker string, from, to time.Time) ([]domain.PriceBar, error) {
	if err := r.requireTicker(ctx, ticker); err != nil {
		return nil, err
	}
	const query = `
	SELECT ticker, date, open, high, low, close, volume FROM price_bars
	WHERE ticker = ? AND date >= ? AND date <= ? ORDER BY date`
	return r.queryBars(ctx, query, ticker, from.UTC().Format(time.DateOnly), to.UTC().Format(time.DateOnly))
}

func (r *Repository) requireTicker(ctx context.Context, ticker string) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM tickers WHERE ticker = ?`, ticker).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("ticker %s: %w", ticker, ports.ErrTickerNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to look up ticker %s: %w", ticker, err)
	}
	return nil
}

func (r *Repository) queryBars(ctx context.Context, query string, args ...interface{}) ([]domain.PriceBar, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query price bars: %w: %v", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	bars := make([]domain.PriceBar, 0)
	for rows.Next() {
		var b domain.PriceBar
		var date string
		if err := rows.Scan(&b.Ticker, &date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan price bar: %w", err)
		}
		if b.Date, err = time.Parse(time.DateOnly, date); err != nil {
			return nil, fmt.Errorf("invalid bar date %q: %w", date, err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price bar rows: %w", err)
	}
	return bars, nil
}

// Tickers lists every known ticker, sorted.
func (r *Repository) Tickers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT ticker FROM tickers ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickers: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SetSector records the sector of ticker.
func (r *Repository) SetSector(ctx context.Context, ticker, sector string) error {
	const query = `INSERT INTO tickers (ticker, sector) VALUES (?, ?) ON CONFLICT(ticker) DO UPDATE SET sector = excluded.sector`
	if _, err := r.db.ExecContext(ctx, query, ticker, sector); err != nil {
		return fmt.Errorf("failed to set sector of %s: %w", ticker, err)
	}
	return nil
}

func (r *Repository) sectors(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT ticker, sector FROM tickers WHERE sector != ''`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sectors: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var t, s string
		if err := rows.Scan(&t, &s); err != nil {
			return nil, fmt.Errorf("failed to scan sector: %w", err)
		}
		out[t] = s
	}
	return out, rows.Err()
}

// --- TradeRepository ---

// CreateTrade saves a trade. An empty ID is assigned a UUID.
func (r *Repository) CreateTrade(ctx context.Context, trade *domain.Trade) error {
	if trade.ID == "" {
		trade.ID = uuid.NewString()
	}
	const query = `
	INSERT INTO trades (id, fund_id, ticker, action, quantity, price, commission, realized_pnl,
	                    return_pct, executed_at, confidence, rationale, close_reason)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var closeReason sql.NullString
	if trade.CloseReason != "" {
		closeReason = sql.NullString{String: string(trade.CloseReason), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, query, trade.ID, trade.FundID, trade.Ticker, string(trade.Action), trade.Quantity,
		trade.Price, trade.Commission, trade.RealizedPnL, trade.ReturnPct, trade.ExecutedAt.UTC(),
		trade.Confidence, trade.Rationale, closeReason)
	if err != nil {
		if isConstraint(err) {
			return fmt.Errorf("trade %s: %w", trade.ID, ports.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert trade for %s: %w", trade.Ticker, err)
	}
	r.logger.Debug(ctx, "Trade created", map[string]interface{}{"tradeID": trade.ID, "ticker": trade.Ticker, "action": trade.Action})
	return nil
}

// FindTrades retrieves the most recent trades of a fund, up to limit (0 means all).
func (r *Repository) FindTrades(ctx context.Context, fundID string, limit int) ([]*domain.Trade, error) {
	if limit <= 0 {
		limit = -1
	}
	const query = `
	SELECT id, fund_id, ticker, action, quantity, price, commission, realized_pnl, return_pct,
	       executed_at, confidence, rationale, close_reason
	FROM trades WHERE fund_id = ? ORDER BY executed_at DESC, rowid DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, fundID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades for fund %s: %w", fundID, err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade during FindTrades: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanTrade scans a row into a domain.Trade struct.
func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var action string
	var closeReason sql.NullString
	err := s.Scan(&t.ID, &t.FundID, &t.Ticker, &action, &t.Quantity, &t.Price, &t.Commission,
		&t.RealizedPnL, &t.ReturnPct, &t.ExecutedAt, &t.Confidence, &t.Rationale, &closeReason)
	if err != nil {
		return nil, err
	}
	t.Action = domain.ParseAction(action)
	if closeReason.Valid {
		t.CloseReason = domain.CloseReason(closeReason.String)
	}
	return t, nil
}

// --- BacktestRepository ---

// SaveBacktest stores a backtest run. An empty ID is assigned a UUID.
func (r *Repository) SaveBacktest(ctx context.Context, rec *ports.BacktestRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO backtest_runs (id, name, created_at, config, result) VALUES (?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, rec.ID, rec.Name, rec.CreatedAt.UTC(), string(rec.Config), string(rec.Result)); err != nil {
		if isConstraint(err) {
			return fmt.Errorf("backtest %s: %w", rec.ID, ports.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert backtest %s: %w", rec.ID, err)
	}
	return nil
}

// FindBacktest loads a stored backtest run.
func (r *Repository) FindBacktest(ctx context.Context, id string) (*ports.BacktestRecord, error) {
	const query = `SELECT id, name, created_at, config, result FROM backtest_runs WHERE id = ?`
	rec := &ports.BacktestRecord{}
	var cfg, res string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&rec.ID, &rec.Name, &rec.CreatedAt, &cfg, &res)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("backtest %s: %w", id, ports.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query backtest %s: %w", id, err)
	}
	rec.Config, rec.Result = []byte(cfg), []byte(res)
	return rec, nil
}

func (r *Repository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

var (
	_ ports.PriceHistoryProvider = (*Repository)(nil)
	_ ports.FundStore            = (*Repository)(nil)
	_ ports.LotStore             = (*Repository)(nil)
	_ ports.TradeRepository      = (*Repository)(nil)
	_ ports.BarStore             = (*Repository)(nil)
	_ ports.SectorStore          = (*Repository)(nil)
	_ ports.BacktestRepository   = (*Repository)(nil)
)
