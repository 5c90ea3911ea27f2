package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"hedgeFundSim/internal/domain"
	"hedgeFundSim/internal/ledger"
	"hedgeFundSim/internal/ports"
	"hedgeFundSim/internal/risk"
	"hedgeFundSim/internal/strategy"
)

// ExecutionStatus is the outcome of acting on one decision.
type ExecutionStatus string

const (
	StatusExecuted ExecutionStatus = "EXECUTED"
	StatusSkipped  ExecutionStatus = "SKIPPED"
	StatusRejected ExecutionStatus = "REJECTED"
)

// Execution describes what the service did with a consensus or a stop-loss candidate.
type Execution struct {
	FundID     string           `json:"fund_id"`
	Ticker     string           `json:"ticker"`
	Action     domain.Action    `json:"action"`
	Quantity   int64            `json:"quantity"`
	Status     ExecutionStatus  `json:"status"`
	Reason     string           `json:"reason,omitempty"`
	Violations []risk.Violation `json:"violations,omitempty"`
	Trade      *domain.Trade    `json:"trade,omitempty"`
}

// RunReport collects one pass over a fund's tickers.
type RunReport struct {
	FundID     string                      `json:"fund_id"`
	StopLosses []*Execution                `json:"stop_losses,omitempty"`
	Analyses   []*strategy.PortfolioResult `json:"analyses"`
	Executions []*Execution                `json:"executions,omitempty"`
	Errors     map[string]string           `json:"errors,omitempty"` // ticker -> error
}

// TradingService runs the analyse-then-execute cycle for a fund. Scheduling is left to the caller.
type TradingService struct {
	logger ports.Logger
	engine *strategy.Engine
	risk   *risk.Manager
	broker ports.Broker
	funds  ports.FundStore
	lots   ports.LotStore
	trades ports.TradeRepository
	ledger *ledger.Ledger

	mu sync.Mutex // serializes executions so the fund snapshot, ledger and stores agree
}

// NewTradingService creates a new application service instance.
func NewTradingService(
	logger ports.Logger,
	engine *strategy.Engine,
	riskManager *risk.Manager,
	broker ports.Broker,
	funds ports.FundStore,
	lots ports.LotStore,
	trades ports.TradeRepository,
) (*TradingService, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for trading service")
	}
	if engine == nil || riskManager == nil || broker == nil || funds == nil || lots == nil || trades == nil {
		return nil, fmt.Errorf("missing required dependencies for TradingService")
	}
	return &TradingService{
		logger: logger,
		engine: engine,
		risk:   riskManager,
		broker: broker,
		funds:  funds,
		lots:   lots,
		trades: trades,
		ledger: ledger.New(),
	}, nil
}

// AnalyzeTicker evaluates the registered strategies for one ticker without trading.
func (s *TradingService) AnalyzeTicker(ctx context.Context, fundID, ticker string) (*strategy.PortfolioResult, error) {
	return s.engine.RunAll(ctx, fundID, ticker)
}

// RunOnce enforces stop losses, then analyses every ticker and, when execute is set, acts on each
// consensus. Per-ticker failures are reported and do not stop the pass; a missing fund does.
func (s *TradingService) RunOnce(ctx context.Context, fundID string, tickers []string, execute bool) (*RunReport, error) {
	if _, err := s.funds.Fund(ctx, fundID); err != nil {
		return nil, fmt.Errorf("run fund %s: %w", fundID, err)
	}
	report := &RunReport{FundID: fundID, Analyses: []*strategy.PortfolioResult{}, Errors: map[string]string{}}

	if execute {
		stops, err := s.EnforceStopLosses(ctx, fundID)
		if err != nil {
			return nil, err
		}
		report.StopLosses = stops
	}

	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := s.AnalyzeTicker(ctx, fundID, ticker)
		if err != nil {
			s.logger.Warn(ctx, "Ticker analysis failed", map[string]interface{}{"fundID": fundID, "ticker": ticker, "error": err.Error()})
			report.Errors[ticker] = err.Error()
			continue
		}
		report.Analyses = append(report.Analyses, res)
		if !execute {
			continue
		}
		exec, err := s.ExecuteConsensus(ctx, res)
		if err != nil {
			s.logger.Error(ctx, err, "Consensus execution failed", map[string]interface{}{"fundID": fundID, "ticker": ticker})
			report.Errors[ticker] = err.Error()
			continue
		}
		report.Executions = append(report.Executions, exec)
	}

	s.logger.Info(ctx, "Fund pass complete", map[string]interface{}{
		"fundID":     fundID,
		"tickers":    len(tickers),
		"executions": len(report.Executions),
		"stopLosses": len(report.StopLosses),
		"errors":     len(report.Errors),
	})
	return report, nil
}

// ExecuteConsensus trades the consensus of res. Buys must pass risk validation first; sells are
// bounded by the quantity held. A HOLD or zero-size consensus is skipped.
func (s *TradingService) ExecuteConsensus(ctx context.Context, res *strategy.PortfolioResult) (*Execution, error) {
	if res == nil {
		return nil, fmt.Errorf("nil portfolio result: %w", ports.ErrInvalidRequest)
	}
	c := res.Consensus
	exec := &Execution{FundID: res.FundID, Ticker: res.Ticker, Action: c.Action, Quantity: c.RecommendedSize}
	if c.Action == domain.ActionHold || c.RecommendedSize <= 0 {
		exec.Status, exec.Reason = StatusSkipped, "no actionable consensus"
		return exec, nil
	}
	rationale := fmt.Sprintf("consensus %s from %d of %d strategies, avg confidence %.2f",
		c.Action, c.Executable, c.Evaluated, c.AverageConfidence)

	switch c.Action {
	case domain.ActionBuy:
		v, err := s.risk.ValidateTrade(ctx, res.FundID, res.Ticker, c.RecommendedSize, res.Price)
		if err != nil {
			return nil, err
		}
		if !v.IsValid {
			exec.Status, exec.Violations = StatusRejected, v.Violations
			exec.Reason = strings.Join(v.Messages(), "; ")
			return exec, nil
		}
		return s.buy(ctx, exec, c.AverageConfidence, rationale)
	default:
		return s.sell(ctx, exec, c.AverageConfidence, rationale, domain.CloseReasonSignal)
	}
}

// EnforceStopLosses sells every position the risk manager flags as below its stop.
func (s *TradingService) EnforceStopLosses(ctx context.Context, fundID string) ([]*Execution, error) {
	candidates, err := s.risk.StopLossCandidates(ctx, fundID)
	if err != nil {
		return nil, err
	}
	out := make([]*Execution, 0, len(candidates))
	for _, c := range candidates {
		exec := &Execution{FundID: fundID, Ticker: c.Ticker, Action: domain.ActionSell, Quantity: c.Quantity}
		rationale := fmt.Sprintf("price %.2f below stop %.2f", c.CurrentPrice, c.StopPrice)
		done, err := s.sell(ctx, exec, 1, rationale, domain.CloseReasonStopLoss)
		if err != nil {
			return out, fmt.Errorf("stop loss for %s: %w", c.Ticker, err)
		}
		out = append(out, done)
	}
	return out, nil
}

func (s *TradingService) buy(ctx context.Context, exec *Execution, confidence float64, rationale string) (*Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fund, err := s.funds.Fund(ctx, exec.FundID)
	if err != nil {
		return nil, err
	}
	fill, err := s.broker.Execute(ctx, exec.Ticker, domain.ActionBuy, exec.Quantity)
	if err != nil {
		return nil, fmt.Errorf("buy %d %s: %w", exec.Quantity, exec.Ticker, err)
	}
	cost := fill.Price.Mul(decimal.NewFromInt(fill.Quantity)).Add(fill.Commission)
	if cost.GreaterThan(fund.Cash) {
		exec.Status = StatusRejected
		exec.Reason = fmt.Sprintf("cost %s exceeds cash %s", cost.StringFixed(2), fund.Cash.StringFixed(2))
		return exec, nil
	}

	s.ledger.Load(fund.ID, fund.Lots)
	lot, err := s.ledger.OpenLot(fund.ID, exec.Ticker, fill.Quantity, fill.Price, fill.FilledAt)
	if err != nil {
		return nil, err
	}
	if err := s.lots.SaveLots(ctx, []domain.Lot{lot}); err != nil {
		return nil, fmt.Errorf("save lot for %s: %w", exec.Ticker, err)
	}
	if err := s.funds.UpdateCash(ctx, fund.ID, fund.Cash.Sub(cost)); err != nil {
		return nil, fmt.Errorf("update cash after buying %s: %w", exec.Ticker, err)
	}

	trade := &domain.Trade{
		FundID:      fund.ID,
		Ticker:      exec.Ticker,
		Action:      domain.ActionBuy,
		Quantity:    fill.Quantity,
		Price:       fill.Price,
		Commission:  fill.Commission,
		RealizedPnL: decimal.Zero,
		ExecutedAt:  fill.FilledAt,
		Confidence:  confidence,
		Rationale:   rationale,
	}
	return s.record(ctx, exec, trade)
}

func (s *TradingService) sell(ctx context.Context, exec *Execution, confidence float64, rationale string, reason domain.CloseReason) (*Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fund, err := s.funds.Fund(ctx, exec.FundID)
	if err != nil {
		return nil, err
	}
	s.ledger.Load(fund.ID, fund.Lots)
	if held := s.ledger.AvailableQuantity(fund.ID, exec.Ticker); held < exec.Quantity {
		exec.Quantity = held
	}
	if exec.Quantity <= 0 {
		exec.Status, exec.Reason = StatusSkipped, "nothing held to sell"
		return exec, nil
	}

	fill, err := s.broker.Execute(ctx, exec.Ticker, domain.ActionSell, exec.Quantity)
	if err != nil {
		return nil, fmt.Errorf("sell %d %s: %w", exec.Quantity, exec.Ticker, err)
	}
	closed, err := s.ledger.CloseFIFO(fund.ID, exec.Ticker, fill.Quantity, fill.Price, fill.FilledAt)
	if err != nil {
		if errors.Is(err, ports.ErrInsufficientInventory) {
			s.logger.Warn(ctx, "Inventory changed during sell", map[string]interface{}{"ticker": exec.Ticker})
		}
		return nil, err
	}
	if err := s.lots.SaveLots(ctx, closed.Changed); err != nil {
		return nil, fmt.Errorf("save lots for %s: %w", exec.Ticker, err)
	}
	proceeds := fill.Price.Mul(decimal.NewFromInt(fill.Quantity)).Sub(fill.Commission)
	if err := s.funds.UpdateCash(ctx, fund.ID, fund.Cash.Add(proceeds)); err != nil {
		return nil, fmt.Errorf("update cash after selling %s: %w", exec.Ticker, err)
	}

	trade := &domain.Trade{
		FundID:      fund.ID,
		Ticker:      exec.Ticker,
		Action:      domain.ActionSell,
		Quantity:    fill.Quantity,
		Price:       fill.Price,
		Commission:  fill.Commission,
		RealizedPnL: closed.RealizedPnL,
		ReturnPct:   closed.RealizedPnLPct.InexactFloat64(),
		ExecutedAt:  fill.FilledAt,
		Confidence:  confidence,
		Rationale:   rationale,
		CloseReason: reason,
	}
	return s.record(ctx, exec, trade)
}

func (s *TradingService) record(ctx context.Context, exec *Execution, trade *domain.Trade) (*Execution, error) {
	if err := s.trades.CreateTrade(ctx, trade); err != nil {
		return nil, fmt.Errorf("record trade for %s: %w", trade.Ticker, err)
	}
	exec.Status, exec.Trade = StatusExecuted, trade
	s.logger.Info(ctx, "Trade executed", map[string]interface{}{
		"fundID":      trade.FundID,
		"ticker":      trade.Ticker,
		"action":      trade.Action,
		"quantity":    trade.Quantity,
		"price":       trade.Price.StringFixed(4),
		"realizedPnL": trade.RealizedPnL.StringFixed(2),
	})
	return exec, nil
}
