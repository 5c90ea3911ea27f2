package analytics

import (
	"time"

	"hedgeFundSim/internal/domain"
)

// TradeStats summarizes a trade log. Every SELL is one matched round trip against the lots it
// closed; BUYs only contribute commission. Round trips are measured before commission: a win is
// a positive RealizedPnL, and the win/loss money figures and AverageTradeReturn (the mean
// ReturnPct) share that basis. Commission shows up in TotalCommission and NetProfit.
type TradeStats struct {
	TotalTrades          int     `json:"total_trades"`
	BuyTrades            int     `json:"buy_trades"`
	SellTrades           int     `json:"sell_trades"`
	WinningTrades        int     `json:"winning_trades"`
	LosingTrades         int     `json:"losing_trades"`
	WinRate              float64 `json:"win_rate"`
	AverageTradeReturn   float64 `json:"average_trade_return"`
	AverageWin           float64 `json:"average_win"`
	AverageLoss          float64 `json:"average_loss"`
	GrossProfit          float64 `json:"gross_profit"`
	GrossLoss            float64 `json:"gross_loss"`
	ProfitFactor         float64 `json:"profit_factor"` // zero when there are no losing round trips
	TotalCommission      float64 `json:"total_commission"`
	NetProfit            float64 `json:"net_profit"` // realized P&L less every commission paid
	MaxConsecutiveWins   int     `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
}

// AnalyzeTrades computes TradeStats from trades in execution order.
func AnalyzeTrades(trades []domain.Trade) TradeStats {
	var stats TradeStats
	var returns []float64
	var consecutiveWins, consecutiveLosses int

	for i := range trades {
		tr := &trades[i]
		stats.TotalTrades++
		stats.TotalCommission += tr.Commission.InexactFloat64()
		stats.NetProfit += tr.NetPnL().InexactFloat64()

		if tr.Action != domain.ActionSell {
			stats.BuyTrades++
			continue
		}
		stats.SellTrades++
		returns = append(returns, tr.ReturnPct)

		pnl := tr.RealizedPnL.InexactFloat64()
		if pnl > 0 {
			stats.WinningTrades++
			stats.GrossProfit += pnl
			consecutiveWins++
			consecutiveLosses = 0
		} else {
			stats.LosingTrades++
			stats.GrossLoss -= pnl
			consecutiveLosses++
			consecutiveWins = 0
		}
		if consecutiveWins > stats.MaxConsecutiveWins {
			stats.MaxConsecutiveWins = consecutiveWins
		}
		if consecutiveLosses > stats.MaxConsecutiveLosses {
			stats.MaxConsecutiveLosses = consecutiveLosses
		}
	}

	if stats.SellTrades > 0 {
		stats.WinRate = float64(stats.WinningTrades) / float64(stats.SellTrades)
		stats.AverageTradeReturn = Mean(returns)
	}
	if stats.WinningTrades > 0 {
		stats.AverageWin = stats.GrossProfit / float64(stats.WinningTrades)
	}
	if stats.LosingTrades > 0 {
		stats.AverageLoss = stats.GrossLoss / float64(stats.LosingTrades)
	}
	if stats.GrossLoss > 0 {
		stats.ProfitFactor = stats.GrossProfit / stats.GrossLoss
	}
	return stats
}

// Drawdown is one peak-to-recovery episode of an equity curve.
type Drawdown struct {
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time"`
	StartValue  float64       `json:"start_value"`
	TroughValue float64       `json:"trough_value"`
	Depth       float64       `json:"depth"`
	Duration    time.Duration `json:"duration"`
	Recovered   bool          `json:"recovered"`
}

// DrawdownPeriods splits a dated value series into drawdown episodes. An episode starts when the
// value falls below the running peak and ends when a new peak is made; an unfinished episode is
// reported with Recovered false.
func DrawdownPeriods(dates []time.Time, values []float64) []Drawdown {
	if len(dates) != len(values) || len(values) == 0 {
		return nil
	}

	var out []Drawdown
	var current *Drawdown
	peak := values[0]
	peakTime := dates[0]

	for i := 1; i < len(values); i++ {
		v := values[i]
		if v >= peak {
			if current != nil {
				current.EndTime = dates[i]
				current.Duration = current.EndTime.Sub(current.StartTime)
				current.Recovered = true
				out = append(out, *current)
				current = nil
			}
			peak = v
			peakTime = dates[i]
			continue
		}

		depth := 0.0
		if peak > 0 {
			depth = (peak - v) / peak
		}
		if current == nil {
			current = &Drawdown{StartTime: peakTime, StartValue: peak, TroughValue: v, Depth: depth}
			continue
		}
		if v < current.TroughValue {
			current.TroughValue = v
			current.Depth = depth
		}
	}

	if current != nil {
		current.EndTime = dates[len(dates)-1]
		current.Duration = current.EndTime.Sub(current.StartTime)
		out = append(out, *current)
	}
	return out
}
