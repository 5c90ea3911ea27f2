package backtesting

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

// WriteSummary prints a human readable report with RETURNS, RISK METRICS, TRADE STATISTICS
// and, when a benchmark was configured, BENCHMARK COMPARISON sections.
func WriteSummary(w io.Writer, r *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	m := r.Metrics
	cfg := r.Config

	fmt.Fprintf(tw, "BACKTEST %s (%s)\n", orDash(cfg.Name), r.Strategy)
	fmt.Fprintf(tw, "Period:\t%s to %s\n", cfg.StartDate.Format(time.DateOnly), cfg.EndDate.Format(time.DateOnly))
	fmt.Fprintf(tw, "Tickers:\t%s\n", strings.Join(cfg.Tickers, ", "))
	fmt.Fprintf(tw, "State:\t%s\n", r.State)

	section(tw, "RETURNS")
	fmt.Fprintf(tw, "Initial capital:\t%.2f\n", m.InitialCapital)
	fmt.Fprintf(tw, "Final value:\t%.2f\n", m.FinalValue)
	fmt.Fprintf(tw, "Total return:\t%s\n", pct(m.TotalReturn))
	fmt.Fprintf(tw, "Annualized return:\t%s\n", pct(m.AnnualizedReturn))
	fmt.Fprintf(tw, "Trading days:\t%d\n", m.TradingDays)

	section(tw, "RISK METRICS")
	fmt.Fprintf(tw, "Volatility:\t%s\n", pct(m.Volatility))
	fmt.Fprintf(tw, "Sharpe ratio:\t%.3f\n", m.SharpeRatio)
	fmt.Fprintf(tw, "Max drawdown:\t%s\n", pct(m.MaxDrawdown))
	fmt.Fprintf(tw, "Calmar ratio:\t%.3f\n", m.CalmarRatio)
	fmt.Fprintf(tw, "VaR (95%%, 1 day):\t%s\n", pct(r.Risk.VaR95))
	fmt.Fprintf(tw, "Expected shortfall:\t%s\n", pct(r.Risk.ExpectedShortfall))
	fmt.Fprintf(tw, "Max single-day loss:\t%s\n", pct(r.Risk.MaxSingleDayLoss))
	fmt.Fprintf(tw, "Downside deviation:\t%s\n", pct(r.Risk.DownsideDeviation))

	ts := m.Trades
	section(tw, "TRADE STATISTICS")
	fmt.Fprintf(tw, "Trades:\t%d (%d buys, %d sells)\n", ts.TotalTrades, ts.BuyTrades, ts.SellTrades)
	fmt.Fprintf(tw, "Win rate:\t%s\n", pct(ts.WinRate))
	fmt.Fprintf(tw, "Average trade return:\t%s\n", pct(ts.AverageTradeReturn))
	fmt.Fprintf(tw, "Profit factor:\t%.2f\n", ts.ProfitFactor)
	fmt.Fprintf(tw, "Total commission:\t%.2f\n", ts.TotalCommission)
	fmt.Fprintf(tw, "Net realized profit:\t%.2f\n", ts.NetProfit)

	if b := r.Benchmark; b != nil {
		section(tw, "BENCHMARK COMPARISON")
		fmt.Fprintf(tw, "Benchmark:\t%s\n", b.Ticker)
		fmt.Fprintf(tw, "Benchmark return:\t%s\n", pct(b.TotalReturn))
		fmt.Fprintf(tw, "Benchmark volatility:\t%s\n", pct(b.Volatility))
		fmt.Fprintf(tw, "Benchmark Sharpe:\t%.3f\n", b.SharpeRatio)
		fmt.Fprintf(tw, "Excess return:\t%s\n", pct(m.TotalReturn-b.TotalReturn))
		fmt.Fprintf(tw, "Beta:\t%.3f\n", b.Beta)
		fmt.Fprintf(tw, "Alpha:\t%s\n", pct(b.Alpha))
		fmt.Fprintf(tw, "Correlation:\t%.3f\n", b.Correlation)
	}
	return tw.Flush()
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n%s\n", title, strings.Repeat("-", len(title)))
}

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
