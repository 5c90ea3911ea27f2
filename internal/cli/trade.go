package cli

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"hedgeFundSim/internal/adapters/paperbroker"
	"hedgeFundSim/internal/adapters/sqlite"
	"hedgeFundSim/internal/app"
	"hedgeFundSim/internal/ports"
	"hedgeFundSim/internal/risk"
	"hedgeFundSim/internal/strategy"
	"hedgeFundSim/internal/strategy/strategies"
)

func (rt *runtime) riskManager(repo *sqlite.Repository) (*risk.Manager, error) {
	return risk.NewManager(rt.cfg.Risk, repo, repo, rt.logger, risk.WithClock(nowFunc))
}

// tradingService wires the engine with the configured presets, the risk manager and the paper
// broker over repo. Service logs carry the fund ID.
func (rt *runtime) tradingService(repo *sqlite.Repository, fundID string) (*app.TradingService, error) {
	rm, err := rt.riskManager(repo)
	if err != nil {
		return nil, err
	}
	log := rt.logger.With(ports.Fields{"fund_id": fundID})
	engine, err := strategy.NewEngine(repo, repo, rm, log,
		strategy.WithVolatilityWindow(rt.cfg.Risk.VolatilityWindow), strategy.WithClock(nowFunc))
	if err != nil {
		return nil, err
	}
	for _, p := range rt.cfg.StrategyPresets {
		s, err := strategies.Preset(p, rt.logger)
		if err != nil {
			return nil, err
		}
		if err := engine.Register("", s); err != nil {
			return nil, err
		}
	}
	broker, err := paperbroker.New(paperbroker.Config{
		Prices:     repo,
		Slippage:   rt.cfg.Slippage,
		Commission: rt.cfg.Commission,
		Logger:     log,
		Clock:      nowFunc,
	})
	if err != nil {
		return nil, err
	}
	return app.NewTradingService(log, engine, rm, broker, repo, repo, repo)
}

// requirePaper refuses to trade funds not flagged as paper.
func requirePaper(cmd *cobra.Command, repo *sqlite.Repository, fundID string) error {
	fund, err := repo.Fund(cmd.Context(), fundID)
	if err != nil {
		return err
	}
	if !fund.IsPaper {
		return fmt.Errorf("fund %s is live and only paper execution is available: %w", fundID, ports.ErrInvalidRequest)
	}
	return nil
}

func newAnalyzeCmd(rt *runtime) *cobra.Command {
	var (
		fundID  string
		execute bool
	)
	cmd := &cobra.Command{
		Use:   "analyze [ticker]...",
		Short: "Run the strategies for tickers and optionally paper trade the consensus",
		Long: `Analyze evaluates every configured strategy preset for each ticker against the fund's
position and prints the consensus. With --execute (or EXECUTE_TRADES=true) it first enforces stop
losses and then trades each consensus through the paper broker after risk validation.
Tickers default to TICKERS.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := rt.fundID([]string{fundID})
			if err != nil {
				return err
			}
			tickers := args
			if len(tickers) == 0 {
				tickers = rt.cfg.Tickers
			}
			if len(tickers) == 0 {
				return fmt.Errorf("no tickers given and TICKERS is empty: %w", ports.ErrInvalidRequest)
			}
			repo, err := rt.store()
			if err != nil {
				return err
			}
			execute = execute || rt.cfg.ExecuteTrades
			if execute {
				if err := requirePaper(cmd, repo, id); err != nil {
					return err
				}
			}
			svc, err := rt.tradingService(repo, id)
			if err != nil {
				return err
			}
			report, err := svc.RunOnce(cmd.Context(), id, tickers, execute)
			if err != nil {
				return err
			}
			if rt.jsonOut {
				return printJSON(cmd.OutOrStdout(), report)
			}
			return writeRunReport(cmd, report)
		},
	}
	cmd.Flags().StringVar(&fundID, "fund", "", "fund ID (defaults to FUND_ID)")
	cmd.Flags().BoolVar(&execute, "execute", false, "paper trade the consensus")
	return cmd
}

func writeRunReport(cmd *cobra.Command, r *app.RunReport) error {
	out := cmd.OutOrStdout()
	for _, s := range r.StopLosses {
		fmt.Fprintf(out, "STOP LOSS %s %d: %s %s\n", s.Ticker, s.Quantity, s.Status, s.Reason)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKER\tPRICE\tHELD\tCONSENSUS\tCONFIDENCE\tSIZE\tVOTES\t")
	for _, a := range r.Analyses {
		c := a.Consensus
		fmt.Fprintf(tw, "%s\t%.2f\t%d\t%s\t%.2f\t%d\t%d/%d\t\n", a.Ticker, a.Price, a.Position.Quantity,
			c.Action, c.AverageConfidence, c.RecommendedSize, c.Executable, c.Evaluated)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, a := range r.Analyses {
		for _, res := range a.Results {
			line := fmt.Sprintf("  %s %s: %s %.2f %s", a.Ticker, res.Strategy, res.Signal.Action, res.Signal.Confidence, res.Signal.Rationale)
			if res.Error != "" {
				line += " (" + res.Error + ")"
			}
			fmt.Fprintln(out, line)
		}
	}
	for _, e := range r.Executions {
		msg := fmt.Sprintf("%s %s %d: %s", e.Action, e.Ticker, e.Quantity, e.Status)
		if e.Trade != nil {
			msg += " at " + e.Trade.Price.StringFixed(4)
		}
		if e.Reason != "" {
			msg += " (" + e.Reason + ")"
		}
		fmt.Fprintln(out, msg)
	}
	tickers := make([]string, 0, len(r.Errors))
	for t := range r.Errors {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	for _, t := range tickers {
		fmt.Fprintf(out, "ERROR %s: %s\n", t, r.Errors[t])
	}
	return nil
}

func newRiskCmd(rt *runtime) *cobra.Command {
	var (
		ticker string
		qty    int64
		price  float64
	)
	cmd := &cobra.Command{
		Use:   "risk [fund-id]",
		Short: "Show fund risk metrics, or validate a proposed trade",
		Example: `  fundsim risk alpha
  fundsim risk alpha --ticker AAPL --qty 500 --price 187.5
  fundsim risk alpha --ticker AAPL --qty -200 --price 187.5`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := rt.fundID(args)
			if err != nil {
				return err
			}
			repo, err := rt.store()
			if err != nil {
				return err
			}
			rm, err := rt.riskManager(repo)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if ticker != "" {
				v, err := rm.ValidateTrade(cmd.Context(), id, strings.ToUpper(ticker), qty, price)
				if err != nil {
					return err
				}
				if rt.jsonOut {
					return printJSON(out, v)
				}
				if v.IsValid {
					fmt.Fprintf(out, "Trade of %d %s at %.2f passes all limits\n", qty, ticker, price)
					return nil
				}
				fmt.Fprintf(out, "Trade of %d %s at %.2f violates %d limit(s):\n", qty, ticker, price, len(v.Violations))
				for _, vi := range v.Violations {
					fmt.Fprintf(out, "  %-16s %s\n", vi.Code, vi.Message)
				}
				return nil
			}

			m, err := rm.RiskMetrics(cmd.Context(), id)
			if err != nil {
				return err
			}
			if rt.jsonOut {
				return printJSON(out, m)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "Total value:\t%.2f\t\n", m.TotalValue)
			fmt.Fprintf(tw, "Cash:\t%.2f\t\n", m.Cash)
			fmt.Fprintf(tw, "Exposure:\t%.2f\t\n", m.Exposure)
			fmt.Fprintf(tw, "Leverage:\t%.2f\t\n", m.Leverage)
			fmt.Fprintf(tw, "Total return:\t%.2f%%\t\n", m.TotalReturn*100)
			fmt.Fprintf(tw, "Volatility (ann.):\t%.2f%%\t\n", m.Volatility*100)
			fmt.Fprintf(tw, "Sharpe ratio:\t%.2f\t\n", m.SharpeRatio)
			fmt.Fprintf(tw, "Max drawdown:\t%.2f%%\t\n", m.MaxDrawdown*100)
			fmt.Fprintf(tw, "VaR (%.0f%%, 1 day):\t%.2f\t\n", m.VaRConfidence*100, m.VaR)
			fmt.Fprintf(tw, "Expected shortfall:\t%.2f\t\n", m.ExpectedShortfall)
			if err := tw.Flush(); err != nil {
				return err
			}
			if len(m.Positions) == 0 {
				return nil
			}
			fmt.Fprintln(out)
			tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TICKER\tQTY\tPRICE\tSOURCE\tVALUE\tWEIGHT\tVOL\t")
			for _, p := range m.Positions {
				fmt.Fprintf(tw, "%s\t%d\t%.2f\t%s\t%.2f\t%.1f%%\t%.1f%%\t\n", p.Ticker, p.Quantity, p.Price, p.PriceSource,
					p.MarketValue, p.Weight*100, p.Volatility*100)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&ticker, "ticker", "", "validate a trade of this ticker instead of printing metrics")
	cmd.Flags().Int64Var(&qty, "qty", 0, "shares to validate, negative for sells")
	cmd.Flags().Float64Var(&price, "price", 0, "price to validate at")
	return cmd
}

func newStopLossCmd(rt *runtime) *cobra.Command {
	var execute bool
	cmd := &cobra.Command{
		Use:   "stoploss [fund-id]",
		Short: "List positions below their stop, or sell them with --execute",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := rt.fundID(args)
			if err != nil {
				return err
			}
			repo, err := rt.store()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if execute {
				if err := requirePaper(cmd, repo, id); err != nil {
					return err
				}
				svc, err := rt.tradingService(repo, id)
				if err != nil {
					return err
				}
				execs, err := svc.EnforceStopLosses(cmd.Context(), id)
				if err != nil {
					return err
				}
				if rt.jsonOut {
					return printJSON(out, execs)
				}
				for _, e := range execs {
					fmt.Fprintf(out, "SELL %s %d: %s\n", e.Ticker, e.Quantity, e.Status)
				}
				return nil
			}

			rm, err := rt.riskManager(repo)
			if err != nil {
				return err
			}
			cands, err := rm.StopLossCandidates(cmd.Context(), id)
			if err != nil {
				return err
			}
			if rt.jsonOut {
				return printJSON(out, cands)
			}
			if len(cands) == 0 {
				fmt.Fprintln(out, "No positions below their stop")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TICKER\tQTY\tENTRY\tPRICE\tSTOP\tLOSS\t")
			for _, c := range cands {
				fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t\n", c.Ticker, c.Quantity, c.EntryPrice, c.CurrentPrice, c.StopPrice, c.UnrealizedLoss)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&execute, "execute", false, "sell the flagged positions through the paper broker")
	return cmd
}
