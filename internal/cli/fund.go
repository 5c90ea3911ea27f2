package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"hedgeFundSim/internal/domain"
	"hedgeFundSim/internal/ports"
)

func newFundCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fund",
		Short: "Create and inspect funds",
	}
	cmd.AddCommand(newFundCreateCmd(rt), newFundShowCmd(rt))
	return cmd
}

func newFundCreateCmd(rt *runtime) *cobra.Command {
	var (
		id   string
		name string
		cash float64
		live bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a fund with starting cash",
		Example: `  fundsim fund create --name alpha --cash 1000000
  fundsim fund create --id beta --name beta --cash 250000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cash <= 0 {
				return fmt.Errorf("--cash must be positive: %w", ports.ErrInvalidRequest)
			}
			repo, err := rt.store()
			if err != nil {
				return err
			}
			capital := decimal.NewFromFloat(cash)
			fund := &domain.Fund{ID: id, Name: name, Cash: capital, InitialCapital: capital, IsPaper: !live}
			if err := repo.CreateFund(cmd.Context(), fund); err != nil {
				return err
			}
			if rt.jsonOut {
				return printJSON(cmd.OutOrStdout(), fund)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created fund %s (%s) with %s cash\n", fund.ID, fund.Name, capital.StringFixed(2))
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "fund ID (random UUID when empty)")
	cmd.Flags().StringVar(&name, "name", "fund", "fund name")
	cmd.Flags().Float64Var(&cash, "cash", 1_000_000, "starting cash")
	cmd.Flags().BoolVar(&live, "live", false, "mark the fund as live; live funds are never paper traded")
	return cmd
}

// fundView is a fund with its positions marked to the latest close.
type fundView struct {
	Fund      *domain.Fund      `json:"fund"`
	Positions []domain.Position `json:"positions"`
	Trades    []*domain.Trade   `json:"recent_trades"`
}

func newFundShowCmd(rt *runtime) *cobra.Command {
	var trades int
	cmd := &cobra.Command{
		Use:   "show [fund-id]",
		Short: "Show cash, positions and recent trades",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fundID, err := rt.fundID(args)
			if err != nil {
				return err
			}
			repo, err := rt.store()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			fund, err := repo.Fund(ctx, fundID)
			if err != nil {
				return err
			}
			view := fundView{Fund: fund, Positions: []domain.Position{}}
			for _, t := range fund.OpenTickers() {
				price, err := lastClose(ctx, repo, t)
				if err != nil {
					return err
				}
				view.Positions = append(view.Positions, domain.SummarizePosition(t, fund.Lots, price))
			}
			if view.Trades, err = repo.FindTrades(ctx, fundID, trades); err != nil {
				return err
			}
			if rt.jsonOut {
				return printJSON(cmd.OutOrStdout(), view)
			}
			return writeFund(cmd, view)
		},
	}
	cmd.Flags().IntVar(&trades, "trades", 10, "number of recent trades to list")
	return cmd
}

// lastClose falls back to zero for tickers without bars so the position still lists.
func lastClose(ctx context.Context, prices ports.PriceHistoryProvider, ticker string) (decimal.Decimal, error) {
	bars, err := prices.PriceHistory(ctx, ticker, nowFunc(), 1)
	if errors.Is(err, ports.ErrTickerNotFound) || (err == nil && len(bars) == 0) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(bars[len(bars)-1].Close), nil
}

func writeFund(cmd *cobra.Command, v fundView) error {
	out := cmd.OutOrStdout()
	mode := "paper"
	if !v.Fund.IsPaper {
		mode = "live"
	}
	fmt.Fprintf(out, "Fund %s (%s, %s)\n", v.Fund.ID, v.Fund.Name, mode)
	fmt.Fprintf(out, "Cash: %s   Initial capital: %s\n\n", v.Fund.Cash.StringFixed(2), v.Fund.InitialCapital.StringFixed(2))

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKER\tQTY\tAVG ENTRY\tPRICE\tVALUE\tUNREALIZED\t")
	for _, p := range v.Positions {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t\n", p.Ticker, p.Quantity, p.AvgEntryPrice.StringFixed(2),
			p.CurrentPrice.StringFixed(2), p.CurrentValue.StringFixed(2), p.UnrealizedPnL.StringFixed(2))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(v.Trades) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EXECUTED\tTICKER\tACTION\tQTY\tPRICE\tPNL\tREASON\t")
	for _, t := range v.Trades {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t\n", t.ExecutedAt.Format("2006-01-02 15:04"), t.Ticker, t.Action,
			t.Quantity, t.Price.StringFixed(4), t.RealizedPnL.StringFixed(2), t.CloseReason)
	}
	return tw.Flush()
}

func (rt *runtime) fundID(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if rt.cfg.FundID != "" {
		return rt.cfg.FundID, nil
	}
	return "", fmt.Errorf("fund ID argument or FUND_ID is required: %w", ports.ErrInvalidRequest)
}
