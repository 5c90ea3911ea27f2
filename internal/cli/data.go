package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"hedgeFundSim/internal/ports"
	"hedgeFundSim/internal/utils"
)

// nowFunc is the as-of time for price lookups.
var nowFunc = time.Now

func newImportCmd(rt *runtime) *cobra.Command {
	var (
		ticker  string
		sectors []string
	)
	cmd := &cobra.Command{
		Use:   "import <bars.csv>...",
		Short: "Import daily bars from CSV files",
		Long: `Import reads CSV files with a header row containing date, open, high, low, close and
volume columns, plus an optional ticker column. Bars replace existing bars of the same day.`,
		Example: `  fundsim import data/aapl.csv --ticker AAPL --sector AAPL=Technology
  fundsim import data/universe.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := rt.store()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			for _, path := range args {
				bars, err := utils.ReadBarsFromCSV(path, strings.ToUpper(ticker))
				if err != nil {
					return err
				}
				if err := repo.SaveBars(ctx, bars); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d bars from %s\n", len(bars), path)
			}
			for _, s := range sectors {
				t, sector, ok := strings.Cut(s, "=")
				if !ok || t == "" || sector == "" {
					return fmt.Errorf("sector %q must be TICKER=SECTOR: %w", s, ports.ErrInvalidRequest)
				}
				if err := repo.SetSector(ctx, strings.ToUpper(t), sector); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&ticker, "ticker", "", "ticker for files without a ticker column")
	cmd.Flags().StringSliceVar(&sectors, "sector", nil, "ticker sector as TICKER=SECTOR (repeatable)")
	return cmd
}
