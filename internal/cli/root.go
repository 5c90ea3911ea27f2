// Package cli is the fundsim command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"hedgeFundSim/config"
	"hedgeFundSim/internal/adapters/logger"
	"hedgeFundSim/internal/adapters/sqlite"
)

// runtime holds what every subcommand shares. The repository is opened on first use so commands
// that only touch files never create a database.
type runtime struct {
	cfg    *config.Config
	logger *logger.StdLogger
	repo   *sqlite.Repository

	dbPath   string
	logLevel string
	jsonOut  bool
}

func (r *runtime) store() (*sqlite.Repository, error) {
	if r.repo != nil {
		return r.repo, nil
	}
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: r.cfg.DBPath, Logger: r.logger})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	r.repo = repo
	return repo, nil
}

func (r *runtime) close() {
	if r.repo != nil {
		if err := r.repo.Close(); err != nil {
			r.logger.Error(context.Background(), err, "Error closing database repository")
		}
		r.repo = nil
	}
}

// NewRootCmd builds the fundsim command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	rt := &runtime{}
	root := &cobra.Command{
		Use:   "fundsim",
		Short: "Paper-trading and backtesting for an equity hedge fund",
		Long: `fundsim runs a multi-strategy equity fund on daily bars.

It provides tools for:
  - Importing daily bars and ticker sectors from CSV
  - Analysing tickers with a consensus of strategies and paper trading the result
  - Risk metrics, trade validation limits and stop-loss enforcement
  - Backtesting strategies described in YAML files
  - Grid search over moving-average periods

Configuration is read from the environment and an optional .env file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if rt.dbPath != "" {
				cfg.DBPath = rt.dbPath
			}
			if rt.logLevel != "" {
				cfg.LogLevel = logger.ParseLevel(rt.logLevel)
			}
			rt.cfg = cfg
			rt.logger = logger.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			rt.close()
		},
	}
	root.PersistentFlags().StringVar(&rt.dbPath, "db", "", "SQLite database path (overrides DB_PATH)")
	root.PersistentFlags().StringVar(&rt.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")
	root.PersistentFlags().BoolVar(&rt.jsonOut, "json", false, "print results as JSON")

	root.AddCommand(
		newFundCmd(rt),
		newImportCmd(rt),
		newAnalyzeCmd(rt),
		newRiskCmd(rt),
		newStopLossCmd(rt),
		newBacktestCmd(rt),
		newOptimizeCmd(rt),
		newConfigCmd(rt),
	)
	return root
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
