package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hedgeFundSim/config"
	"hedgeFundSim/internal/ports"
)

func newConfigCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write and check backtest files",
	}
	cmd.AddCommand(newConfigInitCmd(rt), newConfigValidateCmd(rt))
	return cmd
}

func newConfigInitCmd(rt *runtime) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Write a default backtest file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite: %w", path, ports.ErrInvalidRequest)
			}
			if err := config.SaveBacktestFile(path, config.DefaultBacktestFile()); err != nil {
				return err
			}
			rt.logger.Info(cmd.Context(), "Wrote backtest file", map[string]interface{}{"path": path})
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigValidateCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <path>...",
		Short: "Check backtest files parse and describe a runnable backtest",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed int
			for _, path := range args {
				if _, err := config.LoadBacktestFile(path); err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "OK   %s\n", path)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d backtest files are invalid: %w", failed, len(args), ports.ErrConfigurationError)
			}
			return nil
		},
	}
}
