// Command backcast runs a single backtest or a parameter sweep over the
// example mean-reversion strategy against a CSV (or remote-fetched) bar
// series, per spec.md §6's external interfaces.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evdnx/backcast/config"
	"github.com/evdnx/backcast/logger"
)

var (
	cfgPath string
	log     logger.Logger
	runCfg  *config.RunConfig
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "backcast",
	Short: "Event-driven backtesting CLI",
	Long: `backcast runs the example mean-reversion strategy over an OHLCV
series and reports the resulting statistics, either as a single backtest
(run) or a parameter sweep (optimize).`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logger.NewZapLogger()
		if err != nil {
			return fmt.Errorf("set up logger: %w", err)
		}
		log = l

		if cfgPath == "" {
			return fmt.Errorf("--config is required")
		}
		cfg, err := config.LoadRunConfig(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		runCfg = cfg
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "run config file (YAML/JSON/TOML)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(optimizeCmd)
}
