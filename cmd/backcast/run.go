package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/evdnx/backcast/broker"
	"github.com/evdnx/backcast/config"
	"github.com/evdnx/backcast/data"
	"github.com/evdnx/backcast/examplestrategy"
	"github.com/evdnx/backcast/fetch"
	"github.com/evdnx/backcast/logger"
	"github.com/evdnx/backcast/simulate"
	"github.com/evdnx/backcast/stats"
)

var (
	fetchURL     string
	riskFreeRate float64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single backtest",
	RunE: func(cmd *cobra.Command, args []string) error {
		series, err := resolveSeries(cmd.Context(), runCfg, fetchURL, log)
		if err != nil {
			return fmt.Errorf("load data: %w", err)
		}

		result, err := runBacktest(cmd.Context(), series, runCfg, riskFreeRate, log)
		if err != nil {
			return fmt.Errorf("run backtest: %w", err)
		}

		printResult(runCfg.Symbol, result)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&fetchURL, "fetch-url", "", "fetch bars from this base URL instead of data_path")
	runCmd.Flags().Float64Var(&riskFreeRate, "risk-free-rate", 0, "annual risk-free rate used in Sharpe/Sortino")
}

// resolveSeries loads the bar series either from a remote price-data
// collaborator (--fetch-url) or from the configured CSV file.
func resolveSeries(ctx context.Context, cfg *config.RunConfig, fetchURL string, log logger.Logger) (*data.Series, error) {
	if fetchURL != "" {
		client := fetch.New(fetchURL, log)
		return client.Fetch(ctx, cfg.DataPath)
	}
	return data.LoadCSV(cfg.DataPath, log)
}

// runBacktest wires the example strategy, a fresh broker, and the
// simulation loop, then computes statistics over the resulting run.
func runBacktest(ctx context.Context, series *data.Series, cfg *config.RunConfig, riskFreeRate float64, log logger.Logger) (*stats.Result, error) {
	b, err := broker.New(cfg.Broker, log, fmt.Sprintf("run-%d", time.Now().UnixNano()))
	if err != nil {
		return nil, fmt.Errorf("new broker: %w", err)
	}

	bt := &simulate.Backtest{
		Data:         series,
		Strategy:     &examplestrategy.MeanReversion{},
		Broker:       b,
		Params:       cfg.Strategy,
		Log:          log,
		RiskFreeRate: riskFreeRate,
	}
	return bt.Run(ctx)
}

func printResult(symbol string, r *stats.Result) {
	fmt.Println(strings.Repeat("=", 40))
	fmt.Println("  Backtest Results")
	if symbol != "" {
		fmt.Printf("  Symbol:         %s\n", symbol)
	}
	fmt.Println(strings.Repeat("=", 40))
	fmt.Printf("  Equity Final:   %.2f\n", r.EquityFinal)
	fmt.Printf("  Equity Peak:    %.2f\n", r.EquityPeak)
	fmt.Printf("  Return:         %.2f%%\n", r.ReturnPct)
	fmt.Printf("  Buy & Hold:     %.2f%%\n", r.BuyHoldReturnPct)
	fmt.Printf("  CAGR:           %.2f%%\n", r.CAGRPct)
	fmt.Printf("  Sharpe:         %.2f\n", r.Sharpe)
	fmt.Printf("  Sortino:        %.2f\n", r.Sortino)
	fmt.Printf("  Calmar:         %.2f\n", r.Calmar)
	fmt.Printf("  Max Drawdown:   %.2f%%\n", r.MaxDrawdownPct)
	fmt.Println()
	fmt.Printf("  Total Trades:   %d\n", r.NumTrades)
	fmt.Printf("  Win Rate:       %.2f%%\n", r.WinRatePct)
	fmt.Printf("  Profit Factor:  %.2f\n", r.ProfitFactor)
	fmt.Printf("  SQN:            %.2f\n", r.SQN)
	fmt.Printf("  Kelly:          %.2f\n", r.Kelly)
	if r.Aborted {
		fmt.Println()
		fmt.Println("  * run aborted early: broker ran out of money")
	}
	fmt.Println(strings.Repeat("=", 40))
}
