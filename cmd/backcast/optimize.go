package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evdnx/backcast/broker"
	"github.com/evdnx/backcast/config"
	"github.com/evdnx/backcast/data"
	"github.com/evdnx/backcast/examplestrategy"
	"github.com/evdnx/backcast/optimize"
	"github.com/evdnx/backcast/simulate"
	"github.com/evdnx/backcast/stats"
)

var (
	paramFlags []string
	metricName string
	mode       string
	maxTries   string
	workers    int
	seed       uint64
	maxIters   int
	restarts   int
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Sweep the example strategy's parameters to maximize a metric",
	RunE: func(cmd *cobra.Command, args []string) error {
		space, err := buildParamSpace(paramFlags)
		if err != nil {
			return fmt.Errorf("parse --param: %w", err)
		}
		objective, err := optimize.ByMetric(metricName)
		if err != nil {
			return err
		}
		tries, err := parseMaxTries(maxTries)
		if err != nil {
			return err
		}

		series, err := resolveSeries(cmd.Context(), runCfg, fetchURL, log)
		if err != nil {
			return fmt.Errorf("load data: %w", err)
		}

		report, err := sweep(cmd.Context(), series, runCfg, space, objective, tries)
		if err != nil {
			return fmt.Errorf("optimize: %w", err)
		}

		printReport(report)
		return nil
	},
}

func init() {
	optimizeCmd.Flags().StringVar(&fetchURL, "fetch-url", "", "fetch bars from this base URL instead of data_path")
	optimizeCmd.Flags().Float64Var(&riskFreeRate, "risk-free-rate", 0, "annual risk-free rate used in Sharpe/Sortino")
	optimizeCmd.Flags().StringArrayVar(&paramFlags, "param", nil, "parameter axis as name=v1,v2,v3 (repeatable)")
	optimizeCmd.Flags().StringVar(&metricName, "metric", "sharpe", "metric to maximize (sharpe, sortino, calmar, sqn, kelly, profitfactor, returnpct, returnannpct, cagrpct, winratepct, equityfinal)")
	optimizeCmd.Flags().StringVar(&mode, "mode", "grid", "search mode: grid or model")
	optimizeCmd.Flags().StringVar(&maxTries, "max-tries", "", "grid mode: cap combinations, as an integer count or a (0,1] fraction")
	optimizeCmd.Flags().IntVar(&workers, "workers", 0, "grid mode: concurrent workers (0 = GOMAXPROCS)")
	optimizeCmd.Flags().Uint64Var(&seed, "seed", 1, "deterministic sub-sampling / restart seed")
	optimizeCmd.Flags().IntVar(&maxIters, "max-iters", 0, "model mode: iterations per restart (0 = default)")
	optimizeCmd.Flags().IntVar(&restarts, "restarts", 0, "model mode: number of random restarts (0 = default)")
}

// sweep dispatches to optimize.Grid or optimize.Model, running each
// candidate combination as a full backtest over series.
func sweep(ctx context.Context, series *data.Series, cfg *config.RunConfig, space optimize.ParamSpace, objective optimize.Objective, tries any) (*optimize.Report, error) {
	runFn := makeRunFunc(series, cfg)

	switch strings.ToLower(mode) {
	case "", "grid":
		return optimize.Grid(ctx, space, runFn, optimize.GridOptions{
			Maximize: objective,
			Seed:     seed,
			Workers:  workers,
			MaxTries: tries,
		})
	case "model":
		return optimize.Model(ctx, space, runFn, optimize.ModelOptions{
			Maximize: objective,
			Seed:     seed,
			MaxIters: maxIters,
			Restarts: restarts,
		})
	default:
		return nil, fmt.Errorf("unknown --mode %q, want grid or model", mode)
	}
}

// makeRunFunc closes over the loaded series and base config to build an
// optimize.RunFunc: merge the candidate params onto the strategy
// defaults, then run one full backtest with a fresh broker.
func makeRunFunc(series *data.Series, cfg *config.RunConfig) optimize.RunFunc {
	return func(ctx context.Context, params map[string]any) (*stats.Result, error) {
		merged, err := cfg.Strategy.Merge(params)
		if err != nil {
			return nil, err
		}
		b, err := broker.New(cfg.Broker, log, "optimize")
		if err != nil {
			return nil, err
		}
		bt := &simulate.Backtest{
			Data:         series,
			Strategy:     &examplestrategy.MeanReversion{},
			Broker:       b,
			Params:       merged,
			Log:          log,
			RiskFreeRate: riskFreeRate,
		}
		return bt.Run(ctx)
	}
}

// buildParamSpace parses a set of --param name=v1,v2,v3 flags into a
// ParamSpace. Each value is parsed as a float64 when possible so it can
// be merged directly into config.StrategyParams; values that do not
// parse as a number are kept as strings for categorical axes.
func buildParamSpace(raws []string) (optimize.ParamSpace, error) {
	var space optimize.ParamSpace
	for _, raw := range raws {
		name, valuesPart, ok := strings.Cut(raw, "=")
		if !ok || name == "" {
			return optimize.ParamSpace{}, fmt.Errorf("malformed --param %q, want name=v1,v2,...", raw)
		}
		parts := strings.Split(valuesPart, ",")
		values := make([]any, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if f, err := strconv.ParseFloat(p, 64); err == nil {
				values = append(values, f)
				continue
			}
			values = append(values, p)
		}
		space.Axes = append(space.Axes, optimize.ParamAxis{Name: name, Values: values})
	}
	return space, nil
}

// parseMaxTries turns --max-tries into the any GridOptions.MaxTries
// expects: an int count, a (0,1] float fraction, or nil when unset.
func parseMaxTries(raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}
	if i, err := strconv.Atoi(raw); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid --max-tries %q: must be an int or a float", raw)
	}
	return f, nil
}

func printReport(r *optimize.Report) {
	fmt.Println(strings.Repeat("=", 40))
	fmt.Println("  Optimization Result")
	fmt.Println(strings.Repeat("=", 40))
	fmt.Printf("  Best Score:     %.4f\n", r.BestScore)
	fmt.Println("  Best Params:")
	for k, v := range r.Best {
		fmt.Printf("    %-20s %v\n", k, v)
	}
	fmt.Printf("  Combinations:   %d\n", len(r.Runs))
	fmt.Println(strings.Repeat("=", 40))
}
