// Package simulate drives the bar-by-bar simulation loop: reveal the
// data window, run the broker's matching, call the strategy, and
// finally compute statistics. It implements exactly the pseudocode of
// spec.md §4.4.
package simulate

import (
	"context"
	"errors"

	"github.com/evdnx/backcast/broker"
	"github.com/evdnx/backcast/config"
	"github.com/evdnx/backcast/data"
	"github.com/evdnx/backcast/errs"
	"github.com/evdnx/backcast/indicator"
	"github.com/evdnx/backcast/logger"
	"github.com/evdnx/backcast/stats"
	"github.com/evdnx/backcast/strategy"
)

// Backtest bundles everything one simulation run needs: the bar series,
// the strategy under test, and the broker it trades against.
type Backtest struct {
	Data         *data.Series
	Strategy     strategy.Strategy
	Broker       *broker.Broker
	Params       config.StrategyParams
	Log          logger.Logger
	RiskFreeRate float64
}

// Run executes the full loop and returns the resulting statistics
// report. The broker's own out-of-money sentinel is caught here and
// never surfaces to the caller as an error — it only shows up as an
// early loop exit and Result.Aborted = true (spec.md §7, §9).
func (bt *Backtest) Run(ctx context.Context) (*stats.Result, error) {
	n := bt.Data.Len()
	if n == 0 {
		return nil, errs.NewConfigurationError("data", "series has no bars")
	}

	sctx := strategy.NewContext(bt.Broker, bt.Log, bt.Params)
	sctx.SetView(bt.Data.FullView(), n-1)
	if err := bt.Strategy.Init(sctx); err != nil {
		return nil, err
	}

	warmup := indicator.WarmupBars(sctx.DeclaredIndicators())
	start := 1 + warmup
	if start >= n {
		return nil, errs.NewConfigurationError("warmup", "warm-up period consumes the entire series")
	}

	aborted := false
	lastBar := start - 1
	for i := start; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		view := bt.Data.Prefix(i + 1)
		sctx.SetView(view, i)

		if err := bt.Broker.OnBar(i, bt.Data.BarAt(i)); err != nil {
			if errors.Is(err, errs.ErrOutOfMoney) {
				aborted = true
				break
			}
			return nil, err
		}
		lastBar = i

		if err := bt.Strategy.Next(sctx); err != nil {
			return nil, err
		}
	}

	if !aborted {
		bt.Broker.Finalize(lastBar, bt.Data.Close[lastBar])
	}

	curve := bt.fullEquityCurve(n, start)
	return stats.Compute(bt.Broker.ClosedTrades(), curve, bt.Data, bt.RiskFreeRate, aborted), nil
}

// fullEquityCurve extends the broker's recorded equity (which only
// starts once the warm-up period has passed) to the full series length:
// bars before the warm-up hold the first recorded value (strategy
// hadn't traded yet), and — when the run aborted early — bars after the
// last recorded one hold that last value, per spec.md §4.4's "equity
// tail is back-filled from the last recorded value".
func (bt *Backtest) fullEquityCurve(n, start int) []float64 {
	recorded := bt.Broker.EquityCurve()
	full := make([]float64, n)

	fallback := bt.Broker.Equity()
	for i := range full {
		full[i] = fallback
	}
	if len(recorded) == 0 {
		return full
	}

	for j, v := range recorded {
		if idx := start + j; idx < n {
			full[idx] = v
		}
	}
	for i := 0; i < start && i < n; i++ {
		full[i] = recorded[0]
	}
	last := recorded[len(recorded)-1]
	for i := start + len(recorded); i < n; i++ {
		full[i] = last
	}
	return full
}
