// Package examplestrategy provides one minimal demonstration strategy
// implementing the Strategy Host — enough for integration tests and the
// CLI's default run, not a strategy library (spec.md §1's Non-goals
// exclude the example strategy library itself).
package examplestrategy

import (
	"math"

	"github.com/evdnx/goti"

	"github.com/evdnx/backcast/indicator"
	"github.com/evdnx/backcast/risk"
	"github.com/evdnx/backcast/strategy"
)

// MeanReversion buys when RSI crosses up out of oversold and opens a
// short when it crosses down out of overbought, sized by a fixed
// risk-per-trade rule, with SL/TP attached at entry and an optional
// trailing stop applied once a position is open with no fresh signal.
// Adapted from the oscillator-crossover core of the source pack's
// MeanReversion strategy, simplified to RSI alone (dropping its MFI and
// VWAO confirmation legs — goti's suite shape is unrelated to this
// engine's indicator-declaration model, so the three-oscillator
// agreement rule does not carry over cleanly).
type MeanReversion struct{}

func (s *MeanReversion) rsiConfig(ctx *strategy.Context) goti.Config {
	cfg := goti.DefaultConfig()
	cfg.RSIOverbought = ctx.Params.RSIOverbought
	cfg.RSIOversold = ctx.Params.RSIOversold
	return cfg
}

// Init declares the RSI indicator so its warm-up is known before the
// simulation loop starts iterating (spec.md §4.4).
func (s *MeanReversion) Init(ctx *strategy.Context) error {
	_, err := ctx.I("rsi", indicator.RSI(s.rsiConfig(ctx)))
	return err
}

// Next evaluates the latest RSI crossover against the open position.
func (s *MeanReversion) Next(ctx *strategy.Context) error {
	rsi, err := ctx.I("rsi", indicator.RSI(s.rsiConfig(ctx)))
	if err != nil {
		return err
	}
	n := len(rsi)
	if n < 2 {
		return nil
	}
	prev, curr := rsi[n-2], rsi[n-1]
	if math.IsNaN(prev) || math.IsNaN(curr) {
		return nil
	}

	bullish := prev <= ctx.Params.RSIOversold && curr > ctx.Params.RSIOversold
	bearish := prev >= ctx.Params.RSIOverbought && curr < ctx.Params.RSIOverbought

	size := ctx.Position().Size()
	price := ctx.Data().Now().Close

	switch {
	case bullish && size <= 0:
		if size < 0 {
			if err := ctx.ClosePosition(1); err != nil {
				return err
			}
		}
		return s.openLong(ctx, price)
	case bearish && size >= 0:
		if size > 0 {
			if err := ctx.ClosePosition(1); err != nil {
				return err
			}
		}
		return s.openShort(ctx, price)
	case size != 0 && ctx.Params.TrailingPct > 0:
		return ctx.ApplyTrailingStop(ctx.Params.TrailingPct)
	}
	return nil
}

func (s *MeanReversion) openLong(ctx *strategy.Context, price float64) error {
	qty := risk.CalcQty(ctx.Equity(), ctx.Params.MaxRiskPerTrade, ctx.Params.StopLossPct, price, ctx.Params)
	if qty <= 0 {
		return nil
	}
	opts := []strategy.OrderOption{strategy.Tag("mean_reversion_long")}
	if ctx.Params.StopLossPct > 0 {
		opts = append(opts, strategy.SL(price*(1-ctx.Params.StopLossPct)))
	}
	if ctx.Params.TakeProfitPct > 0 {
		opts = append(opts, strategy.TP(price*(1+ctx.Params.TakeProfitPct)))
	}
	_, err := ctx.Buy(qty, opts...)
	return err
}

func (s *MeanReversion) openShort(ctx *strategy.Context, price float64) error {
	qty := risk.CalcQty(ctx.Equity(), ctx.Params.MaxRiskPerTrade, ctx.Params.StopLossPct, price, ctx.Params)
	if qty <= 0 {
		return nil
	}
	opts := []strategy.OrderOption{strategy.Tag("mean_reversion_short")}
	if ctx.Params.StopLossPct > 0 {
		opts = append(opts, strategy.SL(price*(1+ctx.Params.StopLossPct)))
	}
	if ctx.Params.TakeProfitPct > 0 {
		opts = append(opts, strategy.TP(price*(1-ctx.Params.TakeProfitPct)))
	}
	_, err := ctx.Sell(qty, opts...)
	return err
}
