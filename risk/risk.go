// Package risk sizes strategy-side orders by a fixed risk-per-trade
// rule: "risk MaxRiskPerTrade of equity on a stop a StopLossPct away
// from entry". It is independent of the broker's own fractional-size
// convention (spec.md §4.1 step 3) — strategies may use either.
package risk

import (
	"math"

	"github.com/evdnx/backcast/config"
)

// CalcQty returns the position size (in units) that risks maxRisk of
// equity given a stop stopLossPct away from price. The raw quantity is
// floored to cfg.StepSize (if positive), then rounded down to
// cfg.QuantityPrecision decimal places; a result below cfg.MinQty is
// rejected (returns 0) rather than silently filled below the exchange's
// minimum.
func CalcQty(equity, maxRisk, stopLossPct, price float64, cfg config.StrategyParams) float64 {
	riskAmt := equity * maxRisk
	slDist := price * stopLossPct
	if slDist == 0 {
		return 0
	}
	qty := riskAmt / slDist

	if cfg.StepSize > 0 {
		qty = math.Floor(qty/cfg.StepSize) * cfg.StepSize
	}
	scale := math.Pow(10, float64(cfg.QuantityPrecision))
	qty = math.Floor(qty*scale) / scale

	if qty < cfg.MinQty {
		return 0
	}
	return qty
}
