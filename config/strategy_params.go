package config

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/evdnx/backcast/errs"
)

// StrategyParams holds the tunable knobs a Strategy declares as
// class-level defaults (spec.md §4.3): indicator thresholds, risk
// sizing, and broker-facing quantity rounding. Instantiating a strategy
// with an override map merges onto these defaults; an override that
// does not correspond to a declared field is a configuration error
// raised before the run begins.
type StrategyParams struct {
	// Indicator thresholds – tuned per strategy.
	RSIOverbought   float64 // default 70
	RSIOversold     float64 // default 30
	MFIOverbought   float64 // default 80
	MFIOversold     float64 // default 20
	VWAOStrongTrend float64 // default 70
	HMAPeriod       int     // default 9
	ADMOOverbought  float64 // default 1.0
	ADMOOversold    float64 // default -1.0
	ATSEMAperiod    int     // default 5

	// Risk parameters for strategy-side position sizing (risk.CalcQty);
	// independent of the broker's own fractional-size convention.
	MaxRiskPerTrade float64 // e.g. 0.01 = 1% of equity
	StopLossPct     float64 // e.g. 0.015 = 1.5%
	TakeProfitPct   float64 // e.g. 0.03 = 3%
	TrailingPct     float64 // optional, 0 = disabled

	// Quantity rounding, mirroring what a real exchange/broker enforces.
	QuantityPrecision int     // decimal places to round to
	MinQty            float64 // minimum accepted order size
	StepSize          float64 // exchange-enforced increment
}

// Validate checks that all numeric fields are within sensible bounds,
// returning the first violation encountered.
func (c StrategyParams) Validate() error {
	if c.RSIOverbought == c.RSIOversold {
		return errors.New("RSIOverbought and RSIOversold cannot be equal")
	}
	if c.HMAPeriod <= 0 {
		return errors.New("HMAPeriod must be positive")
	}
	if c.ATSEMAperiod <= 0 {
		return errors.New("ATSEMAperiod must be positive")
	}
	if c.MaxRiskPerTrade <= 0 || c.MaxRiskPerTrade > 0.5 {
		return fmt.Errorf("MaxRiskPerTrade (%f) must be >0 and <=0.5", c.MaxRiskPerTrade)
	}
	if c.StopLossPct <= 0 || c.StopLossPct > 0.2 {
		return fmt.Errorf("StopLossPct (%f) must be >0 and <=0.2", c.StopLossPct)
	}
	if c.TakeProfitPct < 0 || c.TakeProfitPct > 5 {
		return fmt.Errorf("TakeProfitPct (%f) out of realistic range", c.TakeProfitPct)
	}
	if c.TrailingPct < 0 || c.TrailingPct > 1 {
		return fmt.Errorf("TrailingPct (%f) must be between 0 and 1", c.TrailingPct)
	}
	if c.QuantityPrecision < 0 {
		return errors.New("QuantityPrecision cannot be negative")
	}
	if c.MinQty < 0 {
		return errors.New("MinQty cannot be negative")
	}
	if c.StepSize <= 0 {
		return errors.New("StepSize must be positive")
	}
	if c.MFIOverbought == c.MFIOversold {
		return errors.New("MFIOverbought and MFIOversold cannot be equal")
	}
	return nil
}

// DefaultStrategyParams returns a permissive baseline suitable as a
// starting point for strategy authors.
func DefaultStrategyParams() StrategyParams {
	return StrategyParams{
		RSIOverbought:     70,
		RSIOversold:       30,
		MFIOverbought:     80,
		MFIOversold:       20,
		VWAOStrongTrend:   70,
		HMAPeriod:         9,
		ADMOOverbought:    1.0,
		ADMOOversold:      -1.0,
		ATSEMAperiod:      5,
		MaxRiskPerTrade:   0.01,
		StopLossPct:       0.015,
		TakeProfitPct:     0,
		TrailingPct:       0,
		QuantityPrecision: 2,
		MinQty:            0.001,
		StepSize:          0.0001,
	}
}

// Merge builds a validated StrategyParams by overlaying overrides onto
// defaults. Each key in overrides must name an exported field of
// StrategyParams (case-sensitive); an unknown key fails with a
// ConfigurationError before Validate ever runs, per spec.md §4.3.
func (c StrategyParams) Merge(overrides map[string]any) (StrategyParams, error) {
	out := c
	v := reflect.ValueOf(&out).Elem()
	t := v.Type()

	for key, val := range overrides {
		field, ok := t.FieldByName(key)
		if !ok {
			return StrategyParams{}, errs.NewConfigurationError(key, "unknown strategy parameter")
		}
		fv := v.FieldByIndex(field.Index)
		rv := reflect.ValueOf(val)
		if !rv.Type().ConvertibleTo(fv.Type()) {
			return StrategyParams{}, errs.NewConfigurationError(key,
				fmt.Sprintf("cannot assign %T to %s", val, fv.Type()))
		}
		fv.Set(rv.Convert(fv.Type()))
	}
	if err := out.Validate(); err != nil {
		return StrategyParams{}, err
	}
	return out, nil
}
