package config

import (
	"fmt"
)

// CommissionFunc computes a per-fill fee from the filled size and price.
// A negative return is a rebate, matching spec.md §4.1's "may also be
// specified as ... a user function (size, price) -> fee".
type CommissionFunc func(size, price float64) float64

// Commission is the resolved commission model a Broker applies to both
// the entry and the exit leg of a fill. Exactly one of Func, or the
// (Fixed, Relative) pair, is meaningful; use NewFlatCommission /
// NewFixedPlusRelativeCommission / NewFuncCommission to build one.
type Commission struct {
	Fixed    float64
	Relative float64
	Func     CommissionFunc
}

// NewFlatCommission builds a purely relative (scalar fraction)
// commission, e.g. 0.001 = 10 bps per fill.
func NewFlatCommission(relative float64) Commission {
	return Commission{Relative: relative}
}

// NewFixedPlusRelativeCommission builds a (fixed, relative) pair, per
// spec.md §4.1 and §6.
func NewFixedPlusRelativeCommission(fixed, relative float64) Commission {
	return Commission{Fixed: fixed, Relative: relative}
}

// NewFuncCommission builds a commission resolved by a user callable.
func NewFuncCommission(fn CommissionFunc) Commission {
	return Commission{Func: fn}
}

// Fee returns the commission charged for filling size units at price.
func (c Commission) Fee(size, price float64) float64 {
	if c.Func != nil {
		return c.Func(size, price)
	}
	return c.Fixed + c.Relative*absf(size*price)
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// BrokerConfig holds the constructor options of spec.md §6: initial
// cash, spread, commission, margin (1/leverage), and the execution
// policy flags.
type BrokerConfig struct {
	Cash            float64
	Spread          float64 // round-trip fraction, halved on each side
	Commission      Commission
	Margin          float64 // 1/leverage, in (0,1]
	TradeOnClose    bool
	Hedging         bool
	ExclusiveOrders bool
	FinalizeTrades  bool
}

// DefaultBrokerConfig mirrors the defaults in spec.md §6.
func DefaultBrokerConfig() BrokerConfig {
	return BrokerConfig{
		Cash:           10_000,
		Spread:         0,
		Commission:     NewFlatCommission(0),
		Margin:         1,
		FinalizeTrades: true,
	}
}

// Validate checks the constructor options for internal consistency.
func (c BrokerConfig) Validate() error {
	if c.Cash <= 0 {
		return fmt.Errorf("cash (%f) must be positive", c.Cash)
	}
	if c.Spread < 0 || c.Spread >= 1 {
		return fmt.Errorf("spread (%f) must be in [0,1)", c.Spread)
	}
	if c.Margin <= 0 || c.Margin > 1 {
		return fmt.Errorf("margin (%f) must be in (0,1]", c.Margin)
	}
	if c.Commission.Relative < 0 || c.Commission.Fixed < 0 {
		return fmt.Errorf("commission fixed/relative components must be non-negative")
	}
	return nil
}

// Leverage returns 1/Margin.
func (c BrokerConfig) Leverage() float64 {
	return 1 / c.Margin
}
