// Package strategy hosts user trading logic: the Strategy interface the
// simulation loop drives, and Context, the per-bar handle a strategy
// uses to declare indicators, read the data window, and place orders.
// Context generalizes the teacher's BaseStrategy from a single live
// executor connection into a full backtest-time broker handle.
package strategy

import (
	"github.com/evdnx/backcast/broker"
	"github.com/evdnx/backcast/config"
	"github.com/evdnx/backcast/data"
	"github.com/evdnx/backcast/indicator"
	"github.com/evdnx/backcast/logger"
)

// Strategy is implemented by user trading logic. Init is called once
// with a Context bound to the full data view; Next is called once per
// bar, after the broker has processed that bar's contingencies and
// pending orders, with a Context bound to the bar's prefix view.
type Strategy interface {
	Init(ctx *Context) error
	Next(ctx *Context) error
}

// Context is the handle a Strategy uses to observe the market and place
// orders. A single Context is reused across the whole run; the
// simulation loop calls SetView before each Init/Next to rebind it to
// the bar currently in scope.
type Context struct {
	Broker *broker.Broker
	Params config.StrategyParams

	log      logger.Logger
	view     *data.View
	barIndex int
	declared []indicator.Declared
	byName   map[string]indicator.Declared
}

// NewContext builds a Context wired to br. params are used as given:
// merging and validating them is up to whoever builds the
// simulate.Backtest (simulate.Backtest.Run passes its Params through).
func NewContext(br *broker.Broker, log logger.Logger, params config.StrategyParams) *Context {
	return &Context{
		Broker: br,
		Params: params,
		log:    log,
		byName: make(map[string]indicator.Declared),
	}
}

// SetView rebinds the context to the given view and bar index; called
// by the simulation loop before every Init/Next invocation.
func (c *Context) SetView(v *data.View, barIndex int) {
	c.view = v
	c.barIndex = barIndex
}

// Data returns the current data window (full view during Init, the
// 0..i prefix during Next).
func (c *Context) Data() *data.View { return c.view }

// BarIndex returns the index of the bar currently being processed.
func (c *Context) BarIndex() int { return c.barIndex }

// I declares (or, on repeat calls with the same name, looks up) an
// indicator. The function always runs once over the entire underlying
// series — regardless of whether I is first called from Init or from a
// later Next — so the returned array always has the series' full
// warm-up-aware length; the caller receives only the prefix visible at
// the current bar, per spec.md §4.3.
func (c *Context) I(name string, fn indicator.Func, opts ...indicator.Option) ([]float64, error) {
	if d, ok := c.byName[name]; ok {
		return d.Prefix(c.view.Len()), nil
	}
	full := c.view.Series().FullView()
	d, err := indicator.Declare(name, fn, full, opts...)
	if err != nil {
		return nil, err
	}
	c.byName[name] = d
	c.declared = append(c.declared, d)
	return d.Prefix(c.view.Len()), nil
}

// DeclaredIndicators returns every indicator declared so far, for
// WarmupBars computation by the simulation loop.
func (c *Context) DeclaredIndicators() []indicator.Declared {
	return c.declared
}
