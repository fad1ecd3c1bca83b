package strategy

import (
	"math"

	"github.com/evdnx/backcast/logger"
	"github.com/evdnx/backcast/types"
)

// DefaultSize is the "almost full equity" sentinel spec.md §4.3 calls
// for: strictly less than 1 so the broker's fractional-size conversion
// never rejects the order for landing exactly on available cash.
const DefaultSize = 0.999

// OrderOption configures an order built by Buy/Sell.
type OrderOption func(*types.Order)

func Limit(price float64) OrderOption { return func(o *types.Order) { o.Limit = &price } }
func Stop(price float64) OrderOption  { return func(o *types.Order) { o.Stop = &price } }
func SL(price float64) OrderOption    { return func(o *types.Order) { o.SL = &price } }
func TP(price float64) OrderOption    { return func(o *types.Order) { o.TP = &price } }
func Tag(tag string) OrderOption      { return func(o *types.Order) { o.Tag = tag } }

// Buy submits a long order for size units (or, if size is 0,
// DefaultSize as a fraction of equity).
func (c *Context) Buy(size float64, opts ...OrderOption) (types.OrderID, error) {
	if size == 0 {
		size = DefaultSize
	}
	return c.submit(size, opts...)
}

// Sell submits a short order for size units (or, if size is 0,
// DefaultSize as a fraction of equity). size is given as a positive
// magnitude; Sell negates it internally.
func (c *Context) Sell(size float64, opts ...OrderOption) (types.OrderID, error) {
	if size == 0 {
		size = DefaultSize
	}
	return c.submit(-size, opts...)
}

func (c *Context) submit(size float64, opts ...OrderOption) (types.OrderID, error) {
	o := types.Order{Size: size}
	for _, opt := range opts {
		opt(&o)
	}
	id, err := c.Broker.Submit(o)
	if err != nil {
		c.log.Error("order submit failed", logger.Float64("size", size), logger.Err(err))
		return 0, err
	}
	return id, nil
}

// Equity returns the broker's current equity.
func (c *Context) Equity() float64 { return c.Broker.Equity() }

// Position returns the current aggregate open position.
func (c *Context) Position() types.Position { return c.Broker.Position() }

// Orders returns every order still pending a fill.
func (c *Context) Orders() []types.Order { return c.Broker.Orders() }

// Trades returns every currently open trade.
func (c *Context) Trades() []types.Trade { return c.Broker.Trades() }

// ClosedTrades returns every trade closed so far.
func (c *Context) ClosedTrades() []types.Trade { return c.Broker.ClosedTrades() }

// ClosePosition closes the given portion (0,1] of the open position,
// generalizing BaseStrategy.closePosition to whatever fraction the
// strategy wants to flatten rather than always closing in full.
func (c *Context) ClosePosition(portion float64) error {
	return c.Position().Close(portion)
}

// ApplyTrailingStop closes the whole open position once price has moved
// trailingPct past the position's weighted-average entry price, in the
// position's favor — the single ratcheting special case BaseStrategy
// hard-coded, now callable with any threshold instead of only
// Params.TrailingPct, and working against the real SL/TP-capable broker
// instead of a perfect-fill paper executor.
func (c *Context) ApplyTrailingStop(trailingPct float64) error {
	if trailingPct <= 0 {
		return nil
	}
	pos := c.Position()
	if pos.Size() == 0 {
		return nil
	}
	avg := weightedAvgEntry(pos.Trades)
	long := pos.IsLong()
	level := avg * (1 + trailingPct)
	if !long {
		level = avg * (1 - trailingPct)
	}
	now := c.view.Now().Close
	if (long && now >= level) || (!long && now <= level) {
		return pos.Close(1)
	}
	return nil
}

func weightedAvgEntry(trades []types.Trade) float64 {
	var sumSize, sumNotional float64
	for _, t := range trades {
		sumSize += math.Abs(t.Size)
		sumNotional += math.Abs(t.Size) * t.EntryPrice
	}
	if sumSize == 0 {
		return 0
	}
	return sumNotional / sumSize
}
