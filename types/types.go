// Package types holds the value records the backcast simulation kernel
// passes between the broker, the strategy host, and the statistics
// engine: bars, orders, trades, and the aggregate position view.
package types

import (
	"math"

	"github.com/evdnx/backcast/errs"
)

// Side is the direction of an order or a trade.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// OrderState is the lifecycle state of a pending order.
type OrderState int

const (
	Pending OrderState = iota
	Filled
	Cancelled
)

func (s OrderState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Filled:
		return "filled"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// OrderID and TradeID are arena indices, not pointers — the broker owns
// both arenas and a parent/child back-reference is a plain id lookup,
// never an ownership edge (see SPEC_FULL.md §9).
type OrderID int64
type TradeID int64

// Bar is one period of OHLCV data. Low <= Open,Close <= High is expected
// but not enforced; the engine tolerates violations without crashing.
type Bar struct {
	Open, High, Low, Close float64
	Volume                 float64 // may be NaN if missing
}

// Order is a request record. Size is signed (positive = long, negative =
// short); integer units with |Size| >= 1, or a positive fraction < 1
// interpreted as a fraction of current equity at fill time.
type Order struct {
	ID     OrderID
	Size   float64
	Limit  *float64
	Stop   *float64
	SL     *float64
	TP     *float64
	Tag    string
	Parent TradeID // 0 means "no parent" (not contingent)
	State  OrderState

	// Activated is set once a Stop order has been crossed and the order
	// has degenerated into a limit/market order for the remainder of
	// matching.
	Activated bool
}

// IsContingent reports whether this order is an SL/TP child of a live
// trade.
func (o Order) IsContingent() bool { return o.Parent != 0 }

// IsLong reports the intended direction of the resulting position.
func (o Order) IsLong() bool { return o.Size > 0 }

// ValidateOrder checks the submission-time constraints from spec.md §3:
// SL/TP ordering relative to a reference price, and stop placement on
// the entry side of that price. ref is the price the order is being
// validated against (the broker's current close, or the explicit limit
// when one is given).
func ValidateOrder(o Order, ref float64) error {
	if o.Size == 0 {
		return errs.NewConfigurationError("size", "order size must be non-zero")
	}
	long := o.IsLong()

	if o.SL != nil && o.TP != nil {
		if long && !(*o.SL < ref && ref < *o.TP) {
			return errs.NewConfigurationError("sl/tp", "long order requires sl < price < tp")
		}
		if !long && !(*o.TP < ref && ref < *o.SL) {
			return errs.NewConfigurationError("sl/tp", "short order requires tp < price < sl")
		}
	} else if o.SL != nil {
		if long && *o.SL >= ref {
			return errs.NewConfigurationError("sl", "long stop-loss must be below entry price")
		}
		if !long && *o.SL <= ref {
			return errs.NewConfigurationError("sl", "short stop-loss must be above entry price")
		}
	} else if o.TP != nil {
		if long && *o.TP <= ref {
			return errs.NewConfigurationError("tp", "long take-profit must be above entry price")
		}
		if !long && *o.TP >= ref {
			return errs.NewConfigurationError("tp", "short take-profit must be below entry price")
		}
	}

	if o.Stop != nil {
		if long && *o.Stop < ref {
			return errs.NewConfigurationError("stop", "buy stop must be at or above reference price")
		}
		if !long && *o.Stop > ref {
			return errs.NewConfigurationError("stop", "sell stop must be at or below reference price")
		}
	}
	return nil
}

// Trade is a realized or open position slice.
type Trade struct {
	ID         TradeID
	Size       float64
	EntryPrice float64
	EntryBar   int
	ExitPrice  float64
	ExitBar    int // -1 while open
	SLOrder    OrderID
	TPOrder    OrderID
	Tag        string
}

// IsLong reports whether the trade is a long position.
func (t Trade) IsLong() bool { return t.Size > 0 }

// IsOpen reports whether the trade has not yet been closed.
func (t Trade) IsOpen() bool { return t.ExitBar < 0 }

// PL returns the trade's profit in account currency given a current
// close price (or the recorded exit price if the trade is closed).
func (t Trade) PL(currentClose float64) float64 {
	price := currentClose
	if !t.IsOpen() {
		price = t.ExitPrice
	}
	return t.Size * (price - t.EntryPrice)
}

// PLPercent returns PL as a fraction of the entry notional.
func (t Trade) PLPercent(currentClose float64) float64 {
	denom := math.Abs(t.Size) * t.EntryPrice
	if denom == 0 {
		return 0
	}
	return t.PL(currentClose) / denom
}

// Value returns the trade's mark-to-market notional at the given price.
func (t Trade) Value(currentClose float64) float64 {
	price := currentClose
	if !t.IsOpen() {
		price = t.ExitPrice
	}
	return t.Size * price
}

// Duration returns the number of bars a closed trade was open
// (ExitBar - EntryBar); it returns -1 while the trade is still open.
func (t Trade) Duration() int {
	if t.IsOpen() {
		return -1
	}
	return t.ExitBar - t.EntryBar
}

// Position is the aggregate over all open trades on the single
// instrument a broker simulates. It is a read-only snapshot; Close
// forwards to the owning broker's Closer, keeping the broker the single
// owner of trade mutation (see SPEC_FULL.md §4.1).
type Position struct {
	Trades []Trade
	Closer PositionCloser
}

// PositionCloser is implemented by broker.Broker; kept as a narrow
// interface here so types has no dependency on broker.
type PositionCloser interface {
	ClosePosition(portion float64) error
}

// Size returns the signed sum of open trade sizes.
func (p Position) Size() float64 {
	var total float64
	for _, t := range p.Trades {
		total += t.Size
	}
	return total
}

// IsLong reports whether the net position is long.
func (p Position) IsLong() bool { return p.Size() > 0 }

// PL returns the aggregate unrealized profit at the given close price.
func (p Position) PL(currentClose float64) float64 {
	var total float64
	for _, t := range p.Trades {
		total += t.PL(currentClose)
	}
	return total
}

// Close closes the given portion (0,1] of every open trade, rounded to
// integer units per trade with at least 1 unit if portion > 0.
func (p Position) Close(portion float64) error {
	if portion <= 0 || portion > 1 {
		return errs.NewConfigurationError("portion", "must be in (0,1]")
	}
	if p.Closer == nil {
		return errs.NewConfigurationError("position", "no owning broker attached")
	}
	return p.Closer.ClosePosition(portion)
}
