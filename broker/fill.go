package broker

import (
	"math"

	"github.com/evdnx/backcast/errs"
	"github.com/evdnx/backcast/logger"
	"github.com/evdnx/backcast/metrics"
	"github.com/evdnx/backcast/types"
)

// AdjustedPrice applies the spread and relative-commission components
// of spec.md §4.1's fill-pricing formula to a reference price: a buy
// pays p·(1+spread/2)·(1+relative); a sell receives p·(1-spread/2)·
// (1-relative). A fixed or user-function commission component (see
// config.Commission) is charged separately, as cash deducted at fill
// time, so it is never baked into the returned price.
func (b *Broker) AdjustedPrice(side types.Side, price float64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.adjustedPriceLocked(side, price)
}

func (b *Broker) adjustedPriceLocked(side types.Side, price float64) float64 {
	spreadAdj := 1 + b.cfg.Spread/2
	if side != types.Buy {
		spreadAdj = 1 - b.cfg.Spread/2
	}
	base := price * spreadAdj

	if b.cfg.Commission.Func != nil {
		return base
	}
	rel := b.cfg.Commission.Relative
	if side == types.Buy {
		return base * (1 + rel)
	}
	return base * (1 - rel)
}

func (b *Broker) feeForFill(side types.Side, size, adjPrice float64) float64 {
	c := b.cfg.Commission
	if c.Func != nil {
		return c.Func(size, adjPrice)
	}
	return c.Fixed
}

// OnBar runs the five ordered steps of spec.md §4.1 against bar i:
// contingent SL/TP checks, pending-order matching and conversion, the
// out-of-money guard, and equity recording. It returns errs.ErrOutOfMoney
// (never wrapped) the instant equity drops to or below zero; the
// simulation loop is the only caller expected to see that sentinel.
func (b *Broker) OnBar(i int, bar types.Bar) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Step 1: contingent SL/TP check for every trade already open
	// before this bar.
	for _, tid := range append([]types.TradeID(nil), b.openTradeOrder...) {
		if t := b.trades[tid]; t != nil && t.IsOpen() {
			b.checkContingency(t, i, bar)
		}
	}

	// Steps 2-3: pending order processing, in submission order, each
	// fill immediately converted into a trade mutation.
	remaining := b.pending[:0]
	for _, oid := range b.pending {
		o := b.orders[oid]
		if o == nil || o.State != types.Pending {
			continue
		}
		filled, price, kind := b.tryFill(o, bar)
		if !filled {
			remaining = append(remaining, oid)
			continue
		}
		b.convert(o, price, i, kind)
	}
	b.pending = remaining

	b.barIndex = i
	b.bar = bar

	// Step 4: out-of-money guard.
	if b.equityLocked() <= 0 {
		metrics.OutOfMoneyTotal.WithLabelValues(b.run).Inc()
		b.log.Warn("broker out of money", logger.Int("bar", i))
		return errs.ErrOutOfMoney
	}

	// Step 5: equity recording.
	eq := b.equityLocked()
	b.equityCurve = append(b.equityCurve, eq)
	metrics.EquityGauge.WithLabelValues(b.run).Set(eq)
	return nil
}

// checkContingency implements spec.md §4.1 step 1, including the
// stop-loss-wins tie-break when both legs are reachable in the same
// bar's range, and the same-bar suppression rule for trades opened this
// bar under trade_on_close.
func (b *Broker) checkContingency(t *types.Trade, i int, bar types.Bar) {
	if t.EntryBar == i && b.cfg.TradeOnClose {
		return
	}

	slOrder := b.orders[t.SLOrder]
	tpOrder := b.orders[t.TPOrder]
	long := t.IsLong()

	slHit := slOrder != nil && slOrder.State == types.Pending && slOrder.SL != nil &&
		((long && bar.Low <= *slOrder.SL) || (!long && bar.High >= *slOrder.SL))
	tpHit := tpOrder != nil && tpOrder.State == types.Pending && tpOrder.TP != nil &&
		((long && bar.High >= *tpOrder.TP) || (!long && bar.Low <= *tpOrder.TP))

	switch {
	case slHit:
		price := gapThroughPrice(long, *slOrder.SL, bar.Open, true)
		b.closeTradeAt(t, b.adjustedPriceLocked(exitSideFor(long), price), i)
		slOrder.State = types.Filled
		if tpOrder != nil && tpOrder.State == types.Pending {
			tpOrder.State = types.Cancelled
		}
		metrics.OrdersFilled.WithLabelValues(b.run, "sl").Inc()
	case tpHit:
		price := gapThroughPrice(long, *tpOrder.TP, bar.Open, false)
		b.closeTradeAt(t, b.adjustedPriceLocked(exitSideFor(long), price), i)
		tpOrder.State = types.Filled
		if slOrder != nil && slOrder.State == types.Pending {
			slOrder.State = types.Cancelled
		}
		metrics.OrdersFilled.WithLabelValues(b.run, "tp").Inc()
	}
}

// gapThroughPrice resolves a triggered stop-loss (isStop=true) or
// take-profit (isStop=false) to the worse-of(trigger, open) price for a
// stop-loss, or the better-of for a take-profit, modeling an overnight
// gap straight through the level.
func gapThroughPrice(long bool, trigger, open float64, isStop bool) float64 {
	if isStop {
		if long {
			return minf(trigger, open)
		}
		return maxf(trigger, open)
	}
	if long {
		return maxf(trigger, open)
	}
	return minf(trigger, open)
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// tryFill implements spec.md §4.1 step 2 for a single pending order: a
// stop must be crossed before it degenerates to limit/market, a limit
// fills at the limit (or a better open), and a market order fills at
// this call's bar — the caller only reaches a given bar once the bar
// following submission has arrived, which is what gives a plain market
// order its "next bar's open" semantics.
func (b *Broker) tryFill(o *types.Order, bar types.Bar) (filled bool, price float64, kind string) {
	long := o.IsLong()

	if o.Stop != nil && !o.Activated {
		crossed := (long && bar.High >= *o.Stop) || (!long && bar.Low <= *o.Stop)
		if !crossed {
			return false, 0, ""
		}
		o.Activated = true
	}

	if o.Limit != nil {
		if long {
			if bar.Low > *o.Limit {
				return false, 0, ""
			}
			fill := *o.Limit
			if bar.Open < fill {
				fill = bar.Open
			}
			return true, b.adjustedPriceLocked(types.Buy, fill), kindOf(o)
		}
		if bar.High < *o.Limit {
			return false, 0, ""
		}
		fill := *o.Limit
		if bar.Open > fill {
			fill = bar.Open
		}
		return true, b.adjustedPriceLocked(types.Sell, fill), kindOf(o)
	}

	side := types.Sell
	if long {
		side = types.Buy
	}
	if b.cfg.TradeOnClose {
		return true, b.adjustedPriceLocked(side, bar.Close), kindOf(o)
	}
	return true, b.adjustedPriceLocked(side, bar.Open), kindOf(o)
}

func kindOf(o *types.Order) string {
	if o.Stop != nil {
		return "stop"
	}
	if o.Limit != nil {
		return "limit"
	}
	return "market"
}

// convert implements spec.md §4.1 step 3: fractional-size resolution,
// exclusive-orders liquidation, FIFO opposing-side netting when hedging
// is off, and contingent SL/TP order creation for whatever remains.
func (b *Broker) convert(o *types.Order, price float64, i int, kind string) {
	equity := b.equityLocked()
	size := o.Size
	if math.Abs(size) < 1 {
		units := math.Floor(math.Abs(size) * equity / price)
		if units == 0 {
			o.State = types.Cancelled
			return
		}
		if size < 0 {
			units = -units
		}
		size = units
	}

	if b.cfg.ExclusiveOrders {
		b.closeAllTradesAt(price, i)
		b.cancelNonContingentPending(o.ID)
	}

	remaining := size
	if !b.cfg.Hedging {
		remaining = b.closeOpposingFIFO(size, price, i)
	}
	if remaining != 0 {
		b.openTrade(remaining, price, i, o)
	}

	o.State = types.Filled
	metrics.OrdersFilled.WithLabelValues(b.run, kind).Inc()
	b.log.Info("order filled",
		logger.Int("order_id", int(o.ID)),
		logger.Float64("price", price),
		logger.Float64("size", size),
		logger.String("kind", kind))
}

// closeOpposingFIFO closes existing trades on the opposite side, oldest
// first, up to |size|, and returns whatever portion of size (same sign)
// remains to be opened as a new trade.
func (b *Broker) closeOpposingFIFO(size, price float64, i int) float64 {
	long := size > 0
	remaining := size
	kept := b.openTradeOrder[:0]
	for _, tid := range append([]types.TradeID(nil), b.openTradeOrder...) {
		t := b.trades[tid]
		if t == nil || !t.IsOpen() || remaining == 0 {
			if t != nil && t.IsOpen() {
				kept = append(kept, tid)
			}
			continue
		}
		opposing := (long && !t.IsLong()) || (!long && t.IsLong())
		if !opposing {
			kept = append(kept, tid)
			continue
		}
		avail := math.Abs(t.Size)
		take := minf(avail, math.Abs(remaining))
		if take >= avail {
			b.closeTradeAt(t, price, i)
		} else {
			b.partialCloseTrade(t, take, price, i)
		}
		if long {
			remaining -= take
		} else {
			remaining += take
		}
		if t.IsOpen() {
			kept = append(kept, tid)
		}
	}
	b.openTradeOrder = kept
	return remaining
}

// openTrade books a new trade, deducting entry commission and the full
// notional from cash (so equity[i] = cash + Σ size·close holds without
// double-counting), subject to the margin-ratio buying-power check.
func (b *Broker) openTrade(size, price float64, i int, o *types.Order) {
	required := math.Abs(size) * price * b.cfg.Margin
	if required > b.equityLocked() {
		o.State = types.Cancelled
		b.log.Warn("order cancelled: insufficient margin",
			logger.Float64("required", required), logger.Float64("equity", b.equityLocked()))
		return
	}

	fee := b.feeForFill(sideOf(size), size, price)
	b.cash -= size*price + fee

	b.nextTradeID++
	tid := b.nextTradeID
	t := &types.Trade{ID: tid, Size: size, EntryPrice: price, EntryBar: i, ExitBar: -1, Tag: o.Tag}
	if o.SL != nil || o.TP != nil {
		t.SLOrder, t.TPOrder = b.attachContingent(tid, o.SL, o.TP)
	}
	b.trades[tid] = t
	b.openTradeOrder = append(b.openTradeOrder, tid)
}

// attachContingent creates the SL and/or TP child orders for a trade.
// These never enter the pending queue — checkContingency reaches them
// directly through Trade.SLOrder/TPOrder.
func (b *Broker) attachContingent(parent types.TradeID, sl, tp *float64) (types.OrderID, types.OrderID) {
	var slID, tpID types.OrderID
	if sl != nil {
		b.nextOrderID++
		slID = b.nextOrderID
		v := *sl
		b.orders[slID] = &types.Order{ID: slID, Parent: parent, SL: &v, State: types.Pending}
	}
	if tp != nil {
		b.nextOrderID++
		tpID = b.nextOrderID
		v := *tp
		b.orders[tpID] = &types.Order{ID: tpID, Parent: parent, TP: &v, State: types.Pending}
	}
	return slID, tpID
}

func (b *Broker) cancelContingent(t *types.Trade) {
	if o := b.orders[t.SLOrder]; o != nil && o.State == types.Pending {
		o.State = types.Cancelled
	}
	if o := b.orders[t.TPOrder]; o != nil && o.State == types.Pending {
		o.State = types.Cancelled
	}
}

func (b *Broker) closeTradeAt(t *types.Trade, price float64, i int) {
	fee := b.feeForFill(exitSideFor(t.IsLong()), t.Size, price)
	b.cash += t.Size*price - fee
	t.ExitPrice = price
	t.ExitBar = i
	b.closedTrades = append(b.closedTrades, *t)
	metrics.TradesClosed.WithLabelValues(b.run).Inc()
	b.cancelContingent(t)
}

// partialCloseTrade books the realized P/L on take units of t (FIFO
// opposing-order netting only ever closes a slice), leaving the
// remainder open at the same entry price and bar.
func (b *Broker) partialCloseTrade(t *types.Trade, take, price float64, i int) {
	sign := 1.0
	if !t.IsLong() {
		sign = -1
	}
	closedSize := sign * take

	fee := b.feeForFill(exitSideFor(t.IsLong()), closedSize, price)
	b.cash += closedSize*price - fee

	b.closedTrades = append(b.closedTrades, types.Trade{
		ID: t.ID, Size: closedSize, EntryPrice: t.EntryPrice, EntryBar: t.EntryBar,
		ExitPrice: price, ExitBar: i, Tag: t.Tag,
	})
	metrics.TradesClosed.WithLabelValues(b.run).Inc()
	t.Size -= closedSize
}

func (b *Broker) closeAllTradesAt(price float64, i int) {
	for _, tid := range b.openTradeOrder {
		if t := b.trades[tid]; t != nil && t.IsOpen() {
			b.closeTradeAt(t, b.adjustedPriceLocked(exitSideFor(t.IsLong()), price), i)
		}
	}
	b.openTradeOrder = nil
}

func (b *Broker) cancelNonContingentPending(except types.OrderID) {
	kept := b.pending[:0]
	for _, oid := range append([]types.OrderID(nil), b.pending...) {
		if oid == except {
			kept = append(kept, oid)
			continue
		}
		if o := b.orders[oid]; o != nil {
			o.State = types.Cancelled
		}
	}
	b.pending = kept
}

// Finalize closes every still-open trade at the series' last close when
// FinalizeTrades is set, otherwise discards them from ClosedTrades with
// a warning; the already-recorded equity curve is unaffected either
// way, since it was marked-to-market bar by bar.
func (b *Broker) Finalize(lastBarIndex int, lastClose float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return
	}
	if b.cfg.FinalizeTrades {
		for _, tid := range b.openTradeOrder {
			if t := b.trades[tid]; t != nil && t.IsOpen() {
				b.closeTradeAt(t, b.adjustedPriceLocked(exitSideFor(t.IsLong()), lastClose), lastBarIndex)
			}
		}
		b.openTradeOrder = nil
	} else if len(b.openTradeOrder) > 0 {
		b.log.Warn("residual open trades discarded, not finalized",
			logger.Int("count", len(b.openTradeOrder)))
	}
	b.finalized = true
}

// ClosePosition implements types.PositionCloser: it closes portion
// (0,1] of every open trade at the last processed bar's close, rounding
// each trade's closed units down to at least 1 whenever portion > 0.
func (b *Broker) ClosePosition(portion float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.openTradeOrder[:0]
	for _, tid := range append([]types.TradeID(nil), b.openTradeOrder...) {
		t := b.trades[tid]
		if t == nil || !t.IsOpen() {
			continue
		}
		units := math.Trunc(math.Abs(t.Size) * portion)
		if units < 1 {
			units = 1
		}
		fillPrice := b.adjustedPriceLocked(exitSideFor(t.IsLong()), b.bar.Close)
		if units >= math.Abs(t.Size) {
			b.closeTradeAt(t, fillPrice, b.barIndex)
		} else {
			b.partialCloseTrade(t, units, fillPrice, b.barIndex)
		}
		if t.IsOpen() {
			kept = append(kept, tid)
		}
	}
	b.openTradeOrder = kept
	return nil
}
