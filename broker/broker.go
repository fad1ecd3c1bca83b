// Package broker implements the order-matching engine: the arena of
// orders and trades, cash/margin bookkeeping, and the bar-by-bar
// matching loop described in spec.md §4.1. It generalizes the teacher's
// PaperExecutor (lock, mutate, log, bump metrics) to real order
// semantics — limit/stop/contingent fills with spread and commission —
// instead of perfect-fill paper trading.
package broker

import (
	"sync"

	"github.com/evdnx/backcast/config"
	"github.com/evdnx/backcast/logger"
	"github.com/evdnx/backcast/metrics"
	"github.com/evdnx/backcast/types"
)

// Broker owns the order and trade arenas for a single backtest run. All
// mutation is funneled through Submit, OnBar, ClosePosition and
// Finalize, each mutex-protected so
// a strategy may safely read Equity/Position from a goroutine other
// than the simulation loop (e.g. a UI refresh) while a run is in
// flight.
type Broker struct {
	mu  sync.Mutex
	log logger.Logger
	run string // metrics/log label identifying this run among concurrent ones
	cfg config.BrokerConfig

	cash float64

	nextOrderID types.OrderID
	nextTradeID types.TradeID

	orders  map[types.OrderID]*types.Order
	pending []types.OrderID // non-contingent orders awaiting a fill, submission order

	trades         map[types.TradeID]*types.Trade
	openTradeOrder []types.TradeID // FIFO order of still-open trades
	closedTrades   []types.Trade

	equityCurve []float64
	barIndex    int
	bar         types.Bar

	finalized bool
}

// New builds a Broker from a validated BrokerConfig. run labels the
// Prometheus series and log lines this broker produces, letting a grid
// optimizer (optimize package) run many brokers concurrently without
// their metrics colliding.
func New(cfg config.BrokerConfig, log logger.Logger, run string) (*Broker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Broker{
		log:    log,
		run:    run,
		cfg:    cfg,
		cash:   cfg.Cash,
		orders: make(map[types.OrderID]*types.Order),
		trades: make(map[types.TradeID]*types.Trade),
	}, nil
}

// Submit validates and enqueues a new top-level order. Contingent SL/TP
// orders are never submitted this way — they are created internally by
// the broker when a trade opens (see attachContingent in fill.go).
//
// When the broker runs with TradeOnClose and the order is a plain
// market order (no Limit, no Stop), the fill happens synchronously
// inside Submit at the current bar's close, matching spec.md §4.1's
// "market orders fill ... at this bar's Close" timing for that mode;
// otherwise the order is queued and resolved by the next OnBar call.
func (b *Broker) Submit(o types.Order) (types.OrderID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ref := b.bar.Close
	if o.Limit != nil {
		ref = *o.Limit
	}
	if err := types.ValidateOrder(o, ref); err != nil {
		return 0, err
	}

	b.nextOrderID++
	id := b.nextOrderID
	o.ID = id
	o.State = types.Pending
	b.orders[id] = &o

	metrics.OrdersSubmitted.WithLabelValues(b.run).Inc()
	b.log.Info("order submitted",
		logger.Int("order_id", int(id)),
		logger.Float64("size", o.Size),
		logger.String("tag", o.Tag))

	if b.cfg.TradeOnClose && o.Stop == nil && o.Limit == nil {
		stored := b.orders[id]
		price := b.adjustedPriceLocked(sideOf(stored.Size), b.bar.Close)
		b.convert(stored, price, b.barIndex, "market")
		return id, nil
	}

	b.pending = append(b.pending, id)
	return id, nil
}

// Cash returns the broker's uninvested cash balance.
func (b *Broker) Cash() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cash
}

// Equity returns cash plus the mark-to-market value of every open trade
// at the last processed bar's close.
func (b *Broker) Equity() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.equityLocked()
}

func (b *Broker) equityLocked() float64 {
	eq := b.cash
	for _, tid := range b.openTradeOrder {
		if t := b.trades[tid]; t != nil && t.IsOpen() {
			eq += t.Size * b.bar.Close
		}
	}
	return eq
}

// EquityCurve returns the per-bar equity series recorded by OnBar.
func (b *Broker) EquityCurve() []float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]float64, len(b.equityCurve))
	copy(out, b.equityCurve)
	return out
}

// Position returns a read-only snapshot of every open trade, wired to
// this broker as its PositionCloser so strategy.Context.Position().
// Close(...) round-trips back into the matching engine.
func (b *Broker) Position() types.Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	trades := make([]types.Trade, 0, len(b.openTradeOrder))
	for _, tid := range b.openTradeOrder {
		if t := b.trades[tid]; t != nil && t.IsOpen() {
			trades = append(trades, *t)
		}
	}
	return types.Position{Trades: trades, Closer: b}
}

// Orders returns every order still in the Pending state.
func (b *Broker) Orders() []types.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]types.Order, 0, len(b.pending))
	for _, oid := range b.pending {
		if o := b.orders[oid]; o != nil && o.State == types.Pending {
			out = append(out, *o)
		}
	}
	return out
}

// Trades returns every currently open trade (equivalent to
// Position().Trades but without the PositionCloser wiring).
func (b *Broker) Trades() []types.Trade {
	return b.Position().Trades
}

// ClosedTrades returns every trade that has been closed so far,
// including ones closed by Finalize.
func (b *Broker) ClosedTrades() []types.Trade {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]types.Trade, len(b.closedTrades))
	copy(out, b.closedTrades)
	return out
}

func sideOf(size float64) types.Side {
	if size > 0 {
		return types.Buy
	}
	return types.Sell
}

// exitSideFor returns the side of the order that closes a position of
// the given direction (selling closes a long, buying closes a short).
func exitSideFor(long bool) types.Side {
	if long {
		return types.Sell
	}
	return types.Buy
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
