package broker

import (
	"testing"

	"github.com/evdnx/backcast/config"
	"github.com/evdnx/backcast/errs"
	"github.com/evdnx/backcast/testutils"
	"github.com/evdnx/backcast/types"
)

func newTestBroker(t *testing.T, cfg config.BrokerConfig) *Broker {
	t.Helper()
	b, err := New(cfg, testutils.NewMockLogger(), "test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return b
}

func ptr(v float64) *float64 { return &v }

func TestConstantPriceSanityNoSpreadNoCommission(t *testing.T) {
	cfg := config.DefaultBrokerConfig()
	cfg.Cash = 10_000
	b := newTestBroker(t, cfg)

	bar := types.Bar{Open: 100, High: 100, Low: 100, Close: 100, Volume: 1}
	if err := b.OnBar(0, bar); err != nil {
		t.Fatalf("OnBar(0) error = %v", err)
	}
	if _, err := b.Submit(types.Order{Size: 10}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := b.OnBar(1, bar); err != nil {
		t.Fatalf("OnBar(1) error = %v", err)
	}

	trades := b.Trades()
	if len(trades) != 1 {
		t.Fatalf("expected 1 open trade, got %d", len(trades))
	}
	if trades[0].EntryPrice != 100 {
		t.Fatalf("EntryPrice = %v, want 100", trades[0].EntryPrice)
	}
	if got := b.Equity(); got != 10_000 {
		t.Fatalf("Equity() = %v, want 10000 (no spread/commission at constant price)", got)
	}
}

func TestCommissionChargedOnBothLegs(t *testing.T) {
	t.Run("fixed commission via ClosePosition", func(t *testing.T) {
		cfg := config.DefaultBrokerConfig()
		cfg.Cash = 10_000
		cfg.Commission = config.NewFixedPlusRelativeCommission(1, 0)
		b := newTestBroker(t, cfg)

		bar := types.Bar{Open: 100, High: 100, Low: 100, Close: 100, Volume: 1}
		if err := b.OnBar(0, bar); err != nil {
			t.Fatal(err)
		}
		if _, err := b.Submit(types.Order{Size: 10}); err != nil {
			t.Fatal(err)
		}
		if err := b.OnBar(1, bar); err != nil {
			t.Fatal(err)
		}

		trade := b.Trades()[0]
		if err := b.ClosePosition(1); err != nil {
			t.Fatalf("ClosePosition() error = %v", err)
		}
		closed := b.ClosedTrades()
		if len(closed) != 1 {
			t.Fatalf("expected 1 closed trade, got %d", len(closed))
		}
		// 10000 cash - (10*100 entry notional) - 1 entry fee, then close at
		// 100 again: +1000 - 1 exit fee = 10000 - 2 in total commission.
		if got := b.Equity(); got != 9_998 {
			t.Fatalf("Equity() = %v, want 9998 after two 1-unit commissions", got)
		}
		_ = trade
	})

	// spec.md §8 scenario 2: a relative commission must also be charged
	// on the Finalize exit leg, not just on explicit closes.
	t.Run("relative commission via Finalize", func(t *testing.T) {
		cfg := config.DefaultBrokerConfig()
		cfg.Cash = 10_000
		cfg.Commission = config.NewFlatCommission(0.01)
		b := newTestBroker(t, cfg)

		bar := types.Bar{Open: 100, High: 100, Low: 100, Close: 100, Volume: 1}
		if err := b.OnBar(0, bar); err != nil {
			t.Fatal(err)
		}
		if _, err := b.Submit(types.Order{Size: 1}); err != nil {
			t.Fatal(err)
		}
		if err := b.OnBar(1, bar); err != nil {
			t.Fatal(err)
		}

		trades := b.Trades()
		if len(trades) != 1 || trades[0].EntryPrice != 101 {
			t.Fatalf("expected entry at adjusted price 101, got %+v", trades)
		}

		b.Finalize(1, 100)
		closed := b.ClosedTrades()
		if len(closed) != 1 || closed[0].ExitPrice != 99 {
			t.Fatalf("expected finalize exit at adjusted price 99, got %+v", closed)
		}
		// Entry adjusted price 101, exit adjusted price 99, PnL = -2 on
		// size 1, final equity = 10000 - 2 = 9998.
		if got := b.Equity(); got != 9_998 {
			t.Fatalf("Equity() = %v, want 9998 after finalize with relative commission", got)
		}
	})
}

func TestStopLossWinsTieBreak(t *testing.T) {
	cfg := config.DefaultBrokerConfig()
	cfg.Cash = 10_000
	b := newTestBroker(t, cfg)

	entryBar := types.Bar{Open: 100, High: 100, Low: 100, Close: 100, Volume: 1}
	if err := b.OnBar(0, entryBar); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Submit(types.Order{Size: 10, SL: ptr(90), TP: ptr(110)}); err != nil {
		t.Fatal(err)
	}
	if err := b.OnBar(1, entryBar); err != nil {
		t.Fatal(err)
	}
	if len(b.Trades()) != 1 {
		t.Fatalf("expected trade opened at bar 1, got %d open trades", len(b.Trades()))
	}

	// Bar 2: both SL (90) and TP (110) are within range — SL must win.
	wideBar := types.Bar{Open: 100, High: 111, Low: 89, Close: 100, Volume: 1}
	if err := b.OnBar(2, wideBar); err != nil {
		t.Fatal(err)
	}
	if len(b.Trades()) != 0 {
		t.Fatalf("expected trade closed by contingency, got %d still open", len(b.Trades()))
	}
	closed := b.ClosedTrades()
	if len(closed) != 1 {
		t.Fatalf("expected exactly 1 closed trade, got %d", len(closed))
	}
	if closed[0].ExitPrice != 90 {
		t.Fatalf("ExitPrice = %v, want 90 (stop-loss must win the tie)", closed[0].ExitPrice)
	}
}

func TestExclusiveOrdersFlipsPosition(t *testing.T) {
	cfg := config.DefaultBrokerConfig()
	cfg.Cash = 10_000
	cfg.ExclusiveOrders = true
	b := newTestBroker(t, cfg)

	bar := types.Bar{Open: 100, High: 100, Low: 100, Close: 100, Volume: 1}
	if err := b.OnBar(0, bar); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Submit(types.Order{Size: 10}); err != nil {
		t.Fatal(err)
	}
	if err := b.OnBar(1, bar); err != nil {
		t.Fatal(err)
	}
	if got := b.Trades()[0].Size; got != 10 {
		t.Fatalf("initial long size = %v, want 10", got)
	}

	if _, err := b.Submit(types.Order{Size: -5}); err != nil {
		t.Fatal(err)
	}
	if err := b.OnBar(2, bar); err != nil {
		t.Fatal(err)
	}

	trades := b.Trades()
	if len(trades) != 1 {
		t.Fatalf("expected exactly 1 trade after exclusive flip, got %d", len(trades))
	}
	if trades[0].Size != -5 {
		t.Fatalf("flipped size = %v, want -5 (old long closed, new short opened)", trades[0].Size)
	}
}

func TestHedgingOffClosesOpposingFIFO(t *testing.T) {
	cfg := config.DefaultBrokerConfig()
	cfg.Cash = 10_000
	b := newTestBroker(t, cfg)

	bar := types.Bar{Open: 100, High: 100, Low: 100, Close: 100, Volume: 1}
	if err := b.OnBar(0, bar); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Submit(types.Order{Size: 10}); err != nil {
		t.Fatal(err)
	}
	if err := b.OnBar(1, bar); err != nil {
		t.Fatal(err)
	}

	if _, err := b.Submit(types.Order{Size: -4}); err != nil {
		t.Fatal(err)
	}
	if err := b.OnBar(2, bar); err != nil {
		t.Fatal(err)
	}

	trades := b.Trades()
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade remaining (partially closed), got %d", len(trades))
	}
	if trades[0].Size != 6 {
		t.Fatalf("remaining long size = %v, want 6 (10 - 4 netted)", trades[0].Size)
	}
	closed := b.ClosedTrades()
	if len(closed) != 1 || closed[0].Size != 4 {
		t.Fatalf("expected one closed slice of size 4, got %+v", closed)
	}
}

func TestOutOfMoneyGuard(t *testing.T) {
	cfg := config.DefaultBrokerConfig()
	cfg.Cash = 100
	cfg.Margin = 1
	b := newTestBroker(t, cfg)

	crashBar := types.Bar{Open: 100, High: 100, Low: 0, Close: 0, Volume: 1}
	if err := b.OnBar(0, crashBar); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Submit(types.Order{Size: 1}); err != nil {
		t.Fatal(err)
	}
	err := b.OnBar(1, crashBar)
	if err != errs.ErrOutOfMoney {
		t.Fatalf("OnBar() error = %v, want ErrOutOfMoney", err)
	}
}

func TestFinalizeClosesResidualTrades(t *testing.T) {
	cfg := config.DefaultBrokerConfig()
	cfg.Cash = 10_000
	b := newTestBroker(t, cfg)

	bar := types.Bar{Open: 100, High: 100, Low: 100, Close: 100, Volume: 1}
	if err := b.OnBar(0, bar); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Submit(types.Order{Size: 10}); err != nil {
		t.Fatal(err)
	}
	if err := b.OnBar(1, bar); err != nil {
		t.Fatal(err)
	}

	b.Finalize(1, 105)
	if len(b.Trades()) != 0 {
		t.Fatalf("expected no open trades after Finalize, got %d", len(b.Trades()))
	}
	closed := b.ClosedTrades()
	if len(closed) != 1 || closed[0].ExitPrice != 105 {
		t.Fatalf("expected trade finalized at close 105, got %+v", closed)
	}
}
