package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/alanyoungcy/spikebot/internal/domain"
	"github.com/alanyoungcy/spikebot/internal/state"
)

func fptr(v float64) *float64 {
	return &v
}

func dptr(d time.Duration) *time.Duration {
	return &d
}

func TestEvaluateExitPriority(t *testing.T) {
	entry := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	trade := domain.ActiveTrade{ID: "t1", Asset: "yes", EntryPrice: 10.0, EntryTime: entry}

	cases := []struct {
		name   string
		price  float64
		size   float64
		rules  ExitRules
		now    time.Time
		reason domain.ExitReason
		fires  bool
	}{
		{
			name:   "pct profit wins over later rules",
			price:  10.5,
			size:   20,
			rules:  ExitRules{TakeProfitPct: fptr(0.03), StopLossCash: fptr(-50)},
			now:    entry.Add(time.Minute),
			reason: domain.ExitPctProfit,
			fires:  true,
		},
		{
			name:   "pct profit outranks cash profit when both fire",
			price:  12.0,
			size:   20,
			rules:  ExitRules{TakeProfitPct: fptr(0.10), TakeProfitCash: fptr(1.0)},
			now:    entry.Add(time.Minute),
			reason: domain.ExitPctProfit,
			fires:  true,
		},
		{
			name:   "cash profit",
			price:  11.0,
			size:   20,
			rules:  ExitRules{TakeProfitCash: fptr(2.0)},
			now:    entry.Add(time.Minute),
			reason: domain.ExitCashProfit,
			fires:  true,
		},
		{
			name:   "pct loss fires on negative threshold",
			price:  9.0,
			size:   20,
			rules:  ExitRules{StopLossPct: fptr(-0.05)},
			now:    entry.Add(time.Minute),
			reason: domain.ExitPctLoss,
			fires:  true,
		},
		{
			name:   "cash loss",
			price:  9.0,
			size:   20,
			rules:  ExitRules{StopLossCash: fptr(-1.0)},
			now:    entry.Add(time.Minute),
			reason: domain.ExitCashLoss,
			fires:  true,
		},
		{
			name:   "time limit",
			price:  10.0,
			size:   20,
			rules:  ExitRules{MaxHolding: dptr(time.Hour)},
			now:    entry.Add(2 * time.Hour),
			reason: domain.ExitTimeLimit,
			fires:  true,
		},
		{
			name:  "time limit not reached",
			price: 10.0,
			size:  20,
			rules: ExitRules{MaxHolding: dptr(time.Hour)},
			now:   entry.Add(30 * time.Minute),
			fires: false,
		},
		{
			name:  "time limit only ignores pnl",
			price: 20.0,
			size:  20,
			rules: ExitRules{MaxHolding: dptr(time.Hour)},
			now:   entry.Add(30 * time.Minute),
			fires: false,
		},
		{
			name:  "small loss does not trip stop",
			price: 9.8,
			size:  20,
			rules: ExitRules{StopLossPct: fptr(-0.05)},
			now:   entry.Add(time.Minute),
			fires: false,
		},
		{
			name:  "no rules configured",
			price: 20.0,
			size:  20,
			rules: ExitRules{},
			now:   entry.Add(100 * time.Hour),
			fires: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, fired := evaluateExit(trade, tc.price, tc.size, tc.rules, tc.now)
			if fired != tc.fires {
				t.Fatalf("Expected fires=%v, got %v", tc.fires, fired)
			}
			if fired && d.Reason != tc.reason {
				t.Errorf("Expected reason %s, got %s", tc.reason, d.Reason)
			}
		})
	}
}

func TestEvaluateExitPnL(t *testing.T) {
	entry := time.Now()
	trade := domain.ActiveTrade{Asset: "yes", EntryPrice: 0.50, EntryTime: entry}

	// 0.50 -> 0.60 is +20%; on a 20 USDC position that is +4 cash.
	d, fired := evaluateExit(trade, 0.60, 20, ExitRules{TakeProfitPct: fptr(0.10)}, entry.Add(time.Second))
	if !fired {
		t.Fatal("Expected exit to fire")
	}
	if math.Abs(d.PnLPct-0.20) > 1e-9 {
		t.Errorf("Expected pnl_pct 0.20, got %v", d.PnLPct)
	}
	if math.Abs(d.PnLCash-4.0) > 1e-9 {
		t.Errorf("Expected pnl_cash 4.0, got %v", d.PnLCash)
	}
}

func TestEvaluateExitZeroEntryPrice(t *testing.T) {
	trade := domain.ActiveTrade{Asset: "yes", EntryPrice: 0}
	if _, fired := evaluateExit(trade, 0.5, 20, ExitRules{TakeProfitPct: fptr(0.01)}, time.Now()); fired {
		t.Error("Expected no exit for zero entry price")
	}
}

func newExitStore(t *testing.T) *state.Store {
	t.Helper()
	s := state.NewStore(50, 5, 0)
	s.UpsertMarketPair(domain.MarketPair{
		YesAsset: "yes", NoAsset: "no", Question: "Will it rain?", Liquidity: 5000,
	})
	return s
}

func TestExitManagerClosesTrade(t *testing.T) {
	store := newExitStore(t)
	store.AppendPrice("yes", 0.50)
	if _, ok := store.TryEnterTrade("yes", 0.50, time.Now()); !ok {
		t.Fatal("Expected seed trade to enter")
	}
	store.AppendPrice("yes", 0.60)

	gw := &fakeGateway{}
	journal := &fakeJournal{}
	bus := &fakeBus{}
	rules := ExitRules{TakeProfitPct: fptr(0.10)}

	mgr := NewExitManager(store, gw, TradeHooks{Journal: journal, Bus: bus}, rules, 20, testLogger())
	if err := mgr.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if gw.sellCount() != 1 {
		t.Fatalf("Expected 1 sell, got %d", gw.sellCount())
	}
	if store.OpenTradeCount() != 0 {
		t.Fatalf("Expected no open trades, got %d", store.OpenTradeCount())
	}

	if len(journal.exits) != 1 {
		t.Fatalf("Expected 1 journaled exit, got %d", len(journal.exits))
	}
	closed := journal.exits[0]
	if closed.Reason != domain.ExitPctProfit {
		t.Errorf("Expected reason pct_profit, got %s", closed.Reason)
	}
	if closed.ExitPrice != 0.60 {
		t.Errorf("Expected exit price 0.60, got %v", closed.ExitPrice)
	}
	if math.Abs(closed.PnLPct-0.20) > 1e-9 {
		t.Errorf("Expected pnl_pct 0.20, got %v", closed.PnLPct)
	}
	if math.Abs(closed.PnLCash-4.0) > 1e-9 {
		t.Errorf("Expected pnl_cash 4.0, got %v", closed.PnLCash)
	}

	if len(bus.events) != 1 || bus.events[0].Type != domain.TradeEventExit {
		t.Errorf("Expected one exit event on the bus")
	}
}

func TestExitManagerSellFailureKeepsTrade(t *testing.T) {
	store := newExitStore(t)
	store.AppendPrice("yes", 0.50)
	if _, ok := store.TryEnterTrade("yes", 0.50, time.Now()); !ok {
		t.Fatal("Expected seed trade to enter")
	}
	store.AppendPrice("yes", 0.60)

	gw := &fakeGateway{sellErr: errors.New("exchange down")}
	rules := ExitRules{TakeProfitPct: fptr(0.10)}
	mgr := NewExitManager(store, gw, TradeHooks{}, rules, 20, testLogger())

	if err := mgr.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if store.OpenTradeCount() != 1 {
		t.Fatalf("Expected trade to stay open after failed sell, got %d", store.OpenTradeCount())
	}

	// Once the gateway recovers, the next cycle closes it.
	gw.mu.Lock()
	gw.sellErr = nil
	gw.mu.Unlock()

	if err := mgr.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if store.OpenTradeCount() != 0 {
		t.Errorf("Expected trade closed on retry, got %d open", store.OpenTradeCount())
	}
}

func TestExitManagerNoPriceSkips(t *testing.T) {
	store := newExitStore(t)
	if _, ok := store.TryEnterTrade("yes", 0.50, time.Now()); !ok {
		t.Fatal("Expected seed trade to enter")
	}

	gw := &fakeGateway{}
	mgr := NewExitManager(store, gw, TradeHooks{}, ExitRules{TakeProfitPct: fptr(0.01)}, 20, testLogger())

	if err := mgr.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if gw.sellCount() != 0 {
		t.Errorf("Expected no sells without a price, got %d", gw.sellCount())
	}
	if store.OpenTradeCount() != 1 {
		t.Errorf("Expected trade to stay open, got %d", store.OpenTradeCount())
	}
}

func TestExitManagerRunLoopStops(t *testing.T) {
	store := newExitStore(t)
	mgr := NewExitManager(store, &fakeGateway{}, TradeHooks{}, ExitRules{}, 20, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- mgr.RunLoop(ctx, 10*time.Millisecond)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunLoop did not stop after cancellation")
	}
}
