package state

import (
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/spikebot/internal/domain"
)

func TestStore_HistoryCapacityEvictsOldest(t *testing.T) {
	s := NewStore(5, 10, 0)
	s.UpsertMarketPair(domain.MarketPair{YesAsset: "yes", NoAsset: "no"})

	for i := 0; i < 8; i++ {
		if !s.AppendPrice("yes", float64(i)) {
			t.Fatalf("Expected append %d to be stored", i)
		}
	}

	h := s.ReadPriceHistory("yes")
	if len(h) != 5 {
		t.Fatalf("Expected history length 5, got %d", len(h))
	}
	// Oldest three (0,1,2) evicted; order preserved.
	for i, p := range h {
		want := float64(i + 3)
		if p.Price != want {
			t.Errorf("Expected price %.0f at index %d, got %.0f", want, i, p.Price)
		}
	}
}

func TestStore_AppendPriceUntrackedIsNoop(t *testing.T) {
	s := NewStore(5, 10, 0)

	if s.AppendPrice("unknown", 0.5) {
		t.Errorf("Expected append for untracked asset to report false")
	}

	if h := s.ReadPriceHistory("unknown"); h != nil {
		t.Errorf("Expected nil history for untracked asset, got %d points", len(h))
	}
	if assets := s.TrackedAssets(); len(assets) != 0 {
		t.Errorf("Expected no tracked assets, got %v", assets)
	}
}

func TestStore_UpsertPreservesHistory(t *testing.T) {
	s := NewStore(10, 10, 0)
	pair := domain.MarketPair{YesAsset: "yes", NoAsset: "no", Liquidity: 1000}
	s.UpsertMarketPair(pair)

	for i := 0; i < 3; i++ {
		s.AppendPrice("yes", 0.5)
	}

	// Discovery re-upserts the same pair every cycle.
	pair.Liquidity = 2000
	s.UpsertMarketPair(pair)

	if h := s.ReadPriceHistory("yes"); len(h) != 3 {
		t.Errorf("Expected history to survive re-upsert, got %d points", len(h))
	}
	if got, ok := s.PairForAsset("no"); !ok || got.Liquidity != 2000 {
		t.Errorf("Expected updated pair under no-asset key, got %+v ok=%v", got, ok)
	}
}

func TestStore_ReadPriceHistoryReturnsCopy(t *testing.T) {
	s := NewStore(5, 10, 0)
	s.UpsertMarketPair(domain.MarketPair{YesAsset: "yes", NoAsset: "no"})
	s.AppendPrice("yes", 0.40)

	h := s.ReadPriceHistory("yes")
	h[0].Price = 99

	if again := s.ReadPriceHistory("yes"); again[0].Price != 0.40 {
		t.Errorf("Expected internal history unchanged, got %.2f", again[0].Price)
	}
}

func TestStore_LatestPrice(t *testing.T) {
	s := NewStore(5, 10, 0)
	s.UpsertMarketPair(domain.MarketPair{YesAsset: "yes", NoAsset: "no"})

	if _, ok := s.LatestPrice("yes"); ok {
		t.Fatal("Expected no latest price for empty history")
	}

	s.AppendPrice("yes", 0.40)
	s.AppendPrice("yes", 0.44)

	p, ok := s.LatestPrice("yes")
	if !ok || p.Price != 0.44 {
		t.Errorf("Expected latest price 0.44, got %.2f ok=%v", p.Price, ok)
	}
}

func TestStore_TryEnterTradeConcurrentSingleWinner(t *testing.T) {
	s := NewStore(5, 10, time.Minute)
	s.UpsertMarketPair(domain.MarketPair{YesAsset: "yes", NoAsset: "no"})
	now := time.Now()

	const n = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := s.TryEnterTrade("yes", 0.5, now); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("Expected exactly 1 winning entry, got %d", wins)
	}
	if got := s.OpenTradeCount(); got != 1 {
		t.Errorf("Expected 1 open trade, got %d", got)
	}
}

func TestStore_MaxOpenTradesEnforcedConcurrently(t *testing.T) {
	const maxOpen = 3
	s := NewStore(5, maxOpen, 0)
	now := time.Now()

	assets := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	for _, a := range assets {
		s.UpsertMarketPair(domain.MarketPair{YesAsset: a, NoAsset: a + "-no"})
	}

	var wg sync.WaitGroup
	for _, a := range assets {
		wg.Add(1)
		go func(asset string) {
			defer wg.Done()
			s.TryEnterTrade(asset, 0.5, now)
		}(a)
	}
	wg.Wait()

	if got := s.OpenTradeCount(); got != maxOpen {
		t.Errorf("Expected open trade count %d, got %d", maxOpen, got)
	}
	if got := len(s.SnapshotActiveTrades()); got != maxOpen {
		t.Errorf("Expected %d trades in snapshot, got %d", maxOpen, got)
	}
}

func TestStore_ExitTradeTwice(t *testing.T) {
	s := NewStore(5, 10, 0)
	s.UpsertMarketPair(domain.MarketPair{YesAsset: "yes", NoAsset: "no"})
	now := time.Now()

	entered, ok := s.TryEnterTrade("yes", 0.5, now)
	if !ok {
		t.Fatal("Expected entry to succeed")
	}

	got, ok := s.ExitTrade("yes")
	if !ok {
		t.Fatal("Expected first exit to return the trade")
	}
	if got.ID != entered.ID || got.EntryPrice != 0.5 {
		t.Errorf("Expected exited trade %+v, got %+v", entered, got)
	}

	if _, ok := s.ExitTrade("yes"); ok {
		t.Error("Expected second exit to report absent")
	}
	if got := s.OpenTradeCount(); got != 0 {
		t.Errorf("Expected 0 open trades, got %d", got)
	}
}

func TestStore_CooldownBlocksReentry(t *testing.T) {
	s := NewStore(5, 10, 60*time.Second)
	s.UpsertMarketPair(domain.MarketPair{YesAsset: "yes", NoAsset: "no"})
	base := time.Now()

	if _, ok := s.TryEnterTrade("yes", 0.5, base); !ok {
		t.Fatal("Expected first entry at t=0 to succeed")
	}
	if _, ok := s.ExitTrade("yes"); !ok {
		t.Fatal("Expected exit to succeed")
	}

	if s.CanEnterTrade("yes", base.Add(30*time.Second)) {
		t.Error("Expected re-entry blocked at t=30s")
	}
	if _, ok := s.TryEnterTrade("yes", 0.5, base.Add(30*time.Second)); ok {
		t.Error("Expected TryEnterTrade blocked at t=30s")
	}

	if _, ok := s.TryEnterTrade("yes", 0.5, base.Add(61*time.Second)); !ok {
		t.Error("Expected re-entry allowed at t=61s")
	}
}

func TestStore_ZeroCooldownAllowsImmediateReentry(t *testing.T) {
	s := NewStore(5, 10, 0)
	s.UpsertMarketPair(domain.MarketPair{YesAsset: "yes", NoAsset: "no"})
	now := time.Now()

	if _, ok := s.TryEnterTrade("yes", 0.5, now); !ok {
		t.Fatal("Expected first entry to succeed")
	}
	s.ExitTrade("yes")

	if _, ok := s.TryEnterTrade("yes", 0.6, now); !ok {
		t.Error("Expected immediate re-entry with zero cooldown")
	}
}

func TestStore_TradeIDsAreUnique(t *testing.T) {
	s := NewStore(5, 10, 0)
	s.UpsertMarketPair(domain.MarketPair{YesAsset: "a", NoAsset: "b"})
	now := time.Now()

	t1, _ := s.TryEnterTrade("a", 0.5, now)
	t2, _ := s.TryEnterTrade("b", 0.5, now)

	if t1.ID == "" || t1.ID == t2.ID {
		t.Errorf("Expected distinct non-empty trade IDs, got %q and %q", t1.ID, t2.ID)
	}
}
