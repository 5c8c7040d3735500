package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/alanyoungcy/spikebot/internal/domain"
	"github.com/alanyoungcy/spikebot/internal/state"
)

// fakeMarketSource serves markets page by page.
type fakeMarketSource struct {
	markets []domain.Market
	calls   []int // offsets requested
	err     error
}

func (f *fakeMarketSource) GetActiveMarkets(ctx context.Context, limit, offset int) ([]domain.Market, error) {
	f.calls = append(f.calls, offset)
	if f.err != nil {
		return nil, f.err
	}
	if offset >= len(f.markets) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.markets) {
		end = len(f.markets)
	}
	return f.markets[offset:end], nil
}

func openMarket(id string, assets []string, liquidity float64) domain.Market {
	return domain.Market{
		ID:        id,
		Question:  "Question " + id,
		AssetIDs:  assets,
		Liquidity: liquidity,
		Active:    true,
		Closed:    false,
	}
}

func TestMarketScannerTracksQualifyingPairs(t *testing.T) {
	store := state.NewStore(50, 5, 0)
	source := &fakeMarketSource{markets: []domain.Market{
		openMarket("m1", []string{"m1-yes", "m1-no"}, 5000),
		openMarket("m2", []string{"m2-yes", "m2-no"}, 100), // below liquidity floor
		openMarket("m3", []string{"m3-only"}, 5000),        // not a binary pair
		{ID: "m4", AssetIDs: []string{"m4-yes", "m4-no"}, Liquidity: 5000, Active: false}, // inactive
		{ID: "m5", AssetIDs: []string{"m5-yes", "m5-no"}, Liquidity: 5000, Active: true, Closed: true},
	}}

	cfg := MarketScannerConfig{PageSize: 100, MaxPages: 10, MinLiquidity: 1000}
	scanner := NewMarketScanner(store, source, cfg, testLogger())

	if err := scanner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	assets := store.TrackedAssets()
	if len(assets) != 2 {
		t.Fatalf("Expected 2 tracked assets, got %d: %v", len(assets), assets)
	}

	// Both sides of the qualifying pair resolve to the same market.
	for _, asset := range []string{"m1-yes", "m1-no"} {
		pair, ok := store.PairForAsset(asset)
		if !ok {
			t.Fatalf("Expected pair for asset %s", asset)
		}
		if pair.Question != "Question m1" {
			t.Errorf("Expected question for m1, got %q", pair.Question)
		}
	}
}

func TestMarketScannerPaginates(t *testing.T) {
	store := state.NewStore(50, 5, 0)

	markets := make([]domain.Market, 0, 5)
	ids := []string{"a", "b", "c", "d", "e"}
	for _, id := range ids {
		markets = append(markets, openMarket(id, []string{id + "-yes", id + "-no"}, 5000))
	}
	source := &fakeMarketSource{markets: markets}

	cfg := MarketScannerConfig{PageSize: 2, MaxPages: 10, MinLiquidity: 0}
	scanner := NewMarketScanner(store, source, cfg, testLogger())

	if err := scanner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// 5 markets at page size 2: offsets 0, 2, 4.
	wantOffsets := []int{0, 2, 4}
	if len(source.calls) != len(wantOffsets) {
		t.Fatalf("Expected %d page fetches, got %d: %v", len(wantOffsets), len(source.calls), source.calls)
	}
	for i, want := range wantOffsets {
		if source.calls[i] != want {
			t.Errorf("Expected offset %d at call %d, got %d", want, i, source.calls[i])
		}
	}

	if got := len(store.TrackedAssets()); got != 10 {
		t.Errorf("Expected 10 tracked assets, got %d", got)
	}
}

func TestMarketScannerHonoursMaxPages(t *testing.T) {
	store := state.NewStore(50, 5, 0)

	// 6 markets but only 2 pages of 2 allowed.
	markets := make([]domain.Market, 0, 6)
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		markets = append(markets, openMarket(id, []string{id + "-yes", id + "-no"}, 5000))
	}
	source := &fakeMarketSource{markets: markets}

	cfg := MarketScannerConfig{PageSize: 2, MaxPages: 2, MinLiquidity: 0}
	scanner := NewMarketScanner(store, source, cfg, testLogger())

	if err := scanner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(source.calls) != 2 {
		t.Errorf("Expected 2 page fetches, got %d", len(source.calls))
	}
	if got := len(store.TrackedAssets()); got != 8 {
		t.Errorf("Expected 8 tracked assets, got %d", got)
	}
}

func TestMarketScannerSourceError(t *testing.T) {
	store := state.NewStore(50, 5, 0)
	source := &fakeMarketSource{err: errors.New("gamma unavailable")}

	cfg := MarketScannerConfig{PageSize: 100, MaxPages: 10, MinLiquidity: 0}
	scanner := NewMarketScanner(store, source, cfg, testLogger())

	if err := scanner.Run(context.Background()); err == nil {
		t.Fatal("Expected error from failing source")
	}
	if got := len(store.TrackedAssets()); got != 0 {
		t.Errorf("Expected no tracked assets after failed scan, got %d", got)
	}
}

func TestMarketScannerReupsertKeepsHistory(t *testing.T) {
	store := state.NewStore(50, 5, 0)
	source := &fakeMarketSource{markets: []domain.Market{
		openMarket("m1", []string{"m1-yes", "m1-no"}, 5000),
	}}

	cfg := MarketScannerConfig{PageSize: 100, MaxPages: 10, MinLiquidity: 0}
	scanner := NewMarketScanner(store, source, cfg, testLogger())

	if err := scanner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	store.AppendPrice("m1-yes", 0.42)

	// A repeat discovery of the same market must not reset histories.
	if err := scanner.Run(context.Background()); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	h := store.ReadPriceHistory("m1-yes")
	if len(h) != 1 || h[0].Price != 0.42 {
		t.Errorf("Expected history preserved across rescans, got %v", h)
	}
}
