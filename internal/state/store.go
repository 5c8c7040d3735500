package state

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/spikebot/internal/domain"
)

// Store holds the engine's shared in-memory state: tracked market pairs,
// bounded per-asset price histories, active trades, and the per-asset entry
// cooldown registry. A single lock guards all of it; no method performs I/O
// or blocks while holding the lock, so contention stays negligible even with
// every worker hitting the store on its own cadence.
type Store struct {
	mu         sync.RWMutex
	pairs      map[string]domain.MarketPair   // keyed by both outcome-token IDs
	histories  map[string][]domain.PricePoint // oldest first, len <= historyCap
	trades     map[string]domain.ActiveTrade  // keyed by asset, one per asset
	lastEntry  map[string]time.Time
	historyCap int
	maxOpen    int
	cooldown   time.Duration
}

// NewStore creates an empty Store. historyCap bounds each asset's price
// history, maxOpen caps the number of simultaneously open trades, and
// cooldown is the minimum interval between entries on the same asset.
func NewStore(historyCap, maxOpen int, cooldown time.Duration) *Store {
	return &Store{
		pairs:      make(map[string]domain.MarketPair),
		histories:  make(map[string][]domain.PricePoint),
		trades:     make(map[string]domain.ActiveTrade),
		lastEntry:  make(map[string]time.Time),
		historyCap: historyCap,
		maxOpen:    maxOpen,
		cooldown:   cooldown,
	}
}

// UpsertMarketPair registers or refreshes a pair under both of its asset
// keys and ensures a history slot exists for each asset. Re-upserting an
// already-tracked pair never clears accumulated history.
func (s *Store) UpsertMarketPair(p domain.MarketPair) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pairs[p.YesAsset] = p
	s.pairs[p.NoAsset] = p
	if _, ok := s.histories[p.YesAsset]; !ok {
		s.histories[p.YesAsset] = nil
	}
	if _, ok := s.histories[p.NoAsset]; !ok {
		s.histories[p.NoAsset] = nil
	}
}

// AppendPrice records a price observation for the given asset, stamped with
// the current time, and reports whether it was stored. Appends for assets
// that are not tracked are silently dropped. When the history is at
// capacity the oldest point is evicted.
func (s *Store) AppendPrice(asset string, price float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.histories[asset]
	if !ok {
		return false
	}
	h = append(h, domain.PricePoint{Price: price, Timestamp: time.Now()})
	if len(h) > s.historyCap {
		h = h[len(h)-s.historyCap:]
	}
	s.histories[asset] = h
	return true
}

// ReadPriceHistory returns a copy of the asset's history, oldest first.
// The returned slice is safe to mutate. Untracked assets yield nil.
func (s *Store) ReadPriceHistory(asset string) []domain.PricePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.histories[asset]
	if len(src) == 0 {
		return nil
	}
	out := make([]domain.PricePoint, len(src))
	copy(out, src)
	return out
}

// LatestPrice returns the most recent observation for the asset, if any.
func (s *Store) LatestPrice(asset string) (domain.PricePoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.histories[asset]
	if len(h) == 0 {
		return domain.PricePoint{}, false
	}
	return h[len(h)-1], true
}

// TrackedAssets returns the IDs of every asset with a history slot.
func (s *Store) TrackedAssets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.histories))
	for asset := range s.histories {
		out = append(out, asset)
	}
	return out
}

// PairForAsset returns the market pair an asset belongs to.
func (s *Store) PairForAsset(asset string) (domain.MarketPair, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pairs[asset]
	return p, ok
}

// CanEnterTrade reports whether an entry on the asset would currently be
// accepted. It is a cheap read-only precondition check for callers that
// must do slow work (placing the order) before committing the entry; the
// authoritative re-check happens inside TryEnterTrade.
func (s *Store) CanEnterTrade(asset string, now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.eligible(asset, now)
}

// TryEnterTrade atomically records a new active trade for the asset if no
// trade is open on it, the open-trade cap has room, and the per-asset
// cooldown has elapsed. On success it returns the recorded trade and true,
// and the cooldown clock restarts at now. On failure nothing is mutated.
// Under concurrent callers at most one entry per asset succeeds.
func (s *Store) TryEnterTrade(asset string, price float64, now time.Time) (domain.ActiveTrade, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.eligible(asset, now) {
		return domain.ActiveTrade{}, false
	}
	t := domain.ActiveTrade{
		ID:         uuid.NewString(),
		Asset:      asset,
		EntryPrice: price,
		EntryTime:  now,
	}
	s.trades[asset] = t
	s.lastEntry[asset] = now
	return t, true
}

// ExitTrade atomically removes and returns the asset's active trade. A
// second call for the same asset reports false; callers treat that as a
// no-op.
func (s *Store) ExitTrade(asset string) (domain.ActiveTrade, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trades[asset]
	if !ok {
		return domain.ActiveTrade{}, false
	}
	delete(s.trades, asset)
	return t, true
}

// SnapshotActiveTrades returns a copy of all open trades.
func (s *Store) SnapshotActiveTrades() []domain.ActiveTrade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ActiveTrade, 0, len(s.trades))
	for _, t := range s.trades {
		out = append(out, t)
	}
	return out
}

// OpenTradeCount returns the number of open trades.
func (s *Store) OpenTradeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.trades)
}

// eligible applies the three entry preconditions. The caller must hold s.mu.
func (s *Store) eligible(asset string, now time.Time) bool {
	if _, open := s.trades[asset]; open {
		return false
	}
	if len(s.trades) >= s.maxOpen {
		return false
	}
	if last, ok := s.lastEntry[asset]; ok && now.Sub(last) < s.cooldown {
		return false
	}
	return true
}
