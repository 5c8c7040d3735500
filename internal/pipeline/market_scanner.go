// Package pipeline contains the engine's polling workers. Each worker owns
// one concern (market discovery, price ingestion, spike entry, exit
// management, trade archival), runs an immediate first cycle, and then
// repeats on its own interval until the context is cancelled.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/spikebot/internal/domain"
	"github.com/alanyoungcy/spikebot/internal/metrics"
)

// MarketSource retrieves active markets from an external API.
type MarketSource interface {
	GetActiveMarkets(ctx context.Context, limit, offset int) ([]domain.Market, error)
}

// PairStore receives discovered market pairs.
type PairStore interface {
	UpsertMarketPair(p domain.MarketPair)
	TrackedAssets() []string
}

// MarketScannerConfig bounds a discovery run.
type MarketScannerConfig struct {
	PageSize     int
	MaxPages     int
	MinLiquidity float64
}

// MarketScanner discovers tradeable binary markets and registers their
// asset pairs with the store.
type MarketScanner struct {
	store  PairStore
	source MarketSource
	cfg    MarketScannerConfig
	logger *slog.Logger
}

// NewMarketScanner creates a new MarketScanner.
func NewMarketScanner(store PairStore, source MarketSource, cfg MarketScannerConfig, logger *slog.Logger) *MarketScanner {
	return &MarketScanner{
		store:  store,
		source: source,
		cfg:    cfg,
		logger: logger.With("component", "market_scanner"),
	}
}

// Run executes a single discovery pass that paginates through active
// markets and upserts every qualifying pair.
func (s *MarketScanner) Run(ctx context.Context) error {
	offset := 0
	totalSeen := 0
	totalTracked := 0

	for page := 0; page < s.cfg.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("market scan cancelled: %w", err)
		}

		markets, err := s.source.GetActiveMarkets(ctx, s.cfg.PageSize, offset)
		if err != nil {
			return fmt.Errorf("fetching markets at offset %d: %w", offset, err)
		}

		if len(markets) == 0 {
			break
		}

		totalSeen += len(markets)
		for _, m := range markets {
			pair, ok := s.qualify(m)
			if !ok {
				continue
			}
			s.store.UpsertMarketPair(pair)
			totalTracked++
		}

		if len(markets) < s.cfg.PageSize {
			break
		}

		offset += s.cfg.PageSize
	}

	tracked := len(s.store.TrackedAssets())
	metrics.SetTrackedAssets(tracked)

	s.logger.Info("market scan complete",
		slog.Int("markets_seen", totalSeen),
		slog.Int("pairs_upserted", totalTracked),
		slog.Int("tracked_assets", tracked),
	)
	return nil
}

// qualify maps a market to a tradeable pair. Markets must be open, carry
// exactly two outcome assets, and clear the liquidity floor.
func (s *MarketScanner) qualify(m domain.Market) (domain.MarketPair, bool) {
	if !m.Active || m.Closed {
		return domain.MarketPair{}, false
	}
	if len(m.AssetIDs) != 2 || m.AssetIDs[0] == "" || m.AssetIDs[1] == "" {
		return domain.MarketPair{}, false
	}
	if m.Liquidity < s.cfg.MinLiquidity {
		return domain.MarketPair{}, false
	}

	return domain.MarketPair{
		YesAsset:  m.AssetIDs[0],
		NoAsset:   m.AssetIDs[1],
		Question:  m.Question,
		Liquidity: m.Liquidity,
	}, true
}

// RunLoop runs the scanner on a repeating interval until the context is
// cancelled. The first scan happens immediately.
func (s *MarketScanner) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := s.Run(ctx); err != nil {
		metrics.IncCycleError("market_scanner")
		s.logger.Error("market scan failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("market scanner stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Run(ctx); err != nil {
				metrics.IncCycleError("market_scanner")
				s.logger.Error("market scan failed", slog.String("error", err.Error()))
			}
		}
	}
}
