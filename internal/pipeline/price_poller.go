package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/spikebot/internal/metrics"
)

// PriceSource returns current prices for a batch of asset IDs. Assets the
// source has no quote for are simply absent from the result map.
type PriceSource interface {
	GetPrices(ctx context.Context, assetIDs []string) (map[string]float64, error)
}

// PriceSink receives sampled prices for tracked assets.
type PriceSink interface {
	TrackedAssets() []string
	AppendPrice(assetID string, price float64) bool
}

// PricePoller samples current prices for every tracked asset and appends
// them to the store's per-asset histories.
type PricePoller struct {
	store     PriceSink
	source    PriceSource
	batchSize int
	logger    *slog.Logger
}

// NewPricePoller creates a new PricePoller. batchSize bounds how many
// asset IDs are requested from the source per call.
func NewPricePoller(store PriceSink, source PriceSource, batchSize int, logger *slog.Logger) *PricePoller {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &PricePoller{
		store:     store,
		source:    source,
		batchSize: batchSize,
		logger:    logger.With("component", "price_poller"),
	}
}

// Run executes a single sampling pass over all tracked assets.
func (p *PricePoller) Run(ctx context.Context) error {
	assets := p.store.TrackedAssets()
	if len(assets) == 0 {
		p.logger.Debug("no tracked assets yet")
		return nil
	}

	appended := 0
	for start := 0; start < len(assets); start += p.batchSize {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("price poll cancelled: %w", err)
		}

		end := start + p.batchSize
		if end > len(assets) {
			end = len(assets)
		}
		batch := assets[start:end]

		prices, err := p.source.GetPrices(ctx, batch)
		if err != nil {
			return fmt.Errorf("fetching prices for %d assets: %w", len(batch), err)
		}

		for _, asset := range batch {
			price, ok := prices[asset]
			if !ok {
				continue
			}
			if p.store.AppendPrice(asset, price) {
				appended++
			}
		}
	}

	metrics.AddPricesAppended(appended)
	p.logger.Debug("price poll complete",
		slog.Int("tracked_assets", len(assets)),
		slog.Int("prices_appended", appended),
	)
	return nil
}

// RunLoop runs the poller on a repeating interval until the context is
// cancelled. The first poll happens immediately.
func (p *PricePoller) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := p.Run(ctx); err != nil {
		metrics.IncCycleError("price_poller")
		p.logger.Error("price poll failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("price poller stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := p.Run(ctx); err != nil {
				metrics.IncCycleError("price_poller")
				p.logger.Error("price poll failed", slog.String("error", err.Error()))
			}
		}
	}
}
