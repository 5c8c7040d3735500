package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/spikebot/internal/domain"
	"github.com/alanyoungcy/spikebot/internal/execution"
	"github.com/alanyoungcy/spikebot/internal/metrics"
)

// entryTimeout bounds a detached buy-and-commit sequence so a shutdown
// cannot leave it running forever.
const entryTimeout = 45 * time.Second

// EntryStore is the slice of the state store the spike detector needs.
type EntryStore interface {
	TrackedAssets() []string
	ReadPriceHistory(assetID string) []domain.PricePoint
	PairForAsset(assetID string) (domain.MarketPair, bool)
	CanEnterTrade(assetID string, now time.Time) bool
	TryEnterTrade(assetID string, price float64, now time.Time) (domain.ActiveTrade, bool)
	OpenTradeCount() int
}

// SpikeDetector scans price histories for upward moves that clear the
// entry threshold and opens positions through the gateway.
type SpikeDetector struct {
	store     EntryStore
	gateway   execution.Gateway
	hooks     TradeHooks
	threshold float64
	logger    *slog.Logger
}

// NewSpikeDetector creates a new SpikeDetector. threshold is the minimum
// fractional rise between the two most recent samples, e.g. 0.05 for 5%.
func NewSpikeDetector(store EntryStore, gateway execution.Gateway, hooks TradeHooks, threshold float64, logger *slog.Logger) *SpikeDetector {
	return &SpikeDetector{
		store:     store,
		gateway:   gateway,
		hooks:     hooks,
		threshold: threshold,
		logger:    logger.With("component", "spike_detector"),
	}
}

// Run executes a single detection pass over all tracked assets.
func (s *SpikeDetector) Run(ctx context.Context) error {
	now := time.Now()

	for _, asset := range s.store.TrackedAssets() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("spike scan cancelled: %w", err)
		}

		history := s.store.ReadPriceHistory(asset)
		delta, ok := evaluateDelta(history)
		if !ok || delta < s.threshold {
			continue
		}

		metrics.IncSpikeDetected()
		latest := history[len(history)-1].Price
		s.logger.Info("spike detected",
			slog.String("asset_id", asset),
			slog.Float64("delta", delta),
			slog.Float64("price", latest),
		)

		if !s.store.CanEnterTrade(asset, now) {
			s.logger.Debug("entry blocked",
				slog.String("asset_id", asset))
			continue
		}

		s.enter(ctx, asset, latest)
	}

	return nil
}

// evaluateDelta returns the fractional change between the two most recent
// samples. It reports false when the history is too short or the previous
// price is not positive.
func evaluateDelta(history []domain.PricePoint) (float64, bool) {
	if len(history) < 2 {
		return 0, false
	}
	previous := history[len(history)-2].Price
	if previous <= 0 {
		return 0, false
	}
	latest := history[len(history)-1].Price
	return (latest - previous) / previous, true
}

// enter buys the asset and commits the trade to the store. The sequence
// runs detached from the engine's cancellation: once a buy is decided it
// must complete and be tracked even if shutdown starts mid-flight.
func (s *SpikeDetector) enter(ctx context.Context, asset string, price float64) {
	ectx, cancel := context.WithTimeout(context.WithoutCancel(ctx), entryTimeout)
	defer cancel()

	if err := s.gateway.Buy(ectx, asset, price); err != nil {
		metrics.IncOrderFailure("BUY")
		s.logger.Error("buy order failed",
			slog.String("asset_id", asset),
			slog.Float64("price", price),
			slog.String("error", err.Error()))
		return
	}

	trade, ok := s.store.TryEnterTrade(asset, price, time.Now())
	if !ok {
		// Another entry won the race between the eligibility check and the
		// fill. The position exists but is not tracked; flag it for the
		// operator rather than guessing at a recovery.
		s.logger.Warn("position bought but not tracked: eligibility lost after fill",
			slog.String("asset_id", asset),
			slog.Float64("price", price))
		return
	}

	metrics.IncTradeEntered()
	metrics.SetOpenTrades(s.store.OpenTradeCount())

	question := ""
	if pair, ok := s.store.PairForAsset(asset); ok {
		question = pair.Question
	}
	s.hooks.OnEntry(ectx, s.logger, trade, question)

	s.logger.Info("trade entered",
		slog.String("trade_id", trade.ID),
		slog.String("asset_id", asset),
		slog.Float64("entry_price", price))
}

// RunLoop runs the detector on a repeating interval until the context is
// cancelled. The first pass happens immediately.
func (s *SpikeDetector) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := s.Run(ctx); err != nil {
		metrics.IncCycleError("spike_detector")
		s.logger.Error("spike scan failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("spike detector stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Run(ctx); err != nil {
				metrics.IncCycleError("spike_detector")
				s.logger.Error("spike scan failed", slog.String("error", err.Error()))
			}
		}
	}
}
