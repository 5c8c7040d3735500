package execution

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Fill records a simulated execution.
type Fill struct {
	AssetID string
	Side    string // "BUY" or "SELL"
	Price   float64
	Shares  float64
	Cash    float64 // USDC notional
	Time    time.Time
}

// Paper is a simulated gateway. Orders always fill at the requested price;
// the gateway keeps a local ledger of share inventory, cash flow, and fills
// so tests and operators can inspect what the engine would have done.
type Paper struct {
	logger    *slog.Logger
	tradeSize float64

	mu      sync.Mutex
	shares  map[string]float64 // asset ID -> open share count
	netCash float64            // cumulative cash flow (negative while invested)
	fills   []Fill
}

// NewPaper creates a paper gateway that sizes every buy at tradeSize USDC.
func NewPaper(tradeSize float64, logger *slog.Logger) *Paper {
	return &Paper{
		logger:    logger.With("component", "paper_gateway"),
		tradeSize: tradeSize,
		shares:    make(map[string]float64),
	}
}

// Buy simulates buying tradeSize USDC worth of the asset at price.
func (p *Paper) Buy(ctx context.Context, assetID string, price float64) error {
	shares := 0.0
	if price > 0 {
		shares = p.tradeSize / price
	}

	p.mu.Lock()
	p.shares[assetID] += shares
	p.netCash -= p.tradeSize
	p.fills = append(p.fills, Fill{
		AssetID: assetID,
		Side:    "BUY",
		Price:   price,
		Shares:  shares,
		Cash:    p.tradeSize,
		Time:    time.Now(),
	})
	p.mu.Unlock()

	p.logger.Info("paper buy filled",
		"asset_id", assetID,
		"price", price,
		"shares", shares,
		"cost_usdc", p.tradeSize)

	return nil
}

// Sell simulates selling the full recorded position in the asset at price.
// Selling an asset with no recorded position is a no-op that still succeeds.
func (p *Paper) Sell(ctx context.Context, assetID string, price float64) error {
	p.mu.Lock()
	shares := p.shares[assetID]
	delete(p.shares, assetID)

	proceeds := shares * price
	p.netCash += proceeds
	p.fills = append(p.fills, Fill{
		AssetID: assetID,
		Side:    "SELL",
		Price:   price,
		Shares:  shares,
		Cash:    proceeds,
		Time:    time.Now(),
	})
	p.mu.Unlock()

	p.logger.Info("paper sell filled",
		"asset_id", assetID,
		"price", price,
		"shares", shares,
		"proceeds_usdc", proceeds)

	return nil
}

// Shares returns the simulated open share count for the asset.
func (p *Paper) Shares(assetID string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shares[assetID]
}

// NetCash returns the cumulative simulated cash flow. It is negative while
// positions are open and converges to realised PnL once they close.
func (p *Paper) NetCash() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.netCash
}

// Fills returns a copy of all simulated fills in order.
func (p *Paper) Fills() []Fill {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Fill, len(p.fills))
	copy(out, p.fills)
	return out
}
