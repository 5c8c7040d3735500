package execution

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPaperBuy(t *testing.T) {
	paper := NewPaper(20.0, discardLogger())

	// Buy at 0.50: 20 USDC buys 40 shares.
	if err := paper.Buy(context.Background(), "asset-yes", 0.50); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	if got := paper.Shares("asset-yes"); math.Abs(got-40.0) > 1e-9 {
		t.Errorf("Expected 40 shares, got %v", got)
	}
	if got := paper.NetCash(); math.Abs(got-(-20.0)) > 1e-9 {
		t.Errorf("Expected net cash -20, got %v", got)
	}

	fills := paper.Fills()
	if len(fills) != 1 {
		t.Fatalf("Expected 1 fill, got %d", len(fills))
	}
	if fills[0].Side != "BUY" {
		t.Errorf("Expected BUY, got %s", fills[0].Side)
	}
	if fills[0].Price != 0.50 {
		t.Errorf("Expected price 0.50, got %v", fills[0].Price)
	}
}

func TestPaperSellClosesPosition(t *testing.T) {
	paper := NewPaper(20.0, discardLogger())

	if err := paper.Buy(context.Background(), "asset-yes", 0.50); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	// Sell 40 shares at 0.60: proceeds 24, realised PnL +4.
	if err := paper.Sell(context.Background(), "asset-yes", 0.60); err != nil {
		t.Fatalf("Sell failed: %v", err)
	}

	if got := paper.Shares("asset-yes"); got != 0 {
		t.Errorf("Expected 0 shares after sell, got %v", got)
	}
	if got := paper.NetCash(); math.Abs(got-4.0) > 1e-9 {
		t.Errorf("Expected net cash +4, got %v", got)
	}

	fills := paper.Fills()
	if len(fills) != 2 {
		t.Fatalf("Expected 2 fills, got %d", len(fills))
	}
	if fills[1].Side != "SELL" {
		t.Errorf("Expected SELL, got %s", fills[1].Side)
	}
	if math.Abs(fills[1].Cash-24.0) > 1e-9 {
		t.Errorf("Expected proceeds 24, got %v", fills[1].Cash)
	}
}

func TestPaperSellUnknownAssetSucceeds(t *testing.T) {
	paper := NewPaper(20.0, discardLogger())

	// Selling with no recorded position is a logged no-op, not an error.
	if err := paper.Sell(context.Background(), "unknown", 0.40); err != nil {
		t.Fatalf("Expected nil error, got %v", err)
	}
	if got := paper.NetCash(); got != 0 {
		t.Errorf("Expected net cash 0, got %v", got)
	}
}

func TestPaperImplementsGateway(t *testing.T) {
	var _ Gateway = (*Paper)(nil)
}
