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

// exitTimeout bounds a detached sell-and-commit sequence.
const exitTimeout = 45 * time.Second

// ExitRules holds the thresholds that close a position. Nil pointers
// disable the corresponding rule. Loss thresholds are negative values:
// a StopLossPct of -0.05 fires once the position is down 5%.
type ExitRules struct {
	TakeProfitPct  *float64
	TakeProfitCash *float64
	StopLossPct    *float64
	StopLossCash   *float64
	MaxHolding     *time.Duration
}

// enabled reports whether at least one rule is set.
func (r ExitRules) enabled() bool {
	return r.TakeProfitPct != nil || r.TakeProfitCash != nil ||
		r.StopLossPct != nil || r.StopLossCash != nil || r.MaxHolding != nil
}

// ExitStore is the slice of the state store the exit manager needs.
type ExitStore interface {
	SnapshotActiveTrades() []domain.ActiveTrade
	LatestPrice(assetID string) (domain.PricePoint, bool)
	PairForAsset(assetID string) (domain.MarketPair, bool)
	ExitTrade(assetID string) (domain.ActiveTrade, bool)
	OpenTradeCount() int
}

// ExitManager walks the open positions every cycle, applies the exit
// rules in priority order, and closes positions through the gateway.
type ExitManager struct {
	store     ExitStore
	gateway   execution.Gateway
	hooks     TradeHooks
	rules     ExitRules
	tradeSize float64
	logger    *slog.Logger
}

// NewExitManager creates a new ExitManager. tradeSize is the USDC size of
// every entry and scales percentage PnL into cash PnL.
func NewExitManager(store ExitStore, gateway execution.Gateway, hooks TradeHooks, rules ExitRules, tradeSize float64, logger *slog.Logger) *ExitManager {
	l := logger.With("component", "exit_manager")
	if !rules.enabled() {
		l.Warn("no exit rules configured: positions will only close manually")
	}
	return &ExitManager{
		store:     store,
		gateway:   gateway,
		hooks:     hooks,
		rules:     rules,
		tradeSize: tradeSize,
		logger:    l,
	}
}

// Run executes a single pass over all open positions.
func (m *ExitManager) Run(ctx context.Context) error {
	now := time.Now()

	for _, trade := range m.store.SnapshotActiveTrades() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("exit scan cancelled: %w", err)
		}

		point, ok := m.store.LatestPrice(trade.Asset)
		if !ok {
			continue
		}

		decision, ok := evaluateExit(trade, point.Price, m.tradeSize, m.rules, now)
		if !ok {
			continue
		}

		m.exit(ctx, trade, point.Price, decision)
	}

	return nil
}

// exitDecision carries the outcome of an exit evaluation.
type exitDecision struct {
	Reason  domain.ExitReason
	PnLPct  float64
	PnLCash float64
}

// evaluateExit applies the exit rules to a position in priority order:
// percentage take-profit, cash take-profit, percentage stop-loss, cash
// stop-loss, then holding-time limit. The first rule that fires wins.
func evaluateExit(trade domain.ActiveTrade, price, tradeSize float64, rules ExitRules, now time.Time) (exitDecision, bool) {
	if trade.EntryPrice <= 0 {
		return exitDecision{}, false
	}

	pnlPct := (price - trade.EntryPrice) / trade.EntryPrice
	pnlCash := pnlPct * tradeSize
	d := exitDecision{PnLPct: pnlPct, PnLCash: pnlCash}

	switch {
	case rules.TakeProfitPct != nil && pnlPct >= *rules.TakeProfitPct:
		d.Reason = domain.ExitPctProfit
	case rules.TakeProfitCash != nil && pnlCash >= *rules.TakeProfitCash:
		d.Reason = domain.ExitCashProfit
	case rules.StopLossPct != nil && pnlPct <= *rules.StopLossPct:
		d.Reason = domain.ExitPctLoss
	case rules.StopLossCash != nil && pnlCash <= *rules.StopLossCash:
		d.Reason = domain.ExitCashLoss
	case rules.MaxHolding != nil && now.Sub(trade.EntryTime) >= *rules.MaxHolding:
		d.Reason = domain.ExitTimeLimit
	default:
		return exitDecision{}, false
	}

	return d, true
}

// exit sells the position and removes it from the store. The sequence runs
// detached from the engine's cancellation. A failed sell leaves the trade
// open so the next cycle retries it.
func (m *ExitManager) exit(ctx context.Context, trade domain.ActiveTrade, price float64, decision exitDecision) {
	ectx, cancel := context.WithTimeout(context.WithoutCancel(ctx), exitTimeout)
	defer cancel()

	if err := m.gateway.Sell(ectx, trade.Asset, price); err != nil {
		metrics.IncOrderFailure("SELL")
		m.logger.Error("sell order failed, will retry next cycle",
			slog.String("trade_id", trade.ID),
			slog.String("asset_id", trade.Asset),
			slog.String("reason", string(decision.Reason)),
			slog.String("error", err.Error()))
		return
	}

	removed, ok := m.store.ExitTrade(trade.Asset)
	if !ok {
		// The trade vanished between the snapshot and the sell. Nothing
		// left to record.
		m.logger.Warn("trade already removed at exit",
			slog.String("trade_id", trade.ID),
			slog.String("asset_id", trade.Asset))
		return
	}

	closed := domain.ClosedTrade{
		ActiveTrade: removed,
		ExitPrice:   price,
		ExitTime:    time.Now(),
		Reason:      decision.Reason,
		PnLPct:      decision.PnLPct,
		PnLCash:     decision.PnLCash,
	}

	metrics.IncTradeExited(string(closed.Reason))
	metrics.SetOpenTrades(m.store.OpenTradeCount())

	question := ""
	if pair, ok := m.store.PairForAsset(trade.Asset); ok {
		question = pair.Question
	}
	m.hooks.OnExit(ectx, m.logger, closed, question)

	m.logger.Info("trade exited",
		slog.String("trade_id", closed.ID),
		slog.String("asset_id", closed.Asset),
		slog.String("reason", string(closed.Reason)),
		slog.Float64("entry_price", closed.EntryPrice),
		slog.Float64("exit_price", closed.ExitPrice),
		slog.Float64("pnl_pct", closed.PnLPct),
		slog.Float64("pnl_cash", closed.PnLCash))
}

// RunLoop runs the exit manager on a repeating interval until the context
// is cancelled. The first pass happens immediately.
func (m *ExitManager) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := m.Run(ctx); err != nil {
		metrics.IncCycleError("exit_manager")
		m.logger.Error("exit scan failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("exit manager stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := m.Run(ctx); err != nil {
				metrics.IncCycleError("exit_manager")
				m.logger.Error("exit scan failed", slog.String("error", err.Error()))
			}
		}
	}
}
