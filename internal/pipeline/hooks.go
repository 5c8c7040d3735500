package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/spikebot/internal/domain"
)

// Notifier pushes human-facing alerts. Implementations decide which
// channels receive which events.
type Notifier interface {
	NotifyEntry(ctx context.Context, trade domain.ActiveTrade, question string)
	NotifyExit(ctx context.Context, trade domain.ClosedTrade, question string)
}

// hookTimeout bounds the side-channel fan-out so a slow journal or webhook
// cannot stall the order sequence.
const hookTimeout = 10 * time.Second

// TradeHooks fan trade lifecycle events out to the optional side channels:
// the journal, the event bus, and the notifier. Every field may be nil.
// Hook failures are logged and never affect the trading path.
type TradeHooks struct {
	Journal  domain.TradeJournal
	Bus      domain.EventBus
	Notifier Notifier
}

// OnEntry records a freshly opened trade on all configured channels.
func (h TradeHooks) OnEntry(ctx context.Context, logger *slog.Logger, trade domain.ActiveTrade, question string) {
	ctx, cancel := context.WithTimeout(ctx, hookTimeout)
	defer cancel()

	if h.Journal != nil {
		if err := h.Journal.RecordEntry(ctx, trade); err != nil {
			logger.Error("journaling trade entry failed",
				slog.String("trade_id", trade.ID),
				slog.String("error", err.Error()))
		}
	}

	if h.Bus != nil {
		ev := domain.TradeEvent{
			Type:       domain.TradeEventEntry,
			TradeID:    trade.ID,
			Asset:      trade.Asset,
			Question:   question,
			EntryPrice: trade.EntryPrice,
			At:         trade.EntryTime,
		}
		if err := h.Bus.PublishTrade(ctx, ev); err != nil {
			logger.Error("publishing trade entry failed",
				slog.String("trade_id", trade.ID),
				slog.String("error", err.Error()))
		}
	}

	if h.Notifier != nil {
		h.Notifier.NotifyEntry(ctx, trade, question)
	}
}

// OnExit records a closed trade on all configured channels.
func (h TradeHooks) OnExit(ctx context.Context, logger *slog.Logger, trade domain.ClosedTrade, question string) {
	ctx, cancel := context.WithTimeout(ctx, hookTimeout)
	defer cancel()

	if h.Journal != nil {
		if err := h.Journal.RecordExit(ctx, trade); err != nil {
			logger.Error("journaling trade exit failed",
				slog.String("trade_id", trade.ID),
				slog.String("error", err.Error()))
		}
	}

	if h.Bus != nil {
		ev := domain.TradeEvent{
			Type:       domain.TradeEventExit,
			TradeID:    trade.ID,
			Asset:      trade.Asset,
			Question:   question,
			EntryPrice: trade.EntryPrice,
			ExitPrice:  trade.ExitPrice,
			Reason:     trade.Reason,
			PnLPct:     trade.PnLPct,
			PnLCash:    trade.PnLCash,
			At:         trade.ExitTime,
		}
		if err := h.Bus.PublishTrade(ctx, ev); err != nil {
			logger.Error("publishing trade exit failed",
				slog.String("trade_id", trade.ID),
				slog.String("error", err.Error()))
		}
	}

	if h.Notifier != nil {
		h.Notifier.NotifyExit(ctx, trade, question)
	}
}
