package notify

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/spikebot/internal/domain"
)

// Event types recognised by the notifier filter.
const (
	EventTradeEntry = "trade_entry"
	EventTradeExit  = "trade_exit"
	EventError      = "error"
)

// NotifyEntry formats and delivers a trade entry alert. Delivery failures
// are logged by the dispatcher and never propagate.
func (n *Notifier) NotifyEntry(ctx context.Context, trade domain.ActiveTrade, question string) {
	title := "Trade entered"
	message := fmt.Sprintf("%s\nasset %s @ %.4f",
		question, shortID(trade.Asset), trade.EntryPrice)
	_ = n.Notify(ctx, EventTradeEntry, title, message)
}

// NotifyExit formats and delivers a trade exit alert with realised PnL.
func (n *Notifier) NotifyExit(ctx context.Context, trade domain.ClosedTrade, question string) {
	title := fmt.Sprintf("Trade exited (%s)", trade.Reason)
	message := fmt.Sprintf("%s\nasset %s: %.4f -> %.4f (%+.2f%%, %+.2f USDC)",
		question, shortID(trade.Asset),
		trade.EntryPrice, trade.ExitPrice,
		trade.PnLPct*100, trade.PnLCash)
	_ = n.Notify(ctx, EventTradeExit, title, message)
}

// NotifyError delivers an operational error alert.
func (n *Notifier) NotifyError(ctx context.Context, component string, err error) {
	title := fmt.Sprintf("Error in %s", component)
	_ = n.Notify(ctx, EventError, title, err.Error())
}

// shortID truncates long CLOB token IDs for readable messages.
func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12] + "…"
}
