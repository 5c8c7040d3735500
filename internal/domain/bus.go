package domain

import (
	"context"
	"time"
)

// TradeEventType labels events published on the bus.
type TradeEventType string

const (
	TradeEventEntry TradeEventType = "entry"
	TradeEventExit  TradeEventType = "exit"
)

// TradeEvent is the payload published for trade entries and exits.
type TradeEvent struct {
	Type       TradeEventType `json:"type"`
	TradeID    string         `json:"trade_id"`
	Asset      string         `json:"asset"`
	Question   string         `json:"question,omitempty"`
	EntryPrice float64        `json:"entry_price"`
	ExitPrice  float64        `json:"exit_price,omitempty"`
	Reason     ExitReason     `json:"reason,omitempty"`
	PnLPct     float64        `json:"pnl_pct,omitempty"`
	PnLCash    float64        `json:"pnl_cash,omitempty"`
	At         time.Time      `json:"at"`
}

// StreamMessage represents a single entry from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// EventBus publishes trade events for external consumers. Publishing is
// best-effort; the trading path never blocks on a slow consumer.
type EventBus interface {
	PublishTrade(ctx context.Context, ev TradeEvent) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamRead(ctx context.Context, stream, lastID string, count int) ([]StreamMessage, error)
}
