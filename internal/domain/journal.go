package domain

import (
	"context"
	"time"
)

// TradeJournal is a write-only audit log of trade entries and exits.
// The engine never reads trading state back from it; the in-memory
// store stays authoritative.
type TradeJournal interface {
	RecordEntry(ctx context.Context, t ActiveTrade) error
	RecordExit(ctx context.Context, t ClosedTrade) error
	ListClosedBefore(ctx context.Context, cutoff time.Time, limit int) ([]ClosedTrade, error)
	DeleteClosedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
