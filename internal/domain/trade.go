package domain

import "time"

// ExitReason identifies which exit rule closed a trade.
type ExitReason string

const (
	ExitPctProfit  ExitReason = "pct_profit"
	ExitCashProfit ExitReason = "cash_profit"
	ExitPctLoss    ExitReason = "pct_loss"
	ExitCashLoss   ExitReason = "cash_loss"
	ExitTimeLimit  ExitReason = "time_limit"
)

// ActiveTrade is an open position held by the engine. At most one active
// trade exists per asset at any time.
type ActiveTrade struct {
	ID         string // UUID assigned at entry
	Asset      string
	EntryPrice float64
	EntryTime  time.Time
}

// ClosedTrade is an ActiveTrade after an exit rule fired.
type ClosedTrade struct {
	ActiveTrade
	ExitPrice float64
	ExitTime  time.Time
	Reason    ExitReason
	PnLPct    float64
	PnLCash   float64
}
