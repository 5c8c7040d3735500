package domain

import "time"

// PricePoint is a single observed price for one asset.
type PricePoint struct {
	Price     float64
	Timestamp time.Time
}
