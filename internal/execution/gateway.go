// Package execution provides the order execution gateways for the spike
// engine. The paper gateway simulates fills locally; the live gateway
// signs and submits real orders to the Polymarket CLOB.
package execution

import "context"

// Gateway places orders for the engine. Buy opens a position in the given
// asset at (approximately) the given price; Sell closes it. Implementations
// must be safe for concurrent use: the entry and exit workers call them
// from separate goroutines.
type Gateway interface {
	Buy(ctx context.Context, assetID string, price float64) error
	Sell(ctx context.Context, assetID string, price float64) error
}
