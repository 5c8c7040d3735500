// Package feed provides the price sources that drive the ingestion worker:
// a REST source polling the CLOB midpoint endpoint and a WebSocket source
// serving reads from a live quote cache.
package feed

import (
	"context"
	"fmt"
)

// MidpointClient fetches current midpoints for a batch of CLOB token IDs.
type MidpointClient interface {
	GetMidpoints(ctx context.Context, tokenIDs []string) (map[string]float64, error)
}

// RESTSource serves prices by querying the venue's midpoint endpoint on
// every call.
type RESTSource struct {
	clob MidpointClient
}

// NewRESTSource creates a RESTSource backed by the given CLOB client.
func NewRESTSource(clob MidpointClient) *RESTSource {
	return &RESTSource{clob: clob}
}

// GetPrices returns the current midpoint for each asset the venue knows.
// Assets without an active book are absent from the result.
func (s *RESTSource) GetPrices(ctx context.Context, assetIDs []string) (map[string]float64, error) {
	prices, err := s.clob.GetMidpoints(ctx, assetIDs)
	if err != nil {
		return nil, fmt.Errorf("feed: fetch midpoints: %w", err)
	}
	return prices, nil
}
