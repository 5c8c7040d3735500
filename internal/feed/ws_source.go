package feed

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/alanyoungcy/spikebot/internal/platform/polymarket"
)

// defaultMaxQuoteAge is how long a cached quote stays servable without any
// activity on its asset. Quotes older than this are withheld so the detector
// never acts on a dead socket.
const defaultMaxQuoteAge = 2 * time.Minute

// quoteStream is the slice of the WebSocket client the source uses.
type quoteStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, assetIDs []string) error
	Close() error
	OnBook(handler polymarket.BookHandler)
	OnPriceChange(handler polymarket.PriceChangeHandler)
	OnLastTrade(handler polymarket.LastTradeHandler)
}

// quote is a cached price with the time of the last activity on its asset.
type quote struct {
	price float64
	at    time.Time
}

// WSSource maintains a midpoint cache fed by the venue WebSocket and serves
// GetPrices reads from it. Book snapshots and trade prints update the cached
// price; incremental level updates only refresh the quote's activity time,
// since a midpoint cannot be recomputed from a single level. The venue
// re-sends full book snapshots after significant changes, so cached mids
// track the market at the granularity the detector samples.
//
// Assets appear on the socket lazily: each GetPrices call subscribes to any
// requested asset not yet subscribed, so the watchlist grows as discovery
// finds new pairs.
type WSSource struct {
	stream quoteStream
	maxAge time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu         sync.RWMutex
	quotes     map[string]quote
	subscribed map[string]bool
}

// NewWSSource creates a WSSource and registers its handlers on the stream.
// Call Start before the first GetPrices. If maxQuoteAge is zero the default
// of two minutes applies; a negative value disables expiry.
func NewWSSource(stream quoteStream, maxQuoteAge time.Duration, logger *slog.Logger) *WSSource {
	if maxQuoteAge == 0 {
		maxQuoteAge = defaultMaxQuoteAge
	}
	s := &WSSource{
		stream:     stream,
		maxAge:     maxQuoteAge,
		logger:     logger.With(slog.String("component", "ws_source")),
		now:        time.Now,
		quotes:     make(map[string]quote),
		subscribed: make(map[string]bool),
	}
	stream.OnBook(s.handleBook)
	stream.OnPriceChange(s.handlePriceChange)
	stream.OnLastTrade(s.handleLastTrade)
	return s
}

// Start connects the underlying stream.
func (s *WSSource) Start(ctx context.Context) error {
	return s.stream.Connect(ctx)
}

// Close shuts down the underlying stream.
func (s *WSSource) Close() error {
	return s.stream.Close()
}

// GetPrices subscribes to any newly requested assets and returns the cached
// quote for each asset that has one fresh enough to serve.
func (s *WSSource) GetPrices(ctx context.Context, assetIDs []string) (map[string]float64, error) {
	if err := s.subscribeNew(ctx, assetIDs); err != nil {
		return nil, err
	}

	cutoff := time.Time{}
	if s.maxAge > 0 {
		cutoff = s.now().Add(-s.maxAge)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	prices := make(map[string]float64, len(assetIDs))
	for _, asset := range assetIDs {
		q, ok := s.quotes[asset]
		if !ok {
			continue
		}
		if !cutoff.IsZero() && q.at.Before(cutoff) {
			continue
		}
		prices[asset] = q.price
	}
	return prices, nil
}

// subscribeNew subscribes to requested assets that are not yet on the
// socket. Assets are marked subscribed only after the command succeeds, so
// a failed cycle retries them.
func (s *WSSource) subscribeNew(ctx context.Context, assetIDs []string) error {
	s.mu.RLock()
	var pending []string
	for _, asset := range assetIDs {
		if !s.subscribed[asset] {
			pending = append(pending, asset)
		}
	}
	s.mu.RUnlock()

	if len(pending) == 0 {
		return nil
	}

	if err := s.stream.Subscribe(ctx, pending); err != nil {
		return err
	}

	s.mu.Lock()
	for _, asset := range pending {
		s.subscribed[asset] = true
	}
	s.mu.Unlock()

	s.logger.Debug("subscribed to assets", slog.Int("count", len(pending)))
	return nil
}

func (s *WSSource) handleBook(msg *polymarket.BookMessage) {
	_, _, mid, ok := msg.BestOfBook()
	if !ok {
		return
	}
	s.setQuote(msg.AssetID, mid)
}

func (s *WSSource) handleLastTrade(msg *polymarket.PriceMessage) {
	price, err := strconv.ParseFloat(msg.Price, 64)
	if err != nil || price <= 0 {
		return
	}
	s.setQuote(msg.AssetID, price)
}

// handlePriceChange refreshes the activity time of an existing quote. The
// book is alive even when the mid has not moved.
func (s *WSSource) handlePriceChange(msg *polymarket.PriceChangeMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[msg.AssetID]
	if !ok {
		return
	}
	q.at = s.now()
	s.quotes[msg.AssetID] = q
}

func (s *WSSource) setQuote(asset string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[asset] = quote{price: price, at: s.now()}
}
