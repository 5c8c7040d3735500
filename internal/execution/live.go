package execution

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strconv"
	"sync"

	"github.com/alanyoungcy/spikebot/internal/crypto"
	"github.com/alanyoungcy/spikebot/internal/domain"
	"github.com/alanyoungcy/spikebot/internal/platform/polymarket"
)

const (
	// zeroAddress is the public taker for open CLOB orders.
	zeroAddress = "0x0000000000000000000000000000000000000000"

	// minPrice and maxPrice bound marketable limit prices to the CLOB's
	// valid price range.
	minPrice = 0.001
	maxPrice = 0.999

	// usdcUnits is the fixed-point scale for order amounts (6 decimals).
	usdcUnits = 1e6
)

// orderPoster is the slice of the CLOB client the live gateway needs.
type orderPoster interface {
	PostOrder(ctx context.Context, payload crypto.OrderPayload, signature, orderType string) (polymarket.APIOrderResult, error)
	CancelAll(ctx context.Context) error
}

// Live signs and submits real orders to the Polymarket CLOB. Orders are
// marketable limit orders placed slippage away from the observed price and
// submitted Fill-and-Kill, so they either execute immediately (possibly
// partially) or die without resting on the book.
type Live struct {
	clob     orderPoster
	signer   *crypto.Signer
	logger   *slog.Logger
	funder   string // maker address (Safe address for signature type 2)
	sigType  int
	slippage float64

	tradeSize float64

	mu     sync.Mutex
	shares map[string]float64 // asset ID -> shares bought, used to size sells
}

// LiveOptions configures a live gateway.
type LiveOptions struct {
	TradeSize     float64 // USDC per entry
	Slippage      float64 // e.g. 0.02 for 2%
	FunderAddress string  // maker; defaults to the signer address
	SignatureType int     // 1 = EOA, 2 = Gnosis Safe
}

// NewLive creates a live gateway. clob must already hold L2 credentials
// (via DeriveAPIKey) before orders are posted.
func NewLive(clob orderPoster, signer *crypto.Signer, opts LiveOptions, logger *slog.Logger) *Live {
	funder := opts.FunderAddress
	if funder == "" {
		funder = signer.Address().Hex()
	}
	return &Live{
		clob:      clob,
		signer:    signer,
		logger:    logger.With("component", "live_gateway"),
		funder:    funder,
		sigType:   opts.SignatureType,
		slippage:  opts.Slippage,
		tradeSize: opts.TradeSize,
		shares:    make(map[string]float64),
	}
}

// Buy submits a Fill-and-Kill buy sized at tradeSize USDC, with the limit
// price padded above the observed price by the configured slippage.
func (l *Live) Buy(ctx context.Context, assetID string, price float64) error {
	limit := clampPrice(price * (1 + l.slippage))
	shares := l.tradeSize / limit

	payload := l.buildOrder(assetID, 0, l.tradeSize, shares)

	result, err := l.submit(ctx, payload)
	if err != nil {
		return fmt.Errorf("execution: buy %s: %w", assetID, err)
	}

	l.mu.Lock()
	l.shares[assetID] += shares
	l.mu.Unlock()

	l.logger.Info("buy order executed",
		"asset_id", assetID,
		"limit_price", limit,
		"shares", shares,
		"order_id", result.OrderID,
		"status", result.Status)

	return nil
}

// Sell submits a Fill-and-Kill sell for the full recorded position, with
// the limit price padded below the observed price by the configured
// slippage. It fails if the gateway has no recorded position for the asset.
func (l *Live) Sell(ctx context.Context, assetID string, price float64) error {
	l.mu.Lock()
	shares := l.shares[assetID]
	l.mu.Unlock()

	if shares <= 0 {
		return fmt.Errorf("execution: sell %s: no recorded position: %w", assetID, domain.ErrInvalidOrder)
	}

	limit := clampPrice(price * (1 - l.slippage))
	proceeds := shares * limit

	payload := l.buildOrder(assetID, 1, proceeds, shares)

	result, err := l.submit(ctx, payload)
	if err != nil {
		return fmt.Errorf("execution: sell %s: %w", assetID, err)
	}

	l.mu.Lock()
	delete(l.shares, assetID)
	l.mu.Unlock()

	l.logger.Info("sell order executed",
		"asset_id", assetID,
		"limit_price", limit,
		"shares", shares,
		"order_id", result.OrderID,
		"status", result.Status)

	return nil
}

// Close cancels any resting orders. FAK orders should never rest, so this
// is a shutdown sweep against partial API failures.
func (l *Live) Close(ctx context.Context) error {
	return l.clob.CancelAll(ctx)
}

// buildOrder constructs the EIP-712 order payload. side is 0 for buy and
// 1 for sell. usdc and shares are decimal amounts; buy orders give usdc
// for shares, sell orders the reverse.
func (l *Live) buildOrder(assetID string, side int, usdc, shares float64) crypto.OrderPayload {
	var makerAmount, takerAmount string
	if side == 0 {
		makerAmount = toUnits(usdc)
		takerAmount = toUnits(shares)
	} else {
		makerAmount = toUnits(shares)
		takerAmount = toUnits(usdc)
	}

	return crypto.OrderPayload{
		Salt:          strconv.FormatInt(rand.Int63(), 10),
		Maker:         l.funder,
		Signer:        l.signer.Address().Hex(),
		Taker:         zeroAddress,
		TokenID:       assetID,
		MakerAmount:   makerAmount,
		TakerAmount:   takerAmount,
		Expiration:    "0",
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          side,
		SignatureType: l.sigType,
	}
}

// submit signs the payload and posts it Fill-and-Kill, mapping API-level
// rejections to errors.
func (l *Live) submit(ctx context.Context, payload crypto.OrderPayload) (polymarket.APIOrderResult, error) {
	signature, err := l.signer.SignOrder(payload)
	if err != nil {
		return polymarket.APIOrderResult{}, fmt.Errorf("signing order: %w", err)
	}

	result, err := l.clob.PostOrder(ctx, payload, signature, "FAK")
	if err != nil {
		return polymarket.APIOrderResult{}, err
	}
	if !result.Success {
		return result, fmt.Errorf("order rejected: %s: %w", result.ErrorMsg, domain.ErrInvalidOrder)
	}

	return result, nil
}

// clampPrice rounds price to the CLOB's 0.001 tick and clamps it to the
// valid (0, 1) range.
func clampPrice(price float64) float64 {
	p := math.Round(price*1000) / 1000
	if p < minPrice {
		return minPrice
	}
	if p > maxPrice {
		return maxPrice
	}
	return p
}

// toUnits converts a decimal amount to the CLOB's 6-decimal fixed-point
// string representation.
func toUnits(amount float64) string {
	return strconv.FormatInt(int64(math.Round(amount*usdcUnits)), 10)
}
