package execution

import (
	"context"
	"errors"
	"testing"

	"github.com/alanyoungcy/spikebot/internal/crypto"
	"github.com/alanyoungcy/spikebot/internal/domain"
	"github.com/alanyoungcy/spikebot/internal/platform/polymarket"
)

// fakePoster captures posted orders instead of hitting the CLOB.
type fakePoster struct {
	lastPayload crypto.OrderPayload
	lastType    string
	result      polymarket.APIOrderResult
	err         error
	cancelled   bool
}

func (f *fakePoster) PostOrder(ctx context.Context, payload crypto.OrderPayload, signature, orderType string) (polymarket.APIOrderResult, error) {
	f.lastPayload = payload
	f.lastType = orderType
	if f.err != nil {
		return polymarket.APIOrderResult{}, f.err
	}
	return f.result, nil
}

func (f *fakePoster) CancelAll(ctx context.Context) error {
	f.cancelled = true
	return nil
}

func newTestLive(t *testing.T, poster *fakePoster) *Live {
	t.Helper()
	signer, err := crypto.NewSigner("0000000000000000000000000000000000000000000000000000000000000001", 137)
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}
	opts := LiveOptions{
		TradeSize:     20.0,
		Slippage:      0.02,
		SignatureType: 2,
		FunderAddress: "0x1111111111111111111111111111111111111111",
	}
	return NewLive(poster, signer, opts, discardLogger())
}

func TestLiveBuyBuildsMarketableOrder(t *testing.T) {
	poster := &fakePoster{result: polymarket.APIOrderResult{Success: true, OrderID: "ord-1"}}
	live := newTestLive(t, poster)

	if err := live.Buy(context.Background(), "token-123", 0.50); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}

	p := poster.lastPayload
	if p.Side != 0 {
		t.Errorf("Expected side 0 (buy), got %d", p.Side)
	}
	if p.TokenID != "token-123" {
		t.Errorf("Expected token token-123, got %s", p.TokenID)
	}
	// Limit = 0.50 * 1.02 = 0.51, so 20 USDC buys 20/0.51 shares.
	if p.MakerAmount != "20000000" {
		t.Errorf("Expected maker amount 20000000, got %s", p.MakerAmount)
	}
	if p.TakerAmount != "39215686" {
		t.Errorf("Expected taker amount 39215686, got %s", p.TakerAmount)
	}
	if p.Maker != "0x1111111111111111111111111111111111111111" {
		t.Errorf("Expected funder as maker, got %s", p.Maker)
	}
	if p.SignatureType != 2 {
		t.Errorf("Expected signature type 2, got %d", p.SignatureType)
	}
	if poster.lastType != "FAK" {
		t.Errorf("Expected FAK order type, got %s", poster.lastType)
	}
	if p.Salt == "" {
		t.Errorf("Expected non-empty salt")
	}
}

func TestLiveSellReversesAmounts(t *testing.T) {
	poster := &fakePoster{result: polymarket.APIOrderResult{Success: true}}
	live := newTestLive(t, poster)

	if err := live.Buy(context.Background(), "token-123", 0.50); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if err := live.Sell(context.Background(), "token-123", 0.60); err != nil {
		t.Fatalf("Sell failed: %v", err)
	}

	p := poster.lastPayload
	if p.Side != 1 {
		t.Errorf("Expected side 1 (sell), got %d", p.Side)
	}
	// Selling the 39.2156... shares bought above.
	if p.MakerAmount != "39215686" {
		t.Errorf("Expected maker amount 39215686, got %s", p.MakerAmount)
	}
	// Limit = 0.60 * 0.98 = 0.588; proceeds = shares * 0.588.
	if p.TakerAmount != "23058824" {
		t.Errorf("Expected taker amount 23058824, got %s", p.TakerAmount)
	}

	// A second sell must fail: the position is gone.
	if err := live.Sell(context.Background(), "token-123", 0.60); err == nil {
		t.Errorf("Expected error selling a closed position")
	}
}

func TestLiveSellWithoutPosition(t *testing.T) {
	poster := &fakePoster{result: polymarket.APIOrderResult{Success: true}}
	live := newTestLive(t, poster)

	err := live.Sell(context.Background(), "token-999", 0.50)
	if err == nil {
		t.Fatal("Expected error for unknown position, got nil")
	}
	if !errors.Is(err, domain.ErrInvalidOrder) {
		t.Errorf("Expected ErrInvalidOrder, got %v", err)
	}
}

func TestLiveBuyRejectedOrder(t *testing.T) {
	poster := &fakePoster{result: polymarket.APIOrderResult{Success: false, ErrorMsg: "not enough balance"}}
	live := newTestLive(t, poster)

	err := live.Buy(context.Background(), "token-123", 0.50)
	if err == nil {
		t.Fatal("Expected error for rejected order, got nil")
	}

	// A rejected buy must not record a position.
	if err := live.Sell(context.Background(), "token-123", 0.50); err == nil {
		t.Errorf("Expected no position after rejected buy")
	}
}

func TestLiveCloseCancelsOrders(t *testing.T) {
	poster := &fakePoster{}
	live := newTestLive(t, poster)

	if err := live.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !poster.cancelled {
		t.Errorf("Expected CancelAll to be invoked")
	}
}

func TestClampPrice(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{0.51, 0.51},
		{0.4567, 0.457},
		{1.05, 0.999},
		{0.9995, 0.999},
		{0.0001, 0.001},
		{-0.5, 0.001},
	}
	for _, tc := range cases {
		if got := clampPrice(tc.in); got != tc.want {
			t.Errorf("clampPrice(%v): expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

func TestToUnits(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{20.0, "20000000"},
		{0.5, "500000"},
		{39.2156862745, "39215686"},
		{0, "0"},
	}
	for _, tc := range cases {
		if got := toUnits(tc.in); got != tc.want {
			t.Errorf("toUnits(%v): expected %s, got %s", tc.in, tc.want, got)
		}
	}
}

func TestLiveImplementsGateway(t *testing.T) {
	var _ Gateway = (*Live)(nil)
}
