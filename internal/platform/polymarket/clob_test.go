package polymarket

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alanyoungcy/spikebot/internal/crypto"
)

// Well-known test vector key, same as the crypto package tests.
const testClobKey = "0000000000000000000000000000000000000000000000000000000000000001"

func TestClobClient_GetMidpoints(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/midpoints" {
			t.Errorf("Expected path /midpoints, got %s", r.URL.Path)
		}
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"111":"0.45","222":"0.55","333":"garbage"}`))
	}))
	defer server.Close()

	client := NewClobClient(server.URL, nil, nil)
	prices, err := client.GetMidpoints(context.Background(), []string{"111", "222", "333"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var reqs []map[string]string
	if err := json.Unmarshal(gotBody, &reqs); err != nil {
		t.Fatalf("Expected JSON array request body, got %s", gotBody)
	}
	if len(reqs) != 3 || reqs[0]["token_id"] != "111" {
		t.Errorf("Expected batch of 3 token_id entries, got %v", reqs)
	}

	if len(prices) != 2 {
		t.Fatalf("Expected 2 parsable midpoints, got %d", len(prices))
	}
	if prices["111"] != 0.45 || prices["222"] != 0.55 {
		t.Errorf("Expected midpoints 0.45 and 0.55, got %v", prices)
	}
	if _, ok := prices["333"]; ok {
		t.Error("Expected unparsable midpoint to be dropped")
	}
}

func TestClobClient_PostOrderRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"success":false,"errorMsg":"not enough balance"}`))
	}))
	defer server.Close()

	client := NewClobClient(server.URL, nil, nil)
	_, err := client.PostOrder(context.Background(), crypto.OrderPayload{TokenID: "111"}, "0xsig", "FAK")
	if err == nil {
		t.Fatal("Expected error for rejected order")
	}
	if !strings.Contains(err.Error(), "not enough balance") {
		t.Errorf("Expected venue message in error, got %v", err)
	}
}

func TestClobClient_PostOrderSide(t *testing.T) {
	var gotOrder struct {
		Order struct {
			Side    string `json:"side"`
			TokenID string `json:"tokenID"`
		} `json:"order"`
		OrderType string `json:"orderType"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotOrder); err != nil {
			t.Errorf("Expected JSON order body, got %s", body)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"success":true,"orderID":"ord-1","status":"matched"}`))
	}))
	defer server.Close()

	client := NewClobClient(server.URL, nil, nil)
	result, err := client.PostOrder(context.Background(), crypto.OrderPayload{TokenID: "111", Side: 1}, "0xsig", "FAK")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if gotOrder.Order.Side != "SELL" {
		t.Errorf("Expected side 1 to serialize as SELL, got %q", gotOrder.Order.Side)
	}
	if gotOrder.OrderType != "FAK" {
		t.Errorf("Expected orderType FAK, got %q", gotOrder.OrderType)
	}
	if result.OrderID != "ord-1" || result.Status != "matched" {
		t.Errorf("Expected venue result decoded, got %+v", result)
	}
}

func TestClobClient_CancelAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/cancel-all" {
			t.Errorf("Expected DELETE /cancel-all, got %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	client := NewClobClient(server.URL, nil, nil)
	if err := client.CancelAll(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
}

func TestClobClient_HMACHeadersApplied(t *testing.T) {
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	signer, err := crypto.NewSigner(testClobKey, 137)
	if err != nil {
		t.Fatalf("Expected signer, got %v", err)
	}
	hmac := &crypto.HMACAuth{Key: "key-1", Secret: "c2VjcmV0", Passphrase: "pass"}

	client := NewClobClient(server.URL, signer, hmac)
	if _, err := client.GetMidpoints(context.Background(), []string{"111"}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if gotHeaders.Get("POLY_API_KEY") != "key-1" {
		t.Errorf("Expected POLY_API_KEY header, got %q", gotHeaders.Get("POLY_API_KEY"))
	}
	if gotHeaders.Get("POLY_ADDRESS") != signer.Address().Hex() {
		t.Errorf("Expected signer address header, got %q", gotHeaders.Get("POLY_ADDRESS"))
	}
	if gotHeaders.Get("POLY_SIGNATURE") == "" {
		t.Error("Expected non-empty POLY_SIGNATURE header")
	}
}

func TestClobClient_DeriveAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/derive-api-key" {
			t.Errorf("Expected path /auth/derive-api-key, got %s", r.URL.Path)
		}
		for _, h := range []string{"POLY_ADDRESS", "POLY_SIGNATURE", "POLY_TIMESTAMP", "POLY_NONCE"} {
			if r.Header.Get(h) == "" {
				t.Errorf("Expected %s header on auth request", h)
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"apiKey":"derived-key","secret":"c2VjcmV0","passphrase":"pp"}`))
	}))
	defer server.Close()

	signer, err := crypto.NewSigner(testClobKey, 137)
	if err != nil {
		t.Fatalf("Expected signer, got %v", err)
	}

	client := NewClobClient(server.URL, signer, nil)
	if err := client.DeriveAPIKey(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if client.hmacAuth == nil || client.hmacAuth.Key != "derived-key" {
		t.Errorf("Expected derived credentials stored on client, got %+v", client.hmacAuth)
	}
}
