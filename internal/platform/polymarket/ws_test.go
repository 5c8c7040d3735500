package polymarket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWSClient_HandleMessageRouting(t *testing.T) {
	client := NewWSClient("ws://unused")

	var books []*BookMessage
	var changes []*PriceChangeMessage
	var trades []*PriceMessage
	client.OnBook(func(m *BookMessage) { books = append(books, m) })
	client.OnPriceChange(func(m *PriceChangeMessage) { changes = append(changes, m) })
	client.OnLastTrade(func(m *PriceMessage) { trades = append(trades, m) })

	client.handleMessage([]byte(`{"event_type":"book","asset_id":"111","bids":[{"price":"0.4","size":"10"}],"asks":[{"price":"0.6","size":"10"}]}`))
	client.handleMessage([]byte(`{"event_type":"price_change","asset_id":"111","side":"BUY","price":"0.41","size":"5"}`))
	client.handleMessage([]byte(`{"event_type":"last_trade_price","asset_id":"111","price":"0.42","size":"3"}`))

	if len(books) != 1 || books[0].AssetID != "111" {
		t.Errorf("Expected 1 book message for asset 111, got %d", len(books))
	}
	if len(changes) != 1 || changes[0].Price != "0.41" {
		t.Errorf("Expected 1 price change at 0.41, got %d", len(changes))
	}
	if len(trades) != 1 || trades[0].Price != "0.42" {
		t.Errorf("Expected 1 last trade at 0.42, got %d", len(trades))
	}
}

func TestWSClient_HandleMessageMsgTypeKey(t *testing.T) {
	client := NewWSClient("ws://unused")

	var books []*BookMessage
	client.OnBook(func(m *BookMessage) { books = append(books, m) })

	// Some venue messages carry msg_type instead of event_type.
	client.handleMessage([]byte(`{"msg_type":"book","asset_id":"222"}`))

	if len(books) != 1 || books[0].AssetID != "222" {
		t.Errorf("Expected msg_type envelope routed, got %d messages", len(books))
	}
}

func TestWSClient_HandleMessageDropsGarbage(t *testing.T) {
	client := NewWSClient("ws://unused")

	called := false
	client.OnBook(func(m *BookMessage) { called = true })

	client.handleMessage([]byte(`this is not json`))
	client.handleMessage([]byte(`{"event_type":"unknown_kind"}`))
	client.handleMessage([]byte(`{}`))

	if called {
		t.Error("Expected no handler calls for garbage or unknown messages")
	}
}

func TestWSClient_ConnectSubscribeReceive(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan *BookMessage, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Expect the market subscription command first.
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd WSCommand
		if err := json.Unmarshal(msg, &cmd); err != nil {
			t.Errorf("Expected JSON command, got %s", msg)
			return
		}
		if cmd.Type != "market" || len(cmd.Assets) != 1 || cmd.Assets[0] != "111" {
			t.Errorf("Expected market subscription for asset 111, got %+v", cmd)
		}

		if err := conn.WriteMessage(websocket.TextMessage, []byte(
			`{"event_type":"book","asset_id":"111","bids":[{"price":"0.4","size":"1"}],"asks":[{"price":"0.5","size":"1"}]}`,
		)); err != nil {
			return
		}

		// Hold the connection open until the client closes it.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client := NewWSClient(wsURL)
	client.OnBook(func(m *BookMessage) {
		select {
		case received <- m:
		default:
		}
	})

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Expected connect to succeed, got %v", err)
	}
	defer client.Close()

	if err := client.Subscribe(ctx, []string{"111"}); err != nil {
		t.Fatalf("Expected subscribe to succeed, got %v", err)
	}

	select {
	case m := <-received:
		if m.AssetID != "111" {
			t.Errorf("Expected book for asset 111, got %s", m.AssetID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a book message within 2s")
	}
}

func TestWSClient_SubscribeRequiresConnection(t *testing.T) {
	client := NewWSClient("ws://unused")
	if err := client.Subscribe(context.Background(), []string{"111"}); err == nil {
		t.Error("Expected subscribe before connect to fail")
	}
}

func TestWSClient_CloseIdempotent(t *testing.T) {
	client := NewWSClient("ws://unused")
	if err := client.Close(); err != nil {
		t.Fatalf("Expected first close to succeed, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Expected second close to be a no-op, got %v", err)
	}

	// A closed client refuses to connect.
	if err := client.Connect(context.Background()); err == nil {
		t.Error("Expected connect after close to fail")
	}
}
