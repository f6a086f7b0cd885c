package pricefeed

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebsocketSource_Run(t *testing.T) {
	subscribed := make(chan map[string]any, 1)
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var req map[string]any
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		subscribed <- req

		messages := []string{
			`{"result":null,"id":1}`,
			`{"stream":"btcusdt@bookTicker","data":{"s":"BTCUSDT","b":"1","B":"1","a":"2","A":"1"}}`,
			`{"stream":"solusdt@bookTicker","data":{"s":"SOLUSDT","b":"99","B":"1","a":"101","A":"2"}}`,
			`{"stream":"solusdt@markPrice@1s","data":{"e":"markPriceUpdate","E":1700000000000,"s":"SOLUSDT","p":"100.5"}}`,
		}
		for _, m := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	feed := NewFeed()
	updates := make(chan string, 4)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	source := NewWebsocketSource(wsURL, map[string]string{"SOLUSDT": "SOL-PERP"}, nil, func(_ context.Context, symbol string, u Update) error {
		feed.Apply(u)
		updates <- symbol
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- source.Run(ctx) }()

	select {
	case req := <-subscribed:
		assert.Equal(t, "SUBSCRIBE", req["method"])
		assert.Equal(t, []any{"solusdt@bookTicker", "solusdt@markPrice@1s"}, req["params"])
	case <-time.After(5 * time.Second):
		t.Fatal("no subscribe request")
	}

	for i := 0; i < 2; i++ {
		select {
		case symbol := <-updates:
			assert.Equal(t, "SOL-PERP", symbol)
		case <-time.After(5 * time.Second):
			t.Fatal("missing update")
		}
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("source did not stop")
	}

	snapshot := feed.Snapshot("SOL-PERP")
	assert.Equal(t, "100.5", snapshot.MarkPrice.Decimal.String())
	assert.Equal(t, "99", snapshot.BestBid.Price.String())
	assert.Equal(t, "101", snapshot.BestAsk.Price.String())
	assert.Equal(t, []string{"SOL-PERP"}, feed.Symbols())
}

func TestWebsocketSource_RequiresSymbols(t *testing.T) {
	source := NewWebsocketSource("ws://localhost:1", nil, nil, nil)
	assert.Error(t, source.Run(context.Background()))
}

func TestReconnectDelay(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for attempt := 0; attempt < 10; attempt++ {
		d := reconnectDelay(attempt, rng)
		assert.GreaterOrEqual(t, d, wsReconnectMinDelay)
		assert.LessOrEqual(t, d, wsReconnectMaxDelay)
	}
}
