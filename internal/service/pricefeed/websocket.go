package pricefeed

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	wsReconnectMinDelay = 1 * time.Second
	wsReconnectMaxDelay = 15 * time.Second
	wsReconnectFactor   = 2.0
	wsPingInterval      = 2 * time.Minute
)

var defaultStreams = []string{"bookTicker", "markPrice@1s"}

type UpdateHandler func(ctx context.Context, symbol string, u Update) error

// WebsocketSource subscribes to book ticker and mark price streams and hands
// every decoded update to the handler, reconnecting with backoff on failure.
type WebsocketSource struct {
	wsURL   string
	symbols map[string]string
	streams []string
	handler UpdateHandler
	dialer  *websocket.Dialer
}

// NewWebsocketSource takes symbols keyed by feed symbol with the internal
// instrument symbol as value.
func NewWebsocketSource(wsURL string, symbols map[string]string, streams []string, handler UpdateHandler) *WebsocketSource {
	normalized := make(map[string]string, len(symbols))
	for feedSymbol, symbol := range symbols {
		normalized[strings.ToLower(strings.TrimSpace(feedSymbol))] = symbol
	}
	if len(streams) == 0 {
		streams = defaultStreams
	}

	return &WebsocketSource{
		wsURL:   wsURL,
		symbols: normalized,
		streams: streams,
		handler: handler,
		dialer:  websocket.DefaultDialer,
	}
}

func (s *WebsocketSource) subscribeRequest() map[string]any {
	feedSymbols := make([]string, 0, len(s.symbols))
	for feedSymbol := range s.symbols {
		feedSymbols = append(feedSymbols, feedSymbol)
	}
	sort.Strings(feedSymbols)

	params := make([]string, 0, len(feedSymbols)*len(s.streams))
	for _, feedSymbol := range feedSymbols {
		for _, stream := range s.streams {
			params = append(params, feedSymbol+"@"+stream)
		}
	}

	return map[string]any{
		"method": "SUBSCRIBE",
		"params": params,
		"id":     1,
	}
}

// Run blocks until ctx is done.
func (s *WebsocketSource) Run(ctx context.Context) error {
	wsHost, err := url.Parse(s.wsURL)
	if err != nil {
		return fmt.Errorf("invalid price feed ws url: %w", err)
	}
	if len(s.symbols) == 0 {
		return fmt.Errorf("price feed has no symbols to subscribe")
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	attempt := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		logrus.Infof("connecting to %s", wsHost.String())
		conn, _, err := s.dialer.DialContext(ctx, wsHost.String(), nil)
		if err != nil {
			if !s.backoff(ctx, &attempt, rng, "price feed ws dial failed", err) {
				return nil
			}
			continue
		}

		attempt = 0
		conn.SetPongHandler(func(string) error {
			return nil
		})

		if err := conn.WriteJSON(s.subscribeRequest()); err != nil {
			_ = conn.Close()
			if !s.backoff(ctx, &attempt, rng, "price feed ws subscribe failed", err) {
				return nil
			}
			continue
		}

		stopped := s.readLoop(ctx, conn)
		if stopped {
			return nil
		}

		if !s.backoff(ctx, &attempt, rng, "reconnecting price feed ws", nil) {
			return nil
		}
	}
}

// readLoop returns true when the loop ended because ctx was cancelled.
func (s *WebsocketSource) readLoop(ctx context.Context, conn *websocket.Conn) bool {
	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					logrus.Error(err)
					return
				}
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				_ = conn.Close()
				return
			case <-done:
				return
			}
		}
	}()

	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return true
			}

			logrus.Errorf("price feed ws read failed: %v", err)
			return false
		}

		feedSymbol, update, ok, err := ParseMessage(message)
		if err != nil {
			logrus.WithField("message", string(message)).Warn(err)
			continue
		}
		if !ok {
			continue
		}

		symbol, known := s.symbols[feedSymbol]
		if !known {
			continue
		}
		update.Symbol = symbol

		if err := s.handler(ctx, symbol, update); err != nil {
			logrus.WithField("symbol", symbol).Errorf("price feed update failed: %v", err)
		}
	}
}

func (s *WebsocketSource) backoff(ctx context.Context, attempt *int, rng *rand.Rand, msg string, cause error) bool {
	wait := reconnectDelay(*attempt, rng)
	*attempt++

	logger := logrus.WithFields(logrus.Fields{"retry_in": wait.String(), "attempt": *attempt})
	if cause != nil {
		logger.Warnf("%s: %v", msg, cause)
	} else {
		logger.Warn(msg)
	}

	select {
	case <-time.After(wait):
		return true
	case <-ctx.Done():
		return false
	}
}

func reconnectDelay(attempt int, rng *rand.Rand) time.Duration {
	backoff := float64(wsReconnectMinDelay) * math.Pow(wsReconnectFactor, float64(attempt))
	if backoff > float64(wsReconnectMaxDelay) {
		backoff = float64(wsReconnectMaxDelay)
	}

	base := time.Duration(backoff)
	jitterWindow := wsReconnectMaxDelay - wsReconnectMinDelay
	jitter := time.Duration(rng.Int63n(int64(jitterWindow) + 1))
	result := base + jitter
	if result > wsReconnectMaxDelay {
		return wsReconnectMaxDelay
	}

	return result
}
