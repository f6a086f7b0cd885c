package pricefeed

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/krobus00/order-entry/internal/entity"
	"github.com/shopspring/decimal"
)

type streamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type streamPayload struct {
	Event       string `json:"e"`
	EventTime   int64  `json:"E"`
	Symbol      string `json:"s"`
	MarkPrice   string `json:"p"`
	SettlePrice string `json:"P"` // keeps "P" from matching MarkPrice case-insensitively
	BidPrice    string `json:"b"`
	BidQty      string `json:"B"`
	AskPrice    string `json:"a"`
	AskQty      string `json:"A"`
}

// ParseMessage decodes a book ticker or mark price message from the
// exchange stream. Combined-stream envelopes are unwrapped. ok is false for
// messages that carry no price data, such as subscription acks.
func ParseMessage(raw []byte) (feedSymbol string, u Update, ok bool, err error) {
	var envelope streamEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", Update{}, false, fmt.Errorf("decode stream message: %w", err)
	}

	body := raw
	if len(envelope.Data) > 0 {
		body = envelope.Data
	}

	var payload streamPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", Update{}, false, fmt.Errorf("decode stream payload: %w", err)
	}
	if payload.Symbol == "" {
		return "", Update{}, false, nil
	}

	if payload.EventTime > 0 {
		u.EventTime = time.UnixMilli(payload.EventTime).UTC()
	}

	if payload.MarkPrice != "" {
		mark, err := decimal.NewFromString(payload.MarkPrice)
		if err != nil {
			return "", Update{}, false, fmt.Errorf("invalid mark price %q: %w", payload.MarkPrice, err)
		}
		u.MarkPrice = decimal.NewNullDecimal(mark)
	}

	if u.BestBid, err = parseLevel(payload.BidPrice, payload.BidQty); err != nil {
		return "", Update{}, false, err
	}
	if u.BestAsk, err = parseLevel(payload.AskPrice, payload.AskQty); err != nil {
		return "", Update{}, false, err
	}

	if u.Empty() {
		return "", Update{}, false, nil
	}

	return strings.ToLower(payload.Symbol), u, true, nil
}

func parseLevel(rawPrice, rawQty string) (*entity.PriceLevel, error) {
	if rawPrice == "" {
		return nil, nil
	}

	price, err := decimal.NewFromString(rawPrice)
	if err != nil {
		return nil, fmt.Errorf("invalid level price %q: %w", rawPrice, err)
	}
	// an empty side is sent as zero
	if !price.IsPositive() {
		return nil, nil
	}

	size := decimal.Zero
	if rawQty != "" {
		size, err = decimal.NewFromString(rawQty)
		if err != nil {
			return nil, fmt.Errorf("invalid level size %q: %w", rawQty, err)
		}
	}

	return &entity.PriceLevel{Price: price, Size: size}, nil
}
