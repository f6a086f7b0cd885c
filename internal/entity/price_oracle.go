package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type PriceLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// BookTop is the best bid and best ask of an order book, either may be absent.
type BookTop struct {
	BestBid *PriceLevel `json:"best_bid,omitempty"`
	BestAsk *PriceLevel `json:"best_ask,omitempty"`
}

// Opposing returns the level an order on the given side would trade against.
func (b BookTop) Opposing(side OrderSide) *PriceLevel {
	if side == OrderSideBuy {
		return b.BestAsk
	}

	return b.BestBid
}

type PriceSnapshot struct {
	Symbol    string              `json:"symbol"`
	MarkPrice decimal.NullDecimal `json:"mark_price"`
	BestBid   *PriceLevel         `json:"best_bid,omitempty"`
	BestAsk   *PriceLevel         `json:"best_ask,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func (s PriceSnapshot) Book() BookTop {
	return BookTop{BestBid: s.BestBid, BestAsk: s.BestAsk}
}

type PriceSnapshotEvent struct {
	RetryCount int           `json:"retry"`
	Data       PriceSnapshot `json:"data"`
}

// PriceOracleFeed exposes the latest snapshot per symbol. Implementations
// must return immediately and never block on the upstream source.
type PriceOracleFeed interface {
	Snapshot(symbol string) PriceSnapshot
}
