// Package pricing computes the execution price an order is submitted with.
package pricing

import (
	"github.com/krobus00/order-entry/internal/entity"
	"github.com/shopspring/decimal"
)

// Quote is everything the resolver looks at. BaseSize and TriggerPrice are
// carried so callers can pass the draft through unchanged.
type Quote struct {
	OrderType    entity.OrderType
	Side         entity.OrderSide
	Book         entity.BookTop
	BaseSize     decimal.NullDecimal
	Price        decimal.NullDecimal
	TriggerPrice decimal.NullDecimal
}

func QuoteFromDraft(d entity.OrderDraft, book entity.BookTop) Quote {
	return Quote{
		OrderType:    d.OrderType,
		Side:         d.Side,
		Book:         book,
		BaseSize:     d.BaseSize,
		Price:        d.Price,
		TriggerPrice: d.TriggerPrice,
	}
}

// ResolveExecutionPrice returns the price to submit and false when none can
// be derived. Limit-family orders (including the trigger-limit types) use the
// entered price; market-family orders use the best opposing book level.
func ResolveExecutionPrice(q Quote) (decimal.Decimal, bool) {
	switch {
	case q.OrderType.IsLimitFamily():
		if !entity.IsSet(q.Price) {
			return decimal.Zero, false
		}
		return q.Price.Decimal, true
	case q.OrderType.IsMarketFamily():
		level := q.Book.Opposing(q.Side)
		if level == nil || !level.Price.IsPositive() {
			return decimal.Zero, false
		}
		return level.Price, true
	default:
		return decimal.Zero, false
	}
}
