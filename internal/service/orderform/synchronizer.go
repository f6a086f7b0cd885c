// Package orderform holds the reducers that edit an order draft. Every
// function takes the current draft plus the read-only market context and
// returns the next draft; none of them mutate their inputs.
package orderform

import (
	"github.com/krobus00/order-entry/internal/entity"
	"github.com/shopspring/decimal"
)

// QuoteSizeDecimals is the fixed precision of the derived quote size.
const QuoteSizeDecimals int32 = 6

// Market is the read-only context reducers compute against.
type Market struct {
	Instrument entity.InstrumentDescriptor
	Prices     entity.PriceSnapshot
}

var empty = decimal.NullDecimal{}

// SetPrice stores the limit price and re-derives the quote size. Market
// orders have no editable price, so the value is dropped.
func SetPrice(d entity.OrderDraft, m Market, price decimal.NullDecimal) entity.OrderDraft {
	if d.OrderType == entity.OrderTypeMarket {
		d.Price = empty
		return d
	}

	d.Price = price
	if !entity.IsSet(price) || !entity.IsSet(d.BaseSize) {
		return d
	}

	d.QuoteSize = quoteFor(d.BaseSize.Decimal, price.Decimal)
	return d
}

// SetBaseSize stores the base size and derives the quote size from the limit
// price, falling back to the mark price.
func SetBaseSize(d entity.OrderDraft, m Market, baseSize decimal.NullDecimal) entity.OrderDraft {
	d.BaseSize = baseSize
	if !entity.IsSet(baseSize) {
		d.QuoteSize = empty
		return d
	}

	price, ok := effectivePrice(d, m)
	if !ok {
		d.QuoteSize = empty
		return d
	}

	d.QuoteSize = quoteFor(baseSize.Decimal, price)
	return d
}

// SetQuoteSize stores the quote size and derives the base size, floored to
// the instrument's size precision so the order never exceeds the notional.
func SetQuoteSize(d entity.OrderDraft, m Market, quoteSize decimal.NullDecimal) entity.OrderDraft {
	d.QuoteSize = quoteSize
	if !entity.IsSet(quoteSize) {
		d.BaseSize = empty
		return d
	}

	if !entity.IsSet(d.Price) && d.OrderType.IsLimitFamily() {
		d.BaseSize = empty
		return d
	}

	price, ok := effectivePrice(d, m)
	if !ok {
		d.BaseSize = empty
		return d
	}

	base := quoteSize.Decimal.Div(price).RoundFloor(m.Instrument.SizeDecimalCount())
	d.BaseSize = decimal.NewNullDecimal(base)
	return d
}

// SetTriggerPrice stores the trigger price. Stop loss and take profit have
// no separate limit price, so the trigger is mirrored into it.
func SetTriggerPrice(d entity.OrderDraft, m Market, triggerPrice decimal.NullDecimal) entity.OrderDraft {
	d.TriggerPrice = triggerPrice
	if d.OrderType == entity.OrderTypeStopLoss || d.OrderType == entity.OrderTypeTakeProfit {
		return SetPrice(d, m, triggerPrice)
	}

	return d
}

func effectivePrice(d entity.OrderDraft, m Market) (decimal.Decimal, bool) {
	if entity.IsSet(d.Price) {
		return d.Price.Decimal, true
	}
	if entity.IsSet(m.Prices.MarkPrice) {
		return m.Prices.MarkPrice.Decimal, true
	}

	return decimal.Zero, false
}

func quoteFor(baseSize, price decimal.Decimal) decimal.NullDecimal {
	return decimal.NewNullDecimal(baseSize.Mul(price).Round(QuoteSizeDecimals))
}
