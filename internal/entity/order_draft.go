package entity

import (
	"strings"

	"github.com/shopspring/decimal"
)

type OrderSide string
type OrderType string
type TriggerCondition string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"

	OrderTypeLimit           OrderType = "LIMIT"
	OrderTypeMarket          OrderType = "MARKET"
	OrderTypeStopLoss        OrderType = "STOP_LOSS"
	OrderTypeStopLimit       OrderType = "STOP_LIMIT"
	OrderTypeTakeProfit      OrderType = "TAKE_PROFIT"
	OrderTypeTakeProfitLimit OrderType = "TAKE_PROFIT_LIMIT"

	TriggerConditionUnset TriggerCondition = ""
	TriggerConditionAbove TriggerCondition = "ABOVE"
	TriggerConditionBelow TriggerCondition = "BELOW"
)

func ParseOrderSide(s string) (OrderSide, error) {
	switch OrderSide(strings.ToUpper(strings.TrimSpace(s))) {
	case OrderSideBuy:
		return OrderSideBuy, nil
	case OrderSideSell:
		return OrderSideSell, nil
	default:
		return "", ErrInvalidOrderSide
	}
}

func ParseOrderType(s string) (OrderType, error) {
	t := OrderType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrInvalidOrderType
	}

	return t, nil
}

func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeLimit, OrderTypeMarket,
		OrderTypeStopLoss, OrderTypeStopLimit,
		OrderTypeTakeProfit, OrderTypeTakeProfitLimit:
		return true
	default:
		return false
	}
}

// IsLimitFamily reports whether the order rests at a user-entered price.
func (t OrderType) IsLimitFamily() bool {
	switch t {
	case OrderTypeLimit, OrderTypeStopLimit, OrderTypeTakeProfitLimit:
		return true
	default:
		return false
	}
}

// IsMarketFamily reports whether the order executes immediately once live.
func (t OrderType) IsMarketFamily() bool {
	switch t {
	case OrderTypeMarket, OrderTypeStopLoss, OrderTypeTakeProfit:
		return true
	default:
		return false
	}
}

func (t OrderType) IsTrigger() bool {
	return t.IsStopFamily() || t.IsTakeProfitFamily()
}

func (t OrderType) IsStopFamily() bool {
	return t == OrderTypeStopLoss || t == OrderTypeStopLimit
}

func (t OrderType) IsTakeProfitFamily() bool {
	return t == OrderTypeTakeProfit || t == OrderTypeTakeProfitLimit
}

// OrderDraft is the in-progress order a user is editing for one instrument.
// Empty numeric fields are represented by an invalid NullDecimal.
type OrderDraft struct {
	Symbol            string              `json:"symbol"`
	Side              OrderSide           `json:"side"`
	OrderType         OrderType           `json:"order_type"`
	Price             decimal.NullDecimal `json:"price"`
	BaseSize          decimal.NullDecimal `json:"base_size"`
	QuoteSize         decimal.NullDecimal `json:"quote_size"`
	TriggerPrice      decimal.NullDecimal `json:"trigger_price"`
	TriggerCondition  TriggerCondition    `json:"trigger_condition,omitempty"`
	PostOnly          bool                `json:"post_only"`
	ImmediateOrCancel bool                `json:"immediate_or_cancel"`
	ReduceOnly        bool                `json:"reduce_only"`
}

func NewOrderDraft(symbol string) OrderDraft {
	return OrderDraft{
		Symbol:    symbol,
		Side:      OrderSideBuy,
		OrderType: OrderTypeLimit,
	}
}

// ClearPricedFields empties price and both sizes, keeping side, order type,
// trigger settings and qualifiers.
func (d OrderDraft) ClearPricedFields() OrderDraft {
	d.Price = decimal.NullDecimal{}
	d.BaseSize = decimal.NullDecimal{}
	d.QuoteSize = decimal.NullDecimal{}
	return d
}

// Qualifier is the order qualifier sent to the venue: ioc wins over
// postOnly, and plain limit is the fallback.
func (d OrderDraft) Qualifier() OrderQualifier {
	switch {
	case d.ImmediateOrCancel:
		return OrderQualifierIOC
	case d.PostOnly:
		return OrderQualifierPostOnly
	default:
		return OrderQualifierLimit
	}
}

// IsSet reports whether an optional decimal carries a usable value. Zero is
// treated as empty.
func IsSet(v decimal.NullDecimal) bool {
	return v.Valid && !v.Decimal.IsZero()
}
