package orderform

import (
	"github.com/krobus00/order-entry/internal/entity"
	"github.com/shopspring/decimal"
)

// DeriveTriggerCondition maps an order type and side to the price direction
// that fires the trigger. Non-trigger types have no condition.
func DeriveTriggerCondition(orderType entity.OrderType, side entity.OrderSide) entity.TriggerCondition {
	switch {
	case orderType.IsStopFamily():
		if side == entity.OrderSideBuy {
			return entity.TriggerConditionAbove
		}
		return entity.TriggerConditionBelow
	case orderType.IsTakeProfitFamily():
		if side == entity.OrderSideBuy {
			return entity.TriggerConditionBelow
		}
		return entity.TriggerConditionAbove
	default:
		return entity.TriggerConditionUnset
	}
}

func SetSide(d entity.OrderDraft, m Market, side entity.OrderSide) entity.OrderDraft {
	d.Side = side
	d.TriggerCondition = DeriveTriggerCondition(d.OrderType, side)
	return d
}

// SetOrderType switches the order type and adjusts qualifiers and price to
// what the new type allows.
func SetOrderType(d entity.OrderDraft, m Market, orderType entity.OrderType) entity.OrderDraft {
	d.OrderType = orderType
	d.TriggerCondition = DeriveTriggerCondition(orderType, d.Side)

	if orderType.IsTrigger() {
		d.ReduceOnly = false
	}

	if orderType.IsMarketFamily() {
		d.ImmediateOrCancel = true
		d.PostOnly = false

		if orderType == entity.OrderTypeMarket {
			d.Price = empty
			// quote now follows the mark price
			return SetBaseSize(d, m, d.BaseSize)
		}

		return SetPrice(d, m, d.TriggerPrice)
	}

	if level := m.Prices.Book().Opposing(d.Side); level != nil {
		d = SetPrice(d, m, decimal.NewNullDecimal(level.Price))
	}
	d.ImmediateOrCancel = false

	return d
}

// SetPostOnly toggles post-only. Enabling it clears immediate-or-cancel.
// Market-style orders always execute immediately, so the toggle is ignored.
func SetPostOnly(d entity.OrderDraft, enabled bool) entity.OrderDraft {
	if d.OrderType.IsMarketFamily() {
		return d
	}

	if enabled {
		d.ImmediateOrCancel = false
	}
	d.PostOnly = enabled
	return d
}

// SetImmediateOrCancel toggles IOC. Enabling it clears post-only.
func SetImmediateOrCancel(d entity.OrderDraft, enabled bool) entity.OrderDraft {
	if d.OrderType.IsMarketFamily() {
		return d
	}

	if enabled {
		d.PostOnly = false
	}
	d.ImmediateOrCancel = enabled
	return d
}

// SetReduceOnly toggles reduce-only. It only applies to perpetual
// instruments with non-trigger order types; elsewhere it stays off.
func SetReduceOnly(d entity.OrderDraft, m Market, enabled bool) entity.OrderDraft {
	if enabled && !reduceOnlyAllowed(d, m.Instrument) {
		d.ReduceOnly = false
		return d
	}

	d.ReduceOnly = enabled
	return d
}

// Availability lists the controls that apply to the current draft.
type Availability struct {
	PriceEditable bool `json:"price_editable"`
	PostOnly      bool `json:"post_only"`
	IOC           bool `json:"ioc"`
	ReduceOnly    bool `json:"reduce_only"`
	TriggerPrice  bool `json:"trigger_price"`
	OfferTriggers bool `json:"offer_triggers"`
}

func QualifierAvailability(d entity.OrderDraft, instrument entity.InstrumentDescriptor) Availability {
	return Availability{
		PriceEditable: !d.OrderType.IsMarketFamily(),
		PostOnly:      d.OrderType.IsLimitFamily(),
		IOC:           d.OrderType.IsLimitFamily(),
		ReduceOnly:    reduceOnlyAllowed(d, instrument),
		TriggerPrice:  d.OrderType.IsTrigger(),
		OfferTriggers: instrument.Kind == entity.InstrumentKindPerpetual,
	}
}

func reduceOnlyAllowed(d entity.OrderDraft, instrument entity.InstrumentDescriptor) bool {
	return instrument.Kind == entity.InstrumentKindPerpetual && !d.OrderType.IsTrigger()
}
