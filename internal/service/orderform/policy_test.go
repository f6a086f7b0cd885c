package orderform

import (
	"math/rand"
	"testing"

	"github.com/krobus00/order-entry/internal/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func perpMarket() Market {
	instrument := entity.NewPerpetualInstrument("SOL-PERP", "SOL", "USDC",
		decimal.NewFromInt(100), decimal.NewFromInt(10), 9, 6)
	instrument.BidsRef = "bids-ref"
	instrument.AsksRef = "asks-ref"

	return Market{
		Instrument: instrument,
		Prices: entity.PriceSnapshot{
			Symbol:    "SOL-PERP",
			MarkPrice: dec("100.5"),
			BestBid:   &entity.PriceLevel{Price: decimal.RequireFromString("100"), Size: decimal.NewFromInt(3)},
			BestAsk:   &entity.PriceLevel{Price: decimal.RequireFromString("101"), Size: decimal.NewFromInt(4)},
		},
	}
}

func TestDeriveTriggerCondition(t *testing.T) {
	tests := []struct {
		orderType entity.OrderType
		side      entity.OrderSide
		want      entity.TriggerCondition
	}{
		{entity.OrderTypeStopLoss, entity.OrderSideBuy, entity.TriggerConditionAbove},
		{entity.OrderTypeStopLoss, entity.OrderSideSell, entity.TriggerConditionBelow},
		{entity.OrderTypeStopLimit, entity.OrderSideBuy, entity.TriggerConditionAbove},
		{entity.OrderTypeStopLimit, entity.OrderSideSell, entity.TriggerConditionBelow},
		{entity.OrderTypeTakeProfit, entity.OrderSideBuy, entity.TriggerConditionBelow},
		{entity.OrderTypeTakeProfit, entity.OrderSideSell, entity.TriggerConditionAbove},
		{entity.OrderTypeTakeProfitLimit, entity.OrderSideBuy, entity.TriggerConditionBelow},
		{entity.OrderTypeTakeProfitLimit, entity.OrderSideSell, entity.TriggerConditionAbove},
		{entity.OrderTypeLimit, entity.OrderSideBuy, entity.TriggerConditionUnset},
		{entity.OrderTypeMarket, entity.OrderSideSell, entity.TriggerConditionUnset},
	}

	for _, tt := range tests {
		t.Run(string(tt.orderType)+"_"+string(tt.side), func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveTriggerCondition(tt.orderType, tt.side))

			d := entity.NewOrderDraft("SOL-PERP")
			d.Side = tt.side
			d = SetOrderType(d, perpMarket(), tt.orderType)
			assert.Equal(t, tt.want, d.TriggerCondition)
		})
	}
}

func TestSetSide_RederivesCondition(t *testing.T) {
	m := perpMarket()
	d := entity.NewOrderDraft("SOL-PERP")
	d = SetOrderType(d, m, entity.OrderTypeStopLimit)
	require.Equal(t, entity.TriggerConditionAbove, d.TriggerCondition)

	d = SetSide(d, m, entity.OrderSideSell)
	assert.Equal(t, entity.OrderSideSell, d.Side)
	assert.Equal(t, entity.TriggerConditionBelow, d.TriggerCondition)
}

func TestSetOrderType_Market(t *testing.T) {
	m := perpMarket()
	d := entity.NewOrderDraft("SOL-PERP")
	d.PostOnly = true
	d = SetPrice(d, m, dec("99"))
	d = SetBaseSize(d, m, dec("2"))

	d = SetOrderType(d, m, entity.OrderTypeMarket)
	assert.False(t, d.Price.Valid)
	assert.True(t, d.ImmediateOrCancel)
	assert.False(t, d.PostOnly)
	assert.Equal(t, "201", d.QuoteSize.Decimal.String())
}

func TestSetOrderType_TriggerMarketCopiesTriggerPrice(t *testing.T) {
	m := perpMarket()
	d := entity.NewOrderDraft("SOL-PERP")
	d.TriggerPrice = dec("95")
	d.ReduceOnly = true

	d = SetOrderType(d, m, entity.OrderTypeTakeProfit)
	assert.Equal(t, "95", d.Price.Decimal.String())
	assert.True(t, d.ImmediateOrCancel)
	assert.False(t, d.ReduceOnly)
}

func TestSetOrderType_LimitFamilyUsesOpposingBook(t *testing.T) {
	m := perpMarket()

	buy := entity.NewOrderDraft("SOL-PERP")
	buy.ImmediateOrCancel = true
	buy = SetOrderType(buy, m, entity.OrderTypeLimit)
	assert.Equal(t, "101", buy.Price.Decimal.String())
	assert.False(t, buy.ImmediateOrCancel)

	sell := entity.NewOrderDraft("SOL-PERP")
	sell.Side = entity.OrderSideSell
	sell = SetOrderType(sell, m, entity.OrderTypeStopLimit)
	assert.Equal(t, "100", sell.Price.Decimal.String())

	m.Prices.BestAsk = nil
	empty := entity.NewOrderDraft("SOL-PERP")
	empty.Price = dec("77")
	empty = SetOrderType(empty, m, entity.OrderTypeLimit)
	assert.Equal(t, "77", empty.Price.Decimal.String())
}

func TestQualifierToggles_NeverBothSet(t *testing.T) {
	m := perpMarket()
	rng := rand.New(rand.NewSource(42))
	types := []entity.OrderType{
		entity.OrderTypeLimit, entity.OrderTypeMarket, entity.OrderTypeStopLoss,
		entity.OrderTypeStopLimit, entity.OrderTypeTakeProfit, entity.OrderTypeTakeProfitLimit,
	}

	d := entity.NewOrderDraft("SOL-PERP")
	for i := 0; i < 500; i++ {
		switch rng.Intn(4) {
		case 0:
			d = SetPostOnly(d, rng.Intn(2) == 0)
		case 1:
			d = SetImmediateOrCancel(d, rng.Intn(2) == 0)
		case 2:
			d = SetReduceOnly(d, m, rng.Intn(2) == 0)
		case 3:
			d = SetOrderType(d, m, types[rng.Intn(len(types))])
		}

		require.False(t, d.PostOnly && d.ImmediateOrCancel, "step %d", i)
		if d.OrderType == entity.OrderTypeMarket {
			require.False(t, d.Price.Valid, "step %d", i)
			require.True(t, d.ImmediateOrCancel, "step %d", i)
		}
	}
}

func TestSetReduceOnly(t *testing.T) {
	perp := perpMarket()
	spot := spotMarket("")

	d := entity.NewOrderDraft("SOL-PERP")
	assert.True(t, SetReduceOnly(d, perp, true).ReduceOnly)
	assert.False(t, SetReduceOnly(d, spot, true).ReduceOnly)

	d.OrderType = entity.OrderTypeStopLimit
	assert.False(t, SetReduceOnly(d, perp, true).ReduceOnly)
}

func TestQualifierAvailability(t *testing.T) {
	perp := perpMarket().Instrument
	spot := spotMarket("").Instrument

	limit := entity.NewOrderDraft("SOL-PERP")
	got := QualifierAvailability(limit, perp)
	assert.Equal(t, Availability{
		PriceEditable: true,
		PostOnly:      true,
		IOC:           true,
		ReduceOnly:    true,
		OfferTriggers: true,
	}, got)

	market := limit
	market.OrderType = entity.OrderTypeMarket
	got = QualifierAvailability(market, spot)
	assert.Equal(t, Availability{}, got)

	stop := limit
	stop.OrderType = entity.OrderTypeStopLimit
	got = QualifierAvailability(stop, perp)
	assert.True(t, got.TriggerPrice)
	assert.False(t, got.ReduceOnly)
	assert.True(t, got.PostOnly)
}

func TestScenario_LimitThenMarket(t *testing.T) {
	m := spotMarket("105")
	d := entity.NewOrderDraft("SOLUSDC")
	d = SetSide(d, m, entity.OrderSideBuy)
	d = SetOrderType(d, m, entity.OrderTypeLimit)
	d = SetPrice(d, m, dec("100"))
	d = SetBaseSize(d, m, dec("2"))
	assert.Equal(t, "200.000000", d.QuoteSize.Decimal.StringFixed(QuoteSizeDecimals))

	d = SetOrderType(d, m, entity.OrderTypeMarket)
	assert.False(t, d.Price.Valid)
	assert.True(t, d.ImmediateOrCancel)
	assert.Equal(t, "210", d.QuoteSize.Decimal.String())
}

func TestScenario_StopOrders(t *testing.T) {
	m := perpMarket()
	d := entity.NewOrderDraft("SOL-PERP")
	d = SetSide(d, m, entity.OrderSideSell)
	d = SetOrderType(d, m, entity.OrderTypeStopLimit)
	assert.Equal(t, entity.TriggerConditionBelow, d.TriggerCondition)

	d = SetOrderType(d, m, entity.OrderTypeStopLoss)
	d = SetTriggerPrice(d, m, dec("90"))
	assert.Equal(t, "90", d.Price.Decimal.String())
	assert.Equal(t, "90", d.TriggerPrice.Decimal.String())
}
