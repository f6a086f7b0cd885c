package submission

import (
	"context"
	"fmt"
	"time"

	"github.com/krobus00/order-entry/internal/entity"
)

// order is a validated draft with its resolved execution price.
type order struct {
	entity.PlacementOrder
	draft     entity.OrderDraft
	timestamp time.Time
}

// OrderSubmitter is one placement protocol.
type OrderSubmitter interface {
	Protocol() entity.PlacementProtocol
	submit(ctx context.Context, o order) (string, error)
}

type spotSubmitter struct {
	placement entity.OrderPlacementService
}

func (s spotSubmitter) Protocol() entity.PlacementProtocol {
	return entity.PlacementProtocolSpot
}

func (s spotSubmitter) submit(ctx context.Context, o order) (string, error) {
	return s.placement.PlaceSpotOrder(ctx, entity.SpotOrderRequest{PlacementOrder: o.PlacementOrder})
}

type perpSubmitter struct {
	placement entity.OrderPlacementService
}

func (s perpSubmitter) Protocol() entity.PlacementProtocol {
	return entity.PlacementProtocolPerp
}

func (s perpSubmitter) submit(ctx context.Context, o order) (string, error) {
	req := entity.PerpOrderRequest{
		PlacementOrder: o.PlacementOrder,
		Timestamp:      o.timestamp,
		BookSideRef:    o.Instrument.BookSideRef(o.Side),
		ReduceOnly:     o.draft.ReduceOnly,
	}
	if o.draft.OrderType == entity.OrderTypeMarket {
		req.Qualifier = entity.OrderQualifierMarket
	}

	return s.placement.PlacePerpOrder(ctx, req)
}

type triggerSubmitter struct {
	placement entity.OrderPlacementService
}

func (s triggerSubmitter) Protocol() entity.PlacementProtocol {
	return entity.PlacementProtocolTrigger
}

func (s triggerSubmitter) submit(ctx context.Context, o order) (string, error) {
	return s.placement.PlaceTriggerOrder(ctx, entity.TriggerOrderRequest{
		PlacementOrder:   o.PlacementOrder,
		TriggerCondition: o.draft.TriggerCondition,
		TriggerPrice:     o.draft.TriggerPrice.Decimal,
	})
}

// SelectSubmitter picks the placement protocol from the instrument kind and
// whether the order type is a trigger.
func SelectSubmitter(placement entity.OrderPlacementService, kind entity.InstrumentKind, orderType entity.OrderType) (OrderSubmitter, error) {
	switch kind {
	case entity.InstrumentKindSpot:
		if orderType.IsTrigger() {
			return nil, fmt.Errorf("%w: trigger orders need a perpetual instrument", entity.ErrInvalidOrderType)
		}
		return spotSubmitter{placement: placement}, nil
	case entity.InstrumentKindPerpetual:
		if orderType.IsTrigger() {
			return triggerSubmitter{placement: placement}, nil
		}
		return perpSubmitter{placement: placement}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", entity.ErrInvalidInstrument, kind)
	}
}
