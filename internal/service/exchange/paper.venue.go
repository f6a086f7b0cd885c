package exchange

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/krobus00/order-entry/internal/entity"
	"github.com/sirupsen/logrus"
)

// PaperVenue accepts every order locally without contacting a venue.
type PaperVenue struct {
	mu     sync.Mutex
	placed []PaperOrder
}

type PaperOrder struct {
	TxID     string
	Protocol entity.PlacementProtocol
	Order    entity.PlacementOrder
}

func NewPaperVenue() *PaperVenue {
	return &PaperVenue{}
}

func (v *PaperVenue) PlaceSpotOrder(ctx context.Context, req entity.SpotOrderRequest) (string, error) {
	return v.place(ctx, entity.PlacementProtocolSpot, req.PlacementOrder)
}

func (v *PaperVenue) PlacePerpOrder(ctx context.Context, req entity.PerpOrderRequest) (string, error) {
	return v.place(ctx, entity.PlacementProtocolPerp, req.PlacementOrder)
}

func (v *PaperVenue) PlaceTriggerOrder(ctx context.Context, req entity.TriggerOrderRequest) (string, error) {
	return v.place(ctx, entity.PlacementProtocolTrigger, req.PlacementOrder)
}

// Orders returns what has been placed so far, oldest first.
func (v *PaperVenue) Orders() []PaperOrder {
	v.mu.Lock()
	defer v.mu.Unlock()

	return append([]PaperOrder(nil), v.placed...)
}

func (v *PaperVenue) place(ctx context.Context, protocol entity.PlacementProtocol, order entity.PlacementOrder) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	txID := "paper-" + uuid.NewString()

	v.mu.Lock()
	v.placed = append(v.placed, PaperOrder{TxID: txID, Protocol: protocol, Order: order})
	v.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"txid":     txID,
		"protocol": protocol,
		"symbol":   order.Instrument.Symbol,
		"side":     order.Side,
		"price":    order.Price.String(),
		"size":     order.Size.String(),
	}).Info("paper order placed")

	return txID, nil
}
