package entity

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type OrderQualifier string
type PlacementProtocol string

const (
	OrderQualifierIOC      OrderQualifier = "ioc"
	OrderQualifierPostOnly OrderQualifier = "postOnly"
	OrderQualifierLimit    OrderQualifier = "limit"
	OrderQualifierMarket   OrderQualifier = "market"

	PlacementProtocolSpot    PlacementProtocol = "SPOT"
	PlacementProtocolPerp    PlacementProtocol = "PERP"
	PlacementProtocolTrigger PlacementProtocol = "TRIGGER"
)

// PlacementOrder carries the fields shared by every placement protocol.
type PlacementOrder struct {
	SubmissionID string
	AccountID    string
	Signer       string
	Instrument   InstrumentDescriptor
	Side         OrderSide
	Price        decimal.Decimal
	Size         decimal.Decimal
	Qualifier    OrderQualifier
}

type SpotOrderRequest struct {
	PlacementOrder
}

type PerpOrderRequest struct {
	PlacementOrder
	Timestamp   time.Time
	BookSideRef string
	ReduceOnly  bool
}

type TriggerOrderRequest struct {
	PlacementOrder
	TriggerCondition TriggerCondition
	TriggerPrice     decimal.Decimal
}

// OrderPlacementService is the remote venue that accepts finished orders.
// Every method returns the venue transaction id. Rejections are reported as
// *PlacementError.
type OrderPlacementService interface {
	PlaceSpotOrder(ctx context.Context, req SpotOrderRequest) (string, error)
	PlacePerpOrder(ctx context.Context, req PerpOrderRequest) (string, error)
	PlaceTriggerOrder(ctx context.Context, req TriggerOrderRequest) (string, error)
}

type PlacementError struct {
	Message string
	TxID    string
}

func (e *PlacementError) Error() string {
	if e.TxID == "" {
		return e.Message
	}

	return e.Message + " (txid " + e.TxID + ")"
}

func (e *PlacementError) Is(target error) bool {
	return target == ErrSubmissionRejected
}
