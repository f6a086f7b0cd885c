package entity

import "errors"

var (
	ErrMissingPrice        = errors.New("missing price")
	ErrMissingSize         = errors.New("missing size")
	ErrMissingTriggerPrice = errors.New("missing trigger price")
	ErrPriceUnavailable    = errors.New("price not available")
	ErrSubmissionRejected  = errors.New("submission rejected")
	ErrPrerequisiteMissing = errors.New("submission prerequisite missing")
	ErrSubmissionInFlight  = errors.New("submission already in flight")

	ErrInvalidInstrument  = errors.New("invalid instrument")
	ErrInstrumentNotFound = errors.New("instrument not found")
	ErrInvalidOrderSide   = errors.New("invalid order side")
	ErrInvalidOrderType   = errors.New("invalid order type")
	ErrInvalidValue       = errors.New("invalid value")
	ErrDraftLocked        = errors.New("draft is being modified")
	ErrSessionRequired    = errors.New("session id is required")
)
