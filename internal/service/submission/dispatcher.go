// Package submission validates a finished order draft and routes it to the
// matching order placement protocol.
package submission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/krobus00/order-entry/internal/entity"
	"github.com/krobus00/order-entry/internal/service/pricing"
	"github.com/sirupsen/logrus"
)

const defaultPlacementTimeout = 30 * time.Second

// Journal stores every dispatched submission attempt.
type Journal interface {
	Record(ctx context.Context, submission *entity.OrderSubmission) error
}

type Request struct {
	// Key identifies the draft being submitted, usually session and symbol.
	Key        string
	Session    *entity.Session
	Instrument *entity.InstrumentDescriptor
	Draft      entity.OrderDraft
	Book       entity.BookTop
}

type Result struct {
	Draft         entity.OrderDraft     `json:"draft"`
	Status        State                 `json:"status"`
	TxID          string                `json:"txid,omitempty"`
	Protocol      string                `json:"protocol,omitempty"`
	Notifications []entity.Notification `json:"notifications"`
}

type Dispatcher struct {
	placement entity.OrderPlacementService
	notifier  entity.NotificationSink
	refresher entity.AccountRefresher
	journal   Journal
	guard     Guard
	timeout   time.Duration
	now       func() time.Time
	newID     func() string

	mu     sync.RWMutex
	states map[string]State
}

type Option func(*Dispatcher)

func WithJournal(journal Journal) Option {
	return func(d *Dispatcher) { d.journal = journal }
}

func WithGuard(guard Guard) Option {
	return func(d *Dispatcher) { d.guard = guard }
}

func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(d *Dispatcher) { d.newID = newID }
}

func NewDispatcher(placement entity.OrderPlacementService, notifier entity.NotificationSink, refresher entity.AccountRefresher, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		placement: placement,
		notifier:  notifier,
		refresher: refresher,
		guard:     NewMemoryGuard(),
		timeout:   defaultPlacementTimeout,
		now:       time.Now,
		newID:     uuid.NewString,
		states:    make(map[string]State),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// State reports where the submission for key currently is.
func (d *Dispatcher) State(key string) State {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.states[key]
}

func (d *Dispatcher) setState(key string, state State) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if state == StateIdle {
		delete(d.states, key)
		return
	}
	d.states[key] = state
}

// Submit runs one submission attempt. The returned draft is the one the
// caller should keep: priced fields are cleared after a successful placement
// and untouched otherwise. Once the placement call is dispatched it is not
// cancelled by ctx; it runs until it completes or the placement timeout.
func (d *Dispatcher) Submit(ctx context.Context, req Request) (Result, error) {
	release, err := d.guard.Acquire(ctx, req.Key)
	if err != nil {
		return Result{Draft: req.Draft, Status: d.State(req.Key)}, err
	}
	defer release()
	defer d.setState(req.Key, StateIdle)

	logger := logrus.WithFields(logrus.Fields{
		"key":        req.Key,
		"symbol":     req.Draft.Symbol,
		"side":       req.Draft.Side,
		"order_type": req.Draft.OrderType,
	})

	res := Result{Draft: req.Draft, Status: StateIdle}

	d.setState(req.Key, StateValidating)
	if err := Validate(req.Draft); err != nil {
		d.notify(ctx, &res, validationNotification(err))
		return res, err
	}

	if !req.Session.Ready() || req.Instrument == nil {
		logger.Debug("submission prerequisites missing")
		return res, entity.ErrPrerequisiteMissing
	}

	submitter, err := SelectSubmitter(d.placement, req.Instrument.Kind, req.Draft.OrderType)
	if err != nil {
		d.notify(ctx, &res, entity.Notification{
			Title:       "Order type not supported",
			Description: err.Error(),
			Type:        entity.NotificationTypeError,
		})
		d.refresh(ctx, req)
		return res, err
	}

	d.setState(req.Key, StateSubmitting)
	price, ok := pricing.ResolveExecutionPrice(pricing.QuoteFromDraft(req.Draft, req.Book))
	if !ok {
		d.notify(ctx, &res, entity.Notification{
			Title:       "Price not available",
			Description: "Please try again",
			Type:        entity.NotificationTypeWarning,
		})
		d.refresh(ctx, req)
		return res, entity.ErrPriceUnavailable
	}

	o := order{
		PlacementOrder: entity.PlacementOrder{
			SubmissionID: d.newID(),
			AccountID:    req.Session.AccountID,
			Signer:       req.Session.Signer,
			Instrument:   *req.Instrument,
			Side:         req.Draft.Side,
			Price:        price,
			Size:         req.Draft.BaseSize.Decimal,
			Qualifier:    req.Draft.Qualifier(),
		},
		draft:     req.Draft,
		timestamp: d.now(),
	}
	res.Protocol = string(submitter.Protocol())

	// the placement outlives the caller, bounded only by the timeout
	placeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	txID, placeErr := submitter.submit(placeCtx, o)
	cancel()

	d.record(ctx, req, o, submitter.Protocol(), txID, placeErr)

	if placeErr != nil {
		d.setState(req.Key, StateFailed)
		res.Status = StateFailed
		res.TxID = txID

		var placementErr *entity.PlacementError
		n := entity.Notification{
			Title:       "Order failed",
			Description: placeErr.Error(),
			Type:        entity.NotificationTypeError,
			TxID:        txID,
		}
		if errors.As(placeErr, &placementErr) {
			n.Description = placementErr.Message
			if placementErr.TxID != "" {
				n.TxID = placementErr.TxID
				res.TxID = placementErr.TxID
			}
		}
		d.notify(ctx, &res, n)
		d.refresh(ctx, req)

		logger.WithField("txid", res.TxID).Warnf("order placement failed: %v", placeErr)
		return res, fmt.Errorf("%w: %w", entity.ErrSubmissionRejected, placeErr)
	}

	d.setState(req.Key, StateSucceeded)
	res.Status = StateSucceeded
	res.TxID = txID
	res.Draft = req.Draft.ClearPricedFields()
	d.notify(ctx, &res, entity.Notification{
		Title:       "Order placed",
		Description: fmt.Sprintf("%s %s %s @ %s", o.Side, o.Size.String(), req.Draft.Symbol, o.Price.String()),
		Type:        entity.NotificationTypeSuccess,
		TxID:        txID,
	})
	d.refresh(ctx, req)

	logger.WithFields(logrus.Fields{
		"txid":     txID,
		"protocol": submitter.Protocol(),
		"price":    o.Price.String(),
		"size":     o.Size.String(),
	}).Info("order placed")

	return res, nil
}

// Validate checks the draft fields a submission needs.
func Validate(d entity.OrderDraft) error {
	if d.OrderType.IsLimitFamily() && !entity.IsSet(d.Price) {
		return entity.ErrMissingPrice
	}
	if !entity.IsSet(d.BaseSize) {
		return entity.ErrMissingSize
	}
	if d.OrderType.IsTrigger() && !entity.IsSet(d.TriggerPrice) {
		return entity.ErrMissingTriggerPrice
	}

	return nil
}

func validationNotification(err error) entity.Notification {
	n := entity.Notification{Type: entity.NotificationTypeError}
	switch {
	case errors.Is(err, entity.ErrMissingPrice):
		n.Title = "Missing price"
	case errors.Is(err, entity.ErrMissingSize):
		n.Title = "Missing size"
	case errors.Is(err, entity.ErrMissingTriggerPrice):
		n.Title = "Missing trigger price"
	default:
		n.Title = "Invalid order"
		n.Description = err.Error()
	}

	return n
}

func (d *Dispatcher) notify(ctx context.Context, res *Result, n entity.Notification) {
	res.Notifications = append(res.Notifications, n)
	if d.notifier != nil {
		d.notifier.Notify(context.WithoutCancel(ctx), n)
	}
}

func (d *Dispatcher) refresh(ctx context.Context, req Request) {
	if d.refresher == nil {
		return
	}

	refreshCtx := context.WithoutCancel(ctx)
	d.refresher.RefreshAccount(refreshCtx, req.Session.AccountID)
	d.refresher.RefreshFills(refreshCtx, req.Draft.Symbol)
}

func (d *Dispatcher) record(ctx context.Context, req Request, o order, protocol entity.PlacementProtocol, txID string, placeErr error) {
	if d.journal == nil {
		return
	}

	sessionID := ""
	if req.Session != nil {
		sessionID = req.Session.ID
	}

	submission := &entity.OrderSubmission{
		SubmissionID:   o.SubmissionID,
		SessionID:      sessionID,
		AccountID:      o.AccountID,
		Symbol:         req.Draft.Symbol,
		InstrumentKind: o.Instrument.Kind,
		Protocol:       protocol,
		Side:           o.Side,
		OrderType:      req.Draft.OrderType,
		Price:          o.Price,
		Size:           o.Size,
		Qualifier:      o.Qualifier,
		ReduceOnly:     req.Draft.ReduceOnly,
		Status:         entity.SubmissionStatusSucceeded,
		TxID:           sql.NullString{String: txID, Valid: txID != ""},
		SentAt:         o.timestamp,
		CompletedAt:    sql.NullTime{Time: d.now(), Valid: true},
	}
	if protocol == entity.PlacementProtocolPerp && req.Draft.OrderType == entity.OrderTypeMarket {
		submission.Qualifier = entity.OrderQualifierMarket
	}
	if req.Draft.OrderType.IsTrigger() {
		submission.TriggerPrice = req.Draft.TriggerPrice
		submission.TriggerCondition = sql.NullString{String: string(req.Draft.TriggerCondition), Valid: true}
	}
	if placeErr != nil {
		submission.Status = entity.SubmissionStatusFailed
		submission.ErrorMessage = sql.NullString{String: placeErr.Error(), Valid: true}

		var placementErr *entity.PlacementError
		if errors.As(placeErr, &placementErr) && placementErr.TxID != "" {
			submission.TxID = sql.NullString{String: placementErr.TxID, Valid: true}
		}
	}

	if err := d.journal.Record(context.WithoutCancel(ctx), submission); err != nil {
		logrus.WithFields(logrus.Fields{
			"submission_id": o.SubmissionID,
			"symbol":        req.Draft.Symbol,
		}).Errorf("failed to record order submission: %v", err)
	}
}
