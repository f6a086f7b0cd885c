// Package orderentry runs the order form for many concurrent sessions: it
// loads a session's draft, applies one edit through the form reducers, saves
// it back and hands finished drafts to the submission dispatcher.
package orderentry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null/v6"
	"github.com/krobus00/order-entry/internal/entity"
	"github.com/krobus00/order-entry/internal/service/notifier"
	"github.com/krobus00/order-entry/internal/service/orderform"
	"github.com/krobus00/order-entry/internal/service/pricing"
	"github.com/krobus00/order-entry/internal/service/submission"
	"github.com/krobus00/order-entry/internal/util"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	defaultLockTTL   = 15 * time.Second
	lockWaitTimeout  = 250 * time.Millisecond
	lockPollInterval = 10 * time.Millisecond
)

const (
	FieldPrice        = "price"
	FieldBaseSize     = "base_size"
	FieldQuoteSize    = "quote_size"
	FieldTriggerPrice = "trigger_price"
	FieldSide         = "side"
	FieldOrderType    = "order_type"

	QualifierPostOnly   = "post_only"
	QualifierIOC        = "ioc"
	QualifierReduceOnly = "reduce_only"
)

type DraftStore interface {
	Load(ctx context.Context, sessionID, symbol string) (entity.OrderDraft, bool, error)
	Save(ctx context.Context, sessionID string, draft entity.OrderDraft) error
	Delete(ctx context.Context, sessionID, symbol string) error
	SelectedSymbol(ctx context.Context, sessionID string) (string, bool, error)
	SetSelectedSymbol(ctx context.Context, sessionID, symbol string) error
	AcquireLock(ctx context.Context, key string, ttl time.Duration, owner string) (bool, error)
	ReleaseLock(ctx context.Context, key string, owner string) error
}

type SubmissionLister interface {
	ListBySession(ctx context.Context, sessionID string, limit uint64) ([]entity.OrderSubmission, error)
}

// DraftView is a draft together with what the form shows around it.
type DraftView struct {
	Draft          entity.OrderDraft
	Instrument     entity.InstrumentDescriptor
	Prices         entity.PriceSnapshot
	ProjectedPrice decimal.NullDecimal
	Availability   orderform.Availability
	State          submission.State
}

type Service struct {
	store       DraftStore
	instruments entity.InstrumentRegistry
	feed        entity.PriceOracleFeed
	dispatcher  *submission.Dispatcher
	submissions SubmissionLister
	lockTTL     time.Duration
}

func NewService(store DraftStore, instruments entity.InstrumentRegistry, feed entity.PriceOracleFeed, dispatcher *submission.Dispatcher, submissions SubmissionLister, lockTTL time.Duration) *Service {
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}

	return &Service{
		store:       store,
		instruments: instruments,
		feed:        feed,
		dispatcher:  dispatcher,
		submissions: submissions,
		lockTTL:     lockTTL,
	}
}

func (s *Service) GetDraft(ctx context.Context, session *entity.Session, symbol string) (*DraftView, error) {
	var view *DraftView
	err := s.withDraft(ctx, session, symbol, func(d entity.OrderDraft, _ orderform.Market) (entity.OrderDraft, bool, error) {
		return d, false, nil
	}, &view)

	return view, err
}

// UpdateField applies one field edit. Numeric fields take a decimal or an
// empty value; side and order_type take their enum names.
func (s *Service) UpdateField(ctx context.Context, session *entity.Session, symbol, field string, value null.String) (*DraftView, error) {
	var view *DraftView
	err := s.withDraft(ctx, session, symbol, func(d entity.OrderDraft, m orderform.Market) (entity.OrderDraft, bool, error) {
		switch field {
		case FieldPrice, FieldBaseSize, FieldQuoteSize, FieldTriggerPrice:
			amount, err := util.ParseOptionalDecimal(value)
			if err != nil {
				return d, false, fmt.Errorf("%w: %s: %w", entity.ErrInvalidValue, field, err)
			}

			switch field {
			case FieldPrice:
				return orderform.SetPrice(d, m, amount), true, nil
			case FieldBaseSize:
				return orderform.SetBaseSize(d, m, amount), true, nil
			case FieldQuoteSize:
				return orderform.SetQuoteSize(d, m, amount), true, nil
			default:
				return orderform.SetTriggerPrice(d, m, amount), true, nil
			}
		case FieldSide:
			side, err := entity.ParseOrderSide(value.ValueOrZero())
			if err != nil {
				return d, false, err
			}
			return orderform.SetSide(d, m, side), true, nil
		case FieldOrderType:
			orderType, err := entity.ParseOrderType(value.ValueOrZero())
			if err != nil {
				return d, false, err
			}
			return orderform.SetOrderType(d, m, orderType), true, nil
		default:
			return d, false, fmt.Errorf("%w: unknown field %q", entity.ErrInvalidValue, field)
		}
	}, &view)

	return view, err
}

func (s *Service) SetQualifier(ctx context.Context, session *entity.Session, symbol, qualifier string, enabled bool) (*DraftView, error) {
	var view *DraftView
	err := s.withDraft(ctx, session, symbol, func(d entity.OrderDraft, m orderform.Market) (entity.OrderDraft, bool, error) {
		switch qualifier {
		case QualifierPostOnly:
			return orderform.SetPostOnly(d, enabled), true, nil
		case QualifierIOC:
			return orderform.SetImmediateOrCancel(d, enabled), true, nil
		case QualifierReduceOnly:
			return orderform.SetReduceOnly(d, m, enabled), true, nil
		default:
			return d, false, fmt.Errorf("%w: unknown qualifier %q", entity.ErrInvalidValue, qualifier)
		}
	}, &view)

	return view, err
}

// ResetDraft discards the session's draft for symbol.
func (s *Service) ResetDraft(ctx context.Context, session *entity.Session, symbol string) (*DraftView, error) {
	var view *DraftView
	err := s.withDraft(ctx, session, symbol, func(d entity.OrderDraft, _ orderform.Market) (entity.OrderDraft, bool, error) {
		return entity.NewOrderDraft(d.Symbol), true, nil
	}, &view)

	return view, err
}

// Submit sends the session's current draft. The draft is not locked while
// the order is in flight, so edits made meanwhile are kept; after a
// successful placement the priced fields of symbol's draft are cleared unless
// the session has switched instrument in the meantime.
func (s *Service) Submit(ctx context.Context, session *entity.Session, symbol string) (submission.Result, error) {
	if session == nil || session.ID == "" {
		return submission.Result{}, entity.ErrSessionRequired
	}
	ctx = notifier.WithSessionID(ctx, session.ID)

	var (
		draft      entity.OrderDraft
		instrument *entity.InstrumentDescriptor
	)
	err := s.withDraft(ctx, session, symbol, func(d entity.OrderDraft, m orderform.Market) (entity.OrderDraft, bool, error) {
		draft = d
		instrument = &m.Instrument
		return d, false, nil
	}, nil)
	if err != nil {
		return submission.Result{Draft: draft}, err
	}

	res, err := s.dispatcher.Submit(ctx, submission.Request{
		Key:        session.ID,
		Session:    session,
		Instrument: instrument,
		Draft:      draft,
		Book:       s.feed.Snapshot(symbol).Book(),
	})
	if res.Status != submission.StateSucceeded {
		return res, err
	}

	// the order is placed, the draft must be cleared even if the caller left
	cleared, ok, clearErr := s.clearPlacedDraft(context.WithoutCancel(ctx), session.ID, instrument.Symbol)
	if clearErr != nil {
		logrus.WithFields(logrus.Fields{
			"session_id": session.ID,
			"symbol":     instrument.Symbol,
			"txid":       res.TxID,
		}).Errorf("failed to clear draft after placement: %v", clearErr)
		return res, err
	}
	if !ok {
		cleared = draft.ClearPricedFields()
	}
	res.Draft = cleared

	return res, err
}

// clearPlacedDraft clears the priced fields of symbol's draft if the session
// still has symbol selected. A session that moved on to another instrument
// keeps its new draft untouched.
func (s *Service) clearPlacedDraft(ctx context.Context, sessionID, symbol string) (entity.OrderDraft, bool, error) {
	var (
		cleared entity.OrderDraft
		ok      bool
	)
	err := s.withLock(ctx, sessionID, func() error {
		selected, found, err := s.store.SelectedSymbol(ctx, sessionID)
		if err != nil {
			return err
		}
		if !found || selected != symbol {
			return nil
		}

		draft, found, err := s.store.Load(ctx, sessionID, symbol)
		if err != nil {
			return err
		}
		if !found {
			draft = entity.NewOrderDraft(symbol)
		}

		cleared = draft.ClearPricedFields()
		ok = true
		return s.store.Save(ctx, sessionID, cleared)
	})

	return cleared, ok, err
}

func (s *Service) ListSubmissions(ctx context.Context, session *entity.Session, limit uint64) ([]entity.OrderSubmission, error) {
	if session == nil || session.ID == "" {
		return nil, entity.ErrSessionRequired
	}
	if s.submissions == nil {
		return []entity.OrderSubmission{}, nil
	}

	return s.submissions.ListBySession(ctx, session.ID, limit)
}

type reducer func(d entity.OrderDraft, m orderform.Market) (next entity.OrderDraft, changed bool, err error)

// withDraft runs fn on the session's draft for symbol under the session
// lock and saves the result when it changed. Opening a symbol other than the
// selected one discards the previous instrument's draft.
func (s *Service) withDraft(ctx context.Context, session *entity.Session, symbol string, fn reducer, view **DraftView) error {
	if session == nil || session.ID == "" {
		return entity.ErrSessionRequired
	}

	instrument, err := s.instruments.GetBySymbol(ctx, symbol)
	if err != nil {
		return err
	}

	return s.withLock(ctx, session.ID, func() error {
		draft, err := s.openDraft(ctx, session.ID, instrument.Symbol)
		if err != nil {
			return err
		}

		market := orderform.Market{
			Instrument: *instrument,
			Prices:     s.feed.Snapshot(instrument.Symbol),
		}

		next, changed, err := fn(draft, market)
		if err != nil {
			return err
		}

		if changed {
			if err := s.store.Save(ctx, session.ID, next); err != nil {
				return err
			}
		}

		if view != nil {
			*view = s.view(session.ID, next, market)
		}

		return nil
	})
}

func (s *Service) openDraft(ctx context.Context, sessionID, symbol string) (entity.OrderDraft, error) {
	selected, ok, err := s.store.SelectedSymbol(ctx, sessionID)
	if err != nil {
		return entity.OrderDraft{}, err
	}

	if !ok || selected != symbol {
		if ok {
			if err := s.store.Delete(ctx, sessionID, selected); err != nil {
				return entity.OrderDraft{}, err
			}
		}
		if err := s.store.SetSelectedSymbol(ctx, sessionID, symbol); err != nil {
			return entity.OrderDraft{}, err
		}
	}

	draft, ok, err := s.store.Load(ctx, sessionID, symbol)
	if err != nil {
		return entity.OrderDraft{}, err
	}
	if !ok {
		draft = entity.NewOrderDraft(symbol)
	}

	return draft, nil
}

func (s *Service) view(sessionID string, d entity.OrderDraft, m orderform.Market) *DraftView {
	view := &DraftView{
		Draft:        d,
		Instrument:   m.Instrument,
		Prices:       m.Prices,
		Availability: orderform.QualifierAvailability(d, m.Instrument),
		State:        s.dispatcher.State(sessionID),
	}

	if price, ok := pricing.ResolveExecutionPrice(pricing.QuoteFromDraft(d, m.Prices.Book())); ok {
		view.ProjectedPrice = decimal.NewNullDecimal(price)
	}

	return view
}

func (s *Service) withLock(ctx context.Context, sessionID string, fn func() error) error {
	key := "order-entry:session:" + sessionID
	owner := uuid.NewString()

	deadline := time.Now().Add(lockWaitTimeout)
	for {
		acquired, err := s.store.AcquireLock(ctx, key, s.lockTTL, owner)
		if err != nil {
			return err
		}
		if acquired {
			break
		}
		if time.Now().After(deadline) {
			return entity.ErrDraftLocked
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}

	defer func() {
		if err := s.store.ReleaseLock(context.WithoutCancel(ctx), key, owner); err != nil {
			logrus.WithField("session_id", sessionID).Errorf("failed to release session lock: %v", err)
		}
	}()

	return fn()
}
