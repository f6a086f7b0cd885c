package submission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/krobus00/order-entry/internal/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlacement struct {
	mu       sync.Mutex
	spot     []entity.SpotOrderRequest
	perp     []entity.PerpOrderRequest
	trigger  []entity.TriggerOrderRequest
	txID     string
	err      error
	block    chan struct{}
	started  chan struct{}
	once     sync.Once
	ctxErrAt error
}

func (f *fakePlacement) wait(ctx context.Context) {
	f.once.Do(func() {
		if f.started != nil {
			close(f.started)
		}
	})
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.ctxErrAt = ctx.Err()
	f.mu.Unlock()
}

func (f *fakePlacement) PlaceSpotOrder(ctx context.Context, req entity.SpotOrderRequest) (string, error) {
	f.wait(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spot = append(f.spot, req)
	return f.txID, f.err
}

func (f *fakePlacement) PlacePerpOrder(ctx context.Context, req entity.PerpOrderRequest) (string, error) {
	f.wait(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.perp = append(f.perp, req)
	return f.txID, f.err
}

func (f *fakePlacement) PlaceTriggerOrder(ctx context.Context, req entity.TriggerOrderRequest) (string, error) {
	f.wait(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trigger = append(f.trigger, req)
	return f.txID, f.err
}

func (f *fakePlacement) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.spot) + len(f.perp) + len(f.trigger)
}

type fakeSink struct {
	mu            sync.Mutex
	notifications []entity.Notification
}

func (f *fakeSink) Notify(_ context.Context, n entity.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, n)
}

type fakeRefresher struct {
	mu       sync.Mutex
	accounts []string
	fills    []string
}

func (f *fakeRefresher) RefreshAccount(_ context.Context, accountID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts = append(f.accounts, accountID)
}

func (f *fakeRefresher) RefreshFills(_ context.Context, symbol string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fills = append(f.fills, symbol)
}

type fakeJournal struct {
	records []*entity.OrderSubmission
	err     error
}

func (f *fakeJournal) Record(_ context.Context, s *entity.OrderSubmission) error {
	f.records = append(f.records, s)
	return f.err
}

type fixture struct {
	placement  *fakePlacement
	sink       *fakeSink
	refresher  *fakeRefresher
	journal    *fakeJournal
	dispatcher *Dispatcher
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		placement: &fakePlacement{txID: "tx-1"},
		sink:      &fakeSink{},
		refresher: &fakeRefresher{},
		journal:   &fakeJournal{},
		now:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	f.dispatcher = NewDispatcher(f.placement, f.sink, f.refresher,
		WithJournal(f.journal),
		WithClock(func() time.Time { return f.now }),
		WithIDGenerator(func() string { return "sub-1" }),
		WithTimeout(time.Second),
	)

	return f
}

func dec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func spotInstrument() *entity.InstrumentDescriptor {
	return &entity.InstrumentDescriptor{
		Symbol:       "SOLUSDC",
		Kind:         entity.InstrumentKindSpot,
		TickSize:     decimal.RequireFromString("0.01"),
		MinOrderSize: decimal.RequireFromString("0.001"),
	}
}

func perpInstrument() *entity.InstrumentDescriptor {
	i := entity.NewPerpetualInstrument("SOL-PERP", "SOL", "USDC", decimal.NewFromInt(100), decimal.NewFromInt(10), 9, 6)
	i.BidsRef = "bids-ref"
	i.AsksRef = "asks-ref"
	return &i
}

func session() *entity.Session {
	return &entity.Session{ID: "s-1", AccountID: "acc-1", Signer: "signer-1"}
}

func book() entity.BookTop {
	return entity.BookTop{
		BestBid: &entity.PriceLevel{Price: decimal.RequireFromString("99"), Size: decimal.NewFromInt(1)},
		BestAsk: &entity.PriceLevel{Price: decimal.RequireFromString("101"), Size: decimal.NewFromInt(1)},
	}
}

func limitDraft(symbol string) entity.OrderDraft {
	d := entity.NewOrderDraft(symbol)
	d.Price = dec("100")
	d.BaseSize = dec("2")
	d.QuoteSize = dec("200")
	d.PostOnly = true
	return d
}

func TestSubmit_ValidationNeverContactsVenue(t *testing.T) {
	noSize := limitDraft("SOLUSDC")
	noSize.BaseSize = decimal.NullDecimal{}

	noPrice := limitDraft("SOLUSDC")
	noPrice.Price = decimal.NullDecimal{}

	noTrigger := limitDraft("SOL-PERP")
	noTrigger.OrderType = entity.OrderTypeStopLimit

	tests := []struct {
		name      string
		draft     entity.OrderDraft
		wantErr   error
		wantTitle string
	}{
		{name: "missing size", draft: noSize, wantErr: entity.ErrMissingSize, wantTitle: "Missing size"},
		{name: "missing limit price", draft: noPrice, wantErr: entity.ErrMissingPrice, wantTitle: "Missing price"},
		{name: "missing trigger price", draft: noTrigger, wantErr: entity.ErrMissingTriggerPrice, wantTitle: "Missing trigger price"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			res, err := f.dispatcher.Submit(context.Background(), Request{
				Key:        "s-1:" + tt.draft.Symbol,
				Session:    session(),
				Instrument: perpInstrument(),
				Draft:      tt.draft,
				Book:       book(),
			})
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, f.placement.calls())
			assert.Equal(t, tt.draft, res.Draft)
			assert.Equal(t, StateIdle, res.Status)
			require.Len(t, f.sink.notifications, 1)
			assert.Equal(t, tt.wantTitle, f.sink.notifications[0].Title)
			assert.Equal(t, entity.NotificationTypeError, f.sink.notifications[0].Type)
			assert.Empty(t, f.refresher.accounts)
			assert.Empty(t, f.journal.records)
		})
	}
}

func TestSubmit_PrerequisiteMissingIsSilent(t *testing.T) {
	tests := []struct {
		name       string
		session    *entity.Session
		instrument *entity.InstrumentDescriptor
	}{
		{name: "no session", instrument: spotInstrument()},
		{name: "no signer", session: &entity.Session{ID: "s-1", AccountID: "acc-1"}, instrument: spotInstrument()},
		{name: "no account", session: &entity.Session{ID: "s-1", Signer: "signer-1"}, instrument: spotInstrument()},
		{name: "no instrument", session: session()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.dispatcher.Submit(context.Background(), Request{
				Key:        "k",
				Session:    tt.session,
				Instrument: tt.instrument,
				Draft:      limitDraft("SOLUSDC"),
			})
			require.ErrorIs(t, err, entity.ErrPrerequisiteMissing)
			assert.Equal(t, 0, f.placement.calls())
			assert.Empty(t, f.sink.notifications)
			assert.Empty(t, f.refresher.accounts)
		})
	}
}

func TestSubmit_PriceUnavailableBlocks(t *testing.T) {
	f := newFixture(t)
	d := limitDraft("SOLUSDC")
	d.OrderType = entity.OrderTypeMarket
	d.Price = decimal.NullDecimal{}

	res, err := f.dispatcher.Submit(context.Background(), Request{
		Key:        "k",
		Session:    session(),
		Instrument: spotInstrument(),
		Draft:      d,
		Book:       entity.BookTop{BestBid: book().BestBid},
	})
	require.ErrorIs(t, err, entity.ErrPriceUnavailable)
	assert.Equal(t, 0, f.placement.calls())
	assert.Equal(t, d, res.Draft)
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, "Price not available", res.Notifications[0].Title)
	assert.Equal(t, "Please try again", res.Notifications[0].Description)
	assert.Equal(t, entity.NotificationTypeWarning, res.Notifications[0].Type)
	assert.Equal(t, []string{"acc-1"}, f.refresher.accounts)
	assert.Equal(t, []string{"SOLUSDC"}, f.refresher.fills)
}

func TestSubmit_SpotSuccess(t *testing.T) {
	f := newFixture(t)
	d := limitDraft("SOLUSDC")
	d.Side = entity.OrderSideSell

	res, err := f.dispatcher.Submit(context.Background(), Request{
		Key:        "s-1:SOLUSDC",
		Session:    session(),
		Instrument: spotInstrument(),
		Draft:      d,
		Book:       book(),
	})
	require.NoError(t, err)

	require.Len(t, f.placement.spot, 1)
	req := f.placement.spot[0]
	assert.Equal(t, "acc-1", req.AccountID)
	assert.Equal(t, "signer-1", req.Signer)
	assert.Equal(t, "sub-1", req.SubmissionID)
	assert.Equal(t, entity.OrderSideSell, req.Side)
	assert.Equal(t, "100", req.Price.String())
	assert.Equal(t, "2", req.Size.String())
	assert.Equal(t, entity.OrderQualifierPostOnly, req.Qualifier)

	assert.Equal(t, StateSucceeded, res.Status)
	assert.Equal(t, "tx-1", res.TxID)
	assert.Equal(t, "SPOT", res.Protocol)
	assert.False(t, res.Draft.Price.Valid)
	assert.False(t, res.Draft.BaseSize.Valid)
	assert.False(t, res.Draft.QuoteSize.Valid)
	assert.Equal(t, d.Side, res.Draft.Side)
	assert.Equal(t, d.OrderType, res.Draft.OrderType)
	assert.Equal(t, d.PostOnly, res.Draft.PostOnly)

	require.Len(t, f.sink.notifications, 1)
	assert.Equal(t, entity.NotificationTypeSuccess, f.sink.notifications[0].Type)
	assert.Equal(t, "tx-1", f.sink.notifications[0].TxID)
	assert.Equal(t, []string{"acc-1"}, f.refresher.accounts)
	assert.Equal(t, []string{"SOLUSDC"}, f.refresher.fills)

	require.Len(t, f.journal.records, 1)
	assert.Equal(t, entity.SubmissionStatusSucceeded, f.journal.records[0].Status)
	assert.Equal(t, entity.PlacementProtocolSpot, f.journal.records[0].Protocol)
	assert.Equal(t, "s-1", f.journal.records[0].SessionID)
	assert.Equal(t, StateIdle, f.dispatcher.State("s-1:SOLUSDC"))
}

func TestSubmit_PerpMarketOrder(t *testing.T) {
	f := newFixture(t)
	d := entity.NewOrderDraft("SOL-PERP")
	d.OrderType = entity.OrderTypeMarket
	d.BaseSize = dec("1.5")
	d.ImmediateOrCancel = true
	d.ReduceOnly = true

	_, err := f.dispatcher.Submit(context.Background(), Request{
		Key:        "k",
		Session:    session(),
		Instrument: perpInstrument(),
		Draft:      d,
		Book:       book(),
	})
	require.NoError(t, err)

	require.Len(t, f.placement.perp, 1)
	req := f.placement.perp[0]
	assert.Equal(t, entity.OrderQualifierMarket, req.Qualifier)
	assert.Equal(t, "101", req.Price.String())
	assert.Equal(t, "asks-ref", req.BookSideRef)
	assert.True(t, req.ReduceOnly)
	assert.Equal(t, f.now, req.Timestamp)
	assert.Equal(t, entity.OrderQualifierMarket, f.journal.records[0].Qualifier)
}

func TestSubmit_PerpLimitSellUsesBids(t *testing.T) {
	f := newFixture(t)
	d := limitDraft("SOL-PERP")
	d.Side = entity.OrderSideSell
	d.PostOnly = false
	d.ImmediateOrCancel = true

	_, err := f.dispatcher.Submit(context.Background(), Request{
		Key:        "k",
		Session:    session(),
		Instrument: perpInstrument(),
		Draft:      d,
		Book:       book(),
	})
	require.NoError(t, err)

	require.Len(t, f.placement.perp, 1)
	assert.Equal(t, entity.OrderQualifierIOC, f.placement.perp[0].Qualifier)
	assert.Equal(t, "bids-ref", f.placement.perp[0].BookSideRef)
	assert.Equal(t, "100", f.placement.perp[0].Price.String())
}

func TestSubmit_TriggerOrder(t *testing.T) {
	f := newFixture(t)
	d := limitDraft("SOL-PERP")
	d.OrderType = entity.OrderTypeTakeProfitLimit
	d.Side = entity.OrderSideSell
	d.TriggerPrice = dec("120")
	d.TriggerCondition = entity.TriggerConditionAbove
	d.PostOnly = false

	_, err := f.dispatcher.Submit(context.Background(), Request{
		Key:        "k",
		Session:    session(),
		Instrument: perpInstrument(),
		Draft:      d,
		Book:       book(),
	})
	require.NoError(t, err)

	require.Len(t, f.placement.trigger, 1)
	req := f.placement.trigger[0]
	assert.Equal(t, entity.TriggerConditionAbove, req.TriggerCondition)
	assert.Equal(t, "120", req.TriggerPrice.String())
	assert.Equal(t, "100", req.Price.String())
	assert.Equal(t, entity.OrderQualifierLimit, req.Qualifier)
	assert.Empty(t, f.placement.perp)

	rec := f.journal.records[0]
	assert.Equal(t, entity.PlacementProtocolTrigger, rec.Protocol)
	assert.Equal(t, "ABOVE", rec.TriggerCondition.String)
	assert.Equal(t, "120", rec.TriggerPrice.Decimal.String())
}

func TestSubmit_RejectionKeepsDraft(t *testing.T) {
	f := newFixture(t)
	f.placement.txID = ""
	f.placement.err = &entity.PlacementError{Message: "insufficient collateral", TxID: "tx-failed"}
	d := limitDraft("SOLUSDC")

	res, err := f.dispatcher.Submit(context.Background(), Request{
		Key:        "k",
		Session:    session(),
		Instrument: spotInstrument(),
		Draft:      d,
		Book:       book(),
	})
	require.ErrorIs(t, err, entity.ErrSubmissionRejected)

	var placementErr *entity.PlacementError
	require.True(t, errors.As(err, &placementErr))

	assert.Equal(t, d, res.Draft)
	assert.Equal(t, StateFailed, res.Status)
	assert.Equal(t, "tx-failed", res.TxID)
	require.Len(t, f.sink.notifications, 1)
	assert.Equal(t, "insufficient collateral", f.sink.notifications[0].Description)
	assert.Equal(t, "tx-failed", f.sink.notifications[0].TxID)
	assert.Equal(t, []string{"acc-1"}, f.refresher.accounts)
	assert.Equal(t, []string{"SOLUSDC"}, f.refresher.fills)

	rec := f.journal.records[0]
	assert.Equal(t, entity.SubmissionStatusFailed, rec.Status)
	assert.Equal(t, "tx-failed", rec.TxID.String)
	assert.True(t, rec.ErrorMessage.Valid)
}

func TestSubmit_TransportErrorIsRejection(t *testing.T) {
	f := newFixture(t)
	f.placement.txID = ""
	f.placement.err = errors.New("connection reset")

	res, err := f.dispatcher.Submit(context.Background(), Request{
		Key:        "k",
		Session:    session(),
		Instrument: spotInstrument(),
		Draft:      limitDraft("SOLUSDC"),
		Book:       book(),
	})
	require.ErrorIs(t, err, entity.ErrSubmissionRejected)
	assert.Equal(t, StateFailed, res.Status)
	assert.Equal(t, "connection reset", res.Notifications[0].Description)
}

func TestSubmit_JournalFailureDoesNotSurface(t *testing.T) {
	f := newFixture(t)
	f.journal.err = errors.New("db down")

	res, err := f.dispatcher.Submit(context.Background(), Request{
		Key:        "k",
		Session:    session(),
		Instrument: spotInstrument(),
		Draft:      limitDraft("SOLUSDC"),
		Book:       book(),
	})
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, res.Status)
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, entity.NotificationTypeSuccess, res.Notifications[0].Type)
}

func TestSubmit_SpotTriggerNotSupported(t *testing.T) {
	f := newFixture(t)
	d := limitDraft("SOLUSDC")
	d.OrderType = entity.OrderTypeStopLimit
	d.TriggerPrice = dec("90")

	_, err := f.dispatcher.Submit(context.Background(), Request{
		Key:        "k",
		Session:    session(),
		Instrument: spotInstrument(),
		Draft:      d,
		Book:       book(),
	})
	require.ErrorIs(t, err, entity.ErrInvalidOrderType)
	assert.Equal(t, 0, f.placement.calls())
	assert.Equal(t, []string{"acc-1"}, f.refresher.accounts)
	assert.Equal(t, []string{"SOLUSDC"}, f.refresher.fills)
}

func TestSubmit_InFlightGuardAndNoCancellation(t *testing.T) {
	f := newFixture(t)
	f.placement.block = make(chan struct{})
	f.placement.started = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	req := Request{
		Key:        "s-1:SOLUSDC",
		Session:    session(),
		Instrument: spotInstrument(),
		Draft:      limitDraft("SOLUSDC"),
		Book:       book(),
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.dispatcher.Submit(ctx, req)
		done <- err
	}()

	<-f.placement.started
	assert.Equal(t, StateSubmitting, f.dispatcher.State(req.Key))

	_, err := f.dispatcher.Submit(context.Background(), req)
	require.ErrorIs(t, err, entity.ErrSubmissionInFlight)

	cancel()
	close(f.placement.block)

	require.NoError(t, <-done)
	assert.NoError(t, f.placement.ctxErrAt)
	assert.Equal(t, StateIdle, f.dispatcher.State(req.Key))

	_, err = f.dispatcher.Submit(context.Background(), req)
	assert.NoError(t, err)
}

func TestSubmit_GuardIsPerKey(t *testing.T) {
	f := newFixture(t)
	release, err := f.dispatcher.guard.Acquire(context.Background(), "s-1:SOLUSDC")
	require.NoError(t, err)
	defer release()

	_, err = f.dispatcher.Submit(context.Background(), Request{
		Key:        "s-2:SOLUSDC",
		Session:    session(),
		Instrument: spotInstrument(),
		Draft:      limitDraft("SOLUSDC"),
		Book:       book(),
	})
	assert.NoError(t, err)
}

func TestSelectSubmitter(t *testing.T) {
	placement := &fakePlacement{}
	tests := []struct {
		kind      entity.InstrumentKind
		orderType entity.OrderType
		want      entity.PlacementProtocol
		wantErr   error
	}{
		{entity.InstrumentKindSpot, entity.OrderTypeLimit, entity.PlacementProtocolSpot, nil},
		{entity.InstrumentKindSpot, entity.OrderTypeMarket, entity.PlacementProtocolSpot, nil},
		{entity.InstrumentKindSpot, entity.OrderTypeStopLoss, "", entity.ErrInvalidOrderType},
		{entity.InstrumentKindPerpetual, entity.OrderTypeLimit, entity.PlacementProtocolPerp, nil},
		{entity.InstrumentKindPerpetual, entity.OrderTypeMarket, entity.PlacementProtocolPerp, nil},
		{entity.InstrumentKindPerpetual, entity.OrderTypeStopLoss, entity.PlacementProtocolTrigger, nil},
		{entity.InstrumentKindPerpetual, entity.OrderTypeTakeProfitLimit, entity.PlacementProtocolTrigger, nil},
		{"OPTION", entity.OrderTypeLimit, "", entity.ErrInvalidInstrument},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind)+"_"+string(tt.orderType), func(t *testing.T) {
			got, err := SelectSubmitter(placement, tt.kind, tt.orderType)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Protocol())
		})
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "IDLE", StateIdle.String())
	assert.Equal(t, "SUBMITTING", StateSubmitting.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}
