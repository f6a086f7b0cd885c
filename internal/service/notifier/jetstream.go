package notifier

import (
	"context"
	"time"

	"github.com/krobus00/order-entry/internal/constant"
	"github.com/krobus00/order-entry/internal/entity"
	"github.com/krobus00/order-entry/internal/util"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const (
	RefreshScopeAccount = "account"
	RefreshScopeFills   = "fills"
)

type publishFunc func(subject string, data any) error

func jetstreamPublisher(js nats.JetStreamContext) publishFunc {
	return func(subject string, data any) error {
		return util.PublishEvent(js, subject, data)
	}
}

// JetstreamEventInit prepares the stream the sink and refresher publish to.
func JetstreamEventInit(ctx context.Context, js nats.JetStreamContext) error {
	return util.EnsureStream(ctx, js, &nats.StreamConfig{
		Name:      constant.OrderEntryStreamName,
		Subjects:  []string{constant.OrderEntryStreamSubjectAll},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    time.Hour,
		Replicas:  1,
	})
}

// JetstreamSink publishes notifications for the session frontends.
type JetstreamSink struct {
	js      nats.JetStreamContext
	publish publishFunc
}

func NewJetstreamSink(js nats.JetStreamContext) *JetstreamSink {
	return &JetstreamSink{js: js, publish: jetstreamPublisher(js)}
}

func (s *JetstreamSink) JetstreamEventInit(ctx context.Context) error {
	return JetstreamEventInit(ctx, s.js)
}

func (s *JetstreamSink) Notify(ctx context.Context, n entity.Notification) {
	event := entity.NotificationEvent{
		SessionID: SessionIDFromContext(ctx),
		Data:      n,
	}

	if err := s.publish(constant.OrderEntryStreamSubjectNotification, event); err != nil {
		logrus.WithFields(logrus.Fields{
			"session_id": event.SessionID,
			"title":      n.Title,
		}).Errorf("failed to publish notification: %v", err)
	}
}

// JetstreamRefresher asks the account services to reload balances and fills.
type JetstreamRefresher struct {
	publish publishFunc
}

func NewJetstreamRefresher(js nats.JetStreamContext) *JetstreamRefresher {
	return &JetstreamRefresher{publish: jetstreamPublisher(js)}
}

func (r *JetstreamRefresher) RefreshAccount(_ context.Context, accountID string) {
	r.send(constant.OrderEntryStreamSubjectAccountRefresh, entity.AccountRefreshEvent{
		AccountID: accountID,
		Scope:     RefreshScopeAccount,
	})
}

func (r *JetstreamRefresher) RefreshFills(_ context.Context, symbol string) {
	r.send(constant.OrderEntryStreamSubjectFillsRefresh, entity.AccountRefreshEvent{
		Symbol: symbol,
		Scope:  RefreshScopeFills,
	})
}

func (r *JetstreamRefresher) send(subject string, event entity.AccountRefreshEvent) {
	if err := r.publish(subject, event); err != nil {
		logrus.WithFields(logrus.Fields{
			"subject":    subject,
			"account_id": event.AccountID,
			"symbol":     event.Symbol,
		}).Errorf("failed to publish refresh event: %v", err)
	}
}

// NoopRefresher is used when no message bus is configured.
type NoopRefresher struct{}

func (NoopRefresher) RefreshAccount(context.Context, string) {}

func (NoopRefresher) RefreshFills(context.Context, string) {}
