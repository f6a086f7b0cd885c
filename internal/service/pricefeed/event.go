package pricefeed

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/krobus00/order-entry/internal/config"
	"github.com/krobus00/order-entry/internal/constant"
	"github.com/krobus00/order-entry/internal/entity"
	"github.com/krobus00/order-entry/internal/util"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// SnapshotPublisher fans snapshots out to gateways over JetStream.
type SnapshotPublisher struct {
	js nats.JetStreamContext
}

func NewSnapshotPublisher(js nats.JetStreamContext) *SnapshotPublisher {
	return &SnapshotPublisher{js: js}
}

func (p *SnapshotPublisher) JetstreamEventInit(ctx context.Context) error {
	return util.EnsureStream(ctx, p.js, &nats.StreamConfig{
		Name:              constant.PriceFeedStreamName,
		Subjects:          []string{constant.PriceFeedStreamSubjectAll},
		Storage:           nats.MemoryStorage,
		Retention:         nats.LimitsPolicy,
		MaxAge:            time.Minute,
		MaxMsgsPerSubject: 1, // only the latest snapshot per symbol matters
		Replicas:          1,
	})
}

func (p *SnapshotPublisher) Publish(_ context.Context, snapshot entity.PriceSnapshot) error {
	return util.PublishEvent(p.js, constant.GetPriceFeedSnapshotSubject(snapshot.Symbol), entity.PriceSnapshotEvent{
		Data: snapshot,
	})
}

// SnapshotSubscriber keeps a gateway's in-memory feed current. Every gateway
// replica needs every snapshot, so it uses an ephemeral push consumer
// instead of a queue group.
type SnapshotSubscriber struct {
	js   nats.JetStreamContext
	feed *Feed
	sub  *nats.Subscription
}

func NewSnapshotSubscriber(js nats.JetStreamContext, feed *Feed) *SnapshotSubscriber {
	return &SnapshotSubscriber{js: js, feed: feed}
}

func (s *SnapshotSubscriber) JetstreamEventSubscribe(ctx context.Context) error {
	if err := NewSnapshotPublisher(s.js).JetstreamEventInit(ctx); err != nil {
		logrus.Error(err)
		return err
	}

	sub, err := s.js.Subscribe(
		constant.PriceFeedStreamSubjectAll,
		func(msg *nats.Msg) {
			err := util.ProcessWithTimeout(handlerTimeout(), msg, s.handleSnapshotEvent)
			if err != nil {
				logrus.Errorf("error processing message: %v", err)
			}

			if err := msg.Ack(); err != nil {
				logrus.Errorf("failed to acknowledge message: %v", err)
			}
		},
		nats.ManualAck(),
		nats.DeliverLastPerSubject(),
	)
	if err != nil {
		return err
	}

	s.sub = sub
	return nil
}

func (s *SnapshotSubscriber) handleSnapshotEvent(_ context.Context, msg *nats.Msg) error {
	var event entity.PriceSnapshotEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return err
	}
	if event.Data.Symbol == "" {
		return errors.New("price snapshot event without symbol")
	}

	s.feed.Replace(event.Data)
	return nil
}

func (s *SnapshotSubscriber) Close() error {
	if s.sub == nil {
		return nil
	}

	return s.sub.Unsubscribe()
}

func handlerTimeout() time.Duration {
	if config.Env != nil {
		if timeout := config.Env.NatsJetstream.TimeoutHandler["price_snapshot"]; timeout > 0 {
			return timeout
		}
	}

	return 5 * time.Second
}
