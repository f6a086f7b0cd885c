// Package notifier delivers user-visible notifications and account refresh
// requests raised by order submission.
package notifier

import (
	"context"

	"github.com/krobus00/order-entry/internal/entity"
	"github.com/sirupsen/logrus"
)

// LogSink writes notifications to the service log.
type LogSink struct{}

func NewLogSink() LogSink {
	return LogSink{}
}

func (LogSink) Notify(ctx context.Context, n entity.Notification) {
	logger := logrus.WithFields(logrus.Fields{
		"session_id":  SessionIDFromContext(ctx),
		"title":       n.Title,
		"description": n.Description,
		"txid":        n.TxID,
	})

	switch n.Type {
	case entity.NotificationTypeError:
		logger.Error("notification")
	case entity.NotificationTypeWarning:
		logger.Warn("notification")
	default:
		logger.Info("notification")
	}
}

// MultiSink fans a notification out to every sink in order.
type MultiSink []entity.NotificationSink

func (m MultiSink) Notify(ctx context.Context, n entity.Notification) {
	for _, sink := range m {
		if sink != nil {
			sink.Notify(ctx, n)
		}
	}
}
