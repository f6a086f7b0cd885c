package entity

import "context"

type NotificationType string

const (
	NotificationTypeSuccess NotificationType = "success"
	NotificationTypeError   NotificationType = "error"
	NotificationTypeWarning NotificationType = "warning"
)

type Notification struct {
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Type        NotificationType `json:"type"`
	TxID        string           `json:"txid,omitempty"`
}

type NotificationEvent struct {
	RetryCount int          `json:"retry"`
	SessionID  string       `json:"session_id"`
	Data       Notification `json:"data"`
}

// NotificationSink receives user-visible messages. Fire-and-forget.
type NotificationSink interface {
	Notify(ctx context.Context, notification Notification)
}
