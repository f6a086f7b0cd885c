package constant

import (
	"fmt"
	"strings"
)

const (
	PriceFeedStreamName       = "price_feed"
	PriceFeedStreamSubjectAll = "price_feed.snapshot.*"

	OrderEntryStreamName                  = "order_entry"
	OrderEntryStreamSubjectAll            = "order_entry.*"
	OrderEntryStreamSubjectNotification   = "order_entry.notification"
	OrderEntryStreamSubjectAccountRefresh = "order_entry.account_refresh"
	OrderEntryStreamSubjectFillsRefresh   = "order_entry.fills_refresh"
)

var subjectTokenReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")

func GetPriceFeedSnapshotSubject(symbol string) string {
	return fmt.Sprintf("price_feed.snapshot.%s", subjectTokenReplacer.Replace(symbol))
}
