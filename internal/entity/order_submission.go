package entity

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type SubmissionStatus string

const (
	SubmissionStatusSucceeded SubmissionStatus = "SUCCEEDED"
	SubmissionStatusFailed    SubmissionStatus = "FAILED"
)

// OrderSubmission is one dispatched attempt, kept as an audit trail.
type OrderSubmission struct {
	ID               string              `db:"id" json:"id"`
	SubmissionID     string              `db:"submission_id" json:"submission_id"`
	SessionID        string              `db:"session_id" json:"session_id"`
	AccountID        string              `db:"account_id" json:"account_id"`
	Symbol           string              `db:"symbol" json:"symbol"`
	InstrumentKind   InstrumentKind      `db:"instrument_kind" json:"instrument_kind"`
	Protocol         PlacementProtocol   `db:"protocol" json:"protocol"`
	Side             OrderSide           `db:"side" json:"side"`
	OrderType        OrderType           `db:"order_type" json:"order_type"`
	Price            decimal.Decimal     `db:"price" json:"price"`
	Size             decimal.Decimal     `db:"size" json:"size"`
	TriggerPrice     decimal.NullDecimal `db:"trigger_price" json:"trigger_price"`
	TriggerCondition sql.NullString      `db:"trigger_condition" json:"trigger_condition"`
	Qualifier        OrderQualifier      `db:"qualifier" json:"qualifier"`
	ReduceOnly       bool                `db:"reduce_only" json:"reduce_only"`
	Status           SubmissionStatus    `db:"status" json:"status"`
	TxID             sql.NullString      `db:"tx_id" json:"tx_id"`
	ErrorMessage     sql.NullString      `db:"error_message" json:"error_message"`
	SentAt           time.Time           `db:"sent_at" json:"sent_at"`
	CompletedAt      sql.NullTime        `db:"completed_at" json:"completed_at"`
	CreatedAt        time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time           `db:"updated_at" json:"updated_at"`
}

func (o OrderSubmission) TableName() string {
	return "order_submissions"
}
