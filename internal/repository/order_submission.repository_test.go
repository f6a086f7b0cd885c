package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/krobus00/order-entry/internal/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderSubmissionRepository_Record(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderSubmissionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO order_submissions")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("42"))

	submission := &entity.OrderSubmission{
		SubmissionID:   "sub-1",
		SessionID:      "s-1",
		AccountID:      "acc-1",
		Symbol:         "SOL-PERP",
		InstrumentKind: entity.InstrumentKindPerpetual,
		Protocol:       entity.PlacementProtocolPerp,
		Side:           entity.OrderSideBuy,
		OrderType:      entity.OrderTypeLimit,
		Price:          decimal.NewFromInt(100),
		Size:           decimal.NewFromInt(2),
		Qualifier:      entity.OrderQualifierLimit,
		Status:         entity.SubmissionStatusSucceeded,
		TxID:           sql.NullString{String: "tx-1", Valid: true},
		SentAt:         time.Now(),
	}

	require.NoError(t, repo.Record(context.Background(), submission))
	assert.Equal(t, "42", submission.ID)
	assert.False(t, submission.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderSubmissionRepository_ListBySession(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderSubmissionRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM order_submissions WHERE session_id = $1 ORDER BY sent_at desc LIMIT 50")).
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "submission_id", "session_id", "symbol", "side", "price", "size", "status", "sent_at"}).
			AddRow("42", "sub-1", "s-1", "SOL-PERP", "BUY", "100", "2", "SUCCEEDED", now))

	got, err := repo.ListBySession(context.Background(), "s-1", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "sub-1", got[0].SubmissionID)
	assert.Equal(t, "100", got[0].Price.String())
	assert.Equal(t, entity.SubmissionStatusSucceeded, got[0].Status)
}
