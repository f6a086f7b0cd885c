package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/krobus00/order-entry/internal/entity"
)

type OrderSubmissionRepository struct {
	db *sqlx.DB
}

func NewOrderSubmissionRepository(db *sqlx.DB) *OrderSubmissionRepository {
	return &OrderSubmissionRepository{db: db}
}

// Record stores a dispatched submission attempt.
func (r *OrderSubmissionRepository) Record(ctx context.Context, submission *entity.OrderSubmission) error {
	return r.Create(ctx, submission)
}

func (r *OrderSubmissionRepository) Create(ctx context.Context, submission *entity.OrderSubmission) error {
	now := time.Now().UTC()
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = now
	}
	if submission.UpdatedAt.IsZero() {
		submission.UpdatedAt = now
	}

	queryBuilder := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Insert(submission.TableName()).
		Columns(
			"submission_id",
			"session_id",
			"account_id",
			"symbol",
			"instrument_kind",
			"protocol",
			"side",
			"order_type",
			"price",
			"size",
			"trigger_price",
			"trigger_condition",
			"qualifier",
			"reduce_only",
			"status",
			"tx_id",
			"error_message",
			"sent_at",
			"completed_at",
			"created_at",
			"updated_at",
		).
		Values(
			submission.SubmissionID,
			submission.SessionID,
			submission.AccountID,
			submission.Symbol,
			submission.InstrumentKind,
			submission.Protocol,
			submission.Side,
			submission.OrderType,
			submission.Price,
			submission.Size,
			submission.TriggerPrice,
			submission.TriggerCondition,
			submission.Qualifier,
			submission.ReduceOnly,
			submission.Status,
			submission.TxID,
			submission.ErrorMessage,
			submission.SentAt,
			submission.CompletedAt,
			submission.CreatedAt,
			submission.UpdatedAt,
		).
		Suffix("RETURNING id")

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return err
	}

	var id string
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if err != nil {
		return err
	}

	submission.ID = id

	return nil
}

func (r *OrderSubmissionRepository) ListBySession(ctx context.Context, sessionID string, limit uint64) ([]entity.OrderSubmission, error) {
	if limit == 0 {
		limit = 50
	}

	query, args, err := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Select("*").
		From(entity.OrderSubmission{}.TableName()).
		Where(sq.Eq{"session_id": sessionID}).
		OrderBy("sent_at desc").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, err
	}

	var submissions []entity.OrderSubmission
	err = r.db.SelectContext(ctx, &submissions, query, args...)
	if err != nil {
		return nil, err
	}

	return submissions, nil
}
