package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/krobus00/order-entry/internal/entity"
)

var instrumentColumns = []string{
	"id",
	"symbol",
	"base_symbol",
	"quote_symbol",
	"feed_symbol",
	"kind",
	"tick_size",
	"min_order_size",
	"base_decimals",
	"quote_decimals",
	"base_lot_size",
	"quote_lot_size",
	"bids_ref",
	"asks_ref",
	"created_at",
	"updated_at",
}

// InstrumentRepository is the instrument registry. Instruments never change
// while selected, so lookups are cached for the life of the process.
type InstrumentRepository struct {
	db *sqlx.DB

	mu    sync.RWMutex
	cache map[string]entity.InstrumentDescriptor
}

func NewInstrumentRepository(db *sqlx.DB) *InstrumentRepository {
	return &InstrumentRepository{
		db:    db,
		cache: make(map[string]entity.InstrumentDescriptor),
	}
}

func (r *InstrumentRepository) GetBySymbol(ctx context.Context, symbol string) (*entity.InstrumentDescriptor, error) {
	r.mu.RLock()
	cached, ok := r.cache[symbol]
	r.mu.RUnlock()
	if ok {
		return &cached, nil
	}

	query, args, err := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Select(instrumentColumns...).
		From(entity.InstrumentDescriptor{}.TableName()).
		Where(sq.Eq{"symbol": symbol}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}

	var instrument entity.InstrumentDescriptor
	err = r.db.GetContext(ctx, &instrument, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", entity.ErrInstrumentNotFound, symbol)
	}
	if err != nil {
		return nil, err
	}

	instrument = instrument.WithDerivedSizes()
	if err := instrument.Validate(); err != nil {
		return nil, fmt.Errorf("instrument %s: %w", symbol, err)
	}

	r.mu.Lock()
	r.cache[symbol] = instrument
	r.mu.Unlock()

	return &instrument, nil
}

// ListWithFeed returns instruments that have a price stream. An empty symbols
// list means all of them.
func (r *InstrumentRepository) ListWithFeed(ctx context.Context, symbols []string) ([]entity.InstrumentDescriptor, error) {
	queryBuilder := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Select(instrumentColumns...).
		From(entity.InstrumentDescriptor{}.TableName()).
		Where(sq.NotEq{"feed_symbol": ""}).
		OrderBy("symbol asc")
	if len(symbols) > 0 {
		queryBuilder = queryBuilder.Where(sq.Eq{"symbol": symbols})
	}

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, err
	}

	var instruments []entity.InstrumentDescriptor
	err = r.db.SelectContext(ctx, &instruments, query, args...)
	if err != nil {
		return nil, err
	}

	for i := range instruments {
		instruments[i] = instruments[i].WithDerivedSizes()
	}

	return instruments, nil
}
