package entity

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type InstrumentKind string

const (
	InstrumentKindSpot      InstrumentKind = "SPOT"
	InstrumentKindPerpetual InstrumentKind = "PERPETUAL"
)

func (k InstrumentKind) Valid() bool {
	switch k {
	case InstrumentKindSpot, InstrumentKindPerpetual:
		return true
	default:
		return false
	}
}

// InstrumentDescriptor holds the read-only facts about a tradable market.
// FeedSymbol is the name the price stream uses for it, e.g. "solusdt".
// BaseLotSize/QuoteLotSize are only set for perpetual markets, where the
// minimum order size and tick size are derived from them.
type InstrumentDescriptor struct {
	ID            string              `db:"id" json:"id"`
	Symbol        string              `db:"symbol" json:"symbol"`
	BaseSymbol    string              `db:"base_symbol" json:"base_symbol"`
	QuoteSymbol   string              `db:"quote_symbol" json:"quote_symbol"`
	FeedSymbol    string              `db:"feed_symbol" json:"feed_symbol"`
	Kind          InstrumentKind      `db:"kind" json:"kind"`
	TickSize      decimal.Decimal     `db:"tick_size" json:"tick_size"`
	MinOrderSize  decimal.Decimal     `db:"min_order_size" json:"min_order_size"`
	BaseDecimals  int32               `db:"base_decimals" json:"base_decimals"`
	QuoteDecimals int32               `db:"quote_decimals" json:"quote_decimals"`
	BaseLotSize   decimal.NullDecimal `db:"base_lot_size" json:"base_lot_size"`
	QuoteLotSize  decimal.NullDecimal `db:"quote_lot_size" json:"quote_lot_size"`
	BidsRef       string              `db:"bids_ref" json:"bids_ref"`
	AsksRef       string              `db:"asks_ref" json:"asks_ref"`
	CreatedAt     time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time           `db:"updated_at" json:"updated_at"`
}

func (i InstrumentDescriptor) TableName() string {
	return "instruments"
}

// NewPerpetualInstrument derives min order size and tick size from the
// market's lot sizes and token decimals.
func NewPerpetualInstrument(symbol, baseSymbol, quoteSymbol string, baseLotSize, quoteLotSize decimal.Decimal, baseDecimals, quoteDecimals int32) InstrumentDescriptor {
	instrument := InstrumentDescriptor{
		Symbol:        symbol,
		BaseSymbol:    baseSymbol,
		QuoteSymbol:   quoteSymbol,
		Kind:          InstrumentKindPerpetual,
		BaseDecimals:  baseDecimals,
		QuoteDecimals: quoteDecimals,
		BaseLotSize:   decimal.NewNullDecimal(baseLotSize),
		QuoteLotSize:  decimal.NewNullDecimal(quoteLotSize),
	}

	return instrument.WithDerivedSizes()
}

// WithDerivedSizes fills MinOrderSize and TickSize from the lot sizes when
// they are not stored explicitly.
func (i InstrumentDescriptor) WithDerivedSizes() InstrumentDescriptor {
	if i.Kind != InstrumentKindPerpetual || !i.BaseLotSize.Valid || i.BaseLotSize.Decimal.IsZero() {
		return i
	}

	if !i.MinOrderSize.IsPositive() {
		i.MinOrderSize = i.BaseLotSize.Decimal.Shift(-i.BaseDecimals)
	}

	if !i.TickSize.IsPositive() && i.QuoteLotSize.Valid {
		i.TickSize = i.QuoteLotSize.Decimal.
			Div(i.BaseLotSize.Decimal).
			Shift(i.BaseDecimals - i.QuoteDecimals)
	}

	return i
}

func (i InstrumentDescriptor) Validate() error {
	if strings.TrimSpace(i.Symbol) == "" || !i.Kind.Valid() {
		return ErrInvalidInstrument
	}
	if !i.TickSize.IsPositive() || !i.MinOrderSize.IsPositive() {
		return ErrInvalidInstrument
	}
	if i.BaseDecimals < 0 || i.QuoteDecimals < 0 {
		return ErrInvalidInstrument
	}

	return nil
}

// SizeDecimalCount is the number of fractional digits in MinOrderSize.
func (i InstrumentDescriptor) SizeDecimalCount() int32 {
	return decimalCount(i.MinOrderSize)
}

func (i InstrumentDescriptor) PriceDecimalCount() int32 {
	return decimalCount(i.TickSize)
}

// BookSideRef returns the book side the venue needs for settlement
// bookkeeping: asks for a buy, bids for a sell.
func (i InstrumentDescriptor) BookSideRef(side OrderSide) string {
	if side == OrderSideBuy {
		return i.AsksRef
	}

	return i.BidsRef
}

func decimalCount(d decimal.Decimal) int32 {
	raw := d.String()
	idx := strings.IndexByte(raw, '.')
	if idx == -1 {
		return 0
	}

	return int32(len(raw) - idx - 1)
}

type InstrumentRegistry interface {
	GetBySymbol(ctx context.Context, symbol string) (*InstrumentDescriptor, error)
}
