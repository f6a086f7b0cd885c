package util

import (
	"fmt"
	"strings"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

const (
	maxDecimalScale  = 18
	maxIntegerDigits = 24
	maxDecimalDigits = 40
)

// ParseOptionalDecimal turns user input into a decimal-or-empty value. Blank
// and null input is empty; negative values and values outside the supported
// precision are rejected.
func ParseOptionalDecimal(raw null.String) (decimal.NullDecimal, error) {
	value := strings.TrimSpace(raw.ValueOrZero())
	if value == "" {
		return decimal.NullDecimal{}, nil
	}

	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("parse decimal %q: %w", value, err)
	}
	if d.IsNegative() {
		return decimal.NullDecimal{}, fmt.Errorf("negative value %q", value)
	}
	if err := checkPrecision(d); err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("value %q: %w", value, err)
	}

	return decimal.NewNullDecimal(d), nil
}

func checkPrecision(d decimal.Decimal) error {
	exp := int64(d.Exponent())
	if exp < -maxDecimalScale {
		return fmt.Errorf("more than %d decimal places", maxDecimalScale)
	}
	if exp > maxIntegerDigits {
		return fmt.Errorf("more than %d integer digits", maxIntegerDigits)
	}

	digits := int64(d.NumDigits())
	if digits > maxDecimalDigits {
		return fmt.Errorf("more than %d significant digits", maxDecimalDigits)
	}
	if !d.IsZero() && digits+exp > maxIntegerDigits {
		return fmt.Errorf("more than %d integer digits", maxIntegerDigits)
	}

	return nil
}

// FormatOptionalDecimal renders a decimal-or-empty value for responses.
func FormatOptionalDecimal(d decimal.NullDecimal) null.String {
	if !d.Valid {
		return null.String{}
	}

	return null.StringFrom(d.Decimal.String())
}
