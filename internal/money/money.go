// Package money keeps monetary amounts as fixed-point decimals.
// Amounts travel as strings with two fraction digits ("24.48"), the same
// shape Postgres NUMERIC columns are read back as.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const Zero = "0.00"

var (
	ErrInvalid  = errors.New("invalid amount")
	ErrNegative = errors.New("amount must be non-negative")
)

// Parse reads a non-negative amount.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalid
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	if d.IsNegative() {
		return decimal.Zero, ErrNegative
	}
	return d, nil
}

// ParseOrZero treats an empty string as zero.
func ParseOrZero(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return Parse(s)
}

func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// LineTotal is unit × quantity.
func LineTotal(unit decimal.Decimal, qty int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(qty)))
}

// SubtractFloor returns a − b clamped at zero.
func SubtractFloor(a, b decimal.Decimal) decimal.Decimal {
	r := a.Sub(b)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// Equal compares two formatted amounts numerically ("5" == "5.00").
func Equal(a, b string) bool {
	da, err := decimal.NewFromString(strings.TrimSpace(a))
	if err != nil {
		return false
	}
	db, err := decimal.NewFromString(strings.TrimSpace(b))
	if err != nil {
		return false
	}
	return da.Equal(db)
}
