// Package money holds monetary amounts as integer minor units. Conversions
// to and from major-unit decimals round half to even, exactly once.
package money

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is the only currency wallets are opened in for now.
const DefaultCurrency = "USD"

// minorExponent is the number of decimal places between major and minor units.
const minorExponent = 2

var ErrInvalidDecimal = errors.New("invalid decimal amount")

// Amount is a quantity of minor currency units (cents for USD).
type Amount int64

// Zero is the zero amount.
const Zero Amount = 0

// FromMajor converts a major-unit decimal (e.g. 12.345 USD) to minor units,
// rounding half to even: 12.345 -> 1234, 12.355 -> 1236.
func FromMajor(d decimal.Decimal) Amount {
	return Amount(d.Shift(minorExponent).RoundBank(0).IntPart())
}

// ParseMajor parses a major-unit decimal string.
func ParseMajor(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDecimal, s)
	}
	return FromMajor(d), nil
}

// Major returns the amount as a major-unit decimal. This direction is exact.
func (a Amount) Major() decimal.Decimal {
	return decimal.New(int64(a), -minorExponent)
}

// Int64 returns the raw minor-unit value.
func (a Amount) Int64() int64 {
	return int64(a)
}

// IsPositive reports whether a > 0.
func (a Amount) IsPositive() bool {
	return a > 0
}

// String renders the major-unit value with two decimals, e.g. "12.50".
func (a Amount) String() string {
	return a.Major().StringFixed(minorExponent)
}

// Value implements the driver.Valuer interface
func (a Amount) Value() (driver.Value, error) {
	return int64(a), nil
}

// Scan implements the sql.Scanner interface
func (a *Amount) Scan(value interface{}) error {
	switch v := value.(type) {
	case int64:
		*a = Amount(v)
	case int32:
		*a = Amount(v)
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return fmt.Errorf("scan amount: %w", err)
		}
		*a = Amount(n)
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("scan amount: %w", err)
		}
		*a = Amount(n)
	case nil:
		*a = 0
	default:
		return fmt.Errorf("scan amount: unsupported type %T", value)
	}
	return nil
}
