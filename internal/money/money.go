// Package money holds the two-fraction-digit amount type used by every ledger row.
//
// Amounts are stored as integer cents so sums in SQL stay exact; shopspring/decimal
// is only used at the edges for parsing, formatting and ratios.
package money

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a signed money value in cents.
type Amount int64

var ErrInvalidAmount = errors.New("invalid amount")

var hundred = decimal.NewFromInt(100)

// Parse reads "12.34", "12,34", "12" or "-3.5" into cents. A value that needs more
// than two fraction digits is rejected, never rounded; "1.500" is fine, "1.005" is not.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if !d.Equal(d.Round(2)) {
		return 0, fmt.Errorf("%w: %q has more than two fraction digits", ErrInvalidAmount, s)
	}
	return FromDecimal(d)
}

// FromDecimal rounds d to cents, half away from zero. Ledger input goes through Parse.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	cents := d.Mul(hundred).Round(0)
	if !cents.IsInteger() || cents.Abs().GreaterThan(decimal.NewFromInt(1<<53)) {
		return 0, ErrInvalidAmount
	}
	return Amount(cents.IntPart()), nil
}

// FromFloat is used for values coming from external providers (OCR), never for ledger input.
func FromFloat(f float64) Amount {
	a, err := FromDecimal(decimal.NewFromFloat(f))
	if err != nil {
		return 0
	}
	return a
}

func FromCents(c int64) Amount { return Amount(c) }

func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -2)
}

func (a Amount) String() string {
	return a.Decimal().StringFixed(2)
}

func (a Amount) Abs() Amount {
	if a < 0 {
		return -a
	}
	return a
}

// Div returns a/n rounded to cents. n <= 0 yields zero.
func (a Amount) Div(n int64) Amount {
	if n <= 0 {
		return 0
	}
	q := a.Decimal().Div(decimal.NewFromInt(n))
	r, _ := FromDecimal(q)
	return r
}

// Percent returns part/whole*100 rounded to two places. ok is false when whole is zero.
func Percent(part, whole Amount) (float64, bool) {
	if whole == 0 {
		return 0, false
	}
	p := part.Decimal().Div(whole.Decimal()).Mul(hundred).Round(2)
	f, _ := p.Float64()
	return f, true
}

// Ratio returns num/den as a decimal. ok is false when den is zero.
func Ratio(num, den Amount) (decimal.Decimal, bool) {
	if den == 0 {
		return decimal.Zero, false
	}
	return decimal.NewFromInt(int64(num)).Div(decimal.NewFromInt(int64(den))), true
}

// MarshalJSON writes a JSON number with exactly two fraction digits.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts both a JSON number and a decimal string.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = 0
		return nil
	}
	s := string(bytes.Trim(b, `"`))
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
