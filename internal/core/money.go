// Package core provides money parsing and handling utilities.
//
// Money is a signed decimal amount backed by shopspring/decimal so that balance
// arithmetic stays exact. Amounts are never converted to float64 for storage.
package core

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Money is a signed decimal amount. The zero value is 0.
type Money struct {
	value decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{}

// Limits match the NUMERIC(19,4) columns so every backend stores the
// same value that was applied to the balance.
const (
	MaxScale     = 4
	maxIntDigits = 15
)

// NewMoney builds a Money from a float literal. Prefer ParseMoney for user input.
func NewMoney(f float64) Money {
	return Money{value: decimal.NewFromFloat(f)}
}

// ParseMoney converts a decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional leading sign. Exponents and thousands separators are rejected, as
// are more than MaxScale fractional digits or more than 15 integer digits.
//
// Examples:
//
//	ParseMoney("12.34") -> 12.34, nil
//	ParseMoney("12,34") -> 12.34, nil
//	ParseMoney("-20")   -> -20, nil
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, ErrInvalidAmount
	}
	s = strings.Replace(s, ",", ".", 1)
	body := strings.TrimLeft(s, "+-")
	if len(s)-len(body) > 1 || body == "" || strings.Count(body, ".") > 1 {
		return Zero, ErrInvalidAmount
	}
	for _, r := range body {
		if (r < '0' || r > '9') && r != '.' {
			return Zero, ErrInvalidAmount
		}
	}
	intPart, frac, _ := strings.Cut(body, ".")
	if len(frac) > MaxScale || len(strings.TrimLeft(intPart, "0")) > maxIntDigits {
		return Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, ErrInvalidAmount
	}
	return Money{value: d}, nil
}

// MustMoney is ParseMoney for literals; it panics on malformed input.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(fmt.Sprintf("core: invalid money literal %q", s))
	}
	return m
}

// Decimal exposes the underlying decimal value.
func (m Money) Decimal() decimal.Decimal { return m.value }

func (m Money) Add(n Money) Money        { return Money{value: m.value.Add(n.value)} }
func (m Money) Sub(n Money) Money        { return Money{value: m.value.Sub(n.value)} }
func (m Money) Neg() Money               { return Money{value: m.value.Neg()} }
func (m Money) Cmp(n Money) int          { return m.value.Cmp(n.value) }
func (m Money) Equal(n Money) bool       { return m.value.Equal(n.value) }
func (m Money) LessThan(n Money) bool    { return m.value.LessThan(n.value) }
func (m Money) GreaterThan(n Money) bool { return m.value.GreaterThan(n.value) }
func (m Money) IsZero() bool             { return m.value.IsZero() }
func (m Money) IsNegative() bool         { return m.value.IsNegative() }
func (m Money) IsPositive() bool         { return m.value.IsPositive() }

// String renders the amount with two decimal places.
func (m Money) String() string {
	return m.value.StringFixed(2)
}

// ValidatePositive returns ErrInvalidAmount unless the amount is strictly positive.
func (m Money) ValidatePositive() error {
	if !m.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// Format renders the amount in the given ISO currency for display purposes.
// Unknown currency codes fall back to "<amount> <code>".
func (m Money) Format(code string) string {
	cur := money.GetCurrency(code)
	if cur == nil {
		return strings.TrimSpace(m.String() + " " + code)
	}
	minor := m.value.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, cur.Code).Display()
}

// MarshalJSON encodes the amount as a JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.value.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string, both under
// the ParseMoney rules. null leaves the zero amount.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*m = Zero
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Scan implements sql.Scanner.
func (m *Money) Scan(src any) error {
	return m.value.Scan(src)
}

// Value implements driver.Valuer. Amounts are persisted as exact decimal text.
func (m Money) Value() (driver.Value, error) {
	return m.value.String(), nil
}
