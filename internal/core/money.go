// Money parsing and arithmetic. Amounts are decimal values with two-place
// rounding at the points the domain requires it (installment splitting);
// intermediate arithmetic keeps full decimal precision.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a positive monetary amount in the tracker's single currency.
type Money struct {
	Amount decimal.Decimal
}

// NewMoney wraps a decimal amount.
func NewMoney(d decimal.Decimal) Money {
	return Money{Amount: d}
}

// MoneyFromFloat builds a Money from a float, rounded to two places.
// Intended for test fixtures and export boundaries, not for arithmetic.
func MoneyFromFloat(f float64) Money {
	return Money{Amount: decimal.NewFromFloat(f).Round(2)}
}

// ParseMoney converts a decimal string to Money. It accepts both dot
// (12.34) and comma (12,34) separators and rejects non-positive values.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	m := Money{Amount: d.Round(2)}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// Validate rejects zero and negative amounts.
func (m Money) Validate() error {
	if !m.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money {
	return Money{Amount: m.Amount.Add(o.Amount)}
}

func (m Money) Sub(o Money) Money {
	return Money{Amount: m.Amount.Sub(o.Amount)}
}

// SplitEven returns the per-installment amount for an n-way split:
// round(total/n, 2). Every installment carries the same rounded amount, so
// the sum of a series may drift from the original total by up to 0.01*n.
// The drift is deliberately not folded into the last installment; invoice
// totals are recomputed from the stored lines, never from the original
// purchase amount, so the books stay internally consistent.
func (m Money) SplitEven(n int) Money {
	return Money{Amount: m.Amount.Div(decimal.NewFromInt(int64(n))).Round(2)}
}

func (m Money) Equal(o Money) bool {
	return m.Amount.Equal(o.Amount)
}

func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// Float64 returns the amount for display/export purposes. Use decimal
// arithmetic for anything that feeds back into the books.
func (m Money) Float64() float64 {
	f, _ := m.Amount.Float64()
	return f
}

func (m Money) String() string {
	return m.Amount.StringFixed(2)
}
