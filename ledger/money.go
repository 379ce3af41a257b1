/*
money.go - Fixed-point monetary amounts tagged with a currency

PURPOSE:
  Every balance and every ledger mutation in the system is expressed as a
  Money value: a two-decimal-place amount plus a currency code. All
  arithmetic routes through this type so that currency can never be
  silently reinterpreted.

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Currency safety: Operations between mismatched currencies fail with
     ErrCurrencyMismatch instead of producing a nonsense amount
  3. No conversion: This is a single-currency deployment; there is no
     exchange-rate logic anywhere

USAGE:
  price := ledger.NewMoney(2.50, "GBP")
  rest, err := balance.Sub(price)

SEE ALSO:
  - engine.go: All balance arithmetic goes through Money
  - config.go: The deployment's default currency
*/
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Amount + currency
// =============================================================================

type Money struct {
	Amount   decimal.Decimal
	Currency string
}

// NewMoney builds a Money from a float, rounded to two decimal places.
func NewMoney(value float64, currency string) Money {
	return Money{Amount: decimal.NewFromFloat(value).Round(2), Currency: currency}
}

// NewMoneyFromString builds a Money from a decimal string ("2.50").
func NewMoneyFromString(value, currency string) (Money, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Money{}, fmt.Errorf("invalid money amount %q: %w", value, err)
	}
	return Money{Amount: d.Round(2), Currency: currency}, nil
}

// Zero returns the zero value in the given currency.
func Zero(currency string) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

// Add returns m + other. Fails with ErrCurrencyMismatch on mixed currencies.
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

// Sub returns m - other. Fails with ErrCurrencyMismatch on mixed currencies.
// The result may be negative; negative values are intermediate only and
// must never be persisted as a balance.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}, nil
}

// Cmp compares m against other: -1 if m < other, 0 if equal, +1 if m > other.
func (m Money) Cmp(other Money) (int, error) {
	if err := m.sameCurrency(other); err != nil {
		return 0, err
	}
	return m.Amount.Cmp(other.Amount), nil
}

// GreaterThan reports m > other.
func (m Money) GreaterThan(other Money) (bool, error) {
	c, err := m.Cmp(other)
	return c > 0, err
}

// Min returns the smaller of m and other.
func (m Money) Min(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	if m.Amount.LessThan(other.Amount) {
		return m, nil
	}
	return other, nil
}

func (m Money) IsZero() bool       { return m.Amount.IsZero() }
func (m Money) IsNegative() bool   { return m.Amount.IsNegative() }
func (m Money) IsPositive() bool   { return m.Amount.IsPositive() }
func (m Money) Equal(o Money) bool { return m.Currency == o.Currency && m.Amount.Equal(o.Amount) }

func (m Money) String() string {
	return m.Amount.StringFixed(2) + " " + m.Currency
}

func (m Money) sameCurrency(other Money) error {
	if m.Currency != other.Currency {
		return &CurrencyMismatchError{Left: m.Currency, Right: other.Currency}
	}
	return nil
}
