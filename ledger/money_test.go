package ledger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func gbp(t *testing.T, value string) Money {
	t.Helper()
	m, err := NewMoneyFromString(value, "GBP")
	require.NoError(t, err)
	return m
}

func usd(t *testing.T, value string) Money {
	t.Helper()
	m, err := NewMoneyFromString(value, "USD")
	require.NoError(t, err)
	return m
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

func TestNewMoney_RoundsToTwoDecimalPlaces(t *testing.T) {
	m := NewMoney(2.345, "GBP")
	assert.Equal(t, "2.35", m.Amount.StringFixed(2))

	m = NewMoney(2.344, "GBP")
	assert.Equal(t, "2.34", m.Amount.StringFixed(2))
}

func TestNewMoneyFromString_RejectsGarbage(t *testing.T) {
	_, err := NewMoneyFromString("two pounds", "GBP")
	assert.Error(t, err)
}

func TestNewMoney_NoFloatDrift(t *testing.T) {
	// GIVEN: 0.1 + 0.2, the classic binary float trap
	a := gbp(t, "0.10")
	b := gbp(t, "0.20")

	// WHEN: adding them
	sum, err := a.Add(b)
	require.NoError(t, err)

	// THEN: the result is exactly 0.30
	assert.True(t, sum.Equal(gbp(t, "0.30")))
}

// =============================================================================
// ARITHMETIC
// =============================================================================

func TestMoney_AddSub(t *testing.T) {
	sum, err := gbp(t, "2.30").Add(gbp(t, "5.00"))
	require.NoError(t, err)
	assert.Equal(t, "7.30 GBP", sum.String())

	diff, err := gbp(t, "7.30").Sub(gbp(t, "2.30"))
	require.NoError(t, err)
	assert.Equal(t, "5.00 GBP", diff.String())
}

func TestMoney_SubCanGoNegative(t *testing.T) {
	diff, err := gbp(t, "1.00").Sub(gbp(t, "2.50"))
	require.NoError(t, err)
	assert.True(t, diff.IsNegative())
}

func TestMoney_Min(t *testing.T) {
	m, err := gbp(t, "5.00").Min(gbp(t, "6.00"))
	require.NoError(t, err)
	assert.True(t, m.Equal(gbp(t, "5.00")))

	m, err = gbp(t, "5.00").Min(gbp(t, "2.00"))
	require.NoError(t, err)
	assert.True(t, m.Equal(gbp(t, "2.00")))
}

func TestMoney_Predicates(t *testing.T) {
	assert.True(t, Zero("GBP").IsZero())
	assert.False(t, Zero("GBP").IsPositive())
	assert.True(t, gbp(t, "0.01").IsPositive())
	assert.True(t, gbp(t, "-0.01").IsNegative())

	greater, err := gbp(t, "5.00").GreaterThan(gbp(t, "4.99"))
	require.NoError(t, err)
	assert.True(t, greater)
}

// =============================================================================
// CURRENCY SAFETY
// =============================================================================

func TestMoney_MixedCurrencyFails(t *testing.T) {
	// GIVEN: amounts in different currencies
	// WHEN: combining them in any way
	// THEN: every operation fails with ErrCurrencyMismatch

	a := gbp(t, "1.00")
	b := usd(t, "1.00")

	_, err := a.Add(b)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = a.Sub(b)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = a.Min(b)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	var mismatch *CurrencyMismatchError
	_, err = a.Cmp(b)
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "GBP", mismatch.Left)
	assert.Equal(t, "USD", mismatch.Right)
}
