package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func testEngine() *Engine {
	return &Engine{
		Currency: "GBP",
		Now:      func() time.Time { return time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC) },
	}
}

func testAccount(t *testing.T, cash, voucher string) CashAccount {
	return CashAccount{
		CustomerID:   "cust-1",
		CashValue:    gbp(t, cash),
		VoucherValue: gbp(t, voucher),
	}
}

func sumLinks(t *testing.T, links []VoucherLink) Money {
	t.Helper()
	total, err := SumLinkValues(links, "GBP")
	require.NoError(t, err)
	return total
}

// =============================================================================
// APPLY ENTITLEMENTS
// =============================================================================

func TestApplyEntitlements_CreditsElapsedPeriods(t *testing.T) {
	// GIVEN: an empty daily link last applied yesterday
	engine := testEngine()
	today := NewDate(2026, time.March, 10)
	account := testAccount(t, "4.00", "0.00")
	links := []VoucherLink{
		link("lunch", gbp(t, "0.00"), today.AddDays(-1), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	}

	// WHEN: entitlements apply
	result, err := engine.ApplyEntitlements(account, links, testCatalog(t), today)
	require.NoError(t, err)

	// THEN: the voucher balance is the catalog value, cash untouched,
	// one credit entry for the delta
	assert.True(t, result.Account.VoucherValue.Equal(gbp(t, "2.30")))
	assert.True(t, result.Account.CashValue.Equal(gbp(t, "4.00")))
	assert.Equal(t, 1, result.Applied)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, EntryCredit, result.Entries[0].Type)
	assert.True(t, result.Entries[0].VoucherAmount.Equal(gbp(t, "2.30")))
	assert.True(t, result.Entries[0].CashAmount.IsZero())
}

func TestApplyEntitlements_IdempotentWithinPeriod(t *testing.T) {
	// GIVEN: entitlements already applied today
	engine := testEngine()
	today := NewDate(2026, time.March, 10)
	account := testAccount(t, "0.00", "0.00")
	links := []VoucherLink{
		link("lunch", gbp(t, "0.00"), today.AddDays(-1), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	}

	first, err := engine.ApplyEntitlements(account, links, testCatalog(t), today)
	require.NoError(t, err)

	// WHEN: the same day is applied again
	second, err := engine.ApplyEntitlements(first.Account, first.Links, testCatalog(t), today)
	require.NoError(t, err)

	// THEN: nothing resets and no entry is logged
	assert.Equal(t, 0, second.Applied)
	assert.Empty(t, second.Entries)
	assert.True(t, second.Account.VoucherValue.Equal(first.Account.VoucherValue))
}

func TestApplyEntitlements_PartialSpendResetLogsNetDelta(t *testing.T) {
	// GIVEN: yesterday's 2.30 voucher with 0.30 still unspent
	engine := testEngine()
	today := NewDate(2026, time.March, 10)
	account := testAccount(t, "0.00", "0.30")
	links := []VoucherLink{
		link("lunch", gbp(t, "0.30"), today.AddDays(-1), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	}

	// WHEN: the new day resets the link
	result, err := engine.ApplyEntitlements(account, links, testCatalog(t), today)
	require.NoError(t, err)

	// THEN: the balance is SET to 2.30 and the logged credit is the
	// net 2.00, so log entries reconcile with the balance change
	assert.True(t, result.Account.VoucherValue.Equal(gbp(t, "2.30")))
	require.Len(t, result.Entries, 1)
	assert.True(t, result.Entries[0].VoucherAmount.Equal(gbp(t, "2.00")))
}

func TestApplyEntitlements_MirrorsFreeMealDate(t *testing.T) {
	// GIVEN: a free-meals link due for renewal
	engine := testEngine()
	today := NewDate(2026, time.March, 10)
	account := testAccount(t, "0.00", "0.00")
	catalog := Catalog{
		FreeMealVoucherID: {ID: FreeMealVoucherID, Name: "Free school meals", Cadence: Daily, Value: gbp(t, "2.30")},
	}
	links := []VoucherLink{
		link(FreeMealVoucherID, gbp(t, "0.00"), Date{}, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	}

	// WHEN: entitlements apply
	result, err := engine.ApplyEntitlements(account, links, catalog, today)
	require.NoError(t, err)

	// THEN: the account-level renewal date mirrors the link
	assert.True(t, result.Account.VoucherLastApplied.Equal(today))
}

func TestApplyEntitlements_InvariantHolds(t *testing.T) {
	engine := testEngine()
	today := NewDate(2026, time.March, 10)
	account := testAccount(t, "1.00", "1.20")
	links := []VoucherLink{
		link("lunch", gbp(t, "1.00"), today.AddDays(-1), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		link("fruit", gbp(t, "0.20"), today.AddDays(-8), time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)),
	}

	result, err := engine.ApplyEntitlements(account, links, testCatalog(t), today)
	require.NoError(t, err)

	assert.True(t, sumLinks(t, result.Links).Equal(result.Account.VoucherValue))
}

// =============================================================================
// DEBIT
// =============================================================================

func TestDebit_VoucherFirstSplit(t *testing.T) {
	// GIVEN: 2.00 cash and 5.00 voucher
	engine := testEngine()
	today := NewDate(2026, time.March, 10)
	account := testAccount(t, "2.00", "5.00")
	links := []VoucherLink{
		link("lunch", gbp(t, "5.00"), today, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	}

	// WHEN: debiting 6.00
	result, err := engine.Debit(account, links, gbp(t, "6.00"))
	require.NoError(t, err)

	// THEN: vouchers cover 5.00, cash the remaining 1.00
	assert.True(t, result.VoucherDebit.Equal(gbp(t, "5.00")))
	assert.True(t, result.CashDebit.Equal(gbp(t, "1.00")))
	assert.True(t, result.Account.VoucherValue.IsZero())
	assert.True(t, result.Account.CashValue.Equal(gbp(t, "1.00")))

	assert.Equal(t, EntryDebit, result.Entry.Type)
	assert.True(t, result.Entry.VoucherAmount.Equal(gbp(t, "5.00")))
	assert.True(t, result.Entry.CashAmount.Equal(gbp(t, "1.00")))
}

func TestDebit_WithinVoucherBalance(t *testing.T) {
	// GIVEN: voucher balance alone covers the purchase
	engine := testEngine()
	today := NewDate(2026, time.March, 10)
	account := testAccount(t, "2.00", "5.00")
	links := []VoucherLink{
		link("lunch", gbp(t, "5.00"), today, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	}

	// WHEN: debiting 2.00
	result, err := engine.Debit(account, links, gbp(t, "2.00"))
	require.NoError(t, err)

	// THEN: cash is untouched
	assert.True(t, result.Account.VoucherValue.Equal(gbp(t, "3.00")))
	assert.True(t, result.Account.CashValue.Equal(gbp(t, "2.00")))
	assert.True(t, result.CashDebit.IsZero())
}

func TestDebit_ExactTotal(t *testing.T) {
	engine := testEngine()
	today := NewDate(2026, time.March, 10)
	account := testAccount(t, "1.00", "2.30")
	links := []VoucherLink{
		link("lunch", gbp(t, "2.30"), today, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	}

	result, err := engine.Debit(account, links, gbp(t, "3.30"))
	require.NoError(t, err)

	assert.True(t, result.Account.VoucherValue.IsZero())
	assert.True(t, result.Account.CashValue.IsZero())
}

func TestDebit_InsufficientFunds(t *testing.T) {
	// GIVEN: a combined balance of 3.30
	engine := testEngine()
	today := NewDate(2026, time.March, 10)
	account := testAccount(t, "1.00", "2.30")
	links := []VoucherLink{
		link("lunch", gbp(t, "2.30"), today, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	}

	// WHEN: debiting 5.00
	_, err := engine.Debit(account, links, gbp(t, "5.00"))

	// THEN: the error carries the shortfall and nothing changed
	var insufficient *InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, insufficient.Available.Equal(gbp(t, "3.30")))
	assert.True(t, insufficient.Requested.Equal(gbp(t, "5.00")))
	assert.True(t, insufficient.Shortfall.Equal(gbp(t, "1.70")))

	assert.True(t, account.CashValue.Equal(gbp(t, "1.00")))
	assert.True(t, account.VoucherValue.Equal(gbp(t, "2.30")))
	assert.True(t, links[0].VoucherValue.Equal(gbp(t, "2.30")))
}

func TestDebit_NonPositiveAmount(t *testing.T) {
	engine := testEngine()
	account := testAccount(t, "1.00", "0.00")

	_, err := engine.Debit(account, nil, Zero("GBP"))
	assert.ErrorIs(t, err, ErrNonPositiveAmount)

	_, err = engine.Debit(account, nil, gbp(t, "-1.00"))
	assert.ErrorIs(t, err, ErrNonPositiveAmount)
}

func TestDebit_InvariantHolds(t *testing.T) {
	engine := testEngine()
	today := NewDate(2026, time.March, 10)
	account := testAccount(t, "0.00", "3.80")
	links := []VoucherLink{
		link("lunch", gbp(t, "2.30"), today, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		link("fruit", gbp(t, "1.50"), today, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)),
	}

	result, err := engine.Debit(account, links, gbp(t, "3.00"))
	require.NoError(t, err)

	assert.True(t, sumLinks(t, result.Links).Equal(result.Account.VoucherValue))
}

// =============================================================================
// CREDIT
// =============================================================================

func TestCredit_AddsToCash(t *testing.T) {
	engine := testEngine()
	account := testAccount(t, "1.50", "2.30")

	result, err := engine.Credit(account, gbp(t, "5.00"), EntryCredit)
	require.NoError(t, err)

	assert.True(t, result.Account.CashValue.Equal(gbp(t, "6.50")))
	assert.True(t, result.Account.VoucherValue.Equal(gbp(t, "2.30")), "vouchers untouched")
	assert.Equal(t, EntryCredit, result.Entry.Type)
	assert.True(t, result.Entry.CashAmount.Equal(gbp(t, "5.00")))
	assert.True(t, result.Entry.VoucherAmount.IsZero())
}

func TestCredit_StripeSource(t *testing.T) {
	engine := testEngine()
	account := testAccount(t, "0.00", "0.00")

	result, err := engine.Credit(account, gbp(t, "10.00"), EntryStripeCredit)
	require.NoError(t, err)
	assert.Equal(t, EntryStripeCredit, result.Entry.Type)
}

func TestCredit_NonPositiveAmount(t *testing.T) {
	engine := testEngine()
	account := testAccount(t, "1.00", "0.00")

	_, err := engine.Credit(account, Zero("GBP"), EntryCredit)
	assert.ErrorIs(t, err, ErrNonPositiveAmount)
}
