package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canteen/cashless-engine/ledger"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:", "GBP")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func mustGBP(t *testing.T, value string) ledger.Money {
	t.Helper()
	m, err := ledger.NewMoneyFromString(value, "GBP")
	require.NoError(t, err)
	return m
}

func seedCustomer(t *testing.T, s *Store, id ledger.CustomerID, card int) ledger.Customer {
	t.Helper()
	c := ledger.Customer{
		ID:         id,
		CardNumber: card,
		FirstName:  "Alex",
		Surname:    "Smith",
		FreeMeals:  true,
		CreatedAt:  time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveCustomer(context.Background(), c))
	return c
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func TestSQLite_CustomerRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	missing, err := s.GetCustomer(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	want := seedCustomer(t, s, "cust-1", 42)

	got, err := s.GetCustomer(ctx, "cust-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.CardNumber, got.CardNumber)
	assert.Equal(t, want.Surname, got.Surname)
	assert.True(t, got.FreeMeals)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))

	byCard, err := s.GetCustomerByCardNumber(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, byCard)
	assert.Equal(t, ledger.CustomerID("cust-1"), byCard.ID)
}

func TestSQLite_ListCustomersSortedBySurname(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.SaveCustomer(ctx, ledger.Customer{ID: "c1", CardNumber: 1, Surname: "Zane", CreatedAt: time.Now().UTC()}))
	require.NoError(t, s.SaveCustomer(ctx, ledger.Customer{ID: "c2", CardNumber: 2, Surname: "Adams", CreatedAt: time.Now().UTC()}))

	customers, err := s.ListCustomers(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 2)
	assert.Equal(t, "Adams", customers[0].Surname)
}

// =============================================================================
// CASH ACCOUNTS
// =============================================================================

func TestSQLite_CashAccountRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedCustomer(t, s, "cust-1", 42)

	account := ledger.CashAccount{
		CustomerID:         "cust-1",
		CashValue:          mustGBP(t, "3.50"),
		VoucherValue:       mustGBP(t, "2.30"),
		VoucherLastApplied: ledger.NewDate(2026, time.March, 10),
	}
	require.NoError(t, s.SaveCashAccount(ctx, account))

	got, err := s.GetCashAccount(ctx, "cust-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.CashValue.Equal(mustGBP(t, "3.50")))
	assert.True(t, got.VoucherValue.Equal(mustGBP(t, "2.30")))
	assert.True(t, got.VoucherLastApplied.Equal(ledger.NewDate(2026, time.March, 10)))

	// Upsert overwrites.
	account.CashValue = mustGBP(t, "1.00")
	require.NoError(t, s.SaveCashAccount(ctx, account))
	got, err = s.GetCashAccount(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, got.CashValue.Equal(mustGBP(t, "1.00")))
}

func TestSQLite_ZeroDateSurvivesRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedCustomer(t, s, "cust-1", 42)

	require.NoError(t, s.SaveCashAccount(ctx, ledger.CashAccount{
		CustomerID:   "cust-1",
		CashValue:    mustGBP(t, "0.00"),
		VoucherValue: mustGBP(t, "0.00"),
	}))

	got, err := s.GetCashAccount(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, got.VoucherLastApplied.IsZero())
}

// =============================================================================
// VOUCHERS AND LINKS
// =============================================================================

func TestSQLite_VoucherRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	v := ledger.Voucher{ID: "lunch", Name: "Daily lunch", Cadence: ledger.Daily, Value: mustGBP(t, "2.30")}
	require.NoError(t, s.SaveVoucher(ctx, v))

	got, err := s.GetVoucher(ctx, "lunch")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ledger.Daily, got.Cadence)
	assert.True(t, got.Value.Equal(mustGBP(t, "2.30")))

	all, err := s.ListVouchers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLite_VoucherLinkUpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedCustomer(t, s, "cust-1", 42)
	require.NoError(t, s.SaveVoucher(ctx, ledger.Voucher{ID: "lunch", Name: "Daily lunch", Cadence: ledger.Daily, Value: mustGBP(t, "2.30")}))

	link := ledger.VoucherLink{
		CustomerID:   "cust-1",
		VoucherID:    "lunch",
		LastApplied:  ledger.NewDate(2026, time.March, 10),
		VoucherValue: mustGBP(t, "2.30"),
		AssignedAt:   time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveVoucherLinks(ctx, []ledger.VoucherLink{link}))

	link.VoucherValue = mustGBP(t, "0.80")
	require.NoError(t, s.SaveVoucherLinks(ctx, []ledger.VoucherLink{link}))

	links, err := s.ListVoucherLinks(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.True(t, links[0].VoucherValue.Equal(mustGBP(t, "0.80")))
	assert.True(t, links[0].LastApplied.Equal(ledger.NewDate(2026, time.March, 10)))

	require.NoError(t, s.DeleteVoucherLink(ctx, "cust-1", "lunch"))
	links, err = s.ListVoucherLinks(ctx, "cust-1")
	require.NoError(t, err)
	assert.Empty(t, links)
}

// =============================================================================
// TRANSACTION LOG
// =============================================================================

func TestSQLite_TransactionLogAndMonthFilter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedCustomer(t, s, "cust-1", 42)

	entry := func(id string, ts time.Time) ledger.TransactionLogEntry {
		return ledger.TransactionLogEntry{
			ID:            ledger.EntryID(id),
			CustomerID:    "cust-1",
			Timestamp:     ts,
			Type:          ledger.EntryCredit,
			CashAmount:    mustGBP(t, "5.00"),
			VoucherAmount: mustGBP(t, "0.00"),
		}
	}
	require.NoError(t, s.AppendTransactionLogEntries(ctx, []ledger.TransactionLogEntry{
		entry("e1", time.Date(2026, time.February, 10, 9, 0, 0, 0, time.UTC)),
		entry("e2", time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)),
		entry("e3", time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)),
	}))

	all, err := s.ListTransactions(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ledger.EntryID("e3"), all[0].ID, "newest first")

	march, err := s.ListTransactionsInMonth(ctx, 2026, time.March)
	require.NoError(t, err)
	require.Len(t, march, 2)
	assert.Equal(t, ledger.EntryID("e3"), march[0].ID)

	feb, err := s.ListTransactionsInMonth(ctx, 2026, time.February)
	require.NoError(t, err)
	assert.Len(t, feb, 1)
}

func TestSQLite_FractionalTimestampsSortAndFilterCorrectly(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedCustomer(t, s, "cust-1", 42)

	entry := func(id string, ts time.Time) ledger.TransactionLogEntry {
		return ledger.TransactionLogEntry{
			ID:            ledger.EntryID(id),
			CustomerID:    "cust-1",
			Timestamp:     ts,
			Type:          ledger.EntryCredit,
			CashAmount:    mustGBP(t, "1.00"),
			VoucherAmount: mustGBP(t, "0.00"),
		}
	}
	// Sub-second timestamps must round-trip through the same fixed
	// width as whole-second ones or lexical ORDER BY misplaces them.
	require.NoError(t, s.AppendTransactionLogEntries(ctx, []ledger.TransactionLogEntry{
		entry("old", time.Date(2026, time.March, 1, 12, 0, 5, 0, time.UTC)),
		entry("new", time.Date(2026, time.March, 1, 12, 0, 5, 400_000_000, time.UTC)),
		entry("boundary", time.Date(2026, time.March, 1, 0, 0, 0, 500_000_000, time.UTC)),
	}))

	all, err := s.ListTransactions(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ledger.EntryID("new"), all[0].ID, "12:00:05.4 sorts after 12:00:05")
	assert.Equal(t, ledger.EntryID("old"), all[1].ID)

	march, err := s.ListTransactionsInMonth(ctx, 2026, time.March)
	require.NoError(t, err)
	assert.Len(t, march, 3, "first second of the month includes fractional entries")

	boundary := march[len(march)-1]
	assert.Equal(t, ledger.EntryID("boundary"), boundary.ID)
	assert.True(t, boundary.Timestamp.Equal(time.Date(2026, time.March, 1, 0, 0, 0, 500_000_000, time.UTC)))
}

// =============================================================================
// SUMMARY
// =============================================================================

func TestSQLite_Summary(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedCustomer(t, s, "c1", 1)
	require.NoError(t, s.SaveCustomer(ctx, ledger.Customer{ID: "c2", CardNumber: 2, Surname: "Jones", CreatedAt: time.Now().UTC()}))

	require.NoError(t, s.SaveCashAccount(ctx, ledger.CashAccount{
		CustomerID: "c1", CashValue: mustGBP(t, "3.00"), VoucherValue: mustGBP(t, "0.00"),
	}))
	require.NoError(t, s.SaveCashAccount(ctx, ledger.CashAccount{
		CustomerID: "c2", CashValue: mustGBP(t, "1.55"), VoucherValue: mustGBP(t, "2.30"),
	}))

	sum, err := s.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Customers)
	assert.Equal(t, 2, sum.CashAccounts)
	assert.True(t, sum.TotalCashHeld.Equal(mustGBP(t, "4.55")), "decimal sum, no float drift")
}

func TestSQLite_SummaryEmptySchemeCarriesCurrency(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sum, err := s.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Customers)
	assert.Equal(t, 0, sum.CashAccounts)
	assert.Equal(t, "GBP", sum.TotalCashHeld.Currency)
	assert.True(t, sum.TotalCashHeld.IsZero())
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestSQLite_WithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedCustomer(t, s, "cust-1", 42)
	require.NoError(t, s.SaveCashAccount(ctx, ledger.CashAccount{
		CustomerID: "cust-1", CashValue: mustGBP(t, "3.00"), VoucherValue: mustGBP(t, "0.00"),
	}))

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(repo ledger.Repository) error {
		if err := repo.SaveCashAccount(ctx, ledger.CashAccount{
			CustomerID: "cust-1", CashValue: mustGBP(t, "99.00"), VoucherValue: mustGBP(t, "0.00"),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	account, err := s.GetCashAccount(ctx, "cust-1")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.True(t, account.CashValue.Equal(mustGBP(t, "3.00")))
}

func TestSQLite_WithTxCommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.WithTx(ctx, func(repo ledger.Repository) error {
		return repo.SaveVoucher(ctx, ledger.Voucher{
			ID: "lunch", Name: "Daily lunch", Cadence: ledger.Daily, Value: mustGBP(t, "2.30"),
		})
	})
	require.NoError(t, err)

	v, err := s.GetVoucher(ctx, "lunch")
	require.NoError(t, err)
	require.NotNil(t, v)
}
