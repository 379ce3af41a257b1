/*
store.go - Persistence boundary for the ledger

PURPOSE:
  Defines the interface between the pure engine and the database. The
  engine computes new values; a Repository persists them. Different
  implementations back this with SQLite or in-memory storage.

ATOMICITY CONTRACT:
  Every engine invocation writes its results - updated account, updated
  links, new log entries - inside one WithTx call. Either the whole
  mutation lands or none of it does; a reader can never observe a
  partially-applied balance.

APPEND-ONLY CONTRACT:
  Transaction log entries have exactly one write path,
  AppendTransactionLogEntries. No update or delete methods exist for
  them and none may be added.

IMPLEMENTATIONS:
  - store/sqlite:  production SQLite store
  - ledger/store:  in-memory store for tests and development

SEE ALSO:
  - service/: the sole consumer of this interface
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// REPOSITORY
// =============================================================================

// Repository provides synchronous CRUD over the scheme's records. All
// reads and writes of one engine invocation happen within one WithTx.
type Repository interface {
	// Customers
	GetCustomer(ctx context.Context, id CustomerID) (*Customer, error)
	GetCustomerByCardNumber(ctx context.Context, cardNumber int) (*Customer, error)
	SaveCustomer(ctx context.Context, c Customer) error
	ListCustomers(ctx context.Context) ([]Customer, error)

	// Cash accounts
	GetCashAccount(ctx context.Context, customerID CustomerID) (*CashAccount, error)
	SaveCashAccount(ctx context.Context, a CashAccount) error

	// Voucher catalog
	GetVoucher(ctx context.Context, id VoucherID) (*Voucher, error)
	SaveVoucher(ctx context.Context, v Voucher) error
	ListVouchers(ctx context.Context) ([]Voucher, error)

	// Voucher links
	ListVoucherLinks(ctx context.Context, customerID CustomerID) ([]VoucherLink, error)
	SaveVoucherLinks(ctx context.Context, links []VoucherLink) error
	DeleteVoucherLink(ctx context.Context, customerID CustomerID, voucherID VoucherID) error

	// Transaction log (append-only)
	AppendTransactionLogEntries(ctx context.Context, entries []TransactionLogEntry) error
	ListTransactions(ctx context.Context, customerID CustomerID) ([]TransactionLogEntry, error)
	ListTransactionsInMonth(ctx context.Context, year int, month time.Month) ([]TransactionLogEntry, error)

	// Reporting
	Summary(ctx context.Context) (SchemeSummary, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(Repository) error) error
}

// SchemeSummary is the roll-up shown on the info screen.
type SchemeSummary struct {
	Customers     int
	CashAccounts  int
	TotalCashHeld Money
}
