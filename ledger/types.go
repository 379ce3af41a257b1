/*
Package ledger implements the entitlement-and-balance engine for a
closed-loop cashless card scheme.

PURPOSE:
  Customers hold a cash balance plus zero or more recurring vouchers
  (entitlements renewed on a fixed cadence). This package contains the
  pure domain logic: deciding when an entitlement period has elapsed,
  crediting it exactly once per period, debiting purchases voucher-first
  with a deterministic per-voucher allocation, and producing the
  append-only transaction log entries that reconcile with every balance
  mutation.

KEY CONCEPTS IN THIS FILE (types.go):
  - Customer:            cardholder record with free-meal eligibility
  - CashAccount:         cash balance + aggregate voucher balance
  - Voucher:             catalog entry (name, cadence, value)
  - VoucherLink:         per-customer assignment with its own balance
  - TransactionLogEntry: immutable record of a balance change

DESIGN PRINCIPLES:
  1. Purity: the engine computes new values; it performs no I/O. The
     caller persists results atomically (see Repository).
  2. Reconciliation: sum of link balances always equals the account's
     aggregate voucher balance.
  3. Append-only log: entries are created, never mutated or deleted.

SEE ALSO:
  - cadence.go:   period-elapsed decisions
  - allocator.go: per-link reset and debit distribution
  - engine.go:    ApplyEntitlements / Debit / Credit
  - store.go:     the Repository persistence boundary
*/
package ledger

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CustomerID string
type VoucherID string
type EntryID string

// FreeMealVoucherID is the reserved catalog entry backing the daily
// free-meal entitlement. The service materialises a VoucherLink to it for
// eligible customers so free meals flow through the same reset and debit
// machinery as every other voucher.
const FreeMealVoucherID VoucherID = "free-school-meals"

// =============================================================================
// CUSTOMER - The cardholder record
// =============================================================================

type Customer struct {
	ID         CustomerID
	CardNumber int
	FirstName  string
	Surname    string
	FreeMeals  bool
	CreatedAt  time.Time
}

func (c Customer) DisplayName() string { return c.FirstName + " " + c.Surname }

// =============================================================================
// CASH ACCOUNT - One per customer
// =============================================================================

// CashAccount holds a customer's spendable balances. VoucherValue is the
// aggregate of all the customer's VoucherLink balances; it is mirrored
// here for fast reads and must reconcile with the links after every
// engine operation.
type CashAccount struct {
	CustomerID   CustomerID
	CashValue    Money
	VoucherValue Money

	// VoucherLastApplied mirrors the free-meal link's last reset date.
	// Kept for reporting compatibility with the original schema.
	VoucherLastApplied Date
}

// Total is the combined spendable balance.
func (a CashAccount) Total() (Money, error) {
	return a.CashValue.Add(a.VoucherValue)
}

// =============================================================================
// VOUCHER CATALOG
// =============================================================================

type Voucher struct {
	ID      VoucherID
	Name    string
	Cadence Cadence
	Value   Money
}

// Catalog indexes vouchers by ID for link resolution.
type Catalog map[VoucherID]Voucher

// =============================================================================
// VOUCHER LINK - Per-customer voucher assignment with its own balance
// =============================================================================

// VoucherLink assigns a catalog voucher to a customer. VoucherValue is
// this link's current share of the customer's aggregate voucher balance:
// reset to the catalog value when a new period elapses, decremented when
// a purchase is allocated against it. Links are iterated in assignment
// order (AssignedAt, then VoucherID) so debit distribution is
// deterministic.
type VoucherLink struct {
	CustomerID   CustomerID
	VoucherID    VoucherID
	LastApplied  Date
	VoucherValue Money
	AssignedAt   time.Time
}

// SumLinkValues returns the aggregate of the links' balances.
func SumLinkValues(links []VoucherLink, currency string) (Money, error) {
	total := Zero(currency)
	for _, l := range links {
		var err error
		total, err = total.Add(l.VoucherValue)
		if err != nil {
			return Money{}, err
		}
	}
	return total, nil
}

// =============================================================================
// TRANSACTION LOG - Append-only audit trail
// =============================================================================

type EntryType string

const (
	EntryCredit       EntryType = "credit"
	EntryDebit        EntryType = "debit"
	EntryStripeCredit EntryType = "stripe-credit"
)

// TransactionLogEntry records one balance mutation. Exactly one entry is
// produced per engine call that results in a non-zero change. Entries
// are never mutated or deleted.
type TransactionLogEntry struct {
	ID            EntryID
	CustomerID    CustomerID
	Timestamp     time.Time
	Type          EntryType
	CashAmount    Money
	VoucherAmount Money
}
