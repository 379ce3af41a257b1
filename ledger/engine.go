/*
engine.go - The entitlement-and-balance ledger engine

PURPOSE:
  Orchestrates the two balance-mutating operations of the scheme:

  ApplyEntitlements: materialise any voucher periods that have elapsed,
                     crediting each link's catalog value exactly once per
                     period.
  Debit:             take a purchase amount out of the combined balance,
                     vouchers first, distributing the voucher portion
                     across individual links.

  Plus Credit, the trivial cash top-up (cashier or card gateway).

PURITY:
  The engine performs no I/O. It receives the customer's current
  CashAccount and VoucherLinks, returns new values plus the transaction
  log entries to append, and leaves the atomic write to the caller
  (service layer + Repository.WithTx). Calling a function and discarding
  its result changes nothing.

IDEMPOTENCE:
  ApplyEntitlements called twice with the same today is a no-op the
  second time: every link's LastApplied already equals today's period,
  so no reset fires and no entry is emitted.

INVARIANT:
  After any successful operation,
  sum(link.VoucherValue) == account.VoucherValue.

SEE ALSO:
  - allocator.go: ApplyResets / DistributeDebit
  - service/:     transactional orchestration around this engine
*/
package ledger

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine computes balance transitions. Now is injectable for tests and
// defaults to the wall clock.
type Engine struct {
	Currency string
	Now      func() time.Time
}

func NewEngine(cfg Config) *Engine {
	return &Engine{Currency: cfg.Currency, Now: time.Now}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e *Engine) newEntry(customerID CustomerID, typ EntryType, cash, voucher Money) TransactionLogEntry {
	return TransactionLogEntry{
		ID:            EntryID(uuid.NewString()),
		CustomerID:    customerID,
		Timestamp:     e.now(),
		Type:          typ,
		CashAmount:    cash,
		VoucherAmount: voucher,
	}
}

// =============================================================================
// APPLY ENTITLEMENTS
// =============================================================================

// EntitlementResult carries the updated aggregates and the entries to
// append. Links are always returned (a reset updates LastApplied even
// when the value delta nets to zero); Entries is empty when nothing
// changed value-wise.
type EntitlementResult struct {
	Account CashAccount
	Links   []VoucherLink
	Entries []TransactionLogEntry
	Applied int
}

// ApplyEntitlements renews every elapsed voucher period for the
// customer. The logged credit is the aggregate delta, new aggregate
// minus old, not the sum of reset values: links that were only
// partially spent can make the delta smaller than the values applied,
// and a shrunk catalog value can even make it negative. The delta is
// deliberately not clamped so the log always reconciles with the actual
// balance change.
func (e *Engine) ApplyEntitlements(account CashAccount, links []VoucherLink, catalog Catalog, today Date) (EntitlementResult, error) {
	reset, err := ApplyResets(links, catalog, today, account.VoucherValue)
	if err != nil {
		return EntitlementResult{}, err
	}

	account.VoucherValue = reset.Aggregate

	// Mirror the free-meal link's renewal date onto the legacy account field.
	for _, l := range reset.Links {
		if l.VoucherID == FreeMealVoucherID {
			account.VoucherLastApplied = l.LastApplied
		}
	}

	result := EntitlementResult{Account: account, Links: reset.Links, Applied: reset.Applied}
	if !reset.Delta.IsZero() {
		result.Entries = []TransactionLogEntry{
			e.newEntry(account.CustomerID, EntryCredit, Zero(e.Currency), reset.Delta),
		}
	}
	return result, nil
}

// =============================================================================
// DEBIT
// =============================================================================

// DebitResult carries the updated balances plus the split recorded in
// the transaction log.
type DebitResult struct {
	Account      CashAccount
	Links        []VoucherLink
	VoucherDebit Money
	CashDebit    Money
	Entry        TransactionLogEntry
}

// Debit removes amount from the customer's combined balance, vouchers
// first. The voucher portion is distributed across individual links
// before the aggregate is reduced, so per-link balances stay consistent
// with the new aggregate. Exactly one debit entry is produced.
//
// Fails with ErrNonPositiveAmount, ErrCurrencyMismatch, or
// InsufficientFundsError; on failure nothing is changed.
func (e *Engine) Debit(account CashAccount, links []VoucherLink, amount Money) (DebitResult, error) {
	if !amount.IsPositive() {
		return DebitResult{}, ErrNonPositiveAmount
	}

	total, err := account.Total()
	if err != nil {
		return DebitResult{}, err
	}
	short, err := amount.GreaterThan(total)
	if err != nil {
		return DebitResult{}, err
	}
	if short {
		shortfall, err := amount.Sub(total)
		if err != nil {
			return DebitResult{}, err
		}
		return DebitResult{}, &InsufficientFundsError{
			CustomerID: account.CustomerID,
			Available:  total,
			Requested:  amount,
			Shortfall:  shortfall,
		}
	}

	// Voucher-first split: vouchers cover as much as they can, cash the rest.
	voucherDebit, err := amount.Min(account.VoucherValue)
	if err != nil {
		return DebitResult{}, err
	}
	cashDebit, err := amount.Sub(voucherDebit)
	if err != nil {
		return DebitResult{}, err
	}

	updatedLinks, err := DistributeDebit(links, voucherDebit)
	if err != nil {
		return DebitResult{}, err
	}
	account.VoucherValue, err = account.VoucherValue.Sub(voucherDebit)
	if err != nil {
		return DebitResult{}, err
	}
	account.CashValue, err = account.CashValue.Sub(cashDebit)
	if err != nil {
		return DebitResult{}, err
	}

	return DebitResult{
		Account:      account,
		Links:        updatedLinks,
		VoucherDebit: voucherDebit,
		CashDebit:    cashDebit,
		Entry:        e.newEntry(account.CustomerID, EntryDebit, cashDebit, voucherDebit),
	}, nil
}

// =============================================================================
// CREDIT
// =============================================================================

// CreditResult carries the topped-up account and its log entry.
type CreditResult struct {
	Account CashAccount
	Entry   TransactionLogEntry
}

// Credit adds amount to the customer's cash balance. entryType selects
// the log entry type: EntryCredit for cashier top-ups, EntryStripeCredit
// for card-gateway payments.
func (e *Engine) Credit(account CashAccount, amount Money, entryType EntryType) (CreditResult, error) {
	if !amount.IsPositive() {
		return CreditResult{}, ErrNonPositiveAmount
	}

	var err error
	account.CashValue, err = account.CashValue.Add(amount)
	if err != nil {
		return CreditResult{}, err
	}

	return CreditResult{
		Account: account,
		Entry:   e.newEntry(account.CustomerID, entryType, amount, Zero(e.Currency)),
	}, nil
}
