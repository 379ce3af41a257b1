/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers branch on these with errors.Is / errors.As; the API layer
  maps them onto HTTP statuses.

ERROR CATEGORIES:
  1. Input errors - bad amounts, mixed currencies (caller mistakes)
  2. Business conditions - insufficient funds (expected, user-facing)
  3. Data integrity - missing customers, dangling catalog references

USAGE:
  if errors.Is(err, ledger.ErrInsufficientFunds) {
      // show the "cannot afford" message
  }

SEE ALSO:
  - engine.go: Produces these errors
  - api/handlers.go: Maps them to HTTP statuses
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrCurrencyMismatch is returned when an operation mixes currencies.
	// This is a configuration/programming error, never retried.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrNonPositiveAmount is returned when a credit or debit amount is
	// zero or negative. Surfaced to the UI as a validation failure.
	ErrNonPositiveAmount = errors.New("amount must be positive")

	// ErrInsufficientFunds is returned when a debit exceeds the customer's
	// combined cash + voucher balance. An expected business condition.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrCustomerNotFound is returned when a referenced customer doesn't exist.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrVoucherNotFound is returned when a referenced catalog voucher doesn't exist.
	ErrVoucherNotFound = errors.New("voucher not found")

	// ErrVoucherCatalogInconsistent is returned when a customer's voucher
	// link references a catalog entry that no longer exists. Data integrity
	// failure: logged and surfaced, never silently skipped.
	ErrVoucherCatalogInconsistent = errors.New("voucher link references missing catalog voucher")

	// ErrCardNumberTaken is returned when opening an account with a card
	// number already assigned to another customer.
	ErrCardNumberTaken = errors.New("card number already in use")

	// ErrInvalidCardNumber is returned when a card number is not a positive integer.
	ErrInvalidCardNumber = errors.New("card number must be a positive integer")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// CurrencyMismatchError reports the two currencies that were mixed.
type CurrencyMismatchError struct {
	Left  string
	Right string
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("currency mismatch: %s vs %s", e.Left, e.Right)
}

func (e *CurrencyMismatchError) Unwrap() error { return ErrCurrencyMismatch }

// InsufficientFundsError provides details about a balance shortage so the
// till can show the customer exactly how short they are.
type InsufficientFundsError struct {
	CustomerID CustomerID
	Available  Money
	Requested  Money
	Shortfall  Money
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: available %s, requested %s, short %s",
		e.Available, e.Requested, e.Shortfall)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// CatalogError identifies the dangling link behind a catalog inconsistency.
type CatalogError struct {
	CustomerID CustomerID
	VoucherID  VoucherID
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("voucher link for customer %s references missing voucher %s",
		e.CustomerID, e.VoucherID)
}

func (e *CatalogError) Unwrap() error { return ErrVoucherCatalogInconsistent }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input
// or an expected business condition (HTTP 4xx territory).
func IsClientError(err error) bool {
	return errors.Is(err, ErrNonPositiveAmount) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrCardNumberTaken) ||
		errors.Is(err, ErrInvalidCardNumber)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrVoucherNotFound)
}
