/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY ON THE WIRE:
  Amounts travel as decimal strings ("2.50") plus a currency code.
  Floats never appear; the till must display exactly what the ledger
  holds.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/canteen/cashless-engine/ledger"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// MoneyDTO carries a fixed-point amount and its currency.
type MoneyDTO struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// CustomerDTO represents a cardholder in API responses.
type CustomerDTO struct {
	ID         string `json:"id"`
	CardNumber int    `json:"card_number"`
	FirstName  string `json:"first_name"`
	Surname    string `json:"surname"`
	FreeMeals  bool   `json:"free_meals"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// BalanceDTO is a customer's spendable state.
type BalanceDTO struct {
	CashValue          MoneyDTO `json:"cash_value"`
	VoucherValue       MoneyDTO `json:"voucher_value"`
	Total              MoneyDTO `json:"total"`
	VoucherLastApplied string   `json:"voucher_last_applied,omitempty"`
}

// CustomerDetailDTO is the till view: customer + balances + links.
type CustomerDetailDTO struct {
	Customer CustomerDTO      `json:"customer"`
	Balance  BalanceDTO       `json:"balance"`
	Vouchers []VoucherLinkDTO `json:"vouchers"`
}

// OpenAccountRequest is the account-opening form.
type OpenAccountRequest struct {
	CardNumber int    `json:"card_number"`
	FirstName  string `json:"first_name"`
	Surname    string `json:"surname"`
	FreeMeals  bool   `json:"free_meals"`
}

// CreditRequest tops up a cash balance. Source selects the log entry
// type: "cashier" (default) or "stripe".
type CreditRequest struct {
	Amount string `json:"amount"`
	Source string `json:"source,omitempty"`
}

// DebitRequest charges a purchase against the combined balance.
type DebitRequest struct {
	Amount string `json:"amount"`
}

// DebitResponseDTO reports how a debit was split.
type DebitResponseDTO struct {
	Balance      BalanceDTO     `json:"balance"`
	VoucherDebit MoneyDTO       `json:"voucher_debit"`
	CashDebit    MoneyDTO       `json:"cash_debit"`
	Entry        TransactionDTO `json:"entry"`
}

// VoucherDTO represents a catalog voucher.
type VoucherDTO struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Cadence string   `json:"cadence"`
	Value   MoneyDTO `json:"value"`
}

// CreateVoucherRequest adds a catalog voucher.
type CreateVoucherRequest struct {
	Name    string `json:"name"`
	Cadence string `json:"cadence"`
	Value   string `json:"value"`
}

// AssignVoucherRequest links a catalog voucher to a customer.
type AssignVoucherRequest struct {
	VoucherID string `json:"voucher_id"`
}

// VoucherLinkDTO represents one customer voucher assignment.
type VoucherLinkDTO struct {
	VoucherID    string   `json:"voucher_id"`
	LastApplied  string   `json:"last_applied,omitempty"`
	VoucherValue MoneyDTO `json:"voucher_value"`
}

// TransactionDTO represents a transaction log entry.
type TransactionDTO struct {
	ID            string   `json:"id"`
	CustomerID    string   `json:"customer_id"`
	Timestamp     string   `json:"timestamp"`
	Type          string   `json:"type"`
	CashAmount    MoneyDTO `json:"cash_amount"`
	VoucherAmount MoneyDTO `json:"voucher_amount"`
}

// InfoDTO is the system summary screen.
type InfoDTO struct {
	Version        string   `json:"version"`
	Customers      int      `json:"customers"`
	CashAccounts   int      `json:"cash_accounts"`
	TotalCashHeld  MoneyDTO `json:"total_cash_held"`
	ProposedAmount MoneyDTO `json:"proposed_amount"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toMoneyDTO(m ledger.Money) MoneyDTO {
	return MoneyDTO{Amount: m.Amount.StringFixed(2), Currency: m.Currency}
}

func toCustomerDTO(c ledger.Customer) CustomerDTO {
	return CustomerDTO{
		ID:         string(c.ID),
		CardNumber: c.CardNumber,
		FirstName:  c.FirstName,
		Surname:    c.Surname,
		FreeMeals:  c.FreeMeals,
		CreatedAt:  c.CreatedAt.Format(time.RFC3339),
	}
}

func toBalanceDTO(a ledger.CashAccount) BalanceDTO {
	total, err := a.Total()
	if err != nil {
		total = a.CashValue
	}
	dto := BalanceDTO{
		CashValue:    toMoneyDTO(a.CashValue),
		VoucherValue: toMoneyDTO(a.VoucherValue),
		Total:        toMoneyDTO(total),
	}
	if !a.VoucherLastApplied.IsZero() {
		dto.VoucherLastApplied = a.VoucherLastApplied.String()
	}
	return dto
}

func toVoucherDTO(v ledger.Voucher) VoucherDTO {
	return VoucherDTO{
		ID:      string(v.ID),
		Name:    v.Name,
		Cadence: string(v.Cadence),
		Value:   toMoneyDTO(v.Value),
	}
}

func toVoucherLinkDTO(l ledger.VoucherLink) VoucherLinkDTO {
	dto := VoucherLinkDTO{
		VoucherID:    string(l.VoucherID),
		VoucherValue: toMoneyDTO(l.VoucherValue),
	}
	if !l.LastApplied.IsZero() {
		dto.LastApplied = l.LastApplied.String()
	}
	return dto
}

func toVoucherLinkDTOs(links []ledger.VoucherLink) []VoucherLinkDTO {
	dtos := make([]VoucherLinkDTO, len(links))
	for i, l := range links {
		dtos[i] = toVoucherLinkDTO(l)
	}
	return dtos
}

func toTransactionDTO(e ledger.TransactionLogEntry) TransactionDTO {
	return TransactionDTO{
		ID:            string(e.ID),
		CustomerID:    string(e.CustomerID),
		Timestamp:     e.Timestamp.Format(time.RFC3339),
		Type:          string(e.Type),
		CashAmount:    toMoneyDTO(e.CashAmount),
		VoucherAmount: toMoneyDTO(e.VoucherAmount),
	}
}

func toTransactionDTOs(entries []ledger.TransactionLogEntry) []TransactionDTO {
	dtos := make([]TransactionDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toTransactionDTO(e)
	}
	return dtos
}
