/*
handlers.go - HTTP handlers for the cashless ledger API

PURPOSE:
  Handles HTTP concerns: request parsing, response serialization, error
  mapping. Business logic lives in service/ and ledger/; handlers stay
  thin.

ERROR MAPPING:
  - not found            -> 404
  - insufficient funds   -> 422 with shortfall details
  - validation failures  -> 400
  - card number taken    -> 409
  - catalog inconsistent -> 500

SEE ALSO:
  - dto.go:    request/response types
  - server.go: route registration
*/
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/canteen/cashless-engine/ledger"
	"github.com/canteen/cashless-engine/service"
)

// =============================================================================
// HANDLER
// =============================================================================

type Handler struct {
	svc  *service.Service
	repo ledger.Repository
	cfg  ledger.Config
}

func NewHandler(svc *service.Service, repo ledger.Repository, cfg ledger.Config) *Handler {
	return &Handler{svc: svc, repo: repo, cfg: cfg}
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON: encode failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeDomainError maps ledger errors onto HTTP statuses. Anything it
// does not recognize becomes a 500.
func writeDomainError(w http.ResponseWriter, err error) {
	var insufficient *ledger.InsufficientFundsError
	if errors.As(err, &insufficient) {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: insufficient.Error(),
			Code:  "insufficient_funds",
			Details: map[string]MoneyDTO{
				"available": toMoneyDTO(insufficient.Available),
				"requested": toMoneyDTO(insufficient.Requested),
				"shortfall": toMoneyDTO(insufficient.Shortfall),
			},
		})
		return
	}

	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrCardNumberTaken):
		writeError(w, http.StatusConflict, err.Error())
	case ledger.IsClientError(err), errors.Is(err, ledger.ErrCurrencyMismatch):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) parseMoney(raw string) (ledger.Money, error) {
	if raw == "" {
		return ledger.Money{}, ledger.ErrNonPositiveAmount
	}
	return ledger.NewMoneyFromString(raw, h.cfg.Money.Currency)
}

func outcomeDTO(o service.EntitlementOutcome) CustomerDetailDTO {
	return CustomerDetailDTO{
		Customer: toCustomerDTO(o.Customer),
		Balance:  toBalanceDTO(o.Account),
		Vouchers: toVoucherLinkDTOs(o.Links),
	}
}

// =============================================================================
// SYSTEM
// =============================================================================

// GET /api/info
func (h *Handler) GetInfo(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Summary(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	proposed, err := h.cfg.ProposedAmount()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, InfoDTO{
		Version:        ledger.Version,
		Customers:      sum.Customers,
		CashAccounts:   sum.CashAccounts,
		TotalCashHeld:  toMoneyDTO(sum.TotalCashHeld),
		ProposedAmount: toMoneyDTO(proposed),
	})
}

// =============================================================================
// CUSTOMERS
// =============================================================================

// GET /api/customers
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.repo.ListCustomers(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]CustomerDTO, len(customers))
	for i, c := range customers {
		dtos[i] = toCustomerDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// POST /api/customers
func (h *Handler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	var req OpenAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	customer, err := h.svc.OpenAccount(r.Context(), service.OpenAccountParams{
		CardNumber: req.CardNumber,
		FirstName:  req.FirstName,
		Surname:    req.Surname,
		FreeMeals:  req.FreeMeals,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(customer))
}

// GET /api/customers/lookup?card=N
//
// The till path: finding a card applies any due vouchers before the
// balance is shown, so the cashier always sees post-entitlement state.
func (h *Handler) LookupByCard(w http.ResponseWriter, r *http.Request) {
	card, err := strconv.Atoi(r.URL.Query().Get("card"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "card must be a number")
		return
	}
	outcome, err := h.svc.LookupByCard(r.Context(), card)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeDTO(outcome))
}

// GET /api/customers/{customerID}
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id := ledger.CustomerID(chi.URLParam(r, "customerID"))
	ctx := r.Context()

	customer, err := h.repo.GetCustomer(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if customer == nil {
		writeError(w, http.StatusNotFound, "customer not found")
		return
	}
	account, err := h.repo.GetCashAccount(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if account == nil {
		writeError(w, http.StatusNotFound, "cash account not found")
		return
	}
	links, err := h.repo.ListVoucherLinks(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CustomerDetailDTO{
		Customer: toCustomerDTO(*customer),
		Balance:  toBalanceDTO(*account),
		Vouchers: toVoucherLinkDTOs(links),
	})
}

// POST /api/customers/{customerID}/entitlements
func (h *Handler) ApplyEntitlements(w http.ResponseWriter, r *http.Request) {
	id := ledger.CustomerID(chi.URLParam(r, "customerID"))
	outcome, err := h.svc.ApplyEntitlements(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeDTO(outcome))
}

// POST /api/customers/{customerID}/credit
func (h *Handler) Credit(w http.ResponseWriter, r *http.Request) {
	id := ledger.CustomerID(chi.URLParam(r, "customerID"))
	var req CreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := h.parseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	entryType := ledger.EntryCredit
	if req.Source == "stripe" {
		entryType = ledger.EntryStripeCredit
	}
	result, err := h.svc.Credit(r.Context(), id, amount, entryType)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DebitResponseDTO{
		Balance:      toBalanceDTO(result.Account),
		VoucherDebit: toMoneyDTO(ledger.Zero(h.cfg.Money.Currency)),
		CashDebit:    toMoneyDTO(ledger.Zero(h.cfg.Money.Currency)),
		Entry:        toTransactionDTO(result.Entry),
	})
}

// POST /api/customers/{customerID}/debit
func (h *Handler) Debit(w http.ResponseWriter, r *http.Request) {
	id := ledger.CustomerID(chi.URLParam(r, "customerID"))
	var req DebitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := h.parseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	result, err := h.svc.Debit(r.Context(), id, amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DebitResponseDTO{
		Balance:      toBalanceDTO(result.Account),
		VoucherDebit: toMoneyDTO(result.VoucherDebit),
		CashDebit:    toMoneyDTO(result.CashDebit),
		Entry:        toTransactionDTO(result.Entry),
	})
}

// GET /api/customers/{customerID}/transactions
func (h *Handler) CustomerTransactions(w http.ResponseWriter, r *http.Request) {
	id := ledger.CustomerID(chi.URLParam(r, "customerID"))
	entries, err := h.svc.Transactions(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(entries))
}

// GET /api/customers/{customerID}/vouchers
func (h *Handler) ListCustomerVouchers(w http.ResponseWriter, r *http.Request) {
	id := ledger.CustomerID(chi.URLParam(r, "customerID"))
	links, err := h.repo.ListVoucherLinks(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVoucherLinkDTOs(links))
}

// POST /api/customers/{customerID}/vouchers
func (h *Handler) AssignVoucher(w http.ResponseWriter, r *http.Request) {
	id := ledger.CustomerID(chi.URLParam(r, "customerID"))
	var req AssignVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	link, err := h.svc.AssignVoucher(r.Context(), id, ledger.VoucherID(req.VoucherID))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toVoucherLinkDTO(link))
}

// DELETE /api/customers/{customerID}/vouchers/{voucherID}
func (h *Handler) RemoveVoucher(w http.ResponseWriter, r *http.Request) {
	id := ledger.CustomerID(chi.URLParam(r, "customerID"))
	voucherID := ledger.VoucherID(chi.URLParam(r, "voucherID"))
	if err := h.svc.RemoveVoucher(r.Context(), id, voucherID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// VOUCHERS
// =============================================================================

// GET /api/vouchers
func (h *Handler) ListVouchers(w http.ResponseWriter, r *http.Request) {
	vouchers, err := h.repo.ListVouchers(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]VoucherDTO, len(vouchers))
	for i, v := range vouchers {
		dtos[i] = toVoucherDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GET /api/vouchers/{voucherID}
func (h *Handler) GetVoucher(w http.ResponseWriter, r *http.Request) {
	id := ledger.VoucherID(chi.URLParam(r, "voucherID"))
	voucher, err := h.repo.GetVoucher(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if voucher == nil {
		writeError(w, http.StatusNotFound, "voucher not found")
		return
	}
	writeJSON(w, http.StatusOK, toVoucherDTO(*voucher))
}

// POST /api/vouchers
func (h *Handler) CreateVoucher(w http.ResponseWriter, r *http.Request) {
	var req CreateVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cadence, err := ledger.ParseCadence(req.Cadence)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	value, err := h.parseMoney(req.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid value")
		return
	}
	voucher, err := h.svc.CreateVoucher(r.Context(), req.Name, cadence, value)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toVoucherDTO(voucher))
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// GET /api/transactions?year=YYYY&month=M
//
// Defaults to the current month when year/month are absent (the
// activity-log screen).
func (h *Handler) ActivityLog(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	year, month := now.Year(), now.Month()

	if raw := r.URL.Query().Get("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "year must be a number")
			return
		}
		year = y
	}
	if raw := r.URL.Query().Get("month"); raw != "" {
		m, err := strconv.Atoi(raw)
		if err != nil || m < 1 || m > 12 {
			writeError(w, http.StatusBadRequest, "month must be 1-12")
			return
		}
		month = time.Month(m)
	}

	entries, err := h.svc.ActivityLog(r.Context(), year, month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(entries))
}
