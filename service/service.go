/*
Package service wraps the pure ledger engine with the transactional
orchestration the web layer calls into.

PURPOSE:
  Each operation here is one atomic unit of work: load the customer's
  state, invoke the engine, persist the updated account, links, and log
  entries together via Repository.WithTx. If anything fails, nothing is
  written - a reader can never observe a partially-applied balance.

FREE MEALS:
  Free-meal eligibility is modelled as a reserved daily catalog voucher
  ("free-school-meals") whose link is materialised lazily for eligible
  customers. That keeps free meals inside the same reset/debit machinery
  as every other voucher, so the links-vs-aggregate invariant holds for
  every customer.

OPERATIONS:
  ApplyEntitlements  materialise due voucher periods
  Debit              purchase, voucher-first
  Credit             cash top-up (cashier or card gateway)
  LookupByCard       till flow: find by card, apply entitlements
  OpenAccount        create customer + zero-balance account
  AssignVoucher /    voucher link administration
  RemoveVoucher
  CreateVoucher      catalog administration
  Summary /          reporting
  ActivityLog

SEE ALSO:
  - ledger/engine.go: the pure computations
  - ledger/store.go:  the Repository contract
*/
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/canteen/cashless-engine/ledger"
)

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	repo   ledger.Repository
	engine *ledger.Engine
	cfg    ledger.Config

	// TodayFunc is injectable for tests; defaults to ledger.Today.
	TodayFunc func() ledger.Date
}

func New(repo ledger.Repository, cfg ledger.Config) *Service {
	return &Service{
		repo:      repo,
		engine:    ledger.NewEngine(cfg),
		cfg:       cfg,
		TodayFunc: ledger.Today,
	}
}

// Engine exposes the underlying engine (tests pin its clock).
func (s *Service) Engine() *ledger.Engine { return s.engine }

func (s *Service) today() ledger.Date {
	if s.TodayFunc != nil {
		return s.TodayFunc()
	}
	return ledger.Today()
}

// =============================================================================
// ENTITLEMENTS
// =============================================================================

// EntitlementOutcome is what ApplyEntitlements hands back to the caller.
type EntitlementOutcome struct {
	Customer ledger.Customer
	Account  ledger.CashAccount
	Links    []ledger.VoucherLink
	Entries  []ledger.TransactionLogEntry
}

// ApplyEntitlements credits every due voucher period for the customer,
// exactly once per period, in one atomic write.
func (s *Service) ApplyEntitlements(ctx context.Context, customerID ledger.CustomerID) (EntitlementOutcome, error) {
	var out EntitlementOutcome
	err := s.repo.WithTx(ctx, func(repo ledger.Repository) error {
		customer, account, links, catalog, err := s.loadState(ctx, repo, customerID)
		if err != nil {
			return err
		}

		result, err := s.engine.ApplyEntitlements(*account, links, catalog, s.today())
		if err != nil {
			return err
		}

		if err := repo.SaveCashAccount(ctx, result.Account); err != nil {
			return err
		}
		if err := repo.SaveVoucherLinks(ctx, result.Links); err != nil {
			return err
		}
		if len(result.Entries) > 0 {
			if err := repo.AppendTransactionLogEntries(ctx, result.Entries); err != nil {
				return err
			}
		}

		out = EntitlementOutcome{Customer: *customer, Account: result.Account, Links: result.Links, Entries: result.Entries}
		return nil
	})
	return out, err
}

// LookupByCard is the till flow: resolve a card number to its customer
// and materialise any due entitlements before the balance is shown.
func (s *Service) LookupByCard(ctx context.Context, cardNumber int) (EntitlementOutcome, error) {
	customer, err := s.repo.GetCustomerByCardNumber(ctx, cardNumber)
	if err != nil {
		return EntitlementOutcome{}, err
	}
	if customer == nil {
		return EntitlementOutcome{}, ledger.ErrCustomerNotFound
	}
	return s.ApplyEntitlements(ctx, customer.ID)
}

// =============================================================================
// DEBIT / CREDIT
// =============================================================================

// Debit takes a purchase amount out of the customer's combined balance.
func (s *Service) Debit(ctx context.Context, customerID ledger.CustomerID, amount ledger.Money) (ledger.DebitResult, error) {
	var out ledger.DebitResult
	err := s.repo.WithTx(ctx, func(repo ledger.Repository) error {
		_, account, links, _, err := s.loadState(ctx, repo, customerID)
		if err != nil {
			return err
		}

		result, err := s.engine.Debit(*account, links, amount)
		if err != nil {
			return err
		}

		if err := repo.SaveCashAccount(ctx, result.Account); err != nil {
			return err
		}
		if err := repo.SaveVoucherLinks(ctx, result.Links); err != nil {
			return err
		}
		if err := repo.AppendTransactionLogEntries(ctx, []ledger.TransactionLogEntry{result.Entry}); err != nil {
			return err
		}

		out = result
		return nil
	})
	return out, err
}

// Credit adds a cash top-up. entryType distinguishes cashier credits
// from card-gateway ("stripe-credit") payments.
func (s *Service) Credit(ctx context.Context, customerID ledger.CustomerID, amount ledger.Money, entryType ledger.EntryType) (ledger.CreditResult, error) {
	var out ledger.CreditResult
	err := s.repo.WithTx(ctx, func(repo ledger.Repository) error {
		account, err := s.getAccount(ctx, repo, customerID)
		if err != nil {
			return err
		}

		result, err := s.engine.Credit(*account, amount, entryType)
		if err != nil {
			return err
		}

		if err := repo.SaveCashAccount(ctx, result.Account); err != nil {
			return err
		}
		if err := repo.AppendTransactionLogEntries(ctx, []ledger.TransactionLogEntry{result.Entry}); err != nil {
			return err
		}

		out = result
		return nil
	})
	return out, err
}

// =============================================================================
// ACCOUNT OPENING
// =============================================================================

// OpenAccountParams is the account-opening form.
type OpenAccountParams struct {
	CardNumber int
	FirstName  string
	Surname    string
	FreeMeals  bool
}

// OpenAccount creates the customer and their zero-balance cash account.
// Card numbers must be positive and unique across the scheme.
func (s *Service) OpenAccount(ctx context.Context, p OpenAccountParams) (ledger.Customer, error) {
	if p.CardNumber <= 0 {
		return ledger.Customer{}, ledger.ErrInvalidCardNumber
	}

	var customer ledger.Customer
	err := s.repo.WithTx(ctx, func(repo ledger.Repository) error {
		existing, err := repo.GetCustomerByCardNumber(ctx, p.CardNumber)
		if err != nil {
			return err
		}
		if existing != nil {
			return ledger.ErrCardNumberTaken
		}

		customer = ledger.Customer{
			ID:         ledger.CustomerID(uuid.NewString()),
			CardNumber: p.CardNumber,
			FirstName:  p.FirstName,
			Surname:    p.Surname,
			FreeMeals:  p.FreeMeals,
			CreatedAt:  time.Now().UTC(),
		}
		if err := repo.SaveCustomer(ctx, customer); err != nil {
			return err
		}

		account := ledger.CashAccount{
			CustomerID:   customer.ID,
			CashValue:    ledger.Zero(s.cfg.Currency),
			VoucherValue: ledger.Zero(s.cfg.Currency),
		}
		return repo.SaveCashAccount(ctx, account)
	})
	return customer, err
}

// =============================================================================
// VOUCHER ADMINISTRATION
// =============================================================================

// CreateVoucher adds a catalog voucher. Changing a voucher's value only
// affects future entitlement applications; already-reset links keep
// their balance.
func (s *Service) CreateVoucher(ctx context.Context, name string, cadence ledger.Cadence, value ledger.Money) (ledger.Voucher, error) {
	if !value.IsPositive() {
		return ledger.Voucher{}, ledger.ErrNonPositiveAmount
	}
	v := ledger.Voucher{
		ID:      ledger.VoucherID(uuid.NewString()),
		Name:    name,
		Cadence: cadence,
		Value:   value,
	}
	if err := s.repo.SaveVoucher(ctx, v); err != nil {
		return ledger.Voucher{}, err
	}
	return v, nil
}

// AssignVoucher links a catalog voucher to a customer. The link starts
// at zero value; the next entitlement application credits it.
func (s *Service) AssignVoucher(ctx context.Context, customerID ledger.CustomerID, voucherID ledger.VoucherID) (ledger.VoucherLink, error) {
	var link ledger.VoucherLink
	err := s.repo.WithTx(ctx, func(repo ledger.Repository) error {
		customer, err := repo.GetCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return ledger.ErrCustomerNotFound
		}
		voucher, err := repo.GetVoucher(ctx, voucherID)
		if err != nil {
			return err
		}
		if voucher == nil {
			return ledger.ErrVoucherNotFound
		}

		existing, err := repo.ListVoucherLinks(ctx, customerID)
		if err != nil {
			return err
		}
		for _, l := range existing {
			if l.VoucherID == voucherID {
				link = l // already assigned
				return nil
			}
		}

		link = ledger.VoucherLink{
			CustomerID:   customerID,
			VoucherID:    voucherID,
			VoucherValue: ledger.Zero(s.cfg.Currency),
			AssignedAt:   time.Now().UTC(),
		}
		return repo.SaveVoucherLinks(ctx, []ledger.VoucherLink{link})
	})
	return link, err
}

// RemoveVoucher deletes a customer's voucher link. Any balance still on
// the link folds out of the aggregate, and a debit entry records the
// removal so the log reconciles with the balance change.
func (s *Service) RemoveVoucher(ctx context.Context, customerID ledger.CustomerID, voucherID ledger.VoucherID) error {
	return s.repo.WithTx(ctx, func(repo ledger.Repository) error {
		account, err := s.getAccount(ctx, repo, customerID)
		if err != nil {
			return err
		}
		links, err := repo.ListVoucherLinks(ctx, customerID)
		if err != nil {
			return err
		}

		var removed *ledger.VoucherLink
		for i := range links {
			if links[i].VoucherID == voucherID {
				removed = &links[i]
				break
			}
		}
		if removed == nil {
			return ledger.ErrVoucherNotFound
		}

		if err := repo.DeleteVoucherLink(ctx, customerID, voucherID); err != nil {
			return err
		}

		if !removed.VoucherValue.IsZero() {
			account.VoucherValue, err = account.VoucherValue.Sub(removed.VoucherValue)
			if err != nil {
				return err
			}
			if err := repo.SaveCashAccount(ctx, *account); err != nil {
				return err
			}
			entry := ledger.TransactionLogEntry{
				ID:            ledger.EntryID(uuid.NewString()),
				CustomerID:    customerID,
				Timestamp:     time.Now().UTC(),
				Type:          ledger.EntryDebit,
				CashAmount:    ledger.Zero(s.cfg.Currency),
				VoucherAmount: removed.VoucherValue,
			}
			if err := repo.AppendTransactionLogEntries(ctx, []ledger.TransactionLogEntry{entry}); err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// REPORTING
// =============================================================================

func (s *Service) Summary(ctx context.Context) (ledger.SchemeSummary, error) {
	return s.repo.Summary(ctx)
}

// ActivityLog returns the given month's transactions, newest first.
func (s *Service) ActivityLog(ctx context.Context, year int, month time.Month) ([]ledger.TransactionLogEntry, error) {
	return s.repo.ListTransactionsInMonth(ctx, year, month)
}

func (s *Service) Transactions(ctx context.Context, customerID ledger.CustomerID) ([]ledger.TransactionLogEntry, error) {
	return s.repo.ListTransactions(ctx, customerID)
}

// =============================================================================
// STATE LOADING
// =============================================================================

func (s *Service) getAccount(ctx context.Context, repo ledger.Repository, customerID ledger.CustomerID) (*ledger.CashAccount, error) {
	customer, err := repo.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, ledger.ErrCustomerNotFound
	}
	account, err := repo.GetCashAccount(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ledger.ErrCustomerNotFound
	}
	return account, nil
}

// loadState assembles everything the engine needs for one customer:
// the account, their links (materialising the free-meal link for
// eligible customers), and the catalog entries the links reference.
func (s *Service) loadState(ctx context.Context, repo ledger.Repository, customerID ledger.CustomerID) (*ledger.Customer, *ledger.CashAccount, []ledger.VoucherLink, ledger.Catalog, error) {
	customer, err := repo.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if customer == nil {
		return nil, nil, nil, nil, ledger.ErrCustomerNotFound
	}
	account, err := repo.GetCashAccount(ctx, customerID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if account == nil {
		return nil, nil, nil, nil, ledger.ErrCustomerNotFound
	}

	links, err := repo.ListVoucherLinks(ctx, customerID)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	if customer.FreeMeals {
		links, err = s.ensureFreeMealLink(ctx, repo, customer, links)
		if err != nil {
			return nil, nil, nil, nil, err
		}
	}

	catalog := make(ledger.Catalog, len(links))
	for _, link := range links {
		if _, ok := catalog[link.VoucherID]; ok {
			continue
		}
		voucher, err := repo.GetVoucher(ctx, link.VoucherID)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		if voucher == nil {
			return nil, nil, nil, nil, &ledger.CatalogError{CustomerID: customerID, VoucherID: link.VoucherID}
		}
		catalog[link.VoucherID] = *voucher
	}

	return customer, account, links, catalog, nil
}

// ensureFreeMealLink materialises the reserved free-meal voucher and the
// customer's link to it on first contact.
func (s *Service) ensureFreeMealLink(ctx context.Context, repo ledger.Repository, customer *ledger.Customer, links []ledger.VoucherLink) ([]ledger.VoucherLink, error) {
	for _, l := range links {
		if l.VoucherID == ledger.FreeMealVoucherID {
			return links, nil
		}
	}

	voucher, err := repo.GetVoucher(ctx, ledger.FreeMealVoucherID)
	if err != nil {
		return nil, err
	}
	if voucher == nil {
		value, err := s.cfg.FreeMealValue()
		if err != nil {
			return nil, err
		}
		v := ledger.Voucher{
			ID:      ledger.FreeMealVoucherID,
			Name:    "Free school meals",
			Cadence: ledger.Daily,
			Value:   value,
		}
		if err := repo.SaveVoucher(ctx, v); err != nil {
			return nil, err
		}
	}

	link := ledger.VoucherLink{
		CustomerID:   customer.ID,
		VoucherID:    ledger.FreeMealVoucherID,
		VoucherValue: ledger.Zero(s.cfg.Currency),
		AssignedAt:   time.Now().UTC(),
	}
	if err := repo.SaveVoucherLinks(ctx, []ledger.VoucherLink{link}); err != nil {
		return nil, err
	}
	return append(links, link), nil
}
