// Package store provides an in-memory Repository implementation for
// tests and development.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/canteen/cashless-engine/ledger"
)

// =============================================================================
// MEMORY REPOSITORY
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	currency  string
	customers map[ledger.CustomerID]ledger.Customer
	accounts  map[ledger.CustomerID]ledger.CashAccount
	vouchers  map[ledger.VoucherID]ledger.Voucher
	links     map[ledger.CustomerID][]ledger.VoucherLink
	entries   []ledger.TransactionLogEntry
}

func NewMemory(currency string) *Memory {
	return &Memory{
		currency:  currency,
		customers: make(map[ledger.CustomerID]ledger.Customer),
		accounts:  make(map[ledger.CustomerID]ledger.CashAccount),
		vouchers:  make(map[ledger.VoucherID]ledger.Voucher),
		links:     make(map[ledger.CustomerID][]ledger.VoucherLink),
	}
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (m *Memory) GetCustomer(_ context.Context, id ledger.CustomerID) (*ledger.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Memory) GetCustomerByCardNumber(_ context.Context, cardNumber int) (*ledger.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.customers {
		if c.CardNumber == cardNumber {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (m *Memory) SaveCustomer(_ context.Context, c ledger.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[c.ID] = c
	return nil
}

func (m *Memory) ListCustomers(_ context.Context) ([]ledger.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.Customer, 0, len(m.customers))
	for _, c := range m.customers {
		out = append(out, c)
	}
	// Surname then first name, the register's display order.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Surname != out[j].Surname {
			return out[i].Surname < out[j].Surname
		}
		return out[i].FirstName < out[j].FirstName
	})
	return out, nil
}

// =============================================================================
// CASH ACCOUNTS
// =============================================================================

func (m *Memory) GetCashAccount(_ context.Context, customerID ledger.CustomerID) (*ledger.CashAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[customerID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *Memory) SaveCashAccount(_ context.Context, a ledger.CashAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.CustomerID] = a
	return nil
}

// =============================================================================
// VOUCHER CATALOG
// =============================================================================

func (m *Memory) GetVoucher(_ context.Context, id ledger.VoucherID) (*ledger.Voucher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vouchers[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (m *Memory) SaveVoucher(_ context.Context, v ledger.Voucher) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vouchers[v.ID] = v
	return nil
}

func (m *Memory) ListVouchers(_ context.Context) ([]ledger.Voucher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.Voucher, 0, len(m.vouchers))
	for _, v := range m.vouchers {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// =============================================================================
// VOUCHER LINKS
// =============================================================================

func (m *Memory) ListVoucherLinks(_ context.Context, customerID ledger.CustomerID) ([]ledger.VoucherLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	links := m.links[customerID]
	out := make([]ledger.VoucherLink, len(links))
	copy(out, links)
	return out, nil
}

func (m *Memory) SaveVoucherLinks(_ context.Context, links []ledger.VoucherLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, link := range links {
		existing := m.links[link.CustomerID]
		replaced := false
		for i := range existing {
			if existing[i].VoucherID == link.VoucherID {
				existing[i] = link
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, link)
		}
		m.links[link.CustomerID] = existing
	}
	return nil
}

func (m *Memory) DeleteVoucherLink(_ context.Context, customerID ledger.CustomerID, voucherID ledger.VoucherID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	links := m.links[customerID]
	for i := range links {
		if links[i].VoucherID == voucherID {
			m.links[customerID] = append(links[:i:i], links[i+1:]...)
			return nil
		}
	}
	return nil
}

// =============================================================================
// TRANSACTION LOG (append-only)
// =============================================================================

func (m *Memory) AppendTransactionLogEntries(_ context.Context, entries []ledger.TransactionLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *Memory) ListTransactions(_ context.Context, customerID ledger.CustomerID) ([]ledger.TransactionLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.TransactionLogEntry
	for _, e := range m.entries {
		if e.CustomerID == customerID {
			out = append(out, e)
		}
	}
	sortEntriesNewestFirst(out)
	return out, nil
}

func (m *Memory) ListTransactionsInMonth(_ context.Context, year int, month time.Month) ([]ledger.TransactionLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.TransactionLogEntry
	for _, e := range m.entries {
		if e.Timestamp.Year() == year && e.Timestamp.Month() == month {
			out = append(out, e)
		}
	}
	sortEntriesNewestFirst(out)
	return out, nil
}

func sortEntriesNewestFirst(entries []ledger.TransactionLogEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
}

// =============================================================================
// REPORTING
// =============================================================================

func (m *Memory) Summary(_ context.Context) (ledger.SchemeSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := ledger.Zero(m.currency)
	for _, a := range m.accounts {
		var err error
		total, err = total.Add(a.CashValue)
		if err != nil {
			return ledger.SchemeSummary{}, err
		}
	}
	return ledger.SchemeSummary{
		Customers:     len(m.customers),
		CashAccounts:  len(m.accounts),
		TotalCashHeld: total,
	}, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx simulates a transaction with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Repository) error) error {
	m.mu.Lock()
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.restoreLocked(snapshot)
		m.mu.Unlock()
		return err
	}
	return nil
}

type memorySnapshot struct {
	customers map[ledger.CustomerID]ledger.Customer
	accounts  map[ledger.CustomerID]ledger.CashAccount
	vouchers  map[ledger.VoucherID]ledger.Voucher
	links     map[ledger.CustomerID][]ledger.VoucherLink
	entries   []ledger.TransactionLogEntry
}

func (m *Memory) snapshotLocked() memorySnapshot {
	s := memorySnapshot{
		customers: make(map[ledger.CustomerID]ledger.Customer, len(m.customers)),
		accounts:  make(map[ledger.CustomerID]ledger.CashAccount, len(m.accounts)),
		vouchers:  make(map[ledger.VoucherID]ledger.Voucher, len(m.vouchers)),
		links:     make(map[ledger.CustomerID][]ledger.VoucherLink, len(m.links)),
		entries:   append([]ledger.TransactionLogEntry{}, m.entries...),
	}
	for k, v := range m.customers {
		s.customers[k] = v
	}
	for k, v := range m.accounts {
		s.accounts[k] = v
	}
	for k, v := range m.vouchers {
		s.vouchers[k] = v
	}
	for k, v := range m.links {
		s.links[k] = append([]ledger.VoucherLink{}, v...)
	}
	return s
}

func (m *Memory) restoreLocked(s memorySnapshot) {
	m.customers = s.customers
	m.accounts = s.accounts
	m.vouchers = s.vouchers
	m.links = s.links
	m.entries = s.entries
}
