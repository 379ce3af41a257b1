/*
Package sqlite provides the SQLite-backed Repository implementation.

PURPOSE:
  Persists customers, cash accounts, the voucher catalog, voucher links,
  and the transaction log. The same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  transaction_log has exactly one write path (INSERT). No UPDATE or
  DELETE statement for it exists anywhere in this package.

KEY TABLES:
  customers:       cardholder records (card_number UNIQUE)
  cash_accounts:   one per customer, cash + aggregate voucher balance
  vouchers:        catalog entries (name, cadence, value)
  voucher_links:   per-customer assignments with their own balance
  transaction_log: immutable ledger of every balance change

MONEY REPRESENTATION:
  Amounts are stored as decimal strings alongside their currency code
  and re-parsed through ledger.NewMoneyFromString on read; the database
  never does arithmetic on them.

WAL MODE:
  SQLite is opened with WAL and foreign keys on, matching the usual
  single-writer deployment on a till machine.

SEE ALSO:
  - ledger/store.go:        the Repository contract
  - ledger/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/canteen/cashless-engine/ledger"
)

// timestampLayout is fixed-width (nine fractional digits, always UTC)
// so stored timestamps sort and compare lexically in SQL. RFC3339Nano
// trims trailing zeros, which would break ORDER BY and range bounds.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements ledger.Repository using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
	queries
}

// New opens (creating if needed) the database at dbPath. The currency
// types empty roll-ups; stored rows carry their own currency column.
// Use ":memory:" for an in-memory database.
func New(dbPath, currency string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single connection: SQLite allows one writer, and ":memory:"
	// databases are per-connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, queries: queries{db: db, currency: currency}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		card_number INTEGER NOT NULL UNIQUE,
		first_name TEXT NOT NULL,
		surname TEXT NOT NULL,
		free_meals BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_customers_name
		ON customers(surname, first_name);

	CREATE TABLE IF NOT EXISTS cash_accounts (
		customer_id TEXT PRIMARY KEY REFERENCES customers(id),
		cash_value TEXT NOT NULL,
		voucher_value TEXT NOT NULL,
		currency TEXT NOT NULL,
		voucher_last_applied TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS vouchers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		cadence TEXT NOT NULL,
		value TEXT NOT NULL,
		currency TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS voucher_links (
		customer_id TEXT NOT NULL REFERENCES customers(id),
		voucher_id TEXT NOT NULL REFERENCES vouchers(id),
		last_applied TEXT NOT NULL DEFAULT '',
		voucher_value TEXT NOT NULL,
		currency TEXT NOT NULL,
		assigned_at TEXT NOT NULL,
		PRIMARY KEY (customer_id, voucher_id)
	);

	-- Append-only ledger of every balance change
	CREATE TABLE IF NOT EXISTS transaction_log (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers(id),
		timestamp TEXT NOT NULL,
		entry_type TEXT NOT NULL,
		cash_amount TEXT NOT NULL,
		voucher_amount TEXT NOT NULL,
		currency TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_log_customer_time
		ON transaction_log(customer_id, timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_log_time
		ON transaction_log(timestamp DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction. The serializing
// mutex keeps the single SQLite writer happy under concurrent requests.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txRepo{queries: queries{db: tx, currency: s.currency}}); err != nil {
		return err
	}
	return tx.Commit()
}

// txRepo is the Repository view inside one open transaction.
type txRepo struct {
	queries
}

// WithTx on an already-open transaction runs fn in place; SQLite has no
// nested transactions and the outer commit/rollback governs.
func (t *txRepo) WithTx(_ context.Context, fn func(ledger.Repository) error) error {
	return fn(t)
}

// =============================================================================
// QUERIES - shared between *sql.DB and *sql.Tx
// =============================================================================

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db       dbtx
	currency string
}

// ----- customers -----

func (q queries) GetCustomer(ctx context.Context, id ledger.CustomerID) (*ledger.Customer, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, card_number, first_name, surname, free_meals, created_at
		FROM customers WHERE id = ?`, id)
	return scanCustomer(row)
}

func (q queries) GetCustomerByCardNumber(ctx context.Context, cardNumber int) (*ledger.Customer, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, card_number, first_name, surname, free_meals, created_at
		FROM customers WHERE card_number = ?`, cardNumber)
	return scanCustomer(row)
}

func (q queries) SaveCustomer(ctx context.Context, c ledger.Customer) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO customers (id, card_number, first_name, surname, free_meals, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			card_number = excluded.card_number,
			first_name  = excluded.first_name,
			surname     = excluded.surname,
			free_meals  = excluded.free_meals`,
		c.ID, c.CardNumber, c.FirstName, c.Surname, c.FreeMeals,
		c.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save customer: %w", err)
	}
	return nil
}

func (q queries) ListCustomers(ctx context.Context) ([]ledger.Customer, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, card_number, first_name, surname, free_meals, created_at
		FROM customers ORDER BY surname, first_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	var customers []ledger.Customer
	for rows.Next() {
		c, err := scanCustomerRow(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func scanCustomer(row *sql.Row) (*ledger.Customer, error) {
	var (
		c         ledger.Customer
		createdAt string
	)
	err := row.Scan(&c.ID, &c.CardNumber, &c.FirstName, &c.Surname, &c.FreeMeals, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan customer: %w", err)
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &c, nil
}

func scanCustomerRow(rows *sql.Rows) (ledger.Customer, error) {
	var (
		c         ledger.Customer
		createdAt string
	)
	if err := rows.Scan(&c.ID, &c.CardNumber, &c.FirstName, &c.Surname, &c.FreeMeals, &createdAt); err != nil {
		return c, fmt.Errorf("failed to scan customer: %w", err)
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return c, nil
}

// ----- cash accounts -----

func (q queries) GetCashAccount(ctx context.Context, customerID ledger.CustomerID) (*ledger.CashAccount, error) {
	var (
		a           ledger.CashAccount
		cashValue   string
		voucherVal  string
		currency    string
		lastApplied string
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT customer_id, cash_value, voucher_value, currency, voucher_last_applied
		FROM cash_accounts WHERE customer_id = ?`, customerID,
	).Scan(&a.CustomerID, &cashValue, &voucherVal, &currency, &lastApplied)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan cash account: %w", err)
	}

	if a.CashValue, err = ledger.NewMoneyFromString(cashValue, currency); err != nil {
		return nil, err
	}
	if a.VoucherValue, err = ledger.NewMoneyFromString(voucherVal, currency); err != nil {
		return nil, err
	}
	a.VoucherLastApplied = parseDate(lastApplied)
	return &a, nil
}

func (q queries) SaveCashAccount(ctx context.Context, a ledger.CashAccount) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO cash_accounts (customer_id, cash_value, voucher_value, currency, voucher_last_applied)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(customer_id) DO UPDATE SET
			cash_value           = excluded.cash_value,
			voucher_value        = excluded.voucher_value,
			currency             = excluded.currency,
			voucher_last_applied = excluded.voucher_last_applied`,
		a.CustomerID,
		a.CashValue.Amount.String(),
		a.VoucherValue.Amount.String(),
		a.CashValue.Currency,
		formatDate(a.VoucherLastApplied),
	)
	if err != nil {
		return fmt.Errorf("failed to save cash account: %w", err)
	}
	return nil
}

// ----- voucher catalog -----

func (q queries) GetVoucher(ctx context.Context, id ledger.VoucherID) (*ledger.Voucher, error) {
	var (
		v        ledger.Voucher
		cadence  string
		value    string
		currency string
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT id, name, cadence, value, currency FROM vouchers WHERE id = ?`, id,
	).Scan(&v.ID, &v.Name, &cadence, &value, &currency)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan voucher: %w", err)
	}

	if v.Cadence, err = ledger.ParseCadence(cadence); err != nil {
		return nil, err
	}
	if v.Value, err = ledger.NewMoneyFromString(value, currency); err != nil {
		return nil, err
	}
	return &v, nil
}

func (q queries) SaveVoucher(ctx context.Context, v ledger.Voucher) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO vouchers (id, name, cadence, value, currency)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name     = excluded.name,
			cadence  = excluded.cadence,
			value    = excluded.value,
			currency = excluded.currency`,
		v.ID, v.Name, v.Cadence, v.Value.Amount.String(), v.Value.Currency,
	)
	if err != nil {
		return fmt.Errorf("failed to save voucher: %w", err)
	}
	return nil
}

func (q queries) ListVouchers(ctx context.Context) ([]ledger.Voucher, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, name, cadence, value, currency FROM vouchers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list vouchers: %w", err)
	}
	defer rows.Close()

	var vouchers []ledger.Voucher
	for rows.Next() {
		var (
			v        ledger.Voucher
			cadence  string
			value    string
			currency string
		)
		if err := rows.Scan(&v.ID, &v.Name, &cadence, &value, &currency); err != nil {
			return nil, fmt.Errorf("failed to scan voucher: %w", err)
		}
		if v.Cadence, err = ledger.ParseCadence(cadence); err != nil {
			return nil, err
		}
		if v.Value, err = ledger.NewMoneyFromString(value, currency); err != nil {
			return nil, err
		}
		vouchers = append(vouchers, v)
	}
	return vouchers, rows.Err()
}

// ----- voucher links -----

func (q queries) ListVoucherLinks(ctx context.Context, customerID ledger.CustomerID) ([]ledger.VoucherLink, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT customer_id, voucher_id, last_applied, voucher_value, currency, assigned_at
		FROM voucher_links WHERE customer_id = ?
		ORDER BY assigned_at, voucher_id`, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list voucher links: %w", err)
	}
	defer rows.Close()

	var links []ledger.VoucherLink
	for rows.Next() {
		var (
			l           ledger.VoucherLink
			lastApplied string
			value       string
			currency    string
			assignedAt  string
		)
		if err := rows.Scan(&l.CustomerID, &l.VoucherID, &lastApplied, &value, &currency, &assignedAt); err != nil {
			return nil, fmt.Errorf("failed to scan voucher link: %w", err)
		}
		if l.VoucherValue, err = ledger.NewMoneyFromString(value, currency); err != nil {
			return nil, err
		}
		l.LastApplied = parseDate(lastApplied)
		l.AssignedAt, _ = time.Parse(time.RFC3339, assignedAt)
		links = append(links, l)
	}
	return links, rows.Err()
}

func (q queries) SaveVoucherLinks(ctx context.Context, links []ledger.VoucherLink) error {
	for _, l := range links {
		_, err := q.db.ExecContext(ctx, `
			INSERT INTO voucher_links (customer_id, voucher_id, last_applied, voucher_value, currency, assigned_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(customer_id, voucher_id) DO UPDATE SET
				last_applied  = excluded.last_applied,
				voucher_value = excluded.voucher_value,
				currency      = excluded.currency`,
			l.CustomerID, l.VoucherID, formatDate(l.LastApplied),
			l.VoucherValue.Amount.String(), l.VoucherValue.Currency,
			l.AssignedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("failed to save voucher link: %w", err)
		}
	}
	return nil
}

func (q queries) DeleteVoucherLink(ctx context.Context, customerID ledger.CustomerID, voucherID ledger.VoucherID) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM voucher_links WHERE customer_id = ? AND voucher_id = ?`,
		customerID, voucherID)
	if err != nil {
		return fmt.Errorf("failed to delete voucher link: %w", err)
	}
	return nil
}

// ----- transaction log (append-only) -----

func (q queries) AppendTransactionLogEntries(ctx context.Context, entries []ledger.TransactionLogEntry) error {
	for _, e := range entries {
		_, err := q.db.ExecContext(ctx, `
			INSERT INTO transaction_log (id, customer_id, timestamp, entry_type, cash_amount, voucher_amount, currency)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.CustomerID, e.Timestamp.UTC().Format(timestampLayout),
			e.Type, e.CashAmount.Amount.String(), e.VoucherAmount.Amount.String(),
			e.CashAmount.Currency,
		)
		if err != nil {
			return fmt.Errorf("failed to append transaction log entry: %w", err)
		}
	}
	return nil
}

func (q queries) ListTransactions(ctx context.Context, customerID ledger.CustomerID) ([]ledger.TransactionLogEntry, error) {
	return q.queryEntries(ctx, `
		SELECT id, customer_id, timestamp, entry_type, cash_amount, voucher_amount, currency
		FROM transaction_log WHERE customer_id = ?
		ORDER BY timestamp DESC`, customerID)
}

func (q queries) ListTransactionsInMonth(ctx context.Context, year int, month time.Month) ([]ledger.TransactionLogEntry, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return q.queryEntries(ctx, `
		SELECT id, customer_id, timestamp, entry_type, cash_amount, voucher_amount, currency
		FROM transaction_log WHERE timestamp >= ? AND timestamp < ?
		ORDER BY timestamp DESC`,
		start.Format(timestampLayout), end.Format(timestampLayout))
}

func (q queries) queryEntries(ctx context.Context, query string, args ...any) ([]ledger.TransactionLogEntry, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction log: %w", err)
	}
	defer rows.Close()

	var entries []ledger.TransactionLogEntry
	for rows.Next() {
		var (
			e          ledger.TransactionLogEntry
			timestamp  string
			cashAmount string
			voucherAmt string
			currency   string
		)
		if err := rows.Scan(&e.ID, &e.CustomerID, &timestamp, &e.Type, &cashAmount, &voucherAmt, &currency); err != nil {
			return nil, fmt.Errorf("failed to scan transaction log entry: %w", err)
		}
		e.Timestamp, _ = time.Parse(timestampLayout, timestamp)
		if e.CashAmount, err = ledger.NewMoneyFromString(cashAmount, currency); err != nil {
			return nil, err
		}
		if e.VoucherAmount, err = ledger.NewMoneyFromString(voucherAmt, currency); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ----- reporting -----

func (q queries) Summary(ctx context.Context) (ledger.SchemeSummary, error) {
	var summary ledger.SchemeSummary
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`).Scan(&summary.Customers); err != nil {
		return summary, fmt.Errorf("failed to count customers: %w", err)
	}
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cash_accounts`).Scan(&summary.CashAccounts); err != nil {
		return summary, fmt.Errorf("failed to count cash accounts: %w", err)
	}

	// Decimal strings are summed in Go; SQLite's SUM would go through floats.
	rows, err := q.db.QueryContext(ctx, `SELECT cash_value, currency FROM cash_accounts`)
	if err != nil {
		return summary, fmt.Errorf("failed to query cash values: %w", err)
	}
	defer rows.Close()

	total := ledger.Zero(q.currency)
	for rows.Next() {
		var value, currency string
		if err := rows.Scan(&value, &currency); err != nil {
			return summary, fmt.Errorf("failed to scan cash value: %w", err)
		}
		m, err := ledger.NewMoneyFromString(value, currency)
		if err != nil {
			return summary, err
		}
		if total, err = total.Add(m); err != nil {
			return summary, err
		}
	}
	summary.TotalCashHeld = total
	return summary, rows.Err()
}

// =============================================================================
// DATE ENCODING
// =============================================================================

// Zero dates are stored as the empty string.
func formatDate(d ledger.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

func parseDate(s string) ledger.Date {
	if s == "" {
		return ledger.Date{}
	}
	d, err := ledger.ParseDate(s)
	if err != nil {
		return ledger.Date{}
	}
	return d
}
