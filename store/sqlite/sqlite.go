/*
Package sqlite provides the SQLite-backed implementation of ledger.Store.

PURPOSE:
  Implements the record store (users, expenses, payments, profiles), the
  activity log, and backup snapshot/restore on SQLite. The same patterns
  apply to PostgreSQL in production - only dialect differences.

IMMUTABILITY:
  expenses and payments have no UPDATE path. Rows are inserted once and
  only ever replaced wholesale by a backup restore.

WAL MODE:
  The database is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

RETRY:
  Transient SQLITE_BUSY failures are retried with bounded exponential
  backoff (3 attempts). After exhaustion the error wraps
  ledger.ErrStoreUnavailable and the caller decides what to show.

USAGE:
  store, err := sqlite.New("./data/canteen.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/mealdesk/canteen-ledger/ledger"
)

const (
	dayFormat   = "2006-01-02"
	maxAttempts = 3
)

// Store implements ledger.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Directory of users balances are tracked for
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		user_name TEXT NOT NULL UNIQUE,
		first_name TEXT,
		last_name TEXT,
		created_at TEXT NOT NULL
	);

	-- Expenses (immutable once inserted)
	CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		user_name TEXT NOT NULL,
		amount TEXT NOT NULL,
		expense_date TEXT NOT NULL,
		note TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_expenses_user_name ON expenses(user_name);
	CREATE INDEX IF NOT EXISTS idx_expenses_date ON expenses(expense_date);

	-- Payments (immutable once inserted)
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		user_name TEXT NOT NULL,
		amount TEXT NOT NULL,
		payment_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_user_name ON payments(user_name);
	CREATE INDEX IF NOT EXISTS idx_payments_date ON payments(payment_date);

	-- Profiles (authorization; one per account)
	CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL,
		first_name TEXT,
		last_name TEXT,
		created_at TEXT NOT NULL
	);

	-- Activity log (admin-visible audit trail)
	CREATE TABLE IF NOT EXISTS activity (
		id TEXT PRIMARY KEY,
		at TEXT NOT NULL,
		actor TEXT NOT NULL,
		role TEXT NOT NULL,
		action TEXT NOT NULL,
		detail TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_activity_at ON activity(at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// FETCHES (ledger.RecordStore)
// =============================================================================

func (s *Store) FetchExpenses(ctx context.Context, scope ledger.QueryScope) ([]ledger.ExpenseRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, user_name, amount, expense_date, note, created_at
		FROM expenses %s
		ORDER BY expense_date ASC, created_at ASC
	`
	where, args := scopeClause(scope)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(query, where), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var out []ledger.ExpenseRow
	for rows.Next() {
		var (
			e           ledger.ExpenseRow
			amount      string
			expenseDate string
			note        sql.NullString
			createdAt   string
		)
		if err := rows.Scan(&e.ID, &e.UserName, &amount, &expenseDate, &note, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		e.Amount = parseStoredAmount(amount)
		e.ExpenseDate, _ = time.Parse(dayFormat, expenseDate)
		e.Note = note.String
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) FetchPayments(ctx context.Context, scope ledger.QueryScope) ([]ledger.PaymentRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, user_name, amount, payment_date, created_at
		FROM payments %s
		ORDER BY payment_date ASC, created_at ASC
	`
	where, args := scopeClause(scope)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(query, where), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var out []ledger.PaymentRow
	for rows.Next() {
		var (
			p           ledger.PaymentRow
			amount      string
			paymentDate string
			createdAt   string
		)
		if err := rows.Scan(&p.ID, &p.UserName, &amount, &paymentDate, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.Amount = parseStoredAmount(amount)
		p.PaymentDate, _ = time.Parse(dayFormat, paymentDate)
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) FetchUsers(ctx context.Context, scope ledger.QueryScope) ([]ledger.UserRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, user_name, first_name, last_name, created_at
		FROM users %s
		ORDER BY user_name ASC
	`
	where, args := scopeClause(scope)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(query, where), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var out []ledger.UserRow
	for rows.Next() {
		var (
			u           ledger.UserRow
			first, last sql.NullString
			createdAt   string
		)
		if err := rows.Scan(&u.ID, &u.UserName, &first, &last, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.FirstName = first.String
		u.LastName = last.String
		u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) FetchProfile(ctx context.Context, username string) (*ledger.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		p           ledger.Profile
		first, last sql.NullString
		createdAt   string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, role, first_name, last_name, created_at FROM profiles WHERE username = ?",
		username,
	).Scan(&p.ID, &p.Username, &p.Role, &first, &last, &createdAt)

	if err == sql.ErrNoRows {
		return nil, ledger.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	p.FirstName = first.String
	p.LastName = last.String
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}

// scopeClause builds the WHERE clause for a query scope.
func scopeClause(scope ledger.QueryScope) (string, []any) {
	if scope.All {
		return "", nil
	}
	return "WHERE user_name = ?", []any{scope.UserName}
}

// =============================================================================
// WRITES (ledger.RecordStore)
// =============================================================================

func (s *Store) AddExpense(ctx context.Context, e ledger.ExpenseRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			"INSERT INTO expenses (id, user_name, amount, expense_date, note, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			e.ID, e.UserName, e.Amount.String(),
			e.ExpenseDate.Format(dayFormat), e.Note,
			e.CreatedAt.UTC().Format(time.RFC3339),
		)
		return err
	})
}

func (s *Store) AddPayment(ctx context.Context, p ledger.PaymentRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			"INSERT INTO payments (id, user_name, amount, payment_date, created_at) VALUES (?, ?, ?, ?, ?)",
			p.ID, p.UserName, p.Amount.String(),
			p.PaymentDate.Format(dayFormat),
			p.CreatedAt.UTC().Format(time.RFC3339),
		)
		return err
	})
}

func (s *Store) AddUser(ctx context.Context, u ledger.UserRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			"INSERT INTO users (id, user_name, first_name, last_name, created_at) VALUES (?, ?, ?, ?, ?)",
			u.ID, u.UserName, u.FirstName, u.LastName,
			u.CreatedAt.UTC().Format(time.RFC3339),
		)
		return err
	})
	if isUniqueConstraintError(err) {
		return ledger.ErrUserExists
	}
	return err
}

func (s *Store) SaveProfile(ctx context.Context, p ledger.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Signup requires a matching directory entry.
	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE user_name = ?", p.Username,
	).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return ledger.ErrUnknownUser
	}

	err := s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			"INSERT INTO profiles (id, username, role, first_name, last_name, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			p.ID, p.Username, string(p.Role), p.FirstName, p.LastName,
			p.CreatedAt.UTC().Format(time.RFC3339),
		)
		return err
	})
	if isUniqueConstraintError(err) {
		return ledger.ErrProfileExists
	}
	return err
}

// =============================================================================
// ACTIVITY LOG (ledger.ActivityStore)
// =============================================================================

func (s *Store) RecordActivity(ctx context.Context, entry ledger.ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			"INSERT INTO activity (id, at, actor, role, action, detail) VALUES (?, ?, ?, ?, ?, ?)",
			entry.ID, entry.At.UTC().Format(time.RFC3339),
			entry.Actor, string(entry.Role), entry.Action, entry.Detail,
		)
		return err
	})
}

func (s *Store) FetchActivity(ctx context.Context, limit int) ([]ledger.ActivityEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, at, actor, role, action, detail FROM activity ORDER BY at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	var out []ledger.ActivityEntry
	for rows.Next() {
		var (
			e      ledger.ActivityEntry
			at     string
			detail sql.NullString
		)
		if err := rows.Scan(&e.ID, &at, &e.Actor, &e.Role, &e.Action, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan activity entry: %w", err)
		}
		e.At, _ = time.Parse(time.RFC3339, at)
		e.Detail = detail.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// BACKUP (ledger.BackupStore)
// =============================================================================

func (s *Store) Snapshot(ctx context.Context) (*ledger.Backup, error) {
	all := ledger.QueryScope{All: true}

	users, err := s.FetchUsers(ctx, all)
	if err != nil {
		return nil, err
	}
	expenses, err := s.FetchExpenses(ctx, all)
	if err != nil {
		return nil, err
	}
	payments, err := s.FetchPayments(ctx, all)
	if err != nil {
		return nil, err
	}
	profiles, err := s.fetchAllProfiles(ctx)
	if err != nil {
		return nil, err
	}

	return &ledger.Backup{
		TakenAt:  time.Now().UTC(),
		Users:    users,
		Expenses: expenses,
		Payments: payments,
		Profiles: profiles,
	}, nil
}

// Restore wholesale-replaces all four tables in a single transaction.
func (s *Store) Restore(ctx context.Context, b *ledger.Backup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin restore: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"expenses", "payments", "profiles", "users"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}

	for _, u := range b.Users {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO users (id, user_name, first_name, last_name, created_at) VALUES (?, ?, ?, ?, ?)",
			u.ID, u.UserName, u.FirstName, u.LastName, u.CreatedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return err
		}
	}
	for _, e := range b.Expenses {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO expenses (id, user_name, amount, expense_date, note, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			e.ID, e.UserName, e.Amount.String(), e.ExpenseDate.Format(dayFormat), e.Note,
			e.CreatedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return err
		}
	}
	for _, p := range b.Payments {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO payments (id, user_name, amount, payment_date, created_at) VALUES (?, ?, ?, ?, ?)",
			p.ID, p.UserName, p.Amount.String(), p.PaymentDate.Format(dayFormat),
			p.CreatedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return err
		}
	}
	for _, p := range b.Profiles {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO profiles (id, username, role, first_name, last_name, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			p.ID, p.Username, string(p.Role), p.FirstName, p.LastName,
			p.CreatedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) fetchAllProfiles(ctx context.Context) ([]ledger.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, username, role, first_name, last_name, created_at FROM profiles ORDER BY username ASC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Profile
	for rows.Next() {
		var (
			p           ledger.Profile
			first, last sql.NullString
			createdAt   string
		)
		if err := rows.Scan(&p.ID, &p.Username, &p.Role, &first, &last, &createdAt); err != nil {
			return nil, err
		}
		p.FirstName = first.String
		p.LastName = last.String
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

// withRetry retries transient SQLITE_BUSY failures with bounded
// exponential backoff, then surfaces ErrStoreUnavailable.
func (s *Store) withRetry(ctx context.Context, fn func() error) error {
	backoff := 50 * time.Millisecond
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn()
		if err == nil || !isBusyError(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("%w: %v", ledger.ErrStoreUnavailable, err)
}

func parseStoredAmount(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isBusyError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "database is locked") ||
		strings.Contains(err.Error(), "database table is locked"))
}
