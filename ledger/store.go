/*
store.go - Record store interfaces

PURPOSE:
  Defines the boundary between the engine's callers and persistence.
  Fetches return row snapshots for the engine to fold; writes are
  independent single-row inserts - after a successful write the caller
  re-fetches and re-aggregates, the engine never patches its own output.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite store
  - ledger/store/memory.go: In-memory store for tests and demos

RETRY POLICY:
  Retries on transient failures belong to implementations (bounded
  exponential backoff, small attempt count), not to callers. After
  exhaustion implementations surface ErrStoreUnavailable; callers keep
  showing their last-known-good aggregate.
*/
package ledger

import (
	"context"
	"time"
)

// RecordStore is the persistence boundary for the four record tables.
type RecordStore interface {
	// FetchExpenses returns expense rows visible under scope,
	// expense-date ascending.
	FetchExpenses(ctx context.Context, scope QueryScope) ([]ExpenseRow, error)

	// FetchPayments returns payment rows visible under scope,
	// payment-date ascending.
	FetchPayments(ctx context.Context, scope QueryScope) ([]PaymentRow, error)

	// FetchUsers returns directory rows visible under scope, name ascending.
	FetchUsers(ctx context.Context, scope QueryScope) ([]UserRow, error)

	// FetchProfile returns the profile for a username, or
	// ErrProfileNotFound.
	FetchProfile(ctx context.Context, username string) (*Profile, error)

	// AddExpense inserts one expense row. Rows are immutable afterwards.
	AddExpense(ctx context.Context, e ExpenseRow) error

	// AddPayment inserts one payment row. Rows are immutable afterwards.
	AddPayment(ctx context.Context, p PaymentRow) error

	// AddUser inserts a directory entry; ErrUserExists on a taken name.
	AddUser(ctx context.Context, u UserRow) error

	// SaveProfile inserts a profile; ErrProfileExists on a taken username,
	// ErrUnknownUser when no directory entry matches.
	SaveProfile(ctx context.Context, p Profile) error
}

// =============================================================================
// ACTIVITY LOG - Who did what, when (admin-visible)
// =============================================================================

// ActivityEntry records a successful write for the admin activity view.
type ActivityEntry struct {
	ID     string
	At     time.Time
	Actor  string
	Role   Role
	Action string // e.g. "add_expense", "restore_backup"
	Detail string
}

// ActivityStore persists the activity trail.
type ActivityStore interface {
	RecordActivity(ctx context.Context, entry ActivityEntry) error

	// FetchActivity returns entries newest-first, at most limit.
	FetchActivity(ctx context.Context, limit int) ([]ActivityEntry, error)
}

// =============================================================================
// BACKUP - Wholesale snapshot and restore
// =============================================================================

// Backup is a complete snapshot of the record tables.
type Backup struct {
	TakenAt  time.Time    `json:"taken_at"`
	Users    []UserRow    `json:"users"`
	Expenses []ExpenseRow `json:"expenses"`
	Payments []PaymentRow `json:"payments"`
	Profiles []Profile    `json:"profiles"`
}

// BackupStore supports snapshot export and wholesale restore. Restore
// replaces all four tables atomically; it is the only bulk mutation in
// the system.
type BackupStore interface {
	Snapshot(ctx context.Context) (*Backup, error)
	Restore(ctx context.Context, b *Backup) error
}

// Store is the full capability set the HTTP layer wires against.
type Store interface {
	RecordStore
	ActivityStore
	BackupStore
}
