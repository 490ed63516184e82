/*
Package ledger provides the core balance reconciliation engine.

PURPOSE:
  This package contains the domain types and pure algorithms for turning
  raw canteen records (expenses, payments, users) into derived balances,
  period summaries, and role-scoped views. Every surface of the system
  (list endpoints, summary endpoint, exports) goes through this package so
  that totals, rounding, settlement thresholds, and sort order are
  computed in exactly one place.

KEY CONCEPTS IN THIS FILE (types.go):
  - ExpenseRow / PaymentRow: Immutable money records keyed by user name
  - UserRow / Profile: Directory entry and the authenticated actor's role
  - UserTotal: Derived per-user rollup, recomputed on every read
  - ActorContext: Explicit identity+role, passed into every call

DESIGN PRINCIPLES:
  1. Precision: All money is decimal.Decimal - never float arithmetic
  2. Derivation: Balances are computed from rows, never stored
  3. Determinism: Identical inputs produce identical, identically-ordered
     outputs (required for reproducible exports)
  4. Explicit identity: No ambient session state; callers pass ActorContext

SEE ALSO:
  - aggregate.go: UserTotal computation
  - summary.go: Period rollups for reports
  - scope.go: Role-based row visibility and permissions
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ROLES AND ACTOR IDENTITY
// =============================================================================

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleHR      Role = "hr"
	RoleCanteen Role = "canteen"
	RoleUser    Role = "user"
)

// ValidRole reports whether r is one of the four known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleHR, RoleCanteen, RoleUser:
		return true
	}
	return false
}

// ActorContext identifies who is performing an operation. It is passed
// explicitly into every scoped call; nothing in this package reads global
// session state.
type ActorContext struct {
	UserID   string
	Username string
	Role     Role
}

// =============================================================================
// STORED ROWS
// =============================================================================

// ExpenseRow is a debit recorded against a user for a canteen purchase.
// Rows are immutable once created; there is no edit or delete flow.
//
// UserName is the join key between expenses, payments, and the user
// directory. Matching is exact string equality. The API layer validates
// names against the directory before writing, so a typo is rejected at
// the boundary instead of silently opening a new balance bucket.
type ExpenseRow struct {
	ID          string
	UserName    string
	Amount      decimal.Decimal
	ExpenseDate time.Time // day granularity
	Note        string
	CreatedAt   time.Time
}

// PaymentRow is a credit recorded against a user, reducing their
// outstanding balance. Payments apply to the user's aggregate balance,
// never to individual expense lines.
type PaymentRow struct {
	ID          string
	UserName    string
	Amount      decimal.Decimal
	PaymentDate time.Time // day granularity
	CreatedAt   time.Time
}

// UserRow is a directory entry. It holds no balance; balances are always
// derived from expense and payment rows.
type UserRow struct {
	ID        string
	UserName  string // unique
	FirstName string
	LastName  string
	CreatedAt time.Time
}

// Profile links an authenticated account to a directory user and carries
// the role that drives authorization. Signup requires a matching UserRow.
type Profile struct {
	ID        string
	Username  string
	Role      Role
	FirstName string
	LastName  string
	CreatedAt time.Time
}

// =============================================================================
// DERIVED: PER-USER TOTALS
// =============================================================================

// settleTolerance is the rounding tolerance below which a remaining
// balance counts as settled.
var settleTolerance = decimal.NewFromFloat(0.01)

var hundred = decimal.NewFromInt(100)

// UserTotal is the per-user rollup every surface displays. It has no
// lifecycle: it is recomputed from scratch on every fetch.
type UserTotal struct {
	UserName  string
	FirstName string
	LastName  string

	TotalAmount      decimal.Decimal // sum of the user's expenses
	TotalPaid        decimal.Decimal // sum of the user's payments
	RemainingBalance decimal.Decimal // max(0, TotalAmount - TotalPaid)
	PaymentProgress  decimal.Decimal // 0..100, 0 when TotalAmount is 0
	IsSettled        bool            // RemainingBalance <= 0.01

	Payments []PaymentRow // the user's payments, newest first
}

// DisplayName returns "First Last" when the directory knows the user,
// otherwise the raw user name.
func (t UserTotal) DisplayName() string {
	if t.FirstName == "" && t.LastName == "" {
		return t.UserName
	}
	if t.LastName == "" {
		return t.FirstName
	}
	if t.FirstName == "" {
		return t.LastName
	}
	return t.FirstName + " " + t.LastName
}

// =============================================================================
// MONEY PARSING
// =============================================================================

// ParseAmount parses a currency amount from its string form. The empty
// string, non-numeric input, and non-positive values are rejected; this
// is the validation gate for all write paths.
func ParseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, &FieldError{Field: "amount", Message: "amount is required"}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &FieldError{Field: "amount", Message: "amount must be a number"}
	}
	if !d.IsPositive() {
		return decimal.Zero, &FieldError{Field: "amount", Message: "amount must be greater than zero"}
	}
	return d, nil
}
