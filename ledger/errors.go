/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Handlers and stores wrap these with additional context.

ERROR CATEGORIES:
  1. Validation errors - Bad input, rejected before any write
  2. Authorization errors - Role lacks permission for an action
  3. Consistency errors - Rows that reference unknown users
  4. Store errors - Database-level failures

USAGE:
  if errors.Is(err, ledger.ErrAccessDenied) {
      writeError(w, http.StatusForbidden, "Access denied", nil)
  }

SEE ALSO:
  - aggregate.go: Logs (never returns) data-anomaly conditions
  - api/handlers.go: Maps these errors to HTTP status codes
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
	// ErrValidation is the category sentinel for input validation failures.
	// Concrete failures are FieldError values that unwrap to this.
	ErrValidation = errors.New("validation failed")

	// ErrAccessDenied is returned when the actor's role does not permit the
	// attempted action. It must never be downgraded to a silent no-op.
	ErrAccessDenied = errors.New("access denied")

	// ErrUnknownUser is returned when a write references a user name with
	// no directory entry.
	ErrUnknownUser = errors.New("unknown user")

	// ErrUserExists is returned when creating a directory entry whose user
	// name is already taken.
	ErrUserExists = errors.New("user already exists")

	// ErrProfileNotFound is returned when no profile matches the username.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrProfileExists is returned on signup for an already-registered name.
	ErrProfileExists = errors.New("profile already exists")

	// ErrStoreUnavailable is returned after retries against the record
	// store are exhausted. Callers keep their last-known-good aggregate.
	ErrStoreUnavailable = errors.New("record store unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FieldError names the offending field in a validation failure so the UI
// can surface it next to the input.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Message) }
func (e *FieldError) Unwrap() error { return ErrValidation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is the caller's fault and maps
// to a 4xx status rather than a 500.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrAccessDenied) ||
		errors.Is(err, ErrUnknownUser) ||
		errors.Is(err, ErrUserExists) ||
		errors.Is(err, ErrProfileExists)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProfileNotFound)
}
