/*
aggregate.go - Per-user balance reconciliation

PURPOSE:
  Folds raw expense and payment rows into per-user totals. This is the
  only place in the repository where balances are computed; the totals
  endpoint, the summary calculators, and every export consume its output.

ALGORITHM:
  1. Index the user directory by user name
  2. Fold expenses into per-name buckets, skipping anomalous rows
  3. Fold payments into the same buckets; a payment with no matching
     expense bucket opens a zero-expense bucket (see ORPHAN PAYMENTS)
  4. Derive remaining balance, progress, and settlement per bucket
  5. Sort: unsettled first by remaining balance descending, name-ascending
     tie-break, settled last

ORPHAN PAYMENTS:
  A payment whose user name has no expense entry is NOT dropped. It opens
  a zero-expense bucket (balance clamped at zero, settled) and is logged
  as a consistency warning. Received money must stay visible on every
  surface; silently discarding it is the worse failure mode.

ANOMALOUS ROWS:
  Rows with an empty user name or a negative amount are skipped with a
  logged warning. A single malformed row never aborts the computation.

SIDE EFFECTS:
  None beyond logging. Pure function of its inputs; no I/O, no shared
  state, deterministic output order.
*/
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ComputeUserTotals folds expenses and payments into per-user totals.
// users supplies directory metadata (first/last name) and may be nil.
// logger may be nil; anomalies are then dropped silently.
func ComputeUserTotals(expenses []ExpenseRow, payments []PaymentRow, users []UserRow, logger *zap.Logger) []UserTotal {
	if logger == nil {
		logger = zap.NewNop()
	}

	directory := make(map[string]UserRow, len(users))
	for _, u := range users {
		directory[u.UserName] = u
	}

	buckets := make(map[string]*UserTotal)

	bucket := func(name string) *UserTotal {
		t, ok := buckets[name]
		if !ok {
			t = &UserTotal{
				UserName:    name,
				TotalAmount: decimal.Zero,
				TotalPaid:   decimal.Zero,
			}
			if u, ok := directory[name]; ok {
				t.FirstName = u.FirstName
				t.LastName = u.LastName
			}
			buckets[name] = t
		}
		return t
	}

	for _, e := range expenses {
		if e.UserName == "" {
			logger.Warn("skipping expense with no user name", zap.String("expense_id", e.ID))
			continue
		}
		if e.Amount.IsNegative() {
			logger.Warn("skipping expense with negative amount",
				zap.String("expense_id", e.ID),
				zap.String("user_name", e.UserName),
				zap.String("amount", e.Amount.String()))
			continue
		}
		t := bucket(e.UserName)
		t.TotalAmount = t.TotalAmount.Add(e.Amount)
	}

	for _, p := range payments {
		if p.UserName == "" {
			logger.Warn("skipping payment with no user name", zap.String("payment_id", p.ID))
			continue
		}
		if p.Amount.IsNegative() {
			logger.Warn("skipping payment with negative amount",
				zap.String("payment_id", p.ID),
				zap.String("user_name", p.UserName),
				zap.String("amount", p.Amount.String()))
			continue
		}
		if _, ok := buckets[p.UserName]; !ok {
			logger.Warn("payment without matching expenses, keeping as zero-expense entry",
				zap.String("payment_id", p.ID),
				zap.String("user_name", p.UserName),
				zap.String("amount", p.Amount.String()))
		}
		t := bucket(p.UserName)
		t.TotalPaid = t.TotalPaid.Add(p.Amount)
		t.Payments = append(t.Payments, p)
	}

	totals := make([]UserTotal, 0, len(buckets))
	for _, t := range buckets {
		finishTotal(t)
		totals = append(totals, *t)
	}

	sortTotals(totals)
	return totals
}

// finishTotal derives the computed fields once the fold is complete.
func finishTotal(t *UserTotal) {
	remaining := t.TotalAmount.Sub(t.TotalPaid)
	if remaining.IsNegative() {
		// Overpayment clamps to zero; it is not carried as credit.
		remaining = decimal.Zero
	}
	t.RemainingBalance = remaining
	t.IsSettled = remaining.LessThanOrEqual(settleTolerance)

	if t.TotalAmount.IsPositive() {
		progress := t.TotalPaid.Div(t.TotalAmount).Mul(hundred)
		if progress.GreaterThan(hundred) {
			progress = hundred
		}
		t.PaymentProgress = progress.Round(2)
	} else {
		t.PaymentProgress = decimal.Zero
	}

	// Newest payments first; ID breaks created-at ties so the order is
	// stable across runs.
	sort.SliceStable(t.Payments, func(i, j int) bool {
		if !t.Payments[i].CreatedAt.Equal(t.Payments[j].CreatedAt) {
			return t.Payments[i].CreatedAt.After(t.Payments[j].CreatedAt)
		}
		return t.Payments[i].ID < t.Payments[j].ID
	})
}

// sortTotals orders unsettled users first by descending remaining
// balance, then settled users, with user name breaking ties. The order
// is deterministic so exports and fixtures reproduce exactly.
func sortTotals(totals []UserTotal) {
	sort.SliceStable(totals, func(i, j int) bool {
		a, b := totals[i], totals[j]
		if a.IsSettled != b.IsSettled {
			return !a.IsSettled
		}
		if cmp := a.RemainingBalance.Cmp(b.RemainingBalance); cmp != 0 {
			return cmp > 0
		}
		return a.UserName < b.UserName
	})
}
