/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	data for testing and demos. Each scenario creates users, profiles,
	expenses, and payments that demonstrate specific balance states.

AVAILABLE SCENARIOS:

	small-canteen:    Three users, a handful of records, mixed balances
	busy-month:       A month of daily activity for trend charts
	settlement-mix:   Settled, partially paid, and overpaid users

HOW SCENARIOS WORK:
 1. Reset the store (restore an empty backup)
 2. Create directory users and one profile per role
 3. Add expense and payment rows

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "small-canteen"}

NOTE:

	Scenarios wipe all data. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Shared response helpers
  - ledger/store.go: BackupStore used for the reset
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mealdesk/canteen-ledger/ledger"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "small-canteen",
		Name:        "Small Canteen",
		Description: "Three users with a handful of expenses and payments",
	},
	{
		ID:          "busy-month",
		Name:        "Busy Month",
		Description: "A month of daily activity for trend charts",
	},
	{
		ID:          "settlement-mix",
		Name:        "Settlement Mix",
		Description: "Settled, partially paid, and overpaid balances side by side",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and seeds the selected scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, ledger.PermBackup)
	if !ok {
		return
	}

	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	ctx := r.Context()
	var err error
	switch req.ScenarioID {
	case "small-canteen":
		err = h.loadSmallCanteen(ctx)
	case "busy-month":
		err = h.loadBusyMonth(ctx)
	case "settlement-mix":
		err = h.loadSettlementMix(ctx)
	default:
		writeFieldError(w, "scenario_id", "unknown scenario: "+req.ScenarioID)
		return
	}
	if err != nil {
		writeStoreError(w, "failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	h.recordActivity(r, actor, "load_scenario", req.ScenarioID)
	writeJSON(w, http.StatusOK, map[string]string{"loaded": req.ScenarioID})
}

// ResetStore wipes all record tables.
func (h *Handler) ResetStore(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, ledger.PermBackup)
	if !ok {
		return
	}

	if err := h.Store.Restore(r.Context(), &ledger.Backup{TakenAt: time.Now().UTC()}); err != nil {
		writeStoreError(w, "failed to reset", err)
		return
	}

	h.currentScenario = ""
	h.recordActivity(r, actor, "reset", "all tables cleared")
	writeJSON(w, http.StatusOK, map[string]bool{"reset": true})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// seed is the builder each loader uses to assemble a backup that gets
// restored wholesale, replacing whatever was there.
type seed struct {
	backup ledger.Backup
}

func newSeed() *seed {
	return &seed{backup: ledger.Backup{TakenAt: time.Now().UTC()}}
}

func (s *seed) user(userName, first, last string) {
	s.backup.Users = append(s.backup.Users, ledger.UserRow{
		ID:        uuid.NewString(),
		UserName:  userName,
		FirstName: first,
		LastName:  last,
		CreatedAt: time.Now().UTC(),
	})
}

func (s *seed) profile(username string, role ledger.Role) {
	s.backup.Profiles = append(s.backup.Profiles, ledger.Profile{
		ID:        uuid.NewString(),
		Username:  username,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	})
}

func (s *seed) expense(userName string, amount string, date time.Time, note string) {
	s.backup.Expenses = append(s.backup.Expenses, ledger.ExpenseRow{
		ID:          uuid.NewString(),
		UserName:    userName,
		Amount:      decimal.RequireFromString(amount),
		ExpenseDate: date,
		Note:        note,
		CreatedAt:   time.Now().UTC(),
	})
}

func (s *seed) payment(userName string, amount string, date time.Time) {
	s.backup.Payments = append(s.backup.Payments, ledger.PaymentRow{
		ID:          uuid.NewString(),
		UserName:    userName,
		Amount:      decimal.RequireFromString(amount),
		PaymentDate: date,
		CreatedAt:   time.Now().UTC(),
	})
}

// staffProfiles registers one account per role so every view of the demo
// can be exercised.
func (s *seed) staffProfiles() {
	s.user("admin", "Ada", "Admin")
	s.user("hr", "Harriet", "Reyes")
	s.user("canteen", "Carl", "Benson")
	s.profile("admin", ledger.RoleAdmin)
	s.profile("hr", ledger.RoleHR)
	s.profile("canteen", ledger.RoleCanteen)
}

func (h *Handler) loadSmallCanteen(ctx context.Context) error {
	s := newSeed()
	s.staffProfiles()

	day := func(offset int) time.Time {
		return ledger.Day(time.Now().UTC()).AddDate(0, 0, offset)
	}

	s.user("alice", "Alice", "Nguyen")
	s.user("bob", "Bob", "Okafor")
	s.user("carol", "Carol", "Svensson")
	s.profile("alice", ledger.RoleUser)

	s.expense("alice", "12.50", day(-6), "lunch")
	s.expense("alice", "8.00", day(-4), "breakfast")
	s.expense("bob", "15.00", day(-5), "lunch")
	s.expense("carol", "9.75", day(-3), "lunch")

	s.payment("alice", "12.50", day(-2))
	s.payment("carol", "9.75", day(-1))

	return h.Store.Restore(ctx, &s.backup)
}

func (h *Handler) loadBusyMonth(ctx context.Context) error {
	s := newSeed()
	s.staffProfiles()

	names := []string{"alice", "bob", "carol", "dave", "erin"}
	s.user("alice", "Alice", "Nguyen")
	s.user("bob", "Bob", "Okafor")
	s.user("carol", "Carol", "Svensson")
	s.user("dave", "Dave", "Mutombo")
	s.user("erin", "Erin", "Kowalski")
	s.profile("alice", ledger.RoleUser)

	today := ledger.Day(time.Now().UTC())
	start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)

	// Weekday lunches for everyone, a payment every Friday.
	amounts := []string{"8.50", "11.00", "9.25", "13.75", "7.00"}
	for d := start; !d.After(today); d = d.AddDate(0, 0, 1) {
		wd := d.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			continue
		}
		for i, name := range names {
			s.expense(name, amounts[(i+d.Day())%len(amounts)], d, "lunch")
		}
		if wd == time.Friday {
			for _, name := range names[:3] {
				s.payment(name, "40.00", d)
			}
		}
	}

	return h.Store.Restore(ctx, &s.backup)
}

func (h *Handler) loadSettlementMix(ctx context.Context) error {
	s := newSeed()
	s.staffProfiles()

	day := func(offset int) time.Time {
		return ledger.Day(time.Now().UTC()).AddDate(0, 0, offset)
	}

	s.user("settled", "Sam", "Settled")
	s.user("partial", "Pat", "Partial")
	s.user("overpaid", "Olive", "Overman")
	s.user("unpaid", "Uri", "Nilsen")

	// Fully settled
	s.expense("settled", "20.00", day(-10), "lunches")
	s.payment("settled", "20.00", day(-5))

	// Partially paid
	s.expense("partial", "50.00", day(-9), "lunches")
	s.payment("partial", "30.00", day(-4))

	// Overpaid: remaining clamps to zero, excess never shows as negative
	s.expense("overpaid", "10.00", day(-8), "snack")
	s.payment("overpaid", "25.00", day(-3))

	// Nothing paid yet
	s.expense("unpaid", "35.00", day(-7), "lunches")

	return h.Store.Restore(ctx, &s.backup)
}
