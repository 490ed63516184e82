// Package store provides an in-memory ledger.Store for tests and demos.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mealdesk/canteen-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	users    []ledger.UserRow
	expenses []ledger.ExpenseRow
	payments []ledger.PaymentRow
	profiles map[string]ledger.Profile
	activity []ledger.ActivityEntry
}

func NewMemory() *Memory {
	return &Memory{profiles: make(map[string]ledger.Profile)}
}

func (m *Memory) FetchExpenses(_ context.Context, scope ledger.QueryScope) ([]ledger.ExpenseRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.ExpenseRow
	for _, e := range m.expenses {
		if scope.All || e.UserName == scope.UserName {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExpenseDate.Before(out[j].ExpenseDate) })
	return out, nil
}

func (m *Memory) FetchPayments(_ context.Context, scope ledger.QueryScope) ([]ledger.PaymentRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.PaymentRow
	for _, p := range m.payments {
		if scope.All || p.UserName == scope.UserName {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PaymentDate.Before(out[j].PaymentDate) })
	return out, nil
}

func (m *Memory) FetchUsers(_ context.Context, scope ledger.QueryScope) ([]ledger.UserRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.UserRow
	for _, u := range m.users {
		if scope.All || u.UserName == scope.UserName {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UserName < out[j].UserName })
	return out, nil
}

func (m *Memory) FetchProfile(_ context.Context, username string) (*ledger.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[username]
	if !ok {
		return nil, ledger.ErrProfileNotFound
	}
	return &p, nil
}

func (m *Memory) AddExpense(_ context.Context, e ledger.ExpenseRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expenses = append(m.expenses, e)
	return nil
}

func (m *Memory) AddPayment(_ context.Context, p ledger.PaymentRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments = append(m.payments, p)
	return nil
}

func (m *Memory) AddUser(_ context.Context, u ledger.UserRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.UserName == u.UserName {
			return ledger.ErrUserExists
		}
	}
	m.users = append(m.users, u)
	return nil
}

func (m *Memory) SaveProfile(_ context.Context, p ledger.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.profiles[p.Username]; ok {
		return ledger.ErrProfileExists
	}
	found := false
	for _, u := range m.users {
		if u.UserName == p.Username {
			found = true
			break
		}
	}
	if !found {
		return ledger.ErrUnknownUser
	}
	m.profiles[p.Username] = p
	return nil
}

func (m *Memory) RecordActivity(_ context.Context, entry ledger.ActivityEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activity = append(m.activity, entry)
	return nil
}

func (m *Memory) FetchActivity(_ context.Context, limit int) ([]ledger.ActivityEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ledger.ActivityEntry, len(m.activity))
	copy(out, m.activity)
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Snapshot(_ context.Context) (*ledger.Backup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b := &ledger.Backup{
		TakenAt:  time.Now().UTC(),
		Users:    append([]ledger.UserRow(nil), m.users...),
		Expenses: append([]ledger.ExpenseRow(nil), m.expenses...),
		Payments: append([]ledger.PaymentRow(nil), m.payments...),
	}
	for _, p := range m.profiles {
		b.Profiles = append(b.Profiles, p)
	}
	sort.SliceStable(b.Profiles, func(i, j int) bool { return b.Profiles[i].Username < b.Profiles[j].Username })
	return b, nil
}

func (m *Memory) Restore(_ context.Context, b *ledger.Backup) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users = append([]ledger.UserRow(nil), b.Users...)
	m.expenses = append([]ledger.ExpenseRow(nil), b.Expenses...)
	m.payments = append([]ledger.PaymentRow(nil), b.Payments...)
	m.profiles = make(map[string]ledger.Profile, len(b.Profiles))
	for _, p := range b.Profiles {
		m.profiles[p.Username] = p
	}
	return nil
}
