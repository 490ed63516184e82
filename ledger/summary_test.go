package ledger_test

import (
	"testing"
	"time"

	"github.com/mealdesk/canteen-ledger/ledger"
)

func juneRange() ledger.DateRange {
	return ledger.DateRange{
		Start: day(2024, time.June, 1),
		End:   day(2024, time.June, 30),
	}
}

func TestComputeSummary_Basics(t *testing.T) {
	// GIVEN: Two users with expenses and partial payments in June
	// WHEN: The June summary is computed
	// THEN: Totals, outstanding, user counts, and rates line up

	expenses := []ledger.ExpenseRow{
		expense("e1", "alice", "100", day(2024, time.June, 3)),
		expense("e2", "bob", "60", day(2024, time.June, 5)),
	}
	payments := []ledger.PaymentRow{
		payment("p1", "alice", "80", day(2024, time.June, 10)),
	}
	users := []ledger.UserRow{
		{ID: "u1", UserName: "alice"},
		{ID: "u2", UserName: "bob"},
		{ID: "u3", UserName: "carol"}, // no activity
	}

	s := ledger.ComputeSummary(expenses, payments, users, juneRange(), 0, nil)

	if !s.TotalExpenses.Equal(amt("160")) {
		t.Errorf("total expenses = %s, want 160", s.TotalExpenses)
	}
	if !s.TotalPayments.Equal(amt("80")) {
		t.Errorf("total payments = %s, want 80", s.TotalPayments)
	}
	if !s.Outstanding.Equal(amt("80")) {
		t.Errorf("outstanding = %s, want 80", s.Outstanding)
	}
	if s.ActiveUsers != 2 {
		t.Errorf("active users = %d, want 2", s.ActiveUsers)
	}
	if s.TotalUsers != 3 {
		t.Errorf("total users = %d, want 3", s.TotalUsers)
	}
	if !s.AveragePerUser.Equal(amt("80")) {
		t.Errorf("average = %s, want 80", s.AveragePerUser)
	}
	// 80 / 160 * 100
	if !s.CollectionRate.Equal(amt("50")) {
		t.Errorf("collection rate = %s, want 50", s.CollectionRate)
	}
}

func TestComputeSummary_EmptyPeriodRatesAreZero(t *testing.T) {
	// GIVEN: No rows at all
	// WHEN: The summary is computed
	// THEN: Every ratio is 0, nothing panics or returns NaN

	s := ledger.ComputeSummary(nil, nil, nil, juneRange(), 0, nil)

	if !s.CollectionRate.IsZero() {
		t.Errorf("collection rate = %s, want 0", s.CollectionRate)
	}
	if !s.SettlementRate.IsZero() {
		t.Errorf("settlement rate = %s, want 0", s.SettlementRate)
	}
	if !s.AveragePerUser.IsZero() {
		t.Errorf("average = %s, want 0", s.AveragePerUser)
	}
	if !s.ExpenseGrowth.IsZero() {
		t.Errorf("growth = %s, want 0", s.ExpenseGrowth)
	}
	if s.PeakDay != nil {
		t.Error("peak day should be nil with no activity")
	}
	if len(s.Daily) != 0 {
		t.Errorf("daily buckets = %d, want 0", len(s.Daily))
	}
}

func TestComputeSummary_SettlementRate(t *testing.T) {
	// GIVEN: Two users, one fully paid
	// WHEN: The summary is computed
	// THEN: Settlement rate is 50%

	expenses := []ledger.ExpenseRow{
		expense("e1", "alice", "50", day(2024, time.June, 3)),
		expense("e2", "bob", "50", day(2024, time.June, 4)),
	}
	payments := []ledger.PaymentRow{
		payment("p1", "alice", "50", day(2024, time.June, 5)),
	}

	s := ledger.ComputeSummary(expenses, payments, nil, juneRange(), 0, nil)
	if !s.SettlementRate.Equal(amt("50")) {
		t.Errorf("settlement rate = %s, want 50", s.SettlementRate)
	}
}

func TestComputeSummary_RowsOutsideRangeExcluded(t *testing.T) {
	expenses := []ledger.ExpenseRow{
		expense("e1", "alice", "100", day(2024, time.May, 30)),
		expense("e2", "alice", "40", day(2024, time.June, 2)),
	}

	s := ledger.ComputeSummary(expenses, nil, nil, juneRange(), 0, nil)
	if !s.TotalExpenses.Equal(amt("40")) {
		t.Errorf("total expenses = %s, want 40 (May row excluded)", s.TotalExpenses)
	}
}

func TestComputeSummary_TopSpenders(t *testing.T) {
	// GIVEN: Four spenders and a top-N of 2
	// WHEN: The summary is computed
	// THEN: The two biggest spenders appear in descending order

	expenses := []ledger.ExpenseRow{
		expense("e1", "alice", "10", day(2024, time.June, 1)),
		expense("e2", "bob", "40", day(2024, time.June, 1)),
		expense("e3", "carol", "30", day(2024, time.June, 1)),
		expense("e4", "dave", "20", day(2024, time.June, 1)),
	}

	s := ledger.ComputeSummary(expenses, nil, nil, juneRange(), 2, nil)

	if len(s.TopSpenders) != 2 {
		t.Fatalf("top spenders = %d, want 2", len(s.TopSpenders))
	}
	if s.TopSpenders[0].UserName != "bob" || s.TopSpenders[1].UserName != "carol" {
		t.Errorf("top spenders = [%s, %s], want [bob, carol]",
			s.TopSpenders[0].UserName, s.TopSpenders[1].UserName)
	}
}

func TestComputeSummary_TopSpenders_NameTieBreak(t *testing.T) {
	expenses := []ledger.ExpenseRow{
		expense("e1", "zoe", "30", day(2024, time.June, 1)),
		expense("e2", "ann", "30", day(2024, time.June, 1)),
	}

	s := ledger.ComputeSummary(expenses, nil, nil, juneRange(), 2, nil)
	if s.TopSpenders[0].UserName != "ann" {
		t.Errorf("tie break = %s, want ann first", s.TopSpenders[0].UserName)
	}
}

func TestComputeSummary_DailyBucketsAndPeakDay(t *testing.T) {
	// GIVEN: Activity on three days, with two days tied for the highest
	//        expense total
	// WHEN: The summary is computed
	// THEN: Buckets are ascending, only days with activity appear, and
	//       the earliest of the tied days is the peak

	expenses := []ledger.ExpenseRow{
		expense("e1", "alice", "50", day(2024, time.June, 10)),
		expense("e2", "bob", "50", day(2024, time.June, 20)),
		expense("e3", "carol", "10", day(2024, time.June, 15)),
	}
	payments := []ledger.PaymentRow{
		payment("p1", "alice", "25", day(2024, time.June, 15)),
	}

	s := ledger.ComputeSummary(expenses, payments, nil, juneRange(), 0, nil)

	if len(s.Daily) != 3 {
		t.Fatalf("daily buckets = %d, want 3", len(s.Daily))
	}
	for i := 1; i < len(s.Daily); i++ {
		if !s.Daily[i-1].Date.Before(s.Daily[i].Date) {
			t.Error("daily buckets not ascending")
		}
	}

	mid := s.Daily[1]
	if !mid.Expenses.Equal(amt("10")) || !mid.Payments.Equal(amt("25")) {
		t.Errorf("June 15 bucket = expenses %s payments %s", mid.Expenses, mid.Payments)
	}

	if s.PeakDay == nil {
		t.Fatal("expected a peak day")
	}
	if !s.PeakDay.Date.Equal(day(2024, time.June, 10)) {
		t.Errorf("peak day = %s, want 2024-06-10 (earliest tie)", s.PeakDay.Date)
	}
}

func TestComputeSummary_ExpenseGrowth(t *testing.T) {
	// GIVEN: 100 spent in May, 150 spent in June
	// WHEN: The June summary is computed
	// THEN: Growth is +50%

	expenses := []ledger.ExpenseRow{
		expense("e1", "alice", "100", day(2024, time.May, 15)),
		expense("e2", "alice", "150", day(2024, time.June, 15)),
	}

	s := ledger.ComputeSummary(expenses, nil, nil, juneRange(), 0, nil)
	if !s.ExpenseGrowth.Equal(amt("50")) {
		t.Errorf("growth = %s, want 50", s.ExpenseGrowth)
	}
}

func TestComputeSummary_GrowthZeroWithoutPriorData(t *testing.T) {
	expenses := []ledger.ExpenseRow{
		expense("e1", "alice", "150", day(2024, time.June, 15)),
	}

	s := ledger.ComputeSummary(expenses, nil, nil, juneRange(), 0, nil)
	if !s.ExpenseGrowth.IsZero() {
		t.Errorf("growth = %s, want 0 (empty previous period)", s.ExpenseGrowth)
	}
}
