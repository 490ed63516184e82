/*
summary.go - Period rollups for reports and dashboards

PURPOSE:
  Higher-level aggregations over a date range, built on top of the
  per-user totals from aggregate.go plus raw date-bucketed sums. Feeds
  the summary endpoint, the trend charts, and the summary export.

NUMERIC EDGE CASES:
  Every ratio defines 0/0 as 0: collection rate with no expenses,
  average with no active users, growth with an empty previous period.
  Nothing here returns NaN or panics on empty input.
*/
package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultTopSpenders is the top-N cutoff when the caller does not ask
// for a specific count.
const DefaultTopSpenders = 5

// DayBucket is one day of summed activity, the grain of trend charts.
type DayBucket struct {
	Date     time.Time
	Expenses decimal.Decimal
	Payments decimal.Decimal
}

// TopSpender is one row of the top-spenders report.
type TopSpender struct {
	UserName    string
	TotalAmount decimal.Decimal
	TotalPaid   decimal.Decimal
	Outstanding decimal.Decimal
}

// Summary is the full period rollup.
type Summary struct {
	Range DateRange

	TotalExpenses decimal.Decimal
	TotalPayments decimal.Decimal
	Outstanding   decimal.Decimal

	ActiveUsers    int // users with at least one expense in range
	TotalUsers     int // directory size (or distinct active names if no directory)
	AveragePerUser decimal.Decimal

	CollectionRate decimal.Decimal // payments / expenses * 100
	SettlementRate decimal.Decimal // % of in-range users fully settled

	TopSpenders []TopSpender
	Daily       []DayBucket // days with activity, ascending
	PeakDay     *DayBucket  // highest expense day; earliest wins ties

	ExpenseGrowth decimal.Decimal // period-over-period, 0 when no prior data
}

// ComputeSummary rolls up the rows that fall inside r. The full row sets
// are passed in; filtering happens here so the previous period (for
// growth) comes from the same snapshot.
func ComputeSummary(expenses []ExpenseRow, payments []PaymentRow, users []UserRow, r DateRange, topN int, logger *zap.Logger) Summary {
	if topN <= 0 {
		topN = DefaultTopSpenders
	}

	inExpenses := filterExpenses(expenses, r)
	inPayments := filterPayments(payments, r)

	totals := ComputeUserTotals(inExpenses, inPayments, users, logger)

	s := Summary{
		Range:         r,
		TotalExpenses: decimal.Zero,
		TotalPayments: decimal.Zero,
		Outstanding:   decimal.Zero,
	}

	settled := 0
	for _, t := range totals {
		s.TotalExpenses = s.TotalExpenses.Add(t.TotalAmount)
		s.TotalPayments = s.TotalPayments.Add(t.TotalPaid)
		s.Outstanding = s.Outstanding.Add(t.RemainingBalance)
		if t.TotalAmount.IsPositive() {
			s.ActiveUsers++
		}
		if t.IsSettled {
			settled++
		}
	}

	s.TotalUsers = len(users)
	if s.TotalUsers == 0 {
		s.TotalUsers = len(totals)
	}

	if s.ActiveUsers > 0 {
		s.AveragePerUser = s.TotalExpenses.Div(decimal.NewFromInt(int64(s.ActiveUsers))).Round(2)
	} else {
		s.AveragePerUser = decimal.Zero
	}

	if s.TotalExpenses.IsPositive() {
		s.CollectionRate = s.TotalPayments.Div(s.TotalExpenses).Mul(hundred).Round(2)
	} else {
		s.CollectionRate = decimal.Zero
	}

	if len(totals) > 0 {
		s.SettlementRate = decimal.NewFromInt(int64(settled)).
			Div(decimal.NewFromInt(int64(len(totals)))).Mul(hundred).Round(2)
	} else {
		s.SettlementRate = decimal.Zero
	}

	s.TopSpenders = topSpenders(totals, topN)
	s.Daily = dailyBuckets(inExpenses, inPayments)
	s.PeakDay = peakDay(s.Daily)
	s.ExpenseGrowth = expenseGrowth(expenses, r)

	return s
}

func filterExpenses(rows []ExpenseRow, r DateRange) []ExpenseRow {
	out := make([]ExpenseRow, 0, len(rows))
	for _, e := range rows {
		if r.Contains(e.ExpenseDate) {
			out = append(out, e)
		}
	}
	return out
}

func filterPayments(rows []PaymentRow, r DateRange) []PaymentRow {
	out := make([]PaymentRow, 0, len(rows))
	for _, p := range rows {
		if r.Contains(p.PaymentDate) {
			out = append(out, p)
		}
	}
	return out
}

// topSpenders ranks by total expense descending, name ascending on ties.
func topSpenders(totals []UserTotal, n int) []TopSpender {
	ranked := make([]UserTotal, len(totals))
	copy(ranked, totals)
	sort.SliceStable(ranked, func(i, j int) bool {
		if cmp := ranked[i].TotalAmount.Cmp(ranked[j].TotalAmount); cmp != 0 {
			return cmp > 0
		}
		return ranked[i].UserName < ranked[j].UserName
	})

	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]TopSpender, 0, n)
	for _, t := range ranked[:n] {
		out = append(out, TopSpender{
			UserName:    t.UserName,
			TotalAmount: t.TotalAmount,
			TotalPaid:   t.TotalPaid,
			Outstanding: t.RemainingBalance,
		})
	}
	return out
}

// dailyBuckets sums per calendar day. Only days with activity appear;
// the chart layer interpolates gaps.
func dailyBuckets(expenses []ExpenseRow, payments []PaymentRow) []DayBucket {
	byDay := make(map[time.Time]*DayBucket)

	get := func(day time.Time) *DayBucket {
		b, ok := byDay[day]
		if !ok {
			b = &DayBucket{Date: day, Expenses: decimal.Zero, Payments: decimal.Zero}
			byDay[day] = b
		}
		return b
	}

	for _, e := range expenses {
		b := get(Day(e.ExpenseDate))
		b.Expenses = b.Expenses.Add(e.Amount)
	}
	for _, p := range payments {
		b := get(Day(p.PaymentDate))
		b.Payments = b.Payments.Add(p.Amount)
	}

	out := make([]DayBucket, 0, len(byDay))
	for _, b := range byDay {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// peakDay finds the day with the highest expense total. Buckets arrive
// date-ascending, so keeping the strict maximum gives the earliest day
// on ties.
func peakDay(daily []DayBucket) *DayBucket {
	var peak *DayBucket
	for i := range daily {
		if peak == nil || daily[i].Expenses.GreaterThan(peak.Expenses) {
			peak = &daily[i]
		}
	}
	if peak == nil {
		return nil
	}
	p := *peak
	return &p
}

// expenseGrowth compares the range's expense total with the immediately
// preceding period of the same length.
func expenseGrowth(expenses []ExpenseRow, r DateRange) decimal.Decimal {
	current := sumExpenses(expenses, r)
	previous := sumExpenses(expenses, r.Previous())
	if !previous.IsPositive() {
		return decimal.Zero
	}
	return current.Sub(previous).Div(previous).Mul(hundred).Round(2)
}

func sumExpenses(rows []ExpenseRow, r DateRange) decimal.Decimal {
	total := decimal.Zero
	for _, e := range rows {
		if r.Contains(e.ExpenseDate) {
			total = total.Add(e.Amount)
		}
	}
	return total
}
