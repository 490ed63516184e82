package ledger

import (
	"time"
)

// =============================================================================
// DATE RANGES - Day-granularity reporting periods
// =============================================================================

// RangeKind names a preset reporting period.
type RangeKind string

const (
	RangeToday     RangeKind = "today"
	RangeThisWeek  RangeKind = "this-week"
	RangeThisMonth RangeKind = "this-month"
	RangeThisYear  RangeKind = "this-year"
	RangeCustom    RangeKind = "custom"
)

// DateRange is an inclusive [Start, End] span at day granularity.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ResolveDateRange turns a range kind into concrete bounds. Weeks start
// on Monday; the end of every preset range is today. A custom range with
// a missing bound falls back to the current month rather than failing.
func ResolveDateRange(kind RangeKind, today time.Time, customFrom, customTo *time.Time) DateRange {
	today = Day(today)

	switch kind {
	case RangeToday:
		return DateRange{Start: today, End: today}
	case RangeThisWeek:
		return DateRange{Start: startOfWeek(today), End: today}
	case RangeThisYear:
		return DateRange{Start: time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC), End: today}
	case RangeCustom:
		if customFrom != nil && customTo != nil {
			return DateRange{Start: Day(*customFrom), End: Day(*customTo)}
		}
		// Incomplete custom bounds fall back to the current month.
		return monthOf(today)
	default: // RangeThisMonth and anything unrecognized
		return monthOf(today)
	}
}

func monthOf(day time.Time) DateRange {
	start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return DateRange{Start: start, End: end}
}

func startOfWeek(day time.Time) time.Time {
	// Monday-based weeks; Go's Sunday is 0.
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// Contains reports whether t (any time of day) falls within the range.
func (r DateRange) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

// Days returns the number of calendar days the range spans.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Previous returns the range of the same length immediately preceding
// this one, used for period-over-period growth.
func (r DateRange) Previous() DateRange {
	n := r.Days()
	return DateRange{
		Start: r.Start.AddDate(0, 0, -n),
		End:   r.Start.AddDate(0, 0, -1),
	}
}
