package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - A closed range of days
// =============================================================================

// Period is the inclusive range [Start, End]. Accrual periods also carry a
// Type so the scheduler can step from one period to the next.
type Period struct {
	Type  PeriodType
	Start TimePoint
	End   TimePoint
}

type PeriodType string

const (
	PeriodRange PeriodType = "range"
	PeriodMonth PeriodType = "month"
	PeriodYear  PeriodType = "year"
)

func NewPeriod(start, end TimePoint) (Period, error) {
	if end.Before(start) {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Type: PeriodRange, Start: start, End: end}, nil
}

func MonthPeriod(year int, month time.Month) Period {
	start := NewTimePoint(year, month, 1)
	return Period{Type: PeriodMonth, Start: start, End: start.AddMonths(1).AddDays(-1)}
}

func YearPeriod(year int) Period {
	return Period{
		Type:  PeriodYear,
		Start: NewTimePoint(year, time.January, 1),
		End:   NewTimePoint(year, time.December, 31),
	}
}

// Contains returns true if t is within [Start, End].
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Days returns every day in the period.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// Overlaps reports whether the two closed ranges share at least one day.
func (p Period) Overlaps(other Period) bool {
	return p.Start.BeforeOrEqual(other.End) && other.Start.BeforeOrEqual(p.End)
}

// Next returns the month or year following p. Ranges have no successor and
// return themselves.
func (p Period) Next() Period {
	switch p.Type {
	case PeriodMonth:
		n := p.Start.AddMonths(1)
		return MonthPeriod(n.Year(), n.Month())
	case PeriodYear:
		return YearPeriod(p.Start.Year() + 1)
	default:
		return p
	}
}

// Key is a stable label used in idempotency keys: 2025-03 for months,
// 2025 for years.
func (p Period) Key() string {
	switch p.Type {
	case PeriodMonth:
		return fmt.Sprintf("%04d-%02d", p.Start.Year(), p.Start.Month())
	case PeriodYear:
		return fmt.Sprintf("%04d", p.Start.Year())
	default:
		return p.String()
	}
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
