package leave

import (
	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
)

var half = decimal.NewFromFloat(0.5)

// ValidateHalfDays rejects half-day combinations that cannot describe a real
// absence. It runs before CalculateDuration, which assumes valid input.
func ValidateHalfDays(start, end generic.TimePoint, startHalf, endHalf HalfDayType) error {
	if !startHalf.Valid() || !endHalf.Valid() {
		return invalid(CodeInvalidHalfDay, "unknown half-day type %q/%q", startHalf, endHalf)
	}
	if !start.Equal(end) {
		return nil
	}
	if startHalf == SecondHalf && endHalf == FirstHalf {
		return invalid(CodeInvalidHalfDay,
			"a single-day leave cannot start in the second half and end in the first half; this is logically impossible")
	}
	if (startHalf == FullDay) != (endHalf == FullDay) {
		return invalid(CodeInvalidHalfDay,
			"a single-day leave must be FullDay on both ends or a half day on both ends")
	}
	return nil
}

// CalculateDuration returns the working days covered by [start, end].
// Half-day types only affect the first and last day. The result is never
// negative and depends on nothing but its arguments.
func CalculateDuration(start, end generic.TimePoint, startHalf, endHalf HalfDayType, holidays generic.HolidayCalendar) decimal.Decimal {
	start, end = generic.DateOf(start.Time), generic.DateOf(end.Time)
	if end.Before(start) {
		return decimal.Zero
	}

	if start.Equal(end) {
		if !start.IsWorkday(holidays) {
			return decimal.Zero
		}
		switch {
		case startHalf == FullDay && endHalf == FullDay:
			return decimal.NewFromInt(1)
		case startHalf == FirstHalf && endHalf == SecondHalf:
			return decimal.NewFromInt(1)
		case startHalf == SecondHalf && endHalf == FirstHalf:
			return decimal.Zero
		default:
			return half
		}
	}

	days := decimal.NewFromInt(int64(WorkingDays(start, end, holidays)))
	if startHalf == SecondHalf && start.IsWorkday(holidays) {
		days = days.Sub(half)
	}
	if endHalf == FirstHalf && end.IsWorkday(holidays) {
		days = days.Sub(half)
	}
	if days.IsNegative() {
		return decimal.Zero
	}
	return days
}

// WorkingDays counts Monday-Friday dates in [start, end] that are not holidays.
func WorkingDays(start, end generic.TimePoint, holidays generic.HolidayCalendar) int {
	n := 0
	for d := start; d.BeforeOrEqual(end); d = d.AddDays(1) {
		if d.IsWorkday(holidays) {
			n++
		}
	}
	return n
}

// RequestDuration is CalculateDuration applied to a stored request.
func RequestDuration(r Request, holidays generic.HolidayCalendar) decimal.Decimal {
	return CalculateDuration(r.StartDate, r.EndDate, r.StartHalf, r.EndHalf, holidays)
}
