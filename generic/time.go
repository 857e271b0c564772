package generic

import (
	"time"
)

// =============================================================================
// TIME POINT - Calendar day (all leave arithmetic is day-granular)
// =============================================================================

type TimePoint struct {
	Time time.Time
}

func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to midnight UTC of its calendar date.
func DateOf(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return TimePoint{}, err
	}
	return DateOf(t), nil
}

func (tp TimePoint) Before(other TimePoint) bool        { return tp.Time.Before(other.Time) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.Time.Equal(other.Time) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.Time.After(other.Time) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

func (tp TimePoint) AddDays(n int) TimePoint   { return TimePoint{Time: tp.Time.AddDate(0, 0, n)} }
func (tp TimePoint) AddMonths(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(0, n, 0)} }
func (tp TimePoint) AddYears(n int) TimePoint  { return TimePoint{Time: tp.Time.AddDate(n, 0, 0)} }

func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }
func (tp TimePoint) IsWeekend() bool {
	wd := tp.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (tp TimePoint) String() string { return tp.Time.Format("2006-01-02") }

// =============================================================================
// HOLIDAY CALENDAR
// =============================================================================

// Holiday is a non-working date. Recurring holidays match the same month and
// day in every year.
type Holiday struct {
	ID        string
	Date      TimePoint
	Name      string
	Recurring bool
}

// HolidayCalendar answers whether a date is a holiday.
type HolidayCalendar interface {
	IsHoliday(date TimePoint) bool
}

// HolidaySet is an immutable HolidayCalendar built from a list of holidays.
type HolidaySet struct {
	dates     map[TimePoint]string
	recurring map[monthDay]string
}

type monthDay struct {
	month time.Month
	day   int
}

func NewHolidaySet(holidays []Holiday) *HolidaySet {
	hs := &HolidaySet{
		dates:     make(map[TimePoint]string, len(holidays)),
		recurring: make(map[monthDay]string),
	}
	for _, h := range holidays {
		if h.Recurring {
			hs.recurring[monthDay{h.Date.Month(), h.Date.Day()}] = h.Name
			continue
		}
		hs.dates[DateOf(h.Date.Time)] = h.Name
	}
	return hs
}

func (hs *HolidaySet) IsHoliday(date TimePoint) bool {
	if hs == nil {
		return false
	}
	if _, ok := hs.dates[DateOf(date.Time)]; ok {
		return true
	}
	_, ok := hs.recurring[monthDay{date.Month(), date.Day()}]
	return ok
}

// IsWorkday reports whether tp is Monday to Friday and not a holiday.
// A nil calendar means no holidays.
func (tp TimePoint) IsWorkday(calendar HolidayCalendar) bool {
	if tp.IsWeekend() {
		return false
	}
	if calendar != nil && calendar.IsHoliday(tp) {
		return false
	}
	return true
}

// DaysBetween returns the whole days from -> to (negative when to is earlier).
func DaysBetween(from, to TimePoint) int { return int(to.Time.Sub(from.Time).Hours() / 24) }
