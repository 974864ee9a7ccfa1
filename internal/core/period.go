package core

import (
	"strings"
)

// PeriodAll is the literal used on the wire for an unbounded period.
const PeriodAll = "all"

// Period is an inclusive calendar-day range in UTC. The zero Period is
// unbounded ("all history").
type Period struct {
	Start Date
	End   Date
}

// NewPeriod builds a bounded period and rejects inverted ranges.
func NewPeriod(start, end Date) (Period, error) {
	if start.IsZero() || end.IsZero() {
		return Period{}, ErrInvalidPeriod
	}
	if end.Before(start) {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Start: start, End: end}, nil
}

// ParsePeriod parses "YYYY-MM-DD_YYYY-MM-DD" or "all".
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == PeriodAll {
		return Period{}, nil
	}
	startStr, endStr, ok := strings.Cut(s, "_")
	if !ok {
		return Period{}, ErrInvalidPeriod
	}
	start, err := ParseDate(startStr)
	if err != nil {
		return Period{}, ErrInvalidPeriod
	}
	end, err := ParseDate(endStr)
	if err != nil {
		return Period{}, ErrInvalidPeriod
	}
	return NewPeriod(start, end)
}

// ParsePeriodParams builds a period from separate startDate/endDate query
// values. Both empty means unbounded.
func ParsePeriodParams(startStr, endStr string) (Period, error) {
	startStr, endStr = strings.TrimSpace(startStr), strings.TrimSpace(endStr)
	if startStr == "" && endStr == "" {
		return Period{}, nil
	}
	if startStr == "" || endStr == "" {
		return Period{}, ErrInvalidPeriod
	}
	start, err := ParseDate(startStr)
	if err != nil {
		return Period{}, ErrInvalidPeriod
	}
	end, err := ParseDate(endStr)
	if err != nil {
		return Period{}, ErrInvalidPeriod
	}
	return NewPeriod(start, end)
}

// Unbounded reports whether the period covers all history.
func (p Period) Unbounded() bool {
	return p.Start.IsZero() && p.End.IsZero()
}

// Days returns the inclusive number of calendar days in the period.
func (p Period) Days() int {
	if p.Unbounded() {
		return 0
	}
	return p.Start.DaysUntil(p.End) + 1
}

// Contains reports whether d falls inside the period.
func (p Period) Contains(d Date) bool {
	if p.Unbounded() {
		return true
	}
	return !d.Before(p.Start) && !d.After(p.End)
}

// String formats the period as it appears on the wire.
func (p Period) String() string {
	if p.Unbounded() {
		return PeriodAll
	}
	return p.Start.String() + "_" + p.End.String()
}

// PreviousPeriod returns the comparison window for start..end. Rules are
// checked in order and the first match wins:
//
//  1. Jan 1 .. Dec 31: the same span one year earlier.
//  2. 1st .. last day of the same month: the whole preceding month.
//  3. Otherwise: an equal-length window ending the day before start.
func PreviousPeriod(start, end Date) Period {
	if start.Month() == 1 && start.Day() == 1 && end.Month() == 12 && end.Day() == 31 {
		return Period{
			Start: NewDate(start.Year()-1, 1, 1),
			End:   NewDate(end.Year()-1, 12, 31),
		}
	}

	if start.IsFirstOfMonth() && end.IsLastOfMonth() &&
		start.Year() == end.Year() && start.Month() == end.Month() {
		prevStart := start.AddMonthsClamped(-1, 1)
		return Period{Start: prevStart, End: prevStart.LastOfMonth()}
	}

	duration := end.Time.Sub(start.Time)
	prevEnd := start.AddDays(-1)
	return Period{
		Start: DateOf(prevEnd.Time.Add(-duration)),
		End:   prevEnd,
	}
}

// Previous is PreviousPeriod applied to p. Unbounded periods have no
// previous period.
func (p Period) Previous() (Period, bool) {
	if p.Unbounded() {
		return Period{}, false
	}
	return PreviousPeriod(p.Start, p.End), true
}
