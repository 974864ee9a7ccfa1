package core

import (
	"fmt"
	"strings"
	"time"
)

// Recurrence is one of the fixed recurrence presets offered by the
// transaction form.
type Recurrence string

const (
	RecurNever            Recurrence = "never"
	RecurEveryDay         Recurrence = "everyDay"
	RecurEveryTwoDays     Recurrence = "everyTwoDays"
	RecurEveryWeekday     Recurrence = "everyWeekday"
	RecurEveryWeekend     Recurrence = "everyWeekend"
	RecurEveryWeek        Recurrence = "everyWeek"
	RecurEveryTwoWeeks    Recurrence = "everyTwoWeeks"
	RecurEveryFourWeeks   Recurrence = "everyFourWeeks"
	RecurEveryMonth       Recurrence = "everyMonth"
	RecurEveryTwoMonths   Recurrence = "everyTwoMonths"
	RecurEveryThreeMonths Recurrence = "everyThreeMonths"
	RecurEverySixMonths   Recurrence = "everySixMonths"
	RecurEveryYear        Recurrence = "everyYear"
)

// MaxRecurrenceOccurrences bounds a single series expansion.
const MaxRecurrenceOccurrences = 5000

// Stepper generates the dates of one recurrence family between start and
// end, both inclusive. Implementations may assume start <= end.
type Stepper interface {
	Expand(start, end Date, limit int) ([]Date, error)
}

// DayStepper steps a fixed number of days.
type DayStepper struct{ Every int }

func (s DayStepper) Expand(start, end Date, limit int) ([]Date, error) {
	var out []Date
	for d := start; !d.After(end); d = d.AddDays(s.Every) {
		if len(out) == limit {
			return nil, ErrTooManyOccurrences
		}
		out = append(out, d)
	}
	return out, nil
}

// WeekdaySetStepper keeps every day whose weekday is in the set.
type WeekdaySetStepper struct{ Days map[time.Weekday]bool }

func (s WeekdaySetStepper) Expand(start, end Date, limit int) ([]Date, error) {
	var out []Date
	for d := start; !d.After(end); d = d.AddDays(1) {
		if !s.Days[d.Weekday()] {
			continue
		}
		if len(out) == limit {
			return nil, ErrTooManyOccurrences
		}
		out = append(out, d)
	}
	return out, nil
}

// MonthStepper steps whole calendar months anchored on start's day of month.
// Shorter months clamp to their last day without losing the anchor, so a
// series started on Jan 31 yields Feb 29, Mar 31, Apr 30.
type MonthStepper struct{ Every int }

func (s MonthStepper) Expand(start, end Date, limit int) ([]Date, error) {
	anchor := start.Day()
	var out []Date
	for n := 0; ; n += s.Every {
		d := start.AddMonthsClamped(n, anchor)
		if d.After(end) {
			break
		}
		if len(out) == limit {
			return nil, ErrTooManyOccurrences
		}
		out = append(out, d)
	}
	return out, nil
}

var (
	weekdays = map[time.Weekday]bool{
		time.Monday: true, time.Tuesday: true, time.Wednesday: true,
		time.Thursday: true, time.Friday: true,
	}
	weekend = map[time.Weekday]bool{time.Saturday: true, time.Sunday: true}
)

// recurrenceSteppers maps presets to their stepping strategy.
var recurrenceSteppers = map[Recurrence]Stepper{
	RecurEveryDay:         DayStepper{Every: 1},
	RecurEveryTwoDays:     DayStepper{Every: 2},
	RecurEveryWeekday:     WeekdaySetStepper{Days: weekdays},
	RecurEveryWeekend:     WeekdaySetStepper{Days: weekend},
	RecurEveryWeek:        DayStepper{Every: 7},
	RecurEveryTwoWeeks:    DayStepper{Every: 14},
	RecurEveryFourWeeks:   DayStepper{Every: 28},
	RecurEveryMonth:       MonthStepper{Every: 1},
	RecurEveryTwoMonths:   MonthStepper{Every: 2},
	RecurEveryThreeMonths: MonthStepper{Every: 3},
	RecurEverySixMonths:   MonthStepper{Every: 6},
	RecurEveryYear:        MonthStepper{Every: 12},
}

// ParseRecurrence accepts a preset wire name. Empty means never.
func ParseRecurrence(s string) (Recurrence, error) {
	r := Recurrence(strings.TrimSpace(s))
	if r == "" {
		return RecurNever, nil
	}
	if !r.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPreset, s)
	}
	return r, nil
}

// IsValid reports whether r is a known preset.
func (r Recurrence) IsValid() bool {
	if r == RecurNever {
		return true
	}
	_, ok := recurrenceSteppers[r]
	return ok
}

// IsSeries reports whether r produces a recurring series.
func (r Recurrence) IsSeries() bool {
	return r != RecurNever && r != ""
}

// ExpandRecurrence returns the ordered occurrence dates of preset r from
// start through end. RecurNever, and any end before start, yield just start.
// A weekday filter that matches no day of the range yields no dates.
func ExpandRecurrence(r Recurrence, start, end Date) ([]Date, error) {
	if start.IsZero() {
		return nil, ErrInvalidDate
	}
	if r == RecurNever || r == "" {
		return []Date{start}, nil
	}
	stepper, ok := recurrenceSteppers[r]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, r)
	}
	if end.IsZero() || end.Before(start) {
		return []Date{start}, nil
	}
	return stepper.Expand(start, end, MaxRecurrenceOccurrences)
}
