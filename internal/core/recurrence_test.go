package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func joinDates(ds []Date) string {
	parts := make([]string, len(ds))
	for i, v := range ds {
		parts[i] = v.String()
	}
	return strings.Join(parts, ",")
}

func TestExpandRecurrence(t *testing.T) {
	tests := []struct {
		name       string
		preset     Recurrence
		start, end string
		want       string
	}{
		{"every week", RecurEveryWeek, "2024-01-01", "2024-01-22",
			"2024-01-01,2024-01-08,2024-01-15,2024-01-22"},
		{"every two days", RecurEveryTwoDays, "2024-01-01", "2024-01-06",
			"2024-01-01,2024-01-03,2024-01-05"},
		{"every two weeks", RecurEveryTwoWeeks, "2024-01-01", "2024-02-12",
			"2024-01-01,2024-01-15,2024-01-29,2024-02-12"},
		{"weekdays skip weekend", RecurEveryWeekday, "2024-01-05", "2024-01-09",
			"2024-01-05,2024-01-08,2024-01-09"},
		{"weekend only", RecurEveryWeekend, "2024-01-05", "2024-01-14",
			"2024-01-06,2024-01-07,2024-01-13,2024-01-14"},
		{"month end clamps and recovers", RecurEveryMonth, "2024-01-31", "2024-05-31",
			"2024-01-31,2024-02-29,2024-03-31,2024-04-30,2024-05-31"},
		{"quarterly", RecurEveryThreeMonths, "2024-02-15", "2024-12-31",
			"2024-02-15,2024-05-15,2024-08-15,2024-11-15"},
		{"every year from leap day", RecurEveryYear, "2024-02-29", "2028-03-01",
			"2024-02-29,2025-02-28,2026-02-28,2027-02-28,2028-02-29"},
		{"never", RecurNever, "2024-01-01", "2024-12-31", "2024-01-01"},
		{"end before start", RecurEveryDay, "2024-01-10", "2024-01-01", "2024-01-10"},
		{"end equals start", RecurEveryDay, "2024-01-10", "2024-01-10", "2024-01-10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandRecurrence(tt.preset, d(tt.start), d(tt.end))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if joinDates(got) != tt.want {
				t.Errorf("got %s\nwant %s", joinDates(got), tt.want)
			}
		})
	}
}

func TestExpandRecurrenceWeekdaySets(t *testing.T) {
	dates, err := ExpandRecurrence(RecurEveryWeekday, d("2024-01-01"), d("2024-03-31"))
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range dates {
		if wd := v.Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Fatalf("weekday series contains %s (%s)", v, wd)
		}
	}
}

func TestExpandRecurrenceEmptyWeekdayRange(t *testing.T) {
	tests := []struct {
		name       string
		r          Recurrence
		start, end string
	}{
		{"weekdays over a weekend", RecurEveryWeekday, "2024-01-06", "2024-01-07"},
		{"weekends over a workweek", RecurEveryWeekend, "2024-01-08", "2024-01-12"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dates, err := ExpandRecurrence(tt.r, d(tt.start), d(tt.end))
			if err != nil {
				t.Fatal(err)
			}
			if len(dates) != 0 {
				t.Fatalf("expected no occurrences, got %v", dates)
			}
		})
	}
}

func TestExpandRecurrenceLimit(t *testing.T) {
	_, err := ExpandRecurrence(RecurEveryDay, d("2000-01-01"), d("2030-01-01"))
	if !errors.Is(err, ErrTooManyOccurrences) {
		t.Fatalf("expected ErrTooManyOccurrences, got %v", err)
	}
}

func TestParseRecurrence(t *testing.T) {
	if r, err := ParseRecurrence(""); err != nil || r != RecurNever {
		t.Fatalf("empty preset: %v %v", r, err)
	}
	if _, err := ParseRecurrence("everyFortnight"); !errors.Is(err, ErrUnknownPreset) {
		t.Fatalf("expected ErrUnknownPreset, got %v", err)
	}
	for _, r := range []Recurrence{RecurEveryDay, RecurEverySixMonths, RecurEveryYear} {
		if !r.IsValid() || !r.IsSeries() {
			t.Fatalf("%s should be a valid series", r)
		}
	}
}
