package core

import (
	"testing"
)

func d(s string) Date {
	v, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestPreviousPeriod(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		wantStart  string
		wantEnd    string
	}{
		{"full month leap february", "2024-03-01", "2024-03-31", "2024-02-01", "2024-02-29"},
		{"full month january wraps year", "2024-01-01", "2024-01-31", "2023-12-01", "2023-12-31"},
		{"full month short into long", "2023-05-01", "2023-05-31", "2023-04-01", "2023-04-30"},
		{"full year", "2024-01-01", "2024-12-31", "2023-01-01", "2023-12-31"},
		{"multi year full years", "2022-01-01", "2024-12-31", "2021-01-01", "2023-12-31"},
		{"general two weeks", "2024-03-10", "2024-03-23", "2024-02-25", "2024-03-09"},
		{"general single day", "2024-03-10", "2024-03-10", "2024-03-09", "2024-03-09"},
		{"month to month is general", "2024-01-01", "2024-02-29", "2023-11-02", "2023-12-31"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PreviousPeriod(d(tt.start), d(tt.end))
			if got.Start.String() != tt.wantStart || got.End.String() != tt.wantEnd {
				t.Errorf("PreviousPeriod(%s, %s) = %s, want %s_%s",
					tt.start, tt.end, got, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestPreviousPeriodGeneralLength(t *testing.T) {
	start := d("2023-06-17")
	for span := 0; span < 800; span += 7 {
		end := start.AddDays(span)
		if (start.Month() == 1 && start.Day() == 1) || (start.IsFirstOfMonth() && end.IsLastOfMonth()) {
			continue
		}
		prev := PreviousPeriod(start, end)
		if prev.Start.DaysUntil(prev.End) != start.DaysUntil(end) {
			t.Fatalf("span %d: previous length %d, want %d", span, prev.Start.DaysUntil(prev.End), span)
		}
		if prev.End != start.AddDays(-1) {
			t.Fatalf("span %d: previous end %s, want %s", span, prev.End, start.AddDays(-1))
		}
	}
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"all", "all", false},
		{"", "all", false},
		{"2024-01-01_2024-01-31", "2024-01-01_2024-01-31", false},
		{"2024-01-31_2024-01-01", "", true},
		{"2024-01-01", "", true},
		{"2024-01-01_nope", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := ParsePeriod(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.String() != tt.want {
				t.Errorf("got %s, want %s", p, tt.want)
			}
		})
	}
}

func TestPeriodDaysAndContains(t *testing.T) {
	p, err := NewPeriod(d("2024-02-01"), d("2024-02-29"))
	if err != nil {
		t.Fatal(err)
	}
	if p.Days() != 29 {
		t.Errorf("Days() = %d, want 29", p.Days())
	}
	if !p.Contains(d("2024-02-29")) || p.Contains(d("2024-03-01")) {
		t.Errorf("Contains boundaries wrong")
	}
	if !(Period{}).Contains(d("1999-01-01")) {
		t.Errorf("unbounded period must contain everything")
	}
}

func TestDateInterval(t *testing.T) {
	start := d("2024-01-01")
	tests := []struct {
		days int
		want Interval
	}{
		{0, Interval1Day},
		{30, Interval1Day},
		{31, Interval2Days},
		{92, Interval2Days},
		{93, Interval3Days},
		{185, Interval3Days},
		{186, Interval5Days},
		{278, Interval5Days},
		{279, Interval1Week},
		{729, Interval1Week},
		{730, Interval1Month},
		{1824, Interval1Month},
		{1825, Interval1Year},
		{9000, Interval1Year},
	}
	for _, tt := range tests {
		if got := DateInterval(start, start.AddDays(tt.days)); got != tt.want {
			t.Errorf("DateInterval(+%d days) = %q, want %q", tt.days, got, tt.want)
		}
	}
}

func TestDateIntervalMonotonic(t *testing.T) {
	order := map[Interval]int{
		Interval1Day: 0, Interval2Days: 1, Interval3Days: 2, Interval5Days: 3,
		Interval1Week: 4, Interval1Month: 5, Interval1Year: 6,
	}
	prev := -1
	for n := 0; n < 2500; n++ {
		r := order[IntervalForDays(n)]
		if r < prev {
			t.Fatalf("granularity decreased at %d days", n)
		}
		prev = r
	}
}

func TestIntervalBucketStart(t *testing.T) {
	origin := d("2024-01-01")
	if got := Interval1Week.BucketStart(origin, d("2024-01-10")); got != d("2024-01-08") {
		t.Errorf("week bucket = %s", got)
	}
	if got := Interval1Month.BucketStart(origin, d("2024-03-17")); got != d("2024-03-01") {
		t.Errorf("month bucket = %s", got)
	}
	if got := Interval1Year.BucketStart(origin, d("2025-07-04")); got != d("2025-01-01") {
		t.Errorf("year bucket = %s", got)
	}
}
