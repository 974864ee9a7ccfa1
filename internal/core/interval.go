package core

// Interval is a chart sampling granularity.
type Interval string

const (
	Interval1Day    Interval = "1 day"
	Interval2Days   Interval = "2 days"
	Interval3Days   Interval = "3 days"
	Interval5Days   Interval = "5 days"
	Interval1Week   Interval = "1 week"
	Interval1Month  Interval = "1 month"
	Interval1Year   Interval = "1 year"
	daysPerMonthish          = 31
	daysPerYearish           = 365
)

// intervalThresholds maps an exclusive upper bound on elapsed days to a
// bucket. The last matching row is never reached: everything else is yearly.
var intervalThresholds = []struct {
	below    int
	interval Interval
}{
	{daysPerMonthish, Interval1Day},
	{3 * daysPerMonthish, Interval2Days},
	{6 * daysPerMonthish, Interval3Days},
	{9 * daysPerMonthish, Interval5Days},
	{2 * daysPerYearish, Interval1Week},
	{5 * daysPerYearish, Interval1Month},
}

// DateInterval maps the elapsed days between start and end to a bucket size.
func DateInterval(start, end Date) Interval {
	return IntervalForDays(start.DaysUntil(end))
}

// IntervalForDays maps a day count to a bucket size.
func IntervalForDays(d int) Interval {
	for _, th := range intervalThresholds {
		if d < th.below {
			return th.interval
		}
	}
	return Interval1Year
}

// Days returns the bucket width for day-based intervals and 0 for calendar
// (month, year) intervals.
func (i Interval) Days() int {
	switch i {
	case Interval1Day:
		return 1
	case Interval2Days:
		return 2
	case Interval3Days:
		return 3
	case Interval5Days:
		return 5
	case Interval1Week:
		return 7
	default:
		return 0
	}
}

// Months returns the bucket width for calendar intervals and 0 otherwise.
func (i Interval) Months() int {
	switch i {
	case Interval1Month:
		return 1
	case Interval1Year:
		return 12
	default:
		return 0
	}
}

// BucketStart returns the start of the bucket that contains d, given the
// series origin.
func (i Interval) BucketStart(origin, d Date) Date {
	if n := i.Days(); n > 0 {
		offset := origin.DaysUntil(d)
		if offset < 0 {
			return origin
		}
		return origin.AddDays(offset - offset%n)
	}
	if i == Interval1Month {
		return NewDate(d.Year(), d.Month(), 1)
	}
	return NewDate(d.Year(), 1, 1)
}

// Next returns the start of the bucket following the one starting at d.
func (i Interval) Next(d Date) Date {
	if n := i.Days(); n > 0 {
		return d.AddDays(n)
	}
	if m := i.Months(); m > 0 {
		return d.AddMonthsClamped(m, 1)
	}
	return d.AddDays(1)
}
