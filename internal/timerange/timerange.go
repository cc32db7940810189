// Package timerange computes inclusive civil day and month boundaries
// in a named timezone for report filtering.
package timerange

import "time"

// Range is an inclusive [Start, End] window. End carries the last
// representable millisecond of the period.
type Range struct {
	Start time.Time
	End   time.Time
}

// Day returns the boundaries of the civil day containing t in loc:
// 00:00:00.000 through 23:59:59.999 local time.
func Day(t time.Time, loc *time.Location) Range {
	year, month, day := t.In(loc).Date()
	return Range{
		Start: time.Date(year, month, day, 0, 0, 0, 0, loc),
		End:   time.Date(year, month, day, 23, 59, 59, 999_000_000, loc),
	}
}

// Month returns the boundaries of the civil month containing t in loc.
// The end is built as "day 0 of the next month", which time.Date
// normalizes to the month's last calendar day, leap February included.
func Month(t time.Time, loc *time.Location) Range {
	year, month, _ := t.In(loc).Date()
	return Range{
		Start: time.Date(year, month, 1, 0, 0, 0, 0, loc),
		End:   time.Date(year, month+1, 0, 23, 59, 59, 999_000_000, loc),
	}
}
