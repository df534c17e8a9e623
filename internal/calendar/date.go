// Package calendar provides a date-only value type for day-granular billing math.
package calendar

import (
	"fmt"
	"time"
)

// Date is a calendar day with no time-of-day or zone component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// Of returns the calendar day t falls on when observed in loc.
// A nil loc means UTC.
func Of(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

// FromStoredDate converts a value scanned from a SQL DATE column.
// Drivers return those as midnight in UTC, so the zone is ignored.
func FromStoredDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Parse reads a YYYY-MM-DD string.
func Parse(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return FromStoredDate(t), nil
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// midnightUTC anchors d at 00:00 UTC, which has no DST transitions.
func (d Date) midnightUTC() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// DaysUntil returns the number of calendar days from d to other.
// It is negative when other is before d.
func (d Date) DaysUntil(other Date) int {
	hours := other.midnightUTC().Sub(d.midnightUTC()).Hours()
	return int(hours / 24)
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return FromStoredDate(d.midnightUTC().AddDate(0, 0, n))
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.DaysUntil(other) > 0
}

// Time returns d as midnight UTC, suitable for binding to a DATE parameter.
func (d Date) Time() time.Time {
	return d.midnightUTC()
}

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Display formats d as DD/MM/YYYY, the format residents see in messages.
func (d Date) Display() string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Day, int(d.Month), d.Year)
}
