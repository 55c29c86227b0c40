// Package civil provides calendar dates keyed as "YYYY-MM-DD" strings.
//
// Every component of the engine buckets work by the calendar date in the
// owning user's IANA timezone. A Date carries no clock and no zone: the
// conversion from wall-clock time happens exactly once, in At/Today, and
// everything downstream compares plain day keys.
package civil

import (
	"fmt"
	"time"
)

const Layout = "2006-01-02"

// Date is a calendar day in the form "2006-01-02". The zero value is not
// a valid date.
type Date string

// At returns the calendar date of t as observed in loc.
func At(t time.Time, loc *time.Location) Date {
	return Date(t.In(loc).Format(Layout))
}

// Today returns the current calendar date in loc.
func Today(loc *time.Location) Date {
	return At(time.Now(), loc)
}

// Parse validates s as a day key.
func Parse(s string) (Date, error) {
	if _, err := time.Parse(Layout, s); err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date(s), nil
}

// Time returns midnight UTC of the date. It is only used for calendar
// arithmetic (weekday, day offsets), never for zone conversion.
func (d Date) Time() time.Time {
	t, err := time.Parse(Layout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

func (d Date) Day() int {
	return d.Time().Day()
}

func (d Date) Month() time.Month {
	return d.Time().Month()
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return Date(d.Time().AddDate(0, 0, n).Format(Layout))
}

// DaysSince returns the number of whole days from other to d. Positive
// when d is later than other.
func (d Date) DaysSince(other Date) int {
	return int(d.Time().Sub(other.Time()).Hours() / 24)
}

// Before reports whether d is strictly earlier than other. Zero-padded
// ISO keys order lexicographically.
func (d Date) Before(other Date) bool {
	return d < other
}

func (d Date) String() string {
	return string(d)
}
