package core

import (
	"fmt"
	"math"
	"time"
)

// Date is a calendar date without a meaningful time of day. All anchored
// operations pin the time to local noon so that day arithmetic survives
// DST transitions and timezone rollover when dates are stored as plain
// YYYY-MM-DD strings.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// NewDate creates a Date anchored at local noon.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 12, 0, 0, 0, time.Local)}
}

// ParseDate parses a YYYY-MM-DD string. Empty input yields the zero Date.
func ParseDate(s string) (Date, error) {
	if s == "" {
		return Date{}, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, time.Local)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return NewDate(t.Year(), int(t.Month()), t.Day()), nil
}

// String renders YYYY-MM-DD, or "" for the zero Date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// Today returns the current calendar date anchored at noon.
func Today(now time.Time) Date {
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// DaysUntil returns the whole number of days from d to other. A DST
// transition between the two anchors leaves a 23h or 25h span, so the
// quotient is rounded rather than truncated toward zero.
func (d Date) DaysUntil(other Date) int {
	return int(math.Round(other.anchor().Sub(d.anchor()).Hours() / 24))
}

// MonthKey returns the YYYY-MM bucket key for monthly grouping.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

// AddMonths returns the first day of the month n months away.
func (d Date) AddMonths(n int) Date {
	y, m := d.Year(), int(d.Month())+n
	return NewDate(y, m, 1)
}

func (d Date) anchor() time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, time.Local)
}
