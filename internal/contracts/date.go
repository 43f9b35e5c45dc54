package contracts

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the wire and storage form of a calendar date
const DateLayout = "2006-01-02"

// Date is a calendar day with no time of day and no zone.
// ⭐ SSOT: pick_date 는 항상 이 타입으로 다룸
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t as seen in loc
func DateOf(t time.Time, loc *time.Location) Date {
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today returns the current calendar date in loc
func Today(loc *time.Location) Date {
	return DateOf(time.Now(), loc)
}

// ParseDate parses YYYY-MM-DD
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, Validation("parse_date", fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", s))
	}
	return DateOf(t, time.UTC), nil
}

// MustParseDate is ParseDate for literals in tests and defaults
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String formats the date as YYYY-MM-DD
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// IsZero reports whether d is the zero Date
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Time returns midnight UTC of d. This is the form handed to the DATE column.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns d shifted by n days
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n), time.UTC)
}

// Before reports whether d is strictly earlier than o
func (d Date) Before(o Date) bool {
	return d.Time().Before(o.Time())
}

// After reports whether d is strictly later than o
func (d Date) After(o Date) bool {
	return d.Time().After(o.Time())
}

// UTCWindow returns the game window for d: local midnight of d in loc is
// converted to UTC, and the UTC calendar day containing that instant is the
// window [start, end).
func (d Date) UTCWindow(loc *time.Location) (start, end time.Time) {
	localStart := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc).UTC()
	start = time.Date(localStart.Year(), localStart.Month(), localStart.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

// InWindow reports whether t falls inside d's UTC window
func (d Date) InWindow(t time.Time, loc *time.Location) bool {
	start, end := d.UTCWindow(loc)
	return !t.Before(start) && t.Before(end)
}

// MarshalJSON encodes as "YYYY-MM-DD"
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes "YYYY-MM-DD"
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
