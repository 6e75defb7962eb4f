// Package dateutil provides a calendar-day value type and the month
// arithmetic used by the annuity engine.
package dateutil

import (
	"fmt"
	"strings"
	"time"
)

// DateFormat is the ISO-8601 layout used for every textual date.
const DateFormat = "2006-01-02"

const readDateFormat = "2006-1-2" // also accepts single-digit month/day

// Date is a calendar day. Time of day and location are discarded, so two
// Dates for the same day are == and can be used as map keys.
type Date struct {
	y int
	m time.Month
	d int
}

// New returns a normalized Date (2024-02-30 becomes 2024-03-01).
func New(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{t.Year(), t.Month(), t.Day()}
}

// FromTime returns the UTC calendar day of t.
func FromTime(t time.Time) Date {
	return New(t.UTC().Date())
}

// Today returns the current UTC day.
func Today() Date { return FromTime(time.Now()) }

func (d Date) Year() int          { return d.y }
func (d Date) Month() time.Month  { return d.m }
func (d Date) Day() int           { return d.d }
func (d Date) IsZero() bool       { return d.y == 0 && d.m == 0 && d.d == 0 }
func (d Date) String() string     { return d.Time().Format(DateFormat) }
func (d Date) Before(x Date) bool { return d.Compare(x) < 0 }
func (d Date) After(x Date) bool  { return d.Compare(x) > 0 }

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

// Compare returns -1, 0 or +1.
func (d Date) Compare(x Date) int {
	switch {
	case d.y != x.y:
		return cmpInt(d.y, x.y)
	case d.m != x.m:
		return cmpInt(int(d.m), int(x.m))
	default:
		return cmpInt(d.d, x.d)
	}
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date { return New(d.y, d.m, d.d+n) }

// AddMonths adds whole months, clamping the day to the last day of the
// target month (Jan 31 + 1 month = Feb 28/29).
func (d Date) AddMonths(n int) Date {
	first := New(d.y, d.m+time.Month(n), 1)
	day := d.d
	if last := DaysInMonth(first.y, first.m); day > last {
		day = last
	}
	return Date{first.y, first.m, day}
}

// StartOfMonth returns the first day of d's month.
func (d Date) StartOfMonth() Date { return Date{d.y, d.m, 1} }

// IsFirstOfMonth reports whether d is the first calendar day of its month.
func (d Date) IsFirstOfMonth() bool { return d.d == 1 }

// MonthKey returns "YYYY-MM".
func (d Date) MonthKey() string { return d.Time().Format("2006-01") }

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return New(year, month+1, 0).d
}

// MonthsBetween returns the number of full months from `from` to `to`.
// The result is negative when to is before from and is truncated toward zero.
func MonthsBetween(from, to Date) int {
	months := (to.y-from.y)*12 + int(to.m) - int(from.m)
	switch {
	case months > 0 && to.d < from.d:
		months--
	case months < 0 && to.d > from.d:
		months++
	}
	return months
}

// MonthStarts returns the first day of each of the n months following
// start. The function is stateless and can be called any number of times.
func MonthStarts(start Date, n int) []Date {
	if n <= 0 {
		return nil
	}
	out := make([]Date, 0, n)
	first := start.StartOfMonth()
	for i := 1; i <= n; i++ {
		out = append(out, first.AddMonths(i))
	}
	return out
}

// Parse reads a day from "2024-01-02", "2024-1-2", "02/01/2024" (day first)
// or any RFC 3339 timestamp, which is converted to its UTC day.
func Parse(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("empty date")
	}
	if strings.Contains(s, "/") {
		parts := strings.Split(s, "/")
		for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
			parts[i], parts[j] = parts[j], parts[i]
		}
		s = strings.Join(parts, "-")
	}
	if t, err := time.Parse(readDateFormat, s); err == nil {
		return FromTime(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q want format %q: %w", s, DateFormat, err)
	}
	return FromTime(t), nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// literals.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err.Error())
	}
	return d
}

// MarshalText implements encoding.TextMarshaler (used by JSON and YAML).
func (d Date) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte{}, nil
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
