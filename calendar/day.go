/*
Package calendar provides the calendar-day value used by the whole engine.

PURPOSE:
  Quote forms exchange dates as "YYYY-MM-DD" strings. Those strings name a
  calendar day, never an instant, so they must not pass through a local
  timezone on their way into the engine. Day pins every value to midnight UTC
  and only ever compares year/month/day.

KEY CONCEPTS IN THIS FILE (day.go):
  - Day:    A calendar day with no time-of-day component
  - Parse:  Strict YYYY-MM-DD parsing (rejects 2025-02-30, 2025-2-3, ...)
  - Weeks:  Week arithmetic used by the alternating-week booking rule

USAGE:
  d, err := calendar.Parse("2025-12-25")
  if err != nil { ... }
  d.Weekday()           // time.Thursday
  d.AddDays(7).String() // "2026-01-01"

SEE ALSO:
  - period.go: Inclusive date ranges (blocked periods, seasons)
*/
package calendar

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Layout is the only accepted textual form of a Day.
const Layout = "2006-01-02"

// ErrInvalidDay is returned when a string is not a valid YYYY-MM-DD calendar day.
var ErrInvalidDay = errors.New("invalid calendar day")

// =============================================================================
// DAY - Calendar day without time-of-day
// =============================================================================

type Day struct {
	t time.Time
}

// NewDay builds a Day. Out-of-range values normalize the way time.Date does.
func NewDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime keeps the wall-clock date of t in its own location.
func FromTime(t time.Time) Day {
	return NewDay(t.Year(), t.Month(), t.Day())
}

func Today() Day {
	return FromTime(time.Now())
}

// Parse reads a strict YYYY-MM-DD string.
func Parse(s string) (Day, error) {
	if len(s) != len(Layout) {
		return Day{}, fmt.Errorf("%w: %q", ErrInvalidDay, s)
	}
	t, err := time.Parse(Layout, s)
	if err != nil {
		return Day{}, fmt.Errorf("%w: %q", ErrInvalidDay, s)
	}
	return Day{t: t}, nil
}

// MustParse is Parse for fixtures and tests.
func MustParse(s string) Day {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Day) Before(o Day) bool        { return d.t.Before(o.t) }
func (d Day) After(o Day) bool         { return d.t.After(o.t) }
func (d Day) Equal(o Day) bool         { return d.t.Equal(o.t) }
func (d Day) BeforeOrEqual(o Day) bool { return !d.t.After(o.t) }
func (d Day) AfterOrEqual(o Day) bool  { return !d.t.Before(o.t) }

// Arithmetic
func (d Day) AddDays(n int) Day   { return Day{t: d.t.AddDate(0, 0, n)} }
func (d Day) AddMonths(n int) Day { return Day{t: d.t.AddDate(0, n, 0)} }

// Properties
func (d Day) Year() int             { return d.t.Year() }
func (d Day) Month() time.Month     { return d.t.Month() }
func (d Day) DayOfMonth() int       { return d.t.Day() }
func (d Day) Weekday() time.Weekday { return d.t.Weekday() }
func (d Day) IsZero() bool          { return d.t.IsZero() }
func (d Day) Time() time.Time       { return d.t }

func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(Layout)
}

// MarshalJSON writes the day as "YYYY-MM-DD" (null for the zero Day).
func (d Day) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Day) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil || *s == "" {
		*d = Day{}
		return nil
	}
	parsed, err := Parse(*s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// WEEK ARITHMETIC
// =============================================================================

// StartOfWeek returns the Sunday that opens the week containing d.
func (d Day) StartOfWeek() Day {
	return d.AddDays(-int(d.Weekday()))
}

// DaysBetween returns to - from in whole days (negative when to is earlier).
func DaysBetween(from, to Day) int {
	return int(to.t.Sub(from.t).Hours() / 24)
}

// WeekNumber counts 7-day blocks from the Sunday-normalized anchor week.
// The anchor's own week is week 1; the week before it is week 0, then -1, ...
func WeekNumber(anchor, d Day) int {
	days := DaysBetween(anchor.StartOfWeek(), d)
	return floorDiv(days, 7) + 1
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// StartOfMonth / EndOfMonth
func StartOfMonth(year int, month time.Month) Day { return NewDay(year, month, 1) }
func EndOfMonth(year int, month time.Month) Day   { return NewDay(year, month+1, 1).AddDays(-1) }
