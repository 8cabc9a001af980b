package calendar

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - Inclusive range of days
// =============================================================================

// Period is the inclusive range [Start, End]. Blocked vacations and price
// seasons are both periods.
type Period struct {
	Start Day
	End   Day
}

// NewPeriod parses two YYYY-MM-DD strings.
func NewPeriod(start, end string) (Period, error) {
	s, err := Parse(start)
	if err != nil {
		return Period{}, err
	}
	e, err := Parse(end)
	if err != nil {
		return Period{}, err
	}
	return Period{Start: s, End: e}, nil
}

// Valid reports whether End is not before Start.
func (p Period) Valid() bool {
	return !p.Start.IsZero() && !p.End.IsZero() && p.Start.BeforeOrEqual(p.End)
}

// Contains returns true if d is within [Start, End]. An invalid period
// contains nothing.
func (p Period) Contains(d Day) bool {
	if !p.Valid() {
		return false
	}
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Overlaps reports whether two valid periods share at least one day.
func (p Period) Overlaps(o Period) bool {
	if !p.Valid() || !o.Valid() {
		return false
	}
	return p.Start.BeforeOrEqual(o.End) && o.Start.BeforeOrEqual(p.End)
}

// Days returns every day in the period.
func (p Period) Days() []Day {
	if !p.Valid() {
		return nil
	}
	days := make([]Day, 0, DaysBetween(p.Start, p.End)+1)
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// Month returns the period covering a whole calendar month.
func Month(year int, month int) (Period, error) {
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("%w: month %d", ErrInvalidDay, month)
	}
	return Period{
		Start: StartOfMonth(year, time.Month(month)),
		End:   EndOfMonth(year, time.Month(month)),
	}, nil
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
