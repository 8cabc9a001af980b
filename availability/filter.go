package availability

import (
	"time"

	"github.com/warp/quote-engine/calendar"
)

// =============================================================================
// STRUCTURAL FILTER - Pure, called once per calendar cell
// =============================================================================

// IsSelectable reports whether day may be picked on the calendar.
//
// Rule precedence, first match wins:
//
//  1. Mass rules off: only explicit blocked dates reject.
//  2. Mass rules on, in order: blocked period, blocked weekday, day-of-month
//     parity, alternating-week parity.
//
// Capacity is not considered; see Classify. Misconfigured rules are skipped,
// never fatal.
func IsSelectable(day calendar.Day, cfg RuleConfig, blockedDates []BlockedDate, blockedPeriods []BlockedPeriod) bool {
	if !cfg.MassRulesActive {
		return !isExplicitlyBlocked(day, blockedDates)
	}
	return structuralRejection(day, cfg, blockedPeriods) == ""
}

// SelectableDays evaluates every day of a period, e.g. one month grid.
func SelectableDays(p calendar.Period, cfg RuleConfig, blockedDates []BlockedDate, blockedPeriods []BlockedPeriod) map[calendar.Day]bool {
	days := p.Days()
	out := make(map[calendar.Day]bool, len(days))
	for _, d := range days {
		out[d] = IsSelectable(d, cfg, blockedDates, blockedPeriods)
	}
	return out
}

func isExplicitlyBlocked(day calendar.Day, blockedDates []BlockedDate) bool {
	for _, b := range blockedDates {
		if b.Date.Equal(day) {
			return true
		}
	}
	return false
}

// rejection names the structural rule that rejected a day.
type rejection string

const (
	rejectPeriod      rejection = "period"
	rejectWeekday     rejection = "weekday"
	rejectParity      rejection = "parity"
	rejectAlternating rejection = "alternating_week"
)

// structuralRejection applies the mass rules in order. Empty means accepted.
func structuralRejection(day calendar.Day, cfg RuleConfig, blockedPeriods []BlockedPeriod) rejection {
	for _, bp := range blockedPeriods {
		if bp.Period.Contains(day) {
			return rejectPeriod
		}
	}

	for _, wd := range cfg.BlockedWeekdays {
		if wd >= time.Sunday && wd <= time.Saturday && wd == day.Weekday() {
			return rejectWeekday
		}
	}

	even := day.DayOfMonth()%2 == 0
	switch cfg.EvenOddRule {
	case EvenOnly:
		if !even {
			return rejectParity
		}
	case OddOnly:
		if even {
			return rejectParity
		}
	}

	if cfg.AlternatingWeekAnchor != nil && !cfg.AlternatingWeekAnchor.IsZero() {
		evenWeek := calendar.WeekNumber(*cfg.AlternatingWeekAnchor, day)%2 == 0
		switch cfg.AlternatingWeekRule {
		case EvenWeeks:
			if !evenWeek {
				return rejectAlternating
			}
		case OddWeeks:
			if evenWeek {
				return rejectAlternating
			}
		}
	}

	return ""
}
