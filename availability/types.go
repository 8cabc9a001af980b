/*
Package availability decides whether a calendar day can be booked with a provider.

PURPOSE:
  Two questions are answered here, at two different costs:

  1. Structural: "may this day be picked at all?" Pure, no I/O, evaluated for
     every calendar cell. See filter.go.
  2. Capacity: "how full is this day right now?" Remote-backed, evaluated once
     per date the client actually picks. See resolver.go.

KEY CONCEPTS IN THIS FILE (types.go):
  - RuleConfig:    A provider's booking policy (capacity + structural rules)
  - BlockedDate:   One explicit non-bookable day
  - BlockedPeriod: An inclusive non-bookable range (vacations)
  - EventRecord:   A booking made elsewhere; read-only here
  - Result:        The outcome of checking one day

WARNING MODES:
  informative  status is only displayed
  suggestive   status is displayed and a "contact the provider" action offered
  restrictive  final submission is disabled when the day is occupied or blocked

SEE ALSO:
  - filter.go:   Structural rules
  - classify.go: Capacity classification
  - resolver.go: Remote check with retry and fail-open
  - tracker.go:  Last-write-wins tracking of the selected day
  - gate.go:     Warning-mode enforcement
*/
package availability

import (
	"errors"
	"fmt"
	"time"

	"github.com/warp/quote-engine/calendar"
)

// =============================================================================
// ENUMS
// =============================================================================

type WarningMode string

const (
	WarningInformative WarningMode = "informative"
	WarningSuggestive  WarningMode = "suggestive"
	WarningRestrictive WarningMode = "restrictive"
)

func (m WarningMode) Valid() bool {
	switch m {
	case WarningInformative, WarningSuggestive, WarningRestrictive:
		return true
	}
	return false
}

// EvenOddRule restricts bookable days by day-of-month parity.
type EvenOddRule string

const (
	EvenOddNone EvenOddRule = "none"
	EvenOnly    EvenOddRule = "even_only"
	OddOnly     EvenOddRule = "odd_only"
)

// AlternatingWeekRule restricts bookable days to every other week.
type AlternatingWeekRule string

const (
	AlternatingNone AlternatingWeekRule = "none"
	EvenWeeks       AlternatingWeekRule = "even_weeks"
	OddWeeks        AlternatingWeekRule = "odd_weeks"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusPartial   Status = "partial"
	StatusOccupied  Status = "occupied"
	StatusBlocked   Status = "blocked"
)

type EventStatus string

const (
	EventConfirmed EventStatus = "confirmed"
	EventPending   EventStatus = "pending"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

// CountsTowardCapacity reports whether an event occupies a slot on its day.
func (s EventStatus) CountsTowardCapacity() bool {
	return s == EventConfirmed || s == EventPending
}

// =============================================================================
// RULE CONFIG
// =============================================================================

// RuleConfig is a provider's booking policy. It is created with defaults on
// first access and only ever deactivated, never deleted.
type RuleConfig struct {
	ProviderID      string
	MaxEventsPerDay int
	WarningMode     WarningMode
	Active          bool

	// Structural rules below only apply while MassRulesActive is set.
	MassRulesActive       bool
	BlockedWeekdays       []time.Weekday
	EvenOddRule           EvenOddRule
	AlternatingWeekRule   AlternatingWeekRule
	AlternatingWeekAnchor *calendar.Day
}

// DefaultRuleConfig is what a provider gets before configuring anything.
func DefaultRuleConfig(providerID string) RuleConfig {
	return RuleConfig{
		ProviderID:          providerID,
		MaxEventsPerDay:     1,
		WarningMode:         WarningSuggestive,
		Active:              true,
		EvenOddRule:         EvenOddNone,
		AlternatingWeekRule: AlternatingNone,
	}
}

// Capacity returns the daily maximum, never less than one.
func (c RuleConfig) Capacity() int {
	if c.MaxEventsPerDay < 1 {
		return 1
	}
	return c.MaxEventsPerDay
}

// Mode returns the configured warning mode, falling back to informative.
func (c RuleConfig) Mode() WarningMode {
	if c.WarningMode.Valid() {
		return c.WarningMode
	}
	return WarningInformative
}

// Problems lists configuration fields that the filter will ignore.
// An empty slice means every configured rule is in effect.
func (c RuleConfig) Problems() []ConfigProblem {
	var problems []ConfigProblem
	if c.MaxEventsPerDay < 1 {
		problems = append(problems, ConfigProblem{Field: "max_events_per_day", Reason: "must be at least 1, using 1"})
	}
	if c.WarningMode != "" && !c.WarningMode.Valid() {
		problems = append(problems, ConfigProblem{Field: "warning_mode", Reason: fmt.Sprintf("unknown mode %q, using informative", c.WarningMode)})
	}
	for _, wd := range c.BlockedWeekdays {
		if wd < time.Sunday || wd > time.Saturday {
			problems = append(problems, ConfigProblem{Field: "blocked_weekdays", Reason: fmt.Sprintf("weekday %d out of range 0-6, ignored", wd)})
		}
	}
	switch c.EvenOddRule {
	case "", EvenOddNone, EvenOnly, OddOnly:
	default:
		problems = append(problems, ConfigProblem{Field: "even_odd_rule", Reason: fmt.Sprintf("unknown rule %q, rule inactive", c.EvenOddRule)})
	}
	switch c.AlternatingWeekRule {
	case "", AlternatingNone:
	case EvenWeeks, OddWeeks:
		if c.AlternatingWeekAnchor == nil || c.AlternatingWeekAnchor.IsZero() {
			problems = append(problems, ConfigProblem{Field: "alternating_week_anchor", Reason: "missing anchor date, rule inactive"})
		}
	default:
		problems = append(problems, ConfigProblem{Field: "alternating_week_rule", Reason: fmt.Sprintf("unknown rule %q, rule inactive", c.AlternatingWeekRule)})
	}
	return problems
}

// ConfigProblem describes one ignored configuration field.
type ConfigProblem struct {
	Field  string
	Reason string
}

func (p ConfigProblem) String() string { return p.Field + ": " + p.Reason }

// =============================================================================
// BLOCKS AND EVENTS
// =============================================================================

type BlockedDate struct {
	ProviderID string
	Date       calendar.Day
	Reason     string
}

type BlockedPeriod struct {
	ID         string
	ProviderID string
	Period     calendar.Period
	Reason     string
}

type EventRecord struct {
	ID         string
	ProviderID string
	Date       calendar.Day
	Status     EventStatus
	ClientName string
	City       string
}

// =============================================================================
// RESULT
// =============================================================================

// Result is the outcome of checking one day. It is computed on demand and
// never persisted by the engine.
type Result struct {
	Date         calendar.Day `json:"date"`
	Available    bool         `json:"available"`
	Status       Status       `json:"status"`
	CurrentCount int          `json:"current_count"`
	MaxCount     int          `json:"max_count"`
	WarningMode  WarningMode  `json:"warning_mode"`
	Blocked      bool         `json:"blocked"`
	Degraded     bool         `json:"degraded"`
	Message      string       `json:"message"`
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrSourceUnavailable marks a failed remote read. The resolver never
	// returns it; it retries and then fails open.
	ErrSourceUnavailable = errors.New("availability source unavailable")
)
