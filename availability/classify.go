package availability

import (
	"fmt"

	"github.com/warp/quote-engine/calendar"
)

// Snapshot is a point-in-time read of everything needed to classify one day.
type Snapshot struct {
	Config         RuleConfig
	BlockedDates   []BlockedDate
	BlockedPeriods []BlockedPeriod

	// EventCount counts confirmed and pending events on the day.
	EventCount int
}

// Classify turns a snapshot into a Result.
//
//	blocked    explicit blocked date, or a structural rule rejects the day
//	occupied   EventCount >= capacity
//	partial    0 < EventCount < capacity
//	available  no events
//
// An inactive agenda is reported as available: the provider does not track
// capacity, so nothing may be refused on its behalf.
func Classify(day calendar.Day, snap Snapshot) Result {
	cfg := snap.Config
	res := Result{
		Date:         day,
		CurrentCount: snap.EventCount,
		MaxCount:     cfg.Capacity(),
		WarningMode:  cfg.Mode(),
	}

	if !cfg.Active {
		res.Available = true
		res.Status = StatusAvailable
		res.WarningMode = WarningInformative
		res.Message = "Availability is not tracked for this provider"
		return res
	}

	if isExplicitlyBlocked(day, snap.BlockedDates) {
		return blocked(res, "This date is not available for bookings")
	}
	if cfg.MassRulesActive {
		switch structuralRejection(day, cfg, snap.BlockedPeriods) {
		case rejectPeriod:
			return blocked(res, "This date falls in a period closed for bookings")
		case rejectWeekday:
			return blocked(res, fmt.Sprintf("Bookings are not taken on %ss", day.Weekday()))
		case rejectParity, rejectAlternating:
			return blocked(res, "This date is outside the provider's working days")
		}
	}

	switch {
	case res.CurrentCount >= res.MaxCount:
		res.Status = StatusOccupied
		res.Message = "This date is fully booked"
	case res.CurrentCount > 0:
		res.Available = true
		res.Status = StatusPartial
		res.Message = fmt.Sprintf("Limited availability: %d of %d slots taken", res.CurrentCount, res.MaxCount)
	default:
		res.Available = true
		res.Status = StatusAvailable
		res.Message = "Date available"
	}
	return res
}

func blocked(res Result, msg string) Result {
	res.Available = false
	res.Blocked = true
	res.Status = StatusBlocked
	res.Message = msg
	return res
}

// FailOpen is returned when the remote check could not be completed.
// Booking is never refused because of an availability-check outage.
func FailOpen(day calendar.Day) Result {
	return Result{
		Date:         day,
		Available:    true,
		Status:       StatusAvailable,
		CurrentCount: 0,
		MaxCount:     1,
		WarningMode:  WarningInformative,
		Degraded:     true,
		Message:      "Availability check temporarily unavailable",
	}
}
