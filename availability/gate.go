package availability

// Gate is what the form may do given the current availability result.
// The resolver only reports; the warning mode decides enforcement.
type Gate struct {
	ShowStatus    bool   `json:"show_status"`
	OfferContact  bool   `json:"offer_contact"`
	SubmitAllowed bool   `json:"submit_allowed"`
	Reason        string `json:"reason,omitempty"`
}

// GateFor derives the gate. A nil result (no day picked yet, or a check in
// flight) never restricts anything.
func GateFor(res *Result) Gate {
	if res == nil {
		return Gate{SubmitAllowed: true}
	}

	g := Gate{ShowStatus: true, SubmitAllowed: true}
	unavailable := res.Status == StatusOccupied || res.Status == StatusBlocked

	switch {
	case res.Status == StatusBlocked:
		g.OfferContact = true
	case res.Status == StatusOccupied && res.WarningMode != WarningInformative:
		g.OfferContact = true
	}

	if res.WarningMode == WarningRestrictive && unavailable {
		g.SubmitAllowed = false
		g.Reason = "This date is not available. Please choose another date."
	}
	return g
}
