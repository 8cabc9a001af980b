/*
errors.go - Error types for quote sessions

PURPOSE:
  Sessions fail loudly only where the client must act: an unknown template or
  session, a product or option that is not offered, a submission refused by
  the availability gate or by missing fields. Pricing and coupon problems are
  never errors; they show up as zero terms and validation messages.

USAGE:
    if errors.Is(err, quote.ErrMissingFields) {
        var mf *quote.MissingFieldsError
        errors.As(err, &mf) // mf.Fields lists what to fill in
    }

SEE ALSO:
  - session.go: Returns these errors
  - api/handlers.go: Maps them to HTTP status codes
*/
package quote

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrTemplateNotFound is returned when a quote template does not exist.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrSessionNotFound is returned for an unknown or expired session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUnknownProduct is returned when a quantity is set for a product the
	// template does not offer.
	ErrUnknownProduct = errors.New("product not offered by this template")

	// ErrUnknownOption is returned when a city or payment method is picked
	// that the template does not offer.
	ErrUnknownOption = errors.New("option not offered by this template")

	// ErrFieldsLocked is returned when the template requires contact fields
	// before products, payment and coupons unlock.
	ErrFieldsLocked = errors.New("fill in the required fields first")

	// ErrSubmissionBlocked is returned when restrictive warning mode refuses
	// the selected date.
	ErrSubmissionBlocked = errors.New("submission blocked by availability")

	// ErrMissingFields is returned when required fields are empty on submit.
	ErrMissingFields = errors.New("required fields missing")

	// ErrAlreadySubmitted is returned on a second submit of the same session.
	ErrAlreadySubmitted = errors.New("quote already submitted")

	// ErrSubmitInProgress is returned while another submit of the same
	// session is waiting on the notifier.
	ErrSubmitInProgress = errors.New("quote submission in progress")

	// ErrNotifyFailed wraps a notifier failure. The session stays open and
	// the submit may be retried.
	ErrNotifyFailed = errors.New("notify provider")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// MissingFieldsError lists the fields that still need a value.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("required fields missing: %s", strings.Join(e.Fields, ", "))
}

func (e *MissingFieldsError) Unwrap() error {
	return ErrMissingFields
}

// BlockedError carries the reason the availability gate gave.
type BlockedError struct {
	Date   string
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("submission blocked for %s: %s", e.Date, e.Reason)
}

func (e *BlockedError) Unwrap() error {
	return ErrSubmissionBlocked
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing template or session.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound) ||
		errors.Is(err, ErrSessionNotFound)
}

// IsClientError returns true if the client can fix the error by changing input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnknownProduct) ||
		errors.Is(err, ErrUnknownOption) ||
		errors.Is(err, ErrFieldsLocked) ||
		errors.Is(err, ErrMissingFields)
}

// IsConflict returns true if the request clashes with the session's state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrSubmissionBlocked) ||
		errors.Is(err, ErrAlreadySubmitted) ||
		errors.Is(err, ErrSubmitInProgress)
}
