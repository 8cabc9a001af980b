/*
Package coupon validates discount codes typed by a client.

PURPOSE:
  A coupon is looked up remotely (Repository) and then checked by pure
  eligibility rules. Validation never returns an error to the caller: every
  outcome, including a failed lookup, is a Result with a message the form
  can display. An invalid coupon simply contributes no discount.

ELIGIBILITY (first failure wins):
  1. Code is not blank (after trimming)
  2. An active coupon with that code exists for the template
  3. Expiry, if set, is not in the past (the expiry day itself is valid)
  4. UsageLimit, if set, is not reached

  A code that exists only for another template gets the same message as a
  code that does not exist at all.

  Incrementing UsageCount after a sale is somebody else's job.
*/
package coupon

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/quote-engine/calendar"
	"github.com/warp/quote-engine/pricing"
)

type Coupon struct {
	ID           string
	TemplateID   string
	Code         string
	DiscountKind pricing.DiscountKind
	Value        decimal.Decimal

	// Expiry is the last day the coupon can be used. Nil never expires.
	Expiry *calendar.Day

	// UsageLimit 0 means unlimited.
	UsageLimit int
	UsageCount int
	Active     bool
}

// Repository looks up coupons. FindActive returns (nil, nil) when no active
// coupon with code exists for templateID.
type Repository interface {
	FindActive(ctx context.Context, templateID, code string) (*Coupon, error)
}

// NormalizeCode trims and uppercases a code. Stored codes are kept in this
// form so lookups are case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// =============================================================================
// RESULT
// =============================================================================

type Reason string

const (
	ReasonOK        Reason = "ok"
	ReasonBlank     Reason = "blank"
	ReasonNotFound  Reason = "not_found"
	ReasonExpired   Reason = "expired"
	ReasonExhausted Reason = "exhausted"
	ReasonError     Reason = "error"
)

type Result struct {
	Valid   bool                 `json:"valid"`
	Code    string               `json:"code"`
	Kind    pricing.DiscountKind `json:"kind,omitempty"`
	Value   decimal.Decimal      `json:"value"`
	Reason  Reason               `json:"reason"`
	Message string               `json:"message"`
}

// Applied returns the coupon as the pricing pipeline consumes it, or nil if
// the result is not valid.
func (r Result) Applied() *pricing.AppliedCoupon {
	if !r.Valid {
		return nil
	}
	return &pricing.AppliedCoupon{Code: r.Code, Kind: r.Kind, Value: r.Value}
}

// DiscountPercent is the percent value of a valid percent coupon, zero
// otherwise.
func (r Result) DiscountPercent() decimal.Decimal {
	if !r.Valid || r.Kind != pricing.DiscountPercent {
		return decimal.Zero
	}
	return r.Value
}
