package coupon

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/quote-engine/calendar"
	"github.com/warp/quote-engine/pricing"
)

const (
	msgBlank     = "Enter a coupon code"
	msgNotFound  = "Invalid coupon code"
	msgExpired   = "This coupon has expired"
	msgExhausted = "This coupon has reached its usage limit"
	msgError     = "Could not validate the coupon, please try again"
)

type Validator struct {
	repo   Repository
	logger zerolog.Logger

	// Now is the clock used for expiry checks.
	Now func() time.Time
}

func NewValidator(repo Repository, logger zerolog.Logger) *Validator {
	return &Validator{repo: repo, logger: logger, Now: time.Now}
}

// Validate looks up code for templateID and checks eligibility.
func (v *Validator) Validate(ctx context.Context, code, templateID string) Result {
	code = NormalizeCode(code)
	res := Result{Code: code, Value: decimal.Zero}
	if code == "" {
		return invalid(res, ReasonBlank, msgBlank)
	}

	c, err := v.repo.FindActive(ctx, templateID, code)
	if err != nil {
		v.logger.Error().Err(err).
			Str("template_id", templateID).
			Str("code", code).
			Msg("coupon lookup failed")
		return invalid(res, ReasonError, msgError)
	}
	if c == nil || !c.Active || c.TemplateID != templateID {
		return invalid(res, ReasonNotFound, msgNotFound)
	}

	return Check(*c, calendar.FromTime(v.Now()))
}

// Check applies the eligibility rules to an already loaded coupon.
func Check(c Coupon, today calendar.Day) Result {
	res := Result{Code: NormalizeCode(c.Code), Value: decimal.Zero}

	if !c.Active {
		return invalid(res, ReasonNotFound, msgNotFound)
	}
	if c.Expiry != nil && !c.Expiry.IsZero() && c.Expiry.Before(today) {
		return invalid(res, ReasonExpired, msgExpired)
	}
	if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
		return invalid(res, ReasonExhausted, msgExhausted)
	}

	kind := c.DiscountKind
	if kind == "" {
		kind = pricing.DiscountPercent
	}
	res.Valid = true
	res.Kind = kind
	res.Value = c.Value
	res.Reason = ReasonOK
	if kind == pricing.DiscountFixed {
		res.Message = "Coupon applied: " + c.Value.String() + " off"
	} else {
		res.Message = "Coupon applied: " + c.Value.String() + "% off"
	}
	return res
}

func invalid(res Result, reason Reason, msg string) Result {
	res.Valid = false
	res.Reason = reason
	res.Message = msg
	return res
}
