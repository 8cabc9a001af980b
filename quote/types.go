/*
Package quote holds a client's quote form while they fill it in.

PURPOSE:
  A Session is the thin stateful shell around the pure engine. It stores the
  client's choices and re-derives everything else (availability gate, price
  breakdown, payment plan, required-field gate) from them on every read.

CONTROL FLOW:
  Open(template)         -> Session with required products pre-selected
  SetDate(day)           -> availability.Tracker (stale checks discarded)
  SetQuantity/SetCity/
  SetPaymentMethod       -> stored; Breakdown() and Plan() recompute
  ApplyCoupon(code)      -> coupon.Validator; invalid coupons give 0 discount
  Submit()               -> gates checked, Summary handed to the Notifier

COLLABORATORS:
  Catalog   reads the template's offer (products, seasons, cities, methods)
  Checker   the availability resolver
  Notifier  receives the final Summary; formatting and delivery are its job
*/
package quote

import (
	"context"

	"github.com/warp/quote-engine/calendar"
	"github.com/warp/quote-engine/pricing"
)

// Template is a provider's published quote form.
type Template struct {
	ID              string `json:"id"`
	ProviderID      string `json:"provider_id"`
	Name            string `json:"name"`
	SeasonalPricing bool   `json:"seasonal_pricing"`
	GeoPricing      bool   `json:"geo_pricing"`

	// RequireContactFields locks products, totals, payment and coupons until
	// the required fields are filled in.
	RequireContactFields bool `json:"require_contact_fields"`
}

func (t Template) Flags() pricing.Flags {
	return pricing.Flags{SeasonalPricing: t.SeasonalPricing, GeoPricing: t.GeoPricing}
}

// ExtraField is a custom question on the form.
type ExtraField struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

// Offer is everything a template puts in front of the client.
type Offer struct {
	Template       Template                `json:"template"`
	Products       []pricing.Product       `json:"products"`
	Seasons        []pricing.Season        `json:"seasons"`
	Cities         []pricing.City          `json:"cities"`
	PaymentMethods []pricing.PaymentMethod `json:"payment_methods"`
	ExtraFields    []ExtraField            `json:"extra_fields"`
}

// Choices are the client's selections that feed the pricing pipeline.
type Choices struct {
	Selection       pricing.Selection
	Date            calendar.Day
	CityID          string
	PaymentMethodID string
	Coupon          *pricing.AppliedCoupon
}

// Input builds the pipeline input. City and payment method ids that the
// offer no longer contains contribute no adjustment.
func (o Offer) Input(c Choices) pricing.Input {
	return pricing.Input{
		Selection:     c.Selection,
		Products:      o.Products,
		Date:          c.Date,
		City:          pricing.FindCity(o.Cities, c.CityID),
		Seasons:       o.Seasons,
		PaymentMethod: pricing.FindPaymentMethod(o.PaymentMethods, c.PaymentMethodID),
		Coupon:        c.Coupon,
		Flags:         o.Template.Flags(),
	}
}

// Catalog reads offers. Offer returns (nil, nil) for an unknown template.
type Catalog interface {
	Offer(ctx context.Context, templateID string) (*Offer, error)
}

// Contact is the client's identity on the form.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}
