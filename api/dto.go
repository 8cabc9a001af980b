/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain types that are
  already a stable contract (pricing.Breakdown, pricing.Plan, quote.Summary,
  availability.Result, coupon.Result) are returned as-is; this file holds the
  request bodies and the few responses that combine several of them.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request types carry go-playground/validator tags. decodeAndValidate in
  handlers.go rejects a body before any domain call. Dates are YYYY-MM-DD,
  money is a decimal string.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/provider.go: ProviderJSON, accepted as-is by POST /api/providers
*/
package api

import (
	"github.com/warp/quote-engine/availability"
	"github.com/warp/quote-engine/coupon"
	"github.com/warp/quote-engine/pricing"
)

// =============================================================================
// AVAILABILITY
// =============================================================================

// CalendarDayDTO is one cell of a month grid.
type CalendarDayDTO struct {
	Date       string `json:"date"`
	Selectable bool   `json:"selectable"`
}

// CalendarDTO lists which days of a month may be picked at all.
type CalendarDTO struct {
	ProviderID string           `json:"provider_id"`
	Month      string           `json:"month"`
	Days       []CalendarDayDTO `json:"days"`
}

// AvailabilityDTO is a capacity check with what the form may do about it.
type AvailabilityDTO struct {
	Result availability.Result `json:"result"`
	Gate   availability.Gate   `json:"gate"`
}

// =============================================================================
// STATELESS QUOTE
// =============================================================================

// ItemRequest sets one product quantity. Zero removes an optional product.
type ItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=0"`
}

// QuoteRequest prices a set of choices without opening a session.
type QuoteRequest struct {
	Date            string        `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Items           []ItemRequest `json:"items" validate:"dive"`
	CityID          string        `json:"city_id,omitempty"`
	PaymentMethodID string        `json:"payment_method_id,omitempty"`
	CouponCode      string        `json:"coupon_code,omitempty"`
}

// QuoteDTO is the price of a QuoteRequest.
type QuoteDTO struct {
	Items     []pricing.LineItem `json:"items"`
	Breakdown pricing.Breakdown  `json:"breakdown"`
	Plan      pricing.Plan       `json:"plan"`
	Coupon    *coupon.Result     `json:"coupon,omitempty"`
}

// CouponRequest carries a code as typed by the client.
type CouponRequest struct {
	Code string `json:"code"`
}

// =============================================================================
// SESSIONS
// =============================================================================

// DateRequest picks the event date. An empty date clears it.
type DateRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type ItemsRequest struct {
	Items []ItemRequest `json:"items" validate:"required,dive"`
}

type LocationRequest struct {
	CityID string `json:"city_id"`
}

type PaymentRequest struct {
	PaymentMethodID string `json:"payment_method_id"`
}

// ContactRequest sets the client's identity and custom field answers.
type ContactRequest struct {
	Name  string            `json:"name" validate:"max=200"`
	Email string            `json:"email" validate:"omitempty,email"`
	Phone string            `json:"phone" validate:"max=50"`
	Extra map[string]string `json:"extra,omitempty"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo data set.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	TemplateID  string `json:"template_id"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// MISC
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details string   `json:"details,omitempty"`
	Fields  []string `json:"fields,omitempty"`
}

type TemplateDTO struct {
	ID         string `json:"id"`
	ProviderID string `json:"provider_id"`
	Name       string `json:"name"`
}
