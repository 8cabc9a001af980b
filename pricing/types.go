/*
Package pricing turns a product selection plus the client's date, location,
payment and coupon choices into one auditable total.

PURPOSE:
  Everything here is pure. The pipeline and the plan calculator are safe to
  call on every keystroke and in any order; they are re-derived from current
  state each time and never fail.

KEY CONCEPTS IN THIS FILE (types.go):
  - Product:       A catalog item with a unit price
  - Selection:     product id -> quantity, required products pinned to >= 1
  - Season:        A date range with a price multiplier
  - City:          A location with a percent adjustment and a travel fee
  - PaymentMethod: Down payment terms, installments and a surcharge
  - AppliedCoupon: A validated coupon as the pipeline sees it

MONEY:
  All amounts are decimal.Decimal. Nothing is rounded in this package;
  currency rounding is left to whoever renders the numbers.

SEE ALSO:
  - pipeline.go: ComputeBreakdown
  - season.go:   Season lookup and overlap report
  - plan.go:     ComputePlan
*/
package pricing

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/quote-engine/calendar"
)

// percentOf returns x * pct / 100 without any intermediate rounding.
func percentOf(x, pct decimal.Decimal) decimal.Decimal {
	return x.Mul(pct).Shift(-2)
}

// =============================================================================
// PRODUCTS AND SELECTION
// =============================================================================

type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Required  bool            `json:"required"`
	Order     int             `json:"order"`
}

// SortProducts orders products for display: by Order, then by name.
func SortProducts(products []Product) {
	sort.SliceStable(products, func(i, j int) bool {
		if products[i].Order != products[j].Order {
			return products[i].Order < products[j].Order
		}
		return products[i].Name < products[j].Name
	})
}

// Selection maps product ids to quantities.
type Selection map[string]int

// NewSelection pre-fills every required product at quantity 1.
func NewSelection(products []Product) Selection {
	s := Selection{}
	for _, p := range products {
		if p.Required {
			s[p.ID] = 1
		}
	}
	return s
}

// Set changes the quantity of p. Required products never drop below 1;
// an optional product set to 0 (or less) is removed.
func (s Selection) Set(p Product, qty int) {
	if p.Required && qty < 1 {
		qty = 1
	}
	if qty <= 0 {
		delete(s, p.ID)
		return
	}
	s[p.ID] = qty
}

func (s Selection) Clone() Selection {
	out := make(Selection, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// LineItem is one selected product as it appears in a summary.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Amount    decimal.Decimal `json:"amount"`
}

// Items lists the selected products in catalog order. Ids that are not in
// products are skipped.
func (s Selection) Items(products []Product) []LineItem {
	var items []LineItem
	for _, p := range products {
		qty := s[p.ID]
		if qty <= 0 {
			continue
		}
		items = append(items, LineItem{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  qty,
			UnitPrice: p.UnitPrice,
			Amount:    p.UnitPrice.Mul(decimal.NewFromInt(int64(qty))),
		})
	}
	return items
}

// =============================================================================
// SEASONS, CITIES, PAYMENT METHODS
// =============================================================================

type Season struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Start      calendar.Day    `json:"start"`
	End        calendar.Day    `json:"end"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

// Contains reports whether d falls inside the season, bounds included.
func (s Season) Contains(d calendar.Day) bool {
	return calendar.Period{Start: s.Start, End: s.End}.Contains(d)
}

type City struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	State             string          `json:"state,omitempty"`
	Country           string          `json:"country,omitempty"`
	PercentAdjustment decimal.Decimal `json:"percent_adjustment"`
	FixedTravelFee    decimal.Decimal `json:"fixed_travel_fee"`
}

type DownPaymentKind string

const (
	DownPaymentPercent DownPaymentKind = "percent"
	DownPaymentFixed   DownPaymentKind = "fixed"
)

type PaymentMethod struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	DownPaymentKind  DownPaymentKind `json:"down_payment_kind"`
	DownPaymentValue decimal.Decimal `json:"down_payment_value"`
	MaxInstallments  int             `json:"max_installments"`

	// SurchargePercent may be negative (a cash discount, for example).
	SurchargePercent decimal.Decimal `json:"surcharge_percent"`
}

// Flags switch whole adjustment systems on or off for a template.
// A disabled system contributes nothing, whatever its stored values are.
type Flags struct {
	SeasonalPricing bool `json:"seasonal_pricing"`
	GeoPricing      bool `json:"geo_pricing"`
}

// =============================================================================
// COUPONS
// =============================================================================

type DiscountKind string

const (
	DiscountPercent DiscountKind = "percent"
	DiscountFixed   DiscountKind = "fixed"
)

// AppliedCoupon is a coupon that already passed validation.
type AppliedCoupon struct {
	Code  string          `json:"code"`
	Kind  DiscountKind    `json:"kind"`
	Value decimal.Decimal `json:"value"`
}

// =============================================================================
// LOOKUPS
// =============================================================================

// FindCity returns the city with id, or nil when it is not (or no longer)
// configured.
func FindCity(cities []City, id string) *City {
	for i := range cities {
		if cities[i].ID == id {
			c := cities[i]
			return &c
		}
	}
	return nil
}

func FindPaymentMethod(methods []PaymentMethod, id string) *PaymentMethod {
	for i := range methods {
		if methods[i].ID == id {
			m := methods[i]
			return &m
		}
	}
	return nil
}

func FindProduct(products []Product, id string) (Product, bool) {
	for _, p := range products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}
