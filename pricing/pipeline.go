package pricing

import (
	"github.com/shopspring/decimal"
	"github.com/warp/quote-engine/calendar"
)

// =============================================================================
// PIPELINE - Fixed-order adjustments on a running total
// =============================================================================

// Input is everything the pipeline reads. Optional choices are nil (or the
// zero Day) when the client has not made them.
type Input struct {
	Selection     Selection
	Products      []Product
	Date          calendar.Day
	City          *City
	Seasons       []Season
	PaymentMethod *PaymentMethod
	Coupon        *AppliedCoupon
	Flags         Flags
}

// Breakdown itemizes how Subtotal became Total. Every term is signed as it
// was applied: CouponDiscount is subtracted, everything else added.
type Breakdown struct {
	Subtotal             decimal.Decimal `json:"subtotal"`
	SeasonalAdjustment   decimal.Decimal `json:"seasonal_adjustment"`
	SeasonID             string          `json:"season_id,omitempty"`
	SeasonName           string          `json:"season_name,omitempty"`
	GeoAdjustmentPercent decimal.Decimal `json:"geo_adjustment_percent"`
	GeoTravelFee         decimal.Decimal `json:"geo_travel_fee"`
	PaymentSurcharge     decimal.Decimal `json:"payment_surcharge"`
	CouponDiscount       decimal.Decimal `json:"coupon_discount"`
	CouponCode           string          `json:"coupon_code,omitempty"`
	CouponKind           DiscountKind    `json:"coupon_kind,omitempty"`
	CouponValue          decimal.Decimal `json:"coupon_value"`
	Total                decimal.Decimal `json:"total"`
}

// ComputeBreakdown applies, in this order and each on the running total:
//
//  1. subtotal      sum of quantity x unit price
//  2. season        running x (multiplier - 1)          seasonal pricing on, date in a season
//  3. geo           running x percent / 100 + travel fee geo pricing on, city chosen
//  4. surcharge     running x surcharge / 100            payment method chosen
//  5. coupon        running x value / 100, or the fixed value capped at running
//  6. total         running, clamped at 0
//
// It never fails. Unknown product ids and non-positive quantities are ignored.
func ComputeBreakdown(in Input) Breakdown {
	b := Breakdown{
		Subtotal:             decimal.Zero,
		SeasonalAdjustment:   decimal.Zero,
		GeoAdjustmentPercent: decimal.Zero,
		GeoTravelFee:         decimal.Zero,
		PaymentSurcharge:     decimal.Zero,
		CouponDiscount:       decimal.Zero,
		CouponValue:          decimal.Zero,
	}

	b.Subtotal = Subtotal(in.Selection, in.Products)
	running := b.Subtotal

	if in.Flags.SeasonalPricing && !in.Date.IsZero() {
		if s := SeasonFor(in.Seasons, in.Date); s != nil {
			b.SeasonID = s.ID
			b.SeasonName = s.Name
			b.SeasonalAdjustment = running.Mul(s.Multiplier.Sub(decimal.NewFromInt(1)))
			running = running.Add(b.SeasonalAdjustment)
		}
	}

	if in.Flags.GeoPricing && in.City != nil {
		b.GeoAdjustmentPercent = percentOf(running, in.City.PercentAdjustment)
		b.GeoTravelFee = in.City.FixedTravelFee
		running = running.Add(b.GeoAdjustmentPercent).Add(b.GeoTravelFee)
	}

	if in.PaymentMethod != nil {
		b.PaymentSurcharge = percentOf(running, in.PaymentMethod.SurchargePercent)
		running = running.Add(b.PaymentSurcharge)
	}

	if c := in.Coupon; c != nil {
		b.CouponCode = c.Code
		b.CouponKind = c.Kind
		b.CouponValue = c.Value
		b.CouponDiscount = couponDiscount(running, *c)
		running = running.Sub(b.CouponDiscount)
	}

	if running.IsNegative() {
		running = decimal.Zero
	}
	b.Total = running
	return b
}

// Subtotal sums quantity x unit price over the products present in both
// selection and products.
func Subtotal(sel Selection, products []Product) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range products {
		qty := sel[p.ID]
		if qty <= 0 {
			continue
		}
		sum = sum.Add(p.UnitPrice.Mul(decimal.NewFromInt(int64(qty))))
	}
	return sum
}

// couponDiscount never returns a negative amount, and a fixed discount never
// exceeds what is left to pay.
func couponDiscount(running decimal.Decimal, c AppliedCoupon) decimal.Decimal {
	if !c.Value.IsPositive() {
		return decimal.Zero
	}
	switch c.Kind {
	case DiscountFixed:
		if !running.IsPositive() {
			return decimal.Zero
		}
		return decimal.Min(c.Value, running)
	case DiscountPercent, "":
		return percentOf(running, c.Value)
	}
	return decimal.Zero
}
