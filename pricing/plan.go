package pricing

import "github.com/shopspring/decimal"

// =============================================================================
// PAYMENT PLAN
// =============================================================================

// Plan splits a total into a down payment and equal installments.
//
// Identities:
//
//	DownPayment + Remaining == Total
//	InstallmentAmount x InstallmentCount == Remaining   (InstallmentCount > 0)
type Plan struct {
	Total             decimal.Decimal `json:"total"`
	DownPayment       decimal.Decimal `json:"down_payment"`
	Remaining         decimal.Decimal `json:"remaining"`
	InstallmentCount  int             `json:"installment_count"`
	InstallmentAmount decimal.Decimal `json:"installment_amount"`
}

// installmentPrecision is the number of decimal places kept when the
// remainder does not divide evenly. Rounding to cents is left to the caller.
const installmentPrecision = 16

// ComputePlan derives the plan for total under method. A nil method means no
// down payment and no installments: everything remains due.
//
// MaxInstallments 0 means there is no installment plan; the remainder is not
// split and InstallmentAmount is 0.
func ComputePlan(total decimal.Decimal, method *PaymentMethod) Plan {
	if total.IsNegative() {
		total = decimal.Zero
	}
	p := Plan{
		Total:             total,
		DownPayment:       decimal.Zero,
		Remaining:         total,
		InstallmentAmount: decimal.Zero,
	}
	if method == nil {
		return p
	}

	down := decimal.Zero
	switch method.DownPaymentKind {
	case DownPaymentPercent:
		down = percentOf(total, method.DownPaymentValue)
	case DownPaymentFixed:
		down = method.DownPaymentValue
	}
	down = clamp(down, decimal.Zero, total)

	p.DownPayment = down
	p.Remaining = total.Sub(down)

	if method.MaxInstallments > 0 {
		p.InstallmentCount = method.MaxInstallments
		p.InstallmentAmount = p.Remaining.DivRound(decimal.NewFromInt(int64(p.InstallmentCount)), installmentPrecision)
	}
	return p
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
