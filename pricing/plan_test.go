package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/quote-engine/pricing"
)

func TestComputePlan_FixedDownPaymentNoInstallments(t *testing.T) {
	// GIVEN: total 900, fixed down payment 300, no installment plan
	method := &pricing.PaymentMethod{
		DownPaymentKind:  pricing.DownPaymentFixed,
		DownPaymentValue: d("300"),
		MaxInstallments:  0,
	}

	// WHEN
	p := pricing.ComputePlan(d("900"), method)

	// THEN
	assertDec(t, "300", p.DownPayment, "down payment")
	assertDec(t, "600", p.Remaining, "remaining")
	assert.Equal(t, 0, p.InstallmentCount)
	assertDec(t, "0", p.InstallmentAmount, "installment")
}

func TestComputePlan_PercentDownPayment(t *testing.T) {
	method := &pricing.PaymentMethod{
		DownPaymentKind:  pricing.DownPaymentPercent,
		DownPaymentValue: d("30"),
		MaxInstallments:  3,
	}

	p := pricing.ComputePlan(d("900"), method)

	assertDec(t, "270", p.DownPayment, "down payment")
	assertDec(t, "630", p.Remaining, "remaining")
	assert.Equal(t, 3, p.InstallmentCount)
	assertDec(t, "210", p.InstallmentAmount, "installment")
}

func TestComputePlan_DownPaymentClamped(t *testing.T) {
	over := pricing.ComputePlan(d("200"), &pricing.PaymentMethod{
		DownPaymentKind: pricing.DownPaymentFixed, DownPaymentValue: d("500"), MaxInstallments: 4,
	})
	assertDec(t, "200", over.DownPayment, "down payment")
	assertDec(t, "0", over.Remaining, "remaining")
	assertDec(t, "0", over.InstallmentAmount, "installment")

	under := pricing.ComputePlan(d("200"), &pricing.PaymentMethod{
		DownPaymentKind: pricing.DownPaymentPercent, DownPaymentValue: d("-10"),
	})
	assertDec(t, "0", under.DownPayment, "down payment")
	assertDec(t, "200", under.Remaining, "remaining")
}

func TestComputePlan_NoMethod(t *testing.T) {
	p := pricing.ComputePlan(d("450"), nil)
	assertDec(t, "0", p.DownPayment, "down payment")
	assertDec(t, "450", p.Remaining, "remaining")
	assert.Equal(t, 0, p.InstallmentCount)
}

func TestComputePlan_Identities(t *testing.T) {
	totals := []string{"0", "1", "99.99", "900", "1000", "12345.678"}
	methods := []pricing.PaymentMethod{
		{DownPaymentKind: pricing.DownPaymentPercent, DownPaymentValue: d("0"), MaxInstallments: 1},
		{DownPaymentKind: pricing.DownPaymentPercent, DownPaymentValue: d("25"), MaxInstallments: 4},
		{DownPaymentKind: pricing.DownPaymentPercent, DownPaymentValue: d("100"), MaxInstallments: 10},
		{DownPaymentKind: pricing.DownPaymentFixed, DownPaymentValue: d("50"), MaxInstallments: 3},
		{DownPaymentKind: pricing.DownPaymentFixed, DownPaymentValue: d("5000"), MaxInstallments: 12},
		{DownPaymentKind: pricing.DownPaymentFixed, DownPaymentValue: d("300"), MaxInstallments: 0},
	}
	tolerance := d("0.000000001")

	for _, ts := range totals {
		for i := range methods {
			total := d(ts)
			p := pricing.ComputePlan(total, &methods[i])

			assert.True(t, p.DownPayment.Add(p.Remaining).Equal(total), "total %s method %d", ts, i)
			assert.False(t, p.Remaining.IsNegative())
			if p.InstallmentCount > 0 {
				diff := p.InstallmentAmount.Mul(decimal.NewFromInt(int64(p.InstallmentCount))).Sub(p.Remaining).Abs()
				assert.True(t, diff.LessThan(tolerance), "total %s method %d: off by %s", ts, i, diff)
			} else {
				assert.True(t, p.InstallmentAmount.IsZero())
			}
		}
	}
}

func TestComputePlan_NegativeTotalTreatedAsZero(t *testing.T) {
	p := pricing.ComputePlan(d("-10"), &pricing.PaymentMethod{
		DownPaymentKind: pricing.DownPaymentFixed, DownPaymentValue: d("5"), MaxInstallments: 2,
	})
	assertDec(t, "0", p.Total, "total")
	assertDec(t, "0", p.DownPayment, "down payment")
	assertDec(t, "0", p.InstallmentAmount, "installment")
}
