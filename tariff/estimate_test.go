package tariff_test

import (
	"testing"

	"github.com/lopmaker/order-converter-sub000/tariff"
	"github.com/shopspring/decimal"
)

func TestEstimateBreakdown(t *testing.T) {
	// 10 units at $100 sell / $50 cost, 10% duty:
	// revenue 1000, vendor 500, duty 50, 3pl = 50*0.4 + 10*0.10 = 21,
	// margin = 1000 - 500 - 21 = 479, rate 0.479.
	est := tariff.Estimate(d("100"), d("50"), d("10"), d("0.10"))

	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"CustomerRevenue", est.CustomerRevenue, "1000"},
		{"VendorCost", est.VendorCost, "500"},
		{"DutyCost", est.DutyCost, "50"},
		{"Estimated3plCost", est.Estimated3plCost, "21"},
		{"EstimatedMargin", est.EstimatedMargin, "479"},
		{"EstimatedMarginRate", est.EstimatedMarginRate, "0.479"},
	}
	for _, c := range checks {
		if !c.got.Equal(d(c.want)) {
			t.Errorf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}
}

func TestEstimateRounding(t *testing.T) {
	// 3 units at $19.99 / $7.77, 16.5% duty.
	est := tariff.Estimate(d("19.99"), d("7.77"), d("3"), d("0.165"))

	if !est.CustomerRevenue.Equal(d("59.97")) {
		t.Errorf("revenue = %s, want 59.97", est.CustomerRevenue)
	}
	if !est.VendorCost.Equal(d("23.31")) {
		t.Errorf("vendorCost = %s, want 23.31", est.VendorCost)
	}
	// 23.31 * 0.165 = 3.84615 -> 3.85
	if !est.DutyCost.Equal(d("3.85")) {
		t.Errorf("dutyCost = %s, want 3.85", est.DutyCost)
	}
	// 3.85*0.4 + 3*0.10 = 1.84
	if !est.Estimated3plCost.Equal(d("1.84")) {
		t.Errorf("3pl = %s, want 1.84", est.Estimated3plCost)
	}
	// margin derived from the rounded components, not raw inputs
	wantMargin := est.CustomerRevenue.Sub(est.VendorCost).Sub(est.Estimated3plCost)
	if !est.EstimatedMargin.Equal(wantMargin) {
		t.Errorf("margin = %s, want %s", est.EstimatedMargin, wantMargin)
	}
	if est.EstimatedMarginRate.Exponent() < -4 {
		t.Errorf("margin rate %s has more than 4 decimal places", est.EstimatedMarginRate)
	}
}

func TestEstimateZeroAndNegativeInputs(t *testing.T) {
	zero := tariff.LineEstimate{
		CustomerRevenue:     decimal.Zero,
		VendorCost:          decimal.Zero,
		DutyCost:            decimal.Zero,
		Estimated3plCost:    decimal.Zero,
		EstimatedMargin:     decimal.Zero,
		EstimatedMarginRate: decimal.Zero,
	}

	cases := []struct {
		name                   string
		price, cost, qty, rate string
	}{
		{"zero qty", "100", "50", "0", "0.10"},
		{"zero price", "0", "50", "10", "0.10"},
		{"zero cost", "100", "0", "10", "0.10"},
		{"zero rate", "100", "50", "10", "0"},
		{"negative qty clamps to zero", "100", "50", "-5", "0.10"},
		{"negative rate clamps to zero", "100", "50", "10", "-0.10"},
	}
	for _, tc := range cases {
		got := tariff.Estimate(d(tc.price), d(tc.cost), d(tc.qty), d(tc.rate))
		if !got.CustomerRevenue.Equal(zero.CustomerRevenue) ||
			!got.VendorCost.Equal(zero.VendorCost) ||
			!got.DutyCost.Equal(zero.DutyCost) ||
			!got.Estimated3plCost.Equal(zero.Estimated3plCost) ||
			!got.EstimatedMargin.Equal(zero.EstimatedMargin) ||
			!got.EstimatedMarginRate.Equal(zero.EstimatedMarginRate) {
			t.Errorf("%s: got %+v, want all zero", tc.name, got)
		}
	}
}

func TestEstimateNegativeMargin(t *testing.T) {
	// Selling below cost must produce a negative margin, not a clamped zero.
	est := tariff.Estimate(d("10"), d("50"), d("10"), d("0.10"))
	if !est.EstimatedMargin.IsNegative() {
		t.Errorf("margin = %s, want negative", est.EstimatedMargin)
	}
	if !est.EstimatedMarginRate.IsNegative() {
		t.Errorf("margin rate = %s, want negative", est.EstimatedMarginRate)
	}
}
