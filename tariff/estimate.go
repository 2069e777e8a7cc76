package tariff

import (
	"github.com/lopmaker/order-converter-sub000/utils"
	"github.com/shopspring/decimal"
)

// 3PL cost drivers: a handling component proportional to duty plus a flat
// per-piece freight estimate. Two independent drivers, summed.
var (
	handlingShareOfDuty = decimal.NewFromFloat(0.4)
	freightPerUnit      = decimal.NewFromFloat(0.10)
)

// LineEstimate is the per-line cost/margin breakdown. All monetary fields are
// rounded to 2 decimals, the margin rate to 4, and the fields are internally
// consistent with each other (margin is derived from the rounded components,
// not from raw inputs).
type LineEstimate struct {
	CustomerRevenue     decimal.Decimal
	VendorCost          decimal.Decimal
	DutyCost            decimal.Decimal
	Estimated3plCost    decimal.Decimal
	EstimatedMargin     decimal.Decimal
	EstimatedMarginRate decimal.Decimal
}

// Estimate turns unit economics into a line breakdown. Negative inputs are
// clamped to zero, never rejected: duty estimates must always be producible,
// even speculatively. A zero anywhere in the unit economics means the line is
// not estimable yet, so every output is zero rather than a misleading partial
// figure.
func Estimate(customerUnitPrice, vendorUnitPrice, qty, tariffRate decimal.Decimal) LineEstimate {
	customerUnitPrice = utils.ClampNonNegative(customerUnitPrice)
	vendorUnitPrice = utils.ClampNonNegative(vendorUnitPrice)
	qty = utils.ClampNonNegative(qty)
	tariffRate = utils.ClampNonNegative(tariffRate)

	if customerUnitPrice.IsZero() || vendorUnitPrice.IsZero() || qty.IsZero() || tariffRate.IsZero() {
		return LineEstimate{
			CustomerRevenue:     decimal.Zero,
			VendorCost:          decimal.Zero,
			DutyCost:            decimal.Zero,
			Estimated3plCost:    decimal.Zero,
			EstimatedMargin:     decimal.Zero,
			EstimatedMarginRate: decimal.Zero,
		}
	}

	revenue := utils.RoundMoney(customerUnitPrice.Mul(qty))
	vendorCost := utils.RoundMoney(vendorUnitPrice.Mul(qty))
	dutyCost := utils.RoundMoney(vendorCost.Mul(tariffRate))
	threePl := utils.RoundMoney(dutyCost.Mul(handlingShareOfDuty).Add(qty.Mul(freightPerUnit)))
	margin := revenue.Sub(vendorCost).Sub(threePl)

	marginRate := decimal.Zero
	if revenue.IsPositive() {
		marginRate = utils.RoundRate(margin.Div(revenue))
	}

	return LineEstimate{
		CustomerRevenue:     revenue,
		VendorCost:          vendorCost,
		DutyCost:            dutyCost,
		Estimated3plCost:    threePl,
		EstimatedMargin:     margin,
		EstimatedMarginRate: marginRate,
	}
}
