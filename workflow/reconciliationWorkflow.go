package workflow

import (
	"errors"

	"github.com/lopmaker/order-converter-sub000/models"
	"github.com/lopmaker/order-converter-sub000/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OutstandingAmount is amount minus the payments posted against the bill,
// clamped to zero for display/aggregation. Overpayment is not rejected here
// (product decision pending); the clamp only affects aggregation.
func OutstandingAmount(amount, paid decimal.Decimal) decimal.Decimal {
	outstanding := amount.Sub(paid)
	if outstanding.IsNegative() {
		return decimal.Zero
	}
	return outstanding
}

// DeriveBillStatus maps paid-vs-amount onto the bill status. A bill's status
// is never assigned outside this derivation except at creation (Open).
func DeriveBillStatus(amount, paid decimal.Decimal) models.BillStatus {
	switch {
	case paid.GreaterThanOrEqual(amount) && amount.IsPositive():
		return models.BillStatusPaid
	case !amount.IsPositive() && paid.IsPositive():
		return models.BillStatusPaid
	case paid.IsPositive():
		return models.BillStatusPartial
	default:
		return models.BillStatusOpen
	}
}

// OrderOutstanding aggregates the three balances recompute decides CLOSED on.
type OrderOutstanding struct {
	AccountsReceivable decimal.Decimal
	VendorPayable      decimal.Decimal
	LogisticsPayable   decimal.Decimal
}

func (o OrderOutstanding) AllZero() bool {
	return o.AccountsReceivable.IsZero() && o.VendorPayable.IsZero() && o.LogisticsPayable.IsZero()
}

func (o OrderOutstanding) Any() bool {
	return !o.AllZero()
}

// billLike is the minimal bill shape the ledger sums over.
type billLike struct {
	targetType models.PaymentTargetType
	id         int
	amount     decimal.Decimal
}

// sumOutstanding totals outstanding balances for a set of bills of one kind,
// given the payments posted against them.
func sumOutstanding(bills []billLike, paidByTarget map[int]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, bill := range bills {
		total = total.Add(OutstandingAmount(bill.amount, paidByTarget[bill.id]))
	}
	return total
}

// billsForOrder loads the (id, amount) projection of one bill kind.
func billsForOrder(tx *gorm.DB, targetType models.PaymentTargetType, orderId int) ([]billLike, error) {
	var model interface{}
	switch targetType {
	case models.PaymentTargetCustomerInvoice:
		model = &models.CommercialInvoice{}
	case models.PaymentTargetVendorBill:
		model = &models.VendorBill{}
	case models.PaymentTargetLogisticsBill:
		model = &models.LogisticsBill{}
	}
	type row struct {
		ID     int
		Amount decimal.Decimal
	}
	var rows []row
	if err := tx.Model(model).Select("id, amount").Where("order_id = ?", orderId).Scan(&rows).Error; err != nil {
		return nil, err
	}
	bills := make([]billLike, 0, len(rows))
	for _, r := range rows {
		bills = append(bills, billLike{targetType: targetType, id: r.ID, amount: r.Amount})
	}
	return bills, nil
}

// OutstandingForOrder computes the three balances straight from the bill and
// payment tables, without loading the rest of the order graph.
func OutstandingForOrder(tx *gorm.DB, orderId int) (OrderOutstanding, error) {
	out := OrderOutstanding{
		AccountsReceivable: decimal.Zero,
		VendorPayable:      decimal.Zero,
		LogisticsPayable:   decimal.Zero,
	}
	if err := tx.First(&models.Order{}, orderId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return out, utils.ErrorRecordNotFound
		}
		return out, err
	}
	for _, kind := range []struct {
		targetType models.PaymentTargetType
		balance    *decimal.Decimal
	}{
		{models.PaymentTargetCustomerInvoice, &out.AccountsReceivable},
		{models.PaymentTargetVendorBill, &out.VendorPayable},
		{models.PaymentTargetLogisticsBill, &out.LogisticsPayable},
	} {
		bills, err := billsForOrder(tx, kind.targetType, orderId)
		if err != nil {
			return out, err
		}
		ids := make([]int, 0, len(bills))
		for _, bill := range bills {
			ids = append(ids, bill.id)
		}
		paid, err := paymentsByTarget(tx, kind.targetType, ids)
		if err != nil {
			return out, err
		}
		*kind.balance = sumOutstanding(bills, paid)
	}
	return out, nil
}

// RederiveBillStatus reloads a bill's paid total and writes the derived
// status. Called after any payment mutation against the bill.
func RederiveBillStatus(tx *gorm.DB, targetType models.PaymentTargetType, targetId int) error {
	target, err := models.ResolvePaymentTarget(tx, targetType, targetId)
	if err != nil {
		return err
	}
	paid, err := models.SumPaymentsForTarget(tx, targetType, targetId)
	if err != nil {
		return err
	}
	status := DeriveBillStatus(target.Amount, paid)
	if status == target.Status {
		return nil
	}
	return models.SetBillStatus(tx, targetType, targetId, status)
}

func paymentsByTarget(tx *gorm.DB, targetType models.PaymentTargetType, targetIds []int) (map[int]decimal.Decimal, error) {
	paid := make(map[int]decimal.Decimal, len(targetIds))
	if len(targetIds) == 0 {
		return paid, nil
	}
	type row struct {
		TargetId int
		Total    decimal.Decimal
	}
	var rows []row
	err := tx.Model(&models.Payment{}).
		Select("target_id, SUM(amount) AS total").
		Where("target_type = ? AND target_id IN ?", targetType, targetIds).
		Group("target_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		paid[r.TargetId] = r.Total
	}
	return paid, nil
}
