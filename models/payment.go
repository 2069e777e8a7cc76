package models

import (
	"errors"
	"time"

	"github.com/lopmaker/order-converter-sub000/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payment references a bill through a (target_type, target_id) tagged union
// over the three bill kinds. Direction is In for receivables, Out for
// payables. Posting more than the outstanding balance is allowed; outstanding
// clamps to zero for aggregation only.
type Payment struct {
	ID         int               `gorm:"primaryKey" json:"id"`
	TargetType PaymentTargetType `gorm:"type:enum('Customer Invoice','Vendor Bill','Logistics Bill');not null;index:idx_payment_target" json:"target_type"`
	TargetId   int               `gorm:"not null;index:idx_payment_target" json:"target_id"`

	Direction     PaymentDirection `gorm:"type:enum('In','Out');not null" json:"direction"`
	Amount        decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"amount"`
	PaymentDate   time.Time        `json:"payment_date"`
	PaymentMethod string           `gorm:"type:varchar(64)" json:"payment_method"`
	Reference     string           `gorm:"type:varchar(128)" json:"reference"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PaymentTarget is the resolved view of whichever bill a payment points at.
type PaymentTarget struct {
	Type      PaymentTargetType
	Id        int
	OrderId   int
	Amount    decimal.Decimal
	Status    BillStatus
	Direction PaymentDirection
}

// ResolvePaymentTarget maps each union variant to its table and loads the
// bill's identity, amount and owning order. Keeping the mapping here avoids
// string-typed branching scattered across call sites.
func ResolvePaymentTarget(tx *gorm.DB, targetType PaymentTargetType, targetId int) (*PaymentTarget, error) {
	switch targetType {
	case PaymentTargetCustomerInvoice:
		var invoice CommercialInvoice
		if err := tx.First(&invoice, targetId).Error; err != nil {
			return nil, mapNotFound(err)
		}
		return &PaymentTarget{
			Type: targetType, Id: invoice.ID, OrderId: invoice.OrderId,
			Amount: invoice.Amount, Status: invoice.CurrentStatus,
			Direction: PaymentDirectionIn,
		}, nil
	case PaymentTargetVendorBill:
		var bill VendorBill
		if err := tx.First(&bill, targetId).Error; err != nil {
			return nil, mapNotFound(err)
		}
		return &PaymentTarget{
			Type: targetType, Id: bill.ID, OrderId: bill.OrderId,
			Amount: bill.Amount, Status: bill.CurrentStatus,
			Direction: PaymentDirectionOut,
		}, nil
	case PaymentTargetLogisticsBill:
		var bill LogisticsBill
		if err := tx.First(&bill, targetId).Error; err != nil {
			return nil, mapNotFound(err)
		}
		return &PaymentTarget{
			Type: targetType, Id: bill.ID, OrderId: bill.OrderId,
			Amount: bill.Amount, Status: bill.CurrentStatus,
			Direction: PaymentDirectionOut,
		}, nil
	default:
		return nil, utils.NewValidationError("target_type", "unknown payment target type")
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorRecordNotFound
	}
	return err
}

// SetBillStatus writes a derived bill status to whichever table the target
// type maps to. Only the reconciliation path calls it.
func SetBillStatus(tx *gorm.DB, targetType PaymentTargetType, targetId int, status BillStatus) error {
	switch targetType {
	case PaymentTargetCustomerInvoice:
		return tx.Model(&CommercialInvoice{}).Where("id = ?", targetId).Update("current_status", status).Error
	case PaymentTargetVendorBill:
		return tx.Model(&VendorBill{}).Where("id = ?", targetId).Update("current_status", status).Error
	case PaymentTargetLogisticsBill:
		return tx.Model(&LogisticsBill{}).Where("id = ?", targetId).Update("current_status", status).Error
	default:
		return utils.NewValidationError("target_type", "unknown payment target type")
	}
}

func SumPaymentsForTarget(tx *gorm.DB, targetType PaymentTargetType, targetId int) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := tx.Model(&Payment{}).
		Where("target_type = ? AND target_id = ?", targetType, targetId).
		Select("SUM(amount)").Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func CountPaymentsForTarget(tx *gorm.DB, targetType PaymentTargetType, targetId int) (int64, error) {
	var count int64
	err := tx.Model(&Payment{}).
		Where("target_type = ? AND target_id = ?", targetType, targetId).
		Count(&count).Error
	return count, err
}

// deleteBillChecked enforces the referential rule shared by all three bill
// kinds: a bill with posted payments cannot be deleted through the public
// delete path. Callers resolve the conflict by deleting the payments first.
func deleteBillChecked(tx *gorm.DB, targetType PaymentTargetType, id int, model interface{}) error {
	count, err := CountPaymentsForTarget(tx, targetType, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return utils.ErrorBillHasPayments
	}
	result := tx.Delete(model, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

// DeletePaymentsForTargets is the cascade primitive rollback paths use before
// deleting the bills themselves.
func DeletePaymentsForTargets(tx *gorm.DB, targetType PaymentTargetType, targetIds []int) error {
	if len(targetIds) == 0 {
		return nil
	}
	return tx.Where("target_type = ? AND target_id IN ?", targetType, targetIds).Delete(&Payment{}).Error
}
