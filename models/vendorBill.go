package models

import (
	"context"
	"fmt"
	"time"

	"github.com/lopmaker/order-converter-sub000/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// VendorBill is the supplier-facing AP document for one order.
type VendorBill struct {
	ID      int `gorm:"primaryKey" json:"id"`
	OrderId int `gorm:"index;not null" json:"order_id"`

	BillNumber    string          `gorm:"type:varchar(64);uniqueIndex" json:"bill_number"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Currency      string          `gorm:"type:varchar(3);default:USD" json:"currency"`
	IssueDate     time.Time       `json:"issue_date"`
	DueDate       time.Time       `json:"due_date"`
	CurrentStatus BillStatus      `gorm:"type:enum('Open','Partial','Paid');default:Open" json:"current_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func GetVendorBills(ctx context.Context, orderId int) ([]VendorBill, error) {
	db := config.GetDB()
	var bills []VendorBill
	if err := db.WithContext(ctx).Where("order_id = ?", orderId).Order("id ASC").Find(&bills).Error; err != nil {
		return nil, err
	}
	return bills, nil
}

// OpenVendorBill opens the supplier AP document from the order's vendor cost
// total unless one already exists.
func OpenVendorBill(tx *gorm.DB, order *Order, issueDate time.Time) (*VendorBill, error) {
	var existing VendorBill
	err := tx.Where("order_id = ?", order.ID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	bill := VendorBill{
		OrderId:       order.ID,
		BillNumber:    fmt.Sprintf("VB-%s", order.OrderNumber),
		Amount:        order.VendorCostTotal(),
		Currency:      "USD",
		IssueDate:     issueDate,
		DueDate:       issueDate.AddDate(0, 0, order.VendorTermDays),
		CurrentStatus: BillStatusOpen,
	}
	if err := tx.Create(&bill).Error; err != nil {
		return nil, err
	}
	return &bill, nil
}

func DeleteVendorBill(tx *gorm.DB, id int) error {
	return deleteBillChecked(tx, PaymentTargetVendorBill, id, &VendorBill{})
}
