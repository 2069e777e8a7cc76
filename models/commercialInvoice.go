package models

import (
	"context"
	"fmt"
	"time"

	"github.com/lopmaker/order-converter-sub000/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommercialInvoice is the customer-facing AR document for one order.
// CurrentStatus is derived from payments posted against it.
type CommercialInvoice struct {
	ID      int `gorm:"primaryKey" json:"id"`
	OrderId int `gorm:"index;not null" json:"order_id"`

	InvoiceNumber string          `gorm:"type:varchar(64);uniqueIndex" json:"invoice_number"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Currency      string          `gorm:"type:varchar(3);default:USD" json:"currency"`
	IssueDate     time.Time       `json:"issue_date"`
	DueDate       time.Time       `json:"due_date"`
	CurrentStatus BillStatus      `gorm:"type:enum('Open','Partial','Paid');default:Open" json:"current_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func GetCommercialInvoices(ctx context.Context, orderId int) ([]CommercialInvoice, error) {
	db := config.GetDB()
	var invoices []CommercialInvoice
	if err := db.WithContext(ctx).Where("order_id = ?", orderId).Order("id ASC").Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

// OpenCommercialInvoice opens the AR document for a delivered order unless one
// already exists (existence-checked, never re-issued blindly).
func OpenCommercialInvoice(tx *gorm.DB, order *Order, issueDate time.Time) (*CommercialInvoice, error) {
	var existing CommercialInvoice
	err := tx.Where("order_id = ?", order.ID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	invoice := CommercialInvoice{
		OrderId:       order.ID,
		InvoiceNumber: fmt.Sprintf("CI-%s", order.OrderNumber),
		Amount:        order.TotalRevenue,
		Currency:      "USD",
		IssueDate:     issueDate,
		DueDate:       issueDate.AddDate(0, 0, order.CustomerTermDays),
		CurrentStatus: BillStatusOpen,
	}
	if err := tx.Create(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// DeleteCommercialInvoice refuses to delete while payments are still posted
// against the invoice; only rollback paths cascade.
func DeleteCommercialInvoice(tx *gorm.DB, id int) error {
	return deleteBillChecked(tx, PaymentTargetCustomerInvoice, id, &CommercialInvoice{})
}
