package models

import (
	"context"
	"fmt"
	"time"

	"github.com/lopmaker/order-converter-sub000/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LogisticsBill is the 3PL-facing AP document. It belongs to an order and may
// additionally reference the container it covers (0 = none).
type LogisticsBill struct {
	ID          int `gorm:"primaryKey" json:"id"`
	OrderId     int `gorm:"index;not null" json:"order_id"`
	ContainerId int `gorm:"index;default:0" json:"container_id"`

	BillNumber    string          `gorm:"type:varchar(64);uniqueIndex" json:"bill_number"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Currency      string          `gorm:"type:varchar(3);default:USD" json:"currency"`
	IssueDate     time.Time       `json:"issue_date"`
	DueDate       time.Time       `json:"due_date"`
	CurrentStatus BillStatus      `gorm:"type:enum('Open','Partial','Paid');default:Open" json:"current_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func GetLogisticsBills(ctx context.Context, orderId int) ([]LogisticsBill, error) {
	db := config.GetDB()
	var bills []LogisticsBill
	if err := db.WithContext(ctx).Where("order_id = ?", orderId).Order("id ASC").Find(&bills).Error; err != nil {
		return nil, err
	}
	return bills, nil
}

// OpenLogisticsBill opens the 3PL AP document from the order's estimated 3PL
// total unless one already exists.
func OpenLogisticsBill(tx *gorm.DB, order *Order, containerId int, issueDate time.Time) (*LogisticsBill, error) {
	var existing LogisticsBill
	err := tx.Where("order_id = ?", order.ID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	bill := LogisticsBill{
		OrderId:       order.ID,
		ContainerId:   containerId,
		BillNumber:    fmt.Sprintf("LB-%s", order.OrderNumber),
		Amount:        order.Estimated3plTotal(),
		Currency:      "USD",
		IssueDate:     issueDate,
		DueDate:       issueDate.AddDate(0, 0, order.LogisticsTermDays),
		CurrentStatus: BillStatusOpen,
	}
	if err := tx.Create(&bill).Error; err != nil {
		return nil, err
	}
	return &bill, nil
}

func DeleteLogisticsBill(tx *gorm.DB, id int) error {
	return deleteBillChecked(tx, PaymentTargetLogisticsBill, id, &LogisticsBill{})
}
