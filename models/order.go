package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lopmaker/order-converter-sub000/config"
	"github.com/lopmaker/order-converter-sub000/tariff"
	"github.com/lopmaker/order-converter-sub000/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order is one converted purchase order driven through the fulfillment
// lifecycle. CurrentStatus, TotalRevenue, TotalMargin and MarginRate are
// derived fields: status from the child-entity graph (workflow recompute),
// totals from the persisted line values whenever items change.
type Order struct {
	ID            int         `gorm:"primaryKey" json:"id"`
	OrderNumber   string      `gorm:"type:varchar(64);uniqueIndex" json:"order_number"`
	CustomerRef   string      `gorm:"type:varchar(128)" json:"customer_ref"`
	CurrentStatus OrderStatus `gorm:"type:enum('Open','Doc Issued','In Transit','AR/AP Open','Closed');default:Open" json:"current_status"`

	SupplierName    string `gorm:"type:varchar(255)" json:"supplier_name"`
	SupplierAddress string `gorm:"type:varchar(512)" json:"supplier_address"`
	OriginCountry   string `gorm:"type:varchar(2)" json:"origin_country"`

	CustomerTermDays  int `gorm:"default:30" json:"customer_term_days"`
	VendorTermDays    int `gorm:"default:30" json:"vendor_term_days"`
	LogisticsTermDays int `gorm:"default:15" json:"logistics_term_days"`

	DeliveredAt *time.Time `json:"delivered_at"`
	ClosedAt    *time.Time `json:"closed_at"`

	TotalRevenue decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_revenue"`
	TotalMargin  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_margin"`
	MarginRate   decimal.Decimal `gorm:"type:decimal(9,4);default:0" json:"margin_rate"`

	Items []OrderItem `gorm:"foreignKey:OrderId" json:"items"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PurchaseOrderItemInput is one extracted line from a purchase-order document.
// The free-text fields feed classification regardless of extraction quality.
type PurchaseOrderItemInput struct {
	Description       string          `json:"description" validate:"required"`
	Collection        string          `json:"collection"`
	Material          string          `json:"material"`
	Qty               decimal.Decimal `json:"qty" validate:"required"`
	CustomerUnitPrice decimal.Decimal `json:"customer_unit_price"`
	VendorUnitPrice   decimal.Decimal `json:"vendor_unit_price"`
}

// PurchaseOrderInput is the payload the PO extractor hands over.
type PurchaseOrderInput struct {
	OrderNumber       string                   `json:"order_number"`
	CustomerRef       string                   `json:"customer_ref"`
	SupplierName      string                   `json:"supplier_name" validate:"required"`
	SupplierAddress   string                   `json:"supplier_address"`
	CustomerTermDays  int                      `json:"customer_term_days"`
	VendorTermDays    int                      `json:"vendor_term_days"`
	LogisticsTermDays int                      `json:"logistics_term_days"`
	Items             []PurchaseOrderItemInput `json:"items" validate:"required,min=1,dive"`
}

// CreateOrderFromPurchaseOrder converts an extracted PO payload into an Order
// with fully derived line economics: every item gets its tariff key, resolved
// duty rate and estimated costs on write.
func CreateOrderFromPurchaseOrder(ctx context.Context, input *PurchaseOrderInput) (*Order, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	db := config.GetDB()
	origin := tariff.InferOriginCountry(input.SupplierName, input.SupplierAddress)

	order := Order{
		OrderNumber:       strings.TrimSpace(input.OrderNumber),
		CustomerRef:       input.CustomerRef,
		CurrentStatus:     OrderStatusOpen,
		SupplierName:      input.SupplierName,
		SupplierAddress:   input.SupplierAddress,
		OriginCountry:     origin,
		CustomerTermDays:  termDaysOrDefault(input.CustomerTermDays, 30),
		VendorTermDays:    termDaysOrDefault(input.VendorTermDays, 30),
		LogisticsTermDays: termDaysOrDefault(input.LogisticsTermDays, 15),
	}
	if order.OrderNumber == "" {
		order.OrderNumber = "ORD-" + strings.ToUpper(uuid.NewString()[:8])
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		lookup := NewTariffRateLookup(tx)
		for _, itemInput := range input.Items {
			item := OrderItem{
				OrderId:           order.ID,
				Description:       itemInput.Description,
				Collection:        itemInput.Collection,
				Material:          itemInput.Material,
				Qty:               itemInput.Qty,
				CustomerUnitPrice: utils.RoundMoney(itemInput.CustomerUnitPrice),
				VendorUnitPrice:   utils.RoundMoney(itemInput.VendorUnitPrice),
			}
			item.deriveEconomics(origin, lookup)
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
			order.Items = append(order.Items, item)
		}
		return recomputeOrderTotals(tx, &order)
	})
	if err != nil {
		config.LogError(config.GetLogger(), "order.go", "CreateOrderFromPurchaseOrder", "Transaction", input.OrderNumber, err)
		return nil, err
	}
	return &order, nil
}

func termDaysOrDefault(days, def int) int {
	if days <= 0 {
		return def
	}
	return days
}

func GetOrder(ctx context.Context, id int) (*Order, error) {
	db := config.GetDB()
	var order Order
	err := db.WithContext(ctx).Preload("Items").First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func ListOrders(ctx context.Context, status OrderStatus, limit, offset int) ([]Order, error) {
	db := config.GetDB()
	if limit <= 0 || limit > config.SearchLimit {
		limit = config.SearchLimit
	}
	query := db.WithContext(ctx).Preload("Items").Order("id DESC").Limit(limit).Offset(offset)
	if status != "" {
		query = query.Where("current_status = ?", status)
	}
	var orders []Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// RecomputeOrderTotals re-derives the order's denormalized revenue/margin
// aggregates as the sum of persisted (already rounded) line values.
func RecomputeOrderTotals(tx *gorm.DB, orderId int) error {
	var order Order
	if err := tx.Preload("Items").First(&order, orderId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorRecordNotFound
		}
		return err
	}
	return recomputeOrderTotals(tx, &order)
}

func recomputeOrderTotals(tx *gorm.DB, order *Order) error {
	revenue := decimal.Zero
	margin := decimal.Zero
	for _, item := range order.Items {
		revenue = revenue.Add(item.TotalRevenue)
		margin = margin.Add(item.EstimatedMargin)
	}
	marginRate := decimal.Zero
	if revenue.IsPositive() {
		marginRate = utils.RoundRate(margin.Div(revenue))
	}
	order.TotalRevenue = revenue
	order.TotalMargin = margin
	order.MarginRate = marginRate
	return tx.Model(&Order{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
		"total_revenue": revenue,
		"total_margin":  margin,
		"margin_rate":   marginRate,
	}).Error
}

// VendorCostTotal sums qty * vendor unit price over the persisted items,
// rounded per line the same way the estimator persists them.
func (o *Order) VendorCostTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(utils.RoundMoney(item.Qty.Mul(item.VendorUnitPrice)))
	}
	return total
}

// Estimated3plTotal sums the persisted per-line 3PL estimates.
func (o *Order) Estimated3plTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Estimated3plCost)
	}
	return total
}
