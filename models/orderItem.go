package models

import (
	"context"
	"errors"
	"time"

	"github.com/lopmaker/order-converter-sub000/config"
	"github.com/lopmaker/order-converter-sub000/tariff"
	"github.com/lopmaker/order-converter-sub000/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderItem is one converted PO line. Description/collection/material are the
// free-text classification inputs; the four monetary fields plus the duty rate
// are derived on write and stay internally consistent with qty/prices/rate as
// of the last recompute.
type OrderItem struct {
	ID      int `gorm:"primaryKey" json:"id"`
	OrderId int `gorm:"index;not null" json:"order_id"`

	Description string `gorm:"type:varchar(512)" json:"description"`
	Collection  string `gorm:"type:varchar(255)" json:"collection"`
	Material    string `gorm:"type:varchar(255)" json:"material"`

	Qty               decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty"`
	CustomerUnitPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"customer_unit_price"`
	VendorUnitPrice   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"vendor_unit_price"`

	TariffKey  string          `gorm:"type:varchar(128);index" json:"tariff_key"`
	TariffRate decimal.Decimal `gorm:"type:decimal(9,4);default:0" json:"tariff_rate"`

	TotalRevenue     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_revenue"`
	DutyCost         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"duty_cost"`
	Estimated3plCost decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"estimated_3pl_cost"`
	EstimatedMargin  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"estimated_margin"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// deriveEconomics resolves the tariff key/rate for the item's current text and
// re-derives the four monetary fields from its current unit economics.
func (item *OrderItem) deriveEconomics(originCountry string, table tariff.RateTable) {
	item.TariffKey = tariff.DeriveTariffKey(tariff.ItemAttributes{
		Description: item.Description,
		Collection:  item.Collection,
		Material:    item.Material,
	})
	rate, _ := tariff.ResolveTariffRate(item.TariffKey, originCountry, table)
	item.TariffRate = rate

	est := tariff.Estimate(item.CustomerUnitPrice, item.VendorUnitPrice, item.Qty, rate)
	item.TotalRevenue = est.CustomerRevenue
	item.DutyCost = est.DutyCost
	item.Estimated3plCost = est.Estimated3plCost
	item.EstimatedMargin = est.EstimatedMargin
}

// UpdateOrderItemInput carries the editable inputs. Derived fields cannot be
// hand-entered; any input change re-derives them.
type UpdateOrderItemInput struct {
	Description       *string          `json:"description"`
	Collection        *string          `json:"collection"`
	Material          *string          `json:"material"`
	Qty               *decimal.Decimal `json:"qty"`
	CustomerUnitPrice *decimal.Decimal `json:"customer_unit_price"`
	VendorUnitPrice   *decimal.Decimal `json:"vendor_unit_price"`
}

// UpdateOrderItem applies input changes, re-derives the line economics and the
// order totals inside one transaction.
func UpdateOrderItem(ctx context.Context, orderId, itemId int, input *UpdateOrderItemInput) (*OrderItem, error) {
	db := config.GetDB()
	var item OrderItem

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order Order
		if err := tx.First(&order, orderId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if err := tx.Where("order_id = ?", orderId).First(&item, itemId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}

		if input.Description != nil {
			item.Description = *input.Description
		}
		if input.Collection != nil {
			item.Collection = *input.Collection
		}
		if input.Material != nil {
			item.Material = *input.Material
		}
		if input.Qty != nil {
			item.Qty = *input.Qty
		}
		if input.CustomerUnitPrice != nil {
			item.CustomerUnitPrice = utils.RoundMoney(*input.CustomerUnitPrice)
		}
		if input.VendorUnitPrice != nil {
			item.VendorUnitPrice = utils.RoundMoney(*input.VendorUnitPrice)
		}

		item.deriveEconomics(order.OriginCountry, NewTariffRateLookup(tx))
		if err := tx.Save(&item).Error; err != nil {
			return err
		}
		return RecomputeOrderTotals(tx, orderId)
	})
	if err != nil {
		if !errors.Is(err, utils.ErrorRecordNotFound) {
			config.LogError(config.GetLogger(), "orderItem.go", "UpdateOrderItem", "Transaction", itemId, err)
		}
		return nil, err
	}
	return &item, nil
}

func DeleteOrderItem(ctx context.Context, orderId, itemId int) error {
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("order_id = ?", orderId).Delete(&OrderItem{}, itemId)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return utils.ErrorRecordNotFound
		}
		return RecomputeOrderTotals(tx, orderId)
	})
	if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
		config.LogError(config.GetLogger(), "orderItem.go", "DeleteOrderItem", "Transaction", itemId, err)
	}
	return err
}
