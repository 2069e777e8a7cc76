package workflow

import (
	"errors"
	"time"

	"github.com/lopmaker/order-converter-sub000/config"
	"github.com/lopmaker/order-converter-sub000/models"
	"github.com/lopmaker/order-converter-sub000/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OrderGraph is the full set of entities one order's status derives from.
// Loading it up front keeps the derivation itself pure and testable.
type OrderGraph struct {
	Order             models.Order
	ShippingDocuments []models.ShippingDocument
	Allocations       []models.ContainerAllocation
	Containers        []models.Container
	Invoices          []models.CommercialInvoice
	VendorBills       []models.VendorBill
	LogisticsBills    []models.LogisticsBill
	Payments          []models.Payment
}

// LoadOrderGraph reads the order and every child record status derivation
// needs, including payments for all three bill kinds.
func LoadOrderGraph(tx *gorm.DB, orderId int) (*OrderGraph, error) {
	var g OrderGraph

	err := tx.Preload("Items").First(&g.Order, orderId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Where("order_id = ?", orderId).Find(&g.ShippingDocuments).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("order_id = ?", orderId).Find(&g.Allocations).Error; err != nil {
		return nil, err
	}
	containerIds, err := models.OrderContainerIds(tx, orderId)
	if err != nil {
		return nil, err
	}
	if len(containerIds) > 0 {
		if err := tx.Where("id IN ?", containerIds).Find(&g.Containers).Error; err != nil {
			return nil, err
		}
	}
	if err := tx.Where("order_id = ?", orderId).Find(&g.Invoices).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("order_id = ?", orderId).Find(&g.VendorBills).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("order_id = ?", orderId).Find(&g.LogisticsBills).Error; err != nil {
		return nil, err
	}

	payments, err := loadPaymentsForGraph(tx, &g)
	if err != nil {
		return nil, err
	}
	g.Payments = payments
	return &g, nil
}

func loadPaymentsForGraph(tx *gorm.DB, g *OrderGraph) ([]models.Payment, error) {
	var payments []models.Payment
	appendFor := func(targetType models.PaymentTargetType, ids []int) error {
		if len(ids) == 0 {
			return nil
		}
		var rows []models.Payment
		if err := tx.Where("target_type = ? AND target_id IN ?", targetType, ids).Find(&rows).Error; err != nil {
			return err
		}
		payments = append(payments, rows...)
		return nil
	}

	invoiceIds := make([]int, 0, len(g.Invoices))
	for _, inv := range g.Invoices {
		invoiceIds = append(invoiceIds, inv.ID)
	}
	vendorIds := make([]int, 0, len(g.VendorBills))
	for _, b := range g.VendorBills {
		vendorIds = append(vendorIds, b.ID)
	}
	logisticsIds := make([]int, 0, len(g.LogisticsBills))
	for _, b := range g.LogisticsBills {
		logisticsIds = append(logisticsIds, b.ID)
	}

	if err := appendFor(models.PaymentTargetCustomerInvoice, invoiceIds); err != nil {
		return nil, err
	}
	if err := appendFor(models.PaymentTargetVendorBill, vendorIds); err != nil {
		return nil, err
	}
	if err := appendFor(models.PaymentTargetLogisticsBill, logisticsIds); err != nil {
		return nil, err
	}
	return payments, nil
}

func (g *OrderGraph) paidFor(targetType models.PaymentTargetType, targetId int) decimal.Decimal {
	total := decimal.Zero
	for _, p := range g.Payments {
		if p.TargetType == targetType && p.TargetId == targetId {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// Outstanding computes the three balances from the loaded graph. Pure.
func (g *OrderGraph) Outstanding() OrderOutstanding {
	var out OrderOutstanding
	out.AccountsReceivable = decimal.Zero
	out.VendorPayable = decimal.Zero
	out.LogisticsPayable = decimal.Zero

	for _, inv := range g.Invoices {
		out.AccountsReceivable = out.AccountsReceivable.Add(
			OutstandingAmount(inv.Amount, g.paidFor(models.PaymentTargetCustomerInvoice, inv.ID)))
	}
	for _, bill := range g.VendorBills {
		out.VendorPayable = out.VendorPayable.Add(
			OutstandingAmount(bill.Amount, g.paidFor(models.PaymentTargetVendorBill, bill.ID)))
	}
	for _, bill := range g.LogisticsBills {
		out.LogisticsPayable = out.LogisticsPayable.Add(
			OutstandingAmount(bill.Amount, g.paidFor(models.PaymentTargetLogisticsBill, bill.ID)))
	}
	return out
}

func (g *OrderGraph) hasBills() bool {
	return len(g.Invoices) > 0 || len(g.VendorBills) > 0 || len(g.LogisticsBills) > 0
}

func (g *OrderGraph) anyContainerMoving() bool {
	for _, c := range g.Containers {
		if c.CurrentStatus == models.ContainerStatusInTransit || c.CurrentStatus == models.ContainerStatusArrived || c.Atd != nil {
			return true
		}
	}
	return false
}

func (g *OrderGraph) anyIssuedDocument() bool {
	for _, doc := range g.ShippingDocuments {
		if doc.CurrentStatus == models.ShippingDocumentStatusIssued {
			return true
		}
	}
	return false
}

// DeriveOrderStatus is the single authoritative mapping from the child-entity
// graph onto the order's lifecycle status. Pure and idempotent: the same
// graph always derives the same status.
func DeriveOrderStatus(g *OrderGraph) models.OrderStatus {
	delivered := g.Order.DeliveredAt != nil
	if delivered {
		if g.Outstanding().AllZero() {
			return models.OrderStatusClosed
		}
		return models.OrderStatusArApOpen
	}
	if g.hasBills() {
		// AR/AP can open before delivery (bills issued on shipment).
		return models.OrderStatusArApOpen
	}
	if g.anyContainerMoving() {
		return models.OrderStatusInTransit
	}
	if g.anyIssuedDocument() {
		return models.OrderStatusDocIssued
	}
	return models.OrderStatusOpen
}

// RecomputeOrderStatus reloads the graph, derives the status, and persists it
// together with the closed timestamp. This is the only code path allowed to
// write orders.current_status. Safe to call any number of times.
func RecomputeOrderStatus(tx *gorm.DB, logger *logrus.Logger, orderId int) (*models.Order, error) {
	g, err := LoadOrderGraph(tx, orderId)
	if err != nil {
		if !errors.Is(err, utils.ErrorRecordNotFound) {
			config.LogError(logger, "recomputeWorkflow.go", "RecomputeOrderStatus", "LoadOrderGraph", orderId, err)
		}
		return nil, err
	}

	status := DeriveOrderStatus(g)
	updates := map[string]interface{}{}
	if status != g.Order.CurrentStatus {
		updates["current_status"] = status
	}
	switch {
	case status == models.OrderStatusClosed && g.Order.ClosedAt == nil:
		now := time.Now().UTC()
		g.Order.ClosedAt = &now
		updates["closed_at"] = &now
	case status != models.OrderStatusClosed && g.Order.ClosedAt != nil:
		g.Order.ClosedAt = nil
		updates["closed_at"] = gorm.Expr("NULL")
	}

	if len(updates) > 0 {
		if err := tx.Model(&models.Order{}).Where("id = ?", orderId).Updates(updates).Error; err != nil {
			config.LogError(logger, "recomputeWorkflow.go", "RecomputeOrderStatus", "UpdateOrder", updates, err)
			return nil, err
		}
	}
	g.Order.CurrentStatus = status
	return &g.Order, nil
}
