package workflow

import (
	"errors"

	"github.com/lopmaker/order-converter-sub000/config"
	"github.com/lopmaker/order-converter-sub000/models"
	"github.com/lopmaker/order-converter-sub000/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RollbackLevel selects how far back an order is unwound. Each level includes
// everything the levels below it undo.
type RollbackLevel int

const (
	RollbackUndoMarkDelivered RollbackLevel = 1
	RollbackUndoStartTransit  RollbackLevel = 2
	RollbackUndoShippingDoc   RollbackLevel = 3
)

func ParseRollbackLevel(name string) (RollbackLevel, error) {
	switch name {
	case "UNDO_MARK_DELIVERED":
		return RollbackUndoMarkDelivered, nil
	case "UNDO_START_TRANSIT":
		return RollbackUndoStartTransit, nil
	case "UNDO_SHIPPING_DOC":
		return RollbackUndoShippingDoc, nil
	default:
		return 0, utils.NewValidationError("level", "unknown rollback level: "+name)
	}
}

// rollbackStep is one idempotent unwind action. minLevel is the shallowest
// rollback that runs it; the list order is the execution order (payments
// before their bills, money documents before milestones).
type rollbackStep struct {
	name     string
	minLevel RollbackLevel
	run      func(tx *gorm.DB, orderId int, level RollbackLevel) error
}

// Undoing a delivery removes only the logistics side; the AR invoice and the
// vendor bill (and their payments) go when the transit itself is unwound.
func rollbackSteps() []rollbackStep {
	return []rollbackStep{
		{"delete logistics payments", RollbackUndoMarkDelivered, deletePaymentsFor(models.PaymentTargetLogisticsBill)},
		{"delete logistics bills", RollbackUndoMarkDelivered, deleteBillsStep(&models.LogisticsBill{})},
		{"delete invoice payments", RollbackUndoStartTransit, deletePaymentsFor(models.PaymentTargetCustomerInvoice)},
		{"delete commercial invoices", RollbackUndoStartTransit, deleteBillsStep(&models.CommercialInvoice{})},
		{"delete vendor payments", RollbackUndoStartTransit, deletePaymentsFor(models.PaymentTargetVendorBill)},
		{"delete vendor bills", RollbackUndoStartTransit, deleteBillsStep(&models.VendorBill{})},
		{"clear delivered timestamp", RollbackUndoMarkDelivered, clearDeliveredAt},
		{"revert containers", RollbackUndoMarkDelivered, revertContainers},
		{"delete shipping documents", RollbackUndoShippingDoc, deleteShippingDocuments},
	}
}

// StepsForLevel returns the steps a rollback at the given level executes, in
// execution order.
func StepsForLevel(level RollbackLevel) []rollbackStep {
	var steps []rollbackStep
	for _, step := range rollbackSteps() {
		if step.minLevel <= level {
			steps = append(steps, step)
		}
	}
	return steps
}

func deletePaymentsFor(targetType models.PaymentTargetType) func(tx *gorm.DB, orderId int, level RollbackLevel) error {
	return func(tx *gorm.DB, orderId int, level RollbackLevel) error {
		ids, err := billIdsForOrder(tx, targetType, orderId)
		if err != nil {
			return err
		}
		return models.DeletePaymentsForTargets(tx, targetType, ids)
	}
}

func billIdsForOrder(tx *gorm.DB, targetType models.PaymentTargetType, orderId int) ([]int, error) {
	var ids []int
	var model interface{}
	switch targetType {
	case models.PaymentTargetCustomerInvoice:
		model = &models.CommercialInvoice{}
	case models.PaymentTargetVendorBill:
		model = &models.VendorBill{}
	case models.PaymentTargetLogisticsBill:
		model = &models.LogisticsBill{}
	}
	if err := tx.Model(model).Where("order_id = ?", orderId).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func deleteBillsStep(model interface{}) func(tx *gorm.DB, orderId int, level RollbackLevel) error {
	return func(tx *gorm.DB, orderId int, level RollbackLevel) error {
		return tx.Where("order_id = ?", orderId).Delete(model).Error
	}
}

func clearDeliveredAt(tx *gorm.DB, orderId int, level RollbackLevel) error {
	return tx.Model(&models.Order{}).Where("id = ?", orderId).
		Update("delivered_at", gorm.Expr("NULL")).Error
}

// revertContainers puts every container the order touched back to the
// milestone the rollback level implies: undoing delivery leaves them in
// transit, undoing transit (or deeper) puts them back to planned.
func revertContainers(tx *gorm.DB, orderId int, level RollbackLevel) error {
	containerIds, err := models.OrderContainerIds(tx, orderId)
	if err != nil || len(containerIds) == 0 {
		return err
	}

	updates := map[string]interface{}{
		"ata":                  gorm.Expr("NULL"),
		"arrival_at_warehouse": gorm.Expr("NULL"),
	}
	if level >= RollbackUndoStartTransit {
		updates["atd"] = gorm.Expr("NULL")
		updates["current_status"] = models.ContainerStatusPlanned
	} else {
		updates["current_status"] = models.ContainerStatusInTransit
	}
	return tx.Model(&models.Container{}).Where("id IN ?", containerIds).Updates(updates).Error
}

func deleteShippingDocuments(tx *gorm.DB, orderId int, level RollbackLevel) error {
	return tx.Where("order_id = ?", orderId).Delete(&models.ShippingDocument{}).Error
}

// ProcessRollback unwinds an order to the milestone before the named trigger,
// then rederives its status. Every step is idempotent, so re-running a
// rollback (or running a deeper one after a shallower one) is safe.
func ProcessRollback(db *gorm.DB, logger *logrus.Logger, orderId int, level RollbackLevel) (*models.Order, error) {
	if level < RollbackUndoMarkDelivered || level > RollbackUndoShippingDoc {
		return nil, utils.NewValidationError("level", "rollback level out of range")
	}

	var result *models.Order
	err := WithOrderLock(db, orderId, func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, orderId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}

		for _, step := range StepsForLevel(level) {
			if err := step.run(tx, orderId, level); err != nil {
				config.LogError(logger, "rollbackWorkflow.go", "ProcessRollback", step.name, orderId, err)
				return err
			}
		}

		var err error
		result, err = RecomputeOrderStatus(tx, logger, orderId)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
