package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/lopmaker/order-converter-sub000/config"
	"github.com/lopmaker/order-converter-sub000/models"
	"github.com/lopmaker/order-converter-sub000/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// GenerateShippingDocInput selects the container the document covers.
// ContainerId 0 means "pick for me": reuse the first allocated container,
// or plan a fresh one when the order has no allocation yet.
type GenerateShippingDocInput struct {
	ContainerId    int        `json:"container_id"`
	DocumentNumber string     `json:"document_number"`
	IssueDate      *time.Time `json:"issue_date"`
}

// ProcessGenerateShippingDoc issues the 3PL instruction for an order. Re-running
// it for the same (order, container) returns the already-issued document instead
// of creating a second one.
func ProcessGenerateShippingDoc(db *gorm.DB, logger *logrus.Logger, orderId int, input *GenerateShippingDocInput) (*models.ShippingDocument, error) {
	var doc *models.ShippingDocument
	err := WithOrderLock(db, orderId, func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, orderId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}

		containerId, err := resolveDocContainer(tx, logger, orderId, input.ContainerId)
		if err != nil {
			return err
		}

		existing, err := models.FindIssuedShippingDocument(tx, orderId, containerId)
		if err == nil {
			doc = existing
			return nil
		}
		if !errors.Is(err, utils.ErrorRecordNotFound) {
			return err
		}

		issueDate := time.Now().UTC()
		if input.IssueDate != nil {
			issueDate = *input.IssueDate
		}
		documentNumber := input.DocumentNumber
		if documentNumber == "" {
			documentNumber = fmt.Sprintf("SD-%s-%d", order.OrderNumber, containerId)
		}
		created := models.ShippingDocument{
			OrderId:        orderId,
			ContainerId:    containerId,
			DocumentNumber: documentNumber,
			CurrentStatus:  models.ShippingDocumentStatusIssued,
			IssueDate:      issueDate,
		}
		if err := tx.Create(&created).Error; err != nil {
			config.LogError(logger, "orderWorkflow.go", "ProcessGenerateShippingDoc", "CreateDocument", created, err)
			return err
		}
		doc = &created

		_, err = RecomputeOrderStatus(tx, logger, orderId)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// resolveDocContainer picks the container a new document should reference.
func resolveDocContainer(tx *gorm.DB, logger *logrus.Logger, orderId, requested int) (int, error) {
	if requested > 0 {
		var container models.Container
		if err := tx.First(&container, requested).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, utils.ErrorRecordNotFound
			}
			return 0, err
		}
		return container.ID, nil
	}

	var allocation models.ContainerAllocation
	err := tx.Where("order_id = ?", orderId).Order("id ASC").First(&allocation).Error
	if err == nil {
		return allocation.ContainerId, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	// No allocation yet: plan a container and allocate the order onto it so
	// later transit/delivery triggers have something to move.
	container := models.Container{
		ContainerNumber: fmt.Sprintf("CNT-%d-%d", orderId, time.Now().UnixNano()),
		CurrentStatus:   models.ContainerStatusPlanned,
	}
	if err := tx.Create(&container).Error; err != nil {
		config.LogError(logger, "orderWorkflow.go", "resolveDocContainer", "CreateContainer", orderId, err)
		return 0, err
	}
	newAllocation := models.ContainerAllocation{OrderId: orderId, ContainerId: container.ID}
	if err := tx.Create(&newAllocation).Error; err != nil {
		config.LogError(logger, "orderWorkflow.go", "resolveDocContainer", "CreateAllocation", newAllocation, err)
		return 0, err
	}
	return container.ID, nil
}

// ProcessStartTransit marks the order's containers departed. Requires an
// issued shipping document; containers already departed are left alone.
func ProcessStartTransit(db *gorm.DB, logger *logrus.Logger, orderId int, departedAt *time.Time) (*models.Order, error) {
	var result *models.Order
	err := WithOrderLock(db, orderId, func(tx *gorm.DB) error {
		var docCount int64
		err := tx.Model(&models.ShippingDocument{}).
			Where("order_id = ? AND current_status = ?", orderId, models.ShippingDocumentStatusIssued).
			Count(&docCount).Error
		if err != nil {
			return err
		}
		if docCount == 0 {
			return utils.NewValidationError("order_id", "cannot start transit before a shipping document is issued")
		}

		atd := time.Now().UTC()
		if departedAt != nil {
			atd = *departedAt
		}
		containerIds, err := models.OrderContainerIds(tx, orderId)
		if err != nil {
			return err
		}
		if len(containerIds) > 0 {
			err = tx.Model(&models.Container{}).
				Where("id IN ? AND atd IS NULL", containerIds).
				Updates(map[string]interface{}{
					"current_status": models.ContainerStatusInTransit,
					"atd":            atd,
				}).Error
			if err != nil {
				config.LogError(logger, "orderWorkflow.go", "ProcessStartTransit", "UpdateContainers", containerIds, err)
				return err
			}
		}

		result, err = RecomputeOrderStatus(tx, logger, orderId)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ProcessMarkDelivered records arrival and opens the three money documents:
// the customer invoice from the order's revenue total, the vendor bill from
// the vendor cost total, and the logistics bill from the 3PL estimate.
// Already-open bills are never re-issued.
func ProcessMarkDelivered(db *gorm.DB, logger *logrus.Logger, orderId int, arrivedAt *time.Time) (*models.Order, error) {
	var result *models.Order
	err := WithOrderLock(db, orderId, func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Preload("Items").First(&order, orderId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}

		ata := time.Now().UTC()
		if arrivedAt != nil {
			ata = *arrivedAt
		}

		containerIds, err := models.OrderContainerIds(tx, orderId)
		if err != nil {
			return err
		}
		if len(containerIds) > 0 {
			err = tx.Model(&models.Container{}).
				Where("id IN ? AND ata IS NULL", containerIds).
				Updates(map[string]interface{}{
					"current_status":       models.ContainerStatusArrived,
					"ata":                  ata,
					"arrival_at_warehouse": ata,
				}).Error
			if err != nil {
				config.LogError(logger, "orderWorkflow.go", "ProcessMarkDelivered", "UpdateContainers", containerIds, err)
				return err
			}
		}

		if order.DeliveredAt == nil {
			if err := tx.Model(&models.Order{}).Where("id = ?", orderId).
				Update("delivered_at", ata).Error; err != nil {
				config.LogError(logger, "orderWorkflow.go", "ProcessMarkDelivered", "SetDeliveredAt", orderId, err)
				return err
			}
			order.DeliveredAt = &ata
		}

		logisticsContainerId := 0
		if len(containerIds) > 0 {
			logisticsContainerId = containerIds[0]
		}
		if _, err := models.OpenCommercialInvoice(tx, &order, ata); err != nil {
			config.LogError(logger, "orderWorkflow.go", "ProcessMarkDelivered", "OpenCommercialInvoice", orderId, err)
			return err
		}
		if _, err := models.OpenVendorBill(tx, &order, ata); err != nil {
			config.LogError(logger, "orderWorkflow.go", "ProcessMarkDelivered", "OpenVendorBill", orderId, err)
			return err
		}
		if _, err := models.OpenLogisticsBill(tx, &order, logisticsContainerId, ata); err != nil {
			config.LogError(logger, "orderWorkflow.go", "ProcessMarkDelivered", "OpenLogisticsBill", orderId, err)
			return err
		}

		result, err = RecomputeOrderStatus(tx, logger, orderId)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
