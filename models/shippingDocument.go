package models

import (
	"context"
	"errors"
	"time"

	"github.com/lopmaker/order-converter-sub000/config"
	"github.com/lopmaker/order-converter-sub000/utils"
	"gorm.io/gorm"
)

// ShippingDocument is the "instruction sent to 3PL" milestone. ContainerId is
// optional (0 = none).
type ShippingDocument struct {
	ID          int `gorm:"primaryKey" json:"id"`
	OrderId     int `gorm:"index;not null" json:"order_id"`
	ContainerId int `gorm:"index;default:0" json:"container_id"`

	DocumentNumber string                 `gorm:"type:varchar(64);uniqueIndex" json:"document_number"`
	CurrentStatus  ShippingDocumentStatus `gorm:"type:enum('Issued','Cancelled');default:Issued" json:"current_status"`
	IssueDate      time.Time              `json:"issue_date"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func GetShippingDocuments(ctx context.Context, orderId int) ([]ShippingDocument, error) {
	db := config.GetDB()
	var docs []ShippingDocument
	if err := db.WithContext(ctx).Where("order_id = ?", orderId).Order("id ASC").Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// FindIssuedShippingDocument returns the issued document for (order, container)
// if one exists; triggers use it as their existence check.
func FindIssuedShippingDocument(tx *gorm.DB, orderId, containerId int) (*ShippingDocument, error) {
	var doc ShippingDocument
	err := tx.Where("order_id = ? AND container_id = ? AND current_status = ?",
		orderId, containerId, ShippingDocumentStatusIssued).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
