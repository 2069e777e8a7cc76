package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lopmaker/order-converter-sub000/config"
	"github.com/lopmaker/order-converter-sub000/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Container is the logistics unit. etd/eta are the planned milestones,
// atd/ata/arrival_at_warehouse the actuals the workflow sets and rollbacks clear.
type Container struct {
	ID              int             `gorm:"primaryKey" json:"id"`
	ContainerNumber string          `gorm:"type:varchar(64);uniqueIndex" json:"container_number"`
	CurrentStatus   ContainerStatus `gorm:"type:enum('Planned','In Transit','Arrived');default:Planned" json:"current_status"`

	Etd                *time.Time `json:"etd"`
	Eta                *time.Time `json:"eta"`
	Atd                *time.Time `json:"atd"`
	Ata                *time.Time `json:"ata"`
	ArrivalAtWarehouse *time.Time `json:"arrival_at_warehouse"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ContainerAllocation links one order to one container with the allocated
// share. Purely a join with metadata.
type ContainerAllocation struct {
	ID          int `gorm:"primaryKey" json:"id"`
	OrderId     int `gorm:"index;not null" json:"order_id"`
	ContainerId int `gorm:"index;not null" json:"container_id"`

	AllocatedQty    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"allocated_qty"`
	AllocatedAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"allocated_amount"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NewContainerInput struct {
	ContainerNumber string     `json:"container_number"`
	Etd             *time.Time `json:"etd"`
	Eta             *time.Time `json:"eta"`
}

func CreateContainer(ctx context.Context, input *NewContainerInput) (*Container, error) {
	db := config.GetDB()
	container := Container{
		ContainerNumber: input.ContainerNumber,
		CurrentStatus:   ContainerStatusPlanned,
		Etd:             input.Etd,
		Eta:             input.Eta,
	}
	if container.ContainerNumber == "" {
		container.ContainerNumber = fmt.Sprintf("CNT-%d", time.Now().UnixNano())
	}
	if err := db.WithContext(ctx).Create(&container).Error; err != nil {
		config.LogError(config.GetLogger(), "container.go", "CreateContainer", "Create", input, err)
		return nil, err
	}
	return &container, nil
}

func GetContainer(ctx context.Context, id int) (*Container, error) {
	db := config.GetDB()
	var container Container
	err := db.WithContext(ctx).First(&container, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &container, nil
}

type NewAllocationInput struct {
	ContainerId     int             `json:"container_id" validate:"required"`
	AllocatedQty    decimal.Decimal `json:"allocated_qty"`
	AllocatedAmount decimal.Decimal `json:"allocated_amount"`
}

// AllocateOrderToContainer creates the order<->container join row.
func AllocateOrderToContainer(ctx context.Context, orderId int, input *NewAllocationInput) (*ContainerAllocation, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	db := config.GetDB()

	var order Order
	if err := db.WithContext(ctx).First(&order, orderId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	var container Container
	if err := db.WithContext(ctx).First(&container, input.ContainerId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	allocation := ContainerAllocation{
		OrderId:         orderId,
		ContainerId:     container.ID,
		AllocatedQty:    allocationDecimal(input.AllocatedQty),
		AllocatedAmount: utils.RoundMoney(input.AllocatedAmount),
	}
	if err := db.WithContext(ctx).Create(&allocation).Error; err != nil {
		config.LogError(config.GetLogger(), "container.go", "AllocateOrderToContainer", "Create", allocation, err)
		return nil, err
	}
	return &allocation, nil
}

func allocationDecimal(d decimal.Decimal) decimal.Decimal {
	return utils.ClampNonNegative(d)
}

// OrderContainerIds returns the union of container ids referenced by the
// order's shipping documents, allocations, and logistics bills. Rollbacks
// revert this whole set, not just the container selected in the UI.
func OrderContainerIds(tx *gorm.DB, orderId int) ([]int, error) {
	var ids []int

	var docIds []int
	if err := tx.Model(&ShippingDocument{}).Where("order_id = ? AND container_id > 0", orderId).
		Pluck("container_id", &docIds).Error; err != nil {
		return nil, err
	}
	ids = append(ids, docIds...)

	var allocIds []int
	if err := tx.Model(&ContainerAllocation{}).Where("order_id = ?", orderId).
		Pluck("container_id", &allocIds).Error; err != nil {
		return nil, err
	}
	ids = append(ids, allocIds...)

	var billIds []int
	if err := tx.Model(&LogisticsBill{}).Where("order_id = ? AND container_id > 0", orderId).
		Pluck("container_id", &billIds).Error; err != nil {
		return nil, err
	}
	ids = append(ids, billIds...)

	return utils.UniqueInts(ids), nil
}
