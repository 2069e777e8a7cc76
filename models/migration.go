package models

import (
	"github.com/lopmaker/order-converter-sub000/config"
	"github.com/lopmaker/order-converter-sub000/utils"
)

// MigrateTable creates/updates all tables. Order matters only for readability;
// gorm resolves the FKs.
func MigrateTable() {
	db := config.GetDB()
	err := db.AutoMigrate(
		&Order{},
		&OrderItem{},
		&Container{},
		&ContainerAllocation{},
		&ShippingDocument{},
		&CommercialInvoice{},
		&VendorBill{},
		&LogisticsBill{},
		&Payment{},
		&TariffRate{},
	)
	utils.ErrorPanic(err)
}
