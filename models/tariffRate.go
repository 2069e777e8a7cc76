package models

import (
	"context"
	"errors"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/lopmaker/order-converter-sub000/config"
	"github.com/lopmaker/order-converter-sub000/tariff"
	"github.com/lopmaker/order-converter-sub000/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TariffRate is one row of the duty-rate store, keyed by a normalized category
// key, optionally prefixed with a lowercase ISO2 country code and " | ".
// Manual rows are authoritative; synced rows are owned by the refresh sweep.
type TariffRate struct {
	ID      int             `gorm:"primaryKey" json:"id"`
	RateKey string          `gorm:"type:varchar(128);uniqueIndex;not null" json:"rate_key"`
	Rate    decimal.Decimal `gorm:"type:decimal(9,4);not null" json:"rate"`
	Source  RateSource      `gorm:"type:enum('Manual','Sync');default:Sync" json:"source"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func ListTariffRates(ctx context.Context) ([]TariffRate, error) {
	db := config.GetDB()
	var rates []TariffRate
	if err := db.WithContext(ctx).Order("rate_key ASC").Find(&rates).Error; err != nil {
		return nil, err
	}
	return rates, nil
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// UpsertTariffRate inserts or updates a rate row. Manual writes always win;
// a sync write never overwrites a manual row (it only refreshes other sync
// rows or fills gaps). Rates clamp to [0,1] and round to 4 decimals on write.
func UpsertTariffRate(tx *gorm.DB, rateKey string, rate decimal.Decimal, source RateSource) (*TariffRate, error) {
	key := tariff.NormalizeKey(rateKey)
	if key == "" {
		return nil, utils.NewValidationError("rate_key", "must not be empty")
	}
	rate = utils.RoundRate(utils.ClampRate(rate))

	row := TariffRate{RateKey: key, Rate: rate, Source: source}
	err := tx.Create(&row).Error
	if err == nil {
		return &row, nil
	}
	if !isDuplicateKeyErr(err) {
		return nil, err
	}

	var existing TariffRate
	if err := tx.Where("rate_key = ?", key).First(&existing).Error; err != nil {
		return nil, err
	}
	if source == RateSourceSync && existing.Source == RateSourceManual {
		// Manual rows are never auto-recomputed.
		return &existing, nil
	}
	existing.Rate = rate
	existing.Source = source
	if err := tx.Save(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

// tariffRateLookup adapts the persisted store to the resolver's RateTable
// interface for point lookups inside a transaction.
type tariffRateLookup struct {
	tx *gorm.DB
}

func NewTariffRateLookup(tx *gorm.DB) tariff.RateTable {
	return &tariffRateLookup{tx: tx}
}

func (l *tariffRateLookup) Lookup(key string) (decimal.Decimal, bool) {
	var row TariffRate
	err := l.tx.Where("rate_key = ?", tariff.NormalizeKey(key)).First(&row).Error
	if err != nil {
		return decimal.Zero, false
	}
	return row.Rate, true
}

// LoadTariffRateTable materializes the whole store into a StaticRateTable for
// bulk recomputation sweeps, avoiding a point query per line.
func LoadTariffRateTable(tx *gorm.DB) (tariff.StaticRateTable, error) {
	var rows []TariffRate
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}
	table := make(tariff.StaticRateTable, len(rows))
	for _, row := range rows {
		table[row.RateKey] = row.Rate
	}
	return table, nil
}

// MissingTariffKeys returns tariff keys referenced by order items but absent
// from the rate store; the refresh sweep inserts synced defaults for them.
func MissingTariffKeys(tx *gorm.DB) ([]string, error) {
	var keys []string
	err := tx.Model(&OrderItem{}).
		Distinct("order_items.tariff_key").
		Joins("LEFT JOIN tariff_rates ON tariff_rates.rate_key = order_items.tariff_key").
		Where("order_items.tariff_key <> '' AND tariff_rates.id IS NULL").
		Pluck("order_items.tariff_key", &keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}
