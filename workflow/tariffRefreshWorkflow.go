package workflow

import (
	"time"

	"github.com/lopmaker/order-converter-sub000/config"
	"github.com/lopmaker/order-converter-sub000/models"
	"github.com/lopmaker/order-converter-sub000/tariff"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TariffRefreshResult summarizes one sweep for logging and the API response.
type TariffRefreshResult struct {
	Refreshed int `json:"refreshed"`
	Inserted  int `json:"inserted"`
	Skipped   int `json:"skipped"`
}

// ProcessTariffRefresh recomputes stale synced rate rows from the rule tables
// and inserts synced defaults for keys order lines reference that have no row
// yet. Manual rows are never touched: an operator override outlives every
// sweep until an operator changes it.
func ProcessTariffRefresh(db *gorm.DB, logger *logrus.Logger, now time.Time) (*TariffRefreshResult, error) {
	result := TariffRefreshResult{}

	err := db.Transaction(func(tx *gorm.DB) error {
		var synced []models.TariffRate
		if err := tx.Where("source = ?", models.RateSourceSync).Find(&synced).Error; err != nil {
			config.LogError(logger, "tariffRefreshWorkflow.go", "ProcessTariffRefresh", "LoadSyncedRows", nil, err)
			return err
		}

		for _, row := range synced {
			if !tariff.IsRateStale(row.UpdatedAt, now) {
				result.Skipped++
				continue
			}
			recomputed := tariff.DefaultRateForStoredKey(row.RateKey)
			if recomputed.Equal(row.Rate) {
				// Touch updated_at so the row leaves the stale window.
				if err := tx.Model(&models.TariffRate{}).Where("id = ?", row.ID).
					Update("updated_at", now).Error; err != nil {
					return err
				}
				result.Skipped++
				continue
			}
			if _, err := models.UpsertTariffRate(tx, row.RateKey, recomputed, models.RateSourceSync); err != nil {
				config.LogError(logger, "tariffRefreshWorkflow.go", "ProcessTariffRefresh", "RefreshRow", row.RateKey, err)
				return err
			}
			result.Refreshed++
		}

		missing, err := models.MissingTariffKeys(tx)
		if err != nil {
			config.LogError(logger, "tariffRefreshWorkflow.go", "ProcessTariffRefresh", "MissingTariffKeys", nil, err)
			return err
		}
		for _, key := range missing {
			rate := tariff.DefaultRateForStoredKey(key)
			if _, err := models.UpsertTariffRate(tx, key, rate, models.RateSourceSync); err != nil {
				config.LogError(logger, "tariffRefreshWorkflow.go", "ProcessTariffRefresh", "InsertMissing", key, err)
				return err
			}
			result.Inserted++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"refreshed": result.Refreshed,
		"inserted":  result.Inserted,
		"skipped":   result.Skipped,
	}).Info("tariff refresh sweep finished")
	return &result, nil
}
