package workflow_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/lopmaker/order-converter-sub000/config"
	"github.com/lopmaker/order-converter-sub000/models"
	"github.com/lopmaker/order-converter-sub000/tariff"
	"github.com/lopmaker/order-converter-sub000/workflow"
	"github.com/shopspring/decimal"
)

// Refresh sweep regression: stale synced rows get recomputed, manual rows are
// never touched, and keys referenced by order lines but missing from the store
// get synced defaults inserted.
//
// Run (requires Docker): INTEGRATION_TESTS=1 go test ./workflow -run TariffRefresh -v
func TestTariffRefreshRegression(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "orderconv_test")

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()

	db := config.GetDB()
	logger := config.GetLogger()

	// A manual operator override and a synced row with a drifted rate.
	if _, err := models.UpsertTariffRate(db, "tee | cotton-rich", decimal.NewFromFloat(0.18), models.RateSourceManual); err != nil {
		t.Fatalf("UpsertTariffRate(manual): %v", err)
	}
	if _, err := models.UpsertTariffRate(db, "dress | poly-rich", decimal.NewFromFloat(0.99), models.RateSourceSync); err != nil {
		t.Fatalf("UpsertTariffRate(sync): %v", err)
	}
	// Age both rows past the staleness window.
	staleAt := time.Now().UTC().Add(-(tariff.StaleAfter + 24*time.Hour))
	if err := db.Model(&models.TariffRate{}).Where("1 = 1").Update("updated_at", staleAt).Error; err != nil {
		t.Fatalf("age rows: %v", err)
	}

	// An order line whose key has no rate row yet.
	order, err := models.CreateOrderFromPurchaseOrder(ctx, &models.PurchaseOrderInput{
		SupplierName:    "Dhaka Garments Ltd",
		SupplierAddress: "Gazipur, Bangladesh",
		Items: []models.PurchaseOrderItemInput{
			{
				Description:       "Mens Jogger Pants",
				Material:          "80% poly 20% cotton",
				Qty:               decimal.NewFromInt(10),
				CustomerUnitPrice: decimal.NewFromInt(20),
				VendorUnitPrice:   decimal.NewFromInt(8),
			},
		},
	})
	if err != nil {
		t.Fatalf("CreateOrderFromPurchaseOrder: %v", err)
	}
	wantKey := "mens pants | poly-rich"
	if order.Items[0].TariffKey != wantKey {
		t.Fatalf("derived key = %q, want %q", order.Items[0].TariffKey, wantKey)
	}

	result, err := workflow.ProcessTariffRefresh(db, logger, time.Now().UTC())
	if err != nil {
		t.Fatalf("ProcessTariffRefresh: %v", err)
	}
	if result.Refreshed != 1 {
		t.Errorf("refreshed = %d, want 1 (only the drifted sync row)", result.Refreshed)
	}
	if result.Inserted != 1 {
		t.Errorf("inserted = %d, want 1 (the missing order-line key)", result.Inserted)
	}

	var manual models.TariffRate
	if err := db.Where("rate_key = ?", "tee | cotton-rich").First(&manual).Error; err != nil {
		t.Fatalf("load manual row: %v", err)
	}
	if !manual.Rate.Equal(decimal.NewFromFloat(0.18)) || manual.Source != models.RateSourceManual {
		t.Errorf("manual row touched by sweep: rate=%s source=%s", manual.Rate, manual.Source)
	}

	var synced models.TariffRate
	if err := db.Where("rate_key = ?", "dress | poly-rich").First(&synced).Error; err != nil {
		t.Fatalf("load synced row: %v", err)
	}
	if !synced.Rate.Equal(tariff.DefaultRateForStoredKey("dress | poly-rich")) {
		t.Errorf("synced row rate = %s, want recomputed default", synced.Rate)
	}

	var inserted models.TariffRate
	if err := db.Where("rate_key = ?", wantKey).First(&inserted).Error; err != nil {
		t.Fatalf("missing key was not inserted: %v", err)
	}
	if inserted.Source != models.RateSourceSync {
		t.Errorf("inserted row source = %s, want Sync", inserted.Source)
	}

	// An immediate second sweep is a no-op.
	again, err := workflow.ProcessTariffRefresh(db, logger, time.Now().UTC())
	if err != nil {
		t.Fatalf("ProcessTariffRefresh (rerun): %v", err)
	}
	if again.Refreshed != 0 || again.Inserted != 0 {
		t.Errorf("rerun not a no-op: %+v", again)
	}
}
