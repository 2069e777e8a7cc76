package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/lopmaker/order-converter-sub000/config"
	"github.com/lopmaker/order-converter-sub000/models"
	"github.com/lopmaker/order-converter-sub000/utils"
	"github.com/lopmaker/order-converter-sub000/workflow"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// End-to-end lifecycle regression: ingest -> doc -> transit -> rollback ->
// delivery -> settlement -> reopen. Exercises the derived-status ladder, the
// trigger idempotency checks and the cascading rollback against a real MySQL.
//
// Run (requires Docker): INTEGRATION_TESTS=1 go test ./workflow -run OrderLifecycle -v
func TestOrderLifecycleRegression(t *testing.T) {
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
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}
	logger := config.GetLogger()

	// 1) Ingest a PO from a Vietnamese supplier: no CN surcharge on defaults.
	order, err := models.CreateOrderFromPurchaseOrder(ctx, &models.PurchaseOrderInput{
		OrderNumber:     "PO-1001",
		CustomerRef:     "ACME-SS26",
		SupplierName:    "Hanoi Textiles Co",
		SupplierAddress: "Industrial Zone 4, Hanoi, Vietnam",
		Items: []models.PurchaseOrderItemInput{
			{
				Description:       "Women's Jersey Tee",
				Collection:        "Summer",
				Material:          "100% cotton",
				Qty:               decimal.NewFromInt(100),
				CustomerUnitPrice: decimal.NewFromInt(10),
				VendorUnitPrice:   decimal.NewFromInt(4),
			},
			{
				Description:       "Kids Hoodie",
				Material:          "60% cotton 40% poly",
				Qty:               decimal.NewFromInt(50),
				CustomerUnitPrice: decimal.NewFromInt(18),
				VendorUnitPrice:   decimal.NewFromInt(7),
			},
		},
	})
	if err != nil {
		t.Fatalf("CreateOrderFromPurchaseOrder: %v", err)
	}
	if order.OriginCountry != "VN" {
		t.Fatalf("origin = %q, want VN", order.OriginCountry)
	}
	if order.CurrentStatus != models.OrderStatusOpen {
		t.Fatalf("status after ingest = %s, want Open", order.CurrentStatus)
	}
	if !order.TotalRevenue.Equal(decimal.NewFromInt(1900)) {
		t.Fatalf("total revenue = %s, want 1900", order.TotalRevenue)
	}
	for _, item := range order.Items {
		if item.TariffKey == "" || !item.TariffRate.IsPositive() {
			t.Fatalf("item %d missing derived economics: key=%q rate=%s", item.ID, item.TariffKey, item.TariffRate)
		}
	}

	// 2) Generate the shipping document; rerunning must not issue a second one.
	doc, err := workflow.ProcessGenerateShippingDoc(db, logger, order.ID, &workflow.GenerateShippingDocInput{})
	if err != nil {
		t.Fatalf("ProcessGenerateShippingDoc: %v", err)
	}
	doc2, err := workflow.ProcessGenerateShippingDoc(db, logger, order.ID, &workflow.GenerateShippingDocInput{})
	if err != nil {
		t.Fatalf("ProcessGenerateShippingDoc (rerun): %v", err)
	}
	if doc.ID != doc2.ID {
		t.Fatalf("rerun issued a second document: %d vs %d", doc.ID, doc2.ID)
	}
	mustStatus(t, ctx, order.ID, models.OrderStatusDocIssued)

	// 3) Transit, then undo it. The document survives, the container reverts.
	if _, err := workflow.ProcessStartTransit(db, logger, order.ID, nil); err != nil {
		t.Fatalf("ProcessStartTransit: %v", err)
	}
	mustStatus(t, ctx, order.ID, models.OrderStatusInTransit)

	if _, err := workflow.ProcessRollback(db, logger, order.ID, workflow.RollbackUndoStartTransit); err != nil {
		t.Fatalf("ProcessRollback(UNDO_START_TRANSIT): %v", err)
	}
	mustStatus(t, ctx, order.ID, models.OrderStatusDocIssued)

	container, err := models.GetContainer(ctx, doc.ContainerId)
	if err != nil {
		t.Fatalf("GetContainer: %v", err)
	}
	if container.CurrentStatus != models.ContainerStatusPlanned || container.Atd != nil {
		t.Fatalf("container after rollback: status=%s atd=%v, want Planned/nil", container.CurrentStatus, container.Atd)
	}

	// 4) Ship again and deliver: the three money documents open once.
	if _, err := workflow.ProcessStartTransit(db, logger, order.ID, nil); err != nil {
		t.Fatalf("ProcessStartTransit (again): %v", err)
	}
	delivered, err := workflow.ProcessMarkDelivered(db, logger, order.ID, nil)
	if err != nil {
		t.Fatalf("ProcessMarkDelivered: %v", err)
	}
	if delivered.DeliveredAt == nil {
		t.Fatalf("delivered_at not set")
	}
	mustStatus(t, ctx, order.ID, models.OrderStatusArApOpen)

	if _, err := workflow.ProcessMarkDelivered(db, logger, order.ID, nil); err != nil {
		t.Fatalf("ProcessMarkDelivered (rerun): %v", err)
	}
	invoices, _ := models.GetCommercialInvoices(ctx, order.ID)
	vendorBills, _ := models.GetVendorBills(ctx, order.ID)
	logisticsBills, _ := models.GetLogisticsBills(ctx, order.ID)
	if len(invoices) != 1 || len(vendorBills) != 1 || len(logisticsBills) != 1 {
		t.Fatalf("bill counts after rerun: ci=%d vb=%d lb=%d, want 1/1/1",
			len(invoices), len(vendorBills), len(logisticsBills))
	}
	if !invoices[0].Amount.Equal(delivered.TotalRevenue) {
		t.Fatalf("invoice amount = %s, want %s", invoices[0].Amount, delivered.TotalRevenue)
	}

	// 5) A bill with posted payments cannot be deleted.
	payIn, err := workflow.ProcessCreatePayment(db, logger, &workflow.NewPaymentInput{
		TargetType: models.PaymentTargetCustomerInvoice,
		TargetId:   invoices[0].ID,
		Amount:     invoices[0].Amount,
	})
	if err != nil {
		t.Fatalf("ProcessCreatePayment(invoice): %v", err)
	}
	if payIn.Direction != models.PaymentDirectionIn {
		t.Fatalf("invoice payment direction = %s, want In", payIn.Direction)
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		return models.DeleteCommercialInvoice(tx, invoices[0].ID)
	})
	if !errors.Is(err, utils.ErrorBillHasPayments) {
		t.Fatalf("deleting a paid invoice: err = %v, want ErrorBillHasPayments", err)
	}

	// 6) Settle everything; the order converges to Closed exactly once.
	if _, err := workflow.ProcessCreatePayment(db, logger, &workflow.NewPaymentInput{
		TargetType: models.PaymentTargetVendorBill,
		TargetId:   vendorBills[0].ID,
		Amount:     vendorBills[0].Amount,
	}); err != nil {
		t.Fatalf("ProcessCreatePayment(vendor): %v", err)
	}
	if _, err := workflow.ProcessCreatePayment(db, logger, &workflow.NewPaymentInput{
		TargetType: models.PaymentTargetLogisticsBill,
		TargetId:   logisticsBills[0].ID,
		Amount:     logisticsBills[0].Amount,
	}); err != nil {
		t.Fatalf("ProcessCreatePayment(logistics): %v", err)
	}
	closed, err := models.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder(closed): %v", err)
	}
	if closed.CurrentStatus != models.OrderStatusClosed || closed.ClosedAt == nil {
		t.Fatalf("status = %s closed_at = %v, want Closed/non-nil", closed.CurrentStatus, closed.ClosedAt)
	}

	// Recompute with no intervening mutation must not change anything.
	recomputed, err := workflow.RecomputeOrderStatus(db, logger, order.ID)
	if err != nil {
		t.Fatalf("RecomputeOrderStatus: %v", err)
	}
	if recomputed.CurrentStatus != models.OrderStatusClosed || !recomputed.ClosedAt.Equal(*closed.ClosedAt) {
		t.Fatalf("recompute drifted: status=%s closed_at=%v", recomputed.CurrentStatus, recomputed.ClosedAt)
	}

	// 7) Deleting a payment reopens the bill and the order.
	if err := workflow.ProcessDeletePayment(db, logger, payIn.ID); err != nil {
		t.Fatalf("ProcessDeletePayment: %v", err)
	}
	mustStatus(t, ctx, order.ID, models.OrderStatusArApOpen)
	invoices, _ = models.GetCommercialInvoices(ctx, order.ID)
	if invoices[0].CurrentStatus != models.BillStatusOpen {
		t.Fatalf("invoice status after payment delete = %s, want Open", invoices[0].CurrentStatus)
	}
	reopened, _ := models.GetOrder(ctx, order.ID)
	if reopened.ClosedAt != nil {
		t.Fatalf("closed_at not cleared on reopen")
	}

	// 8) Undoing the delivery removes only the logistics side. The AR invoice,
	// the vendor bill and the vendor payment all survive.
	if _, err := workflow.ProcessRollback(db, logger, order.ID, workflow.RollbackUndoMarkDelivered); err != nil {
		t.Fatalf("ProcessRollback(UNDO_MARK_DELIVERED): %v", err)
	}
	invoices, _ = models.GetCommercialInvoices(ctx, order.ID)
	vendorBills, _ = models.GetVendorBills(ctx, order.ID)
	logisticsBills, _ = models.GetLogisticsBills(ctx, order.ID)
	if len(invoices) != 1 || len(vendorBills) != 1 || len(logisticsBills) != 0 {
		t.Fatalf("bills after UNDO_MARK_DELIVERED: ci=%d vb=%d lb=%d, want 1/1/0",
			len(invoices), len(vendorBills), len(logisticsBills))
	}
	if vendorBills[0].CurrentStatus != models.BillStatusPaid {
		t.Fatalf("vendor bill status after UNDO_MARK_DELIVERED = %s, want Paid", vendorBills[0].CurrentStatus)
	}
	mustStatus(t, ctx, order.ID, models.OrderStatusArApOpen)
	rolled, _ := models.GetOrder(ctx, order.ID)
	if rolled.DeliveredAt != nil {
		t.Fatalf("delivered_at survived UNDO_MARK_DELIVERED")
	}

	outstanding, err := workflow.OutstandingForOrder(db, order.ID)
	if err != nil {
		t.Fatalf("OutstandingForOrder: %v", err)
	}
	if !outstanding.AccountsReceivable.Equal(invoices[0].Amount) ||
		!outstanding.VendorPayable.IsZero() || !outstanding.LogisticsPayable.IsZero() {
		t.Fatalf("outstanding after UNDO_MARK_DELIVERED = %+v, want AR=%s VP=0 LP=0",
			outstanding, invoices[0].Amount)
	}

	// 9) One shipping document, one invoice with one payment, one vendor bill
	// with one payment. Undoing the transit wipes the money documents and their
	// payments and leaves only the document.
	if _, err := workflow.ProcessCreatePayment(db, logger, &workflow.NewPaymentInput{
		TargetType: models.PaymentTargetCustomerInvoice,
		TargetId:   invoices[0].ID,
		Amount:     invoices[0].Amount,
	}); err != nil {
		t.Fatalf("ProcessCreatePayment(invoice, again): %v", err)
	}
	if _, err := workflow.ProcessRollback(db, logger, order.ID, workflow.RollbackUndoStartTransit); err != nil {
		t.Fatalf("ProcessRollback(UNDO_START_TRANSIT, deep): %v", err)
	}
	invoices, _ = models.GetCommercialInvoices(ctx, order.ID)
	vendorBills, _ = models.GetVendorBills(ctx, order.ID)
	if len(invoices)+len(vendorBills) != 0 {
		t.Fatalf("money documents survived UNDO_START_TRANSIT: ci=%d vb=%d", len(invoices), len(vendorBills))
	}
	var paymentCount int64
	if err := db.Model(&models.Payment{}).Count(&paymentCount).Error; err != nil {
		t.Fatalf("count payments: %v", err)
	}
	if paymentCount != 0 {
		t.Fatalf("%d payments survived UNDO_START_TRANSIT, want 0", paymentCount)
	}
	docs, err := models.GetShippingDocuments(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetShippingDocuments: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != doc.ID || docs[0].CurrentStatus != models.ShippingDocumentStatusIssued {
		t.Fatalf("shipping documents after UNDO_START_TRANSIT: %+v, want the original issued document", docs)
	}
	container, err = models.GetContainer(ctx, doc.ContainerId)
	if err != nil {
		t.Fatalf("GetContainer (after transit undo): %v", err)
	}
	if container.CurrentStatus != models.ContainerStatusPlanned ||
		container.Atd != nil || container.Ata != nil || container.ArrivalAtWarehouse != nil {
		t.Fatalf("container after UNDO_START_TRANSIT: status=%s atd=%v ata=%v arrival=%v, want Planned with all timestamps nil",
			container.CurrentStatus, container.Atd, container.Ata, container.ArrivalAtWarehouse)
	}
	mustStatus(t, ctx, order.ID, models.OrderStatusDocIssued)

	// 10) The deepest undo removes the document itself.
	if _, err := workflow.ProcessRollback(db, logger, order.ID, workflow.RollbackUndoShippingDoc); err != nil {
		t.Fatalf("ProcessRollback(UNDO_SHIPPING_DOC): %v", err)
	}
	docs, _ = models.GetShippingDocuments(ctx, order.ID)
	if len(docs) != 0 {
		t.Fatalf("%d shipping documents survived UNDO_SHIPPING_DOC", len(docs))
	}
	mustStatus(t, ctx, order.ID, models.OrderStatusOpen)
}

func mustStatus(t *testing.T, ctx context.Context, orderId int, want models.OrderStatus) {
	t.Helper()
	order, err := models.GetOrder(ctx, orderId)
	if err != nil {
		t.Fatalf("GetOrder(%d): %v", orderId, err)
	}
	if order.CurrentStatus != want {
		t.Fatalf("order %d status = %s, want %s", orderId, order.CurrentStatus, want)
	}
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("orderconv-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=orderconv_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
