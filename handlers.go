package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lopmaker/order-converter-sub000/config"
	"github.com/lopmaker/order-converter-sub000/models"
	"github.com/lopmaker/order-converter-sub000/models/reports"
	"github.com/lopmaker/order-converter-sub000/utils"
	"github.com/lopmaker/order-converter-sub000/workflow"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// httpError maps domain errors onto status codes. Validation problems are the
// caller's fault, missing rows are 404, and referential conflicts are 409.
func httpError(c *gin.Context, err error) {
	switch {
	case utils.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	case errors.Is(err, utils.ErrorBillHasPayments):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return id, true
}

func createOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.PurchaseOrderInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		order, err := models.CreateOrderFromPurchaseOrder(c.Request.Context(), &input)
		if err != nil {
			httpError(c, err)
			return
		}
		c.JSON(http.StatusCreated, order)
	}
}

func getOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		order, err := models.GetOrder(c.Request.Context(), id)
		if err != nil {
			httpError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func listOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := models.OrderStatus(c.Query("status"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		orders, err := models.ListOrders(c.Request.Context(), status, limit, offset)
		if err != nil {
			httpError(c, err)
			return
		}
		c.JSON(http.StatusOK, orders)
	}
}

func updateOrderItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderId, ok := pathId(c, "id")
		if !ok {
			return
		}
		itemId, ok := pathId(c, "itemId")
		if !ok {
			return
		}
		var input models.UpdateOrderItemInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		item, err := models.UpdateOrderItem(c.Request.Context(), orderId, itemId, &input)
		if err != nil {
			httpError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func deleteOrderItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderId, ok := pathId(c, "id")
		if !ok {
			return
		}
		itemId, ok := pathId(c, "itemId")
		if !ok {
			return
		}
		if err := models.DeleteOrderItem(c.Request.Context(), orderId, itemId); err != nil {
			httpError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func createContainerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewContainerInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		container, err := models.CreateContainer(c.Request.Context(), &input)
		if err != nil {
			httpError(c, err)
			return
		}
		c.JSON(http.StatusCreated, container)
	}
}

func getContainerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		container, err := models.GetContainer(c.Request.Context(), id)
		if err != nil {
			httpError(c, err)
			return
		}
		c.JSON(http.StatusOK, container)
	}
}

func allocateContainerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderId, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewAllocationInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		allocation, err := models.AllocateOrderToContainer(c.Request.Context(), orderId, &input)
		if err != nil {
			httpError(c, err)
			return
		}
		c.JSON(http.StatusCreated, allocation)
	}
}

func listShippingDocumentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderId, ok := pathId(c, "id")
		if !ok {
			return
		}
		docs, err := models.GetShippingDocuments(c.Request.Context(), orderId)
		if err != nil {
			httpError(c, err)
			return
		}
		c.JSON(http.StatusOK, docs)
	}
}

func generateShippingDocHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderId, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input workflow.GenerateShippingDocInput
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&input); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
		}
		doc, err := workflow.ProcessGenerateShippingDoc(config.GetDB(), config.GetLogger(), orderId, &input)
		if err != nil {
			httpError(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

type transitRequest struct {
	DepartedAt *time.Time `json:"departed_at"`
}

func startTransitHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderId, ok := pathId(c, "id")
		if !ok {
			return
		}
		var req transitRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
		}
		order, err := workflow.ProcessStartTransit(config.GetDB(), config.GetLogger(), orderId, req.DepartedAt)
		if err != nil {
			httpError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

type deliveredRequest struct {
	ArrivedAt *time.Time `json:"arrived_at"`
}

func markDeliveredHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderId, ok := pathId(c, "id")
		if !ok {
			return
		}
		var req deliveredRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
		}
		order, err := workflow.ProcessMarkDelivered(config.GetDB(), config.GetLogger(), orderId, req.ArrivedAt)
		if err != nil {
			httpError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

type rollbackRequest struct {
	Level string `json:"level"`
}

func rollbackHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderId, ok := pathId(c, "id")
		if !ok {
			return
		}
		var req rollbackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		level, err := workflow.ParseRollbackLevel(req.Level)
		if err != nil {
			httpError(c, err)
			return
		}
		order, err := workflow.ProcessRollback(config.GetDB(), config.GetLogger(), orderId, level)
		if err != nil {
			httpError(c, err)
			return
		}
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"order":          order,
			"level":          req.Level,
			"correlation_id": cid,
		})
	}
}

func listInvoicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderId, ok := pathId(c, "id")
		if !ok {
			return
		}
		invoices, err := models.GetCommercialInvoices(c.Request.Context(), orderId)
		if err != nil {
			httpError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoices)
	}
}

func listVendorBillsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderId, ok := pathId(c, "id")
		if !ok {
			return
		}
		bills, err := models.GetVendorBills(c.Request.Context(), orderId)
		if err != nil {
			httpError(c, err)
			return
		}
		c.JSON(http.StatusOK, bills)
	}
}

func listLogisticsBillsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderId, ok := pathId(c, "id")
		if !ok {
			return
		}
		bills, err := models.GetLogisticsBills(c.Request.Context(), orderId)
		if err != nil {
			httpError(c, err)
			return
		}
		c.JSON(http.StatusOK, bills)
	}
}

// deleteBillHandler deletes one bill of the given kind, refusing while
// payments are posted against it, then rederives the owning order's status.
func deleteBillHandler(targetType models.PaymentTargetType) gin.HandlerFunc {
	return func(c *gin.Context) {
		billId, ok := pathId(c, "id")
		if !ok {
			return
		}
		target, err := models.ResolvePaymentTarget(config.GetDB(), targetType, billId)
		if err != nil {
			httpError(c, err)
			return
		}
		err = workflow.WithOrderLock(config.GetDB(), target.OrderId, func(tx *gorm.DB) error {
			switch targetType {
			case models.PaymentTargetCustomerInvoice:
				err = models.DeleteCommercialInvoice(tx, billId)
			case models.PaymentTargetVendorBill:
				err = models.DeleteVendorBill(tx, billId)
			case models.PaymentTargetLogisticsBill:
				err = models.DeleteLogisticsBill(tx, billId)
			}
			if err != nil {
				return err
			}
			_, err = workflow.RecomputeOrderStatus(tx, config.GetLogger(), target.OrderId)
			return err
		})
		if err != nil {
			httpError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func listOutstandingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderId, ok := pathId(c, "id")
		if !ok {
			return
		}
		outstanding, err := workflow.OutstandingForOrder(config.GetDB().WithContext(c.Request.Context()), orderId)
		if err != nil {
			httpError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"order_id":            orderId,
			"accounts_receivable": outstanding.AccountsReceivable,
			"vendor_payable":      outstanding.VendorPayable,
			"logistics_payable":   outstanding.LogisticsPayable,
		})
	}
}

func createPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input workflow.NewPaymentInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		payment, err := workflow.ProcessCreatePayment(config.GetDB(), config.GetLogger(), &input)
		if err != nil {
			httpError(c, err)
			return
		}
		c.JSON(http.StatusCreated, payment)
	}
}

func updatePaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		paymentId, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input workflow.UpdatePaymentInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		payment, err := workflow.ProcessUpdatePayment(config.GetDB(), config.GetLogger(), paymentId, &input)
		if err != nil {
			httpError(c, err)
			return
		}
		c.JSON(http.StatusOK, payment)
	}
}

func deletePaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		paymentId, ok := pathId(c, "id")
		if !ok {
			return
		}
		if err := workflow.ProcessDeletePayment(config.GetDB(), config.GetLogger(), paymentId); err != nil {
			httpError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func listTariffRatesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rates, err := models.ListTariffRates(c.Request.Context())
		if err != nil {
			httpError(c, err)
			return
		}
		c.JSON(http.StatusOK, rates)
	}
}

type upsertTariffRateRequest struct {
	RateKey string          `json:"rate_key"`
	Rate    decimal.Decimal `json:"rate"`
}

// upsertTariffRateHandler writes a manual rate override. Manual rows are
// authoritative until an operator changes them again.
func upsertTariffRateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req upsertTariffRateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		row, err := models.UpsertTariffRate(config.GetDB().WithContext(c.Request.Context()),
			req.RateKey, req.Rate, models.RateSourceManual)
		if err != nil {
			httpError(c, err)
			return
		}
		c.JSON(http.StatusOK, row)
	}
}

func tariffRefreshHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := workflow.ProcessTariffRefresh(config.GetDB(), config.GetLogger(), time.Now().UTC())
		if err != nil {
			httpError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func orderMarginReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderId, ok := pathId(c, "id")
		if !ok {
			return
		}
		ctx, span := tracer.Start(c.Request.Context(), "orderMarginReport")
		defer span.End()
		rows, err := reports.GetOrderMarginReport(ctx, orderId)
		if err != nil {
			httpError(c, err)
			return
		}
		filename := fmt.Sprintf("order-%d-margin.xlsx", orderId)
		if err := reports.WriteOrderMarginExcel(c.Writer, rows, filename); err != nil {
			httpError(c, err)
			return
		}
	}
}
