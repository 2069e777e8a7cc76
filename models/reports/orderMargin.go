package reports

import (
	"context"
	"fmt"
	"net/http"

	"github.com/lopmaker/order-converter-sub000/config"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// OrderMarginRow is one line of the materialized order+items view handed to
// the document generator. Numbers come from the persisted rounded fields.
type OrderMarginRow struct {
	OrderNumber      string          `json:"order_number"`
	Description      string          `json:"description"`
	Collection       string          `json:"collection"`
	TariffKey        string          `json:"tariff_key"`
	TariffRate       decimal.Decimal `json:"tariff_rate"`
	Qty              decimal.Decimal `json:"qty"`
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	DutyCost         decimal.Decimal `json:"duty_cost"`
	Estimated3plCost decimal.Decimal `json:"estimated_3pl_cost"`
	EstimatedMargin  decimal.Decimal `json:"estimated_margin"`
}

func GetOrderMarginReport(ctx context.Context, orderId int) ([]*OrderMarginRow, error) {
	sql := `
SELECT
    orders.order_number,
    items.description,
    items.collection,
    items.tariff_key,
    items.tariff_rate,
    items.qty,
    items.total_revenue,
    items.duty_cost,
    items.estimated_3pl_cost,
    items.estimated_margin
FROM
    order_items AS items
    JOIN orders ON orders.id = items.order_id
WHERE
    items.order_id = ?
ORDER BY
    items.id ASC;
`
	var rows []*OrderMarginRow
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, orderId).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// WriteOrderMarginExcel renders the margin report as an xlsx attachment.
func WriteOrderMarginExcel(w http.ResponseWriter, rows []*OrderMarginRow, filename string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Sheet1"
	headers := []string{"Order", "Description", "Collection", "Tariff Key", "Tariff Rate",
		"Qty", "Revenue", "Duty Cost", "3PL Cost", "Margin"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		values := []interface{}{
			row.OrderNumber,
			row.Description,
			row.Collection,
			row.TariffKey,
			row.TariffRate.InexactFloat64(),
			row.Qty.InexactFloat64(),
			row.TotalRevenue.InexactFloat64(),
			row.DutyCost.InexactFloat64(),
			row.Estimated3plCost.InexactFloat64(),
			row.EstimatedMargin.InexactFloat64(),
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	return f.Write(w)
}
