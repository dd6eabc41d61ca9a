package order

import (
	"bytes"
	"context"

	"github.com/xuri/excelize/v2"

	"phonestore-backend/internal/models"
)

const exportSheet = "Orders"

var exportHeader = []any{
	"Code", "Created at", "Status", "Customer", "Phone", "Address", "Payment",
	"Items", "Subtotal", "Promotion", "Discount", "Total",
}

// Export writes the orders matching f to an xlsx workbook, oldest first.
func (s *Service) Export(ctx context.Context, f Filter) (*bytes.Buffer, error) {
	var orders []models.Order
	err := s.filtered(ctx, f).Preload("Items").Order("created_at").Order("id").Find(&orders).Error
	if err != nil {
		return nil, err
	}

	wb := excelize.NewFile()
	defer wb.Close()
	if err := wb.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}
	if err := wb.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return nil, err
	}
	bold, err := wb.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := wb.SetRowStyle(exportSheet, 1, 1, bold); err != nil {
		return nil, err
	}

	for i, o := range orders {
		units := 0
		for _, it := range o.Items {
			units += it.Quantity
		}
		row := []any{
			o.Code, o.CreatedAt.Format("2006-01-02 15:04"), string(o.Status),
			o.ShippingName, o.ShippingPhone, o.ShippingAddress, string(o.PaymentMethod),
			units, o.Subtotal, o.PromotionCode, o.DiscountAmount, o.Total,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := wb.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, err
		}
	}
	if err := wb.SetColWidth(exportSheet, "A", "A", 22); err != nil {
		return nil, err
	}
	if err := wb.SetColWidth(exportSheet, "D", "F", 28); err != nil {
		return nil, err
	}
	return wb.WriteToBuffer()
}
