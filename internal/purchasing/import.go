package purchasing

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"phonestore-backend/internal/apperr"
	"phonestore-backend/internal/models"
)

// ImportSheet is a purchase order delivered as a spreadsheet: columns
// product_id, color, imei, import_price on the first sheet.
type ImportSheet struct {
	SupplierID uint
	Note       string
	CreatedBy  uint
}

// Import creates a pending purchase order from an xlsx workbook. Errors are
// reported per spreadsheet row.
func (s *Service) Import(ctx context.Context, r io.Reader, in ImportSheet) (*models.PurchaseOrder, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperr.Invalid("cannot read workbook: %v", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperr.Invalid("workbook has no sheets")
	}
	rows, err := wb.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperr.Invalid("cannot read sheet %q: %v", sheets[0], err)
	}

	details, rowNums, err := parseRows(rows)
	if err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return nil, apperr.Invalid("sheet %q has no purchase order lines", sheets[0])
	}

	supplierID := in.SupplierID
	note := in.Note
	label := func(i int) string { return fmt.Sprintf("row %d", rowNums[i]) }
	return s.create(ctx, OrderInput{SupplierID: &supplierID, Note: &note, Details: details}, in.CreatedBy, label)
}

func isHeader(row []string) bool {
	if len(row) == 0 {
		return false
	}
	_, err := strconv.ParseUint(strings.TrimSpace(row[0]), 10, 64)
	return err != nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func parseRows(rows [][]string) ([]DetailInput, []int, error) {
	fields := map[string]string{}
	var details []DetailInput
	var rowNums []int

	for i, row := range rows {
		num := i + 1
		if i == 0 && isHeader(row) {
			continue
		}
		if strings.Join(row, "") == "" {
			continue
		}
		label := fmt.Sprintf("row %d", num)

		var d DetailInput
		if id, err := strconv.ParseUint(cell(row, 0), 10, 32); err != nil || id == 0 {
			fields[label+".product_id"] = "must be a positive integer"
		} else {
			d.ProductID = uint(id)
		}
		d.Color = cell(row, 1)

		// Numeric cells may come back in exponent form, e.g. 3.56789012345678E+14.
		imei := cell(row, 2)
		if strings.ContainsAny(imei, "eE.") {
			if v, err := decimal.NewFromString(imei); err == nil && v.IsInteger() {
				imei = v.String()
			}
		}
		d.IMEI = imei

		if price, err := decimal.NewFromString(cell(row, 3)); err != nil || !price.IsInteger() {
			fields[label+".import_price"] = "must be a whole amount"
		} else {
			d.ImportPrice = price.IntPart()
		}

		details = append(details, d)
		rowNums = append(rowNums, num)
	}
	if len(fields) > 0 {
		return nil, nil, &apperr.ValidationError{Fields: fields}
	}
	return details, rowNums, nil
}
