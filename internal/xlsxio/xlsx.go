// Package xlsxio exports transactions as an Excel workbook with the same
// columns as the CSV export.
package xlsxio

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"fintrack/internal/core"
	"fintrack/internal/csvio"
)

// SheetName is the name of the only worksheet in the workbook.
const SheetName = "Transactions"

// ContentType is the MIME type of the generated file.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Write renders txs into a workbook and streams it to w.
func Write(w io.Writer, txs []core.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range csvio.Header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for idx, tx := range txs {
		row := idx + 2
		tags := ""
		if tx.Tags != nil {
			tags = *tx.Tags
		}
		values := []any{tx.Date, tx.Description, tx.Category, tx.Account, tx.Amount, tags}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return fmt.Errorf("row cell: %w", err)
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", tx.ID, err)
		}
	}

	f.SetColWidth(SheetName, "A", "A", 12)
	f.SetColWidth(SheetName, "B", "B", 30)
	f.SetColWidth(SheetName, "C", "D", 15)
	f.SetColWidth(SheetName, "E", "E", 12)
	f.SetColWidth(SheetName, "F", "F", 20)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
