package receipt

import (
	"fmt"
	"io"
	"time"

	"github.com/tealeg/xlsx/v2"
)

const exportSheetName = "지출증빙"

var (
	exportHeaders   = []string{"순번", "날짜", "상호명", "금액", "비고"}
	exportColWidths = []float64{6, 15, 25, 15, 30}
)

// WriteXLSX serializes the review table as a spreadsheet: one row per
// item in table order, then a trailing 합계 row summing the amounts.
func WriteXLSX(w io.Writer, items []*Item) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(exportSheetName)
	if err != nil {
		return fmt.Errorf("adding sheet: %w", err)
	}

	for i, width := range exportColWidths {
		if err := sheet.SetColWidth(i, i, width); err != nil {
			return fmt.Errorf("setting column width: %w", err)
		}
	}

	header := sheet.AddRow()
	for _, h := range exportHeaders {
		header.AddCell().Value = h
	}

	total := 0
	for i, item := range items {
		row := sheet.AddRow()
		row.AddCell().SetInt(i + 1)
		row.AddCell().Value = item.Date
		row.AddCell().Value = item.MerchantName
		row.AddCell().SetInt(item.Amount)
		row.AddCell().Value = item.Notes
		total += item.Amount
	}

	totalRow := sheet.AddRow()
	totalRow.AddCell().Value = "합계"
	totalRow.AddCell()
	totalRow.AddCell()
	totalRow.AddCell().SetInt(total)

	if err := file.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// ExportFilename names the download after the export date
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("영수증_정리_%s.xlsx", now.Format("2006-01-02"))
}
