// Package tabular converts between spreadsheets and the engine's abstract
// row representation: decoding uploaded paper-claim sheets and encoding the
// monthly report workbook.
package tabular

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

// XLSXMimeType is the content type of generated workbooks.
const XLSXMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Monthly report sheet names, in their fixed order.
const (
	SheetSummary = "Project Summary"
	SheetDetail  = "Expense Detail"
	SheetAnomaly = "Anomalies"
)

// Sheet is one named worksheet: a header row followed by data rows.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]any
}

// WriteWorkbook encodes sheets into an xlsx file, preserving sheet order.
func WriteWorkbook(sheets []Sheet) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range sheets {
		if i == 0 {
			// The workbook starts with one default sheet; rename it.
			defaultName := f.GetSheetName(0)
			if err := f.SetSheetName(defaultName, sheet.Name); err != nil {
				return nil, fmt.Errorf("failed to name sheet %q: %w", sheet.Name, err)
			}
		} else {
			if _, err := f.NewSheet(sheet.Name); err != nil {
				return nil, fmt.Errorf("failed to add sheet %q: %w", sheet.Name, err)
			}
		}

		header := make([]any, len(sheet.Header))
		for c, name := range sheet.Header {
			header[c] = name
		}
		if err := writeRow(f, sheet.Name, 1, header); err != nil {
			return nil, err
		}
		for r, row := range sheet.Rows {
			if err := writeRow(f, sheet.Name, r+2, row); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, rowNum int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d on %q: %w", rowNum, sheet, err)
	}
	return nil
}

// MonthlyFileName builds the generated report's download name.
func MonthlyFileName(period string) string {
	return fmt.Sprintf("monthly_report_%s_%d.xlsx", period, time.Now().Unix())
}
