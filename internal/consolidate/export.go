// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package consolidate

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pdiddy/sanctions-engine/pkg/types"
)

// Sheet names of the Excel report.
const (
	SheetData    = "Consolidated_Data"
	SheetSummary = "Summary"
)

// utf8BOM lets spreadsheet applications detect UTF-8 in CSV downloads.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// OutputName returns the consolidated CSV file name for t.
func OutputName(t time.Time) string {
	return fmt.Sprintf("sanctions_cleaned_%s.csv", t.Format("20060102_150405"))
}

// Header returns the column names written by WriteCSV and WriteExcel.
func Header(withSource bool) []string {
	header := append([]string{}, types.Columns...)
	if withSource {
		header = append(header, types.ColumnSourceFile)
	}
	return header
}

func row(r types.Record, withSource bool) []string {
	values := r.Values()
	if withSource {
		values = append(values, r.SourceFile)
	}
	return values
}

// WriteCSV writes records as UTF-8 CSV with a byte order mark and header.
func WriteCSV(w io.Writer, records []types.Record, withSource bool) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("writing BOM: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(withSource)); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(row(r, withSource)); err != nil {
			return fmt.Errorf("writing record %q: %w", r.Name, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteExcel writes a workbook with the records on the Consolidated_Data
// sheet and the summary metrics on the Summary sheet.
func WriteExcel(w io.Writer, records []types.Record, summary types.Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetData); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}
	if err := setRow(f, SheetData, 1, Header(true)); err != nil {
		return err
	}
	for i, r := range records {
		if err := setRow(f, SheetData, i+2, row(r, true)); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("creating summary sheet: %w", err)
	}
	metrics := [][]any{
		{"Metric", "Value"},
		{"Total Records", summary.TotalRecords},
		{"Files Processed", summary.FilesProcessed},
		{"Duplicates Removed", summary.DuplicatesRemoved},
		{"Data Sources", summary.DataSources},
	}
	for i, m := range metrics {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetSummary, cell, &m); err != nil {
			return fmt.Errorf("writing summary row %d: %w", i+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("writing %s row %d: %w", sheet, rowNum, err)
	}
	return nil
}
