package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the XLSX workbook.
const (
	SheetRun      = "Run"
	SheetAttempts = "Attempts"
	SheetFields   = "Fields"
)

// WriteXLSX writes a workbook with the run summary, the attempt table and
// the final extracted fields on separate sheets.
func WriteXLSX(w io.Writer, thread Thread) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetRun); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	if err := writeRows(f, SheetRun, nil, summaryRows(thread.Run)); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetAttempts); err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}
	attempts := make([][]string, len(thread.Attempts))
	for i := range thread.Attempts {
		attempts[i] = attemptRow(&thread.Attempts[i])
	}
	if err := writeRows(f, SheetAttempts, attemptColumns, attempts); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetFields); err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}
	if err := writeRows(f, SheetFields, fieldColumns, fieldRows(thread.Run.ExtractedFields)); err != nil {
		return err
	}

	if err := f.SetColWidth(SheetRun, "A", "B", 24); err != nil {
		return fmt.Errorf("sizing columns: %w", err)
	}
	if err := f.SetColWidth(SheetAttempts, "A", "L", 16); err != nil {
		return fmt.Errorf("sizing columns: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, header []string, rows [][]string) error {
	start := 1
	if header != nil {
		if err := setRow(f, sheet, 1, header); err != nil {
			return err
		}
		style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return fmt.Errorf("creating header style: %w", err)
		}
		last, _ := excelize.CoordinatesToCellName(len(header), 1)
		if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
			return fmt.Errorf("styling header: %w", err)
		}
		start = 2
	}
	for i, row := range rows {
		if err := setRow(f, sheet, start+i, row); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, n int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &row); err != nil {
		return fmt.Errorf("writing %s row %d: %w", sheet, n, err)
	}
	return nil
}
