package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the exported alerts.
const SheetName = "Alerts"

// maxColumnWidth caps auto-sized columns so long descriptions do not produce
// unusable sheets.
const maxColumnWidth = 50

// WriteExcel renders rows as a spreadsheet: one header row, auto-sized
// columns, frozen header, auto-filter. Returns the file as bytes.
func WriteExcel(rows []Row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &Columns); err != nil {
		return nil, fmt.Errorf("write header row: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("cell name for row %d: %w", i+2, err)
		}
		values := row.Values()
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := sizeColumns(f, rows); err != nil {
		return nil, err
	}

	// Freeze the header row.
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	lastCol, err := excelize.ColumnNumberToName(len(Columns))
	if err != nil {
		return nil, fmt.Errorf("last column name: %w", err)
	}
	filterRange := fmt.Sprintf("A1:%s%d", lastCol, len(rows)+1)
	if err := f.AutoFilter(SheetName, filterRange, nil); err != nil {
		return nil, fmt.Errorf("set auto-filter: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// sizeColumns widens each column to its longest cell plus padding, capped at
// maxColumnWidth.
func sizeColumns(f *excelize.File, rows []Row) error {
	for colIdx, header := range Columns {
		width := len(header)
		for _, row := range rows {
			values := row.Values()
			if s, ok := values[colIdx].(string); ok && len(s) > width {
				width = len(s)
			}
		}

		width += 2
		if width > maxColumnWidth {
			width = maxColumnWidth
		}

		name, err := excelize.ColumnNumberToName(colIdx + 1)
		if err != nil {
			return fmt.Errorf("column name %d: %w", colIdx+1, err)
		}
		if err := f.SetColWidth(SheetName, name, name, float64(width)); err != nil {
			return fmt.Errorf("set width of column %s: %w", name, err)
		}
	}
	return nil
}
