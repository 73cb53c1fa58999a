package source

import (
	"fmt"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/panel"
	"github.com/xuri/excelize/v2"
)

// LoadXLSX reads a panel from a worksheet whose first row is the header.
// The first sheet is used when sheet is empty.
func LoadXLSX(path, sheet string, cols Columns) (*panel.Panel, Report, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, Report{}, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, Report{}, ErrEmptyTable
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, Report{}, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) < 2 {
		return nil, Report{}, ErrEmptyTable
	}
	return FromRecords(rows[0], rows[1:], cols)
}
