package tabular

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	appErrors "github.com/noah-isme/sma-substitute/pkg/errors"
)

// ReadXLSX returns the rows of the first worksheet, padded or trimmed to
// expectedCols when it is positive. Spreadsheets are structurally valid by
// construction so no repair pass is attempted.
func ReadXLSX(raw []byte, expectedCols int) (*Grid, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrMalformedSource, err, "failed to open workbook")
	}
	defer f.Close() //nolint:errcheck

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, appErrors.WrapAs(appErrors.ErrMalformedSource, fmt.Errorf("workbook has no sheets"), "")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrMalformedSource, err, "failed to read worksheet")
	}

	grid := &Grid{Rows: make([][]string, 0, len(rows))}
	for _, row := range rows {
		if isBlank(row) {
			continue
		}
		if expectedCols > 0 {
			row = fit(row, expectedCols)
		}
		grid.Rows = append(grid.Rows, row)
	}
	return grid, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}
