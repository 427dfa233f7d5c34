package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Dataset is a table plus free-text notes rendered after it.
type Dataset struct {
	Title   string
	Headers []string
	Rows    [][]string
	Notes   []string
}

// CSVExporter renders a Dataset as CSV. Notes follow the table after a blank
// row, one per line under a "note" column.
type CSVExporter struct{}

func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the dataset.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		if err := writer.Write(pad(row, len(data.Headers))); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	if len(data.Notes) > 0 {
		blank := make([]string, len(data.Headers))
		if err := writer.Write(blank); err != nil {
			return nil, fmt.Errorf("write csv separator: %w", err)
		}
		for _, note := range data.Notes {
			record := make([]string, len(data.Headers))
			record[0] = "note"
			if len(record) > 1 {
				record[1] = note
			} else {
				record[0] = note
			}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("write csv note: %w", err)
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func pad(row []string, width int) []string {
	record := make([]string, width)
	copy(record, row)
	return record
}
