// Package tabular reads raw timetable and roster sheets into string grids.
package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	appErrors "github.com/noah-isme/sma-substitute/pkg/errors"
)

// Grid is a parsed sheet. Repaired reports whether the one-shot repair ran.
type Grid struct {
	Rows     [][]string
	Repaired bool
}

// ReadCSV parses raw comma separated text. When expectedCols is positive every
// row must carry exactly that many columns. A structurally broken document is
// repaired once (quotes balanced, trailing columns trimmed or padded) and
// parsed again; if the repair changes nothing or the second parse fails the
// source is reported as malformed.
func ReadCSV(raw []byte, expectedCols int) (*Grid, error) {
	rows, err := parse(raw, expectedCols)
	if err == nil {
		return &Grid{Rows: rows}, nil
	}

	repaired := Repair(raw, expectedCols)
	if bytes.Equal(repaired, raw) {
		return nil, appErrors.WrapAs(appErrors.ErrMalformedSource, err, "csv could not be repaired")
	}

	rows, reparseErr := parse(repaired, expectedCols)
	if reparseErr != nil {
		return nil, appErrors.WrapAs(appErrors.ErrMalformedSource, reparseErr, "csv still malformed after repair")
	}
	return &Grid{Rows: rows, Repaired: true}, nil
}

func parse(raw []byte, expectedCols int) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.TrimLeadingSpace = true
	if expectedCols > 0 {
		reader.FieldsPerRecord = expectedCols
	}
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

// Repair rewrites raw line by line so that quoting is balanced and every row
// has expectedCols columns. With expectedCols <= 0 the first row's width is used.
func Repair(raw []byte, expectedCols int) []byte {
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	lines := strings.Split(text, "\n")

	records := make([][]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.Count(line, `"`)%2 != 0 {
			line += `"`
		}
		records = append(records, splitLine(line))
	}
	if len(records) == 0 {
		return raw
	}

	width := expectedCols
	if width <= 0 {
		width = len(records[0])
	}

	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	for _, record := range records {
		if err := writer.Write(fit(record, width)); err != nil {
			return raw
		}
	}
	writer.Flush()
	if writer.Error() != nil {
		return raw
	}
	return buf.Bytes()
}

func splitLine(line string) []string {
	reader := csv.NewReader(strings.NewReader(line))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	record, err := reader.Read()
	if err != nil {
		record = strings.Split(line, ",")
	}
	for i := range record {
		record[i] = strings.TrimSpace(strings.Trim(record[i], `"`))
	}
	return record
}

func fit(record []string, width int) []string {
	if len(record) > width {
		return record[:width]
	}
	for len(record) < width {
		record = append(record, "")
	}
	return record
}
