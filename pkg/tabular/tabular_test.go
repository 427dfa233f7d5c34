package tabular

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	appErrors "github.com/noah-isme/sma-substitute/pkg/errors"
)

func TestReadCSVWellFormed(t *testing.T) {
	grid, err := ReadCSV([]byte("Day,Period,10A\nMonday,1,Sir Bakir Shah\n"), 3)
	require.NoError(t, err)
	assert.False(t, grid.Repaired)
	assert.Equal(t, [][]string{{"Day", "Period", "10A"}, {"Monday", "1", "Sir Bakir Shah"}}, grid.Rows)
}

func TestReadCSVRepairsColumnCount(t *testing.T) {
	raw := "Day,Period,10A\nMonday,1,Sir Bakir Shah,extra\nTuesday,2\n"
	grid, err := ReadCSV([]byte(raw), 3)
	require.NoError(t, err)
	assert.True(t, grid.Repaired)
	require.Len(t, grid.Rows, 3)
	assert.Equal(t, []string{"Monday", "1", "Sir Bakir Shah"}, grid.Rows[1])
	assert.Equal(t, []string{"Tuesday", "2", ""}, grid.Rows[2])
}

func TestReadCSVRepairsUnbalancedQuote(t *testing.T) {
	raw := "name,phone\n\"Sir Waqar Ali,+923113588606\n"
	grid, err := ReadCSV([]byte(raw), 2)
	require.NoError(t, err)
	assert.True(t, grid.Repaired)
	require.Len(t, grid.Rows, 2)
	assert.Equal(t, "name", grid.Rows[0][0])
}

func TestRepairKeepsCanonicalText(t *testing.T) {
	assert.Equal(t, "a,b\n", string(Repair([]byte("a,b\n"), 2)))
	assert.Equal(t, "", string(Repair([]byte(""), 2)))
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"name", "phone"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"Sir Fahad Malik", "+923156103995"}))
	buf := &bytes.Buffer{}
	require.NoError(t, f.Write(buf))

	grid, err := ReadXLSX(buf.Bytes(), 2)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"name", "phone"}, {"Sir Fahad Malik", "+923156103995"}}, grid.Rows)
}

func TestReadXLSXRejectsGarbage(t *testing.T) {
	_, err := ReadXLSX([]byte("not a workbook"), 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrMalformedSource))
}
