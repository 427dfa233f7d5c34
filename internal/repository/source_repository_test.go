package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/sma-substitute/pkg/config"
	appErrors "github.com/noah-isme/sma-substitute/pkg/errors"
)

func writeSource(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestSourceRepositoryLoadsCSV(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "timetable.csv", "Monday,1,Bakir Shah,Waqar\nMonday,2,Fahad,Bakir Shah\n")
	writeSource(t, dir, "roster.csv", "Name,Phone\nWaqar,03001234567\n")
	repo := NewSourceRepository(config.SourcesConfig{DataDir: dir, TimetableFile: "timetable.csv", RosterFile: "roster.csv"}, nil)

	timetable, err := repo.LoadTimetable(context.Background(), 4)
	require.NoError(t, err)
	assert.False(t, timetable.Repaired)
	assert.Equal(t, []string{"Monday", "1", "Bakir Shah", "Waqar"}, timetable.Rows[0])

	roster, err := repo.LoadRoster(context.Background())
	require.NoError(t, err)
	assert.Len(t, roster.Rows, 2)
}

func TestSourceRepositoryMissingFiles(t *testing.T) {
	dir := t.TempDir()
	repo := NewSourceRepository(config.SourcesConfig{DataDir: dir, TimetableFile: "timetable.csv", RosterFile: "roster.csv"}, nil)

	_, err := repo.LoadTimetable(context.Background(), 4)
	assert.True(t, errors.Is(err, appErrors.ErrTimetableMissing))

	_, err = repo.LoadRoster(context.Background())
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = repo.LoadProfiles(context.Background())
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestSourceRepositoryLoadsXLSX(t *testing.T) {
	dir := t.TempDir()
	book := excelize.NewFile()
	require.NoError(t, book.SetSheetRow("Sheet1", "A1", &[]interface{}{"Monday", 1, "Bakir Shah", "Waqar"}))
	require.NoError(t, book.SaveAs(filepath.Join(dir, "timetable.xlsx")))
	require.NoError(t, book.Close())

	repo := NewSourceRepository(config.SourcesConfig{DataDir: dir, TimetableFile: "timetable.xlsx"}, nil)
	grid, err := repo.LoadTimetable(context.Background(), 4)
	require.NoError(t, err)
	require.Len(t, grid.Rows, 1)
	assert.Equal(t, "Bakir Shah", grid.Rows[0][2])
}

func TestSourceRepositoryLoadsProfiles(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "profiles.yaml", `teachers:
  - name: Waqar
    gradeLevel: 9
    phone: "03001234567"
  - name: Fahad
    substitute: false
`)
	repo := NewSourceRepository(config.SourcesConfig{DataDir: dir, ProfilesFile: "profiles.yaml"}, nil)

	profiles, err := repo.LoadProfiles(context.Background())
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, 9, profiles[0].GradeLevel)
	require.NotNil(t, profiles[1].Substitute)
	assert.False(t, *profiles[1].Substitute)
}

func TestSourceRepositoryRejectsBadProfiles(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "broken.yaml", "teachers: [name: {")
	writeSource(t, dir, "invalid.yaml", "teachers:\n  - gradeLevel: 40\n")

	repo := NewSourceRepository(config.SourcesConfig{DataDir: dir, ProfilesFile: "broken.yaml"}, nil)
	_, err := repo.LoadProfiles(context.Background())
	assert.True(t, errors.Is(err, appErrors.ErrMalformedSource))

	repo = NewSourceRepository(config.SourcesConfig{DataDir: dir, ProfilesFile: "invalid.yaml"}, nil)
	_, err = repo.LoadProfiles(context.Background())
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
