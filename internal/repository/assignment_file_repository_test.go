package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitute/internal/models"
	appErrors "github.com/noah-isme/sma-substitute/pkg/errors"
	"github.com/noah-isme/sma-substitute/pkg/storage"
)

func newFileRepo(t *testing.T) (*AssignmentFileRepository, string) {
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	return NewAssignmentFileRepository(store, nil, nil), dir
}

func TestAssignmentFileRepositoryMissingIsEmpty(t *testing.T) {
	repo, _ := newFileRepo(t)

	assignments, err := repo.LoadAssignments(context.Background(), "2024-05-06")
	require.NoError(t, err)
	assert.Empty(t, assignments)

	_, err = repo.LoadRecord(context.Background(), "2024-05-06")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = repo.LoadAbsences(context.Background(), "2024-05-06")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestAssignmentFileRepositoryCorruptFile(t *testing.T) {
	repo, dir := newFileRepo(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assignments"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assignments", "2024-05-06.json"), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assignments", "2024-05-07.json"), []byte("  \n"), 0o644))

	assignments, err := repo.LoadAssignments(context.Background(), "2024-05-06")
	assert.True(t, errors.Is(err, appErrors.ErrCorruptState))
	assert.NotNil(t, assignments)
	assert.Empty(t, assignments)

	_, err = repo.LoadAssignments(context.Background(), "2024-05-07")
	assert.True(t, errors.Is(err, appErrors.ErrCorruptState))
}

func TestAssignmentFileRepositorySaveAndLoad(t *testing.T) {
	repo, dir := newFileRepo(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)

	record := models.AssignmentRecord{
		Date: "2024-05-06",
		Assignments: []models.SubstituteAssignment{
			{OriginalTeacher: "Bakir Shah", Period: 1, ClassName: "10A", Substitute: "Waqar", SubstitutePhone: "+923001234567"},
		},
		Warnings:  []string{"roster file was malformed and has been repaired"},
		UpdatedAt: now,
	}
	history := models.RunHistory{
		RunID:     "run-1",
		Date:      "2024-05-06",
		Logs:      []models.ProcessLog{{Action: "assign", Status: models.LogStatusInfo}},
		CreatedAt: now,
	}
	require.NoError(t, repo.SaveAssignments(ctx, record, history))

	loaded, err := repo.LoadRecord(ctx, "2024-05-06")
	require.NoError(t, err)
	assert.Equal(t, record.Assignments, loaded.Assignments)
	assert.Equal(t, record.Warnings, loaded.Warnings)
	assert.True(t, now.Equal(loaded.UpdatedAt))
	assert.FileExists(t, filepath.Join(dir, "logs", "2024-05-06", "run-1.json"))

	// a second run overwrites the result but keeps both histories
	record.Assignments = nil
	require.NoError(t, repo.SaveAssignments(ctx, record, models.RunHistory{RunID: "run-2", Date: "2024-05-06", CreatedAt: now}))
	assignments, err := repo.LoadAssignments(ctx, "2024-05-06")
	require.NoError(t, err)
	assert.Empty(t, assignments)

	runs, err := repo.ListRuns(ctx, "2024-05-06")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-1", runs[0].RunID)
	assert.Equal(t, "run-2", runs[1].RunID)
}

func TestAssignmentFileRepositoryRunHistoryIsAppendOnly(t *testing.T) {
	repo, _ := newFileRepo(t)
	ctx := context.Background()
	record := models.AssignmentRecord{Date: "2024-05-06"}
	history := models.RunHistory{RunID: "run-1", Date: "2024-05-06"}

	require.NoError(t, repo.SaveAssignments(ctx, record, history))
	assert.Error(t, repo.SaveAssignments(ctx, record, history))
}

func TestAssignmentFileRepositoryAbsences(t *testing.T) {
	repo, _ := newFileRepo(t)
	ctx := context.Background()
	reported := time.Date(2024, 5, 6, 7, 30, 0, 0, time.UTC)

	require.NoError(t, repo.SaveAbsences(ctx, "2024-05-06", []models.Absence{{Name: "Bakir Shah", Timestamp: reported}}))
	absences, err := repo.LoadAbsences(ctx, "2024-05-06")
	require.NoError(t, err)
	require.Len(t, absences, 1)
	assert.Equal(t, "Bakir Shah", absences[0].Name)
}

func TestAssignmentFileRepositoryRejectsPathLikeDates(t *testing.T) {
	repo, _ := newFileRepo(t)

	_, err := repo.LoadRecord(context.Background(), "../secrets")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
