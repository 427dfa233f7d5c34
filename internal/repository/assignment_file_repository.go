package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute/internal/models"
	appErrors "github.com/noah-isme/sma-substitute/pkg/errors"
)

const dateLayout = "2006-01-02"

type fileStorage interface {
	Save(filename string, data []byte) error
	Create(filename string, data []byte) error
	Read(filename string) ([]byte, error)
	List(dir string) ([]string, error)
}

type storeObserver interface {
	ObserveStore(operation string, duration time.Duration)
}

// AssignmentFileRepository keeps assignment results as JSON documents:
// assignments/<date>.json is the current result, logs/<date>/<runID>.json the
// append-only run history and absences/<date>.json the absentee snapshot.
type AssignmentFileRepository struct {
	storage fileStorage
	metrics storeObserver
	logger  *zap.Logger
}

// NewAssignmentFileRepository constructs the repository. metrics may be nil.
func NewAssignmentFileRepository(storage fileStorage, metrics storeObserver, logger *zap.Logger) *AssignmentFileRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentFileRepository{storage: storage, metrics: metrics, logger: logger}
}

// LoadRecord returns the current result for date or ErrNotFound.
func (r *AssignmentFileRepository) LoadRecord(ctx context.Context, date string) (*models.AssignmentRecord, error) {
	defer r.observe("load_record", time.Now())
	if err := checkDate(ctx, date); err != nil {
		return nil, err
	}

	var record models.AssignmentRecord
	if err := r.readJSON(assignmentsFile(date), &record); err != nil {
		return nil, err
	}
	if record.Date == "" {
		record.Date = date
	}
	return &record, nil
}

// LoadAssignments returns the persisted assignments for date. A missing file
// is an empty list; an empty or unreadable one is an empty list plus ErrCorruptState.
func (r *AssignmentFileRepository) LoadAssignments(ctx context.Context, date string) ([]models.SubstituteAssignment, error) {
	record, err := r.LoadRecord(ctx, date)
	switch {
	case errors.Is(err, appErrors.ErrNotFound):
		return []models.SubstituteAssignment{}, nil
	case errors.Is(err, appErrors.ErrCorruptState):
		r.logger.Warn("assignment file is corrupt, treating as empty", zap.String("date", date), zap.Error(err))
		return []models.SubstituteAssignment{}, err
	case err != nil:
		return nil, err
	}
	if record.Assignments == nil {
		return []models.SubstituteAssignment{}, nil
	}
	return record.Assignments, nil
}

// SaveAssignments overwrites the current result and appends the run history.
func (r *AssignmentFileRepository) SaveAssignments(ctx context.Context, record models.AssignmentRecord, history models.RunHistory) error {
	defer r.observe("save_assignments", time.Now())
	if err := checkDate(ctx, record.Date); err != nil {
		return err
	}
	if record.Assignments == nil {
		record.Assignments = []models.SubstituteAssignment{}
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode assignments: %w", err)
	}
	if err := r.storage.Save(assignmentsFile(record.Date), data); err != nil {
		return err
	}

	if history.RunID == "" {
		return nil
	}
	logData, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run history: %w", err)
	}
	return r.storage.Create(path.Join("logs", record.Date, history.RunID+".json"), logData)
}

// LoadAbsences returns the absentee snapshot for date or ErrNotFound.
func (r *AssignmentFileRepository) LoadAbsences(ctx context.Context, date string) ([]models.Absence, error) {
	defer r.observe("load_absences", time.Now())
	if err := checkDate(ctx, date); err != nil {
		return nil, err
	}
	var absences []models.Absence
	if err := r.readJSON(absencesFile(date), &absences); err != nil {
		return nil, err
	}
	return absences, nil
}

// SaveAbsences replaces the absentee snapshot for date.
func (r *AssignmentFileRepository) SaveAbsences(ctx context.Context, date string, absences []models.Absence) error {
	defer r.observe("save_absences", time.Now())
	if err := checkDate(ctx, date); err != nil {
		return err
	}
	data, err := json.MarshalIndent(absences, "", "  ")
	if err != nil {
		return fmt.Errorf("encode absences: %w", err)
	}
	return r.storage.Save(absencesFile(date), data)
}

// ListRuns returns the run history of date in file name order. Unreadable
// entries are skipped.
func (r *AssignmentFileRepository) ListRuns(ctx context.Context, date string) ([]models.RunHistory, error) {
	defer r.observe("list_runs", time.Now())
	if err := checkDate(ctx, date); err != nil {
		return nil, err
	}
	dir := path.Join("logs", date)
	files, err := r.storage.List(dir)
	if err != nil {
		return nil, err
	}
	runs := make([]models.RunHistory, 0, len(files))
	for _, name := range files {
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		var run models.RunHistory
		if err := r.readJSON(path.Join(dir, name), &run); err != nil {
			r.logger.Warn("skipping unreadable run log", zap.String("file", name), zap.Error(err))
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (r *AssignmentFileRepository) readJSON(name string, target interface{}) error {
	data, err := r.storage.Read(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return appErrors.Clone(appErrors.ErrNotFound, name+" not found")
		}
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return appErrors.Clone(appErrors.ErrCorruptState, name+" is empty")
	}
	if err := json.Unmarshal(data, target); err != nil {
		return appErrors.WrapAs(appErrors.ErrCorruptState, err, name+" is not valid JSON")
	}
	return nil
}

func (r *AssignmentFileRepository) observe(operation string, started time.Time) {
	if r.metrics != nil {
		r.metrics.ObserveStore(operation, time.Since(started))
	}
}

func checkDate(ctx context.Context, date string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "date must use YYYY-MM-DD")
	}
	return nil
}

func assignmentsFile(date string) string {
	return path.Join("assignments", date+".json")
}

func absencesFile(date string) string {
	return path.Join("absences", date+".json")
}
