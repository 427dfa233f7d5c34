package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-substitute/internal/models"
	appErrors "github.com/noah-isme/sma-substitute/pkg/errors"
)

// AssignmentRepository persists assignment results in PostgreSQL. Every save
// replaces the rows of its date inside one transaction.
type AssignmentRepository struct {
	db      *sqlx.DB
	metrics storeObserver
}

// NewAssignmentRepository constructs the repository. metrics may be nil.
func NewAssignmentRepository(db *sqlx.DB, metrics storeObserver) *AssignmentRepository {
	return &AssignmentRepository{db: db, metrics: metrics}
}

type resultRow struct {
	Warnings  types.JSONText `db:"warnings"`
	UpdatedAt time.Time      `db:"updated_at"`
}

type runRow struct {
	RunID     string         `db:"run_id"`
	Date      time.Time      `db:"assignment_date"`
	Warnings  types.JSONText `db:"warnings"`
	Logs      types.JSONText `db:"logs"`
	CreatedAt time.Time      `db:"created_at"`
}

// LoadRecord returns the current result for date or ErrNotFound.
func (r *AssignmentRepository) LoadRecord(ctx context.Context, date string) (*models.AssignmentRecord, error) {
	defer r.observe("load_record", time.Now())
	if err := checkDate(ctx, date); err != nil {
		return nil, err
	}

	const resultQuery = `SELECT warnings, updated_at FROM substitute_results WHERE assignment_date = $1`
	var row resultRow
	if err := r.db.GetContext(ctx, &row, resultQuery, date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no assignments recorded for "+date)
		}
		return nil, fmt.Errorf("load substitute result: %w", err)
	}

	assignments, err := r.selectAssignments(ctx, date)
	if err != nil {
		return nil, err
	}

	record := &models.AssignmentRecord{Date: date, Assignments: assignments, UpdatedAt: row.UpdatedAt}
	if err := decodeJSON(row.Warnings, &record.Warnings); err != nil {
		return nil, err
	}
	return record, nil
}

// LoadAssignments returns the assignments stored for date, empty when none.
func (r *AssignmentRepository) LoadAssignments(ctx context.Context, date string) ([]models.SubstituteAssignment, error) {
	defer r.observe("load_assignments", time.Now())
	if err := checkDate(ctx, date); err != nil {
		return nil, err
	}
	return r.selectAssignments(ctx, date)
}

func (r *AssignmentRepository) selectAssignments(ctx context.Context, date string) ([]models.SubstituteAssignment, error) {
	const query = `SELECT original_teacher, period, class_name, substitute, substitute_phone
		FROM substitute_assignments WHERE assignment_date = $1 ORDER BY position`
	assignments := []models.SubstituteAssignment{}
	if err := r.db.SelectContext(ctx, &assignments, query, date); err != nil {
		return nil, fmt.Errorf("load substitute assignments: %w", err)
	}
	return assignments, nil
}

// SaveAssignments replaces the result of record.Date and appends the run history.
func (r *AssignmentRepository) SaveAssignments(ctx context.Context, record models.AssignmentRecord, history models.RunHistory) (err error) {
	defer r.observe("save_assignments", time.Now())
	if err := checkDate(ctx, record.Date); err != nil {
		return err
	}

	warnings, err := encodeJSON(record.Warnings)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM substitute_assignments WHERE assignment_date = $1`, record.Date); err != nil {
		return fmt.Errorf("clear substitute assignments: %w", err)
	}

	const insert = `INSERT INTO substitute_assignments (assignment_date, position, original_teacher, period, class_name, substitute, substitute_phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for i, a := range record.Assignments {
		if _, err = tx.ExecContext(ctx, insert, record.Date, i, a.OriginalTeacher, a.Period, a.ClassName, a.Substitute, a.SubstitutePhone); err != nil {
			return fmt.Errorf("insert substitute assignment: %w", err)
		}
	}

	const upsert = `INSERT INTO substitute_results (assignment_date, warnings, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (assignment_date) DO UPDATE SET warnings = EXCLUDED.warnings, updated_at = EXCLUDED.updated_at`
	if _, err = tx.ExecContext(ctx, upsert, record.Date, warnings, record.UpdatedAt); err != nil {
		return fmt.Errorf("upsert substitute result: %w", err)
	}

	if history.RunID != "" {
		var runWarnings, logs types.JSONText
		if runWarnings, err = encodeJSON(history.Warnings); err != nil {
			return err
		}
		if logs, err = encodeJSON(history.Logs); err != nil {
			return err
		}
		const insertRun = `INSERT INTO substitute_runs (run_id, assignment_date, warnings, logs, created_at) VALUES ($1, $2, $3, $4, $5)`
		if _, err = tx.ExecContext(ctx, insertRun, history.RunID, record.Date, runWarnings, logs, history.CreatedAt); err != nil {
			return fmt.Errorf("insert substitute run: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit assignments: %w", err)
	}
	return nil
}

// LoadAbsences returns the absentee snapshot of date or ErrNotFound.
func (r *AssignmentRepository) LoadAbsences(ctx context.Context, date string) ([]models.Absence, error) {
	defer r.observe("load_absences", time.Now())
	if err := checkDate(ctx, date); err != nil {
		return nil, err
	}
	const query = `SELECT teacher_name, phone_number, reported_at FROM absences WHERE absence_date = $1 ORDER BY position`
	var absences []models.Absence
	if err := r.db.SelectContext(ctx, &absences, query, date); err != nil {
		return nil, fmt.Errorf("load absences: %w", err)
	}
	if len(absences) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no absentees recorded for "+date)
	}
	return absences, nil
}

// SaveAbsences replaces the absentee snapshot of date.
func (r *AssignmentRepository) SaveAbsences(ctx context.Context, date string, absences []models.Absence) (err error) {
	defer r.observe("save_absences", time.Now())
	if err := checkDate(ctx, date); err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM absences WHERE absence_date = $1`, date); err != nil {
		return fmt.Errorf("clear absences: %w", err)
	}
	const insert = `INSERT INTO absences (absence_date, position, teacher_name, phone_number, reported_at) VALUES ($1, $2, $3, $4, $5)`
	for i, a := range absences {
		if _, err = tx.ExecContext(ctx, insert, date, i, a.Name, a.PhoneNumber, a.Timestamp); err != nil {
			return fmt.Errorf("insert absence: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit absences: %w", err)
	}
	return nil
}

// ListRuns returns the run history of date, oldest first.
func (r *AssignmentRepository) ListRuns(ctx context.Context, date string) ([]models.RunHistory, error) {
	defer r.observe("list_runs", time.Now())
	if err := checkDate(ctx, date); err != nil {
		return nil, err
	}
	const query = `SELECT run_id, assignment_date, warnings, logs, created_at FROM substitute_runs
		WHERE assignment_date = $1 ORDER BY created_at`
	var rows []runRow
	if err := r.db.SelectContext(ctx, &rows, query, date); err != nil {
		return nil, fmt.Errorf("list substitute runs: %w", err)
	}

	runs := make([]models.RunHistory, 0, len(rows))
	for _, row := range rows {
		run := models.RunHistory{RunID: row.RunID, Date: row.Date.Format(dateLayout), CreatedAt: row.CreatedAt}
		if err := decodeJSON(row.Warnings, &run.Warnings); err != nil {
			return nil, err
		}
		if err := decodeJSON(row.Logs, &run.Logs); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (r *AssignmentRepository) observe(operation string, started time.Time) {
	if r.metrics != nil {
		r.metrics.ObserveStore(operation, time.Since(started))
	}
}

func encodeJSON(value interface{}) (types.JSONText, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	if string(data) == "null" {
		data = []byte("[]")
	}
	return types.JSONText(data), nil
}

func decodeJSON(raw types.JSONText, target interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return appErrors.WrapAs(appErrors.ErrCorruptState, err, "stored json column is unreadable")
	}
	return nil
}
