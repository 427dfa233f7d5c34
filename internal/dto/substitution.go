package dto

import (
	"time"

	"github.com/noah-isme/sma-substitute/internal/models"
)

// AbsenteeRequest is one absent teacher reported for the run date.
type AbsenteeRequest struct {
	Name        string     `json:"name" validate:"required"`
	PhoneNumber string     `json:"phoneNumber"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

// RunRequest triggers an assignment run. When Absentees is empty the
// persisted absentee snapshot for Date is used.
type RunRequest struct {
	Date      string            `json:"date" validate:"required,datetime=2006-01-02"`
	Absentees []AbsenteeRequest `json:"absentees" validate:"omitempty,dive"`
}

// RunResult is what one run produced. Assignments only holds the
// assignments made by this run.
type RunResult struct {
	RunID       string                        `json:"runId"`
	Date        string                        `json:"date"`
	Day         string                        `json:"day"`
	Assignments []models.SubstituteAssignment `json:"assignments"`
	Warnings    []string                      `json:"warnings"`
	Logs        []models.ProcessLog           `json:"logs"`
}

// VerificationResponse lists the audit outcome for a date.
type VerificationResponse struct {
	Date    string                      `json:"date"`
	Passed  bool                        `json:"passed"`
	Reports []models.VerificationReport `json:"reports"`
}

// ExportFormat selects the rendering of an assignment sheet.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportRequest asks for the assignment sheet of Date.
type ExportRequest struct {
	Date   string       `form:"date" validate:"required,datetime=2006-01-02"`
	Format ExportFormat `form:"format" validate:"required,oneof=csv pdf"`
}

// ExportResult is a rendered document.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
}
