package models

import "time"

// Absence is one reported absent teacher for a date.
type Absence struct {
	Name        string    `db:"teacher_name" json:"name" validate:"required"`
	PhoneNumber string    `db:"phone_number" json:"phoneNumber,omitempty"`
	Timestamp   time.Time `db:"reported_at" json:"timestamp"`
}

// SubstituteAssignment covers one class-period of an absent teacher.
type SubstituteAssignment struct {
	OriginalTeacher string `db:"original_teacher" json:"originalTeacher"`
	Period          int    `db:"period" json:"period"`
	ClassName       string `db:"class_name" json:"className"`
	Substitute      string `db:"substitute" json:"substitute"`
	SubstitutePhone string `db:"substitute_phone" json:"substitutePhone"`
}

// LogStatus grades a process log entry.
type LogStatus string

const (
	LogStatusInfo    LogStatus = "info"
	LogStatusWarning LogStatus = "warning"
	LogStatusError   LogStatus = "error"
)

// ProcessLog is one timestamped step of a run.
type ProcessLog struct {
	Timestamp  time.Time `json:"timestamp"`
	Action     string    `json:"action"`
	Details    string    `json:"details"`
	Status     LogStatus `json:"status"`
	DurationMs int64     `json:"durationMs"`
}

// CheckStatus is the outcome of a verification check.
type CheckStatus string

const (
	CheckPass CheckStatus = "PASS"
	CheckFail CheckStatus = "FAIL"
)

// VerificationReport is the result of one audit check.
type VerificationReport struct {
	Check   string      `json:"check"`
	Status  CheckStatus `json:"status"`
	Details string      `json:"details"`
}

// AssignmentRecord is the current persisted result for a date.
type AssignmentRecord struct {
	Date        string                 `json:"date"`
	Assignments []SubstituteAssignment `json:"assignments"`
	Warnings    []string               `json:"warnings"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

// RunHistory is the append-only log of one run.
type RunHistory struct {
	RunID     string       `json:"runId"`
	Date      string       `json:"date"`
	Warnings  []string     `json:"warnings"`
	Logs      []ProcessLog `json:"logs"`
	CreatedAt time.Time    `json:"createdAt"`
}
