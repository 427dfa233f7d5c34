package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute/internal/dto"
	"github.com/noah-isme/sma-substitute/internal/models"
	appErrors "github.com/noah-isme/sma-substitute/pkg/errors"
	"github.com/noah-isme/sma-substitute/pkg/export"
)

type recordReader interface {
	LoadRecord(ctx context.Context, date string) (*models.AssignmentRecord, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportService renders persisted assignment sheets.
type ExportService struct {
	records   recordReader
	csv       csvRenderer
	pdf       pdfRenderer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(records recordReader, csv csvRenderer, pdf pdfRenderer, validate *validator.Validate, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{records: records, csv: csv, pdf: pdf, validator: validate, logger: logger}
}

// Export renders the current assignment sheet of req.Date with its warnings.
func (s *ExportService) Export(ctx context.Context, req dto.ExportRequest) (*dto.ExportResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export request")
	}

	record, err := s.records.LoadRecord(ctx, req.Date)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no assignments recorded for "+req.Date)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}

	dataset := AssignmentDataset(record)
	var (
		body        []byte
		contentType string
	)
	switch req.Format {
	case dto.ExportFormatPDF:
		body, err = s.pdf.Render(dataset)
		contentType = "application/pdf"
	default:
		body, err = s.csv.Render(dataset)
		contentType = "text/csv"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Info("assignment sheet exported", zap.String("date", req.Date), zap.String("format", string(req.Format)), zap.Int("rows", len(dataset.Rows)))
	return &dto.ExportResult{
		Filename:    fmt.Sprintf("substitutions-%s.%s", req.Date, req.Format),
		ContentType: contentType,
		Body:        body,
	}, nil
}

// AssignmentDataset lays a record out as a printable table.
func AssignmentDataset(record *models.AssignmentRecord) export.Dataset {
	dataset := export.Dataset{
		Title:   "Substitutions " + record.Date,
		Headers: []string{"Period", "Class", "Absent Teacher", "Substitute", "Phone"},
		Rows:    make([][]string, 0, len(record.Assignments)),
		Notes:   append([]string(nil), record.Warnings...),
	}
	for _, a := range record.Assignments {
		dataset.Rows = append(dataset.Rows, []string{
			strconv.Itoa(a.Period),
			a.ClassName,
			a.OriginalTeacher,
			a.Substitute,
			a.SubstitutePhone,
		})
	}
	return dataset
}
