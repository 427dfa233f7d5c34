package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-substitute/internal/dto"
	"github.com/noah-isme/sma-substitute/internal/models"
	appErrors "github.com/noah-isme/sma-substitute/pkg/errors"
	"github.com/noah-isme/sma-substitute/pkg/response"
)

type substitutionService interface {
	Run(ctx context.Context, req dto.RunRequest) (*dto.RunResult, error)
	Assignments(ctx context.Context, date string) ([]models.SubstituteAssignment, error)
	Teachers(ctx context.Context) ([]*models.Teacher, error)
}

type verificationService interface {
	Verify(ctx context.Context, date string) (*dto.VerificationResponse, error)
}

type exportService interface {
	Export(ctx context.Context, req dto.ExportRequest) (*dto.ExportResult, error)
}

type runHistoryReader interface {
	ListRuns(ctx context.Context, date string) ([]models.RunHistory, error)
}

// SubstitutionHandler exposes the assignment engine over HTTP.
type SubstitutionHandler struct {
	substitutions substitutionService
	verifier      verificationService
	exporter      exportService
	history       runHistoryReader
}

// NewSubstitutionHandler builds a new handler.
func NewSubstitutionHandler(substitutions substitutionService, verifier verificationService, exporter exportService, history runHistoryReader) *SubstitutionHandler {
	return &SubstitutionHandler{substitutions: substitutions, verifier: verifier, exporter: exporter, history: history}
}

// Register mounts the substitution routes on group.
func (h *SubstitutionHandler) Register(group *gin.RouterGroup) {
	group.GET("/teachers", h.Teachers)
	subs := group.Group("/substitutions")
	subs.POST("/runs", h.Run)
	subs.GET("/:date", h.Assignments)
	subs.GET("/:date/verification", h.Verify)
	subs.GET("/:date/export", h.Export)
	subs.GET("/:date/runs", h.Runs)
}

// Run godoc
// @Summary Run substitute assignment for a date
// @Tags Substitutions
// @Accept json
// @Produce json
// @Param payload body dto.RunRequest true "Run payload"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /substitutions/runs [post]
func (h *SubstitutionHandler) Run(c *gin.Context) {
	var req dto.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid run payload"))
		return
	}
	result, err := h.substitutions.Run(c.Request.Context(), req)
	if err != nil {
		if result != nil {
			response.ErrorWithData(c, err, result)
			return
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, map[string]interface{}{
		"assignments": len(result.Assignments),
		"warnings":    len(result.Warnings),
	})
}

// Assignments godoc
// @Summary List persisted assignments of a date
// @Tags Substitutions
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /substitutions/{date} [get]
func (h *SubstitutionHandler) Assignments(c *gin.Context) {
	assignments, err := h.substitutions.Assignments(c.Request.Context(), c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, map[string]interface{}{"total": len(assignments)})
}

// Verify godoc
// @Summary Audit the persisted assignments of a date
// @Tags Substitutions
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /substitutions/{date}/verification [get]
func (h *SubstitutionHandler) Verify(c *gin.Context) {
	result, err := h.verifier.Verify(c.Request.Context(), c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Export godoc
// @Summary Download the assignment sheet of a date
// @Tags Substitutions
// @Produce text/csv
// @Produce application/pdf
// @Param date path string true "Date (YYYY-MM-DD)"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /substitutions/{date}/export [get]
func (h *SubstitutionHandler) Export(c *gin.Context) {
	format := dto.ExportFormat(c.DefaultQuery("format", string(dto.ExportFormatCSV)))
	result, err := h.exporter.Export(c.Request.Context(), dto.ExportRequest{Date: c.Param("date"), Format: format})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, result.Filename, result.ContentType, result.Body)
}

// Runs godoc
// @Summary List the run history of a date
// @Tags Substitutions
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /substitutions/{date}/runs [get]
func (h *SubstitutionHandler) Runs(c *gin.Context) {
	runs, err := h.history.ListRuns(c.Request.Context(), c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, map[string]interface{}{"total": len(runs)})
}

// Teachers godoc
// @Summary List canonical teachers
// @Tags Teachers
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /teachers [get]
func (h *SubstitutionHandler) Teachers(c *gin.Context) {
	teachers, err := h.substitutions.Teachers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers, map[string]interface{}{"total": len(teachers)})
}
