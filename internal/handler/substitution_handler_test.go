package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitute/internal/dto"
	"github.com/noah-isme/sma-substitute/internal/models"
	appErrors "github.com/noah-isme/sma-substitute/pkg/errors"
)

type substitutionServiceMock struct {
	runReq    dto.RunRequest
	runResult *dto.RunResult
	runErr    error
	assigned  []models.SubstituteAssignment
	teachers  []*models.Teacher
}

func (m *substitutionServiceMock) Run(ctx context.Context, req dto.RunRequest) (*dto.RunResult, error) {
	m.runReq = req
	return m.runResult, m.runErr
}

func (m *substitutionServiceMock) Assignments(ctx context.Context, date string) ([]models.SubstituteAssignment, error) {
	return m.assigned, nil
}

func (m *substitutionServiceMock) Teachers(ctx context.Context) ([]*models.Teacher, error) {
	return m.teachers, nil
}

type verificationServiceMock struct{ date string }

func (m *verificationServiceMock) Verify(ctx context.Context, date string) (*dto.VerificationResponse, error) {
	m.date = date
	return &dto.VerificationResponse{Date: date, Passed: true}, nil
}

type exportServiceMock struct {
	req dto.ExportRequest
	err error
}

func (m *exportServiceMock) Export(ctx context.Context, req dto.ExportRequest) (*dto.ExportResult, error) {
	m.req = req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.ExportResult{Filename: "substitutions-" + req.Date + ".csv", ContentType: "text/csv", Body: []byte("Period\n")}, nil
}

type runHistoryMock struct{}

func (runHistoryMock) ListRuns(ctx context.Context, date string) ([]models.RunHistory, error) {
	return []models.RunHistory{{RunID: "run-1", Date: date}}, nil
}

func newSubstitutionRouter(svc *substitutionServiceMock, verifier *verificationServiceMock, exporter *exportServiceMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewSubstitutionHandler(svc, verifier, exporter, runHistoryMock{}).Register(router.Group("/api/v1"))
	return router
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, body []byte) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(body, &env))
	return env
}

func TestSubstitutionHandlerRun(t *testing.T) {
	svc := &substitutionServiceMock{runResult: &dto.RunResult{
		RunID: "run-1",
		Date:  "2024-05-06",
		Assignments: []models.SubstituteAssignment{
			{OriginalTeacher: "Sir Bakir Shah", Period: 1, ClassName: "10A", Substitute: "Sir Waqar Ali"},
		},
		Warnings: []string{},
	}}
	router := newSubstitutionRouter(svc, &verificationServiceMock{}, &exportServiceMock{})

	body, _ := json.Marshal(dto.RunRequest{Date: "2024-05-06", Absentees: []dto.AbsenteeRequest{{Name: "Sir Bakir Shah"}}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/substitutions/runs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w.Body.Bytes())
	assert.Equal(t, float64(1), env.Meta["assignments"])
	assert.Equal(t, "Sir Bakir Shah", svc.runReq.Absentees[0].Name)

	var result dto.RunResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "run-1", result.RunID)
}

func TestSubstitutionHandlerRunFatalKeepsResult(t *testing.T) {
	svc := &substitutionServiceMock{
		runResult: &dto.RunResult{Date: "2024-05-06", Assignments: []models.SubstituteAssignment{}, Warnings: []string{"FATAL: timetable source not found"}},
		runErr:    appErrors.Clone(appErrors.ErrTimetableMissing, "timetable source not found"),
	}
	router := newSubstitutionRouter(svc, &verificationServiceMock{}, &exportServiceMock{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/substitutions/runs", bytes.NewReader([]byte(`{"date":"2024-05-06"}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusPreconditionFailed, w.Code)
	env := decodeEnvelope(t, w.Body.Bytes())
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrTimetableMissing.Code, env.Error.Code)

	var result dto.RunResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, []string{"FATAL: timetable source not found"}, result.Warnings)
}

func TestSubstitutionHandlerRunInvalidBody(t *testing.T) {
	router := newSubstitutionRouter(&substitutionServiceMock{}, &verificationServiceMock{}, &exportServiceMock{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/substitutions/runs", bytes.NewReader([]byte(`invalid`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubstitutionHandlerReadEndpoints(t *testing.T) {
	svc := &substitutionServiceMock{
		assigned: []models.SubstituteAssignment{{Period: 1, ClassName: "10A", Substitute: "Sir Waqar Ali"}},
		teachers: []*models.Teacher{{CanonicalName: "Sir Waqar Ali"}},
	}
	verifier := &verificationServiceMock{}
	router := newSubstitutionRouter(svc, verifier, &exportServiceMock{})

	cases := []struct {
		path  string
		total float64
	}{
		{path: "/api/v1/substitutions/2024-05-06", total: 1},
		{path: "/api/v1/substitutions/2024-05-06/runs", total: 1},
		{path: "/api/v1/teachers", total: 1},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
		require.Equal(t, http.StatusOK, w.Code, tc.path)
		assert.Equal(t, tc.total, decodeEnvelope(t, w.Body.Bytes()).Meta["total"], tc.path)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/substitutions/2024-05-06/verification", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-05-06", verifier.date)
}

func TestSubstitutionHandlerExport(t *testing.T) {
	exporter := &exportServiceMock{}
	router := newSubstitutionRouter(&substitutionServiceMock{}, &verificationServiceMock{}, exporter)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/substitutions/2024-05-06/export", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.ExportFormatCSV, exporter.req.Format)
	assert.Equal(t, `attachment; filename="substitutions-2024-05-06.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Period\n", w.Body.String())

	exporter.err = appErrors.Clone(appErrors.ErrNotFound, "no assignments recorded for 2024-05-07")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/substitutions/2024-05-07/export?format=pdf", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.ExportFormatPDF, exporter.req.Format)
}

func TestMetricsHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewMetricsHandler(nil, map[string]ReadinessCheck{
		"store": func(context.Context) error { return nil },
		"lock":  func(context.Context) error { return appErrors.Clone(appErrors.ErrInternal, "redis unreachable") },
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)
	handler.Ready(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "redis unreachable")

	router := gin.New()
	router.GET("/metrics", handler.Prometheus)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
