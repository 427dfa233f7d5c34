package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitute/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	timetable := "Day,Period,10A,9B,8A\n" +
		"Monday,1,Sir Bakir Shah,,\n" +
		"Monday,2,,Sir Bakir Shah,\n" +
		"Monday,3,,,Sir Bakir Shah\n"
	roster := "Name,Phone\nSir Waqar Ali,+923113588606\nSir Fahad Malik,+923156103995\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "timetable.csv"), []byte(timetable), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "substitutes.csv"), []byte(roster), 0o644))

	return &config.Config{
		Env:       config.EnvDevelopment,
		APIPrefix: "/api/v1",
		Sources: config.SourcesConfig{
			DataDir:       dir,
			TimetableFile: "timetable.csv",
			RosterFile:    "substitutes.csv",
		},
		Store: config.StoreConfig{Driver: config.StoreDriverFile, Dir: filepath.Join(dir, "store")},
		Lock:  config.LockConfig{Driver: config.LockDriverMemory},
		Policy: config.PolicyConfig{
			MaxDailyWorkload:       6,
			SubstituteDailyCap:     3,
			RegularDailyCap:        2,
			DefaultGradeLevel:      10,
			FallbackMaxTargetGrade: 8,
			FallbackMinGradeLevel:  9,
			ClassSlots:             []string{"10A", "9B", "8A"},
		},
	}
}

func TestRouterRunsAndServesAssignments(t *testing.T) {
	app, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer app.Close() //nolint:errcheck
	router := NewRouter(app)

	body := []byte(`{"date":"2024-05-06","absentees":[{"name":"Sir Bakir Shah"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/substitutions/runs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var run struct {
		Data struct {
			Assignments []struct {
				Period     int    `json:"period"`
				Substitute string `json:"substitute"`
			} `json:"assignments"`
			Warnings []string `json:"warnings"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	require.Len(t, run.Data.Assignments, 3)
	assert.Equal(t, "Sir Waqar Ali", run.Data.Assignments[0].Substitute)
	assert.Equal(t, "Sir Fahad Malik", run.Data.Assignments[1].Substitute)
	assert.Empty(t, run.Data.Warnings)

	for _, path := range []string{
		"/api/v1/substitutions/2024-05-06",
		"/api/v1/substitutions/2024-05-06/verification",
		"/api/v1/substitutions/2024-05-06/runs",
		"/api/v1/substitutions/2024-05-06/export?format=csv",
		"/api/v1/teachers",
		"/api/v1/metrics/summary",
		"/health",
		"/ready",
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	snapshot := app.Metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.RunsTotal)
	assert.Equal(t, uint64(3), snapshot.AssignmentsTotal)
}

func TestNewRejectsUnknownDrivers(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Driver = "s3"
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Lock.Driver = "zookeeper"
	_, err = New(context.Background(), cfg, nil)
	assert.Error(t, err)
}
