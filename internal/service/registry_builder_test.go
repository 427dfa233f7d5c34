package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitute/internal/models"
	appErrors "github.com/noah-isme/sma-substitute/pkg/errors"
	"github.com/noah-isme/sma-substitute/pkg/names"
	"github.com/noah-isme/sma-substitute/pkg/tabular"
)

type repairedSources struct{ stubSources }

func (s *repairedSources) LoadTimetable(context.Context, int) (*tabular.Grid, error) {
	return &tabular.Grid{Rows: s.timetable, Repaired: true}, nil
}

func (s *repairedSources) LoadRoster(context.Context) (*tabular.Grid, error) {
	return &tabular.Grid{Rows: s.roster, Repaired: true}, nil
}

func TestBuildRegistryReportsRecoverableProblems(t *testing.T) {
	sources := &repairedSources{stubSources{
		timetable:   bakirTimetable(),
		roster:      substituteRoster(),
		profilesErr: appErrors.Clone(appErrors.ErrMalformedSource, "profiles file is not valid YAML"),
	}}

	snapshot, err := BuildRegistry(context.Background(), sources, testPolicy(), names.DefaultMatchConfig())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"timetable file was malformed and has been repaired",
		"roster file was malformed and has been repaired",
		"teacher profiles ignored: profiles file is not valid YAML",
	}, snapshot.Warnings)
	assert.Equal(t, 3, snapshot.Registry.Len())
}

func TestBuildRegistryWithoutRoster(t *testing.T) {
	sources := &stubSources{
		timetable: bakirTimetable(),
		profiles:  []models.TeacherProfile{{Name: "Bakir Shah", Phone: "03001112223"}},
	}

	snapshot, err := BuildRegistry(context.Background(), sources, testPolicy(), names.DefaultMatchConfig())
	require.NoError(t, err)
	assert.Equal(t, []string{"substitute roster not found, only timetable teachers with a phone are eligible"}, snapshot.Warnings)

	teachers := snapshot.Registry.Teachers()
	require.Len(t, teachers, 1)
	assert.Equal(t, "+923001112223", teachers[0].Phone)
	assert.Len(t, snapshot.Timetable.SlotsOn("Sir Bakir Shah", "Monday"), 3)
}
