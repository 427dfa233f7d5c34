package service

import (
	"context"
	"errors"

	"github.com/noah-isme/sma-substitute/internal/models"
	appErrors "github.com/noah-isme/sma-substitute/pkg/errors"
	"github.com/noah-isme/sma-substitute/pkg/names"
	"github.com/noah-isme/sma-substitute/pkg/tabular"
)

type sourceLoader interface {
	LoadTimetable(ctx context.Context, columns int) (*tabular.Grid, error)
	LoadRoster(ctx context.Context) (*tabular.Grid, error)
	LoadProfiles(ctx context.Context) ([]models.TeacherProfile, error)
}

// Snapshot is the registry and timetable derived from the raw sources.
type Snapshot struct {
	Registry  *Registry
	Timetable *models.Timetable
	Warnings  []string
}

// BuildRegistry parses the timetable then the roster into a fresh registry,
// so timetable teachers register first, and finally applies profiles.
// A missing or malformed timetable and a malformed roster are fatal; a
// missing roster or unreadable profiles only produce warnings.
func BuildRegistry(ctx context.Context, sources sourceLoader, policy SubstitutionPolicy, match names.MatchConfig) (*Snapshot, error) {
	grid, err := sources.LoadTimetable(ctx, TimetableColumns(policy.ClassSlots))
	if err != nil {
		return nil, err
	}

	var warnings []string
	if grid.Repaired {
		warnings = append(warnings, "timetable file was malformed and has been repaired")
	}

	registry := NewRegistry(match, policy.DefaultGradeLevel)
	timetable, parseWarnings := ParseTimetable(grid.Rows, registry, policy.ClassSlots)
	warnings = append(warnings, parseWarnings...)

	roster, err := sources.LoadRoster(ctx)
	switch {
	case errors.Is(err, appErrors.ErrNotFound):
		warnings = append(warnings, "substitute roster not found, only timetable teachers with a phone are eligible")
	case err != nil:
		return nil, err
	default:
		if roster.Repaired {
			warnings = append(warnings, "roster file was malformed and has been repaired")
		}
		_, rosterWarnings := ParseRoster(roster.Rows, registry)
		warnings = append(warnings, rosterWarnings...)
	}

	profiles, err := sources.LoadProfiles(ctx)
	switch {
	case errors.Is(err, appErrors.ErrNotFound):
	case err != nil:
		warnings = append(warnings, "teacher profiles ignored: "+err.Error())
	default:
		warnings = append(warnings, registry.ApplyProfiles(profiles)...)
	}

	return &Snapshot{Registry: registry, Timetable: timetable, Warnings: warnings}, nil
}
