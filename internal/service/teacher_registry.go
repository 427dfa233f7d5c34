package service

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-substitute/internal/models"
	appErrors "github.com/noah-isme/sma-substitute/pkg/errors"
	"github.com/noah-isme/sma-substitute/pkg/names"
)

// NameResolver turns free-text spellings into canonical teachers.
type NameResolver interface {
	RegisterOrMatch(raw, phone string) (*models.Teacher, error)
	Resolve(raw string) (*models.Teacher, bool)
}

type registryEntry struct {
	teacher *models.Teacher
	name    names.Name
}

// Registry is the set of canonical teachers known to one run. It is owned by
// its caller and is not safe for concurrent mutation.
type Registry struct {
	match        names.MatchConfig
	defaultGrade int
	entries      []*registryEntry
}

// NewRegistry creates an empty registry.
func NewRegistry(match names.MatchConfig, defaultGrade int) *Registry {
	if defaultGrade <= 0 {
		defaultGrade = models.DefaultGradeLevel
	}
	return &Registry{match: match, defaultGrade: defaultGrade}
}

// RegisterOrMatch returns the teacher raw refers to, creating one when no
// existing teacher is similar enough. Matching adds raw as a variation and
// fills a missing phone.
func (r *Registry) RegisterOrMatch(raw, phone string) (*models.Teacher, error) {
	parsed := names.Parse(raw)
	if parsed.Key == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("teacher name %q has no usable letters", raw))
	}
	display := strings.TrimSpace(raw)

	entry := r.exact(parsed)
	if entry == nil {
		if best, score := r.best(parsed); best != nil && r.match.Matches(score) {
			entry = best
		}
	}
	if entry != nil {
		entry.teacher.AddVariation(display)
		if entry.name.Generation == "" {
			entry.name.Generation = parsed.Generation
		}
		if entry.teacher.Phone == "" && phone != "" {
			entry.teacher.Phone = phone
		}
		return entry.teacher, nil
	}

	teacher := &models.Teacher{
		CanonicalID:   canonicalID(parsed),
		CanonicalName: display,
		Variations:    []string{display},
		Phone:         phone,
		GradeLevel:    r.defaultGrade,
	}
	r.entries = append(r.entries, &registryEntry{teacher: teacher, name: parsed})
	return teacher, nil
}

// Resolve looks raw up without modifying the registry.
func (r *Registry) Resolve(raw string) (*models.Teacher, bool) {
	parsed := names.Parse(raw)
	if parsed.Key == "" {
		return nil, false
	}
	if entry := r.exact(parsed); entry != nil {
		return entry.teacher, true
	}
	if best, score := r.best(parsed); best != nil && r.match.Matches(score) {
		return best.teacher, true
	}
	return nil, false
}

// Teachers returns every teacher in registration order.
func (r *Registry) Teachers() []*models.Teacher {
	out := make([]*models.Teacher, len(r.entries))
	for i, entry := range r.entries {
		out[i] = entry.teacher
	}
	return out
}

// Len is the number of canonical teachers.
func (r *Registry) Len() int {
	return len(r.entries)
}

// ApplyProfiles overrides grade level, phone and role flags for profiled
// teachers. Profiles naming unknown teachers are reported and ignored.
func (r *Registry) ApplyProfiles(profiles []models.TeacherProfile) []string {
	var warnings []string
	for _, profile := range profiles {
		teacher, ok := r.Resolve(profile.Name)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("profile for unknown teacher %q ignored", profile.Name))
			continue
		}
		if profile.GradeLevel > 0 {
			teacher.GradeLevel = profile.GradeLevel
		}
		if profile.Phone != "" {
			teacher.Phone = NormalizePhone(profile.Phone)
		}
		if profile.Regular != nil {
			teacher.IsRegular = *profile.Regular
		}
		if profile.Substitute != nil {
			teacher.IsSubstitute = *profile.Substitute
		}
	}
	return warnings
}

func (r *Registry) exact(parsed names.Name) *registryEntry {
	for _, entry := range r.entries {
		if entry.name.Key == parsed.Key && !names.GenerationsConflict(entry.name, parsed) {
			return entry
		}
	}
	return nil
}

// best returns the highest scoring entry; earlier registrations win ties.
func (r *Registry) best(parsed names.Name) (*registryEntry, float64) {
	var (
		best      *registryEntry
		bestScore float64
	)
	for _, entry := range r.entries {
		score := r.match.Score(parsed, entry.name)
		if best == nil || score > bestScore {
			best, bestScore = entry, score
		}
	}
	return best, bestScore
}

func canonicalID(parsed names.Name) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("teacher:"+parsed.Key+"|"+parsed.Generation)).String()
}
