package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute/internal/dto"
	"github.com/noah-isme/sma-substitute/internal/models"
	appErrors "github.com/noah-isme/sma-substitute/pkg/errors"
	"github.com/noah-isme/sma-substitute/pkg/names"
)

// Check names reported by the verifier.
const (
	CheckWorkloadLimits       = "workload_limits"
	CheckAvailability         = "availability"
	CheckDistributionFairness = "distribution_fairness"
	CheckDoubleBooking        = "double_booking"
)

type assignmentReader interface {
	LoadAssignments(ctx context.Context, date string) ([]models.SubstituteAssignment, error)
}

// AuditInput is everything a verification pass looks at.
type AuditInput struct {
	Day         string
	Assignments []models.SubstituteAssignment
	Timetable   *models.Timetable
	Teachers    []*models.Teacher
}

// VerificationService audits an assignment set. It never modifies it.
type VerificationService struct {
	sources sourceLoader
	store   assignmentReader
	policy  SubstitutionPolicy
	match   names.MatchConfig
	logger  *zap.Logger
}

// NewVerificationService builds a verifier sharing the engine's policy.
func NewVerificationService(sources sourceLoader, store assignmentReader, log *zap.Logger, cfg SubstitutionServiceConfig) *VerificationService {
	if log == nil {
		log = zap.NewNop()
	}
	if len(cfg.Policy.ClassSlots) == 0 {
		cfg.Policy = DefaultSubstitutionPolicy()
	}
	if cfg.Matching.Threshold == 0 {
		cfg.Matching = names.DefaultMatchConfig()
	}
	return &VerificationService{sources: sources, store: store, policy: cfg.Policy, match: cfg.Matching, logger: log}
}

// Verify audits the persisted assignments of date against the current sources.
func (v *VerificationService) Verify(ctx context.Context, date string) (*dto.VerificationResponse, error) {
	parsed, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must use YYYY-MM-DD")
	}

	snapshot, err := BuildRegistry(ctx, v.sources, v.policy, v.match)
	if err != nil {
		return nil, err
	}

	assignments, err := v.store.LoadAssignments(ctx, date)
	if err != nil {
		if !errors.Is(err, appErrors.ErrCorruptState) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
		}
		v.logger.Warn("verifying corrupt assignment state as empty", zap.String("date", date))
	}

	reports := v.Audit(AuditInput{
		Day:         DayOf(parsed),
		Assignments: assignments,
		Timetable:   snapshot.Timetable,
		Teachers:    snapshot.Registry.Teachers(),
	})

	resp := &dto.VerificationResponse{Date: date, Passed: true, Reports: reports}
	for _, report := range reports {
		if report.Status == models.CheckFail {
			resp.Passed = false
		}
	}
	return resp, nil
}

// Audit runs every check in a fixed order.
func (v *VerificationService) Audit(in AuditInput) []models.VerificationReport {
	return []models.VerificationReport{
		v.workloadLimits(in),
		v.availability(in),
		v.distributionFairness(in),
		v.doubleBooking(in),
	}
}

type substituteLoad struct {
	name    string
	key     string
	count   int
	periods map[int]int
}

// loads tallies assignments per substitute in first-seen order.
func loads(assignments []models.SubstituteAssignment) []*substituteLoad {
	var ordered []*substituteLoad
	index := map[string]*substituteLoad{}
	for _, a := range assignments {
		key := workloadKey(a.SubstitutePhone, a.Substitute)
		entry, ok := index[key]
		if !ok {
			entry = &substituteLoad{name: a.Substitute, key: key, periods: map[int]int{}}
			index[key] = entry
			ordered = append(ordered, entry)
		}
		entry.count++
		entry.periods[a.Period]++
	}
	return ordered
}

func (v *VerificationService) workloadLimits(in AuditInput) models.VerificationReport {
	var violations []string
	for _, load := range loads(in.Assignments) {
		if load.count > v.policy.MaxDailyWorkload {
			violations = append(violations, fmt.Sprintf("%s has %d periods (limit %d)", load.name, load.count, v.policy.MaxDailyWorkload))
		}
	}
	return report(CheckWorkloadLimits, violations, fmt.Sprintf("all substitutes within %d periods", v.policy.MaxDailyWorkload))
}

func (v *VerificationService) availability(in AuditInput) models.VerificationReport {
	var violations []string
	if in.Timetable != nil {
		for _, a := range in.Assignments {
			if in.Timetable.Teaches(a.Substitute, in.Day, a.Period) {
				violations = append(violations, fmt.Sprintf("%s teaches their own class in period %d but covers %s", a.Substitute, a.Period, a.ClassName))
			}
		}
	}
	return report(CheckAvailability, violations, "no substitute covers a period they already teach")
}

func (v *VerificationService) distributionFairness(in AuditInput) models.VerificationReport {
	byKey := map[string]*models.Teacher{}
	for _, teacher := range in.Teachers {
		byKey[substituteKey(teacher)] = teacher
		byKey[workloadKey("", teacher.CanonicalName)] = teacher
	}

	var violations []string
	for _, load := range loads(in.Assignments) {
		limit, role := v.policy.SubstituteDailyCap, "substitute"
		teacher, ok := byKey[load.key]
		if !ok {
			teacher = byKey[workloadKey("", load.name)]
		}
		if teacher != nil && !teacher.IsSubstitute {
			limit, role = v.policy.RegularDailyCap, "regular"
		}
		if load.count > limit {
			violations = append(violations, fmt.Sprintf("%s has %d periods (%s cap %d)", load.name, load.count, role, limit))
		}
	}
	return report(CheckDistributionFairness, violations, "load within per-role caps")
}

func (v *VerificationService) doubleBooking(in AuditInput) models.VerificationReport {
	var violations []string
	for _, load := range loads(in.Assignments) {
		periods := make([]int, 0, len(load.periods))
		for period := range load.periods {
			periods = append(periods, period)
		}
		sort.Ints(periods)
		for _, period := range periods {
			if count := load.periods[period]; count > 1 {
				violations = append(violations, fmt.Sprintf("%s is booked %d times in period %d", load.name, count, period))
			}
		}
	}
	return report(CheckDoubleBooking, violations, "no substitute is booked twice in a period")
}

func report(check string, violations []string, okDetails string) models.VerificationReport {
	if len(violations) == 0 {
		return models.VerificationReport{Check: check, Status: models.CheckPass, Details: okDetails}
	}
	return models.VerificationReport{Check: check, Status: models.CheckFail, Details: strings.Join(violations, "; ")}
}
