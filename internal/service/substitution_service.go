package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute/internal/dto"
	"github.com/noah-isme/sma-substitute/internal/models"
	"github.com/noah-isme/sma-substitute/pkg/config"
	appErrors "github.com/noah-isme/sma-substitute/pkg/errors"
	"github.com/noah-isme/sma-substitute/pkg/logger"
	"github.com/noah-isme/sma-substitute/pkg/names"
)

const dateLayout = "2006-01-02"

type assignmentStore interface {
	LoadAssignments(ctx context.Context, date string) ([]models.SubstituteAssignment, error)
	SaveAssignments(ctx context.Context, record models.AssignmentRecord, history models.RunHistory) error
	LoadAbsences(ctx context.Context, date string) ([]models.Absence, error)
	SaveAbsences(ctx context.Context, date string, absences []models.Absence) error
}

type dateLocker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type runObserver interface {
	ObserveRun(outcome string, duration time.Duration, assigned, unfilled, warnings int)
}

// SubstitutionPolicy is the single source of workload, grade and class-slot
// rules for both assignment and verification.
type SubstitutionPolicy struct {
	// MaxDailyWorkload is the hard cap applied when choosing candidates and
	// audited by the workload_limits check.
	MaxDailyWorkload int
	// SubstituteDailyCap and RegularDailyCap are the softer per-role caps
	// audited by distribution_fairness only.
	SubstituteDailyCap     int
	RegularDailyCap        int
	DefaultGradeLevel      int
	FallbackMaxTargetGrade int
	FallbackMinGradeLevel  int
	// GradeBandWidth limits how far above the class grade a preferred
	// substitute may teach. Zero disables the limit.
	GradeBandWidth int
	ClassSlots     []string
}

// DefaultSubstitutionPolicy mirrors the configuration defaults.
func DefaultSubstitutionPolicy() SubstitutionPolicy {
	return SubstitutionPolicy{
		MaxDailyWorkload:       6,
		SubstituteDailyCap:     3,
		RegularDailyCap:        2,
		DefaultGradeLevel:      models.DefaultGradeLevel,
		FallbackMaxTargetGrade: 8,
		FallbackMinGradeLevel:  9,
		ClassSlots:             append([]string(nil), config.DefaultClassSlots...),
	}
}

// PolicyFromConfig converts loaded configuration into a policy.
func PolicyFromConfig(cfg config.PolicyConfig) SubstitutionPolicy {
	policy := SubstitutionPolicy{
		MaxDailyWorkload:       cfg.MaxDailyWorkload,
		SubstituteDailyCap:     cfg.SubstituteDailyCap,
		RegularDailyCap:        cfg.RegularDailyCap,
		DefaultGradeLevel:      cfg.DefaultGradeLevel,
		FallbackMaxTargetGrade: cfg.FallbackMaxTargetGrade,
		FallbackMinGradeLevel:  cfg.FallbackMinGradeLevel,
		GradeBandWidth:         cfg.GradeBandWidth,
		ClassSlots:             append([]string(nil), cfg.ClassSlots...),
	}
	if len(policy.ClassSlots) == 0 {
		policy.ClassSlots = append([]string(nil), config.DefaultClassSlots...)
	}
	return policy
}

// SubstitutionService runs the substitute assignment engine for one date.
type SubstitutionService struct {
	sources   sourceLoader
	store     assignmentStore
	locker    dateLocker
	verifier  *VerificationService
	metrics   runObserver
	policy    SubstitutionPolicy
	match     names.MatchConfig
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// SubstitutionServiceConfig groups the tunables of the engine.
type SubstitutionServiceConfig struct {
	Policy   SubstitutionPolicy
	Matching names.MatchConfig
}

// NewSubstitutionService wires engine dependencies. locker and metrics may be nil.
func NewSubstitutionService(
	sources sourceLoader,
	store assignmentStore,
	locker dateLocker,
	metrics runObserver,
	validate *validator.Validate,
	log *zap.Logger,
	cfg SubstitutionServiceConfig,
) *SubstitutionService {
	if validate == nil {
		validate = validator.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if len(cfg.Policy.ClassSlots) == 0 {
		cfg.Policy = DefaultSubstitutionPolicy()
	}
	if cfg.Matching.Threshold == 0 {
		cfg.Matching = names.DefaultMatchConfig()
	}
	if locker == nil {
		locker = noopLocker{}
	}
	return &SubstitutionService{
		sources:   sources,
		store:     store,
		locker:    locker,
		verifier:  NewVerificationService(sources, store, log, cfg),
		metrics:   metrics,
		policy:    cfg.Policy,
		match:     cfg.Matching,
		validator: validate,
		logger:    log,
		now:       time.Now,
	}
}

// Teachers returns the canonical registry built from the current sources.
func (s *SubstitutionService) Teachers(ctx context.Context) ([]*models.Teacher, error) {
	snapshot, err := BuildRegistry(ctx, s.sources, s.policy, s.match)
	if err != nil {
		return nil, err
	}
	return snapshot.Registry.Teachers(), nil
}

// Assignments returns the persisted assignments for date.
func (s *SubstitutionService) Assignments(ctx context.Context, date string) ([]models.SubstituteAssignment, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must use YYYY-MM-DD")
	}
	assignments, err := s.store.LoadAssignments(ctx, date)
	if err != nil && !errors.Is(err, appErrors.ErrCorruptState) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	if assignments == nil {
		assignments = []models.SubstituteAssignment{}
	}
	return assignments, nil
}

// Run assigns substitutes to every class left uncovered by the absentees of
// req.Date. Runs for the same date are serialized. Apart from the fatal
// source errors the run always completes, reporting problems as warnings.
func (s *SubstitutionService) Run(ctx context.Context, req dto.RunRequest) (*dto.RunResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid substitution run payload")
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must use YYYY-MM-DD")
	}

	unlock, err := s.locker.Lock(ctx, req.Date)
	if err != nil {
		if errors.Is(err, appErrors.ErrLockTimeout) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire run lock")
	}
	defer unlock()

	runID := uuid.NewString()
	trace := newRunTrace(logger.ForRun(s.logger, runID, req.Date), s.now)
	started := s.now()

	result, prior, unfilled, err := s.execute(ctx, trace, req, date)
	result.RunID = runID
	result.Warnings = trace.warnings
	result.Logs = trace.logs

	if s.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "fatal"
		}
		s.metrics.ObserveRun(outcome, s.now().Sub(started), len(result.Assignments), unfilled, len(result.Warnings))
	}
	if err != nil {
		return result, err
	}

	s.persist(ctx, trace, runID, req.Date, prior, result)
	result.Warnings = trace.warnings
	result.Logs = trace.logs
	return result, nil
}

// execute performs the run steps. It returns the result so far, the prior
// assignments it built on, the number of affected periods left uncovered and
// a fatal error if any.
func (s *SubstitutionService) execute(ctx context.Context, trace *runTrace, req dto.RunRequest, date time.Time) (*dto.RunResult, []models.SubstituteAssignment, int, error) {
	day := DayOf(date)
	result := &dto.RunResult{Date: req.Date, Day: day, Assignments: []models.SubstituteAssignment{}}

	// Step 1: sources, prior state and absentees.
	stepStart := s.now()
	snapshot, err := BuildRegistry(ctx, s.sources, s.policy, s.match)
	if err != nil {
		return result, nil, 0, trace.fatal("load_sources", err)
	}
	for _, warning := range snapshot.Warnings {
		trace.warn("load_sources", warning)
	}
	trace.info("load_sources", fmt.Sprintf("%d teachers registered", snapshot.Registry.Len()), stepStart)

	absences, err := s.absences(ctx, trace, req)
	if err != nil {
		return result, nil, 0, trace.fatal("load_absentees", err)
	}

	stepStart = s.now()
	prior, err := s.store.LoadAssignments(ctx, req.Date)
	if err != nil {
		if errors.Is(err, appErrors.ErrCorruptState) {
			trace.warn("load_assignments", "persisted assignments were unreadable and have been reset")
		} else {
			trace.warn("load_assignments", "previous assignments could not be loaded: "+err.Error())
		}
		prior = nil
	}
	trace.info("load_assignments", fmt.Sprintf("%d prior assignments", len(prior)), stepStart)

	// Step 3.
	state := newWorkloadState()
	for _, assignment := range prior {
		state.record(workloadKey(assignment.SubstitutePhone, assignment.Substitute), assignment.Period)
	}

	engine := &assignmentRun{
		policy:    s.policy,
		registry:  snapshot.Registry,
		timetable: snapshot.Timetable,
		day:       day,
		state:     state,
		trace:     trace,
	}

	// Steps 4 and 5.
	absent := engine.resolveAbsentees(absences, prior)

	// Step 6.
	pairs := engine.affectedPairs(absent, prior)

	// Steps 7 and 8.
	pool := engine.candidatePool(absent, prior)
	stepStart = s.now()
	result.Assignments = engine.assign(pairs, pool)
	trace.info("assign", fmt.Sprintf("%d of %d affected periods covered", len(result.Assignments), len(pairs)), stepStart)

	// Step 9.
	all := append(append([]models.SubstituteAssignment(nil), prior...), result.Assignments...)
	reports := s.verifier.Audit(AuditInput{
		Day:         day,
		Assignments: all,
		Timetable:   snapshot.Timetable,
		Teachers:    snapshot.Registry.Teachers(),
	})
	for _, report := range reports {
		if report.Status == models.CheckFail {
			trace.warn("verify", fmt.Sprintf("verification %s failed: %s", report.Check, report.Details))
		}
	}

	// Step 10.
	unfilled := len(pairs) - len(result.Assignments)
	if unfilled > 0 {
		trace.warn("summary", fmt.Sprintf("%d affected periods remain without a substitute", unfilled))
	}

	return result, prior, unfilled, nil
}

func (s *SubstitutionService) absences(ctx context.Context, trace *runTrace, req dto.RunRequest) ([]models.Absence, error) {
	if len(req.Absentees) == 0 {
		absences, err := s.store.LoadAbsences(ctx, req.Date)
		if err != nil {
			return nil, appErrors.WrapAs(appErrors.ErrAbsenteesUnavailable, err, "")
		}
		return absences, nil
	}

	absences := make([]models.Absence, 0, len(req.Absentees))
	for _, item := range req.Absentees {
		absence := models.Absence{Name: item.Name, PhoneNumber: NormalizePhone(item.PhoneNumber)}
		if item.Timestamp != nil {
			absence.Timestamp = item.Timestamp.UTC()
		} else {
			absence.Timestamp = s.now().UTC()
		}
		absences = append(absences, absence)
	}
	if err := s.store.SaveAbsences(ctx, req.Date, absences); err != nil {
		trace.warn("save_absentees", "absentee snapshot could not be saved: "+err.Error())
	}
	return absences, nil
}

// Step 11.
func (s *SubstitutionService) persist(ctx context.Context, trace *runTrace, runID, date string, prior []models.SubstituteAssignment, result *dto.RunResult) {
	stepStart := s.now()
	record := models.AssignmentRecord{
		Date:        date,
		Assignments: append(append([]models.SubstituteAssignment(nil), prior...), result.Assignments...),
		Warnings:    append([]string(nil), trace.warnings...),
		UpdatedAt:   s.now().UTC(),
	}
	trace.info("persist", fmt.Sprintf("%d assignments stored", len(record.Assignments)), stepStart)

	history := models.RunHistory{
		RunID:     runID,
		Date:      date,
		Warnings:  append([]string(nil), trace.warnings...),
		Logs:      append([]models.ProcessLog(nil), trace.logs...),
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.SaveAssignments(ctx, record, history); err != nil {
		trace.logger.Error("failed to persist run", zap.Error(err))
		trace.warn("persist", "assignments could not be saved: "+err.Error())
	}
}

// --- engine ---

type assignmentRun struct {
	policy    SubstitutionPolicy
	registry  *Registry
	timetable *models.Timetable
	day       string
	state     *workloadState
	trace     *runTrace
}

type affectedPair struct {
	teacher   *models.Teacher
	period    int
	className string
}

func (r *assignmentRun) resolveAbsentees(absences []models.Absence, prior []models.SubstituteAssignment) []*models.Teacher {
	resolved := make([]*models.Teacher, len(absences))
	for i, absence := range absences {
		if teacher, ok := r.registry.Resolve(absence.Name); ok {
			resolved[i] = teacher
		}
	}

	reported := map[string]struct{}{}
	for _, assignment := range prior {
		if _, done := reported[assignment.Substitute]; done {
			continue
		}
		for i, absence := range absences {
			if sameTeacher(r.registry, assignment.Substitute, absence.Name, resolved[i]) {
				reported[assignment.Substitute] = struct{}{}
				r.trace.warn("conflict", fmt.Sprintf("%s is already substituting today (period %d, %s) but is now reported absent", assignment.Substitute, assignment.Period, assignment.ClassName))
				break
			}
		}
	}

	var absent []*models.Teacher
	seen := map[string]struct{}{}
	for i, absence := range absences {
		teacher := resolved[i]
		if teacher == nil {
			r.trace.warn("resolve", fmt.Sprintf("absent teacher %q could not be matched to a known teacher", absence.Name))
			continue
		}
		if _, dup := seen[teacher.CanonicalID]; dup {
			r.trace.warn("resolve", fmt.Sprintf("absent teacher %q duplicates %s and was skipped", absence.Name, teacher.CanonicalName))
			continue
		}
		seen[teacher.CanonicalID] = struct{}{}
		absent = append(absent, teacher)
	}
	return absent
}

func sameTeacher(registry *Registry, substitute, absentName string, absent *models.Teacher) bool {
	if absent != nil {
		if teacher, ok := registry.Resolve(substitute); ok && teacher.CanonicalID == absent.CanonicalID {
			return true
		}
	}
	key := names.Normalize(substitute)
	return key != "" && key == names.Normalize(absentName)
}

func (r *assignmentRun) affectedPairs(absent []*models.Teacher, prior []models.SubstituteAssignment) []affectedPair {
	covered := map[string]struct{}{}
	for _, assignment := range prior {
		covered[coverKey(assignment.OriginalTeacher, assignment.Period, assignment.ClassName)] = struct{}{}
	}

	var pairs []affectedPair
	for _, teacher := range absent {
		slots := r.timetable.SlotsOn(teacher.CanonicalName, r.day)
		if len(slots) == 0 {
			r.trace.warn("schedule", fmt.Sprintf("%s has no classes on %s", teacher.CanonicalName, r.day))
			continue
		}
		for _, slot := range slots {
			if _, ok := covered[coverKey(teacher.CanonicalName, slot.Period, slot.ClassName)]; ok {
				r.trace.note("schedule", fmt.Sprintf("%s period %d (%s) already covered", teacher.CanonicalName, slot.Period, slot.ClassName))
				continue
			}
			pairs = append(pairs, affectedPair{teacher: teacher, period: slot.Period, className: slot.ClassName})
		}
	}
	return pairs
}

// candidatePool keeps registry order. Anyone already substituting today is
// excluded outright, even with spare capacity.
func (r *assignmentRun) candidatePool(absent []*models.Teacher, prior []models.SubstituteAssignment) []*models.Teacher {
	excluded := map[string]struct{}{}
	for _, teacher := range absent {
		excluded[teacher.CanonicalID] = struct{}{}
	}
	usedPhones := map[string]struct{}{}
	for _, assignment := range prior {
		if assignment.SubstitutePhone != "" {
			usedPhones[assignment.SubstitutePhone] = struct{}{}
		}
		if teacher, ok := r.registry.Resolve(assignment.Substitute); ok {
			excluded[teacher.CanonicalID] = struct{}{}
		}
	}

	var pool []*models.Teacher
	for _, teacher := range r.registry.Teachers() {
		if !teacher.CanSubstitute() {
			continue
		}
		if _, ok := excluded[teacher.CanonicalID]; ok {
			continue
		}
		if _, ok := usedPhones[teacher.Phone]; ok {
			continue
		}
		pool = append(pool, teacher)
	}
	return pool
}

func (r *assignmentRun) assign(pairs []affectedPair, pool []*models.Teacher) []models.SubstituteAssignment {
	assignments := make([]models.SubstituteAssignment, 0, len(pairs))
	for _, pair := range pairs {
		target := TargetGrade(pair.className)

		var preferred, fallback []*models.Teacher
		for _, candidate := range pool {
			if !r.available(candidate, pair.period) {
				continue
			}
			switch {
			case r.gradeCompatible(candidate, target):
				preferred = append(preferred, candidate)
			case r.fallbackCompatible(candidate, target):
				fallback = append(fallback, candidate)
			}
		}

		candidates, usedFallback := preferred, false
		if len(candidates) == 0 {
			candidates, usedFallback = fallback, true
		}
		if len(candidates) == 0 {
			r.trace.warn("assign", fmt.Sprintf("no substitute found for %s period %d (%s)", pair.teacher.CanonicalName, pair.period, pair.className))
			continue
		}

		chosen := candidates[0]
		for _, candidate := range candidates[1:] {
			if r.state.load(substituteKey(candidate)) < r.state.load(substituteKey(chosen)) {
				chosen = candidate
			}
		}
		if usedFallback {
			r.trace.warn("assign", fmt.Sprintf("grade fallback: %s (grade %d) assigned to %s period %d", chosen.CanonicalName, chosen.GradeLevel, pair.className, pair.period))
		}

		r.state.record(substituteKey(chosen), pair.period)
		assignments = append(assignments, models.SubstituteAssignment{
			OriginalTeacher: pair.teacher.CanonicalName,
			Period:          pair.period,
			ClassName:       pair.className,
			Substitute:      chosen.CanonicalName,
			SubstitutePhone: chosen.Phone,
		})
		r.trace.note("assign", fmt.Sprintf("%s covers %s period %d (%s)", chosen.CanonicalName, pair.teacher.CanonicalName, pair.period, pair.className))
	}
	return assignments
}

func (r *assignmentRun) available(candidate *models.Teacher, period int) bool {
	if r.timetable.Teaches(candidate.CanonicalName, r.day, period) {
		return false
	}
	key := substituteKey(candidate)
	if r.state.holds(key, period) {
		return false
	}
	return r.state.load(key) < r.policy.MaxDailyWorkload
}

func (r *assignmentRun) gradeCompatible(candidate *models.Teacher, target int) bool {
	if candidate.GradeLevel < target {
		return false
	}
	return r.policy.GradeBandWidth <= 0 || candidate.GradeLevel-target <= r.policy.GradeBandWidth
}

func (r *assignmentRun) fallbackCompatible(candidate *models.Teacher, target int) bool {
	return target <= r.policy.FallbackMaxTargetGrade && candidate.GradeLevel >= r.policy.FallbackMinGradeLevel
}

// TargetGrade reads the grade number out of a class name such as "8A".
// Names without digits yield 0, which every teacher satisfies.
func TargetGrade(className string) int {
	var digits strings.Builder
	for _, r := range className {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		} else if digits.Len() > 0 {
			break
		}
	}
	grade, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return grade
}

func coverKey(teacher string, period int, className string) string {
	return fmt.Sprintf("%s|%d|%s", names.Normalize(teacher), period, className)
}

func substituteKey(t *models.Teacher) string {
	return workloadKey(t.Phone, t.CanonicalName)
}

func workloadKey(phone, name string) string {
	if phone != "" {
		return phone
	}
	return "name:" + names.Normalize(name)
}

// --- workload state ---

type workloadState struct {
	workload map[string]int
	periods  map[string]map[int]struct{}
}

func newWorkloadState() *workloadState {
	return &workloadState{
		workload: make(map[string]int),
		periods:  make(map[string]map[int]struct{}),
	}
}

func (w *workloadState) record(key string, period int) {
	w.workload[key]++
	if w.periods[key] == nil {
		w.periods[key] = make(map[int]struct{})
	}
	w.periods[key][period] = struct{}{}
}

func (w *workloadState) load(key string) int {
	return w.workload[key]
}

func (w *workloadState) holds(key string, period int) bool {
	_, ok := w.periods[key][period]
	return ok
}

// --- run trace ---

type runTrace struct {
	logger   *zap.Logger
	now      func() time.Time
	warnings []string
	logs     []models.ProcessLog
}

func newRunTrace(log *zap.Logger, now func() time.Time) *runTrace {
	return &runTrace{logger: log, now: now, warnings: []string{}, logs: []models.ProcessLog{}}
}

func (t *runTrace) info(action, details string, started time.Time) {
	t.append(action, details, models.LogStatusInfo, t.now().Sub(started))
}

func (t *runTrace) note(action, details string) {
	t.append(action, details, models.LogStatusInfo, 0)
}

func (t *runTrace) warn(action, warning string) {
	t.warnings = append(t.warnings, warning)
	t.append(action, warning, models.LogStatusWarning, 0)
}

// fatal records err as the single fatal-class warning of the run.
func (t *runTrace) fatal(action string, err error) error {
	t.warnings = []string{"FATAL: " + err.Error()}
	t.append(action, err.Error(), models.LogStatusError, 0)
	return err
}

func (t *runTrace) append(action, details string, status models.LogStatus, elapsed time.Duration) {
	t.logs = append(t.logs, models.ProcessLog{
		Timestamp:  t.now().UTC(),
		Action:     action,
		Details:    details,
		Status:     status,
		DurationMs: elapsed.Milliseconds(),
	})
	switch status {
	case models.LogStatusError:
		t.logger.Error(details, zap.String("action", action))
	case models.LogStatusWarning:
		t.logger.Warn(details, zap.String("action", action))
	default:
		t.logger.Debug(details, zap.String("action", action))
	}
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}
