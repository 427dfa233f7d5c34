package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitute/internal/models"
	appErrors "github.com/noah-isme/sma-substitute/pkg/errors"
	"github.com/noah-isme/sma-substitute/pkg/names"
)

func boolPtr(v bool) *bool { return &v }

func TestRegistryMergesSpellingsIntoOneTeacher(t *testing.T) {
	registry := NewRegistry(names.DefaultMatchConfig(), 0)

	first, err := registry.RegisterOrMatch("Sir John Smith", "")
	require.NoError(t, err)
	second, err := registry.RegisterOrMatch("john   smith", "+923001234567")
	require.NoError(t, err)
	third, err := registry.RegisterOrMatch("JOHN SMITH", "+923009999999")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Same(t, first, third)
	assert.Equal(t, 1, registry.Len())
	assert.Equal(t, "Sir John Smith", first.CanonicalName)
	assert.Equal(t, []string{"Sir John Smith", "john   smith", "JOHN SMITH"}, first.Variations)
	assert.Equal(t, "+923001234567", first.Phone)
	assert.Equal(t, models.DefaultGradeLevel, first.GradeLevel)
}

func TestRegistryCanonicalIDIsStable(t *testing.T) {
	a := NewRegistry(names.DefaultMatchConfig(), 0)
	b := NewRegistry(names.DefaultMatchConfig(), 0)

	ta, err := a.RegisterOrMatch("Sir John Smith", "")
	require.NoError(t, err)
	tb, err := b.RegisterOrMatch("Smith, John", "")
	require.NoError(t, err)

	assert.Equal(t, ta.CanonicalID, tb.CanonicalID)
	assert.NotEmpty(t, ta.CanonicalID)
}

func TestRegistryKeepsGenerationsApart(t *testing.T) {
	registry := NewRegistry(names.DefaultMatchConfig(), 0)

	junior, err := registry.RegisterOrMatch("Ali Raza Junior", "")
	require.NoError(t, err)
	senior, err := registry.RegisterOrMatch("Ali Raza Senior", "")
	require.NoError(t, err)
	plain, err := registry.RegisterOrMatch("Ali Raza Jr.", "")
	require.NoError(t, err)

	assert.NotSame(t, junior, senior)
	assert.NotEqual(t, junior.CanonicalID, senior.CanonicalID)
	assert.Same(t, junior, plain)
	assert.Equal(t, 2, registry.Len())
}

func TestRegistryRejectsEmptyNames(t *testing.T) {
	registry := NewRegistry(names.DefaultMatchConfig(), 0)

	_, err := registry.RegisterOrMatch("Sir", "")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, 0, registry.Len())
}

func TestRegistryResolveDoesNotRegister(t *testing.T) {
	registry := NewRegistry(names.DefaultMatchConfig(), 0)
	_, err := registry.RegisterOrMatch("Sir Waqar Ali", "")
	require.NoError(t, err)

	teacher, ok := registry.Resolve("waqar ali")
	require.True(t, ok)
	assert.Equal(t, "Sir Waqar Ali", teacher.CanonicalName)
	assert.Equal(t, []string{"Sir Waqar Ali"}, teacher.Variations)

	_, ok = registry.Resolve("Sir Fahad Malik")
	assert.False(t, ok)
	assert.Equal(t, 1, registry.Len())
}

func TestRegistryApplyProfiles(t *testing.T) {
	registry := NewRegistry(names.DefaultMatchConfig(), 10)
	waqar, err := registry.RegisterOrMatch("Sir Waqar Ali", "")
	require.NoError(t, err)

	warnings := registry.ApplyProfiles([]models.TeacherProfile{
		{Name: "Waqar Ali", GradeLevel: 8, Phone: "0311-3588606", Substitute: boolPtr(true)},
		{Name: "Nobody Known"},
	})

	assert.Equal(t, 8, waqar.GradeLevel)
	assert.Equal(t, "+923113588606", waqar.Phone)
	assert.True(t, waqar.IsSubstitute)
	assert.Equal(t, []string{`profile for unknown teacher "Nobody Known" ignored`}, warnings)
}

func TestParseRoster(t *testing.T) {
	registry := NewRegistry(names.DefaultMatchConfig(), 0)
	grid := [][]string{
		{"Teacher", "Contact"},
		{"Sir Waqar Ali", "0311 3588606"},
		{"", "03001234567"},
		{"Sir Fahad Malik", ""},
		{"waqar ali", "+92 311 3588606"},
	}

	teachers, warnings := ParseRoster(grid, registry)
	require.Len(t, teachers, 2)
	assert.Equal(t, "+923113588606", teachers[0].Phone)
	assert.True(t, teachers[0].IsSubstitute)
	assert.Equal(t, []string{"Sir Waqar Ali", "waqar ali"}, teachers[0].Variations)
	assert.Equal(t, "", teachers[1].Phone)
	assert.Equal(t, []string{
		"roster row 3 has no teacher name",
		"substitute Sir Fahad Malik has no phone number and cannot be assigned",
	}, warnings)
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"0311-3588606":     "+923113588606",
		"923113588606":     "+923113588606",
		"00923113588606":   "+923113588606",
		"+92 (311) 358860": "+92311358860",
		" ":                "",
		"ext 42":           "42",
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizePhone(raw), raw)
	}
}

func TestParseTimetable(t *testing.T) {
	registry := NewRegistry(names.DefaultMatchConfig(), 0)
	grid := [][]string{
		{"Day", "Period", "10A", "9B", "8A"},
		{"monday", "2", "Sir Bakir Shah", "EMPTY", "Sir Waqar Ali"},
		{"Mon", "1", "", "bakir shah", ""},
		{"Funday", "1", "Sir Bakir Shah", "", ""},
		{"Tue", "x", "Sir Bakir Shah", "", ""},
		{"Monday", "2", "Sir Fahad Malik", "", ""},
		{"", "", "", "", ""},
		{"Tues.", "4", "Sir Bakir Shah", "", ""},
	}

	timetable, warnings := ParseTimetable(grid, registry, testSlots)

	assert.Equal(t, []string{
		`timetable row 4: unknown day "Funday", row skipped`,
		`timetable row 5: invalid period "x", row skipped`,
		"timetable row 6: duplicate Monday period 2, row skipped",
	}, warnings)
	assert.Equal(t, 2, registry.Len())

	assert.Equal(t, []models.ScheduleSlot{
		{Day: "Monday", Period: 1, ClassName: "9B"},
		{Day: "Monday", Period: 2, ClassName: "10A"},
		{Day: "Tuesday", Period: 4, ClassName: "10A"},
	}, timetable.Schedules["Sir Bakir Shah"])
	assert.Equal(t, []string{"Sir Bakir Shah", "", "Sir Waqar Ali"}, timetable.Grid["Monday"][2])
	assert.True(t, timetable.Teaches("Sir Waqar Ali", "Monday", 2))
	assert.False(t, timetable.Teaches("Sir Waqar Ali", "Monday", 1))

	for _, teacher := range registry.Teachers() {
		assert.True(t, teacher.IsRegular, teacher.CanonicalName)
	}
}

func TestNormalizeDay(t *testing.T) {
	for raw, want := range map[string]string{"wed": "Wednesday", " THURS ": "Thursday", "Fri.": "Friday"} {
		got, ok := NormalizeDay(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got)
	}
	_, ok := NormalizeDay("someday")
	assert.False(t, ok)
}
