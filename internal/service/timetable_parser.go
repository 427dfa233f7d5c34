package service

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/sma-substitute/internal/models"
)

// timetableFixedColumns precede the class slots in every row: day, period.
const timetableFixedColumns = 2

var dayAliases = map[string]string{
	"monday": "Monday", "mon": "Monday", "mond": "Monday", "monady": "Monday",
	"tuesday": "Tuesday", "tue": "Tuesday", "tues": "Tuesday", "tuseday": "Tuesday",
	"wednesday": "Wednesday", "wed": "Wednesday", "weds": "Wednesday",
	"wednesay": "Wednesday", "wednsday": "Wednesday", "wendsday": "Wednesday",
	"thursday": "Thursday", "thu": "Thursday", "thur": "Thursday", "thurs": "Thursday", "thirsday": "Thursday",
	"friday": "Friday", "fri": "Friday", "firday": "Friday",
	"saturday": "Saturday", "sat": "Saturday",
	"sunday": "Sunday", "sun": "Sunday",
}

var weekdayOrder = map[string]int{
	"Monday": 1, "Tuesday": 2, "Wednesday": 3, "Thursday": 4,
	"Friday": 5, "Saturday": 6, "Sunday": 7,
}

// NormalizeDay maps a day cell to its full English name.
func NormalizeDay(raw string) (string, bool) {
	key := strings.Trim(strings.ToLower(strings.TrimSpace(raw)), ".")
	day, ok := dayAliases[key]
	return day, ok
}

// DayOf returns the weekday name used by the timetable for date.
func DayOf(date time.Time) string {
	return date.Weekday().String()
}

// TimetableColumns is the expected row width for the given class slots.
func TimetableColumns(classSlots []string) int {
	return timetableFixedColumns + len(classSlots)
}

// ParseTimetable turns a raw grid into the weekly timetable, resolving every
// teacher cell through resolver and marking those teachers as regular staff.
// The first row is a header. Rows with an unknown day, an unparseable period
// or a repeated day/period are dropped with a warning.
func ParseTimetable(grid [][]string, resolver NameResolver, classSlots []string) (*models.Timetable, []string) {
	timetable := &models.Timetable{
		ClassSlots: append([]string(nil), classSlots...),
		Grid:       make(map[string]map[int][]string),
		Schedules:  make(models.TeacherSchedule),
	}
	var warnings []string

	for i, row := range grid {
		if i == 0 || blankRow(row) {
			continue
		}
		line := i + 1

		day, ok := NormalizeDay(cell(row, 0))
		if !ok {
			warnings = append(warnings, fmt.Sprintf("timetable row %d: unknown day %q, row skipped", line, cell(row, 0)))
			continue
		}
		period, err := strconv.Atoi(strings.TrimSpace(cell(row, 1)))
		if err != nil || period <= 0 {
			warnings = append(warnings, fmt.Sprintf("timetable row %d: invalid period %q, row skipped", line, cell(row, 1)))
			continue
		}
		if _, dup := timetable.Grid[day][period]; dup {
			warnings = append(warnings, fmt.Sprintf("timetable row %d: duplicate %s period %d, row skipped", line, day, period))
			continue
		}

		cells := make([]string, len(classSlots))
		for idx, className := range classSlots {
			raw := strings.TrimSpace(cell(row, idx+timetableFixedColumns))
			if raw == "" || strings.EqualFold(raw, "empty") {
				continue
			}
			teacher, err := resolver.RegisterOrMatch(raw, "")
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("timetable row %d, class %s: %v", line, className, err))
				continue
			}
			teacher.IsRegular = true
			cells[idx] = teacher.CanonicalName
			timetable.Schedules[teacher.CanonicalName] = append(timetable.Schedules[teacher.CanonicalName], models.ScheduleSlot{
				Day:       day,
				Period:    period,
				ClassName: className,
			})
		}

		if timetable.Grid[day] == nil {
			timetable.Grid[day] = make(map[int][]string)
		}
		timetable.Grid[day][period] = cells
	}

	classIndex := make(map[string]int, len(classSlots))
	for i, className := range classSlots {
		classIndex[className] = i
	}
	for _, slots := range timetable.Schedules {
		sort.SliceStable(slots, func(a, b int) bool {
			if weekdayOrder[slots[a].Day] != weekdayOrder[slots[b].Day] {
				return weekdayOrder[slots[a].Day] < weekdayOrder[slots[b].Day]
			}
			if slots[a].Period != slots[b].Period {
				return slots[a].Period < slots[b].Period
			}
			return classIndex[slots[a].ClassName] < classIndex[slots[b].ClassName]
		})
	}

	return timetable, warnings
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
