package models

// ScheduleSlot is one class-period taught by one teacher on one day.
type ScheduleSlot struct {
	Day       string `json:"day"`
	Period    int    `json:"period"`
	ClassName string `json:"className"`
}

// TeacherSchedule maps a canonical teacher name to its slots ordered by day,
// period and class.
type TeacherSchedule map[string][]ScheduleSlot

// Timetable is the parsed weekly grid.
type Timetable struct {
	ClassSlots []string
	// Grid holds, per day and period, the canonical teacher name of every
	// class slot in ClassSlots order; "" marks an empty cell.
	Grid      map[string]map[int][]string
	Schedules TeacherSchedule
}

// SlotsOn returns the slots teacher holds on day.
func (t *Timetable) SlotsOn(teacher, day string) []ScheduleSlot {
	var slots []ScheduleSlot
	for _, slot := range t.Schedules[teacher] {
		if slot.Day == day {
			slots = append(slots, slot)
		}
	}
	return slots
}

// Teaches reports whether teacher has any class at day/period.
func (t *Timetable) Teaches(teacher, day string, period int) bool {
	for _, name := range t.Grid[day][period] {
		if name != "" && name == teacher {
			return true
		}
	}
	return false
}

// TeacherOf returns the teacher of record for className at day/period.
func (t *Timetable) TeacherOf(day string, period int, className string) string {
	row := t.Grid[day][period]
	for i, slot := range t.ClassSlots {
		if slot == className && i < len(row) {
			return row[i]
		}
	}
	return ""
}
