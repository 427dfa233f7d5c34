package service

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/noah-isme/sma-substitute/internal/models"
)

// RosterColumns is the width of a substitute roster row: name, phone.
const RosterColumns = 2

// ParseRoster registers every roster row as a substitute-eligible teacher.
// A first row whose phone cell has no digits is treated as a header.
func ParseRoster(grid [][]string, resolver NameResolver) ([]*models.Teacher, []string) {
	var (
		teachers []*models.Teacher
		warnings []string
		seen     = map[*models.Teacher]struct{}{}
	)

	for i, row := range grid {
		if len(row) == 0 {
			continue
		}
		name := strings.TrimSpace(row[0])
		phone := ""
		if len(row) > 1 {
			phone = row[1]
		}
		if i == 0 && !hasDigit(phone) {
			continue
		}
		if name == "" {
			warnings = append(warnings, fmt.Sprintf("roster row %d has no teacher name", i+1))
			continue
		}

		normalized := NormalizePhone(phone)
		teacher, err := resolver.RegisterOrMatch(name, normalized)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("roster row %d: %v", i+1, err))
			continue
		}
		teacher.IsSubstitute = true
		if normalized == "" {
			warnings = append(warnings, fmt.Sprintf("substitute %s has no phone number and cannot be assigned", teacher.CanonicalName))
		}
		if _, ok := seen[teacher]; !ok {
			seen[teacher] = struct{}{}
			teachers = append(teachers, teacher)
		}
	}
	return teachers, warnings
}

// NormalizePhone strips separators and rewrites local mobile numbers
// (03XXXXXXXXX) into international form (+923XXXXXXXXX).
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '+' && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	phone := b.String()
	switch {
	case len(phone) == 11 && strings.HasPrefix(phone, "03"):
		return "+92" + phone[1:]
	case len(phone) == 12 && strings.HasPrefix(phone, "923"):
		return "+" + phone
	case len(phone) == 14 && strings.HasPrefix(phone, "00923"):
		return "+" + phone[2:]
	}
	return phone
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
