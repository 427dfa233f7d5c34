package models

// DefaultGradeLevel is assumed for teachers without a configured profile.
const DefaultGradeLevel = 10

// Teacher is the canonical identity every spelling of a person resolves to.
type Teacher struct {
	CanonicalID   string   `json:"canonicalId"`
	CanonicalName string   `json:"canonicalName"`
	Variations    []string `json:"variations"`
	Phone         string   `json:"phone,omitempty"`
	IsSubstitute  bool     `json:"isSubstitute"`
	GradeLevel    int      `json:"gradeLevel"`
	IsRegular     bool     `json:"isRegular"`
}

// AddVariation records raw as a known spelling. It reports false when raw is
// empty or already known.
func (t *Teacher) AddVariation(raw string) bool {
	if raw == "" {
		return false
	}
	for _, v := range t.Variations {
		if v == raw {
			return false
		}
	}
	t.Variations = append(t.Variations, raw)
	return true
}

// CanSubstitute is true when the teacher can be reached to cover a class.
func (t *Teacher) CanSubstitute() bool {
	return t.Phone != ""
}

// TeacherProfile overrides registry defaults for one teacher.
type TeacherProfile struct {
	Name       string `yaml:"name" json:"name" validate:"required"`
	GradeLevel int    `yaml:"gradeLevel" json:"gradeLevel" validate:"omitempty,min=1,max=12"`
	Phone      string `yaml:"phone" json:"phone,omitempty"`
	Regular    *bool  `yaml:"regular" json:"regular,omitempty"`
	Substitute *bool  `yaml:"substitute" json:"substitute,omitempty"`
}

// TeacherProfiles is the document shape of the profiles file.
type TeacherProfiles struct {
	Teachers []TeacherProfile `yaml:"teachers" validate:"dive"`
}
