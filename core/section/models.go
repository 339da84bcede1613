package section

import (
	"context"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/gradebook/core"
)

// Subjects taught in every section.
var Subjects = []string{"English", "Science", "Mathematics", "Filipino", "AP", "ESP", "TLE", "MAPEH"}

// GradeLevels offered by the schools.
var GradeLevels = []string{"4", "5", "6", "7", "8", "9", "10"}

func IsSubject(name string) bool {
	for _, s := range Subjects {
		if s == name {
			return true
		}
	}
	return false
}

type Section struct {
	ID           string `json:"id"`
	SchoolID     string `json:"school_id"`
	Name         string `json:"name"`
	GradeLevel   string `json:"grade_level"`
	AdviserID    string `json:"adviser_id"` // "": no adviser
	SchoolYearID string `json:"school_year_id"`
	CurriculumID string `json:"curriculum_id"` // "": none
}

type SubjectAssignment struct {
	ID           string `json:"id"`
	SectionID    string `json:"section_id"`
	TeacherID    string `json:"teacher_id"` // "": unassigned
	SchoolYearID string `json:"school_year_id"`
	SubjectName  string `json:"subject_name"`
}

// Detail is a Section along with its subject assignments.
type Detail struct {
	Section
	Assignments []SubjectAssignment `json:"assignments"`
}

// TeachingAssignment is a subject assignment seen from the teacher's side.
type TeachingAssignment struct {
	SubjectAssignment
	SectionName string `json:"section_name"`
	GradeLevel  string `json:"grade_level"`
}

// SaveSection creates or edits a section. Subjects maps a subject name to a teacher ID ("" leaves it unassigned).
type SaveSection struct {
	Name         string            `json:"name" validate:"required,max=64"`
	GradeLevel   string            `json:"grade_level" validate:"required,oneof=4 5 6 7 8 9 10"`
	AdviserID    string            `json:"adviser_id"`
	SchoolYearID string            `json:"school_year_id" validate:"required"`
	CurriculumID string            `json:"curriculum_id"`
	Subjects     map[string]string `json:"subjects"`
}

// Validate checks the form and that referenced teachers belong to the school (via isSchoolTeacher).
func (ss *SaveSection) Validate(ctx context.Context, validate *validator.Validate, isSchoolTeacher func(ctx context.Context, id string) (bool, error)) error {
	ss.Name = core.CleanString(ss.Name)
	ss.GradeLevel = core.CleanString(ss.GradeLevel)
	if err := validate.Struct(ss); err != nil {
		return err
	}

	if ss.AdviserID != "" {
		ok, err := isSchoolTeacher(ctx, ss.AdviserID)
		if err != nil {
			return err
		}
		if !ok {
			return core.NewFieldError("adviser_id", "teacher not found")
		}
	}

	subjects := make([]string, 0, len(ss.Subjects))
	for subject := range ss.Subjects {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)
	for _, subject := range subjects {
		if !IsSubject(subject) {
			return core.NewFieldError("subjects", "unknown subject "+subject)
		}
		if tchID := ss.Subjects[subject]; tchID != "" {
			ok, err := isSchoolTeacher(ctx, tchID)
			if err != nil {
				return err
			}
			if !ok {
				return core.NewFieldError("subjects", "teacher not found for "+subject)
			}
		}
	}
	return nil
}

type RenameSection struct {
	Name string `json:"name" validate:"required,max=64"`
}

func (rs *RenameSection) Validate(validate *validator.Validate) error {
	rs.Name = core.CleanString(rs.Name)
	return validate.Struct(rs)
}

type QueryFilter struct {
	SchoolID     string `query:"-"`
	SchoolYearID string `query:"school_year_id"`
	AdviserID    string `query:"-"`
}

type AssignmentFilter struct {
	SectionIDs   []string
	TeacherID    string
	SchoolYearID string
}
