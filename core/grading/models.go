package grading

import (
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/student"
)

// Score is the score of a student for an activity of a subject assignment.
type Score struct {
	ID                  string    `json:"id"`
	StudentID           string    `json:"student_id"`
	SubjectAssignmentID string    `json:"subject_assignment_id"`
	ActivityType        string    `json:"activity_type"`
	ActivityName        string    `json:"activity_name"`
	Score               *float64  `json:"score"`
	MaxScore            float64   `json:"max_score"`
	Quarter             string    `json:"quarter"`
	SchoolID            string    `json:"school_id"`
	UpdatedAt           time.Time `json:"updated_at"` // UTC
}

// Grade is the quarterly grade of a student for a subject assignment.
type Grade struct {
	ID                  string    `json:"id"`
	StudentID           string    `json:"student_id"`
	SubjectAssignmentID string    `json:"subject_assignment_id"`
	Quarter             string    `json:"quarter"`
	SchoolYearID        string    `json:"school_year_id"`
	WrittenWork         float64   `json:"written_work"`
	PerformanceTask     float64   `json:"performance_task"`
	QuarterlyAssessment float64   `json:"quarterly_assessment"`
	FinalGrade          float64   `json:"final_grade"`
	SchoolID            string    `json:"school_id"`
	UpdatedAt           time.Time `json:"updated_at"` // UTC
}

// Weights are the category percentages of a school. They sum to 100.
type Weights struct {
	WrittenWork         float64 `json:"written_work_percent" validate:"min=0,max=100"`
	PerformanceTask     float64 `json:"performance_task_percent" validate:"min=0,max=100"`
	QuarterlyAssessment float64 `json:"quarterly_assessment_percent" validate:"min=0,max=100"`
	Configured          bool    `json:"configured"` // false when the defaults apply
}

func DefaultWeights() Weights {
	return Weights{
		WrittenWork:         core.Conf.Grading.WrittenWorkPercent,
		PerformanceTask:     core.Conf.Grading.PerformanceTaskPercent,
		QuarterlyAssessment: core.Conf.Grading.QuarterlyAssessmentPercent,
	}
}

var errWeightsSum = core.NewFieldError("weights", "grade percentages must add up to exactly 100%")

func (w *Weights) Validate(validate *validator.Validate) error {
	if err := validate.Struct(w); err != nil {
		return err
	}
	if math.Abs(w.WrittenWork+w.PerformanceTask+w.QuarterlyAssessment-100) > 1e-9 {
		return errWeightsSum
	}
	return nil
}

// ClassRecord is the scoring sheet of a subject assignment for a quarter.
type ClassRecord struct {
	SubjectAssignmentID string      `json:"subject_assignment_id"`
	Subject             string      `json:"subject"`
	Quarter             string      `json:"quarter"`
	Weights             Weights     `json:"weights"`
	Activities          []Activity  `json:"activities"`
	Rows                []RecordRow `json:"rows"`
	Stats               ClassStats  `json:"stats"`
}

type RecordRow struct {
	StudentID           string              `json:"student_id"`
	LRN                 string              `json:"lrn"`
	Name                string              `json:"name"`
	Gender              string              `json:"gender"`
	Scores              map[string]*float64 `json:"scores"` // by activity name
	WrittenWork         float64             `json:"written_work"`
	PerformanceTask     float64             `json:"performance_task"`
	QuarterlyAssessment float64             `json:"quarterly_assessment"`
	FinalGrade          float64             `json:"final_grade"`
	Remarks             string              `json:"remarks"`
}

type ClassStats struct {
	Average     float64 `json:"average"`
	Highest     float64 `json:"highest"`
	Lowest      float64 `json:"lowest"`
	PassingRate float64 `json:"passing_rate"`
}

func computeStats(rows []RecordRow) ClassStats {
	if len(rows) == 0 {
		return ClassStats{}
	}
	stats := ClassStats{Highest: rows[0].FinalGrade, Lowest: rows[0].FinalGrade}
	var sum float64
	var passing int
	for _, row := range rows {
		sum += row.FinalGrade
		stats.Highest = math.Max(stats.Highest, row.FinalGrade)
		stats.Lowest = math.Min(stats.Lowest, row.FinalGrade)
		if row.FinalGrade >= PassingGrade {
			passing++
		}
	}
	stats.Average = Round(sum/float64(len(rows)), 2)
	stats.PassingRate = Round(float64(passing)/float64(len(rows))*100, 1)
	return stats
}

type NewActivity struct {
	Type     string  `json:"type" validate:"required,oneof=written performance quarterly"`
	Name     string  `json:"name" validate:"max=32"`
	MaxScore float64 `json:"max_score" validate:"gt=0"`
}

func (na *NewActivity) Validate(validate *validator.Validate) error {
	na.Name = core.CleanString(na.Name)
	return validate.Struct(na)
}

type ScoreEntry struct {
	StudentID    string   `json:"student_id" validate:"required"`
	ActivityName string   `json:"activity_name" validate:"required"`
	Score        *float64 `json:"score"` // nil: blank, not saved
}

type SaveScores struct {
	Scores []ScoreEntry `json:"scores" validate:"dive"`
}

type BulkScore struct {
	ActivityName string  `json:"activity_name" validate:"required"`
	Score        float64 `json:"score" validate:"min=0"`
}

// Gradebook holds the quarter grades of every student of a section for a school year.
type Gradebook struct {
	SectionID    string         `json:"section_id"`
	SchoolYearID string         `json:"school_year_id"`
	Subjects     []string       `json:"subjects"`
	Rows         []GradebookRow `json:"rows"`
}

type GradebookRow struct {
	StudentID      string          `json:"student_id"`
	LRN            string          `json:"lrn"`
	Name           string          `json:"name"`
	Gender         string          `json:"gender"`
	Subjects       []SubjectGrades `json:"subjects"`
	GeneralAverage float64         `json:"general_average"`
}

type SubjectGrades struct {
	SubjectAssignmentID string              `json:"subject_assignment_id"`
	Subject             string              `json:"subject"`
	Quarters            map[string]*float64 `json:"quarters"` // Q1..Q4; nil when not graded yet
	Average             *float64            `json:"average"`
}

// Filter applies the roster search & sort to the gradebook rows.
func (gb Gradebook) Filter(filter student.QueryFilter) Gradebook {
	filter.Clean()
	rows := make([]GradebookRow, 0, len(gb.Rows))
	for _, row := range gb.Rows {
		if filter.Matches(row.Name, row.LRN, row.Gender) {
			rows = append(rows, row)
		}
	}
	student.SortBy(filter.Sort, len(rows),
		func(i, j int) { rows[i], rows[j] = rows[j], rows[i] },
		func(i int) string { return rows[i].Name },
		func(i int) string { return rows[i].LRN },
	)
	gb.Rows = rows
	return gb
}

type ScoreFilter struct {
	SubjectAssignmentID string
	Quarter             string
	ActivityName        string
}

type GradeFilter struct {
	SubjectAssignmentIDs []string
	StudentIDs           []string
	Quarter              string
	SchoolYearID         string
}

func normalizeQuarter(q string) string {
	return strings.ToUpper(strings.TrimSpace(q))
}
