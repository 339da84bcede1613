// Package dashboard aggregates the figures shown on the admin and teacher landing pages.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core/curriculum"
	"github.com/trezcool/gradebook/core/grading"
	"github.com/trezcool/gradebook/core/schoolyear"
	"github.com/trezcool/gradebook/core/section"
	"github.com/trezcool/gradebook/core/student"
	"github.com/trezcool/gradebook/core/teacher"
)

const (
	AlertWarning = "warning"
	AlertSuccess = "success"

	RankingSize = 10
)

type (
	Alert struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}

	AdminView struct {
		ActiveSchoolYear    *schoolyear.SchoolYear `json:"active_school_year"`
		Curricula           int                    `json:"curricula"`
		Sections            int                    `json:"sections"`
		SectionsWithAdviser int                    `json:"sections_with_adviser"`
		Assignments         int                    `json:"assignments"`
		AssignedSubjects    int                    `json:"assigned_subjects"`
		Weights             grading.Weights        `json:"weights"`
		Teachers            teacher.Counts         `json:"teachers"`
		Alerts              []Alert                `json:"alerts"`
	}

	RankedStudent struct {
		Rank      int     `json:"rank"`
		StudentID string  `json:"student_id"`
		Name      string  `json:"name"`
		Section   string  `json:"section"`
		Average   float64 `json:"average"`
	}

	TeacherView struct {
		Quarter            string            `json:"quarter"`
		AdvisorySections   []section.Section `json:"advisory_sections"`
		TotalStudents      int               `json:"total_students"`
		IncompleteStudents int               `json:"incomplete_students"`
		Ranking            []RankedStudent   `json:"ranking"`
	}
)

type (
	Service interface {
		Admin(ctx context.Context, schoolID string) (AdminView, error)
		// Teacher summarizes the teacher's advisory sections for a quarter (Q1 when empty).
		Teacher(ctx context.Context, tch teacher.Teacher, quarter string) (TeacherView, error)
	}

	service struct {
		syrSvc schoolyear.Service
		curSvc curriculum.Service
		secSvc section.Service
		tchSvc teacher.Service
		stSvc  student.Service
		grdSvc grading.Service
	}
)

var _ Service = (*service)(nil)

func NewService(
	syrSvc schoolyear.Service,
	curSvc curriculum.Service,
	secSvc section.Service,
	tchSvc teacher.Service,
	stSvc student.Service,
	grdSvc grading.Service,
) Service {
	return &service{
		syrSvc: syrSvc,
		curSvc: curSvc,
		secSvc: secSvc,
		tchSvc: tchSvc,
		stSvc:  stSvc,
		grdSvc: grdSvc,
	}
}

func (svc *service) Admin(ctx context.Context, schoolID string) (AdminView, error) {
	var view AdminView

	sy, err := svc.syrSvc.GetActive(ctx, schoolID)
	switch {
	case err == nil:
		view.ActiveSchoolYear = &sy
	case errors.Cause(err) != schoolyear.ErrNotFound:
		return view, errors.Wrap(err, "getting active school year")
	}

	curricula, err := svc.curSvc.Query(ctx, schoolID)
	if err != nil {
		return view, errors.Wrap(err, "querying curricula")
	}
	view.Curricula = len(curricula)

	sections, err := svc.secSvc.Query(ctx, section.QueryFilter{SchoolID: schoolID})
	if err != nil {
		return view, errors.Wrap(err, "querying sections")
	}
	view.Sections = len(sections)
	for _, det := range sections {
		if det.AdviserID != "" {
			view.SectionsWithAdviser++
		}
		for _, sa := range det.Assignments {
			view.Assignments++
			if sa.TeacherID != "" {
				view.AssignedSubjects++
			}
		}
	}

	if view.Weights, err = svc.grdSvc.GetWeights(ctx, schoolID); err != nil {
		return view, errors.Wrap(err, "getting weights")
	}
	if view.Teachers, err = svc.tchSvc.Count(ctx, schoolID); err != nil {
		return view, errors.Wrap(err, "counting teachers")
	}

	view.Alerts = adminAlerts(view)
	return view, nil
}

func adminAlerts(view AdminView) []Alert {
	alerts := make([]Alert, 0, 3)
	if n := view.Sections - view.SectionsWithAdviser; n > 0 {
		alerts = append(alerts, Alert{Type: AlertWarning, Message: fmt.Sprintf("%d sections have no assigned adviser", n)})
	}
	if n := view.Assignments - view.AssignedSubjects; n > 0 {
		alerts = append(alerts, Alert{Type: AlertWarning, Message: fmt.Sprintf("%d subjects have no assigned teacher", n)})
	}
	if view.Weights.Configured {
		alerts = append(alerts, Alert{Type: AlertSuccess, Message: "All grade percentages configured"})
	} else {
		alerts = append(alerts, Alert{Type: AlertWarning, Message: "Grade percentages not configured, defaults apply"})
	}
	return alerts
}

func (svc *service) Teacher(ctx context.Context, tch teacher.Teacher, quarter string) (TeacherView, error) {
	quarter = strings.ToUpper(strings.TrimSpace(quarter))
	if quarter == "" {
		quarter = grading.Quarters[0]
	}
	if !grading.IsQuarter(quarter) {
		return TeacherView{}, grading.ErrInvalidQuarter
	}

	sections, err := svc.secSvc.AdvisorySections(ctx, tch.ID)
	if err != nil {
		return TeacherView{}, errors.Wrap(err, "querying advisory sections")
	}
	view := TeacherView{
		Quarter:          quarter,
		AdvisorySections: sections,
		Ranking:          []RankedStudent{},
	}

	var ranking []RankedStudent
	for _, sec := range sections {
		students, err := svc.stSvc.Query(ctx, student.QueryFilter{SectionID: sec.ID})
		if err != nil {
			return view, errors.Wrap(err, "querying students")
		}
		view.TotalStudents += len(students)
		if len(students) == 0 {
			continue
		}

		det, err := svc.secSvc.GetByID(ctx, sec.ID)
		if err != nil {
			return view, errors.Wrap(err, "getting section")
		}
		saIDs := make([]string, 0, len(det.Assignments))
		for _, sa := range det.Assignments {
			saIDs = append(saIDs, sa.ID)
		}

		finals := make(map[string][]float64, len(students)) // {student ID: final grades}
		if len(saIDs) > 0 {
			grades, err := svc.grdSvc.QueryGrades(ctx, grading.GradeFilter{
				SubjectAssignmentIDs: saIDs,
				Quarter:              quarter,
				SchoolYearID:         sec.SchoolYearID,
			})
			if err != nil {
				return view, errors.Wrap(err, "querying grades")
			}
			for _, g := range grades {
				finals[g.StudentID] = append(finals[g.StudentID], g.FinalGrade)
			}
		}

		for _, st := range students {
			got := finals[st.ID]
			if len(got) < len(saIDs) {
				view.IncompleteStudents++
			}
			if len(got) == 0 {
				continue
			}
			var sum float64
			for _, g := range got {
				sum += g
			}
			ranking = append(ranking, RankedStudent{
				StudentID: st.ID,
				Name:      st.Name,
				Section:   sec.Name,
				Average:   grading.Round(sum/float64(len(got)), 2),
			})
		}
	}

	sort.SliceStable(ranking, func(i, j int) bool {
		if ranking[i].Average != ranking[j].Average {
			return ranking[i].Average > ranking[j].Average
		}
		return strings.ToLower(ranking[i].Name) < strings.ToLower(ranking[j].Name)
	})
	if len(ranking) > RankingSize {
		ranking = ranking[:RankingSize]
	}
	for i := range ranking {
		ranking[i].Rank = i + 1
	}
	if ranking != nil {
		view.Ranking = ranking
	}
	return view, nil
}
