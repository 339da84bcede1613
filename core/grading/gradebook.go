package grading

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core/section"
	"github.com/trezcool/gradebook/core/student"
)

// Gradebook returns the quarter grades of the section's students for a school year.
// The roster & subjects are read on every call; only the grades are cached, until final grades of the section
// are saved again.
func (svc *service) Gradebook(ctx context.Context, sec section.Section, schoolYearID string) (Gradebook, error) {
	if schoolYearID == "" {
		schoolYearID = sec.SchoolYearID
	}

	students, err := svc.stRepo.QueryStudents(ctx, student.QueryFilter{SectionID: sec.ID, Sort: student.SortNameAsc})
	if err != nil {
		return Gradebook{}, errors.Wrap(err, "querying students")
	}
	assignments, err := svc.secRepo.QueryAssignments(ctx, section.AssignmentFilter{SectionIDs: []string{sec.ID}})
	if err != nil {
		return Gradebook{}, errors.Wrap(err, "querying subject assignments")
	}

	gb := Gradebook{
		SectionID:    sec.ID,
		SchoolYearID: schoolYearID,
		Subjects:     make([]string, 0, len(assignments)),
		Rows:         make([]GradebookRow, 0, len(students)),
	}
	if len(assignments) == 0 {
		return gb, nil
	}
	for _, sa := range assignments {
		gb.Subjects = append(gb.Subjects, sa.SubjectName)
	}

	grades, err := svc.sectionGrades(ctx, sec.ID, schoolYearID, assignments)
	if err != nil {
		return Gradebook{}, err
	}
	buildGradebookRows(&gb, students, assignments, grades)
	return gb, nil
}

func (svc *service) sectionGrades(ctx context.Context, sectionID, schoolYearID string, assignments []section.SubjectAssignment) ([]Grade, error) {
	key := gradebookCacheKey(sectionID, schoolYearID)

	var grades []Grade
	if found, err := svc.cache.Get(ctx, key, &grades); err == nil && found {
		return grades, nil
	}

	saIDs := make([]string, 0, len(assignments))
	for _, sa := range assignments {
		saIDs = append(saIDs, sa.ID)
	}
	grades, err := svc.repo.QueryGrades(ctx, GradeFilter{SubjectAssignmentIDs: saIDs, SchoolYearID: schoolYearID})
	if err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	_ = svc.cache.Set(ctx, key, grades, svc.ttl)
	return grades, nil
}

func buildGradebookRows(gb *Gradebook, students []student.Student, assignments []section.SubjectAssignment, grades []Grade) {
	// {student ID: {assignment ID: {quarter: grade}}}
	index := make(map[string]map[string]map[string]*float64, len(students))
	for _, g := range grades {
		if index[g.StudentID] == nil {
			index[g.StudentID] = make(map[string]map[string]*float64)
		}
		if index[g.StudentID][g.SubjectAssignmentID] == nil {
			index[g.StudentID][g.SubjectAssignmentID] = make(map[string]*float64, len(Quarters))
		}
		final := g.FinalGrade
		index[g.StudentID][g.SubjectAssignmentID][g.Quarter] = &final
	}

	for _, st := range students {
		row := GradebookRow{
			StudentID: st.ID,
			LRN:       st.LRN,
			Name:      st.Name,
			Gender:    st.Gender,
			Subjects:  make([]SubjectGrades, 0, len(assignments)),
		}

		var sum float64
		for _, sa := range assignments {
			sg := SubjectGrades{
				SubjectAssignmentID: sa.ID,
				Subject:             sa.SubjectName,
				Quarters:            make(map[string]*float64, len(Quarters)),
			}
			vals := make([]*float64, 0, len(Quarters))
			for _, q := range Quarters {
				grade := index[st.ID][sa.ID][q]
				sg.Quarters[q] = grade
				vals = append(vals, grade)
			}
			sg.Average = Average(vals...)
			if sg.Average != nil {
				sum += *sg.Average
			}
			row.Subjects = append(row.Subjects, sg)
		}
		// subjects without any grade weigh in as 0
		row.GeneralAverage = Round(sum/float64(len(assignments)), 1)
		gb.Rows = append(gb.Rows, row)
	}
}
