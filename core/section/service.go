// Package section manages the sections of a school year and their subject assignments.
package section

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
)

var (
	ErrNotFound           = core.NewNotFoundError("section not found")
	ErrAssignmentNotFound = core.NewNotFoundError("subject assignment not found")
)

type (
	Repository interface {
		CreateSection(ctx context.Context, sec Section, exec ...core.DBExecutor) (Section, error)
		// QuerySections returns the sections matching all set fields of filter, ordered by grade level then name.
		QuerySections(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Section, error)
		GetSection(ctx context.Context, id string, exec ...core.DBExecutor) (Section, error)
		UpdateSection(ctx context.Context, sec Section, exec ...core.DBExecutor) (Section, error)
		DeleteSection(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateAssignments(ctx context.Context, assignments []SubjectAssignment, exec ...core.DBExecutor) ([]SubjectAssignment, error)
		// QueryAssignments returns the assignments matching all set fields of filter, in the order of Subjects.
		QueryAssignments(ctx context.Context, filter AssignmentFilter, exec ...core.DBExecutor) ([]SubjectAssignment, error)
		GetAssignment(ctx context.Context, id string, exec ...core.DBExecutor) (SubjectAssignment, error)
		// UpsertAssignments creates the assignments, updating the teacher and school year of the existing ones
		// matched by (section, subject). IDs of existing assignments are kept.
		UpsertAssignments(ctx context.Context, assignments []SubjectAssignment, exec ...core.DBExecutor) error
	}

	Service interface {
		// Save creates a section (id == "") or edits it, replacing its subject assignments.
		Save(ctx context.Context, schoolID, id string, ss SaveSection) (Detail, error)
		Rename(ctx context.Context, sec Section, rs RenameSection) (Section, error)
		Delete(ctx context.Context, sec Section) error
		Query(ctx context.Context, filter QueryFilter) ([]Detail, error)
		GetByID(ctx context.Context, id string) (Detail, error)
		GetAssignment(ctx context.Context, id string) (SubjectAssignment, error)

		AdvisorySections(ctx context.Context, teacherID string) ([]Section, error)
		TeachingAssignments(ctx context.Context, teacherID string) ([]TeachingAssignment, error)
	}

	service struct {
		db   core.DB
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository) Service {
	return &service{db: db, repo: repo}
}

func (svc *service) Save(ctx context.Context, schoolID, id string, ss SaveSection) (Detail, error) {
	var det Detail
	err := core.Transactional(ctx, svc.db, func(exec ...core.DBExecutor) error {
		sec := Section{
			ID:           id,
			SchoolID:     schoolID,
			Name:         ss.Name,
			GradeLevel:   ss.GradeLevel,
			AdviserID:    ss.AdviserID,
			SchoolYearID: ss.SchoolYearID,
			CurriculumID: ss.CurriculumID,
		}

		var err error
		if id == "" {
			sec, err = svc.repo.CreateSection(ctx, sec, exec...)
		} else {
			sec, err = svc.repo.UpdateSection(ctx, sec, exec...)
		}
		if err != nil {
			return errors.Wrap(err, "saving section")
		}

		// assignments are kept across edits: scores and grades hang on them
		assignments := make([]SubjectAssignment, 0, len(Subjects))
		for _, subject := range Subjects {
			assignments = append(assignments, SubjectAssignment{
				SectionID:    sec.ID,
				TeacherID:    ss.Subjects[subject],
				SchoolYearID: sec.SchoolYearID,
				SubjectName:  subject,
			})
		}
		if id == "" {
			if assignments, err = svc.repo.CreateAssignments(ctx, assignments, exec...); err != nil {
				return errors.Wrap(err, "creating subject assignments")
			}
		} else {
			if err = svc.repo.UpsertAssignments(ctx, assignments, exec...); err != nil {
				return errors.Wrap(err, "saving subject assignments")
			}
			if assignments, err = svc.repo.QueryAssignments(ctx, AssignmentFilter{SectionIDs: []string{sec.ID}}, exec...); err != nil {
				return errors.Wrap(err, "querying subject assignments")
			}
		}

		det = Detail{Section: sec, Assignments: assignments}
		return nil
	})
	return det, err
}

func (svc *service) Rename(ctx context.Context, sec Section, rs RenameSection) (Section, error) {
	sec.Name = rs.Name
	return svc.repo.UpdateSection(ctx, sec)
}

func (svc *service) Delete(ctx context.Context, sec Section) error {
	return svc.repo.DeleteSection(ctx, sec.ID)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter) ([]Detail, error) {
	sections, err := svc.repo.QuerySections(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying sections")
	}
	if len(sections) == 0 {
		return []Detail{}, nil
	}

	ids := make([]string, 0, len(sections))
	for _, sec := range sections {
		ids = append(ids, sec.ID)
	}
	assignments, err := svc.repo.QueryAssignments(ctx, AssignmentFilter{SectionIDs: ids})
	if err != nil {
		return nil, errors.Wrap(err, "querying subject assignments")
	}
	bySection := make(map[string][]SubjectAssignment, len(sections))
	for _, sa := range assignments {
		bySection[sa.SectionID] = append(bySection[sa.SectionID], sa)
	}

	details := make([]Detail, 0, len(sections))
	for _, sec := range sections {
		sas := bySection[sec.ID]
		if sas == nil {
			sas = []SubjectAssignment{}
		}
		details = append(details, Detail{Section: sec, Assignments: sas})
	}
	return details, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Detail, error) {
	sec, err := svc.repo.GetSection(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	assignments, err := svc.repo.QueryAssignments(ctx, AssignmentFilter{SectionIDs: []string{sec.ID}})
	if err != nil {
		return Detail{}, errors.Wrap(err, "querying subject assignments")
	}
	if assignments == nil {
		assignments = []SubjectAssignment{}
	}
	return Detail{Section: sec, Assignments: assignments}, nil
}

func (svc *service) GetAssignment(ctx context.Context, id string) (SubjectAssignment, error) {
	return svc.repo.GetAssignment(ctx, id)
}

func (svc *service) AdvisorySections(ctx context.Context, teacherID string) ([]Section, error) {
	return svc.repo.QuerySections(ctx, QueryFilter{AdviserID: teacherID})
}

func (svc *service) TeachingAssignments(ctx context.Context, teacherID string) ([]TeachingAssignment, error) {
	assignments, err := svc.repo.QueryAssignments(ctx, AssignmentFilter{TeacherID: teacherID})
	if err != nil {
		return nil, errors.Wrap(err, "querying subject assignments")
	}

	sections := make(map[string]Section)
	tas := make([]TeachingAssignment, 0, len(assignments))
	for _, sa := range assignments {
		sec, ok := sections[sa.SectionID]
		if !ok {
			if sec, err = svc.repo.GetSection(ctx, sa.SectionID); err != nil {
				return nil, errors.Wrap(err, "finding section")
			}
			sections[sa.SectionID] = sec
		}
		tas = append(tas, TeachingAssignment{
			SubjectAssignment: sa,
			SectionName:       sec.Name,
			GradeLevel:        sec.GradeLevel,
		})
	}
	return tas, nil
}
