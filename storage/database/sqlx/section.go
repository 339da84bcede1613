package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/strmangle"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/section"
)

const (
	sectionColumns    = `id, school_id, name, grade_level, adviser_id, school_year_id, curriculum_id`
	assignmentColumns = `id, section_id, teacher_id, school_year_id, subject_name`
)

type sectionRecord struct {
	ID           string      `db:"id"`
	SchoolID     string      `db:"school_id"`
	Name         string      `db:"name"`
	GradeLevel   string      `db:"grade_level"`
	AdviserID    null.String `db:"adviser_id"`
	SchoolYearID string      `db:"school_year_id"`
	CurriculumID null.String `db:"curriculum_id"`
}

func (rec sectionRecord) section() section.Section {
	return section.Section{
		ID:           rec.ID,
		SchoolID:     rec.SchoolID,
		Name:         rec.Name,
		GradeLevel:   rec.GradeLevel,
		AdviserID:    rec.AdviserID.String,
		SchoolYearID: rec.SchoolYearID,
		CurriculumID: rec.CurriculumID.String,
	}
}

type assignmentRecord struct {
	ID           string      `db:"id"`
	SectionID    string      `db:"section_id"`
	TeacherID    null.String `db:"teacher_id"`
	SchoolYearID string      `db:"school_year_id"`
	SubjectName  string      `db:"subject_name"`
}

func (rec assignmentRecord) assignment() section.SubjectAssignment {
	return section.SubjectAssignment{
		ID:           rec.ID,
		SectionID:    rec.SectionID,
		TeacherID:    rec.TeacherID.String,
		SchoolYearID: rec.SchoolYearID,
		SubjectName:  rec.SubjectName,
	}
}

func nullID(id string) null.String {
	return null.NewString(id, id != "")
}

type sectionRepository struct {
	repository
}

var _ section.Repository = (*sectionRepository)(nil)

func NewSectionRepository(exec core.DBExecutor) *sectionRepository {
	return &sectionRepository{repository{exec: exec}}
}

func (repo sectionRepository) CreateSection(ctx context.Context, sec section.Section, exec ...core.DBExecutor) (section.Section, error) {
	sec.ID = newID()
	_, err := repo.execContext(ctx, exec,
		`INSERT INTO sections (`+sectionColumns+`, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sec.ID, sec.SchoolID, sec.Name, sec.GradeLevel, nullID(sec.AdviserID), sec.SchoolYearID,
		nullID(sec.CurriculumID), time.Now().UTC(),
	)
	if err != nil {
		return section.Section{}, errors.Wrap(err, "inserting section")
	}
	return sec, nil
}

func (repo sectionRepository) QuerySections(ctx context.Context, filter section.QueryFilter, exec ...core.DBExecutor) ([]section.Section, error) {
	var w where
	for col, id := range map[string]string{
		"school_id":      filter.SchoolID,
		"school_year_id": filter.SchoolYearID,
		"adviser_id":     filter.AdviserID,
	} {
		if id == "" {
			continue
		}
		if !validID(id) {
			return []section.Section{}, nil
		}
		w.add(col+" = ?", id)
	}

	var recs []sectionRecord
	// grade levels are numeric strings
	q := `SELECT ` + sectionColumns + ` FROM sections` + w.String() + ` ORDER BY grade_level::int, name`
	if err := repo.selectContext(ctx, exec, &recs, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying sections")
	}
	sections := make([]section.Section, 0, len(recs))
	for _, rec := range recs {
		sections = append(sections, rec.section())
	}
	return sections, nil
}

func (repo sectionRepository) GetSection(ctx context.Context, id string, exec ...core.DBExecutor) (section.Section, error) {
	if !validID(id) {
		return section.Section{}, section.ErrNotFound
	}
	var recs []sectionRecord
	if err := repo.selectContext(ctx, exec, &recs, `SELECT `+sectionColumns+` FROM sections WHERE id = ?`, id); err != nil {
		return section.Section{}, trapNoRowsErr(err, section.ErrNotFound, "finding section")
	}
	if len(recs) == 0 {
		return section.Section{}, section.ErrNotFound
	}
	return recs[0].section(), nil
}

func (repo sectionRepository) UpdateSection(ctx context.Context, sec section.Section, exec ...core.DBExecutor) (section.Section, error) {
	if !validID(sec.ID) {
		return section.Section{}, section.ErrNotFound
	}
	cnt, err := repo.execContext(ctx, exec,
		`UPDATE sections SET name = ?, grade_level = ?, adviser_id = ?, school_year_id = ?, curriculum_id = ? WHERE id = ?`,
		sec.Name, sec.GradeLevel, nullID(sec.AdviserID), sec.SchoolYearID, nullID(sec.CurriculumID), sec.ID,
	)
	if err != nil {
		return section.Section{}, errors.Wrap(err, "updating section")
	}
	if cnt == 0 {
		return section.Section{}, section.ErrNotFound
	}
	return sec, nil
}

func (repo sectionRepository) DeleteSection(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validID(id) {
		return section.ErrNotFound
	}
	if _, err := repo.execContext(ctx, exec, `DELETE FROM sections WHERE id = ?`, id); err != nil {
		return errors.Wrap(err, "deleting section")
	}
	return nil
}

func (repo sectionRepository) CreateAssignments(ctx context.Context, assignments []section.SubjectAssignment, exec ...core.DBExecutor) ([]section.SubjectAssignment, error) {
	if len(assignments) == 0 {
		return []section.SubjectAssignment{}, nil
	}

	args := make([]interface{}, 0, len(assignments)*assignmentNCols)
	for i := range assignments {
		sa := &assignments[i]
		sa.ID = newID()
		args = append(args, sa.ID, sa.SectionID, nullID(sa.TeacherID), sa.SchoolYearID, sa.SubjectName)
	}
	q := `INSERT INTO subject_assignments (` + assignmentColumns + `) VALUES ` +
		strmangle.Placeholders(true, len(args), 1, assignmentNCols)
	if _, err := repo.getExec(exec).ExecContext(ctx, q, args...); err != nil {
		return nil, errors.Wrap(err, "inserting subject assignments")
	}
	return assignments, nil
}

func (repo sectionRepository) QueryAssignments(ctx context.Context, filter section.AssignmentFilter, exec ...core.DBExecutor) ([]section.SubjectAssignment, error) {
	var w where
	if filter.SectionIDs != nil {
		ids := validIDs(filter.SectionIDs)
		if len(ids) == 0 {
			return []section.SubjectAssignment{}, nil
		}
		w.add("section_id IN (?)", ids)
	}
	for col, id := range map[string]string{"teacher_id": filter.TeacherID, "school_year_id": filter.SchoolYearID} {
		if id == "" {
			continue
		}
		if !validID(id) {
			return []section.SubjectAssignment{}, nil
		}
		w.add(col+" = ?", id)
	}

	var recs []assignmentRecord
	q := `SELECT ` + assignmentColumns + ` FROM subject_assignments` + w.String() + ` ORDER BY ` + subjectOrder()
	if err := repo.selectContext(ctx, exec, &recs, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying subject assignments")
	}
	assignments := make([]section.SubjectAssignment, 0, len(recs))
	for _, rec := range recs {
		assignments = append(assignments, rec.assignment())
	}
	return assignments, nil
}

func (repo sectionRepository) GetAssignment(ctx context.Context, id string, exec ...core.DBExecutor) (section.SubjectAssignment, error) {
	if !validID(id) {
		return section.SubjectAssignment{}, section.ErrAssignmentNotFound
	}
	var recs []assignmentRecord
	if err := repo.selectContext(ctx, exec, &recs, `SELECT `+assignmentColumns+` FROM subject_assignments WHERE id = ?`, id); err != nil {
		return section.SubjectAssignment{}, trapNoRowsErr(err, section.ErrAssignmentNotFound, "finding subject assignment")
	}
	if len(recs) == 0 {
		return section.SubjectAssignment{}, section.ErrAssignmentNotFound
	}
	return recs[0].assignment(), nil
}

func (repo sectionRepository) UpsertAssignments(ctx context.Context, assignments []section.SubjectAssignment, exec ...core.DBExecutor) error {
	if len(assignments) == 0 {
		return nil
	}
	if _, err := repo.getExec(exec).ExecContext(ctx, upsertAssignmentsQuery(len(assignments)), assignmentArgs(assignments)...); err != nil {
		return errors.Wrap(err, "upserting subject assignments")
	}
	return nil
}

const assignmentNCols = 5

func assignmentArgs(assignments []section.SubjectAssignment) []interface{} {
	args := make([]interface{}, 0, len(assignments)*assignmentNCols)
	for _, sa := range assignments {
		args = append(args, newID(), sa.SectionID, nullID(sa.TeacherID), sa.SchoolYearID, sa.SubjectName)
	}
	return args
}

func upsertAssignmentsQuery(n int) string {
	return `INSERT INTO subject_assignments (` + assignmentColumns + `) VALUES ` +
		strmangle.Placeholders(true, n*assignmentNCols, 1, assignmentNCols) + `
		ON CONFLICT (section_id, subject_name) DO UPDATE SET
			teacher_id = EXCLUDED.teacher_id,
			school_year_id = EXCLUDED.school_year_id`
}

// subjectOrder sorts the assignments of a section in the standard subject order.
func subjectOrder() string {
	quoted := make([]string, 0, len(section.Subjects))
	for _, s := range section.Subjects {
		quoted = append(quoted, "'"+s+"'")
	}
	return "section_id, array_position(ARRAY[" + strings.Join(quoted, ",") + "]::text[], subject_name)"
}
