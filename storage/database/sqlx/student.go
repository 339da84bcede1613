package sqlxrepos

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/strmangle"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/student"
)

const studentColumns = `id, section_id, lrn, name, gender, date_of_birth, contact_number, address,
	father_name, father_contact, mother_name, mother_contact, created_at, updated_at`

const studentNCols = 14

var studentSorts = map[string]string{
	student.SortNameAsc:  "LOWER(name) ASC",
	student.SortNameDesc: "LOWER(name) DESC",
	student.SortLRN:      "lrn ASC",
}

type studentRecord struct {
	ID            string      `db:"id"`
	SectionID     null.String `db:"section_id"`
	LRN           string      `db:"lrn"`
	Name          string      `db:"name"`
	Gender        string      `db:"gender"`
	DateOfBirth   null.Time   `db:"date_of_birth"`
	ContactNumber null.String `db:"contact_number"`
	Address       null.String `db:"address"`
	FatherName    null.String `db:"father_name"`
	FatherContact null.String `db:"father_contact"`
	MotherName    null.String `db:"mother_name"`
	MotherContact null.String `db:"mother_contact"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
}

func newStudentRecord(st student.Student) studentRecord {
	rec := studentRecord{
		ID:            st.ID,
		SectionID:     nullID(st.SectionID),
		LRN:           st.LRN,
		Name:          st.Name,
		Gender:        st.Gender,
		ContactNumber: nullString(st.ContactNumber),
		Address:       nullString(st.Address),
		FatherName:    nullString(st.FatherName),
		FatherContact: nullString(st.FatherContact),
		MotherName:    nullString(st.MotherName),
		MotherContact: nullString(st.MotherContact),
		CreatedAt:     st.CreatedAt.UTC(),
		UpdatedAt:     st.UpdatedAt.UTC(),
	}
	if dob, err := time.Parse(core.DateLayout, st.DateOfBirth); err == nil {
		rec.DateOfBirth = null.TimeFrom(dob)
	}
	return rec
}

func (rec studentRecord) args() []interface{} {
	return []interface{}{
		rec.ID, rec.SectionID, rec.LRN, rec.Name, rec.Gender, rec.DateOfBirth, rec.ContactNumber, rec.Address,
		rec.FatherName, rec.FatherContact, rec.MotherName, rec.MotherContact, rec.CreatedAt, rec.UpdatedAt,
	}
}

func (rec studentRecord) student() student.Student {
	st := student.Student{
		ID:            rec.ID,
		SectionID:     rec.SectionID.String,
		LRN:           rec.LRN,
		Name:          rec.Name,
		Gender:        rec.Gender,
		ContactNumber: rec.ContactNumber.String,
		Address:       rec.Address.String,
		FatherName:    rec.FatherName.String,
		FatherContact: rec.FatherContact.String,
		MotherName:    rec.MotherName.String,
		MotherContact: rec.MotherContact.String,
		CreatedAt:     rec.CreatedAt.UTC(),
		UpdatedAt:     rec.UpdatedAt.UTC(),
	}
	if rec.DateOfBirth.Valid {
		st.DateOfBirth = rec.DateOfBirth.Time.Format(core.DateLayout)
	}
	return st
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

type studentRepository struct {
	repository
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(exec core.DBExecutor) *studentRepository {
	return &studentRepository{repository{exec: exec}}
}

func (repo studentRepository) CheckLRNUniqueness(ctx context.Context, lrn string, excluded []student.Student, exec ...core.DBExecutor) error {
	var w where
	w.add("lrn = ?", lrn)
	if len(excluded) > 0 {
		ids := make([]string, 0, len(excluded))
		for _, st := range excluded {
			ids = append(ids, st.ID)
		}
		if ids = validIDs(ids); len(ids) > 0 {
			w.add("id NOT IN (?)", ids)
		}
	}

	cnt, err := repo.countContext(ctx, exec, `SELECT COUNT(*) FROM students`+w.String(), w.args...)
	if err != nil {
		return errors.Wrap(err, "checking LRN uniqueness")
	}
	if cnt > 0 {
		return student.ErrLRNExists
	}
	return nil
}

func (repo studentRepository) CreateStudent(ctx context.Context, st student.Student, exec ...core.DBExecutor) (student.Student, error) {
	st.ID = newID()
	rec := newStudentRecord(st)
	q := `INSERT INTO students (` + studentColumns + `) VALUES ` + strmangle.Placeholders(true, studentNCols, 1, studentNCols)
	if _, err := repo.getExec(exec).ExecContext(ctx, q, rec.args()...); err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return rec.student(), nil
}

func (repo studentRepository) QueryStudents(ctx context.Context, filter student.QueryFilter, exec ...core.DBExecutor) ([]student.Student, error) {
	var w where
	if filter.SectionID != "" {
		if !validID(filter.SectionID) {
			return []student.Student{}, nil
		}
		w.add("section_id = ?", filter.SectionID)
	}
	if filter.SectionIDs != nil {
		ids := validIDs(filter.SectionIDs)
		if len(ids) == 0 {
			return []student.Student{}, nil
		}
		w.add("section_id IN (?)", ids)
	}
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		w.add("(name ILIKE ? OR lrn LIKE ?)", val, val)
	}
	if filter.Gender != "" {
		w.add("gender = ?", filter.Gender)
	}
	sortBy, ok := studentSorts[filter.Sort]
	if !ok {
		sortBy = studentSorts[student.SortNameAsc]
	}

	var recs []studentRecord
	q := `SELECT ` + studentColumns + ` FROM students` + w.String() + ` ORDER BY ` + sortBy
	if err := repo.selectContext(ctx, exec, &recs, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]student.Student, 0, len(recs))
	for _, rec := range recs {
		students = append(students, rec.student())
	}
	return students, nil
}

func (repo studentRepository) GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (student.Student, error) {
	if !validID(id) {
		return student.Student{}, student.ErrNotFound
	}
	var recs []studentRecord
	if err := repo.selectContext(ctx, exec, &recs, `SELECT `+studentColumns+` FROM students WHERE id = ?`, id); err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "finding student")
	}
	if len(recs) == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return recs[0].student(), nil
}

func (repo studentRepository) UpdateStudent(ctx context.Context, st student.Student, exec ...core.DBExecutor) (student.Student, error) {
	rec := newStudentRecord(st)
	cnt, err := repo.execContext(ctx, exec,
		`UPDATE students SET section_id = ?, lrn = ?, name = ?, gender = ?, date_of_birth = ?, contact_number = ?,
		address = ?, father_name = ?, father_contact = ?, mother_name = ?, mother_contact = ?, updated_at = ?
		WHERE id = ?`,
		rec.SectionID, rec.LRN, rec.Name, rec.Gender, rec.DateOfBirth, rec.ContactNumber,
		rec.Address, rec.FatherName, rec.FatherContact, rec.MotherName, rec.MotherContact, rec.UpdatedAt,
		rec.ID,
	)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if cnt == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return rec.student(), nil
}

// UpsertStudents inserts the students, updating the existing ones with the same LRN (moved into the new section).
// Students enrolled in a section of another school do not match the conflict's WHERE and are left as is.
func (repo studentRepository) UpsertStudents(ctx context.Context, schoolID string, students []student.Student, exec ...core.DBExecutor) (int, error) {
	if len(students) == 0 {
		return 0, nil
	}

	args := make([]interface{}, 0, len(students)*studentNCols)
	for _, st := range students {
		st.ID = newID()
		args = append(args, newStudentRecord(st).args()...)
	}
	var school interface{}
	if validID(schoolID) {
		school = schoolID
	}
	args = append(args, school)
	q := `INSERT INTO students (` + studentColumns + `) VALUES ` +
		strmangle.Placeholders(true, len(args)-1, 1, studentNCols) + `
		ON CONFLICT (lrn) DO UPDATE SET
			section_id = EXCLUDED.section_id,
			name = EXCLUDED.name,
			gender = EXCLUDED.gender,
			date_of_birth = EXCLUDED.date_of_birth,
			contact_number = EXCLUDED.contact_number,
			address = EXCLUDED.address,
			father_name = EXCLUDED.father_name,
			father_contact = EXCLUDED.father_contact,
			mother_name = EXCLUDED.mother_name,
			mother_contact = EXCLUDED.mother_contact,
			updated_at = EXCLUDED.updated_at
		WHERE students.section_id IS NULL
			OR students.section_id IN (SELECT id FROM sections WHERE school_id = ` + fmt.Sprintf("$%d", len(args)) + `)`
	res, err := repo.getExec(exec).ExecContext(ctx, q, args...)
	if err != nil {
		return 0, errors.Wrap(err, "upserting students")
	}
	cnt, err := res.RowsAffected()
	return int(cnt), errors.Wrap(err, "upserting students")
}

func (repo studentRepository) DeleteStudentsByID(ctx context.Context, sectionID string, ids []string, exec ...core.DBExecutor) (int, error) {
	if ids = validIDs(ids); len(ids) == 0 || !validID(sectionID) {
		return 0, nil
	}
	cnt, err := repo.execContext(ctx, exec, `DELETE FROM students WHERE section_id = ? AND id IN (?)`, sectionID, ids)
	if err != nil {
		return 0, errors.Wrap(err, "deleting students")
	}
	return cnt, nil
}
