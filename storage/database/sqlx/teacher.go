package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/teacher"
)

const teacherColumns = `id, user_id, school_id, fullname, email, profile_pic, records_submitted, is_archived, created_at`

type teacherRecord struct {
	ID               string      `db:"id"`
	UserID           string      `db:"user_id"`
	SchoolID         null.String `db:"school_id"`
	FullName         string      `db:"fullname"`
	Email            string      `db:"email"`
	ProfilePic       string      `db:"profile_pic"`
	RecordsSubmitted bool        `db:"records_submitted"`
	IsArchived       bool        `db:"is_archived"`
	CreatedAt        time.Time   `db:"created_at"`
}

func (rec teacherRecord) teacher() teacher.Teacher {
	return teacher.Teacher{
		ID:               rec.ID,
		UserID:           rec.UserID,
		SchoolID:         rec.SchoolID.String,
		FullName:         rec.FullName,
		Email:            rec.Email,
		ProfilePic:       rec.ProfilePic,
		RecordsSubmitted: rec.RecordsSubmitted,
		IsArchived:       rec.IsArchived,
		CreatedAt:        rec.CreatedAt.UTC(),
	}
}

type teacherRepository struct {
	repository
}

var _ teacher.Repository = (*teacherRepository)(nil)

func NewTeacherRepository(exec core.DBExecutor) *teacherRepository {
	return &teacherRepository{repository{exec: exec}}
}

func (repo teacherRepository) CreateTeacher(ctx context.Context, tch teacher.Teacher, exec ...core.DBExecutor) (teacher.Teacher, error) {
	tch.ID = newID()
	_, err := repo.execContext(ctx, exec,
		`INSERT INTO teachers (`+teacherColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tch.ID, tch.UserID, null.NewString(tch.SchoolID, tch.SchoolID != ""), tch.FullName, tch.Email,
		tch.ProfilePic, tch.RecordsSubmitted, tch.IsArchived, tch.CreatedAt.UTC(),
	)
	if err != nil {
		return teacher.Teacher{}, errors.Wrap(err, "inserting teacher")
	}
	return tch, nil
}

func (repo teacherRepository) QueryTeachers(ctx context.Context, filter teacher.QueryFilter, exec ...core.DBExecutor) ([]teacher.Teacher, error) {
	var w where
	if filter.SchoolID != "" {
		if !validID(filter.SchoolID) {
			return []teacher.Teacher{}, nil
		}
		w.add("school_id = ?", filter.SchoolID)
	}
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		w.add("(fullname ILIKE ? OR email ILIKE ?)", val, val)
	}
	w.add("is_archived = ?", filter.Archived)
	if filter.RecordsSubmitted != nil {
		w.add("records_submitted = ?", *filter.RecordsSubmitted)
	}

	var recs []teacherRecord
	q := `SELECT ` + teacherColumns + ` FROM teachers` + w.String() + ` ORDER BY created_at`
	if err := repo.selectContext(ctx, exec, &recs, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying teachers")
	}
	teachers := make([]teacher.Teacher, 0, len(recs))
	for _, rec := range recs {
		teachers = append(teachers, rec.teacher())
	}
	return teachers, nil
}

func (repo teacherRepository) GetTeacher(ctx context.Context, filter teacher.GetFilter, exec ...core.DBExecutor) (teacher.Teacher, error) {
	var w where
	switch {
	case filter.ID != "":
		if !validID(filter.ID) {
			return teacher.Teacher{}, teacher.ErrNotFound
		}
		w.add("id = ?", filter.ID)
	case filter.UserID != "":
		if !validID(filter.UserID) {
			return teacher.Teacher{}, teacher.ErrNotFound
		}
		w.add("user_id = ?", filter.UserID)
	default:
		return teacher.Teacher{}, teacher.ErrNotFound
	}

	var recs []teacherRecord
	if err := repo.selectContext(ctx, exec, &recs, `SELECT `+teacherColumns+` FROM teachers`+w.String()+` LIMIT 1`, w.args...); err != nil {
		return teacher.Teacher{}, trapNoRowsErr(err, teacher.ErrNotFound, "finding teacher")
	}
	if len(recs) == 0 {
		return teacher.Teacher{}, teacher.ErrNotFound
	}
	return recs[0].teacher(), nil
}

func (repo teacherRepository) UpdateTeacher(ctx context.Context, tch teacher.Teacher, exec ...core.DBExecutor) (teacher.Teacher, error) {
	cnt, err := repo.execContext(ctx, exec,
		`UPDATE teachers SET school_id = ?, fullname = ?, email = ?, profile_pic = ?, records_submitted = ?, is_archived = ?
		WHERE id = ?`,
		null.NewString(tch.SchoolID, tch.SchoolID != ""), tch.FullName, tch.Email, tch.ProfilePic,
		tch.RecordsSubmitted, tch.IsArchived, tch.ID,
	)
	if err != nil {
		return teacher.Teacher{}, errors.Wrap(err, "updating teacher")
	}
	if cnt == 0 {
		return teacher.Teacher{}, teacher.ErrNotFound
	}
	return tch, nil
}

// DeleteTeacher relies on the foreign keys to clear the sections & subject assignments of the teacher.
func (repo teacherRepository) DeleteTeacher(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validID(id) {
		return teacher.ErrNotFound
	}
	if _, err := repo.execContext(ctx, exec, `DELETE FROM teachers WHERE id = ?`, id); err != nil {
		return errors.Wrap(err, "deleting teacher")
	}
	return nil
}

func (repo teacherRepository) UnlinkSchool(ctx context.Context, schoolID string, exec ...core.DBExecutor) (int, error) {
	if !validID(schoolID) {
		return 0, nil
	}
	cnt, err := repo.execContext(ctx, exec, `UPDATE teachers SET school_id = NULL WHERE school_id = ?`, schoolID)
	if err != nil {
		return 0, errors.Wrap(err, "unlinking teachers")
	}
	return cnt, nil
}

func (repo teacherRepository) CountTeachers(ctx context.Context, schoolID string, exec ...core.DBExecutor) (teacher.Counts, error) {
	var w where
	if schoolID != "" {
		if !validID(schoolID) {
			return teacher.Counts{}, nil
		}
		w.add("school_id = ?", schoolID)
	}

	var counts teacher.Counts
	q := `SELECT COUNT(*) FILTER (WHERE NOT is_archived), COUNT(*) FILTER (WHERE is_archived) FROM teachers` + w.String()
	err := repo.getExec(exec).QueryRowContext(ctx, rebind(q), w.args...).Scan(&counts.Active, &counts.Archived)
	if err != nil {
		return teacher.Counts{}, errors.Wrap(err, "counting teachers")
	}
	return counts, nil
}
