package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/school"
)

const schoolColumns = `id, name, address, code, created_at`

type schoolRecord struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Address   string    `db:"address"`
	Code      string    `db:"code"`
	CreatedAt time.Time `db:"created_at"`
}

func (rec schoolRecord) school() school.School {
	return school.School{
		ID:        rec.ID,
		Name:      rec.Name,
		Address:   rec.Address,
		Code:      rec.Code,
		CreatedAt: rec.CreatedAt.UTC(),
	}
}

type schoolRepository struct {
	repository
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(exec core.DBExecutor) *schoolRepository {
	return &schoolRepository{repository{exec: exec}}
}

func (repo schoolRepository) CheckCodeUniqueness(ctx context.Context, code string, excluded []school.School, exec ...core.DBExecutor) error {
	var w where
	w.add("LOWER(code) = LOWER(?)", code)
	if len(excluded) > 0 {
		ids := make([]string, 0, len(excluded))
		for _, sch := range excluded {
			ids = append(ids, sch.ID)
		}
		if ids = validIDs(ids); len(ids) > 0 {
			w.add("id NOT IN (?)", ids)
		}
	}

	cnt, err := repo.countContext(ctx, exec, `SELECT COUNT(*) FROM schools`+w.String(), w.args...)
	if err != nil {
		return errors.Wrap(err, "checking school code uniqueness")
	}
	if cnt > 0 {
		return school.ErrCodeExists
	}
	return nil
}

func (repo schoolRepository) CreateSchool(ctx context.Context, sch school.School, exec ...core.DBExecutor) (school.School, error) {
	sch.ID = newID()
	_, err := repo.execContext(ctx, exec,
		`INSERT INTO schools (`+schoolColumns+`, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		sch.ID, sch.Name, sch.Address, sch.Code, sch.CreatedAt.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return school.School{}, errors.Wrap(err, "inserting school")
	}
	return sch, nil
}

func (repo schoolRepository) QuerySchools(ctx context.Context, exec ...core.DBExecutor) ([]school.School, error) {
	var recs []schoolRecord
	if err := repo.selectContext(ctx, exec, &recs, `SELECT `+schoolColumns+` FROM schools ORDER BY name`); err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	schools := make([]school.School, 0, len(recs))
	for _, rec := range recs {
		schools = append(schools, rec.school())
	}
	return schools, nil
}

func (repo schoolRepository) GetSchool(ctx context.Context, filter school.GetFilter, exec ...core.DBExecutor) (school.School, error) {
	var w where
	switch {
	case filter.ID != "":
		if !validID(filter.ID) {
			return school.School{}, school.ErrNotFound
		}
		w.add("id = ?", filter.ID)
	case filter.Code != "":
		w.add("LOWER(code) = LOWER(?)", filter.Code)
	default:
		return school.School{}, school.ErrNotFound
	}

	var recs []schoolRecord
	if err := repo.selectContext(ctx, exec, &recs, `SELECT `+schoolColumns+` FROM schools`+w.String()+` LIMIT 1`, w.args...); err != nil {
		return school.School{}, trapNoRowsErr(err, school.ErrNotFound, "finding school")
	}
	if len(recs) == 0 {
		return school.School{}, school.ErrNotFound
	}
	return recs[0].school(), nil
}

func (repo schoolRepository) UpdateSchool(ctx context.Context, sch school.School, exec ...core.DBExecutor) (school.School, error) {
	cnt, err := repo.execContext(ctx, exec,
		`UPDATE schools SET name = ?, address = ?, code = ?, updated_at = ? WHERE id = ?`,
		sch.Name, sch.Address, sch.Code, time.Now().UTC(), sch.ID,
	)
	if err != nil {
		return school.School{}, errors.Wrap(err, "updating school")
	}
	if cnt == 0 {
		return school.School{}, school.ErrNotFound
	}
	return sch, nil
}

func (repo schoolRepository) DeleteSchool(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validID(id) {
		return school.ErrNotFound
	}
	if _, err := repo.execContext(ctx, exec, `DELETE FROM schools WHERE id = ?`, id); err != nil {
		return errors.Wrap(err, "deleting school")
	}
	return nil
}
