package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/schoolyear"
)

const schoolYearColumns = `id, school_id, sy_label, start_date, end_date, is_active`

type schoolYearRecord struct {
	ID        string    `db:"id"`
	SchoolID  string    `db:"school_id"`
	Label     string    `db:"sy_label"`
	StartDate time.Time `db:"start_date"`
	EndDate   time.Time `db:"end_date"`
	IsActive  bool      `db:"is_active"`
}

func (rec schoolYearRecord) schoolYear() schoolyear.SchoolYear {
	return schoolyear.SchoolYear{
		ID:        rec.ID,
		SchoolID:  rec.SchoolID,
		Label:     rec.Label,
		StartDate: rec.StartDate.Format(core.DateLayout),
		EndDate:   rec.EndDate.Format(core.DateLayout),
		IsActive:  rec.IsActive,
	}
}

type schoolYearRepository struct {
	repository
}

var _ schoolyear.Repository = (*schoolYearRepository)(nil)

func NewSchoolYearRepository(exec core.DBExecutor) *schoolYearRepository {
	return &schoolYearRepository{repository{exec: exec}}
}

func (repo schoolYearRepository) CreateSchoolYear(ctx context.Context, sy schoolyear.SchoolYear, exec ...core.DBExecutor) (schoolyear.SchoolYear, error) {
	sy.ID = newID()
	_, err := repo.execContext(ctx, exec,
		`INSERT INTO school_years (`+schoolYearColumns+`, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sy.ID, sy.SchoolID, sy.Label, sy.StartDate, sy.EndDate, sy.IsActive, time.Now().UTC(),
	)
	if err != nil {
		return schoolyear.SchoolYear{}, errors.Wrap(err, "inserting school year")
	}
	return sy, nil
}

func (repo schoolYearRepository) query(ctx context.Context, exec []core.DBExecutor, w where, suffix string) ([]schoolyear.SchoolYear, error) {
	var recs []schoolYearRecord
	if err := repo.selectContext(ctx, exec, &recs, `SELECT `+schoolYearColumns+` FROM school_years`+w.String()+suffix, w.args...); err != nil {
		return nil, err
	}
	years := make([]schoolyear.SchoolYear, 0, len(recs))
	for _, rec := range recs {
		years = append(years, rec.schoolYear())
	}
	return years, nil
}

func (repo schoolYearRepository) QuerySchoolYears(ctx context.Context, schoolID string, exec ...core.DBExecutor) ([]schoolyear.SchoolYear, error) {
	if !validID(schoolID) {
		return []schoolyear.SchoolYear{}, nil
	}
	var w where
	w.add("school_id = ?", schoolID)
	years, err := repo.query(ctx, exec, w, ` ORDER BY start_date`)
	return years, errors.Wrap(err, "querying school years")
}

func (repo schoolYearRepository) GetSchoolYear(ctx context.Context, id string, exec ...core.DBExecutor) (schoolyear.SchoolYear, error) {
	if !validID(id) {
		return schoolyear.SchoolYear{}, schoolyear.ErrNotFound
	}
	var w where
	w.add("id = ?", id)
	years, err := repo.query(ctx, exec, w, ` LIMIT 1`)
	if err != nil {
		return schoolyear.SchoolYear{}, trapNoRowsErr(err, schoolyear.ErrNotFound, "finding school year")
	}
	if len(years) == 0 {
		return schoolyear.SchoolYear{}, schoolyear.ErrNotFound
	}
	return years[0], nil
}

func (repo schoolYearRepository) GetActiveSchoolYear(ctx context.Context, schoolID string, exec ...core.DBExecutor) (schoolyear.SchoolYear, error) {
	if !validID(schoolID) {
		return schoolyear.SchoolYear{}, schoolyear.ErrNotFound
	}
	var w where
	w.add("school_id = ?", schoolID)
	w.add("is_active")
	years, err := repo.query(ctx, exec, w, ` LIMIT 1`)
	if err != nil {
		return schoolyear.SchoolYear{}, errors.Wrap(err, "finding active school year")
	}
	if len(years) == 0 {
		return schoolyear.SchoolYear{}, schoolyear.ErrNotFound
	}
	return years[0], nil
}

func (repo schoolYearRepository) SetActive(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) error {
	if !validID(schoolID) || !validID(id) {
		return schoolyear.ErrNotFound
	}
	// deactivate first: at most one active row per school is enforced by a unique index
	if _, err := repo.execContext(ctx, exec,
		`UPDATE school_years SET is_active = FALSE WHERE school_id = ? AND is_active AND id <> ?`, schoolID, id,
	); err != nil {
		return errors.Wrap(err, "deactivating school years")
	}
	cnt, err := repo.execContext(ctx, exec, `UPDATE school_years SET is_active = TRUE WHERE id = ? AND school_id = ?`, id, schoolID)
	if err != nil {
		return errors.Wrap(err, "activating school year")
	}
	if cnt == 0 {
		return schoolyear.ErrNotFound
	}
	return nil
}

func (repo schoolYearRepository) DeleteSchoolYear(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validID(id) {
		return schoolyear.ErrNotFound
	}
	if _, err := repo.execContext(ctx, exec, `DELETE FROM school_years WHERE id = ?`, id); err != nil {
		return errors.Wrap(err, "deleting school year")
	}
	return nil
}
