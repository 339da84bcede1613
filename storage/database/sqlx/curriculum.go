package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/curriculum"
)

type curriculumRecord struct {
	ID       string `db:"id"`
	SchoolID string `db:"school_id"`
	Name     string `db:"name"`
}

type curriculumRepository struct {
	repository
}

var _ curriculum.Repository = (*curriculumRepository)(nil)

func NewCurriculumRepository(exec core.DBExecutor) *curriculumRepository {
	return &curriculumRepository{repository{exec: exec}}
}

func (repo curriculumRepository) CreateCurriculum(ctx context.Context, cur curriculum.Curriculum, exec ...core.DBExecutor) (curriculum.Curriculum, error) {
	cur.ID = newID()
	_, err := repo.execContext(ctx, exec,
		`INSERT INTO curriculums (id, school_id, name, created_at) VALUES (?, ?, ?, ?)`,
		cur.ID, cur.SchoolID, cur.Name, time.Now().UTC(),
	)
	if err != nil {
		return curriculum.Curriculum{}, errors.Wrap(err, "inserting curriculum")
	}
	return cur, nil
}

func (repo curriculumRepository) QueryCurriculums(ctx context.Context, schoolID string, exec ...core.DBExecutor) ([]curriculum.Curriculum, error) {
	if !validID(schoolID) {
		return []curriculum.Curriculum{}, nil
	}
	var recs []curriculumRecord
	q := `SELECT id, school_id, name FROM curriculums WHERE school_id = ? ORDER BY name`
	if err := repo.selectContext(ctx, exec, &recs, q, schoolID); err != nil {
		return nil, errors.Wrap(err, "querying curriculums")
	}
	curs := make([]curriculum.Curriculum, 0, len(recs))
	for _, rec := range recs {
		curs = append(curs, curriculum.Curriculum(rec))
	}
	return curs, nil
}

func (repo curriculumRepository) GetCurriculum(ctx context.Context, id string, exec ...core.DBExecutor) (curriculum.Curriculum, error) {
	if !validID(id) {
		return curriculum.Curriculum{}, curriculum.ErrNotFound
	}
	var recs []curriculumRecord
	if err := repo.selectContext(ctx, exec, &recs, `SELECT id, school_id, name FROM curriculums WHERE id = ?`, id); err != nil {
		return curriculum.Curriculum{}, trapNoRowsErr(err, curriculum.ErrNotFound, "finding curriculum")
	}
	if len(recs) == 0 {
		return curriculum.Curriculum{}, curriculum.ErrNotFound
	}
	return curriculum.Curriculum(recs[0]), nil
}

func (repo curriculumRepository) UpdateCurriculum(ctx context.Context, cur curriculum.Curriculum, exec ...core.DBExecutor) (curriculum.Curriculum, error) {
	cnt, err := repo.execContext(ctx, exec, `UPDATE curriculums SET name = ? WHERE id = ?`, cur.Name, cur.ID)
	if err != nil {
		return curriculum.Curriculum{}, errors.Wrap(err, "updating curriculum")
	}
	if cnt == 0 {
		return curriculum.Curriculum{}, curriculum.ErrNotFound
	}
	return cur, nil
}

func (repo curriculumRepository) DeleteCurriculum(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validID(id) {
		return curriculum.ErrNotFound
	}
	if _, err := repo.execContext(ctx, exec, `DELETE FROM curriculums WHERE id = ?`, id); err != nil {
		return errors.Wrap(err, "deleting curriculum")
	}
	return nil
}
