package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/curriculum"
)

type curriculumRepository struct {
	db *DB
}

var _ curriculum.Repository = (*curriculumRepository)(nil)

func NewCurriculumRepository(db *DB) curriculum.Repository {
	return &curriculumRepository{db: db}
}

func (repo *curriculumRepository) CreateCurriculum(_ context.Context, cur curriculum.Curriculum, _ ...core.DBExecutor) (curriculum.Curriculum, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	cur.ID = newID()
	repo.db.curriculums = append(repo.db.curriculums, cur)
	return cur, nil
}

func (repo *curriculumRepository) QueryCurriculums(_ context.Context, schoolID string, _ ...core.DBExecutor) ([]curriculum.Curriculum, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	curs := make([]curriculum.Curriculum, 0)
	for _, cur := range repo.db.curriculums {
		if cur.SchoolID == schoolID {
			curs = append(curs, cur)
		}
	}
	sort.SliceStable(curs, func(i, j int) bool { return curs[i].Name < curs[j].Name })
	return curs, nil
}

func (repo *curriculumRepository) GetCurriculum(_ context.Context, id string, _ ...core.DBExecutor) (curriculum.Curriculum, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, cur := range repo.db.curriculums {
		if cur.ID == id {
			return cur, nil
		}
	}
	return curriculum.Curriculum{}, curriculum.ErrNotFound
}

func (repo *curriculumRepository) UpdateCurriculum(_ context.Context, cur curriculum.Curriculum, _ ...core.DBExecutor) (curriculum.Curriculum, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for i := range repo.db.curriculums {
		if repo.db.curriculums[i].ID == cur.ID {
			repo.db.curriculums[i] = cur
			return cur, nil
		}
	}
	return curriculum.Curriculum{}, curriculum.ErrNotFound
}

func (repo *curriculumRepository) DeleteCurriculum(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	curs := repo.db.curriculums[:0]
	for _, cur := range repo.db.curriculums {
		if cur.ID != id {
			curs = append(curs, cur)
		}
	}
	repo.db.curriculums = curs

	for i := range repo.db.sections {
		if repo.db.sections[i].CurriculumID == id {
			repo.db.sections[i].CurriculumID = ""
		}
	}
	return nil
}
