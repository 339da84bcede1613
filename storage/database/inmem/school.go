package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/school"
)

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) CheckCodeUniqueness(_ context.Context, code string, excluded []school.School, _ ...core.DBExecutor) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	excl := make(map[string]bool, len(excluded))
	for _, sch := range excluded {
		excl[sch.ID] = true
	}
	for _, sch := range repo.db.schools {
		if strings.EqualFold(sch.Code, code) && !excl[sch.ID] {
			return school.ErrCodeExists
		}
	}
	return nil
}

func (repo *schoolRepository) CreateSchool(_ context.Context, sch school.School, _ ...core.DBExecutor) (school.School, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sch.ID = newID()
	repo.db.schools = append(repo.db.schools, sch)
	return sch, nil
}

func (repo *schoolRepository) QuerySchools(_ context.Context, _ ...core.DBExecutor) ([]school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	schools := make([]school.School, len(repo.db.schools))
	copy(schools, repo.db.schools)
	sort.SliceStable(schools, func(i, j int) bool { return schools[i].Name < schools[j].Name })
	return schools, nil
}

func (repo *schoolRepository) GetSchool(_ context.Context, filter school.GetFilter, _ ...core.DBExecutor) (school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, sch := range repo.db.schools {
		if (filter.ID != "" && sch.ID == filter.ID) || (filter.ID == "" && filter.Code != "" && strings.EqualFold(sch.Code, filter.Code)) {
			return sch, nil
		}
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) UpdateSchool(_ context.Context, sch school.School, _ ...core.DBExecutor) (school.School, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for i := range repo.db.schools {
		if repo.db.schools[i].ID == sch.ID {
			repo.db.schools[i] = sch
			return sch, nil
		}
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) DeleteSchool(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	schools := repo.db.schools[:0]
	for _, sch := range repo.db.schools {
		if sch.ID != id {
			schools = append(schools, sch)
		}
	}
	repo.db.schools = schools
	return nil
}
