package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/schoolyear"
)

type schoolYearRepository struct {
	db *DB
}

var _ schoolyear.Repository = (*schoolYearRepository)(nil)

func NewSchoolYearRepository(db *DB) schoolyear.Repository {
	return &schoolYearRepository{db: db}
}

func (repo *schoolYearRepository) CreateSchoolYear(_ context.Context, sy schoolyear.SchoolYear, _ ...core.DBExecutor) (schoolyear.SchoolYear, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sy.ID = newID()
	repo.db.schoolYears = append(repo.db.schoolYears, sy)
	return sy, nil
}

func (repo *schoolYearRepository) QuerySchoolYears(_ context.Context, schoolID string, _ ...core.DBExecutor) ([]schoolyear.SchoolYear, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	years := make([]schoolyear.SchoolYear, 0)
	for _, sy := range repo.db.schoolYears {
		if sy.SchoolID == schoolID {
			years = append(years, sy)
		}
	}
	// ISO dates sort lexically
	sort.SliceStable(years, func(i, j int) bool { return years[i].StartDate < years[j].StartDate })
	return years, nil
}

func (repo *schoolYearRepository) GetSchoolYear(_ context.Context, id string, _ ...core.DBExecutor) (schoolyear.SchoolYear, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, sy := range repo.db.schoolYears {
		if sy.ID == id {
			return sy, nil
		}
	}
	return schoolyear.SchoolYear{}, schoolyear.ErrNotFound
}

func (repo *schoolYearRepository) GetActiveSchoolYear(_ context.Context, schoolID string, _ ...core.DBExecutor) (schoolyear.SchoolYear, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, sy := range repo.db.schoolYears {
		if sy.SchoolID == schoolID && sy.IsActive {
			return sy, nil
		}
	}
	return schoolyear.SchoolYear{}, schoolyear.ErrNotFound
}

func (repo *schoolYearRepository) SetActive(_ context.Context, schoolID, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	found := false
	for _, sy := range repo.db.schoolYears {
		if sy.ID == id && sy.SchoolID == schoolID {
			found = true
			break
		}
	}
	if !found {
		return schoolyear.ErrNotFound
	}
	for i, sy := range repo.db.schoolYears {
		if sy.SchoolID == schoolID {
			repo.db.schoolYears[i].IsActive = sy.ID == id
		}
	}
	return nil
}

// DeleteSchoolYear also deletes the sections of the school year.
func (repo *schoolYearRepository) DeleteSchoolYear(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	years := repo.db.schoolYears[:0]
	for _, sy := range repo.db.schoolYears {
		if sy.ID != id {
			years = append(years, sy)
		}
	}
	repo.db.schoolYears = years

	var secIDs []string
	for _, sec := range repo.db.sections {
		if sec.SchoolYearID == id {
			secIDs = append(secIDs, sec.ID)
		}
	}
	for _, secID := range secIDs {
		repo.db.deleteSection(secID)
	}
	return nil
}
