package inmemdb

import (
	"context"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/teacher"
)

type teacherRepository struct {
	db *DB
}

var _ teacher.Repository = (*teacherRepository)(nil)

func NewTeacherRepository(db *DB) teacher.Repository {
	return &teacherRepository{db: db}
}

func (repo *teacherRepository) CreateTeacher(_ context.Context, tch teacher.Teacher, _ ...core.DBExecutor) (teacher.Teacher, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	tch.ID = newID()
	repo.db.teachers = append(repo.db.teachers, tch)
	return tch, nil
}

func (repo *teacherRepository) QueryTeachers(_ context.Context, filter teacher.QueryFilter, _ ...core.DBExecutor) ([]teacher.Teacher, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	teachers := make([]teacher.Teacher, 0)
	for _, tch := range repo.db.teachers {
		if filter.SchoolID != "" && tch.SchoolID != filter.SchoolID {
			continue
		}
		if filter.Search != "" && !containsFold(tch.FullName, filter.Search) && !containsFold(tch.Email, filter.Search) {
			continue
		}
		if tch.IsArchived != filter.Archived {
			continue
		}
		if filter.RecordsSubmitted != nil && tch.RecordsSubmitted != *filter.RecordsSubmitted {
			continue
		}
		teachers = append(teachers, tch)
	}
	return teachers, nil
}

func (repo *teacherRepository) GetTeacher(_ context.Context, filter teacher.GetFilter, _ ...core.DBExecutor) (teacher.Teacher, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, tch := range repo.db.teachers {
		if (filter.ID != "" && tch.ID == filter.ID) || (filter.ID == "" && filter.UserID != "" && tch.UserID == filter.UserID) {
			return tch, nil
		}
	}
	return teacher.Teacher{}, teacher.ErrNotFound
}

func (repo *teacherRepository) UpdateTeacher(_ context.Context, tch teacher.Teacher, _ ...core.DBExecutor) (teacher.Teacher, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for i := range repo.db.teachers {
		if repo.db.teachers[i].ID == tch.ID {
			repo.db.teachers[i] = tch
			return tch, nil
		}
	}
	return teacher.Teacher{}, teacher.ErrNotFound
}

func (repo *teacherRepository) DeleteTeacher(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.deleteTeacher(id)
	return nil
}

// deleteTeacher removes the teacher and clears its advisories & subject assignments. The lock must be held.
func (db *DB) deleteTeacher(id string) {
	teachers := db.teachers[:0]
	for _, tch := range db.teachers {
		if tch.ID != id {
			teachers = append(teachers, tch)
		}
	}
	db.teachers = teachers

	for i := range db.sections {
		if db.sections[i].AdviserID == id {
			db.sections[i].AdviserID = ""
		}
	}
	for i := range db.assignments {
		if db.assignments[i].TeacherID == id {
			db.assignments[i].TeacherID = ""
		}
	}
}

func (repo *teacherRepository) UnlinkSchool(_ context.Context, schoolID string, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var cnt int
	for i := range repo.db.teachers {
		if repo.db.teachers[i].SchoolID == schoolID {
			repo.db.teachers[i].SchoolID = ""
			cnt++
		}
	}
	return cnt, nil
}

func (repo *teacherRepository) CountTeachers(_ context.Context, schoolID string, _ ...core.DBExecutor) (teacher.Counts, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var counts teacher.Counts
	for _, tch := range repo.db.teachers {
		if schoolID != "" && tch.SchoolID != schoolID {
			continue
		}
		if tch.IsArchived {
			counts.Archived++
		} else {
			counts.Active++
		}
	}
	return counts, nil
}
