package inmemdb

import (
	"context"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/student"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CheckLRNUniqueness(_ context.Context, lrn string, excluded []student.Student, _ ...core.DBExecutor) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	excl := make(map[string]bool, len(excluded))
	for _, st := range excluded {
		excl[st.ID] = true
	}
	for _, st := range repo.db.students {
		if st.LRN == lrn && !excl[st.ID] {
			return student.ErrLRNExists
		}
	}
	return nil
}

func (repo *studentRepository) CreateStudent(_ context.Context, st student.Student, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	st.ID = newID()
	repo.db.students = append(repo.db.students, st)
	return st, nil
}

func (repo *studentRepository) QueryStudents(_ context.Context, filter student.QueryFilter, _ ...core.DBExecutor) ([]student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	filter.Clean()
	sectionIDs := stringSet(filter.SectionIDs)
	students := make([]student.Student, 0)
	for _, st := range repo.db.students {
		if (filter.SectionID != "" && st.SectionID != filter.SectionID) ||
			(filter.SectionIDs != nil && !sectionIDs[st.SectionID]) ||
			!filter.Matches(st.Name, st.LRN, st.Gender) {
			continue
		}
		students = append(students, st)
	}
	student.SortStudents(students, filter.Sort)
	return students, nil
}

func (repo *studentRepository) GetStudent(_ context.Context, id string, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, st := range repo.db.students {
		if st.ID == id {
			return st, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) UpdateStudent(_ context.Context, st student.Student, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for i := range repo.db.students {
		if repo.db.students[i].ID == st.ID {
			repo.db.students[i] = st
			return st, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) UpsertStudents(_ context.Context, schoolID string, students []student.Student, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var cnt int
	for _, st := range students {
		found := false
		for i, orig := range repo.db.students {
			if orig.LRN != st.LRN {
				continue
			}
			found = true
			if orig.SectionID != "" && repo.db.sectionSchool(orig.SectionID) != schoolID {
				break
			}
			st.ID = orig.ID
			st.CreatedAt = orig.CreatedAt
			repo.db.students[i] = st
			cnt++
			break
		}
		if !found {
			st.ID = newID()
			repo.db.students = append(repo.db.students, st)
			cnt++
		}
	}
	return cnt, nil
}

// sectionSchool returns the school ID of the section, or "" if it does not exist.
func (db *DB) sectionSchool(sectionID string) string {
	for _, sec := range db.sections {
		if sec.ID == sectionID {
			return sec.SchoolID
		}
	}
	return ""
}

func (repo *studentRepository) DeleteStudentsByID(_ context.Context, sectionID string, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	idSet := stringSet(ids)
	removed := make(map[string]bool)
	students := repo.db.students[:0]
	for _, st := range repo.db.students {
		if st.SectionID == sectionID && idSet[st.ID] {
			removed[st.ID] = true
			continue
		}
		students = append(students, st)
	}
	repo.db.students = students

	scores := repo.db.scores[:0]
	for _, sc := range repo.db.scores {
		if !removed[sc.StudentID] {
			scores = append(scores, sc)
		}
	}
	repo.db.scores = scores

	grades := repo.db.grades[:0]
	for _, g := range repo.db.grades {
		if !removed[g.StudentID] {
			grades = append(grades, g)
		}
	}
	repo.db.grades = grades
	return len(removed), nil
}
