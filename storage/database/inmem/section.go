package inmemdb

import (
	"context"
	"sort"
	"strconv"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/section"
)

type sectionRepository struct {
	db *DB
}

var _ section.Repository = (*sectionRepository)(nil)

func NewSectionRepository(db *DB) section.Repository {
	return &sectionRepository{db: db}
}

func (repo *sectionRepository) CreateSection(_ context.Context, sec section.Section, _ ...core.DBExecutor) (section.Section, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sec.ID = newID()
	repo.db.sections = append(repo.db.sections, sec)
	return sec, nil
}

func (repo *sectionRepository) QuerySections(_ context.Context, filter section.QueryFilter, _ ...core.DBExecutor) ([]section.Section, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sections := make([]section.Section, 0)
	for _, sec := range repo.db.sections {
		if (filter.SchoolID != "" && sec.SchoolID != filter.SchoolID) ||
			(filter.SchoolYearID != "" && sec.SchoolYearID != filter.SchoolYearID) ||
			(filter.AdviserID != "" && sec.AdviserID != filter.AdviserID) {
			continue
		}
		sections = append(sections, sec)
	}
	sort.SliceStable(sections, func(i, j int) bool {
		gi, _ := strconv.Atoi(sections[i].GradeLevel)
		gj, _ := strconv.Atoi(sections[j].GradeLevel)
		if gi != gj {
			return gi < gj
		}
		return sections[i].Name < sections[j].Name
	})
	return sections, nil
}

func (repo *sectionRepository) GetSection(_ context.Context, id string, _ ...core.DBExecutor) (section.Section, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, sec := range repo.db.sections {
		if sec.ID == id {
			return sec, nil
		}
	}
	return section.Section{}, section.ErrNotFound
}

func (repo *sectionRepository) UpdateSection(_ context.Context, sec section.Section, _ ...core.DBExecutor) (section.Section, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for i := range repo.db.sections {
		if repo.db.sections[i].ID == sec.ID {
			repo.db.sections[i] = sec
			return sec, nil
		}
	}
	return section.Section{}, section.ErrNotFound
}

func (repo *sectionRepository) DeleteSection(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.deleteSection(id)
	return nil
}

// deleteSection removes the section & its subject assignments (with their scores & grades) and detaches its
// students. The lock must be held.
func (db *DB) deleteSection(id string) {
	sections := db.sections[:0]
	for _, sec := range db.sections {
		if sec.ID != id {
			sections = append(sections, sec)
		}
	}
	db.sections = sections
	db.deleteSectionAssignments(id)

	for i := range db.students {
		if db.students[i].SectionID == id {
			db.students[i].SectionID = ""
		}
	}
}

func (db *DB) deleteSectionAssignments(sectionID string) {
	removed := make(map[string]bool)
	assignments := db.assignments[:0]
	for _, sa := range db.assignments {
		if sa.SectionID == sectionID {
			removed[sa.ID] = true
			continue
		}
		assignments = append(assignments, sa)
	}
	db.assignments = assignments
	if len(removed) == 0 {
		return
	}

	scores := db.scores[:0]
	for _, sc := range db.scores {
		if !removed[sc.SubjectAssignmentID] {
			scores = append(scores, sc)
		}
	}
	db.scores = scores

	grades := db.grades[:0]
	for _, g := range db.grades {
		if !removed[g.SubjectAssignmentID] {
			grades = append(grades, g)
		}
	}
	db.grades = grades
}

func (repo *sectionRepository) CreateAssignments(_ context.Context, assignments []section.SubjectAssignment, _ ...core.DBExecutor) ([]section.SubjectAssignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	created := make([]section.SubjectAssignment, 0, len(assignments))
	for _, sa := range assignments {
		sa.ID = newID()
		repo.db.assignments = append(repo.db.assignments, sa)
		created = append(created, sa)
	}
	return created, nil
}

func (repo *sectionRepository) QueryAssignments(_ context.Context, filter section.AssignmentFilter, _ ...core.DBExecutor) ([]section.SubjectAssignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sectionIDs := stringSet(filter.SectionIDs)
	assignments := make([]section.SubjectAssignment, 0)
	for _, sa := range repo.db.assignments {
		if (filter.SectionIDs != nil && !sectionIDs[sa.SectionID]) ||
			(filter.TeacherID != "" && sa.TeacherID != filter.TeacherID) ||
			(filter.SchoolYearID != "" && sa.SchoolYearID != filter.SchoolYearID) {
			continue
		}
		assignments = append(assignments, sa)
	}

	positions := make(map[string]int, len(section.Subjects))
	for i, s := range section.Subjects {
		positions[s] = i
	}
	sort.SliceStable(assignments, func(i, j int) bool {
		if assignments[i].SectionID != assignments[j].SectionID {
			return assignments[i].SectionID < assignments[j].SectionID
		}
		return positions[assignments[i].SubjectName] < positions[assignments[j].SubjectName]
	})
	return assignments, nil
}

func (repo *sectionRepository) GetAssignment(_ context.Context, id string, _ ...core.DBExecutor) (section.SubjectAssignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, sa := range repo.db.assignments {
		if sa.ID == id {
			return sa, nil
		}
	}
	return section.SubjectAssignment{}, section.ErrAssignmentNotFound
}

func (repo *sectionRepository) UpsertAssignments(_ context.Context, assignments []section.SubjectAssignment, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, sa := range assignments {
		found := false
		for i, orig := range repo.db.assignments {
			if orig.SectionID == sa.SectionID && orig.SubjectName == sa.SubjectName {
				repo.db.assignments[i].TeacherID = sa.TeacherID
				repo.db.assignments[i].SchoolYearID = sa.SchoolYearID
				found = true
				break
			}
		}
		if !found {
			sa.ID = newID()
			repo.db.assignments = append(repo.db.assignments, sa)
		}
	}
	return nil
}
