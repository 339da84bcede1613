// Package student manages section rosters.
package student

import (
	"bytes"
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
)

var (
	ErrNotFound  = core.NewNotFoundError("student not found")
	ErrLRNExists = errors.New("a student with this LRN already exists")
)

type (
	Repository interface {
		// CheckLRNUniqueness returns ErrLRNExists if another student (not in excluded) has this LRN.
		CheckLRNUniqueness(ctx context.Context, lrn string, excluded []Student, exec ...core.DBExecutor) error
		CreateStudent(ctx context.Context, st Student, exec ...core.DBExecutor) (Student, error)
		// QueryStudents applies AND operation on the set QueryFilter fields and sorts by QueryFilter.Sort.
		QueryStudents(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Student, error)
		GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error)
		UpdateStudent(ctx context.Context, st Student, exec ...core.DBExecutor) (Student, error)
		// UpsertStudents inserts the students, updating the existing ones matched by LRN.
		// Existing students enrolled in a section of another school are left untouched & not counted.
		UpsertStudents(ctx context.Context, schoolID string, students []Student, exec ...core.DBExecutor) (int, error)
		DeleteStudentsByID(ctx context.Context, sectionID string, ids []string, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		CheckLRNUniqueness(ctx context.Context, lrn string, excluded ...Student) error
		Create(ctx context.Context, sectionID string, form Form) (Student, error)
		Query(ctx context.Context, filter QueryFilter) ([]Student, error)
		GetByID(ctx context.Context, id string) (Student, error)
		Update(ctx context.Context, st Student, form Form) (Student, error)
		// Delete deletes the students of the section among ids.
		Delete(ctx context.Context, sectionID string, ids ...string) (int, error)
		// Import upserts the students of a CSV or XLSX roster into the section.
		Import(ctx context.Context, schoolID, sectionID, filename string, content []byte) (ImportResult, error)
	}

	service struct {
		db   core.DB
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository) Service {
	return &service{db: db, repo: repo}
}

func (svc *service) CheckLRNUniqueness(ctx context.Context, lrn string, excluded ...Student) error {
	if err := svc.repo.CheckLRNUniqueness(ctx, lrn, excluded); err != nil {
		if err == ErrLRNExists {
			return core.NewValidationError(err, core.FieldError{Field: "lrn", Error: err.Error()})
		}
		return errors.Wrap(err, "checking LRN uniqueness")
	}
	return nil
}

func (svc *service) Create(ctx context.Context, sectionID string, form Form) (Student, error) {
	now := time.Now().UTC()
	st := form.apply(Student{SectionID: sectionID, CreatedAt: now, UpdatedAt: now})
	return svc.repo.CreateStudent(ctx, st)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter) ([]Student, error) {
	filter.Clean()
	return svc.repo.QueryStudents(ctx, filter)
}

func (svc *service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *service) Update(ctx context.Context, st Student, form Form) (Student, error) {
	st = form.apply(st)
	st.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateStudent(ctx, st)
}

func (svc *service) Delete(ctx context.Context, sectionID string, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return svc.repo.DeleteStudentsByID(ctx, sectionID, ids)
}

func (svc *service) Import(ctx context.Context, schoolID, sectionID, filename string, content []byte) (ImportResult, error) {
	if len(content) == 0 {
		return ImportResult{}, ErrEmptyFile
	}
	students, skipped, err := ParseFile(filename, bytes.NewReader(content))
	if err != nil {
		return ImportResult{}, err
	}

	now := time.Now().UTC()
	for i := range students {
		students[i].SectionID = sectionID
		students[i].CreatedAt = now
		students[i].UpdatedAt = now
	}

	students = dedupeByLRN(students)
	var imported int
	err = core.Transactional(ctx, svc.db, func(exec ...core.DBExecutor) error {
		var err error
		imported, err = svc.repo.UpsertStudents(ctx, schoolID, students, exec...)
		return errors.Wrap(err, "upserting students")
	})
	if err != nil {
		return ImportResult{}, err
	}
	// LRNs enrolled in another school
	skipped += len(students) - imported
	return ImportResult{Imported: imported, Skipped: skipped}, nil
}

// dedupeByLRN keeps the last occurrence of each LRN. A single upsert statement cannot touch a row twice.
func dedupeByLRN(students []Student) []Student {
	idx := make(map[string]int, len(students))
	deduped := make([]Student, 0, len(students))
	for _, st := range students {
		if i, ok := idx[st.LRN]; ok {
			deduped[i] = st
			continue
		}
		idx[st.LRN] = len(deduped)
		deduped = append(deduped, st)
	}
	return deduped
}
