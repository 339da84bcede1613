package inmemdb

import (
	"context"
	"strings"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/grading"
)

type gradingRepository struct {
	db *DB
}

var _ grading.Repository = (*gradingRepository)(nil)

func NewGradingRepository(db *DB) grading.Repository {
	return &gradingRepository{db: db}
}

func matchScore(sc grading.Score, filter grading.ScoreFilter) bool {
	return (filter.SubjectAssignmentID == "" || sc.SubjectAssignmentID == filter.SubjectAssignmentID) &&
		(filter.Quarter == "" || sc.Quarter == filter.Quarter) &&
		(filter.ActivityName == "" || strings.EqualFold(sc.ActivityName, filter.ActivityName))
}

func (repo *gradingRepository) QueryScores(_ context.Context, filter grading.ScoreFilter, _ ...core.DBExecutor) ([]grading.Score, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	scores := make([]grading.Score, 0)
	for _, sc := range repo.db.scores {
		if matchScore(sc, filter) {
			scores = append(scores, copyScore(sc))
		}
	}
	return scores, nil
}

func copyScore(sc grading.Score) grading.Score {
	if sc.Score != nil {
		val := *sc.Score
		sc.Score = &val
	}
	return sc
}

func (repo *gradingRepository) UpsertScores(_ context.Context, scores []grading.Score, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, sc := range scores {
		sc = copyScore(sc)
		found := false
		for i, orig := range repo.db.scores {
			if orig.StudentID == sc.StudentID && orig.SubjectAssignmentID == sc.SubjectAssignmentID &&
				orig.ActivityName == sc.ActivityName && orig.Quarter == sc.Quarter {
				sc.ID = orig.ID
				repo.db.scores[i] = sc
				found = true
				break
			}
		}
		if !found {
			sc.ID = newID()
			repo.db.scores = append(repo.db.scores, sc)
		}
	}
	return len(scores), nil
}

func (repo *gradingRepository) DeleteScores(_ context.Context, filter grading.ScoreFilter, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if filter == (grading.ScoreFilter{}) {
		return 0, nil
	}
	scores := repo.db.scores[:0]
	for _, sc := range repo.db.scores {
		if !matchScore(sc, filter) {
			scores = append(scores, sc)
		}
	}
	cnt := len(repo.db.scores) - len(scores)
	repo.db.scores = scores
	return cnt, nil
}

func (repo *gradingRepository) QueryGrades(_ context.Context, filter grading.GradeFilter, _ ...core.DBExecutor) ([]grading.Grade, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	saIDs := stringSet(filter.SubjectAssignmentIDs)
	stIDs := stringSet(filter.StudentIDs)
	grades := make([]grading.Grade, 0)
	for _, g := range repo.db.grades {
		if (filter.SubjectAssignmentIDs != nil && !saIDs[g.SubjectAssignmentID]) ||
			(filter.StudentIDs != nil && !stIDs[g.StudentID]) ||
			(filter.Quarter != "" && g.Quarter != filter.Quarter) ||
			(filter.SchoolYearID != "" && g.SchoolYearID != filter.SchoolYearID) {
			continue
		}
		grades = append(grades, g)
	}
	return grades, nil
}

func (repo *gradingRepository) UpsertGrades(_ context.Context, grades []grading.Grade, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, g := range grades {
		found := false
		for i, orig := range repo.db.grades {
			if orig.StudentID == g.StudentID && orig.SubjectAssignmentID == g.SubjectAssignmentID &&
				orig.Quarter == g.Quarter && orig.SchoolYearID == g.SchoolYearID {
				g.ID = orig.ID
				repo.db.grades[i] = g
				found = true
				break
			}
		}
		if !found {
			g.ID = newID()
			repo.db.grades = append(repo.db.grades, g)
		}
	}
	return len(grades), nil
}

func (repo *gradingRepository) GetWeights(_ context.Context, schoolID string, _ ...core.DBExecutor) (grading.Weights, bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	w, ok := repo.db.weights[schoolID]
	return w, ok, nil
}

func (repo *gradingRepository) SaveWeights(_ context.Context, schoolID string, w grading.Weights, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	w.Configured = true
	repo.db.weights[schoolID] = w
	return nil
}
