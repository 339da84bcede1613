package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/strmangle"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/grading"
)

const (
	scoreColumns = `id, student_id, subject_assignment_id, activity_type, activity_name, score, max_score, quarter,
	school_id, updated_at`
	scoreNCols = 10

	gradeColumns = `id, student_id, subject_assignment_id, quarter, school_year_id, written_work, performance_task,
	quarterly_assessment, final_grade, school_id, updated_at`
	gradeNCols = 11
)

type scoreRecord struct {
	ID                  string       `db:"id"`
	StudentID           string       `db:"student_id"`
	SubjectAssignmentID string       `db:"subject_assignment_id"`
	ActivityType        string       `db:"activity_type"`
	ActivityName        string       `db:"activity_name"`
	Score               null.Float64 `db:"score"`
	MaxScore            float64      `db:"max_score"`
	Quarter             string       `db:"quarter"`
	SchoolID            null.String  `db:"school_id"`
	UpdatedAt           time.Time    `db:"updated_at"`
}

func (rec scoreRecord) score() grading.Score {
	return grading.Score{
		ID:                  rec.ID,
		StudentID:           rec.StudentID,
		SubjectAssignmentID: rec.SubjectAssignmentID,
		ActivityType:        rec.ActivityType,
		ActivityName:        rec.ActivityName,
		Score:               rec.Score.Ptr(),
		MaxScore:            rec.MaxScore,
		Quarter:             rec.Quarter,
		SchoolID:            rec.SchoolID.String,
		UpdatedAt:           rec.UpdatedAt.UTC(),
	}
}

type gradeRecord struct {
	ID                  string      `db:"id"`
	StudentID           string      `db:"student_id"`
	SubjectAssignmentID string      `db:"subject_assignment_id"`
	Quarter             string      `db:"quarter"`
	SchoolYearID        string      `db:"school_year_id"`
	WrittenWork         float64     `db:"written_work"`
	PerformanceTask     float64     `db:"performance_task"`
	QuarterlyAssessment float64     `db:"quarterly_assessment"`
	FinalGrade          float64     `db:"final_grade"`
	SchoolID            null.String `db:"school_id"`
	UpdatedAt           time.Time   `db:"updated_at"`
}

func (rec gradeRecord) grade() grading.Grade {
	return grading.Grade{
		ID:                  rec.ID,
		StudentID:           rec.StudentID,
		SubjectAssignmentID: rec.SubjectAssignmentID,
		Quarter:             rec.Quarter,
		SchoolYearID:        rec.SchoolYearID,
		WrittenWork:         rec.WrittenWork,
		PerformanceTask:     rec.PerformanceTask,
		QuarterlyAssessment: rec.QuarterlyAssessment,
		FinalGrade:          rec.FinalGrade,
		SchoolID:            rec.SchoolID.String,
		UpdatedAt:           rec.UpdatedAt.UTC(),
	}
}

type weightsRecord struct {
	WrittenWork         float64 `db:"written_work_percent"`
	PerformanceTask     float64 `db:"performance_task_percent"`
	QuarterlyAssessment float64 `db:"quarterly_assessment_percent"`
}

type gradingRepository struct {
	repository
}

var _ grading.Repository = (*gradingRepository)(nil)

func NewGradingRepository(exec core.DBExecutor) *gradingRepository {
	return &gradingRepository{repository{exec: exec}}
}

func (repo gradingRepository) scoreWhere(filter grading.ScoreFilter) (where, bool) {
	var w where
	if filter.SubjectAssignmentID != "" {
		if !validID(filter.SubjectAssignmentID) {
			return w, false
		}
		w.add("subject_assignment_id = ?", filter.SubjectAssignmentID)
	}
	if filter.Quarter != "" {
		w.add("quarter = ?", filter.Quarter)
	}
	if filter.ActivityName != "" {
		w.add("LOWER(activity_name) = LOWER(?)", filter.ActivityName)
	}
	return w, true
}

func (repo gradingRepository) QueryScores(ctx context.Context, filter grading.ScoreFilter, exec ...core.DBExecutor) ([]grading.Score, error) {
	w, ok := repo.scoreWhere(filter)
	if !ok {
		return []grading.Score{}, nil
	}

	var recs []scoreRecord
	q := `SELECT ` + scoreColumns + ` FROM activity_scores` + w.String() + ` ORDER BY activity_type, activity_name, student_id`
	if err := repo.selectContext(ctx, exec, &recs, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying scores")
	}
	scores := make([]grading.Score, 0, len(recs))
	for _, rec := range recs {
		scores = append(scores, rec.score())
	}
	return scores, nil
}

func (repo gradingRepository) UpsertScores(ctx context.Context, scores []grading.Score, exec ...core.DBExecutor) (int, error) {
	// a statement may not update the same row twice: the last score of a key wins
	index := make(map[string]int, len(scores))
	unique := make([]grading.Score, 0, len(scores))
	for _, sc := range scores {
		key := strings.Join([]string{sc.StudentID, sc.SubjectAssignmentID, sc.ActivityName, sc.Quarter}, "|")
		if i, ok := index[key]; ok {
			unique[i] = sc
			continue
		}
		index[key] = len(unique)
		unique = append(unique, sc)
	}
	if len(unique) == 0 {
		return 0, nil
	}

	args := make([]interface{}, 0, len(unique)*scoreNCols)
	for _, sc := range unique {
		args = append(args,
			newID(), sc.StudentID, sc.SubjectAssignmentID, sc.ActivityType, sc.ActivityName,
			null.Float64FromPtr(sc.Score), sc.MaxScore, sc.Quarter, nullID(sc.SchoolID), sc.UpdatedAt.UTC(),
		)
	}
	q := `INSERT INTO activity_scores (` + scoreColumns + `) VALUES ` +
		strmangle.Placeholders(true, len(args), 1, scoreNCols) + `
		ON CONFLICT (student_id, subject_assignment_id, activity_name, quarter) DO UPDATE SET
			activity_type = EXCLUDED.activity_type,
			score = EXCLUDED.score,
			max_score = EXCLUDED.max_score,
			updated_at = EXCLUDED.updated_at`
	res, err := repo.getExec(exec).ExecContext(ctx, q, args...)
	if err != nil {
		return 0, errors.Wrap(err, "upserting scores")
	}
	cnt, err := res.RowsAffected()
	return int(cnt), errors.Wrap(err, "upserting scores")
}

func (repo gradingRepository) DeleteScores(ctx context.Context, filter grading.ScoreFilter, exec ...core.DBExecutor) (int, error) {
	w, ok := repo.scoreWhere(filter)
	if !ok || len(w.conds) == 0 {
		return 0, nil
	}
	cnt, err := repo.execContext(ctx, exec, `DELETE FROM activity_scores`+w.String(), w.args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting scores")
	}
	return cnt, nil
}

func (repo gradingRepository) QueryGrades(ctx context.Context, filter grading.GradeFilter, exec ...core.DBExecutor) ([]grading.Grade, error) {
	var w where
	for col, ids := range map[string][]string{
		"subject_assignment_id": filter.SubjectAssignmentIDs,
		"student_id":            filter.StudentIDs,
	} {
		if ids == nil {
			continue
		}
		if ids = validIDs(ids); len(ids) == 0 {
			return []grading.Grade{}, nil
		}
		w.add(col+" IN (?)", ids)
	}
	if filter.Quarter != "" {
		w.add("quarter = ?", filter.Quarter)
	}
	if filter.SchoolYearID != "" {
		if !validID(filter.SchoolYearID) {
			return []grading.Grade{}, nil
		}
		w.add("school_year_id = ?", filter.SchoolYearID)
	}

	var recs []gradeRecord
	q := `SELECT ` + gradeColumns + ` FROM grades` + w.String() + ` ORDER BY student_id, subject_assignment_id, quarter`
	if err := repo.selectContext(ctx, exec, &recs, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	grades := make([]grading.Grade, 0, len(recs))
	for _, rec := range recs {
		grades = append(grades, rec.grade())
	}
	return grades, nil
}

func (repo gradingRepository) UpsertGrades(ctx context.Context, grades []grading.Grade, exec ...core.DBExecutor) (int, error) {
	if len(grades) == 0 {
		return 0, nil
	}

	args := make([]interface{}, 0, len(grades)*gradeNCols)
	for _, g := range grades {
		args = append(args,
			newID(), g.StudentID, g.SubjectAssignmentID, g.Quarter, g.SchoolYearID, g.WrittenWork, g.PerformanceTask,
			g.QuarterlyAssessment, g.FinalGrade, nullID(g.SchoolID), g.UpdatedAt.UTC(),
		)
	}
	q := `INSERT INTO grades (` + gradeColumns + `) VALUES ` +
		strmangle.Placeholders(true, len(args), 1, gradeNCols) + `
		ON CONFLICT (student_id, subject_assignment_id, quarter, school_year_id) DO UPDATE SET
			written_work = EXCLUDED.written_work,
			performance_task = EXCLUDED.performance_task,
			quarterly_assessment = EXCLUDED.quarterly_assessment,
			final_grade = EXCLUDED.final_grade,
			updated_at = EXCLUDED.updated_at`
	res, err := repo.getExec(exec).ExecContext(ctx, q, args...)
	if err != nil {
		return 0, errors.Wrap(err, "upserting grades")
	}
	cnt, err := res.RowsAffected()
	return int(cnt), errors.Wrap(err, "upserting grades")
}

func (repo gradingRepository) GetWeights(ctx context.Context, schoolID string, exec ...core.DBExecutor) (grading.Weights, bool, error) {
	if !validID(schoolID) {
		return grading.Weights{}, false, nil
	}
	var recs []weightsRecord
	q := `SELECT written_work_percent, performance_task_percent, quarterly_assessment_percent
		FROM school_settings WHERE school_id = ?`
	if err := repo.selectContext(ctx, exec, &recs, q, schoolID); err != nil {
		return grading.Weights{}, false, errors.Wrap(err, "getting weights")
	}
	if len(recs) == 0 {
		return grading.Weights{}, false, nil
	}
	return grading.Weights{
		WrittenWork:         recs[0].WrittenWork,
		PerformanceTask:     recs[0].PerformanceTask,
		QuarterlyAssessment: recs[0].QuarterlyAssessment,
		Configured:          true,
	}, true, nil
}

func (repo gradingRepository) SaveWeights(ctx context.Context, schoolID string, w grading.Weights, exec ...core.DBExecutor) error {
	_, err := repo.execContext(ctx, exec,
		`INSERT INTO school_settings (school_id, written_work_percent, performance_task_percent, quarterly_assessment_percent, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (school_id) DO UPDATE SET
			written_work_percent = EXCLUDED.written_work_percent,
			performance_task_percent = EXCLUDED.performance_task_percent,
			quarterly_assessment_percent = EXCLUDED.quarterly_assessment_percent,
			updated_at = EXCLUDED.updated_at`,
		schoolID, w.WrittenWork, w.PerformanceTask, w.QuarterlyAssessment, time.Now().UTC(),
	)
	return errors.Wrap(err, "saving weights")
}
