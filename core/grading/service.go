// Package grading implements class records, final grades, grade weights and the gradebook.
package grading

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/section"
	"github.com/trezcool/gradebook/core/student"
)

var (
	ErrInvalidQuarter  = core.NewFieldError("quarter", "quarter must be one of Q1, Q2, Q3, Q4")
	ErrNoValidScores   = core.NewValidationError(errors.New("no valid scores entered; blank fields are not saved"))
	ErrNoValidGrades   = core.NewValidationError(errors.New("no valid final grades to save"))
	ErrActivityExists  = errors.New("activity already exists")
	ErrUnknownActivity = core.NewFieldError("activity_name", "activity not found")
)

type (
	Repository interface {
		QueryScores(ctx context.Context, filter ScoreFilter, exec ...core.DBExecutor) ([]Score, error)
		// UpsertScores inserts the scores, updating the existing ones matched by (student, assignment, activity, quarter).
		UpsertScores(ctx context.Context, scores []Score, exec ...core.DBExecutor) (int, error)
		DeleteScores(ctx context.Context, filter ScoreFilter, exec ...core.DBExecutor) (int, error)

		QueryGrades(ctx context.Context, filter GradeFilter, exec ...core.DBExecutor) ([]Grade, error)
		// UpsertGrades inserts the grades, updating the existing ones matched by (student, assignment, quarter, school year).
		UpsertGrades(ctx context.Context, grades []Grade, exec ...core.DBExecutor) (int, error)

		// GetWeights returns found == false when the school has not configured its weights.
		GetWeights(ctx context.Context, schoolID string, exec ...core.DBExecutor) (w Weights, found bool, err error)
		SaveWeights(ctx context.Context, schoolID string, w Weights, exec ...core.DBExecutor) error
	}

	Service interface {
		GetWeights(ctx context.Context, schoolID string) (Weights, error)
		// SaveWeights saves validated weights.
		SaveWeights(ctx context.Context, schoolID string, w Weights) (Weights, error)

		ClassRecord(ctx context.Context, sa section.SubjectAssignment, quarter string) (ClassRecord, error)
		AddActivity(ctx context.Context, sa section.SubjectAssignment, quarter string, na NewActivity) (Activity, error)
		RemoveActivity(ctx context.Context, sa section.SubjectAssignment, quarter, name string) error
		SaveScores(ctx context.Context, sa section.SubjectAssignment, quarter string, entries []ScoreEntry) (int, error)
		BulkScore(ctx context.Context, sa section.SubjectAssignment, quarter string, bs BulkScore) (int, error)
		SaveFinalGrades(ctx context.Context, sa section.SubjectAssignment, quarter string) ([]Grade, error)

		Gradebook(ctx context.Context, sec section.Section, schoolYearID string) (Gradebook, error)
		QueryGrades(ctx context.Context, filter GradeFilter) ([]Grade, error)
	}

	service struct {
		db      core.DB
		repo    Repository
		secRepo section.Repository
		stRepo  student.Repository
		cache   core.Cache
		ttl     time.Duration
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, secRepo section.Repository, stRepo student.Repository, cache core.Cache) Service {
	return &service{
		db:      db,
		repo:    repo,
		secRepo: secRepo,
		stRepo:  stRepo,
		cache:   cache,
		ttl:     core.Conf.Redis.CacheTTL,
	}
}

func weightsCacheKey(schoolID string) string {
	return "weights:" + schoolID
}

func gradebookCacheKey(sectionID, schoolYearID string) string {
	return fmt.Sprintf("gradebook:%s:%s", sectionID, schoolYearID)
}

// Weights

func (svc *service) GetWeights(ctx context.Context, schoolID string) (Weights, error) {
	var w Weights
	if found, err := svc.cache.Get(ctx, weightsCacheKey(schoolID), &w); err == nil && found {
		return w, nil
	}

	w, found, err := svc.repo.GetWeights(ctx, schoolID)
	if err != nil {
		return Weights{}, errors.Wrap(err, "getting weights")
	}
	if !found {
		w = DefaultWeights()
	}
	w.Configured = found
	_ = svc.cache.Set(ctx, weightsCacheKey(schoolID), w, svc.ttl)
	return w, nil
}

func (svc *service) SaveWeights(ctx context.Context, schoolID string, w Weights) (Weights, error) {
	if err := svc.repo.SaveWeights(ctx, schoolID, w); err != nil {
		return Weights{}, errors.Wrap(err, "saving weights")
	}
	w.Configured = true
	_ = svc.cache.Delete(ctx, weightsCacheKey(schoolID))
	return w, nil
}

// Class record

type recordData struct {
	sec        section.Section
	students   []student.Student
	activities []Activity
	scores     map[string]map[string]*float64 // {student ID: {activity name: score}}
}

func (svc *service) loadRecord(ctx context.Context, sa section.SubjectAssignment, quarter string) (recordData, error) {
	var data recordData

	sec, err := svc.secRepo.GetSection(ctx, sa.SectionID)
	if err != nil {
		return data, errors.Wrap(err, "finding section")
	}
	data.sec = sec

	data.students, err = svc.stRepo.QueryStudents(ctx, student.QueryFilter{SectionID: sa.SectionID, Sort: student.SortNameAsc})
	if err != nil {
		return data, errors.Wrap(err, "querying students")
	}

	scores, err := svc.repo.QueryScores(ctx, ScoreFilter{SubjectAssignmentID: sa.ID, Quarter: quarter})
	if err != nil {
		return data, errors.Wrap(err, "querying scores")
	}

	stored := make([]Activity, 0)
	seen := make(map[string]bool)
	data.scores = make(map[string]map[string]*float64, len(data.students))
	for _, sc := range scores {
		if key := activityKey(sc.ActivityType, sc.ActivityName); !seen[key] {
			seen[key] = true
			stored = append(stored, Activity{Type: sc.ActivityType, Name: sc.ActivityName, MaxScore: sc.MaxScore})
		}
		if data.scores[sc.StudentID] == nil {
			data.scores[sc.StudentID] = make(map[string]*float64)
		}
		data.scores[sc.StudentID][sc.ActivityName] = sc.Score
	}
	data.activities = MergeActivities(stored)
	return data, nil
}

func (svc *service) ClassRecord(ctx context.Context, sa section.SubjectAssignment, quarter string) (ClassRecord, error) {
	if quarter = normalizeQuarter(quarter); !IsQuarter(quarter) {
		return ClassRecord{}, ErrInvalidQuarter
	}
	data, err := svc.loadRecord(ctx, sa, quarter)
	if err != nil {
		return ClassRecord{}, err
	}
	w, err := svc.GetWeights(ctx, data.sec.SchoolID)
	if err != nil {
		return ClassRecord{}, err
	}

	rows := make([]RecordRow, 0, len(data.students))
	for _, st := range data.students {
		scores := data.scores[st.ID]
		if scores == nil {
			scores = map[string]*float64{}
		}
		ww := CategoryPercent(data.activities, Written, scores)
		pt := CategoryPercent(data.activities, Performance, scores)
		qa := CategoryPercent(data.activities, Quarterly, scores)
		final := FinalGrade(ww, pt, qa, w)
		rows = append(rows, RecordRow{
			StudentID:           st.ID,
			LRN:                 st.LRN,
			Name:                st.Name,
			Gender:              st.Gender,
			Scores:              scores,
			WrittenWork:         Round(ww, 2),
			PerformanceTask:     Round(pt, 2),
			QuarterlyAssessment: Round(qa, 2),
			FinalGrade:          Round(final, 2),
			Remarks:             Remarks(final),
		})
	}

	return ClassRecord{
		SubjectAssignmentID: sa.ID,
		Subject:             sa.SubjectName,
		Quarter:             quarter,
		Weights:             w,
		Activities:          data.activities,
		Rows:                rows,
		Stats:               computeStats(rows),
	}, nil
}

// AddActivity adds an activity to the class record, inserting a blank score for every student.
func (svc *service) AddActivity(ctx context.Context, sa section.SubjectAssignment, quarter string, na NewActivity) (Activity, error) {
	if quarter = normalizeQuarter(quarter); !IsQuarter(quarter) {
		return Activity{}, ErrInvalidQuarter
	}
	data, err := svc.loadRecord(ctx, sa, quarter)
	if err != nil {
		return Activity{}, err
	}

	act := Activity{Type: na.Type, Name: na.Name, MaxScore: na.MaxScore}
	if act.Name == "" {
		act.Name = ActivityName(na.Type, CountCategory(data.activities, na.Type)+1)
	}
	if _, exists := FindActivity(data.activities, act.Name); exists {
		return Activity{}, core.NewValidationError(ErrActivityExists, core.FieldError{
			Field: "name",
			Error: act.Name + " already exists",
		})
	}

	now := time.Now().UTC()
	scores := make([]Score, 0, len(data.students))
	for _, st := range data.students {
		scores = append(scores, Score{
			StudentID:           st.ID,
			SubjectAssignmentID: sa.ID,
			ActivityType:        act.Type,
			ActivityName:        act.Name,
			MaxScore:            act.MaxScore,
			Quarter:             quarter,
			SchoolID:            data.sec.SchoolID,
			UpdatedAt:           now,
		})
	}
	if len(scores) > 0 {
		if _, err = svc.repo.UpsertScores(ctx, scores); err != nil {
			return Activity{}, errors.Wrap(err, "inserting activity scores")
		}
	}
	return act, nil
}

func (svc *service) RemoveActivity(ctx context.Context, sa section.SubjectAssignment, quarter, name string) error {
	if quarter = normalizeQuarter(quarter); !IsQuarter(quarter) {
		return ErrInvalidQuarter
	}
	_, err := svc.repo.DeleteScores(ctx, ScoreFilter{SubjectAssignmentID: sa.ID, Quarter: quarter, ActivityName: name})
	return errors.Wrap(err, "deleting activity scores")
}

// SaveScores upserts the non-blank score entries.
func (svc *service) SaveScores(ctx context.Context, sa section.SubjectAssignment, quarter string, entries []ScoreEntry) (int, error) {
	if quarter = normalizeQuarter(quarter); !IsQuarter(quarter) {
		return 0, ErrInvalidQuarter
	}
	data, err := svc.loadRecord(ctx, sa, quarter)
	if err != nil {
		return 0, err
	}

	inSection := make(map[string]bool, len(data.students))
	for _, st := range data.students {
		inSection[st.ID] = true
	}

	now := time.Now().UTC()
	scores := make([]Score, 0, len(entries))
	for _, entry := range entries {
		if entry.Score == nil {
			continue
		}
		act, ok := FindActivity(data.activities, entry.ActivityName)
		if !ok {
			return 0, ErrUnknownActivity
		}
		if !inSection[entry.StudentID] {
			return 0, core.NewFieldError("student_id", "student not found in section")
		}
		if *entry.Score < 0 || *entry.Score > act.MaxScore {
			return 0, core.NewFieldError("score", fmt.Sprintf("%s score must be between 0 and %g", act.Name, act.MaxScore))
		}
		score := *entry.Score
		scores = append(scores, Score{
			StudentID:           entry.StudentID,
			SubjectAssignmentID: sa.ID,
			ActivityType:        act.Type,
			ActivityName:        act.Name,
			Score:               &score,
			MaxScore:            act.MaxScore,
			Quarter:             quarter,
			SchoolID:            data.sec.SchoolID,
			UpdatedAt:           now,
		})
	}
	if len(scores) == 0 {
		return 0, ErrNoValidScores
	}

	cnt, err := svc.repo.UpsertScores(ctx, scores)
	return cnt, errors.Wrap(err, "upserting scores")
}

// BulkScore gives every student of the section the same score for an activity.
func (svc *service) BulkScore(ctx context.Context, sa section.SubjectAssignment, quarter string, bs BulkScore) (int, error) {
	if quarter = normalizeQuarter(quarter); !IsQuarter(quarter) {
		return 0, ErrInvalidQuarter
	}
	data, err := svc.loadRecord(ctx, sa, quarter)
	if err != nil {
		return 0, err
	}

	entries := make([]ScoreEntry, 0, len(data.students))
	for _, st := range data.students {
		score := bs.Score
		entries = append(entries, ScoreEntry{StudentID: st.ID, ActivityName: bs.ActivityName, Score: &score})
	}
	return svc.SaveScores(ctx, sa, quarter, entries)
}

// SaveFinalGrades computes the final grades of the class record and saves them.
func (svc *service) SaveFinalGrades(ctx context.Context, sa section.SubjectAssignment, quarter string) ([]Grade, error) {
	rec, err := svc.ClassRecord(ctx, sa, quarter)
	if err != nil {
		return nil, err
	}
	if len(rec.Rows) == 0 {
		return nil, ErrNoValidGrades
	}

	sec, err := svc.secRepo.GetSection(ctx, sa.SectionID)
	if err != nil {
		return nil, errors.Wrap(err, "finding section")
	}

	now := time.Now().UTC()
	grades := make([]Grade, 0, len(rec.Rows))
	for _, row := range rec.Rows {
		grades = append(grades, Grade{
			StudentID:           row.StudentID,
			SubjectAssignmentID: sa.ID,
			Quarter:             rec.Quarter,
			SchoolYearID:        sa.SchoolYearID,
			WrittenWork:         row.WrittenWork,
			PerformanceTask:     row.PerformanceTask,
			QuarterlyAssessment: row.QuarterlyAssessment,
			FinalGrade:          row.FinalGrade,
			SchoolID:            sec.SchoolID,
			UpdatedAt:           now,
		})
	}

	err = core.Transactional(ctx, svc.db, func(exec ...core.DBExecutor) error {
		_, err := svc.repo.UpsertGrades(ctx, grades, exec...)
		return errors.Wrap(err, "upserting grades")
	})
	if err != nil {
		return nil, err
	}
	_ = svc.cache.Delete(ctx, gradebookCacheKey(sa.SectionID, sa.SchoolYearID))
	return grades, nil
}

func (svc *service) QueryGrades(ctx context.Context, filter GradeFilter) ([]Grade, error) {
	return svc.repo.QueryGrades(ctx, filter)
}
