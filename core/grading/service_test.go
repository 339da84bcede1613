package grading_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/grading"
	"github.com/trezcool/gradebook/core/section"
	"github.com/trezcool/gradebook/core/student"
	cachesvc "github.com/trezcool/gradebook/services/cache"
	inmemdb "github.com/trezcool/gradebook/storage/database/inmem"
)

type fixture struct {
	svc      grading.Service
	sec      section.Section
	math     section.SubjectAssignment
	science  section.SubjectAssignment
	juan     student.Student
	maria    student.Student
	gradeRep grading.Repository
	secRepo  section.Repository
	stRepo   student.Repository
}

func setup(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	db := inmemdb.NewDB()
	secRepo := inmemdb.NewSectionRepository(db)
	stRepo := inmemdb.NewStudentRepository(db)
	f := fixture{gradeRep: inmemdb.NewGradingRepository(db), secRepo: secRepo, stRepo: stRepo}
	f.svc = grading.NewService(nil, f.gradeRep, secRepo, stRepo, cachesvc.NewMemoryCache())

	var err error
	f.sec, err = secRepo.CreateSection(ctx, section.Section{SchoolID: "sch", Name: "Rizal", GradeLevel: "7", SchoolYearID: "sy"})
	require.NoError(t, err)

	assignments, err := secRepo.CreateAssignments(ctx, []section.SubjectAssignment{
		{SectionID: f.sec.ID, SchoolYearID: "sy", SubjectName: "Mathematics"},
		{SectionID: f.sec.ID, SchoolYearID: "sy", SubjectName: "Science"},
	})
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	for _, sa := range assignments {
		if sa.SubjectName == "Mathematics" {
			f.math = sa
		} else {
			f.science = sa
		}
	}

	f.juan, err = stRepo.CreateStudent(ctx, student.Student{SectionID: f.sec.ID, LRN: "123456789012", Name: "Juan Dela Cruz", Gender: student.GenderMale})
	require.NoError(t, err)
	f.maria, err = stRepo.CreateStudent(ctx, student.Student{SectionID: f.sec.ID, LRN: "123456789013", Name: "Maria Clara", Gender: student.GenderFemale})
	require.NoError(t, err)
	return f
}

func score(f float64) *float64 { return &f }

func Test_service_weights(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	w, err := f.svc.GetWeights(ctx, "sch")
	require.NoError(t, err)
	assert.False(t, w.Configured)
	assert.Equal(t, 100.0, w.WrittenWork+w.PerformanceTask+w.QuarterlyAssessment)

	saved, err := f.svc.SaveWeights(ctx, "sch", grading.Weights{WrittenWork: 40, PerformanceTask: 40, QuarterlyAssessment: 20})
	require.NoError(t, err)
	assert.True(t, saved.Configured)

	// the cached defaults are dropped on save
	w, err = f.svc.GetWeights(ctx, "sch")
	require.NoError(t, err)
	assert.Equal(t, grading.Weights{WrittenWork: 40, PerformanceTask: 40, QuarterlyAssessment: 20, Configured: true}, w)

	other, err := f.svc.GetWeights(ctx, "other")
	require.NoError(t, err)
	assert.False(t, other.Configured)
}

func Test_service_activities(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.ClassRecord(ctx, f.math, "Q5")
	assert.Equal(t, grading.ErrInvalidQuarter, err)

	act, err := f.svc.AddActivity(ctx, f.math, "q1", grading.NewActivity{Type: grading.Written, MaxScore: 20})
	require.NoError(t, err)
	assert.Equal(t, grading.Activity{Type: grading.Written, Name: "WW6", MaxScore: 20}, act)

	_, err = f.svc.AddActivity(ctx, f.math, "Q1", grading.NewActivity{Type: grading.Performance, Name: "ww6", MaxScore: 10})
	if verr, ok := err.(*core.ValidationError); assert.True(t, ok, "got %v", err) {
		assert.Equal(t, grading.ErrActivityExists, verr.Err)
		assert.Equal(t, []core.FieldError{{Field: "name", Error: "ww6 already exists"}}, verr.Fields)
	}

	rec, err := f.svc.ClassRecord(ctx, f.math, "Q1")
	require.NoError(t, err)
	assert.Len(t, rec.Activities, 11)
	assert.Equal(t, act, rec.Activities[10])
	for _, row := range rec.Rows {
		v, ok := row.Scores["WW6"]
		assert.True(t, ok, "blank score row inserted for %s", row.Name)
		assert.Nil(t, v)
	}

	// activities are per quarter
	q2, err := f.svc.ClassRecord(ctx, f.math, "Q2")
	require.NoError(t, err)
	assert.Len(t, q2.Activities, 10)

	require.NoError(t, f.svc.RemoveActivity(ctx, f.math, "Q1", "WW6"))
	rec, err = f.svc.ClassRecord(ctx, f.math, "Q1")
	require.NoError(t, err)
	assert.Len(t, rec.Activities, 10)
}

func Test_service_scores(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.SaveScores(ctx, f.math, "Q1", []grading.ScoreEntry{{StudentID: f.juan.ID, ActivityName: "WW1"}})
	assert.Equal(t, grading.ErrNoValidScores, err, "blanks only")

	_, err = f.svc.SaveScores(ctx, f.math, "Q1", []grading.ScoreEntry{{StudentID: f.juan.ID, ActivityName: "WW1", Score: score(101)}})
	assert.Error(t, err, "above max score")

	_, err = f.svc.SaveScores(ctx, f.math, "Q1", []grading.ScoreEntry{{StudentID: f.juan.ID, ActivityName: "WW9", Score: score(10)}})
	assert.Equal(t, grading.ErrUnknownActivity, err)

	_, err = f.svc.SaveScores(ctx, f.math, "Q1", []grading.ScoreEntry{{StudentID: "lol", ActivityName: "WW1", Score: score(10)}})
	assert.Error(t, err, "student of another section")

	cnt, err := f.svc.BulkScore(ctx, f.math, "Q1", grading.BulkScore{ActivityName: "QA1", Score: 80})
	require.NoError(t, err)
	assert.Equal(t, 2, cnt)

	entries := make([]grading.ScoreEntry, 0, 5)
	for _, name := range []string{"PT1", "PT2", "PT3", "PT4"} {
		entries = append(entries, grading.ScoreEntry{StudentID: f.juan.ID, ActivityName: name, Score: score(100)})
	}
	entries = append(entries, grading.ScoreEntry{StudentID: f.maria.ID, ActivityName: "PT1"}) // blank: skipped
	cnt, err = f.svc.SaveScores(ctx, f.math, "Q1", entries)
	require.NoError(t, err)
	assert.Equal(t, 4, cnt)

	// 0×30% + 100×50% + 80×20%
	grades, err := f.svc.SaveFinalGrades(ctx, f.math, "Q1")
	require.NoError(t, err)
	require.Len(t, grades, 2)
	finals := map[string]float64{}
	for _, g := range grades {
		assert.Equal(t, "sy", g.SchoolYearID)
		assert.Equal(t, "Q1", g.Quarter)
		finals[g.StudentID] = g.FinalGrade
	}
	assert.Equal(t, 66.0, finals[f.juan.ID])
	assert.Equal(t, 16.0, finals[f.maria.ID])

	rec, err := f.svc.ClassRecord(ctx, f.math, "Q1")
	require.NoError(t, err)
	assert.Equal(t, grading.RemarkFailed, rec.Rows[0].Remarks)
	assert.Equal(t, 66.0, rec.Stats.Highest)
	assert.Equal(t, 16.0, rec.Stats.Lowest)
	assert.Equal(t, 0.0, rec.Stats.PassingRate)
}

func Test_service_Gradebook(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	gb, err := f.svc.Gradebook(ctx, f.sec, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Science", "Mathematics"}, gb.Subjects) // in subject order
	require.Len(t, gb.Rows, 2)
	assert.Nil(t, gb.Rows[0].Subjects[0].Average)
	assert.Equal(t, 0.0, gb.Rows[0].GeneralAverage)

	_, err = f.svc.BulkScore(ctx, f.math, "Q1", grading.BulkScore{ActivityName: "QA1", Score: 100})
	require.NoError(t, err)
	_, err = f.svc.SaveFinalGrades(ctx, f.math, "Q1") // 20
	require.NoError(t, err)
	for _, name := range []string{"PT1", "PT2", "PT3", "PT4"} {
		_, err = f.svc.BulkScore(ctx, f.math, "Q2", grading.BulkScore{ActivityName: name, Score: 100})
		require.NoError(t, err)
	}
	_, err = f.svc.SaveFinalGrades(ctx, f.math, "Q2") // 50
	require.NoError(t, err)

	// saving final grades drops the cached gradebook
	gb, err = f.svc.Gradebook(ctx, f.sec, "sy")
	require.NoError(t, err)
	row := gb.Rows[0]
	assert.Equal(t, f.juan.ID, row.StudentID)
	mathGrades := row.Subjects[1]
	assert.Equal(t, 20.0, *mathGrades.Quarters["Q1"])
	assert.Equal(t, 50.0, *mathGrades.Quarters["Q2"])
	assert.Nil(t, mathGrades.Quarters["Q3"])
	assert.Equal(t, 35.0, *mathGrades.Average)
	assert.Nil(t, row.Subjects[0].Average)
	assert.Equal(t, 17.5, row.GeneralAverage) // science weighs in as 0

	filtered := gb.Filter(student.QueryFilter{Search: "maria"})
	require.Len(t, filtered.Rows, 1)
	assert.Equal(t, f.maria.ID, filtered.Rows[0].StudentID)

	grades, err := f.svc.QueryGrades(ctx, grading.GradeFilter{SubjectAssignmentIDs: []string{f.math.ID}, Quarter: "Q2"})
	require.NoError(t, err)
	assert.Len(t, grades, 2)
}

func Test_service_Gradebook_rosterChanges(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	gb, err := f.svc.Gradebook(ctx, f.sec, "sy")
	require.NoError(t, err)
	require.Len(t, gb.Rows, 2)

	roster := "lrn,name,gender\n123456789014,Andres Bonifacio,M\n"
	res, err := student.NewService(nil, f.stRepo).Import(ctx, "sch", f.sec.ID, "roster.csv", []byte(roster))
	require.NoError(t, err)
	require.Equal(t, 1, res.Imported)

	// no final grades were saved in between: the roster is still read fresh
	gb, err = f.svc.Gradebook(ctx, f.sec, "sy")
	require.NoError(t, err)
	require.Len(t, gb.Rows, 3)
	assert.Equal(t, "Andres Bonifacio", gb.Rows[0].Name)
	assert.Nil(t, gb.Rows[0].Subjects[1].Average)
}

func Test_service_sectionEditKeepsGrades(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.BulkScore(ctx, f.math, "Q1", grading.BulkScore{ActivityName: "QA1", Score: 100})
	require.NoError(t, err)
	_, err = f.svc.SaveFinalGrades(ctx, f.math, "Q1")
	require.NoError(t, err)

	det, err := section.NewService(nil, f.secRepo).Save(ctx, "sch", f.sec.ID, section.SaveSection{
		Name:         "Rizal",
		GradeLevel:   "7",
		AdviserID:    "tch",
		SchoolYearID: "sy",
		Subjects:     map[string]string{"Mathematics": "tch"},
	})
	require.NoError(t, err)
	require.Len(t, det.Assignments, len(section.Subjects))

	var math section.SubjectAssignment
	for _, sa := range det.Assignments {
		if sa.SubjectName == "Mathematics" {
			math = sa
		}
	}
	assert.Equal(t, f.math.ID, math.ID)
	assert.Equal(t, "tch", math.TeacherID)

	grades, err := f.svc.QueryGrades(ctx, grading.GradeFilter{SubjectAssignmentIDs: []string{math.ID}, Quarter: "Q1"})
	require.NoError(t, err)
	assert.Len(t, grades, 2)

	rec, err := f.svc.ClassRecord(ctx, math, "Q1")
	require.NoError(t, err)
	require.Len(t, rec.Rows, 2)
	for _, row := range rec.Rows {
		if assert.NotNil(t, row.Scores["QA1"]) {
			assert.Equal(t, 100.0, *row.Scores["QA1"])
		}
	}
}
