package sqlxrepos

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/grading"
	"github.com/trezcool/gradebook/core/section"
	"github.com/trezcool/gradebook/core/student"
)

var errQuery = errors.New("query not supported")

type statement struct {
	query string
	args  []interface{}
}

// recorder is a core.DBExecutor keeping the statements it receives.
// Writes succeed, reads fail with errQuery.
type recorder struct {
	stmts []statement
}

var _ core.DBExecutor = (*recorder)(nil)

func (r *recorder) record(query string, args []interface{}) {
	r.stmts = append(r.stmts, statement{query: query, args: args})
}

func (r *recorder) last(t *testing.T) statement {
	t.Helper()
	require.NotEmpty(t, r.stmts, "no statement executed")
	return r.stmts[len(r.stmts)-1]
}

func (r *recorder) Exec(query string, args ...interface{}) (sql.Result, error) {
	return r.ExecContext(context.Background(), query, args...)
}

func (r *recorder) ExecContext(_ context.Context, query string, args ...interface{}) (sql.Result, error) {
	r.record(query, args)
	return driver.RowsAffected(1), nil
}

func (r *recorder) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return r.QueryContext(context.Background(), query, args...)
}

func (r *recorder) QueryContext(_ context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	r.record(query, args)
	return nil, errQuery
}

func (r *recorder) QueryRow(query string, args ...interface{}) *sql.Row {
	return r.QueryRowContext(context.Background(), query, args...)
}

func (r *recorder) QueryRowContext(_ context.Context, query string, args ...interface{}) *sql.Row {
	r.record(query, args)
	return nil
}

func Test_rebind(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{query: "SELECT id FROM students", want: "SELECT id FROM students"},
		{query: "DELETE FROM students WHERE id = ?", want: "DELETE FROM students WHERE id = $1"},
		{
			query: "SELECT id FROM grades WHERE student_id IN (?, ?) AND quarter = ?",
			want:  "SELECT id FROM grades WHERE student_id IN ($1, $2) AND quarter = $3",
		},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, rebind(tt.query))
		})
	}
}

func Test_expandIn(t *testing.T) {
	t.Run("no IN clause", func(t *testing.T) {
		q, args, err := expandIn("SELECT id FROM sections WHERE school_id = ?", []interface{}{"sch"})
		require.NoError(t, err)
		assert.Equal(t, "SELECT id FROM sections WHERE school_id = ?", q)
		assert.Equal(t, []interface{}{"sch"}, args)
	})

	t.Run("slice is expanded", func(t *testing.T) {
		q, args, err := expandIn("SELECT id FROM students WHERE id IN (?) AND section_id = ?", []interface{}{[]string{"a", "b", "c"}, "sec"})
		require.NoError(t, err)
		assert.Equal(t, "SELECT id FROM students WHERE id IN (?, ?, ?) AND section_id = ?", q)
		assert.Equal(t, []interface{}{"a", "b", "c", "sec"}, args)
	})

	t.Run("empty slice", func(t *testing.T) {
		_, _, err := expandIn("SELECT id FROM students WHERE id IN (?)", []interface{}{[]string{}})
		assert.Error(t, err)
	})
}

func Test_orderBy(t *testing.T) {
	columns := map[string]string{"name": "s.name", "lrn": "s.lrn"}
	tests := []struct {
		name     string
		ordering []core.DBOrdering
		want     string
	}{
		{name: "fallback", want: " ORDER BY s.name ASC"},
		{name: "unknown fields are dropped", ordering: []core.DBOrdering{{Field: "password"}}, want: " ORDER BY s.name ASC"},
		{
			name:     "whitelisted",
			ordering: []core.DBOrdering{{Field: "lrn"}, {Field: "id; DROP TABLE students"}, {Field: "name", Ascending: true}},
			want:     " ORDER BY s.lrn DESC, s.name ASC",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, orderBy(tt.ordering, columns, "s.name ASC"))
		})
	}
}

func Test_where(t *testing.T) {
	var w where
	assert.Equal(t, "", w.String())

	w.add("section_id = ?", "sec")
	w.add("id IN (?)", []string{"a", "b"})
	assert.Equal(t, " WHERE section_id = ? AND id IN (?)", w.String())
	assert.Equal(t, []interface{}{"sec", []string{"a", "b"}}, w.args)
}

func Test_validIDs(t *testing.T) {
	id := newID()
	assert.True(t, validID(id))
	assert.False(t, validID("1; DROP TABLE users"))
	assert.Equal(t, []string{id}, validIDs([]string{"", id, "nope"}))
	assert.Empty(t, validIDs(nil))
}

func Test_trapNoRowsErr(t *testing.T) {
	notFound := core.NewNotFoundError("student")
	assert.Equal(t, notFound, trapNoRowsErr(errors.Wrap(sql.ErrNoRows, "scanning"), notFound, "getting student"))
	assert.EqualError(t, trapNoRowsErr(errors.New("boom"), notFound, "getting student"), "getting student: boom")
}

func Test_gradingRepository_UpsertScores(t *testing.T) {
	rec := &recorder{}
	repo := NewGradingRepository(rec)
	ctx := context.Background()

	cnt, err := repo.UpsertScores(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, cnt)
	assert.Empty(t, rec.stmts)

	stID, saID := newID(), newID()
	score := func(name string, v float64) grading.Score {
		return grading.Score{
			StudentID: stID, SubjectAssignmentID: saID, ActivityType: grading.Written, ActivityName: name,
			Score: &v, MaxScore: 20, Quarter: "Q1", UpdatedAt: time.Now(),
		}
	}
	_, err = repo.UpsertScores(ctx, []grading.Score{score("WW1", 10), score("WW2", 12), score("WW1", 15)})
	require.NoError(t, err)

	stmt := rec.last(t)
	assert.Len(t, stmt.args, 2*scoreNCols, "duplicate keys are merged")
	assert.Contains(t, stmt.query, fmt.Sprintf("$%d)", 2*scoreNCols))
	assert.NotContains(t, stmt.query, fmt.Sprintf("$%d", 2*scoreNCols+1))
	assert.Contains(t, stmt.query, "ON CONFLICT (student_id, subject_assignment_id, activity_name, quarter)")
	assert.Equal(t, null.Float64From(15), stmt.args[5], "the last score of a key wins")
	assert.Equal(t, "WW2", stmt.args[scoreNCols+4])
}

func Test_gradingRepository_DeleteScores(t *testing.T) {
	rec := &recorder{}
	repo := NewGradingRepository(rec)
	ctx := context.Background()

	for _, filter := range []grading.ScoreFilter{{}, {SubjectAssignmentID: "nope", Quarter: "Q1"}} {
		cnt, err := repo.DeleteScores(ctx, filter)
		require.NoError(t, err)
		assert.Zero(t, cnt)
	}
	assert.Empty(t, rec.stmts, "an empty filter never wipes the table")

	saID := newID()
	_, err := repo.DeleteScores(ctx, grading.ScoreFilter{SubjectAssignmentID: saID, Quarter: "Q1", ActivityName: "WW6"})
	require.NoError(t, err)
	stmt := rec.last(t)
	assert.Equal(t, "DELETE FROM activity_scores WHERE subject_assignment_id = $1 AND quarter = $2 AND LOWER(activity_name) = LOWER($3)", stmt.query)
	assert.Equal(t, []interface{}{saID, "Q1", "WW6"}, stmt.args)
}

func Test_gradingRepository_QueryGrades(t *testing.T) {
	rec := &recorder{}
	repo := NewGradingRepository(rec)
	ctx := context.Background()

	grades, err := repo.QueryGrades(ctx, grading.GradeFilter{SubjectAssignmentIDs: []string{"nope"}})
	require.NoError(t, err)
	assert.Empty(t, grades)
	assert.Empty(t, rec.stmts)

	id1, id2 := newID(), newID()
	_, err = repo.QueryGrades(ctx, grading.GradeFilter{SubjectAssignmentIDs: []string{id1, "nope", id2}, Quarter: "Q2"})
	assert.Equal(t, errQuery, errors.Cause(err))

	stmt := rec.last(t)
	assert.Contains(t, stmt.query, " WHERE subject_assignment_id IN ($1, $2) AND quarter = $3 ORDER BY")
	assert.NotContains(t, stmt.query, "?")
	assert.Equal(t, []interface{}{id1, id2, "Q2"}, stmt.args)
}

func Test_studentRepository_UpsertStudents(t *testing.T) {
	rec := &recorder{}
	repo := NewStudentRepository(rec)
	ctx := context.Background()

	cnt, err := repo.UpsertStudents(ctx, newID(), nil)
	require.NoError(t, err)
	assert.Zero(t, cnt)
	assert.Empty(t, rec.stmts)

	secID, schID := newID(), newID()
	students := []student.Student{
		{SectionID: secID, LRN: "123456789012", Name: "Juan Dela Cruz", Gender: student.GenderMale, DateOfBirth: "2012-03-07"},
		{SectionID: secID, LRN: "123456789013", Name: "Maria Clara", Gender: student.GenderFemale},
	}
	cnt, err = repo.UpsertStudents(ctx, schID, students)
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)

	stmt := rec.last(t)
	n := 2*studentNCols + 1
	require.Len(t, stmt.args, n)
	assert.Equal(t, schID, stmt.args[n-1])
	assert.Contains(t, stmt.query, "ON CONFLICT (lrn) DO UPDATE SET")
	assert.Contains(t, stmt.query, "WHERE students.section_id IS NULL")
	assert.Contains(t, stmt.query, fmt.Sprintf("OR students.section_id IN (SELECT id FROM sections WHERE school_id = $%d)", n))
	assert.Equal(t, 1, strings.Count(stmt.query, fmt.Sprintf("$%d)", 2*studentNCols)), "the school is not part of the VALUES")

	_, err = repo.UpsertStudents(ctx, "nope", students)
	require.NoError(t, err)
	stmt = rec.last(t)
	assert.Nil(t, stmt.args[n-1], "an invalid school matches no section")
}

func Test_sectionRepository_UpsertAssignments(t *testing.T) {
	rec := &recorder{}
	repo := NewSectionRepository(rec)
	ctx := context.Background()

	require.NoError(t, repo.UpsertAssignments(ctx, nil))
	assert.Empty(t, rec.stmts)

	secID, syID, tchID := newID(), newID(), newID()
	err := repo.UpsertAssignments(ctx, []section.SubjectAssignment{
		{SectionID: secID, TeacherID: tchID, SchoolYearID: syID, SubjectName: "Mathematics"},
		{SectionID: secID, SchoolYearID: syID, SubjectName: "Science"},
	})
	require.NoError(t, err)

	stmt := rec.last(t)
	require.Len(t, stmt.args, 2*assignmentNCols)
	assert.Contains(t, stmt.query, "ON CONFLICT (section_id, subject_name) DO UPDATE SET")
	assert.NotContains(t, stmt.query, "id = EXCLUDED.id", "existing assignments keep their ID")
	assert.Equal(t, null.StringFrom(tchID), stmt.args[2])
	assert.Equal(t, null.String{}, stmt.args[assignmentNCols+2])
}
