package tests

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/gradebook/apps/api/echo"
	"github.com/trezcool/gradebook/core/grading"
	"github.com/trezcool/gradebook/core/section"
	"github.com/trezcool/gradebook/core/student"
	"github.com/trezcool/gradebook/core/user"
)

// sectionFixture is a school with an active school year and a Grade 7 section advised by Ana.
type sectionFixture struct {
	fixture
	sec          section.Detail
	adminToken   string
	adviserToken string
	otherToken   string // teacher of the school without any link to the section
	foreignToken string // admin of another school
	otherSchID   string
}

func setupSection(t *testing.T) sectionFixture {
	f := setup(t)
	sch := f.createSchool(t, "Rizal High", "RHS")
	other := f.createSchool(t, "Bonifacio High", "BHS")
	sy := f.createSchoolYear(t, sch.ID, "2024-2025")
	ana := f.createTeacher(t, sch.ID, "Ana Santos", "ana@rhs.edu.ph", "pwd", false)
	ben := f.createTeacher(t, sch.ID, "Ben Cruz", "ben@rhs.edu.ph", "pwd", false)

	return sectionFixture{
		fixture:      f,
		sec:          f.createSection(t, sch.ID, sy.ID, "Sampaguita", ana.ID),
		adminToken:   getToken(t, f.createUser(t, "Admin", "admin@rhs.edu.ph", "pwd", sch.ID, user.AdminRoles, true)),
		adviserToken: f.tokenFor(t, ana.UserID),
		otherToken:   f.tokenFor(t, ben.UserID),
		foreignToken: getToken(t, f.createUser(t, "Admin", "admin@bhs.edu.ph", "pwd", other.ID, user.AdminRoles, true)),
		otherSchID:   other.ID,
	}
}

func Test_studentsApi_access(t *testing.T) {
	f := setupSection(t)
	path := fmt.Sprintf("/v1/sections/%s/students", f.sec.ID)
	notFound := marchallObj(t, httpErr{Error: "section not found"})

	runHTTPTests(t, f.fixture, []httpTest{
		{name: "auth required", path: path, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "admin", path: path, token: f.adminToken, wantCode: http.StatusOK, wantData: marchallList(t)},
		{name: "adviser", path: path, token: f.adviserToken, wantCode: http.StatusOK, wantData: marchallList(t)},
		{name: "unrelated teacher", path: path, token: f.otherToken, wantCode: http.StatusNotFound, wantData: notFound},
		{name: "admin of another school", path: path, token: f.foreignToken, wantCode: http.StatusNotFound, wantData: notFound},
		{name: "unknown section", path: "/v1/sections/nope/students", token: f.adminToken, wantCode: http.StatusNotFound, wantData: notFound},
	})
}

func Test_studentsApi_import(t *testing.T) {
	f := setupSection(t)
	path := fmt.Sprintf("/v1/sections/%s/students/import", f.sec.ID)

	csvData := "LRN,Name,Gender,Date of Birth\n" +
		"123456789012,Juan Dela Cruz,Male,3/7/2012\n" +
		",No Lrn,Female,1/1/2012\n" + // dropped: no LRN
		"123456789013,,Female,1/1/2012\n" + // dropped: no name
		"123456789014,No Gender,,1/1/2012\n" + // dropped: no gender
		"12345,Short Lrn,Female,1/1/2012\n" + // dropped: invalid LRN
		"123456789015,Maria Santos,F,2012-11-23\n"

	t.Run("unsupported file", func(t *testing.T) {
		rec := f.do(newUploadRequest(t, http.MethodPost, path, f.adviserToken, "roster.txt", []byte(csvData)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"file": "only .csv and .xlsx files are supported"}`, rec.Body.String())
	})

	t.Run("missing file", func(t *testing.T) {
		rec := f.do(newAuthRequest(http.MethodPost, path, f.adviserToken))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid rows are dropped", func(t *testing.T) {
		rec := f.do(newUploadRequest(t, http.MethodPost, path, f.adviserToken, "roster.csv", []byte(csvData)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res student.ImportResult
		decode(t, rec, &res)
		assert.Equal(t, student.ImportResult{Imported: 2, Skipped: 4}, res)

		rec = f.do(newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/sections/%s/students?sort=lrn", f.sec.ID), f.adviserToken))
		require.Equal(t, http.StatusOK, rec.Code)
		var students []student.Student
		decode(t, rec, &students)
		require.Len(t, students, 2)
		assert.Equal(t, "Juan Dela Cruz", students[0].Name)
		assert.Equal(t, "2012-03-07", students[0].DateOfBirth)
		assert.Equal(t, student.GenderFemale, students[1].Gender)
	})

	t.Run("re-import updates by LRN", func(t *testing.T) {
		data := "lrn,name,gender\n123456789012,Juan P. Dela Cruz,M\n"
		rec := f.do(newUploadRequest(t, http.MethodPost, path, f.adminToken, "roster.csv", []byte(data)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = f.do(newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/sections/%s/students?search=juan", f.sec.ID), f.adminToken))
		var students []student.Student
		decode(t, rec, &students)
		require.Len(t, students, 1)
		assert.Equal(t, "Juan P. Dela Cruz", students[0].Name)
	})
}

func Test_studentsApi_importForeignLRN(t *testing.T) {
	f := setupSection(t)
	sy := f.createSchoolYear(t, f.otherSchID, "2024-2025")
	carlo := f.createTeacher(t, f.otherSchID, "Carlo Reyes", "carlo@bhs.edu.ph", "pwd", false)
	foreignSec := f.createSection(t, f.otherSchID, sy.ID, "Ilang-Ilang", carlo.ID)
	enrolled := f.createStudent(t, foreignSec.ID, "123456789012", "Juan Dela Cruz", student.GenderMale)

	data := "lrn,name,gender\n123456789012,Hijacked Name,F\n123456789015,Maria Santos,F\n"
	rec := f.do(newUploadRequest(t, http.MethodPost, fmt.Sprintf("/v1/sections/%s/students/import", f.sec.ID), f.adminToken, "roster.csv", []byte(data)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res student.ImportResult
	decode(t, rec, &res)
	assert.Equal(t, student.ImportResult{Imported: 1, Skipped: 1}, res)

	st, err := f.stRepo.GetStudent(context.Background(), enrolled.ID)
	require.NoError(t, err)
	assert.Equal(t, foreignSec.ID, st.SectionID, "student stays in the other school")
	assert.Equal(t, "Juan Dela Cruz", st.Name)
	assert.Equal(t, student.GenderMale, st.Gender)

	rec = f.do(newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/sections/%s/students", f.sec.ID), f.adminToken))
	var students []student.Student
	decode(t, rec, &students)
	require.Len(t, students, 1)
	assert.Equal(t, "Maria Santos", students[0].Name)
}

func Test_studentsApi_destroy(t *testing.T) {
	f := setupSection(t)
	st1 := f.createStudent(t, f.sec.ID, "123456789012", "Juan Dela Cruz", student.GenderMale)
	st2 := f.createStudent(t, f.sec.ID, "123456789013", "Maria Santos", student.GenderFemale)

	path := fmt.Sprintf("/v1/sections/%s/students", f.sec.ID)
	runHTTPTests(t, f.fixture, []httpTest{
		{name: "no ids", method: http.MethodDelete, path: path, token: f.adminToken, wantCode: http.StatusBadRequest},
		{
			name: "unknown ids", method: http.MethodDelete, path: path + "?id=nope", token: f.adminToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, CountResponse{Count: 0}),
		},
		{
			name: "delete", method: http.MethodDelete, path: path + "?id=" + st1.ID + "&id=" + st2.ID, token: f.adviserToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, CountResponse{Count: 2}),
		},
		{name: "roster is empty", path: path, token: f.adminToken, wantCode: http.StatusOK, wantData: marchallList(t)},
	})
}

func Test_recordsApi_classRecord(t *testing.T) {
	f := setupSection(t)
	juan := f.createStudent(t, f.sec.ID, "123456789012", "Juan Dela Cruz", student.GenderMale)
	maria := f.createStudent(t, f.sec.ID, "123456789013", "Maria Santos", student.GenderFemale)

	var sa section.SubjectAssignment
	for _, a := range f.sec.Assignments {
		if a.SubjectName == "Mathematics" {
			sa = a
		}
	}
	require.NotEmpty(t, sa.ID)
	base := fmt.Sprintf("/v1/assignments/%s/records", sa.ID)

	t.Run("access", func(t *testing.T) {
		rec := f.do(newAuthRequest(http.MethodGet, base+"/Q1", f.otherToken))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec = f.do(newAuthRequest(http.MethodGet, base+"/Q5", f.adviserToken))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("default activities", func(t *testing.T) {
		rec := f.do(newAuthRequest(http.MethodGet, base+"/q1", f.adviserToken))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var cr grading.ClassRecord
		decode(t, rec, &cr)
		assert.Equal(t, "Q1", cr.Quarter)
		assert.Len(t, cr.Activities, 10)
		assert.Len(t, cr.Rows, 2)
	})

	t.Run("scores", func(t *testing.T) {
		body := marchallObj(t, grading.BulkScore{ActivityName: "QA1", Score: 80})
		rec := f.do(newAuthRequest(http.MethodPost, base+"/Q1/bulk-score", f.adviserToken, body))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, CountResponse{Count: 2})}, rec)

		full, over := 100.0, 101.0
		body = marchallObj(t, grading.SaveScores{Scores: []grading.ScoreEntry{
			{StudentID: juan.ID, ActivityName: "PT1", Score: &full},
			{StudentID: maria.ID, ActivityName: "PT1"}, // blank: not saved
		}})
		rec = f.do(newAuthRequest(http.MethodPut, base+"/Q1/scores", f.adviserToken, body))
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, CountResponse{Count: 1})}, rec)

		body = marchallObj(t, grading.SaveScores{Scores: []grading.ScoreEntry{{StudentID: maria.ID, ActivityName: "PT1", Score: &over}}})
		rec = f.do(newAuthRequest(http.MethodPut, base+"/Q1/scores", f.adviserToken, body))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("final grades", func(t *testing.T) {
		rec := f.do(newAuthRequest(http.MethodPost, base+"/Q1/final-grades", f.adminToken))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var grades []grading.Grade
		decode(t, rec, &grades)
		require.Len(t, grades, 2)

		finals := map[string]float64{}
		for _, g := range grades {
			finals[g.StudentID] = g.FinalGrade
		}
		// 30% WW, 50% PT, 20% QA
		assert.Equal(t, 28.5, finals[juan.ID])
		assert.Equal(t, 16.0, finals[maria.ID])
	})

	t.Run("gradebook", func(t *testing.T) {
		rec := f.do(newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/sections/%s/gradebook?search=maria", f.sec.ID), f.adviserToken))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var gb grading.Gradebook
		decode(t, rec, &gb)
		require.Len(t, gb.Rows, 1)
		assert.Equal(t, maria.ID, gb.Rows[0].StudentID)

		rec = f.do(newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/sections/%s/gradebook/export", f.sec.ID), f.adminToken))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment;"))
		assert.NotZero(t, rec.Body.Len())
	})
}
