package tests

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/gradebook/core/announcement"
	"github.com/trezcool/gradebook/core/dashboard"
	"github.com/trezcool/gradebook/core/student"
)

func Test_adminApi_dashboard(t *testing.T) {
	f := setupSection(t)

	req, rec := newAuthRequest(http.MethodGet, "/v1/admin/dashboard", f.adminToken)
	f.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var view dashboard.AdminView
	decode(t, rec, &view)
	if assert.NotNil(t, view.ActiveSchoolYear) {
		assert.Equal(t, "2024-2025", view.ActiveSchoolYear.Label)
	}
	assert.Equal(t, 1, view.Sections)
	assert.Equal(t, 1, view.SectionsWithAdviser)
	assert.Equal(t, 8, view.Assignments)
	assert.Equal(t, 8, view.AssignedSubjects)
	assert.Equal(t, 2, view.Teachers.Active)
	assert.Equal(t, []dashboard.Alert{
		{Type: dashboard.AlertWarning, Message: "Grade percentages not configured, defaults apply"},
	}, view.Alerts)

	// the foreign admin sees its own empty school
	req, rec = newAuthRequest(http.MethodGet, "/v1/admin/dashboard", f.foreignToken)
	f.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	view = dashboard.AdminView{}
	decode(t, rec, &view)
	assert.Nil(t, view.ActiveSchoolYear)
	assert.Zero(t, view.Sections)
}

func Test_teacherApi_dashboard(t *testing.T) {
	f := setupSection(t)
	juan := f.createStudent(t, f.sec.ID, "123456789012", "Juan Dela Cruz", student.GenderMale)
	maria := f.createStudent(t, f.sec.ID, "123456789013", "Maria Clara", student.GenderFemale)

	records := fmt.Sprintf("/v1/assignments/%s/records/Q1", f.sec.Assignments[0].ID)
	req, rec := newAuthRequest(http.MethodPost, records+"/bulk-score", f.adviserToken, []byte(`{"activity_name": "QA1", "score": 100}`))
	require.Equal(t, http.StatusOK, f.do(req, rec).Code, rec.Body.String())
	req, rec = newAuthRequest(http.MethodPost, records+"/final-grades", f.adviserToken)
	require.Equal(t, http.StatusOK, f.do(req, rec).Code, rec.Body.String())

	runHTTPTests(t, f.fixture, []httpTest{
		{name: "teacher required", path: "/v1/teacher/dashboard", token: f.adminToken, wantCode: http.StatusForbidden},
		{name: "invalid quarter", path: "/v1/teacher/dashboard?quarter=Q5", token: f.adviserToken, wantCode: http.StatusBadRequest},
	})

	t.Run("advisory summary", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/teacher/dashboard", f.adviserToken)
		f.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var view dashboard.TeacherView
		decode(t, rec, &view)
		assert.Equal(t, "Q1", view.Quarter)
		assert.Len(t, view.AdvisorySections, 1)
		assert.Equal(t, 2, view.TotalStudents)
		assert.Equal(t, 2, view.IncompleteStudents) // one subject graded out of eight
		assert.Equal(t, []dashboard.RankedStudent{
			{Rank: 1, StudentID: juan.ID, Name: juan.Name, Section: "Sampaguita", Average: 20},
			{Rank: 2, StudentID: maria.ID, Name: maria.Name, Section: "Sampaguita", Average: 20},
		}, view.Ranking)
	})

	t.Run("no advisory", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/teacher/dashboard?quarter=q2", f.otherToken)
		f.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var view dashboard.TeacherView
		decode(t, rec, &view)
		assert.Equal(t, "Q2", view.Quarter)
		assert.Zero(t, view.TotalStudents)
		assert.Empty(t, view.Ranking)
	})
}

func Test_announcements(t *testing.T) {
	f := setupSection(t)

	runHTTPTests(t, f.fixture, []httpTest{
		{name: "message required", method: http.MethodPost, path: "/v1/admin/announcements", body: []byte(`{"message": "  "}`), token: f.adminToken, wantCode: http.StatusBadRequest},
		{name: "admin required", method: http.MethodPost, path: "/v1/admin/announcements", body: []byte(`{"message": "hi"}`), token: f.adviserToken, wantCode: http.StatusForbidden},
	})

	req, rec := newAuthRequest(http.MethodPost, "/v1/admin/announcements", f.adminToken, []byte(`{"message": " Records are due on Friday "}`))
	f.do(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var ann announcement.Announcement
	decode(t, rec, &ann)
	assert.Equal(t, "Records are due on Friday", ann.Message)

	t.Run("teachers of the school see it", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/teacher/announcements", f.otherToken)
		f.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		var anns []announcement.Announcement
		decode(t, rec, &anns)
		if assert.Len(t, anns, 1) {
			assert.Equal(t, ann.ID, anns[0].ID)
		}
	})

	path := "/v1/admin/announcements/" + ann.ID
	runHTTPTests(t, f.fixture, []httpTest{
		{name: "other school", method: http.MethodDelete, path: path, token: f.foreignToken, wantCode: http.StatusNotFound},
		{name: "foreign list is empty", path: "/v1/admin/announcements", token: f.foreignToken, wantCode: http.StatusOK, wantData: marchallList(t)},
		{name: "delete", method: http.MethodDelete, path: path, token: f.adminToken, wantCode: http.StatusNoContent},
		{name: "deleted", path: "/v1/admin/announcements", token: f.adminToken, wantCode: http.StatusOK, wantData: marchallList(t)},
	})
}
