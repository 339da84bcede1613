package tests

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/gradebook/core/curriculum"
	"github.com/trezcool/gradebook/core/section"
)

func Test_adminApi_curricula(t *testing.T) {
	f := setupSection(t)

	req, rec := newAuthRequest(http.MethodPost, "/v1/admin/curricula", f.adminToken, []byte(`{"name": " K-12 Basic Education "}`))
	f.do(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var cur curriculum.Curriculum
	decode(t, rec, &cur)
	assert.Equal(t, "K-12 Basic Education", cur.Name)

	path := "/v1/admin/curricula/" + cur.ID
	renamed := cur
	renamed.Name = "MATATAG"
	runHTTPTests(t, f.fixture, []httpTest{
		{name: "name required", method: http.MethodPost, path: "/v1/admin/curricula", body: []byte(`{"name": ""}`), token: f.adminToken, wantCode: http.StatusBadRequest},
		{name: "list", path: "/v1/admin/curricula", token: f.adminToken, wantCode: http.StatusOK, wantData: marchallList(t, cur)},
		{name: "other school: rename", method: http.MethodPut, path: path, body: []byte(`{"name": "lol"}`), token: f.foreignToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "curriculum not found"})},
		{name: "rename", method: http.MethodPut, path: path, body: []byte(`{"name": "MATATAG"}`), token: f.adminToken, wantCode: http.StatusOK, wantData: marchallObj(t, renamed)},
		{name: "delete", method: http.MethodDelete, path: path, token: f.adminToken, wantCode: http.StatusNoContent},
		{name: "deleted", path: "/v1/admin/curricula", token: f.adminToken, wantCode: http.StatusOK, wantData: marchallList(t)},
	})
}

func Test_adminApi_saveSection(t *testing.T) {
	f := setupSection(t)
	sy := f.sec.SchoolYearID
	ana := f.sec.AdviserID
	archived := f.createTeacher(t, f.sec.SchoolID, "Old Timer", "old@rhs.edu.ph", "pwd", true)

	body := func(adviserID, schoolYearID string, subjects string) []byte {
		return []byte(fmt.Sprintf(`{"name": "Ilang-Ilang", "grade_level": "8", "adviser_id": %q, "school_year_id": %q, "subjects": %s}`,
			adviserID, schoolYearID, subjects))
	}

	runHTTPTests(t, f.fixture, []httpTest{
		{name: "invalid grade level", method: http.MethodPost, path: "/v1/admin/sections", body: []byte(fmt.Sprintf(`{"name": "X", "grade_level": "11", "school_year_id": %q}`, sy)), token: f.adminToken, wantCode: http.StatusBadRequest},
		{name: "archived adviser", method: http.MethodPost, path: "/v1/admin/sections", body: body(archived.ID, sy, "{}"), token: f.adminToken, wantCode: http.StatusBadRequest, wantData: []byte(`{"adviser_id": "teacher not found"}`)},
		{name: "unknown subject", method: http.MethodPost, path: "/v1/admin/sections", body: body("", sy, `{"Latin": ""}`), token: f.adminToken, wantCode: http.StatusBadRequest, wantData: []byte(`{"subjects": "unknown subject Latin"}`)},
		{name: "school year of another school", method: http.MethodPost, path: "/v1/admin/sections", body: body("", sy, "{}"), token: f.foreignToken, wantCode: http.StatusBadRequest, wantData: []byte(`{"school_year_id": "school year not found"}`)},
	})

	req, rec := newAuthRequest(http.MethodPost, "/v1/admin/sections", f.adminToken, body("", sy, fmt.Sprintf(`{"Mathematics": %q}`, ana)))
	f.do(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var det section.Detail
	decode(t, rec, &det)
	assert.Equal(t, "Ilang-Ilang", det.Name)
	assert.Empty(t, det.AdviserID)
	require.Len(t, det.Assignments, len(section.Subjects))
	assigned := 0
	for _, sa := range det.Assignments {
		if sa.TeacherID != "" {
			assigned++
			assert.Equal(t, "Mathematics", sa.SubjectName)
		}
	}
	assert.Equal(t, 1, assigned)

	t.Run("edit reassigns teachers in place", func(t *testing.T) {
		ids := make(map[string]string, len(det.Assignments))
		for _, sa := range det.Assignments {
			ids[sa.SubjectName] = sa.ID
		}

		req, rec := newAuthRequest(http.MethodPut, "/v1/admin/sections/"+det.ID, f.adminToken, body(ana, sy, fmt.Sprintf(`{"English": %q, "Science": %q}`, ana, ana)))
		f.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var edited section.Detail
		decode(t, rec, &edited)
		assert.Equal(t, ana, edited.AdviserID)
		require.Len(t, edited.Assignments, len(section.Subjects))
		for _, sa := range edited.Assignments {
			assert.Equal(t, ids[sa.SubjectName], sa.ID, sa.SubjectName)
			switch sa.SubjectName {
			case "English", "Science":
				assert.Equal(t, ana, sa.TeacherID)
			default:
				assert.Empty(t, sa.TeacherID, sa.SubjectName)
			}
		}
	})

	path := "/v1/admin/sections/" + det.ID
	runHTTPTests(t, f.fixture, []httpTest{
		{name: "other school", path: path, token: f.foreignToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "section not found"})},
		{name: "rename: name required", method: http.MethodPatch, path: path + "/name", body: []byte(`{"name": ""}`), token: f.adminToken, wantCode: http.StatusBadRequest},
		{name: "rename", method: http.MethodPatch, path: path + "/name", body: []byte(`{"name": "Rosal"}`), token: f.adminToken, wantCode: http.StatusOK},
		{name: "delete", method: http.MethodDelete, path: path, token: f.adminToken, wantCode: http.StatusNoContent},
		{name: "deleted", path: path, token: f.adminToken, wantCode: http.StatusNotFound},
	})
}
