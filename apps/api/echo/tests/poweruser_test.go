package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/gradebook/apps/api/echo"
	"github.com/trezcool/gradebook/core/audit"
	"github.com/trezcool/gradebook/core/school"
	"github.com/trezcool/gradebook/core/teacher"
	"github.com/trezcool/gradebook/core/user"
	emailsvc "github.com/trezcool/gradebook/services/email"
)

func Test_powerUserApi_access(t *testing.T) {
	f := setup(t)
	sch := f.createSchool(t, "Rizal High", "RHS")
	admin := f.createUser(t, "Admin", "admin@rhs.edu.ph", "pwd", sch.ID, user.AdminRoles, true)
	root := f.createUser(t, "Root", "root@gradebook.ph", "pwd", "", user.PowerUserRoles, true)

	runHTTPTests(t, f, []httpTest{
		{name: "auth required", path: "/v1/poweruser/schools", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "power user required", path: "/v1/poweruser/schools", token: getToken(t, admin),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "power user", path: "/v1/poweruser/schools", token: getToken(t, root), wantCode: http.StatusOK, wantData: marchallList(t, sch)},
	})
}

func Test_powerUserApi_schools(t *testing.T) {
	f := setup(t)
	root := f.createUser(t, "Root", "root@gradebook.ph", "pwd", "", user.PowerUserRoles, true)
	token := getToken(t, root)

	create := func(name, code string) (*school.School, int) {
		body := marchallObj(t, school.NewSchool{Name: name, Address: "Manila", Code: code})
		rec := f.do(newAuthRequest(http.MethodPost, "/v1/poweruser/schools", token, body))
		if rec.Code != http.StatusCreated {
			return nil, rec.Code
		}
		var sch school.School
		decode(t, rec, &sch)
		return &sch, rec.Code
	}

	rhs, code := create("Rizal High", "RHS")
	require.Equal(t, http.StatusCreated, code)
	_, code = create("Another Rizal", "RHS")
	assert.Equal(t, http.StatusBadRequest, code, "duplicate code")
	_, code = create("Bad Code", "R H S")
	assert.Equal(t, http.StatusBadRequest, code, "invalid code")

	body := marchallObj(t, school.UpdateSchool{Name: "Rizal National High", Address: "Manila", Code: "RNHS"})
	rec := f.do(newAuthRequest(http.MethodPut, "/v1/poweruser/schools/"+rhs.ID, token, body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated school.School
	decode(t, rec, &updated)
	assert.Equal(t, "RNHS", updated.Code)

	rec = f.do(newAuthRequest(http.MethodDelete, "/v1/poweruser/schools/"+rhs.ID, token))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(newAuthRequest(http.MethodGet, "/v1/poweruser/schools/"+rhs.ID, token))
	checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "school not found"})}, rec)

	// every action lands in the audit trail, newest first
	rec = f.do(newAuthRequest(http.MethodGet, "/v1/poweruser/audit-logs?limit=2", token))
	require.Equal(t, http.StatusOK, rec.Code)
	var logs []audit.Log
	decode(t, rec, &logs)
	require.Len(t, logs, 2)
	assert.Contains(t, logs[0].Action, "Deleted school")
	assert.Equal(t, root.Email, logs[0].User)
}

func Test_powerUserApi_createSchoolTeacher(t *testing.T) {
	f := setup(t)
	sch := f.createSchool(t, "Rizal High", "RHS")
	token := getToken(t, f.createUser(t, "Root", "root@gradebook.ph", "pwd", "", user.PowerUserRoles, true))

	body := marchallObj(t, teacher.NewTeacher{
		FullName:        "Ana Santos",
		Email:           "ana@rhs.edu.ph",
		Password:        "Gr@d3B00k-Ana",
		PasswordConfirm: "Gr@d3B00k-Ana",
		SchoolID:        "ignored",
	})
	rec := f.do(newAuthRequest(http.MethodPost, "/v1/poweruser/schools/"+sch.ID+"/teachers", token, body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var tch teacher.Teacher
	decode(t, rec, &tch)
	assert.Equal(t, sch.ID, tch.SchoolID)

	sent := emailsvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "ana@rhs.edu.ph", sent[0].To[0].Address)

	rec = f.do(newAuthRequest(http.MethodGet, "/v1/poweruser/schools/"+sch.ID+"/teachers", token))
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, tch)}, rec)
}

func Test_powerUserApi_admins(t *testing.T) {
	f := setup(t)
	rhs := f.createSchool(t, "Rizal High", "RHS")
	bhs := f.createSchool(t, "Bonifacio High", "BHS")
	token := getToken(t, f.createUser(t, "Root", "root@gradebook.ph", "pwd", "", user.PowerUserRoles, true))
	teacherUsr := f.createUser(t, "Ana Santos", "ana@rhs.edu.ph", "pwd", rhs.ID, user.TeacherRoles, true)

	newAdmin := func(email, schoolID string) []byte {
		return marchallObj(t, school.NewAdmin{
			FullName: "School Admin", Email: email, Password: "Gr@d3B00k-Adm", PasswordConfirm: "Gr@d3B00k-Adm", SchoolID: schoolID,
		})
	}

	rec := f.do(newAuthRequest(http.MethodPost, "/v1/poweruser/admins", token, newAdmin("admin@rhs.edu.ph", "nope")))
	checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"school_id": "school not found"})}, rec)

	rec = f.do(newAuthRequest(http.MethodPost, "/v1/poweruser/admins", token, newAdmin("admin@rhs.edu.ph", rhs.ID)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var adm user.User
	decode(t, rec, &adm)
	assert.True(t, adm.IsAdmin())
	assert.Equal(t, rhs.ID, adm.SchoolID)

	// move to another school, then unlink
	rec = f.do(newAuthRequest(http.MethodPost, "/v1/poweruser/admins/"+adm.ID+"/link", token, marchallObj(t, school.LinkAdmin{SchoolID: bhs.ID})))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &adm)
	assert.Equal(t, bhs.ID, adm.SchoolID)

	rec = f.do(newAuthRequest(http.MethodPost, "/v1/poweruser/admins/"+adm.ID+"/unlink", token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &adm)
	assert.Empty(t, adm.SchoolID)

	// bulk delete only removes admins
	path := "/v1/poweruser/admins?id=" + adm.ID + "&id=" + teacherUsr.ID
	rec = f.do(newAuthRequest(http.MethodDelete, path, token))
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, CountResponse{Count: 1})}, rec)

	rec = f.do(newAuthRequest(http.MethodGet, "/v1/poweruser/admins", token))
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t)}, rec)

	rec = f.do(newAuthRequest(http.MethodGet, "/v1/poweruser/overview", token))
	require.Equal(t, http.StatusOK, rec.Code)
	var ov school.Overview
	decode(t, rec, &ov)
	assert.Equal(t, 2, ov.Schools)
	assert.Equal(t, 0, ov.Admins)
	assert.Len(t, ov.RecentLogs, 4)
}
