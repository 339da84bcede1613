package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/gradebook/apps/api/echo"
	"github.com/trezcool/gradebook/core/teacher"
	"github.com/trezcool/gradebook/core/user"
)

func Test_authApi_login(t *testing.T) {
	f := setup(t)
	sch := f.createSchool(t, "Rizal High", "RHS")
	f.createUser(t, "Root", "root@gradebook.ph", "pwd", "", user.PowerUserRoles, true)
	f.createUser(t, "Admin", "admin@rhs.edu.ph", "pwd", sch.ID, user.AdminRoles, true)
	f.createTeacher(t, sch.ID, "Ana Santos", "ana@rhs.edu.ph", "pwd", false)
	f.createUser(t, "Gone", "gone@rhs.edu.ph", "pwd", sch.ID, user.TeacherRoles, false)
	f.createUser(t, "Nobody", "nobody@rhs.edu.ph", "pwd", sch.ID, nil, true)

	login := func(email, pwd string) []byte {
		return marchallObj(t, LoginRequest{Email: email, Password: pwd})
	}

	tests := []struct {
		name         string
		path         string
		body         []byte
		wantCode     int
		wantRedirect string
		wantErr      string
	}{
		{name: "power user", path: "/v1/auth/login", body: login("root@gradebook.ph", "pwd"), wantCode: http.StatusOK, wantRedirect: user.RedirectPowerUser},
		{name: "admin", path: "/v1/auth/login", body: login("admin@rhs.edu.ph", "pwd"), wantCode: http.StatusOK, wantRedirect: user.RedirectAdmin},
		{name: "teacher", path: "/v1/auth/login", body: login("ANA@rhs.edu.ph ", "pwd"), wantCode: http.StatusOK, wantRedirect: user.RedirectTeacher},
		{name: "wrong password", path: "/v1/auth/login", body: login("ana@rhs.edu.ph", "nope"), wantCode: http.StatusBadRequest, wantErr: "authentication failed"},
		{name: "unknown email", path: "/v1/auth/login", body: login("who@rhs.edu.ph", "pwd"), wantCode: http.StatusBadRequest, wantErr: "authentication failed"},
		{name: "deactivated", path: "/v1/auth/login", body: login("gone@rhs.edu.ph", "pwd"), wantCode: http.StatusForbidden, wantErr: "account deactivated"},
		{name: "no role", path: "/v1/auth/login", body: login("nobody@rhs.edu.ph", "pwd"), wantCode: http.StatusForbidden, wantErr: "account has no role"},
		{name: "super access: power user", path: "/v1/auth/super-access", body: login("root@gradebook.ph", "pwd"), wantCode: http.StatusOK, wantRedirect: user.RedirectPowerUser},
		{name: "super access: admin", path: "/v1/auth/super-access", body: login("admin@rhs.edu.ph", "pwd"), wantCode: http.StatusForbidden, wantErr: "access restricted to power users"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(newRequest(http.MethodPost, tt.path, tt.body))
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())

			if tt.wantErr != "" {
				var resp httpErr
				decode(t, rec, &resp)
				assert.Equal(t, tt.wantErr, resp.Error)
				return
			}
			var resp LoginResponse
			decode(t, rec, &resp)
			assert.NotEmpty(t, resp.Token)
			assert.Equal(t, tt.wantRedirect, resp.Redirect)
		})
	}
}

func Test_authApi_signup(t *testing.T) {
	f := setup(t)
	sch := f.createSchool(t, "Rizal High", "RHS")

	signup := func(code string) []byte {
		return marchallObj(t, SignupRequest{
			FullName:        "maria  clara",
			Email:           "Maria@rhs.edu.ph",
			Password:        "Gr@d3B00k-Maria",
			PasswordConfirm: "Gr@d3B00k-Maria",
			SchoolCode:      code,
		})
	}

	t.Run("unknown school code", func(t *testing.T) {
		rec := f.do(newRequest(http.MethodPost, "/v1/auth/signup", signup("XYZ")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"school_code": "no school matches this code"}`, rec.Body.String())
	})

	t.Run("success", func(t *testing.T) {
		rec := f.do(newRequest(http.MethodPost, "/v1/auth/signup", signup(" RHS ")))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var tch teacher.Teacher
		decode(t, rec, &tch)
		assert.Equal(t, sch.ID, tch.SchoolID)
		assert.Equal(t, "maria@rhs.edu.ph", tch.Email)
		assert.False(t, tch.IsArchived)

		// the new account can log in
		body := marchallObj(t, LoginRequest{Email: "maria@rhs.edu.ph", Password: "Gr@d3B00k-Maria"})
		rec = f.do(newRequest(http.MethodPost, "/v1/auth/login", body))
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("email taken", func(t *testing.T) {
		rec := f.do(newRequest(http.MethodPost, "/v1/auth/signup", signup("RHS")))
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})
}

func Test_authApi_me(t *testing.T) {
	f := setup(t)
	sch := f.createSchool(t, "Rizal High", "RHS")
	admin := f.createUser(t, "Admin", "admin@rhs.edu.ph", "pwd", sch.ID, user.AdminRoles, true)
	tch := f.createTeacher(t, sch.ID, "Ana Santos", "ana@rhs.edu.ph", "pwd", false)
	tchUsr, err := f.usrRepo.GetUser(context.Background(), user.GetFilter{ID: tch.UserID})
	require.NoError(t, err)

	t.Run("auth required", func(t *testing.T) {
		rec := f.do(newRequest(http.MethodGet, "/v1/auth/me"))
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
	})

	t.Run("admin", func(t *testing.T) {
		rec := f.do(newAuthRequest(http.MethodGet, "/v1/auth/me", getToken(t, admin)))
		require.Equal(t, http.StatusOK, rec.Code)
		var resp MeResponse
		decode(t, rec, &resp)
		assert.Equal(t, admin.ID, resp.User.ID)
		assert.Equal(t, user.RedirectAdmin, resp.Redirect)
		assert.Nil(t, resp.Teacher)
	})

	t.Run("teacher", func(t *testing.T) {
		rec := f.do(newAuthRequest(http.MethodGet, "/v1/auth/me", getToken(t, tchUsr)))
		require.Equal(t, http.StatusOK, rec.Code)
		var resp MeResponse
		decode(t, rec, &resp)
		assert.Equal(t, user.RedirectTeacher, resp.Redirect)
		require.NotNil(t, resp.Teacher)
		assert.Equal(t, tch.ID, resp.Teacher.ID)
	})
}
