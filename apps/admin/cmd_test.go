package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/gradebook/core/section"
	"github.com/trezcool/gradebook/core/student"
	"github.com/trezcool/gradebook/core/user"
	inmemdb "github.com/trezcool/gradebook/storage/database/inmem"
)

type fixture struct {
	cli     *commandLine
	usrRepo user.Repository
	secRepo section.Repository
	stSvc   student.Service
}

func setup(t *testing.T) fixture {
	t.Helper()

	// set up DB & repos
	db := inmemdb.NewDB()
	f := fixture{
		usrRepo: inmemdb.NewUserRepository(db),
		secRepo: inmemdb.NewSectionRepository(db),
		stSvc:   student.NewService(nil, inmemdb.NewStudentRepository(db)),
	}

	// start CLI
	f.cli = &commandLine{
		usrRepo: f.usrRepo,
		secSvc:  section.NewService(nil, f.secRepo),
		stSvc:   f.stSvc,
	}
	return f
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_usage(t *testing.T) {
	f := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "createpoweruser: no args", args: []string{"createpoweruser"}, wantErr: errHelp},
		{name: "createpoweruser: no email", args: []string{"createpoweruser", "-name", "Root"}, pwd: "pwd", wantErr: errHelp},
		{name: "importstudents: no file", args: []string{"importstudents", "-section", "lol"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(tt.pwd)
			tt.check(t, f.cli.run(append([]string{"admin"}, tt.args...)))
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	f := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "grades_index", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, f.cli.run(append([]string{"admin"}, tt.args...)))
		})
	}
}

func Test_commandLine_createPowerUser(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	mockPassword("")
	err := f.cli.run([]string{"admin", "createpoweruser", "-name", "Root", "-email", "root@test.ph"})
	assert.Equal(t, errHelp, err, "empty password")

	mockPassword("s3cr3t-pwd")
	require.NoError(t, f.cli.run([]string{"admin", "createpoweruser", "-name", "Root", "-email", " Root@Test.ph "}))

	usr, err := f.usrRepo.GetUser(ctx, user.GetFilter{Email: "root@test.ph"})
	require.NoError(t, err)
	assert.Equal(t, "Root", usr.Name)
	assert.True(t, usr.IsActive)
	assert.True(t, usr.IsPowerUser())
	assert.NoError(t, usr.CheckPassword("s3cr3t-pwd"))

	t.Run("promotes an existing user", func(t *testing.T) {
		teacher := user.User{Name: "Ana", Email: "ana@test.ph", SchoolID: "sch", Roles: user.TeacherRoles}
		require.NoError(t, teacher.SetPassword("old"))
		teacher, err := f.usrRepo.CreateUser(ctx, teacher)
		require.NoError(t, err)

		mockPassword("new-pwd")
		require.NoError(t, f.cli.run([]string{"admin", "createpoweruser", "-name", "Ana Cruz", "-email", "ana@test.ph"}))

		usr, err := f.usrRepo.GetUser(ctx, user.GetFilter{ID: teacher.ID})
		require.NoError(t, err)
		assert.Equal(t, "Ana Cruz", usr.Name)
		assert.Equal(t, user.PowerUserRoles, usr.Roles)
		assert.Empty(t, usr.SchoolID)
		assert.NoError(t, usr.CheckPassword("new-pwd"))
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	f := setup(t)

	usr := user.User{Name: "User", Email: "awe@test.ph", IsActive: true, Roles: user.AdminRoles}
	require.NoError(t, usr.SetPassword("mdr"))
	usr, err := f.usrRepo.CreateUser(context.Background(), usr)
	require.NoError(t, err)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@test.ph"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@test.ph"}, pwd: "lol", wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", usr.Email}, pwd: "lol"},
		{name: "reset with mixed case email", args: []string{"resetpassword", "-email", "AWE@test.ph"}, pwd: "lmao"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(tt.pwd)
			err := f.cli.run(append([]string{"admin"}, tt.args...))
			tt.check(t, err)
			if err == nil {
				refreshedUsr, err := f.usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
				require.NoError(t, err)
				assert.False(t, bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash), "failed to update new password")
				assert.NoError(t, refreshedUsr.CheckPassword(tt.pwd))
			}
		})
	}
}

func Test_commandLine_importStudents(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	sec, err := f.secRepo.CreateSection(ctx, section.Section{SchoolID: "sch", Name: "Rizal", GradeLevel: "7", SchoolYearID: "sy"})
	require.NoError(t, err)

	dir := t.TempDir()
	roster := filepath.Join(dir, "roster.csv")
	data := "LRN,Name,Gender\n" +
		"123456789012,Juan Dela Cruz,Male\n" +
		"123456789013,Maria Clara,F\n" +
		"12345,Short Lrn,Female\n"
	require.NoError(t, os.WriteFile(roster, []byte(data), 0o600))

	tests := []cliTest{
		{name: "no args", args: []string{"importstudents"}, wantErr: errHelp},
		{name: "unknown section", args: []string{"importstudents", "-section", "lol", "-file", roster}, wantErr: section.ErrNotFound},
		{name: "missing file", args: []string{"importstudents", "-section", sec.ID, "-file", filepath.Join(dir, "nope.csv")}, wantErrStr: "reading roster: open " + filepath.Join(dir, "nope.csv") + ": no such file or directory"},
		{name: "import", args: []string{"importstudents", "-section", sec.ID, "-file", roster}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, f.cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	students, err := f.stSvc.Query(ctx, student.QueryFilter{SectionID: sec.ID, Sort: "lrn"})
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "123456789012", students[0].LRN)
	assert.Equal(t, "Maria Clara", students[1].Name)
}
