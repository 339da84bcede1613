package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/gradebook/apps/api/echo"
	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/announcement"
	"github.com/trezcool/gradebook/core/audit"
	"github.com/trezcool/gradebook/core/curriculum"
	"github.com/trezcool/gradebook/core/dashboard"
	"github.com/trezcool/gradebook/core/grading"
	"github.com/trezcool/gradebook/core/school"
	"github.com/trezcool/gradebook/core/schoolyear"
	"github.com/trezcool/gradebook/core/section"
	"github.com/trezcool/gradebook/core/student"
	"github.com/trezcool/gradebook/core/teacher"
	"github.com/trezcool/gradebook/core/user"
	cachesvc "github.com/trezcool/gradebook/services/cache"
	emailsvc "github.com/trezcool/gradebook/services/email"
	logsvc "github.com/trezcool/gradebook/services/logger"
	storagesvc "github.com/trezcool/gradebook/services/storage"
	inmemdb "github.com/trezcool/gradebook/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

// fixture is a server backed by a fresh in-memory database.
type fixture struct {
	app     Server
	usrRepo user.Repository
	schRepo school.Repository
	tchRepo teacher.Repository
	syrRepo schoolyear.Repository
	secSvc  section.Service
	stRepo  student.Repository
	storage *storagesvc.MemoryStorage
}

func setup(t *testing.T) fixture {
	t.Helper()
	emailsvc.ResetSentMessages()

	db := inmemdb.NewDB()
	f := fixture{
		usrRepo: inmemdb.NewUserRepository(db),
		schRepo: inmemdb.NewSchoolRepository(db),
		tchRepo: inmemdb.NewTeacherRepository(db),
		syrRepo: inmemdb.NewSchoolYearRepository(db),
		stRepo:  inmemdb.NewStudentRepository(db),
		storage: storagesvc.NewMemoryStorage(""),
	}
	secRepo := inmemdb.NewSectionRepository(db)

	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), core.Conf)
	mailSvc := emailsvc.NewConsoleServiceMock()
	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	student.InitValidators(validate, translator)

	usrSvc := user.NewService(nil, f.usrRepo, mailSvc)
	auditSvc := audit.NewService(inmemdb.NewAuditRepository(db))
	tchSvc := teacher.NewService(nil, f.tchRepo, f.usrRepo, usrSvc, f.storage)
	syrSvc := schoolyear.NewService(nil, f.syrRepo)
	curSvc := curriculum.NewService(inmemdb.NewCurriculumRepository(db))
	f.secSvc = section.NewService(nil, secRepo)
	stSvc := student.NewService(nil, f.stRepo)
	grdSvc := grading.NewService(nil, inmemdb.NewGradingRepository(db), secRepo, f.stRepo, cachesvc.NewMemoryCache())

	f.app = NewServer(ServerDeps{
		Conf:            core.Conf,
		Logger:          logger,
		Validate:        validate,
		Translator:      translator,
		UserSvc:         usrSvc,
		SchoolSvc:       school.NewService(nil, f.schRepo, f.usrRepo, usrSvc, f.tchRepo, tchSvc, auditSvc),
		AuditSvc:        auditSvc,
		TeacherSvc:      tchSvc,
		SchoolYearSvc:   syrSvc,
		CurriculumSvc:   curSvc,
		SectionSvc:      f.secSvc,
		StudentSvc:      stSvc,
		GradingSvc:      grdSvc,
		AnnouncementSvc: announcement.NewService(inmemdb.NewAnnouncementRepository(db)),
		DashboardSvc:    dashboard.NewService(syrSvc, curSvc, f.secSvc, tchSvc, stSvc, grdSvc),
		DisableReqLogs:  true,
	})
	return f
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// Fixtures

func (f fixture) createUser(t *testing.T, name, email, pwd, schoolID string, roles []string, isActive bool) user.User {
	t.Helper()
	now := time.Now().UTC()
	usr := user.User{
		Name:      name,
		Email:     email,
		SchoolID:  schoolID,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pwd != "" {
		require.NoError(t, usr.SetPassword(pwd))
	}
	usr, err := f.usrRepo.CreateUser(context.Background(), usr)
	require.NoError(t, err)
	return usr
}

func (f fixture) createSchool(t *testing.T, name, code string) school.School {
	t.Helper()
	sch, err := f.schRepo.CreateSchool(context.Background(), school.School{Name: name, Code: code, CreatedAt: time.Now().UTC()})
	require.NoError(t, err)
	return sch
}

// createTeacher creates a teacher along with their account.
func (f fixture) createTeacher(t *testing.T, schoolID, name, email, pwd string, archived bool) teacher.Teacher {
	t.Helper()
	usr := f.createUser(t, name, email, pwd, schoolID, user.TeacherRoles, true)
	tch, err := f.tchRepo.CreateTeacher(context.Background(), teacher.Teacher{
		UserID:     usr.ID,
		SchoolID:   schoolID,
		FullName:   name,
		Email:      email,
		IsArchived: archived,
		CreatedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	return tch
}

func (f fixture) createSchoolYear(t *testing.T, schoolID, label string) schoolyear.SchoolYear {
	t.Helper()
	ctx := context.Background()
	sy, err := f.syrRepo.CreateSchoolYear(ctx, schoolyear.SchoolYear{
		SchoolID: schoolID, Label: label, StartDate: "2024-06-03", EndDate: "2025-03-28",
	})
	require.NoError(t, err)
	require.NoError(t, f.syrRepo.SetActive(ctx, schoolID, sy.ID))
	sy.IsActive = true
	return sy
}

// createSection creates a section advised by adviserID, where adviserID also teaches every subject.
func (f fixture) createSection(t *testing.T, schoolID, schoolYearID, name, adviserID string) section.Detail {
	t.Helper()
	subjects := make(map[string]string, len(section.Subjects))
	for _, subject := range section.Subjects {
		subjects[subject] = adviserID
	}
	det, err := f.secSvc.Save(context.Background(), schoolID, "", section.SaveSection{
		Name:         name,
		GradeLevel:   "7",
		AdviserID:    adviserID,
		SchoolYearID: schoolYearID,
		Subjects:     subjects,
	})
	require.NoError(t, err)
	return det
}

func (f fixture) createStudent(t *testing.T, sectionID, lrn, name, gender string) student.Student {
	t.Helper()
	now := time.Now().UTC()
	st, err := f.stRepo.CreateStudent(context.Background(), student.Student{
		SectionID:   sectionID,
		LRN:         lrn,
		Name:        name,
		Gender:      gender,
		DateOfBirth: "2012-01-15",
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	require.NoError(t, err)
	return st
}

// HTTP helpers

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// newUploadRequest sends content as the multipart `file` field.
func newUploadRequest(t *testing.T, method, path, token, filename string, content []byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req, httptest.NewRecorder()
}

func (f fixture) do(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	f.app.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest), rec.Body.String())
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, f fixture, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, f.do(req, rec))
		})
	}
}

// tokenFor returns a token for the account userID.
func (f fixture) tokenFor(t *testing.T, userID string) string {
	t.Helper()
	usr, err := f.usrRepo.GetUser(context.Background(), user.GetFilter{ID: userID})
	require.NoError(t, err)
	return getToken(t, usr)
}
