package jobs

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/audit"
	"github.com/trezcool/gradebook/core/school"
	"github.com/trezcool/gradebook/core/schoolyear"
	"github.com/trezcool/gradebook/core/teacher"
	"github.com/trezcool/gradebook/core/user"
	emailsvc "github.com/trezcool/gradebook/services/email"
	logsvc "github.com/trezcool/gradebook/services/logger"
	inmemdb "github.com/trezcool/gradebook/storage/database/inmem"
)

type fixture struct {
	sched    *Scheduler
	db       *inmemdb.DB
	schRepo  school.Repository
	syrRepo  schoolyear.Repository
	tchRepo  teacher.Repository
	auditRep audit.Repository
}

func newFixture(t *testing.T, conf core.JobsConfig) fixture {
	t.Helper()
	db := inmemdb.NewDB()
	mailSvc := emailsvc.NewConsoleServiceMock()
	usrRepo := inmemdb.NewUserRepository(db)
	usrSvc := user.NewService(nil, usrRepo, mailSvc)
	tchRepo := inmemdb.NewTeacherRepository(db)
	tchSvc := teacher.NewService(nil, tchRepo, usrRepo, usrSvc, nil)
	auditRepo := inmemdb.NewAuditRepository(db)
	auditSvc := audit.NewService(auditRepo)
	schRepo := inmemdb.NewSchoolRepository(db)
	syrRepo := inmemdb.NewSchoolYearRepository(db)

	sched, err := NewScheduler(conf, Deps{
		Logger:   logsvc.NewRollbarLogger(log.New(os.Stderr, "JOBS : ", log.LstdFlags), core.Conf),
		Mail:     mailSvc,
		AuditSvc: auditSvc,
		SchSvc:   school.NewService(nil, schRepo, usrRepo, usrSvc, tchRepo, tchSvc, auditSvc),
		SyrSvc:   schoolyear.NewService(nil, syrRepo),
		TchSvc:   tchSvc,
	})
	require.NoError(t, err)
	return fixture{sched: sched, db: db, schRepo: schRepo, syrRepo: syrRepo, tchRepo: tchRepo, auditRep: auditRepo}
}

func TestNewScheduler_InvalidSchedule(t *testing.T) {
	_, err := NewScheduler(core.JobsConfig{AuditPurgeSchedule: "every now and then"}, Deps{})
	assert.Error(t, err)
}

func TestPurgeAuditLogs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, core.JobsConfig{AuditRetention: 30 * 24 * time.Hour})

	now := time.Now().UTC()
	for _, age := range []time.Duration{90 * 24 * time.Hour, 31 * 24 * time.Hour, time.Hour} {
		_, err := f.auditRep.CreateLog(ctx, audit.Log{Action: "created school", User: audit.SystemActor, CreatedAt: now.Add(-age)})
		require.NoError(t, err)
	}

	n, err := f.sched.PurgeAuditLogs(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)

	logs, err := f.auditRep.QueryLogs(ctx, 10)
	assert.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestPurgeAuditLogs_NoRetention(t *testing.T) {
	f := newFixture(t, core.JobsConfig{})
	n, err := f.sched.PurgeAuditLogs(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestRemindRecords(t *testing.T) {
	ctx := context.Background()
	emailsvc.ResetSentMessages()
	f := newFixture(t, core.JobsConfig{})

	active, err := f.schRepo.CreateSchool(ctx, school.School{Name: "Rizal High", Code: "RHS"})
	require.NoError(t, err)
	idle, err := f.schRepo.CreateSchool(ctx, school.School{Name: "Bonifacio High", Code: "BHS"})
	require.NoError(t, err)

	sy, err := f.syrRepo.CreateSchoolYear(ctx, schoolyear.SchoolYear{
		SchoolID: active.ID, Label: "2024-2025", StartDate: "2024-06-03", EndDate: "2025-03-28",
	})
	require.NoError(t, err)
	require.NoError(t, f.syrRepo.SetActive(ctx, active.ID, sy.ID))

	teachers := []teacher.Teacher{
		{SchoolID: active.ID, FullName: "Ana Santos", Email: "ana@rhs.edu.ph"},
		{SchoolID: active.ID, FullName: "Ben Cruz", Email: "ben@rhs.edu.ph", RecordsSubmitted: true},
		{SchoolID: active.ID, FullName: "Carla Reyes", Email: "carla@rhs.edu.ph", IsArchived: true},
		{SchoolID: idle.ID, FullName: "Dan Lim", Email: "dan@bhs.edu.ph"}, // no active school year
	}
	for _, tch := range teachers {
		_, err = f.tchRepo.CreateTeacher(ctx, tch)
		require.NoError(t, err)
	}

	n, err := f.sched.RemindRecords(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, n)

	sent := emailsvc.SentMessages()
	if assert.Len(t, sent, 1) {
		assert.Equal(t, "ana@rhs.edu.ph", sent[0].To[0].Address)
		assert.Contains(t, sent[0].TextContent, "2024-2025")
	}
}
