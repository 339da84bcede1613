// Package jobs runs the periodic maintenance tasks of the server.
package jobs

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/audit"
	"github.com/trezcool/gradebook/core/school"
	"github.com/trezcool/gradebook/core/schoolyear"
	"github.com/trezcool/gradebook/core/teacher"
)

const jobTimeout = 5 * time.Minute

type Deps struct {
	Logger   core.Logger
	Mail     core.EmailService
	AuditSvc audit.Service
	SchSvc   school.Service
	SyrSvc   schoolyear.Service
	TchSvc   teacher.Service
}

type Scheduler struct {
	cron *cron.Cron
	deps Deps
	conf core.JobsConfig
}

// NewScheduler registers the jobs of conf. An empty schedule disables its job.
func NewScheduler(conf core.JobsConfig, deps Deps) (*Scheduler, error) {
	logger := cronLogger{deps.Logger}
	s := &Scheduler{
		cron: cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		deps: deps,
		conf: conf,
	}
	if conf.AuditPurgeSchedule != "" {
		if _, err := s.cron.AddFunc(conf.AuditPurgeSchedule, s.wrap("audit purge", s.PurgeAuditLogs)); err != nil {
			return nil, errors.Wrap(err, "scheduling audit purge")
		}
	}
	if conf.RecordsReminderSchedule != "" {
		if _, err := s.cron.AddFunc(conf.RecordsReminderSchedule, s.wrap("records reminder", s.RemindRecords)); err != nil {
			return nil, errors.Wrap(err, "scheduling records reminder")
		}
	}
	return s, nil
}

func (s *Scheduler) wrap(name string, job func(ctx context.Context) (int, error)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		n, err := job(ctx)
		if err != nil {
			s.deps.Logger.Error(fmt.Sprintf("%s: %v", name, err), err)
			return
		}
		s.deps.Logger.Info(fmt.Sprintf("%s: %d processed", name, n))
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// PurgeAuditLogs deletes the audit logs older than the retention period.
func (s *Scheduler) PurgeAuditLogs(ctx context.Context) (int, error) {
	if s.conf.AuditRetention <= 0 {
		return 0, nil
	}
	return s.deps.AuditSvc.PurgeOlderThan(ctx, s.conf.AuditRetention)
}

// RemindRecords emails the active teachers who have not submitted their records
// for the active school year of their school.
func (s *Scheduler) RemindRecords(ctx context.Context) (int, error) {
	schools, err := s.deps.SchSvc.Query(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "querying schools")
	}

	submitted := false
	var msgs []*core.EmailMessage
	for _, sch := range schools {
		sy, err := s.deps.SyrSvc.GetActive(ctx, sch.ID)
		if err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return 0, errors.Wrapf(err, "getting active school year of %s", sch.Code)
		}
		teachers, err := s.deps.TchSvc.Query(ctx, teacher.QueryFilter{SchoolID: sch.ID, RecordsSubmitted: &submitted})
		if err != nil {
			return 0, errors.Wrapf(err, "querying teachers of %s", sch.Code)
		}
		for _, tch := range teachers {
			msgs = append(msgs, &core.EmailMessage{
				To:           []mail.Address{{Name: tch.FullName, Address: tch.Email}},
				Subject:      "Class records reminder",
				TemplateName: "records_reminder",
				TemplateData: map[string]string{"Name": tch.FullName, "SchoolYear": sy.Label},
			})
		}
	}
	if len(msgs) > 0 {
		s.deps.Mail.SendMessages(msgs...)
	}
	return len(msgs), nil
}

// cronLogger reports the scheduler's own events through core.Logger.
type cronLogger struct {
	logger core.Logger
}

var _ cron.Logger = cronLogger{}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(fmt.Sprintf("cron: %s: %v", msg, err), append([]interface{}{err}, keysAndValues...)...)
}
