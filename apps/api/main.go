package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/gradebook/apps/api/echo"
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
	"github.com/trezcool/gradebook/services/jobs"
	logsvc "github.com/trezcool/gradebook/services/logger"
	storagesvc "github.com/trezcool/gradebook/services/storage"
	"github.com/trezcool/gradebook/storage/database"
	inmemdb "github.com/trezcool/gradebook/storage/database/inmem"
	sqlxrepos "github.com/trezcool/gradebook/storage/database/sqlx"
)

// repositories groups the storage layer of every core package.
type repositories struct {
	usr  user.Repository
	sch  school.Repository
	aud  audit.Repository
	tch  teacher.Repository
	syr  schoolyear.Repository
	cur  curriculum.Repository
	sec  section.Repository
	st   student.Repository
	grd  grading.Repository
	anns announcement.Repository
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.Conf

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	jobsLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "JOBS : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	jobsLogger.Enable(!conf.Debug)

	// set up DB & repos
	var db core.DB
	var repos repositories
	if conf.Database.Engine == "memory" {
		logger.Warn("Using the in-memory database: data is lost on exit")
		repos = inmemRepositories(inmemdb.NewDB())
	} else {
		sqlDB, err := setUpDB(conf, dbLogger)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		defer func() {
			if err = sqlDB.Close(); err != nil {
				dbLogger.Fatal("Failed to close", err)
			}
		}()
		db = sqlDB
		repos = sqlxRepositories(sqlDB)
	}

	// set up cache
	var cache core.Cache = cachesvc.NewMemoryCache()
	if conf.Redis.URL != "" {
		redisCache, err := cachesvc.NewRedisCache(context.Background(), conf.Redis.URL)
		if err != nil {
			logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
		}
		defer func() { _ = redisCache.Close() }()
		cache = redisCache
	}

	// set up file storage
	var storage core.FileStorage = storagesvc.NewMemoryStorage(conf.Storage.PublicBaseURL)
	if conf.Storage.OSSBucket != "" {
		ossStorage, err := storagesvc.NewOSSStorage(conf.Storage)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up OSS storage: %v", err), err)
		}
		storage = ossStorage
	} else {
		logger.Warn("OSS bucket not configured: profile pictures are kept in memory")
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}
	usrSvc := user.NewService(db, repos.usr, mailSvc)
	auditSvc := audit.NewService(repos.aud)
	tchSvc := teacher.NewService(db, repos.tch, repos.usr, usrSvc, storage)
	schSvc := school.NewService(db, repos.sch, repos.usr, usrSvc, repos.tch, tchSvc, auditSvc)
	syrSvc := schoolyear.NewService(db, repos.syr)
	curSvc := curriculum.NewService(repos.cur)
	secSvc := section.NewService(db, repos.sec)
	stSvc := student.NewService(db, repos.st)
	grdSvc := grading.NewService(db, repos.grd, repos.sec, repos.st, cache)
	annSvc := announcement.NewService(repos.anns)
	dashSvc := dashboard.NewService(syrSvc, curSvc, secSvc, tchSvc, stSvc, grdSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	student.InitValidators(validate, translator)

	core.ParseEmailTemplates(logger)

	user.LoadCommonPasswords(logger)

	// =========================================================================
	// Start Background Jobs

	scheduler, err := jobs.NewScheduler(conf.Jobs, jobs.Deps{
		Logger:   jobsLogger,
		Mail:     mailSvc,
		AuditSvc: auditSvc,
		SchSvc:   schSvc,
		SyrSvc:   syrSvc,
		TchSvc:   tchSvc,
	})
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up jobs: %v", err), err)
	}
	scheduler.Start()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:            conf,
			Logger:          logger,
			Validate:        validate,
			Translator:      translator,
			UserSvc:         usrSvc,
			SchoolSvc:       schSvc,
			AuditSvc:        auditSvc,
			TeacherSvc:      tchSvc,
			SchoolYearSvc:   syrSvc,
			CurriculumSvc:   curSvc,
			SectionSvc:      secSvc,
			StudentSvc:      stSvc,
			GradingSvc:      grdSvc,
			AnnouncementSvc: annSvc,
			DashboardSvc:    dashSvc,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		scheduler.Stop(ctx)

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config, logger core.Logger) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	version, err := database.Migrate(db)
	if err != nil {
		return nil, err
	}
	logger.Info(fmt.Sprintf("Schema at version %d", version))
	return db, nil
}

func sqlxRepositories(db *sql.DB) repositories {
	return repositories{
		usr:  sqlxrepos.NewUserRepository(db),
		sch:  sqlxrepos.NewSchoolRepository(db),
		aud:  sqlxrepos.NewAuditRepository(db),
		tch:  sqlxrepos.NewTeacherRepository(db),
		syr:  sqlxrepos.NewSchoolYearRepository(db),
		cur:  sqlxrepos.NewCurriculumRepository(db),
		sec:  sqlxrepos.NewSectionRepository(db),
		st:   sqlxrepos.NewStudentRepository(db),
		grd:  sqlxrepos.NewGradingRepository(db),
		anns: sqlxrepos.NewAnnouncementRepository(db),
	}
}

func inmemRepositories(db *inmemdb.DB) repositories {
	return repositories{
		usr:  inmemdb.NewUserRepository(db),
		sch:  inmemdb.NewSchoolRepository(db),
		aud:  inmemdb.NewAuditRepository(db),
		tch:  inmemdb.NewTeacherRepository(db),
		syr:  inmemdb.NewSchoolYearRepository(db),
		cur:  inmemdb.NewCurriculumRepository(db),
		sec:  inmemdb.NewSectionRepository(db),
		st:   inmemdb.NewStudentRepository(db),
		grd:  inmemdb.NewGradingRepository(db),
		anns: inmemdb.NewAnnouncementRepository(db),
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
