package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

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
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		UserSvc         user.Service
		SchoolSvc       school.Service
		AuditSvc        audit.Service
		TeacherSvc      teacher.Service
		SchoolYearSvc   schoolyear.Service
		CurriculumSvc   curriculum.Service
		SectionSvc      section.Service
		StudentSvc      student.Service
		GradingSvc      grading.Service
		AnnouncementSvc announcement.Service
		DashboardSvc    dashboard.Service

		DisableReqLogs bool
	}

	Server interface {
		http.Handler
		Start()
		// Errors receives the error that stopped the server, if any.
		Errors() <-chan error
		// ShutdownSignal receives SIGINT & SIGTERM, as well as the shutdown requests of the error handler.
		ShutdownSignal() <-chan os.Signal
		Shutdown(ctx context.Context) error
		Close() error
	}

	server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	if deps.Conf == nil {
		deps.Conf = core.Conf
	}
	s := &server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.app.HideBanner = true
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(corsMiddleware(conf.Server.AllowedOrigins))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)
	rateLimit := rateLimitMiddleware(conf.Server.AuthRateLimit)

	registerAuthAPI(v1, jwt, rateLimit, s.deps)
	registerPowerUserAPI(v1, jwt, s.deps)
	registerAdminAPI(v1, jwt, s.deps)
	registerTeacherAPI(v1, jwt, s.deps)
	registerStudentsAPI(v1, jwt, s.deps)
	registerRecordsAPI(v1, jwt, s.deps)
}

func (s *server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)

	s.deps.Logger.Info("API listening on " + s.deps.Conf.Server.Host)
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Errors() <-chan error {
	return s.errors
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+core.Conf.AppName+" API!")
}
