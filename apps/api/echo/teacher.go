package echoapi

import (
	"bytes"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core/announcement"
	"github.com/trezcool/gradebook/core/dashboard"
	"github.com/trezcool/gradebook/core/section"
	"github.com/trezcool/gradebook/core/teacher"
)

type teacherApi struct {
	svc      teacher.Service
	secSvc   section.Service
	annSvc   announcement.Service
	dashSvc  dashboard.Service
	validate *validator.Validate
}

func registerTeacherAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := teacherApi{
		svc:      deps.TeacherSvc,
		secSvc:   deps.SectionSvc,
		annSvc:   deps.AnnouncementSvc,
		dashSvc:  deps.DashboardSvc,
		validate: deps.Validate,
	}

	tg := g.Group("/teacher", jwt, teacherMiddleware(deps.TeacherSvc))
	tg.GET("/dashboard", api.dashboard)
	tg.GET("/profile", api.profile)
	tg.PUT("/profile", api.updateProfile)
	tg.PUT("/profile/picture", api.uploadProfilePic)
	tg.GET("/sections", api.advisorySections)
	tg.GET("/assignments", api.teachingAssignments)
	tg.GET("/announcements", api.announcements)
}

// currentTeacher returns the teacher loaded by teacherMiddleware.
func currentTeacher(ctx echo.Context) teacher.Teacher {
	tch, _ := ctx.Get(contextTeacherKey).(teacher.Teacher)
	return tch
}

// dashboard summarizes the advisory sections of the teacher. Query params: quarter (Q1 by default).
func (api *teacherApi) dashboard(ctx echo.Context) error {
	view, err := api.dashSvc.Teacher(ctx.Request().Context(), currentTeacher(ctx), ctx.QueryParam("quarter"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *teacherApi) profile(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, currentTeacher(ctx))
}

func (api *teacherApi) updateProfile(ctx echo.Context) error {
	var data teacher.UpdateProfile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	tch, err := api.svc.UpdateProfile(ctx.Request().Context(), currentTeacher(ctx), data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, tch)
}

// uploadProfilePic replaces the profile picture with the multipart `file` image.
func (api *teacherApi) uploadProfilePic(ctx echo.Context) error {
	_, content, err := formFile(ctx, "file")
	if err != nil {
		return err
	}

	tch, err := api.svc.UploadProfilePic(ctx.Request().Context(), currentTeacher(ctx), bytes.NewReader(content))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tch)
}

func (api *teacherApi) advisorySections(ctx echo.Context) error {
	sections, err := api.secSvc.AdvisorySections(ctx.Request().Context(), currentTeacher(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "querying advisory sections")
	}
	if sections == nil {
		sections = []section.Section{}
	}
	return ctx.JSON(http.StatusOK, sections)
}

func (api *teacherApi) teachingAssignments(ctx echo.Context) error {
	assignments, err := api.secSvc.TeachingAssignments(ctx.Request().Context(), currentTeacher(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "querying teaching assignments")
	}
	if assignments == nil {
		assignments = []section.TeachingAssignment{}
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *teacherApi) announcements(ctx echo.Context) error {
	anns, err := api.annSvc.Query(ctx.Request().Context(), currentTeacher(ctx).SchoolID)
	if err != nil {
		return errors.Wrap(err, "querying announcements")
	}
	if anns == nil {
		anns = []announcement.Announcement{}
	}
	return ctx.JSON(http.StatusOK, anns)
}
