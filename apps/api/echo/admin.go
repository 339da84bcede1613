package echoapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/announcement"
	"github.com/trezcool/gradebook/core/curriculum"
	"github.com/trezcool/gradebook/core/dashboard"
	"github.com/trezcool/gradebook/core/grading"
	"github.com/trezcool/gradebook/core/schoolyear"
	"github.com/trezcool/gradebook/core/section"
	"github.com/trezcool/gradebook/core/teacher"
)

type adminApi struct {
	tchSvc   teacher.Service
	syrSvc   schoolyear.Service
	curSvc   curriculum.Service
	secSvc   section.Service
	grdSvc   grading.Service
	annSvc   announcement.Service
	dashSvc  dashboard.Service
	validate *validator.Validate
}

func registerAdminAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := adminApi{
		tchSvc:   deps.TeacherSvc,
		syrSvc:   deps.SchoolYearSvc,
		curSvc:   deps.CurriculumSvc,
		secSvc:   deps.SectionSvc,
		grdSvc:   deps.GradingSvc,
		annSvc:   deps.AnnouncementSvc,
		dashSvc:  deps.DashboardSvc,
		validate: deps.Validate,
	}

	ag := g.Group("/admin", jwt, adminMiddleware())
	ag.GET("/dashboard", api.dashboard)

	tg := ag.Group("/teachers")
	tg.GET("", api.queryTeachers)
	tg.POST("/:id/toggle-records", api.toggleRecords)
	tg.POST("/:id/archive", api.archiveTeacher)
	tg.POST("/:id/unarchive", api.unarchiveTeacher)
	tg.POST("/:id/password-reset", api.teacherPasswordReset)
	tg.DELETE("/:id", api.removeTeacher)

	syg := ag.Group("/school-years")
	syg.GET("", api.querySchoolYears)
	syg.POST("", api.createSchoolYear)
	syg.POST("/:id/activate", api.activateSchoolYear)
	syg.DELETE("/:id", api.destroySchoolYear)

	cg := ag.Group("/curricula")
	cg.GET("", api.queryCurricula)
	cg.POST("", api.createCurriculum)
	cg.PUT("/:id", api.renameCurriculum)
	cg.DELETE("/:id", api.destroyCurriculum)

	sg := ag.Group("/sections")
	sg.GET("", api.querySections)
	sg.POST("", api.createSection)
	sg.GET("/:id", api.retrieveSection)
	sg.PUT("/:id", api.updateSection)
	sg.PATCH("/:id/name", api.renameSection)
	sg.DELETE("/:id", api.destroySection)

	ag.GET("/grade-settings", api.getWeights)
	ag.PUT("/grade-settings", api.saveWeights)

	ang := ag.Group("/announcements")
	ang.GET("", api.queryAnnouncements)
	ang.POST("", api.createAnnouncement)
	ang.DELETE("/:id", api.destroyAnnouncement)
}

// schoolID returns the school of the authenticated admin.
func schoolID(ctx echo.Context) string {
	claims, _ := getContextClaims(ctx)
	return claims.SchoolID
}

func (api *adminApi) dashboard(ctx echo.Context) error {
	view, err := api.dashSvc.Admin(ctx.Request().Context(), schoolID(ctx))
	if err != nil {
		return errors.Wrap(err, "building admin dashboard")
	}
	return ctx.JSON(http.StatusOK, view)
}

// Teachers

// queryTeachers lists the teachers of the school. Query params: search, archived, records_submitted.
func (api *adminApi) queryTeachers(ctx echo.Context) error {
	filter := teacher.QueryFilter{
		SchoolID: schoolID(ctx),
		Search:   ctx.QueryParam("search"),
	}
	filter.Archived, _ = strconv.ParseBool(ctx.QueryParam("archived"))
	if v := ctx.QueryParam("records_submitted"); v != "" {
		if submitted, err := strconv.ParseBool(v); err == nil {
			filter.RecordsSubmitted = &submitted
		}
	}
	filter.Clean()

	teachers, err := api.tchSvc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	if teachers == nil {
		teachers = []teacher.Teacher{}
	}
	return ctx.JSON(http.StatusOK, teachers)
}

func (api *adminApi) getTeacher(ctx echo.Context) (teacher.Teacher, error) {
	tch, err := api.tchSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return tch, err
	}
	if tch.SchoolID != schoolID(ctx) {
		return tch, teacher.ErrNotFound
	}
	return tch, nil
}

func (api *adminApi) toggleRecords(ctx echo.Context) error {
	tch, err := api.getTeacher(ctx)
	if err != nil {
		return err
	}
	if tch, err = api.tchSvc.ToggleRecordsSubmitted(ctx.Request().Context(), tch); err != nil {
		return errors.Wrap(err, "toggling records submitted")
	}
	return ctx.JSON(http.StatusOK, tch)
}

func (api *adminApi) archiveTeacher(ctx echo.Context) error {
	return api.setArchived(ctx, true)
}

func (api *adminApi) unarchiveTeacher(ctx echo.Context) error {
	return api.setArchived(ctx, false)
}

func (api *adminApi) setArchived(ctx echo.Context, archived bool) error {
	tch, err := api.getTeacher(ctx)
	if err != nil {
		return err
	}
	if tch, err = api.tchSvc.SetArchived(ctx.Request().Context(), tch, archived); err != nil {
		return errors.Wrap(err, "archiving teacher")
	}
	return ctx.JSON(http.StatusOK, tch)
}

func (api *adminApi) teacherPasswordReset(ctx echo.Context) error {
	tch, err := api.getTeacher(ctx)
	if err != nil {
		return err
	}
	if err = api.tchSvc.SendPasswordReset(ctx.Request().Context(), tch); err != nil {
		return errors.Wrap(err, "sending password reset")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "password reset email sent to " + tch.Email})
}

func (api *adminApi) removeTeacher(ctx echo.Context) error {
	tch, err := api.getTeacher(ctx)
	if err != nil {
		return err
	}
	if err = api.tchSvc.Remove(ctx.Request().Context(), tch); err != nil {
		return errors.Wrap(err, "removing teacher")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// School years

func (api *adminApi) querySchoolYears(ctx echo.Context) error {
	years, err := api.syrSvc.Query(ctx.Request().Context(), schoolID(ctx))
	if err != nil {
		return errors.Wrap(err, "querying school years")
	}
	if years == nil {
		years = []schoolyear.SchoolYear{}
	}
	return ctx.JSON(http.StatusOK, years)
}

func (api *adminApi) createSchoolYear(ctx echo.Context) error {
	var data schoolyear.NewSchoolYear
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchoolYear")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sy, err := api.syrSvc.Create(ctx.Request().Context(), schoolID(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating school year")
	}
	return ctx.JSON(http.StatusCreated, sy)
}

func (api *adminApi) getSchoolYear(ctx echo.Context) (schoolyear.SchoolYear, error) {
	sy, err := api.syrSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return sy, err
	}
	if sy.SchoolID != schoolID(ctx) {
		return sy, schoolyear.ErrNotFound
	}
	return sy, nil
}

func (api *adminApi) activateSchoolYear(ctx echo.Context) error {
	sy, err := api.getSchoolYear(ctx)
	if err != nil {
		return err
	}
	if sy, err = api.syrSvc.Activate(ctx.Request().Context(), sy); err != nil {
		return errors.Wrap(err, "activating school year")
	}
	return ctx.JSON(http.StatusOK, sy)
}

func (api *adminApi) destroySchoolYear(ctx echo.Context) error {
	sy, err := api.getSchoolYear(ctx)
	if err != nil {
		return err
	}
	if err = api.syrSvc.Delete(ctx.Request().Context(), sy); err != nil {
		return errors.Wrap(err, "deleting school year")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Curricula

func (api *adminApi) queryCurricula(ctx echo.Context) error {
	curricula, err := api.curSvc.Query(ctx.Request().Context(), schoolID(ctx))
	if err != nil {
		return errors.Wrap(err, "querying curricula")
	}
	if curricula == nil {
		curricula = []curriculum.Curriculum{}
	}
	return ctx.JSON(http.StatusOK, curricula)
}

func (api *adminApi) createCurriculum(ctx echo.Context) error {
	var data curriculum.SaveCurriculum
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveCurriculum")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cur, err := api.curSvc.Create(ctx.Request().Context(), schoolID(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating curriculum")
	}
	return ctx.JSON(http.StatusCreated, cur)
}

func (api *adminApi) getCurriculum(ctx echo.Context) (curriculum.Curriculum, error) {
	cur, err := api.curSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return cur, err
	}
	if cur.SchoolID != schoolID(ctx) {
		return cur, curriculum.ErrNotFound
	}
	return cur, nil
}

func (api *adminApi) renameCurriculum(ctx echo.Context) error {
	cur, err := api.getCurriculum(ctx)
	if err != nil {
		return err
	}

	var data curriculum.SaveCurriculum
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveCurriculum")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if cur, err = api.curSvc.Rename(ctx.Request().Context(), cur, data); err != nil {
		return errors.Wrap(err, "renaming curriculum")
	}
	return ctx.JSON(http.StatusOK, cur)
}

func (api *adminApi) destroyCurriculum(ctx echo.Context) error {
	cur, err := api.getCurriculum(ctx)
	if err != nil {
		return err
	}
	if err = api.curSvc.Delete(ctx.Request().Context(), cur); err != nil {
		return errors.Wrap(err, "deleting curriculum")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Sections

func (api *adminApi) querySections(ctx echo.Context) error {
	filter := section.QueryFilter{
		SchoolID:     schoolID(ctx),
		SchoolYearID: ctx.QueryParam("school_year_id"),
	}
	sections, err := api.secSvc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying sections")
	}
	if sections == nil {
		sections = []section.Detail{}
	}
	return ctx.JSON(http.StatusOK, sections)
}

// isSchoolTeacher reports whether id is an active teacher of the admin's school.
func (api *adminApi) isSchoolTeacher(schID string) func(ctx context.Context, id string) (bool, error) {
	return func(ctx context.Context, id string) (bool, error) {
		tch, err := api.tchSvc.GetByID(ctx, id)
		if err != nil {
			if core.IsNotFound(err) {
				return false, nil
			}
			return false, err
		}
		return tch.SchoolID == schID && !tch.IsArchived, nil
	}
}

// saveSection validates the form, then creates (id == "") or edits the section.
func (api *adminApi) saveSection(ctx echo.Context, id string) (section.Detail, error) {
	var data section.SaveSection
	if err := ctx.Bind(&data); err != nil {
		return section.Detail{}, errors.Wrap(err, "binding to SaveSection")
	}
	reqCtx := ctx.Request().Context()
	schID := schoolID(ctx)
	if err := data.Validate(reqCtx, api.validate, api.isSchoolTeacher(schID)); err != nil {
		return section.Detail{}, err
	}

	sy, err := api.syrSvc.GetByID(reqCtx, data.SchoolYearID)
	if err != nil || sy.SchoolID != schID {
		return section.Detail{}, core.NewFieldError("school_year_id", "school year not found")
	}
	if data.CurriculumID != "" {
		cur, err := api.curSvc.GetByID(reqCtx, data.CurriculumID)
		if err != nil || cur.SchoolID != schID {
			return section.Detail{}, core.NewFieldError("curriculum_id", "curriculum not found")
		}
	}
	return api.secSvc.Save(reqCtx, schID, id, data)
}

func (api *adminApi) createSection(ctx echo.Context) error {
	sec, err := api.saveSection(ctx, "")
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sec)
}

func (api *adminApi) getSection(ctx echo.Context) (section.Detail, error) {
	sec, err := api.secSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return sec, err
	}
	if sec.SchoolID != schoolID(ctx) {
		return sec, section.ErrNotFound
	}
	return sec, nil
}

func (api *adminApi) retrieveSection(ctx echo.Context) error {
	sec, err := api.getSection(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sec)
}

func (api *adminApi) updateSection(ctx echo.Context) error {
	sec, err := api.getSection(ctx)
	if err != nil {
		return err
	}
	if sec, err = api.saveSection(ctx, sec.ID); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sec)
}

func (api *adminApi) renameSection(ctx echo.Context) error {
	sec, err := api.getSection(ctx)
	if err != nil {
		return err
	}

	var data section.RenameSection
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RenameSection")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	renamed, err := api.secSvc.Rename(ctx.Request().Context(), sec.Section, data)
	if err != nil {
		return errors.Wrap(err, "renaming section")
	}
	return ctx.JSON(http.StatusOK, renamed)
}

func (api *adminApi) destroySection(ctx echo.Context) error {
	sec, err := api.getSection(ctx)
	if err != nil {
		return err
	}
	if err = api.secSvc.Delete(ctx.Request().Context(), sec.Section); err != nil {
		return errors.Wrap(err, "deleting section")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Grade settings

func (api *adminApi) getWeights(ctx echo.Context) error {
	w, err := api.grdSvc.GetWeights(ctx.Request().Context(), schoolID(ctx))
	if err != nil {
		return errors.Wrap(err, "getting weights")
	}
	return ctx.JSON(http.StatusOK, w)
}

func (api *adminApi) saveWeights(ctx echo.Context) error {
	var data grading.Weights
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Weights")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	w, err := api.grdSvc.SaveWeights(ctx.Request().Context(), schoolID(ctx), data)
	if err != nil {
		return errors.Wrap(err, "saving weights")
	}
	return ctx.JSON(http.StatusOK, w)
}

// Announcements

func (api *adminApi) queryAnnouncements(ctx echo.Context) error {
	anns, err := api.annSvc.Query(ctx.Request().Context(), schoolID(ctx))
	if err != nil {
		return errors.Wrap(err, "querying announcements")
	}
	if anns == nil {
		anns = []announcement.Announcement{}
	}
	return ctx.JSON(http.StatusOK, anns)
}

func (api *adminApi) createAnnouncement(ctx echo.Context) error {
	var data announcement.NewAnnouncement
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAnnouncement")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ann, err := api.annSvc.Create(ctx.Request().Context(), schoolID(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating announcement")
	}
	return ctx.JSON(http.StatusCreated, ann)
}

func (api *adminApi) destroyAnnouncement(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	ann, err := api.annSvc.GetByID(reqCtx, ctx.Param("id"))
	if err != nil {
		return err
	}
	if ann.SchoolID != schoolID(ctx) {
		return announcement.ErrNotFound
	}
	if err = api.annSvc.Delete(reqCtx, ann); err != nil {
		return errors.Wrap(err, "deleting announcement")
	}
	return ctx.NoContent(http.StatusNoContent)
}
