package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/audit"
	"github.com/trezcool/gradebook/core/school"
	"github.com/trezcool/gradebook/core/teacher"
	"github.com/trezcool/gradebook/core/user"
)

const maxAuditLimit = 500

type powerUserApi struct {
	svc      school.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerPowerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := powerUserApi{
		svc:      deps.SchoolSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	pg := g.Group("/poweruser", jwt, powerUserMiddleware())
	pg.GET("/overview", api.overview)
	pg.GET("/audit-logs", api.auditLogs)
	pg.GET("/users", api.queryUsers)

	sg := pg.Group("/schools")
	sg.GET("", api.querySchools)
	sg.POST("", api.createSchool)
	sg.GET("/:id", api.retrieveSchool)
	sg.PUT("/:id", api.updateSchool)
	sg.DELETE("/:id", api.destroySchool)
	sg.GET("/:id/teachers", api.querySchoolTeachers)
	sg.POST("/:id/teachers", api.createSchoolTeacher)

	adg := pg.Group("/admins")
	adg.GET("", api.queryAdmins)
	adg.POST("", api.createAdmin)
	adg.DELETE("", api.destroyAdmins)
	adg.GET("/:id", api.retrieveAdmin)
	adg.PUT("/:id", api.updateAdmin)
	adg.DELETE("/:id", api.destroyAdmin)
	adg.POST("/:id/link", api.linkAdmin)
	adg.POST("/:id/unlink", api.unlinkAdmin)
}

func (api *powerUserApi) overview(ctx echo.Context) error {
	ov, err := api.svc.Overview(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting overview")
	}
	return ctx.JSON(http.StatusOK, ov)
}

func (api *powerUserApi) auditLogs(ctx echo.Context) error {
	logs, err := api.svc.AuditLogs(ctx.Request().Context(), queryLimit(ctx, audit.DefaultListLimit, maxAuditLimit))
	if err != nil {
		return errors.Wrap(err, "querying audit logs")
	}
	return ctx.JSON(http.StatusOK, logs)
}

// queryUsers lists the accounts of every school.
// Query params: search, role (repeated), school_id, is_active, created_from & created_to (RFC 3339), ordering.
func (api *powerUserApi) queryUsers(ctx echo.Context) error {
	filter := &user.QueryFilter{
		Search:   ctx.QueryParam("search"),
		Roles:    ctx.QueryParams()["role"],
		SchoolID: ctx.QueryParam("school_id"),
	}
	if v := ctx.QueryParam("is_active"); v != "" {
		if isActive, err := strconv.ParseBool(v); err == nil {
			filter.IsActive = &isActive
		}
	}
	if t, err := time.Parse(time.RFC3339, ctx.QueryParam("created_from")); err == nil {
		filter.CreatedFrom = t
	}
	if t, err := time.Parse(time.RFC3339, ctx.QueryParam("created_to")); err == nil {
		filter.CreatedTo = t
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.usrSvc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

// Schools

func (api *powerUserApi) querySchools(ctx echo.Context) error {
	schools, err := api.svc.Query(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying schools")
	}
	if schools == nil {
		schools = []school.School{}
	}
	return ctx.JSON(http.StatusOK, schools)
}

func (api *powerUserApi) createSchool(ctx echo.Context) error {
	var data school.NewSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchool")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, api.validate, api.svc); err != nil {
		return err
	}

	sch, err := api.svc.Create(reqCtx, data, actor(ctx))
	if err != nil {
		return errors.Wrap(err, "creating school")
	}
	return ctx.JSON(http.StatusCreated, sch)
}

func (api *powerUserApi) retrieveSchool(ctx echo.Context) error {
	sch, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *powerUserApi) updateSchool(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	sch, err := api.svc.GetByID(reqCtx, ctx.Param("id"))
	if err != nil {
		return err
	}

	var data school.UpdateSchool
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSchool")
	}
	if err = data.Validate(reqCtx, sch, api.validate, api.svc); err != nil {
		return err
	}

	if sch, err = api.svc.Update(reqCtx, sch, data, actor(ctx)); err != nil {
		return errors.Wrap(err, "updating school")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *powerUserApi) destroySchool(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	sch, err := api.svc.GetByID(reqCtx, ctx.Param("id"))
	if err != nil {
		return err
	}
	if err = api.svc.Delete(reqCtx, sch, actor(ctx)); err != nil {
		return errors.Wrap(err, "deleting school")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *powerUserApi) querySchoolTeachers(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	sch, err := api.svc.GetByID(reqCtx, ctx.Param("id"))
	if err != nil {
		return err
	}
	teachers, err := api.svc.QueryTeachers(reqCtx, sch.ID)
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	return ctx.JSON(http.StatusOK, teachers)
}

// createSchoolTeacher quick-creates a teacher account in the school.
func (api *powerUserApi) createSchoolTeacher(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	sch, err := api.svc.GetByID(reqCtx, ctx.Param("id"))
	if err != nil {
		return err
	}

	var data teacher.NewTeacher
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeacher")
	}
	data.SchoolID = sch.ID
	if err = data.Validate(reqCtx, api.validate, api.usrSvc); err != nil {
		return err
	}

	tch, err := api.svc.CreateTeacher(reqCtx, data, actor(ctx))
	if err != nil {
		return errors.Wrap(err, "creating teacher")
	}
	return ctx.JSON(http.StatusCreated, tch)
}

// Admins

func (api *powerUserApi) queryAdmins(ctx echo.Context) error {
	admins, err := api.svc.QueryAdmins(ctx.Request().Context(), ctx.QueryParam("school_id"))
	if err != nil {
		return errors.Wrap(err, "querying admins")
	}
	if admins == nil {
		admins = []user.User{}
	}
	return ctx.JSON(http.StatusOK, admins)
}

func (api *powerUserApi) createAdmin(ctx echo.Context) error {
	var data school.NewAdmin
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAdmin")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, api.validate, api.svc, api.usrSvc); err != nil {
		return err
	}

	adm, err := api.svc.CreateAdmin(reqCtx, data, actor(ctx))
	if err != nil {
		return errors.Wrap(err, "creating admin")
	}
	return ctx.JSON(http.StatusCreated, adm)
}

func (api *powerUserApi) retrieveAdmin(ctx echo.Context) error {
	adm, err := api.svc.GetAdmin(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, adm)
}

func (api *powerUserApi) updateAdmin(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	adm, err := api.svc.GetAdmin(reqCtx, ctx.Param("id"))
	if err != nil {
		return err
	}

	var data school.UpdateAdmin
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAdmin")
	}
	if err = data.Validate(reqCtx, adm, api.validate, api.svc, api.usrSvc); err != nil {
		return err
	}

	if adm, err = api.svc.UpdateAdmin(reqCtx, adm, data, actor(ctx)); err != nil {
		return errors.Wrap(err, "updating admin")
	}
	return ctx.JSON(http.StatusOK, adm)
}

func (api *powerUserApi) linkAdmin(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	adm, err := api.svc.GetAdmin(reqCtx, ctx.Param("id"))
	if err != nil {
		return err
	}

	var data school.LinkAdmin
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LinkAdmin")
	}
	if err = api.validate.Struct(&data); err != nil {
		return err
	}

	if adm, err = api.svc.LinkAdmin(reqCtx, adm, data.SchoolID, actor(ctx)); err != nil {
		return errors.Wrap(err, "linking admin")
	}
	return ctx.JSON(http.StatusOK, adm)
}

func (api *powerUserApi) unlinkAdmin(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	adm, err := api.svc.GetAdmin(reqCtx, ctx.Param("id"))
	if err != nil {
		return err
	}
	if adm, err = api.svc.UnlinkAdmin(reqCtx, adm, actor(ctx)); err != nil {
		return errors.Wrap(err, "unlinking admin")
	}
	return ctx.JSON(http.StatusOK, adm)
}

func (api *powerUserApi) destroyAdmin(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	adm, err := api.svc.GetAdmin(reqCtx, ctx.Param("id"))
	if err != nil {
		return err
	}
	if _, err = api.svc.DeleteAdmins(reqCtx, []string{adm.ID}, actor(ctx)); err != nil {
		return errors.Wrap(err, "deleting admin")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// destroyAdmins bulk-deletes the admins among the `id` query params.
func (api *powerUserApi) destroyAdmins(ctx echo.Context) error {
	var query IDsRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to IDsRequest")
	}
	if len(query.IDs) == 0 {
		return core.NewFieldError("id", "select at least one admin")
	}

	cnt, err := api.svc.DeleteAdmins(ctx.Request().Context(), query.IDs, actor(ctx))
	if err != nil {
		return errors.Wrap(err, "deleting admins")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: cnt})
}
