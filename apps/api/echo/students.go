package echoapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/grading"
	"github.com/trezcool/gradebook/core/student"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type studentsApi struct {
	svc      student.Service
	grdSvc   grading.Service
	validate *validator.Validate
}

// registerStudentsAPI mounts the roster & gradebook of a section, reachable by its admins and teachers.
func registerStudentsAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := studentsApi{
		svc:      deps.StudentSvc,
		grdSvc:   deps.GradingSvc,
		validate: deps.Validate,
	}

	sg := g.Group("/sections/:sectionID", jwt, staffMiddleware(), sectionMiddleware(deps.SectionSvc, deps.TeacherSvc))
	sg.GET("/students", api.query)
	sg.POST("/students", api.create)
	sg.DELETE("/students", api.destroy)
	sg.POST("/students/import", api.importRoster)
	sg.GET("/students/:id", api.retrieve)
	sg.PUT("/students/:id", api.update)

	sg.GET("/gradebook", api.gradebook)
	sg.GET("/gradebook/export", api.exportGradebook)
}

// rosterFilter reads the search, gender & sort query params.
func rosterFilter(ctx echo.Context) student.QueryFilter {
	filter := student.QueryFilter{
		Search: ctx.QueryParam("search"),
		Gender: ctx.QueryParam("gender"),
		Sort:   ctx.QueryParam("sort"),
	}
	filter.Clean()
	return filter
}

func (api *studentsApi) query(ctx echo.Context) error {
	filter := rosterFilter(ctx)
	filter.SectionID = contextSection(ctx).ID

	students, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentsApi) create(ctx echo.Context) error {
	var data student.Form
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to student.Form")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, api.validate, api.svc); err != nil {
		return err
	}

	st, err := api.svc.Create(reqCtx, contextSection(ctx).ID, data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, st)
}

func (api *studentsApi) getStudent(ctx echo.Context) (student.Student, error) {
	st, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return st, err
	}
	if st.SectionID != contextSection(ctx).ID {
		return st, student.ErrNotFound
	}
	return st, nil
}

func (api *studentsApi) retrieve(ctx echo.Context) error {
	st, err := api.getStudent(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *studentsApi) update(ctx echo.Context) error {
	st, err := api.getStudent(ctx)
	if err != nil {
		return err
	}

	var data student.Form
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to student.Form")
	}
	reqCtx := ctx.Request().Context()
	if err = data.Validate(reqCtx, api.validate, api.svc, st); err != nil {
		return err
	}

	if st, err = api.svc.Update(reqCtx, st, data); err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, st)
}

// destroy deletes the students of the section among the `id` query params.
func (api *studentsApi) destroy(ctx echo.Context) error {
	var query student.DeleteRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DeleteRequest")
	}
	if len(query.IDs) == 0 {
		return core.NewFieldError("id", "select at least one student")
	}

	cnt, err := api.svc.Delete(ctx.Request().Context(), contextSection(ctx).ID, query.IDs...)
	if err != nil {
		return errors.Wrap(err, "deleting students")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: cnt})
}

// importRoster upserts the students of the multipart `file` roster (.csv or .xlsx).
func (api *studentsApi) importRoster(ctx echo.Context) error {
	filename, content, err := formFile(ctx, "file")
	if err != nil {
		return err
	}

	sec := contextSection(ctx)
	res, err := api.svc.Import(ctx.Request().Context(), sec.SchoolID, sec.ID, filename, content)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *studentsApi) loadGradebook(ctx echo.Context) (grading.Gradebook, error) {
	gb, err := api.grdSvc.Gradebook(ctx.Request().Context(), contextSection(ctx).Section, ctx.QueryParam("school_year_id"))
	if err != nil {
		return gb, errors.Wrap(err, "building gradebook")
	}
	return gb.Filter(rosterFilter(ctx)), nil
}

// gradebook returns the quarter grades of the section. Query params: school_year_id, search, gender, sort.
func (api *studentsApi) gradebook(ctx echo.Context) error {
	gb, err := api.loadGradebook(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, gb)
}

func (api *studentsApi) exportGradebook(ctx echo.Context) error {
	gb, err := api.loadGradebook(ctx)
	if err != nil {
		return err
	}

	sec := contextSection(ctx)
	var buf bytes.Buffer
	title := fmt.Sprintf("Grade %s - %s", sec.GradeLevel, sec.Name)
	if err = grading.WriteGradebookXLSX(&buf, gb, title); err != nil {
		return errors.Wrap(err, "exporting gradebook")
	}
	return attachment(ctx, "gradebook_"+sec.Name+".xlsx", buf.Bytes())
}

// attachment sends content as a downloadable workbook.
func attachment(ctx echo.Context, filename string, content []byte) error {
	filename = strings.NewReplacer(" ", "_", "/", "-", `"`, "").Replace(filename)
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return ctx.Blob(http.StatusOK, xlsxContentType, content)
}
