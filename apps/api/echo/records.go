package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core/grading"
)

type recordsApi struct {
	svc      grading.Service
	validate *validator.Validate
}

// registerRecordsAPI mounts the class records of a subject assignment, one per quarter.
func registerRecordsAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := recordsApi{svc: deps.GradingSvc, validate: deps.Validate}

	rg := g.Group(
		"/assignments/:assignmentID/records/:quarter",
		jwt, staffMiddleware(), assignmentMiddleware(deps.SectionSvc, deps.TeacherSvc),
	)
	rg.GET("", api.retrieve)
	rg.GET("/export", api.export)
	rg.POST("/activities", api.addActivity)
	rg.DELETE("/activities/:name", api.removeActivity)
	rg.PUT("/scores", api.saveScores)
	rg.POST("/bulk-score", api.bulkScore)
	rg.POST("/final-grades", api.saveFinalGrades)
}

func (api *recordsApi) retrieve(ctx echo.Context) error {
	rec, err := api.svc.ClassRecord(ctx.Request().Context(), contextAssignment(ctx), ctx.Param("quarter"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *recordsApi) export(ctx echo.Context) error {
	rec, err := api.svc.ClassRecord(ctx.Request().Context(), contextAssignment(ctx), ctx.Param("quarter"))
	if err != nil {
		return err
	}

	sec := contextSection(ctx)
	var buf bytes.Buffer
	title := fmt.Sprintf("%s - Grade %s %s - %s", rec.Subject, sec.GradeLevel, sec.Name, rec.Quarter)
	if err = grading.WriteClassRecordXLSX(&buf, rec, title); err != nil {
		return errors.Wrap(err, "exporting class record")
	}
	return attachment(ctx, fmt.Sprintf("%s_%s_%s.xlsx", rec.Subject, sec.Name, rec.Quarter), buf.Bytes())
}

func (api *recordsApi) addActivity(ctx echo.Context) error {
	var data grading.NewActivity
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewActivity")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	act, err := api.svc.AddActivity(ctx.Request().Context(), contextAssignment(ctx), ctx.Param("quarter"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, act)
}

func (api *recordsApi) removeActivity(ctx echo.Context) error {
	err := api.svc.RemoveActivity(ctx.Request().Context(), contextAssignment(ctx), ctx.Param("quarter"), ctx.Param("name"))
	if err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *recordsApi) saveScores(ctx echo.Context) error {
	var data grading.SaveScores
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveScores")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	cnt, err := api.svc.SaveScores(ctx.Request().Context(), contextAssignment(ctx), ctx.Param("quarter"), data.Scores)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: cnt})
}

// bulkScore sets the same score for every student of the section on one activity.
func (api *recordsApi) bulkScore(ctx echo.Context) error {
	var data grading.BulkScore
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkScore")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	cnt, err := api.svc.BulkScore(ctx.Request().Context(), contextAssignment(ctx), ctx.Param("quarter"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: cnt})
}

func (api *recordsApi) saveFinalGrades(ctx echo.Context) error {
	grades, err := api.svc.SaveFinalGrades(ctx.Request().Context(), contextAssignment(ctx), ctx.Param("quarter"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, grades)
}
