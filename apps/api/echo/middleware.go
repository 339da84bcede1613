package echoapi

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/cors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/section"
	"github.com/trezcool/gradebook/core/teacher"
)

const (
	contextTeacherKey    = "teacher"
	contextSectionKey    = "section"
	contextAssignmentKey = "assignment"
)

// corsMiddleware lets the SPA origins call the API with their bearer tokens.
func corsMiddleware(origins []string) echo.MiddlewareFunc {
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{echo.HeaderAuthorization, echo.HeaderContentType},
		ExposedHeaders:   []string{echo.HeaderContentDisposition},
		AllowCredentials: true,
		MaxAge:           300,
	})
	return echo.WrapMiddleware(c.Handler)
}

// rateLimitMiddleware limits each client IP to limit requests per minute. limit <= 0 disables it.
func rateLimitMiddleware(limit int) echo.MiddlewareFunc {
	if limit <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return echo.WrapMiddleware(httprate.LimitByIP(limit, time.Minute))
}

func claimsMiddleware(allowed func(Claims) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if !allowed(claims) {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

func powerUserMiddleware() echo.MiddlewareFunc {
	return claimsMiddleware(func(c Claims) bool { return c.IsPowerUser })
}

// adminMiddleware only lets in admins linked to a school.
func adminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return claimsMiddleware(func(c Claims) bool { return c.IsAdmin })(func(ctx echo.Context) error {
			if claims, _ := getContextClaims(ctx); claims.SchoolID == "" {
				return errNoSchool
			}
			return next(ctx)
		})
	}
}

// staffMiddleware lets in school admins and teachers.
func staffMiddleware() echo.MiddlewareFunc {
	return claimsMiddleware(func(c Claims) bool { return (c.IsAdmin && c.SchoolID != "") || c.IsTeacher })
}

// teacherMiddleware loads the teacher record of the authenticated user into the context.
func teacherMiddleware(svc teacher.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if !claims.IsTeacher {
				return errHttpForbidden
			}
			if _, err = contextTeacher(ctx, svc, claims); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}

// contextTeacher returns the teacher record of the authenticated user, caching it in the context.
func contextTeacher(ctx echo.Context, svc teacher.Service, claims Claims) (teacher.Teacher, error) {
	if tch, ok := ctx.Get(contextTeacherKey).(teacher.Teacher); ok {
		return tch, nil
	}
	tch, err := svc.GetByUserID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if core.IsNotFound(err) {
			return teacher.Teacher{}, errHttpForbidden
		}
		return teacher.Teacher{}, errors.Wrap(err, "finding teacher by user ID")
	}
	if tch.IsArchived {
		return teacher.Teacher{}, errHttpForbidden
	}
	ctx.Set(contextTeacherKey, tch)
	return tch, nil
}

// sectionMiddleware loads the section of the `sectionID` path param.
// Admins reach the sections of their school; teachers the sections they advise or teach in.
func sectionMiddleware(secSvc section.Service, tchSvc teacher.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			sec, err := secSvc.GetByID(ctx.Request().Context(), ctx.Param("sectionID"))
			if err != nil {
				return err
			}

			allowed := claims.IsAdmin && claims.SchoolID == sec.SchoolID
			if !allowed && claims.IsTeacher {
				tch, err := contextTeacher(ctx, tchSvc, claims)
				if err != nil {
					return err
				}
				allowed = sec.AdviserID == tch.ID
				for _, sa := range sec.Assignments {
					allowed = allowed || sa.TeacherID == tch.ID
				}
			}
			if !allowed {
				return section.ErrNotFound
			}
			ctx.Set(contextSectionKey, sec)
			return next(ctx)
		}
	}
}

// assignmentMiddleware loads the subject assignment of the `assignmentID` path param.
// Admins reach the assignments of their school; teachers only their own.
func assignmentMiddleware(secSvc section.Service, tchSvc teacher.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			reqCtx := ctx.Request().Context()
			sa, err := secSvc.GetAssignment(reqCtx, ctx.Param("assignmentID"))
			if err != nil {
				return err
			}
			sec, err := secSvc.GetByID(reqCtx, sa.SectionID)
			if err != nil {
				return err
			}

			allowed := claims.IsAdmin && claims.SchoolID == sec.SchoolID
			if !allowed && claims.IsTeacher {
				tch, err := contextTeacher(ctx, tchSvc, claims)
				if err != nil {
					return err
				}
				allowed = sa.TeacherID == tch.ID
			}
			if !allowed {
				return section.ErrAssignmentNotFound
			}
			ctx.Set(contextSectionKey, sec)
			ctx.Set(contextAssignmentKey, sa)
			return next(ctx)
		}
	}
}

func contextSection(ctx echo.Context) section.Detail {
	sec, _ := ctx.Get(contextSectionKey).(section.Detail)
	return sec
}

func contextAssignment(ctx echo.Context) section.SubjectAssignment {
	sa, _ := ctx.Get(contextAssignmentKey).(section.SubjectAssignment)
	return sa
}
