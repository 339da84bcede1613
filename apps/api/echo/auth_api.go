package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/school"
	"github.com/trezcool/gradebook/core/teacher"
	"github.com/trezcool/gradebook/core/user"
)

type authApi struct {
	usrSvc   user.Service
	schSvc   school.Service
	tchSvc   teacher.Service
	logger   core.Logger
	validate *validator.Validate
}

func registerAuthAPI(g *echo.Group, jwt, rateLimit echo.MiddlewareFunc, deps ServerDeps) {
	api := authApi{
		usrSvc:   deps.UserSvc,
		schSvc:   deps.SchoolSvc,
		tchSvc:   deps.TeacherSvc,
		logger:   deps.Logger,
		validate: deps.Validate,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/login", api.login, rateLimit)
	ag.POST("/super-access", api.superAccess, rateLimit)
	ag.POST("/signup", api.signup, rateLimit)
	ag.POST("/password-reset", api.resetPassword, rateLimit)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset, rateLimit)

	// authed endpoints
	ag.POST("/token-refresh", api.refreshToken, jwt)
	ag.GET("/me", api.me, jwt)
}

// Handlers

func (api *authApi) login(ctx echo.Context) error {
	return api.authenticate(ctx, false)
}

// superAccess is the power user console login.
func (api *authApi) superAccess(ctx echo.Context) error {
	return api.authenticate(ctx, true)
}

func (api *authApi) authenticate(ctx echo.Context, powerUserOnly bool) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := authenticate(ctx.Request().Context(), data.Email, data.Password, api.usrSvc, powerUserOnly)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, Redirect: usr.Redirect()})
}

// signup registers a teacher in the school matching the given code.
func (api *authApi) signup(ctx echo.Context) error {
	var data SignupRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SignupRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	sch, err := api.schSvc.GetByCode(reqCtx, data.SchoolCode)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewFieldError("school_code", "no school matches this code")
		}
		return errors.Wrap(err, "finding school by code")
	}

	nt := teacher.NewTeacher{
		FullName:        data.FullName,
		Email:           data.Email,
		Password:        data.Password,
		PasswordConfirm: data.PasswordConfirm,
		SchoolID:        sch.ID,
	}
	if err = nt.Validate(reqCtx, api.validate, api.usrSvc); err != nil {
		return err
	}
	tch, err := api.tchSvc.Create(reqCtx, nt)
	if err != nil {
		return errors.Wrap(err, "creating teacher")
	}
	return ctx.JSON(http.StatusCreated, tch)
}

func (api *authApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.usrSvc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || core.IsNotFound(err)) {
		// do not return errors to attackers
		api.logger.Error(err.Error(), errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *authApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if _, err := api.usrSvc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *authApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

// me returns the authenticated user, their landing page and, for teachers, their roster entry.
func (api *authApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	resp := MeResponse{User: usr, Redirect: usr.Redirect()}
	if usr.IsTeacher() {
		tch, err := api.tchSvc.GetByUserID(ctx.Request().Context(), usr.ID)
		if err == nil {
			resp.Teacher = &tch
		} else if !core.IsNotFound(err) {
			return errors.Wrap(err, "finding teacher by user ID")
		}
	}
	return ctx.JSON(http.StatusOK, resp)
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token    string `json:"token"`
		Redirect string `json:"redirect,omitempty"`
	}

	SignupRequest struct {
		FullName        string `json:"fullname" validate:"required"`
		Email           string `json:"email" validate:"required,email"`
		Password        string `json:"password" validate:"required"`
		PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
		SchoolCode      string `json:"school_code" validate:"required"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	MeResponse struct {
		User     user.User        `json:"user"`
		Redirect string           `json:"redirect"`
		Teacher  *teacher.Teacher `json:"teacher,omitempty"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (sr *SignupRequest) Validate(validate *validator.Validate) error {
	sr.SchoolCode = core.CleanString(sr.SchoolCode)
	return validate.Struct(sr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
