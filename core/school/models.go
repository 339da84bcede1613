package school

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/audit"
	"github.com/trezcool/gradebook/core/user"
)

type School struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type NewSchool struct {
	Name    string `json:"name" validate:"required"`
	Address string `json:"address" validate:"required"`
	Code    string `json:"code" validate:"required,alphanum_,max=32"`
}

func (ns *NewSchool) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	ns.Name = core.CleanName(ns.Name)
	ns.Address = core.CleanString(ns.Address)
	ns.Code = core.CleanString(ns.Code)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.CheckCodeUniqueness(ctx, ns.Code)
}

// UpdateSchool holds the new values of a School (all fields are required).
type UpdateSchool NewSchool

func (us *UpdateSchool) Validate(ctx context.Context, orig School, validate *validator.Validate, svc Service) error {
	us.Name = core.CleanName(us.Name)
	us.Address = core.CleanString(us.Address)
	us.Code = core.CleanString(us.Code)

	if err := validate.Struct(us); err != nil {
		return err
	}
	return svc.CheckCodeUniqueness(ctx, us.Code, orig)
}

// NewAdmin contains the information needed to create a school admin.
type NewAdmin struct {
	FullName        string `json:"fullname" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	SchoolID        string `json:"school_id" validate:"required"`
}

func (na *NewAdmin) Validate(ctx context.Context, validate *validator.Validate, svc Service, usrSvc user.Service) error {
	na.FullName = core.CleanName(na.FullName)
	na.Email = core.CleanString(na.Email, true /* lower */)

	if err := validate.Struct(na); err != nil {
		return err
	}
	if err := svc.checkSchoolExists(ctx, na.SchoolID); err != nil {
		return err
	}
	nu := na.newUser()
	return nu.Validate(ctx, validate, usrSvc)
}

func (na *NewAdmin) newUser() user.NewUser {
	return user.NewUser{
		Name:            na.FullName,
		Email:           na.Email,
		Password:        na.Password,
		PasswordConfirm: na.PasswordConfirm,
		SchoolID:        na.SchoolID,
		Roles:           user.AdminRoles,
	}
}

type UpdateAdmin struct {
	FullName string `json:"fullname" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	SchoolID string `json:"school_id"`
}

func (ua *UpdateAdmin) Validate(ctx context.Context, orig user.User, validate *validator.Validate, svc Service, usrSvc user.Service) error {
	ua.FullName = core.CleanName(ua.FullName)
	ua.Email = core.CleanString(ua.Email, true /* lower */)

	if err := validate.Struct(ua); err != nil {
		return err
	}
	if ua.SchoolID != "" {
		if err := svc.checkSchoolExists(ctx, ua.SchoolID); err != nil {
			return err
		}
	}
	return usrSvc.CheckUniqueness(ctx, ua.Email, orig)
}

type LinkAdmin struct {
	SchoolID string `json:"school_id" validate:"required"`
}

type GetFilter struct {
	ID   string
	Code string
}

type Overview struct {
	Schools    int         `json:"schools"`
	Admins     int         `json:"admins"`
	Teachers   int         `json:"teachers"`
	RecentLogs []audit.Log `json:"recent_logs"`
}
