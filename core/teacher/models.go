package teacher

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/user"
)

type Teacher struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	SchoolID         string    `json:"school_id"`
	FullName         string    `json:"fullname"`
	Email            string    `json:"email"`
	ProfilePic       string    `json:"profile_pic"`
	RecordsSubmitted bool      `json:"records_submitted"`
	IsArchived       bool      `json:"is_archived"`
	CreatedAt        time.Time `json:"created_at"` // UTC
}

// NewTeacher contains the information needed to create a Teacher along with their user account.
type NewTeacher struct {
	FullName        string `json:"fullname" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	SchoolID        string `json:"school_id" validate:"required"`
}

// Validate validates the teacher data as well as the underlying account.
func (nt *NewTeacher) Validate(ctx context.Context, validate *validator.Validate, usrSvc user.Service) error {
	nt.FullName = core.CleanName(nt.FullName)
	nt.Email = core.CleanString(nt.Email, true /* lower */)
	if err := validate.Struct(nt); err != nil {
		return err
	}
	nu := nt.newUser()
	return nu.Validate(ctx, validate, usrSvc) // password policy & email uniqueness
}

func (nt *NewTeacher) newUser() user.NewUser {
	return user.NewUser{
		Name:            nt.FullName,
		Email:           nt.Email,
		Password:        nt.Password,
		PasswordConfirm: nt.PasswordConfirm,
		SchoolID:        nt.SchoolID,
		Roles:           user.TeacherRoles,
	}
}

type UpdateProfile struct {
	FullName string `json:"fullname" validate:"required"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	up.FullName = core.CleanName(up.FullName)
	return validate.Struct(up)
}

type GetFilter struct {
	ID     string
	UserID string
}

type QueryFilter struct {
	SchoolID string `query:"-"`
	Search   string `query:"search"`
	Archived bool   `query:"archived"`
	// RecordsSubmitted filters on the submission flag when set.
	RecordsSubmitted *bool `query:"records_submitted"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// Counts summarizes the roster of a school.
type Counts struct {
	Active   int `json:"active"`
	Archived int `json:"archived"`
}
