// Package schoolyear manages the school years of a school, at most one of which is active.
package schoolyear

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
)

var ErrNotFound = core.NewNotFoundError("school year not found")

type (
	SchoolYear struct {
		ID        string `json:"id"`
		SchoolID  string `json:"school_id"`
		Label     string `json:"sy_label"`
		StartDate string `json:"start_date"` // YYYY-MM-DD
		EndDate   string `json:"end_date"`   // YYYY-MM-DD
		IsActive  bool   `json:"is_active"`
	}

	NewSchoolYear struct {
		Label     string `json:"sy_label" validate:"required,max=32"`
		StartDate string `json:"start_date" validate:"required,isodate"`
		EndDate   string `json:"end_date" validate:"required,isodate"`
	}

	Repository interface {
		CreateSchoolYear(ctx context.Context, sy SchoolYear, exec ...core.DBExecutor) (SchoolYear, error)
		// QuerySchoolYears returns the school years of a school ordered by start date.
		QuerySchoolYears(ctx context.Context, schoolID string, exec ...core.DBExecutor) ([]SchoolYear, error)
		GetSchoolYear(ctx context.Context, id string, exec ...core.DBExecutor) (SchoolYear, error)
		// GetActiveSchoolYear returns ErrNotFound when the school has no active school year.
		GetActiveSchoolYear(ctx context.Context, schoolID string, exec ...core.DBExecutor) (SchoolYear, error)
		// SetActive marks id as the only active school year of the school.
		SetActive(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) error
		DeleteSchoolYear(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service interface {
		Create(ctx context.Context, schoolID string, nsy NewSchoolYear) (SchoolYear, error)
		Query(ctx context.Context, schoolID string) ([]SchoolYear, error)
		GetByID(ctx context.Context, id string) (SchoolYear, error)
		GetActive(ctx context.Context, schoolID string) (SchoolYear, error)
		Activate(ctx context.Context, sy SchoolYear) (SchoolYear, error)
		Delete(ctx context.Context, sy SchoolYear) error
	}

	service struct {
		db   core.DB
		repo Repository
	}
)

func (nsy *NewSchoolYear) Validate(validate *validator.Validate) error {
	nsy.Label = core.CleanString(nsy.Label)
	if err := validate.Struct(nsy); err != nil {
		return err
	}

	start, _ := time.Parse(core.DateLayout, nsy.StartDate)
	end, _ := time.Parse(core.DateLayout, nsy.EndDate)
	if !start.Before(end) {
		return core.NewFieldError("end_date", "end date must be after start date")
	}
	return nil
}

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository) Service {
	return &service{db: db, repo: repo}
}

// Create creates an inactive school year.
func (svc *service) Create(ctx context.Context, schoolID string, nsy NewSchoolYear) (SchoolYear, error) {
	return svc.repo.CreateSchoolYear(ctx, SchoolYear{
		SchoolID:  schoolID,
		Label:     nsy.Label,
		StartDate: nsy.StartDate,
		EndDate:   nsy.EndDate,
	})
}

func (svc *service) Query(ctx context.Context, schoolID string) ([]SchoolYear, error) {
	return svc.repo.QuerySchoolYears(ctx, schoolID)
}

func (svc *service) GetByID(ctx context.Context, id string) (SchoolYear, error) {
	return svc.repo.GetSchoolYear(ctx, id)
}

func (svc *service) GetActive(ctx context.Context, schoolID string) (SchoolYear, error) {
	return svc.repo.GetActiveSchoolYear(ctx, schoolID)
}

func (svc *service) Activate(ctx context.Context, sy SchoolYear) (SchoolYear, error) {
	err := core.Transactional(ctx, svc.db, func(exec ...core.DBExecutor) error {
		return errors.Wrap(svc.repo.SetActive(ctx, sy.SchoolID, sy.ID, exec...), "activating school year")
	})
	if err != nil {
		return SchoolYear{}, err
	}
	sy.IsActive = true
	return sy, nil
}

func (svc *service) Delete(ctx context.Context, sy SchoolYear) error {
	return svc.repo.DeleteSchoolYear(ctx, sy.ID)
}
