package curriculum

import (
	"context"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/gradebook/core"
)

var ErrNotFound = core.NewNotFoundError("curriculum not found")

type (
	Curriculum struct {
		ID       string `json:"id"`
		SchoolID string `json:"school_id"`
		Name     string `json:"name"`
	}

	// SaveCurriculum is used both to create and rename a Curriculum.
	SaveCurriculum struct {
		Name string `json:"name" validate:"required,max=128"`
	}

	Repository interface {
		CreateCurriculum(ctx context.Context, cur Curriculum, exec ...core.DBExecutor) (Curriculum, error)
		// QueryCurriculums returns the curricula of a school ordered by name.
		QueryCurriculums(ctx context.Context, schoolID string, exec ...core.DBExecutor) ([]Curriculum, error)
		GetCurriculum(ctx context.Context, id string, exec ...core.DBExecutor) (Curriculum, error)
		UpdateCurriculum(ctx context.Context, cur Curriculum, exec ...core.DBExecutor) (Curriculum, error)
		DeleteCurriculum(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service interface {
		Create(ctx context.Context, schoolID string, sc SaveCurriculum) (Curriculum, error)
		Query(ctx context.Context, schoolID string) ([]Curriculum, error)
		GetByID(ctx context.Context, id string) (Curriculum, error)
		Rename(ctx context.Context, cur Curriculum, sc SaveCurriculum) (Curriculum, error)
		Delete(ctx context.Context, cur Curriculum) error
	}

	service struct {
		repo Repository
	}
)

func (sc *SaveCurriculum) Validate(validate *validator.Validate) error {
	sc.Name = core.CleanString(sc.Name)
	return validate.Struct(sc)
}

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, schoolID string, sc SaveCurriculum) (Curriculum, error) {
	return svc.repo.CreateCurriculum(ctx, Curriculum{SchoolID: schoolID, Name: sc.Name})
}

func (svc *service) Query(ctx context.Context, schoolID string) ([]Curriculum, error) {
	return svc.repo.QueryCurriculums(ctx, schoolID)
}

func (svc *service) GetByID(ctx context.Context, id string) (Curriculum, error) {
	return svc.repo.GetCurriculum(ctx, id)
}

func (svc *service) Rename(ctx context.Context, cur Curriculum, sc SaveCurriculum) (Curriculum, error) {
	cur.Name = sc.Name
	return svc.repo.UpdateCurriculum(ctx, cur)
}

func (svc *service) Delete(ctx context.Context, cur Curriculum) error {
	return svc.repo.DeleteCurriculum(ctx, cur.ID)
}
