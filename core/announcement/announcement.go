package announcement

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/gradebook/core"
)

var ErrNotFound = core.NewNotFoundError("announcement not found")

type (
	Announcement struct {
		ID        string    `json:"id"`
		SchoolID  string    `json:"school_id"`
		Message   string    `json:"message"`
		CreatedAt time.Time `json:"created_at"` // UTC
	}

	NewAnnouncement struct {
		Message string `json:"message" validate:"required,max=2000"`
	}

	Repository interface {
		CreateAnnouncement(ctx context.Context, ann Announcement, exec ...core.DBExecutor) (Announcement, error)
		// QueryAnnouncements returns the announcements of a school, newest first.
		QueryAnnouncements(ctx context.Context, schoolID string, exec ...core.DBExecutor) ([]Announcement, error)
		GetAnnouncement(ctx context.Context, id string, exec ...core.DBExecutor) (Announcement, error)
		DeleteAnnouncement(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service interface {
		Create(ctx context.Context, schoolID string, na NewAnnouncement) (Announcement, error)
		Query(ctx context.Context, schoolID string) ([]Announcement, error)
		GetByID(ctx context.Context, id string) (Announcement, error)
		Delete(ctx context.Context, ann Announcement) error
	}

	service struct {
		repo Repository
	}
)

func (na *NewAnnouncement) Validate(validate *validator.Validate) error {
	na.Message = core.CleanString(na.Message)
	return validate.Struct(na)
}

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, schoolID string, na NewAnnouncement) (Announcement, error) {
	return svc.repo.CreateAnnouncement(ctx, Announcement{
		SchoolID:  schoolID,
		Message:   na.Message,
		CreatedAt: time.Now().UTC(),
	})
}

func (svc *service) Query(ctx context.Context, schoolID string) ([]Announcement, error) {
	return svc.repo.QueryAnnouncements(ctx, schoolID)
}

func (svc *service) GetByID(ctx context.Context, id string) (Announcement, error) {
	return svc.repo.GetAnnouncement(ctx, id)
}

func (svc *service) Delete(ctx context.Context, ann Announcement) error {
	return svc.repo.DeleteAnnouncement(ctx, ann.ID)
}
