// Package teacher manages the teacher roster of a school.
package teacher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/user"
)

var ErrNotFound = core.NewNotFoundError("teacher not found")

type (
	Repository interface {
		CreateTeacher(ctx context.Context, tch Teacher, exec ...core.DBExecutor) (Teacher, error)
		// QueryTeachers returns the teachers of a school ordered by creation date.
		// QueryFilter.Search does a case-insensitive match on one of Teacher.FullName or Teacher.Email.
		QueryTeachers(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Teacher, error)
		GetTeacher(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Teacher, error)
		UpdateTeacher(ctx context.Context, tch Teacher, exec ...core.DBExecutor) (Teacher, error)
		DeleteTeacher(ctx context.Context, id string, exec ...core.DBExecutor) error
		// UnlinkSchool detaches every teacher of the school.
		UnlinkSchool(ctx context.Context, schoolID string, exec ...core.DBExecutor) (int, error)
		CountTeachers(ctx context.Context, schoolID string, exec ...core.DBExecutor) (Counts, error)
	}

	Service interface {
		Create(ctx context.Context, nt NewTeacher) (Teacher, error)
		Query(ctx context.Context, filter QueryFilter) ([]Teacher, error)
		GetByID(ctx context.Context, id string) (Teacher, error)
		GetByUserID(ctx context.Context, userID string) (Teacher, error)
		Count(ctx context.Context, schoolID string) (Counts, error)
		ToggleRecordsSubmitted(ctx context.Context, tch Teacher) (Teacher, error)
		SetArchived(ctx context.Context, tch Teacher, archived bool) (Teacher, error)
		UpdateProfile(ctx context.Context, tch Teacher, up UpdateProfile) (Teacher, error)
		UploadProfilePic(ctx context.Context, tch Teacher, img io.Reader) (Teacher, error)
		SendPasswordReset(ctx context.Context, tch Teacher) error
		// Remove deletes the teacher along with their user account.
		Remove(ctx context.Context, tch Teacher) error
	}

	service struct {
		db      core.DB
		repo    Repository
		usrRepo user.Repository
		usrSvc  user.Service
		storage core.FileStorage
		picSize int
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, usrRepo user.Repository, usrSvc user.Service, storage core.FileStorage) Service {
	return &service{
		db:      db,
		repo:    repo,
		usrRepo: usrRepo,
		usrSvc:  usrSvc,
		storage: storage,
		picSize: core.Conf.Storage.ProfilePicSize,
	}
}

// Create creates the teacher's account and roster entry atomically.
// The NewTeacher must have been validated.
func (svc *service) Create(ctx context.Context, nt NewTeacher) (Teacher, error) {
	var tch Teacher
	err := core.Transactional(ctx, svc.db, func(exec ...core.DBExecutor) error {
		usr, err := svc.usrSvc.Create(ctx, nt.newUser(), exec...)
		if err != nil {
			return errors.Wrap(err, "creating user")
		}
		tch, err = svc.repo.CreateTeacher(ctx, Teacher{
			UserID:    usr.ID,
			SchoolID:  nt.SchoolID,
			FullName:  usr.Name,
			Email:     usr.Email,
			CreatedAt: usr.CreatedAt,
		}, exec...)
		return errors.Wrap(err, "creating teacher")
	})
	return tch, err
}

func (svc *service) Query(ctx context.Context, filter QueryFilter) ([]Teacher, error) {
	return svc.repo.QueryTeachers(ctx, filter)
}

func (svc *service) GetByID(ctx context.Context, id string) (Teacher, error) {
	return svc.repo.GetTeacher(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUserID(ctx context.Context, userID string) (Teacher, error) {
	return svc.repo.GetTeacher(ctx, GetFilter{UserID: userID})
}

func (svc *service) Count(ctx context.Context, schoolID string) (Counts, error) {
	return svc.repo.CountTeachers(ctx, schoolID)
}

func (svc *service) ToggleRecordsSubmitted(ctx context.Context, tch Teacher) (Teacher, error) {
	tch.RecordsSubmitted = !tch.RecordsSubmitted
	return svc.repo.UpdateTeacher(ctx, tch)
}

func (svc *service) SetArchived(ctx context.Context, tch Teacher, archived bool) (Teacher, error) {
	tch.IsArchived = archived
	return svc.repo.UpdateTeacher(ctx, tch)
}

func (svc *service) UpdateProfile(ctx context.Context, tch Teacher, up UpdateProfile) (Teacher, error) {
	err := core.Transactional(ctx, svc.db, func(exec ...core.DBExecutor) error {
		usr, err := svc.usrRepo.GetUser(ctx, user.GetFilter{ID: tch.UserID}, exec...)
		if err != nil {
			return errors.Wrap(err, "finding user")
		}
		usr.Name = up.FullName
		usr.UpdatedAt = time.Now().UTC()
		if _, err = svc.usrRepo.UpdateUser(ctx, usr, exec...); err != nil {
			return errors.Wrap(err, "updating user")
		}

		tch.FullName = up.FullName
		tch, err = svc.repo.UpdateTeacher(ctx, tch, exec...)
		return errors.Wrap(err, "updating teacher")
	})
	return tch, err
}

func (svc *service) UploadProfilePic(ctx context.Context, tch Teacher, img io.Reader) (Teacher, error) {
	var buf bytes.Buffer
	if err := EncodeProfilePic(&buf, img, svc.picSize); err != nil {
		return Teacher{}, err
	}

	key := fmt.Sprintf("profile-pics/%s/%s.webp", tch.ID, uuid.New().String())
	url, err := svc.storage.Put(ctx, key, &buf, ProfilePicContentType)
	if err != nil {
		return Teacher{}, errors.Wrap(err, "storing profile picture")
	}

	oldPic := tch.ProfilePic
	tch.ProfilePic = url
	if tch, err = svc.repo.UpdateTeacher(ctx, tch); err != nil {
		return Teacher{}, errors.Wrap(err, "updating teacher")
	}
	if oldPic != "" {
		// best effort
		_ = svc.storage.Delete(ctx, svc.storage.KeyFromURL(oldPic))
	}
	return tch, nil
}

func (svc *service) SendPasswordReset(ctx context.Context, tch Teacher) error {
	if err := svc.usrSvc.RequestPasswordReset(ctx, tch.Email); err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(errors.New("this teacher has no active account"))
		}
		return errors.Wrap(err, "requesting password reset")
	}
	return nil
}

func (svc *service) Remove(ctx context.Context, tch Teacher) error {
	return core.Transactional(ctx, svc.db, func(exec ...core.DBExecutor) error {
		if err := svc.repo.DeleteTeacher(ctx, tch.ID, exec...); err != nil {
			return errors.Wrap(err, "deleting teacher")
		}
		_, err := svc.usrRepo.DeleteUsersByID(ctx, []string{tch.UserID}, exec...)
		return errors.Wrap(err, "deleting user")
	})
}
