// Package school implements the power-user console: schools, their admins and the audit trail.
package school

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/audit"
	"github.com/trezcool/gradebook/core/teacher"
	"github.com/trezcool/gradebook/core/user"
)

var (
	ErrNotFound      = core.NewNotFoundError("school not found")
	ErrAdminNotFound = core.NewNotFoundError("admin not found")
	ErrCodeExists    = errors.New("a school with this code already exists")
)

type (
	Repository interface {
		// CheckCodeUniqueness returns ErrCodeExists if another school (not in excluded) has this code (case-insensitive).
		CheckCodeUniqueness(ctx context.Context, code string, excluded []School, exec ...core.DBExecutor) error
		CreateSchool(ctx context.Context, sch School, exec ...core.DBExecutor) (School, error)
		// QuerySchools returns all schools ordered by name.
		QuerySchools(ctx context.Context, exec ...core.DBExecutor) ([]School, error)
		GetSchool(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (School, error)
		UpdateSchool(ctx context.Context, sch School, exec ...core.DBExecutor) (School, error)
		DeleteSchool(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service interface {
		CheckCodeUniqueness(ctx context.Context, code string, excluded ...School) error
		Create(ctx context.Context, ns NewSchool, actor string) (School, error)
		Query(ctx context.Context) ([]School, error)
		GetByID(ctx context.Context, id string) (School, error)
		GetByCode(ctx context.Context, code string) (School, error)
		Update(ctx context.Context, sch School, us UpdateSchool, actor string) (School, error)
		// Delete unlinks the school's admins & teachers then deletes it.
		Delete(ctx context.Context, sch School, actor string) error

		CreateAdmin(ctx context.Context, na NewAdmin, actor string) (user.User, error)
		QueryAdmins(ctx context.Context, schoolID string) ([]user.User, error)
		GetAdmin(ctx context.Context, id string) (user.User, error)
		UpdateAdmin(ctx context.Context, adm user.User, ua UpdateAdmin, actor string) (user.User, error)
		LinkAdmin(ctx context.Context, adm user.User, schoolID, actor string) (user.User, error)
		UnlinkAdmin(ctx context.Context, adm user.User, actor string) (user.User, error)
		DeleteAdmins(ctx context.Context, ids []string, actor string) (int, error)

		// CreateTeacher quick-creates a teacher and invites them by email.
		CreateTeacher(ctx context.Context, nt teacher.NewTeacher, actor string) (teacher.Teacher, error)
		QueryTeachers(ctx context.Context, schoolID string) ([]teacher.Teacher, error)

		Overview(ctx context.Context) (Overview, error)
		AuditLogs(ctx context.Context, limit int) ([]audit.Log, error)

		checkSchoolExists(ctx context.Context, id string) error
	}

	service struct {
		db       core.DB
		repo     Repository
		usrRepo  user.Repository
		usrSvc   user.Service
		tchRepo  teacher.Repository
		tchSvc   teacher.Service
		auditSvc audit.Service
	}
)

var _ Service = (*service)(nil)

func NewService(
	db core.DB,
	repo Repository,
	usrRepo user.Repository,
	usrSvc user.Service,
	tchRepo teacher.Repository,
	tchSvc teacher.Service,
	auditSvc audit.Service,
) Service {
	return &service{
		db:       db,
		repo:     repo,
		usrRepo:  usrRepo,
		usrSvc:   usrSvc,
		tchRepo:  tchRepo,
		tchSvc:   tchSvc,
		auditSvc: auditSvc,
	}
}

func (svc *service) CheckCodeUniqueness(ctx context.Context, code string, excluded ...School) error {
	if err := svc.repo.CheckCodeUniqueness(ctx, code, excluded); err != nil {
		if err == ErrCodeExists {
			return core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
		}
		return errors.Wrap(err, "checking school code uniqueness")
	}
	return nil
}

func (svc *service) checkSchoolExists(ctx context.Context, id string) error {
	if _, err := svc.GetByID(ctx, id); err != nil {
		if core.IsNotFound(err) {
			return core.NewFieldError("school_id", "school not found")
		}
		return errors.Wrap(err, "finding school")
	}
	return nil
}

func (svc *service) Create(ctx context.Context, ns NewSchool, actor string) (School, error) {
	var sch School
	err := core.Transactional(ctx, svc.db, func(exec ...core.DBExecutor) error {
		var err error
		sch, err = svc.repo.CreateSchool(ctx, School{
			Name:      ns.Name,
			Address:   ns.Address,
			Code:      ns.Code,
			CreatedAt: time.Now().UTC(),
		}, exec...)
		if err != nil {
			return errors.Wrap(err, "creating school")
		}
		return svc.auditSvc.Record(ctx, fmt.Sprintf("Created school %q (%s)", sch.Name, sch.Code), actor, exec...)
	})
	return sch, err
}

func (svc *service) Query(ctx context.Context) ([]School, error) {
	return svc.repo.QuerySchools(ctx)
}

func (svc *service) GetByID(ctx context.Context, id string) (School, error) {
	return svc.repo.GetSchool(ctx, GetFilter{ID: id})
}

func (svc *service) GetByCode(ctx context.Context, code string) (School, error) {
	return svc.repo.GetSchool(ctx, GetFilter{Code: core.CleanString(code)})
}

func (svc *service) Update(ctx context.Context, sch School, us UpdateSchool, actor string) (School, error) {
	sch.Name = us.Name
	sch.Address = us.Address
	sch.Code = us.Code

	err := core.Transactional(ctx, svc.db, func(exec ...core.DBExecutor) error {
		var err error
		if sch, err = svc.repo.UpdateSchool(ctx, sch, exec...); err != nil {
			return errors.Wrap(err, "updating school")
		}
		return svc.auditSvc.Record(ctx, fmt.Sprintf("Updated school %q (%s)", sch.Name, sch.Code), actor, exec...)
	})
	return sch, err
}

func (svc *service) Delete(ctx context.Context, sch School, actor string) error {
	return core.Transactional(ctx, svc.db, func(exec ...core.DBExecutor) error {
		if _, err := svc.usrRepo.SetUsersSchool(ctx, sch.ID, "", nil, exec...); err != nil {
			return errors.Wrap(err, "unlinking users")
		}
		if _, err := svc.tchRepo.UnlinkSchool(ctx, sch.ID, exec...); err != nil {
			return errors.Wrap(err, "unlinking teachers")
		}
		if err := svc.repo.DeleteSchool(ctx, sch.ID, exec...); err != nil {
			return errors.Wrap(err, "deleting school")
		}
		return svc.auditSvc.Record(ctx, fmt.Sprintf("Deleted school %q (%s)", sch.Name, sch.Code), actor, exec...)
	})
}

// Admins

func (svc *service) CreateAdmin(ctx context.Context, na NewAdmin, actor string) (user.User, error) {
	var adm user.User
	err := core.Transactional(ctx, svc.db, func(exec ...core.DBExecutor) error {
		var err error
		if adm, err = svc.usrSvc.Create(ctx, na.newUser(), exec...); err != nil {
			return errors.Wrap(err, "creating admin")
		}
		return svc.auditSvc.Record(ctx, "Created admin "+adm.Email, actor, exec...)
	})
	return adm, err
}

func (svc *service) QueryAdmins(ctx context.Context, schoolID string) ([]user.User, error) {
	filter := &user.QueryFilter{Roles: user.AdminRoles, SchoolID: schoolID}
	return svc.usrRepo.QueryUsers(ctx, filter, []core.DBOrdering{{Field: "created_at"}})
}

func (svc *service) GetAdmin(ctx context.Context, id string) (user.User, error) {
	adm, err := svc.usrSvc.GetByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, ErrAdminNotFound
		}
		return user.User{}, err
	}
	if !adm.IsAdmin() {
		return user.User{}, ErrAdminNotFound
	}
	return adm, nil
}

func (svc *service) saveAdmin(ctx context.Context, adm user.User, action, actor string) (user.User, error) {
	adm.UpdatedAt = time.Now().UTC()
	err := core.Transactional(ctx, svc.db, func(exec ...core.DBExecutor) error {
		var err error
		if adm, err = svc.usrRepo.UpdateUser(ctx, adm, exec...); err != nil {
			return errors.Wrap(err, "updating admin")
		}
		return svc.auditSvc.Record(ctx, action, actor, exec...)
	})
	return adm, err
}

func (svc *service) UpdateAdmin(ctx context.Context, adm user.User, ua UpdateAdmin, actor string) (user.User, error) {
	adm.Name = ua.FullName
	adm.Email = ua.Email
	adm.SchoolID = ua.SchoolID
	return svc.saveAdmin(ctx, adm, "Updated admin "+adm.Email, actor)
}

func (svc *service) LinkAdmin(ctx context.Context, adm user.User, schoolID, actor string) (user.User, error) {
	sch, err := svc.GetByID(ctx, schoolID)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, core.NewFieldError("school_id", "school not found")
		}
		return user.User{}, errors.Wrap(err, "finding school")
	}
	adm.SchoolID = sch.ID
	return svc.saveAdmin(ctx, adm, fmt.Sprintf("Linked admin %s to school %q", adm.Email, sch.Name), actor)
}

func (svc *service) UnlinkAdmin(ctx context.Context, adm user.User, actor string) (user.User, error) {
	adm.SchoolID = ""
	return svc.saveAdmin(ctx, adm, "Unlinked admin "+adm.Email, actor)
}

// DeleteAdmins deletes the admins among ids; other accounts are left untouched.
func (svc *service) DeleteAdmins(ctx context.Context, ids []string, actor string) (int, error) {
	admins, err := svc.QueryAdmins(ctx, "")
	if err != nil {
		return 0, errors.Wrap(err, "querying admins")
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	toDelete := make([]user.User, 0, len(ids))
	for _, adm := range admins {
		if wanted[adm.ID] {
			toDelete = append(toDelete, adm)
		}
	}
	if len(toDelete) == 0 {
		return 0, nil
	}

	var cnt int
	err = core.Transactional(ctx, svc.db, func(exec ...core.DBExecutor) error {
		delIDs := make([]string, 0, len(toDelete))
		for _, adm := range toDelete {
			delIDs = append(delIDs, adm.ID)
		}
		if cnt, err = svc.usrRepo.DeleteUsersByID(ctx, delIDs, exec...); err != nil {
			return errors.Wrap(err, "deleting admins")
		}
		for _, adm := range toDelete {
			if err = svc.auditSvc.Record(ctx, "Deleted admin "+adm.Email, actor, exec...); err != nil {
				return err
			}
		}
		return nil
	})
	return cnt, err
}

// Teachers

func (svc *service) CreateTeacher(ctx context.Context, nt teacher.NewTeacher, actor string) (teacher.Teacher, error) {
	tch, err := svc.tchSvc.Create(ctx, nt)
	if err != nil {
		return teacher.Teacher{}, err
	}
	if err = svc.auditSvc.Record(ctx, "Created teacher "+tch.Email, actor); err != nil {
		return teacher.Teacher{}, err
	}

	usr, err := svc.usrSvc.GetByID(ctx, tch.UserID)
	if err != nil {
		return teacher.Teacher{}, errors.Wrap(err, "finding teacher account")
	}
	return tch, svc.usrSvc.SendAccountCreated(usr)
}

func (svc *service) QueryTeachers(ctx context.Context, schoolID string) ([]teacher.Teacher, error) {
	return svc.tchSvc.Query(ctx, teacher.QueryFilter{SchoolID: schoolID})
}

// Console

func (svc *service) Overview(ctx context.Context) (Overview, error) {
	var ov Overview

	schools, err := svc.repo.QuerySchools(ctx)
	if err != nil {
		return ov, errors.Wrap(err, "querying schools")
	}
	ov.Schools = len(schools)

	admins, err := svc.QueryAdmins(ctx, "")
	if err != nil {
		return ov, errors.Wrap(err, "querying admins")
	}
	ov.Admins = len(admins)

	counts, err := svc.tchRepo.CountTeachers(ctx, "")
	if err != nil {
		return ov, errors.Wrap(err, "counting teachers")
	}
	ov.Teachers = counts.Active + counts.Archived

	if ov.RecentLogs, err = svc.auditSvc.Latest(ctx, audit.OverviewListLimit); err != nil {
		return ov, errors.Wrap(err, "querying audit logs")
	}
	return ov, nil
}

func (svc *service) AuditLogs(ctx context.Context, limit int) ([]audit.Log, error) {
	return svc.auditSvc.Latest(ctx, limit)
}
