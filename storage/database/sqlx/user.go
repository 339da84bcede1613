package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/user"
)

const userColumns = `id, name, email, school_id, is_active, roles, password_hash, created_at, updated_at, last_login`

var userOrderingColumns = map[string]string{
	"name":       "name",
	"email":      "email",
	"is_active":  "is_active",
	"created_at": "created_at",
	"updated_at": "updated_at",
	"last_login": "last_login",
}

type userRecord struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Email        string         `db:"email"`
	SchoolID     null.String    `db:"school_id"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func newUserRecord(usr user.User) userRecord {
	roles := usr.Roles
	if roles == nil {
		roles = []string{}
	}
	return userRecord{
		ID:           usr.ID,
		Name:         usr.Name,
		Email:        usr.Email,
		SchoolID:     null.NewString(usr.SchoolID, usr.SchoolID != ""),
		IsActive:     usr.IsActive,
		Roles:        roles,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (rec userRecord) user() user.User {
	return user.User{
		ID:           rec.ID,
		Name:         rec.Name,
		Email:        rec.Email,
		SchoolID:     rec.SchoolID.String,
		IsActive:     rec.IsActive,
		Roles:        rec.Roles,
		PasswordHash: rec.PasswordHash,
		CreatedAt:    rec.CreatedAt.UTC(),
		UpdatedAt:    rec.UpdatedAt.UTC(),
		LastLogin:    rec.LastLogin.Time.UTC(),
	}
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{repository{exec: exec}}
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	var w where
	w.add("LOWER(email) = LOWER(?)", email)
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		if ids = validIDs(ids); len(ids) > 0 {
			w.add("id NOT IN (?)", ids)
		}
	}

	cnt, err := repo.countContext(ctx, exec, `SELECT COUNT(*) FROM users`+w.String(), w.args...)
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if cnt > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = newID()
	rec := newUserRecord(usr)
	_, err := repo.execContext(ctx, exec,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.Email, rec.SchoolID, rec.IsActive, rec.Roles, rec.PasswordHash,
		rec.CreatedAt, rec.UpdatedAt, rec.LastLogin,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return rec.user(), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	var w where
	if filter != nil {
		// users with Name or Email matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			w.add("(name ILIKE ? OR email ILIKE ?)", val, val)
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			conds := make([]string, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				conds = append(conds, "EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role LIKE ?)")
				w.args = append(w.args, role+"%")
			}
			w.conds = append(w.conds, "("+strings.Join(conds, " OR ")+")")
		}
		if filter.SchoolID != "" {
			if !validID(filter.SchoolID) {
				return []user.User{}, nil
			}
			w.add("school_id = ?", filter.SchoolID)
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			w.add("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			w.add("created_at <= ?", filter.CreatedTo.UTC())
		}
	}

	var recs []userRecord
	q := `SELECT ` + userColumns + ` FROM users` + w.String() + orderBy(ordering, userOrderingColumns, "created_at DESC")
	if err := repo.selectContext(ctx, exec, &recs, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(recs))
	for _, rec := range recs {
		users = append(users, rec.user())
	}
	return users, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var w where
	switch {
	case filter.ID != "":
		if !validID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		w.add("id = ?", filter.ID)
	case filter.Email != "":
		w.add("LOWER(email) = LOWER(?)", filter.Email)
	default:
		return user.User{}, user.ErrNotFound
	}

	var recs []userRecord
	if err := repo.selectContext(ctx, exec, &recs, `SELECT `+userColumns+` FROM users`+w.String()+` LIMIT 1`, w.args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	if len(recs) == 0 {
		return user.User{}, user.ErrNotFound
	}
	return recs[0].user(), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	rec := newUserRecord(usr)
	cnt, err := repo.execContext(ctx, exec,
		`UPDATE users SET name = ?, email = ?, school_id = ?, is_active = ?, roles = ?, password_hash = ?,
		updated_at = ?, last_login = ? WHERE id = ?`,
		rec.Name, rec.Email, rec.SchoolID, rec.IsActive, rec.Roles, rec.PasswordHash,
		rec.UpdatedAt, rec.LastLogin, rec.ID,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if cnt == 0 {
		return user.User{}, user.ErrNotFound
	}
	return rec.user(), nil
}

func (repo userRepository) SetUsersSchool(ctx context.Context, fromSchoolID, toSchoolID string, ids []string, exec ...core.DBExecutor) (int, error) {
	var w where
	if len(ids) > 0 {
		if ids = validIDs(ids); len(ids) == 0 {
			return 0, nil
		}
		w.add("id IN (?)", ids)
	} else {
		if !validID(fromSchoolID) {
			return 0, nil
		}
		w.add("school_id = ?", fromSchoolID)
	}

	args := append([]interface{}{null.NewString(toSchoolID, toSchoolID != ""), time.Now().UTC()}, w.args...)
	cnt, err := repo.execContext(ctx, exec, `UPDATE users SET school_id = ?, updated_at = ?`+w.String(), args...)
	if err != nil {
		return 0, errors.Wrap(err, "setting users school")
	}
	return cnt, nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	if ids = validIDs(ids); len(ids) == 0 {
		return 0, nil
	}
	cnt, err := repo.execContext(ctx, exec, `DELETE FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	return cnt, nil
}
