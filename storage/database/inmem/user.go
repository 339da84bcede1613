package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string, excludedUsers []user.User, _ ...core.DBExecutor) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}
	for _, usr := range repo.db.users {
		if strings.EqualFold(usr.Email, email) && !excluded[usr.ID] {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	usr.ID = newID()
	repo.db.users = append(repo.db.users, usr)
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := make([]user.User, 0, len(repo.db.users))
	for _, usr := range repo.db.users {
		if filter == nil || matchUser(usr, filter) {
			users = append(users, usr)
		}
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			cmp := compareUsers(users[i], users[j], ord.Field)
			if cmp == 0 {
				continue
			}
			if ord.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return false
	})
	return users, nil
}

func matchUser(usr user.User, filter *user.QueryFilter) bool {
	if filter.Search != "" && !containsFold(usr.Name, filter.Search) && !containsFold(usr.Email, filter.Search) {
		return false
	}
	if len(filter.Roles) > 0 {
		var found bool
		for _, role := range filter.Roles {
			if usr.RoleStartsWith(role) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.SchoolID != "" && usr.SchoolID != filter.SchoolID {
		return false
	}
	if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
		return false
	}
	if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	return true
}

func compareUsers(u1, u2 user.User, field string) int {
	switch field {
	case "name":
		return strings.Compare(strings.ToLower(u1.Name), strings.ToLower(u2.Name))
	case "email":
		return strings.Compare(u1.Email, u2.Email)
	case "is_active":
		return compareBool(u1.IsActive, u2.IsActive)
	case "created_at":
		return compareTime(u1.CreatedAt, u2.CreatedAt)
	case "updated_at":
		return compareTime(u1.UpdatedAt, u2.UpdatedAt)
	case "last_login":
		return compareTime(u1.LastLogin, u2.LastLogin)
	}
	return 0
}

func compareBool(b1, b2 bool) int {
	switch {
	case b1 == b2:
		return 0
	case b2:
		return -1
	default:
		return 1
	}
}

func compareTime(t1, t2 time.Time) int {
	switch {
	case t1.Before(t2):
		return -1
	case t1.After(t2):
		return 1
	default:
		return 0
	}
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, usr := range repo.db.users {
		switch {
		case filter.ID != "":
			if usr.ID == filter.ID {
				return usr, nil
			}
		case filter.Email != "":
			if strings.EqualFold(usr.Email, filter.Email) {
				return usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for i := range repo.db.users {
		if repo.db.users[i].ID == usr.ID {
			repo.db.users[i] = usr
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) SetUsersSchool(_ context.Context, fromSchoolID, toSchoolID string, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	idSet := stringSet(ids)
	var cnt int
	for i, usr := range repo.db.users {
		if (len(ids) > 0 && idSet[usr.ID]) || (len(ids) == 0 && usr.SchoolID == fromSchoolID) {
			repo.db.users[i].SchoolID = toSchoolID
			repo.db.users[i].UpdatedAt = time.Now().UTC()
			cnt++
		}
	}
	return cnt, nil
}

// DeleteUsersByID also deletes the teacher entries of the users.
func (repo *userRepository) DeleteUsersByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	idSet := stringSet(ids)
	users := repo.db.users[:0]
	for _, usr := range repo.db.users {
		if !idSet[usr.ID] {
			users = append(users, usr)
		}
	}
	cnt := len(repo.db.users) - len(users)
	repo.db.users = users

	var tchIDs []string
	for _, tch := range repo.db.teachers {
		if idSet[tch.UserID] {
			tchIDs = append(tchIDs, tch.ID)
		}
	}
	for _, id := range tchIDs {
		repo.db.deleteTeacher(id)
	}
	return cnt, nil
}
