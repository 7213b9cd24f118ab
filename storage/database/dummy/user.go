package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/ihub/core"
	"github.com/trezcool/ihub/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers []user.User, _ ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}
	for _, usr := range repo.db.data.users {
		if excluded[usr.ID] {
			continue
		}
		if usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr.ID = uuid.NewString()
	repo.db.data.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) filter(filter user.QueryFilter) []user.User {
	isActive := filter.IsActive()
	users := make([]user.User, 0, len(repo.db.data.users))
	for _, u := range repo.db.data.users {
		if isActive != nil && u.IsActive != *isActive {
			continue
		}
		if filter.Search != "" &&
			!core.ContainsFold(u.Username, filter.Search) &&
			!core.ContainsFold(u.Email, filter.Search) &&
			!core.ContainsFold(repo.db.data.profiles[u.ID].Department, filter.Search) {
			continue
		}
		users = append(users, u)
	}
	return users
}

func (repo *userRepository) CountUsers(_ context.Context, filter user.QueryFilter, _ ...core.DBExecutor) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return len(repo.filter(filter)), nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter user.QueryFilter, ordering []core.DBOrdering, page core.Page, _ ...core.DBExecutor) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := repo.filter(filter)
	sort.SliceStable(users, func(i, j int) bool {
		return less(ordering, func(field string) int {
			a, b := users[i], users[j]
			switch field {
			case "username":
				return compareStrings(a.Username, b.Username)
			case "email":
				return compareStrings(a.Email, b.Email)
			case "created_at":
				return a.CreatedAt.Compare(b.CreatedAt)
			case "last_login":
				return a.LastLogin.Compare(b.LastLogin)
			}
			return 0
		})
	})
	return paginate(users, page), nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.data.users[filter.ID]; ok {
			return usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	for _, usr := range repo.db.data.users {
		switch {
		case filter.Username != "" && usr.Username == filter.Username,
			filter.Email != "" && usr.Email == filter.Email,
			filter.UsernameOrEmail != "" && (usr.Username == filter.UsernameOrEmail || usr.Email == filter.UsernameOrEmail):
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.data.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	repo.db.data.users[usr.ID] = usr
	return usr, nil
}

// DeleteUser cascades to the profile and projects of the user. Audit entries keep the username.
func (repo *userRepository) DeleteUser(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.data.users[id]; !ok {
		return user.ErrNotFound
	}
	delete(repo.db.data.users, id)
	delete(repo.db.data.profiles, id)
	for pid, p := range repo.db.data.projects {
		if p.OwnerID == id {
			delete(repo.db.data.projects, pid)
		} else if p.ApprovedBy == id {
			p.ApprovedBy = ""
			repo.db.data.projects[pid] = p
		}
	}
	for i, e := range repo.db.data.audit {
		if e.AdminID == id {
			repo.db.data.audit[i].AdminID = ""
		}
	}
	return nil
}
