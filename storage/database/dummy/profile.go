package dummydb

import (
	"context"

	"github.com/trezcool/ihub/core"
	"github.com/trezcool/ihub/core/profile"
)

type profileRepository struct {
	db *DB
}

var _ profile.Repository = (*profileRepository)(nil) // interface compliance check

func NewProfileRepository(db *DB) profile.Repository {
	return &profileRepository{db: db}
}

func (repo *profileRepository) GetProfile(_ context.Context, userID string, _ ...core.DBExecutor) (profile.Profile, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.data.profiles[userID]; ok {
		return p, nil
	}
	return profile.Profile{}, profile.ErrNotFound
}

func (repo *profileRepository) CreateProfile(_ context.Context, p profile.Profile, _ ...core.DBExecutor) (profile.Profile, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if existing, ok := repo.db.data.profiles[p.UserID]; ok {
		return existing, nil
	}
	repo.db.data.profiles[p.UserID] = p
	return p, nil
}

func (repo *profileRepository) UpdateProfile(_ context.Context, p profile.Profile, _ ...core.DBExecutor) (profile.Profile, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.data.profiles[p.UserID]; !ok {
		return profile.Profile{}, profile.ErrNotFound
	}
	repo.db.data.profiles[p.UserID] = p
	return p, nil
}
