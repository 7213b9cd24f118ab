package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/ihub/core"
	"github.com/trezcool/ihub/core/category"
)

type categoryRepository struct {
	db *DB
}

var _ category.Repository = (*categoryRepository)(nil) // interface compliance check

func NewCategoryRepository(db *DB) category.Repository {
	return &categoryRepository{db: db}
}

func (repo *categoryRepository) CheckNameUniqueness(_ context.Context, name string, excluded []category.Category, _ ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	skip := make(map[int64]bool, len(excluded))
	for _, c := range excluded {
		skip[c.ID] = true
	}
	for _, c := range repo.db.data.categories {
		if !skip[c.ID] && strings.EqualFold(c.Name, name) {
			return category.ErrNameExists
		}
	}
	return nil
}

func (repo *categoryRepository) CreateCategory(_ context.Context, c category.Category, _ ...core.DBExecutor) (category.Category, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.data.categoryPK++
	c.ID = repo.db.data.categoryPK
	repo.db.data.categories[c.ID] = c
	return c, nil
}

func (repo *categoryRepository) QueryCategories(_ context.Context, _ ...core.DBExecutor) ([]category.Category, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	cats := make([]category.Category, 0, len(repo.db.data.categories))
	for _, c := range repo.db.data.categories {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return compareStrings(cats[i].Name, cats[j].Name) < 0 })
	return cats, nil
}

func (repo *categoryRepository) GetCategory(_ context.Context, id int64, _ ...core.DBExecutor) (category.Category, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.db.data.categories[id]; ok {
		return c, nil
	}
	return category.Category{}, category.ErrNotFound
}

func (repo *categoryRepository) UpdateCategory(_ context.Context, c category.Category, _ ...core.DBExecutor) (category.Category, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.data.categories[c.ID]; !ok {
		return category.Category{}, category.ErrNotFound
	}
	repo.db.data.categories[c.ID] = c
	return c, nil
}

func (repo *categoryRepository) DeleteCategory(_ context.Context, id int64, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.data.categories[id]; !ok {
		return category.ErrNotFound
	}
	delete(repo.db.data.categories, id)
	return nil
}
