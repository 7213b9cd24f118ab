package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/ihub/core"
	"github.com/trezcool/ihub/core/category"
)

type categoryRepository struct {
	baseRepository
}

var _ category.Repository = (*categoryRepository)(nil) // interface compliance check

func NewCategoryRepository(db *sqlx.DB) category.Repository {
	return &categoryRepository{baseRepository{db: db}}
}

func (repo *categoryRepository) CheckNameUniqueness(ctx context.Context, name string, excluded []category.Category, exec ...core.DBExecutor) error {
	var where whereClause
	where.add("LOWER(c.name) = LOWER(?)", name)
	for _, c := range excluded {
		where.add("c.id <> ?", c.ID)
	}

	var exists bool
	q := repo.db.Rebind("SELECT EXISTS (SELECT 1 FROM category c" + where.String() + ")")
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &exists, q, where.args...); err != nil {
		return errors.Wrap(err, "checking category uniqueness")
	}
	if exists {
		return category.ErrNameExists
	}
	return nil
}

func (repo *categoryRepository) CreateCategory(ctx context.Context, c category.Category, exec ...core.DBExecutor) (category.Category, error) {
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &c.ID, "INSERT INTO category (name) VALUES ($1) RETURNING id", c.Name); err != nil {
		return category.Category{}, errors.Wrap(err, "inserting category")
	}
	return c, nil
}

func (repo *categoryRepository) QueryCategories(ctx context.Context, exec ...core.DBExecutor) ([]category.Category, error) {
	cats := make([]category.Category, 0)
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &cats, "SELECT id, name FROM category ORDER BY LOWER(name), id"); err != nil {
		return nil, errors.Wrap(err, "querying categories")
	}
	return cats, nil
}

func (repo *categoryRepository) GetCategory(ctx context.Context, id int64, exec ...core.DBExecutor) (category.Category, error) {
	var c category.Category
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &c, "SELECT id, name FROM category WHERE id = $1", id); err != nil {
		return category.Category{}, trapNoRowsErr(err, category.ErrNotFound, "getting category")
	}
	return c, nil
}

func (repo *categoryRepository) UpdateCategory(ctx context.Context, c category.Category, exec ...core.DBExecutor) (category.Category, error) {
	res, err := repo.getExec(exec).ExecContext(ctx, "UPDATE category SET name = $1 WHERE id = $2", c.Name, c.ID)
	if err != nil {
		return category.Category{}, errors.Wrap(err, "updating category")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return category.Category{}, category.ErrNotFound
	}
	return c, nil
}

func (repo *categoryRepository) DeleteCategory(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM category WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting category")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return category.ErrNotFound
	}
	return nil
}
