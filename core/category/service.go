package category

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/ihub/core"
	"github.com/trezcool/ihub/core/audit"
	"github.com/trezcool/ihub/core/user"
)

var (
	ErrNotFound   = errors.New("category not found")
	ErrNameExists = errors.New("a category with this name already exists")

	ErrOtherRequired = errors.New("Please specify the category when selecting 'Other'.")
	errReservedName  = errors.New("this name is reserved")
)

type (
	Repository interface {
		// CheckNameUniqueness does a case-insensitive match on names.
		CheckNameUniqueness(ctx context.Context, name string, excluded []Category, exec ...core.DBExecutor) error
		CreateCategory(ctx context.Context, c Category, exec ...core.DBExecutor) (Category, error)
		// QueryCategories returns all categories ordered by name.
		QueryCategories(ctx context.Context, exec ...core.DBExecutor) ([]Category, error)
		GetCategory(ctx context.Context, id int64, exec ...core.DBExecutor) (Category, error)
		UpdateCategory(ctx context.Context, c Category, exec ...core.DBExecutor) (Category, error)
		DeleteCategory(ctx context.Context, id int64, exec ...core.DBExecutor) error
	}

	// Service manages the category registry. Projects only carry the category name as free text,
	// so renaming or deleting a category never touches existing projects.
	Service interface {
		CheckUniqueness(ctx context.Context, name string, exclude ...Category) error
		Create(ctx context.Context, actor user.User, nc NewCategory) (Category, error)
		List(ctx context.Context) ([]Category, error)
		Get(ctx context.Context, id int64) (Category, error)
		Rename(ctx context.Context, actor user.User, id int64, nc NewCategory) (Category, error)
		Delete(ctx context.Context, actor user.User, id int64) error
	}

	service struct {
		tx       core.Transactor
		repo     Repository
		auditSvc audit.Service
	}
)

var _ Service = (*service)(nil)

func NewService(tx core.Transactor, repo Repository, auditSvc audit.Service) Service {
	return &service{tx: tx, repo: repo, auditSvc: auditSvc}
}

// Resolve returns the category text stored on a project: the selected category,
// or the submitter's own text when "other" is selected.
func Resolve(selected, other string) (string, error) {
	selected = core.CleanString(selected)
	if strings.EqualFold(selected, Other) {
		other = core.CleanString(other)
		if other == "" {
			return "", ErrOtherRequired
		}
		return other, nil
	}
	return selected, nil
}

func (svc *service) CheckUniqueness(ctx context.Context, name string, exclude ...Category) error {
	if err := svc.repo.CheckNameUniqueness(ctx, name, exclude); err != nil {
		if errors.Cause(err) == ErrNameExists {
			return core.NewValidationError(err, core.FieldError{Field: "name", Error: ErrNameExists.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(ctx context.Context, actor user.User, nc NewCategory) (Category, error) {
	var c Category
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if c, err = svc.repo.CreateCategory(ctx, Category{Name: nc.Name}, exec); err != nil {
			return errors.Wrap(err, "creating category")
		}
		return svc.record(ctx, actor, audit.ActionCreate, c.Name, "Created category", exec)
	})
	return c, err
}

func (svc *service) List(ctx context.Context) ([]Category, error) {
	return svc.repo.QueryCategories(ctx)
}

func (svc *service) Get(ctx context.Context, id int64) (Category, error) {
	return svc.repo.GetCategory(ctx, id)
}

func (svc *service) Rename(ctx context.Context, actor user.User, id int64, nc NewCategory) (Category, error) {
	var c Category
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		orig, err := svc.repo.GetCategory(ctx, id, exec)
		if err != nil {
			return err
		}
		if c, err = svc.repo.UpdateCategory(ctx, Category{ID: orig.ID, Name: nc.Name}, exec); err != nil {
			return errors.Wrap(err, "updating category")
		}
		return svc.record(ctx, actor, audit.ActionUpdate, c.Name, "Renamed category from "+orig.Name, exec)
	})
	return c, err
}

func (svc *service) Delete(ctx context.Context, actor user.User, id int64) error {
	return svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		c, err := svc.repo.GetCategory(ctx, id, exec)
		if err != nil {
			return err
		}
		if err = svc.repo.DeleteCategory(ctx, c.ID, exec); err != nil {
			return errors.Wrap(err, "deleting category")
		}
		return svc.record(ctx, actor, audit.ActionDelete, c.Name, "Deleted category", exec)
	})
}

func (svc *service) record(ctx context.Context, actor user.User, action audit.Action, name, details string, exec core.DBExecutor) error {
	entry := audit.NewEntry(actor.Actor(), action, audit.Target("Category", name), details)
	if _, err := svc.auditSvc.Record(ctx, entry, exec); err != nil {
		return errors.Wrap(err, "recording audit entry")
	}
	return nil
}
