package audit

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ihub/core"
)

const PageSize = 20

type (
	Repository interface {
		CreateEntry(ctx context.Context, entry Entry, exec ...core.DBExecutor) (Entry, error)
		CountEntries(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) (int, error)
		// QueryEntries returns entries newest first.
		QueryEntries(ctx context.Context, filter QueryFilter, page core.Page, exec ...core.DBExecutor) ([]Entry, error)
	}

	// Service is the append-only audit trail; entries are never updated or deleted.
	Service interface {
		Record(ctx context.Context, entry Entry, exec ...core.DBExecutor) (Entry, error)
		Query(ctx context.Context, filter QueryFilter, page core.Page) (core.Paginated[Entry], error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Record appends entry. Pass the transaction executor to make the entry part of the caller's transaction.
func (svc *service) Record(ctx context.Context, entry Entry, exec ...core.DBExecutor) (Entry, error) {
	if !entry.Action.IsValid() {
		return Entry{}, errors.Errorf("invalid audit action %q", entry.Action)
	}
	entry.ID = 0
	entry.Timestamp = time.Now().UTC()
	return svc.repo.CreateEntry(ctx, entry, exec...)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, page core.Page) (core.Paginated[Entry], error) {
	filter.Clean()
	count, err := svc.repo.CountEntries(ctx, filter)
	if err != nil {
		return core.Paginated[Entry]{}, errors.Wrap(err, "counting audit entries")
	}
	page = page.Clamp(count, PageSize)
	entries, err := svc.repo.QueryEntries(ctx, filter, page)
	if err != nil {
		return core.Paginated[Entry]{}, errors.Wrap(err, "querying audit entries")
	}
	return core.NewPaginated(entries, count, page), nil
}
