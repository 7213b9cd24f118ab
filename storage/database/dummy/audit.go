package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/ihub/core"
	"github.com/trezcool/ihub/core/audit"
)

type auditRepository struct {
	db *DB
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(db *DB) audit.Repository {
	return &auditRepository{db: db}
}

func (repo *auditRepository) CreateEntry(_ context.Context, entry audit.Entry, _ ...core.DBExecutor) (audit.Entry, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.data.auditPK++
	entry.ID = repo.db.data.auditPK
	repo.db.data.audit = append(repo.db.data.audit, entry)
	return entry, nil
}

func (repo *auditRepository) filter(filter audit.QueryFilter) []audit.Entry {
	var entries []audit.Entry
	for _, e := range repo.db.data.audit {
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.AdminID != "" && e.AdminID != filter.AdminID {
			continue
		}
		if filter.Search != "" && !core.ContainsFold(e.TargetObject, filter.Search) {
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

func (repo *auditRepository) CountEntries(_ context.Context, filter audit.QueryFilter, _ ...core.DBExecutor) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return len(repo.filter(filter)), nil
}

func (repo *auditRepository) QueryEntries(_ context.Context, filter audit.QueryFilter, page core.Page, _ ...core.DBExecutor) ([]audit.Entry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	entries := repo.filter(filter)
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		}
		return entries[i].ID > entries[j].ID
	})
	return paginate(entries, page), nil
}
