package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ihub/core"
	"github.com/trezcool/ihub/core/audit"
)

type auditRow struct {
	ID            int64       `db:"id"`
	AdminID       null.String `db:"admin_id"`
	AdminUsername string      `db:"admin_username"`
	Action        string      `db:"action"`
	TargetObject  string      `db:"target_object"`
	Details       string      `db:"details"`
	Timestamp     time.Time   `db:"timestamp"`
}

func (r auditRow) entry() audit.Entry {
	return audit.Entry{
		ID:            r.ID,
		AdminID:       r.AdminID.String,
		AdminUsername: r.AdminUsername,
		Action:        audit.Action(r.Action),
		TargetObject:  r.TargetObject,
		Details:       r.Details,
		Timestamp:     r.Timestamp.UTC(),
	}
}

type auditRepository struct {
	baseRepository
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(db *sqlx.DB) audit.Repository {
	return &auditRepository{baseRepository{db: db}}
}

func (repo *auditRepository) CreateEntry(ctx context.Context, entry audit.Entry, exec ...core.DBExecutor) (audit.Entry, error) {
	q := `INSERT INTO audit_log (admin_id, admin_username, action, target_object, details, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	err := sqlx.GetContext(ctx, repo.getExec(exec), &entry.ID, q,
		nullString(entry.AdminID), entry.AdminUsername, string(entry.Action), entry.TargetObject, entry.Details, entry.Timestamp.UTC())
	if err != nil {
		return audit.Entry{}, errors.Wrap(err, "inserting audit entry")
	}
	return entry, nil
}

func (repo *auditRepository) where(filter audit.QueryFilter) whereClause {
	var where whereClause
	if filter.Action != "" {
		where.add("a.action = ?", string(filter.Action))
	}
	if filter.AdminID != "" {
		where.add("a.admin_id::text = ?", filter.AdminID)
	}
	if filter.Search != "" {
		where.add("a.target_object ILIKE ?", likePattern(filter.Search))
	}
	return where
}

func (repo *auditRepository) CountEntries(ctx context.Context, filter audit.QueryFilter, exec ...core.DBExecutor) (int, error) {
	where := repo.where(filter)
	var count int
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &count, repo.db.Rebind("SELECT COUNT(*) FROM audit_log a"+where.String()), where.args...); err != nil {
		return 0, errors.Wrap(err, "counting audit entries")
	}
	return count, nil
}

func (repo *auditRepository) QueryEntries(ctx context.Context, filter audit.QueryFilter, page core.Page, exec ...core.DBExecutor) ([]audit.Entry, error) {
	where := repo.where(filter)
	q := repo.db.Rebind("SELECT a.* FROM audit_log a" + where.String() + " ORDER BY a.timestamp DESC, a.id DESC" + limitOffset(page))

	var rows []auditRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying audit entries")
	}
	entries := make([]audit.Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.entry())
	}
	return entries, nil
}
