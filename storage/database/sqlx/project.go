package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ihub/core"
	"github.com/trezcool/ihub/core/project"
)

const projectSelect = `SELECT p.id, p.owner_id, p.title, p.description, p.category, p.github_url, p.live_demo,
		p.video_demo, p.tech_used, p.screenshot, p.views, p.likes, p.status, p.created_at, p.approved_at, p.approved_by,
		u.username AS owner_username, u.email AS owner_email, u.first_name AS owner_first_name, u.last_name AS owner_last_name
	FROM project p JOIN "user" u ON u.id = p.owner_id`

type projectRow struct {
	ID          int64       `db:"id"`
	OwnerID     string      `db:"owner_id"`
	Title       string      `db:"title"`
	Description string      `db:"description"`
	Category    string      `db:"category"`
	GithubURL   string      `db:"github_url"`
	LiveDemo    null.String `db:"live_demo"`
	VideoDemo   null.String `db:"video_demo"`
	TechUsed    string      `db:"tech_used"`
	Screenshot  null.String `db:"screenshot"`
	Views       int         `db:"views"`
	Likes       int         `db:"likes"`
	Status      string      `db:"status"`
	CreatedAt   time.Time   `db:"created_at"`
	ApprovedAt  null.Time   `db:"approved_at"`
	ApprovedBy  null.String `db:"approved_by"`

	// joined from the owner account
	OwnerUsername  string      `db:"owner_username"`
	OwnerEmail     null.String `db:"owner_email"`
	OwnerFirstName string      `db:"owner_first_name"`
	OwnerLastName  string      `db:"owner_last_name"`
}

func toProjectRow(p project.Project) projectRow {
	r := projectRow{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Title:       p.Title,
		Description: p.Description,
		Category:    p.Category,
		GithubURL:   p.GithubURL,
		LiveDemo:    nullString(p.LiveDemo),
		VideoDemo:   nullString(p.VideoDemo),
		TechUsed:    p.TechUsed,
		Screenshot:  nullString(p.Screenshot),
		Views:       p.Views,
		Likes:       p.Likes,
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt.UTC(),
		ApprovedBy:  nullString(p.ApprovedBy),
	}
	if p.ApprovedAt != nil {
		r.ApprovedAt = null.TimeFrom(p.ApprovedAt.UTC())
	}
	return r
}

func (r projectRow) project() project.Project {
	p := project.Project{
		ID:      r.ID,
		OwnerID: r.OwnerID,
		Owner: project.Owner{
			ID:        r.OwnerID,
			Username:  r.OwnerUsername,
			Email:     r.OwnerEmail.String,
			FirstName: r.OwnerFirstName,
			LastName:  r.OwnerLastName,
		},
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		GithubURL:   r.GithubURL,
		LiveDemo:    r.LiveDemo.String,
		VideoDemo:   r.VideoDemo.String,
		TechUsed:    r.TechUsed,
		Screenshot:  r.Screenshot.String,
		Views:       r.Views,
		Likes:       r.Likes,
		Status:      project.Status(r.Status),
		CreatedAt:   r.CreatedAt.UTC(),
		ApprovedBy:  r.ApprovedBy.String,
	}
	if r.ApprovedAt.Valid {
		t := r.ApprovedAt.Time.UTC()
		p.ApprovedAt = &t
	}
	return p
}

type projectRepository struct {
	baseRepository
}

var _ project.Repository = (*projectRepository)(nil) // interface compliance check

func NewProjectRepository(db *sqlx.DB) project.Repository {
	return &projectRepository{baseRepository{db: db}}
}

func (repo *projectRepository) CreateProject(ctx context.Context, p project.Project, exec ...core.DBExecutor) (project.Project, error) {
	q := `INSERT INTO project (owner_id, title, description, category, github_url, live_demo, video_demo, tech_used,
			screenshot, views, likes, status, created_at, approved_at, approved_by)
		VALUES (:owner_id, :title, :description, :category, :github_url, :live_demo, :video_demo, :tech_used,
			:screenshot, :views, :likes, :status, :created_at, :approved_at, :approved_by)
		RETURNING id`
	ext := repo.getExec(exec)
	rows, err := sqlx.NamedQueryContext(ctx, ext, q, toProjectRow(p))
	if err != nil {
		return project.Project{}, errors.Wrap(err, "inserting project")
	}
	var id int64
	if rows.Next() {
		err = rows.Scan(&id)
	}
	if closeErr := rows.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return project.Project{}, errors.Wrap(err, "inserting project")
	}
	return repo.GetProject(ctx, id, exec...)
}

func (repo *projectRepository) GetProject(ctx context.Context, id int64, exec ...core.DBExecutor) (project.Project, error) {
	var r projectRow
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &r, projectSelect+" WHERE p.id = $1", id); err != nil {
		return project.Project{}, trapNoRowsErr(err, project.ErrNotFound, "getting project")
	}
	return r.project(), nil
}

// UpdateProject saves every mutable column. owner_id and created_at never change.
func (repo *projectRepository) UpdateProject(ctx context.Context, p project.Project, exec ...core.DBExecutor) (project.Project, error) {
	q := `UPDATE project SET title = :title, description = :description, category = :category, github_url = :github_url,
			live_demo = :live_demo, video_demo = :video_demo, tech_used = :tech_used, screenshot = :screenshot,
			views = :views, likes = :likes, status = :status, approved_at = :approved_at, approved_by = :approved_by
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, toProjectRow(p))
	if err != nil {
		return project.Project{}, errors.Wrap(err, "updating project")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return project.Project{}, project.ErrNotFound
	}
	return repo.GetProject(ctx, p.ID, exec...)
}

func (repo *projectRepository) DeleteProject(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM project WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting project")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return project.ErrNotFound
	}
	return nil
}

func (repo *projectRepository) where(filter project.QueryFilter) whereClause {
	var where whereClause
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		where.add("p.title ILIKE ? OR p.description ILIKE ? OR u.username ILIKE ?", pattern, pattern, pattern)
	}
	if filter.Status != "" {
		where.add("p.status = ?", string(filter.Status))
	}
	if filter.OwnerID != "" {
		where.add("p.owner_id::text = ?", filter.OwnerID)
	}
	return where
}

func (repo *projectRepository) CountProjects(ctx context.Context, filter project.QueryFilter, exec ...core.DBExecutor) (int, error) {
	where := repo.where(filter)
	q := repo.db.Rebind(`SELECT COUNT(*) FROM project p JOIN "user" u ON u.id = p.owner_id` + where.String())
	var count int
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &count, q, where.args...); err != nil {
		return 0, errors.Wrap(err, "counting projects")
	}
	return count, nil
}

func (repo *projectRepository) QueryProjects(ctx context.Context, filter project.QueryFilter, ordering []core.DBOrdering, page core.Page, exec ...core.DBExecutor) ([]project.Project, error) {
	where := repo.where(filter)
	tieBreaker := "p.id DESC"
	for _, ord := range ordering {
		if ord.Field == "created_at" && ord.Ascending {
			tieBreaker = "p.id ASC"
		}
	}
	q := repo.db.Rebind(projectSelect + where.String() + orderBy("p", ordering, tieBreaker) + limitOffset(page))

	var rows []projectRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying projects")
	}
	projects := make([]project.Project, 0, len(rows))
	for _, r := range rows {
		projects = append(projects, r.project())
	}
	return projects, nil
}

func (repo *projectRepository) CountProjectsByStatus(ctx context.Context, exec ...core.DBExecutor) (map[project.Status]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, "SELECT status, COUNT(*) AS count FROM project GROUP BY status"); err != nil {
		return nil, errors.Wrap(err, "counting projects by status")
	}
	counts := make(map[project.Status]int, len(rows))
	for _, r := range rows {
		counts[project.Status(r.Status)] = r.Count
	}
	return counts, nil
}

func (repo *projectRepository) IncrementViews(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, "UPDATE project SET views = views + 1 WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "incrementing views")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return project.ErrNotFound
	}
	return nil
}

func (repo *projectRepository) IncrementLikes(ctx context.Context, id int64, exec ...core.DBExecutor) (int, error) {
	var likes int
	q := "UPDATE project SET likes = likes + 1 WHERE id = $1 RETURNING likes"
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &likes, q, id); err != nil {
		return 0, trapNoRowsErr(err, project.ErrNotFound, "incrementing likes")
	}
	return likes, nil
}
