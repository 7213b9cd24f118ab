package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/ihub/core"
	"github.com/trezcool/ihub/core/project"
)

type projectRepository struct {
	db *DB
}

var _ project.Repository = (*projectRepository)(nil) // interface compliance check

func NewProjectRepository(db *DB) project.Repository {
	return &projectRepository{db: db}
}

// withOwner joins the owner account into p.
func (repo *projectRepository) withOwner(p project.Project) project.Project {
	usr := repo.db.data.users[p.OwnerID]
	p.Owner = project.Owner{
		ID:        p.OwnerID,
		Username:  usr.Username,
		Email:     usr.Email,
		FirstName: usr.FirstName,
		LastName:  usr.LastName,
	}
	return p
}

func (repo *projectRepository) CreateProject(_ context.Context, p project.Project, _ ...core.DBExecutor) (project.Project, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.data.projectPK++
	p.ID = repo.db.data.projectPK
	p.Owner = project.Owner{}
	repo.db.data.projects[p.ID] = p
	return repo.withOwner(p), nil
}

func (repo *projectRepository) GetProject(_ context.Context, id int64, _ ...core.DBExecutor) (project.Project, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.data.projects[id]; ok {
		return repo.withOwner(p), nil
	}
	return project.Project{}, project.ErrNotFound
}

func (repo *projectRepository) UpdateProject(_ context.Context, p project.Project, _ ...core.DBExecutor) (project.Project, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.data.projects[p.ID]
	if !ok {
		return project.Project{}, project.ErrNotFound
	}
	p.OwnerID = orig.OwnerID
	p.CreatedAt = orig.CreatedAt
	p.Owner = project.Owner{}
	repo.db.data.projects[p.ID] = p
	return repo.withOwner(p), nil
}

func (repo *projectRepository) DeleteProject(_ context.Context, id int64, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.data.projects[id]; !ok {
		return project.ErrNotFound
	}
	delete(repo.db.data.projects, id)
	return nil
}

func (repo *projectRepository) filter(filter project.QueryFilter) []project.Project {
	projects := make([]project.Project, 0, len(repo.db.data.projects))
	for _, p := range repo.db.data.projects {
		p = repo.withOwner(p)
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.OwnerID != "" && p.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Search != "" &&
			!core.ContainsFold(p.Title, filter.Search) &&
			!core.ContainsFold(p.Description, filter.Search) &&
			!core.ContainsFold(p.Owner.Username, filter.Search) {
			continue
		}
		projects = append(projects, p)
	}
	return projects
}

func (repo *projectRepository) CountProjects(_ context.Context, filter project.QueryFilter, _ ...core.DBExecutor) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return len(repo.filter(filter)), nil
}

func (repo *projectRepository) QueryProjects(_ context.Context, filter project.QueryFilter, ordering []core.DBOrdering, page core.Page, _ ...core.DBExecutor) ([]project.Project, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	projects := repo.filter(filter)
	// id breaks ties, as in the SQL repository
	sort.Slice(projects, func(i, j int) bool { return projects[i].ID < projects[j].ID })
	sort.SliceStable(projects, func(i, j int) bool {
		return less(ordering, func(field string) int {
			a, b := projects[i], projects[j]
			switch field {
			case "title":
				return compareStrings(a.Title, b.Title)
			case "status":
				return compareStrings(string(a.Status), string(b.Status))
			case "views":
				return compareInts(a.Views, b.Views)
			case "likes":
				return compareInts(a.Likes, b.Likes)
			case "created_at":
				if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
					return c
				}
				return compareInts(int(a.ID), int(b.ID))
			case "approved_at":
				switch {
				case a.ApprovedAt == nil && b.ApprovedAt == nil:
					return 0
				case a.ApprovedAt == nil:
					return -1
				case b.ApprovedAt == nil:
					return 1
				}
				return a.ApprovedAt.Compare(*b.ApprovedAt)
			}
			return 0
		})
	})
	return paginate(projects, page), nil
}

func (repo *projectRepository) CountProjectsByStatus(_ context.Context, _ ...core.DBExecutor) (map[project.Status]int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	counts := make(map[project.Status]int)
	for _, p := range repo.db.data.projects {
		counts[p.Status]++
	}
	return counts, nil
}

func (repo *projectRepository) IncrementViews(_ context.Context, id int64, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	p, ok := repo.db.data.projects[id]
	if !ok {
		return project.ErrNotFound
	}
	p.Views++
	repo.db.data.projects[id] = p
	return nil
}

func (repo *projectRepository) IncrementLikes(_ context.Context, id int64, _ ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	p, ok := repo.db.data.projects[id]
	if !ok {
		return 0, project.ErrNotFound
	}
	p.Likes++
	repo.db.data.projects[id] = p
	return p.Likes, nil
}
