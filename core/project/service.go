package project

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/ihub/core"
	"github.com/trezcool/ihub/core/audit"
	"github.com/trezcool/ihub/core/category"
	"github.com/trezcool/ihub/core/user"
)

const (
	PageSize        = 10
	PendingPageSize = 5
	GalleryPageSize = 12
	RecentCount     = 5
)

var (
	ErrNotFound = errors.New("project not found")

	// QueryOrderings maps the accepted `ordering` params to columns.
	QueryOrderings = map[string]string{
		"title":       "title",
		"status":      "status",
		"views":       "views",
		"likes":       "likes",
		"created_at":  "created_at",
		"approved_at": "approved_at",
	}
	newestFirst = []core.DBOrdering{{Field: "created_at"}}
	oldestFirst = []core.DBOrdering{{Field: "created_at", Ascending: true}}
)

type (
	Repository interface {
		CreateProject(ctx context.Context, p Project, exec ...core.DBExecutor) (Project, error)
		GetProject(ctx context.Context, id int64, exec ...core.DBExecutor) (Project, error)
		UpdateProject(ctx context.Context, p Project, exec ...core.DBExecutor) (Project, error)
		DeleteProject(ctx context.Context, id int64, exec ...core.DBExecutor) error
		CountProjects(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) (int, error)
		// QueryProjects applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of title, description or the owner's username.
		// A zero page returns every match.
		QueryProjects(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Page, exec ...core.DBExecutor) ([]Project, error)
		CountProjectsByStatus(ctx context.Context, exec ...core.DBExecutor) (map[Status]int, error)
		IncrementViews(ctx context.Context, id int64, exec ...core.DBExecutor) error
		IncrementLikes(ctx context.Context, id int64, exec ...core.DBExecutor) (int, error)
	}

	// Mirror is the external replica of submitted projects. It is never authoritative.
	Mirror interface {
		InsertRemoteProject(ctx context.Context, rp RemoteProject) error
	}

	Service interface {
		// owner operations
		Submit(ctx context.Context, owner user.User, np NewProject) (Project, error)
		Update(ctx context.Context, owner user.User, id int64, np NewProject) (Project, error)
		Delete(ctx context.Context, owner user.User, id int64) error
		SetScreenshot(ctx context.Context, owner user.User, id int64, r io.Reader, filename string) (Project, error)
		ListByOwner(ctx context.Context, owner user.User) ([]Project, error)

		// public operations
		View(ctx context.Context, id int64) (Project, error)
		Like(ctx context.Context, id int64) (Project, error)
		Gallery(ctx context.Context, search string, page core.Page) (core.Paginated[Project], error)

		// admin operations
		Get(ctx context.Context, id int64) (Project, error)
		Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Page) (core.Paginated[Project], error)
		PendingQueue(ctx context.Context, search string, page core.Page) (core.Paginated[Project], error)
		AdminUpdate(ctx context.Context, actor user.User, id int64, up AdminUpdateProject) (Project, error)
		AdminDelete(ctx context.Context, actor user.User, id int64) error
		Stats(ctx context.Context) (Stats, error)
		ExportCSV(ctx context.Context, w io.Writer) (int, error)
		ApproveOrReject(ctx context.Context, actor user.User, id int64, action string) (Transition, error)
		BulkApproveOrReject(ctx context.Context, actor user.User, ids []int64, action string) (BulkResult, error)
	}

	Deps struct {
		Tx          core.Transactor
		Repo        Repository
		AuditSvc    audit.Service
		CategorySvc category.Service
		MailSvc     core.EmailService
		FileStore   core.FileStore
		Mirror      Mirror // optional
		Validate    *validator.Validate
		Logger      core.Logger
		Conf        *core.Config
	}

	service struct {
		tx        core.Transactor
		repo      Repository
		auditSvc  audit.Service
		catSvc    category.Service
		mailSvc   core.EmailService
		fileStore core.FileStore
		mirror    Mirror
		validate  *validator.Validate
		logger    core.Logger
		conf      *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(deps Deps) Service {
	return &service{
		tx:        deps.Tx,
		repo:      deps.Repo,
		auditSvc:  deps.AuditSvc,
		catSvc:    deps.CategorySvc,
		mailSvc:   deps.MailSvc,
		fileStore: deps.FileStore,
		mirror:    deps.Mirror,
		validate:  deps.Validate,
		logger:    deps.Logger,
		conf:      deps.Conf,
	}
}

// Submit creates a Pending project owned by owner and replicates it to the mirror (best effort).
func (svc *service) Submit(ctx context.Context, owner user.User, np NewProject) (Project, error) {
	if err := np.Validate(svc.validate); err != nil {
		return Project{}, err
	}

	p, err := svc.repo.CreateProject(ctx, Project{
		OwnerID:     owner.ID,
		Title:       np.Title,
		Description: np.Description,
		Category:    np.Category,
		GithubURL:   np.GithubURL,
		LiveDemo:    np.LiveDemo,
		VideoDemo:   np.VideoDemo,
		TechUsed:    np.TechUsed,
		Status:      StatusPending,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return Project{}, errors.Wrap(err, "creating project")
	}

	if svc.mirror != nil {
		if err = svc.mirror.InsertRemoteProject(ctx, p.Remote()); err != nil {
			svc.logger.Warn(fmt.Sprintf("replicating project %d: %v", p.ID, err), err, owner)
		}
	}
	return p, nil
}

// getOwned hides projects of other owners behind ErrNotFound.
func (svc *service) getOwned(ctx context.Context, owner user.User, id int64, exec ...core.DBExecutor) (Project, error) {
	p, err := svc.repo.GetProject(ctx, id, exec...)
	if err != nil {
		return Project{}, err
	}
	if p.OwnerID != owner.ID {
		return Project{}, ErrNotFound
	}
	return p, nil
}

func (svc *service) Update(ctx context.Context, owner user.User, id int64, np NewProject) (Project, error) {
	p, err := svc.getOwned(ctx, owner, id)
	if err != nil {
		return Project{}, err
	}
	if err = np.Validate(svc.validate); err != nil {
		return Project{}, err
	}

	p.Title = np.Title
	p.Description = np.Description
	p.Category = np.Category
	p.GithubURL = np.GithubURL
	p.LiveDemo = np.LiveDemo
	p.VideoDemo = np.VideoDemo
	p.TechUsed = np.TechUsed
	if p, err = svc.repo.UpdateProject(ctx, p); err != nil {
		return Project{}, errors.Wrap(err, "updating project")
	}
	return p, nil
}

func (svc *service) Delete(ctx context.Context, owner user.User, id int64) error {
	p, err := svc.getOwned(ctx, owner, id)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteProject(ctx, p.ID); err != nil {
		return errors.Wrap(err, "deleting project")
	}
	svc.deleteScreenshot(ctx, p)
	return nil
}

func (svc *service) deleteScreenshot(ctx context.Context, p Project) {
	if p.Screenshot == "" {
		return
	}
	if err := svc.fileStore.Delete(ctx, p.Screenshot); err != nil {
		svc.logger.Warn(fmt.Sprintf("deleting screenshot %s: %v", p.Screenshot, err), err)
	}
}

func (svc *service) SetScreenshot(ctx context.Context, owner user.User, id int64, r io.Reader, filename string) (Project, error) {
	p, err := svc.getOwned(ctx, owner, id)
	if err != nil {
		return Project{}, err
	}

	url, err := svc.fileStore.Save(ctx, core.NewFileKey(svc.conf.Storage.ScreenshotsPrefix, filename), r, "")
	if err != nil {
		return Project{}, errors.Wrap(err, "saving screenshot")
	}
	old := p
	p.Screenshot = url
	if p, err = svc.repo.UpdateProject(ctx, p); err != nil {
		return Project{}, errors.Wrap(err, "updating project")
	}
	svc.deleteScreenshot(ctx, old)
	return p, nil
}

func (svc *service) ListByOwner(ctx context.Context, owner user.User) ([]Project, error) {
	projects, err := svc.repo.QueryProjects(ctx, QueryFilter{OwnerID: owner.ID}, newestFirst, core.Page{})
	if err != nil {
		return nil, errors.Wrap(err, "querying owner projects")
	}
	return projects, nil
}

func (svc *service) getApproved(ctx context.Context, id int64) (Project, error) {
	p, err := svc.repo.GetProject(ctx, id)
	if err != nil {
		return Project{}, err
	}
	if p.Status != StatusApproved {
		return Project{}, ErrNotFound
	}
	return p, nil
}

// View returns an approved project and counts the view. Counting failures are only logged.
func (svc *service) View(ctx context.Context, id int64) (Project, error) {
	p, err := svc.getApproved(ctx, id)
	if err != nil {
		return Project{}, err
	}
	if err = svc.repo.IncrementViews(ctx, p.ID); err != nil {
		svc.logger.Warn(fmt.Sprintf("counting view of project %d: %v", p.ID, err), err)
	} else {
		p.Views++
	}
	return p, nil
}

func (svc *service) Like(ctx context.Context, id int64) (Project, error) {
	p, err := svc.getApproved(ctx, id)
	if err != nil {
		return Project{}, err
	}
	if p.Likes, err = svc.repo.IncrementLikes(ctx, p.ID); err != nil {
		return Project{}, errors.Wrap(err, "liking project")
	}
	return p, nil
}

func (svc *service) paginate(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Page, pageSize int) (core.Paginated[Project], error) {
	count, err := svc.repo.CountProjects(ctx, filter)
	if err != nil {
		return core.Paginated[Project]{}, errors.Wrap(err, "counting projects")
	}
	page = page.Clamp(count, pageSize)
	projects, err := svc.repo.QueryProjects(ctx, filter, ordering, page)
	if err != nil {
		return core.Paginated[Project]{}, errors.Wrap(err, "querying projects")
	}
	return core.NewPaginated(projects, count, page), nil
}

// Gallery lists approved projects, newest first.
func (svc *service) Gallery(ctx context.Context, search string, page core.Page) (core.Paginated[Project], error) {
	filter := QueryFilter{Search: search, Status: StatusApproved}
	filter.Clean()
	return svc.paginate(ctx, filter, newestFirst, page, GalleryPageSize)
}

func (svc *service) Get(ctx context.Context, id int64) (Project, error) {
	return svc.repo.GetProject(ctx, id)
}

// Query lists projects for administrators, newest first unless ordering says otherwise.
func (svc *service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Page) (core.Paginated[Project], error) {
	filter.Clean()
	ordering = core.CleanOrdering(ordering, QueryOrderings)
	if len(ordering) == 0 {
		ordering = newestFirst
	}
	return svc.paginate(ctx, filter, ordering, page, PageSize)
}

// PendingQueue lists projects awaiting review, oldest first.
func (svc *service) PendingQueue(ctx context.Context, search string, page core.Page) (core.Paginated[Project], error) {
	filter := QueryFilter{Search: search, Status: StatusPending}
	filter.Clean()
	return svc.paginate(ctx, filter, oldestFirst, page, PendingPageSize)
}

// AdminUpdate applies an administrator's edit. Setting the status keeps the review fields consistent:
// Approved stamps approved_at when missing and Rejected clears it.
func (svc *service) AdminUpdate(ctx context.Context, actor user.User, id int64, up AdminUpdateProject) (Project, error) {
	if err := up.Validate(svc.validate); err != nil {
		return Project{}, err
	}

	var cat string
	if up.CategoryID != nil {
		c, err := svc.catSvc.Get(ctx, *up.CategoryID)
		if err != nil {
			if errors.Cause(err) == category.ErrNotFound {
				return Project{}, core.NewValidationError(err, core.FieldError{Field: "category_id", Error: err.Error()})
			}
			return Project{}, errors.Wrap(err, "getting category")
		}
		cat = c.Name
	}

	var p Project
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if p, err = svc.repo.GetProject(ctx, id, exec); err != nil {
			return err
		}

		setStr := func(dst *string, src *string) {
			if src != nil {
				*dst = *src
			}
		}
		setStr(&p.Title, up.Title)
		setStr(&p.Description, up.Description)
		setStr(&p.Category, up.Category)
		setStr(&p.GithubURL, up.GithubURL)
		setStr(&p.LiveDemo, up.LiveDemo)
		setStr(&p.VideoDemo, up.VideoDemo)
		setStr(&p.TechUsed, up.TechUsed)
		if cat != "" {
			p.Category = cat
		}
		if up.Views != nil {
			p.Views = *up.Views
		}
		if up.Likes != nil {
			p.Likes = *up.Likes
		}
		if up.Status != nil && *up.Status != p.Status {
			p.Status = *up.Status
			switch p.Status {
			case StatusApproved:
				if p.ApprovedAt == nil {
					now := time.Now().UTC()
					p.ApprovedAt = &now
				}
				p.ApprovedBy = actor.ID
			case StatusRejected:
				p.ApprovedAt = nil
				p.ApprovedBy = actor.ID
			default:
				// review fields only exist on reviewed projects
				p.ApprovedAt = nil
				p.ApprovedBy = ""
			}
		}

		if p, err = svc.repo.UpdateProject(ctx, p, exec); err != nil {
			return errors.Wrap(err, "updating project")
		}
		entry := audit.NewEntry(actor.Actor(), audit.ActionUpdate, p.Target(), fmt.Sprintf("Updated project ID %d", p.ID))
		if _, err = svc.auditSvc.Record(ctx, entry, exec); err != nil {
			return errors.Wrap(err, "recording audit entry")
		}
		return nil
	})
	if err != nil {
		return Project{}, err
	}
	return p, nil
}

func (svc *service) AdminDelete(ctx context.Context, actor user.User, id int64) error {
	var p Project
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if p, err = svc.repo.GetProject(ctx, id, exec); err != nil {
			return err
		}
		if err = svc.repo.DeleteProject(ctx, p.ID, exec); err != nil {
			return errors.Wrap(err, "deleting project")
		}
		entry := audit.NewEntry(
			actor.Actor(),
			audit.ActionDelete,
			p.Target(),
			fmt.Sprintf("Permanently deleted project submitted by %s", p.Owner.Username),
		)
		if _, err = svc.auditSvc.Record(ctx, entry, exec); err != nil {
			return errors.Wrap(err, "recording audit entry")
		}
		return nil
	})
	if err != nil {
		return err
	}
	svc.deleteScreenshot(ctx, p)
	return nil
}

func (svc *service) Stats(ctx context.Context) (Stats, error) {
	counts, err := svc.repo.CountProjectsByStatus(ctx)
	if err != nil {
		return Stats{}, errors.Wrap(err, "counting projects by status")
	}
	recent, err := svc.repo.QueryProjects(ctx, QueryFilter{}, newestFirst, core.Page{Number: 1, Size: RecentCount})
	if err != nil {
		return Stats{}, errors.Wrap(err, "querying recent projects")
	}
	if recent == nil {
		recent = []Project{}
	}

	var total int
	for _, n := range counts {
		total += n
	}
	return Stats{
		Total:    total,
		Pending:  counts[StatusPending],
		Approved: counts[StatusApproved],
		Rejected: counts[StatusRejected],
		Ongoing:  counts[StatusActive] + counts[StatusApproved],
		Chart:    [3]int{counts[StatusPending], counts[StatusApproved], counts[StatusRejected]},
		Recent:   recent,
	}, nil
}
