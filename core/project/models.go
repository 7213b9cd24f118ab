package project

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/ihub/core"
	"github.com/trezcool/ihub/core/audit"
	"github.com/trezcool/ihub/core/category"
)

type Status string

const (
	StatusPending   Status = "Pending"
	StatusActive    Status = "Active"
	StatusCompleted Status = "Completed"
	StatusApproved  Status = "Approved"
	StatusRejected  Status = "Rejected"
)

var Statuses = []Status{StatusPending, StatusActive, StatusCompleted, StatusApproved, StatusRejected}

func (s Status) IsValid() bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

// ParseStatus matches s case-insensitively against the known statuses.
func ParseStatus(s string) (Status, bool) {
	s = core.CleanString(s)
	for _, st := range Statuses {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	return "", false
}

// Owner is the submitting student, as joined from their account.
type Owner struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (o Owner) FullName() string {
	return strings.TrimSpace(o.FirstName + " " + o.LastName)
}

// DisplayName is the full name, falling back to the username.
func (o Owner) DisplayName() string {
	if name := o.FullName(); name != "" {
		return name
	}
	return o.Username
}

// ShortName is how the owner is greeted in emails.
func (o Owner) ShortName() string {
	if o.FirstName != "" {
		return o.FirstName
	}
	return o.Username
}

type Project struct {
	ID          int64      `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Owner       Owner      `json:"owner"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	GithubURL   string     `json:"github_url"`
	LiveDemo    string     `json:"live_demo"`
	VideoDemo   string     `json:"video_demo"`
	TechUsed    string     `json:"tech_used"`
	Screenshot  string     `json:"screenshot"`
	Views       int        `json:"views"`
	Likes       int        `json:"likes"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`  // UTC
	ApprovedAt  *time.Time `json:"approved_at"` // UTC
	ApprovedBy  string     `json:"approved_by"` // reviewing admin ID, kept on rejection
}

// TechTokens splits TechUsed into its individual technologies.
func (p Project) TechTokens() []string {
	return core.SplitTokens(p.TechUsed)
}

func (p Project) Target() string {
	return audit.Target("Project", p.Title)
}

// NewProject is the submission form. Owners also use it to edit their projects.
type NewProject struct {
	Title         string `json:"title" validate:"required,max=200"`
	Description   string `json:"description" validate:"required"`
	Category      string `json:"category" validate:"required,max=100"`
	OtherCategory string `json:"other_category" validate:"omitempty,max=100"`
	GithubURL     string `json:"github_url" validate:"required,httpurl,max=200"`
	LiveDemo      string `json:"live_demo" validate:"omitempty,httpurl,max=200"`
	VideoDemo     string `json:"video_demo" validate:"omitempty,httpurl,max=200"`
	TechUsed      string `json:"tech_used" validate:"required,max=200"`
}

func (np *NewProject) Validate(validate *validator.Validate) error {
	np.Title = core.CleanString(np.Title)
	np.Description = core.CleanString(np.Description)
	np.Category = core.CleanString(np.Category)
	np.OtherCategory = core.CleanString(np.OtherCategory)
	np.GithubURL = core.CleanString(np.GithubURL)
	np.LiveDemo = core.CleanString(np.LiveDemo)
	np.VideoDemo = core.CleanString(np.VideoDemo)
	np.TechUsed = core.CleanString(np.TechUsed)

	if err := validate.Struct(np); err != nil {
		return err
	}
	cat, err := category.Resolve(np.Category, np.OtherCategory)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "other_category", Error: err.Error()})
	}
	np.Category = cat
	return nil
}

// AdminUpdateProject is the administrator's edit form. nil fields are left untouched.
// CategoryID selects a registry category and takes precedence over Category.
type AdminUpdateProject struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description"`
	Category    *string `json:"category" validate:"omitempty,max=100"`
	CategoryID  *int64  `json:"category_id"`
	GithubURL   *string `json:"github_url" validate:"omitempty,httpurl,max=200"`
	LiveDemo    *string `json:"live_demo" validate:"omitempty,max=200"`
	VideoDemo   *string `json:"video_demo" validate:"omitempty,max=200"`
	TechUsed    *string `json:"tech_used" validate:"omitempty,max=200"`
	Status      *Status `json:"status"`
	Views       *int    `json:"views" validate:"omitempty,min=0"`
	Likes       *int    `json:"likes" validate:"omitempty,min=0"`
}

var errInvalidStatus = errors.New("invalid status")

func (up *AdminUpdateProject) Validate(validate *validator.Validate) error {
	for _, s := range []*string{up.Title, up.Description, up.Category, up.GithubURL, up.LiveDemo, up.VideoDemo, up.TechUsed} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	if err := validate.Struct(up); err != nil {
		return err
	}
	for fld, s := range map[string]*string{"live_demo": up.LiveDemo, "video_demo": up.VideoDemo} {
		if s != nil && *s != "" {
			if err := validate.Var(*s, "httpurl"); err != nil {
				return core.NewValidationError(err, core.FieldError{Field: fld, Error: "enter a valid URL starting with http:// or https://"})
			}
		}
	}
	if up.Status != nil {
		st, ok := ParseStatus(string(*up.Status))
		if !ok {
			return core.NewValidationError(errInvalidStatus, core.FieldError{Field: "status", Error: errInvalidStatus.Error()})
		}
		up.Status = &st
	}
	return nil
}

type QueryFilter struct {
	Search  string `query:"q"` // title, description or owner username
	Status  Status `query:"status"`
	OwnerID string `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	if st, ok := ParseStatus(string(qf.Status)); ok {
		qf.Status = st
	} else {
		qf.Status = ""
	}
	qf.OwnerID = core.CleanString(qf.OwnerID)
}

// Stats is the dashboard summary.
type Stats struct {
	Total    int       `json:"total"`
	Pending  int       `json:"pending"`
	Approved int       `json:"approved"`
	Rejected int       `json:"rejected"`
	Ongoing  int       `json:"ongoing"` // Active or Approved
	Chart    [3]int    `json:"chart"`   // pending, approved, rejected
	Recent   []Project `json:"recent"`
}

// RemoteProject is the project row replicated to the external mirror.
type RemoteProject struct {
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	TechUsed    string    `json:"tech_used"`
	GithubURL   string    `json:"github_url"`
	LiveDemo    string    `json:"live_demo"`
	Category    string    `json:"category"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func (p Project) Remote() RemoteProject {
	return RemoteProject{
		UserID:      p.OwnerID,
		Title:       p.Title,
		Description: p.Description,
		TechUsed:    p.TechUsed,
		GithubURL:   p.GithubURL,
		LiveDemo:    p.LiveDemo,
		Category:    p.Category,
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt,
	}
}
