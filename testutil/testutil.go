// Package testutil wires the application services on top of the in-memory database for tests.
package testutil

import (
	"bytes"
	"context"
	"image/color"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ihub/core"
	"github.com/trezcool/ihub/core/audit"
	"github.com/trezcool/ihub/core/category"
	"github.com/trezcool/ihub/core/profile"
	"github.com/trezcool/ihub/core/project"
	"github.com/trezcool/ihub/core/user"
	emailsvc "github.com/trezcool/ihub/services/email"
	"github.com/trezcool/ihub/services/filestore"
	logsvc "github.com/trezcool/ihub/services/logger"
	dummydb "github.com/trezcool/ihub/storage/database/dummy"
)

// Password satisfies the password policy; every user created by CreateUser has it.
const Password = "Sup3r-Secret!"

// Env holds a fully wired set of services backed by a fresh in-memory database.
type Env struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator

	DB        *dummydb.DB
	Mail      *emailsvc.ConsoleService
	FileStore core.FileStore
	Mirror    *FakeMirror

	UserRepo     user.Repository
	ProfileRepo  profile.Repository
	ProjectRepo  project.Repository
	CategoryRepo category.Repository
	AuditRepo    audit.Repository

	UserSvc     user.Service
	ProfileSvc  profile.Service
	ProjectSvc  project.Service
	CategorySvc category.Service
	AuditSvc    audit.Service
}

func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func NewEnv(t *testing.T) *Env {
	t.Helper()

	conf := core.NewTestConfig()
	conf.Storage.LocalDir = t.TempDir()
	conf.Storage.PublicBaseURL = "/media"

	logger := logsvc.NewRollbarLogger(io.Discard, conf)
	validate := validator.New()
	translator := NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	profile.InitValidators(validate, translator)
	core.ParseEmailTemplates(logger)
	user.LoadCommonPasswords(logger)

	env := &Env{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		DB:         dummydb.Open(),
		Mail:       emailsvc.NewConsoleServiceMock(conf, logger),
		FileStore:  filestore.NewImageStore(filestore.NewLocalStore(conf.Storage.LocalDir, conf.Storage.PublicBaseURL), conf.Storage.ImageMaxWidth),
		Mirror:     new(FakeMirror),
	}
	env.UserRepo = dummydb.NewUserRepository(env.DB)
	env.ProfileRepo = dummydb.NewProfileRepository(env.DB)
	env.ProjectRepo = dummydb.NewProjectRepository(env.DB)
	env.CategoryRepo = dummydb.NewCategoryRepository(env.DB)
	env.AuditRepo = dummydb.NewAuditRepository(env.DB)

	env.AuditSvc = audit.NewService(env.AuditRepo)
	env.UserSvc = user.NewService(env.DB, env.UserRepo, env.AuditSvc, env.Mail, conf)
	env.ProfileSvc = profile.NewService(env.ProfileRepo, env.Mirror, env.FileStore, validate, logger, conf)
	env.CategorySvc = category.NewService(env.DB, env.CategoryRepo, env.AuditSvc)
	env.ProjectSvc = project.NewService(project.Deps{
		Tx:          env.DB,
		Repo:        env.ProjectRepo,
		AuditSvc:    env.AuditSvc,
		CategorySvc: env.CategorySvc,
		MailSvc:     env.Mail,
		FileStore:   env.FileStore,
		Mirror:      env.Mirror,
		Validate:    validate,
		Logger:      logger,
		Conf:        conf,
	})
	return env
}

// UserOption customizes users made by CreateUser.
type UserOption func(usr *user.User)

func Staff(usr *user.User) { usr.IsStaff = true }

func Superuser(usr *user.User) {
	usr.IsStaff = true
	usr.IsSuperuser = true
}

func Inactive(usr *user.User) { usr.IsActive = false }

func Named(first, last string) UserOption {
	return func(usr *user.User) {
		usr.FirstName = first
		usr.LastName = last
	}
}

func CreatedAt(ts time.Time) UserOption {
	return func(usr *user.User) {
		usr.CreatedAt = ts.UTC()
		usr.UpdatedAt = ts.UTC()
	}
}

// CreateUser stores an active account with Password, bypassing validation.
func (env *Env) CreateUser(t *testing.T, username, email string, opts ...UserOption) user.User {
	t.Helper()

	now := time.Now().UTC()
	usr := user.User{
		Username:  username,
		Email:     email,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, opt := range opts {
		opt(&usr)
	}
	require.NoError(t, usr.SetPassword(Password))

	usr, err := env.UserRepo.CreateUser(context.Background(), usr)
	require.NoError(t, err, "creating user")
	return usr
}

// CreateProject stores a project as-is; zero timestamps default to now and an empty status to Pending.
func (env *Env) CreateProject(t *testing.T, owner user.User, p project.Project) project.Project {
	t.Helper()

	p.OwnerID = owner.ID
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Status == "" {
		p.Status = project.StatusPending
	}
	if p.Status == project.StatusApproved && p.ApprovedAt == nil {
		approvedAt := p.CreatedAt
		p.ApprovedAt = &approvedAt
	}
	if p.Description == "" {
		p.Description = p.Title + " description"
	}

	p, err := env.ProjectRepo.CreateProject(context.Background(), p)
	require.NoError(t, err, "creating project")
	return p
}

func (env *Env) CreateCategory(t *testing.T, name string) category.Category {
	t.Helper()

	c, err := env.CategoryRepo.CreateCategory(context.Background(), category.Category{Name: name})
	require.NoError(t, err, "creating category")
	return c
}

// AuditEntries returns every audit entry, newest first.
func (env *Env) AuditEntries(t *testing.T, filter audit.QueryFilter) []audit.Entry {
	t.Helper()

	entries, err := env.AuditRepo.QueryEntries(context.Background(), filter, core.Page{})
	require.NoError(t, err, "querying audit entries")
	return entries
}

func (env *Env) GetProject(t *testing.T, id int64) project.Project {
	t.Helper()

	p, err := env.ProjectRepo.GetProject(context.Background(), id)
	require.NoError(t, err, "getting project")
	return p
}

// PNG encodes a plain image of the given size.
func PNG(t *testing.T, width, height int) []byte {
	t.Helper()

	var buf bytes.Buffer
	img := imaging.New(width, height, color.NRGBA{R: 20, G: 90, B: 200, A: 255})
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

// FakeMirror records mirror calls. Set Err to make every call fail.
type FakeMirror struct {
	mu       sync.Mutex
	Err      error
	Profiles map[string]profile.RemoteProfile
	Projects []project.RemoteProject
}

var (
	_ profile.Mirror = (*FakeMirror)(nil)
	_ project.Mirror = (*FakeMirror)(nil)
)

func (m *FakeMirror) FetchRemoteProfile(_ context.Context, userID string) (*profile.RemoteProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if rp, ok := m.Profiles[userID]; ok {
		return &rp, nil
	}
	return nil, nil
}

func (m *FakeMirror) UpsertRemoteProfile(_ context.Context, userID string, rp profile.RemoteProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if m.Profiles == nil {
		m.Profiles = make(map[string]profile.RemoteProfile)
	}
	m.Profiles[userID] = rp
	return nil
}

func (m *FakeMirror) InsertRemoteProject(_ context.Context, rp project.RemoteProject) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.Projects = append(m.Projects, rp)
	return nil
}
