package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/ihub/apps/api/echo"
	"github.com/trezcool/ihub/core"
	"github.com/trezcool/ihub/core/audit"
	"github.com/trezcool/ihub/core/category"
	"github.com/trezcool/ihub/core/profile"
	"github.com/trezcool/ihub/core/project"
	"github.com/trezcool/ihub/core/user"
	emailsvc "github.com/trezcool/ihub/services/email"
	"github.com/trezcool/ihub/services/filestore"
	logsvc "github.com/trezcool/ihub/services/logger"
	mirrorsvc "github.com/trezcool/ihub/services/mirror"
	"github.com/trezcool/ihub/storage/database"
	dummydb "github.com/trezcool/ihub/storage/database/dummy"
	sqlxrepos "github.com/trezcool/ihub/storage/database/sqlx"
)

// EngineDummy selects the in-memory database; nothing survives a restart.
const EngineDummy = "dummy"

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Storage is every repository along with the transactor they share.
type Storage struct {
	dig.Out

	Close        DBCloser
	Tx           core.Transactor
	UserRepo     user.Repository
	ProfileRepo  profile.Repository
	ProjectRepo  project.Repository
	CategoryRepo category.Repository
	AuditRepo    audit.Repository
}

// DBCloser releases the database connections.
type DBCloser func() error

func newLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(os.Stdout, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(os.Stderr, conf)
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) Storage {
	if conf.Database.Engine == EngineDummy {
		db := dummydb.Open()
		return Storage{
			Close:        func() error { return nil },
			Tx:           db,
			UserRepo:     dummydb.NewUserRepository(db),
			ProfileRepo:  dummydb.NewProfileRepository(db),
			ProjectRepo:  dummydb.NewProjectRepository(db),
			CategoryRepo: dummydb.NewCategoryRepository(db),
			AuditRepo:    dummydb.NewAuditRepository(db),
		}
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	if err = database.Migrate(db, "up"); err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
	}

	return Storage{
		Close:        db.Close,
		Tx:           database.NewTransactor(db),
		UserRepo:     sqlxrepos.NewUserRepository(db),
		ProfileRepo:  sqlxrepos.NewProfileRepository(db),
		ProjectRepo:  sqlxrepos.NewProjectRepository(db),
		CategoryRepo: sqlxrepos.NewCategoryRepository(db),
		AuditRepo:    sqlxrepos.NewAuditRepository(db),
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

type Mirrors struct {
	dig.Out

	Profiles profile.Mirror
	Projects project.Mirror
}

// newMirrors leaves both mirrors nil when replication is disabled.
func newMirrors(conf *core.Config) Mirrors {
	client := mirrorsvc.NewClient(conf)
	if client == nil {
		return Mirrors{}
	}
	return Mirrors{Profiles: client, Projects: client}
}

func newFileStore(conf *core.Config) (core.FileStore, error) {
	return filestore.New(context.Background(), conf)
}

func newValidator() *validator.Validate {
	return validator.New()
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

type projectParams struct {
	dig.In

	Tx          core.Transactor
	Repo        project.Repository
	AuditSvc    audit.Service
	CategorySvc category.Service
	MailSvc     core.EmailService
	FileStore   core.FileStore
	Mirror      project.Mirror
	Validate    *validator.Validate
	Logger      core.Logger
	Conf        *core.Config
}

func newProjectService(p projectParams) project.Service {
	return project.NewService(project.Deps{
		Tx:          p.Tx,
		Repo:        p.Repo,
		AuditSvc:    p.AuditSvc,
		CategorySvc: p.CategorySvc,
		MailSvc:     p.MailSvc,
		FileStore:   p.FileStore,
		Mirror:      p.Mirror,
		Validate:    p.Validate,
		Logger:      p.Logger,
		Conf:        p.Conf,
	})
}

type serverParams struct {
	dig.In

	Conf        *core.Config
	Logger      core.Logger
	Validate    *validator.Validate
	Translator  ut.Translator
	UserSvc     user.Service
	ProfileSvc  profile.Service
	ProjectSvc  project.Service
	CategorySvc category.Service
	AuditSvc    audit.Service
}

func newServer(p serverParams) echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		Conf:        p.Conf,
		Logger:      p.Logger,
		Validate:    p.Validate,
		Translator:  p.Translator,
		UserSvc:     p.UserSvc,
		ProfileSvc:  p.ProfileSvc,
		ProjectSvc:  p.ProjectSvc,
		CategorySvc: p.CategorySvc,
		AuditSvc:    p.AuditSvc,
	})
}

// New returns a new dependency injection dig.Container
func New(newConfig func() *core.Config) *dig.Container {
	c := dig.New()

	must(c.Provide(newConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(newEmailService))
	must(c.Provide(newMirrors))
	must(c.Provide(newFileStore))
	must(c.Provide(newValidator))
	must(c.Provide(newTranslator))
	must(c.Provide(audit.NewService))
	must(c.Provide(category.NewService))
	must(c.Provide(user.NewService))
	must(c.Provide(profile.NewService))
	must(c.Provide(newProjectService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
