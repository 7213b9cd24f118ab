package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/ihub/core"
	"github.com/trezcool/ihub/core/audit"
	"github.com/trezcool/ihub/core/category"
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

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(os.Stderr, conf)

	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	core.ParseEmailTemplates(logger)
	user.LoadCommonPasswords(logger)

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	fileStore, err := filestore.New(context.Background(), conf)
	errAndDie(logger, err)

	cli := &commandLine{conf: conf, validate: validate, mailSvc: mailSvc, out: os.Stdout}

	// set up DB & services
	var (
		tx           core.Transactor
		usrRepo      user.Repository
		projectRepo  project.Repository
		categoryRepo category.Repository
		auditRepo    audit.Repository
	)
	if conf.Database.Engine == "dummy" {
		db := dummydb.Open()
		tx = db
		usrRepo = dummydb.NewUserRepository(db)
		projectRepo = dummydb.NewProjectRepository(db)
		categoryRepo = dummydb.NewCategoryRepository(db)
		auditRepo = dummydb.NewAuditRepository(db)
	} else {
		errAndDie(logger, database.CreateIfNotExist(conf))
		var db *sqlx.DB
		db, err = database.Open(conf)
		errAndDie(logger, err)
		defer db.Close()

		cli.db = db
		tx = database.NewTransactor(db)
		usrRepo = sqlxrepos.NewUserRepository(db)
		projectRepo = sqlxrepos.NewProjectRepository(db)
		categoryRepo = sqlxrepos.NewCategoryRepository(db)
		auditRepo = sqlxrepos.NewAuditRepository(db)
	}

	auditSvc := audit.NewService(auditRepo)
	deps := project.Deps{
		Tx:          tx,
		Repo:        projectRepo,
		AuditSvc:    auditSvc,
		CategorySvc: category.NewService(tx, categoryRepo, auditSvc),
		MailSvc:     mailSvc,
		FileStore:   fileStore,
		Validate:    validate,
		Logger:      logger,
		Conf:        conf,
	}
	if client := mirrorsvc.NewClient(conf); client != nil {
		deps.Mirror = client
	}
	cli.usrSvc = user.NewService(tx, usrRepo, auditSvc, mailSvc, conf)
	cli.projectSvc = project.NewService(deps)

	// start CLI
	if err = cli.run(os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
