package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/ihub/core"
	"github.com/trezcool/ihub/core/project"
	"github.com/trezcool/ihub/core/user"
	"github.com/trezcool/ihub/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	migrateFunc      = database.Migrate  // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf       *core.Config
	validate   *validator.Validate
	db         *sqlx.DB // nil on the in-memory engine
	usrSvc     user.Service
	projectSvc project.Service
	mailSvc    core.EmailService
	out        io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  adduser -username USERNAME [-email EMAIL] [-staff] [-superuser] - create a user")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS...] - run database migrations (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  exportcsv [-o FILE] [-email EMAIL] - export every project as CSV")
}

// promptPassword reads a password from the terminal without echoing it.
func (cli *commandLine) promptPassword(prompt string) (string, error) {
	fmt.Fprint(cli.out, prompt)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username. The password will be prompted next.")
	addUserEmail := addUserCmd.String("email", "", "The user's email address.")
	addUserStaff := addUserCmd.Bool("staff", false, "Grant access to the admin panel.")
	addUserSuper := addUserCmd.Bool("superuser", false, "Grant every permission (implies -staff).")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	exportCmd := flag.NewFlagSet("exportcsv", flag.ExitOnError)
	exportOut := exportCmd.String("o", "", "Write the CSV to this file instead of stdout.")
	exportEmail := exportCmd.String("email", "", "Email the CSV to this address instead of writing it.")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		usr, err := cli.addUser(user.NewUser{
			Username:        *addUserUname,
			Email:           *addUserEmail,
			Password:        pwd,
			PasswordConfirm: pwd,
			IsStaff:         *addUserStaff,
			IsSuperuser:     *addUserSuper,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "User %q created.\n", usr.Username)
		return nil

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "exportcsv":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.exportCSV(*exportOut, *exportEmail)

	default:
		cli.printUsage()
		return errHelp
	}
}
