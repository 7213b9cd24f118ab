package main

import "github.com/pkg/errors"

var errNoSQLDatabase = errors.New("migrations need a SQL database")

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoSQLDatabase
	}
	return migrateFunc(cli.db, args[0], args[1:]...)
}
