package main

import (
	"context"

	"github.com/trezcool/ihub/core/user"
)

// addUser validates and creates a user. Superusers are always staff.
func (cli *commandLine) addUser(nu user.NewUser) (user.User, error) {
	ctx := context.Background()
	if err := nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
		return user.User{}, err
	}
	return cli.usrSvc.Create(ctx, nu)
}
