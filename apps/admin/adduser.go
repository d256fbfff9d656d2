package main

import (
	"context"
	"fmt"

	"github.com/trezcool/masomo-notifications/core/user"
)

// addUser registers a notification recipient & prints its ID.
func (cli *commandLine) addUser(name, email, uname, role string) error {
	nu := user.NewUser{
		Name:     name,
		Username: uname,
		Email:    email,
	}
	if role != "" {
		nu.Roles = []string{role}
	}
	usr, err := cli.usrSvc.Create(context.Background(), nu)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "user %q created: %s\n", usr.Name, usr.ID)
	return nil
}
