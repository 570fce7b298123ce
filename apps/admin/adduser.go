package main

import (
	"context"
	"fmt"

	"github.com/trezcool/conservatoire/core/user"
)

func (cli *commandLine) addUser(nu user.NewUser) error {
	usr, err := cli.usrSvc.Create(context.Background(), nu)
	if err != nil {
		return err
	}
	fmt.Printf("created %s %q (%s)\n", usr.Role, usr.Username, usr.ID)
	return nil
}
