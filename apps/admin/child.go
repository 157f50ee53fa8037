package main

import (
	"context"

	"github.com/trezcool/kinderhub/core"
	"github.com/trezcool/kinderhub/core/child"
	"github.com/trezcool/kinderhub/core/user"
)

// addChild registers a child under the parent identified by username or email.
func (cli *commandLine) addChild(name, parent string) (child.Child, error) {
	ctx := context.Background()
	parent = core.CleanString(parent, true /* lower */)
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{parent}})
	if err != nil {
		return child.Child{}, err
	}

	nc := child.NewChild{Name: name, ParentID: usr.ID}
	if err := nc.Validate(cli.validate); err != nil {
		return child.Child{}, err
	}
	return cli.childSvc.Register(ctx, nc)
}

func (cli *commandLine) resetStatuses() (int, error) {
	return cli.childSvc.ResetStatuses(context.Background())
}
