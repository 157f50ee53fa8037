package main

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/kinderhub/core"
	"github.com/trezcool/kinderhub/core/user"
)

const (
	roleAdmin  = "admin"
	roleStaff  = "staff"
	roleParent = "parent"
)

var cliRoles = map[string][]string{
	roleAdmin:  {user.RoleAdminOwner},
	roleStaff:  {user.RoleStaff},
	roleParent: {user.RoleParent},
}

type newUserArgs struct {
	uname, email, name, phone, role, pwd string
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(args newUserArgs) error {
	roles, ok := cliRoles[args.role]
	if !ok {
		return fmt.Errorf("unknown role %q", args.role)
	}

	ctx := context.Background()
	uname := core.CleanString(args.uname, true /* lower */)
	email := core.CleanString(args.email, true /* lower */)
	now := time.Now().UTC()

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{uname, email}})
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		usr = user.User{
			Username:  uname,
			Email:     email,
			CreatedAt: now,
		}
	}
	if name := core.CleanString(args.name); name != "" {
		usr.Name = name
	}
	if phone := core.CleanString(args.phone); phone != "" {
		usr.Phone = phone
	}
	usr.Roles = roles
	usr.UpdatedAt = now
	usr.SetActive(true)
	if err := usr.SetPassword(args.pwd); err != nil {
		return err
	}
	if _, err := cli.usrRepo.UpdateOrCreateUser(ctx, usr); err != nil {
		return err
	}
	return nil
}
