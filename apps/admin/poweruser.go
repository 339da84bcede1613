package main

import (
	"context"
	"time"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/user"
)

// createPowerUser creates a power user, or grants the role to the user owning the email.
func (cli *commandLine) createPowerUser(name, email, pwd string) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	if err != nil && err != user.ErrNotFound {
		return err
	}
	exists := err == nil

	now := time.Now().UTC()
	if !exists {
		usr = user.User{Email: email, CreatedAt: now}
	}
	usr.Name = core.CleanString(name)
	usr.Roles = user.PowerUserRoles
	usr.SchoolID = ""
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	if exists {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	}
	return err
}
