package cog

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/exp/slices"
)

// Check gates a command. A failing check returns a user facing error and the command does not run.
type Check func(ctx context.Context, inv Invocation, d *Deps) error

const adminPermissions = discordgo.PermissionAdministrator | discordgo.PermissionManageServer

func GuildOnly(_ context.Context, inv Invocation, _ *Deps) error {
	if inv.GuildID() == "" {
		return PermissionError("This command can only be used in a server.")
	}
	return nil
}

func OwnerOnly(_ context.Context, inv Invocation, d *Deps) error {
	if !d.IsOwner(inv.Author().ID) {
		return PermissionError("Only the bot owner can use this command.")
	}
	return nil
}

// Admin passes for members with Administrator or Manage Server, and for bot owners.
func Admin(_ context.Context, inv Invocation, d *Deps) error {
	if d.IsOwner(inv.Author().ID) || inv.Permissions()&adminPermissions != 0 {
		return nil
	}
	return PermissionError("You need the Manage Server permission to use this command.")
}

// HasAnyRole passes when the member holds at least one of the roles returned by roles for the invocation guild.
func HasAnyRole(roles func(ctx context.Context, guildID string) ([]string, error)) Check {
	return func(ctx context.Context, inv Invocation, d *Deps) error {
		member := inv.Member()
		if member == nil {
			return PermissionError("This command can only be used in a server.")
		}

		allowed, err := roles(ctx, inv.GuildID())
		if err != nil {
			return err
		}

		for _, roleID := range member.Roles {
			if slices.Contains(allowed, roleID) {
				return nil
			}
		}

		return PermissionError("You don't have any of the roles required to use this command.")
	}
}

// Any passes when at least one of checks passes. The last failure is returned otherwise.
func Any(checks ...Check) Check {
	return func(ctx context.Context, inv Invocation, d *Deps) error {
		var err error
		for _, check := range checks {
			if err = check(ctx, inv, d); err == nil {
				return nil
			}
		}
		return err
	}
}
