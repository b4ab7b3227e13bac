package cog

import (
	"time"

	"github.com/olympus-go/cogs/store"
	"golang.org/x/exp/slices"
)

// Deps are the process wide services handed to every plugin constructor.
type Deps struct {
	Store  *store.Store
	Views  *Views
	Errors ErrorFormatter
	Owners []string
	Prefix string

	// Permissions resolves a member's permission bits in a channel for prefix commands. Interactions carry their own.
	Permissions func(userID string, channelID string) (int64, error)
	// Guilds lists the guilds the bot is currently in.
	Guilds      func() []string
	Now         func() time.Time
}

func (d *Deps) IsOwner(userID string) bool {
	return slices.Contains(d.Owners, userID)
}

func (d *Deps) Time() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Deps) errorFormatter() ErrorFormatter {
	if d.Errors == nil {
		return DefaultErrorFormatter{}
	}
	return d.Errors
}

func (d *Deps) GuildIDs() []string {
	if d.Guilds == nil {
		return nil
	}
	return d.Guilds()
}
