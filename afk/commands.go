package afk

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/olympus-go/cogs/cog"
	"github.com/olympus-go/cogs/convert"
	"github.com/olympus-go/cogs/store"
	"golang.org/x/exp/slices"
)

func (p *Plugin) command() *cog.Command {
	reasonOption := cog.Option{Name: "reason", Description: "Why you are away", Rest: true}

	return &cog.Command{
		Name:        "afk",
		Description: "Go AFK",
		Checks:      []cog.Check{cog.GuildOnly},
		Options:     []cog.Option{reasonOption},
		Run:         p.goAFK,
		Subcommands: []*cog.Command{
			{
				Name:        "on",
				Description: "Go AFK",
				Options:     []cog.Option{reasonOption},
				Run:         p.goAFK,
			},
			{
				Name:        "sticky",
				Description: "Stay AFK when you talk, until you run afk clear on yourself",
				Run:         p.toggle("Sticky AFK", func(d *memberDoc) *bool { return &d.Sticky }),
			},
			{
				Name:        "togglelogs",
				Description: "Keep a log of pings while AFK",
				Run:         p.toggle("Ping logs", func(d *memberDoc) *bool { return &d.ToggleLogs }),
			},
			{
				Name:        "clear",
				Description: "End the AFK status of a member",
				Options:     []cog.Option{{Name: "member", Description: "The member, defaults to you", Type: discordgo.ApplicationCommandOptionUser}},
				Run:         p.clear,
			},
			{
				Name:        "settings",
				Description: "Configure AFK",
				Checks:      []cog.Check{cog.Admin},
				Subcommands: []*cog.Command{
					{
						Name:        "nick",
						Description: "Prefix the nickname of AFK members",
						Options:     []cog.Option{{Name: "enabled", Description: "On or off", Type: discordgo.ApplicationCommandOptionBoolean, Required: true}},
						Run:         p.setNick,
					},
					{
						Name:        "ignore",
						Description: "Toggle whether a channel is ignored",
						Options:     []cog.Option{{Name: "channel", Description: "The channel", Type: discordgo.ApplicationCommandOptionChannel, Required: true}},
						Run:         p.setIgnore,
					},
					{
						Name:        "deleteafter",
						Description: "Delete AFK notices after this many seconds, 0 keeps them",
						Options:     []cog.Option{{Name: "seconds", Description: "Seconds", Type: discordgo.ApplicationCommandOptionInteger, Required: true}},
						Run:         p.setDeleteAfter,
					},
				},
			},
		},
	}
}

func (p *Plugin) goAFK(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	userID := inv.Author().ID

	guild, err := p.guild(ctx, inv.GuildID())
	if err != nil {
		return err
	}

	var reason *string
	if r := strings.TrimSpace(args.String("reason")); r != "" {
		r = truncate(r, p.config.MaxLogMessageLength)
		reason = &r
	}

	var nickChanged bool
	err = store.Update(ctx, p.deps.Store, p.memberKey(inv.GuildID(), userID), func(doc *memberDoc) error {
		now := p.deps.Time().Unix()
		doc.AFK = true
		doc.Reason = reason
		doc.Timestamp = &now
		nickChanged = doc.NickChanged
		return nil
	})
	if err != nil {
		return err
	}

	if guild.Nick && !nickChanged {
		p.prefixNick(ctx, inv.Session(), inv.GuildID(), userID)
	}

	content := fmt.Sprintf(p.config.Responses.NowAFK, "<@"+userID+">")
	if reason != nil {
		content += " Reason: " + *reason
	}

	_, err = inv.Reply(cog.Response{Content: content, AllowedMentions: &discordgo.MessageAllowedMentions{}})
	return err
}

func (p *Plugin) prefixNick(ctx context.Context, s cog.Session, guildID, userID string) {
	member, err := s.GuildMember(guildID, userID)
	if err != nil {
		p.logger.Debug("failed to fetch member for nickname", slog.String("user_id", userID), slog.String("error", err.Error()))
		return
	}

	original, name := member.Nick, displayName(member)
	if strings.HasPrefix(name, p.config.NickPrefix) {
		return
	}
	if !p.changeNick(s, guildID, userID, afkNick(p.config.NickPrefix, name)) {
		return
	}

	err = store.Update(ctx, p.deps.Store, p.memberKey(guildID, userID), func(doc *memberDoc) error {
		doc.OriginalNick = original
		doc.NickChanged = true
		return nil
	})
	if err != nil {
		p.logger.Error("failed to remember nickname", slog.String("user_id", userID), slog.String("error", err.Error()))
	}
}

func (p *Plugin) toggle(name string, field func(*memberDoc) *bool) func(context.Context, cog.Invocation, cog.Args) error {
	return func(ctx context.Context, inv cog.Invocation, _ cog.Args) error {
		var enabled bool
		err := store.Update(ctx, p.deps.Store, p.memberKey(inv.GuildID(), inv.Author().ID), func(doc *memberDoc) error {
			v := field(doc)
			*v = !*v
			enabled = *v
			return nil
		})
		if err != nil {
			return err
		}

		state := "disabled"
		if enabled {
			state = "enabled"
		}
		_, err = inv.Reply(cog.Response{Content: fmt.Sprintf("%s %s.", name, state), Ephemeral: true})
		return err
	}
}

func (p *Plugin) clear(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	userID := inv.Author().ID
	if args.Has("member") {
		id, err := convert.UserID(args.String("member"))
		if err != nil {
			return err
		}
		userID = id
	}
	if userID != inv.Author().ID {
		if err := cog.Admin(ctx, inv, p.deps); err != nil {
			return err
		}
	}

	var wasAFK bool
	var restore *string
	err := store.Update(ctx, p.deps.Store, p.memberKey(inv.GuildID(), userID), func(doc *memberDoc) error {
		wasAFK = doc.AFK
		doc.clear()
		if doc.NickChanged {
			nick := doc.OriginalNick
			restore = &nick
			doc.OriginalNick, doc.NickChanged = "", false
		}
		return nil
	})
	if err != nil {
		return err
	}
	if restore != nil {
		p.changeNick(inv.Session(), inv.GuildID(), userID, *restore)
	}

	if !wasAFK {
		return cog.InputError(p.config.Responses.NotAFK, "<@"+userID+">")
	}

	_, err = inv.Reply(cog.Response{
		Content:         fmt.Sprintf("Cleared the AFK status of <@%s>.", userID),
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	return err
}

func (p *Plugin) setNick(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	enabled, err := convert.Bool(args.String("enabled"))
	if err != nil {
		return err
	}

	err = p.updateGuild(ctx, inv.GuildID(), func(doc *guildDoc) error {
		doc.Nick = enabled
		return nil
	})
	if err != nil {
		return err
	}

	_, err = inv.Reply(cog.Response{Content: fmt.Sprintf("AFK nicknames are now %t.", enabled)})
	return err
}

func (p *Plugin) setIgnore(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	channelID, err := convert.ChannelID(args.String("channel"))
	if err != nil {
		return err
	}

	var ignored bool
	err = p.updateGuild(ctx, inv.GuildID(), func(doc *guildDoc) error {
		if idx := slices.Index(doc.IgnoredChannels, channelID); idx >= 0 {
			doc.IgnoredChannels = slices.Delete(doc.IgnoredChannels, idx, idx+1)
			return nil
		}
		doc.IgnoredChannels = append(doc.IgnoredChannels, channelID)
		ignored = true
		return nil
	})
	if err != nil {
		return err
	}

	content := fmt.Sprintf("<#%s> is no longer ignored.", channelID)
	if ignored {
		content = fmt.Sprintf("<#%s> is now ignored.", channelID)
	}
	_, err = inv.Reply(cog.Response{Content: content})
	return err
}

func (p *Plugin) setDeleteAfter(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	seconds, err := convert.Int(args.String("seconds"), 0, 3600)
	if err != nil {
		return err
	}

	err = p.updateGuild(ctx, inv.GuildID(), func(doc *guildDoc) error {
		doc.DeleteAfter = int(seconds)
		return nil
	})
	if err != nil {
		return err
	}

	content := "AFK notices are kept."
	if seconds > 0 {
		content = fmt.Sprintf("AFK notices are deleted after %d seconds.", seconds)
	}
	_, err = inv.Reply(cog.Response{Content: content})
	return err
}
