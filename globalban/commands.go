package globalban

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/olympus-go/cogs/cog"
	"github.com/olympus-go/cogs/convert"
	"github.com/olympus-go/cogs/store"
)

// guildFailure is a guild where a ban or unban could not be applied.
type guildFailure struct {
	GuildID string
	Err     error
}

func (f guildFailure) String() string {
	switch {
	case cog.IsForbidden(f.Err):
		return fmt.Sprintf("`%s`: missing permissions", f.GuildID)
	case cog.IsNotFound(f.Err):
		return fmt.Sprintf("`%s`: not found", f.GuildID)
	default:
		return fmt.Sprintf("`%s`: %v", f.GuildID, f.Err)
	}
}

func (p *Plugin) command() *cog.Command {
	userOption := cog.Option{Name: "user", Description: "The user", Type: discordgo.ApplicationCommandOptionUser, Required: true}
	reasonOption := cog.Option{Name: "reason", Description: "Why", Rest: true}
	caseOption := cog.Option{Name: "case", Description: "Case number", Type: discordgo.ApplicationCommandOptionInteger, Required: true}

	return &cog.Command{
		Name:        "globalban",
		Aliases:     []string{"gban"},
		Description: "Ban users from every server",
		Checks:      []cog.Check{cog.OwnerOnly},
		Subcommands: []*cog.Command{
			{
				Name:        "ban",
				Description: "Ban a user everywhere",
				Options:     []cog.Option{userOption, reasonOption},
				Run:         p.apply(ActionBan),
			},
			{
				Name:        "unban",
				Description: "Lift a global ban",
				Options:     []cog.Option{userOption, reasonOption},
				Run:         p.apply(ActionUnban),
			},
			{
				Name:        "list",
				Description: "List globally banned users",
				Run:         p.list,
			},
			{
				Name:        "logs",
				Description: "Show the ban log or a single case",
				Options:     []cog.Option{{Name: "case", Description: "Case number", Type: discordgo.ApplicationCommandOptionInteger}},
				Run:         p.logs,
			},
			{
				Name:        "editreason",
				Description: "Change the reason of a case",
				Options:     []cog.Option{caseOption, {Name: "reason", Description: "New reason", Required: true, Rest: true}},
				Run:         p.editReason,
			},
		},
	}
}

func (p *Plugin) apply(action Action) func(context.Context, cog.Invocation, cog.Args) error {
	return func(ctx context.Context, inv cog.Invocation, args cog.Args) error {
		userID, err := convert.UserID(args.String("user"))
		if err != nil {
			return err
		}
		if action == ActionBan && (userID == inv.Author().ID || p.deps.IsOwner(userID)) {
			return cog.InputError("You can't globally ban yourself or a bot owner.")
		}

		reason := strings.TrimSpace(args.String("reason"))
		if reason == "" {
			reason = p.config.DefaultReason
		}

		doc, err := store.View[globalDoc](ctx, p.deps.Store, p.key())
		if err != nil {
			return err
		}
		if err = doc.check(action, userID); err != nil {
			return err
		}

		guilds := p.deps.GuildIDs()
		prompt := fmt.Sprintf("Are you sure you want to %s <@%s> in %d server(s)?\nReason: %s", action, userID, len(guilds), reason)
		outcome, err := p.deps.Views.Confirm(ctx, inv, prompt, p.config.confirmTimeout())
		if err != nil {
			return err
		}
		if outcome != cog.Confirmed {
			if outcome == cog.Declined {
				_, err = inv.Reply(cog.Response{Content: "Nothing was changed."})
			}
			return err
		}

		var entry BanLog
		err = store.Update(ctx, p.deps.Store, p.key(), func(doc *globalDoc) error {
			entry, err = doc.record(action, userID, inv.Author().ID, reason, p.deps.Time().Unix())
			return err
		})
		if err != nil {
			return err
		}

		done, failed := p.enforce(inv.Session(), action, userID, p.auditReason(reason, inv.Author().ID), guilds)

		p.logger.Info("global ban list changed",
			slog.String("action", string(action)),
			slog.String("user_id", userID),
			slog.Int("case", entry.Case),
			slog.Int("guilds", done),
			slog.Int("failed", len(failed)),
		)

		content := fmt.Sprintf("Case #%d: %s of <@%s> applied in %d/%d server(s).", entry.Case, action, userID, done, len(guilds))
		if len(failed) > 0 {
			lines := make([]string, 0, len(failed))
			for _, f := range failed {
				lines = append(lines, f.String())
			}
			content += "\nFailed in:\n" + strings.Join(lines, "\n")
		}

		_, err = inv.Reply(cog.Response{Content: content, AllowedMentions: &discordgo.MessageAllowedMentions{}})
		return err
	}
}

// enforce bans or unbans userID in every guild. A failing guild never stops the batch.
func (p *Plugin) enforce(s cog.Session, action Action, userID, reason string, guilds []string) (int, []guildFailure) {
	var done int
	var failed []guildFailure

	for _, guildID := range guilds {
		var err error
		switch action {
		case ActionBan:
			err = s.GuildBanCreateWithReason(guildID, userID, reason, 0)
		case ActionUnban:
			err = s.GuildBanDelete(guildID, userID)
			if cog.IsNotFound(err) {
				err = nil
			}
		}

		if err != nil {
			failed = append(failed, guildFailure{GuildID: guildID, Err: err})
			continue
		}
		done++
	}

	return done, failed
}

func (p *Plugin) list(ctx context.Context, inv cog.Invocation, _ cog.Args) error {
	doc, err := store.View[globalDoc](ctx, p.deps.Store, p.key())
	if err != nil {
		return err
	}
	if len(doc.BanList) == 0 {
		_, err = inv.Reply(cog.Response{Content: "Nobody is globally banned."})
		return err
	}

	ids := append([]string(nil), doc.BanList...)
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "<@%s> (`%s`)\n", id, id)
	}

	_, err = inv.Reply(cog.Response{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       fmt.Sprintf("Globally banned users (%d)", len(ids)),
			Description: b.String(),
			Color:       p.config.EmbedColor,
		}},
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	return err
}

func (p *Plugin) logs(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	doc, err := store.View[globalDoc](ctx, p.deps.Store, p.key())
	if err != nil {
		return err
	}

	if args.Has("case") {
		n, err := convert.Int(args.String("case"), 1, 1<<31-1)
		if err != nil {
			return err
		}
		l, ok := doc.log(int(n))
		if !ok {
			return cog.NotFoundError("There is no case #%d.", n)
		}
		_, err = inv.Reply(cog.Response{Embeds: []*discordgo.MessageEmbed{p.caseEmbed(l)}, AllowedMentions: &discordgo.MessageAllowedMentions{}})
		return err
	}

	if len(doc.BanLogs) == 0 {
		_, err = inv.Reply(cog.Response{Content: "The ban log is empty."})
		return err
	}

	logs := doc.BanLogs
	if n := p.config.LogsPerPage; n > 0 && len(logs) > n {
		logs = logs[len(logs)-n:]
	}

	var b strings.Builder
	for i := len(logs) - 1; i >= 0; i-- {
		l := logs[i]
		fmt.Fprintf(&b, "**#%d** %s <@%s> <t:%d:d>: %s\n", l.Case, l.Type, l.Offender, l.Timestamp, l.Reason)
	}

	_, err = inv.Reply(cog.Response{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       fmt.Sprintf("Global ban log (%d cases)", len(doc.BanLogs)),
			Description: b.String(),
			Color:       p.config.EmbedColor,
		}},
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	return err
}

func (p *Plugin) caseEmbed(l *BanLog) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Case #%d: %s", l.Case, l.Type),
		Color: p.config.EmbedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Offender", Value: fmt.Sprintf("<@%s> (`%s`)", l.Offender, l.Offender), Inline: true},
			{Name: "Authorizer", Value: "<@" + l.Authorizer + ">", Inline: true},
			{Name: "Date", Value: fmt.Sprintf("<t:%d:f>", l.Timestamp), Inline: true},
			{Name: "Reason", Value: l.Reason},
		},
	}

	if l.LastModified != nil {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Last modified",
			Value: fmt.Sprintf("<t:%d:f> by <@%s>", *l.LastModified, l.Amender),
		})
	}

	return embed
}

func (p *Plugin) editReason(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	n, err := convert.Int(args.String("case"), 1, 1<<31-1)
	if err != nil {
		return err
	}
	reason := strings.TrimSpace(args.String("reason"))
	if reason == "" {
		return cog.InputError("The new reason can't be empty.")
	}

	var l BanLog
	err = store.Update(ctx, p.deps.Store, p.key(), func(doc *globalDoc) error {
		var ok bool
		l, ok = doc.amend(int(n), reason, inv.Author().ID, p.deps.Time().Unix())
		if !ok {
			return cog.NotFoundError("There is no case #%d.", n)
		}
		return nil
	})
	if err != nil {
		return err
	}

	_, err = inv.Reply(cog.Response{Embeds: []*discordgo.MessageEmbed{p.caseEmbed(&l)}, AllowedMentions: &discordgo.MessageAllowedMentions{}})
	return err
}
