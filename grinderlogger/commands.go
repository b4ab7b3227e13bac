package grinderlogger

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/olympus-go/cogs/cog"
	"github.com/olympus-go/cogs/convert"
	"github.com/olympus-go/cogs/store"
	"golang.org/x/exp/slices"
)

func (p *Plugin) command() *cog.Command {
	manager := cog.Any(cog.Admin, cog.HasAnyRole(p.managerRoles))
	memberOption := cog.Option{Name: "member", Description: "The grinder", Type: discordgo.ApplicationCommandOptionUser, Required: true}
	levelOption := cog.Option{Name: "level", Description: "Tier level", Type: discordgo.ApplicationCommandOptionInteger, Required: true}

	return &cog.Command{
		Name:        "grinder",
		Aliases:     []string{"grinders"},
		Description: "Track grinder payments",
		Checks:      []cog.Check{cog.GuildOnly},
		Subcommands: []*cog.Command{
			{
				Name:        "tier",
				Description: "Manage grinder tiers",
				Subcommands: []*cog.Command{
					{
						Name:        "set",
						Description: "Create or change a tier",
						Checks:      []cog.Check{cog.Admin},
						Options: []cog.Option{
							levelOption,
							{Name: "name", Description: "Tier name", Required: true},
							{Name: "amount", Description: "Amount owed per day", Required: true},
						},
						Run: p.tierSet,
					},
					{
						Name:        "remove",
						Description: "Delete an unused tier",
						Checks:      []cog.Check{cog.Admin},
						Options:     []cog.Option{levelOption},
						Run:         p.tierRemove,
					},
					{
						Name:        "list",
						Description: "List the tiers",
						Run:         p.tierList,
					},
				},
			},
			{
				Name:        "add",
				Description: "Make a member a grinder or move them to another tier",
				Checks:      []cog.Check{manager},
				Options:     []cog.Option{memberOption, levelOption},
				Run:         p.add,
			},
			{
				Name:        "remove",
				Description: "Stop tracking a grinder",
				Checks:      []cog.Check{manager},
				Options:     []cog.Option{memberOption},
				Run:         p.remove,
			},
			{
				Name:        "pay",
				Description: "Log a payment and push the due date",
				Checks:      []cog.Check{manager},
				Options:     []cog.Option{memberOption, {Name: "amount", Description: "Amount paid", Required: true}},
				Run:         p.pay,
			},
			{
				Name:        "check",
				Description: "Show a grinder's status",
				Options:     []cog.Option{{Name: "member", Description: "The grinder, defaults to you", Type: discordgo.ApplicationCommandOptionUser}},
				Run:         p.check,
			},
			{
				Name:        "list",
				Description: "List every grinder by due date",
				Checks:      []cog.Check{manager},
				Run:         p.list,
			},
			{
				Name:        "settings",
				Description: "Configure the grinder logger",
				Checks:      []cog.Check{cog.Admin},
				Subcommands: []*cog.Command{
					{
						Name:        "channel",
						Description: "Channel for overdue reports, or none",
						Options:     []cog.Option{{Name: "channel", Description: "The channel", Type: discordgo.ApplicationCommandOptionChannel, Required: true}},
						Run:         p.setChannel,
					},
					{
						Name:        "managers",
						Description: "Roles allowed to log payments, or none",
						Options:     []cog.Option{{Name: "roles", Description: "Manager roles", Required: true, Rest: true}},
						Run:         p.setManagers,
					},
				},
			},
		},
	}
}

func (p *Plugin) reply(inv cog.Invocation, content string) error {
	_, err := inv.Reply(cog.Response{Content: content, AllowedMentions: &discordgo.MessageAllowedMentions{}})
	return err
}

func (p *Plugin) level(args cog.Args) (int, error) {
	n, err := convert.Int(args.String("level"), 1, int64(max(p.config.MaxTier, 1)))
	return int(n), err
}

func isNone(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), "none")
}

func (p *Plugin) tierSet(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	level, err := p.level(args)
	if err != nil {
		return err
	}
	amount, err := convert.ParseAmount(args.String("amount"))
	if err != nil {
		return err
	}
	if amount == 0 {
		return cog.InputError("The daily amount must be positive.")
	}
	name := strings.TrimSpace(args.String("name"))

	err = store.Update(ctx, p.deps.Store, p.key(inv.GuildID()), func(doc *guildDoc) error {
		doc.Tiers[level] = Tier{Name: name, Amount: amount}
		return nil
	})
	if err != nil {
		return err
	}

	return p.reply(inv, fmt.Sprintf("Tier %d **%s** owes %s per day.", level, name, convert.FormatInt(amount)))
}

func (p *Plugin) tierRemove(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	level, err := p.level(args)
	if err != nil {
		return err
	}

	err = store.Update(ctx, p.deps.Store, p.key(inv.GuildID()), func(doc *guildDoc) error {
		if _, ok := doc.Tiers[level]; !ok {
			return cog.NotFoundError(p.config.Responses.NoTier, level)
		}
		for _, g := range doc.Grinders {
			if g.Tier == level {
				return cog.InputError("Tier %d still has grinders. Move them first.", level)
			}
		}
		delete(doc.Tiers, level)
		return nil
	})
	if err != nil {
		return err
	}

	return p.reply(inv, fmt.Sprintf("Removed tier %d.", level))
}

func (p *Plugin) tierList(ctx context.Context, inv cog.Invocation, _ cog.Args) error {
	doc, err := store.View[guildDoc](ctx, p.deps.Store, p.key(inv.GuildID()))
	if err != nil {
		return err
	}
	if len(doc.Tiers) == 0 {
		return p.reply(inv, "No tiers yet.")
	}

	var b strings.Builder
	for _, level := range doc.tierLevels() {
		t := doc.Tiers[level]
		fmt.Fprintf(&b, "**%d.** %s: %s per day\n", level, t.Name, convert.FormatInt(t.Amount))
	}

	_, err = inv.Reply(cog.Response{Embeds: []*discordgo.MessageEmbed{{
		Title:       "Grinder tiers",
		Description: b.String(),
		Color:       p.config.EmbedColor,
	}}})
	return err
}

func (p *Plugin) add(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	userID, err := convert.UserID(args.String("member"))
	if err != nil {
		return err
	}
	level, err := p.level(args)
	if err != nil {
		return err
	}

	now := p.deps.Time().Unix()
	var moved bool
	var tier Tier
	err = store.Update(ctx, p.deps.Store, p.key(inv.GuildID()), func(doc *guildDoc) error {
		var ok bool
		if tier, ok = doc.Tiers[level]; !ok {
			return cog.NotFoundError(p.config.Responses.NoTier, level)
		}
		if g, ok := doc.Grinders[userID]; ok {
			g.Tier = level
			moved = true
			return nil
		}
		doc.Grinders[userID] = &Grinder{
			Tier:  level,
			Due:   now + int64(p.config.grace().Seconds()),
			Since: now,
		}
		return nil
	})
	if err != nil {
		return err
	}

	if moved {
		return p.reply(inv, fmt.Sprintf("<@%s> is now a tier %d (**%s**) grinder.", userID, level, tier.Name))
	}
	return p.reply(inv, fmt.Sprintf("<@%s> joined the grinders at tier %d (**%s**).", userID, level, tier.Name))
}

func (p *Plugin) remove(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	userID, err := convert.UserID(args.String("member"))
	if err != nil {
		return err
	}

	err = store.Update(ctx, p.deps.Store, p.key(inv.GuildID()), func(doc *guildDoc) error {
		if _, ok := doc.Grinders[userID]; !ok {
			return cog.NotFoundError(p.config.Responses.NotGrinder, userID)
		}
		delete(doc.Grinders, userID)
		return nil
	})
	if err != nil {
		return err
	}

	return p.reply(inv, fmt.Sprintf("<@%s> is no longer a grinder.", userID))
}

func (p *Plugin) pay(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	userID, err := convert.UserID(args.String("member"))
	if err != nil {
		return err
	}
	amount, err := convert.ParseAmount(args.String("amount"))
	if err != nil {
		return err
	}
	if amount == 0 {
		return cog.InputError("The payment must be positive.")
	}

	now := p.deps.Time().Unix()
	var g Grinder
	err = store.Update(ctx, p.deps.Store, p.key(inv.GuildID()), func(doc *guildDoc) error {
		grinder, ok := doc.Grinders[userID]
		if !ok {
			return cog.NotFoundError(p.config.Responses.NotGrinder, userID)
		}
		tier, ok := doc.Tiers[grinder.Tier]
		if !ok {
			return cog.NotFoundError(p.config.Responses.NoTier, grinder.Tier)
		}
		if err := grinder.pay(amount, tier.Amount, p.config.MaxDays, now); err != nil {
			return err
		}
		g = *grinder
		return nil
	})
	if err != nil {
		return err
	}

	return p.reply(inv, fmt.Sprintf("Logged %s from <@%s>. Next payment due <t:%d:R>.", convert.FormatInt(amount), userID, g.Due))
}

func (p *Plugin) check(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	userID := inv.Author().ID
	if args.Has("member") {
		id, err := convert.UserID(args.String("member"))
		if err != nil {
			return err
		}
		userID = id
	}

	doc, err := store.View[guildDoc](ctx, p.deps.Store, p.key(inv.GuildID()))
	if err != nil {
		return err
	}
	g, ok := doc.Grinders[userID]
	if !ok {
		return cog.NotFoundError(p.config.Responses.NotGrinder, userID)
	}

	status := fmt.Sprintf("Due <t:%d:R>", g.Due)
	if g.overdue(p.deps.Time().Unix()) {
		status = fmt.Sprintf("**Overdue** since <t:%d:R>", g.Due)
	}

	tierName := doc.Tiers[g.Tier].Name
	_, err = inv.Reply(cog.Response{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Grinder status",
			Description: fmt.Sprintf("<@%s>\n%s", userID, status),
			Color:       p.config.EmbedColor,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Tier", Value: fmt.Sprintf("%d (%s)", g.Tier, tierName), Inline: true},
				{Name: "Donated", Value: convert.FormatInt(g.Donated), Inline: true},
				{Name: "Payments", Value: fmt.Sprint(g.Times), Inline: true},
				{Name: "Grinding since", Value: fmt.Sprintf("<t:%d:D>", g.Since), Inline: true},
			},
		}},
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	return err
}

func (p *Plugin) list(ctx context.Context, inv cog.Invocation, _ cog.Args) error {
	doc, err := store.View[guildDoc](ctx, p.deps.Store, p.key(inv.GuildID()))
	if err != nil {
		return err
	}
	if len(doc.Grinders) == 0 {
		return p.reply(inv, "There are no grinders yet.")
	}

	ids := make([]string, 0, len(doc.Grinders))
	for id := range doc.Grinders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return doc.Grinders[ids[i]].Due < doc.Grinders[ids[j]].Due
	})

	now := p.deps.Time().Unix()
	var b strings.Builder
	for _, id := range ids {
		g := doc.Grinders[id]
		marker := ""
		if g.overdue(now) {
			marker = " **overdue**"
		}
		fmt.Fprintf(&b, "<@%s> tier %d, due <t:%d:R>%s\n", id, g.Tier, g.Due, marker)
	}

	_, err = inv.Reply(cog.Response{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       fmt.Sprintf("Grinders (%d)", len(ids)),
			Description: b.String(),
			Color:       p.config.EmbedColor,
		}},
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	return err
}

func (p *Plugin) setChannel(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	var channelID string
	if !isNone(args.String("channel")) {
		id, err := convert.ChannelID(args.String("channel"))
		if err != nil {
			return err
		}
		channelID = id
	}

	err := store.Update(ctx, p.deps.Store, p.key(inv.GuildID()), func(doc *guildDoc) error {
		doc.Channel = channelID
		return nil
	})
	if err != nil {
		return err
	}

	if channelID == "" {
		return p.reply(inv, "Overdue reports are disabled.")
	}
	return p.reply(inv, fmt.Sprintf("Overdue reports go to <#%s>.", channelID))
}

func (p *Plugin) setManagers(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	var roles []string
	if !isNone(args.String("roles")) {
		for _, token := range strings.Fields(args.String("roles")) {
			id, err := convert.RoleID(token)
			if err != nil {
				return err
			}
			if !slices.Contains(roles, id) {
				roles = append(roles, id)
			}
		}
	}

	err := store.Update(ctx, p.deps.Store, p.key(inv.GuildID()), func(doc *guildDoc) error {
		doc.ManagerRoles = roles
		return nil
	})
	if err != nil {
		return err
	}

	if len(roles) == 0 {
		return p.reply(inv, "Only admins can log grinder payments now.")
	}

	mentions := make([]string, 0, len(roles))
	for _, r := range roles {
		mentions = append(mentions, "<@&"+r+">")
	}
	return p.reply(inv, "Grinder managers: "+strings.Join(mentions, ", ")+".")
}
