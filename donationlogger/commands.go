package donationlogger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/olympus-go/cogs/cog"
	"github.com/olympus-go/cogs/convert"
	"github.com/olympus-go/cogs/store"
	"golang.org/x/exp/slices"
)

type ledgerOp int

const (
	opAdd ledgerOp = iota
	opRemove
	opSet
)

func (op ledgerOp) title() string {
	switch op {
	case opAdd:
		return "Donation added"
	case opRemove:
		return "Donation removed"
	default:
		return "Donation set"
	}
}

var (
	bankOption   = cog.Option{Name: "bank", Description: "Name of the bank", Required: true}
	amountOption = cog.Option{Name: "amount", Description: "Amount, e.g. 10k, 1.5m or 2500000", Required: true}
)

func (p *Plugin) command() *cog.Command {
	manager := cog.Any(cog.Admin, cog.HasAnyRole(p.managerRoles))

	var aliases []string
	if p.config.Alias != "" {
		aliases = append(aliases, p.config.Alias)
	}

	memberOption := func(required bool) cog.Option {
		return cog.Option{Name: "member", Description: "The member", Type: discordgo.ApplicationCommandOptionUser, Required: required}
	}

	return &cog.Command{
		Name:        "donationlogger",
		Aliases:     aliases,
		Description: "Log and inspect donations",
		Checks:      []cog.Check{cog.GuildOnly},
		Subcommands: []*cog.Command{
			{
				Name:        "bank",
				Description: "Manage donation banks",
				Subcommands: []*cog.Command{
					{
						Name:        "create",
						Description: "Create a bank",
						Checks:      []cog.Check{cog.Admin},
						Options: []cog.Option{
							{Name: "name", Description: "Up to 20 characters, no spaces", Required: true},
							{Name: "emoji", Description: "Currency emoji of the bank", Required: true},
							{Name: "hidden", Description: "Hide the bank from members", Type: discordgo.ApplicationCommandOptionBoolean},
						},
						Run: p.bankCreate,
					},
					{
						Name:        "delete",
						Description: "Delete a bank and all of its donations",
						Checks:      []cog.Check{cog.Admin},
						Options:     []cog.Option{bankOption},
						Run:         p.bankDelete,
					},
					{
						Name:        "hide",
						Description: "Hide a bank from members",
						Checks:      []cog.Check{cog.Admin},
						Options:     []cog.Option{bankOption},
						Run:         p.bankHidden(true),
					},
					{
						Name:        "unhide",
						Description: "Show a hidden bank to members",
						Checks:      []cog.Check{cog.Admin},
						Options:     []cog.Option{bankOption},
						Run:         p.bankHidden(false),
					},
					{
						Name:        "list",
						Description: "List the banks of this server",
						Run:         p.bankList,
					},
				},
			},
			{
				Name:        "role",
				Description: "Manage donation roles",
				Checks:      []cog.Check{cog.Admin},
				Subcommands: []*cog.Command{
					{
						Name:        "add",
						Description: "Grant roles once a balance reaches an amount",
						Options: []cog.Option{
							bankOption,
							amountOption,
							{Name: "roles", Description: "Roles to grant", Required: true, Rest: true},
						},
						Run: p.roleAdd,
					},
					{
						Name:        "remove",
						Description: "Remove the roles of a threshold",
						Options:     []cog.Option{bankOption, amountOption},
						Run:         p.roleRemove,
					},
					{
						Name:        "list",
						Description: "List the role thresholds of a bank",
						Options:     []cog.Option{bankOption},
						Run:         p.roleList,
					},
				},
			},
			{
				Name:        "add",
				Description: "Add to a member's donations",
				Checks:      []cog.Check{manager},
				Options:     []cog.Option{bankOption, amountOption, memberOption(true)},
				Run:         p.ledger(opAdd),
			},
			{
				Name:        "remove",
				Description: "Remove from a member's donations",
				Checks:      []cog.Check{manager},
				Options:     []cog.Option{bankOption, amountOption, memberOption(true)},
				Run:         p.ledger(opRemove),
			},
			{
				Name:        "set",
				Description: "Overwrite a member's donations",
				Checks:      []cog.Check{manager},
				Options:     []cog.Option{bankOption, amountOption, memberOption(true)},
				Run:         p.ledger(opSet),
			},
			{
				Name:        "check",
				Description: "Show a member's donations",
				Options:     []cog.Option{memberOption(false)},
				Run:         p.check,
			},
			{
				Name:        "leaderboard",
				Aliases:     []string{"lb"},
				Description: "Show the top donators of a bank",
				Options: []cog.Option{
					bankOption,
					{Name: "top", Description: "How many donators to show", Type: discordgo.ApplicationCommandOptionInteger},
				},
				Run: p.leaderboard,
			},
			{
				Name:        "reset",
				Description: "Reset the donations of a bank or of one member",
				Checks:      []cog.Check{cog.Admin},
				Options:     []cog.Option{bankOption, memberOption(false)},
				Run:         p.reset,
			},
			{
				Name:        "settings",
				Description: "Configure the donation logger",
				Checks:      []cog.Check{cog.Admin},
				Subcommands: []*cog.Command{
					{
						Name:        "logchannel",
						Description: "Channel that receives a log of every change, or none",
						Options:     []cog.Option{{Name: "channel", Description: "The log channel", Required: true}},
						Run:         p.setLogChannel,
					},
					{
						Name:        "managers",
						Description: "Roles allowed to log donations, or none",
						Options:     []cog.Option{{Name: "roles", Description: "Manager roles", Required: true, Rest: true}},
						Run:         p.setManagers,
					},
				},
			},
		},
	}
}

func (p *Plugin) key(guildID string) store.Key {
	return store.GuildKey(pluginName, guildID)
}

func (p *Plugin) embed(title string, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       p.config.EmbedColor,
	}
}

func (p *Plugin) reply(inv cog.Invocation, content string) error {
	_, err := inv.Reply(cog.Response{Content: content})
	return err
}

func money(emoji string, amount int64) string {
	return emoji + " " + convert.FormatInt(amount)
}

func (p *Plugin) bankCreate(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	name := args.String("name")
	if !bankNameRegex.MatchString(name) {
		return cog.InputError("Bank names must be 1 to 20 characters long and contain no spaces.")
	}

	emoji, err := convert.Emoji(args.String("emoji"))
	if err != nil {
		return err
	}

	hidden := false
	if args.Has("hidden") {
		if hidden, err = convert.Bool(args.String("hidden")); err != nil {
			return err
		}
	}

	err = store.Update(ctx, p.deps.Store, p.key(inv.GuildID()), func(doc *guildDoc) error {
		if _, ok := doc.bank(name); ok {
			return cog.InputError("A bank called `%s` already exists.", name)
		}
		if p.config.MaxBanks > 0 && len(doc.Banks) >= p.config.MaxBanks {
			return cog.InputError("This server already has %d banks.", len(doc.Banks))
		}

		b := &Bank{Name: name, Hidden: hidden, Emoji: emoji}
		b.init()
		if doc.Banks == nil {
			doc.Banks = make(map[string]*Bank)
		}
		doc.Banks[bankKey(name)] = b
		return nil
	})
	if err != nil {
		return err
	}

	return p.reply(inv, fmt.Sprintf("Created bank %s **%s**.", emoji, name))
}

func (p *Plugin) bankDelete(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	name := args.String("bank")

	doc, err := store.View[guildDoc](ctx, p.deps.Store, p.key(inv.GuildID()))
	if err != nil {
		return err
	}
	if _, ok := doc.bank(name); !ok {
		return cog.NotFoundError(p.config.Responses.BankNotFound, name)
	}

	prompt := fmt.Sprintf("Delete the bank **%s** and every donation logged in it?", name)
	outcome, err := p.deps.Views.Confirm(ctx, inv, prompt, p.confirmTimeout())
	if err != nil {
		return err
	}
	if outcome != cog.Confirmed {
		if outcome == cog.Declined {
			return p.reply(inv, p.config.Responses.Cancelled)
		}
		return nil
	}

	err = store.Update(ctx, p.deps.Store, p.key(inv.GuildID()), func(doc *guildDoc) error {
		if _, ok := doc.bank(name); !ok {
			return cog.NotFoundError(p.config.Responses.BankNotFound, name)
		}
		delete(doc.Banks, bankKey(name))
		return nil
	})
	if err != nil {
		return err
	}

	return p.reply(inv, fmt.Sprintf("Deleted bank **%s**.", name))
}

func (p *Plugin) bankHidden(hidden bool) func(context.Context, cog.Invocation, cog.Args) error {
	return func(ctx context.Context, inv cog.Invocation, args cog.Args) error {
		name := args.String("bank")
		err := store.Update(ctx, p.deps.Store, p.key(inv.GuildID()), func(doc *guildDoc) error {
			b, ok := doc.bank(name)
			if !ok {
				return cog.NotFoundError(p.config.Responses.BankNotFound, name)
			}
			b.Hidden = hidden
			return nil
		})
		if err != nil {
			return err
		}

		if hidden {
			return p.reply(inv, fmt.Sprintf("**%s** is now hidden.", name))
		}
		return p.reply(inv, fmt.Sprintf("**%s** is now visible.", name))
	}
}

func (p *Plugin) isManager(ctx context.Context, inv cog.Invocation) bool {
	return cog.Any(cog.Admin, cog.HasAnyRole(p.managerRoles))(ctx, inv, p.deps) == nil
}

func (p *Plugin) bankList(ctx context.Context, inv cog.Invocation, _ cog.Args) error {
	doc, err := store.View[guildDoc](ctx, p.deps.Store, p.key(inv.GuildID()))
	if err != nil {
		return err
	}

	showHidden := p.isManager(ctx, inv)

	var lines []string
	for _, b := range doc.sortedBanks() {
		if b.Hidden && !showHidden {
			continue
		}
		line := fmt.Sprintf("%s **%s**: %s from %d donators", b.Emoji, b.Name, money(b.Emoji, b.Total()), len(b.Leaderboard(0)))
		if b.Hidden {
			line += " (hidden)"
		}
		lines = append(lines, line)
	}

	if len(lines) == 0 {
		return p.reply(inv, "This server has no banks yet.")
	}

	_, err = inv.Reply(cog.Response{Embeds: []*discordgo.MessageEmbed{p.embed("Banks", strings.Join(lines, "\n"))}})
	return err
}

func parseRoles(text string) ([]string, error) {
	var roles []string
	for _, token := range strings.Fields(text) {
		id, err := convert.RoleID(token)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(roles, id) {
			roles = append(roles, id)
		}
	}
	if len(roles) == 0 {
		return nil, cog.InputError("Give at least one role.")
	}
	return roles, nil
}

func roleMentions(roles []string) string {
	mentions := make([]string, 0, len(roles))
	for _, r := range roles {
		mentions = append(mentions, "<@&"+r+">")
	}
	return strings.Join(mentions, ", ")
}

func (p *Plugin) roleAdd(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	name := args.String("bank")
	amount, err := convert.ParseAmount(args.String("amount"))
	if err != nil {
		return err
	}
	roles, err := parseRoles(args.String("roles"))
	if err != nil {
		return err
	}

	var emoji string
	err = store.Update(ctx, p.deps.Store, p.key(inv.GuildID()), func(doc *guildDoc) error {
		b, ok := doc.bank(name)
		if !ok {
			return cog.NotFoundError(p.config.Responses.BankNotFound, name)
		}
		for _, r := range roles {
			if !slices.Contains(b.Roles[amount], r) {
				b.Roles[amount] = append(b.Roles[amount], r)
			}
		}
		emoji = b.Emoji
		return nil
	})
	if err != nil {
		return err
	}

	return p.reply(inv, fmt.Sprintf("Members with at least %s in **%s** now get %s.", money(emoji, amount), name, roleMentions(roles)))
}

func (p *Plugin) roleRemove(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	name := args.String("bank")
	amount, err := convert.ParseAmount(args.String("amount"))
	if err != nil {
		return err
	}

	err = store.Update(ctx, p.deps.Store, p.key(inv.GuildID()), func(doc *guildDoc) error {
		b, ok := doc.bank(name)
		if !ok {
			return cog.NotFoundError(p.config.Responses.BankNotFound, name)
		}
		if _, ok := b.Roles[amount]; !ok {
			return cog.NotFoundError("**%s** has no roles at %s.", name, convert.FormatInt(amount))
		}
		delete(b.Roles, amount)
		return nil
	})
	if err != nil {
		return err
	}

	return p.reply(inv, fmt.Sprintf("Removed the %s threshold from **%s**.", convert.FormatInt(amount), name))
}

func (p *Plugin) roleList(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	name := args.String("bank")
	doc, err := store.View[guildDoc](ctx, p.deps.Store, p.key(inv.GuildID()))
	if err != nil {
		return err
	}
	b, ok := doc.bank(name)
	if !ok {
		return cog.NotFoundError(p.config.Responses.BankNotFound, name)
	}

	var lines []string
	for _, threshold := range b.thresholds() {
		lines = append(lines, fmt.Sprintf("%s: %s", money(b.Emoji, threshold), roleMentions(b.Roles[threshold])))
	}
	if len(lines) == 0 {
		return p.reply(inv, fmt.Sprintf("**%s** has no donation roles.", b.Name))
	}

	_, err = inv.Reply(cog.Response{Embeds: []*discordgo.MessageEmbed{p.embed(b.Name+" roles", strings.Join(lines, "\n"))}})
	return err
}

func (p *Plugin) ledger(op ledgerOp) func(context.Context, cog.Invocation, cog.Args) error {
	return func(ctx context.Context, inv cog.Invocation, args cog.Args) error {
		name := args.String("bank")
		amount, err := convert.ParseAmount(args.String("amount"))
		if err != nil {
			return err
		}
		if op != opSet && amount == 0 {
			return cog.InputError("The amount must be greater than zero.")
		}
		memberID, err := convert.UserID(args.String("member"))
		if err != nil {
			return err
		}

		var bank Bank
		var before, after int64
		var logChannel string
		err = store.Update(ctx, p.deps.Store, p.key(inv.GuildID()), func(doc *guildDoc) error {
			b, ok := doc.bank(name)
			if !ok {
				return cog.NotFoundError(p.config.Responses.BankNotFound, name)
			}

			before = b.Balance(memberID)
			switch op {
			case opAdd:
				after = b.Add(memberID, amount)
			case opRemove:
				after = b.Remove(memberID, amount)
			case opSet:
				after = b.Set(memberID, amount)
			}

			bank = *b
			logChannel = doc.LogChannel
			return nil
		})
		if err != nil {
			return err
		}

		modified, failed := p.syncRoles(inv.Session(), inv.GuildID(), memberID, &bank, after)

		var description string
		switch op {
		case opAdd:
			description = fmt.Sprintf("Added %s to <@%s>'s **%s** donations.", money(bank.Emoji, amount), memberID, bank.Name)
		case opRemove:
			description = fmt.Sprintf("Removed %s from <@%s>'s **%s** donations.", money(bank.Emoji, before-after), memberID, bank.Name)
		case opSet:
			description = fmt.Sprintf("Set <@%s>'s **%s** donations to %s.", memberID, bank.Name, money(bank.Emoji, after))
		}

		embed := p.embed(op.title(), description)
		embed.Fields = []*discordgo.MessageEmbedField{
			{Name: "Previous balance", Value: money(bank.Emoji, before), Inline: true},
			{Name: "New balance", Value: money(bank.Emoji, after), Inline: true},
			{Name: "Roles updated", Value: fmt.Sprintf("%d", modified), Inline: true},
		}
		if len(failed) > 0 {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name:  "Failed to update roles",
				Value: roleMentions(failed),
			})
		}

		if _, err = inv.Reply(cog.Response{Embeds: []*discordgo.MessageEmbed{embed}}); err != nil {
			return err
		}

		p.logChange(inv, logChannel, op, &bank, memberID, amount, before, after)

		return nil
	}
}

// syncRoles grants and removes threshold roles for a new balance. Failed role edits are collected and returned, they
// never undo the balance change.
func (p *Plugin) syncRoles(s cog.Session, guildID string, userID string, bank *Bank, balance int64) (int, []string) {
	add, remove := bank.RoleChanges(balance)
	if len(add) == 0 && len(remove) == 0 {
		return 0, nil
	}

	member, err := s.GuildMember(guildID, userID)
	if err != nil {
		p.logger.Warn("failed to fetch member for role sync",
			slog.String("guild_id", guildID),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return 0, append(add, remove...)
	}

	var modified int
	var failed []string
	for _, roleID := range add {
		if slices.Contains(member.Roles, roleID) {
			continue
		}
		if err := s.GuildMemberRoleAdd(guildID, userID, roleID); err != nil {
			p.roleError(err, guildID, roleID)
			failed = append(failed, roleID)
			continue
		}
		modified++
	}
	for _, roleID := range remove {
		if !slices.Contains(member.Roles, roleID) {
			continue
		}
		if err := s.GuildMemberRoleRemove(guildID, userID, roleID); err != nil {
			p.roleError(err, guildID, roleID)
			failed = append(failed, roleID)
			continue
		}
		modified++
	}

	return modified, failed
}

func (p *Plugin) roleError(err error, guildID string, roleID string) {
	if cog.IsForbidden(err) || cog.IsNotFound(err) {
		return
	}
	p.logger.Error("failed to update donation role",
		slog.String("guild_id", guildID),
		slog.String("role_id", roleID),
		slog.String("error", err.Error()),
	)
}

func (p *Plugin) logChange(inv cog.Invocation, channelID string, op ledgerOp, bank *Bank, memberID string, amount int64, before int64, after int64) {
	if channelID == "" {
		return
	}

	embed := p.embed(op.title(), fmt.Sprintf("<@%s> changed <@%s>'s **%s** donations.", inv.Author().ID, memberID, bank.Name))
	embed.Fields = []*discordgo.MessageEmbedField{
		{Name: "Amount", Value: money(bank.Emoji, amount), Inline: true},
		{Name: "Previous balance", Value: money(bank.Emoji, before), Inline: true},
		{Name: "New balance", Value: money(bank.Emoji, after), Inline: true},
	}
	embed.Timestamp = p.deps.Time().UTC().Format(time.RFC3339)

	_, err := inv.Session().ChannelMessageSendComplex(channelID, &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}})
	if err != nil {
		p.logger.Warn("failed to send donation log",
			slog.String("channel_id", channelID),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Plugin) check(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	memberID := inv.Author().ID
	if args.Has("member") {
		id, err := convert.UserID(args.String("member"))
		if err != nil {
			return err
		}
		memberID = id
	}

	doc, err := store.View[guildDoc](ctx, p.deps.Store, p.key(inv.GuildID()))
	if err != nil {
		return err
	}

	showHidden := p.isManager(ctx, inv)

	embed := p.embed("Donations", fmt.Sprintf("<@%s>", memberID))
	for _, b := range doc.sortedBanks() {
		if b.Hidden && !showHidden {
			continue
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   b.Name,
			Value:  money(b.Emoji, b.Balance(memberID)),
			Inline: true,
		})
	}
	if len(embed.Fields) == 0 {
		return p.reply(inv, "This server has no banks yet.")
	}

	_, err = inv.Reply(cog.Response{Embeds: []*discordgo.MessageEmbed{embed}})
	return err
}

func (p *Plugin) leaderboard(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	name := args.String("bank")

	top := int64(p.config.LeaderboardSize)
	if args.Has("top") {
		n, err := convert.Int(args.String("top"), 1, 25)
		if err != nil {
			return err
		}
		top = n
	}

	doc, err := store.View[guildDoc](ctx, p.deps.Store, p.key(inv.GuildID()))
	if err != nil {
		return err
	}
	b, ok := doc.bank(name)
	if !ok || (b.Hidden && !p.isManager(ctx, inv)) {
		return cog.NotFoundError(p.config.Responses.BankNotFound, name)
	}

	standings := b.Leaderboard(int(top))
	if len(standings) == 0 {
		return p.reply(inv, fmt.Sprintf("Nobody has donated to **%s** yet.", b.Name))
	}

	lines := make([]string, 0, len(standings))
	for i, s := range standings {
		lines = append(lines, fmt.Sprintf("%d. <@%s> %s", i+1, s.UserID, money(b.Emoji, s.Amount)))
	}

	embed := p.embed(b.Name+" leaderboard", strings.Join(lines, "\n"))
	embed.Footer = &discordgo.MessageEmbedFooter{Text: "Total: " + money(b.Emoji, b.Total())}

	_, err = inv.Reply(cog.Response{Embeds: []*discordgo.MessageEmbed{embed}})
	return err
}

func (p *Plugin) reset(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	name := args.String("bank")

	var memberID string
	if args.Has("member") {
		id, err := convert.UserID(args.String("member"))
		if err != nil {
			return err
		}
		memberID = id
	}

	doc, err := store.View[guildDoc](ctx, p.deps.Store, p.key(inv.GuildID()))
	if err != nil {
		return err
	}
	if _, ok := doc.bank(name); !ok {
		return cog.NotFoundError(p.config.Responses.BankNotFound, name)
	}

	prompt := fmt.Sprintf("Reset every donation in **%s**?", name)
	if memberID != "" {
		prompt = fmt.Sprintf("Reset <@%s>'s donations in **%s**?", memberID, name)
	}

	outcome, err := p.deps.Views.Confirm(ctx, inv, prompt, p.confirmTimeout())
	if err != nil {
		return err
	}
	if outcome != cog.Confirmed {
		if outcome == cog.Declined {
			return p.reply(inv, p.config.Responses.Cancelled)
		}
		return nil
	}

	err = store.Update(ctx, p.deps.Store, p.key(inv.GuildID()), func(doc *guildDoc) error {
		b, ok := doc.bank(name)
		if !ok {
			return cog.NotFoundError(p.config.Responses.BankNotFound, name)
		}
		if memberID != "" {
			delete(b.Donators, memberID)
		} else {
			b.Donators = make(map[string]int64)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if memberID != "" {
		return p.reply(inv, fmt.Sprintf("Reset <@%s>'s donations in **%s**.", memberID, name))
	}
	return p.reply(inv, fmt.Sprintf("Reset every donation in **%s**.", name))
}

func isNone(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), "none")
}

func (p *Plugin) setLogChannel(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	var channelID string
	if !isNone(args.String("channel")) {
		id, err := convert.ChannelID(args.String("channel"))
		if err != nil {
			return err
		}
		channelID = id
	}

	err := store.Update(ctx, p.deps.Store, p.key(inv.GuildID()), func(doc *guildDoc) error {
		doc.LogChannel = channelID
		return nil
	})
	if err != nil {
		return err
	}

	if channelID == "" {
		return p.reply(inv, "Donation logging is off.")
	}
	return p.reply(inv, fmt.Sprintf("Donation changes will be logged in <#%s>.", channelID))
}

func (p *Plugin) setManagers(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	var roles []string
	if !isNone(args.String("roles")) {
		var err error
		if roles, err = parseRoles(args.String("roles")); err != nil {
			return err
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
		return p.reply(inv, "Only admins can log donations now.")
	}
	return p.reply(inv, fmt.Sprintf("Donation managers: %s.", roleMentions(roles)))
}
