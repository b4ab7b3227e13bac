package giveawayping

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/olympus-go/cogs/cog"
	"github.com/olympus-go/cogs/convert"
	"github.com/olympus-go/cogs/store"
)

func (p *Plugin) command() *cog.Command {
	return &cog.Command{
		Name:        "gping",
		Aliases:     []string{"giveawayping"},
		Description: "Ping the giveaway role",
		Checks:      []cog.Check{cog.GuildOnly},
		Options:     []cog.Option{{Name: "message", Description: "Extra text for the ping", Rest: true}},
		Run:         p.ping,
		Subcommands: []*cog.Command{
			{
				Name:        "send",
				Description: "Ping the giveaway role",
				Options:     []cog.Option{{Name: "message", Description: "Extra text for the ping", Rest: true}},
				Run:         p.ping,
			},
			{
				Name:        "settings",
				Description: "Configure giveaway pings",
				Checks:      []cog.Check{cog.Admin},
				Subcommands: []*cog.Command{
					{
						Name:        "role",
						Description: "The role to ping, or none",
						Options:     []cog.Option{{Name: "role", Description: "The role", Type: discordgo.ApplicationCommandOptionRole, Required: true}},
						Run:         p.setRole,
					},
					{
						Name:        "template",
						Description: "Ping text with {role}, {user} and {message}, or none for the default",
						Options:     []cog.Option{{Name: "template", Description: "The template", Required: true, Rest: true}},
						Run:         p.setTemplate,
					},
					{
						Name:        "toggle",
						Description: "Turn giveaway pings on or off",
						Run:         p.toggle,
					},
				},
			},
		},
	}
}

func isNone(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), "none")
}

func (p *Plugin) ping(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	doc, err := store.View[guildDoc](ctx, p.deps.Store, p.key(inv.GuildID()))
	if err != nil {
		return err
	}
	if doc.Role == "" {
		return cog.InputError(p.config.Responses.NotSetUp)
	}
	if !doc.Enabled {
		return cog.InputError(p.config.Responses.Disabled)
	}

	message := strings.TrimSpace(args.String("message"))
	if p.config.MaxMessageLength > 0 && len(message) > p.config.MaxMessageLength {
		return cog.InputError("The message can't be longer than %d characters.", p.config.MaxMessageLength)
	}
	if wait, ok := p.cooldown.Take(inv.Author().ID, p.deps.Time()); !ok {
		return cog.CooldownError(wait)
	}

	_, err = inv.Reply(cog.Response{
		Content:         render(p.template(doc), doc.Role, inv.Author().Username, message),
		AllowedMentions: &discordgo.MessageAllowedMentions{Roles: []string{doc.Role}},
	})
	return err
}

func (p *Plugin) setRole(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	var roleID string
	if !isNone(args.String("role")) {
		id, err := convert.RoleID(args.String("role"))
		if err != nil {
			return err
		}
		roleID = id
	}

	err := store.Update(ctx, p.deps.Store, p.key(inv.GuildID()), func(doc *guildDoc) error {
		doc.Role = roleID
		return nil
	})
	if err != nil {
		return err
	}

	content := "Giveaway pings have no role now."
	if roleID != "" {
		content = fmt.Sprintf("Giveaway pings mention <@&%s>.", roleID)
	}
	_, err = inv.Reply(cog.Response{Content: content, AllowedMentions: &discordgo.MessageAllowedMentions{}})
	return err
}

func (p *Plugin) setTemplate(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	template := strings.TrimSpace(args.String("template"))
	if isNone(template) {
		template = ""
	}
	if template != "" && !strings.Contains(template, "{role}") {
		return cog.InputError("The template must contain `{role}`.")
	}

	var doc guildDoc
	err := store.Update(ctx, p.deps.Store, p.key(inv.GuildID()), func(d *guildDoc) error {
		d.Template = template
		doc = *d
		return nil
	})
	if err != nil {
		return err
	}

	preview := render(p.template(doc), "role", inv.Author().Username, "Example message")
	_, err = inv.Reply(cog.Response{
		Content:         "Template updated. Preview:\n" + preview,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	return err
}

func (p *Plugin) toggle(ctx context.Context, inv cog.Invocation, _ cog.Args) error {
	var enabled bool
	err := store.Update(ctx, p.deps.Store, p.key(inv.GuildID()), func(doc *guildDoc) error {
		doc.Enabled = !doc.Enabled
		enabled = doc.Enabled
		return nil
	})
	if err != nil {
		return err
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	_, err = inv.Reply(cog.Response{Content: fmt.Sprintf("Giveaway pings %s.", state)})
	return err
}
