package noobtools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/olympus-go/cogs/cog"
	"github.com/olympus-go/cogs/convert"
	"github.com/olympus-go/cogs/store"
)

func (p *Plugin) command() *cog.Command {
	roleOption := cog.Option{Name: "role", Description: "The role", Type: discordgo.ApplicationCommandOptionRole, Required: true}

	return &cog.Command{
		Name:        "rolecolor",
		Description: "Rotate the color of a role",
		Checks:      []cog.Check{cog.GuildOnly, cog.Admin},
		Subcommands: []*cog.Command{
			{
				Name:        "set",
				Description: "Start rotating a role through colors",
				Options: []cog.Option{
					roleOption,
					{Name: "interval", Description: "Time between changes, e.g. 1h", Required: true},
					{Name: "colors", Description: "Hex colors, e.g. #ff0000 #00ff00", Required: true, Rest: true},
				},
				Run: p.set,
			},
			{
				Name:        "stop",
				Description: "Stop rotating a role",
				Options:     []cog.Option{roleOption},
				Run:         p.stop,
			},
			{
				Name:        "list",
				Description: "List rotating roles",
				Run:         p.list,
			},
		},
	}
}

func (p *Plugin) set(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	roleID, err := convert.RoleID(args.String("role"))
	if err != nil {
		return err
	}
	interval, err := convert.ParseDuration(args.String("interval"),
		time.Duration(p.config.MinIntervalSeconds)*time.Second,
		time.Duration(p.config.MaxIntervalSeconds)*time.Second,
	)
	if err != nil {
		return err
	}

	var colors []int
	for _, token := range strings.Fields(args.String("colors")) {
		c, err := parseColor(token)
		if err != nil {
			return err
		}
		colors = append(colors, c)
	}
	if len(colors) < 2 {
		return cog.InputError("Give at least two colors.")
	}
	if p.config.MaxColors > 0 && len(colors) > p.config.MaxColors {
		return cog.InputError("A role can rotate through at most %d colors.", p.config.MaxColors)
	}

	err = store.Update(ctx, p.deps.Store, p.key(inv.GuildID()), func(doc *guildDoc) error {
		if _, ok := doc.RoleColors[roleID]; !ok && p.config.MaxRotations > 0 && len(doc.RoleColors) >= p.config.MaxRotations {
			return cog.InputError("This server already rotates %d roles.", p.config.MaxRotations)
		}
		doc.RoleColors[roleID] = &Rotation{
			Interval: int64(interval.Seconds()),
			Next:     p.deps.Time().Unix(),
			Colors:   colors,
		}
		return nil
	})
	if err != nil {
		return err
	}

	_, err = inv.Reply(cog.Response{
		Content:         fmt.Sprintf("<@&%s> now changes color every %s.", roleID, convert.HumanizeDuration(interval)),
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	return err
}

func (p *Plugin) stop(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	roleID, err := convert.RoleID(args.String("role"))
	if err != nil {
		return err
	}

	err = store.Update(ctx, p.deps.Store, p.key(inv.GuildID()), func(doc *guildDoc) error {
		if _, ok := doc.RoleColors[roleID]; !ok {
			return cog.NotFoundError("<@&%s> is not rotating colors.", roleID)
		}
		delete(doc.RoleColors, roleID)
		return nil
	})
	if err != nil {
		return err
	}

	_, err = inv.Reply(cog.Response{
		Content:         fmt.Sprintf("<@&%s> stopped rotating colors.", roleID),
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	return err
}

func (p *Plugin) list(ctx context.Context, inv cog.Invocation, _ cog.Args) error {
	doc, err := store.View[guildDoc](ctx, p.deps.Store, p.key(inv.GuildID()))
	if err != nil {
		return err
	}
	if len(doc.RoleColors) == 0 {
		_, err = inv.Reply(cog.Response{Content: "No role is rotating colors."})
		return err
	}

	roles := make([]string, 0, len(doc.RoleColors))
	for id := range doc.RoleColors {
		roles = append(roles, id)
	}
	sort.Strings(roles)

	var b strings.Builder
	for _, id := range roles {
		r := doc.RoleColors[id]
		colors := make([]string, 0, len(r.Colors))
		for _, c := range r.Colors {
			colors = append(colors, formatColor(c))
		}
		fmt.Fprintf(&b, "<@&%s> every %s: %s (next <t:%d:R>)\n",
			id, convert.HumanizeDuration(time.Duration(r.Interval)*time.Second), strings.Join(colors, " "), r.Next)
	}

	_, err = inv.Reply(cog.Response{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Rotating role colors",
			Description: b.String(),
			Color:       p.config.EmbedColor,
		}},
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	return err
}
