package timers

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

const maxTitleLength = 256

func (p *Plugin) command() *cog.Command {
	messageOption := cog.Option{Name: "message_id", Description: "Id of the timer message", Required: true}

	return &cog.Command{
		Name:        "timer",
		Description: "Countdown timers",
		Checks:      []cog.Check{cog.GuildOnly},
		Subcommands: []*cog.Command{
			{
				Name:        "start",
				Description: "Start a timer",
				Options: []cog.Option{
					{Name: "duration", Description: "How long, e.g. 30s, 10m, 2h or 1d", Required: true},
					{Name: "title", Description: "What the timer is for", Rest: true},
				},
				Run: p.start,
			},
			{
				Name:        "end",
				Description: "End a timer early and ping everyone",
				Options:     []cog.Option{messageOption},
				Run:         p.stop(ended),
			},
			{
				Name:        "cancel",
				Description: "Cancel a timer without pinging anyone",
				Options:     []cog.Option{messageOption},
				Run:         p.stop(cancelled),
			},
			{
				Name:        "list",
				Description: "List the running timers",
				Run:         p.list,
			},
			{
				Name:        "settings",
				Description: "Configure timers",
				Checks:      []cog.Check{cog.Admin},
				Subcommands: []*cog.Command{
					{
						Name:        "max",
						Description: "How many timers may run at once",
						Options:     []cog.Option{{Name: "amount", Description: "0 restores the default", Type: discordgo.ApplicationCommandOptionInteger, Required: true}},
						Run:         p.setMax,
					},
					{
						Name:        "label",
						Description: "Label of the remind button, or none for the default",
						Options:     []cog.Option{{Name: "label", Description: "Button label", Required: true, Rest: true}},
						Run:         p.setLabel,
					},
				},
			},
		},
	}
}

func (p *Plugin) key(guildID string) store.Key {
	return store.GuildKey(pluginName, guildID)
}

func (p *Plugin) maxTimers(doc *guildDoc) int {
	if doc.MaxTimers > 0 {
		return doc.MaxTimers
	}
	return p.config.MaxTimers
}

func (p *Plugin) start(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	min, max := p.config.bounds()
	d, err := convert.ParseDuration(args.String("duration"), min, max)
	if err != nil {
		return err
	}

	title := strings.TrimSpace(args.String("title"))
	if title == "" {
		title = "Timer"
	}
	if r := []rune(title); len(r) > maxTitleLength {
		title = string(r[:maxTitleLength])
	}

	doc, err := store.View[guildDoc](ctx, p.deps.Store, p.key(inv.GuildID()))
	if err != nil {
		return err
	}
	if limit := p.maxTimers(&doc); len(doc.Timers) >= limit {
		return cog.InputError(p.config.Responses.TooMany, limit)
	}

	t := Timer{
		EndTimestamp: p.deps.Time().Add(d).Unix(),
		HostID:       inv.Author().ID,
		ChannelID:    inv.ChannelID(),
		Title:        title,
	}
	embed, components := p.render(&t, doc.ButtonLabel)

	msg, err := inv.Reply(cog.Response{Embeds: []*discordgo.MessageEmbed{embed}, Components: components})
	if err != nil {
		return err
	}
	t.MessageID = msg.ID
	if msg.ChannelID != "" {
		t.ChannelID = msg.ChannelID
	}

	err = store.Update(ctx, p.deps.Store, p.key(inv.GuildID()), func(doc *guildDoc) error {
		if limit := p.maxTimers(doc); len(doc.Timers) >= limit {
			return cog.InputError(p.config.Responses.TooMany, limit)
		}
		if doc.Timers == nil {
			doc.Timers = make(map[string]*Timer)
		}
		doc.Timers[t.MessageID] = &t
		return nil
	})
	if err != nil {
		// Lost a race for the last slot.
		_ = inv.Session().ChannelMessageDelete(t.ChannelID, t.MessageID)
		return err
	}

	p.logger.Debug("timer started",
		slog.String("guild_id", inv.GuildID()),
		slog.String("message_id", t.MessageID),
		slog.Duration("duration", d),
	)

	return nil
}

func (p *Plugin) stop(to state) func(context.Context, cog.Invocation, cog.Args) error {
	return func(ctx context.Context, inv cog.Invocation, args cog.Args) error {
		messageID := strings.TrimSpace(args.String("message_id"))

		doc, err := store.View[guildDoc](ctx, p.deps.Store, p.key(inv.GuildID()))
		if err != nil {
			return err
		}
		t, ok := doc.Timers[messageID]
		if !ok {
			return cog.NotFoundError(p.config.Responses.NotFound, messageID)
		}
		if t.HostID != inv.Author().ID && cog.Admin(ctx, inv, p.deps) != nil {
			return cog.PermissionError(p.config.Responses.NotHost)
		}

		if _, err = p.finish(ctx, inv.Session(), inv.GuildID(), messageID, to); err != nil {
			return err
		}

		verb := "ended"
		if to == cancelled {
			verb = "cancelled"
		}
		_, err = inv.Reply(cog.Response{Content: fmt.Sprintf("Timer **%s** %s.", t.Title, verb), Ephemeral: true})
		return err
	}
}

func (p *Plugin) list(ctx context.Context, inv cog.Invocation, _ cog.Args) error {
	doc, err := store.View[guildDoc](ctx, p.deps.Store, p.key(inv.GuildID()))
	if err != nil {
		return err
	}
	if len(doc.Timers) == 0 {
		_, err = inv.Reply(cog.Response{Content: "There are no running timers.", Ephemeral: true})
		return err
	}

	timers := make([]*Timer, 0, len(doc.Timers))
	for _, t := range doc.Timers {
		timers = append(timers, t)
	}
	sort.Slice(timers, func(i, j int) bool {
		return timers[i].EndTimestamp < timers[j].EndTimestamp
	})

	var b strings.Builder
	for _, t := range timers {
		fmt.Fprintf(&b, "[%s](%s) ends <t:%d:R>, hosted by <@%s> (`%s`)\n",
			t.Title, jumpURL(inv.GuildID(), t.ChannelID, t.MessageID), t.EndTimestamp, t.HostID, t.MessageID)
	}

	_, err = inv.Reply(cog.Response{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       fmt.Sprintf("Running timers (%d/%d)", len(timers), p.maxTimers(&doc)),
			Description: b.String(),
			Color:       p.config.EmbedColor,
		}},
		Ephemeral: true,
	})
	return err
}

func (p *Plugin) setMax(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	n, err := convert.Int(args.String("amount"), 0, 100)
	if err != nil {
		return err
	}

	err = store.Update(ctx, p.deps.Store, p.key(inv.GuildID()), func(doc *guildDoc) error {
		doc.MaxTimers = int(n)
		return nil
	})
	if err != nil {
		return err
	}

	if n == 0 {
		n = int64(p.config.MaxTimers)
	}
	_, err = inv.Reply(cog.Response{Content: fmt.Sprintf("Up to %d timers can now run at once.", n)})
	return err
}

func (p *Plugin) setLabel(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	label := strings.TrimSpace(args.String("label"))
	if strings.EqualFold(label, "none") {
		label = ""
	}
	if len([]rune(label)) > 80 {
		return cog.InputError("Button labels can be at most 80 characters long.")
	}

	err := store.Update(ctx, p.deps.Store, p.key(inv.GuildID()), func(doc *guildDoc) error {
		doc.ButtonLabel = label
		return nil
	})
	if err != nil {
		return err
	}

	if label == "" {
		label = p.config.ButtonLabel
	}
	_, err = inv.Reply(cog.Response{Content: fmt.Sprintf("New timers will use the label `%s`.", label)})
	return err
}

func (p *Plugin) remind(ctx context.Context, c *cog.ComponentInvocation) error {
	msg := c.Message()
	if msg == nil {
		return cog.NotFoundError("This timer has already ended.")
	}

	var joined bool
	err := store.Update(ctx, p.deps.Store, p.key(c.GuildID()), func(doc *guildDoc) error {
		t, ok := doc.Timers[msg.ID]
		if !ok {
			return cog.NotFoundError("This timer has already ended.")
		}
		joined = t.toggle(c.Author().ID)
		return nil
	})
	if err != nil {
		return err
	}

	content := p.config.Responses.Left
	if joined {
		content = p.config.Responses.Joined
	}
	_, err = c.Reply(cog.Response{Content: content, Ephemeral: true})
	return err
}

// finish moves a running timer to its terminal state: the record is dropped, the message rewritten and, for ended
// timers, everyone to remind pinged. A backing message that no longer exists only drops the record.
func (p *Plugin) finish(ctx context.Context, s cog.Session, guildID string, messageID string, to state) (*Timer, error) {
	var t Timer
	var label string
	err := store.Update(ctx, p.deps.Store, p.key(guildID), func(doc *guildDoc) error {
		stored, ok := doc.Timers[messageID]
		if !ok {
			return cog.NotFoundError(p.config.Responses.NotFound, messageID)
		}
		delete(doc.Timers, messageID)

		t = *stored
		label = doc.ButtonLabel
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.Ended = to == ended
	t.Cancelled = to == cancelled

	embed, components := p.render(&t, label)
	_, err = cog.EditMessage(s, t.ChannelID, t.MessageID, cog.Response{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
	})
	switch {
	case cog.IsNotFound(err):
		p.logger.Debug("timer message is gone", slog.String("guild_id", guildID), slog.String("message_id", messageID))
		return &t, nil
	case err != nil:
		p.logger.Warn("failed to update timer message",
			slog.String("guild_id", guildID),
			slog.String("message_id", messageID),
			slog.String("error", err.Error()),
		)
	}

	if to != ended {
		return &t, nil
	}

	header := fmt.Sprintf("The timer for **%s** has ended! %s\n", t.Title, jumpURL(guildID, t.ChannelID, t.MessageID))
	for _, content := range chunkMentions(header, t.pinged(), messageLimit) {
		_, err = s.ChannelMessageSendComplex(t.ChannelID, &discordgo.MessageSend{
			Content:         content,
			AllowedMentions: &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers}},
		})
		if err != nil {
			p.logger.Warn("failed to ping timer members",
				slog.String("guild_id", guildID),
				slog.String("message_id", messageID),
				slog.String("error", err.Error()),
			)
			break
		}
	}

	return &t, nil
}

// endDue ends every timer of guildID whose end time has passed.
func (p *Plugin) endDue(ctx context.Context, s cog.Session, guildID string) error {
	doc, err := store.View[guildDoc](ctx, p.deps.Store, p.key(guildID))
	if err != nil {
		return err
	}

	now := p.deps.Time()
	var due []string
	for id, t := range doc.Timers {
		if t.due(now) {
			due = append(due, id)
		}
	}
	sort.Strings(due)

	for _, id := range due {
		if _, err = p.finish(ctx, s, guildID, id, ended); err != nil && !cog.IsKind(err, cog.KindNotFound) {
			p.logger.Error("failed to end timer",
				slog.String("guild_id", guildID),
				slog.String("message_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}
