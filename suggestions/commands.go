package suggestions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/olympus-go/cogs/cog"
	"github.com/olympus-go/cogs/convert"
	"github.com/olympus-go/cogs/store"
)

var errVanished = errors.New("suggestion vanished while posting")

func (p *Plugin) commands() []*cog.Command {
	idOption := cog.Option{Name: "id", Description: "Suggestion number", Type: discordgo.ApplicationCommandOptionInteger, Required: true}
	reasonOption := cog.Option{Name: "reason", Description: "Why", Rest: true}
	toggle := func(name string, set func(*guildDoc, bool), describe string) *cog.Command {
		return &cog.Command{
			Name:        name,
			Description: describe,
			Options:     []cog.Option{{Name: "enabled", Description: "On or off", Type: discordgo.ApplicationCommandOptionBoolean, Required: true}},
			Run:         p.setToggle(name, set),
		}
	}

	return []*cog.Command{
		{
			Name:        "suggest",
			Description: "Post a suggestion",
			Checks:      []cog.Check{cog.GuildOnly},
			Options:     []cog.Option{{Name: "suggestion", Description: "Your suggestion", Required: true, Rest: true}},
			Run:         p.suggest,
		},
		{
			Name:        "suggestion",
			Description: "Review and configure suggestions",
			Checks:      []cog.Check{cog.GuildOnly},
			Subcommands: []*cog.Command{
				{
					Name:        "approve",
					Description: "Approve a suggestion",
					Checks:      []cog.Check{cog.Admin},
					Options:     []cog.Option{idOption, reasonOption},
					Run:         p.review(StatusApproved),
				},
				{
					Name:        "reject",
					Description: "Reject a suggestion",
					Checks:      []cog.Check{cog.Admin},
					Options:     []cog.Option{idOption, reasonOption},
					Run:         p.review(StatusRejected),
				},
				{
					Name:        "show",
					Description: "Show a suggestion",
					Options:     []cog.Option{idOption},
					Run:         p.show,
				},
				{
					Name:        "settings",
					Description: "Configure suggestions",
					Checks:      []cog.Check{cog.Admin},
					Subcommands: []*cog.Command{
						{
							Name:        "channel",
							Description: "Channel suggestions are posted in",
							Options:     []cog.Option{{Name: "channel", Description: "The channel", Required: true}},
							Run:         p.setChannel(func(d *guildDoc, id string) { d.Channel = id }),
						},
						{
							Name:        "logchannel",
							Description: "Channel reviews are logged in, or none",
							Options:     []cog.Option{{Name: "channel", Description: "The channel", Required: true}},
							Run:         p.setChannel(func(d *guildDoc, id string) { d.LogChannel = id }),
						},
						toggle("selfvote", func(d *guildDoc, v bool) { d.SelfVote = v }, "Allow voting on your own suggestion"),
						toggle("dm", func(d *guildDoc, v bool) { d.DMResult = v }, "DM suggesters when their suggestion is reviewed"),
					},
				},
			},
		},
	}
}

func (p *Plugin) key(guildID string) store.Key {
	return store.GuildKey(pluginName, guildID)
}

func (p *Plugin) suggest(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	text := strings.TrimSpace(args.String("suggestion"))
	if text == "" {
		return cog.InputError("Your suggestion is empty.")
	}
	if p.config.MaxLength > 0 && len([]rune(text)) > p.config.MaxLength {
		return cog.InputError("Suggestions can be at most %d characters long.", p.config.MaxLength)
	}

	var suggestion Suggestion
	var channelID string
	err := store.Update(ctx, p.deps.Store, p.key(inv.GuildID()), func(doc *guildDoc) error {
		if doc.Channel == "" {
			return cog.InputError(p.config.Responses.NotSetUp)
		}
		if doc.Suggestions == nil {
			doc.Suggestions = make(map[int]*Suggestion)
		}
		if doc.NextID < 1 {
			doc.NextID = 1
		}

		suggestion = Suggestion{
			ID:          doc.NextID,
			SuggesterID: inv.Author().ID,
			ChannelID:   doc.Channel,
			Text:        text,
			Status:      StatusRunning,
			CreatedAt:   p.deps.Time().Unix(),
		}
		doc.Suggestions[suggestion.ID] = &suggestion
		doc.NextID++
		channelID = doc.Channel
		return nil
	})
	if err != nil {
		return err
	}

	msg, err := inv.Session().ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{p.render(&suggestion)},
		Components: voteButtons(&suggestion),
	})
	if err != nil {
		rollback := store.Update(ctx, p.deps.Store, p.key(inv.GuildID()), func(doc *guildDoc) error {
			delete(doc.Suggestions, suggestion.ID)
			return nil
		})
		if rollback != nil {
			p.logger.Error("failed to drop unposted suggestion",
				slog.String("guild_id", inv.GuildID()),
				slog.Int("suggestion", suggestion.ID),
				slog.String("error", rollback.Error()),
			)
		}
		if cog.IsForbidden(err) || cog.IsNotFound(err) {
			return cog.PermissionError("I can't post in <#%s>.", channelID)
		}
		return err
	}

	err = store.Update(ctx, p.deps.Store, p.key(inv.GuildID()), func(doc *guildDoc) error {
		s, ok := doc.Suggestions[suggestion.ID]
		if !ok {
			return errVanished
		}
		s.MessageID = msg.ID
		return nil
	})
	if err != nil {
		return err
	}

	_, err = inv.Reply(cog.Response{Content: fmt.Sprintf(p.config.Responses.Submitted, suggestion.ID), Ephemeral: true})
	return err
}

func parseID(text string) (int, error) {
	id, err := convert.Int(strings.TrimPrefix(text, "#"), 1, 1<<31-1)
	if err != nil {
		return 0, err
	}
	return int(id), nil
}

func (p *Plugin) review(status Status) func(context.Context, cog.Invocation, cog.Args) error {
	return func(ctx context.Context, inv cog.Invocation, args cog.Args) error {
		id, err := parseID(args.String("id"))
		if err != nil {
			return err
		}
		reason := strings.TrimSpace(args.String("reason"))

		var suggestion Suggestion
		var dm bool
		var logChannel string
		err = store.Update(ctx, p.deps.Store, p.key(inv.GuildID()), func(doc *guildDoc) error {
			s, ok := doc.Suggestions[id]
			if !ok {
				return cog.NotFoundError("There is no suggestion #%d.", id)
			}
			if s.closed() {
				return cog.InputError("Suggestion #%d was already %s.", id, s.Status)
			}

			s.Status = status
			s.ReviewerID = inv.Author().ID
			s.Reason = reason
			suggestion = *s
			dm = doc.DMResult
			logChannel = doc.LogChannel
			return nil
		})
		if err != nil {
			return err
		}

		embed := p.render(&suggestion)
		s := inv.Session()

		if suggestion.MessageID != "" {
			_, err = cog.EditMessage(s, suggestion.ChannelID, suggestion.MessageID, cog.Response{
				Embeds:     []*discordgo.MessageEmbed{embed},
				Components: voteButtons(&suggestion),
			})
			if err != nil {
				p.logger.Warn("failed to update suggestion message",
					slog.Int("suggestion", suggestion.ID),
					slog.String("error", err.Error()),
				)
			}
		}

		if dm {
			_, err = cog.SendDM(s, suggestion.SuggesterID, &discordgo.MessageSend{
				Content: fmt.Sprintf("Your suggestion #%d was %s.", suggestion.ID, suggestion.Status),
				Embeds:  []*discordgo.MessageEmbed{embed},
			})
			if err != nil {
				p.logger.Debug("failed to DM suggester", slog.String("error", err.Error()))
			}
		}

		if logChannel != "" {
			_, err = s.ChannelMessageSendComplex(logChannel, &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}})
			if err != nil {
				p.logger.Warn("failed to log suggestion review", slog.String("error", err.Error()))
			}
		}

		_, err = inv.Reply(cog.Response{Content: fmt.Sprintf("Suggestion #%d %s.", suggestion.ID, suggestion.Status)})
		return err
	}
}

func (p *Plugin) show(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	id, err := parseID(args.String("id"))
	if err != nil {
		return err
	}

	doc, err := store.View[guildDoc](ctx, p.deps.Store, p.key(inv.GuildID()))
	if err != nil {
		return err
	}
	s, ok := doc.Suggestions[id]
	if !ok {
		return cog.NotFoundError("There is no suggestion #%d.", id)
	}

	_, err = inv.Reply(cog.Response{Embeds: []*discordgo.MessageEmbed{p.render(s)}})
	return err
}

func (p *Plugin) setChannel(set func(*guildDoc, string)) func(context.Context, cog.Invocation, cog.Args) error {
	return func(ctx context.Context, inv cog.Invocation, args cog.Args) error {
		var channelID string
		if raw := args.String("channel"); !strings.EqualFold(raw, "none") {
			id, err := convert.ChannelID(raw)
			if err != nil {
				return err
			}
			channelID = id
		}

		err := store.Update(ctx, p.deps.Store, p.key(inv.GuildID()), func(doc *guildDoc) error {
			set(doc, channelID)
			return nil
		})
		if err != nil {
			return err
		}

		if channelID == "" {
			_, err = inv.Reply(cog.Response{Content: "Channel cleared."})
		} else {
			_, err = inv.Reply(cog.Response{Content: fmt.Sprintf("Channel set to <#%s>.", channelID)})
		}
		return err
	}
}

func (p *Plugin) setToggle(name string, set func(*guildDoc, bool)) func(context.Context, cog.Invocation, cog.Args) error {
	return func(ctx context.Context, inv cog.Invocation, args cog.Args) error {
		enabled, err := convert.Bool(args.String("enabled"))
		if err != nil {
			return err
		}

		err = store.Update(ctx, p.deps.Store, p.key(inv.GuildID()), func(doc *guildDoc) error {
			set(doc, enabled)
			return nil
		})
		if err != nil {
			return err
		}

		_, err = inv.Reply(cog.Response{Content: fmt.Sprintf("`%s` is now %s.", name, strconv.FormatBool(enabled))})
		return err
	}
}

// voteHandler toggles the clicking member's vote and re-renders the suggestion message in place.
func (p *Plugin) voteHandler(v Vote) cog.ComponentHandler {
	return func(ctx context.Context, c *cog.ComponentInvocation) error {
		customID := c.CustomID()
		id, err := strconv.Atoi(customID[strings.LastIndex(customID, "_")+1:])
		if err != nil {
			p.logger.Error("custom id did not match expected format",
				slog.String("custom_id", customID),
				slog.String("expected_format", "suggestions_<vote>_<id>"),
			)
			return cog.InputError("Something went wrong.")
		}

		userID := c.Author().ID

		var suggestion Suggestion
		err = store.Update(ctx, p.deps.Store, p.key(c.GuildID()), func(doc *guildDoc) error {
			s, ok := doc.Suggestions[id]
			if !ok {
				return cog.NotFoundError("This suggestion no longer exists.")
			}
			if s.closed() {
				return cog.InputError(p.config.Responses.Closed)
			}
			if !doc.SelfVote && userID == s.SuggesterID {
				return cog.PermissionError(p.config.Responses.SelfVote)
			}

			s.Toggle(userID, v)
			suggestion = *s
			return nil
		})
		if err != nil {
			return err
		}

		return c.Update(cog.Response{
			Embeds:     []*discordgo.MessageEmbed{p.render(&suggestion)},
			Components: voteButtons(&suggestion),
		})
	}
}
