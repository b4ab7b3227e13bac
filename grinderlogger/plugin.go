package grinderlogger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/olympus-go/cogs/cog"
	"github.com/olympus-go/cogs/poller"
	"github.com/olympus-go/cogs/store"
)

const pluginName = "grinderlogger"

type Plugin struct {
	deps    *cog.Deps
	router  *cog.Router
	config  Config
	logger  *slog.Logger
	poller  *poller.Poller
	session cog.Session
}

func NewPlugin(deps *cog.Deps, h slog.Handler) *Plugin {
	p := &Plugin{
		deps:   deps,
		config: DefaultConfig(),
		logger: slog.New(h).With(slog.String("plugin", pluginName)),
	}

	p.router = cog.NewRouter(deps, p.logger)
	p.router.Add(p.command())

	p.poller = poller.New(pluginName,
		p.config.pollInterval(),
		time.Duration(p.config.GuildDelayMs)*time.Millisecond,
		func(ctx context.Context) ([]string, error) {
			return deps.Store.GuildIDs(ctx, pluginName)
		},
		p.step,
		h,
	)

	return p
}

func (p *Plugin) Name() string {
	return "GrinderLogger"
}

func (p *Plugin) Description() string {
	return "Tracks grinder payments and reminds grinders when they are due"
}

func (p *Plugin) Handlers() map[string]any {
	handlers := make(map[string]any)

	handlers["grinderlogger_interaction_handler"] = p.router.InteractionHandler()
	handlers["grinderlogger_message_handler"] = p.router.MessageHandler()

	return handlers
}

func (p *Plugin) Commands() map[string]*discordgo.ApplicationCommand {
	return p.router.ApplicationCommands()
}

func (p *Plugin) Intents() []discordgo.Intent {
	return []discordgo.Intent{discordgo.IntentsGuildMessages, discordgo.IntentsMessageContent}
}

func (p *Plugin) Config() *Config {
	return &p.config
}

// Start begins sending due reminders through s.
func (p *Plugin) Start(ctx context.Context, s cog.Session) {
	p.session = s
	p.poller.Start(ctx)
}

func (p *Plugin) Stop() {
	p.poller.Stop()
}

func (p *Plugin) key(guildID string) store.Key {
	return store.GuildKey(pluginName, guildID)
}

func (p *Plugin) managerRoles(ctx context.Context, guildID string) ([]string, error) {
	doc, err := store.View[guildDoc](ctx, p.deps.Store, p.key(guildID))
	if err != nil {
		return nil, err
	}
	return doc.ManagerRoles, nil
}

func (p *Plugin) step(ctx context.Context, guildID string) error {
	return p.remindDue(ctx, p.session, guildID)
}

// remindDue DMs every grinder of guildID that became overdue since the last tick and reports them in the grinder
// channel. Each overdue period is reminded once.
func (p *Plugin) remindDue(ctx context.Context, s cog.Session, guildID string) error {
	now := p.deps.Time().Unix()

	var due []dueGrinder
	var channelID string
	err := store.Update(ctx, p.deps.Store, p.key(guildID), func(doc *guildDoc) error {
		due = doc.remindable(now)
		channelID = doc.Channel
		return nil
	})
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	var b strings.Builder
	for _, g := range due {
		_, err = cog.SendDM(s, g.UserID, &discordgo.MessageSend{
			Content: fmt.Sprintf(p.config.Responses.Reminder, g.Due),
		})
		if err != nil {
			p.logger.Warn("failed to DM overdue grinder",
				slog.String("guild_id", guildID),
				slog.String("user_id", g.UserID),
				slog.String("error", err.Error()),
			)
		}

		fmt.Fprintf(&b, "<@%s> due <t:%d:R>", g.UserID, g.Due)
		if err != nil {
			b.WriteString(" (DM failed)")
		}
		b.WriteString("\n")
	}

	p.logger.Info("reminded overdue grinders", slog.String("guild_id", guildID), slog.Int("count", len(due)))

	if channelID == "" {
		return nil
	}

	_, err = s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Overdue grinders",
			Description: b.String(),
			Color:       p.config.EmbedColor,
		}},
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	if err != nil && !cog.IsForbidden(err) && !cog.IsNotFound(err) {
		return err
	}
	if err != nil {
		p.logger.Warn("failed to report overdue grinders", slog.String("guild_id", guildID), slog.String("error", err.Error()))
	}

	return nil
}

// DeleteUserData drops userID's grinder records everywhere.
func (p *Plugin) DeleteUserData(ctx context.Context, userID string) error {
	guildIDs, err := p.deps.Store.GuildIDs(ctx, pluginName)
	if err != nil {
		return err
	}

	for _, guildID := range guildIDs {
		err = store.Update(ctx, p.deps.Store, p.key(guildID), func(doc *guildDoc) error {
			delete(doc.Grinders, userID)
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}
