package donationlogger

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/olympus-go/cogs/cog"
	"github.com/olympus-go/cogs/store"
)

const pluginName = "donationlogger"

type Plugin struct {
	deps   *cog.Deps
	router *cog.Router
	config Config
	logger *slog.Logger
}

func NewPlugin(deps *cog.Deps, h slog.Handler) *Plugin {
	p := &Plugin{
		deps:   deps,
		config: DefaultConfig(),
		logger: slog.New(h).With(slog.String("plugin", pluginName)),
	}

	p.router = cog.NewRouter(deps, p.logger)
	p.router.Add(p.command())

	return p
}

func (p *Plugin) Name() string {
	return "DonationLogger"
}

func (p *Plugin) Description() string {
	return "Tracks member donations per bank and hands out roles at thresholds"
}

func (p *Plugin) Handlers() map[string]any {
	handlers := make(map[string]any)

	handlers["donationlogger_interaction_handler"] = p.router.InteractionHandler()
	handlers["donationlogger_message_handler"] = p.router.MessageHandler()

	return handlers
}

func (p *Plugin) Commands() map[string]*discordgo.ApplicationCommand {
	return p.router.ApplicationCommands()
}

func (p *Plugin) Intents() []discordgo.Intent {
	return []discordgo.Intent{discordgo.IntentsGuildMessages, discordgo.IntentsMessageContent}
}

// Config exposes the process configuration so it can be edited at runtime.
func (p *Plugin) Config() *Config {
	return &p.config
}

func (p *Plugin) confirmTimeout() time.Duration {
	if p.config.ConfirmTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(p.config.ConfirmTimeout) * time.Second
}

func (p *Plugin) managerRoles(ctx context.Context, guildID string) ([]string, error) {
	doc, err := store.View[guildDoc](ctx, p.deps.Store, store.GuildKey(pluginName, guildID))
	if err != nil {
		return nil, err
	}
	return doc.ManagerRoles, nil
}

// DeleteUserData anonymizes userID in every bank of every guild while keeping bank totals intact.
func (p *Plugin) DeleteUserData(ctx context.Context, userID string) error {
	guildIDs, err := p.deps.Store.GuildIDs(ctx, pluginName)
	if err != nil {
		return err
	}

	for _, guildID := range guildIDs {
		err = store.Update(ctx, p.deps.Store, store.GuildKey(pluginName, guildID), func(doc *guildDoc) error {
			for _, bank := range doc.Banks {
				bank.forget(userID)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}
