package timers

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/olympus-go/cogs/cog"
	"github.com/olympus-go/cogs/poller"
	"github.com/olympus-go/cogs/store"
)

const (
	pluginName   = "timers"
	remindPrefix = "timers_remind"
)

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
	p.router.Component(remindPrefix, p.remind)

	p.poller = poller.New(pluginName,
		time.Duration(p.config.PollSeconds)*time.Second,
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
	return "Timers"
}

func (p *Plugin) Description() string {
	return "Countdown timers that ping whoever asked to be reminded"
}

func (p *Plugin) Handlers() map[string]any {
	handlers := make(map[string]any)

	handlers["timers_interaction_handler"] = p.router.InteractionHandler()
	handlers["timers_message_handler"] = p.router.MessageHandler()
	handlers["timers_message_delete_handler"] = func(_ *discordgo.Session, m *discordgo.MessageDelete) {
		p.prune(context.Background(), m.GuildID, m.ID)
	}
	handlers["timers_message_delete_bulk_handler"] = func(_ *discordgo.Session, m *discordgo.MessageDeleteBulk) {
		p.prune(context.Background(), m.GuildID, m.Messages...)
	}

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

// Start begins ending due timers through s. It must be called once the session is open.
func (p *Plugin) Start(ctx context.Context, s cog.Session) {
	p.session = s
	p.poller.Start(ctx)
}

func (p *Plugin) Stop() {
	p.poller.Stop()
}

func (p *Plugin) step(ctx context.Context, guildID string) error {
	return p.endDue(ctx, p.session, guildID)
}

// prune forgets the timers backed by the given messages, e.g. after they were deleted.
func (p *Plugin) prune(ctx context.Context, guildID string, messageIDs ...string) {
	if guildID == "" {
		return
	}

	err := store.Update(ctx, p.deps.Store, store.GuildKey(pluginName, guildID), func(doc *guildDoc) error {
		for _, id := range messageIDs {
			delete(doc.Timers, id)
		}
		return nil
	})
	if err != nil {
		p.logger.Error("failed to prune timers", slog.String("guild_id", guildID), slog.String("error", err.Error()))
	}
}

// DeleteUserData removes userID from every reminder list and anonymizes the timers they host.
func (p *Plugin) DeleteUserData(ctx context.Context, userID string) error {
	guildIDs, err := p.deps.Store.GuildIDs(ctx, pluginName)
	if err != nil {
		return err
	}

	for _, guildID := range guildIDs {
		err = store.Update(ctx, p.deps.Store, store.GuildKey(pluginName, guildID), func(doc *guildDoc) error {
			for _, t := range doc.Timers {
				for i, id := range t.Members {
					if id == userID {
						t.Members = append(t.Members[:i], t.Members[i+1:]...)
						break
					}
				}
				if t.HostID == userID {
					t.HostID = deletedUserID
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}
