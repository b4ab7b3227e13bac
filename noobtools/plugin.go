package noobtools

import (
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/olympus-go/cogs/cog"
	"github.com/olympus-go/cogs/poller"
	"github.com/olympus-go/cogs/store"
)

const pluginName = "noobtools"

//go:embed default_config.json
var DefaultConfigStr string

type Config struct {
	PollSeconds        int `json:"PollSeconds"`
	GuildDelayMs       int `json:"GuildDelayMs"`
	MinIntervalSeconds int `json:"MinIntervalSeconds"`
	MaxIntervalSeconds int `json:"MaxIntervalSeconds"`
	MaxColors          int `json:"MaxColors"`
	MaxRotations       int `json:"MaxRotations"`
	EmbedColor         int `json:"EmbedColor"`
}

func DefaultConfig() Config {
	var config Config

	_ = json.Unmarshal([]byte(DefaultConfigStr), &config)

	return config
}

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
	return "NoobTools"
}

func (p *Plugin) Description() string {
	return "Small server tools such as rotating role colors"
}

func (p *Plugin) Handlers() map[string]any {
	handlers := make(map[string]any)

	handlers["noobtools_interaction_handler"] = p.router.InteractionHandler()
	handlers["noobtools_message_handler"] = p.router.MessageHandler()
	handlers["noobtools_role_delete_handler"] = func(_ *discordgo.Session, r *discordgo.GuildRoleDelete) {
		p.forgetRole(context.Background(), r.GuildID, r.RoleID)
	}

	return handlers
}

func (p *Plugin) Commands() map[string]*discordgo.ApplicationCommand {
	return p.router.ApplicationCommands()
}

func (p *Plugin) Intents() []discordgo.Intent {
	return []discordgo.Intent{discordgo.IntentsGuilds, discordgo.IntentsGuildMessages, discordgo.IntentsMessageContent}
}

func (p *Plugin) Config() *Config {
	return &p.config
}

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

func (p *Plugin) step(ctx context.Context, guildID string) error {
	return p.rotate(ctx, p.session, guildID)
}

// rotate applies the next color of every due rotation in guildID. Roles the bot can't edit are skipped until the
// next change; deleted roles stop rotating.
func (p *Plugin) rotate(ctx context.Context, s cog.Session, guildID string) error {
	now := p.deps.Time().Unix()

	var due []roleColor
	err := store.Update(ctx, p.deps.Store, p.key(guildID), func(doc *guildDoc) error {
		due = doc.due(now)
		return nil
	})
	if err != nil {
		return err
	}

	for _, rc := range due {
		color := rc.Color
		_, err = s.GuildRoleEdit(guildID, rc.RoleID, &discordgo.RoleParams{Color: &color})
		switch {
		case err == nil:
		case cog.IsNotFound(err):
			p.forgetRole(ctx, guildID, rc.RoleID)
		case cog.IsForbidden(err):
			p.logger.Warn("missing permissions to edit role color",
				slog.String("guild_id", guildID),
				slog.String("role_id", rc.RoleID),
			)
		default:
			p.logger.Error("failed to edit role color",
				slog.String("guild_id", guildID),
				slog.String("role_id", rc.RoleID),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

func (p *Plugin) forgetRole(ctx context.Context, guildID string, roleID string) {
	if guildID == "" {
		return
	}

	err := store.Update(ctx, p.deps.Store, p.key(guildID), func(doc *guildDoc) error {
		delete(doc.RoleColors, roleID)
		return nil
	})
	if err != nil {
		p.logger.Error("failed to forget role", slog.String("guild_id", guildID), slog.String("error", err.Error()))
	}
}
