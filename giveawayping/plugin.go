package giveawayping

import (
	_ "embed"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/olympus-go/cogs/cog"
	"github.com/olympus-go/cogs/store"
)

const pluginName = "giveawayping"

//go:embed default_config.json
var DefaultConfigStr string

type Config struct {
	CooldownSeconds  int    `json:"CooldownSeconds"`
	MaxMessageLength int    `json:"MaxMessageLength"`
	DefaultTemplate  string `json:"DefaultTemplate"`
	Responses        struct {
		NotSetUp string `json:"NotSetUp"`
		Disabled string `json:"Disabled"`
	} `json:"Responses"`
}

func DefaultConfig() Config {
	var config Config

	_ = json.Unmarshal([]byte(DefaultConfigStr), &config)

	return config
}

type guildDoc struct {
	Role     string `json:"role"`
	Template string `json:"template"`
	Enabled  bool   `json:"enabled"`
}

func (d *guildDoc) SetDefaults() {
	d.Enabled = true
}

// render fills the {role}, {user} and {message} placeholders of template.
func render(template, roleID, userName, message string) string {
	text := strings.NewReplacer(
		"{role}", "<@&"+roleID+">",
		"{user}", userName,
		"{message}", message,
	).Replace(template)

	return strings.TrimSpace(text)
}

type Plugin struct {
	deps     *cog.Deps
	router   *cog.Router
	config   Config
	cooldown *cog.Cooldown
	logger   *slog.Logger
}

func NewPlugin(deps *cog.Deps, h slog.Handler) *Plugin {
	p := &Plugin{
		deps:   deps,
		config: DefaultConfig(),
		logger: slog.New(h).With(slog.String("plugin", pluginName)),
	}

	p.cooldown = cog.NewCooldown(1, time.Duration(p.config.CooldownSeconds)*time.Second)
	p.router = cog.NewRouter(deps, p.logger)
	p.router.Add(p.command())

	return p
}

func (p *Plugin) Name() string {
	return "GiveawayPing"
}

func (p *Plugin) Description() string {
	return "Pings the giveaway role with a server template"
}

func (p *Plugin) Handlers() map[string]any {
	handlers := make(map[string]any)

	handlers["giveawayping_interaction_handler"] = p.router.InteractionHandler()
	handlers["giveawayping_message_handler"] = p.router.MessageHandler()

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

func (p *Plugin) key(guildID string) store.Key {
	return store.GuildKey(pluginName, guildID)
}

func (p *Plugin) template(doc guildDoc) string {
	if doc.Template == "" {
		return p.config.DefaultTemplate
	}
	return doc.Template
}
