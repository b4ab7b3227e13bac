package customerror

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/olympus-go/cogs/cog"
	"github.com/olympus-go/cogs/store"
)

const pluginName = "customerror"

//go:embed default_config.json
var DefaultConfigStr string

type Config struct {
	DefaultMessage string `json:"DefaultMessage"`
	MaxLength      int    `json:"MaxLength"`
}

func DefaultConfig() Config {
	var config Config

	_ = json.Unmarshal([]byte(DefaultConfigStr), &config)

	return config
}

type globalDoc struct {
	Message string `json:"message"`
}

// Plugin renders unexpected command failures with an owner-defined template. It satisfies cog.ErrorFormatter.
type Plugin struct {
	deps   *cog.Deps
	router *cog.Router
	config Config
	logger *slog.Logger

	mu      sync.RWMutex
	message string
}

var _ cog.ErrorFormatter = (*Plugin)(nil)

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
	return "CustomError"
}

func (p *Plugin) Description() string {
	return "Customizes the message shown when a command fails"
}

func (p *Plugin) Handlers() map[string]any {
	handlers := make(map[string]any)

	handlers["customerror_interaction_handler"] = p.router.InteractionHandler()
	handlers["customerror_message_handler"] = p.router.MessageHandler()

	return handlers
}

func (p *Plugin) Commands() map[string]*discordgo.ApplicationCommand {
	return p.router.ApplicationCommands()
}

func (p *Plugin) Intents() []discordgo.Intent {
	return []discordgo.Intent{discordgo.IntentsGuildMessages, discordgo.IntentsDirectMessages, discordgo.IntentsMessageContent}
}

func (p *Plugin) Config() *Config {
	return &p.config
}

// Load reads the stored template. It is called once before the bot starts handling events.
func (p *Plugin) Load(ctx context.Context) error {
	doc, err := store.View[globalDoc](ctx, p.deps.Store, store.GlobalKey(pluginName))
	if err != nil {
		return fmt.Errorf("failed to load error template: %w", err)
	}

	p.setMessage(doc.Message)
	return nil
}

func (p *Plugin) setMessage(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.message = message
}

func (p *Plugin) template() string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.message == "" {
		return p.config.DefaultMessage
	}
	return p.message
}

func (p *Plugin) FormatError(command string, err error) string {
	return render(p.template(), command, err)
}

func render(template string, command string, err error) string {
	text := "unknown error"
	if err != nil {
		text = err.Error()
	}

	return strings.NewReplacer("{command}", command, "{error}", text).Replace(template)
}
