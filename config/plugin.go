package config

import (
	"log/slog"
	"sort"

	"github.com/bwmarrin/discordgo"
	"github.com/eolso/threadsafe"
	"github.com/olympus-go/cogs/cog"
)

const pluginName = "config"

// Plugin stores configs from other plugins. The commands for this plugin are generated from what is added to it at
// the time of initialization, so this plugin should be added last.
type Plugin struct {
	deps    *cog.Deps
	router  *cog.Router
	root    *cog.Command
	configs *threadsafe.Map[string, *configReloader]
	logger  *slog.Logger
}

type configReloader struct {
	config any
	fn     func()
}

// NewPlugin creates a new config plugin. Reading configs is open to everyone, changing them is limited to the bot
// owners in deps.
func NewPlugin(deps *cog.Deps, h slog.Handler) *Plugin {
	p := &Plugin{
		deps:    deps,
		configs: threadsafe.NewMap[string, *configReloader](),
		logger:  slog.New(h).With(slog.String("plugin", pluginName)),
	}

	p.root = &cog.Command{
		Name:        "config",
		Description: "Get or update plugin configs",
	}
	p.router = cog.NewRouter(deps, p.logger)
	p.router.Add(p.root)

	return p
}

func (p *Plugin) Name() string {
	return "Config"
}

func (p *Plugin) Description() string {
	return "Helps manage configs for all your plugins."
}

func (p *Plugin) Handlers() map[string]any {
	handlers := make(map[string]any)

	handlers["config_interaction_handler"] = p.router.InteractionHandler()
	handlers["config_message_handler"] = p.router.MessageHandler()

	return handlers
}

func (p *Plugin) Commands() map[string]*discordgo.ApplicationCommand {
	if len(p.root.Subcommands) == 0 {
		return nil
	}
	return p.router.ApplicationCommands()
}

func (p *Plugin) Intents() []discordgo.Intent {
	return nil
}

// AddConfig registers config, a pointer to a plugin's config struct, under name. fn runs after every successful
// update and may be nil.
func (p *Plugin) AddConfig(name string, config any, fn func()) {
	p.configs.Set(name, &configReloader{
		config: config,
		fn:     fn,
	})

	p.root.Subcommands = append(p.root.Subcommands, p.configCommand(name))
	sort.Slice(p.root.Subcommands, func(i, j int) bool {
		return p.root.Subcommands[i].Name < p.root.Subcommands[j].Name
	})
}

func (p *Plugin) configCommand(name string) *cog.Command {
	return &cog.Command{
		Name:        name,
		Description: "Get or update the " + name + " config",
		Subcommands: []*cog.Command{
			{
				Name:        "get",
				Description: "Print out the current " + name + " config",
				Options: []cog.Option{{
					Name:        "key",
					Description: "The key of the config setting. An empty value here will return the entire config.",
				}},
				Run: p.get(name),
			},
			{
				Name:        "set",
				Description: "Update a " + name + " config setting",
				Checks:      []cog.Check{cog.OwnerOnly},
				Options: []cog.Option{
					{Name: "key", Description: "The key of the config setting", Required: true},
					{Name: "value", Description: "The new desired value", Required: true, Rest: true},
				},
				Run: p.set(name),
			},
		},
	}
}
