package logger

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

type Plugin struct {
	logger *slog.Logger
	level  slog.Level
	prefix string
}

// NewPlugin logs every slash command, component click and prefix command at level. An empty prefix disables
// prefix command logging.
func NewPlugin(h slog.Handler, level slog.Level, prefix string) *Plugin {
	return &Plugin{
		logger: slog.New(h).With(slog.String("plugin", "logger")),
		level:  level,
		prefix: prefix,
	}
}

func (p *Plugin) Name() string {
	return "Logger"
}

func (p *Plugin) Description() string {
	return "Logs high level interaction usage"
}

func (p *Plugin) Handlers() map[string]any {
	handlers := make(map[string]any)

	handlers["logger_interaction_handler"] = p.interactionHandler
	handlers["logger_message_handler"] = p.messageHandler

	return handlers
}

func (p *Plugin) Commands() map[string]*discordgo.ApplicationCommand {
	return nil
}

func (p *Plugin) Intents() []discordgo.Intent {
	return nil
}
