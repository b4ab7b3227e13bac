package stats

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/eolso/threadsafe"
	"github.com/olympus-go/cogs/cog"
)

const pluginName = "stats"

type Plugin struct {
	deps      *cog.Deps
	router    *cog.Router
	functions *threadsafe.Map[string, func(ctx context.Context) string]

	logger *slog.Logger
}

func NewPlugin(deps *cog.Deps, h slog.Handler) *Plugin {
	p := Plugin{
		deps:      deps,
		functions: threadsafe.NewMap[string, func(ctx context.Context) string](),
		logger:    slog.New(h).With(slog.String("plugin", pluginName)),
	}

	startTime := deps.Time()
	p.AddStatFunc("Uptime", func(context.Context) string {
		return deps.Time().Sub(startTime).Round(time.Second).String()
	})
	p.AddStat("Runtime", fmt.Sprintf("%s/%s %s", runtime.GOOS, runtime.GOARCH, runtime.Version()))
	p.AddStatFunc("Goroutines", func(context.Context) string { return fmt.Sprint(runtime.NumGoroutine()) })
	p.AddStatFunc("Guilds", func(context.Context) string { return fmt.Sprint(len(deps.GuildIDs())) })

	p.router = cog.NewRouter(deps, p.logger)
	p.router.Add(&cog.Command{
		Name:        "stats",
		Description: "Displays bot stats",
		Run:         p.stats,
	})

	return &p
}

func (p *Plugin) Name() string {
	return "Stats"
}

func (p *Plugin) Description() string {
	return "Prints out various technical stats"
}

func (p *Plugin) Handlers() map[string]any {
	handlers := make(map[string]any)

	handlers["stats_interaction_handler"] = p.router.InteractionHandler()
	handlers["stats_message_handler"] = p.router.MessageHandler()

	return handlers
}

func (p *Plugin) Commands() map[string]*discordgo.ApplicationCommand {
	return p.router.ApplicationCommands()
}

func (p *Plugin) Intents() []discordgo.Intent {
	return nil
}

func (p *Plugin) AddStat(key string, value string) {
	p.functions.Set(key, func(context.Context) string { return value })
}

func (p *Plugin) AddStatFunc(key string, fn func(ctx context.Context) string) {
	p.functions.Set(key, fn)
}

// AddDocumentCount reports how many documents plugin keeps in the store.
func (p *Plugin) AddDocumentCount(plugin string) {
	p.AddStatFunc("Documents/"+plugin, func(ctx context.Context) string {
		n, err := p.deps.Store.Count(ctx, plugin)
		if err != nil {
			p.logger.Warn("failed to count documents", slog.String("for", plugin), slog.String("error", err.Error()))
			return "unknown"
		}
		return fmt.Sprint(n)
	})
}
