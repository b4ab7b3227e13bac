package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/olympus-go/cogs/afk"
	"github.com/olympus-go/cogs/cog"
	"github.com/olympus-go/cogs/config"
	"github.com/olympus-go/cogs/customerror"
	"github.com/olympus-go/cogs/donationlogger"
	"github.com/olympus-go/cogs/giveawayping"
	"github.com/olympus-go/cogs/globalban"
	"github.com/olympus-go/cogs/grinderlogger"
	"github.com/olympus-go/cogs/logger"
	"github.com/olympus-go/cogs/noobtools"
	"github.com/olympus-go/cogs/stats"
	"github.com/olympus-go/cogs/store"
	"github.com/olympus-go/cogs/suggestions"
	"github.com/olympus-go/cogs/timers"
)

type hostConfig struct {
	Token       string     `env:"DISCORD_TOKEN,required"`
	Prefix      string     `env:"COGBOT_PREFIX" envDefault:"?"`
	Owners      []string   `env:"COGBOT_OWNERS"`
	StoreDriver string     `env:"COGBOT_STORE_DRIVER" envDefault:"sqlite"`
	StorePath   string     `env:"COGBOT_STORE_PATH" envDefault:"cogbot.db"`
	LogLevel    slog.Level `env:"COGBOT_LOG_LEVEL" envDefault:"info"`
	GuildID     string     `env:"COGBOT_GUILD_ID"`
}

type plugin interface {
	Name() string
	Handlers() map[string]any
	Commands() map[string]*discordgo.ApplicationCommand
	Intents() []discordgo.Intent
}

type poller interface {
	Start(ctx context.Context, s cog.Session)
	Stop()
}

func main() {
	_ = godotenv.Load()

	var cfg hostConfig
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "parse env: %v\n", err)
		os.Exit(1)
	}

	h := tint.NewHandler(os.Stderr, &tint.Options{Level: cfg.LogLevel, TimeFormat: time.DateTime})
	log := slog.New(h)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, h); err != nil {
		log.Error("cogbot stopped", tint.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg hostConfig, h slog.Handler) error {
	log := slog.New(h)

	st, err := store.Open(cfg.StoreDriver, cfg.StorePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn("failed to close store", tint.Err(err))
		}
	}()

	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	deps := &cog.Deps{
		Store:  st,
		Owners: cfg.Owners,
		Prefix: cfg.Prefix,
		Permissions: func(userID string, channelID string) (int64, error) {
			return s.State.UserChannelPermissions(userID, channelID)
		},
		Guilds: func() []string {
			s.State.RLock()
			defer s.State.RUnlock()

			ids := make([]string, 0, len(s.State.Guilds))
			for _, g := range s.State.Guilds {
				ids = append(ids, g.ID)
			}
			return ids
		},
	}
	deps.Views = cog.NewViews(h, deps.IsOwner)

	errorsPlugin := customerror.NewPlugin(deps, h)
	if err = errorsPlugin.Load(ctx); err != nil {
		return fmt.Errorf("load error message: %w", err)
	}
	deps.Errors = errorsPlugin

	afkPlugin := afk.NewPlugin(deps, h)
	donationPlugin := donationlogger.NewPlugin(deps, h)
	suggestionsPlugin := suggestions.NewPlugin(deps, h)
	timersPlugin := timers.NewPlugin(deps, h)
	globalbanPlugin := globalban.NewPlugin(deps, h)
	grinderPlugin := grinderlogger.NewPlugin(deps, h)
	noobtoolsPlugin := noobtools.NewPlugin(deps, h)
	gpingPlugin := giveawayping.NewPlugin(deps, h)

	configPlugin := config.NewPlugin(deps, h)
	configPlugin.AddConfig("afk", afkPlugin.Config(), nil)
	configPlugin.AddConfig("customerror", errorsPlugin.Config(), nil)
	configPlugin.AddConfig("donationlogger", donationPlugin.Config(), nil)
	configPlugin.AddConfig("giveawayping", gpingPlugin.Config(), nil)
	configPlugin.AddConfig("globalban", globalbanPlugin.Config(), nil)
	configPlugin.AddConfig("grinderlogger", grinderPlugin.Config(), nil)
	configPlugin.AddConfig("noobtools", noobtoolsPlugin.Config(), nil)
	configPlugin.AddConfig("suggestions", suggestionsPlugin.Config(), nil)
	configPlugin.AddConfig("timers", timersPlugin.Config(), nil)

	statsPlugin := stats.NewPlugin(deps, h)
	statsPlugin.AddStat("Store", cfg.StoreDriver)
	for _, name := range []string{"afk", "customerror", "donationlogger", "giveawayping", "globalban", "grinderlogger", "noobtools", "suggestions", "timers"} {
		statsPlugin.AddDocumentCount(name)
	}

	plugins := []plugin{
		afkPlugin,
		donationPlugin,
		suggestionsPlugin,
		timersPlugin,
		globalbanPlugin,
		errorsPlugin,
		grinderPlugin,
		noobtoolsPlugin,
		gpingPlugin,
		configPlugin,
		statsPlugin,
		logger.NewPlugin(h, slog.LevelInfo, cfg.Prefix),
	}

	s.AddHandler(deps.Views.Handler)
	for _, p := range plugins {
		for name, handler := range p.Handlers() {
			s.AddHandler(handler)
			log.Debug("registered handler", slog.String("plugin", p.Name()), slog.String("handler", name))
		}
	}
	s.Identify.Intents = intents(plugins)

	if err = s.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Warn("failed to close session", tint.Err(err))
		}
	}()

	commands := applicationCommands(plugins)
	if _, err = s.ApplicationCommandBulkOverwrite(s.State.User.ID, cfg.GuildID, commands); err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	log.Info("registered application commands", slog.Int("count", len(commands)), slog.String("guild_id", cfg.GuildID))

	pollers := []poller{timersPlugin, grinderPlugin, noobtoolsPlugin}
	for _, p := range pollers {
		p.Start(ctx, s)
	}
	defer func() {
		for _, p := range pollers {
			p.Stop()
		}
	}()

	log.Info("cogbot is running", slog.String("user", s.State.User.Username), slog.Int("plugins", len(plugins)))
	<-ctx.Done()
	log.Info("shutting down")

	return nil
}

// intents folds the gateway intents every plugin asks for. Guilds is always on, the guild list depends on it.
func intents(plugins []plugin) discordgo.Intent {
	mask := discordgo.IntentsGuilds
	for _, p := range plugins {
		for _, intent := range p.Intents() {
			mask |= intent
		}
	}
	return mask
}

// applicationCommands collects the slash commands of every plugin, ordered by name.
func applicationCommands(plugins []plugin) []*discordgo.ApplicationCommand {
	var commands []*discordgo.ApplicationCommand
	for _, p := range plugins {
		for _, command := range p.Commands() {
			commands = append(commands, command)
		}
	}
	sort.Slice(commands, func(i, j int) bool {
		return commands[i].Name < commands[j].Name
	})
	return commands
}
