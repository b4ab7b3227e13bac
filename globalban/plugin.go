package globalban

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/olympus-go/cogs/cog"
	"github.com/olympus-go/cogs/store"
)

const pluginName = "globalban"

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
	return "GlobalBan"
}

func (p *Plugin) Description() string {
	return "Bans users from every server the bot is in"
}

func (p *Plugin) Handlers() map[string]any {
	handlers := make(map[string]any)

	handlers["globalban_interaction_handler"] = p.router.InteractionHandler()
	handlers["globalban_message_handler"] = p.router.MessageHandler()
	handlers["globalban_member_add_handler"] = func(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
		p.HandleMemberAdd(context.Background(), s, m.Member)
	}

	return handlers
}

func (p *Plugin) Commands() map[string]*discordgo.ApplicationCommand {
	return p.router.ApplicationCommands()
}

func (p *Plugin) Intents() []discordgo.Intent {
	return []discordgo.Intent{discordgo.IntentsGuildMessages, discordgo.IntentsMessageContent, discordgo.IntentsGuildMembers}
}

func (p *Plugin) Config() *Config {
	return &p.config
}

func (p *Plugin) key() store.Key {
	return store.GlobalKey(pluginName)
}

// HandleMemberAdd bans members that join while on the global ban list.
func (p *Plugin) HandleMemberAdd(ctx context.Context, s cog.Session, m *discordgo.Member) {
	if m == nil || m.User == nil {
		return
	}

	doc, err := store.View[globalDoc](ctx, p.deps.Store, p.key())
	if err != nil {
		p.logger.Error("failed to load ban list", slog.String("error", err.Error()))
		return
	}
	if !doc.banned(m.User.ID) {
		return
	}

	reason := p.config.AuditPrefix
	for i := len(doc.BanLogs) - 1; i >= 0; i-- {
		if l := doc.BanLogs[i]; l.Offender == m.User.ID && l.Type == ActionBan {
			reason = p.auditReason(l.Reason, l.Authorizer)
			break
		}
	}

	if err = s.GuildBanCreateWithReason(m.GuildID, m.User.ID, reason, 0); err != nil {
		p.logger.Warn("failed to ban globally banned member on join",
			slog.String("guild_id", m.GuildID),
			slog.String("user_id", m.User.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	p.logger.Info("banned globally banned member on join",
		slog.String("guild_id", m.GuildID),
		slog.String("user_id", m.User.ID),
	)
}

func (p *Plugin) auditReason(reason, authorizer string) string {
	r := fmt.Sprintf("%s by %s: %s", p.config.AuditPrefix, authorizer, reason)
	if len(r) > 512 {
		r = r[:512]
	}
	return r
}

// DeleteUserData anonymizes userID as authorizer or amender of ban cases. Offenders stay listed so bans keep being
// enforced.
func (p *Plugin) DeleteUserData(ctx context.Context, userID string) error {
	return store.Update(ctx, p.deps.Store, p.key(), func(doc *globalDoc) error {
		doc.forget(userID)
		return nil
	})
}
