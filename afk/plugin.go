package afk

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/eolso/threadsafe"
	"github.com/olympus-go/cogs/cog"
	"github.com/olympus-go/cogs/store"
	"golang.org/x/exp/slices"
)

const pluginName = "afk"

type Plugin struct {
	deps   *cog.Deps
	router *cog.Router
	config Config
	logger *slog.Logger
	// guilds caches guild settings, the listener reads them for every message.
	guilds *threadsafe.Map[string, guildDoc]

	// versions counts settings writes per guild. A load only fills the cache when no write happened while it ran.
	mu       sync.Mutex
	versions map[string]uint64
}

func NewPlugin(deps *cog.Deps, h slog.Handler) *Plugin {
	p := &Plugin{
		deps:   deps,
		config: DefaultConfig(),
		logger: slog.New(h).With(slog.String("plugin", pluginName)),
		guilds: threadsafe.NewMap[string, guildDoc](),

		versions: make(map[string]uint64),
	}

	p.router = cog.NewRouter(deps, p.logger)
	p.router.Add(p.command())

	return p
}

func (p *Plugin) Name() string {
	return "AFK"
}

func (p *Plugin) Description() string {
	return "Lets members go AFK and tells whoever pings them"
}

func (p *Plugin) Handlers() map[string]any {
	handlers := make(map[string]any)

	handlers["afk_interaction_handler"] = p.router.InteractionHandler()
	handlers["afk_message_handler"] = func(s *discordgo.Session, m *discordgo.MessageCreate) {
		ctx := context.Background()
		if p.router.HandleMessage(ctx, s, m.Message) {
			return
		}
		p.HandleMessage(ctx, s, m.Message)
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

func (p *Plugin) memberKey(guildID, userID string) store.Key {
	return store.MemberKey(pluginName, guildID, userID)
}

func (p *Plugin) guildKey(guildID string) store.Key {
	return store.GuildKey(pluginName, guildID)
}

func (p *Plugin) guild(ctx context.Context, guildID string) (guildDoc, error) {
	if doc, ok := p.guilds.Get(guildID); ok {
		return doc, nil
	}

	version := p.version(guildID)
	doc, err := store.View[guildDoc](ctx, p.deps.Store, p.guildKey(guildID))
	if err != nil {
		return guildDoc{}, err
	}
	p.cache(guildID, version, doc)

	return doc, nil
}

func (p *Plugin) version(guildID string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.versions[guildID]
}

// cache stores doc unless the settings changed after version was read.
func (p *Plugin) cache(guildID string, version uint64, doc guildDoc) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.versions[guildID] == version {
		p.guilds.Set(guildID, doc)
	}
}

func (p *Plugin) updateGuild(ctx context.Context, guildID string, fn func(doc *guildDoc) error) error {
	err := store.Update(ctx, p.deps.Store, p.guildKey(guildID), fn)

	p.mu.Lock()
	p.versions[guildID]++
	p.guilds.Delete(guildID)
	p.mu.Unlock()

	return err
}

// HandleMessage reacts to ordinary guild messages: an AFK author is welcomed back and AFK members mentioned in the
// message are announced.
func (p *Plugin) HandleMessage(ctx context.Context, s cog.Session, m *discordgo.Message) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" || p.router.IsCommand(m.Content) {
		return
	}

	guild, err := p.guild(ctx, m.GuildID)
	if err != nil {
		p.logger.Error("failed to load guild settings", slog.String("guild_id", m.GuildID), slog.String("error", err.Error()))
		return
	}
	if guild.ignored(m.ChannelID) {
		return
	}

	if err = p.returnFromAFK(ctx, s, m); err != nil {
		p.logger.Error("failed to end AFK",
			slog.String("guild_id", m.GuildID),
			slog.String("user_id", m.Author.ID),
			slog.String("error", err.Error()),
		)
	}

	var notified []string
	for _, u := range m.Mentions {
		if u == nil || u.Bot || u.ID == m.Author.ID || slices.Contains(notified, u.ID) {
			continue
		}
		notified = append(notified, u.ID)

		if err = p.notifyPing(ctx, s, m, u.ID, guild); err != nil {
			p.logger.Error("failed to handle AFK ping",
				slog.String("guild_id", m.GuildID),
				slog.String("user_id", u.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (p *Plugin) returnFromAFK(ctx context.Context, s cog.Session, m *discordgo.Message) error {
	key := p.memberKey(m.GuildID, m.Author.ID)

	exists, err := p.deps.Store.Exists(ctx, key)
	if err != nil || !exists {
		return err
	}

	var back bool
	var logs []PingLog
	var since time.Time
	var restore *string
	err = store.Update(ctx, p.deps.Store, key, func(doc *memberDoc) error {
		if !doc.AFK || doc.Sticky {
			return nil
		}

		back, since = true, doc.since()
		replay := doc.ToggleLogs
		logs = doc.clear()
		if !replay {
			logs = nil
		}
		if doc.NickChanged {
			nick := doc.OriginalNick
			restore = &nick
			doc.OriginalNick, doc.NickChanged = "", false
		}
		return nil
	})
	if err != nil || !back {
		return err
	}

	if restore != nil {
		p.changeNick(s, m.GuildID, m.Author.ID, *restore)
	}

	send := &discordgo.MessageSend{
		Content:         p.welcomeBack(m.Author.ID, since, p.deps.Time()),
		Reference:       m.Reference(),
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}
	if len(logs) > 0 {
		send.Embeds = []*discordgo.MessageEmbed{p.pingLogEmbed(logs)}
	}

	_, err = s.ChannelMessageSendComplex(m.ChannelID, send)
	return err
}

func (p *Plugin) notifyPing(ctx context.Context, s cog.Session, m *discordgo.Message, userID string, guild guildDoc) error {
	key := p.memberKey(m.GuildID, userID)

	exists, err := p.deps.Store.Exists(ctx, key)
	if err != nil || !exists {
		return err
	}

	var afk bool
	var snapshot memberDoc
	err = store.Update(ctx, p.deps.Store, key, func(doc *memberDoc) error {
		if !doc.AFK {
			return nil
		}
		afk = true

		if doc.ToggleLogs {
			doc.log(PingLog{
				PingerID:  m.Author.ID,
				JumpURL:   "https://discord.com/channels/" + m.GuildID + "/" + m.ChannelID + "/" + m.ID,
				ChannelID: m.ChannelID,
				Timestamp: p.deps.Time().Unix(),
				Message:   truncate(m.Content, p.config.MaxLogMessageLength),
			}, p.config.MaxPingLogs)
		}
		snapshot = *doc
		return nil
	})
	if err != nil || !afk {
		return err
	}

	msg, err := s.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Embeds:          []*discordgo.MessageEmbed{p.statusEmbed(userID, &snapshot)},
		Reference:       m.Reference(),
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	if err != nil {
		return err
	}

	if guild.DeleteAfter > 0 {
		time.AfterFunc(time.Duration(guild.DeleteAfter)*time.Second, func() {
			if err := s.ChannelMessageDelete(msg.ChannelID, msg.ID); err != nil && !cog.IsNotFound(err) {
				p.logger.Debug("failed to delete AFK notice", slog.String("error", err.Error()))
			}
		})
	}

	return nil
}

func (p *Plugin) changeNick(s cog.Session, guildID, userID, nick string) bool {
	if err := s.GuildMemberNickname(guildID, userID, nick); err != nil {
		level := slog.LevelError
		if cog.IsForbidden(err) {
			level = slog.LevelDebug
		}
		p.logger.Log(context.Background(), level, "failed to change nickname",
			slog.String("guild_id", guildID),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// DeleteUserData forgets userID's AFK state in every guild and anonymizes the pings they left for others.
func (p *Plugin) DeleteUserData(ctx context.Context, userID string) error {
	keys, err := p.deps.Store.Keys(ctx, pluginName, store.ScopeMember)
	if err != nil {
		return err
	}

	for _, key := range keys {
		if key.UserID == userID {
			if err = p.deps.Store.Delete(ctx, key); err != nil {
				return err
			}
			continue
		}

		err = store.Update(ctx, p.deps.Store, key, func(doc *memberDoc) error {
			for i := range doc.PingLogs {
				if doc.PingLogs[i].PingerID == userID {
					doc.PingLogs[i].PingerID = deletedUserID
					doc.PingLogs[i].Message = ""
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
