package suggestions

import (
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/olympus-go/cogs/cog"
	"github.com/olympus-go/cogs/store"
)

const pluginName = "suggestions"

//go:embed default_config.json
var DefaultConfigStr string

type Config struct {
	MaxLength int `json:"MaxLength"`
	Colors    struct {
		Running  int `json:"Running"`
		Approved int `json:"Approved"`
		Rejected int `json:"Rejected"`
	} `json:"Colors"`
	Responses struct {
		NotSetUp  string `json:"NotSetUp"`
		Closed    string `json:"Closed"`
		SelfVote  string `json:"SelfVote"`
		Submitted string `json:"Submitted"`
	} `json:"Responses"`
}

func DefaultConfig() Config {
	var config Config

	_ = json.Unmarshal([]byte(DefaultConfigStr), &config)

	return config
}

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
	p.router.Add(p.commands()...)
	p.router.Component("suggestions_up_", p.voteHandler(Upvote))
	p.router.Component("suggestions_down_", p.voteHandler(Downvote))

	return p
}

func (p *Plugin) Name() string {
	return "Suggestions"
}

func (p *Plugin) Description() string {
	return "Lets members post suggestions and vote on them"
}

func (p *Plugin) Handlers() map[string]any {
	handlers := make(map[string]any)

	handlers["suggestions_interaction_handler"] = p.router.InteractionHandler()
	handlers["suggestions_message_handler"] = p.router.MessageHandler()

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

// DeleteUserData drops userID's votes and detaches them from the suggestions they submitted or reviewed.
func (p *Plugin) DeleteUserData(ctx context.Context, userID string) error {
	guildIDs, err := p.deps.Store.GuildIDs(ctx, pluginName)
	if err != nil {
		return err
	}

	for _, guildID := range guildIDs {
		err = store.Update(ctx, p.deps.Store, p.key(guildID), func(doc *guildDoc) error {
			for _, s := range doc.Suggestions {
				s.Upvotes = remove(s.Upvotes, userID)
				s.Downvotes = remove(s.Downvotes, userID)
				if s.SuggesterID == userID {
					s.SuggesterID = deletedUserID
				}
				if s.ReviewerID == userID {
					s.ReviewerID = deletedUserID
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
