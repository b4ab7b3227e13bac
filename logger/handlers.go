package logger

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/olympus-go/eris/utils"
)

func (p *Plugin) interactionHandler(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	p.logInteraction(context.Background(), i.Interaction)
}

func (p *Plugin) messageHandler(_ *discordgo.Session, m *discordgo.MessageCreate) {
	p.logMessage(context.Background(), m.Message)
}

func (p *Plugin) logInteraction(ctx context.Context, i *discordgo.Interaction) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		p.logger.Log(ctx, p.level, "user used slash command",
			slog.String("command", utils.CommandDataString(i.ApplicationCommandData())),
			slog.Any("user", utils.GetInteractionUser(i)),
			slog.String("guild_id", i.GuildID),
		)
	case discordgo.InteractionMessageComponent:
		p.logger.Log(ctx, p.level, "user interacted with message component",
			slog.Any("message_component", utils.MessageComponentInterface(i.MessageComponentData())),
			slog.Any("user", utils.GetInteractionUser(i)),
			slog.String("guild_id", i.GuildID),
		)
	}
}

func (p *Plugin) logMessage(ctx context.Context, m *discordgo.Message) {
	if p.prefix == "" || m.Author == nil || m.Author.Bot || !strings.HasPrefix(m.Content, p.prefix) {
		return
	}

	fields := strings.Fields(strings.TrimPrefix(m.Content, p.prefix))
	if len(fields) == 0 {
		return
	}

	p.logger.Log(ctx, p.level, "user used prefix command",
		slog.String("command", fields[0]),
		slog.Int("args", len(fields)-1),
		slog.String("user_id", m.Author.ID),
		slog.String("user", m.Author.Username),
		slog.String("guild_id", m.GuildID),
	)
}
