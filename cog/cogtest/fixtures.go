package cogtest

import (
	"fmt"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
)

var interactionSeq atomic.Int64

// Message builds a guild message from userID carrying the given member roles.
func Message(guildID, channelID, userID, content string, roles ...string) *discordgo.Message {
	author := &discordgo.User{ID: userID, Username: "user" + userID}
	return &discordgo.Message{
		ID:        fmt.Sprintf("m%d", interactionSeq.Add(1)),
		GuildID:   guildID,
		ChannelID: channelID,
		Content:   content,
		Author:    author,
		Member:    &discordgo.Member{User: author, Roles: roles},
	}
}

func member(userID string, permissions int64, roles []string) *discordgo.Member {
	return &discordgo.Member{
		User:        &discordgo.User{ID: userID, Username: "user" + userID},
		Roles:       roles,
		Permissions: permissions,
	}
}

// Slash builds an application command interaction.
func Slash(guildID, channelID, userID string, permissions int64, data discordgo.ApplicationCommandInteractionData) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:        fmt.Sprintf("i%d", interactionSeq.Add(1)),
		Type:      discordgo.InteractionApplicationCommand,
		GuildID:   guildID,
		ChannelID: channelID,
		Member:    member(userID, permissions, nil),
		Data:      data,
	}
}

// Click builds a button click on msg.
func Click(guildID, channelID, userID, customID string, msg *discordgo.Message) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:        fmt.Sprintf("i%d", interactionSeq.Add(1)),
		Type:      discordgo.InteractionMessageComponent,
		GuildID:   guildID,
		ChannelID: channelID,
		Member:    member(userID, 0, nil),
		Message:   msg,
		Data: discordgo.MessageComponentInteractionData{
			CustomID:      customID,
			ComponentType: discordgo.ButtonComponent,
		},
	}
}
