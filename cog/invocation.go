package cog

import (
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Response is what a command sends back. Ephemeral is honoured by interactions and ignored for prefix commands.
type Response struct {
	Content         string
	Embeds          []*discordgo.MessageEmbed
	Components      []discordgo.MessageComponent
	Ephemeral       bool
	AllowedMentions *discordgo.MessageAllowedMentions
}

// Invocation is the minimal contract shared by prefix commands and interactions: who acted, where, and how to answer
// them.
type Invocation interface {
	Session() Session
	Author() *discordgo.User
	Member() *discordgo.Member
	GuildID() string
	ChannelID() string
	// Permissions returns the acting member's permission bits in the invocation channel.
	Permissions() int64
	Reply(r Response) (*discordgo.Message, error)
	// Edit replaces the content of a message previously returned by Reply.
	Edit(msg *discordgo.Message, r Response) error
}

// MessageInvocation adapts a prefix command message.
type MessageInvocation struct {
	session     Session
	message     *discordgo.Message
	permissions int64
}

func NewMessageInvocation(s Session, m *discordgo.Message, permissions int64) *MessageInvocation {
	return &MessageInvocation{session: s, message: m, permissions: permissions}
}

func (m *MessageInvocation) Session() Session { return m.session }
func (m *MessageInvocation) Author() *discordgo.User { return m.message.Author }
func (m *MessageInvocation) GuildID() string { return m.message.GuildID }
func (m *MessageInvocation) ChannelID() string { return m.message.ChannelID }
func (m *MessageInvocation) Permissions() int64 { return m.permissions }
func (m *MessageInvocation) Message() *discordgo.Message { return m.message }

func (m *MessageInvocation) Member() *discordgo.Member {
	if m.message.Member == nil {
		return nil
	}
	member := *m.message.Member
	if member.User == nil {
		member.User = m.message.Author
	}
	member.GuildID = m.message.GuildID
	return &member
}

func (m *MessageInvocation) Reply(r Response) (*discordgo.Message, error) {
	return m.session.ChannelMessageSendComplex(m.message.ChannelID, &discordgo.MessageSend{
		Content:         r.Content,
		Embeds:          r.Embeds,
		Components:      r.Components,
		AllowedMentions: r.AllowedMentions,
		Reference:       m.message.Reference(),
	})
}

func (m *MessageInvocation) Edit(msg *discordgo.Message, r Response) error {
	_, err := m.session.ChannelMessageEditComplex(messageEdit(msg.ChannelID, msg.ID, r))
	return err
}

// InteractionInvocation adapts a slash command or message component interaction. The first Reply answers the
// interaction itself, later replies become follow-ups.
type InteractionInvocation struct {
	session     Session
	interaction *discordgo.Interaction

	mu         sync.Mutex
	responded  bool
	originalID string
}

func NewInteractionInvocation(s Session, i *discordgo.Interaction) *InteractionInvocation {
	return &InteractionInvocation{session: s, interaction: i}
}

func (i *InteractionInvocation) Session() Session { return i.session }
func (i *InteractionInvocation) Interaction() *discordgo.Interaction { return i.interaction }
func (i *InteractionInvocation) GuildID() string { return i.interaction.GuildID }
func (i *InteractionInvocation) ChannelID() string { return i.interaction.ChannelID }
func (i *InteractionInvocation) Member() *discordgo.Member { return i.interaction.Member }

func (i *InteractionInvocation) Author() *discordgo.User {
	if i.interaction.Member != nil && i.interaction.Member.User != nil {
		return i.interaction.Member.User
	}
	return i.interaction.User
}

func (i *InteractionInvocation) Permissions() int64 {
	if i.interaction.Member == nil {
		return 0
	}
	return i.interaction.Member.Permissions
}

func (i *InteractionInvocation) Reply(r Response) (*discordgo.Message, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	var flags discordgo.MessageFlags
	if r.Ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}

	if i.responded {
		return i.session.FollowupMessageCreate(i.interaction, true, &discordgo.WebhookParams{
			Content:         r.Content,
			Embeds:          r.Embeds,
			Components:      r.Components,
			AllowedMentions: r.AllowedMentions,
			Flags:           flags,
		})
	}

	// Deferring first and then editing the original response hands back the created message, which a plain
	// channel-message response does not.
	err := i.session.InteractionRespond(i.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: flags},
	})
	if err != nil {
		return nil, err
	}
	i.responded = true

	msg, err := i.session.InteractionResponseEdit(i.interaction, webhookEdit(r))
	if err != nil {
		return nil, err
	}
	if msg != nil {
		i.originalID = msg.ID
	}

	return msg, nil
}

func (i *InteractionInvocation) Edit(msg *discordgo.Message, r Response) error {
	i.mu.Lock()
	original := msg.ID == i.originalID
	i.mu.Unlock()

	var err error
	if original {
		_, err = i.session.InteractionResponseEdit(i.interaction, webhookEdit(r))
	} else {
		_, err = i.session.FollowupMessageEdit(i.interaction, msg.ID, webhookEdit(r))
	}
	return err
}

// ComponentInvocation is a button or select menu click.
type ComponentInvocation struct {
	*InteractionInvocation
}

func NewComponentInvocation(s Session, i *discordgo.Interaction) *ComponentInvocation {
	return &ComponentInvocation{InteractionInvocation: NewInteractionInvocation(s, i)}
}

// Message is the message carrying the clicked component.
func (c *ComponentInvocation) Message() *discordgo.Message {
	return c.interaction.Message
}

// CustomID is the id of the clicked component.
func (c *ComponentInvocation) CustomID() string {
	return c.interaction.MessageComponentData().CustomID
}

// Update answers the click by rewriting the message carrying the component.
func (c *ComponentInvocation) Update(r Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.session.InteractionRespond(c.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:         r.Content,
			Embeds:          r.Embeds,
			Components:      r.Components,
			AllowedMentions: r.AllowedMentions,
		},
	})
	if err == nil {
		c.responded = true
	}
	return err
}

// Acknowledge answers the click without changing anything.
func (c *ComponentInvocation) Acknowledge() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.session.InteractionRespond(c.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
	if err == nil {
		c.responded = true
	}
	return err
}

func messageEdit(channelID string, messageID string, r Response) *discordgo.MessageEdit {
	content := r.Content
	embeds := r.Embeds
	if embeds == nil {
		embeds = []*discordgo.MessageEmbed{}
	}
	components := r.Components
	if components == nil {
		components = []discordgo.MessageComponent{}
	}

	return &discordgo.MessageEdit{
		ID:              messageID,
		Channel:         channelID,
		Content:         &content,
		Embeds:          &embeds,
		Components:      &components,
		AllowedMentions: r.AllowedMentions,
	}
}

func webhookEdit(r Response) *discordgo.WebhookEdit {
	content := r.Content
	embeds := r.Embeds
	if embeds == nil {
		embeds = []*discordgo.MessageEmbed{}
	}
	components := r.Components
	if components == nil {
		components = []discordgo.MessageComponent{}
	}

	return &discordgo.WebhookEdit{
		Content:         &content,
		Embeds:          &embeds,
		Components:      &components,
		AllowedMentions: r.AllowedMentions,
	}
}

// EditMessage rewrites a channel message outside of any invocation, e.g. from a background loop.
func EditMessage(s Session, channelID string, messageID string, r Response) (*discordgo.Message, error) {
	return s.ChannelMessageEditComplex(messageEdit(channelID, messageID, r))
}
