package timers

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/olympus-go/eris/utils"
	"golang.org/x/exp/slices"
)

// messageLimit is Discord's cap on message content length.
const messageLimit = 2000

const deletedUserID = "0"

type state int

const (
	active state = iota
	ended
	cancelled
)

type Timer struct {
	MessageID    string   `json:"message_id"`
	EndTimestamp int64    `json:"end_timestamp"`
	HostID       string   `json:"host_id"`
	ChannelID    string   `json:"channel_id"`
	Title        string   `json:"title"`
	Members      []string `json:"members"`
	Ended        bool     `json:"ended"`
	Cancelled    bool     `json:"cancelled"`
}

type guildDoc struct {
	Timers      map[string]*Timer `json:"timers"`
	MaxTimers   int               `json:"max_timers"`
	ButtonLabel string            `json:"button_label"`
}

func (d *guildDoc) SetDefaults() {
	d.Timers = make(map[string]*Timer)
}

func (t *Timer) due(now time.Time) bool {
	return now.Unix() >= t.EndTimestamp
}

func (t *Timer) state() state {
	switch {
	case t.Cancelled:
		return cancelled
	case t.Ended:
		return ended
	default:
		return active
	}
}

// toggle adds userID to the members to remind, or removes them when already present. It reports whether userID is a
// member afterwards.
func (t *Timer) toggle(userID string) bool {
	if idx := slices.Index(t.Members, userID); idx >= 0 {
		t.Members = slices.Delete(t.Members, idx, idx+1)
		return false
	}
	t.Members = append(t.Members, userID)
	return true
}

// pinged is everyone notified when the timer ends: the host first, then members in join order.
func (t *Timer) pinged() []string {
	var ids []string
	for _, id := range append([]string{t.HostID}, t.Members...) {
		if id != deletedUserID && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (p *Plugin) render(t *Timer, label string) (*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	embed := &discordgo.MessageEmbed{
		Title:  t.Title,
		Color:  p.config.EmbedColor,
		Fields: []*discordgo.MessageEmbedField{{Name: "Hosted by", Value: "<@" + t.HostID + ">", Inline: true}},
	}

	switch t.state() {
	case ended:
		embed.Description = fmt.Sprintf("Ended <t:%d:R>", t.EndTimestamp)
	case cancelled:
		embed.Description = "This timer was cancelled."
	default:
		embed.Description = fmt.Sprintf("Ends <t:%d:R> (<t:%d:f>)", t.EndTimestamp, t.EndTimestamp)
	}

	if label == "" {
		label = p.config.ButtonLabel
	}
	button := utils.Button().
		Id(remindPrefix).
		Label(label).
		Style(discordgo.PrimaryButton).
		Enabled(t.state() == active).
		Build()

	return embed, []discordgo.MessageComponent{utils.ActionsRow().Button(button).Build()}
}

// chunkMentions splits the mentions of ids into messages no longer than limit, the first one starting with header.
func chunkMentions(header string, ids []string, limit int) []string {
	var chunks []string
	var b strings.Builder
	b.WriteString(header)

	for _, id := range ids {
		mention := "<@" + id + ">"
		if b.Len() > 0 && b.Len()+1+len(mention) > limit {
			chunks = append(chunks, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(mention)
	}

	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	return chunks
}

func jumpURL(guildID, channelID, messageID string) string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guildID, channelID, messageID)
}
