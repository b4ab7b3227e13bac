package afk

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/olympus-go/cogs/convert"
	"golang.org/x/exp/slices"
)

const (
	deletedUserID = "0"
	maxNickLength = 32
)

type PingLog struct {
	PingerID  string `json:"pinger_id"`
	JumpURL   string `json:"jump_url"`
	ChannelID string `json:"channel_id"`
	Timestamp int64  `json:"timestamp"`
	Message   string `json:"message"`
}

type memberDoc struct {
	AFK        bool      `json:"afk"`
	Sticky     bool      `json:"sticky"`
	ToggleLogs bool      `json:"toggle_logs"`
	Reason     *string   `json:"reason"`
	Timestamp  *int64    `json:"timestamp"`
	PingLogs   []PingLog `json:"pinglogs"`

	// OriginalNick is restored on return when NickChanged is set.
	OriginalNick string `json:"original_nick"`
	NickChanged  bool   `json:"nick_changed"`
}

func (d *memberDoc) SetDefaults() {
	d.ToggleLogs = true
}

type guildDoc struct {
	Nick            bool     `json:"nick"`
	DeleteAfter     int      `json:"delete_after"`
	IgnoredChannels []string `json:"ignored_channels"`
}

func (d *guildDoc) SetDefaults() {
	d.Nick = true
}

func (d *guildDoc) ignored(channelID string) bool {
	return slices.Contains(d.IgnoredChannels, channelID)
}

// clear ends the AFK status and hands back what was queued while away.
func (d *memberDoc) clear() []PingLog {
	logs := d.PingLogs
	d.AFK = false
	d.Reason = nil
	d.Timestamp = nil
	d.PingLogs = nil
	return logs
}

func (d *memberDoc) since() time.Time {
	if d.Timestamp == nil {
		return time.Time{}
	}
	return time.Unix(*d.Timestamp, 0)
}

func (d *memberDoc) log(entry PingLog, max int) {
	d.PingLogs = append(d.PingLogs, entry)
	if max > 0 && len(d.PingLogs) > max {
		d.PingLogs = d.PingLogs[len(d.PingLogs)-max:]
	}
}

func displayName(m *discordgo.Member) string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.User == nil {
		return ""
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}

func afkNick(prefix string, name string) string {
	nick := []rune(prefix + name)
	if len(nick) > maxNickLength {
		nick = nick[:maxNickLength]
	}
	return string(nick)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

func (p *Plugin) statusEmbed(userID string, doc *memberDoc) *discordgo.MessageEmbed {
	description := fmt.Sprintf("<@%s> is AFK", userID)
	if doc.Reason != nil {
		description += ": " + *doc.Reason
	}
	if doc.Timestamp != nil {
		description += fmt.Sprintf("\nSince <t:%d:R>", *doc.Timestamp)
	}

	return &discordgo.MessageEmbed{
		Description: description,
		Color:       p.config.EmbedColor,
	}
}

func (p *Plugin) pingLogEmbed(logs []PingLog) *discordgo.MessageEmbed {
	var b strings.Builder
	for _, l := range logs {
		line := fmt.Sprintf("<@%s> <t:%d:R> [jump](%s)\n> %s\n", l.PingerID, l.Timestamp, l.JumpURL, l.Message)
		if b.Len()+len(line) > 4000 {
			b.WriteString("…")
			break
		}
		b.WriteString(line)
	}

	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("You were pinged %d time(s) while away", len(logs)),
		Description: b.String(),
		Color:       p.config.EmbedColor,
	}
}

func (p *Plugin) welcomeBack(userID string, since time.Time, now time.Time) string {
	away := "a moment"
	if !since.IsZero() {
		away = convert.HumanizeDuration(now.Sub(since))
	}
	return fmt.Sprintf(p.config.Responses.WelcomeBack, "<@"+userID+">", away)
}
