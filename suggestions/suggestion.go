package suggestions

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/olympus-go/eris/utils"
	"golang.org/x/exp/slices"
)

// deletedUserID replaces the ids of users whose data was deleted.
const deletedUserID = "0"

type Status string

const (
	StatusRunning  Status = "running"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type Vote int

const (
	Upvote Vote = iota
	Downvote
)

type Suggestion struct {
	ID          int      `json:"id"`
	SuggesterID string   `json:"suggester_id"`
	MessageID   string   `json:"message_id"`
	ChannelID   string   `json:"channel_id"`
	Text        string   `json:"suggestion"`
	Status      Status   `json:"status"`
	Upvotes     []string `json:"upvotes"`
	Downvotes   []string `json:"downvotes"`
	ReviewerID  string   `json:"reviewer_id"`
	Reason      string   `json:"reason"`
	CreatedAt   int64    `json:"created_at"`
}

type guildDoc struct {
	Channel     string              `json:"channel"`
	LogChannel  string              `json:"log_channel"`
	SelfVote    bool                `json:"self_vote"`
	DMResult    bool                `json:"dm_result"`
	NextID      int                 `json:"next_id"`
	Suggestions map[int]*Suggestion `json:"suggestions"`
}

func (d *guildDoc) SetDefaults() {
	d.SelfVote = true
	d.DMResult = true
	d.NextID = 1
	d.Suggestions = make(map[int]*Suggestion)
}

// Toggle records a vote. Voting the same way twice withdraws the vote, voting the other way moves it.
func (s *Suggestion) Toggle(userID string, v Vote) {
	same, other := &s.Upvotes, &s.Downvotes
	if v == Downvote {
		same, other = other, same
	}

	*other = remove(*other, userID)
	if slices.Contains(*same, userID) {
		*same = remove(*same, userID)
		return
	}
	*same = append(*same, userID)
}

func remove(ids []string, id string) []string {
	idx := slices.Index(ids, id)
	if idx < 0 {
		return ids
	}
	return slices.Delete(ids, idx, idx+1)
}

func (s *Suggestion) closed() bool {
	return s.Status != StatusRunning
}

func (p *Plugin) color(status Status) int {
	switch status {
	case StatusApproved:
		return p.config.Colors.Approved
	case StatusRejected:
		return p.config.Colors.Rejected
	default:
		return p.config.Colors.Running
	}
}

func (p *Plugin) render(s *Suggestion) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Suggestion #%d", s.ID),
		Description: s.Text,
		Color:       p.color(s.Status),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Submitted by", Value: "<@" + s.SuggesterID + ">", Inline: true},
			{Name: "Status", Value: strings.ToUpper(string(s.Status[:1])) + string(s.Status[1:]), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%d upvotes, %d downvotes", len(s.Upvotes), len(s.Downvotes)),
		},
	}

	if s.ReviewerID != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Reviewed by", Value: "<@" + s.ReviewerID + ">", Inline: true,
		})
	}
	if s.Reason != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Reason", Value: s.Reason})
	}

	return embed
}

func voteButtons(s *Suggestion) []discordgo.MessageComponent {
	enabled := !s.closed()

	up := utils.Button().
		Id(fmt.Sprintf("suggestions_up_%d", s.ID)).
		Label(fmt.Sprintf("▲ %d", len(s.Upvotes))).
		Style(discordgo.SuccessButton).
		Enabled(enabled).
		Build()
	down := utils.Button().
		Id(fmt.Sprintf("suggestions_down_%d", s.ID)).
		Label(fmt.Sprintf("▼ %d", len(s.Downvotes))).
		Style(discordgo.DangerButton).
		Enabled(enabled).
		Build()

	return []discordgo.MessageComponent{utils.ActionsRow().Button(up).Button(down).Build()}
}
