// Package cogtest provides an in-memory cog.Session that records every outbound call.
package cogtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
)

type SentMessage struct {
	ChannelID string
	Message   *discordgo.MessageSend
	ID        string
}

type MemberCall struct {
	GuildID string
	UserID  string
	Value   string
}

type RoleEdit struct {
	GuildID string
	RoleID  string
	Params  *discordgo.RoleParams
}

// Session is a fake cog.Session. Every message it sends is kept so later edits, fetches and deletes behave like
// Discord would.
type Session struct {
	mu sync.Mutex

	Sent          []SentMessage
	Edits         []*discordgo.MessageEdit
	Deleted       []string
	Responses     []*discordgo.InteractionResponse
	ResponseEdits []*discordgo.WebhookEdit
	Followups     []*discordgo.WebhookParams
	FollowupEdits []*discordgo.WebhookEdit
	DMs           map[string][]*discordgo.MessageSend
	Nicknames     []MemberCall
	RoleAdds      []MemberCall
	RoleRemoves   []MemberCall
	Bans          []MemberCall
	Unbans        []MemberCall
	RoleEdits     []RoleEdit

	messages map[string]*discordgo.Message
	members  map[string]*discordgo.Member
	failures map[string]error
	nextID   int
}

func NewSession() *Session {
	return &Session{
		DMs:      make(map[string][]*discordgo.MessageSend),
		messages: make(map[string]*discordgo.Message),
		members:  make(map[string]*discordgo.Member),
		failures: make(map[string]error),
	}
}

// FailOn makes method fail with err. When arg is set only calls carrying that id (guild, user, role, channel or
// message) fail.
func (s *Session) FailOn(method string, arg string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[method+":"+arg] = err
}

func (s *Session) failure(method string, args ...string) error {
	if err, ok := s.failures[method+":"]; ok {
		return err
	}
	for _, arg := range args {
		if err, ok := s.failures[method+":"+arg]; ok {
			return err
		}
	}
	return nil
}

func (s *Session) AddMember(guildID string, member *discordgo.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()

	member.GuildID = guildID
	s.members[guildID+"/"+member.User.ID] = member
}

// DeleteMessage removes a message as if someone deleted it in Discord.
func (s *Session) DeleteMessage(channelID string, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.messages, channelID+"/"+messageID)
}

func (s *Session) HasMessage(channelID string, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.messages[channelID+"/"+messageID]
	return ok
}

func (s *Session) store(channelID string, content string, embeds []*discordgo.MessageEmbed, components []discordgo.MessageComponent) *discordgo.Message {
	s.nextID++
	msg := &discordgo.Message{
		ID:         fmt.Sprintf("%d", 900000+s.nextID),
		ChannelID:  channelID,
		Content:    content,
		Embeds:     embeds,
		Components: components,
		Timestamp:  time.Now(),
	}
	s.messages[channelID+"/"+msg.ID] = msg
	return msg
}

func (s *Session) User(userID string, _ ...discordgo.RequestOption) (*discordgo.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("User", userID); err != nil {
		return nil, err
	}
	return &discordgo.User{ID: userID, Username: "user" + userID}, nil
}

func (s *Session) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("UserChannelCreate", recipientID); err != nil {
		return nil, err
	}
	return &discordgo.Channel{ID: "dm-" + recipientID, Type: discordgo.ChannelTypeDM}, nil
}

func (s *Session) ChannelMessage(channelID, messageID string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("ChannelMessage", channelID, messageID); err != nil {
		return nil, err
	}
	msg, ok := s.messages[channelID+"/"+messageID]
	if !ok {
		return nil, NotFound()
	}
	return copyMessage(msg), nil
}

func (s *Session) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("ChannelMessageSendComplex", channelID); err != nil {
		return nil, err
	}

	msg := s.store(channelID, data.Content, data.Embeds, data.Components)
	if userID, ok := strings.CutPrefix(channelID, "dm-"); ok {
		s.DMs[userID] = append(s.DMs[userID], data)
	} else {
		s.Sent = append(s.Sent, SentMessage{ChannelID: channelID, Message: data, ID: msg.ID})
	}
	return copyMessage(msg), nil
}

func (s *Session) ChannelMessageEditComplex(m *discordgo.MessageEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("ChannelMessageEditComplex", m.Channel, m.ID); err != nil {
		return nil, err
	}
	msg, ok := s.messages[m.Channel+"/"+m.ID]
	if !ok {
		return nil, NotFound()
	}

	s.Edits = append(s.Edits, m)
	if m.Content != nil {
		msg.Content = *m.Content
	}
	if m.Embeds != nil {
		msg.Embeds = *m.Embeds
	}
	if m.Components != nil {
		msg.Components = *m.Components
	}
	return copyMessage(msg), nil
}

func (s *Session) ChannelMessageDelete(channelID, messageID string, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("ChannelMessageDelete", channelID, messageID); err != nil {
		return err
	}
	if _, ok := s.messages[channelID+"/"+messageID]; !ok {
		return NotFound()
	}
	delete(s.messages, channelID+"/"+messageID)
	s.Deleted = append(s.Deleted, messageID)
	return nil
}

func (s *Session) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("InteractionRespond", interaction.ID); err != nil {
		return err
	}
	s.Responses = append(s.Responses, resp)

	if resp.Type == discordgo.InteractionResponseUpdateMessage && interaction.Message != nil && resp.Data != nil {
		if msg, ok := s.messages[interaction.Message.ChannelID+"/"+interaction.Message.ID]; ok {
			msg.Content = resp.Data.Content
			msg.Embeds = resp.Data.Embeds
			msg.Components = resp.Data.Components
		}
	}
	return nil
}

func (s *Session) InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("InteractionResponseEdit", interaction.ID); err != nil {
		return nil, err
	}
	s.ResponseEdits = append(s.ResponseEdits, newresp)

	id := "original-" + interaction.ID
	msg, ok := s.messages[interaction.ChannelID+"/"+id]
	if !ok {
		msg = &discordgo.Message{ID: id, ChannelID: interaction.ChannelID}
		s.messages[interaction.ChannelID+"/"+id] = msg
	}
	applyWebhookEdit(msg, newresp)
	return copyMessage(msg), nil
}

func (s *Session) FollowupMessageCreate(interaction *discordgo.Interaction, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("FollowupMessageCreate", interaction.ID); err != nil {
		return nil, err
	}
	s.Followups = append(s.Followups, data)
	return copyMessage(s.store(interaction.ChannelID, data.Content, data.Embeds, data.Components)), nil
}

func (s *Session) FollowupMessageEdit(interaction *discordgo.Interaction, messageID string, data *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("FollowupMessageEdit", interaction.ID, messageID); err != nil {
		return nil, err
	}
	msg, ok := s.messages[interaction.ChannelID+"/"+messageID]
	if !ok {
		return nil, NotFound()
	}
	s.FollowupEdits = append(s.FollowupEdits, data)
	applyWebhookEdit(msg, data)
	return copyMessage(msg), nil
}

func copyMessage(m *discordgo.Message) *discordgo.Message {
	cp := *m
	return &cp
}

func applyWebhookEdit(msg *discordgo.Message, e *discordgo.WebhookEdit) {
	if e.Content != nil {
		msg.Content = *e.Content
	}
	if e.Embeds != nil {
		msg.Embeds = *e.Embeds
	}
	if e.Components != nil {
		msg.Components = *e.Components
	}
}

func (s *Session) GuildMember(guildID, userID string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("GuildMember", guildID, userID); err != nil {
		return nil, err
	}
	member, ok := s.members[guildID+"/"+userID]
	if !ok {
		return nil, NotFound()
	}
	cp := *member
	return &cp, nil
}

func (s *Session) GuildMemberNickname(guildID, userID, nickname string, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("GuildMemberNickname", guildID, userID); err != nil {
		return err
	}
	s.Nicknames = append(s.Nicknames, MemberCall{GuildID: guildID, UserID: userID, Value: nickname})
	if member, ok := s.members[guildID+"/"+userID]; ok {
		member.Nick = nickname
	}
	return nil
}

func (s *Session) GuildMemberRoleAdd(guildID, userID, roleID string, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("GuildMemberRoleAdd", guildID, userID, roleID); err != nil {
		return err
	}
	s.RoleAdds = append(s.RoleAdds, MemberCall{GuildID: guildID, UserID: userID, Value: roleID})
	return nil
}

func (s *Session) GuildMemberRoleRemove(guildID, userID, roleID string, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("GuildMemberRoleRemove", guildID, userID, roleID); err != nil {
		return err
	}
	s.RoleRemoves = append(s.RoleRemoves, MemberCall{GuildID: guildID, UserID: userID, Value: roleID})
	return nil
}

func (s *Session) GuildBanCreateWithReason(guildID, userID, reason string, _ int, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("GuildBanCreateWithReason", guildID, userID); err != nil {
		return err
	}
	s.Bans = append(s.Bans, MemberCall{GuildID: guildID, UserID: userID, Value: reason})
	return nil
}

func (s *Session) GuildBanDelete(guildID, userID string, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("GuildBanDelete", guildID, userID); err != nil {
		return err
	}
	s.Unbans = append(s.Unbans, MemberCall{GuildID: guildID, UserID: userID})
	return nil
}

func (s *Session) GuildRoleEdit(guildID, roleID string, data *discordgo.RoleParams, _ ...discordgo.RequestOption) (*discordgo.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failure("GuildRoleEdit", guildID, roleID); err != nil {
		return nil, err
	}
	s.RoleEdits = append(s.RoleEdits, RoleEdit{GuildID: guildID, RoleID: roleID, Params: data})
	role := &discordgo.Role{ID: roleID}
	if data.Color != nil {
		role.Color = *data.Color
	}
	return role, nil
}

// Texts returns the content and embed text of everything sent or edited so far, in call order per kind.
func (s *Session) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for _, m := range s.Sent {
		out = append(out, m.Message.Content+embedText(m.Message.Embeds))
	}
	for _, e := range s.Edits {
		if e.Content != nil {
			out = append(out, *e.Content)
		}
		if e.Embeds != nil {
			out = append(out, embedText(*e.Embeds))
		}
	}
	for _, r := range s.Responses {
		if r.Data != nil {
			out = append(out, r.Data.Content+embedText(r.Data.Embeds))
		}
	}
	for _, e := range s.ResponseEdits {
		if e.Content != nil {
			out = append(out, *e.Content)
		}
		if e.Embeds != nil {
			out = append(out, embedText(*e.Embeds))
		}
	}
	for _, f := range s.Followups {
		out = append(out, f.Content+embedText(f.Embeds))
	}
	return out
}

// Said reports whether any recorded text contains substr.
func (s *Session) Said(substr string) bool {
	for _, text := range s.Texts() {
		if strings.Contains(text, substr) {
			return true
		}
	}
	return false
}

// Messages returns copies of every message currently alive in the fake.
func (s *Session) Messages() []*discordgo.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*discordgo.Message, 0, len(s.messages))
	for _, m := range s.messages {
		msg := *m
		out = append(out, &msg)
	}
	return out
}

func embedText(embeds []*discordgo.MessageEmbed) string {
	var b strings.Builder
	for _, e := range embeds {
		if e == nil {
			continue
		}
		b.WriteString("\n" + e.Title + "\n" + e.Description)
		for _, f := range e.Fields {
			b.WriteString("\n" + f.Name + ": " + f.Value)
		}
		if e.Footer != nil {
			b.WriteString("\n" + e.Footer.Text)
		}
	}
	return b.String()
}

var customIDRegex = regexp.MustCompile(`"custom_id":"([^"]*)"`)

// CustomIDs lists the custom ids of every component in components.
func CustomIDs(components []discordgo.MessageComponent) []string {
	b, err := json.Marshal(components)
	if err != nil {
		return nil
	}

	var ids []string
	for _, m := range customIDRegex.FindAllStringSubmatch(string(b), -1) {
		ids = append(ids, m[1])
	}
	return ids
}

var disabledRegex = regexp.MustCompile(`"disabled":true`)

// AllDisabled reports whether every button in components is disabled.
func AllDisabled(components []discordgo.MessageComponent) bool {
	b, err := json.Marshal(components)
	if err != nil {
		return false
	}
	ids := customIDRegex.FindAllString(string(b), -1)
	return len(ids) > 0 && len(disabledRegex.FindAllString(string(b), -1)) == len(ids)
}

// Labels lists the labels of every button in components.
func Labels(components []discordgo.MessageComponent) []string {
	b, err := json.Marshal(components)
	if err != nil {
		return nil
	}

	var labels []string
	for _, m := range regexp.MustCompile(`"label":"([^"]*)"`).FindAllStringSubmatch(string(b), -1) {
		labels = append(labels, m[1])
	}
	return labels
}

// FindCustomID returns the first component id starting with prefix on any message alive in the fake.
func (s *Session) FindCustomID(prefix string) (string, *discordgo.Message, bool) {
	for _, msg := range s.Messages() {
		for _, id := range CustomIDs(msg.Components) {
			if strings.HasPrefix(id, prefix) {
				return id, msg, true
			}
		}
	}
	return "", nil, false
}

// Eventually polls cond until it holds or a second passes.
func Eventually(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within 1s")
}

func restError(status int, code int) *discordgo.RESTError {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: status},
		Message:  &discordgo.APIErrorMessage{Code: code, Message: http.StatusText(status)},
	}
}

func NotFound() error {
	return restError(http.StatusNotFound, discordgo.ErrCodeUnknownMessage)
}

func Forbidden() error {
	return restError(http.StatusForbidden, discordgo.ErrCodeMissingPermissions)
}
