package suggestions

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/olympus-go/cogs/cog/cogtest"
	"github.com/olympus-go/cogs/store"
	"golang.org/x/exp/slices"
)

const (
	guildID     = "g1"
	channelID   = "c1"
	adminID     = "admin1"
	suggesterID = "u1"
	voterID     = "u2"
	boardID     = "100000000000000321"
)

func setup(t *testing.T) (*Plugin, *cogtest.Session) {
	t.Helper()

	p := NewPlugin(cogtest.Deps(t), cogtest.Handler())
	s := cogtest.NewSession()
	p.send(t, s, adminID, "?suggestion settings channel <#"+boardID+">")

	return p, s
}

func (p *Plugin) send(t *testing.T, s *cogtest.Session, userID string, content string) {
	t.Helper()

	if !p.router.HandleMessage(context.Background(), s, cogtest.Message(guildID, channelID, userID, content)) {
		t.Fatalf("%q was not handled", content)
	}
}

func (p *Plugin) suggestion(t *testing.T, id int) *Suggestion {
	t.Helper()

	doc, err := store.View[guildDoc](context.Background(), p.deps.Store, store.GuildKey(pluginName, guildID))
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	s, ok := doc.Suggestions[id]
	if !ok {
		t.Fatalf("suggestion #%d missing", id)
	}
	return s
}

// click presses the button with customID on the message currently carrying it.
func (p *Plugin) click(t *testing.T, s *cogtest.Session, userID string, customID string) {
	t.Helper()

	var msg *discordgo.Message
	for _, m := range s.Messages() {
		if slices.Contains(cogtest.CustomIDs(m.Components), customID) {
			msg = m
		}
	}
	if msg == nil {
		t.Fatalf("no message carries %s", customID)
	}

	p.router.HandleInteraction(context.Background(), s, cogtest.Click(guildID, msg.ChannelID, userID, customID, msg))
}

func (p *Plugin) labels(t *testing.T, s *cogtest.Session, id int) []string {
	t.Helper()

	sug := p.suggestion(t, id)
	for _, m := range s.Messages() {
		if m.ID == sug.MessageID {
			return cogtest.Labels(m.Components)
		}
	}
	t.Fatalf("message of suggestion #%d is gone", id)
	return nil
}

func TestSuggestWithoutChannel(t *testing.T) {
	p := NewPlugin(cogtest.Deps(t), cogtest.Handler())
	s := cogtest.NewSession()

	p.send(t, s, suggesterID, "?suggest more emojis")
	if !s.Said(p.config.Responses.NotSetUp) {
		t.Fatalf("got %v", s.Texts())
	}
}

func TestSuggestPostsToBoard(t *testing.T) {
	p, s := setup(t)

	p.send(t, s, suggesterID, "?suggest add a music channel")

	sug := p.suggestion(t, 1)
	if sug.Text != "add a music channel" || sug.SuggesterID != suggesterID {
		t.Fatalf("got %+v", sug)
	}
	if !s.HasMessage(boardID, sug.MessageID) {
		t.Fatalf("suggestion message %s not posted in the board", sug.MessageID)
	}
	if got := p.labels(t, s, 1); !slices.Equal(got, []string{"▲ 0", "▼ 0"}) {
		t.Fatalf("got labels %v", got)
	}

	p.send(t, s, suggesterID, "?suggest second one")
	if p.suggestion(t, 2).Text != "second one" {
		t.Fatalf("ids are not sequential")
	}
}

func TestSuggestPostFailureDropsRecord(t *testing.T) {
	p, s := setup(t)
	s.FailOn("ChannelMessageSendComplex", boardID, cogtest.Forbidden())

	p.send(t, s, suggesterID, "?suggest anything")

	doc, err := store.View[guildDoc](context.Background(), p.deps.Store, store.GuildKey(pluginName, guildID))
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if len(doc.Suggestions) != 0 {
		t.Fatalf("a suggestion that was never posted was kept")
	}
}

// closingSession loses the store while posting to the board, so nothing can be written afterwards.
type closingSession struct {
	*cogtest.Session
	store *store.Store
}

func (s *closingSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if channelID == boardID {
		_ = s.store.Close()
		return nil, cogtest.Forbidden()
	}
	return s.Session.ChannelMessageSendComplex(channelID, data, options...)
}

func TestFailedRollbackIsLogged(t *testing.T) {
	var buf bytes.Buffer
	deps := cogtest.Deps(t)
	p := NewPlugin(deps, slog.NewJSONHandler(&buf, nil))
	fake := cogtest.NewSession()
	p.send(t, fake, adminID, "?suggestion settings channel <#"+boardID+">")

	s := &closingSession{Session: fake, store: deps.Store}
	p.router.HandleMessage(context.Background(), s, cogtest.Message(guildID, channelID, suggesterID, "?suggest anything"))

	if !strings.Contains(buf.String(), "failed to drop unposted suggestion") {
		t.Fatalf("rollback failure was not logged: %s", buf.String())
	}
}

func TestVoting(t *testing.T) {
	p, s := setup(t)
	p.send(t, s, suggesterID, "?suggest more emojis")

	p.click(t, s, voterID, "suggestions_up_1")
	if got := p.labels(t, s, 1); !slices.Equal(got, []string{"▲ 1", "▼ 0"}) {
		t.Fatalf("got labels %v after upvote", got)
	}

	p.click(t, s, voterID, "suggestions_down_1")
	sug := p.suggestion(t, 1)
	if len(sug.Upvotes) != 0 || !slices.Equal(sug.Downvotes, []string{voterID}) {
		t.Fatalf("switching votes left %v / %v", sug.Upvotes, sug.Downvotes)
	}

	p.click(t, s, voterID, "suggestions_down_1")
	sug = p.suggestion(t, 1)
	if len(sug.Upvotes)+len(sug.Downvotes) != 0 {
		t.Fatalf("second downvote did not withdraw the vote")
	}
}

func TestSelfVote(t *testing.T) {
	p, s := setup(t)
	p.send(t, s, suggesterID, "?suggest more emojis")

	p.click(t, s, suggesterID, "suggestions_up_1")
	if len(p.suggestion(t, 1).Upvotes) != 1 {
		t.Fatalf("self votes are allowed by default")
	}
	p.click(t, s, suggesterID, "suggestions_up_1")

	p.send(t, s, adminID, "?suggestion settings selfvote off")
	p.click(t, s, suggesterID, "suggestions_up_1")
	if len(p.suggestion(t, 1).Upvotes) != 0 {
		t.Fatalf("self vote counted while disabled")
	}
	if !s.Said(p.config.Responses.SelfVote) {
		t.Fatalf("got %v", s.Texts())
	}
}

func TestReviewIsTerminal(t *testing.T) {
	p, s := setup(t)
	p.send(t, s, suggesterID, "?suggest more emojis")
	p.click(t, s, voterID, "suggestions_up_1")

	p.send(t, s, suggesterID, "?suggestion approve 1")
	if p.suggestion(t, 1).Status != StatusRunning {
		t.Fatalf("non admin approved a suggestion")
	}

	p.send(t, s, adminID, "?suggestion approve 1 good idea")
	sug := p.suggestion(t, 1)
	if sug.Status != StatusApproved || sug.ReviewerID != adminID || sug.Reason != "good idea" {
		t.Fatalf("got %+v", sug)
	}
	if len(s.DMs[suggesterID]) != 1 {
		t.Fatalf("suggester was not notified: %v", s.DMs)
	}

	var board *discordgo.Message
	for _, m := range s.Messages() {
		if m.ID == sug.MessageID {
			board = m
		}
	}
	if board == nil || !cogtest.AllDisabled(board.Components) {
		t.Fatalf("vote buttons still enabled after approval")
	}

	p.send(t, s, adminID, "?suggestion reject 1")
	if p.suggestion(t, 1).Status != StatusApproved {
		t.Fatalf("closed suggestion was reviewed twice")
	}
	if !s.Said("Suggestion #1 was already approved.") {
		t.Fatalf("got %v", s.Texts())
	}

	p.click(t, s, voterID, "suggestions_down_1")
	if got := p.suggestion(t, 1); len(got.Downvotes) != 0 || len(got.Upvotes) != 1 {
		t.Fatalf("vote recorded on a closed suggestion")
	}
}

func TestDeleteUserData(t *testing.T) {
	p, s := setup(t)
	p.send(t, s, suggesterID, "?suggest more emojis")
	p.click(t, s, voterID, "suggestions_up_1")
	p.click(t, s, suggesterID, "suggestions_up_1")

	if err := p.DeleteUserData(context.Background(), suggesterID); err != nil {
		t.Fatalf("DeleteUserData: %v", err)
	}

	sug := p.suggestion(t, 1)
	if sug.SuggesterID != deletedUserID || !slices.Equal(sug.Upvotes, []string{voterID}) {
		t.Fatalf("got %+v", sug)
	}
}
