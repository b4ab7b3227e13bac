package globalban

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/olympus-go/cogs/cog"
	"github.com/olympus-go/cogs/cog/cogtest"
	"github.com/olympus-go/cogs/store"
)

const (
	channelID  = "c1"
	offenderID = "100000000000000042"
	otherID    = "100000000000000043"
)

var guilds = []string{"g1", "g2", "g3"}

func setup(t *testing.T) (*Plugin, *cogtest.Session) {
	t.Helper()

	deps := cogtest.Deps(t)
	deps.Now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	deps.Guilds = func() []string { return guilds }

	return NewPlugin(deps, cogtest.Handler()), cogtest.NewSession()
}

func (p *Plugin) send(t *testing.T, s *cogtest.Session, userID string, content string) {
	t.Helper()

	if !p.router.HandleMessage(context.Background(), s, cogtest.Message("g1", channelID, userID, content)) {
		t.Fatalf("%q was not handled", content)
	}
}

// confirm runs content as the owner, answers the prompt it opens and waits for the command to finish.
func (p *Plugin) confirm(t *testing.T, s *cogtest.Session, content string, answer string) {
	t.Helper()

	seen := make(map[string]bool)
	for _, msg := range s.Messages() {
		for _, id := range cogtest.CustomIDs(msg.Components) {
			seen[id] = true
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.router.HandleMessage(context.Background(), s, cogtest.Message("g1", channelID, cogtest.OwnerID, content))
	}()

	var id string
	cogtest.Eventually(t, func() bool {
		for _, msg := range s.Messages() {
			for _, candidate := range cogtest.CustomIDs(msg.Components) {
				if !seen[candidate] && strings.HasSuffix(candidate, "_"+answer) {
					id = candidate
					return true
				}
			}
		}
		return false
	})

	click := cog.NewComponentInvocation(s, cogtest.Click("g1", channelID, cogtest.OwnerID, id, nil))
	if err := p.deps.Views.HandleClick(click); err != nil {
		t.Fatalf("HandleClick: %v", err)
	}
	<-done
}

func (p *Plugin) doc(t *testing.T) globalDoc {
	t.Helper()

	doc, err := store.View[globalDoc](context.Background(), p.deps.Store, p.key())
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	return doc
}

func TestRecord(t *testing.T) {
	var doc globalDoc

	if _, err := doc.record(ActionUnban, offenderID, "a", "r", 1); !cog.IsKind(err, cog.KindInput) {
		t.Fatalf("unban of a user that is not banned: %v", err)
	}

	first, err := doc.record(ActionBan, offenderID, "a", "spam", 1)
	if err != nil || first.Case != 1 {
		t.Fatalf("got %+v, %v", first, err)
	}
	if _, err = doc.record(ActionBan, offenderID, "a", "again", 2); err == nil {
		t.Fatalf("banned the same user twice")
	}

	second, err := doc.record(ActionUnban, offenderID, "b", "appeal", 3)
	if err != nil || second.Case != 2 || doc.banned(offenderID) {
		t.Fatalf("got %+v, %v, banned %t", second, err, doc.banned(offenderID))
	}
	if len(doc.BanLogs) != 2 {
		t.Fatalf("got %d log entries", len(doc.BanLogs))
	}

	l, ok := doc.amend(1, "raiding", "b", 4)
	if !ok || l.Reason != "raiding" || l.Amender != "b" || l.LastModified == nil || *l.LastModified != 4 {
		t.Fatalf("got %+v", l)
	}
	if _, ok = doc.amend(9, "x", "b", 4); ok {
		t.Fatalf("amended a missing case")
	}
}

func TestBanReportsFailingGuilds(t *testing.T) {
	p, s := setup(t)
	s.FailOn("GuildBanCreateWithReason", "g2", cogtest.Forbidden())

	p.confirm(t, s, "?globalban ban <@100000000000000042> spamming", "yes")

	if len(s.Bans) != 2 || s.Bans[0].GuildID != "g1" || s.Bans[1].GuildID != "g3" {
		t.Fatalf("got bans %+v", s.Bans)
	}
	if !strings.Contains(s.Bans[0].Value, "spamming") {
		t.Fatalf("audit reason %q", s.Bans[0].Value)
	}
	if !s.Said("applied in 2/3 server(s)") || !s.Said("`g2`: missing permissions") {
		t.Fatalf("got %v", s.Texts())
	}
	if doc := p.doc(t); !doc.banned(offenderID) || len(doc.BanLogs) != 1 {
		t.Fatalf("got %+v", doc)
	}
}

func TestDeclinedBanChangesNothing(t *testing.T) {
	p, s := setup(t)

	p.confirm(t, s, "?globalban ban <@100000000000000042>", "no")
	if doc := p.doc(t); len(s.Bans) != 0 || doc.banned(offenderID) {
		t.Fatalf("declined ban was applied")
	}
}

func TestUnbanTreatsMissingBanAsDone(t *testing.T) {
	p, s := setup(t)

	p.confirm(t, s, "?globalban ban <@100000000000000042>", "yes")
	s.FailOn("GuildBanDelete", "g2", cogtest.NotFound())
	p.confirm(t, s, "?globalban unban <@100000000000000042> appealed", "yes")

	if doc := p.doc(t); doc.banned(offenderID) {
		t.Fatalf("still banned")
	}
	if !s.Said("Case #2: unban") || !s.Said("applied in 3/3 server(s)") {
		t.Fatalf("got %v", s.Texts())
	}
}

func TestUnbanOfUnknownUser(t *testing.T) {
	p, s := setup(t)

	p.send(t, s, cogtest.OwnerID, "?globalban unban <@100000000000000043>")
	if !s.Said("is not globally banned") {
		t.Fatalf("got %v", s.Texts())
	}
}

func TestOwnerOnly(t *testing.T) {
	p, s := setup(t)

	p.send(t, s, "admin1", "?globalban ban <@100000000000000042>")
	if doc := p.doc(t); len(s.Bans) != 0 || doc.banned(offenderID) {
		t.Fatalf("a non-owner banned globally")
	}
}

func TestEditReason(t *testing.T) {
	p, s := setup(t)

	p.confirm(t, s, "?globalban ban <@100000000000000042> spam", "yes")
	p.send(t, s, cogtest.OwnerID, "?globalban editreason 1 raiding several servers")

	doc := p.doc(t)
	l, ok := doc.log(1)
	if !ok || l.Reason != "raiding several servers" || l.Amender != cogtest.OwnerID {
		t.Fatalf("got %+v", l)
	}

	p.send(t, s, cogtest.OwnerID, "?globalban editreason 7 nope")
	if !s.Said("There is no case #7.") {
		t.Fatalf("got %v", s.Texts())
	}
}

func TestBannedMemberIsBannedOnJoin(t *testing.T) {
	p, s := setup(t)

	p.confirm(t, s, "?globalban ban <@100000000000000042> spam", "yes")
	bans := len(s.Bans)

	p.HandleMemberAdd(context.Background(), s, &discordgo.Member{GuildID: "g9", User: &discordgo.User{ID: otherID}})
	p.HandleMemberAdd(context.Background(), s, &discordgo.Member{GuildID: "g9", User: &discordgo.User{ID: offenderID}})

	if len(s.Bans) != bans+1 || s.Bans[bans].GuildID != "g9" || s.Bans[bans].UserID != offenderID {
		t.Fatalf("got bans %+v", s.Bans)
	}
}

func TestDeleteUserData(t *testing.T) {
	p, s := setup(t)

	p.confirm(t, s, "?globalban ban <@100000000000000042>", "yes")
	if err := p.DeleteUserData(context.Background(), cogtest.OwnerID); err != nil {
		t.Fatalf("DeleteUserData: %v", err)
	}

	doc := p.doc(t)
	if doc.BanLogs[0].Authorizer != deletedUserID || !doc.banned(offenderID) {
		t.Fatalf("got %+v", doc)
	}
}
