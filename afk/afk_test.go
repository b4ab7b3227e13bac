package afk

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/olympus-go/cogs/cog/cogtest"
	"github.com/olympus-go/cogs/store"
)

const (
	guildID   = "g1"
	channelID = "c1"
	adminID   = "admin1"
	awayID    = "100000000000000011"
	pingerID  = "100000000000000022"
	quietID   = "100000000000000033"
)

func setup(t *testing.T) (*Plugin, *cogtest.Session) {
	t.Helper()

	now := time.Unix(1_700_000_000, 0)
	deps := cogtest.Deps(t)
	deps.Now = func() time.Time { return now }

	s := cogtest.NewSession()
	s.AddMember(guildID, &discordgo.Member{User: &discordgo.User{ID: awayID, Username: "sleepy"}})

	return NewPlugin(deps, cogtest.Handler()), s
}

// say delivers content from userID to every message handler of the plugin, mentioning the given users.
func (p *Plugin) say(s *cogtest.Session, channel string, userID string, content string, mentions ...string) {
	m := cogtest.Message(guildID, channel, userID, content)
	for _, id := range mentions {
		m.Mentions = append(m.Mentions, &discordgo.User{ID: id})
	}

	ctx := context.Background()
	if p.router.HandleMessage(ctx, s, m) {
		return
	}
	p.HandleMessage(ctx, s, m)
}

func (p *Plugin) member(t *testing.T, userID string) memberDoc {
	t.Helper()

	doc, err := store.View[memberDoc](context.Background(), p.deps.Store, store.MemberKey(pluginName, guildID, userID))
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	return doc
}

func TestAFKRoundTrip(t *testing.T) {
	p, s := setup(t)

	p.say(s, channelID, awayID, "?afk sleeping")
	doc := p.member(t, awayID)
	if !doc.AFK || doc.Reason == nil || *doc.Reason != "sleeping" || doc.Timestamp == nil {
		t.Fatalf("got %+v", doc)
	}
	if len(s.Nicknames) != 1 || s.Nicknames[0].Value != "[AFK] sleepy" {
		t.Fatalf("got nicknames %v", s.Nicknames)
	}

	p.say(s, channelID, pingerID, "hey <@100000000000000011>", awayID)
	doc = p.member(t, awayID)
	if len(doc.PingLogs) != 1 || doc.PingLogs[0].PingerID != pingerID || doc.PingLogs[0].Message != "hey <@100000000000000011>" {
		t.Fatalf("got ping logs %+v", doc.PingLogs)
	}
	if !s.Said("<@" + awayID + "> is AFK: sleeping") {
		t.Fatalf("no AFK notice: %v", s.Texts())
	}

	p.say(s, channelID, awayID, "I'm back")
	doc = p.member(t, awayID)
	if doc.AFK || len(doc.PingLogs) != 0 || doc.Reason != nil {
		t.Fatalf("AFK not cleared: %+v", doc)
	}
	if !s.Said("Welcome back <@"+awayID+">") || !s.Said("You were pinged 1 time(s) while away") {
		t.Fatalf("got %v", s.Texts())
	}
	if last := s.Nicknames[len(s.Nicknames)-1]; last.Value != "" {
		t.Fatalf("nickname not restored, last change %q", last.Value)
	}
}

func TestPingWithoutAFKIsIgnored(t *testing.T) {
	p, s := setup(t)

	p.say(s, channelID, pingerID, "hey", quietID)
	if len(s.Sent) != 0 {
		t.Fatalf("notice sent for a member that is not AFK: %v", s.Texts())
	}
	if exists, _ := p.deps.Store.Exists(context.Background(), store.MemberKey(pluginName, guildID, quietID)); exists {
		t.Fatalf("a ping created a document")
	}
}

func TestStickyAFK(t *testing.T) {
	p, s := setup(t)

	p.say(s, channelID, awayID, "?afk sticky")
	p.say(s, channelID, awayID, "?afk")
	p.say(s, channelID, awayID, "still here")
	if !p.member(t, awayID).AFK {
		t.Fatalf("sticky AFK ended on a message")
	}

	p.say(s, channelID, awayID, "?afk clear")
	if p.member(t, awayID).AFK {
		t.Fatalf("afk clear did not end sticky AFK")
	}
}

func TestToggleLogs(t *testing.T) {
	p, s := setup(t)

	p.say(s, channelID, awayID, "?afk togglelogs")
	p.say(s, channelID, awayID, "?afk")
	p.say(s, channelID, pingerID, "ping", awayID)
	if got := p.member(t, awayID).PingLogs; len(got) != 0 {
		t.Fatalf("pings logged with logs disabled: %v", got)
	}

	p.say(s, channelID, awayID, "back")
	if s.Said("You were pinged") {
		t.Fatalf("replayed an empty log")
	}
}

func TestIgnoredChannel(t *testing.T) {
	p, s := setup(t)

	p.say(s, channelID, adminID, "?afk settings ignore <#100000000000000444>")
	p.say(s, channelID, awayID, "?afk")
	p.say(s, "100000000000000444", awayID, "talking in an ignored channel")
	if !p.member(t, awayID).AFK {
		t.Fatalf("message in an ignored channel ended AFK")
	}
	p.say(s, channelID, awayID, "talking")
	if p.member(t, awayID).AFK {
		t.Fatalf("message in a regular channel did not end AFK")
	}
}

func TestNicknameSetting(t *testing.T) {
	p, s := setup(t)

	p.say(s, channelID, adminID, "?afk settings nick off")
	p.say(s, channelID, awayID, "?afk")
	if len(s.Nicknames) != 0 {
		t.Fatalf("nickname changed while disabled: %v", s.Nicknames)
	}
}

func TestForbiddenNicknameStillGoesAFK(t *testing.T) {
	p, s := setup(t)
	s.FailOn("GuildMemberNickname", awayID, cogtest.Forbidden())

	p.say(s, channelID, awayID, "?afk")
	doc := p.member(t, awayID)
	if !doc.AFK || doc.NickChanged {
		t.Fatalf("got %+v", doc)
	}
}

func TestClearOthersNeedsAdmin(t *testing.T) {
	p, s := setup(t)

	p.say(s, channelID, awayID, "?afk")
	p.say(s, channelID, pingerID, "?afk clear <@100000000000000011>")
	if !p.member(t, awayID).AFK {
		t.Fatalf("a member cleared someone else's AFK")
	}

	p.say(s, channelID, adminID, "?afk clear <@100000000000000011>")
	if p.member(t, awayID).AFK {
		t.Fatalf("admin could not clear AFK")
	}
}

func TestDeleteUserData(t *testing.T) {
	p, s := setup(t)

	p.say(s, channelID, awayID, "?afk")
	p.say(s, channelID, pingerID, "?afk")
	p.say(s, channelID, pingerID, "ping", awayID)

	if err := p.DeleteUserData(context.Background(), pingerID); err != nil {
		t.Fatalf("DeleteUserData: %v", err)
	}

	if exists, _ := p.deps.Store.Exists(context.Background(), store.MemberKey(pluginName, guildID, pingerID)); exists {
		t.Fatalf("AFK document of the deleted user survived")
	}
	logs := p.member(t, awayID).PingLogs
	if len(logs) != 1 || logs[0].PingerID != deletedUserID || logs[0].Message != "" {
		t.Fatalf("got %+v", logs)
	}
}

func TestStaleSettingsAreNotCached(t *testing.T) {
	p, s := setup(t)
	ctx := context.Background()

	stale, err := p.guild(ctx, guildID)
	if err != nil {
		t.Fatalf("guild: %v", err)
	}
	p.guilds.Delete(guildID)

	// a load that started before the settings changed finishes after them
	version := p.version(guildID)
	p.say(s, channelID, adminID, "?afk settings nick off")
	p.cache(guildID, version, stale)

	got, err := p.guild(ctx, guildID)
	if err != nil {
		t.Fatalf("guild: %v", err)
	}
	if got.Nick {
		t.Fatalf("stale settings were cached over the update")
	}
}
