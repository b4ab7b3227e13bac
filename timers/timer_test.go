package timers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/olympus-go/cogs/cog/cogtest"
	"github.com/olympus-go/cogs/store"
)

const (
	guildID   = "g1"
	channelID = "c1"
	adminID   = "admin1"
	hostID    = "u1"
	memberID  = "u2"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setup(t *testing.T) (*Plugin, *cogtest.Session, *clock) {
	t.Helper()

	c := &clock{now: time.Unix(1_700_000_000, 0)}
	deps := cogtest.Deps(t)
	deps.Now = c.Now

	return NewPlugin(deps, cogtest.Handler()), cogtest.NewSession(), c
}

func (p *Plugin) send(t *testing.T, s *cogtest.Session, userID string, content string) {
	t.Helper()

	if !p.router.HandleMessage(context.Background(), s, cogtest.Message(guildID, channelID, userID, content)) {
		t.Fatalf("%q was not handled", content)
	}
}

func (p *Plugin) timers(t *testing.T) map[string]*Timer {
	t.Helper()

	doc, err := store.View[guildDoc](context.Background(), p.deps.Store, store.GuildKey(pluginName, guildID))
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	return doc.Timers
}

// only returns the single running timer.
func (p *Plugin) only(t *testing.T) *Timer {
	t.Helper()

	timers := p.timers(t)
	if len(timers) != 1 {
		t.Fatalf("got %d timers, want 1", len(timers))
	}
	for _, timer := range timers {
		return timer
	}
	return nil
}

func (p *Plugin) clickRemind(t *testing.T, s *cogtest.Session, userID string, timer *Timer) {
	t.Helper()

	for _, msg := range s.Messages() {
		if msg.ID == timer.MessageID {
			p.router.HandleInteraction(context.Background(), s, cogtest.Click(guildID, msg.ChannelID, userID, remindPrefix, msg))
			return
		}
	}
	t.Fatalf("timer message %s is gone", timer.MessageID)
}

func TestChunkMentions(t *testing.T) {
	var ids []string
	for i := 0; i < 300; i++ {
		ids = append(ids, fmt.Sprintf("1000000000000%05d", i))
	}
	header := "The timer for **giveaway** has ended!\n"

	chunks := chunkMentions(header, ids, messageLimit)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want several", len(chunks))
	}
	if !strings.HasPrefix(chunks[0], header) {
		t.Fatalf("first chunk does not start with the header")
	}

	joined := strings.Join(chunks, " ")
	for _, c := range chunks {
		if len(c) > messageLimit {
			t.Fatalf("chunk of %d characters exceeds the limit", len(c))
		}
	}
	for _, id := range ids {
		if strings.Count(joined, "<@"+id+">") != 1 {
			t.Fatalf("%s is not mentioned exactly once", id)
		}
	}

	if got := chunkMentions("hi", nil, messageLimit); len(got) != 1 || got[0] != "hi" {
		t.Fatalf("got %v for no members", got)
	}
}

func TestStartValidatesDuration(t *testing.T) {
	p, s, _ := setup(t)

	p.send(t, s, hostID, "?timer start 5s")
	p.send(t, s, hostID, "?timer start 15d")
	p.send(t, s, hostID, "?timer start soon")
	if len(p.timers(t)) != 0 {
		t.Fatalf("invalid durations started a timer")
	}
	if !s.Said("at least 10 seconds") || !s.Said("longer than 14 days") {
		t.Fatalf("got %v", s.Texts())
	}
}

func TestStartRespectsLimit(t *testing.T) {
	p, s, _ := setup(t)

	p.send(t, s, adminID, "?timer settings max 2")
	for i := 0; i < 3; i++ {
		p.send(t, s, hostID, "?timer start 1m")
	}
	if got := len(p.timers(t)); got != 2 {
		t.Fatalf("got %d timers, want 2", got)
	}
	if !s.Said("already has 2 running timers") {
		t.Fatalf("got %v", s.Texts())
	}
}

func TestTimerEndsAndPings(t *testing.T) {
	p, s, c := setup(t)

	p.send(t, s, hostID, "?timer start 1h30m raffle")
	timer := p.only(t)
	if timer.Title != "raffle" || timer.EndTimestamp != c.Now().Add(90*time.Minute).Unix() {
		t.Fatalf("got %+v", timer)
	}

	p.clickRemind(t, s, memberID, timer)
	p.clickRemind(t, s, "u3", timer)
	p.clickRemind(t, s, "u3", timer)
	if got := p.only(t).Members; len(got) != 1 || got[0] != memberID {
		t.Fatalf("got members %v", got)
	}

	ctx := context.Background()
	if err := p.endDue(ctx, s, guildID); err != nil {
		t.Fatalf("endDue: %v", err)
	}
	if len(p.timers(t)) != 1 {
		t.Fatalf("timer ended early")
	}

	c.Advance(90 * time.Minute)
	if err := p.endDue(ctx, s, guildID); err != nil {
		t.Fatalf("endDue: %v", err)
	}
	if len(p.timers(t)) != 0 {
		t.Fatalf("ended timer was not removed")
	}
	if !s.Said("The timer for **raffle** has ended!") || !s.Said("<@"+memberID+">") || s.Said("<@u3>") {
		t.Fatalf("got %v", s.Texts())
	}

	for _, msg := range s.Messages() {
		if msg.ID == timer.MessageID && !cogtest.AllDisabled(msg.Components) {
			t.Fatalf("remind button still enabled on an ended timer")
		}
	}
}

func TestDeletedMessageIsPrunedOnTick(t *testing.T) {
	p, s, c := setup(t)

	p.send(t, s, hostID, "?timer start 30s")
	timer := p.only(t)
	sent := len(s.Sent)

	s.DeleteMessage(timer.ChannelID, timer.MessageID)
	c.Advance(time.Minute)

	if err := p.endDue(context.Background(), s, guildID); err != nil {
		t.Fatalf("endDue: %v", err)
	}
	if len(p.timers(t)) != 0 {
		t.Fatalf("timer with a deleted message survived the tick")
	}
	if len(s.Sent) != sent {
		t.Fatalf("pinged members of a timer whose message was deleted")
	}
}

func TestDeleteEventPrunes(t *testing.T) {
	p, s, _ := setup(t)

	p.send(t, s, hostID, "?timer start 10m")
	timer := p.only(t)

	p.prune(context.Background(), guildID, timer.MessageID)
	if len(p.timers(t)) != 0 {
		t.Fatalf("delete event did not prune the timer")
	}
}

func TestEndAndCancel(t *testing.T) {
	p, s, _ := setup(t)

	p.send(t, s, hostID, "?timer start 10m first")
	timer := p.only(t)

	p.send(t, s, memberID, "?timer end "+timer.MessageID)
	if len(p.timers(t)) != 1 {
		t.Fatalf("a stranger ended the timer")
	}

	p.send(t, s, hostID, "?timer cancel "+timer.MessageID)
	if len(p.timers(t)) != 0 {
		t.Fatalf("host could not cancel the timer")
	}
	if s.Said("has ended!") {
		t.Fatalf("cancelled timer pinged members")
	}

	p.send(t, s, hostID, "?timer start 10m second")
	timer = p.only(t)
	p.send(t, s, adminID, "?timer end "+timer.MessageID)
	if !s.Said("The timer for **second** has ended!") {
		t.Fatalf("got %v", s.Texts())
	}

	p.send(t, s, adminID, "?timer end "+timer.MessageID)
	if !s.Said("There is no running timer with message id") {
		t.Fatalf("ending twice was not rejected: %v", s.Texts())
	}
}

func TestDeleteUserData(t *testing.T) {
	p, s, _ := setup(t)

	p.send(t, s, hostID, "?timer start 10m")
	timer := p.only(t)
	p.clickRemind(t, s, memberID, timer)

	if err := p.DeleteUserData(context.Background(), memberID); err != nil {
		t.Fatalf("DeleteUserData: %v", err)
	}
	if err := p.DeleteUserData(context.Background(), hostID); err != nil {
		t.Fatalf("DeleteUserData: %v", err)
	}

	got := p.only(t)
	if len(got.Members) != 0 || got.HostID != deletedUserID {
		t.Fatalf("got %+v", got)
	}
}
