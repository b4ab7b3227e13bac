package giveawayping

import (
	"context"
	"testing"
	"time"

	"github.com/olympus-go/cogs/cog/cogtest"
)

const (
	guildID = "g1"
	adminID = "admin1"
	hostID  = "u1"
)

func setup(t *testing.T) (*Plugin, *cogtest.Session, *time.Time) {
	t.Helper()

	now := time.Unix(1_700_000_000, 0)
	deps := cogtest.Deps(t)
	deps.Now = func() time.Time { return now }

	return NewPlugin(deps, cogtest.Handler()), cogtest.NewSession(), &now
}

func (p *Plugin) send(t *testing.T, s *cogtest.Session, userID string, content string) {
	t.Helper()

	if !p.router.HandleMessage(context.Background(), s, cogtest.Message(guildID, "c1", userID, content)) {
		t.Fatalf("%q was not handled", content)
	}
}

func TestRender(t *testing.T) {
	got := render("{role} {user} says {message}", "42", "host", "free nitro")
	if want := "<@&42> host says free nitro"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	got = render("{role} giveaway! {message}", "42", "host", "")
	if want := "<@&42> giveaway!"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestPingNeedsRole(t *testing.T) {
	p, s, _ := setup(t)

	p.send(t, s, hostID, "?gping")
	if !s.Said("not set up") {
		t.Fatalf("got %v", s.Texts())
	}
}

func TestPing(t *testing.T) {
	p, s, _ := setup(t)

	p.send(t, s, adminID, "?gping settings role <@&100000000000000321>")
	p.send(t, s, hostID, "?gping 1 day nitro")

	last := s.Sent[len(s.Sent)-1].Message
	if last.Content != "<@&100000000000000321> **useru1** is hosting a giveaway! 1 day nitro" {
		t.Fatalf("got %q", last.Content)
	}
	if last.AllowedMentions == nil || len(last.AllowedMentions.Roles) != 1 || last.AllowedMentions.Roles[0] != "100000000000000321" {
		t.Fatalf("ping does not allow the role mention: %+v", last.AllowedMentions)
	}
}

func TestCooldown(t *testing.T) {
	p, s, now := setup(t)

	p.send(t, s, adminID, "?gping settings role <@&100000000000000321>")
	p.send(t, s, hostID, "?gping first")
	p.send(t, s, hostID, "?gping send second")
	if s.Said("second") || !s.Said("You are on cooldown") {
		t.Fatalf("second ping within a minute went through: %v", s.Texts())
	}

	*now = now.Add(time.Minute)
	p.send(t, s, hostID, "?gping third")
	if !s.Said("third") {
		t.Fatalf("ping after the cooldown was rejected: %v", s.Texts())
	}
}

func TestRejectedPingKeepsCooldown(t *testing.T) {
	p, s, _ := setup(t)

	p.send(t, s, hostID, "?gping early")
	p.send(t, s, adminID, "?gping settings role <@&100000000000000321>")
	p.send(t, s, hostID, "?gping on time")
	if s.Said("You are on cooldown") || !s.Said("is hosting a giveaway! on time") {
		t.Fatalf("a ping that was never sent started the cooldown: %v", s.Texts())
	}
}

func TestTemplateAndToggle(t *testing.T) {
	p, s, _ := setup(t)

	p.send(t, s, adminID, "?gping settings role <@&100000000000000321>")
	p.send(t, s, adminID, "?gping settings template no role here")
	if !s.Said("must contain `{role}`") {
		t.Fatalf("got %v", s.Texts())
	}

	p.send(t, s, adminID, "?gping settings template {role} GIVEAWAY {message}")
	p.send(t, s, hostID, "?gping cookies")
	if !s.Said("<@&100000000000000321> GIVEAWAY cookies") {
		t.Fatalf("got %v", s.Texts())
	}

	p.send(t, s, adminID, "?gping settings toggle")
	p.send(t, s, "u2", "?gping more cookies")
	if s.Said("GIVEAWAY more cookies") || !s.Said("disabled here") {
		t.Fatalf("ping sent while disabled: %v", s.Texts())
	}
}
