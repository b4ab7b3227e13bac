package cog_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/olympus-go/cogs/cog"
	"github.com/olympus-go/cogs/cog/cogtest"
)

type confirmResult struct {
	outcome cog.Outcome
	err     error
}

func startConfirm(views *cog.Views, inv cog.Invocation, timeout time.Duration) <-chan confirmResult {
	done := make(chan confirmResult, 1)
	go func() {
		outcome, err := views.Confirm(context.Background(), inv, "Reset everything?", timeout)
		done <- confirmResult{outcome, err}
	}()
	return done
}

func click(t *testing.T, views *cog.Views, s *cogtest.Session, userID string, suffix string) {
	t.Helper()

	var id string
	cogtest.Eventually(t, func() bool {
		for _, msg := range s.Messages() {
			for _, candidate := range cogtest.CustomIDs(msg.Components) {
				if strings.HasPrefix(candidate, "confirm_") && strings.HasSuffix(candidate, suffix) {
					id = candidate
					return true
				}
			}
		}
		return false
	})

	if err := views.HandleClick(cog.NewComponentInvocation(s, cogtest.Click("g", "c", userID, id, nil))); err != nil {
		t.Fatalf("HandleClick: %v", err)
	}
}

func TestConfirmOutcomes(t *testing.T) {
	tests := []struct {
		suffix string
		want   cog.Outcome
	}{
		{suffix: "_yes", want: cog.Confirmed},
		{suffix: "_no", want: cog.Declined},
	}

	for _, tt := range tests {
		views := cog.NewViews(discard(), nil)
		s := cogtest.NewSession()
		inv := cog.NewMessageInvocation(s, cogtest.Message("g", "c", "invoker", "?reset"), 0)

		done := startConfirm(views, inv, time.Second)
		click(t, views, s, "invoker", tt.suffix)

		res := <-done
		if res.err != nil || res.outcome != tt.want {
			t.Fatalf("got %v, %v, want %v", res.outcome, res.err, tt.want)
		}

		edits := s.Edits
		if len(edits) == 0 || !cogtest.AllDisabled(*edits[len(edits)-1].Components) {
			t.Fatalf("buttons were not disabled after %v", tt.want)
		}
	}
}

func TestConfirmTimesOut(t *testing.T) {
	views := cog.NewViews(discard(), nil)
	s := cogtest.NewSession()
	inv := cog.NewMessageInvocation(s, cogtest.Message("g", "c", "invoker", "?reset"), 0)

	outcome, err := views.Confirm(context.Background(), inv, "Reset everything?", 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if outcome != cog.TimedOut {
		t.Fatalf("got %v, want timed out", outcome)
	}
	if !s.Said("took too long") {
		t.Fatalf("got %v", s.Texts())
	}
	if len(s.Edits) != 1 || !cogtest.AllDisabled(*s.Edits[0].Components) {
		t.Fatalf("buttons were not disabled after timeout")
	}
}

func TestConfirmRejectsStrangers(t *testing.T) {
	views := cog.NewViews(discard(), func(userID string) bool { return userID == "owner" })
	s := cogtest.NewSession()
	inv := cog.NewMessageInvocation(s, cogtest.Message("g", "c", "invoker", "?reset"), 0)

	done := startConfirm(views, inv, time.Second)
	click(t, views, s, "stranger", "_yes")

	if !s.Said("You are not allowed to interact with this.") {
		t.Fatalf("stranger was not rejected, got %v", s.Texts())
	}
	select {
	case res := <-done:
		t.Fatalf("prompt resolved by a stranger: %v", res.outcome)
	case <-time.After(20 * time.Millisecond):
	}

	click(t, views, s, "owner", "_no")
	if res := <-done; res.outcome != cog.Declined {
		t.Fatalf("got %v, want declined", res.outcome)
	}
}

func TestConfirmExpiredClick(t *testing.T) {
	views := cog.NewViews(discard(), nil)
	s := cogtest.NewSession()

	c := cog.NewComponentInvocation(s, cogtest.Click("g", "c", "u", "confirm_gone_yes", nil))
	if err := views.HandleClick(c); err != nil {
		t.Fatalf("HandleClick: %v", err)
	}
	if !s.Said("expired") {
		t.Fatalf("got %v", s.Texts())
	}
}
