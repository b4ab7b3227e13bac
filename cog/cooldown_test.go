package cog

import (
	"testing"
	"time"
)

func TestCooldownForgetsIdleUsers(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := NewCooldown(1, time.Minute)

	for _, userID := range []string{"u1", "u2", "u3"} {
		if _, ok := c.Take(userID, now); !ok {
			t.Fatalf("first use of %s was rejected", userID)
		}
	}
	if got := len(c.limiters); got != 3 {
		t.Fatalf("got %d limiters, want 3", got)
	}

	now = now.Add(time.Minute + time.Second)
	if _, ok := c.Take("u4", now); !ok {
		t.Fatalf("first use of u4 was rejected")
	}
	if got := len(c.limiters); got != 1 {
		t.Fatalf("got %d limiters after the window, want 1", got)
	}

	if _, ok := c.Take("u4", now.Add(time.Second)); ok {
		t.Fatalf("sweep reset an active cooldown")
	}
}
