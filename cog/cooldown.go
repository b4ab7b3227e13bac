package cog

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Cooldown limits a command to a number of uses per window per user.
type Cooldown struct {
	uses   int
	window time.Duration

	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	lastSweep time.Time
}

func NewCooldown(uses int, window time.Duration) *Cooldown {
	if uses < 1 {
		uses = 1
	}
	return &Cooldown{
		uses:     uses,
		window:   window,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (c *Cooldown) limiter(userID string, now time.Time) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.lastSweep) >= c.window {
		c.sweep(now)
	}

	l, ok := c.limiters[userID]
	if !ok {
		l = rate.NewLimiter(rate.Every(c.window/time.Duration(c.uses)), c.uses)
		c.limiters[userID] = l
	}
	return l
}

// sweep drops the limiters that refilled completely, they behave exactly like fresh ones.
func (c *Cooldown) sweep(now time.Time) {
	for userID, l := range c.limiters {
		if l.TokensAt(now) >= float64(c.uses) {
			delete(c.limiters, userID)
		}
	}
	c.lastSweep = now
}

// Take consumes one use for userID at now. When the user is on cooldown nothing is consumed and the remaining wait
// is returned.
func (c *Cooldown) Take(userID string, now time.Time) (time.Duration, bool) {
	l := c.limiter(userID, now)

	r := l.ReserveN(now, 1)
	if !r.OK() {
		return c.window, false
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return delay, false
	}

	return 0, true
}

// CooldownError is the user error for a caller that has to wait before using a command again.
func CooldownError(wait time.Duration) error {
	seconds := wait.Round(time.Second).Seconds()
	if seconds < 1 {
		seconds = 1
	}
	return &UserError{Kind: KindCooldown, Message: fmt.Sprintf("You are on cooldown. Try again in %.0fs.", seconds)}
}
