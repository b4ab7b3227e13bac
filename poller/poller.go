// Package poller runs the fixed interval background scans plugins use to fire due items.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ListFunc returns the guilds to visit on a tick.
type ListFunc func(ctx context.Context) ([]string, error)

// StepFunc processes the due items of a single guild.
type StepFunc func(ctx context.Context, guildID string) error

// Poller is a single always-on loop. A guild whose step fails is logged and skipped; it is retried on the next tick.
type Poller struct {
	name       string
	interval   time.Duration
	guildDelay time.Duration
	list       ListFunc
	step       StepFunc
	logger     *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(name string, interval time.Duration, guildDelay time.Duration, list ListFunc, step StepFunc, h slog.Handler) *Poller {
	return &Poller{
		name:       name,
		interval:   interval,
		guildDelay: guildDelay,
		list:       list,
		step:       step,
		logger:     slog.New(h).With(slog.String("poller", name)),
	}
}

// Start launches the loop. Calling Start on a running poller does nothing.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})

	go p.run(ctx, p.done)
}

// Stop cancels the loop and waits for the current tick to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.cancel != nil
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Debug("poller started", slog.Duration("interval", p.interval))

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("poller stopped")
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick runs one scan over every listed guild.
func (p *Poller) Tick(ctx context.Context) {
	guildIDs, err := p.list(ctx)
	if err != nil {
		p.logger.Error("failed to list guilds", slog.String("error", err.Error()))
		return
	}

	for i, guildID := range guildIDs {
		if ctx.Err() != nil {
			return
		}

		if err := p.step(ctx, guildID); err != nil {
			p.logger.Error("guild step failed",
				slog.String("guild_id", guildID),
				slog.String("error", err.Error()),
			)
		}

		if p.guildDelay > 0 && i < len(guildIDs)-1 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.guildDelay):
			}
		}
	}
}
