package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func discard() slog.Handler {
	return slog.NewTextHandler(io.Discard, nil)
}

func TestTickSkipsFailingGuilds(t *testing.T) {
	var visited []string
	p := New("test", time.Hour, 0,
		func(context.Context) ([]string, error) { return []string{"a", "b", "c"}, nil },
		func(_ context.Context, guildID string) error {
			visited = append(visited, guildID)
			if guildID == "b" {
				return errors.New("forbidden")
			}
			return nil
		},
		discard(),
	)

	p.Tick(context.Background())

	if len(visited) != 3 || visited[2] != "c" {
		t.Fatalf("got %v, want every guild visited", visited)
	}
}

func TestTickListError(t *testing.T) {
	steps := 0
	p := New("test", time.Hour, 0,
		func(context.Context) ([]string, error) { return nil, errors.New("store closed") },
		func(context.Context, string) error { steps++; return nil },
		discard(),
	)

	p.Tick(context.Background())

	if steps != 0 {
		t.Fatalf("got %d steps, want 0", steps)
	}
}

func TestStartIsSingleInstance(t *testing.T) {
	var mu sync.Mutex
	var inFlight, maxInFlight int
	var ticks atomic.Int32

	p := New("test", 5*time.Millisecond, 0,
		func(context.Context) ([]string, error) { return []string{"a"}, nil },
		func(context.Context, string) error {
			mu.Lock()
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)
			ticks.Add(1)

			mu.Lock()
			inFlight--
			mu.Unlock()
			return nil
		},
		discard(),
	)

	p.Start(context.Background())
	p.Start(context.Background())
	if !p.Running() {
		t.Fatalf("poller is not running")
	}

	deadline := time.Now().Add(time.Second)
	for ticks.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	p.Stop()

	if ticks.Load() < 3 {
		t.Fatalf("got %d ticks, want at least 3", ticks.Load())
	}
	if maxInFlight != 1 {
		t.Fatalf("got %d concurrent steps, want 1", maxInFlight)
	}
	if p.Running() {
		t.Fatalf("poller still running after Stop")
	}

	after := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	if ticks.Load() != after {
		t.Fatalf("poller ticked after Stop")
	}
}

func TestStopHonoursGuildDelay(t *testing.T) {
	started := make(chan struct{}, 1)
	p := New("test", time.Millisecond, time.Hour,
		func(context.Context) ([]string, error) { return []string{"a", "b"}, nil },
		func(context.Context, string) error {
			select {
			case started <- struct{}{}:
			default:
			}
			return nil
		},
		discard(),
	)

	p.Start(context.Background())
	<-started

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatalf("Stop blocked on the inter-guild sleep")
	}
}
