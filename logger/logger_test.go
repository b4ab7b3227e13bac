package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/bwmarrin/discordgo"
)

func setup(level slog.Level) (*Plugin, *bytes.Buffer) {
	var buf bytes.Buffer
	h := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	return NewPlugin(h, level, "?"), &buf
}

func records(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var r map[string]any
		if err := dec.Decode(&r); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		out = append(out, r)
	}
	return out
}

func TestLogMessage(t *testing.T) {
	p, buf := setup(slog.LevelInfo)
	ctx := context.Background()

	author := &discordgo.User{ID: "u1", Username: "alice"}
	p.logMessage(ctx, &discordgo.Message{GuildID: "g1", Author: author, Content: "?afk sleeping now"})
	p.logMessage(ctx, &discordgo.Message{GuildID: "g1", Author: author, Content: "just chatting"})
	p.logMessage(ctx, &discordgo.Message{GuildID: "g1", Author: &discordgo.User{ID: "b", Bot: true}, Content: "?afk"})
	p.logMessage(ctx, &discordgo.Message{GuildID: "g1", Author: author, Content: "?"})

	got := records(t, buf)
	if len(got) != 1 {
		t.Fatalf("got %d records: %v", len(got), got)
	}
	r := got[0]
	if r["msg"] != "user used prefix command" || r["command"] != "afk" || r["args"] != float64(2) || r["user_id"] != "u1" || r["plugin"] != "logger" {
		t.Fatalf("got %v", r)
	}
}

func TestLevel(t *testing.T) {
	p, buf := setup(slog.LevelDebug)

	p.logMessage(context.Background(), &discordgo.Message{Author: &discordgo.User{ID: "u1"}, Content: "?stats"})
	if got := records(t, buf); len(got) != 0 {
		t.Fatalf("debug record passed an info handler: %v", got)
	}
}

func TestLogInteraction(t *testing.T) {
	p, buf := setup(slog.LevelInfo)
	ctx := context.Background()

	user := &discordgo.User{ID: "u1", Username: "alice"}
	p.logInteraction(ctx, &discordgo.Interaction{
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: "g1",
		Member:  &discordgo.Member{User: user},
		User:    user,
		Data:    discordgo.ApplicationCommandInteractionData{Name: "stats"},
	})
	p.logInteraction(ctx, &discordgo.Interaction{
		Type:    discordgo.InteractionMessageComponent,
		GuildID: "g1",
		Member:  &discordgo.Member{User: user},
		User:    user,
		Data:    discordgo.MessageComponentInteractionData{CustomID: "suggestions_up", ComponentType: discordgo.ButtonComponent},
	})
	p.logInteraction(ctx, &discordgo.Interaction{Type: discordgo.InteractionPing})

	got := records(t, buf)
	if len(got) != 2 {
		t.Fatalf("got %d records: %v", len(got), got)
	}
	if got[0]["msg"] != "user used slash command" || got[1]["msg"] != "user interacted with message component" {
		t.Fatalf("got %v", got)
	}
	for _, r := range got {
		if r["guild_id"] != "g1" {
			t.Fatalf("got %v", r)
		}
	}
}
