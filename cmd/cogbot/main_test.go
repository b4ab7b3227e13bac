package main

import (
	"testing"

	"github.com/bwmarrin/discordgo"
)

type fakePlugin struct {
	name     string
	intents  []discordgo.Intent
	commands map[string]*discordgo.ApplicationCommand
}

func (f fakePlugin) Name() string { return f.name }

func (f fakePlugin) Handlers() map[string]any { return nil }

func (f fakePlugin) Commands() map[string]*discordgo.ApplicationCommand { return f.commands }

func (f fakePlugin) Intents() []discordgo.Intent { return f.intents }

func TestIntents(t *testing.T) {
	plugins := []plugin{
		fakePlugin{name: "a", intents: []discordgo.Intent{discordgo.IntentsGuildMessages, discordgo.IntentsMessageContent}},
		fakePlugin{name: "b", intents: []discordgo.Intent{discordgo.IntentsGuildMembers, discordgo.IntentsGuildMessages}},
		fakePlugin{name: "c"},
	}

	got := intents(plugins)
	want := discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent | discordgo.IntentsGuildMembers
	if got != want {
		t.Fatalf("got %b, want %b", got, want)
	}

	if got := intents(nil); got != discordgo.IntentsGuilds {
		t.Fatalf("got %b without plugins, want only guilds", got)
	}
}

func TestApplicationCommands(t *testing.T) {
	plugins := []plugin{
		fakePlugin{name: "a", commands: map[string]*discordgo.ApplicationCommand{
			"timer": {Name: "timer"},
			"afk":   {Name: "afk"},
		}},
		fakePlugin{name: "b"},
		fakePlugin{name: "c", commands: map[string]*discordgo.ApplicationCommand{"gping": {Name: "gping"}}},
	}

	got := applicationCommands(plugins)
	if len(got) != 3 || got[0].Name != "afk" || got[1].Name != "gping" || got[2].Name != "timer" {
		t.Fatalf("got %v", got)
	}
}
