package cog_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/olympus-go/cogs/cog"
	"github.com/olympus-go/cogs/cog/cogtest"
)

func discard() slog.Handler {
	return slog.NewTextHandler(io.Discard, nil)
}

func newRouter(t *testing.T) (*cog.Router, *cog.Deps, *[]cog.Args) {
	t.Helper()

	deps := &cog.Deps{Prefix: "?", Owners: []string{"owner"}}
	router := cog.NewRouter(deps, slog.New(discard()))

	var calls []cog.Args
	record := func(_ context.Context, _ cog.Invocation, args cog.Args) error {
		calls = append(calls, args)
		return nil
	}

	router.Add(&cog.Command{
		Name:    "donationlogger",
		Aliases: []string{"dono"},
		Checks:  []cog.Check{cog.GuildOnly},
		Subcommands: []*cog.Command{
			{
				Name: "add",
				Options: []cog.Option{
					{Name: "bank", Required: true},
					{Name: "amount", Required: true},
					{Name: "member", Type: discordgo.ApplicationCommandOptionUser},
				},
				Run: record,
			},
			{
				Name: "bank",
				Subcommands: []*cog.Command{
					{Name: "create", Options: []cog.Option{{Name: "name", Required: true}}, Run: record},
				},
			},
		},
	})
	router.Add(&cog.Command{
		Name:    "afk",
		Options: []cog.Option{{Name: "reason", Rest: true}},
		Run:     record,
	})

	return router, deps, &calls
}

func TestPrefixArguments(t *testing.T) {
	router, _, calls := newRouter(t)
	s := cogtest.NewSession()

	if !router.HandleMessage(context.Background(), s, cogtest.Message("g", "c", "u", `?dono add "big bank" 10k <@42>`)) {
		t.Fatalf("command not handled")
	}
	if len(*calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(*calls))
	}
	args := (*calls)[0]
	if args.String("bank") != "big bank" || args.String("amount") != "10k" || args.String("member") != "<@42>" {
		t.Fatalf("got %v", args)
	}

	router.HandleMessage(context.Background(), s, cogtest.Message("g", "c", "u", "?afk gone fishing for a while"))
	if got := (*calls)[1].String("reason"); got != "gone fishing for a while" {
		t.Fatalf("got reason %q", got)
	}

	router.HandleMessage(context.Background(), s, cogtest.Message("g", "c", "u", "?donationlogger bank create main"))
	if got := (*calls)[2].String("name"); got != "main" {
		t.Fatalf("got name %q", got)
	}
}

func TestPrefixIgnoresOtherMessages(t *testing.T) {
	router, _, calls := newRouter(t)
	s := cogtest.NewSession()

	for _, content := range []string{"hello", "?unknown thing", "?", "!dono add a 1"} {
		if router.HandleMessage(context.Background(), s, cogtest.Message("g", "c", "u", content)) {
			t.Fatalf("%q was handled", content)
		}
	}

	bot := cogtest.Message("g", "c", "u", "?afk")
	bot.Author.Bot = true
	if router.HandleMessage(context.Background(), s, bot) {
		t.Fatalf("bot message was handled")
	}
	if len(*calls) != 0 {
		t.Fatalf("got %d calls, want 0", len(*calls))
	}
}

func TestPrefixMissingArgument(t *testing.T) {
	router, _, calls := newRouter(t)
	s := cogtest.NewSession()

	router.HandleMessage(context.Background(), s, cogtest.Message("g", "c", "u", "?dono add main"))
	if len(*calls) != 0 {
		t.Fatalf("command ran without its arguments")
	}
	if !s.Said("Missing required argument `amount`") {
		t.Fatalf("no usage reply, got %v", s.Texts())
	}
}

func TestGroupWithoutSubcommandShowsUsage(t *testing.T) {
	router, _, _ := newRouter(t)
	s := cogtest.NewSession()

	router.HandleMessage(context.Background(), s, cogtest.Message("g", "c", "u", "?dono"))
	if !s.Said("Usage: `?donationlogger <add|bank>`") {
		t.Fatalf("got %v", s.Texts())
	}
}

func TestChecksRunForGroups(t *testing.T) {
	router, _, calls := newRouter(t)
	s := cogtest.NewSession()

	router.HandleMessage(context.Background(), s, cogtest.Message("", "c", "u", "?dono add main 5"))
	if len(*calls) != 0 {
		t.Fatalf("guild only command ran in a DM")
	}
	if !s.Said("only be used in a server") {
		t.Fatalf("got %v", s.Texts())
	}
}

func TestSlashArguments(t *testing.T) {
	router, _, calls := newRouter(t)
	s := cogtest.NewSession()

	data := discordgo.ApplicationCommandInteractionData{
		Name: "donationlogger",
		Options: []*discordgo.ApplicationCommandInteractionDataOption{
			{
				Name: "add",
				Type: discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{Name: "bank", Type: discordgo.ApplicationCommandOptionString, Value: "main"},
					{Name: "amount", Type: discordgo.ApplicationCommandOptionString, Value: "1.5m"},
					{Name: "member", Type: discordgo.ApplicationCommandOptionUser, Value: "42"},
				},
			},
		},
	}

	router.HandleInteraction(context.Background(), s, cogtest.Slash("g", "c", "u", 0, data))
	if len(*calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(*calls))
	}
	args := (*calls)[0]
	if args.String("bank") != "main" || args.String("amount") != "1.5m" || args.String("member") != "42" {
		t.Fatalf("got %v", args)
	}
}

func TestApplicationCommands(t *testing.T) {
	router, _, _ := newRouter(t)

	commands := router.ApplicationCommands()
	dono, ok := commands["donationlogger_cmd"]
	if !ok {
		t.Fatalf("missing donationlogger command, got %v", commands)
	}
	if len(dono.Options) != 2 {
		t.Fatalf("got %d options, want 2", len(dono.Options))
	}
	if dono.Options[0].Type != discordgo.ApplicationCommandOptionSubCommand {
		t.Fatalf("add is %v, want subcommand", dono.Options[0].Type)
	}
	if dono.Options[1].Type != discordgo.ApplicationCommandOptionSubCommandGroup {
		t.Fatalf("bank is %v, want subcommand group", dono.Options[1].Type)
	}
	if member := dono.Options[0].Options[2]; member.Type != discordgo.ApplicationCommandOptionUser || member.Required {
		t.Fatalf("got member option %+v", member)
	}
}

func TestUnexpectedErrorsUseFormatter(t *testing.T) {
	deps := &cog.Deps{Prefix: "?"}
	router := cog.NewRouter(deps, slog.New(discard()))
	router.Add(&cog.Command{
		Name: "boom",
		Run: func(context.Context, cog.Invocation, cog.Args) error {
			return errors.New("kaboom")
		},
	})
	s := cogtest.NewSession()

	router.HandleMessage(context.Background(), s, cogtest.Message("g", "c", "u", "?boom"))
	if !s.Said("Error in command `boom`") || !s.Said("kaboom") {
		t.Fatalf("got %v", s.Texts())
	}

	deps.Errors = formatterFunc(func(command string, err error) string {
		return strings.ToUpper(command) + ": " + err.Error()
	})
	router.HandleMessage(context.Background(), s, cogtest.Message("g", "c", "u", "?boom"))
	if !s.Said("BOOM: kaboom") {
		t.Fatalf("got %v", s.Texts())
	}
}

type formatterFunc func(string, error) string

func (f formatterFunc) FormatError(command string, err error) string { return f(command, err) }

func TestCooldown(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	deps := &cog.Deps{Prefix: "?", Now: func() time.Time { return now }}
	router := cog.NewRouter(deps, slog.New(discard()))

	runs := 0
	router.Add(&cog.Command{
		Name:     "gping",
		Cooldown: cog.NewCooldown(1, time.Minute),
		Run: func(context.Context, cog.Invocation, cog.Args) error {
			runs++
			return nil
		},
	})
	s := cogtest.NewSession()

	router.HandleMessage(context.Background(), s, cogtest.Message("g", "c", "u", "?gping"))
	now = now.Add(10 * time.Second)
	router.HandleMessage(context.Background(), s, cogtest.Message("g", "c", "u", "?gping"))
	if runs != 1 {
		t.Fatalf("got %d runs, want 1", runs)
	}
	if !s.Said("on cooldown") {
		t.Fatalf("got %v", s.Texts())
	}

	router.HandleMessage(context.Background(), s, cogtest.Message("g", "c", "other", "?gping"))
	if runs != 2 {
		t.Fatalf("cooldown is not per user")
	}

	now = now.Add(time.Minute)
	router.HandleMessage(context.Background(), s, cogtest.Message("g", "c", "u", "?gping"))
	if runs != 3 {
		t.Fatalf("got %d runs after the window, want 3", runs)
	}
}

func TestAdminCheck(t *testing.T) {
	deps := &cog.Deps{Prefix: "?", Owners: []string{"owner"}}
	deps.Permissions = func(userID string, _ string) (int64, error) {
		if userID == "admin" {
			return discordgo.PermissionAdministrator, nil
		}
		return 0, nil
	}
	router := cog.NewRouter(deps, slog.New(discard()))

	var ran []string
	router.Add(&cog.Command{
		Name:   "secret",
		Checks: []cog.Check{cog.Admin},
		Run: func(_ context.Context, inv cog.Invocation, _ cog.Args) error {
			ran = append(ran, inv.Author().ID)
			return nil
		},
	})
	s := cogtest.NewSession()

	for _, user := range []string{"admin", "owner", "nobody"} {
		router.HandleMessage(context.Background(), s, cogtest.Message("g", "c", user, "?secret"))
	}
	if strings.Join(ran, ",") != "admin,owner" {
		t.Fatalf("got %v", ran)
	}
}

func TestHasAnyRole(t *testing.T) {
	deps := &cog.Deps{Prefix: "?"}
	router := cog.NewRouter(deps, slog.New(discard()))

	var ran []string
	router.Add(&cog.Command{
		Name: "manage",
		Checks: []cog.Check{cog.HasAnyRole(func(context.Context, string) ([]string, error) {
			return []string{"managers"}, nil
		})},
		Run: func(_ context.Context, inv cog.Invocation, _ cog.Args) error {
			ran = append(ran, inv.Author().ID)
			return nil
		},
	})
	s := cogtest.NewSession()

	router.HandleMessage(context.Background(), s, cogtest.Message("g", "c", "a", "?manage", "managers"))
	router.HandleMessage(context.Background(), s, cogtest.Message("g", "c", "b", "?manage", "members"))
	if strings.Join(ran, ",") != "a" {
		t.Fatalf("got %v", ran)
	}
}

func TestComponentRouting(t *testing.T) {
	router, _, _ := newRouter(t)
	s := cogtest.NewSession()

	var got []string
	router.Component("suggestions_", func(_ context.Context, c *cog.ComponentInvocation) error {
		got = append(got, "generic:"+c.CustomID())
		return nil
	})
	router.Component("suggestions_up_", func(_ context.Context, c *cog.ComponentInvocation) error {
		got = append(got, "up:"+c.CustomID())
		return cog.InputError("nope")
	})

	router.HandleInteraction(context.Background(), s, cogtest.Click("g", "c", "u", "suggestions_up_1", nil))
	router.HandleInteraction(context.Background(), s, cogtest.Click("g", "c", "u", "suggestions_down_1", nil))
	router.HandleInteraction(context.Background(), s, cogtest.Click("g", "c", "u", "timers_join", nil))

	if strings.Join(got, ",") != "up:suggestions_up_1,generic:suggestions_down_1" {
		t.Fatalf("got %v", got)
	}
	if !s.Said("nope") {
		t.Fatalf("component error was not reported")
	}
}
