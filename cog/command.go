package cog

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Option is a positional argument for prefix commands and a typed option for slash commands.
type Option struct {
	Name        string
	Description string
	Type        discordgo.ApplicationCommandOptionType
	Required    bool
	// Rest consumes every remaining token of a prefix command. Only the last option may set it.
	Rest bool
}

// Command is a single command or a group of subcommands. A group's checks apply to every subcommand below it.
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Options     []Option
	Subcommands []*Command
	Cooldown    *Cooldown
	Checks      []Check
	Run         func(ctx context.Context, inv Invocation, args Args) error
}

// Args holds the raw option values of an invocation keyed by option name. User, role and channel options hold ids.
type Args map[string]string

func (a Args) String(name string) string {
	return a[name]
}

func (a Args) Has(name string) bool {
	v, ok := a[name]
	return ok && v != ""
}

func (c *Command) matches(name string) bool {
	if strings.EqualFold(c.Name, name) {
		return true
	}
	for _, alias := range c.Aliases {
		if strings.EqualFold(alias, name) {
			return true
		}
	}
	return false
}

func (c *Command) subcommand(name string) *Command {
	for _, sub := range c.Subcommands {
		if sub.matches(name) {
			return sub
		}
	}
	return nil
}

// usage renders the argument list of c the way prefix users type it, e.g. "<bank> <amount> [member]".
func (c *Command) usage() string {
	var parts []string
	for _, opt := range c.Options {
		name := opt.Name
		if opt.Rest {
			name += "..."
		}
		if opt.Required {
			parts = append(parts, "<"+name+">")
		} else {
			parts = append(parts, "["+name+"]")
		}
	}
	return strings.Join(parts, " ")
}

// ApplicationCommand converts c into its slash command definition. Nested groups deeper than Discord allows are
// dropped.
func (c *Command) ApplicationCommand() *discordgo.ApplicationCommand {
	cmd := &discordgo.ApplicationCommand{
		Name:        strings.ToLower(c.Name),
		Description: description(c.Description),
	}

	if len(c.Subcommands) == 0 {
		cmd.Options = applicationOptions(c.Options)
		return cmd
	}

	for _, sub := range c.Subcommands {
		cmd.Options = append(cmd.Options, sub.applicationOption(1))
	}

	return cmd
}

func (c *Command) applicationOption(depth int) *discordgo.ApplicationCommandOption {
	opt := &discordgo.ApplicationCommandOption{
		Name:        strings.ToLower(c.Name),
		Description: description(c.Description),
	}

	if len(c.Subcommands) == 0 || depth >= 2 {
		opt.Type = discordgo.ApplicationCommandOptionSubCommand
		opt.Options = applicationOptions(c.Options)
		return opt
	}

	opt.Type = discordgo.ApplicationCommandOptionSubCommandGroup
	for _, sub := range c.Subcommands {
		opt.Options = append(opt.Options, sub.applicationOption(depth+1))
	}

	return opt
}

func applicationOptions(options []Option) []*discordgo.ApplicationCommandOption {
	var out []*discordgo.ApplicationCommandOption
	for _, o := range options {
		t := o.Type
		if t == 0 {
			t = discordgo.ApplicationCommandOptionString
		}
		out = append(out, &discordgo.ApplicationCommandOption{
			Name:        strings.ToLower(o.Name),
			Description: description(o.Description),
			Type:        t,
			Required:    o.Required,
		})
	}

	// Discord rejects required options that follow optional ones.
	var required, optional []*discordgo.ApplicationCommandOption
	for _, o := range out {
		if o.Required {
			required = append(required, o)
		} else {
			optional = append(optional, o)
		}
	}

	return append(required, optional...)
}

func description(d string) string {
	if d == "" {
		return "No description."
	}
	if len(d) > 100 {
		return d[:97] + "..."
	}
	return d
}
