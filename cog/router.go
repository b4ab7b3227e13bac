package cog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/eolso/threadsafe"
	"github.com/mgutz/str"
)

// ComponentHandler answers a click on a component whose custom id starts with the registered prefix.
type ComponentHandler func(ctx context.Context, c *ComponentInvocation) error

// Router dispatches prefix messages, slash commands and component clicks of a single plugin.
type Router struct {
	deps       *Deps
	logger     *slog.Logger
	commands   []*Command
	components *threadsafe.Map[string, ComponentHandler]
}

func NewRouter(deps *Deps, logger *slog.Logger) *Router {
	return &Router{
		deps:       deps,
		logger:     logger,
		components: threadsafe.NewMap[string, ComponentHandler](),
	}
}

func (r *Router) Add(commands ...*Command) {
	r.commands = append(r.commands, commands...)
}

func (r *Router) Component(prefix string, fn ComponentHandler) {
	r.components.Set(prefix, fn)
}

// ApplicationCommands returns the slash command definitions of every registered command, keyed the way plugin
// Commands() maps are.
func (r *Router) ApplicationCommands() map[string]*discordgo.ApplicationCommand {
	commands := make(map[string]*discordgo.ApplicationCommand)
	for _, c := range r.commands {
		commands[strings.ToLower(c.Name)+"_cmd"] = c.ApplicationCommand()
	}
	return commands
}

func (r *Router) InteractionHandler() func(*discordgo.Session, *discordgo.InteractionCreate) {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		r.HandleInteraction(context.Background(), s, i.Interaction)
	}
}

func (r *Router) MessageHandler() func(*discordgo.Session, *discordgo.MessageCreate) {
	return func(s *discordgo.Session, m *discordgo.MessageCreate) {
		r.HandleMessage(context.Background(), s, m.Message)
	}
}

func (r *Router) find(name string) *Command {
	for _, c := range r.commands {
		if c.matches(name) {
			return c
		}
	}
	return nil
}

// IsCommand reports whether content is addressed to the bot through the command prefix.
func (r *Router) IsCommand(content string) bool {
	return r.deps.Prefix != "" && strings.HasPrefix(content, r.deps.Prefix)
}

func (r *Router) HandleInteraction(ctx context.Context, s Session, i *discordgo.Interaction) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		cmd := r.find(data.Name)
		if cmd == nil {
			return
		}

		chain, args := resolveSlash(cmd, data.Options)
		r.run(ctx, NewInteractionInvocation(s, i), chain, args, nil)
	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID

		var match string
		var handler ComponentHandler
		prefixes, handlers := r.components.Items()
		for idx, prefix := range prefixes {
			if strings.HasPrefix(customID, prefix) && len(prefix) > len(match) {
				match, handler = prefix, handlers[idx]
			}
		}
		if handler == nil {
			return
		}

		c := NewComponentInvocation(s, i)
		if err := handler(ctx, c); err != nil {
			r.report(c, customID, err)
		}
	}
}

// HandleMessage runs the prefix command in m, if any, and reports whether m was one of this router's commands.
func (r *Router) HandleMessage(ctx context.Context, s Session, m *discordgo.Message) bool {
	if m.Author == nil || m.Author.Bot || !r.IsCommand(m.Content) {
		return false
	}

	tokens := argv(strings.TrimPrefix(m.Content, r.deps.Prefix))
	if len(tokens) == 0 {
		return false
	}

	cmd := r.find(tokens[0])
	if cmd == nil {
		return false
	}

	chain := []*Command{cmd}
	tokens = tokens[1:]
	for len(cmd.Subcommands) > 0 && len(tokens) > 0 {
		sub := cmd.subcommand(tokens[0])
		if sub == nil {
			break
		}
		cmd = sub
		chain = append(chain, sub)
		tokens = tokens[1:]
	}

	var permissions int64
	if r.deps.Permissions != nil && m.GuildID != "" {
		p, err := r.deps.Permissions(m.Author.ID, m.ChannelID)
		if err != nil {
			r.logger.Warn("failed to resolve member permissions",
				slog.String("user_id", m.Author.ID),
				slog.String("channel_id", m.ChannelID),
				slog.String("error", err.Error()),
			)
		}
		permissions = p
	}

	inv := NewMessageInvocation(s, m, permissions)

	if cmd.Run == nil {
		var names []string
		for _, sub := range cmd.Subcommands {
			names = append(names, sub.Name)
		}
		r.reply(inv, Response{
			Content: fmt.Sprintf("Usage: `%s%s <%s>`", r.deps.Prefix, commandPath(chain), strings.Join(names, "|")),
		})
		return true
	}

	args, err := parseArgs(cmd, tokens)
	if err != nil {
		err = InputError("%s Usage: `%s%s %s`", err, r.deps.Prefix, commandPath(chain), cmd.usage())
	}
	r.run(ctx, inv, chain, args, err)

	return true
}

func (r *Router) run(ctx context.Context, inv Invocation, chain []*Command, args Args, parseErr error) {
	leaf := chain[len(chain)-1]
	path := commandPath(chain)

	err := r.check(ctx, inv, chain)
	if err == nil {
		err = parseErr
	}
	if err == nil && leaf.Cooldown != nil {
		if wait, ok := leaf.Cooldown.Take(inv.Author().ID, r.deps.Time()); !ok {
			err = CooldownError(wait)
		}
	}
	if err == nil && leaf.Run != nil {
		err = leaf.Run(ctx, inv, args)
	}

	if err != nil {
		r.report(inv, path, err)
	}
}

func (r *Router) check(ctx context.Context, inv Invocation, chain []*Command) error {
	for _, c := range chain {
		for _, check := range c.Checks {
			if err := check(ctx, inv, r.deps); err != nil {
				return err
			}
		}
	}
	return nil
}

// report answers a failed invocation. User errors are shown as they are; anything else is logged and rendered by
// the error formatter.
func (r *Router) report(inv Invocation, command string, err error) {
	if msg, ok := UserMessage(err); ok {
		r.reply(inv, Response{Content: msg, Ephemeral: true})
		return
	}

	r.logger.Error("command failed",
		slog.String("command", command),
		slog.String("user_id", inv.Author().ID),
		slog.String("guild_id", inv.GuildID()),
		slog.String("error", err.Error()),
	)
	r.reply(inv, Response{Content: r.deps.errorFormatter().FormatError(command, err), Ephemeral: true})
}

func (r *Router) reply(inv Invocation, resp Response) {
	if _, err := inv.Reply(resp); err != nil {
		r.logger.Error("failed to send reply", slog.String("error", err.Error()))
	}
}

func commandPath(chain []*Command) string {
	names := make([]string, 0, len(chain))
	for _, c := range chain {
		names = append(names, c.Name)
	}
	return strings.Join(names, " ")
}

// argv splits a prefix command into shell style tokens, honouring quotes.
func argv(s string) (tokens []string) {
	defer func() {
		// Unbalanced quotes make str.ToArgv panic; fall back to plain whitespace splitting.
		if recover() != nil {
			tokens = strings.Fields(s)
		}
	}()

	return str.ToArgv(strings.TrimSpace(s))
}

func parseArgs(cmd *Command, tokens []string) (Args, error) {
	args := make(Args)
	for _, opt := range cmd.Options {
		if len(tokens) == 0 {
			if opt.Required {
				return args, fmt.Errorf("Missing required argument `%s`.", opt.Name)
			}
			continue
		}

		if opt.Rest {
			args[opt.Name] = strings.Join(tokens, " ")
			tokens = nil
			continue
		}

		args[opt.Name] = tokens[0]
		tokens = tokens[1:]
	}

	return args, nil
}

func resolveSlash(cmd *Command, options []*discordgo.ApplicationCommandInteractionDataOption) ([]*Command, Args) {
	chain := []*Command{cmd}
	for len(options) == 1 && (options[0].Type == discordgo.ApplicationCommandOptionSubCommand ||
		options[0].Type == discordgo.ApplicationCommandOptionSubCommandGroup) {
		sub := cmd.subcommand(options[0].Name)
		if sub == nil {
			break
		}
		cmd = sub
		chain = append(chain, sub)
		options = options[0].Options
	}

	args := make(Args)
	for _, o := range options {
		args[o.Name] = optionString(o)
	}

	return chain, args
}

func optionString(o *discordgo.ApplicationCommandInteractionDataOption) string {
	switch o.Type {
	case discordgo.ApplicationCommandOptionString:
		return o.StringValue()
	case discordgo.ApplicationCommandOptionInteger:
		return strconv.FormatInt(o.IntValue(), 10)
	case discordgo.ApplicationCommandOptionNumber:
		return strconv.FormatFloat(o.FloatValue(), 'f', -1, 64)
	case discordgo.ApplicationCommandOptionBoolean:
		return strconv.FormatBool(o.BoolValue())
	case discordgo.ApplicationCommandOptionUser:
		return o.UserValue(nil).ID
	case discordgo.ApplicationCommandOptionRole:
		return o.RoleValue(nil, "").ID
	case discordgo.ApplicationCommandOptionChannel:
		return o.ChannelValue(nil).ID
	default:
		return fmt.Sprint(o.Value)
	}
}
