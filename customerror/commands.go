package customerror

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/olympus-go/cogs/cog"
	"github.com/olympus-go/cogs/store"
)

func (p *Plugin) command() *cog.Command {
	return &cog.Command{
		Name:        "customerror",
		Description: "Change the message shown when a command fails",
		Checks:      []cog.Check{cog.OwnerOnly},
		Subcommands: []*cog.Command{
			{
				Name:        "show",
				Description: "Show the current template and a preview",
				Run:         p.show,
			},
			{
				Name:        "set",
				Description: "Set the template, {command} and {error} are replaced",
				Options:     []cog.Option{{Name: "message", Description: "The template", Required: true, Rest: true}},
				Run:         p.set,
			},
			{
				Name:        "reset",
				Description: "Go back to the default message",
				Run:         p.reset,
			},
		},
	}
}

func (p *Plugin) show(_ context.Context, inv cog.Invocation, _ cog.Args) error {
	preview := p.FormatError("example", errors.New("something went wrong"))

	_, err := inv.Reply(cog.Response{
		Content: fmt.Sprintf("Current template:\n```%s```\nPreview:\n%s", p.template(), preview),
	})
	return err
}

func (p *Plugin) set(ctx context.Context, inv cog.Invocation, args cog.Args) error {
	message := strings.TrimSpace(args.String("message"))
	if message == "" {
		return cog.InputError("The template can't be empty.")
	}
	if p.config.MaxLength > 0 && len(message) > p.config.MaxLength {
		return cog.InputError("The template can't be longer than %d characters.", p.config.MaxLength)
	}

	if err := p.save(ctx, message); err != nil {
		return err
	}

	_, err := inv.Reply(cog.Response{Content: "Error template updated. Preview:\n" + p.FormatError("example", errors.New("something went wrong"))})
	return err
}

func (p *Plugin) reset(ctx context.Context, inv cog.Invocation, _ cog.Args) error {
	if err := p.save(ctx, ""); err != nil {
		return err
	}

	_, err := inv.Reply(cog.Response{Content: "Error template reset to the default."})
	return err
}

func (p *Plugin) save(ctx context.Context, message string) error {
	err := store.Update(ctx, p.deps.Store, store.GlobalKey(pluginName), func(doc *globalDoc) error {
		doc.Message = message
		return nil
	})
	if err != nil {
		return err
	}

	p.setMessage(message)
	return nil
}
