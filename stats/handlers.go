package stats

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/olympus-go/cogs/cog"
)

func (p *Plugin) stats(ctx context.Context, inv cog.Invocation, _ cog.Args) error {
	keys, fns := p.functions.Items()

	lines := make([]string, 0, len(keys))
	for i, key := range keys {
		lines = append(lines, fmt.Sprintf("%s: %s", key, fns[i](ctx)))
	}
	sort.Strings(lines)

	_, err := inv.Reply(cog.Response{
		Content:   "```\n" + strings.Join(lines, "\n") + "\n```",
		Ephemeral: true,
	})
	return err
}
